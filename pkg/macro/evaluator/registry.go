package evaluator

import (
	"sort"

	"github.com/sambeau/seqmacro/pkg/macro/ast"
)

// NodeEvaluator computes the value of one node. By the time Evaluate is
// called every child has been evaluated, unless the evaluator implements
// SelfEvaluating and asked to drive its children itself.
type NodeEvaluator interface {
	Evaluate(ex *Executor, n *ast.Node) error
}

// EvaluatorFunc adapts a plain function to NodeEvaluator.
type EvaluatorFunc func(ex *Executor, n *ast.Node) error

// Evaluate calls f(ex, n).
func (f EvaluatorFunc) Evaluate(ex *Executor, n *ast.Node) error { return f(ex, n) }

// SelfEvaluating is implemented by evaluators that may skip some operands.
// When EvaluatesChildren reports true the executor does not pre-evaluate the
// children; the evaluator calls Executor.EvalChild as needed.
type SelfEvaluating interface {
	EvaluatesChildren(ex *Executor) bool
}

// Registry maps node kinds to evaluators.
type Registry struct {
	evaluators map[ast.Kind]NodeEvaluator
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{evaluators: make(map[ast.Kind]NodeEvaluator)}
}

// DefaultRegistry returns a fresh registry holding the built-in evaluator
// for every node kind. Callers may Register overrides on the result without
// affecting other executors.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(ast.Const, EvaluatorFunc(evalConst))
	r.Register(ast.Identifier, EvaluatorFunc(evalIdentifier))
	r.Register(ast.RTVar, EvaluatorFunc(evalRTVar))
	r.Register(ast.FunctionCall, EvaluatorFunc(evalCall))
	r.Register(ast.Assignment, EvaluatorFunc(evalAssignment))

	r.Register(ast.And, logicalEvaluator{dominant: false})
	r.Register(ast.Or, logicalEvaluator{dominant: true})
	r.Register(ast.Xor, EvaluatorFunc(evalXor))
	r.Register(ast.Not, EvaluatorFunc(evalNot))

	for _, k := range []ast.Kind{ast.Eq, ast.NotEq, ast.Less, ast.LessEq, ast.Greater, ast.GreaterEq} {
		r.Register(k, EvaluatorFunc(evalComparison))
	}
	r.Register(ast.Like, EvaluatorFunc(evalLike))
	r.Register(ast.In, EvaluatorFunc(evalIn))
	r.Register(ast.Between, EvaluatorFunc(evalBetween))

	for _, k := range []ast.Kind{ast.Add, ast.Sub, ast.Mul, ast.Div} {
		r.Register(k, EvaluatorFunc(evalArithmetic))
	}
	r.Register(ast.Neg, EvaluatorFunc(evalNeg))
	return r
}

// Register installs ev for kind, replacing any previous evaluator.
func (r *Registry) Register(kind ast.Kind, ev NodeEvaluator) {
	r.evaluators[kind] = ev
}

// Lookup returns the evaluator for kind. Unregistered kinds get an
// evaluator that fails with an "unsupported node" error.
func (r *Registry) Lookup(kind ast.Kind) NodeEvaluator {
	if ev, ok := r.evaluators[kind]; ok {
		return ev
	}
	return unsupported
}

// Kinds lists the registered kinds in declaration order.
func (r *Registry) Kinds() []ast.Kind {
	kinds := make([]ast.Kind, 0, len(r.evaluators))
	for k := range r.evaluators {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

var unsupported = EvaluatorFunc(func(ex *Executor, n *ast.Node) error {
	return ex.errorAt(n, "EXEC-0001", map[string]any{"Kind": n.Kind.String()})
})

var _ SelfEvaluating = logicalEvaluator{}
