// Package evaluator executes parsed macro trees against a host Resolver.
//
// Evaluation is a post-order walk: the children of a node are evaluated
// left to right, then the evaluator registered for the node's kind computes
// the node's value slot from its children's slots. Identifiers, function
// calls and run-time variables are delegated to the Resolver; everything
// else (logic, comparison, arithmetic) is evaluated here.
package evaluator

import (
	"errors"
	"io"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"

	"github.com/sambeau/seqmacro/pkg/macro/ast"
	merrors "github.com/sambeau/seqmacro/pkg/macro/errors"
	"github.com/sambeau/seqmacro/pkg/macro/value"
)

// Option configures an Executor.
type Option func(*Executor)

// WithRegistry replaces the built-in evaluators.
func WithRegistry(r *Registry) Option {
	return func(ex *Executor) { ex.registry = r }
}

// WithCaseSensitive sets the string comparison mode used when the executor
// is driven through Eval directly.
func WithCaseSensitive(cs bool) Option {
	return func(ex *Executor) { ex.caseSensitive = cs }
}

// WithLogger sets the logger used for trace output.
func WithLogger(log *logrus.Entry) Option {
	return func(ex *Executor) { ex.log = log }
}

// WithErrorReport selects how execution error locations are rendered.
func WithErrorReport(mode merrors.ReportMode) Option {
	return func(ex *Executor) { ex.report = mode }
}

// Executor evaluates trees. It is not safe for concurrent use; give each
// goroutine its own Executor, Resolver and tree copies.
type Executor struct {
	resolver      Resolver
	registry      *Registry
	caseSensitive bool
	isWhere       bool
	report        merrors.ReportMode
	log           *logrus.Entry
	folder        cases.Caser

	parents []*ast.Node
	root    *ast.Node
}

// New creates an executor bound to resolver.
func New(resolver Resolver, opts ...Option) *Executor {
	ex := &Executor{
		resolver: resolver,
		registry: DefaultRegistry(),
		folder:   cases.Fold(),
	}
	for _, opt := range opts {
		opt(ex)
	}
	if ex.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		ex.log = logrus.NewEntry(l)
	}
	return ex
}

// Resolver returns the resolver in use.
func (ex *Executor) Resolver() Resolver { return ex.resolver }

// Registry returns the evaluator registry; Register on it to add or
// override evaluators.
func (ex *Executor) Registry() *Registry { return ex.registry }

// IsWhere reports whether the current tree is evaluated as a WHERE clause.
func (ex *Executor) IsWhere() bool { return ex.isWhere }

// CaseSensitive reports the string comparison mode.
func (ex *Executor) CaseSensitive() bool { return ex.caseSensitive }

// Parent returns the parent of the node being evaluated, nil at the root.
func (ex *Executor) Parent() *ast.Node {
	if len(ex.parents) == 0 {
		return nil
	}
	return ex.parents[len(ex.parents)-1]
}

// EvaluateTree resets every value slot in tree and evaluates it. A nil
// tree evaluates to NotSet.
func (ex *Executor) EvaluateTree(tree *ast.Node, resolver Resolver, isWhere, caseSensitive bool) error {
	if resolver != nil {
		ex.resolver = resolver
	}
	ex.isWhere = isWhere
	ex.caseSensitive = caseSensitive
	ex.parents = ex.parents[:0]
	ex.root = tree
	if tree == nil {
		return nil
	}
	tree.Reset()
	return ex.Eval(tree)
}

// ExecuteStatements runs DO statements in source order. A function-call
// statement with a filter runs only when the filter is true.
func (ex *Executor) ExecuteStatements(stmts []*ast.Node, resolver Resolver, caseSensitive bool) error {
	for _, st := range stmts {
		if st.Kind == ast.FunctionCall && st.Filter != nil {
			if resolver != nil {
				ex.resolver = resolver
			}
			ex.caseSensitive = caseSensitive
			ok, err := ex.evalFilter(st)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
		}
		if err := ex.EvaluateTree(st, resolver, false, caseSensitive); err != nil {
			return err
		}
	}
	return nil
}

// Eval evaluates n and, unless its evaluator drives them itself, its
// children first.
func (ex *Executor) Eval(n *ast.Node) error {
	ev := ex.registry.Lookup(n.Kind)
	if se, ok := ev.(SelfEvaluating); ok && se.EvaluatesChildren(ex) {
		ex.parents = append(ex.parents, n)
		defer ex.pop()
		return ev.Evaluate(ex, n)
	}

	ex.parents = append(ex.parents, n)
	for _, c := range n.Children {
		if err := ex.Eval(c); err != nil {
			ex.pop()
			return err
		}
	}
	ex.pop()
	return ev.Evaluate(ex, n)
}

// EvalChild evaluates the i-th child of n on demand. It is meant for
// SelfEvaluating evaluators.
func (ex *Executor) EvalChild(n *ast.Node, i int) error {
	return ex.Eval(n.Children[i])
}

func (ex *Executor) pop() {
	ex.parents = ex.parents[:len(ex.parents)-1]
}

// evalFilter evaluates the statement filter of st as a WHERE clause.
func (ex *Executor) evalFilter(st *ast.Node) (bool, error) {
	saved := ex.isWhere
	ex.isWhere = true
	defer func() { ex.isWhere = saved }()

	st.Filter.Reset()
	ex.parents = append(ex.parents, st)
	err := ex.Eval(st.Filter)
	ex.pop()
	if err != nil {
		return false, err
	}
	v, err := st.Filter.Value.Resolved()
	if err != nil {
		return false, ex.errorAt(st.Filter, "EXEC-0005", map[string]any{"Name": st.Filter.Name, "Limit": value.MaxDereferenceHops})
	}
	return v.Kind() == value.Bool && v.Bool(), nil
}

// Result returns the dereferenced value of the last evaluated root.
func (ex *Executor) Result() value.Value {
	if ex.root == nil {
		return value.Value{}
	}
	v, err := ex.root.Value.Resolved()
	if err != nil {
		return value.Value{}
	}
	return v
}

// IsNotSetType reports whether the last tree produced no value.
func (ex *Executor) IsNotSetType() bool { return ex.Result().IsNotSet() }

// IsBoolType reports whether the last tree produced a boolean.
func (ex *Executor) IsBoolType() bool { return ex.Result().Kind() == value.Bool }

// GetBoolValue returns the boolean result of the last tree. NotSet and
// non-boolean results are false.
func (ex *Executor) GetBoolValue() bool {
	v := ex.Result()
	return v.Kind() == value.Bool && v.Bool()
}

// errorAt builds an execution error located at n.
func (ex *Executor) errorAt(n *ast.Node, code string, data map[string]any) *merrors.MacroError {
	err := merrors.NewAt(code, n.Loc.Line, n.Loc.Column, n.Loc.Pos, data)
	err.Report = ex.report
	return err
}

// locate fills in a missing position on errors returned by the host.
func (ex *Executor) locate(n *ast.Node, err error) error {
	var me *merrors.MacroError
	if errors.As(err, &me) && me.Line == 0 && me.Offset < 0 {
		return me.WithPosition(n.Loc.Line, n.Loc.Column, n.Loc.Pos).WithReport(ex.report)
	}
	return err
}

// operand returns the dereferenced value of n.
func (ex *Executor) operand(n *ast.Node) (value.Value, error) {
	v, err := n.Value.Resolved()
	if err != nil {
		return v, ex.errorAt(n, "EXEC-0005", map[string]any{"Name": n.Name, "Limit": value.MaxDereferenceHops})
	}
	return v, nil
}
