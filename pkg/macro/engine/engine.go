// Package engine ties the macro scanner, parser and executor together and
// runs compiled macros over the records of a host.
package engine

import (
	"io"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/sambeau/seqmacro/pkg/macro/ast"
	merrors "github.com/sambeau/seqmacro/pkg/macro/errors"
	"github.com/sambeau/seqmacro/pkg/macro/evaluator"
	"github.com/sambeau/seqmacro/pkg/macro/parser"
	"github.com/sambeau/seqmacro/pkg/macro/value"
)

// Option configures an Engine.
type Option func(*Engine)

// WithCaseSensitive makes string comparisons and variable names case
// sensitive.
func WithCaseSensitive(cs bool) Option {
	return func(e *Engine) { e.caseSensitive = cs }
}

// WithErrorReport selects line/column or offset error locations.
func WithErrorReport(mode merrors.ReportMode) Option {
	return func(e *Engine) { e.report = mode }
}

// WithDefaultThreads sets the worker count for macros that declare none.
func WithDefaultThreads(n int) Option {
	return func(e *Engine) { e.defaultThreads = n }
}

// WithTreeSort enables or disables cost ordering of WHERE operands.
func WithTreeSort(enabled bool) Option {
	return func(e *Engine) { e.treeSort = enabled }
}

// WithLogger sets the structured logger.
func WithLogger(l *log.Entry) Option {
	return func(e *Engine) { e.log = l }
}

// Engine compiles and runs macros against one function table.
type Engine struct {
	funcs          *evaluator.FunctionTable
	caseSensitive  bool
	report         merrors.ReportMode
	defaultThreads int
	treeSort       bool
	log            *log.Entry
}

// New creates an engine. funcs supplies the WHERE and DO function names to
// the parser; a nil table allows no calls.
func New(funcs *evaluator.FunctionTable, opts ...Option) *Engine {
	if funcs == nil {
		funcs = evaluator.NewFunctionTable()
	}
	e := &Engine{funcs: funcs, treeSort: true}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		l := log.New()
		l.SetOutput(io.Discard)
		e.log = log.NewEntry(l)
	}
	return e
}

// Functions returns the function table.
func (e *Engine) Functions() *evaluator.FunctionTable { return e.funcs }

// CaseSensitive reports the comparison mode.
func (e *Engine) CaseSensitive() bool { return e.caseSensitive }

// Logger returns the structured logger.
func (e *Engine) Logger() *log.Entry { return e.log }

func (e *Engine) parserOptions() []parser.Option {
	return []parser.Option{
		parser.WithFunctionNames(e.funcs.WhereNames(), e.funcs.DoNames()),
		parser.WithErrorReport(e.report),
		parser.WithTreeSort(e.treeSort),
		parser.WithCaseSensitive(e.caseSensitive),
	}
}

// Compile parses every macro in src.
func (e *Engine) Compile(src string) (*ast.Script, error) {
	script, err := parser.New(src, e.parserOptions()...).ParseScript()
	if err != nil {
		e.log.WithError(err).Debug("compile failed")
		return nil, err
	}
	e.log.WithField("macros", len(script.Macros)).Debug("compiled")
	return script, nil
}

// CompileMacro parses exactly one macro.
func (e *Engine) CompileMacro(src string) (*ast.Macro, error) {
	m, err := parser.New(src, e.parserOptions()...).Parse(true)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, merrors.New("PARSE-0001", map[string]any{"Got": "end of input"})
	}
	return m, nil
}

// Evaluate parses where as a standalone WHERE expression and evaluates it
// against resolver. A blank expression is NotSet.
func (e *Engine) Evaluate(where string, resolver evaluator.Resolver) (value.Value, error) {
	if strings.TrimSpace(where) == "" {
		return value.Value{}, nil
	}
	tree, err := parser.ParseExpression(where, e.funcs.WhereNames(), parser.WithErrorReport(e.report), parser.WithTreeSort(e.treeSort))
	if err != nil {
		return value.Value{}, err
	}
	ex := e.executor(resolver, e.log)
	if err := ex.EvaluateTree(tree, resolver, true, e.caseSensitive); err != nil {
		return value.Value{}, err
	}
	return ex.Result(), nil
}

// Match is Evaluate reduced to a boolean; NotSet is false.
func (e *Engine) Match(where string, resolver evaluator.Resolver) (bool, error) {
	v, err := e.Evaluate(where, resolver)
	if err != nil {
		return false, err
	}
	return v.Kind() == value.Bool && v.Bool(), nil
}

func (e *Engine) executor(r evaluator.Resolver, l *log.Entry) *evaluator.Executor {
	return evaluator.New(r,
		evaluator.WithCaseSensitive(e.caseSensitive),
		evaluator.WithErrorReport(e.report),
		evaluator.WithLogger(l),
	)
}
