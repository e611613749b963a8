// Package help provides the reference for macro authors: the host functions
// of a function table, the operators and the keywords. It backs
// `seqmacro describe` and the console's :describe command.
package help

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sambeau/seqmacro/pkg/macro/ast"
	merrors "github.com/sambeau/seqmacro/pkg/macro/errors"
	"github.com/sambeau/seqmacro/pkg/macro/evaluator"
	"github.com/sambeau/seqmacro/pkg/macro/lexer"
	"github.com/sambeau/seqmacro/pkg/macro/value"
)

// Topic kinds.
const (
	KindFunction     = "function"
	KindFunctionList = "function-list"
	KindOperatorList = "operator-list"
	KindKeywordList  = "keyword-list"
)

// TopicResult is the help output for one topic.
type TopicResult struct {
	Kind        string         `json:"kind" yaml:"kind"`
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Functions   []FunctionInfo `json:"functions,omitempty" yaml:"functions,omitempty"`
	Operators   []OperatorInfo `json:"operators,omitempty" yaml:"operators,omitempty"`
	Keywords    []string       `json:"keywords,omitempty" yaml:"keywords,omitempty"`
}

// FunctionInfo describes one host function.
type FunctionInfo struct {
	Name        string   `json:"name" yaml:"name"`
	Clauses     []string `json:"clauses" yaml:"clauses"`
	Arity       string   `json:"arity,omitempty" yaml:"arity,omitempty"`
	Args        []string `json:"args,omitempty" yaml:"args,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
}

// Signature renders the call with its argument kinds, e.g.
// "CONTAINS(string, string)". A repeating last kind is shown with "...".
func (f FunctionInfo) Signature() string {
	return f.Name + "(" + strings.Join(f.Args, ", ") + ")"
}

// OperatorInfo describes one operator.
type OperatorInfo struct {
	Symbol      string `json:"symbol" yaml:"symbol"`
	Kind        string `json:"kind" yaml:"kind"`
	Description string `json:"description" yaml:"description"`
}

var operatorDescriptions = map[ast.Kind]string{
	ast.And:       "true when every operand is true; unknown operands make the result unknown unless one is false",
	ast.Or:        "true when any operand is true",
	ast.Xor:       "true when exactly one operand is true",
	ast.Not:       "negates a condition; `x not in (...)` negates membership",
	ast.Eq:        "equality; strings compare without regard to case",
	ast.NotEq:     "inequality",
	ast.Less:      "less than",
	ast.LessEq:    "less than or equal",
	ast.Greater:   "greater than",
	ast.GreaterEq: "greater than or equal",
	ast.Like:      "wildcard match: `*` any run of characters, `?` one character",
	ast.In:        "membership: `x in (a, b, c)`",
	ast.Between:   "inclusive range test: `x between lo and hi`",
	ast.Add:       "addition",
	ast.Sub:       "subtraction",
	ast.Mul:       "multiplication",
	ast.Div:       "division; integer division by zero is an error",
	ast.Neg:       "unary minus",
}

// Topics lists the fixed topic names.
func Topics() []string {
	return []string{"functions", "where", "do", "operators", "keywords"}
}

// DescribeTopic returns help for topic. Topics are the names from Topics or
// the name of a function in funcs, matched case-insensitively.
func DescribeTopic(topic string, funcs *evaluator.FunctionTable) (*TopicResult, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, fmt.Errorf("no topic specified (try: %s)", strings.Join(Topics(), ", "))
	}
	if funcs == nil {
		funcs = evaluator.NewFunctionTable()
	}

	switch strings.ToLower(topic) {
	case "functions":
		return functionList("functions", "Functions callable from macros.", funcs, funcs.Names()), nil
	case "where":
		return functionList("where", "Functions callable in WHERE clauses and statement filters.", funcs, funcs.WhereNames()), nil
	case "do":
		return functionList("do", "Functions callable as DO statements.", funcs, funcs.DoNames()), nil
	case "operators":
		return describeOperators(), nil
	case "keywords":
		return &TopicResult{
			Kind:        KindKeywordList,
			Name:        "keywords",
			Description: "Reserved words. Keywords are case-insensitive.",
			Keywords:    lexer.Keywords(),
		}, nil
	}

	if info, ok := describeFunction(topic, funcs); ok {
		return &TopicResult{
			Kind:        KindFunction,
			Name:        info.Name,
			Description: info.Description,
			Functions:   []FunctionInfo{info},
		}, nil
	}
	return nil, unknownTopicError(topic, funcs)
}

func functionList(name, desc string, funcs *evaluator.FunctionTable, names []string) *TopicResult {
	result := &TopicResult{Kind: KindFunctionList, Name: name, Description: desc}
	for _, n := range names {
		if info, ok := describeFunction(n, funcs); ok {
			result.Functions = append(result.Functions, info)
		}
	}
	return result
}

func describeFunction(name string, funcs *evaluator.FunctionTable) (FunctionInfo, bool) {
	canonical, fn, ok := funcs.Lookup(name)
	if !ok {
		return FunctionInfo{}, false
	}
	info := FunctionInfo{Name: canonical, Description: fn.Description}
	if fn.Clause&evaluator.ClauseWhere != 0 {
		info.Clauses = append(info.Clauses, "where")
	}
	if fn.Clause&evaluator.ClauseDo != 0 {
		info.Clauses = append(info.Clauses, "do")
	}
	if !fn.Contract.IsZero() {
		info.Arity = fn.Contract.Arity()
		info.Args = argKinds(fn.Contract)
	}
	return info, true
}

// argKinds names the kind of every accepted position; optional positions
// are bracketed.
func argKinds(c evaluator.Contract) []string {
	n := c.MaxArgs
	if n < 0 {
		n = max(c.MinArgs, len(c.Args))
	}
	out := make([]string, 0, n+1)
	for i := 0; i < n; i++ {
		k := kindName(kindAt(c, i))
		if i >= c.MinArgs {
			k = "[" + k + "]"
		}
		out = append(out, k)
	}
	if c.MaxArgs < 0 {
		out = append(out, "...")
	}
	return out
}

func kindAt(c evaluator.Contract, i int) value.Kind {
	switch {
	case len(c.Args) == 0:
		return evaluator.Any
	case i < len(c.Args):
		return c.Args[i]
	}
	return c.Args[len(c.Args)-1]
}

func kindName(k value.Kind) string {
	if k == evaluator.Any {
		return "any"
	}
	return k.String()
}

func describeOperators() *TopicResult {
	result := &TopicResult{
		Kind:        KindOperatorList,
		Name:        "operators",
		Description: "Operators by group: logical, comparison, arithmetic.",
	}
	for _, k := range ast.Kinds() {
		desc, ok := operatorDescriptions[k]
		if !ok {
			continue
		}
		result.Operators = append(result.Operators, OperatorInfo{
			Symbol:      k.Operator(),
			Kind:        k.String(),
			Description: desc,
		})
	}
	return result
}

func unknownTopicError(topic string, funcs *evaluator.FunctionTable) error {
	candidates := append(Topics(), funcs.Names()...)
	sort.Strings(candidates)
	if suggestion := merrors.FindClosestMatch(topic, candidates); suggestion != "" {
		return fmt.Errorf("unknown topic: %s (did you mean %s?)", topic, suggestion)
	}
	return fmt.Errorf("unknown topic: %s (try: %s)", topic, strings.Join(Topics(), ", "))
}
