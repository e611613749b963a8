package evaluator

import (
	"cmp"
	"strings"

	"github.com/sambeau/seqmacro/pkg/macro/ast"
	"github.com/sambeau/seqmacro/pkg/macro/value"
)

// ---------------------------------------------------------------------------
// logic
//
// Logical operators are three-valued. For AND a false operand decides the
// result, for OR a true one; otherwise any NotSet operand makes the result
// NotSet. The result therefore never depends on operand order.

type logicalEvaluator struct {
	dominant bool // false for AND, true for OR
}

// EvaluatesChildren: WHERE clauses stop at the first deciding operand.
func (l logicalEvaluator) EvaluatesChildren(ex *Executor) bool {
	return ex.IsWhere()
}

func (l logicalEvaluator) Evaluate(ex *Executor, n *ast.Node) error {
	lazy := ex.IsWhere()
	decided, sawNotSet := false, false

	for i, c := range n.Children {
		if lazy {
			if err := ex.EvalChild(n, i); err != nil {
				return err
			}
		}
		v, err := ex.operand(c)
		if err != nil {
			return err
		}
		switch v.Kind() {
		case value.Bool:
			if v.Bool() == l.dominant {
				decided = true
			}
		case value.NotSet:
			sawNotSet = true
		default:
			return ex.typeError(n, v)
		}
		if decided && lazy {
			break
		}
	}

	switch {
	case decided:
		n.Value.SetBool(l.dominant)
	case sawNotSet:
		n.Value.SetNotSet()
	default:
		n.Value.SetBool(!l.dominant)
	}
	return nil
}

func evalXor(ex *Executor, n *ast.Node) error {
	a, b, err := ex.binaryOperands(n)
	if err != nil {
		return err
	}
	if a.IsNotSet() || b.IsNotSet() {
		n.Value.SetNotSet()
		return nil
	}
	if a.Kind() != value.Bool || b.Kind() != value.Bool {
		return ex.typeError(n, a, b)
	}
	n.Value.SetBool(a.Bool() != b.Bool())
	return nil
}

func evalNot(ex *Executor, n *ast.Node) error {
	a, err := ex.unaryOperand(n)
	if err != nil {
		return err
	}
	switch a.Kind() {
	case value.NotSet:
		n.Value.SetNotSet()
	case value.Bool:
		n.Value.SetBool(!a.Bool())
	default:
		return ex.typeError(n, a)
	}
	return nil
}

// ---------------------------------------------------------------------------
// comparison

// compareValues orders a and b: numbers with int/float promotion, strings
// (folded unless case sensitive) and booleans (false < true). ok is false
// when the kinds cannot be compared.
func (ex *Executor) compareValues(a, b value.Value) (int, bool) {
	switch {
	case a.Kind() == value.Int && b.Kind() == value.Int:
		return cmp.Compare(a.Int(), b.Int()), true
	case a.IsNumeric() && b.IsNumeric():
		x, _ := a.AsFloat()
		y, _ := b.AsFloat()
		return cmp.Compare(x, y), true
	case a.Kind() == value.String && b.Kind() == value.String:
		return strings.Compare(ex.fold(a.Str()), ex.fold(b.Str())), true
	case a.Kind() == value.Bool && b.Kind() == value.Bool:
		return cmp.Compare(boolRank(a.Bool()), boolRank(b.Bool())), true
	}
	return 0, false
}

func (ex *Executor) fold(s string) string {
	if ex.caseSensitive {
		return s
	}
	return ex.folder.String(s)
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

func evalComparison(ex *Executor, n *ast.Node) error {
	a, b, err := ex.binaryOperands(n)
	if err != nil {
		return err
	}
	if a.IsNotSet() || b.IsNotSet() {
		n.Value.SetNotSet()
		return nil
	}
	c, ok := ex.compareValues(a, b)
	if !ok {
		return ex.typeError(n, a, b)
	}

	var result bool
	switch n.Kind {
	case ast.Eq:
		result = c == 0
	case ast.NotEq:
		result = c != 0
	case ast.Less:
		result = c < 0
	case ast.LessEq:
		result = c <= 0
	case ast.Greater:
		result = c > 0
	case ast.GreaterEq:
		result = c >= 0
	}
	n.Value.SetBool(result)
	return nil
}

// evalLike matches a string against a mask where '*' matches any run of
// characters and '?' any single character.
func evalLike(ex *Executor, n *ast.Node) error {
	a, b, err := ex.binaryOperands(n)
	if err != nil {
		return err
	}
	if a.IsNotSet() || b.IsNotSet() {
		n.Value.SetNotSet()
		return nil
	}
	if a.Kind() != value.String || b.Kind() != value.String {
		return ex.typeError(n, a, b)
	}
	n.Value.SetBool(wildcardMatch(ex.fold(a.Str()), ex.fold(b.Str())))
	return nil
}

func wildcardMatch(s, mask string) bool {
	str, pat := []rune(s), []rune(mask)
	si, pi := 0, 0
	star, mark := -1, 0

	for si < len(str) {
		switch {
		case pi < len(pat) && (pat[pi] == '?' || pat[pi] == str[si]):
			si++
			pi++
		case pi < len(pat) && pat[pi] == '*':
			star, mark = pi, si
			pi++
		case star >= 0:
			mark++
			si, pi = mark, star+1
		default:
			return false
		}
	}
	for pi < len(pat) && pat[pi] == '*' {
		pi++
	}
	return pi == len(pat)
}

// evalIn tests the first operand against the rest. Items of another kind
// or NotSet never match.
func evalIn(ex *Executor, n *ast.Node) error {
	if len(n.Children) < 2 {
		return ex.errorAt(n, "EXEC-0003", map[string]any{"Op": "in", "Expected": "at least 2", "Got": len(n.Children)})
	}
	needle, err := ex.operand(n.Children[0])
	if err != nil {
		return err
	}
	if needle.IsNotSet() {
		n.Value.SetNotSet()
		return nil
	}
	if !needle.IsSimpleType() {
		return ex.typeError(n, needle)
	}

	for _, c := range n.Children[1:] {
		v, err := ex.operand(c)
		if err != nil {
			return err
		}
		if d, ok := ex.compareValues(needle, v); ok && d == 0 {
			n.Value.SetBool(true)
			return nil
		}
	}
	n.Value.SetBool(false)
	return nil
}

func evalBetween(ex *Executor, n *ast.Node) error {
	if len(n.Children) != 3 {
		return ex.errorAt(n, "EXEC-0003", map[string]any{"Op": "between", "Expected": 3, "Got": len(n.Children)})
	}
	var vals [3]value.Value
	for i, c := range n.Children {
		v, err := ex.operand(c)
		if err != nil {
			return err
		}
		if v.IsNotSet() {
			n.Value.SetNotSet()
			return nil
		}
		vals[i] = v
	}
	lo, ok1 := ex.compareValues(vals[0], vals[1])
	hi, ok2 := ex.compareValues(vals[0], vals[2])
	if !ok1 || !ok2 {
		return ex.typeError(n, vals[:]...)
	}
	n.Value.SetBool(lo >= 0 && hi <= 0)
	return nil
}

// ---------------------------------------------------------------------------
// arithmetic

func evalArithmetic(ex *Executor, n *ast.Node) error {
	a, b, err := ex.binaryOperands(n)
	if err != nil {
		return err
	}
	if a.IsNotSet() || b.IsNotSet() {
		n.Value.SetNotSet()
		return nil
	}

	switch {
	case a.Kind() == value.Int && b.Kind() == value.Int:
		x, y := a.Int(), b.Int()
		switch n.Kind {
		case ast.Add:
			n.Value.SetInt(x + y)
		case ast.Sub:
			n.Value.SetInt(x - y)
		case ast.Mul:
			n.Value.SetInt(x * y)
		case ast.Div:
			if y == 0 {
				return ex.errorAt(n, "EXEC-0004", nil)
			}
			n.Value.SetInt(x / y)
		}
	case a.IsNumeric() && b.IsNumeric():
		x, _ := a.AsFloat()
		y, _ := b.AsFloat()
		switch n.Kind {
		case ast.Add:
			n.Value.SetFloat(x + y)
		case ast.Sub:
			n.Value.SetFloat(x - y)
		case ast.Mul:
			n.Value.SetFloat(x * y)
		case ast.Div:
			n.Value.SetFloat(x / y)
		}
	case n.Kind == ast.Add && a.Kind() == value.String && b.Kind() == value.String:
		n.Value.SetString(a.Str() + b.Str())
	default:
		return ex.typeError(n, a, b)
	}
	return nil
}

func evalNeg(ex *Executor, n *ast.Node) error {
	a, err := ex.unaryOperand(n)
	if err != nil {
		return err
	}
	switch a.Kind() {
	case value.NotSet:
		n.Value.SetNotSet()
	case value.Int:
		n.Value.SetInt(-a.Int())
	case value.Float:
		n.Value.SetFloat(-a.Float())
	default:
		return ex.typeError(n, a)
	}
	return nil
}

// ---------------------------------------------------------------------------
// helpers

func (ex *Executor) binaryOperands(n *ast.Node) (value.Value, value.Value, error) {
	if len(n.Children) != 2 {
		return value.Value{}, value.Value{}, ex.errorAt(n, "EXEC-0003", map[string]any{"Op": n.Kind.Operator(), "Expected": 2, "Got": len(n.Children)})
	}
	a, err := ex.operand(n.Children[0])
	if err != nil {
		return a, value.Value{}, err
	}
	b, err := ex.operand(n.Children[1])
	return a, b, err
}

func (ex *Executor) unaryOperand(n *ast.Node) (value.Value, error) {
	if len(n.Children) != 1 {
		return value.Value{}, ex.errorAt(n, "EXEC-0003", map[string]any{"Op": n.Kind.Operator(), "Expected": 1, "Got": len(n.Children)})
	}
	return ex.operand(n.Children[0])
}

func (ex *Executor) typeError(n *ast.Node, vals ...value.Value) error {
	kinds := make([]string, len(vals))
	for i, v := range vals {
		kinds[i] = v.Kind().String()
	}
	return ex.errorAt(n, "EXEC-0002", map[string]any{"Op": n.Kind.Operator(), "Types": strings.Join(kinds, " and ")})
}
