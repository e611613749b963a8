package evaluator

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/sambeau/seqmacro/pkg/macro/ast"
	merrors "github.com/sambeau/seqmacro/pkg/macro/errors"
	"github.com/sambeau/seqmacro/pkg/macro/lexer"
	"github.com/sambeau/seqmacro/pkg/macro/parser"
	"github.com/sambeau/seqmacro/pkg/macro/value"
)

// testResolver resolves identifiers from a map and, for "name.field"
// paths, from the object bound to name by a statement filter.
type testResolver struct {
	*BaseResolver
	fields  map[string]value.Value
	calls   []string
	parents map[string]string
}

func newTestResolver(fields map[string]value.Value) *testResolver {
	r := &testResolver{
		BaseResolver: NewBaseResolver(NewFunctionTable(), false),
		fields:       fields,
		parents:      map[string]string{},
	}
	r.Host = r
	return r
}

func (r *testResolver) ResolveIdentifier(name string, out *value.Value, parent *ast.Node) bool {
	if parent != nil {
		r.parents[name] = parent.Kind.String() + ":" + parent.Name
	}
	if head, field, ok := strings.Cut(name, "."); ok {
		obj, found := r.GetTmpRTVarObject(head)
		if !found {
			return false
		}
		props := obj.Parent.(map[string]string)
		v, ok := props[field]
		if ok {
			out.SetString(v)
		}
		return ok
	}
	v, ok := r.fields[name]
	if ok {
		out.Set(v)
	}
	return ok
}

// register adds a function that records its call and returns its
// argument count.
func (r *testResolver) register(name string, clause Clause, contract Contract) {
	r.Functions.Register(name, Function{
		Fn: func(c *Call) error {
			r.calls = append(r.calls, c.Name)
			c.Return(value.NewInt(int64(c.NArgs())))
			return nil
		},
		Contract: contract,
		Clause:   clause,
	})
}

// objectResolver also writes simple values into objects.
type objectResolver struct {
	*testResolver
	assigned []value.ObjectRef
	with     value.Value
}

func (r *objectResolver) AssignObjects(objs []value.ObjectRef, v value.Value) error {
	r.assigned = objs
	r.with = v
	return nil
}

func defaultFields() map[string]value.Value {
	return map[string]value.Value{
		"a": value.NewInt(1),
		"b": value.NewFloat(2.5),
		"s": value.NewString("Hello"),
		"t": value.NewBool(true),
	}
}

func parseExpr(t *testing.T, r *testResolver, src string) *ast.Node {
	t.Helper()
	tree, err := parser.ParseExpression(src, r.Functions.WhereNames())
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	return tree
}

func parseMacro(t *testing.T, r *testResolver, src string) *ast.Macro {
	t.Helper()
	p := parser.New(src, parser.WithFunctionNames(r.Functions.WhereNames(), r.Functions.DoNames()))
	m, err := p.Parse(true)
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	return m
}

func asMacroError(t *testing.T, err error) *merrors.MacroError {
	t.Helper()
	var me *merrors.MacroError
	if !errors.As(err, &me) {
		t.Fatalf("error %v is %T, want *MacroError", err, err)
	}
	return me
}

func TestPostOrderEvaluation(t *testing.T) {
	r := newTestResolver(defaultFields())
	for _, name := range []string{"f", "g", "h"} {
		r.register(name, ClauseWhere, Contract{})
	}
	tree := parseExpr(t, r, "f(g(1), h(2, a))")

	ex := New(r)
	if err := ex.EvaluateTree(tree, r, true, false); err != nil {
		t.Fatal(err)
	}
	if want := []string{"g", "h", "f"}; !reflect.DeepEqual(r.calls, want) {
		t.Errorf("visit order = %v, want %v", r.calls, want)
	}
	if got := r.parents["a"]; got != "FunctionCall:h" {
		t.Errorf("parent of a = %q", got)
	}
	if got := ex.Result(); !got.Equal(value.NewInt(2)) {
		t.Errorf("result = %v", got)
	}
}

func TestUnresolvedIdentifierInWhere(t *testing.T) {
	tests := []struct {
		input   string
		notSet  bool
		boolean bool
	}{
		{"unknown > 2", true, false},
		{"unknown > 2 and a = 1", true, false},
		{"unknown > 2 and a = 5", false, false},
		{"unknown > 2 or a = 1", false, true},
		{"not unknown", true, false},
		{"unknown.field like \"x*\"", true, false},
	}
	for i, tt := range tests {
		r := newTestResolver(defaultFields())
		tree := parseExpr(t, r, tt.input)
		ex := New(r)
		if err := ex.EvaluateTree(tree, r, true, false); err != nil {
			t.Fatalf("tests[%d] - %q: unexpected error %v", i, tt.input, err)
		}
		if ex.IsNotSetType() != tt.notSet {
			t.Errorf("tests[%d] - %q: IsNotSetType() = %v", i, tt.input, ex.IsNotSetType())
		}
		if ex.GetBoolValue() != tt.boolean {
			t.Errorf("tests[%d] - %q: GetBoolValue() = %v", i, tt.input, ex.GetBoolValue())
		}
		if !tt.notSet && !ex.IsBoolType() {
			t.Errorf("tests[%d] - %q: expected a boolean result", i, tt.input)
		}
	}
}

func TestAssignmentWithArithmetic(t *testing.T) {
	r := newTestResolver(nil)
	m := parseMacro(t, r, `macro m vars x = 1, y = "s" do x = x + 1 done`)
	r.Seed(m)

	ex := New(r)
	if err := ex.ExecuteStatements(m.Do, r, false); err != nil {
		t.Fatal(err)
	}
	x, ok := r.Lookup("x")
	if !ok || !x.Equal(value.NewInt(2)) {
		t.Errorf("x = %v (%s), want int 2", x, x.Kind())
	}
	y, _ := r.Lookup("Y")
	if !y.Equal(value.NewString("s")) {
		t.Errorf("y = %v", y)
	}

	if err := ex.ExecuteStatements(m.Do, r, false); err != nil {
		t.Fatal(err)
	}
	if x, _ = r.Lookup("x"); !x.Equal(value.NewInt(3)) {
		t.Errorf("after second run x = %v", x)
	}
}

func TestContractViolation(t *testing.T) {
	tests := []struct {
		input string
		code  string
		msg   string
	}{
		{`macro m do SetProperty("a", 1) done`, "EXEC-0009", "argument 2 of 'SetProperty' must be string, got int"},
		{`macro m do SetProperty("a") done`, "EXEC-0008", "'SetProperty' expects 2 argument(s), got 1"},
		{`macro m do x = 1.5; SetProperty(x, "b") done`, "EXEC-0009", "argument 1 of 'SetProperty' must be string, got float"},
	}
	for i, tt := range tests {
		r := newTestResolver(nil)
		r.register("SetProperty", ClauseDo, Fixed(value.String, value.String))
		m := parseMacro(t, r, tt.input)

		err := New(r).ExecuteStatements(m.Do, r, false)
		if err == nil {
			t.Fatalf("tests[%d] - expected an error", i)
		}
		me := asMacroError(t, err)
		if me.Code != tt.code || me.Message != tt.msg {
			t.Errorf("tests[%d] - got %s %q", i, me.Code, me.Message)
		}
		if me.Class != merrors.ClassContract || !me.IsExecError() {
			t.Errorf("tests[%d] - class = %s", i, me.Class)
		}
		if me.Line != 1 || me.Column == 0 {
			t.Errorf("tests[%d] - error not located: %d:%d", i, me.Line, me.Column)
		}
		if len(r.calls) != 0 {
			t.Errorf("tests[%d] - function ran despite the violation", i)
		}
	}
}

func TestContractNotSetArgument(t *testing.T) {
	r := newTestResolver(nil)
	r.register("SetProperty", ClauseDo, Fixed(value.String, value.String))
	m := parseMacro(t, r, `macro m do SetProperty("a", missing) done`)

	if err := New(r).ExecuteStatements(m.Do, r, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r.calls) != 0 {
		t.Errorf("function ran with a NotSet argument")
	}
	if !m.Do[0].Value.IsNotSet() {
		t.Errorf("call value = %v", m.Do[0].Value)
	}
}

func TestOperators(t *testing.T) {
	tests := []struct {
		input    string
		expected value.Value
	}{
		{"a + 1", value.NewInt(2)},
		{"a + b", value.NewFloat(3.5)},
		{"7 / 2", value.NewInt(3)},
		{"7.0 / 2", value.NewFloat(3.5)},
		{"2 * 3 - 10", value.NewInt(-4)},
		{`s + " world"`, value.NewString("Hello world")},
		{"-a * 3", value.NewInt(-3)},
		{"-b", value.NewFloat(-2.5)},
		{`s = "hello"`, value.NewBool(true)},
		{`s <> "HELLO"`, value.NewBool(false)},
		{`s like "h*l?"`, value.NewBool(true)},
		{`s like "*x*"`, value.NewBool(false)},
		{"a in (3, 1)", value.NewBool(true)},
		{`a in ("1", 2)`, value.NewBool(false)},
		{`s in ("HELLO")`, value.NewBool(true)},
		{"a not in (1)", value.NewBool(false)},
		{"a between 0 and 1", value.NewBool(true)},
		{"b between 3 and 4", value.NewBool(false)},
		{`s between "a" and "z"`, value.NewBool(true)},
		{"a < b", value.NewBool(true)},
		{"a >= 1.0", value.NewBool(true)},
		{"t and not false", value.NewBool(true)},
		{"t xor true", value.NewBool(false)},
		{"true > false", value.NewBool(true)},
		{"missing = 1", value.Value{}},
		{"missing = 1 or t", value.NewBool(true)},
		{"missing = 1 and false", value.NewBool(false)},
		{"missing + 1", value.Value{}},
		{"-missing", value.Value{}},
		{"missing xor t", value.Value{}},
		{"missing between 1 and 2", value.Value{}},
		{"missing in (1)", value.Value{}},
	}
	for i, tt := range tests {
		r := newTestResolver(defaultFields())
		tree := parseExpr(t, r, tt.input)
		ex := New(r)
		if err := ex.EvaluateTree(tree, r, false, false); err != nil {
			t.Errorf("tests[%d] - %q: %v", i, tt.input, err)
			continue
		}
		if got := ex.Result(); !got.Equal(tt.expected) {
			t.Errorf("tests[%d] - %q = %v, want %v", i, tt.input, got, tt.expected)
		}
	}
}

func TestCaseSensitiveComparison(t *testing.T) {
	r := newTestResolver(defaultFields())
	tree := parseExpr(t, r, `s = "hello" or s like "HEL*"`)
	ex := New(r)

	if err := ex.EvaluateTree(tree, r, true, true); err != nil {
		t.Fatal(err)
	}
	if ex.GetBoolValue() {
		t.Errorf("case-sensitive comparison matched")
	}
	if err := ex.EvaluateTree(tree, r, true, false); err != nil {
		t.Fatal(err)
	}
	if !ex.GetBoolValue() {
		t.Errorf("case-insensitive comparison did not match")
	}
}

func TestOperatorErrors(t *testing.T) {
	tests := []struct {
		input string
		code  string
	}{
		{"1 / 0", "EXEC-0004"},
		{"s + 1", "EXEC-0002"},
		{"s - s", "EXEC-0002"},
		{"a and t", "EXEC-0002"},
		{"s < 1", "EXEC-0002"},
		{"-s", "EXEC-0002"},
		{"s like 1", "EXEC-0002"},
		{"not a", "EXEC-0002"},
		{"a between 1 and \"x\"", "EXEC-0002"},
	}
	for i, tt := range tests {
		r := newTestResolver(defaultFields())
		tree := parseExpr(t, r, tt.input)
		err := New(r).EvaluateTree(tree, r, true, false)
		if err == nil {
			t.Errorf("tests[%d] - %q: expected an error", i, tt.input)
			continue
		}
		me := asMacroError(t, err)
		if me.Code != tt.code {
			t.Errorf("tests[%d] - %q: code %s (%s), want %s", i, tt.input, me.Code, me.Message, tt.code)
		}
		if !strings.HasPrefix(me.Error(), "[Execution error] Line 1, Pos ") {
			t.Errorf("tests[%d] - %q: rendered %q", i, tt.input, me.Error())
		}
	}
}

func TestShortCircuitOnlyInWhere(t *testing.T) {
	r := newTestResolver(defaultFields())
	r.register("f", ClauseWhere, Contract{})
	tree := parseExpr(t, r, "a = 2 and f() = 0")

	ex := New(r)
	if err := ex.EvaluateTree(tree, r, true, false); err != nil {
		t.Fatal(err)
	}
	if len(r.calls) != 0 {
		t.Errorf("WHERE evaluation called f after a false operand")
	}
	if ex.GetBoolValue() {
		t.Errorf("result = true")
	}

	if err := ex.EvaluateTree(tree, r, false, false); err != nil {
		t.Fatal(err)
	}
	if len(r.calls) != 1 {
		t.Errorf("eager evaluation called f %d times", len(r.calls))
	}
	if !ex.IsBoolType() || ex.GetBoolValue() {
		t.Errorf("eager result = %v", ex.Result())
	}
}

func TestLogicalResultIgnoresOrder(t *testing.T) {
	exprs := [][]string{
		{"missing = 1 and a = 5", "a = 5 and missing = 1"},
		{"missing = 1 or a = 1", "a = 1 or missing = 1"},
		{"missing = 1 or a = 5", "a = 5 or missing = 1"},
	}
	for i, pair := range exprs {
		var results [2]value.Value
		for j, src := range pair {
			r := newTestResolver(defaultFields())
			tree, err := parser.ParseExpression(src, nil, parser.WithTreeSort(false))
			if err != nil {
				t.Fatal(err)
			}
			for _, where := range []bool{true, false} {
				ex := New(r)
				if err := ex.EvaluateTree(tree, r, where, false); err != nil {
					t.Fatal(err)
				}
				if where {
					results[j] = ex.Result()
				} else if !ex.Result().Equal(results[j]) {
					t.Errorf("tests[%d] - %q: lazy %v, eager %v", i, src, results[j], ex.Result())
				}
			}
		}
		if !results[0].Equal(results[1]) {
			t.Errorf("tests[%d] - %v vs %v", i, results[0], results[1])
		}
	}
}

func TestObjectFilter(t *testing.T) {
	objs := []value.ObjectRef{
		{Parent: map[string]string{"kind": "gene"}, Field: "g1"},
		{Parent: map[string]string{"kind": "cds"}, Field: "c1"},
		{Parent: map[string]string{"kind": "GENE"}, Field: "g2"},
	}
	base := newTestResolver(nil)
	r := &objectResolver{testResolver: base}
	base.Host = r
	base.Functions.Register("Objects", Function{
		Fn: func(c *Call) error {
			c.Return(value.NewObjectList(objs))
			return nil
		},
		Clause: ClauseDo,
	})

	m := parseMacro(t, base, `macro m do
  o = Objects() where o.kind = "gene";
  o = "renamed"
done`)

	if err := New(r).ExecuteStatements(m.Do, r, false); err != nil {
		t.Fatal(err)
	}
	if len(r.assigned) != 2 || r.assigned[0].Field != "g1" || r.assigned[1].Field != "g2" {
		t.Fatalf("assigned to %v", r.assigned)
	}
	if !r.with.Equal(value.NewString("renamed")) {
		t.Errorf("assigned value = %v", r.with)
	}
	if _, ok := r.GetTmpRTVarObject("o"); ok {
		t.Errorf("temporary binding leaked")
	}
}

func TestObjectAssignWithoutAssigner(t *testing.T) {
	r := newTestResolver(nil)
	r.Functions.Register("Objects", Function{
		Fn: func(c *Call) error {
			c.Return(value.NewObjectList([]value.ObjectRef{{Field: "x"}}))
			return nil
		},
		Clause: ClauseDo,
	})
	m := parseMacro(t, r, `macro m do o = Objects(); o = 1 done`)

	err := New(r).ExecuteStatements(m.Do, r, false)
	if me := asMacroError(t, err); me.Code != "EXEC-0006" {
		t.Errorf("code = %s", me.Code)
	}
}

func TestStatementFilters(t *testing.T) {
	tests := []struct {
		input string
		calls int
		x     value.Value
	}{
		{`macro m vars x = 0 do SetProperty("a") where a = 2; x = 5 where a = 2 done`, 0, value.NewInt(0)},
		{`macro m vars x = 0 do SetProperty("a") where a = 1; x = 5 where a = 1 done`, 1, value.NewInt(5)},
		{`macro m vars x = 0 do SetProperty("a") where missing = 1; x = 5 where missing done`, 0, value.NewInt(0)},
	}
	for i, tt := range tests {
		r := newTestResolver(defaultFields())
		r.register("SetProperty", ClauseDo, Contract{})
		m := parseMacro(t, r, tt.input)
		r.Seed(m)

		if err := New(r).ExecuteStatements(m.Do, r, false); err != nil {
			t.Fatalf("tests[%d] - %v", i, err)
		}
		if len(r.calls) != tt.calls {
			t.Errorf("tests[%d] - %d calls, want %d", i, len(r.calls), tt.calls)
		}
		if x, _ := r.Lookup("x"); !x.Equal(tt.x) {
			t.Errorf("tests[%d] - x = %v, want %v", i, x, tt.x)
		}
	}
}

func TestHostErrorIsLocated(t *testing.T) {
	r := newTestResolver(nil)
	r.Functions.Register("Fail", Function{
		Fn:     func(c *Call) error { return merrors.New("EXEC-0010", map[string]any{"Name": "thing"}) },
		Clause: ClauseDo,
	})
	m := parseMacro(t, r, "macro m do\n  Fail()\ndone")

	err := New(r).ExecuteStatements(m.Do, r, false)
	me := asMacroError(t, err)
	if me.Line != 2 || me.Column != 3 {
		t.Errorf("location = %d:%d", me.Line, me.Column)
	}

	plain := errors.New("boom")
	r.Functions.Register("Fail", Function{Fn: func(c *Call) error { return plain }, Clause: ClauseDo})
	if err := New(r).ExecuteStatements(m.Do, r, false); !errors.Is(err, plain) {
		t.Errorf("plain host error not passed through: %v", err)
	}
}

func TestUnknownFunctionAtRuntime(t *testing.T) {
	r := newTestResolver(nil)
	n := &ast.Node{Kind: ast.FunctionCall, Name: "Nope", Loc: lexer.Location{Line: 3, Column: 4, Pos: 20}}
	err := New(r).EvaluateTree(n, r, false, false)
	me := asMacroError(t, err)
	if me.Code != "EXEC-0007" || me.Class != merrors.ClassResolve || me.Line != 3 {
		t.Errorf("got %s %s at line %d", me.Code, me.Class, me.Line)
	}
}

func TestReferenceCycle(t *testing.T) {
	r := newTestResolver(nil)
	slot := r.GetOrCreateRTVar("x")
	slot.SetRef(slot)

	tree := ast.NewNode(ast.Add, lexer.Location{Line: 1, Column: 1},
		&ast.Node{Kind: ast.RTVar, Name: "x"},
		ast.NewConst(value.NewInt(1), lexer.Location{}),
	)
	err := New(r).EvaluateTree(tree, r, false, false)
	if me := asMacroError(t, err); me.Code != "EXEC-0005" {
		t.Errorf("code = %s", me.Code)
	}
}

func TestRegistry(t *testing.T) {
	reg := DefaultRegistry()
	if got, want := reg.Kinds(), ast.Kinds(); !reflect.DeepEqual(got, want) {
		t.Errorf("default registry covers %v, want %v", got, want)
	}

	r := newTestResolver(nil)
	ex := New(r, WithRegistry(NewRegistry()))
	err := ex.EvaluateTree(ast.NewConst(value.NewInt(1), lexer.Location{Line: 1, Column: 1}), r, false, false)
	if me := asMacroError(t, err); me.Code != "EXEC-0001" || !strings.Contains(me.Message, "Const") {
		t.Errorf("unregistered kind: %v", err)
	}

	ex = New(r)
	ex.Registry().Register(ast.Const, EvaluatorFunc(func(ex *Executor, n *ast.Node) error {
		n.Value.SetString("overridden")
		return nil
	}))
	if err := ex.EvaluateTree(ast.NewConst(value.NewInt(1), lexer.Location{}), r, false, false); err != nil {
		t.Fatal(err)
	}
	if !ex.Result().Equal(value.NewString("overridden")) {
		t.Errorf("override not used: %v", ex.Result())
	}
	fresh := New(r)
	if err := fresh.EvaluateTree(ast.NewConst(value.NewInt(1), lexer.Location{}), r, false, false); err != nil {
		t.Fatal(err)
	}
	if !fresh.Result().Equal(value.NewInt(1)) {
		t.Errorf("override leaked into another executor: %v", fresh.Result())
	}
}

func TestEvaluateNilTree(t *testing.T) {
	r := newTestResolver(nil)
	ex := New(r)
	if err := ex.EvaluateTree(nil, r, true, false); err != nil {
		t.Fatal(err)
	}
	if !ex.IsNotSetType() || ex.GetBoolValue() {
		t.Errorf("empty WHERE should be NotSet")
	}
}

func TestWildcardMatch(t *testing.T) {
	tests := []struct {
		s, mask string
		want    bool
	}{
		{"", "", true},
		{"", "*", true},
		{"abc", "abc", true},
		{"abc", "a?c", true},
		{"abc", "a*", true},
		{"abc", "*c", true},
		{"abc", "*b*", true},
		{"abc", "ab", false},
		{"abc", "abcd", false},
		{"aXbXc", "a*b*c", true},
		{"aaab", "*aab", true},
		{"héllo", "h?llo", true},
		{"abc", "?", false},
	}
	for i, tt := range tests {
		if got := wildcardMatch(tt.s, tt.mask); got != tt.want {
			t.Errorf("tests[%d] - wildcardMatch(%q, %q) = %v", i, tt.s, tt.mask, got)
		}
	}
}
