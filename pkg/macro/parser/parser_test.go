package parser

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/sambeau/seqmacro/pkg/macro/ast"
	merrors "github.com/sambeau/seqmacro/pkg/macro/errors"
	"github.com/sambeau/seqmacro/pkg/macro/value"
)

var (
	whereFuncs = []string{"CONTAINS", "UPPER", "Sequence_for_accession"}
	doFuncs    = []string{"SetProperty", "SetColor", "Resolve", "RemoveProperty"}
)

func parseOne(t *testing.T, src string) *ast.Macro {
	t.Helper()
	p := New(src, WithFunctionNames(whereFuncs, doFuncs))
	m, err := p.Parse(true)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if m == nil {
		t.Fatalf("no macro parsed")
	}
	return m
}

func parseErr(t *testing.T, src string, opts ...Option) *merrors.MacroError {
	t.Helper()
	p := New(src, append([]Option{WithFunctionNames(whereFuncs, doFuncs)}, opts...)...)
	_, err := p.Parse(true)
	if err == nil {
		t.Fatalf("expected a parse error for %q", src)
	}
	var me *merrors.MacroError
	if !errors.As(err, &me) {
		t.Fatalf("error is %T, want *MacroError", err)
	}
	return me
}

func TestParseFunctionCallOnly(t *testing.T) {
	m := parseOne(t, `macro "t" do SetProperty("x","1") done`)

	if m.Name != "t" {
		t.Errorf("Name = %q", m.Name)
	}
	if m.Where != nil {
		t.Errorf("expected empty WHERE, got %s", m.Where)
	}
	if len(m.Do) != 1 {
		t.Fatalf("expected 1 DO statement, got %d", len(m.Do))
	}
	call := m.Do[0]
	if call.Kind != ast.FunctionCall || call.Name != "SetProperty" {
		t.Fatalf("statement = %s %q", call.Kind, call.Name)
	}
	if len(call.Children) != 2 {
		t.Fatalf("expected 2 arguments, got %d", len(call.Children))
	}
	for i, want := range []string{"x", "1"} {
		arg := call.Children[i]
		if arg.Kind != ast.Const || arg.Literal.Kind() != value.String || arg.Literal.Str() != want {
			t.Errorf("argument %d = %s %v", i, arg.Kind, arg.Literal)
		}
	}
}

func TestParseWhereAnd(t *testing.T) {
	m := parseOne(t, `macro "t" where a > 2 and b < 5 do SetColor("red") done`)

	if m.Where == nil || m.Where.Kind != ast.And {
		t.Fatalf("WHERE root = %v", m.Where)
	}
	if len(m.Where.Children) != 2 {
		t.Fatalf("AND has %d children", len(m.Where.Children))
	}
	if m.Where.Children[0].Kind != ast.Greater || m.Where.Children[1].Kind != ast.Less {
		t.Errorf("children = %s, %s", m.Where.Children[0].Kind, m.Where.Children[1].Kind)
	}
	if m.WhereSource != "a > 2 and b < 5" {
		t.Errorf("WhereSource = %q", m.WhereSource)
	}
	if len(m.Do) != 1 || m.Do[0].Kind != ast.FunctionCall || m.Do[0].Name != "SetColor" {
		t.Errorf("DO = %v", m.Do)
	}
}

func TestParseMissingDone(t *testing.T) {
	src := "macro \"t\"\ndo SetProperty(\"x\",\"1\")"

	err := parseErr(t, src)
	if err.Code != "PARSE-0004" {
		t.Errorf("Code = %s (%s)", err.Code, err.Message)
	}
	if err.Line != 2 || err.Column != 24 {
		t.Errorf("location = %d:%d, want 2:24", err.Line, err.Column)
	}
	want := "[Parsing error] Line 2, Pos 24: function name or 'DONE' expected instead of 'end of input'"
	if err.Error() != want {
		t.Errorf("Error() = %q\nwant      %q", err.Error(), want)
	}

	err = parseErr(t, src, WithErrorReport(merrors.ReportOffset))
	if err.Offset != len(src) {
		t.Errorf("Offset = %d, want %d", err.Offset, len(src))
	}
	if !strings.HasPrefix(err.Error(), "[Parsing error] Pos 34: ") {
		t.Errorf("offset report = %q", err.Error())
	}
}

func TestParseAssignmentWithArithmetic(t *testing.T) {
	m := parseOne(t, `macro m vars x = 1, y = "s" do x = x + 1 done`)

	if len(m.Vars) != 2 {
		t.Fatalf("expected 2 variables, got %d", len(m.Vars))
	}
	if m.Vars[0].Name != "x" || !m.Vars[0].Default.Equal(value.NewInt(1)) {
		t.Errorf("x = %v", m.Vars[0].Default)
	}
	if m.Vars[1].Name != "y" || !m.Vars[1].Default.Equal(value.NewString("s")) {
		t.Errorf("y = %v", m.Vars[1].Default)
	}

	stmt := m.Do[0]
	if stmt.Kind != ast.Assignment {
		t.Fatalf("statement kind = %s", stmt.Kind)
	}
	lhs, rhs := stmt.Children[0], stmt.Children[1]
	if lhs.Kind != ast.RTVar || lhs.Name != "x" {
		t.Errorf("lhs = %s %q", lhs.Kind, lhs.Name)
	}
	if rhs.Kind != ast.Add || rhs.Children[0].Kind != ast.RTVar || rhs.Children[1].Kind != ast.Const {
		t.Errorf("rhs = %s", rhs)
	}
}

func TestParseHeader(t *testing.T) {
	src := `MACRO fix_titles(who, where_from) "Fix publication titles"
-- #Keywords: publication, title ,  , cleanup
-- free text
VARS
  limit = -3
  ratio = 2.5, strict = FALSE
VAR
  author = %Author name%
  color = choice { "red", "green", -1, 0.5, true }
DO
  SetColor(color)
DONE`
	m := parseOne(t, src)

	if m.Name != "fix_titles" || m.Title != "Fix publication titles" {
		t.Errorf("name/title = %q/%q", m.Name, m.Title)
	}
	if !reflect.DeepEqual(m.Params, []string{"who", "where_from"}) {
		t.Errorf("Params = %v", m.Params)
	}
	if !reflect.DeepEqual(m.Keywords, []string{"publication", "title", "cleanup"}) {
		t.Errorf("Keywords = %v", m.Keywords)
	}

	tests := []struct {
		name string
		want value.Value
		ask  bool
	}{
		{"limit", value.NewInt(-3), false},
		{"ratio", value.NewFloat(2.5), false},
		{"strict", value.NewBool(false), false},
		{"author", value.NewString("Author name"), true},
		{"color", value.NewString("red"), false},
	}
	if len(m.Vars) != len(tests) {
		t.Fatalf("parsed %d variables", len(m.Vars))
	}
	for i, tt := range tests {
		v := m.Vars[i]
		if v.Name != tt.name || !v.Default.Equal(tt.want) || v.Ask != tt.ask {
			t.Errorf("vars[%d] = %s %v ask=%v", i, v.Name, v.Default, v.Ask)
		}
	}
	if got := len(m.Var("color").Choices); got != 5 {
		t.Errorf("color has %d choices", got)
	}
	if arg := m.Do[0].Children[0]; arg.Kind != ast.RTVar {
		t.Errorf("declared variable used as argument parsed as %s", arg.Kind)
	}
	if !strings.HasPrefix(m.Source, "MACRO fix_titles") || !strings.HasSuffix(m.Source, "DONE") {
		t.Errorf("Source = %q", m.Source)
	}
}

func TestParseForEach(t *testing.T) {
	src := `macro m for each Seq-feat.data from NA000123.1 range [2, 10] choice {"a", "b"} threads 4
where qual.name = "x" do_p(8) SetProperty("a", "b") done`
	m := parseOne(t, src)

	if m.ForEach.Selector != "Seq-feat.data" {
		t.Errorf("Selector = %q", m.ForEach.Selector)
	}
	if m.ForEach.NamedAnnot != "NA000123.1" {
		t.Errorf("NamedAnnot = %q", m.ForEach.NamedAnnot)
	}
	if m.ForEach.Range == nil || *m.ForEach.Range != (ast.Range{Start: 2, Stop: 10}) {
		t.Errorf("Range = %v", m.ForEach.Range)
	}
	if len(m.ForEach.Choice) != 2 {
		t.Errorf("Choice = %v", m.ForEach.Choice)
	}
	if !m.Parallel || m.Threads != 8 {
		t.Errorf("threads = %d parallel=%v", m.Threads, m.Parallel)
	}
	if m.Where.Kind != ast.Eq || m.Where.Children[0].Kind != ast.Identifier || m.Where.Children[0].Name != "qual.name" {
		t.Errorf("WHERE = %s", m.Where)
	}
}

func TestParseStatementFilter(t *testing.T) {
	src := `macro m do
  objs = Resolve("org.mod") where objs.subtype = "strain";
  SetProperty("a", objs) where CONTAINS(a, "b");
  RemoveProperty("c");
done`
	m := parseOne(t, src)

	if len(m.Do) != 3 {
		t.Fatalf("expected 3 statements, got %d", len(m.Do))
	}
	assign := m.Do[0]
	if assign.Kind != ast.Assignment || assign.Filter == nil {
		t.Fatalf("first statement = %s filter=%v", assign.Kind, assign.Filter)
	}
	if assign.Filter.Children[0].Name != "objs.subtype" {
		t.Errorf("filter = %s", assign.Filter)
	}
	if arg := m.Do[1].Children[1]; arg.Kind != ast.RTVar {
		t.Errorf("assigned name used later parsed as %s", arg.Kind)
	}
	if m.Do[1].Filter == nil || m.Do[1].Filter.Kind != ast.FunctionCall {
		t.Errorf("call filter = %v", m.Do[1].Filter)
	}
	if m.Do[2].Filter != nil {
		t.Errorf("unexpected filter on third statement")
	}
}

func TestExpressionPrecedence(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{`a = 1 or b = 2 and c = 3`, `((a = 1) or ((b = 2) and (c = 3)))`},
		{`not a = 1`, `(not (a = 1))`},
		{`not a and b`, `((not a) and b)`},
		{`a + b * 2 > 3 - -1`, `((a + (b * 2)) > (3 - -1))`},
		{`(a + b) * 2`, `((a + b) * 2)`},
		{`-a * 2`, `((- a) * 2)`},
		{`+4`, `4`},
		{`x in (1, 2, "z")`, `(x in (1, 2, "z"))`},
		{`x not in (1)`, `(not (x in (1)))`},
		{`x between 1 and 5 and y`, `((x between 1 and 5) and y)`},
		{`a xor b or c`, `((a xor b) or c)`},
		{`q.name like "abc*"`, `(q.name like "abc*")`},
		{`a == 1 and b != 2 and c <> 3`, `((a = 1) and (b <> 2) and (c <> 3))`},
		{`contains(a, "x") and -b`, `(CONTAINS(a, "x") and (- b))`},
		{`upper(contains(a, 1.5))`, `UPPER(CONTAINS(a, 1.5))`},
		{`true or false`, `(true or false)`},
	}
	for _, tt := range tests {
		expr, err := ParseExpression(tt.input, whereFuncs)
		if err != nil {
			t.Errorf("%q: %v", tt.input, err)
			continue
		}
		if got := expr.String(); got != tt.expected {
			t.Errorf("%q\n got  %s\n want %s", tt.input, got, tt.expected)
		}
	}
}

func TestSortTree(t *testing.T) {
	src := `Sequence_for_accession(a) = 1 and x in (1) and b = 2 and c > 1`

	expr, err := ParseExpression(src, whereFuncs)
	if err != nil {
		t.Fatal(err)
	}
	want := `((b = 2) and (x in (1)) and (c > 1) and (Sequence_for_accession(a) = 1))`
	if got := expr.String(); got != want {
		t.Errorf("sorted\n got  %s\n want %s", got, want)
	}

	expr, err = ParseExpression(src, whereFuncs, WithTreeSort(false))
	if err != nil {
		t.Fatal(err)
	}
	want = `((Sequence_for_accession(a) = 1) and (x in (1)) and (b = 2) and (c > 1))`
	if got := expr.String(); got != want {
		t.Errorf("unsorted\n got  %s\n want %s", got, want)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		code  string
		line  int
		col   int
	}{
		{"missing macro keyword", `macr m do done`, "PARSE-0001", 1, 1},
		{"missing name", `macro 12 do done`, "PARSE-0010", 1, 7},
		{"unknown do function", `macro m do SetColour("red") done`, "PARSE-0003", 1, 12},
		{"where function in do statement", `macro m do CONTAINS(a) done`, "PARSE-0003", 1, 12},
		{"unknown where function", `macro m where Foo(a) do done`, "PARSE-0003", 1, 15},
		{"statement not a name", `macro m do "x" done`, "PARSE-0004", 1, 12},
		{"missing assign", `macro m do x 1 done`, "PARSE-0002", 1, 14},
		{"zero threads", `macro m do_p(0) done`, "PARSE-0005", 1, 14},
		{"negative threads", `macro m threads -2 do done`, "PARSE-0005", 1, 17},
		{"range not closed", `macro m range [1, 2 do done`, "PARSE-0006", 1, 9},
		{"range float", `macro m range [1.5, 2] do done`, "PARSE-0006", 1, 9},
		{"range negative", `macro m range [-1, 2] do done`, "PARSE-0017", 1, 9},
		{"range reversed", `macro m range [5, 2] do done`, "PARSE-0018", 1, 9},
		{"duplicate var", "macro m vars a = 1, A = 2 do done", "PARSE-0007", 1, 21},
		{"param as var", "macro m(a) vars a = 1 do done", "PARSE-0016", 1, 17},
		{"missing var value", "macro m vars a = b do done", "PARSE-0011", 1, 18},
		{"empty choice", "macro m vars a = choice {} do done", "PARSE-0014", 1, 26},
		{"trailing tokens", `macro m do done extra`, "PARSE-0008", 1, 17},
		{"missing selector", `macro m for each where a do done`, "PARSE-0012", 1, 18},
		{"missing named annot", `macro m from XY1 do done`, "PARSE-0013", 1, 14},
		{"where without expression", `macro m where do done`, "PARSE-0009", 1, 15},
		{"unquoted dotted argument", `macro m do SetProperty("a".b) done`, "PARSE-0015", 1, 27},
		{"unclosed string", `macro m do SetProperty("a) done`, "LEX-0002", 1, 24},
		{"illegal symbol", `macro m where a & b do done`, "LEX-0001", 1, 17},
		{"missing do", `macro m where a = 1 done`, "PARSE-0002", 1, 21},
		{"missing statement separator", `macro m do SetColor("a") SetColor("b") done`, "PARSE-0002", 1, 26},
		{"unknown function in argument", `macro m do SetProperty("a", Foo(b)) done`, "PARSE-0003", 1, 29},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := parseErr(t, tt.input)
			if err.Code != tt.code {
				t.Fatalf("Code = %s, want %s (%s)", err.Code, tt.code, err.Message)
			}
			if err.Line != tt.line || err.Column != tt.col {
				t.Errorf("location = %d:%d, want %d:%d", err.Line, err.Column, tt.line, tt.col)
			}
			if !err.IsParseError() {
				t.Errorf("class = %s", err.Class)
			}
		})
	}
}

func TestUnknownFunctionHint(t *testing.T) {
	err := parseErr(t, `macro m do SetColour("red") done`)
	if len(err.Hints) != 1 || err.Hints[0] != "Did you mean `SetColor`?" {
		t.Errorf("Hints = %v", err.Hints)
	}
}

func TestParseWithoutTables(t *testing.T) {
	p := New(`macro m do SetProperty("x") done`)
	_, err := p.Parse(true)
	var me *merrors.MacroError
	if !errors.As(err, &me) || me.Code != "PARSE-0003" {
		t.Fatalf("err = %v", err)
	}
}

func TestParseScript(t *testing.T) {
	src := `-- leading comment
macro first do SetColor("red") done
macro second where a = 1 do done

`
	p := New(src, WithFunctionNames(whereFuncs, doFuncs))
	script, err := p.ParseScript()
	if err != nil {
		t.Fatal(err)
	}
	if got := script.Names(); !reflect.DeepEqual(got, []string{"first", "second"}) {
		t.Fatalf("Names() = %v", got)
	}
	if script.Macros[1].Source != "macro second where a = 1 do done" {
		t.Errorf("Source = %q", script.Macros[1].Source)
	}

	m, err := p.Parse(false)
	if m != nil || err != nil {
		t.Errorf("Parse at end of input = %v, %v", m, err)
	}
}

func TestParseSequential(t *testing.T) {
	p := New(`macro a do done macro b do done`, WithFunctionNames(whereFuncs, doFuncs))
	first, err := p.Parse(false)
	if err != nil || first.Name != "a" {
		t.Fatalf("first = %v, %v", first, err)
	}
	second, err := p.Parse(false)
	if err != nil || second.Name != "b" {
		t.Fatalf("second = %v, %v", second, err)
	}
}

func TestParseErrorIsSticky(t *testing.T) {
	p := New(`macro 1`, WithFunctionNames(whereFuncs, doFuncs))
	_, err1 := p.Parse(false)
	_, err2 := p.Parse(false)
	if err1 == nil || err1 != err2 {
		t.Errorf("errors = %v / %v", err1, err2)
	}
	p.SetErrorReport(merrors.ReportOffset)
	if !strings.Contains(p.Err().Error(), "Pos 7:") {
		t.Errorf("report mode not applied: %q", p.Err().Error())
	}
}

func TestIdentifierClassification(t *testing.T) {
	src := `macro m(p) vars v = 1 do
  n = 2;
  SetProperty(p, v, n, other, rec.field)
done`
	m := parseOne(t, src)
	args := m.Do[1].Children
	want := []ast.Kind{ast.RTVar, ast.RTVar, ast.RTVar, ast.Identifier, ast.Identifier}
	for i, k := range want {
		if args[i].Kind != k {
			t.Errorf("argument %d (%s) = %s, want %s", i, args[i].Name, args[i].Kind, k)
		}
	}
}

func TestParseDoCallArguments(t *testing.T) {
	m := parseOne(t, `macro m do SetProperty("hit", CONTAINS(title, "x")); SetColor(Resolve("c")) done`)

	tests := []struct {
		stmt int
		arg  int
		name string
	}{
		{0, 1, "CONTAINS"},
		{1, 0, "Resolve"},
	}
	for i, tt := range tests {
		arg := m.Do[tt.stmt].Children[tt.arg]
		if arg.Kind != ast.FunctionCall || arg.Name != tt.name {
			t.Errorf("tests[%d] - argument = %s %q, want call %q", i, arg.Kind, arg.Name, tt.name)
		}
	}
}

func TestParseStatementSeparators(t *testing.T) {
	tests := []string{
		`macro m do SetColor("a"); SetColor("b") done`,
		`macro m do SetColor("a"); SetColor("b"); done`,
		"macro m do\n  SetColor(\"a\");\n  n = 1\ndone",
	}
	for i, src := range tests {
		p := New(src, WithFunctionNames(whereFuncs, doFuncs))
		m, err := p.Parse(true)
		if err != nil {
			t.Fatalf("tests[%d] - %v", i, err)
		}
		if len(m.Do) != 2 {
			t.Errorf("tests[%d] - %d statements, want 2", i, len(m.Do))
		}
	}
}

func TestIdentifierClassificationCase(t *testing.T) {
	src := `macro m(P) vars V = 1 do
  N = 2;
  SetProperty(p, v, n, P, V, N)
done`
	tests := []struct {
		caseSensitive bool
		want          []ast.Kind
	}{
		{false, []ast.Kind{ast.RTVar, ast.RTVar, ast.RTVar, ast.RTVar, ast.RTVar, ast.RTVar}},
		{true, []ast.Kind{ast.Identifier, ast.Identifier, ast.Identifier, ast.RTVar, ast.RTVar, ast.RTVar}},
	}
	for i, tt := range tests {
		p := New(src, WithFunctionNames(whereFuncs, doFuncs), WithCaseSensitive(tt.caseSensitive))
		m, err := p.Parse(true)
		if err != nil {
			t.Fatalf("tests[%d] - %v", i, err)
		}
		for j, k := range tt.want {
			if arg := m.Do[1].Children[j]; arg.Kind != k {
				t.Errorf("tests[%d] - argument %d (%s) = %s, want %s", i, j, arg.Name, arg.Kind, k)
			}
		}
	}

	p := New("macro m vars a = 1, A = 2 do done", WithFunctionNames(whereFuncs, doFuncs), WithCaseSensitive(true))
	m, err := p.Parse(true)
	if err != nil {
		t.Fatalf("distinct spellings rejected: %v", err)
	}
	if len(m.Vars) != 2 {
		t.Errorf("Vars = %d, want 2", len(m.Vars))
	}
}
