package lexer

import (
	"strings"
	"testing"
)

func TestNext(t *testing.T) {
	input := `MACRO fix_names "Fix names"
vars x = 1, y = "s", z = 2.5, ok = true, who = %Author%
FOR EACH Seq-feat
WHERE a >= 2 AND b <> 5 or c != 1 == d <= e
DO
  x = x + 1; -- increment
  SetProperty("x", -3 * 4 / 2)
DONE`

	tests := []struct {
		expectedType    TokenType
		expectedLiteral string
	}{
		{MACRO, "MACRO"},
		{IDENT, "fix_names"},
		{STRING, `"Fix names"`},
		{VARS, "vars"},
		{IDENT, "x"},
		{ASSIGN, "="},
		{INT, "1"},
		{COMMA, ","},
		{IDENT, "y"},
		{ASSIGN, "="},
		{STRING, `"s"`},
		{COMMA, ","},
		{IDENT, "z"},
		{ASSIGN, "="},
		{FLOAT, "2.5"},
		{COMMA, ","},
		{IDENT, "ok"},
		{ASSIGN, "="},
		{BOOL, "true"},
		{COMMA, ","},
		{IDENT, "who"},
		{ASSIGN, "="},
		{ASK, "%Author%"},
		{FOR, "FOR"},
		{EACH, "EACH"},
		{IDENT, "Seq"},
		{MINUS, "-"},
		{IDENT, "feat"},
		{WHERE, "WHERE"},
		{IDENT, "a"},
		{GTE, ">="},
		{INT, "2"},
		{AND, "AND"},
		{IDENT, "b"},
		{NOT_EQ, "<>"},
		{INT, "5"},
		{OR, "or"},
		{IDENT, "c"},
		{NOT_EQ, "!="},
		{INT, "1"},
		{EQ, "=="},
		{IDENT, "d"},
		{LTE, "<="},
		{IDENT, "e"},
		{DO, "DO"},
		{IDENT, "x"},
		{ASSIGN, "="},
		{IDENT, "x"},
		{PLUS, "+"},
		{INT, "1"},
		{SEMICOLON, ";"},
		{IDENT, "SetProperty"},
		{LPAREN, "("},
		{STRING, `"x"`},
		{COMMA, ","},
		{MINUS, "-"},
		{INT, "3"},
		{ASTERISK, "*"},
		{INT, "4"},
		{SLASH, "/"},
		{INT, "2"},
		{RPAREN, ")"},
		{DONE, "DONE"},
		{EOF, ""},
	}

	s := New(input)
	for i, tt := range tests {
		tok := s.Next(false)
		if tok.Type != tt.expectedType {
			t.Fatalf("tests[%d] - tokentype wrong. expected=%q, got=%q (%q)",
				i, tt.expectedType, tok.Type, tok.Literal)
		}
		if tok.Literal != tt.expectedLiteral {
			t.Fatalf("tests[%d] - literal wrong. expected=%q, got=%q",
				i, tt.expectedLiteral, tok.Literal)
		}
	}
}

// Every token's Start/End span reproduces its literal from the source.
func TestTokenSpansRoundTrip(t *testing.T) {
	inputs := []string{
		`1 2.5 "abc" %ask% ( ) { } [ ] , ; . = == <> != < <= > >= + - * /`,
		"x\n  =\t\"multi\nline\"\n\n  12e3 true FALSE",
		`a.b.c(1,"two",3.0)`,
	}
	for _, input := range inputs {
		s := New(input)
		for {
			tok := s.Next(false)
			if tok.Type == ILLEGAL {
				t.Fatalf("unexpected ILLEGAL in %q: %v", input, tok.Err)
			}
			if got := input[tok.Start.Pos:tok.End.Pos]; got != tok.Literal {
				t.Errorf("span [%d:%d] = %q, literal %q", tok.Start.Pos, tok.End.Pos, got, tok.Literal)
			}
			if tok.Type == EOF {
				break
			}
		}
	}
}

func TestPayloads(t *testing.T) {
	s := New(`42 3.25 1e2 "he said \"hi\"" %Name% TRUE false`)

	tok := s.Next(false)
	if tok.Type != INT || tok.Int != 42 {
		t.Errorf("int payload = %v %d", tok.Type, tok.Int)
	}
	tok = s.Next(false)
	if tok.Type != FLOAT || tok.Float != 3.25 {
		t.Errorf("float payload = %v %g", tok.Type, tok.Float)
	}
	tok = s.Next(false)
	if tok.Type != FLOAT || tok.Float != 100 {
		t.Errorf("exponent payload = %v %g", tok.Type, tok.Float)
	}
	tok = s.Next(false)
	if tok.Type != STRING || tok.Str != `he said "hi"` {
		t.Errorf("string payload = %v %q", tok.Type, tok.Str)
	}
	tok = s.Next(false)
	if tok.Type != ASK || tok.Str != "Name" {
		t.Errorf("ask payload = %v %q", tok.Type, tok.Str)
	}
	tok = s.Next(false)
	if tok.Type != BOOL || !tok.Bool {
		t.Errorf("TRUE payload = %v %v", tok.Type, tok.Bool)
	}
	tok = s.Next(false)
	if tok.Type != BOOL || tok.Bool {
		t.Errorf("false payload = %v %v", tok.Type, tok.Bool)
	}
}

func TestPositions(t *testing.T) {
	s := New("macro\n  m\n\tdo")
	tests := []struct {
		line, column, pos int
	}{
		{1, 1, 0},
		{2, 3, 8},
		{3, 2, 11},
		{3, 4, 13}, // EOF
	}
	for i, tt := range tests {
		tok := s.Next(false)
		if tok.Start.Line != tt.line || tok.Start.Column != tt.column || tok.Start.Pos != tt.pos {
			t.Errorf("tests[%d] - %s at %d:%d@%d, want %d:%d@%d", i, tok.Type,
				tok.Start.Line, tok.Start.Column, tok.Start.Pos, tt.line, tt.column, tt.pos)
		}
	}
}

func TestComments(t *testing.T) {
	input := "-- #Keywords: fix, names\nmacro -- trailing\ndone"

	s := New(input)
	if tok := s.Next(false); tok.Type != MACRO {
		t.Fatalf("comments not skipped: %v", tok)
	}

	s = New(input)
	tok := s.Next(true)
	if tok.Type != COMMENT || tok.Str != "#Keywords: fix, names" {
		t.Fatalf("comment token = %v %q", tok.Type, tok.Str)
	}
	if tok := s.Next(true); tok.Type != MACRO {
		t.Fatalf("expected MACRO, got %v", tok.Type)
	}
	if tok := s.Next(true); tok.Type != COMMENT || tok.Str != "trailing" {
		t.Fatalf("trailing comment = %v %q", tok.Type, tok.Str)
	}
}

func TestKeywordsAreCaseInsensitive(t *testing.T) {
	for _, word := range []string{"macro", "MACRO", "Macro", "mAcRo"} {
		if got := LookupIdent(word); got != MACRO {
			t.Errorf("LookupIdent(%q) = %v", word, got)
		}
	}
	if got := LookupIdent("Do_P"); got != DO_P {
		t.Errorf("LookupIdent(Do_P) = %v", got)
	}
	if got := LookupIdent("var"); got != VARS {
		t.Errorf("LookupIdent(var) = %v", got)
	}
	if got := LookupIdent("gene"); got != IDENT {
		t.Errorf("LookupIdent(gene) = %v", got)
	}
}

func TestIllegalTokens(t *testing.T) {
	tests := []struct {
		name  string
		input string
		code  string
		line  int
		col   int
	}{
		{"unterminated string", "x = \"abc", "LEX-0002", 1, 5},
		{"unterminated ask", "\n  %who", "LEX-0002", 2, 3},
		{"bad symbol", "a & b", "LEX-0001", 1, 3},
		{"lone bang", "!x", "LEX-0001", 1, 1},
		{"int overflow", "99999999999999999999", "LEX-0004", 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.input)
			var tok Token
			for tok = s.Next(false); tok.Type != ILLEGAL && tok.Type != EOF; tok = s.Next(false) {
			}
			if tok.Type != ILLEGAL {
				t.Fatalf("expected ILLEGAL token")
			}
			if tok.Err == nil || tok.Err.Code != tt.code {
				t.Fatalf("Err = %v, want code %s", tok.Err, tt.code)
			}
			loc := s.ErrorLocation()
			if loc.Line != tt.line || loc.Column != tt.col {
				t.Errorf("ErrorLocation = %d:%d, want %d:%d", loc.Line, loc.Column, tt.line, tt.col)
			}
		})
	}
}

func TestStringLengthLimit(t *testing.T) {
	s := New(`"` + strings.Repeat("a", 10) + `"`)
	s.SetMaxLength(10)
	if tok := s.Next(false); tok.Type != STRING {
		t.Fatalf("string at the limit rejected: %v", tok.Err)
	}

	s = New(`"` + strings.Repeat("a", 11) + `"`)
	s.SetMaxLength(10)
	tok := s.Next(false)
	if tok.Type != ILLEGAL || tok.Err.Code != "LEX-0003" {
		t.Fatalf("oversized string = %v %v", tok.Type, tok.Err)
	}

	s = New(`"` + strings.Repeat("x", MaxLexemeLength+1) + `"`)
	if tok := s.Next(false); tok.Type != ILLEGAL {
		t.Fatalf("default limit not enforced")
	}
}

func TestNextSelector(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		illegal bool
	}{
		{"Seq-feat where", "Seq-feat", false},
		{"  Seqdesc.*.pub do", "Seqdesc.*.pub", false},
		{"*", "*", false},
		{"BioSource_2", "BioSource_2", false},
		{"where x", "", true},
		{"DO", "", true},
		{"\"quoted\"", "", true},
	}
	for _, tt := range tests {
		s := New(tt.input)
		tok := s.NextSelector()
		if tt.illegal {
			if tok.Type != ILLEGAL || tok.Err == nil {
				t.Errorf("NextSelector(%q) = %v, want ILLEGAL", tt.input, tok.Type)
			}
			continue
		}
		if tok.Type != SELECTOR || tok.Str != tt.want {
			t.Errorf("NextSelector(%q) = %v %q, want %q", tt.input, tok.Type, tok.Str, tt.want)
		}
	}
}

func TestNextNamedAnnot(t *testing.T) {
	s := New(" NA000123.1#2 where")
	tok := s.NextNamedAnnot()
	if tok.Type != NAMED_ANNOT || tok.Str != "NA000123.1#2" {
		t.Fatalf("NextNamedAnnot = %v %q", tok.Type, tok.Str)
	}
	if tok := s.Next(false); tok.Type != WHERE {
		t.Fatalf("expected WHERE after annotation, got %v", tok.Type)
	}

	s = New("XY0001")
	if tok := s.NextNamedAnnot(); tok.Type != ILLEGAL || tok.Err.Code != "PARSE-0013" {
		t.Fatalf("missing NA prefix = %v %v", tok.Type, tok.Err)
	}
}

func TestPeekAndState(t *testing.T) {
	s := New("Foo ( 1 )")
	first := s.Next(false)
	peek := s.Peek()
	if peek.Type != LPAREN {
		t.Fatalf("Peek = %v", peek.Type)
	}
	if next := s.Next(false); next.Type != LPAREN || next.Start != peek.Start {
		t.Fatalf("Peek consumed input: %v", next)
	}

	st := s.SaveState()
	s.Next(false)
	s.RestoreState(st)
	if tok := s.Next(false); tok.Type != INT {
		t.Fatalf("RestoreState did not rewind: %v", tok.Type)
	}
	if got := s.Source(first.Start.Pos, first.End.Pos); got != "Foo" {
		t.Errorf("Source = %q", got)
	}
}

func TestTokenRepr(t *testing.T) {
	tests := []struct {
		tok  Token
		want string
	}{
		{Token{Type: EOF}, "end of input"},
		{Token{Type: STRING, Literal: `"a"`, Str: "a"}, `"a"`},
		{Token{Type: ASK, Literal: `%a%`, Str: "a"}, `%a%`},
		{Token{Type: IDENT, Literal: "gene"}, "gene"},
		{Token{Type: RPAREN}, ")"},
	}
	for _, tt := range tests {
		if got := tt.tok.Repr(); got != tt.want {
			t.Errorf("Repr() = %q, want %q", got, tt.want)
		}
	}
}
