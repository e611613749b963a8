package lexer

import (
	"fmt"
	"sort"
	"strings"

	merrors "github.com/sambeau/seqmacro/pkg/macro/errors"
)

// TokenType represents different types of tokens
type TokenType int

const (
	// Special tokens
	ILLEGAL TokenType = iota
	EOF
	COMMENT // -- to end of line

	// Identifiers and literals
	IDENT       // gene, qual.name, SetProperty
	INT         // 42
	FLOAT       // 3.14, 1e-5
	STRING      // "text"
	ASK         // %prompt%
	BOOL        // true, false
	SELECTOR    // Seq-feat, Seqdesc.*, after FOR EACH
	NAMED_ANNOT // NA000123.1, after FROM

	// Operators
	ASSIGN   // =
	EQ       // ==
	NOT_EQ   // <> or !=
	LT       // <
	LTE      // <=
	GT       // >
	GTE      // >=
	PLUS     // +
	MINUS    // -
	ASTERISK // *
	SLASH    // /

	// Delimiters
	COMMA     // ,
	SEMICOLON // ;
	DOT       // .
	LPAREN    // (
	RPAREN    // )
	LBRACE    // {
	RBRACE    // }
	LBRACKET  // [
	RBRACKET  // ]

	// Keywords
	MACRO
	VARS // var, vars
	FOR
	EACH
	FROM
	CHOICE
	RANGE
	THREADS
	WHERE
	DO
	DO_P
	DONE
	AND
	OR
	XOR
	NOT
	LIKE
	IN
	BETWEEN
)

var tokenNames = map[TokenType]string{
	ILLEGAL:     "ILLEGAL",
	EOF:         "EOF",
	COMMENT:     "COMMENT",
	IDENT:       "IDENT",
	INT:         "INT",
	FLOAT:       "FLOAT",
	STRING:      "STRING",
	ASK:         "ASK",
	BOOL:        "BOOL",
	SELECTOR:    "SELECTOR",
	NAMED_ANNOT: "NAMED_ANNOT",
	ASSIGN:      "=",
	EQ:          "==",
	NOT_EQ:      "<>",
	LT:          "<",
	LTE:         "<=",
	GT:          ">",
	GTE:         ">=",
	PLUS:        "+",
	MINUS:       "-",
	ASTERISK:    "*",
	SLASH:       "/",
	COMMA:       ",",
	SEMICOLON:   ";",
	DOT:         ".",
	LPAREN:      "(",
	RPAREN:      ")",
	LBRACE:      "{",
	RBRACE:      "}",
	LBRACKET:    "[",
	RBRACKET:    "]",
	MACRO:       "MACRO",
	VARS:        "VARS",
	FOR:         "FOR",
	EACH:        "EACH",
	FROM:        "FROM",
	CHOICE:      "CHOICE",
	RANGE:       "RANGE",
	THREADS:     "THREADS",
	WHERE:       "WHERE",
	DO:          "DO",
	DO_P:        "DO_P",
	DONE:        "DONE",
	AND:         "AND",
	OR:          "OR",
	XOR:         "XOR",
	NOT:         "NOT",
	LIKE:        "LIKE",
	IN:          "IN",
	BETWEEN:     "BETWEEN",
}

// String returns a string representation of the token type
func (tt TokenType) String() string {
	if name, ok := tokenNames[tt]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", int(tt))
}

// IsKeyword reports whether the type is a reserved word.
func (tt TokenType) IsKeyword() bool {
	return tt >= MACRO
}

var keywords = map[string]TokenType{
	"macro":   MACRO,
	"var":     VARS,
	"vars":    VARS,
	"for":     FOR,
	"each":    EACH,
	"from":    FROM,
	"choice":  CHOICE,
	"range":   RANGE,
	"threads": THREADS,
	"where":   WHERE,
	"do":      DO,
	"do_p":    DO_P,
	"done":    DONE,
	"and":     AND,
	"or":      OR,
	"xor":     XOR,
	"not":     NOT,
	"like":    LIKE,
	"in":      IN,
	"between": BETWEEN,
	"true":    BOOL,
	"false":   BOOL,
}

// LookupIdent checks if an identifier is a keyword. Keywords are
// case-insensitive.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[strings.ToLower(ident)]; ok {
		return tok
	}
	return IDENT
}

// Keywords lists the reserved words, sorted.
func Keywords() []string {
	out := make([]string, 0, len(keywords))
	for k := range keywords {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Location is a cursor position in the source.
type Location struct {
	Pos    int // 0-based byte offset
	Line   int // 1-based
	Column int // 1-based
}

func (l Location) String() string {
	return fmt.Sprintf("%d:%d", l.Line, l.Column)
}

// Token is one lexeme. Literal is the exact source text between Start and
// End; the typed payload lives in Str, Int, Float or Bool.
type Token struct {
	Type    TokenType
	Literal string
	Start   Location
	End     Location // position just past the lexeme

	Str   string // unquoted STRING/ASK payload, identifier or comment text
	Int   int64
	Float float64
	Bool  bool

	Err *merrors.MacroError // set on ILLEGAL tokens
}

// String returns a string representation of the token
func (t Token) String() string {
	return fmt.Sprintf("{Type: %s, Literal: %s, Line: %d, Column: %d}",
		t.Type, t.Literal, t.Start.Line, t.Start.Column)
}

// Repr is the text used when a token is quoted in an error message.
func (t Token) Repr() string {
	switch t.Type {
	case EOF:
		return "end of input"
	case STRING:
		return `"` + t.Str + `"`
	case ASK:
		return "%" + t.Str + "%"
	}
	if t.Literal == "" {
		return t.Type.String()
	}
	return t.Literal
}

// Is reports whether the token has the given type.
func (t Token) Is(tt TokenType) bool {
	return t.Type == tt
}
