// Package lexer turns macro source text into tokens.
//
// The scanner is driven by the parser one token at a time. Besides the
// ordinary Next mode it has two context-sensitive modes, NextSelector and
// NextNamedAnnot, that the parser enters right after FOR EACH and FROM.
package lexer

import (
	"strconv"
	"strings"

	merrors "github.com/sambeau/seqmacro/pkg/macro/errors"
)

// MaxLexemeLength bounds the payload of a quoted string, identifier or
// selector. Longer lexemes produce an ILLEGAL token.
const MaxLexemeLength = 1024

// Scanner represents the lexical analyzer
type Scanner struct {
	input    string
	pos      int // offset of the current char
	line     int
	column   int
	errorLoc Location
	maxLen   int
}

// State holds the cursor of a scanner for save/restore
type State struct {
	pos, line, column int
}

// New creates a new scanner instance
func New(input string) *Scanner {
	return &Scanner{input: input, line: 1, column: 1, maxLen: MaxLexemeLength, errorLoc: Location{Pos: -1}}
}

// SetMaxLength overrides MaxLexemeLength for this scanner.
func (s *Scanner) SetMaxLength(n int) {
	if n > 0 {
		s.maxLen = n
	}
}

// SaveState saves the cursor for potential restoration
func (s *Scanner) SaveState() State {
	return State{pos: s.pos, line: s.line, column: s.column}
}

// RestoreState rewinds the scanner to a saved cursor
func (s *Scanner) RestoreState(st State) {
	s.pos, s.line, s.column = st.pos, st.line, st.column
}

// Peek returns the next token without consuming it
func (s *Scanner) Peek() Token {
	st := s.SaveState()
	tok := s.Next(false)
	s.RestoreState(st)
	return tok
}

// ErrorLocation returns where the most recent lexical failure happened, with
// Pos -1 when no failure has occurred.
func (s *Scanner) ErrorLocation() Location {
	return s.errorLoc
}

// Source returns the text between two offsets.
func (s *Scanner) Source(from, to int) string {
	if from < 0 {
		from = 0
	}
	if to > len(s.input) {
		to = len(s.input)
	}
	if from >= to {
		return ""
	}
	return s.input[from:to]
}

func (s *Scanner) ch() byte {
	if s.pos >= len(s.input) {
		return 0 // NUL represents end of input
	}
	return s.input[s.pos]
}

func (s *Scanner) peekChar() byte {
	if s.pos+1 >= len(s.input) {
		return 0
	}
	return s.input[s.pos+1]
}

func (s *Scanner) readChar() {
	if s.pos >= len(s.input) {
		return
	}
	if s.input[s.pos] == '\n' {
		s.line++
		s.column = 1
	} else {
		s.column++
	}
	s.pos++
}

func (s *Scanner) location() Location {
	return Location{Pos: s.pos, Line: s.line, Column: s.column}
}

func (s *Scanner) skipBlanks() {
	for {
		switch s.ch() {
		case ' ', '\t', '\r', '\n':
			s.readChar()
		default:
			return
		}
	}
}

// Next scans the input and returns the next token. Comments are skipped
// unless parseComment is set, in which case a COMMENT token is returned.
func (s *Scanner) Next(parseComment bool) Token {
	for {
		s.skipBlanks()
		if s.ch() != '-' || s.peekChar() != '-' {
			break
		}
		start := s.location()
		for s.ch() != '\n' && s.ch() != 0 {
			s.readChar()
		}
		if parseComment {
			tok := s.finish(COMMENT, start)
			tok.Str = strings.TrimSpace(strings.TrimPrefix(tok.Literal, "--"))
			return tok
		}
	}

	start := s.location()
	c := s.ch()

	switch {
	case c == 0:
		return Token{Type: EOF, Start: start, End: start}
	case c == '"' || c == '%':
		return s.readQuoted(start)
	case isDigit(c):
		return s.readNumber(start)
	case isLetter(c):
		return s.readIdentifier(start)
	}

	s.readChar()
	switch c {
	case '=':
		if s.ch() == '=' {
			s.readChar()
			return s.finish(EQ, start)
		}
		return s.finish(ASSIGN, start)
	case '!':
		if s.ch() == '=' {
			s.readChar()
			return s.finish(NOT_EQ, start)
		}
	case '<':
		switch s.ch() {
		case '=':
			s.readChar()
			return s.finish(LTE, start)
		case '>':
			s.readChar()
			return s.finish(NOT_EQ, start)
		}
		return s.finish(LT, start)
	case '>':
		if s.ch() == '=' {
			s.readChar()
			return s.finish(GTE, start)
		}
		return s.finish(GT, start)
	case '+':
		return s.finish(PLUS, start)
	case '-':
		return s.finish(MINUS, start)
	case '*':
		return s.finish(ASTERISK, start)
	case '/':
		return s.finish(SLASH, start)
	case ',':
		return s.finish(COMMA, start)
	case ';':
		return s.finish(SEMICOLON, start)
	case '.':
		return s.finish(DOT, start)
	case '(':
		return s.finish(LPAREN, start)
	case ')':
		return s.finish(RPAREN, start)
	case '{':
		return s.finish(LBRACE, start)
	case '}':
		return s.finish(RBRACE, start)
	case '[':
		return s.finish(LBRACKET, start)
	case ']':
		return s.finish(RBRACKET, start)
	}

	return s.illegal(start, start, "LEX-0001", map[string]any{"Char": string(c)})
}

// NextSelector scans the target of FOR EACH: a letter or '*' followed by
// letters, digits and the characters _ - * . The words WHERE and DO are
// rejected so a missing selector is not silently swallowed.
func (s *Scanner) NextSelector() Token {
	s.skipBlanks()
	start := s.location()
	if c := s.ch(); !isLetter(c) && c != '*' {
		return s.illegal(start, start, "PARSE-0012", map[string]any{"Got": s.Peek().Repr()})
	}
	for c := s.ch(); isLetter(c) || isDigit(c) || c == '-' || c == '*' || c == '.'; c = s.ch() {
		s.readChar()
	}
	tok := s.finish(SELECTOR, start)
	if len(tok.Literal) > s.maxLen {
		return s.illegal(start, tok.End, "LEX-0003", map[string]any{"Limit": s.maxLen})
	}
	if t := LookupIdent(tok.Literal); t == WHERE || t == DO || t == DO_P {
		s.RestoreState(State{start.Pos, start.Line, start.Column})
		return s.illegal(start, start, "PARSE-0012", map[string]any{"Got": tok.Literal})
	}
	tok.Str = tok.Literal
	return tok
}

// NextNamedAnnot scans the accession after FROM: "NA" followed by letters,
// digits, '.' and '#'.
func (s *Scanner) NextNamedAnnot() Token {
	s.skipBlanks()
	start := s.location()
	if s.ch() != 'N' || s.peekChar() != 'A' {
		return s.illegal(start, start, "PARSE-0013", map[string]any{"Got": s.Peek().Repr()})
	}
	for c := s.ch(); isLetter(c) || isDigit(c) || c == '.' || c == '#'; c = s.ch() {
		s.readChar()
	}
	tok := s.finish(NAMED_ANNOT, start)
	if len(tok.Literal) > s.maxLen {
		return s.illegal(start, tok.End, "LEX-0003", map[string]any{"Limit": s.maxLen})
	}
	tok.Str = tok.Literal
	return tok
}

func (s *Scanner) finish(tt TokenType, start Location) Token {
	return Token{Type: tt, Literal: s.input[start.Pos:s.pos], Start: start, End: s.location()}
}

func (s *Scanner) illegal(start, at Location, code string, data map[string]any) Token {
	s.errorLoc = at
	tok := s.finish(ILLEGAL, start)
	tok.Err = merrors.NewAt(code, at.Line, at.Column, at.Pos, data)
	return tok
}

// readQuoted reads a "string" or a %ask% value. Strings may span lines;
// a backslash before the terminator escapes it.
func (s *Scanner) readQuoted(start Location) Token {
	quote := s.ch()
	s.readChar()

	var sb strings.Builder
	for {
		c := s.ch()
		if c == 0 {
			return s.illegal(start, start, "LEX-0002", nil)
		}
		if c == quote {
			break
		}
		if c == '\\' && s.peekChar() == quote {
			s.readChar()
			c = quote
		}
		if sb.Len() >= s.maxLen {
			return s.illegal(start, start, "LEX-0003", map[string]any{"Limit": s.maxLen})
		}
		sb.WriteByte(c)
		s.readChar()
	}
	s.readChar() // closing quote

	tt := STRING
	if quote == '%' {
		tt = ASK
	}
	tok := s.finish(tt, start)
	tok.Str = sb.String()
	return tok
}

func (s *Scanner) readNumber(start Location) Token {
	isFloat := false
	for isDigit(s.ch()) {
		s.readChar()
	}
	if s.ch() == '.' && isDigit(s.peekChar()) {
		isFloat = true
		s.readChar()
		for isDigit(s.ch()) {
			s.readChar()
		}
	}
	if c := s.ch(); c == 'e' || c == 'E' {
		st := s.SaveState()
		s.readChar()
		if s.ch() == '+' || s.ch() == '-' {
			s.readChar()
		}
		if isDigit(s.ch()) {
			isFloat = true
			for isDigit(s.ch()) {
				s.readChar()
			}
		} else {
			s.RestoreState(st)
		}
	}

	text := s.input[start.Pos:s.pos]
	if isFloat {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return s.illegal(start, start, "LEX-0004", map[string]any{"Literal": text})
		}
		tok := s.finish(FLOAT, start)
		tok.Float = f
		return tok
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return s.illegal(start, start, "LEX-0004", map[string]any{"Literal": text})
	}
	tok := s.finish(INT, start)
	tok.Int = n
	return tok
}

func (s *Scanner) readIdentifier(start Location) Token {
	for c := s.ch(); isLetter(c) || isDigit(c); c = s.ch() {
		s.readChar()
	}
	text := s.input[start.Pos:s.pos]
	if len(text) > s.maxLen {
		return s.illegal(start, start, "LEX-0003", map[string]any{"Limit": s.maxLen})
	}
	tt := LookupIdent(text)
	tok := s.finish(tt, start)
	tok.Str = text
	if tt == BOOL {
		tok.Bool = strings.EqualFold(text, "true")
	}
	return tok
}

func isLetter(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}
