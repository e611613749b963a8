// Package parser builds executable trees from macro source text.
//
// The parser is a hand-written recursive-descent parser: each section of a
// macro has its own method, and WHERE clauses, per-statement filters and the
// right-hand sides of DO assignments share one precedence-climbing
// expression parser. Parsing stops at the first error.
package parser

import (
	"strings"

	"github.com/sambeau/seqmacro/pkg/macro/ast"
	merrors "github.com/sambeau/seqmacro/pkg/macro/errors"
	"github.com/sambeau/seqmacro/pkg/macro/lexer"
	"github.com/sambeau/seqmacro/pkg/macro/value"
)

// Precedence levels for operators
const (
	_ int = iota
	LOWEST
	LOGIC_OR    // or
	LOGIC_XOR   // xor
	LOGIC_AND   // and
	LOGIC_NOT   // not x
	EQUALS      // = == <> !=
	LESSGREATER // < <= > >= like in between
	SUM         // + -
	PRODUCT     // * /
	PREFIX      // -x
)

var precedences = map[lexer.TokenType]int{
	lexer.OR:       LOGIC_OR,
	lexer.XOR:      LOGIC_XOR,
	lexer.AND:      LOGIC_AND,
	lexer.ASSIGN:   EQUALS,
	lexer.EQ:       EQUALS,
	lexer.NOT_EQ:   EQUALS,
	lexer.LT:       LESSGREATER,
	lexer.LTE:      LESSGREATER,
	lexer.GT:       LESSGREATER,
	lexer.GTE:      LESSGREATER,
	lexer.LIKE:     LESSGREATER,
	lexer.IN:       LESSGREATER,
	lexer.BETWEEN:  LESSGREATER,
	lexer.PLUS:     SUM,
	lexer.MINUS:    SUM,
	lexer.ASTERISK: PRODUCT,
	lexer.SLASH:    PRODUCT,
}

type (
	prefixParseFn func() *ast.Node
	infixParseFn  func(*ast.Node) *ast.Node
)

// Option configures a Parser.
type Option func(*Parser)

// WithFunctionNames sets the names callable from WHERE clauses and from DO
// statements.
func WithFunctionNames(where, do []string) Option {
	return func(p *Parser) { p.SetFunctionNames(where, do) }
}

// WithErrorReport selects how error locations are rendered.
func WithErrorReport(mode merrors.ReportMode) Option {
	return func(p *Parser) { p.report = mode }
}

// WithTreeSort enables or disables cost ordering of AND/OR operands.
func WithTreeSort(enabled bool) Option {
	return func(p *Parser) { p.sortTrees = enabled }
}

// WithCaseSensitive makes run-time variable names case sensitive, matching
// the executor's variable table.
func WithCaseSensitive(enabled bool) Option {
	return func(p *Parser) { p.caseSensitive = enabled }
}

// WithMaxLexemeLength overrides the scanner's string length bound.
func WithMaxLexemeLength(n int) Option {
	return func(p *Parser) { p.s.SetMaxLength(n) }
}

// Parser represents the macro parser
type Parser struct {
	s     *lexer.Scanner
	input string
	tok   lexer.Token // current, not yet consumed
	prev  lexer.Token

	whereFuncs []string
	doFuncs    []string
	funcs      []string // table active for the clause being parsed

	report        merrors.ReportMode
	sortTrees     bool
	caseSensitive bool

	macro  *ast.Macro
	rtVars map[string]bool // names assigned in DO, keyed by varKey

	err *merrors.MacroError

	prefixParseFns map[lexer.TokenType]prefixParseFn
	infixParseFns  map[lexer.TokenType]infixParseFn
}

// New creates a parser over src and reads the first token.
func New(src string, opts ...Option) *Parser {
	p := &Parser{
		s:         lexer.New(src),
		input:     src,
		sortTrees: true,
	}

	p.prefixParseFns = map[lexer.TokenType]prefixParseFn{
		lexer.INT:    p.parseLiteral,
		lexer.FLOAT:  p.parseLiteral,
		lexer.STRING: p.parseLiteral,
		lexer.BOOL:   p.parseLiteral,
		lexer.IDENT:  p.parseIdentifierOrCall,
		lexer.LPAREN: p.parseGroupedExpression,
		lexer.MINUS:  p.parsePrefixSign,
		lexer.PLUS:   p.parsePrefixSign,
		lexer.NOT:    p.parseNotExpression,
	}
	p.infixParseFns = map[lexer.TokenType]infixParseFn{
		lexer.OR:       p.parseLogicalExpression,
		lexer.AND:      p.parseLogicalExpression,
		lexer.XOR:      p.parseInfixExpression,
		lexer.ASSIGN:   p.parseInfixExpression,
		lexer.EQ:       p.parseInfixExpression,
		lexer.NOT_EQ:   p.parseInfixExpression,
		lexer.LT:       p.parseInfixExpression,
		lexer.LTE:      p.parseInfixExpression,
		lexer.GT:       p.parseInfixExpression,
		lexer.GTE:      p.parseInfixExpression,
		lexer.LIKE:     p.parseInfixExpression,
		lexer.PLUS:     p.parseInfixExpression,
		lexer.MINUS:    p.parseInfixExpression,
		lexer.ASTERISK: p.parseInfixExpression,
		lexer.SLASH:    p.parseInfixExpression,
		lexer.IN:       p.parseInExpression,
		lexer.NOT:      p.parseNotInExpression,
		lexer.BETWEEN:  p.parseBetweenExpression,
	}

	for _, opt := range opts {
		opt(p)
	}
	p.next()
	return p
}

// SetFunctionNames supplies the function-name tables. Names are matched
// case-insensitively.
func (p *Parser) SetFunctionNames(where, do []string) {
	p.whereFuncs = append([]string(nil), where...)
	p.doFuncs = append([]string(nil), do...)
}

// SetErrorReport selects how error locations are rendered.
func (p *Parser) SetErrorReport(mode merrors.ReportMode) {
	p.report = mode
	if p.err != nil {
		p.err.Report = mode
	}
}

// Err returns the first error encountered, if any.
func (p *Parser) Err() *merrors.MacroError {
	return p.err
}

// Parse parses the next macro in the buffer. It returns (nil, nil) at end of
// input. In single-macro mode anything after the macro is an error.
func (p *Parser) Parse(singleMacro bool) (*ast.Macro, error) {
	if p.err != nil {
		return nil, p.err
	}
	if p.tok.Is(lexer.EOF) {
		return nil, nil
	}

	m := p.parseMacro()
	if p.err != nil {
		return nil, p.err
	}

	if singleMacro && !p.tok.Is(lexer.EOF) {
		p.fail("PARSE-0008", p.tok.Start, map[string]any{"Got": p.tok.Repr()})
		return nil, p.err
	}
	return m, nil
}

// ParseScript parses every macro in the buffer.
func (p *Parser) ParseScript() (*ast.Script, error) {
	script := &ast.Script{}
	for {
		m, err := p.Parse(false)
		if err != nil {
			return nil, err
		}
		if m == nil {
			return script, nil
		}
		script.Macros = append(script.Macros, m)
	}
}

// ParseExpression parses a standalone WHERE expression, as typed into a
// search box. Identifiers are resolved by the host.
func ParseExpression(src string, whereFuncs []string, opts ...Option) (*ast.Node, error) {
	p := New(src, append(opts, WithFunctionNames(whereFuncs, nil))...)
	if p.err != nil {
		return nil, p.err
	}
	p.macro = &ast.Macro{}
	p.rtVars = map[string]bool{}
	p.funcs = p.whereFuncs

	expr := p.parseExpression(LOWEST)
	if p.err == nil && !p.tok.Is(lexer.EOF) {
		p.fail("PARSE-0008", p.tok.Start, map[string]any{"Got": p.tok.Repr()})
	}
	if p.err != nil {
		return nil, p.err
	}
	if p.sortTrees {
		SortTree(expr)
	}
	return expr, nil
}

// ---------------------------------------------------------------------------
// token handling

func (p *Parser) next() {
	p.advance(p.s.Next(false))
}

// nextWithComments reads the next token keeping comments, used in the
// macro header where "#Keywords:" metadata may appear.
func (p *Parser) nextWithComments() {
	p.advance(p.s.Next(true))
}

func (p *Parser) advance(tok lexer.Token) {
	p.prev = p.tok
	p.tok = tok
	if tok.Is(lexer.ILLEGAL) && p.err == nil {
		p.err = tok.Err
		p.err.Report = p.report
	}
}

// expect checks the current token type, reporting `what` as the expected
// construct when it does not match.
func (p *Parser) expect(tt lexer.TokenType, what string) bool {
	if p.err != nil {
		return false
	}
	if !p.tok.Is(tt) {
		p.fail("PARSE-0002", p.tok.Start, map[string]any{"Expected": what, "Got": p.tok.Repr()})
		return false
	}
	return true
}

// fail records the first error; later failures are cascading noise.
func (p *Parser) fail(code string, at lexer.Location, data map[string]any) {
	if p.err != nil {
		return
	}
	p.err = merrors.NewAt(code, at.Line, at.Column, at.Pos, data)
	p.err.Report = p.report
}

func (p *Parser) failWith(err *merrors.MacroError) {
	if p.err != nil {
		return
	}
	err.Report = p.report
	p.err = err
}

// ---------------------------------------------------------------------------
// macro sections

func (p *Parser) parseMacro() *ast.Macro {
	start := p.tok.Start
	m := &ast.Macro{Loc: start}
	p.macro = m
	p.rtVars = map[string]bool{}

	p.parseHeader(m)
	for p.err == nil && p.tok.Is(lexer.VARS) {
		p.next()
		p.parseVariables(m)
	}
	if p.err == nil {
		p.parseBody(m)
	}
	if p.err != nil {
		return nil
	}

	end := p.prev.End.Pos
	m.Source = p.input[start.Pos:end]
	return m
}

// parseHeader reads `macro name [(params)] ["title"] {comment}`.
func (p *Parser) parseHeader(m *ast.Macro) {
	if !p.tok.Is(lexer.MACRO) {
		p.fail("PARSE-0001", p.tok.Start, map[string]any{"Got": p.tok.Repr()})
		return
	}
	p.next()

	switch p.tok.Type {
	case lexer.IDENT, lexer.STRING:
		m.Name = p.tok.Str
	default:
		p.fail("PARSE-0010", p.tok.Start, map[string]any{"Got": p.tok.Repr()})
		return
	}
	p.nextWithComments()

	if p.tok.Is(lexer.LPAREN) {
		p.parseParams(m)
		if p.err != nil {
			return
		}
	}

	if p.tok.Is(lexer.STRING) {
		m.Title = p.tok.Str
		p.nextWithComments()
	}

	for p.err == nil && p.tok.Is(lexer.COMMENT) {
		p.parseMetadata(m)
		p.nextWithComments()
	}
}

func (p *Parser) parseParams(m *ast.Macro) {
	p.next()
	for !p.tok.Is(lexer.RPAREN) {
		if !p.expect(lexer.IDENT, "parameter name") {
			return
		}
		m.Params = append(m.Params, p.tok.Str)
		p.next()
		if p.tok.Is(lexer.COMMA) {
			p.next()
			continue
		}
		if !p.expect(lexer.RPAREN, "',' or ')'") {
			return
		}
	}
	p.nextWithComments()
}

const keywordsTag = "#Keywords:"

// parseMetadata collects comma-separated words following "#Keywords:".
func (p *Parser) parseMetadata(m *ast.Macro) {
	text := p.tok.Str
	idx := strings.Index(text, keywordsTag)
	if idx < 0 {
		return
	}
	for _, w := range strings.Split(text[idx+len(keywordsTag):], ",") {
		if w = strings.TrimSpace(w); w != "" {
			m.Keywords = append(m.Keywords, w)
		}
	}
}

// parseVariables reads one VARS section: name = value {[,] name = value}.
func (p *Parser) parseVariables(m *ast.Macro) {
	if !p.expect(lexer.IDENT, "variable name") {
		return
	}
	for p.err == nil && p.tok.Is(lexer.IDENT) {
		v := &ast.Variable{Name: p.tok.Str, Loc: p.tok.Start}
		if m.FindVar(v.Name, p.caseSensitive) != nil {
			p.fail("PARSE-0007", p.tok.Start, map[string]any{"Name": v.Name})
			return
		}
		if m.FindParam(v.Name, p.caseSensitive) {
			p.fail("PARSE-0016", p.tok.Start, map[string]any{"Name": v.Name})
			return
		}
		p.next()
		if !p.expect(lexer.ASSIGN, "'='") {
			return
		}
		p.next()

		switch p.tok.Type {
		case lexer.STRING:
			v.Default = value.NewString(p.tok.Str)
			p.next()
		case lexer.ASK:
			v.Default = value.NewString(p.tok.Str)
			v.Ask = true
			p.next()
		case lexer.BOOL:
			v.Default = value.NewBool(p.tok.Bool)
			p.next()
		case lexer.CHOICE:
			p.next()
			v.Choices = p.parseChoiceList()
			if len(v.Choices) > 0 {
				v.Default = v.Choices[0]
			}
		default:
			v.Default = p.parseSignedNumber(func() {
				p.fail("PARSE-0011", p.tok.Start, map[string]any{"Name": v.Name, "Got": p.tok.Repr()})
			})
		}
		if p.err != nil {
			return
		}
		m.Vars = append(m.Vars, v)

		if p.tok.Is(lexer.COMMA) {
			p.next()
			if !p.expect(lexer.IDENT, "variable name") {
				return
			}
		}
	}
}

// parseSign consumes an optional leading + or - and returns the sign.
func (p *Parser) parseSign() int64 {
	switch p.tok.Type {
	case lexer.MINUS:
		p.next()
		return -1
	case lexer.PLUS:
		p.next()
	}
	return 1
}

func (p *Parser) parseSignedNumber(onError func()) value.Value {
	sign := p.parseSign()
	var v value.Value
	switch p.tok.Type {
	case lexer.INT:
		v = value.NewInt(sign * p.tok.Int)
	case lexer.FLOAT:
		v = value.NewFloat(float64(sign) * p.tok.Float)
	default:
		onError()
		return v
	}
	p.next()
	return v
}

// parseChoiceList reads `{ value {, value} }`.
func (p *Parser) parseChoiceList() []value.Value {
	if !p.expect(lexer.LBRACE, "'{'") {
		return nil
	}
	p.next()
	if p.tok.Is(lexer.RBRACE) {
		p.fail("PARSE-0014", p.tok.Start, nil)
		return nil
	}

	var out []value.Value
	for p.err == nil {
		switch p.tok.Type {
		case lexer.STRING:
			out = append(out, value.NewString(p.tok.Str))
			p.next()
		case lexer.BOOL:
			out = append(out, value.NewBool(p.tok.Bool))
			p.next()
		default:
			v := p.parseSignedNumber(func() {
				p.fail("PARSE-0002", p.tok.Start, map[string]any{"Expected": "choice value", "Got": p.tok.Repr()})
			})
			if p.err != nil {
				return nil
			}
			out = append(out, v)
		}
		if !p.tok.Is(lexer.COMMA) {
			break
		}
		p.next()
	}
	if !p.expect(lexer.RBRACE, "',' or '}'") {
		return nil
	}
	p.next()
	return out
}

// parseBody reads the iteration descriptor, the WHERE clause and the DO
// clause.
func (p *Parser) parseBody(m *ast.Macro) {
	if p.tok.Is(lexer.FOR) {
		p.parseForEach(m)
	}
	if p.err == nil && p.tok.Is(lexer.FROM) {
		p.advance(p.s.NextNamedAnnot())
		if p.err != nil {
			return
		}
		m.ForEach.NamedAnnot = p.tok.Str
		p.next()
	}
	if p.err == nil && p.tok.Is(lexer.RANGE) {
		p.parseRange(m)
	}
	if p.err == nil && p.tok.Is(lexer.CHOICE) {
		p.next()
		m.ForEach.Choice = p.parseChoiceList()
	}
	if p.err == nil && p.tok.Is(lexer.THREADS) {
		p.next()
		m.Threads = p.parseThreadCount()
	}
	if p.err == nil && p.tok.Is(lexer.WHERE) {
		p.parseWhere(m)
	}
	if p.err == nil {
		p.parseDo(m)
	}
}

func (p *Parser) parseForEach(m *ast.Macro) {
	p.next()
	if !p.expect(lexer.EACH, "keyword 'EACH'") {
		return
	}
	p.advance(p.s.NextSelector())
	if p.err != nil {
		return
	}
	m.ForEach.Selector = p.tok.Str
	p.next()
}

// parseRange reads `range [start, stop]`.
func (p *Parser) parseRange(m *ast.Macro) {
	at := p.tok.Start
	p.next()

	bad := func() { p.fail("PARSE-0006", at, nil) }
	if !p.tok.Is(lexer.LBRACKET) {
		bad()
		return
	}
	p.next()
	start := p.parseSignedNumber(bad)
	if p.err != nil || start.Kind() != value.Int || !p.tok.Is(lexer.COMMA) {
		bad()
		return
	}
	p.next()
	stop := p.parseSignedNumber(bad)
	if p.err != nil || stop.Kind() != value.Int || !p.tok.Is(lexer.RBRACKET) {
		bad()
		return
	}

	switch {
	case start.Int() < 0 || stop.Int() < 0:
		p.fail("PARSE-0017", at, nil)
		return
	case start.Int() > stop.Int():
		p.fail("PARSE-0018", at, nil)
		return
	}
	m.ForEach.Range = &ast.Range{Start: start.Int(), Stop: stop.Int()}
	p.next()
}

// parseThreadCount reads a positive integer.
func (p *Parser) parseThreadCount() int {
	at := p.tok.Start
	v := p.parseSignedNumber(func() { p.fail("PARSE-0005", at, nil) })
	if p.err != nil {
		return 0
	}
	if v.Kind() != value.Int || v.Int() <= 0 {
		p.fail("PARSE-0005", at, nil)
		return 0
	}
	return int(v.Int())
}

func (p *Parser) parseWhere(m *ast.Macro) {
	p.next()
	start := p.tok.Start.Pos
	switch p.tok.Type {
	case lexer.DO, lexer.DO_P, lexer.EOF:
		p.fail("PARSE-0009", p.tok.Start, map[string]any{"Got": p.tok.Repr()})
		return
	}

	m.Where = p.parseClause(p.whereFuncs)
	if p.err != nil {
		return
	}
	m.WhereSource = strings.TrimSpace(p.input[start:p.prev.End.Pos])
}

// parseClause parses one expression with the given function table active.
func (p *Parser) parseClause(funcs []string) *ast.Node {
	saved := p.funcs
	p.funcs = funcs
	defer func() { p.funcs = saved }()

	expr := p.parseExpression(LOWEST)
	if p.err != nil {
		return nil
	}
	if p.sortTrees {
		SortTree(expr)
	}
	return expr
}

// parseDo reads `do | do_p(n)`, the statements and `done`.
func (p *Parser) parseDo(m *ast.Macro) {
	switch p.tok.Type {
	case lexer.DO:
		p.next()
	case lexer.DO_P:
		p.next()
		if !p.expect(lexer.LPAREN, "'('") {
			return
		}
		p.next()
		m.Threads = p.parseThreadCount()
		m.Parallel = true
		if !p.expect(lexer.RPAREN, "')'") {
			return
		}
		p.next()
	default:
		p.fail("PARSE-0002", p.tok.Start, map[string]any{"Expected": "keyword 'DO' or 'DO_P'", "Got": p.tok.Repr()})
		return
	}

	for p.err == nil && !p.tok.Is(lexer.DONE) {
		if !p.tok.Is(lexer.IDENT) {
			p.fail("PARSE-0004", p.tok.Start, map[string]any{"Got": p.tok.Repr()})
			return
		}
		stmt := p.parseStatement()
		if p.err != nil {
			return
		}
		m.Do = append(m.Do, stmt)
		if p.tok.Is(lexer.SEMICOLON) {
			p.next()
			continue
		}
		switch p.tok.Type {
		case lexer.DONE:
		case lexer.EOF:
			p.fail("PARSE-0004", p.tok.Start, map[string]any{"Got": p.tok.Repr()})
			return
		default:
			p.fail("PARSE-0002", p.tok.Start, map[string]any{"Expected": "';' or keyword 'DONE'", "Got": p.tok.Repr()})
			return
		}
	}
	if p.err == nil {
		p.next() // done
	}
}

// doTable is the table active inside DO statements: DO functions first,
// then WHERE functions, which are side-effect free and usable as values.
func (p *Parser) doTable() []string {
	return append(append([]string(nil), p.doFuncs...), p.whereFuncs...)
}

// parseStatement reads `name = expr [where expr]` or `Func(args) [where expr]`.
func (p *Parser) parseStatement() *ast.Node {
	var stmt *ast.Node

	if p.s.Peek().Is(lexer.LPAREN) {
		// the statement itself must be a DO function, its arguments may
		// call WHERE functions too
		saved := p.funcs
		p.funcs = p.doTable()
		stmt = p.parseCallFrom(p.doFuncs)
		p.funcs = saved
	} else {
		lhs := &ast.Node{Kind: ast.RTVar, Name: p.tok.Str, Loc: p.tok.Start}
		p.rtVars[p.varKey(lhs.Name)] = true
		p.next()
		if !p.expect(lexer.ASSIGN, "'=' or '('") {
			return nil
		}
		at := p.tok.Start
		p.next()
		rhs := p.parseClause(p.doTable())
		if p.err != nil {
			return nil
		}
		stmt = ast.NewNode(ast.Assignment, at, lhs, rhs)
	}
	if p.err != nil {
		return nil
	}

	if p.tok.Is(lexer.WHERE) {
		p.next()
		stmt.Filter = p.parseClause(p.whereFuncs)
	}
	return stmt
}

// ---------------------------------------------------------------------------
// expressions

func (p *Parser) parseExpression(precedence int) *ast.Node {
	if p.err != nil {
		return nil
	}
	prefix := p.prefixParseFns[p.tok.Type]
	if prefix == nil {
		p.fail("PARSE-0009", p.tok.Start, map[string]any{"Got": p.tok.Repr()})
		return nil
	}
	left := prefix()

	for p.err == nil && precedence < p.curPrecedence() {
		infix := p.infixParseFns[p.tok.Type]
		if infix == nil {
			return left
		}
		left = infix(left)
	}
	if p.err != nil {
		return nil
	}
	return left
}

func (p *Parser) curPrecedence() int {
	if p.tok.Is(lexer.NOT) {
		// only `x not in (...)` continues an expression
		if p.s.Peek().Is(lexer.IN) {
			return LESSGREATER
		}
		return LOWEST
	}
	if prec, ok := precedences[p.tok.Type]; ok {
		return prec
	}
	return LOWEST
}

func (p *Parser) parseLiteral() *ast.Node {
	tok := p.tok
	var v value.Value
	switch tok.Type {
	case lexer.INT:
		v = value.NewInt(tok.Int)
	case lexer.FLOAT:
		v = value.NewFloat(tok.Float)
	case lexer.STRING:
		v = value.NewString(tok.Str)
	case lexer.BOOL:
		v = value.NewBool(tok.Bool)
	}
	p.next()
	return ast.NewConst(v, tok.Start)
}

func (p *Parser) parseGroupedExpression() *ast.Node {
	p.next()
	expr := p.parseExpression(LOWEST)
	if !p.expect(lexer.RPAREN, "')'") {
		return nil
	}
	p.next()
	return expr
}

// parsePrefixSign folds a sign into a numeric literal and otherwise builds
// a negation node.
func (p *Parser) parsePrefixSign() *ast.Node {
	tok := p.tok
	p.next()
	operand := p.parseExpression(PREFIX)
	if operand == nil || tok.Is(lexer.PLUS) {
		return operand
	}
	if operand.Kind == ast.Const {
		switch operand.Literal.Kind() {
		case value.Int:
			return ast.NewConst(value.NewInt(-operand.Literal.Int()), tok.Start)
		case value.Float:
			return ast.NewConst(value.NewFloat(-operand.Literal.Float()), tok.Start)
		}
	}
	return ast.NewNode(ast.Neg, tok.Start, operand)
}

func (p *Parser) parseNotExpression() *ast.Node {
	at := p.tok.Start
	p.next()
	operand := p.parseExpression(LOGIC_NOT)
	if operand == nil {
		return nil
	}
	return ast.NewNode(ast.Not, at, operand)
}

var infixKinds = map[lexer.TokenType]ast.Kind{
	lexer.XOR:      ast.Xor,
	lexer.ASSIGN:   ast.Eq,
	lexer.EQ:       ast.Eq,
	lexer.NOT_EQ:   ast.NotEq,
	lexer.LT:       ast.Less,
	lexer.LTE:      ast.LessEq,
	lexer.GT:       ast.Greater,
	lexer.GTE:      ast.GreaterEq,
	lexer.LIKE:     ast.Like,
	lexer.PLUS:     ast.Add,
	lexer.MINUS:    ast.Sub,
	lexer.ASTERISK: ast.Mul,
	lexer.SLASH:    ast.Div,
}

func (p *Parser) parseInfixExpression(left *ast.Node) *ast.Node {
	tok := p.tok
	precedence := p.curPrecedence()
	p.next()
	right := p.parseExpression(precedence)
	if right == nil {
		return nil
	}
	return ast.NewNode(infixKinds[tok.Type], tok.Start, left, right)
}

// parseLogicalExpression builds n-ary AND/OR nodes: `a and b and c` is one
// node with three operands.
func (p *Parser) parseLogicalExpression(left *ast.Node) *ast.Node {
	tok := p.tok
	kind := ast.And
	if tok.Is(lexer.OR) {
		kind = ast.Or
	}
	precedence := p.curPrecedence()
	p.next()
	right := p.parseExpression(precedence)
	if right == nil {
		return nil
	}
	if left.Kind == kind {
		left.Children = append(left.Children, right)
		return left
	}
	return ast.NewNode(kind, tok.Start, left, right)
}

// parseInExpression reads `x in (a, b, ...)`.
func (p *Parser) parseInExpression(left *ast.Node) *ast.Node {
	at := p.tok.Start
	p.next()
	if !p.expect(lexer.LPAREN, "'('") {
		return nil
	}
	p.next()

	node := ast.NewNode(ast.In, at, left)
	for p.err == nil {
		item := p.parseExpression(LOWEST)
		if item == nil {
			return nil
		}
		node.Children = append(node.Children, item)
		if !p.tok.Is(lexer.COMMA) {
			break
		}
		p.next()
	}
	if !p.expect(lexer.RPAREN, "',' or ')'") {
		return nil
	}
	p.next()
	return node
}

func (p *Parser) parseNotInExpression(left *ast.Node) *ast.Node {
	at := p.tok.Start
	p.next() // not
	in := p.parseInExpression(left)
	if in == nil {
		return nil
	}
	return ast.NewNode(ast.Not, at, in)
}

// parseBetweenExpression reads `x between lo and hi`.
func (p *Parser) parseBetweenExpression(left *ast.Node) *ast.Node {
	at := p.tok.Start
	p.next()
	lo := p.parseExpression(LESSGREATER)
	if !p.expect(lexer.AND, "keyword 'AND'") {
		return nil
	}
	p.next()
	hi := p.parseExpression(LESSGREATER)
	if hi == nil {
		return nil
	}
	return ast.NewNode(ast.Between, at, left, lo, hi)
}

// parseIdentifierOrCall classifies an identifier: a name followed by '(' is
// a function call and must be in the active table; a declared variable,
// parameter or DO-assigned name is a run-time variable; anything else is
// an identifier for the host to resolve. Dotted paths are joined.
func (p *Parser) parseIdentifierOrCall() *ast.Node {
	if p.s.Peek().Is(lexer.LPAREN) {
		return p.parseCall()
	}

	tok := p.tok
	name := tok.Str
	p.next()
	for p.err == nil && p.tok.Is(lexer.DOT) {
		p.next()
		if !p.expect(lexer.IDENT, "field name") {
			return nil
		}
		name += "." + p.tok.Str
		p.next()
	}

	kind := ast.Identifier
	if !strings.Contains(name, ".") && p.isVariable(name) {
		kind = ast.RTVar
	}
	return &ast.Node{Kind: kind, Name: name, Loc: tok.Start}
}

func (p *Parser) isVariable(name string) bool {
	if p.macro == nil {
		return false
	}
	return p.macro.FindVar(name, p.caseSensitive) != nil ||
		p.macro.FindParam(name, p.caseSensitive) ||
		p.rtVars[p.varKey(name)]
}

func (p *Parser) varKey(name string) string {
	if p.caseSensitive {
		return name
	}
	return strings.ToLower(name)
}

// parseCall reads `Name(arg {, arg})`. The name must be in the active
// table; it is stored with the table's spelling.
func (p *Parser) parseCall() *ast.Node {
	return p.parseCallFrom(p.funcs)
}

// parseCallFrom is parseCall with the name looked up in names. Arguments
// are parsed with the active table.
func (p *Parser) parseCallFrom(names []string) *ast.Node {
	tok := p.tok
	canonical, ok := lookupName(names, tok.Str)
	if !ok {
		p.failWith(merrors.NewUnknownFunction(tok.Str, tok.Start.Line, tok.Start.Column, tok.Start.Pos, names))
		return nil
	}
	node := &ast.Node{Kind: ast.FunctionCall, Name: canonical, Loc: tok.Start}

	p.next() // name
	p.next() // (
	if !p.tok.Is(lexer.RPAREN) {
		for p.err == nil {
			arg := p.parseExpression(LOWEST)
			if arg == nil {
				return nil
			}
			node.Children = append(node.Children, arg)
			if !p.tok.Is(lexer.COMMA) {
				break
			}
			p.next()
		}
	}
	if p.err != nil {
		return nil
	}
	if p.tok.Is(lexer.DOT) {
		p.fail("PARSE-0015", p.tok.Start, map[string]any{"Name": canonical})
		return nil
	}
	if !p.expect(lexer.RPAREN, "',' or ')'") {
		return nil
	}
	p.next()
	return node
}

func lookupName(table []string, name string) (string, bool) {
	for _, n := range table {
		if strings.EqualFold(n, name) {
			return n, true
		}
	}
	return "", false
}
