package format

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sambeau/seqmacro/pkg/macro/ast"
	"github.com/sambeau/seqmacro/pkg/macro/lexer"
	"github.com/sambeau/seqmacro/pkg/macro/value"
)

// Macro returns the canonical source of m. Parsing the result yields the
// same trees.
func Macro(m *ast.Macro) string {
	p := NewPrinter()
	p.macro(m)
	return p.String()
}

// Script formats every macro of s.
func Script(s *ast.Script) string {
	sep := strings.Repeat("\n", BlankLinesBetweenMacros)
	parts := make([]string, len(s.Macros))
	for i, m := range s.Macros {
		parts[i] = Macro(m)
	}
	return strings.Join(parts, sep)
}

// Expression formats one expression tree on a single line.
func Expression(n *ast.Node) string {
	if n == nil {
		return ""
	}
	return expr(n)
}

// Statement formats a DO statement with its filter.
func Statement(n *ast.Node) string {
	s := expr(n)
	if n.Filter != nil {
		s += " where " + expr(n.Filter)
	}
	return s
}

func (p *Printer) macro(m *ast.Macro) {
	header := "macro " + macroName(m.Name)
	if len(m.Params) > 0 {
		header += "(" + strings.Join(m.Params, ", ") + ")"
	}
	if m.Title != "" {
		header += " " + quote(m.Title)
	}
	p.line(header)
	if len(m.Keywords) > 0 {
		p.line("-- #Keywords: " + strings.Join(m.Keywords, ", "))
	}

	if len(m.Vars) > 0 {
		p.line("vars")
		p.block(func() {
			for i, v := range m.Vars {
				p.line(v.Name + " = " + variableValue(v) + separator(i, len(m.Vars), ","))
			}
		})
	}

	if target := targetLine(m); target != "" {
		p.line(target)
	}
	if m.Where != nil {
		p.where(m.Where)
	}

	if m.Parallel {
		p.line(fmt.Sprintf("do_p(%d)", m.ThreadCount()))
	} else {
		p.line("do")
	}
	p.block(func() {
		for i, st := range m.Do {
			p.line(Statement(st) + separator(i, len(m.Do), ";"))
		}
	})
	p.line("done")
}

// separator returns sep for every item but the last.
func separator(i, n int, sep string) string {
	if i < n-1 {
		return sep
	}
	return ""
}

// where writes the WHERE clause, one top-level operand per line when it is
// too long.
func (p *Printer) where(n *ast.Node) {
	whole := "where " + expr(n)
	if p.fits(whole, WhereThreshold) || (n.Kind != ast.And && n.Kind != ast.Or) {
		p.line(whole)
		return
	}
	p.line("where " + operand(n.Children[0], n.Kind, true))
	p.block(func() {
		op := n.Kind.Operator()
		for _, c := range n.Children[1:] {
			p.line(op + " " + operand(c, n.Kind, true))
		}
	})
}

func targetLine(m *ast.Macro) string {
	t := m.ForEach
	var parts []string
	if t.Selector != "" {
		parts = append(parts, "for each "+t.Selector)
	}
	if t.NamedAnnot != "" {
		parts = append(parts, "from "+t.NamedAnnot)
	}
	if t.Range != nil {
		parts = append(parts, fmt.Sprintf("range [%d, %d]", t.Range.Start, t.Range.Stop))
	}
	if len(t.Choice) > 0 {
		parts = append(parts, "choice "+choiceList(t.Choice))
	}
	if m.Threads > 0 && !m.Parallel {
		parts = append(parts, fmt.Sprintf("threads %d", m.Threads))
	}
	return strings.Join(parts, " ")
}

func variableValue(v *ast.Variable) string {
	switch {
	case v.Ask:
		return "%" + v.Default.Str() + "%"
	case len(v.Choices) > 0:
		return "choice " + choiceList(v.Choices)
	}
	return literal(v.Default)
}

func choiceList(vals []value.Value) string {
	items := make([]string, len(vals))
	for i, v := range vals {
		items[i] = literal(v)
	}
	return "{ " + strings.Join(items, ", ") + " }"
}

func macroName(name string) string {
	if lexer.LookupIdent(name) != lexer.IDENT {
		return quote(name)
	}
	for i, r := range name {
		isLetter := r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		if !isLetter && (i == 0 || r < '0' || r > '9') {
			return quote(name)
		}
	}
	if name == "" {
		return `""`
	}
	return name
}

// quote writes a string literal; only the double quote is escaped.
func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// literal spells a constant so that it scans back to the same kind.
func literal(v value.Value) string {
	switch v.Kind() {
	case value.String:
		return quote(v.Str())
	case value.Float:
		s := strconv.FormatFloat(v.Float(), 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	case value.Int:
		return strconv.FormatInt(v.Int(), 10)
	case value.Bool:
		return strconv.FormatBool(v.Bool())
	}
	return v.String()
}

// Binding strengths, mirroring the parser's precedence levels.
const (
	precOr = iota + 1
	precXor
	precAnd
	precNot
	precEquals
	precCompare
	precSum
	precProduct
	precPrefix
	precAtom
)

func precedence(n *ast.Node) int {
	if isNotIn(n) {
		return precCompare
	}
	return kindPrecedence(n.Kind)
}

func kindPrecedence(k ast.Kind) int {
	switch k {
	case ast.Or:
		return precOr
	case ast.Xor:
		return precXor
	case ast.And:
		return precAnd
	case ast.Not:
		return precNot
	case ast.Eq, ast.NotEq:
		return precEquals
	case ast.Less, ast.LessEq, ast.Greater, ast.GreaterEq, ast.Like, ast.In, ast.Between:
		return precCompare
	case ast.Add, ast.Sub:
		return precSum
	case ast.Mul, ast.Div:
		return precProduct
	case ast.Neg:
		return precPrefix
	}
	return precAtom
}

func isNotIn(n *ast.Node) bool {
	return n.Kind == ast.Not && len(n.Children) == 1 && n.Children[0].Kind == ast.In
}

// operand formats a child of an operator, parenthesized when it binds more
// loosely than the operator allows at that side.
func operand(c *ast.Node, parent ast.Kind, strict bool) string {
	pc, pp := precedence(c), kindPrecedence(parent)
	if pc < pp || (strict && pc == pp) {
		return "(" + expr(c) + ")"
	}
	return expr(c)
}

func expr(n *ast.Node) string {
	switch n.Kind {
	case ast.Const:
		return literal(n.Literal)
	case ast.Identifier, ast.RTVar:
		return n.Name
	case ast.FunctionCall:
		args := make([]string, len(n.Children))
		for i, c := range n.Children {
			args[i] = expr(c)
		}
		return n.Name + "(" + strings.Join(args, ", ") + ")"
	case ast.Assignment:
		return expr(n.Children[0]) + " = " + expr(n.Children[1])
	case ast.Not:
		if isNotIn(n) {
			return inList(n.Children[0], "not in")
		}
		return "not " + operand(n.Children[0], ast.Not, false)
	case ast.Neg:
		return "-" + operand(n.Children[0], ast.Neg, true)
	case ast.In:
		return inList(n, "in")
	case ast.Between:
		return operand(n.Children[0], ast.Between, false) + " between " +
			operand(n.Children[1], ast.Between, true) + " and " + operand(n.Children[2], ast.Between, true)
	case ast.And, ast.Or:
		parts := make([]string, len(n.Children))
		for i, c := range n.Children {
			parts[i] = operand(c, n.Kind, true)
		}
		return strings.Join(parts, " "+n.Kind.Operator()+" ")
	}

	// left-associative binary operators
	return operand(n.Children[0], n.Kind, false) + " " + n.Kind.Operator() + " " + operand(n.Children[1], n.Kind, true)
}

func inList(n *ast.Node, op string) string {
	items := make([]string, len(n.Children)-1)
	for i, c := range n.Children[1:] {
		items[i] = expr(c)
	}
	return operand(n.Children[0], ast.In, false) + " " + op + " (" + strings.Join(items, ", ") + ")"
}
