// Package ast defines the executable tree built by the parser and the
// compiled representation of a macro.
package ast

import (
	"fmt"
	"strings"

	"github.com/sambeau/seqmacro/pkg/macro/lexer"
	"github.com/sambeau/seqmacro/pkg/macro/value"
)

// Kind identifies what a node does when evaluated.
type Kind int

const (
	Const Kind = iota
	Identifier
	RTVar
	FunctionCall
	Assignment

	// Logical
	And
	Or
	Xor
	Not

	// Comparison
	Eq
	NotEq
	Less
	LessEq
	Greater
	GreaterEq
	Like
	In
	Between

	// Arithmetic
	Add
	Sub
	Mul
	Div
	Neg

	kindCount
)

var kindNames = [...]string{
	Const:        "Const",
	Identifier:   "Identifier",
	RTVar:        "RTVar",
	FunctionCall: "FunctionCall",
	Assignment:   "Assignment",
	And:          "And",
	Or:           "Or",
	Xor:          "Xor",
	Not:          "Not",
	Eq:           "Eq",
	NotEq:        "NotEq",
	Less:         "Less",
	LessEq:       "LessEq",
	Greater:      "Greater",
	GreaterEq:    "GreaterEq",
	Like:         "Like",
	In:           "In",
	Between:      "Between",
	Add:          "Add",
	Sub:          "Sub",
	Mul:          "Mul",
	Div:          "Div",
	Neg:          "Neg",
}

func (k Kind) String() string {
	if k >= 0 && k < kindCount {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Kinds lists every node kind the parser can produce.
func Kinds() []Kind {
	out := make([]Kind, 0, int(kindCount))
	for k := Const; k < kindCount; k++ {
		out = append(out, k)
	}
	return out
}

// Operator returns the source spelling of an operator kind, or "".
func (k Kind) Operator() string {
	switch k {
	case And:
		return "and"
	case Or:
		return "or"
	case Xor:
		return "xor"
	case Not:
		return "not"
	case Eq:
		return "="
	case NotEq:
		return "<>"
	case Less:
		return "<"
	case LessEq:
		return "<="
	case Greater:
		return ">"
	case GreaterEq:
		return ">="
	case Like:
		return "like"
	case In:
		return "in"
	case Between:
		return "between"
	case Add:
		return "+"
	case Sub, Neg:
		return "-"
	case Mul:
		return "*"
	case Div:
		return "/"
	}
	return ""
}

// IsLogical reports whether k combines boolean operands.
func (k Kind) IsLogical() bool {
	return k == And || k == Or || k == Xor || k == Not
}

// IsComparison reports whether k compares its operands.
func (k Kind) IsComparison() bool {
	return k >= Eq && k <= Between
}

// IsArithmetic reports whether k computes a number or concatenation.
func (k Kind) IsArithmetic() bool {
	return k >= Add && k <= Neg
}

// Node is one node of an executable tree. The structure is fixed once the
// parser returns; only Value changes during evaluation.
type Node struct {
	Kind     Kind
	Name     string      // identifier, variable or function name
	Literal  value.Value // payload of a Const node
	Children []*Node
	Filter   *Node // per-statement WHERE of a DO statement
	Loc      lexer.Location

	Value value.Value
}

// NewNode creates a node with the given children.
func NewNode(kind Kind, loc lexer.Location, children ...*Node) *Node {
	return &Node{Kind: kind, Loc: loc, Children: children}
}

// NewConst creates a literal node.
func NewConst(v value.Value, loc lexer.Location) *Node {
	return &Node{Kind: Const, Literal: v, Loc: loc}
}

// Clone deep-copies the tree. Evaluated values are not copied.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	cp := &Node{Kind: n.Kind, Name: n.Name, Literal: n.Literal, Loc: n.Loc}
	if len(n.Children) > 0 {
		cp.Children = make([]*Node, len(n.Children))
		for i, c := range n.Children {
			cp.Children[i] = c.Clone()
		}
	}
	cp.Filter = n.Filter.Clone()
	return cp
}

// Reset clears the evaluated value of every node in the tree, filters
// included.
func (n *Node) Reset() {
	if n == nil {
		return
	}
	n.Value.SetNotSet()
	for _, c := range n.Children {
		c.Reset()
	}
	n.Filter.Reset()
}

// Walk visits the tree in pre-order, filters after children. Returning
// false from fn skips the node's subtree.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
	n.Filter.Walk(fn)
}

// FunctionNames returns the distinct function names called in the tree, in
// order of first appearance.
func (n *Node) FunctionNames() []string {
	var names []string
	seen := map[string]bool{}
	n.Walk(func(x *Node) bool {
		if x.Kind == FunctionCall && !seen[strings.ToLower(x.Name)] {
			seen[strings.ToLower(x.Name)] = true
			names = append(names, x.Name)
		}
		return true
	})
	return names
}

// String renders the tree as a fully parenthesized expression. It is meant
// for diagnostics and tests; the format package produces canonical source.
func (n *Node) String() string {
	if n == nil {
		return ""
	}
	switch n.Kind {
	case Const:
		return n.Literal.String()
	case Identifier, RTVar:
		return n.Name
	case FunctionCall:
		args := make([]string, len(n.Children))
		for i, c := range n.Children {
			args[i] = c.String()
		}
		return n.Name + "(" + strings.Join(args, ", ") + ")"
	case Assignment:
		s := n.Children[0].String() + " = " + n.Children[1].String()
		if n.Filter != nil {
			s += " where " + n.Filter.String()
		}
		return s
	case Not, Neg:
		return "(" + n.Kind.Operator() + " " + n.Children[0].String() + ")"
	case In:
		rest := make([]string, len(n.Children)-1)
		for i, c := range n.Children[1:] {
			rest[i] = c.String()
		}
		return "(" + n.Children[0].String() + " in (" + strings.Join(rest, ", ") + "))"
	case Between:
		return "(" + n.Children[0].String() + " between " + n.Children[1].String() + " and " + n.Children[2].String() + ")"
	}

	parts := make([]string, len(n.Children))
	for i, c := range n.Children {
		parts[i] = c.String()
	}
	return "(" + strings.Join(parts, " "+n.Kind.Operator()+" ") + ")"
}
