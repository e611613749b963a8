package ast

import (
	"strings"

	"github.com/sambeau/seqmacro/pkg/macro/lexer"
	"github.com/sambeau/seqmacro/pkg/macro/value"
)

// Variable is a declared macro variable.
type Variable struct {
	Name    string
	Default value.Value
	Ask     bool          // value is asked of the user, Default holds the prompt
	Choices []value.Value // non-empty for `name = choice { ... }`, Default is the first
	Loc     lexer.Location
}

// Range restricts iteration to record ordinals Start..Stop inclusive.
type Range struct {
	Start, Stop int64
}

// Contains reports whether the 0-based ordinal i lies in the range.
func (r *Range) Contains(i int64) bool {
	return r == nil || (i >= r.Start && i <= r.Stop)
}

// Target describes what a macro iterates over.
type Target struct {
	Selector   string        // FOR EACH selector, "" when the macro has none
	NamedAnnot string        // FROM named annotation
	Range      *Range        // RANGE [start, stop]
	Choice     []value.Value // CHOICE { ... } restriction on record identifiers
}

// Macro is one compiled `macro ... done` block.
type Macro struct {
	Name     string
	Title    string
	Params   []string
	Keywords []string // from "#Keywords:" comments
	Vars     []*Variable
	ForEach  Target

	Where       *Node
	WhereSource string
	Do          []*Node

	Threads  int  // 0 when no hint was given
	Parallel bool // body opened with DO_P

	Source string
	Loc    lexer.Location
}

// Var returns the declared variable with the given name (case-insensitive).
func (m *Macro) Var(name string) *Variable {
	return m.FindVar(name, false)
}

// FindVar is Var with the name compared exactly when caseSensitive is set.
func (m *Macro) FindVar(name string, caseSensitive bool) *Variable {
	for _, v := range m.Vars {
		if sameName(v.Name, name, caseSensitive) {
			return v
		}
	}
	return nil
}

// HasParam reports whether name is one of the macro parameters.
func (m *Macro) HasParam(name string) bool {
	return m.FindParam(name, false)
}

// FindParam is HasParam with the name compared exactly when caseSensitive
// is set.
func (m *Macro) FindParam(name string, caseSensitive bool) bool {
	for _, p := range m.Params {
		if sameName(p, name, caseSensitive) {
			return true
		}
	}
	return false
}

func sameName(a, b string, caseSensitive bool) bool {
	if caseSensitive {
		return a == b
	}
	return strings.EqualFold(a, b)
}

// ThreadCount returns the thread hint, at least 1.
func (m *Macro) ThreadCount() int {
	if m.Threads < 1 {
		return 1
	}
	return m.Threads
}

// Clone returns a copy whose trees can be evaluated independently of the
// original. Declarations are shared, they are never written after parsing.
func (m *Macro) Clone() *Macro {
	cp := *m
	cp.Where = m.Where.Clone()
	cp.Do = make([]*Node, len(m.Do))
	for i, s := range m.Do {
		cp.Do[i] = s.Clone()
	}
	return &cp
}

// WhereFunctions lists the functions called from the WHERE clause.
func (m *Macro) WhereFunctions() []string {
	return m.Where.FunctionNames()
}

// DoFunctions lists the functions called from DO statements, filters
// included, in order of first appearance.
func (m *Macro) DoFunctions() []string {
	var names []string
	seen := map[string]bool{}
	for _, s := range m.Do {
		for _, name := range s.FunctionNames() {
			if key := strings.ToLower(name); !seen[key] {
				seen[key] = true
				names = append(names, name)
			}
		}
	}
	return names
}

// Script holds the macros parsed from one buffer.
type Script struct {
	Macros []*Macro
}

// Find returns the macro with the given name (case-insensitive).
func (s *Script) Find(name string) *Macro {
	for _, m := range s.Macros {
		if strings.EqualFold(m.Name, name) {
			return m
		}
	}
	return nil
}

// Names lists the macro names in source order.
func (s *Script) Names() []string {
	out := make([]string, len(s.Macros))
	for i, m := range s.Macros {
		out[i] = m.Name
	}
	return out
}
