package parser

import (
	"sort"
	"strings"

	"github.com/sambeau/seqmacro/pkg/macro/ast"
)

// Operand costs used to order AND/OR operands so that cheap tests run
// before expensive ones when WHERE evaluation stops early.
const (
	costEquality      = 1
	costIn            = 5
	costDefault       = 10
	costSequenceFetch = 100
)

// expensivePrefix marks host functions that fetch sequence data.
const expensivePrefix = "sequence_for"

// SortTree stably reorders the operands of every AND/OR node in the tree
// by static cost. The executor combines logical operands order-free, so the
// result of a side-effect free expression does not change.
func SortTree(n *ast.Node) {
	if n == nil {
		return
	}
	if (n.Kind == ast.And || n.Kind == ast.Or) && len(n.Children) > 1 {
		sort.SliceStable(n.Children, func(i, j int) bool {
			return nodeCost(n.Children[i]) < nodeCost(n.Children[j])
		})
	}
	for _, c := range n.Children {
		SortTree(c)
	}
	SortTree(n.Filter)
}

func nodeCost(n *ast.Node) int {
	switch n.Kind {
	case ast.Eq:
		if callsExpensive(n) {
			return costSequenceFetch
		}
		return costEquality
	case ast.In:
		if callsExpensive(n) {
			return costSequenceFetch
		}
		return costIn
	}
	return costDefault
}

// callsExpensive reports whether the first operand is a sequence fetch.
func callsExpensive(n *ast.Node) bool {
	if len(n.Children) == 0 {
		return false
	}
	first := n.Children[0]
	return first.Kind == ast.FunctionCall && strings.HasPrefix(strings.ToLower(first.Name), expensivePrefix)
}
