// Package format prints compiled macros back as canonical source and
// exports them as YAML documents.
package format

// MaxLineWidth is the target maximum line length.
const MaxLineWidth = 92

// WhereThreshold is the width above which a WHERE clause is split before
// each top-level and/or operand.
var WhereThreshold = MaxLineWidth * 80 / 100

const (
	IndentWidth  = 2
	IndentString = "  "
)

// BlankLinesBetweenMacros separates macros in a formatted script.
const BlankLinesBetweenMacros = 1
