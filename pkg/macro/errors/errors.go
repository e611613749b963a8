// Package errors provides the structured error type shared by the macro
// scanner, parser and executor.
//
// Every failure that reaches a caller of Parse or EvaluateTree is a
// *MacroError carrying a catalog code, a rendered message, optional hints
// and the source location of the offending lexeme or node.
package errors

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/agext/levenshtein"
)

// ErrorClass categorizes errors for filtering and display.
type ErrorClass string

const (
	ClassLex      ErrorClass = "lex"      // Illegal characters, unterminated or oversized strings
	ClassParse    ErrorClass = "parse"    // Grammar violations
	ClassResolve  ErrorClass = "resolve"  // Names the host does not know
	ClassExec     ErrorClass = "exec"     // Operator/evaluator failures
	ClassContract ErrorClass = "contract" // Wrong argument count or type for a function
)

// ReportMode selects how a location is rendered in a message.
type ReportMode int

const (
	ReportLineColumn ReportMode = iota // "Line L, Pos C"
	ReportOffset                       // "Pos N", N is the 1-based absolute offset
)

// ParseReportMode maps a configuration value to a ReportMode.
func ParseReportMode(s string) (ReportMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "line", "line_column", "linecolumn":
		return ReportLineColumn, nil
	case "offset", "pos", "position":
		return ReportOffset, nil
	}
	return ReportLineColumn, fmt.Errorf("unknown error report mode %q (want \"line\" or \"offset\")", s)
}

func (m ReportMode) String() string {
	if m == ReportOffset {
		return "offset"
	}
	return "line"
}

// MacroError represents any error from scanning, parsing or execution.
type MacroError struct {
	Class   ErrorClass     `json:"class"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Hints   []string       `json:"hints,omitempty"`
	Line    int            `json:"line"`   // 1-based (0 if unknown)
	Column  int            `json:"column"` // 1-based (0 if unknown)
	Offset  int            `json:"offset"` // 0-based byte offset (-1 if unknown)
	Report  ReportMode     `json:"-"`
	Data    map[string]any `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *MacroError) Error() string {
	return e.String()
}

// String renders the error the way the macro editor shows it, e.g.
// "[Parsing error] Line 3, Pos 7: unknown function name: 'Foo'".
func (e *MacroError) String() string {
	var sb strings.Builder

	sb.WriteString(e.header())
	sb.WriteString(" ")
	if loc := e.Location(); loc != "" {
		sb.WriteString(loc)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Message)

	for _, hint := range e.Hints {
		sb.WriteString("\n  ")
		sb.WriteString(hint)
	}
	return sb.String()
}

func (e *MacroError) header() string {
	switch e.Class {
	case ClassLex, ClassParse:
		return "[Parsing error]"
	default:
		return "[Execution error]"
	}
}

// Location returns the position part of the message in the selected
// report mode, or "" when the position is unknown.
func (e *MacroError) Location() string {
	if e.Report == ReportOffset {
		if e.Offset < 0 {
			return ""
		}
		return fmt.Sprintf("Pos %d", e.Offset+1)
	}
	if e.Line <= 0 {
		return ""
	}
	return fmt.Sprintf("Line %d, Pos %d", e.Line, e.Column)
}

// ToJSON returns the error as JSON bytes.
func (e *MacroError) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// WithPosition returns a copy of the error with its location set.
func (e *MacroError) WithPosition(line, column, offset int) *MacroError {
	cp := *e
	cp.Line = line
	cp.Column = column
	cp.Offset = offset
	return &cp
}

// WithReport returns a copy of the error rendered in the given mode.
func (e *MacroError) WithReport(mode ReportMode) *MacroError {
	cp := *e
	cp.Report = mode
	return &cp
}

// IsParseError reports whether the error was raised before execution.
func (e *MacroError) IsParseError() bool {
	return e.Class == ClassParse || e.Class == ClassLex
}

// IsExecError reports whether the error was raised while evaluating a tree.
func (e *MacroError) IsExecError() bool {
	return e.Class == ClassExec || e.Class == ClassContract || e.Class == ClassResolve
}

// ErrorDef defines an error in the catalog.
type ErrorDef struct {
	Class    ErrorClass
	Template string   // Message template with {{.placeholders}}
	Hints    []string // Hint templates
}

// ErrorCatalog maps error codes to their definitions.
var ErrorCatalog = map[string]ErrorDef{
	// Lexical errors
	"LEX-0001": {Class: ClassLex, Template: "symbol is not allowed: '{{.Char}}'"},
	"LEX-0002": {Class: ClassLex, Template: "string is not closed"},
	"LEX-0003": {
		Class:    ClassLex,
		Template: "string is too long (more than {{.Limit}} characters)",
		Hints:    []string{"split the value into several shorter strings"},
	},
	"LEX-0004": {Class: ClassLex, Template: "invalid number literal: {{.Literal}}"},

	// Parse errors
	"PARSE-0001": {Class: ClassParse, Template: "keyword 'MACRO' expected instead of '{{.Got}}'"},
	"PARSE-0002": {Class: ClassParse, Template: "{{.Expected}} expected instead of '{{.Got}}'"},
	"PARSE-0003": {Class: ClassParse, Template: "unknown function name: '{{.Name}}'"},
	"PARSE-0004": {Class: ClassParse, Template: "function name or 'DONE' expected instead of '{{.Got}}'"},
	"PARSE-0005": {Class: ClassParse, Template: "number of threads is expected to be a positive, non-zero integer"},
	"PARSE-0006": {
		Class:    ClassParse,
		Template: "range was not specified as expected: '[start, stop]'",
		Hints:    []string{"range [0, 10]"},
	},
	"PARSE-0007": {Class: ClassParse, Template: "variable '{{.Name}}' is declared more than once"},
	"PARSE-0008": {Class: ClassParse, Template: "unexpected '{{.Got}}' after the end of the macro"},
	"PARSE-0009": {Class: ClassParse, Template: "expression expected instead of '{{.Got}}'"},
	"PARSE-0010": {Class: ClassParse, Template: "macro name expected instead of '{{.Got}}'"},
	"PARSE-0011": {Class: ClassParse, Template: "value of variable '{{.Name}}' expected instead of '{{.Got}}'"},
	"PARSE-0012": {Class: ClassParse, Template: "selector expected after 'FOR EACH' instead of '{{.Got}}'"},
	"PARSE-0013": {Class: ClassParse, Template: "named annotation expected after 'FROM' instead of '{{.Got}}'"},
	"PARSE-0014": {Class: ClassParse, Template: "choice list must contain at least one value"},
	"PARSE-0015": {
		Class:    ClassParse,
		Template: "'.' is not allowed after the arguments of '{{.Name}}'",
		Hints:    []string{"put the argument in quotes: \"{{.Name}}(...).field\""},
	},
	"PARSE-0016": {Class: ClassParse, Template: "'{{.Name}}' is a parameter and cannot be declared as a variable"},
	"PARSE-0017": {Class: ClassParse, Template: "start and stop positions are expected to be non-negative integers"},
	"PARSE-0018": {Class: ClassParse, Template: "start position should be less than or equal to the stop position"},

	// Execution errors
	"EXEC-0001": {Class: ClassExec, Template: "no evaluator registered for node kind {{.Kind}}"},
	"EXEC-0002": {Class: ClassExec, Template: "operator '{{.Op}}' cannot be applied to {{.Types}}"},
	"EXEC-0003": {Class: ClassExec, Template: "operator '{{.Op}}' expects {{.Expected}} operands, got {{.Got}}"},
	"EXEC-0004": {Class: ClassExec, Template: "division by zero"},
	"EXEC-0005": {Class: ClassExec, Template: "reference chain of '{{.Name}}' exceeds {{.Limit}} hops"},
	"EXEC-0006": {Class: ClassExec, Template: "cannot assign {{.Type}} to '{{.Name}}'"},
	"EXEC-0007": {Class: ClassResolve, Template: "unknown function: '{{.Name}}'"},
	"EXEC-0008": {Class: ClassContract, Template: "'{{.Name}}' expects {{.Expected}} argument(s), got {{.Got}}"},
	"EXEC-0009": {Class: ClassContract, Template: "argument {{.Index}} of '{{.Name}}' must be {{.Expected}}, got {{.Got}}"},
	"EXEC-0010": {Class: ClassResolve, Template: "unknown identifier: '{{.Name}}'"},
}

// New creates a MacroError from the catalog. An unknown code yields a
// generic exec error whose message is data["message"] or the code itself.
func New(code string, data map[string]any) *MacroError {
	def, ok := ErrorCatalog[code]
	if !ok {
		msg := code
		if m, ok := data["message"].(string); ok {
			msg = m
		}
		return &MacroError{Class: ClassExec, Code: code, Message: msg, Offset: -1, Data: data}
	}

	var hints []string
	for _, h := range def.Hints {
		if rendered := renderTemplate(h, data); rendered != "" {
			hints = append(hints, rendered)
		}
	}

	return &MacroError{
		Class:   def.Class,
		Code:    code,
		Message: renderTemplate(def.Template, data),
		Hints:   hints,
		Offset:  -1,
		Data:    data,
	}
}

// NewAt creates a catalog error located at the given position.
func NewAt(code string, line, column, offset int, data map[string]any) *MacroError {
	err := New(code, data)
	err.Line = line
	err.Column = column
	err.Offset = offset
	return err
}

// NewSimple creates an error without using the catalog.
func NewSimple(class ErrorClass, message string) *MacroError {
	return &MacroError{Class: class, Message: message, Offset: -1}
}

func renderTemplate(tmplStr string, data map[string]any) string {
	if data == nil {
		return tmplStr
	}
	tmpl, err := template.New("").Parse(tmplStr)
	if err != nil {
		return tmplStr
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return tmplStr
	}
	return buf.String()
}

// NewUnknownFunction reports a call to a name missing from the active
// function table, suggesting the closest legal name.
func NewUnknownFunction(name string, line, column, offset int, known []string) *MacroError {
	err := NewAt("PARSE-0003", line, column, offset, map[string]any{"Name": name})
	if suggestion := FindClosestMatch(name, known); suggestion != "" {
		err.Hints = append(err.Hints, "Did you mean `"+suggestion+"`?")
	}
	return err
}

// threshold grows with the input: 1 edit for short names, up to 3 for long ones.
func threshold(input string) int {
	switch {
	case len(input) >= 7:
		return 3
	case len(input) >= 4:
		return 2
	}
	return 1
}

// FindClosestMatch finds the closest candidate (case-insensitive) within an
// edit-distance threshold. Exact matches and distant names yield "".
func FindClosestMatch(input string, candidates []string) string {
	if matches := FindTopMatches(input, candidates, 1); len(matches) > 0 {
		return matches[0]
	}
	return ""
}

// FindTopMatches returns up to n candidates within the threshold, closest first.
func FindTopMatches(input string, candidates []string, n int) []string {
	if len(input) == 0 || len(candidates) == 0 || n <= 0 {
		return nil
	}

	type match struct {
		value    string
		distance int
	}
	inputLower := strings.ToLower(input)
	limit := threshold(input)

	var matches []match
	for _, c := range candidates {
		d := levenshtein.Distance(inputLower, strings.ToLower(c), nil)
		if d > 0 && d <= limit {
			matches = append(matches, match{c, d})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].distance < matches[j].distance })

	var out []string
	for i := 0; i < len(matches) && i < n; i++ {
		out = append(out, matches[i].value)
	}
	return out
}
