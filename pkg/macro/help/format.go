package help

import (
	"bytes"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
)

// FormatText formats a TopicResult for terminal output with the given width.
func FormatText(result *TopicResult, width int) string {
	if width <= 0 {
		width = 80
	}

	var sb strings.Builder
	switch result.Kind {
	case KindFunction:
		formatFunctionText(&sb, result.Functions[0], width)
	case KindFunctionList:
		formatFunctionListText(&sb, result, width)
	case KindOperatorList:
		formatOperatorListText(&sb, result, width)
	case KindKeywordList:
		fmt.Fprintf(&sb, "%s\n\n", result.Description)
		sb.WriteString(wrapWords(result.Keywords, ", ", width))
	default:
		fmt.Fprintf(&sb, "Unknown result kind: %s\n", result.Kind)
	}
	return sb.String()
}

// FormatJSON formats a TopicResult as JSON.
func FormatJSON(result *TopicResult) ([]byte, error) {
	return json.MarshalIndent(result, "", "  ")
}

func formatFunctionText(sb *strings.Builder, f FunctionInfo, width int) {
	fmt.Fprintf(sb, "Function: %s\n\n", f.Signature())
	if f.Description != "" {
		sb.WriteString(wrap(f.Description, width, ""))
		sb.WriteString("\n")
	}
	fmt.Fprintf(sb, "Clauses:   %s\n", strings.Join(f.Clauses, ", "))
	if f.Arity != "" {
		fmt.Fprintf(sb, "Arguments: %s\n", f.Arity)
	}
}

func formatFunctionListText(sb *strings.Builder, result *TopicResult, width int) {
	fmt.Fprintf(sb, "%s\n\n", result.Description)
	if len(result.Functions) == 0 {
		sb.WriteString("(no functions registered)\n")
		return
	}

	maxLen := 0
	for _, f := range result.Functions {
		maxLen = max(maxLen, len(f.Signature()))
	}
	for _, f := range result.Functions {
		sig := f.Signature()
		prefix := "  " + sig + strings.Repeat(" ", maxLen-len(sig)+2)
		if len(prefix)+20 > width {
			fmt.Fprintf(sb, "  %s\n%s", sig, wrap(f.Description, width, "      "))
			continue
		}
		sb.WriteString(prefix)
		sb.WriteString(strings.TrimLeft(wrap(f.Description, width, strings.Repeat(" ", len(prefix))), " "))
	}
}

func formatOperatorListText(sb *strings.Builder, result *TopicResult, width int) {
	fmt.Fprintf(sb, "%s\n\n", result.Description)
	maxLen := 0
	for _, op := range result.Operators {
		maxLen = max(maxLen, len(op.Symbol))
	}
	for _, op := range result.Operators {
		prefix := "  " + op.Symbol + strings.Repeat(" ", maxLen-len(op.Symbol)+2)
		sb.WriteString(prefix)
		sb.WriteString(strings.TrimLeft(wrap(op.Description, width, strings.Repeat(" ", len(prefix))), " "))
	}
}

// wrap breaks text into lines no longer than width, each starting with
// indent, and ends it with a newline.
func wrap(text string, width int, indent string) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return "\n"
	}
	var sb strings.Builder
	line := indent + words[0]
	for _, w := range words[1:] {
		if len(line)+1+len(w) > width {
			sb.WriteString(line + "\n")
			line = indent + w
			continue
		}
		line += " " + w
	}
	sb.WriteString(line + "\n")
	return sb.String()
}

func wrapWords(words []string, sep string, width int) string {
	var sb strings.Builder
	line := ""
	for i, w := range words {
		item := w
		if i < len(words)-1 {
			item += strings.TrimRight(sep, " ")
		}
		switch {
		case line == "":
			line = item
		case len(line)+1+len(item) > width:
			sb.WriteString(line + "\n")
			line = item
		default:
			line += " " + item
		}
	}
	if line != "" {
		sb.WriteString(line + "\n")
	}
	return sb.String()
}

// Markdown renders a TopicResult as a Markdown document.
func Markdown(result *TopicResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", result.Name)
	if result.Description != "" {
		fmt.Fprintf(&sb, "%s\n\n", result.Description)
	}

	switch result.Kind {
	case KindFunction:
		f := result.Functions[0]
		fmt.Fprintf(&sb, "`%s`\n\n", f.Signature())
		fmt.Fprintf(&sb, "- Clauses: %s\n", strings.Join(f.Clauses, ", "))
		if f.Arity != "" {
			fmt.Fprintf(&sb, "- Arguments: %s\n", f.Arity)
		}
	case KindFunctionList:
		sb.WriteString("| Function | Clauses | Description |\n|---|---|---|\n")
		for _, f := range result.Functions {
			fmt.Fprintf(&sb, "| `%s` | %s | %s |\n", f.Signature(), strings.Join(f.Clauses, ", "), cell(f.Description))
		}
	case KindOperatorList:
		sb.WriteString("| Operator | Node | Description |\n|---|---|---|\n")
		for _, op := range result.Operators {
			fmt.Fprintf(&sb, "| `%s` | %s | %s |\n", op.Symbol, op.Kind, cell(op.Description))
		}
	case KindKeywordList:
		for _, k := range result.Keywords {
			fmt.Fprintf(&sb, "- `%s`\n", k)
		}
	}
	return sb.String()
}

// cell escapes the pipe so that text stays in one table cell.
func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// RenderHTML renders a TopicResult as an HTML fragment.
func RenderHTML(result *TopicResult) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(Markdown(result)), &buf); err != nil {
		return "", fmt.Errorf("rendering %s: %w", result.Name, err)
	}
	return buf.String(), nil
}
