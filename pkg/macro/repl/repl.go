// Package repl is an interactive console for macros. A line starting with
// MACRO is read up to its DONE, compiled and run over the records; any other
// line is a WHERE query and lists the records it matches.
package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/peterh/liner"

	"github.com/sambeau/seqmacro/pkg/macro/ast"
	"github.com/sambeau/seqmacro/pkg/macro/engine"
	"github.com/sambeau/seqmacro/pkg/macro/format"
	"github.com/sambeau/seqmacro/pkg/macro/help"
	"github.com/sambeau/seqmacro/pkg/macro/lexer"
)

const (
	PROMPT              = ">> "
	CONTINUATION_PROMPT = ".. "
)

const HistoryFileName = ".seqmacro_history"

var commands = []string{":help", ":describe", ":macros", ":run", ":fmt", ":records", ":quit"}

// Session holds the console state. It is independent of the terminal so
// that input can be fed from anywhere.
type Session struct {
	eng    *engine.Engine
	src    engine.RecordSource
	out    io.Writer
	macros map[string]*ast.Macro
	buf    strings.Builder
}

func NewSession(eng *engine.Engine, src engine.RecordSource, out io.Writer) *Session {
	return &Session{eng: eng, src: src, out: out, macros: map[string]*ast.Macro{}}
}

// Prompt returns the prompt for the next line.
func (s *Session) Prompt() string {
	if s.buf.Len() > 0 {
		return CONTINUATION_PROMPT
	}
	return PROMPT
}

// Pending reports whether a macro is partly read.
func (s *Session) Pending() bool { return s.buf.Len() > 0 }

// Cancel drops a partly read macro.
func (s *Session) Cancel() { s.buf.Reset() }

// Feed handles one line of input. It returns the complete input once a
// statement is finished, for the history, and quit when the user asked to
// leave.
func (s *Session) Feed(ctx context.Context, line string) (entry string, quit bool) {
	trimmed := strings.TrimSpace(line)
	if s.buf.Len() == 0 {
		switch {
		case trimmed == "":
			return "", false
		case trimmed == "exit" || trimmed == "quit" || trimmed == ":quit":
			return "", true
		case strings.HasPrefix(trimmed, ":"):
			s.command(ctx, trimmed)
			return trimmed, false
		}
	}

	if s.buf.Len() > 0 {
		s.buf.WriteString("\n")
	}
	s.buf.WriteString(line)
	input := s.buf.String()
	if needsMoreInput(input) {
		return "", false
	}
	s.buf.Reset()

	if startsMacro(input) {
		s.define(ctx, input)
	} else {
		s.query(ctx, input)
	}
	return input, false
}

// define compiles every macro of input and runs it.
func (s *Session) define(ctx context.Context, input string) {
	script, err := s.eng.Compile(input)
	if err != nil {
		fmt.Fprintln(s.out, err)
		return
	}
	for _, m := range script.Macros {
		s.macros[strings.ToLower(m.Name)] = m
		s.run(ctx, m)
	}
}

func (s *Session) run(ctx context.Context, m *ast.Macro) {
	report, err := s.eng.Run(ctx, m, s.src)
	if err != nil {
		fmt.Fprintln(s.out, err)
		return
	}
	fmt.Fprintln(s.out, report)
	for _, e := range report.Errors {
		fmt.Fprintf(s.out, "  %s\n", e)
	}
}

// query lists the records for which where holds.
func (s *Session) query(ctx context.Context, where string) {
	items, err := s.src.Items(ctx, ast.Target{})
	if err != nil {
		fmt.Fprintln(s.out, err)
		return
	}
	probe := &ast.Macro{}
	var ids []string
	for _, item := range items {
		ok, err := s.eng.Match(where, s.src.Resolver(item, probe))
		if err != nil {
			fmt.Fprintln(s.out, err)
			return
		}
		if ok {
			ids = append(ids, item.ID)
		}
	}
	for _, id := range ids {
		fmt.Fprintf(s.out, "  %s\n", id)
	}
	fmt.Fprintf(s.out, "%d of %d records match\n", len(ids), len(items))
}

func (s *Session) command(ctx context.Context, input string) {
	cmd, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case ":help", ":h", ":?":
		fmt.Fprintln(s.out, "Commands:")
		fmt.Fprintln(s.out, "  :help              Show this help")
		fmt.Fprintln(s.out, "  :describe TOPIC    Describe a function or one of: "+strings.Join(help.Topics(), ", "))
		fmt.Fprintln(s.out, "  :macros            List the macros defined in this session")
		fmt.Fprintln(s.out, "  :run NAME          Run a defined macro again")
		fmt.Fprintln(s.out, "  :fmt NAME          Print a defined macro in canonical form")
		fmt.Fprintln(s.out, "  :records           List the records of the default collection")
		fmt.Fprintln(s.out, "  exit, quit         Leave the console")
		fmt.Fprintln(s.out, "")
		fmt.Fprintln(s.out, "Lines starting with MACRO define and run a macro; other lines are WHERE queries.")

	case ":describe", ":d":
		result, err := help.DescribeTopic(arg, s.eng.Functions())
		if err != nil {
			fmt.Fprintln(s.out, err)
			return
		}
		io.WriteString(s.out, help.FormatText(result, 80))

	case ":macros":
		names := make([]string, 0, len(s.macros))
		for _, m := range s.macros {
			names = append(names, m.Name)
		}
		sort.Strings(names)
		if len(names) == 0 {
			fmt.Fprintln(s.out, "(no macros defined)")
		}
		for _, n := range names {
			fmt.Fprintf(s.out, "  %s\n", n)
		}

	case ":run", ":fmt":
		m, ok := s.macros[strings.ToLower(arg)]
		if !ok {
			fmt.Fprintf(s.out, "Unknown macro: %q\n", arg)
			return
		}
		if cmd == ":run" {
			s.run(ctx, m)
		} else {
			io.WriteString(s.out, format.Macro(m))
		}

	case ":records":
		items, err := s.src.Items(ctx, ast.Target{})
		if err != nil {
			fmt.Fprintln(s.out, err)
			return
		}
		for _, item := range items {
			fmt.Fprintf(s.out, "  %s\n", item.ID)
		}
		fmt.Fprintf(s.out, "%d records\n", len(items))

	default:
		fmt.Fprintf(s.out, "Unknown command: %s (type :help for commands)\n", cmd)
	}
}

// Complete returns the lines that complete the word under the cursor with
// a command, keyword or function name.
func (s *Session) Complete(line string) []string {
	if line == "" || line[len(line)-1] == ' ' || line[len(line)-1] == '\t' {
		return nil
	}
	start := strings.LastIndexFunc(line, func(r rune) bool {
		return !(r == '_' || r == ':' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z')
	}) + 1
	head, word := line[:start], line[start:]
	if word == "" {
		return nil
	}

	var candidates []string
	if strings.HasPrefix(word, ":") {
		candidates = commands
	} else {
		candidates = append(lexer.Keywords(), s.eng.Functions().Names()...)
	}
	var matches []string
	for _, c := range candidates {
		if len(c) >= len(word) && strings.EqualFold(c[:len(word)], word) {
			matches = append(matches, head+c)
		}
	}
	sort.Strings(matches)
	return matches
}

func startsMacro(input string) bool {
	return lexer.New(input).Next(false).Is(lexer.MACRO)
}

// needsMoreInput reports whether input opens more macros than it closes,
// or ends inside a string.
func needsMoreInput(input string) bool {
	if !startsMacro(input) {
		return false
	}
	s := lexer.New(input)
	open := 0
	for {
		tok := s.Next(false)
		switch tok.Type {
		case lexer.EOF:
			return open > 0
		case lexer.ILLEGAL:
			return tok.Err != nil && tok.Err.Code == "LEX-0002"
		case lexer.MACRO:
			open++
		case lexer.DONE:
			open--
		}
	}
}

// Options configures the terminal console.
type Options struct {
	// HistoryFile defaults to HistoryFileName in the home directory.
	HistoryFile string
	Banner      string
}

// Start runs the console on the terminal until EOF or exit.
func Start(ctx context.Context, sess *Session, opts Options) error {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(sess.Complete)

	historyFile := opts.HistoryFile
	if historyFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = os.TempDir()
		}
		historyFile = filepath.Join(home, HistoryFileName)
	}
	if f, err := os.Open(historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(historyFile); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	if opts.Banner != "" {
		fmt.Fprintln(sess.out, opts.Banner)
	}
	fmt.Fprintln(sess.out, "Type ':help' for commands, Tab for completion, Ctrl+D to quit")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		input, err := line.Prompt(sess.Prompt())
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				if sess.Pending() {
					fmt.Fprintln(sess.out, "^C (cleared)")
				}
				sess.Cancel()
				continue
			}
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(sess.out)
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}

		entry, quit := sess.Feed(ctx, input)
		if entry != "" {
			line.AppendHistory(entry)
		}
		if quit {
			return nil
		}
	}
}
