package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sambeau/seqmacro/pkg/macro/ast"
	"github.com/sambeau/seqmacro/pkg/macro/format"
	"github.com/sambeau/seqmacro/pkg/macro/value"
)

func newRunCommand(a *app) *cobra.Command {
	var (
		macroName string
		params    []string
	)
	cmd := &cobra.Command{
		Use:   "run SCRIPT",
		Short: "Run the macros of a script over the record store",
		Example: `  seqmacro run tag.macro
  seqmacro run tag.macro --macro tag_kinases --param limit=10`,
		Args: cobra.ExactArgs(1),
	}
	cmd.Flags().StringVarP(&macroName, "macro", "m", "", "run only the named macro")
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "set a macro variable (NAME=VALUE, repeatable)")

	cmd.RunE = a.action(func(cmd *cobra.Command, args []string) error {
		script, err := a.compileFile(args[0])
		if err != nil {
			return err
		}
		macros, err := selectMacros(script, macroName)
		if err != nil {
			return err
		}
		values, err := parseParams(params)
		if err != nil {
			return err
		}
		src, err := a.source()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		failed := 0
		for _, m := range macros {
			if err := checkAsked(m, values); err != nil {
				return err
			}
			report, err := a.engine().RunWithParams(ctx, m, src, values)
			if err != nil {
				return fmt.Errorf("running %s: %w", m.Name, err)
			}
			fmt.Fprintln(a.stdout, report.String())
			for _, rerr := range report.Errors {
				fmt.Fprintf(a.stderr, "  %s\n", rerr.Error())
			}
			failed += report.Failed()
		}
		if failed > 0 {
			return fmt.Errorf("%d records failed", failed)
		}
		return nil
	})
	return cmd
}

func newCheckCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check SCRIPT...",
		Short: "Compile scripts and report errors without running them",
		Args:  cobra.MinimumNArgs(1),
	}
	cmd.RunE = a.action(func(cmd *cobra.Command, args []string) error {
		bad := 0
		for _, path := range args {
			script, err := a.compileFile(path)
			if err != nil {
				fmt.Fprintln(a.stdout, err)
				bad++
				continue
			}
			fmt.Fprintf(a.stdout, "%s: ok (%s)\n", path, plural(len(script.Macros), "macro"))
		}
		if bad > 0 {
			return fmt.Errorf("%d of %d scripts have errors", bad, len(args))
		}
		return nil
	})
	return cmd
}

func newFmtCommand(a *app) *cobra.Command {
	var write bool
	cmd := &cobra.Command{
		Use:   "fmt SCRIPT",
		Short: "Print a script in canonical form",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().BoolVarP(&write, "write", "w", false, "write the result back to the file")

	cmd.RunE = a.action(func(cmd *cobra.Command, args []string) error {
		path := args[0]
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		script, err := a.compile(path, string(data))
		if err != nil {
			return err
		}
		out := format.Script(script)
		if !write {
			_, err := io.WriteString(a.stdout, out)
			return err
		}
		if bytes.Equal(data, []byte(out)) {
			return nil
		}
		a.logger.WithField("path", path).Info("formatted")
		return os.WriteFile(path, []byte(out), 0644)
	})
	return cmd
}

func newExportCommand(a *app) *cobra.Command {
	var (
		compress bool
		output   string
	)
	cmd := &cobra.Command{
		Use:   "export SCRIPT",
		Short: "Write a YAML description of a script's macros",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().BoolVar(&compress, "zstd", false, "compress the export (default: export.compress)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to a file instead of stdout")

	cmd.RunE = a.action(func(cmd *cobra.Command, args []string) error {
		script, err := a.compileFile(args[0])
		if err != nil {
			return err
		}
		if !cmd.Flags().Changed("zstd") {
			compress = a.cfg.Export.Compress
		}
		if output == "" {
			return format.Export(a.stdout, script, compress)
		}
		f, err := os.Create(output)
		if err != nil {
			return err
		}
		if err := format.Export(f, script, compress); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	})
	return cmd
}

func (a *app) compileFile(path string) (*ast.Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return a.compile(path, string(data))
}

func (a *app) compile(path, src string) (*ast.Script, error) {
	script, err := a.engine().Compile(src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	a.logger.WithFields(log.Fields{"path": path, "macros": len(script.Macros)}).Debug("compiled script")
	return script, nil
}

// selectMacros returns every macro of script, or the one called name.
func selectMacros(script *ast.Script, name string) ([]*ast.Macro, error) {
	if name == "" {
		if len(script.Macros) == 0 {
			return nil, fmt.Errorf("script defines no macros")
		}
		return script.Macros, nil
	}
	var names []string
	for _, m := range script.Macros {
		if strings.EqualFold(m.Name, name) {
			return []*ast.Macro{m}, nil
		}
		names = append(names, m.Name)
	}
	return nil, fmt.Errorf("no macro %q in script (have: %s)", name, strings.Join(names, ", "))
}

// parseParams reads NAME=VALUE pairs. Values are YAML scalars or flow
// lists of strings, so 3, 2.5, true and [a, b] keep their types; anything
// else is taken as a string.
func parseParams(pairs []string) (map[string]value.Value, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]value.Value, len(pairs))
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --param %q: expected NAME=VALUE", pair)
		}
		var parsed any
		if err := yaml.Unmarshal([]byte(raw), &parsed); err != nil {
			parsed = raw
		}
		v := value.FromAny(parsed)
		if v.IsNotSet() {
			v = value.NewString(raw)
		}
		out[name] = v
	}
	return out, nil
}

// checkAsked fails when a macro parameter or asked variable was not passed.
func checkAsked(m *ast.Macro, params map[string]value.Value) error {
	passed := func(name string) bool {
		for p := range params {
			if strings.EqualFold(p, name) {
				return true
			}
		}
		return false
	}
	for _, p := range m.Params {
		if !passed(p) {
			return fmt.Errorf("macro %s takes parameter %s: pass --param %s=VALUE", m.Name, p, p)
		}
	}
	for _, v := range m.Vars {
		if v.Ask && !passed(v.Name) {
			return fmt.Errorf("macro %s asks for %s (%s): pass --param %s=VALUE", m.Name, v.Name, v.Default.Text(), v.Name)
		}
	}
	return nil
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}
