package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sambeau/seqmacro/pkg/macro/help"
	"github.com/sambeau/seqmacro/pkg/macro/repl"
)

func newDescribeCommand(a *app) *cobra.Command {
	var (
		asJSON     bool
		asHTML     bool
		asMarkdown bool
		width      int
	)
	cmd := &cobra.Command{
		Use:   "describe [TOPIC]",
		Short: "Describe functions, operators and keywords",
		Long: fmt.Sprintf(`Describe a topic or a function by name.

Topics: %v`, help.Topics()),
		Args: cobra.MaximumNArgs(1),
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.Flags().BoolVar(&asHTML, "html", false, "print an HTML fragment")
	cmd.Flags().BoolVar(&asMarkdown, "markdown", false, "print Markdown")
	cmd.Flags().IntVar(&width, "width", 80, "wrap text output at this width")
	cmd.MarkFlagsMutuallyExclusive("json", "html", "markdown")

	cmd.RunE = a.action(func(cmd *cobra.Command, args []string) error {
		topic := "functions"
		if len(args) == 1 {
			topic = args[0]
		}
		result, err := help.DescribeTopic(topic, a.engine().Functions())
		if err != nil {
			return err
		}

		switch {
		case asJSON:
			data, err := help.FormatJSON(result)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, string(data))
		case asHTML:
			html, err := help.RenderHTML(result)
			if err != nil {
				return err
			}
			fmt.Fprint(a.stdout, html)
		case asMarkdown:
			fmt.Fprint(a.stdout, help.Markdown(result))
		default:
			fmt.Fprint(a.stdout, help.FormatText(result, width))
		}
		return nil
	})
	return cmd
}

func newReplCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Query records and try macros interactively",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = a.action(func(cmd *cobra.Command, args []string) error {
		src, err := a.source()
		if err != nil {
			return err
		}
		sess := repl.NewSession(a.engine(), src, a.stdout)
		return repl.Start(cmd.Context(), sess, repl.Options{
			HistoryFile: a.cfg.REPL.HistoryFile,
			Banner:      fmt.Sprintf("seqmacro %s (collection %s)", a.version, a.cfg.Store.Collection),
		})
	})
	return cmd
}
