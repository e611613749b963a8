package cli

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sambeau/seqmacro/pkg/records"
)

func newImportCommand(a *app) *cobra.Command {
	var collection string
	cmd := &cobra.Command{
		Use:   "import FILE...",
		Short: "Load records from JSON or YAML files into the store",
		Long: `Load records into a collection. Records with an existing id are
replaced; new records are appended in file order.`,
		Args: cobra.MinimumNArgs(1),
	}
	cmd.Flags().StringVarP(&collection, "collection", "c", "", "target collection (default: store.collection)")

	cmd.RunE = a.action(func(cmd *cobra.Command, args []string) error {
		store, err := a.openStore()
		if err != nil {
			return err
		}
		if collection == "" {
			collection = a.cfg.Store.Collection
		}
		for _, path := range args {
			recs, err := records.ReadFile(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			if err := store.Save(cmd.Context(), collection, recs); err != nil {
				return err
			}
			a.logger.WithFields(log.Fields{"path": path, "records": len(recs)}).Debug("imported")
			fmt.Fprintf(a.stdout, "%s: imported %s into %s\n", path, plural(len(recs), "record"), collection)
		}
		return nil
	})
	return cmd
}

func newDumpCommand(a *app) *cobra.Command {
	var (
		collection string
		format     string
	)
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print the records of a collection",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVarP(&collection, "collection", "c", "", "collection to print (default: store.collection)")
	cmd.Flags().StringVarP(&format, "format", "f", string(records.FormatYAML), "json or yaml")

	cmd.RunE = a.action(func(cmd *cobra.Command, args []string) error {
		f := records.Format(format)
		if f != records.FormatJSON && f != records.FormatYAML {
			return fmt.Errorf("unknown format %q (valid: json, yaml)", format)
		}
		store, err := a.openStore()
		if err != nil {
			return err
		}
		if collection == "" {
			collection = a.cfg.Store.Collection
		}
		recs, err := store.Load(cmd.Context(), collection)
		if err != nil {
			return err
		}
		return records.Encode(a.stdout, recs, f)
	})
	return cmd
}

func newCollectionsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collections",
		Short: "List the collections in the store",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = a.action(func(cmd *cobra.Command, args []string) error {
		store, err := a.openStore()
		if err != nil {
			return err
		}
		names, err := store.Collections(cmd.Context())
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Fprintln(a.stdout, name)
		}
		return nil
	})
	return cmd
}
