// Package cli implements the seqmacro command line.
package cli

import (
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sambeau/seqmacro/config"
	"github.com/sambeau/seqmacro/pkg/macro/engine"
	merrors "github.com/sambeau/seqmacro/pkg/macro/errors"
	"github.com/sambeau/seqmacro/pkg/records"
)

// app carries the global flags and the lazily opened services of one
// invocation.
type app struct {
	stdout  io.Writer
	stderr  io.Writer
	getenv  func(string) string
	version string

	configPath    string
	profile       string
	logLevel      string
	caseSensitive bool
	offsets       bool

	cfg     *config.Config
	logger  *log.Logger
	logFile *os.File
	eng     *engine.Engine
	store   records.Store
}

// NewRootCommand builds the command tree. Output goes to stdout and stderr;
// getenv is used for config discovery and interpolation.
func NewRootCommand(stdout, stderr io.Writer, getenv func(string) string, version string) *cobra.Command {
	if getenv == nil {
		getenv = os.Getenv
	}
	a := &app{stdout: stdout, stderr: stderr, getenv: getenv, version: version}

	root := &cobra.Command{
		Use:   "seqmacro",
		Short: "seqmacro - macros over record collections",
		Long: `seqmacro compiles and runs macros that select records with a WHERE
expression and update them with DO statements.

Config Resolution:
  1. --config flag
  2. SEQMACRO_CONFIG environment variable
  3. ./seqmacro.yaml
  4. ~/.config/seqmacro/seqmacro.yaml`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetVersionTemplate("seqmacro version {{.Version}}\n")

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "path to config file (default: auto-detect)")
	flags.StringVar(&a.profile, "profile", "", "apply a named profile from the config")
	flags.StringVar(&a.logLevel, "log-level", "", "override logging.level")
	flags.BoolVar(&a.caseSensitive, "case-sensitive", false, "compare names and strings by case")
	flags.BoolVar(&a.offsets, "offsets", false, "report error positions as offsets")

	root.AddCommand(
		newRunCommand(a),
		newCheckCommand(a),
		newFmtCommand(a),
		newExportCommand(a),
		newDescribeCommand(a),
		newReplCommand(a),
		newWatchCommand(a),
		newImportCommand(a),
		newDumpCommand(a),
		newCollectionsCommand(a),
	)
	return root
}

// setup loads and validates the configuration with command line overrides
// applied and builds the logger.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath, a.getenv)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := config.ApplyProfile(cfg, a.profile); err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("case-sensitive") {
		cfg.Engine.CaseSensitive = a.caseSensitive
	}
	if a.offsets {
		cfg.Engine.ErrorReport = "offset"
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	a.cfg = cfg

	out, err := a.logOutput()
	if err != nil {
		return err
	}
	a.logger, err = engine.NewLogger(cfg.Logging.Level, cfg.Logging.Format, out)
	if err != nil {
		return err
	}
	for _, w := range config.Warnings(cfg) {
		a.logger.Warn(w)
	}
	if cfg.Path != "" {
		a.logger.WithField("path", cfg.Path).Debug("loaded config")
	}
	return nil
}

func (a *app) logOutput() (io.Writer, error) {
	switch a.cfg.Logging.Output {
	case "stderr":
		return a.stderr, nil
	case "stdout":
		return a.stdout, nil
	}
	f, err := os.OpenFile(a.cfg.Logging.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	a.logFile = f
	return f, nil
}

// engine returns the macro engine configured from the loaded config.
func (a *app) engine() *engine.Engine {
	if a.eng != nil {
		return a.eng
	}
	mode, _ := merrors.ParseReportMode(a.cfg.Engine.ErrorReport)
	a.eng = engine.New(records.Functions(),
		engine.WithCaseSensitive(a.cfg.Engine.CaseSensitive),
		engine.WithErrorReport(mode),
		engine.WithDefaultThreads(a.cfg.Engine.DefaultThreads),
		engine.WithTreeSort(a.cfg.Engine.TreeSort),
		engine.WithLogger(log.NewEntry(a.logger)),
	)
	return a.eng
}

// openStore opens the configured record store once.
func (a *app) openStore() (records.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	s := a.cfg.Store
	if s.Driver == config.DriverMemory {
		a.store = records.NewMemoryStore()
		return a.store, nil
	}
	store, err := records.OpenSQL(s.Driver, s.DSN)
	if err != nil {
		return nil, err
	}
	a.logger.WithFields(log.Fields{"driver": s.Driver, "collection": s.Collection}).Debug("store opened")
	a.store = store
	return store, nil
}

// source wraps the store for the engine. Log statements print to stdout.
func (a *app) source() (*records.Source, error) {
	store, err := a.openStore()
	if err != nil {
		return nil, err
	}
	eng := a.engine()
	return records.NewSource(store, eng.Functions(),
		records.WithCollection(a.cfg.Store.Collection),
		records.WithOutput(engine.WriterLogger(a.stdout)),
		records.WithSourceCaseSensitive(eng.CaseSensitive()),
	), nil
}

// action wraps a command body so the store and log file are closed
// whether or not it fails.
func (a *app) action(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := fn(cmd, args)
		if cerr := a.close(); err == nil {
			err = cerr
		}
		return err
	}
}

func (a *app) close() error {
	var err error
	if a.store != nil {
		err = a.store.Close()
		a.store = nil
	}
	if a.logFile != nil {
		a.logFile.Close()
		a.logFile = nil
	}
	return err
}
