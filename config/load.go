package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	merrors "github.com/sambeau/seqmacro/pkg/macro/errors"
)

// FileName is the configuration file looked for in the search path.
const FileName = "seqmacro.yaml"

// EnvConfig names the environment variable holding a config path.
const EnvConfig = "SEQMACRO_CONFIG"

// Load reads the configuration. The file is the first of: the explicit
// path, $SEQMACRO_CONFIG, ./seqmacro.yaml and
// ~/.config/seqmacro/seqmacro.yaml. With no file the defaults are returned.
// ${VAR} and ${VAR:-default} are replaced using getenv before parsing.
func Load(explicit string, getenv func(string) string) (*Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg := Defaults()

	path, err := resolveConfigPath(explicit, getenv)
	if err != nil {
		return nil, err
	}
	if path == "" {
		cfg.BaseDir, _ = os.Getwd()
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(interpolateEnv(data, getenv), cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	cfg.Path = abs
	cfg.BaseDir = filepath.Dir(abs)
	cfg.resolvePaths()
	return cfg, nil
}

// resolveConfigPath returns the config file to read, or "" when none
// exists. An explicit path that does not exist is an error.
func resolveConfigPath(explicit string, getenv func(string) string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}
	if env := getenv(EnvConfig); env != "" {
		if _, err := os.Stat(env); err != nil {
			return "", fmt.Errorf("config file from %s not found: %s", EnvConfig, env)
		}
		return env, nil
	}

	candidates := []string{FileName}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "seqmacro", FileName))
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", nil
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// interpolateEnv replaces ${VAR} and ${VAR:-default}
func interpolateEnv(data []byte, getenv func(string) string) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		parts := envPattern.FindSubmatch(match)
		if v := getenv(string(parts[1])); v != "" {
			return []byte(v)
		}
		return parts[2]
	})
}

// resolvePaths makes file paths relative to the config file absolute.
func (c *Config) resolvePaths() {
	c.Store.DSN = c.resolveDSN(c.Store)
	c.Logging.Output = c.resolveOutput(c.Logging.Output)
	if c.REPL.HistoryFile != "" {
		c.REPL.HistoryFile = c.resolvePath(c.REPL.HistoryFile)
	}
	for name, p := range c.Profiles {
		store := p.Store
		if store.Driver == "" {
			store.Driver = c.Store.Driver
		}
		p.Store.DSN = c.resolveDSN(store)
		p.Logging.Output = c.resolveOutput(p.Logging.Output)
		c.Profiles[name] = p
	}
}

func (c *Config) resolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) || strings.HasPrefix(p, "~") {
		return p
	}
	return filepath.Join(c.BaseDir, p)
}

func (c *Config) resolveDSN(s StoreConfig) string {
	if s.Driver != DriverSQLite || s.DSN == ":memory:" || strings.HasPrefix(s.DSN, "file:") {
		return s.DSN
	}
	return c.resolvePath(s.DSN)
}

func (c *Config) resolveOutput(out string) string {
	if out == "stderr" || out == "stdout" {
		return out
	}
	return c.resolvePath(out)
}

var (
	validDrivers  = []string{DriverMemory, DriverSQLite, DriverPostgres, DriverMySQL}
	validLevels   = []string{"debug", "info", "warn", "warning", "error"}
	validFormats  = []string{"text", "json"}
	errValidation = errors.New("invalid configuration")
)

// Validate reports every problem in the configuration together.
func Validate(cfg *Config) error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if !oneOf(cfg.Store.Driver, validDrivers) {
		add("invalid store driver %q (valid: %s)", cfg.Store.Driver, strings.Join(validDrivers, ", "))
	}
	if cfg.Store.Driver != DriverMemory && cfg.Store.DSN == "" {
		add("store.dsn is required for driver %q", cfg.Store.Driver)
	}
	if cfg.Store.Collection == "" {
		add("store.collection must not be empty")
	}
	if _, err := merrors.ParseReportMode(cfg.Engine.ErrorReport); err != nil {
		add("invalid error report mode %q (valid: line, offset)", cfg.Engine.ErrorReport)
	}
	if cfg.Engine.DefaultThreads < 1 {
		add("engine.default_threads must be at least 1, got %d", cfg.Engine.DefaultThreads)
	}
	if !oneOf(cfg.Logging.Level, validLevels) {
		add("invalid log level %q (valid: debug, info, warn, error)", cfg.Logging.Level)
	}
	if !oneOf(cfg.Logging.Format, validFormats) {
		add("invalid log format %q (valid: text, json)", cfg.Logging.Format)
	}
	if cfg.Logging.Output == "" {
		add("logging.output must not be empty")
	}
	for name, p := range cfg.Profiles {
		if p.Store.Driver != "" && !oneOf(p.Store.Driver, validDrivers) {
			add("profile %s: invalid store driver %q", name, p.Store.Driver)
		}
		if p.Threads < 0 {
			add("profile %s: threads must not be negative", name)
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w:\n  - %s", errValidation, strings.Join(problems, "\n  - "))
}

// Warnings returns non-fatal configuration warnings
func Warnings(cfg *Config) []string {
	var warnings []string
	if cfg.Store.Driver == DriverMemory {
		warnings = append(warnings, "store driver is memory: changes made by macros are not saved")
	}
	if cfg.Engine.CaseSensitive {
		warnings = append(warnings, "case-sensitive mode: field names and string comparisons must match case")
	}
	if cfg.Engine.DefaultThreads > 64 {
		warnings = append(warnings, fmt.Sprintf("engine.default_threads is %d; record order in logs will vary", cfg.Engine.DefaultThreads))
	}
	return warnings
}

// ApplyProfile overlays the named profile on cfg.
func ApplyProfile(cfg *Config, name string) error {
	if name == "" {
		return nil
	}
	p, ok := cfg.Profiles[name]
	if !ok {
		var names []string
		for n := range cfg.Profiles {
			names = append(names, n)
		}
		if suggestion := merrors.FindClosestMatch(name, names); suggestion != "" {
			return fmt.Errorf("unknown profile %q (did you mean %q?)", name, suggestion)
		}
		return fmt.Errorf("unknown profile %q", name)
	}

	if p.Store.Driver != "" {
		cfg.Store.Driver = p.Store.Driver
	}
	if p.Store.DSN != "" {
		cfg.Store.DSN = p.Store.DSN
	}
	if p.Store.Collection != "" {
		cfg.Store.Collection = p.Store.Collection
	}
	if p.Logging.Level != "" {
		cfg.Logging.Level = p.Logging.Level
	}
	if p.Logging.Format != "" {
		cfg.Logging.Format = p.Logging.Format
	}
	if p.Logging.Output != "" {
		cfg.Logging.Output = p.Logging.Output
	}
	if p.Threads > 0 {
		cfg.Engine.DefaultThreads = p.Threads
	}
	return nil
}

func oneOf(s string, valid []string) bool {
	for _, v := range valid {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
