package config

// Config represents the complete seqmacro configuration
type Config struct {
	BaseDir  string                   `yaml:"-"` // Directory containing config file, for resolving relative paths
	Path     string                   `yaml:"-"` // File the configuration was read from, "" for defaults
	Engine   EngineConfig             `yaml:"engine"`
	Store    StoreConfig              `yaml:"store"`
	Logging  LoggingConfig            `yaml:"logging"`
	REPL     REPLConfig               `yaml:"repl"`
	Export   ExportConfig             `yaml:"export"`
	Profiles map[string]ProfileConfig `yaml:"profiles"` // Named overrides, selected with --profile
}

// EngineConfig holds macro language settings
type EngineConfig struct {
	CaseSensitive  bool   `yaml:"case_sensitive"`  // Compare strings and names by case
	ErrorReport    string `yaml:"error_report"`    // "line" (line and column) or "offset"
	DefaultThreads int    `yaml:"default_threads"` // Workers for macros without a thread hint
	TreeSort       bool   `yaml:"tree_sort"`       // Order WHERE operands by cost (default: true)
}

// StoreConfig selects where records live
type StoreConfig struct {
	Driver     string `yaml:"driver"`     // memory, sqlite, postgres or mysql
	DSN        string `yaml:"dsn"`        // Driver data source; a file path for sqlite
	Collection string `yaml:"collection"` // Collection used by macros without FOR EACH
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
	Output string `yaml:"output"` // stderr, stdout, or file path
}

// REPLConfig holds console settings
type REPLConfig struct {
	HistoryFile string `yaml:"history_file"` // Default: ~/.seqmacro_history
}

// ExportConfig holds defaults for `seqmacro export`
type ExportConfig struct {
	Compress bool `yaml:"compress"` // zstd-compress exports
}

// ProfileConfig holds per-profile overrides.
// All fields are optional - only non-zero values override the base config
type ProfileConfig struct {
	Store   StoreConfig   `yaml:"store"`
	Logging LoggingConfig `yaml:"logging"`
	Threads int           `yaml:"threads"` // Override engine.default_threads
}

// Store drivers
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Defaults returns a Config with sensible defaults
func Defaults() *Config {
	return &Config{
		Engine: EngineConfig{
			ErrorReport:    "line",
			DefaultThreads: 1,
			TreeSort:       true,
		},
		Store: StoreConfig{
			Driver:     DriverSQLite,
			DSN:        "./seqmacro.db",
			Collection: "default",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}
