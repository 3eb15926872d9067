package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Store drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// StoreConfig selects and locates the event/report store
type StoreConfig struct {
	// Driver is one of sqlite, postgres, memory
	Driver string `yaml:"driver"`

	// SQLitePath is the database file; relative paths resolve against the home directory
	SQLitePath string `yaml:"sqlite_path"`

	// PostgresDSN is a lib/pq connection string or URL
	PostgresDSN string `yaml:"postgres_dsn"`
}

// AnalysisConfig tunes the analytics engine
type AnalysisConfig struct {
	TerminalActions []string `yaml:"terminal_actions"`
	TransitionLimit int      `yaml:"transition_limit"`
	MaxExamples     int      `yaml:"max_examples"`
	WindowBefore    int      `yaml:"window_before"`
	WindowAfter     int      `yaml:"window_after"`
}

// HistoryConfig bounds history listings
type HistoryConfig struct {
	DefaultLimit int `yaml:"default_limit"`
}

// IngestConfig describes the action vocabulary and synthetic batch defaults
type IngestConfig struct {
	Actions       []string `yaml:"actions"`
	Weights       []int    `yaml:"weights"`
	Users         int      `yaml:"users"`
	EventsPerUser int      `yaml:"events_per_user"`
	Seed          int64    `yaml:"seed"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Config represents fragility configuration options
type Config struct {
	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// LogDir is the directory where run logs are written; empty disables file logs
	LogDir string `yaml:"log_dir"`

	Store    StoreConfig    `yaml:"store"`
	Analysis AnalysisConfig `yaml:"analysis"`
	History  HistoryConfig  `yaml:"history"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Server   ServerConfig   `yaml:"server"`
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		LogDir:   "logs",
		Store: StoreConfig{
			Driver:     DriverSQLite,
			SQLitePath: "fragility.db",
		},
		Analysis: AnalysisConfig{
			TerminalActions: []string{"purchase", "logout"},
			TransitionLimit: 50,
			MaxExamples:     20,
			WindowBefore:    2,
			WindowAfter:     2,
		},
		History: HistoryConfig{
			DefaultLimit: 20,
		},
		Ingest: IngestConfig{
			Actions:       []string{"login", "browse", "add_to_cart", "purchase", "logout", "cancel", "refund"},
			Weights:       []int{25, 25, 15, 10, 10, 8, 7},
			Users:         10,
			EventsPerUser: 20,
			Seed:          73,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

// LoadConfig loads configuration from the specified file path.
// Keys present in the file override defaults; a missing file yields the
// defaults and a malformed one is an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// ResolvePaths makes relative file paths absolute under home
func (c *Config) ResolvePaths(home string) {
	if c.Store.SQLitePath != "" && c.Store.SQLitePath != ":memory:" && !filepath.IsAbs(c.Store.SQLitePath) {
		c.Store.SQLitePath = filepath.Join(home, c.Store.SQLitePath)
	}
	if c.LogDir != "" && !filepath.IsAbs(c.LogDir) {
		c.LogDir = filepath.Join(home, c.LogDir)
	}
}

// ApplyEnv overrides configuration from environment variables.
//
//	FRAGILITY_STORE       store.driver
//	FRAGILITY_DB_PATH     store.sqlite_path
//	DATABASE_URL          store.postgres_dsn
//	POSTGRES_HOST/PORT/USER/PASSWORD/DB  composed into store.postgres_dsn
//	LOG_LEVEL             log_level
//	FRAGILITY_ADDR        server.addr
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("FRAGILITY_STORE"); v != "" {
		c.Store.Driver = strings.ToLower(v)
	}
	if v := getenv("FRAGILITY_DB_PATH"); v != "" {
		c.Store.SQLitePath = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	if v := getenv("FRAGILITY_ADDR"); v != "" {
		c.Server.Addr = v
	}

	if v := getenv("DATABASE_URL"); v != "" {
		c.Store.PostgresDSN = v
		return nil
	}
	if host := getenv("POSTGRES_HOST"); host != "" {
		port := 5432
		if p := getenv("POSTGRES_PORT"); p != "" {
			n, err := strconv.Atoi(p)
			if err != nil {
				return fmt.Errorf("invalid POSTGRES_PORT %q: %w", p, err)
			}
			port = n
		}
		c.Store.PostgresDSN = postgresDSN(host, port, getenv("POSTGRES_USER"), getenv("POSTGRES_PASSWORD"), getenv("POSTGRES_DB"))
	}
	return nil
}

// postgresDSN builds a lib/pq key=value connection string. Empty settings
// are left to the driver's defaults.
func postgresDSN(host string, port int, user, password, dbname string) string {
	parts := []string{"host=" + dsnValue(host), fmt.Sprintf("port=%d", port)}
	if user != "" {
		parts = append(parts, "user="+dsnValue(user))
	}
	if password != "" {
		parts = append(parts, "password="+dsnValue(password))
	}
	if dbname != "" {
		parts = append(parts, "dbname="+dsnValue(dbname))
	}
	parts = append(parts, "sslmode=disable")
	return strings.Join(parts, " ")
}

// dsnValue single-quotes v when it holds spaces, quotes or backslashes
func dsnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, " '\\\t") {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// MergeWithFlags merges CLI flags into the configuration.
// Non-nil flag values override configuration values.
func (c *Config) MergeWithFlags(logLevel *string, driver *string, dbPath *string) {
	if logLevel != nil {
		c.LogLevel = strings.ToLower(*logLevel)
	}
	if driver != nil {
		c.Store.Driver = strings.ToLower(*driver)
	}
	if dbPath != nil {
		c.Store.SQLitePath = *dbPath
	}
}

// Validate validates the configuration values
func (c *Config) Validate() error {
	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("store.sqlite_path cannot be empty for the sqlite driver")
		}
	case DriverPostgres:
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("store.postgres_dsn (or DATABASE_URL / POSTGRES_HOST) is required for the postgres driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("invalid store.driver %q, must be one of: sqlite, postgres, memory", c.Store.Driver)
	}

	if len(c.Analysis.TerminalActions) == 0 {
		return fmt.Errorf("analysis.terminal_actions cannot be empty")
	}
	if c.Analysis.TransitionLimit < 0 {
		return fmt.Errorf("analysis.transition_limit must be >= 0, got %d", c.Analysis.TransitionLimit)
	}
	if c.Analysis.MaxExamples < 0 {
		return fmt.Errorf("analysis.max_examples must be >= 0, got %d", c.Analysis.MaxExamples)
	}
	if c.Analysis.WindowBefore < 0 || c.Analysis.WindowAfter < 0 {
		return fmt.Errorf("analysis windows must be >= 0, got before=%d after=%d", c.Analysis.WindowBefore, c.Analysis.WindowAfter)
	}

	if c.History.DefaultLimit < 0 {
		return fmt.Errorf("history.default_limit must be >= 0, got %d", c.History.DefaultLimit)
	}

	if len(c.Ingest.Actions) == 0 {
		return fmt.Errorf("ingest.actions cannot be empty")
	}
	if len(c.Ingest.Weights) != len(c.Ingest.Actions) {
		return fmt.Errorf("ingest.weights has %d entries, ingest.actions has %d", len(c.Ingest.Weights), len(c.Ingest.Actions))
	}
	if c.Ingest.Users < 0 || c.Ingest.EventsPerUser < 0 {
		return fmt.Errorf("ingest.users and ingest.events_per_user must be >= 0")
	}

	return nil
}
