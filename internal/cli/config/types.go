// Package config loads leapmetrics CLI configuration from defaults, the
// project file, LEAPMETRICS_* environment variables and command-line flags.
package config

import (
	"time"

	"github.com/leapstack-labs/leapmetrics/internal/adapter"
)

// Config holds all CLI configuration options.
type Config struct {
	MetricsDir   string        `koanf:"metrics_dir"`
	SeedsDir     string        `koanf:"seeds_dir"`
	StatePath    string        `koanf:"state_path"`
	History      bool          `koanf:"history"`
	OutputFormat string        `koanf:"output"`
	Verbose      bool          `koanf:"verbose"`
	LogLevel     string        `koanf:"log_level"`
	QueryTimeout time.Duration `koanf:"query_timeout"`
	Target       TargetConfig  `koanf:"target"`
	Server       ServerConfig  `koanf:"server"`

	// ProjectRoot is the directory relative paths resolve against.
	ProjectRoot string `koanf:"-"`
	// ConfigFile is the project file that was loaded, if any.
	ConfigFile string `koanf:"-"`
}

// TargetConfig is the database queries run against.
type TargetConfig struct {
	Type     string         `koanf:"type"`
	Database string         `koanf:"database"`
	Host     string         `koanf:"host"`
	Port     int            `koanf:"port"`
	User     string         `koanf:"user"`
	Password string         `koanf:"password"`
	Schema   string         `koanf:"schema"`
	Options  map[string]any `koanf:"options"`
}

// ServerConfig holds configuration for the HTTP API server.
type ServerConfig struct {
	Addr string `koanf:"addr"`
}

// Default configuration values.
const (
	DefaultMetricsDir   = "metrics"
	DefaultSeedsDir     = "seeds"
	DefaultStateFile    = ".leapmetrics/history.db"
	DefaultOutput       = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultLogLevel     = "warn"
	DefaultTargetType   = "duckdb"
	DefaultQueryTimeout = 5 * time.Minute
	DefaultServerAddr   = "127.0.0.1:8640"
)

// ConfigFileNames are the project file names, in lookup order.
var ConfigFileNames = []string{"leapmetrics.yaml", "leapmetrics.yml"}

// AdapterConfig converts the target to an adapter configuration.
func (t TargetConfig) AdapterConfig() adapter.Config {
	return adapter.Config{
		Type:     t.Type,
		Path:     t.Database,
		Database: t.Database,
		Host:     t.Host,
		Port:     t.Port,
		Username: t.User,
		Password: t.Password,
		Schema:   t.Schema,
		Options:  t.Options,
	}
}

// HistoryPath returns the history database path, or "" when history is off.
func (c *Config) HistoryPath() string {
	if !c.History {
		return ""
	}
	return c.StatePath
}
