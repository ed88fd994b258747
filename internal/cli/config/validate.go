package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/leapstack-labs/leapmetrics/internal/adapter"
)

var validOutputs = map[string]bool{
	"auto": true, "text": true, "table": true, "markdown": true, "md": true, "json": true, "csv": true,
}

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true,
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.MetricsDir == "" {
		return fmt.Errorf("metrics_dir is required")
	}
	if !validOutputs[strings.ToLower(c.OutputFormat)] {
		return fmt.Errorf("unknown output format %q (expected auto, text, markdown, json or csv)", c.OutputFormat)
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("unknown log_level %q (expected debug, info, warn or error)", c.LogLevel)
	}
	if c.QueryTimeout < 0 {
		return fmt.Errorf("query_timeout must not be negative")
	}
	return ValidateTarget(c.Target)
}

// ValidateTarget checks that the target names a registered adapter.
func ValidateTarget(t TargetConfig) error {
	if t.Type == "" {
		return fmt.Errorf("target type is required")
	}
	if !adapter.IsRegistered(t.Type) {
		return &adapter.UnknownAdapterError{Type: t.Type, Available: adapter.ListAdapters()}
	}
	if t.Type == "postgres" && t.Host == "" {
		return fmt.Errorf("postgres target requires a host")
	}
	return nil
}

// ValidateDirectories checks if required directories exist.
func (c *Config) ValidateDirectories() error {
	if _, err := os.Stat(c.MetricsDir); os.IsNotExist(err) {
		return fmt.Errorf("metrics directory does not exist: %s\nHint: Create the directory or use --metrics-dir to specify a different path", c.MetricsDir)
	}
	return nil
}
