// Package adapter connects leapmetrics to the databases that execute
// compiled queries.
package adapter

import (
	"context"
	"database/sql"
)

// Config holds the configuration for connecting to a database.
type Config struct {
	// Type selects the adapter, e.g. "duckdb" or "postgres".
	Type string

	// Path is the database file for file-based databases. Empty or
	// ":memory:" opens an in-memory database.
	Path string

	Host     string
	Port     int
	Database string
	Username string
	Password string

	// Schema is the default schema to use
	Schema string

	// Options contains additional driver-specific options, decoded by each
	// adapter.
	Options map[string]any
}

// Rows wraps sql.Rows to provide a consistent interface across adapters.
type Rows struct {
	*sql.Rows
}

// Adapter is a connection to a database able to run compiled queries.
type Adapter interface {
	// Connect establishes a connection to the database using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close closes the database connection and releases resources.
	Close() error

	// Exec executes a SQL statement that doesn't return rows.
	Exec(ctx context.Context, sql string) error

	// Query executes a SQL statement that returns rows.
	Query(ctx context.Context, sql string) (*Rows, error)

	// LoadCSV loads a CSV file with a header row into table, replacing it.
	LoadCSV(ctx context.Context, table string, filePath string) error

	// DialectName returns the SQL dialect the database speaks.
	DialectName() string
}
