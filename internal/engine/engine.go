// Package engine is the caller-facing API of leapmetrics. It loads metric
// definitions, compiles query requests and executes them against the
// configured database, recording each execution in the query history.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/leapstack-labs/leapmetrics/internal/adapter"
	"github.com/leapstack-labs/leapmetrics/internal/compiler"
	"github.com/leapstack-labs/leapmetrics/internal/loader"
	"github.com/leapstack-labs/leapmetrics/internal/registry"
	"github.com/leapstack-labs/leapmetrics/internal/state"
	"github.com/leapstack-labs/leapmetrics/pkg/core"
	"github.com/leapstack-labs/leapmetrics/pkg/dialect"

	_ "github.com/leapstack-labs/leapmetrics/pkg/dialects/duckdb"   // register duckdb dialect
	_ "github.com/leapstack-labs/leapmetrics/pkg/dialects/postgres" // register postgres dialect
)

// DefaultQueryTimeout bounds query execution when Config.QueryTimeout is zero.
const DefaultQueryTimeout = 5 * time.Minute

// Engine compiles and executes metric queries.
type Engine struct {
	// Database adapter (lazy initialized)
	db          adapter.Adapter
	dbConfig    adapter.Config
	dbConnected bool
	dbMu        sync.Mutex

	dialect  *dialect.Dialect
	logger   *slog.Logger
	store    state.Store
	registry *registry.Registry
	compiler *compiler.Compiler

	metricsDir   string
	seedsDir     string
	files        []string
	queryTimeout time.Duration
}

// Config holds engine configuration.
type Config struct {
	// MetricsDir holds the semantic model and metric YAML files.
	MetricsDir string
	// SeedsDir holds CSV files loaded by LoadSeeds.
	SeedsDir string
	// StatePath is the SQLite history database. Empty disables history.
	StatePath string
	// Target is the database queries run against.
	Target adapter.Config
	// Connection is an adapter to use instead of connecting to Target.
	// The engine does not connect it.
	Connection adapter.Adapter
	// QueryTimeout bounds each query execution.
	QueryTimeout time.Duration
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// New loads definitions from cfg.MetricsDir and builds an engine. The
// database is connected on first execution.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	dbConfig := cfg.Target
	if dbConfig.Type == "" {
		dbConfig.Type = "duckdb"
	}
	if cfg.Connection != nil {
		dbConfig.Type = cfg.Connection.DialectName()
	}

	d, ok := dialect.Get(dbConfig.Type)
	if !ok {
		return nil, fmt.Errorf("no SQL dialect for target type %q (available: %v)", dbConfig.Type, dialect.List())
	}

	logger.Debug("initializing engine", "metrics_dir", cfg.MetricsDir, "target", dbConfig.Type)

	defs, err := loader.LoadDir(cfg.MetricsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load definitions: %w", err)
	}
	reg, err := registry.New(defs.Models, defs.Metrics)
	if err != nil {
		return nil, fmt.Errorf("invalid definitions: %w", err)
	}

	e := &Engine{
		dbConfig:     dbConfig,
		dialect:      d,
		logger:       logger,
		registry:     reg,
		compiler:     compiler.New(reg, d, compiler.WithLogger(logger)),
		metricsDir:   cfg.MetricsDir,
		seedsDir:     cfg.SeedsDir,
		files:        defs.Files,
		queryTimeout: cfg.QueryTimeout,
	}
	if e.queryTimeout <= 0 {
		e.queryTimeout = DefaultQueryTimeout
	}
	if cfg.Connection != nil {
		e.db = cfg.Connection
		e.dbConnected = true
	}

	if cfg.StatePath != "" {
		store := state.NewSQLiteStore(logger)
		if err := store.Open(ctx, cfg.StatePath); err != nil {
			return nil, fmt.Errorf("failed to open state store: %w", err)
		}
		e.store = store
	}

	logger.Info("loaded definitions",
		slog.Int("files", len(defs.Files)),
		slog.Int("models", len(reg.Models())),
		slog.Int("metrics", len(reg.Metrics())))
	return e, nil
}

// ensureDBConnected lazily connects to the database.
func (e *Engine) ensureDBConnected(ctx context.Context) error {
	e.dbMu.Lock()
	defer e.dbMu.Unlock()

	if e.dbConnected {
		return nil
	}

	e.logger.Debug("connecting to database", "adapter_type", e.dbConfig.Type)

	db, err := adapter.NewAdapter(e.dbConfig, e.logger)
	if err != nil {
		return fmt.Errorf("failed to create database adapter: %w", err)
	}

	if err := db.Connect(ctx, e.dbConfig); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if db.DialectName() != e.dialect.Name {
		_ = db.Close()
		return fmt.Errorf("adapter %q speaks dialect %q, expected %q", e.dbConfig.Type, db.DialectName(), e.dialect.Name)
	}

	e.db = db
	e.dbConnected = true

	e.logger.Debug("database connected", "dialect", db.DialectName())
	return nil
}

// Close releases all resources.
func (e *Engine) Close() error {
	e.logger.Debug("closing engine")

	var errs []error
	if e.db != nil {
		if err := e.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing engine: %w", errors.Join(errs...))
	}
	return nil
}

// --- Getters (public accessors) ---

// Registry returns the loaded metric registry.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// Dialect returns the SQL dialect queries are compiled for.
func (e *Engine) Dialect() *dialect.Dialect {
	return e.dialect
}

// Files returns the definition files loaded, relative to the metrics dir.
func (e *Engine) Files() []string {
	return e.files
}

// ListMetrics returns every metric in definition order.
func (e *Engine) ListMetrics() []*core.Metric {
	return e.registry.Metrics()
}

// ListDimensions returns every model dimension.
func (e *Engine) ListDimensions() []registry.DimensionRef {
	return e.registry.Dimensions()
}

// ListMeasures returns every model measure.
func (e *Engine) ListMeasures() []registry.MeasureRef {
	return e.registry.Measures()
}
