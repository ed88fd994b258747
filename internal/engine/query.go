package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leapmetrics/internal/adapter"
	"github.com/leapstack-labs/leapmetrics/internal/state"
	"github.com/leapstack-labs/leapmetrics/pkg/core"
)

// ErrHistoryDisabled is returned by History when no state path is configured.
var ErrHistoryDisabled = errors.New("query history is disabled")

// QueryOptions controls Query.
type QueryOptions struct {
	// DryRun compiles without touching the database.
	DryRun bool
}

// Compile compiles req to SQL in the engine's dialect.
func (e *Engine) Compile(req core.QueryRequest) (*core.CompiledQuery, error) {
	return e.compiler.Compile(req)
}

// Query compiles and executes req. The result always carries the SQL.
func (e *Engine) Query(ctx context.Context, req core.QueryRequest, opts QueryOptions) (*core.QueryResult, error) {
	compiled, err := e.Compile(req)
	if err != nil {
		return nil, err
	}
	if opts.DryRun {
		return &core.QueryResult{SQL: compiled.SQL}, nil
	}

	if err := e.ensureDBConnected(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.queryTimeout)
	defer cancel()

	result, err := adapter.Execute(ctx, e.db, compiled.SQL)
	if err != nil {
		e.logger.Error("query failed", slog.Any("metrics", req.Metrics), slog.String("error", err.Error()))
		e.record(ctx, req, compiled.SQL, nil, err)
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}

	e.logger.Info("query executed",
		slog.Any("metrics", req.Metrics),
		slog.Int("rows", result.RowCount),
		slog.Duration("duration", result.Duration))
	e.record(ctx, req, compiled.SQL, result, nil)
	return result, nil
}

// record writes a history entry. Failures are logged, never returned.
func (e *Engine) record(ctx context.Context, req core.QueryRequest, sql string, result *core.QueryResult, execErr error) {
	if e.store == nil {
		return
	}

	entry := &state.HistoryEntry{
		Metrics:    req.Metrics,
		Dimensions: req.Dimensions,
		SQL:        sql,
		Status:     state.QueryStatusSuccess,
	}
	if result != nil {
		entry.RowCount = result.RowCount
		entry.Duration = result.Duration
	}
	if execErr != nil {
		entry.Status = state.QueryStatusFailed
		entry.Error = execErr.Error()
	}

	// The query context may already be past its deadline.
	if err := e.store.RecordQuery(context.WithoutCancel(ctx), entry); err != nil {
		e.logger.Warn("failed to record query history", slog.String("error", err.Error()))
	}
}

// History returns up to limit recent executions, newest first.
func (e *Engine) History(ctx context.Context, limit int) ([]*state.HistoryEntry, error) {
	if e.store == nil {
		return nil, ErrHistoryDisabled
	}
	return e.store.ListHistory(ctx, limit)
}

// HistoryEntry returns one recorded execution by ID.
func (e *Engine) HistoryEntry(ctx context.Context, id string) (*state.HistoryEntry, error) {
	if e.store == nil {
		return nil, ErrHistoryDisabled
	}
	return e.store.GetEntry(ctx, id)
}
