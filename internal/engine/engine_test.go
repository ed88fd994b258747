package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapmetrics/internal/adapter"
	"github.com/leapstack-labs/leapmetrics/internal/state"
	"github.com/leapstack-labs/leapmetrics/internal/testutil"
	"github.com/leapstack-labs/leapmetrics/pkg/core"
)

// setupProject writes the orders definitions and seed data to a temp dir.
func setupProject(t *testing.T) (metricsDir, seedsDir string) {
	t.Helper()
	root := t.TempDir()
	metricsDir = filepath.Join(root, "metrics")
	seedsDir = filepath.Join(root, "seeds")
	require.NoError(t, os.MkdirAll(metricsDir, 0o750))
	require.NoError(t, os.MkdirAll(seedsDir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(metricsDir, "orders.yaml"), []byte(testutil.OrdersYAML), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(seedsDir, "orders.csv"), []byte(testutil.OrdersCSV), 0o600))
	return metricsDir, seedsDir
}

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	cfg.Logger = testutil.NewTestLogger(t)
	e, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestEngine_QueryEndToEnd(t *testing.T) {
	ctx := context.Background()
	metricsDir, seedsDir := setupProject(t)
	e := newTestEngine(t, Config{MetricsDir: metricsDir, SeedsDir: seedsDir, StatePath: ":memory:"})

	tables, err := e.LoadSeeds(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"orders"}, tables)

	result, err := e.Query(ctx, core.QueryRequest{
		Metrics:    []string{"revenue"},
		Dimensions: []string{"country"},
	}, QueryOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"country", "revenue"}, result.ColumnNames())
	got := make(map[string]string)
	var order []string
	for _, row := range result.Rows {
		country := fmt.Sprint(row[0])
		order = append(order, country)
		got[country] = fmt.Sprint(row[1])
	}
	assert.Equal(t, []string{"DE", "FR", "UK", "US"}, order)
	assert.Equal(t, map[string]string{"DE": "75", "FR": "175", "UK": "550", "US": "650"}, got)
	assert.Contains(t, result.SQL, "SUM(amount) AS revenue")

	history, err := e.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, state.QueryStatusSuccess, history[0].Status)
	assert.Equal(t, 4, history[0].RowCount)
	assert.Equal(t, []string{"revenue"}, history[0].Metrics)
	assert.Equal(t, result.SQL, history[0].SQL)

	entry, err := e.HistoryEntry(ctx, history[0].ID)
	require.NoError(t, err)
	assert.Equal(t, history[0].SQL, entry.SQL)

	_, err = e.HistoryEntry(ctx, "missing")
	assert.ErrorIs(t, err, state.ErrEntryNotFound)
}

func TestEngine_DryRun(t *testing.T) {
	metricsDir, _ := setupProject(t)
	e := newTestEngine(t, Config{MetricsDir: metricsDir})

	result, err := e.Query(context.Background(), core.QueryRequest{Metrics: []string{"order_completion_rate"}}, QueryOptions{DryRun: true})
	require.NoError(t, err)
	assert.Contains(t, result.SQL, "NULLIF(total_orders, 0)")
	assert.Empty(t, result.Rows)
	assert.False(t, e.dbConnected, "dry run must not connect")
}

func TestEngine_Listings(t *testing.T) {
	metricsDir, _ := setupProject(t)
	e := newTestEngine(t, Config{MetricsDir: metricsDir})

	assert.Len(t, e.ListMetrics(), len(testutil.OrderMetrics()))
	assert.Len(t, e.ListMeasures(), 4)
	assert.Len(t, e.ListDimensions(), 3)
	assert.Equal(t, []string{"orders.yaml"}, e.Files())
	assert.Equal(t, "duckdb", e.Dialect().Name)
}

func TestEngine_CompileErrorsAreTyped(t *testing.T) {
	metricsDir, _ := setupProject(t)
	e := newTestEngine(t, Config{MetricsDir: metricsDir, StatePath: ":memory:"})

	_, err := e.Query(context.Background(), core.QueryRequest{Metrics: []string{"profit"}}, QueryOptions{})
	var unknown *core.UnknownMetricError
	require.True(t, errors.As(err, &unknown))

	history, err := e.History(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, history, "compile failures are not executions")
}

func TestEngine_ExecutionFailureIsRecorded(t *testing.T) {
	metricsDir, _ := setupProject(t)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	conn := adapter.NewDuckDBAdapter(nil)
	conn.DB = db

	mock.ExpectQuery("SELECT").WillReturnError(errors.New("Catalog Error: Table with name orders does not exist"))
	mock.ExpectClose()

	e := newTestEngine(t, Config{MetricsDir: metricsDir, StatePath: ":memory:", Connection: conn})

	_, err = e.Query(context.Background(), core.QueryRequest{Metrics: []string{"total_orders"}}, QueryOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to execute query")

	history, err := e.History(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, state.QueryStatusFailed, history[0].Status)
	assert.Contains(t, history[0].Error, "does not exist")

	require.NoError(t, e.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngine_HistoryDisabled(t *testing.T) {
	metricsDir, _ := setupProject(t)
	e := newTestEngine(t, Config{MetricsDir: metricsDir})

	_, err := e.History(context.Background(), 5)
	assert.ErrorIs(t, err, ErrHistoryDisabled)

	_, err = e.HistoryEntry(context.Background(), "any")
	assert.ErrorIs(t, err, ErrHistoryDisabled)
}

func TestEngine_LoadSeedsMissingDir(t *testing.T) {
	metricsDir, _ := setupProject(t)
	e := newTestEngine(t, Config{MetricsDir: metricsDir})

	tables, err := e.LoadSeeds(context.Background(), filepath.Join(t.TempDir(), "none"))
	require.NoError(t, err)
	assert.Empty(t, tables)
	assert.False(t, e.dbConnected)
}

func TestNew_Errors(t *testing.T) {
	t.Run("invalid definitions", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte(`metrics:
  - name: revenue
    type: simple
    type_params:
      measure: nowhere
`), 0o600))

		_, err := New(context.Background(), Config{MetricsDir: dir})
		require.Error(t, err)
		var defErr *core.DefinitionError
		assert.True(t, errors.As(err, &defErr))
		assert.Contains(t, err.Error(), "nowhere")
	})

	t.Run("unknown target", func(t *testing.T) {
		metricsDir, _ := setupProject(t)
		_, err := New(context.Background(), Config{MetricsDir: metricsDir, Target: adapter.Config{Type: "oracle"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), `"oracle"`)
	})
}

func TestEngine_Validate(t *testing.T) {
	metricsDir, _ := setupProject(t)
	e := newTestEngine(t, Config{MetricsDir: metricsDir})

	assert.Empty(t, e.Validate(context.Background()))
}

func TestValidateDir(t *testing.T) {
	ctx := context.Background()

	t.Run("valid", func(t *testing.T) {
		metricsDir, _ := setupProject(t)
		assert.Empty(t, ValidateDir(ctx, metricsDir, "postgres"))
	})

	t.Run("every definition problem", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte(`metrics:
  - name: a
    type: derived
    type_params:
      expr: b + 1
      metrics: [b]
  - name: b
    type: derived
    type_params:
      expr: a * 2
      metrics: [a]
  - name: c
    type: ratio
    type_params:
      numerator: a
      denominator: missing
`), 0o600))

		errs := ValidateDir(ctx, dir, "duckdb")
		require.NotEmpty(t, errs)
		var cyc *core.CyclicDependencyError
		var unknown *core.UnknownMetricError
		foundCycle, foundUnknown := false, false
		for _, err := range errs {
			if errors.As(err, &cyc) {
				foundCycle = cyc.Involves("a") && cyc.Involves("b")
			}
			if errors.As(err, &unknown) {
				foundUnknown = unknown.Name == "missing"
			}
		}
		assert.True(t, foundCycle, "cycle naming a and b: %v", errs)
		assert.True(t, foundUnknown, "unknown denominator: %v", errs)
	})

	t.Run("cumulative without time dimension", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "events.yaml"), []byte(`semantic_models:
  - name: events
    table: events
    measures:
      - name: event_count
        agg: count
        expr: id
    dimensions:
      - name: kind
        type: categorical
metrics:
  - name: running_events
    type: cumulative
    type_params:
      measure: event_count
`), 0o600))

		errs := ValidateDir(ctx, dir, "duckdb")
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0].Error(), "no time dimension")
	})

	t.Run("load errors are split", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("nope: 1\n"), 0o600))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), []byte("metrics:\n  - name: x\n"), 0o600))
		assert.Len(t, ValidateDir(ctx, dir, "duckdb"), 2)
	})

	t.Run("unknown dialect", func(t *testing.T) {
		assert.Len(t, ValidateDir(ctx, t.TempDir(), "oracle"), 1)
	})
}

func TestEngine_Describe(t *testing.T) {
	metricsDir, _ := setupProject(t)
	e := newTestEngine(t, Config{MetricsDir: metricsDir})

	metrics := e.DescribeMetrics()
	require.Len(t, metrics, 7)
	assert.Equal(t, MetricInfo{
		Name: "revenue", Type: "simple", Label: "Revenue", Measure: "order_amount",
		Filter: "status = 'completed'", File: "orders.yaml",
	}, metrics[0])
	assert.Equal(t, "completed_orders / total_orders", metrics[5].Expr)
	assert.Equal(t, []string{"completed_orders", "total_orders"}, metrics[5].DependsOn)

	measures := e.DescribeMeasures()
	require.Len(t, measures, 4)
	assert.Equal(t, MeasureInfo{Model: "orders", Name: "order_count", Agg: "count", Expr: "order_id"}, measures[1])

	dims := e.DescribeDimensions()
	require.Len(t, dims, 3)
	assert.Equal(t, DimensionInfo{Model: "orders", Name: "order_status", Type: "categorical", Expr: "status"}, dims[1])
	assert.Equal(t, "day", dims[0].Granularity)
}
