package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapmetrics/internal/testutil"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore(testutil.NewTestLogger(t))
	require.NoError(t, store.Open(context.Background(), ":memory:"))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_OpenMigrates(t *testing.T) {
	store := setupTestStore(t)

	version, err := store.MigrationVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
}

func TestSQLiteStore_FileBased(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	store := NewSQLiteStore(nil)
	require.NoError(t, store.Open(ctx, path))
	require.NoError(t, store.RecordQuery(ctx, &HistoryEntry{Metrics: []string{"revenue"}, SQL: "SELECT 1", Status: QueryStatusSuccess}))
	require.NoError(t, store.Close())

	// Reopening applies no migration twice and keeps the data.
	reopened := NewSQLiteStore(nil)
	require.NoError(t, reopened.Open(ctx, path))
	defer func() { _ = reopened.Close() }()

	entries, err := reopened.ListHistory(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSQLiteStore_RecordAndGet(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	entry := &HistoryEntry{
		Metrics:    []string{"revenue", "total_orders"},
		Dimensions: []string{"country"},
		SQL:        "SELECT country, revenue FROM f_revenue",
		Status:     QueryStatusSuccess,
		RowCount:   4,
		Duration:   1500 * time.Millisecond,
	}
	require.NoError(t, store.RecordQuery(ctx, entry))
	require.NotEmpty(t, entry.ID)
	require.False(t, entry.ExecutedAt.IsZero())

	got, err := store.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.Metrics, got.Metrics)
	assert.Equal(t, entry.Dimensions, got.Dimensions)
	assert.Equal(t, entry.SQL, got.SQL)
	assert.Equal(t, QueryStatusSuccess, got.Status)
	assert.Equal(t, 4, got.RowCount)
	assert.Equal(t, 1500*time.Millisecond, got.Duration)
	assert.True(t, entry.ExecutedAt.Equal(got.ExecutedAt))
	assert.Empty(t, got.Error)
}

func TestSQLiteStore_FailedQuery(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	entry := &HistoryEntry{Metrics: []string{"revenue"}, Status: QueryStatusFailed, Error: "table orders does not exist"}
	require.NoError(t, store.RecordQuery(ctx, entry))

	got, err := store.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, QueryStatusFailed, got.Status)
	assert.Equal(t, "table orders does not exist", got.Error)
	assert.Empty(t, got.Dimensions)
}

func TestSQLiteStore_ListHistory(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, metric := range []string{"first", "second", "third"} {
		require.NoError(t, store.RecordQuery(ctx, &HistoryEntry{
			ExecutedAt: base.Add(time.Duration(i) * time.Second),
			Metrics:    []string{metric},
			Status:     QueryStatusSuccess,
		}))
	}

	tests := []struct {
		name  string
		limit int
		want  []string
	}{
		{"all", 0, []string{"third", "second", "first"}},
		{"limited", 2, []string{"third", "second"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := store.ListHistory(ctx, tt.limit)
			require.NoError(t, err)
			var got []string
			for _, e := range entries {
				got = append(got, e.Metrics[0])
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSQLiteStore_GetEntryNotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetEntry(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestSQLiteStore_NotOpened(t *testing.T) {
	ctx := context.Background()
	store := NewSQLiteStore(nil)

	assert.Error(t, store.RecordQuery(ctx, &HistoryEntry{}))
	_, err := store.ListHistory(ctx, 1)
	assert.Error(t, err)
	_, err = store.GetEntry(ctx, "x")
	assert.Error(t, err)
	assert.NoError(t, store.Close())
}
