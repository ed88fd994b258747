package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// timeLayout is fixed-width so stored times sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrEntryNotFound is returned by GetEntry for an unknown ID.
var ErrEntryNotFound = errors.New("history entry not found")

// RecordQuery stores entry, assigning its ID and execution time when unset.
func (s *SQLiteStore) RecordQuery(ctx context.Context, entry *HistoryEntry) error {
	if s.db == nil {
		return errNotOpened
	}
	if entry.ID == "" {
		entry.ID = generateID()
	}
	if entry.ExecutedAt.IsZero() {
		entry.ExecutedAt = time.Now().UTC()
	}

	metrics, err := encodeNames(entry.Metrics)
	if err != nil {
		return err
	}
	dims, err := encodeNames(entry.Dimensions)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO query_history (id, executed_at, metrics, dimensions, sql, status, row_count, duration_ms, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.ExecutedAt.UTC().Format(timeLayout),
		metrics,
		dims,
		entry.SQL,
		string(entry.Status),
		entry.RowCount,
		entry.Duration.Milliseconds(),
		nullString(entry.Error),
	)
	if err != nil {
		return fmt.Errorf("failed to record query: %w", err)
	}

	s.logger.Debug("recorded query", slog.String("id", entry.ID), slog.String("status", string(entry.Status)))
	return nil
}

// ListHistory returns the most recent entries first. A limit of zero or
// less returns every entry.
func (s *SQLiteStore) ListHistory(ctx context.Context, limit int) ([]*HistoryEntry, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	query := `SELECT id, executed_at, metrics, dimensions, sql, status, row_count, duration_ms, error
		FROM query_history ORDER BY executed_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*HistoryEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}
	return entries, nil
}

// GetEntry retrieves one entry by ID.
func (s *SQLiteStore) GetEntry(ctx context.Context, id string) (*HistoryEntry, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, executed_at, metrics, dimensions, sql, status, row_count, duration_ms, error
		 FROM query_history WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	return entry, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (*HistoryEntry, error) {
	var (
		entry         HistoryEntry
		executedAt    string
		metrics, dims string
		status        string
		durationMS    int64
		errMsg        sql.NullString
	)
	if err := sc.Scan(&entry.ID, &executedAt, &metrics, &dims, &entry.SQL, &status, &entry.RowCount, &durationMS, &errMsg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan history entry: %w", err)
	}

	t, err := time.Parse(timeLayout, executedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid executed_at %q: %w", executedAt, err)
	}
	entry.ExecutedAt = t
	entry.Status = QueryStatus(status)
	entry.Duration = time.Duration(durationMS) * time.Millisecond
	entry.Error = errMsg.String

	if err := json.Unmarshal([]byte(metrics), &entry.Metrics); err != nil {
		return nil, fmt.Errorf("invalid metrics for entry %s: %w", entry.ID, err)
	}
	if err := json.Unmarshal([]byte(dims), &entry.Dimensions); err != nil {
		return nil, fmt.Errorf("invalid dimensions for entry %s: %w", entry.ID, err)
	}
	return &entry, nil
}

func encodeNames(names []string) (string, error) {
	if names == nil {
		names = []string{}
	}
	b, err := json.Marshal(names)
	if err != nil {
		return "", fmt.Errorf("failed to encode names: %w", err)
	}
	return string(b), nil
}

// nullString returns a sql.NullString for optional string fields.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
