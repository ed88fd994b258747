// Package state records executed queries in a local SQLite database.
package state

import (
	"context"
	"time"
)

// QueryStatus is the outcome of an executed query.
type QueryStatus string

// QueryStatus constants.
const (
	QueryStatusSuccess QueryStatus = "success"
	QueryStatusFailed  QueryStatus = "failed"
)

// HistoryEntry is one executed query.
type HistoryEntry struct {
	ID         string
	ExecutedAt time.Time
	Metrics    []string
	Dimensions []string
	SQL        string
	Status     QueryStatus
	RowCount   int
	Duration   time.Duration
	Error      string
}

// Store persists query history.
type Store interface {
	RecordQuery(ctx context.Context, entry *HistoryEntry) error
	ListHistory(ctx context.Context, limit int) ([]*HistoryEntry, error)
	GetEntry(ctx context.Context, id string) (*HistoryEntry, error)
	Close() error
}
