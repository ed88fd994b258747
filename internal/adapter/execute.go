package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/leapstack-labs/leapmetrics/pkg/core"
)

// Execute runs query on a and collects every row. Column order follows the
// result set; byte slices are returned as strings.
func Execute(ctx context.Context, a Adapter, query string) (*core.QueryResult, error) {
	start := time.Now()

	rows, err := a.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}
	result := &core.QueryResult{SQL: query, Columns: make([]core.Column, len(types))}
	for i, ct := range types {
		result.Columns[i] = core.Column{Name: ct.Name(), Type: ct.DatabaseTypeName()}
	}

	for rows.Next() {
		values := make([]any, len(types))
		ptrs := make([]any, len(types))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	result.RowCount = len(result.Rows)
	result.Duration = time.Since(start)
	return result, nil
}
