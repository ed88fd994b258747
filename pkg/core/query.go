package core

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the layout of time range bounds.
const DateLayout = "2006-01-02"

// TimeRange is an inclusive date range. A zero Start or End leaves that
// side unbounded.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// HasStart reports whether the range has a lower bound.
func (r *TimeRange) HasStart() bool { return !r.Start.IsZero() }

// HasEnd reports whether the range has an upper bound.
func (r *TimeRange) HasEnd() bool { return !r.End.IsZero() }

// ParseTimeRange parses inclusive start and end dates in YYYY-MM-DD form.
// Either may be empty; it returns nil when both are.
func ParseTimeRange(start, end string) (*TimeRange, error) {
	if start == "" && end == "" {
		return nil, nil
	}

	var tr TimeRange
	if start != "" {
		s, err := time.Parse(DateLayout, start)
		if err != nil {
			return nil, &InvalidRequestError{Field: "start", Message: fmt.Sprintf("invalid date %q", start)}
		}
		tr.Start = s
	}
	if end != "" {
		e, err := time.Parse(DateLayout, end)
		if err != nil {
			return nil, &InvalidRequestError{Field: "end", Message: fmt.Sprintf("invalid date %q", end)}
		}
		tr.End = e
	}
	if tr.HasStart() && tr.HasEnd() && tr.End.Before(tr.Start) {
		return nil, &InvalidRequestError{Field: "end", Message: fmt.Sprintf("end %s is before start %s", end, start)}
	}
	return &tr, nil
}

// OrderBy is one ORDER BY entry of a request.
type OrderBy struct {
	Name string
	Desc bool
}

// ParseOrderBy parses "name" or "-name" (descending).
func ParseOrderBy(s string) OrderBy {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "-") {
		return OrderBy{Name: strings.TrimSpace(s[1:]), Desc: true}
	}
	return OrderBy{Name: s}
}

// QueryRequest is everything a caller can ask of the compiler.
// The compiler never mutates a request.
type QueryRequest struct {
	Metrics    []string
	Dimensions []string
	// Grain truncates every requested time dimension. Empty means each
	// time dimension's base granularity.
	Grain Grain
	// Filters are trusted SQL predicates.
	Filters   []string
	TimeRange *TimeRange
	// Limit caps the row count; zero means no limit.
	Limit   int
	OrderBy []OrderBy
}

// CompiledQuery is the output of compilation.
type CompiledQuery struct {
	SQL string
	// Columns lists the output columns: dimensions then metrics.
	Columns    []string
	Dimensions []string
	Metrics    []string
}

// Column is a result column.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// QueryResult is the output of executing a compiled query.
type QueryResult struct {
	SQL      string
	Columns  []Column
	Rows     [][]any
	RowCount int
	Duration time.Duration
}

// ColumnNames returns the result column names in order.
func (r *QueryResult) ColumnNames() []string {
	names := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		names[i] = c.Name
	}
	return names
}
