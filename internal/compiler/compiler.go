// Package compiler turns a query request into a single SQL statement:
// resolve the metric closure, build one aggregate fragment per leaf, then
// join the fragments and layer ratio and derived metrics on top.
package compiler

import (
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leapmetrics/internal/registry"
	"github.com/leapstack-labs/leapmetrics/internal/resolver"
	"github.com/leapstack-labs/leapmetrics/pkg/core"
	"github.com/leapstack-labs/leapmetrics/pkg/dialect"
)

// Compiler compiles requests against an immutable registry. It is safe for
// concurrent use.
type Compiler struct {
	reg     *registry.Registry
	dialect *dialect.Dialect
	logger  *slog.Logger
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithLogger sets the compiler's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Compiler) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a compiler rendering SQL for d.
func New(reg *registry.Registry, d *dialect.Dialect, opts ...Option) *Compiler {
	c := &Compiler{
		reg:     reg,
		dialect: d,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dialect returns the dialect the compiler renders for.
func (c *Compiler) Dialect() *dialect.Dialect {
	return c.dialect
}

// Compile validates req and compiles it to SQL.
func (c *Compiler) Compile(req core.QueryRequest) (*core.CompiledQuery, error) {
	if c.dialect == nil {
		return nil, dialect.ErrDialectRequired
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	plan, err := resolver.Resolve(c.reg, req.Metrics)
	if err != nil {
		return nil, err
	}

	filters, err := parseFilters(c.reg, req.Filters)
	if err != nil {
		return nil, err
	}

	fragments := make([]*Fragment, 0, len(plan.Leaves))
	for _, leaf := range plan.Leaves {
		frag, err := buildFragment(c.reg, leaf, req, filters)
		if err != nil {
			return nil, err
		}
		fragments = append(fragments, frag)
	}

	compiled, err := Assemble(plan, fragments, req, c.dialect)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("compiled query",
		slog.Any("metrics", req.Metrics),
		slog.Any("dimensions", req.Dimensions),
		slog.Int("fragments", len(fragments)),
		slog.Int("levels", len(plan.Levels)),
		slog.String("dialect", c.dialect.Name))
	return compiled, nil
}

func validateRequest(req core.QueryRequest) error {
	if len(req.Metrics) == 0 {
		return &core.InvalidRequestError{Field: "metrics", Message: "at least one metric is required"}
	}

	columns := make(map[string]bool, len(req.Metrics)+len(req.Dimensions))
	for _, m := range req.Metrics {
		if m == "" {
			return &core.InvalidRequestError{Field: "metrics", Message: "metric name is empty"}
		}
		if columns[m] {
			return &core.InvalidRequestError{Field: "metrics", Message: fmt.Sprintf("metric %q is requested twice", m)}
		}
		columns[m] = true
	}
	dims := make(map[string]bool, len(req.Dimensions))
	for _, d := range req.Dimensions {
		if d == "" {
			return &core.InvalidRequestError{Field: "dimensions", Message: "dimension name is empty"}
		}
		if dims[d] {
			return &core.InvalidRequestError{Field: "dimensions", Message: fmt.Sprintf("dimension %q is requested twice", d)}
		}
		if columns[d] {
			return &core.InvalidRequestError{Field: "dimensions", Message: fmt.Sprintf("%q is requested as both a metric and a dimension", d)}
		}
		dims[d] = true
		columns[d] = true
	}

	if req.Grain != "" && !req.Grain.Valid() {
		return &core.InvalidRequestError{Field: "grain", Message: fmt.Sprintf("unknown grain %q", req.Grain)}
	}
	if req.Limit < 0 {
		return &core.InvalidRequestError{Field: "limit", Message: "must not be negative"}
	}
	if tr := req.TimeRange; tr != nil && tr.HasStart() && tr.HasEnd() && tr.End.Before(tr.Start) {
		return &core.InvalidRequestError{Field: "time_range", Message: "end is before start"}
	}

	for _, o := range req.OrderBy {
		if !columns[o.Name] {
			return &core.InvalidRequestError{Field: "order_by", Message: fmt.Sprintf("%q is not a requested metric or dimension", o.Name)}
		}
	}
	return nil
}
