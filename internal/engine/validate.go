package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leapmetrics/internal/compiler"
	"github.com/leapstack-labs/leapmetrics/internal/loader"
	"github.com/leapstack-labs/leapmetrics/internal/registry"
	"github.com/leapstack-labs/leapmetrics/pkg/core"
	"github.com/leapstack-labs/leapmetrics/pkg/dialect"
)

// Validate compiles every metric on its own and returns the failures in
// definition order.
func (e *Engine) Validate(ctx context.Context) []error {
	return validateMetrics(ctx, e.registry, e.compiler)
}

// ValidateDir loads and checks the definitions in dir without building an
// engine, compiling for the named dialect. It reports every problem found.
func ValidateDir(ctx context.Context, dir, dialectName string) []error {
	d, ok := dialect.Get(dialectName)
	if !ok {
		return []error{fmt.Errorf("unknown dialect %q", dialectName)}
	}

	defs, err := loader.LoadDir(dir)
	if err != nil {
		return flatten(err)
	}
	if errs := registry.Validate(defs.Models, defs.Metrics); len(errs) > 0 {
		return errs
	}

	reg, err := registry.New(defs.Models, defs.Metrics)
	if err != nil {
		return flatten(err)
	}
	return validateMetrics(ctx, reg, compiler.New(reg, d))
}

func validateMetrics(ctx context.Context, reg *registry.Registry, c *compiler.Compiler) []error {
	metrics := reg.Metrics()
	results := make([]error, len(metrics))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, m := range metrics {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := compileAlone(reg, c, m.Name); err != nil {
				results[i] = fmt.Errorf("metric %q: %w", m.Name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return []error{err}
	}

	var errs []error
	for _, err := range results {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// compileAlone compiles a metric with no dimensions, adding the time
// dimension a cumulative input needs.
func compileAlone(reg *registry.Registry, c *compiler.Compiler, metric string) error {
	req := core.QueryRequest{Metrics: []string{metric}}
	_, err := c.Compile(req)

	var cumErr *core.CumulativeRequiresTimeDimensionError
	if !errors.As(err, &cumErr) {
		return err
	}
	ref, ok := reg.LeafMeasure(cumErr.Metric)
	if !ok {
		return err
	}
	dim, ok := ref.Model.TimeDimension()
	if !ok {
		return fmt.Errorf("cumulative metric %q is defined on model %q, which has no time dimension", cumErr.Metric, ref.Model.Name)
	}
	req.Dimensions = []string{dim.Name}
	_, err = c.Compile(req)
	return err
}

// flatten splits a joined error into its parts.
func flatten(err error) []error {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		var out []error
		for _, e := range joined.Unwrap() {
			out = append(out, flatten(e)...)
		}
		return out
	}
	return []error{err}
}
