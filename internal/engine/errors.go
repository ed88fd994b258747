package engine

import (
	"context"
	"errors"

	"github.com/leapstack-labs/leapmetrics/pkg/core"
)

// ErrorClass groups errors by who has to fix them.
type ErrorClass int

// ErrorClass constants.
const (
	// ClassInternal covers execution and I/O failures.
	ClassInternal ErrorClass = iota
	// ClassRequest is a request that cannot be compiled as asked.
	ClassRequest
	// ClassDefinition is a problem in the metric definitions.
	ClassDefinition
	// ClassTimeout is a query that ran past its deadline.
	ClassTimeout
)

// Classify returns the class of err and a short snake_case kind naming the
// most specific typed error found in its chain.
func Classify(err error) (ErrorClass, string) {
	var (
		defErr    *core.DefinitionError
		reqErr    *core.InvalidRequestError
		metricErr *core.UnknownMetricError
		dimErr    *core.UnknownDimensionError
		grainErr  *core.InvalidGrainError
		cumErr    *core.CumulativeRequiresTimeDimensionError
		conflict  *core.AssemblyConflictError
		cycleErr  *core.CyclicDependencyError
	)

	// Definition errors wrap unknown metrics and cycles, so they are checked first.
	switch {
	case errors.As(err, &defErr):
		return ClassDefinition, "definition"
	case errors.As(err, &reqErr):
		return ClassRequest, "invalid_request"
	case errors.As(err, &metricErr):
		return ClassRequest, "unknown_metric"
	case errors.As(err, &dimErr):
		return ClassRequest, "unknown_dimension"
	case errors.As(err, &grainErr):
		return ClassRequest, "invalid_grain"
	case errors.As(err, &cumErr):
		return ClassRequest, "cumulative_requires_time_dimension"
	case errors.As(err, &conflict):
		return ClassRequest, "assembly_conflict"
	case errors.As(err, &cycleErr):
		return ClassDefinition, "cyclic_dependency"
	case errors.Is(err, context.DeadlineExceeded):
		return ClassTimeout, "timeout"
	}
	return ClassInternal, "internal"
}
