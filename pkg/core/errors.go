package core

import (
	"fmt"
	"strings"
)

// DefinitionError reports invalid registry input: a bad reference, a
// duplicate name, a malformed field or a dependency cycle.
type DefinitionError struct {
	File string
	// Kind is the entity kind: model, measure, dimension or metric.
	Kind    string
	Name    string
	Message string
	Err     error
}

func (e *DefinitionError) Error() string {
	var b strings.Builder
	if e.File != "" {
		b.WriteString(e.File)
		b.WriteString(": ")
	}
	if e.Kind != "" {
		fmt.Fprintf(&b, "%s %q: ", e.Kind, e.Name)
	}
	b.WriteString(e.Message)
	if e.Err != nil {
		if e.Message != "" {
			b.WriteString(": ")
		}
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *DefinitionError) Unwrap() error {
	return e.Err
}

// CyclicDependencyError names every metric on a dependency cycle. The first
// and last entries of Cycle are the same metric.
type CyclicDependencyError struct {
	Cycle []string
}

func (e *CyclicDependencyError) Error() string {
	return "cyclic metric dependency: " + strings.Join(e.Cycle, " -> ")
}

// Involves reports whether name is on the cycle.
func (e *CyclicDependencyError) Involves(name string) bool {
	for _, n := range e.Cycle {
		if n == name {
			return true
		}
	}
	return false
}

// UnknownMetricError reports a requested metric that is not registered.
type UnknownMetricError struct {
	Name string
}

func (e *UnknownMetricError) Error() string {
	return fmt.Sprintf("unknown metric %q", e.Name)
}

// UnknownDimensionError reports a requested dimension no model exposes.
type UnknownDimensionError struct {
	Name string
}

func (e *UnknownDimensionError) Error() string {
	return fmt.Sprintf("unknown dimension %q", e.Name)
}

// InvalidGrainError reports truncation below a time dimension's base grain.
type InvalidGrainError struct {
	Dimension string
	Grain     Grain
	Base      Grain
}

func (e *InvalidGrainError) Error() string {
	return fmt.Sprintf("invalid grain %q for dimension %q: base granularity is %q", e.Grain, e.Dimension, e.Base)
}

// CumulativeRequiresTimeDimensionError reports a cumulative metric requested
// without one of its model's time dimensions.
type CumulativeRequiresTimeDimensionError struct {
	Metric string
}

func (e *CumulativeRequiresTimeDimensionError) Error() string {
	return fmt.Sprintf("cumulative metric %q requires a time dimension in the query", e.Metric)
}

// AssemblyConflictError reports metrics that cannot be joined on the
// requested dimensions.
type AssemblyConflictError struct {
	Metrics    []string
	Dimensions []string
	Reason     string
}

func (e *AssemblyConflictError) Error() string {
	msg := fmt.Sprintf("cannot assemble metrics [%s]", strings.Join(e.Metrics, ", "))
	if len(e.Dimensions) > 0 {
		msg += fmt.Sprintf(" by [%s]", strings.Join(e.Dimensions, ", "))
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// InvalidRequestError reports a malformed query request.
type InvalidRequestError struct {
	Field   string
	Message string
}

func (e *InvalidRequestError) Error() string {
	if e.Field == "" {
		return "invalid request: " + e.Message
	}
	return fmt.Sprintf("invalid request: %s: %s", e.Field, e.Message)
}
