// Package core defines the shared language of the leapmetrics system.
//
// This package contains:
//   - Domain entities (SemanticModel, Measure, Dimension, Metric)
//   - Enumerations (Grain, Aggregation, DimensionType, MetricKind)
//   - Query values (QueryRequest, CompiledQuery, QueryResult)
//   - Typed errors returned by the registry, resolver and compiler
//
// The Golden Rule: pkg/core imports ONLY the standard library.
// All other packages depend on core, not the reverse.
package core
