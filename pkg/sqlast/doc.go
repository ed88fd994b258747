// Package sqlast is the structured SQL representation the metric compiler
// builds before anything is rendered to text.
//
// Only the shapes the compiler emits are modelled: SELECT with CTEs, joins,
// WHERE conjunctions, GROUP BY, ORDER BY, LIMIT and window aggregates.
// Trusted SQL written by analysts (measure expressions, dimension
// expressions, filters) is carried verbatim as Raw.
package sqlast
