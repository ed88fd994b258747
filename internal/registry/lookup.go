package registry

import (
	"github.com/leapstack-labs/leapmetrics/internal/dag"
	"github.com/leapstack-labs/leapmetrics/internal/expr"
	"github.com/leapstack-labs/leapmetrics/pkg/core"
)

// Model returns a model by name.
func (r *Registry) Model(name string) (*core.SemanticModel, bool) {
	m, ok := r.models[name]
	return m, ok
}

// Metric returns a metric by name.
func (r *Registry) Metric(name string) (*core.Metric, bool) {
	m, ok := r.metrics[name]
	return m, ok
}

// Measure resolves "measure" or "model.measure". Ambiguous bare names do
// not resolve.
func (r *Registry) Measure(ref string) (MeasureRef, bool) {
	refs := r.byMeasure[ref]
	if len(refs) != 1 {
		return MeasureRef{}, false
	}
	return refs[0], true
}

// LeafMeasure returns the measure behind a simple or cumulative metric.
func (r *Registry) LeafMeasure(metric string) (MeasureRef, bool) {
	ref, ok := r.leafMeasures[metric]
	return ref, ok
}

// Formula returns the parsed formula of a derived metric.
func (r *Registry) Formula(metric string) (*expr.Formula, bool) {
	f, ok := r.formulas[metric]
	return f, ok
}

// Dimension returns a dimension of a model.
func (r *Registry) Dimension(model, name string) (core.Dimension, bool) {
	for _, ref := range r.byDimension[name] {
		if ref.Model.Name == model {
			return ref.Dimension, true
		}
	}
	return core.Dimension{}, false
}

// DimensionsNamed returns every model dimension with the given name.
func (r *Registry) DimensionsNamed(name string) []DimensionRef {
	return r.byDimension[name]
}

// HasDimension reports whether any model exposes a dimension named name.
func (r *Registry) HasDimension(name string) bool {
	return len(r.byDimension[name]) > 0
}

// Models returns all models in declaration order.
func (r *Registry) Models() []*core.SemanticModel {
	out := make([]*core.SemanticModel, len(r.modelOrder))
	for i, name := range r.modelOrder {
		out[i] = r.models[name]
	}
	return out
}

// Metrics returns all metrics in declaration order.
func (r *Registry) Metrics() []*core.Metric {
	out := make([]*core.Metric, len(r.metricOrder))
	for i, name := range r.metricOrder {
		out[i] = r.metrics[name]
	}
	return out
}

// Measures returns every measure, grouped by model in declaration order.
func (r *Registry) Measures() []MeasureRef {
	var out []MeasureRef
	for _, m := range r.Models() {
		for _, ms := range m.Measures {
			out = append(out, MeasureRef{Model: m, Measure: ms})
		}
	}
	return out
}

// Dimensions returns every dimension, grouped by model in declaration order.
func (r *Registry) Dimensions() []DimensionRef {
	var out []DimensionRef
	for _, m := range r.Models() {
		for _, d := range m.Dimensions {
			out = append(out, DimensionRef{Model: m, Dimension: d})
		}
	}
	return out
}

// Graph returns the metric dependency graph. Callers must not modify it.
func (r *Registry) Graph() *dag.Graph {
	return r.graph
}
