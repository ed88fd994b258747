// Package resolver expands requested metrics into an evaluation plan: the
// measure-level leaves to aggregate, and the ratio and derived steps that
// combine them, in dependency order.
package resolver

import (
	"errors"
	"strings"

	"github.com/leapstack-labs/leapmetrics/internal/dag"
	"github.com/leapstack-labs/leapmetrics/internal/expr"
	"github.com/leapstack-labs/leapmetrics/internal/registry"
	"github.com/leapstack-labs/leapmetrics/pkg/core"
)

// Leaf is one aggregate to compute directly from a model's rows. Metrics
// sharing a leaf's identity share one fragment.
type Leaf struct {
	Model   *core.SemanticModel
	Measure core.Measure
	// Filter is the metric-level filter.
	Filter string
	// Cumulative is set for running aggregates.
	Cumulative *core.CumulativeParams
	// Metrics are the metric names served by this leaf, first one owns the
	// output column.
	Metrics []string
}

// Column returns the output column holding the leaf's aggregate.
func (l *Leaf) Column() string {
	return l.Metrics[0]
}

// IsCumulative reports whether the leaf is a running aggregate.
func (l *Leaf) IsCumulative() bool {
	return l.Cumulative != nil
}

// Step computes a ratio or derived metric from earlier columns.
type Step struct {
	Metric *core.Metric
	// Inputs are the metric names the step reads.
	Inputs []string
	// Formula is set for derived metrics.
	Formula *expr.Formula
	// Level is the dependency depth, starting at 1.
	Level int
}

// Plan is the ordered evaluation plan for a request.
type Plan struct {
	Requested []string
	Leaves    []*Leaf
	// Levels groups steps by dependency depth; Levels[0] holds level 1.
	Levels [][]*Step

	leafByMetric map[string]*Leaf
}

// Steps returns every step in evaluation order.
func (p *Plan) Steps() []*Step {
	var out []*Step
	for _, level := range p.Levels {
		out = append(out, level...)
	}
	return out
}

// LeafFor returns the leaf computing a simple or cumulative metric.
func (p *Plan) LeafFor(metric string) (*Leaf, bool) {
	l, ok := p.leafByMetric[metric]
	return l, ok
}

// Column returns the plan column holding a metric's value.
func (p *Plan) Column(metric string) string {
	if l, ok := p.leafByMetric[metric]; ok {
		return l.Column()
	}
	return metric
}

type visitState int

const (
	unvisited visitState = iota
	visiting
	done
)

// Resolve builds the evaluation plan for names.
func Resolve(reg *registry.Registry, names []string) (*Plan, error) {
	for _, name := range names {
		if _, ok := reg.Metric(name); !ok {
			return nil, &core.UnknownMetricError{Name: name}
		}
	}

	r := &resolution{
		reg:          reg,
		state:        make(map[string]visitState),
		leafByKey:    make(map[string]*Leaf),
		leafByMetric: make(map[string]*Leaf),
	}
	for _, name := range names {
		if err := r.visit(name); err != nil {
			return nil, err
		}
	}

	levels, err := r.levels()
	if err != nil {
		return nil, err
	}

	return &Plan{
		Requested:    append([]string(nil), names...),
		Leaves:       r.leaves,
		Levels:       levels,
		leafByMetric: r.leafByMetric,
	}, nil
}

type resolution struct {
	reg          *registry.Registry
	state        map[string]visitState
	stack        []string
	closure      []string
	leaves       []*Leaf
	leafByKey    map[string]*Leaf
	leafByMetric map[string]*Leaf
}

func (r *resolution) visit(name string) error {
	switch r.state[name] {
	case done:
		return nil
	case visiting:
		return &core.CyclicDependencyError{Cycle: r.cycleFrom(name)}
	case unvisited:
	}

	m, ok := r.reg.Metric(name)
	if !ok {
		return &core.UnknownMetricError{Name: name}
	}

	r.state[name] = visiting
	r.stack = append(r.stack, name)

	switch m.Kind {
	case core.MetricSimple, core.MetricCumulative:
		if err := r.addLeaf(m); err != nil {
			return err
		}
	case core.MetricDerived, core.MetricRatio:
		for _, dep := range m.DependsOn() {
			if err := r.visit(dep); err != nil {
				return err
			}
		}
	default:
		return &core.DefinitionError{Kind: "metric", Name: name, Message: "unknown metric type " + string(m.Kind)}
	}

	r.stack = r.stack[:len(r.stack)-1]
	r.state[name] = done
	r.closure = append(r.closure, name)
	return nil
}

func (r *resolution) cycleFrom(name string) []string {
	for i, n := range r.stack {
		if n == name {
			cycle := append([]string(nil), r.stack[i:]...)
			return append(cycle, name)
		}
	}
	return []string{name, name}
}

func (r *resolution) addLeaf(m *core.Metric) error {
	ref, ok := r.reg.LeafMeasure(m.Name)
	if !ok {
		return &core.DefinitionError{Kind: "metric", Name: m.Name, Message: "measure " + m.MeasureRef() + " is not resolved"}
	}

	key := leafKey(m, ref)
	if leaf, ok := r.leafByKey[key]; ok {
		leaf.Metrics = append(leaf.Metrics, m.Name)
		r.leafByMetric[m.Name] = leaf
		return nil
	}

	leaf := &Leaf{
		Model:      ref.Model,
		Measure:    ref.Measure,
		Filter:     m.Filter,
		Cumulative: m.Cumulative,
		Metrics:    []string{m.Name},
	}
	r.leaves = append(r.leaves, leaf)
	r.leafByKey[key] = leaf
	r.leafByMetric[m.Name] = leaf
	return nil
}

// leafKey is the identity of a leaf: kind, model, measure, filter and
// cumulative parameters.
func leafKey(m *core.Metric, ref registry.MeasureRef) string {
	parts := []string{string(m.Kind), ref.QualifiedName(), strings.TrimSpace(m.Filter)}
	if c := m.Cumulative; c != nil {
		window := ""
		if c.Window != nil {
			window = c.Window.String()
		}
		parts = append(parts, window, string(c.GrainToDate))
	}
	return strings.Join(parts, "\x00")
}

// levels groups the closure's ratio and derived metrics by dependency depth.
func (r *resolution) levels() ([][]*Step, error) {
	sub := r.reg.Graph().Subgraph(r.closure)
	graphLevels, err := sub.ExecutionLevels()
	if err != nil {
		var cycleErr *dag.CycleError
		if errors.As(err, &cycleErr) {
			return nil, &core.CyclicDependencyError{Cycle: cycleErr.Path}
		}
		return nil, err
	}

	var levels [][]*Step
	for depth, names := range graphLevels {
		var steps []*Step
		for _, name := range names {
			m, _ := r.reg.Metric(name)
			if m.IsLeaf() {
				continue
			}
			step := &Step{Metric: m, Inputs: m.DependsOn(), Level: depth}
			if m.Kind == core.MetricDerived {
				step.Formula, _ = r.reg.Formula(name)
			}
			steps = append(steps, step)
		}
		if len(steps) > 0 {
			levels = append(levels, steps)
		}
	}
	return levels, nil
}
