// Package registry validates semantic models and metrics and indexes them
// for constant-time lookup. A Registry is immutable once built and safe for
// concurrent readers without locking.
package registry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapmetrics/internal/dag"
	"github.com/leapstack-labs/leapmetrics/internal/expr"
	"github.com/leapstack-labs/leapmetrics/pkg/core"
)

// MeasureRef is a measure together with its owning model.
type MeasureRef struct {
	Model   *core.SemanticModel
	Measure core.Measure
}

// QualifiedName returns "model.measure".
func (r MeasureRef) QualifiedName() string {
	return r.Model.Name + "." + r.Measure.Name
}

// DimensionRef is a dimension together with its owning model.
type DimensionRef struct {
	Model     *core.SemanticModel
	Dimension core.Dimension
}

// Registry is the validated, read-only catalog of models and metrics.
type Registry struct {
	// models maps model names to models: "orders" → *SemanticModel
	models     map[string]*core.SemanticModel
	modelOrder []string

	// metrics maps metric names to metrics, declaration order in metricOrder
	metrics     map[string]*core.Metric
	metricOrder []string

	// byMeasure maps bare and qualified measure names to their refs:
	// "order_amount" → [orders.order_amount], "orders.order_amount" → [orders.order_amount]
	byMeasure map[string][]MeasureRef

	// byDimension maps a dimension name to every model exposing it
	byDimension map[string][]DimensionRef

	// leafMeasures maps simple and cumulative metrics to their resolved measure
	leafMeasures map[string]MeasureRef

	// formulas holds parsed derived-metric formulas
	formulas map[string]*expr.Formula

	graph *dag.Graph
}

// New validates models and metrics and builds a Registry. Every problem is
// reported; the returned error joins one *core.DefinitionError per problem.
func New(models []core.SemanticModel, metrics []core.Metric) (*Registry, error) {
	r, errs := build(models, metrics)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return r, nil
}

// Validate returns every definition problem without building a Registry.
func Validate(models []core.SemanticModel, metrics []core.Metric) []error {
	_, errs := build(models, metrics)
	return errs
}

func build(models []core.SemanticModel, metrics []core.Metric) (*Registry, []error) {
	r := &Registry{
		models:       make(map[string]*core.SemanticModel, len(models)),
		metrics:      make(map[string]*core.Metric, len(metrics)),
		byMeasure:    make(map[string][]MeasureRef),
		byDimension:  make(map[string][]DimensionRef),
		leafMeasures: make(map[string]MeasureRef),
		formulas:     make(map[string]*expr.Formula),
		graph:        dag.NewGraph(),
	}

	var errs []error
	for i := range models {
		errs = append(errs, r.addModel(cloneModel(models[i]))...)
	}
	for i := range metrics {
		errs = append(errs, r.addMetric(cloneMetric(metrics[i]))...)
	}
	for _, name := range r.metricOrder {
		errs = append(errs, r.checkMetric(r.metrics[name])...)
	}
	errs = append(errs, r.linkGraph()...)

	return r, errs
}

func (r *Registry) addModel(m *core.SemanticModel) []error {
	var errs []error
	fail := func(kind, name, format string, args ...any) {
		errs = append(errs, &core.DefinitionError{File: m.File, Kind: kind, Name: name, Message: fmt.Sprintf(format, args...)})
	}

	if m.Name == "" {
		fail("model", "", "name is required")
		return errs
	}
	if _, dup := r.models[m.Name]; dup {
		fail("model", m.Name, "duplicate model name")
		return errs
	}
	if m.TableName() == "" {
		fail("model", m.Name, "table is required")
	}

	for _, e := range m.Entities {
		switch e.Type {
		case core.EntityPrimary, core.EntityForeign, core.EntityUnique:
		default:
			fail("model", m.Name, "entity %q has unknown type %q", e.Name, e.Type)
		}
	}

	seenMeasures := make(map[string]bool)
	for _, ms := range m.Measures {
		switch {
		case ms.Name == "":
			fail("measure", m.Name+".?", "name is required")
			continue
		case seenMeasures[ms.Name]:
			fail("measure", m.Name+"."+ms.Name, "duplicate measure name in model")
			continue
		case !ms.Agg.Valid():
			fail("measure", m.Name+"."+ms.Name, "unknown aggregation %q", ms.Agg)
		}
		seenMeasures[ms.Name] = true
	}

	seenDims := make(map[string]bool)
	for _, d := range m.Dimensions {
		switch {
		case d.Name == "":
			fail("dimension", m.Name+".?", "name is required")
			continue
		case seenDims[d.Name]:
			fail("dimension", m.Name+"."+d.Name, "duplicate dimension name in model")
			continue
		}
		seenDims[d.Name] = true
		switch d.Type {
		case core.DimensionCategorical:
		case core.DimensionTime:
			if !d.Granularity.Valid() {
				fail("dimension", m.Name+"."+d.Name, "time dimension requires a time_granularity (day, week, month, quarter, year), got %q", d.Granularity)
			}
		default:
			fail("dimension", m.Name+"."+d.Name, "unknown dimension type %q", d.Type)
		}
	}

	if m.DefaultTimeDimension != "" {
		if d, ok := m.Dimension(m.DefaultTimeDimension); !ok || !d.IsTime() {
			fail("model", m.Name, "default_time_dimension %q is not a time dimension of the model", m.DefaultTimeDimension)
		}
	}

	r.models[m.Name] = m
	r.modelOrder = append(r.modelOrder, m.Name)
	for _, ms := range m.Measures {
		if ms.Name == "" || !seenMeasures[ms.Name] {
			continue
		}
		ref := MeasureRef{Model: m, Measure: ms}
		qualified := ref.QualifiedName()
		if len(r.byMeasure[qualified]) > 0 {
			continue
		}
		r.byMeasure[ms.Name] = append(r.byMeasure[ms.Name], ref)
		r.byMeasure[qualified] = []MeasureRef{ref}
	}
	for _, d := range m.Dimensions {
		if d.Name == "" || !seenDims[d.Name] || dimensionListed(r.byDimension[d.Name], m.Name) {
			continue
		}
		r.byDimension[d.Name] = append(r.byDimension[d.Name], DimensionRef{Model: m, Dimension: d})
	}
	return errs
}

func dimensionListed(refs []DimensionRef, model string) bool {
	for _, ref := range refs {
		if ref.Model.Name == model {
			return true
		}
	}
	return false
}

func (r *Registry) addMetric(m *core.Metric) []error {
	if m.Name == "" {
		return []error{&core.DefinitionError{File: m.File, Kind: "metric", Message: "name is required"}}
	}
	if _, dup := r.metrics[m.Name]; dup {
		return []error{&core.DefinitionError{File: m.File, Kind: "metric", Name: m.Name, Message: "duplicate metric name"}}
	}
	r.metrics[m.Name] = m
	r.metricOrder = append(r.metricOrder, m.Name)
	r.graph.AddNode(m.Name, m)
	return nil
}

// checkMetric validates the kind-specific payload of one metric.
func (r *Registry) checkMetric(m *core.Metric) []error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, &core.DefinitionError{File: m.File, Kind: "metric", Name: m.Name, Message: fmt.Sprintf(format, args...)})
	}

	if m.Filter != "" {
		if _, err := expr.ParsePredicate(m.Filter); err != nil {
			fail("%v", err)
		}
	}

	switch m.Kind {
	case core.MetricSimple:
		if m.Simple == nil {
			fail("simple metric requires a measure")
			return errs
		}
		if ref, err := r.resolveMeasure(m.Simple.Measure); err != nil {
			fail("%v", err)
		} else {
			r.leafMeasures[m.Name] = ref
		}

	case core.MetricCumulative:
		if m.Cumulative == nil {
			fail("cumulative metric requires a measure")
			return errs
		}
		p := m.Cumulative
		ref, err := r.resolveMeasure(p.Measure)
		if err != nil {
			fail("%v", err)
		} else if !ref.Measure.Agg.Reaggregatable() {
			fail("cumulative metric cannot accumulate %s measure %q", ref.Measure.Agg, ref.QualifiedName())
		} else {
			r.leafMeasures[m.Name] = ref
		}
		if p.Window != nil && p.GrainToDate != "" {
			fail("window and grain_to_date are mutually exclusive")
		}
		if p.Window != nil && (p.Window.Count < 1 || !p.Window.Grain.Valid()) {
			fail("invalid window %q", p.Window.String())
		}
		if p.GrainToDate != "" && !p.GrainToDate.Valid() {
			fail("unknown grain_to_date %q", p.GrainToDate)
		}

	case core.MetricDerived:
		if m.Derived == nil {
			fail("derived metric requires expr and metrics")
			return errs
		}
		if len(m.Derived.Metrics) == 0 {
			fail("derived metric must list at least one metric")
			return errs
		}
		f, err := expr.ParseFormula(m.Derived.Expr)
		if err != nil {
			fail("%v", err)
			return errs
		}
		r.formulas[m.Name] = f
		declared := make(map[string]bool, len(m.Derived.Metrics))
		for _, dep := range m.Derived.Metrics {
			declared[dep] = true
		}
		used := make(map[string]bool)
		for _, id := range f.Identifiers() {
			used[id] = true
			if !declared[id] {
				fail("expr references %q which is not listed in metrics", id)
			}
		}
		for _, dep := range m.Derived.Metrics {
			if !used[dep] {
				fail("metric %q is listed but not used in expr", dep)
			}
		}
		errs = append(errs, r.checkDependencies(m)...)

	case core.MetricRatio:
		if m.Ratio == nil || m.Ratio.Numerator == "" || m.Ratio.Denominator == "" {
			fail("ratio metric requires numerator and denominator")
			return errs
		}
		errs = append(errs, r.checkDependencies(m)...)

	default:
		fail("unknown metric type %q", m.Kind)
	}
	return errs
}

func (r *Registry) checkDependencies(m *core.Metric) []error {
	var errs []error
	for _, dep := range m.DependsOn() {
		if _, ok := r.metrics[dep]; !ok {
			errs = append(errs, &core.DefinitionError{
				File: m.File, Kind: "metric", Name: m.Name,
				Err: &core.UnknownMetricError{Name: dep},
			})
		}
	}
	return errs
}

// resolveMeasure resolves "measure" or "model.measure".
func (r *Registry) resolveMeasure(ref string) (MeasureRef, error) {
	if ref == "" {
		return MeasureRef{}, errors.New("measure is required")
	}
	refs := r.byMeasure[ref]
	switch len(refs) {
	case 0:
		if model, _, ok := strings.Cut(ref, "."); ok {
			if _, exists := r.models[model]; !exists {
				return MeasureRef{}, fmt.Errorf("measure %q references unknown model %q", ref, model)
			}
		}
		return MeasureRef{}, fmt.Errorf("unknown measure %q", ref)
	case 1:
		return refs[0], nil
	default:
		names := make([]string, len(refs))
		for i, m := range refs {
			names[i] = m.QualifiedName()
		}
		return MeasureRef{}, fmt.Errorf("measure %q is ambiguous (%s); qualify it as model.measure", ref, strings.Join(names, ", "))
	}
}

// linkGraph adds metric→metric edges and reports the first cycle found.
func (r *Registry) linkGraph() []error {
	var errs []error
	for _, name := range r.metricOrder {
		m := r.metrics[name]
		for _, dep := range m.DependsOn() {
			if _, ok := r.metrics[dep]; !ok {
				continue
			}
			if err := r.graph.AddEdge(dep, name); err != nil {
				var cycleErr *dag.CycleError
				if errors.As(err, &cycleErr) {
					errs = append(errs, cycleDefinitionError(m, cycleErr.Path))
					continue
				}
				errs = append(errs, &core.DefinitionError{File: m.File, Kind: "metric", Name: name, Err: err})
			}
		}
	}

	if hasCycle, path := r.graph.HasCycle(); hasCycle {
		errs = append(errs, cycleDefinitionError(r.metrics[path[0]], path))
	}
	return errs
}

func cycleDefinitionError(m *core.Metric, path []string) error {
	return &core.DefinitionError{
		File: m.File,
		Kind: "metric",
		Name: m.Name,
		Err:  &core.CyclicDependencyError{Cycle: path},
	}
}

func cloneModel(m core.SemanticModel) *core.SemanticModel {
	m.Entities = append([]core.Entity(nil), m.Entities...)
	m.Measures = append([]core.Measure(nil), m.Measures...)
	m.Dimensions = append([]core.Dimension(nil), m.Dimensions...)
	return &m
}

func cloneMetric(m core.Metric) *core.Metric {
	if m.Simple != nil {
		p := *m.Simple
		m.Simple = &p
	}
	if m.Derived != nil {
		p := *m.Derived
		p.Metrics = append([]string(nil), p.Metrics...)
		m.Derived = &p
	}
	if m.Ratio != nil {
		p := *m.Ratio
		m.Ratio = &p
	}
	if m.Cumulative != nil {
		p := *m.Cumulative
		if p.Window != nil {
			w := *p.Window
			p.Window = &w
		}
		m.Cumulative = &p
	}
	return &m
}
