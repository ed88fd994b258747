package loader

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapmetrics/pkg/core"
)

// definitionFile is the on-disk shape of a definition file. Unknown fields
// are rejected.
type definitionFile struct {
	SemanticModels []modelYAML  `yaml:"semantic_models"`
	Metrics        []metricYAML `yaml:"metrics"`
}

type modelYAML struct {
	Name                 string          `yaml:"name"`
	Description          string          `yaml:"description"`
	Table                string          `yaml:"table"`
	PrimaryEntity        string          `yaml:"primary_entity"`
	DefaultTimeDimension string          `yaml:"default_time_dimension"`
	Entities             []entityYAML    `yaml:"entities"`
	Measures             []measureYAML   `yaml:"measures"`
	Dimensions           []dimensionYAML `yaml:"dimensions"`
}

type entityYAML struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
	Expr string `yaml:"expr"`
}

type measureYAML struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Agg         string `yaml:"agg"`
	Expr        string `yaml:"expr"`
	Filter      string `yaml:"filter"`
}

type dimensionYAML struct {
	Name            string `yaml:"name"`
	Description     string `yaml:"description"`
	Type            string `yaml:"type"`
	Expr            string `yaml:"expr"`
	TimeGranularity string `yaml:"time_granularity"`
}

type metricYAML struct {
	Name        string          `yaml:"name"`
	Label       string          `yaml:"label"`
	Description string          `yaml:"description"`
	Type        string          `yaml:"type"`
	Filter      string          `yaml:"filter"`
	TypeParams  *typeParamsYAML `yaml:"type_params"`
}

// typeParamsYAML is the union of every metric kind's parameters.
type typeParamsYAML struct {
	Measure     string   `yaml:"measure"`
	Expr        string   `yaml:"expr"`
	Metrics     []string `yaml:"metrics"`
	Numerator   string   `yaml:"numerator"`
	Denominator string   `yaml:"denominator"`
	Window      string   `yaml:"window"`
	GrainToDate string   `yaml:"grain_to_date"`
}

func (m modelYAML) toCore(file string) core.SemanticModel {
	model := core.SemanticModel{
		Name:                 m.Name,
		Table:                m.Table,
		PrimaryEntity:        m.PrimaryEntity,
		DefaultTimeDimension: m.DefaultTimeDimension,
		Description:          strings.TrimSpace(m.Description),
		File:                 file,
	}
	for _, e := range m.Entities {
		model.Entities = append(model.Entities, core.Entity{Name: e.Name, Type: core.EntityType(e.Type), Expr: e.Expr})
	}
	for _, ms := range m.Measures {
		model.Measures = append(model.Measures, core.Measure{
			Name:        ms.Name,
			Agg:         core.Aggregation(strings.ToLower(ms.Agg)),
			Expr:        ms.Expr,
			Filter:      ms.Filter,
			Description: strings.TrimSpace(ms.Description),
		})
	}
	for _, d := range m.Dimensions {
		model.Dimensions = append(model.Dimensions, core.Dimension{
			Name:        d.Name,
			Type:        core.DimensionType(strings.ToLower(d.Type)),
			Expr:        d.Expr,
			Granularity: core.Grain(strings.ToLower(d.TimeGranularity)),
			Description: strings.TrimSpace(d.Description),
		})
	}
	return model
}

// toCore converts a metric, checking that its type_params fit its type.
// Reference checks are left to the registry.
func (m metricYAML) toCore(file string) (core.Metric, error) {
	metric := core.Metric{
		Name:        m.Name,
		Kind:        core.MetricKind(strings.ToLower(m.Type)),
		Label:       m.Label,
		Description: strings.TrimSpace(m.Description),
		Filter:      m.Filter,
		File:        file,
	}
	fail := func(format string, args ...any) (core.Metric, error) {
		return core.Metric{}, &core.DefinitionError{File: file, Kind: "metric", Name: m.Name, Message: fmt.Sprintf(format, args...)}
	}

	if m.Type == "" {
		return fail("type is required")
	}
	if !metric.Kind.Valid() {
		return fail("unknown metric type %q (want simple, derived, ratio or cumulative)", m.Type)
	}
	p := m.TypeParams
	if p == nil {
		return fail("type_params is required for %s metrics", metric.Kind)
	}

	switch metric.Kind {
	case core.MetricSimple:
		if p.Measure == "" {
			return fail("type_params.measure is required")
		}
		metric.Simple = &core.SimpleParams{Measure: p.Measure}
	case core.MetricDerived:
		if strings.TrimSpace(p.Expr) == "" {
			return fail("type_params.expr is required")
		}
		metric.Derived = &core.DerivedParams{Expr: p.Expr, Metrics: p.Metrics}
	case core.MetricRatio:
		if p.Numerator == "" || p.Denominator == "" {
			return fail("type_params.numerator and type_params.denominator are required")
		}
		metric.Ratio = &core.RatioParams{Numerator: p.Numerator, Denominator: p.Denominator}
	case core.MetricCumulative:
		if p.Measure == "" {
			return fail("type_params.measure is required")
		}
		params := &core.CumulativeParams{Measure: p.Measure}
		if p.Window != "" {
			w, err := core.ParseWindow(p.Window)
			if err != nil {
				return fail("%v", err)
			}
			params.Window = w
		}
		if p.GrainToDate != "" {
			g, err := core.ParseGrain(p.GrainToDate)
			if err != nil {
				return fail("grain_to_date: %v", err)
			}
			params.GrainToDate = g
		}
		metric.Cumulative = params
	}
	return metric, nil
}
