package engine

import (
	"github.com/leapstack-labs/leapmetrics/internal/registry"
	"github.com/leapstack-labs/leapmetrics/pkg/core"
)

// MetricInfo is the listing view of a metric.
type MetricInfo struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Label       string   `json:"label,omitempty"`
	Description string   `json:"description,omitempty"`
	Measure     string   `json:"measure,omitempty"`
	Expr        string   `json:"expr,omitempty"`
	DependsOn   []string `json:"depends_on,omitempty"`
	Filter      string   `json:"filter,omitempty"`
	File        string   `json:"file,omitempty"`
}

// MeasureInfo is the listing view of a measure.
type MeasureInfo struct {
	Model       string `json:"model"`
	Name        string `json:"name"`
	Agg         string `json:"agg"`
	Expr        string `json:"expr"`
	Description string `json:"description,omitempty"`
}

// DimensionInfo is the listing view of a dimension.
type DimensionInfo struct {
	Model       string `json:"model"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Granularity string `json:"granularity,omitempty"`
	Expr        string `json:"expr"`
	Description string `json:"description,omitempty"`
}

// DescribeMetric builds the listing view of m.
func DescribeMetric(m *core.Metric) MetricInfo {
	info := MetricInfo{
		Name:        m.Name,
		Type:        string(m.Kind),
		Label:       m.Label,
		Description: m.Description,
		Measure:     m.MeasureRef(),
		DependsOn:   m.DependsOn(),
		Filter:      m.Filter,
		File:        m.File,
	}
	switch m.Kind {
	case core.MetricDerived:
		if m.Derived != nil {
			info.Expr = m.Derived.Expr
		}
	case core.MetricRatio:
		if m.Ratio != nil {
			info.Expr = m.Ratio.Numerator + " / " + m.Ratio.Denominator
		}
	case core.MetricSimple, core.MetricCumulative:
	}
	return info
}

// DescribeMetrics returns the listing view of every metric in declaration order.
func (e *Engine) DescribeMetrics() []MetricInfo {
	metrics := e.ListMetrics()
	out := make([]MetricInfo, len(metrics))
	for i, m := range metrics {
		out[i] = DescribeMetric(m)
	}
	return out
}

// DescribeMeasures returns the listing view of every measure.
func (e *Engine) DescribeMeasures() []MeasureInfo {
	refs := e.ListMeasures()
	out := make([]MeasureInfo, len(refs))
	for i, r := range refs {
		out[i] = describeMeasure(r)
	}
	return out
}

// DescribeDimensions returns the listing view of every dimension.
func (e *Engine) DescribeDimensions() []DimensionInfo {
	refs := e.ListDimensions()
	out := make([]DimensionInfo, len(refs))
	for i, r := range refs {
		out[i] = describeDimension(r)
	}
	return out
}

func describeMeasure(r registry.MeasureRef) MeasureInfo {
	return MeasureInfo{
		Model:       r.Model.Name,
		Name:        r.Measure.Name,
		Agg:         string(r.Measure.Agg),
		Expr:        r.Measure.Expression(),
		Description: r.Measure.Description,
	}
}

func describeDimension(r registry.DimensionRef) DimensionInfo {
	return DimensionInfo{
		Model:       r.Model.Name,
		Name:        r.Dimension.Name,
		Type:        string(r.Dimension.Type),
		Granularity: string(r.Dimension.Granularity),
		Expr:        r.Dimension.Expression(),
		Description: r.Dimension.Description,
	}
}
