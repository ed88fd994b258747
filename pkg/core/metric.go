package core

// MetricKind tags the variant of a metric.
type MetricKind string

// MetricKind constants.
const (
	MetricSimple     MetricKind = "simple"
	MetricDerived    MetricKind = "derived"
	MetricRatio      MetricKind = "ratio"
	MetricCumulative MetricKind = "cumulative"
)

// Valid reports whether k is a known metric kind.
func (k MetricKind) Valid() bool {
	switch k {
	case MetricSimple, MetricDerived, MetricRatio, MetricCumulative:
		return true
	}
	return false
}

// Metric is a named, queryable calculation. Exactly one of the params
// pointers matching Kind is set.
type Metric struct {
	Name        string
	Kind        MetricKind
	Label       string
	Description string
	// Filter is a predicate applied to the rows feeding the metric.
	Filter string
	// File is the definition file the metric was loaded from, if any.
	File string

	Simple     *SimpleParams
	Derived    *DerivedParams
	Ratio      *RatioParams
	Cumulative *CumulativeParams
}

// SimpleParams references one measure, as "measure" or "model.measure".
type SimpleParams struct {
	Measure string
}

// DerivedParams is an arithmetic formula over other metrics.
type DerivedParams struct {
	Expr    string
	Metrics []string
}

// RatioParams divides one metric by another.
type RatioParams struct {
	Numerator   string
	Denominator string
}

// CumulativeParams is a running aggregate of a measure over time.
// Window and GrainToDate are mutually exclusive; neither means all time.
type CumulativeParams struct {
	Measure     string
	Window      *Window
	GrainToDate Grain
}

// IsLeaf reports whether the metric is computed directly from a measure.
func (m *Metric) IsLeaf() bool {
	return m.Kind == MetricSimple || m.Kind == MetricCumulative
}

// MeasureRef returns the measure reference of a leaf metric.
func (m *Metric) MeasureRef() string {
	switch m.Kind {
	case MetricSimple:
		if m.Simple != nil {
			return m.Simple.Measure
		}
	case MetricCumulative:
		if m.Cumulative != nil {
			return m.Cumulative.Measure
		}
	case MetricDerived, MetricRatio:
	}
	return ""
}

// DependsOn returns the metric names a derived or ratio metric references,
// in declaration order.
func (m *Metric) DependsOn() []string {
	switch m.Kind {
	case MetricDerived:
		if m.Derived != nil {
			return append([]string(nil), m.Derived.Metrics...)
		}
	case MetricRatio:
		if m.Ratio != nil {
			return []string{m.Ratio.Numerator, m.Ratio.Denominator}
		}
	case MetricSimple, MetricCumulative:
	}
	return nil
}

// DisplayName returns the label if set, else the name.
func (m *Metric) DisplayName() string {
	if m.Label != "" {
		return m.Label
	}
	return m.Name
}
