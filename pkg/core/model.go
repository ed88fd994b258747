package core

import "strings"

// Aggregation is the aggregation kind of a measure.
type Aggregation string

// Aggregation constants.
const (
	AggSum           Aggregation = "sum"
	AggCount         Aggregation = "count"
	AggCountDistinct Aggregation = "count_distinct"
	AggAvg           Aggregation = "avg"
	AggMin           Aggregation = "min"
	AggMax           Aggregation = "max"
)

// Valid reports whether a is a known aggregation.
func (a Aggregation) Valid() bool {
	switch a {
	case AggSum, AggCount, AggCountDistinct, AggAvg, AggMin, AggMax:
		return true
	}
	return false
}

// Reaggregatable reports whether per-bucket results of a can be combined
// into a running value without going back to the rows.
func (a Aggregation) Reaggregatable() bool {
	switch a {
	case AggSum, AggCount, AggMin, AggMax:
		return true
	}
	return false
}

// DimensionType distinguishes categorical from time dimensions.
type DimensionType string

// DimensionType constants.
const (
	DimensionCategorical DimensionType = "categorical"
	DimensionTime        DimensionType = "time"
)

// EntityType is the role of a join key on a model.
type EntityType string

// EntityType constants.
const (
	EntityPrimary EntityType = "primary"
	EntityForeign EntityType = "foreign"
	EntityUnique  EntityType = "unique"
)

// SemanticModel maps a physical table to measures and dimensions.
type SemanticModel struct {
	Name string
	// Table is the source relation, optionally schema-qualified.
	Table string
	// PrimaryEntity is the model's primary key name.
	PrimaryEntity string
	Entities      []Entity
	Measures      []Measure
	Dimensions    []Dimension
	// DefaultTimeDimension is used for time range bounds when the request
	// does not name one of this model's time dimensions.
	DefaultTimeDimension string
	Description          string
	// File is the definition file the model was loaded from, if any.
	File string
}

// Entity is a named join key on a model.
type Entity struct {
	Name string
	Type EntityType
	Expr string
}

// Measure is a single aggregable expression.
type Measure struct {
	Name        string
	Agg         Aggregation
	Expr        string
	Filter      string
	Description string
}

// Expression returns the measure's SQL expression, defaulting to its name.
func (m Measure) Expression() string {
	if m.Expr != "" {
		return m.Expr
	}
	return m.Name
}

// Dimension is a groupable attribute.
type Dimension struct {
	Name string
	Type DimensionType
	Expr string
	// Granularity is the base grain of a time dimension.
	Granularity Grain
	Description string
}

// Expression returns the dimension's SQL expression, defaulting to its name.
func (d Dimension) Expression() string {
	if d.Expr != "" {
		return d.Expr
	}
	return d.Name
}

// IsTime reports whether d is a time dimension.
func (d Dimension) IsTime() bool {
	return d.Type == DimensionTime
}

// Measure returns the named measure.
func (m *SemanticModel) Measure(name string) (Measure, bool) {
	for _, ms := range m.Measures {
		if ms.Name == name {
			return ms, true
		}
	}
	return Measure{}, false
}

// Dimension returns the named dimension.
func (m *SemanticModel) Dimension(name string) (Dimension, bool) {
	for _, d := range m.Dimensions {
		if d.Name == name {
			return d, true
		}
	}
	return Dimension{}, false
}

// TimeDimension returns the dimension used to bound a time range on this
// model: the default time dimension, else the first time dimension.
func (m *SemanticModel) TimeDimension() (Dimension, bool) {
	if m.DefaultTimeDimension != "" {
		if d, ok := m.Dimension(m.DefaultTimeDimension); ok && d.IsTime() {
			return d, true
		}
	}
	for _, d := range m.Dimensions {
		if d.IsTime() {
			return d, true
		}
	}
	return Dimension{}, false
}

// TableName returns the physical table, resolving dbt-style ref('name').
func (m *SemanticModel) TableName() string {
	t := strings.TrimSpace(m.Table)
	if strings.HasPrefix(t, "ref(") && strings.HasSuffix(t, ")") {
		inner := strings.TrimSpace(t[len("ref(") : len(t)-1])
		return strings.Trim(inner, `'"`)
	}
	return t
}
