package compiler

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapmetrics/internal/expr"
	"github.com/leapstack-labs/leapmetrics/internal/registry"
	"github.com/leapstack-labs/leapmetrics/internal/resolver"
	"github.com/leapstack-labs/leapmetrics/pkg/core"
	"github.com/leapstack-labs/leapmetrics/pkg/sqlast"
)

// bucketsAlias names the per-bucket subquery of a cumulative fragment.
const bucketsAlias = "buckets"

// Fragment is a self-contained aggregate query for one leaf.
type Fragment struct {
	// Name is the CTE name.
	Name string
	Leaf *resolver.Leaf
	// Select is independently valid SQL.
	Select *sqlast.SelectStmt
	// Dimensions are the requested dimensions this fragment groups by and
	// can join on, in request order.
	Dimensions []string
	// Metric is the aggregate's output column.
	Metric string
	// AppliedFilters indexes the request filters applied to this fragment.
	AppliedFilters []int
}

// Columns returns the output columns: dimensions then the metric.
func (f *Fragment) Columns() []string {
	return append(append([]string(nil), f.Dimensions...), f.Metric)
}

// HasDimension reports whether the fragment outputs dimension name.
func (f *Fragment) HasDimension(name string) bool {
	for _, d := range f.Dimensions {
		if d == name {
			return true
		}
	}
	return false
}

// requestFilter is a parsed query filter and the dimensions it names.
type requestFilter struct {
	pred *expr.Predicate
	dims []string
}

func parseFilters(reg *registry.Registry, filters []string) ([]requestFilter, error) {
	out := make([]requestFilter, 0, len(filters))
	for i, f := range filters {
		pred, err := expr.ParsePredicate(f)
		if err != nil {
			return nil, &core.InvalidRequestError{Field: fmt.Sprintf("filters[%d]", i), Message: err.Error()}
		}
		rf := requestFilter{pred: pred}
		for _, id := range pred.Identifiers() {
			if reg.HasDimension(id) {
				rf.dims = append(rf.dims, id)
			}
		}
		out = append(out, rf)
	}
	return out, nil
}

// BuildFragment builds the aggregate query computing leaf for req.
func BuildFragment(reg *registry.Registry, leaf *resolver.Leaf, req core.QueryRequest) (*Fragment, error) {
	filters, err := parseFilters(reg, req.Filters)
	if err != nil {
		return nil, err
	}
	return buildFragment(reg, leaf, req, filters)
}

func buildFragment(reg *registry.Registry, leaf *resolver.Leaf, req core.QueryRequest, filters []requestFilter) (*Fragment, error) {
	model := leaf.Model
	frag := &Fragment{
		Name:   "f_" + leaf.Column(),
		Leaf:   leaf,
		Metric: leaf.Column(),
	}

	sel := &sqlast.SelectCore{From: &sqlast.FromClause{Source: tableRef(model)}}

	var timeDim *core.Dimension
	for _, name := range req.Dimensions {
		dim, ok := model.Dimension(name)
		if !ok {
			if !reg.HasDimension(name) {
				return nil, &core.UnknownDimensionError{Name: name}
			}
			continue
		}

		e, err := dimensionExpr(dim, req.Grain)
		if err != nil {
			return nil, err
		}
		if dim.IsTime() && timeDim == nil {
			d := dim
			timeDim = &d
		}
		frag.Dimensions = append(frag.Dimensions, name)
		sel.Columns = append(sel.Columns, sqlast.SelectItem{Expr: e, Alias: name})
		sel.GroupBy = append(sel.GroupBy, e)
	}

	agg, err := aggregate(leaf.Measure)
	if err != nil {
		return nil, err
	}
	sel.Columns = append(sel.Columns, sqlast.SelectItem{Expr: agg, Alias: frag.Metric})

	where, applied, err := fragmentWhere(leaf, req, filters, timeDim)
	if err != nil {
		return nil, err
	}
	sel.Where = where
	frag.AppliedFilters = applied

	stmt := &sqlast.SelectStmt{Core: sel}
	if leaf.IsCumulative() {
		if timeDim == nil {
			return nil, &core.CumulativeRequiresTimeDimensionError{Metric: leaf.Column()}
		}
		stmt = cumulativeSelect(stmt, frag, *timeDim, req.Grain)
	}
	frag.Select = stmt
	return frag, nil
}

func tableRef(m *core.SemanticModel) *sqlast.TableName {
	table := m.TableName()
	if schema, name, ok := strings.Cut(table, "."); ok {
		return &sqlast.TableName{Schema: schema, Name: name}
	}
	return &sqlast.TableName{Name: table}
}

// dimensionExpr renders a dimension, truncating time dimensions to the
// requested grain or their base granularity.
func dimensionExpr(dim core.Dimension, grain core.Grain) (sqlast.Expr, error) {
	raw := &sqlast.Raw{SQL: dim.Expression()}
	if !dim.IsTime() {
		return raw, nil
	}
	g := dim.Granularity
	if grain != "" {
		if grain.FinerThan(dim.Granularity) {
			return nil, &core.InvalidGrainError{Dimension: dim.Name, Grain: grain, Base: dim.Granularity}
		}
		g = grain
	}
	return &sqlast.DateTrunc{Grain: string(g), Expr: raw}, nil
}

func aggregate(m core.Measure) (sqlast.Expr, error) {
	arg := &sqlast.Raw{SQL: m.Expression()}
	switch m.Agg {
	case core.AggCountDistinct:
		return &sqlast.FuncCall{Name: "COUNT", Distinct: true, Args: []sqlast.Expr{arg}}, nil
	case core.AggCount:
		return sqlast.Call("COUNT", arg), nil
	case core.AggAvg:
		return sqlast.Call("AVG", arg), nil
	case core.AggMin:
		return sqlast.Call("MIN", arg), nil
	case core.AggMax:
		return sqlast.Call("MAX", arg), nil
	case core.AggSum:
		return sqlast.Call("SUM", arg), nil
	}
	return nil, &core.DefinitionError{
		Kind:    "measure",
		Name:    m.Name,
		Message: fmt.Sprintf("unknown aggregation %q", m.Agg),
	}
}

// fragmentWhere conjoins the measure filter, the metric filter, the request
// filters applicable to the leaf's model and the time range bound.
func fragmentWhere(leaf *resolver.Leaf, req core.QueryRequest, filters []requestFilter, timeDim *core.Dimension) (sqlast.Expr, []int, error) {
	model := leaf.Model
	var terms []sqlast.Expr
	if leaf.Measure.Filter != "" {
		terms = append(terms, &sqlast.Raw{SQL: leaf.Measure.Filter})
	}
	if leaf.Filter != "" {
		terms = append(terms, &sqlast.Raw{SQL: leaf.Filter})
	}

	var applied []int
	for i, f := range filters {
		if !modelHasAll(model, f.dims) {
			continue
		}
		rewritten := f.pred.Rewrite(func(name string) (string, bool) {
			d, ok := model.Dimension(name)
			if !ok {
				return "", false
			}
			return d.Expression(), true
		})
		terms = append(terms, &sqlast.Raw{SQL: rewritten})
		applied = append(applied, i)
	}

	if tr := req.TimeRange; tr != nil && (tr.HasStart() || tr.HasEnd()) {
		dim := timeDim
		if dim == nil {
			d, ok := model.TimeDimension()
			if !ok {
				return nil, nil, &core.InvalidRequestError{
					Field:   "time_range",
					Message: fmt.Sprintf("model %q has no time dimension to bound metric %q", model.Name, leaf.Column()),
				}
			}
			dim = &d
		}
		col := &sqlast.Raw{SQL: dim.Expression()}
		if tr.HasStart() {
			terms = append(terms, &sqlast.BinaryExpr{Left: col, Op: ">=", Right: &sqlast.DateLit{Value: tr.Start.Format(core.DateLayout)}})
		}
		if tr.HasEnd() {
			// The end date is inclusive, so bound by the following day.
			terms = append(terms, &sqlast.BinaryExpr{Left: col, Op: "<", Right: &sqlast.DateLit{Value: tr.End.AddDate(0, 0, 1).Format(core.DateLayout)}})
		}
	}

	return sqlast.And(terms...), applied, nil
}

func modelHasAll(m *core.SemanticModel, dims []string) bool {
	for _, d := range dims {
		if _, ok := m.Dimension(d); !ok {
			return false
		}
	}
	return true
}

// cumulativeSelect wraps a per-bucket aggregate in a running window.
func cumulativeSelect(inner *sqlast.SelectStmt, frag *Fragment, timeDim core.Dimension, grain core.Grain) *sqlast.SelectStmt {
	params := frag.Leaf.Cumulative

	outer := &sqlast.SelectCore{
		From: &sqlast.FromClause{Source: &sqlast.DerivedTable{Select: inner, Alias: bucketsAlias}},
	}

	window := &sqlast.WindowSpec{
		OrderBy: []sqlast.OrderByItem{{Expr: sqlast.Col(timeDim.Name)}},
	}
	for _, d := range frag.Dimensions {
		outer.Columns = append(outer.Columns, sqlast.SelectItem{Expr: sqlast.Col(d)})
		if d != timeDim.Name {
			window.PartitionBy = append(window.PartitionBy, sqlast.Col(d))
		}
	}
	if params.GrainToDate != "" {
		window.PartitionBy = append(window.PartitionBy, &sqlast.DateTrunc{Grain: string(params.GrainToDate), Expr: sqlast.Col(timeDim.Name)})
	}
	if params.Window != nil {
		window.Frame = &sqlast.FrameSpec{Preceding: windowOffset(*params.Window)}
	}

	outer.Columns = append(outer.Columns, sqlast.SelectItem{
		Expr: &sqlast.FuncCall{
			Name: runningFunc(frag.Leaf.Measure.Agg),
			Args: []sqlast.Expr{sqlast.Col(frag.Metric)},
			Over: window,
		},
		Alias: frag.Metric,
	})
	return &sqlast.SelectStmt{Core: outer}
}

func runningFunc(agg core.Aggregation) string {
	switch agg {
	case core.AggMin:
		return "MIN"
	case core.AggMax:
		return "MAX"
	default:
		return "SUM"
	}
}

// windowOffset is how far before the current bucket a window of w reaches,
// so that exactly the last w.Count periods are included.
func windowOffset(w core.Window) sqlast.Expr {
	switch w.Grain {
	case core.GrainDay:
		return &sqlast.IntervalLit{Value: fmt.Sprintf("%d days", w.Count-1)}
	case core.GrainWeek:
		return &sqlast.IntervalLit{Value: fmt.Sprintf("%d days", 7*w.Count-1)}
	}

	var span string
	switch w.Grain {
	case core.GrainQuarter:
		span = fmt.Sprintf("%d months", 3*w.Count)
	case core.GrainYear:
		span = fmt.Sprintf("%d years", w.Count)
	default:
		span = fmt.Sprintf("%d months", w.Count)
	}
	return &sqlast.ParenExpr{Expr: &sqlast.BinaryExpr{
		Left:  &sqlast.IntervalLit{Value: span},
		Op:    "-",
		Right: &sqlast.IntervalLit{Value: "1 day"},
	}}
}
