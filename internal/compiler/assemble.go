package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/leapstack-labs/leapmetrics/internal/resolver"
	"github.com/leapstack-labs/leapmetrics/pkg/core"
	"github.com/leapstack-labs/leapmetrics/pkg/dialect"
	"github.com/leapstack-labs/leapmetrics/pkg/format"
	"github.com/leapstack-labs/leapmetrics/pkg/sqlast"
)

const (
	joinedCTE = "metrics_joined"
	spineCTE  = "metrics_spine"
)

func levelCTE(k int) string {
	return fmt.Sprintf("metrics_level_%d", k)
}

func keysCTE(k int) string {
	return fmt.Sprintf("metrics_keys_%d", k)
}

func spineStepCTE(k int) string {
	return fmt.Sprintf("metrics_spine_%d", k)
}

// Assemble joins fragments, evaluates ratio and derived steps and projects
// the requested columns, rendering the result in dialect d.
func Assemble(plan *resolver.Plan, fragments []*Fragment, req core.QueryRequest, d *dialect.Dialect) (*core.CompiledQuery, error) {
	stmt, err := assembleStatement(plan, fragments, req)
	if err != nil {
		return nil, err
	}

	columns := append(append([]string(nil), req.Dimensions...), req.Metrics...)
	return &core.CompiledQuery{
		SQL:        format.Format(stmt, d),
		Columns:    columns,
		Dimensions: append([]string(nil), req.Dimensions...),
		Metrics:    append([]string(nil), req.Metrics...),
	}, nil
}

func assembleStatement(plan *resolver.Plan, fragments []*Fragment, req core.QueryRequest) (*sqlast.SelectStmt, error) {
	if len(fragments) == 0 {
		return nil, &core.InvalidRequestError{Field: "metrics", Message: "nothing to compute"}
	}
	if err := checkDimensionCoverage(plan, fragments, req); err != nil {
		return nil, err
	}
	if err := checkFilterCoverage(plan, fragments, req); err != nil {
		return nil, err
	}

	with := &sqlast.WithClause{}
	for _, f := range fragments {
		with.CTEs = append(with.CTEs, &sqlast.CTE{Name: f.Name, Select: f.Select})
	}

	base := fragments[0].Name
	if len(fragments) > 1 {
		ctes, err := joinFragments(plan, fragments, req)
		if err != nil {
			return nil, err
		}
		with.CTEs = append(with.CTEs, ctes...)
		base = joinedCTE
	}

	for i, level := range plan.Levels {
		name := levelCTE(i + 1)
		with.CTEs = append(with.CTEs, &sqlast.CTE{Name: name, Select: levelSelect(plan, level, base)})
		base = name
	}

	final := &sqlast.SelectCore{
		From:  &sqlast.FromClause{Source: &sqlast.TableName{Name: base}},
		Limit: req.Limit,
	}
	for _, dim := range req.Dimensions {
		final.Columns = append(final.Columns, sqlast.SelectItem{Expr: sqlast.Col(dim)})
	}
	for _, m := range req.Metrics {
		final.Columns = append(final.Columns, sqlast.SelectItem{Expr: sqlast.Col(plan.Column(m)), Alias: m})
	}
	final.OrderBy = orderBy(req)

	return &sqlast.SelectStmt{With: with, Core: final}, nil
}

// checkDimensionCoverage rejects requested dimensions no fragment provides.
func checkDimensionCoverage(plan *resolver.Plan, fragments []*Fragment, req core.QueryRequest) error {
	for _, dim := range req.Dimensions {
		provided := false
		for _, f := range fragments {
			if f.HasDimension(dim) {
				provided = true
				break
			}
		}
		if !provided {
			return &core.AssemblyConflictError{
				Metrics:    plan.Requested,
				Dimensions: req.Dimensions,
				Reason:     fmt.Sprintf("dimension %q is not available on %s", dim, modelList(fragments)),
			}
		}
	}
	return nil
}

// checkFilterCoverage rejects filters that no fragment could apply because
// no model carries every dimension they reference.
func checkFilterCoverage(plan *resolver.Plan, fragments []*Fragment, req core.QueryRequest) error {
	applied := make(map[int]bool)
	for _, f := range fragments {
		for _, i := range f.AppliedFilters {
			applied[i] = true
		}
	}
	for i, filter := range req.Filters {
		if !applied[i] {
			return &core.AssemblyConflictError{
				Metrics:    plan.Requested,
				Dimensions: req.Dimensions,
				Reason:     fmt.Sprintf("filter %q references dimensions not available together on %s", filter, modelList(fragments)),
			}
		}
	}
	return nil
}

func modelList(fragments []*Fragment) string {
	seen := make(map[string]bool)
	var names []string
	for _, f := range fragments {
		if n := f.Leaf.Model.Name; !seen[n] {
			seen[n] = true
			names = append(names, fmt.Sprintf("%q", n))
		}
	}
	if len(names) == 1 {
		return "model " + names[0]
	}
	return "models " + strings.Join(names, ", ")
}

// joinFragments combines fragments into one row per dimension tuple.
//
// Without requested dimensions every fragment is a single row and they are
// cross joined. Otherwise a spine holding every dimension tuple any fragment
// produces is built, and each fragment is left joined onto it with IS NOT
// DISTINCT FROM so NULL dimension values match. A fragment grouping by fewer
// dimensions repeats its value across the dimensions it lacks; its tuples
// that match nothing richer get a spine row with NULL for those dimensions.
// Only LEFT and CROSS joins are emitted: PostgreSQL cannot run a FULL JOIN on
// an IS NOT DISTINCT FROM condition.
func joinFragments(plan *resolver.Plan, fragments []*Fragment, req core.QueryRequest) ([]*sqlast.CTE, error) {
	if len(req.Dimensions) == 0 {
		return []*sqlast.CTE{{Name: joinedCTE, Select: crossJoin(fragments)}}, nil
	}

	dimSets := make([][]string, len(fragments))
	for i, f := range fragments {
		dimSets[i] = f.Dimensions
	}
	if order, ok := connectedOrder(dimSets); !ok {
		joined := make([]*Fragment, len(order))
		for i, idx := range order {
			joined[i] = fragments[idx]
		}
		return nil, &core.AssemblyConflictError{
			Metrics:    plan.Requested,
			Dimensions: req.Dimensions,
			Reason: fmt.Sprintf("metric %q shares no requested dimension with %s",
				firstUnjoined(fragments, order).Metric, metricList(joined)),
		}
	}

	ctes := spine(fragments, req.Dimensions)

	from := &sqlast.FromClause{Source: &sqlast.TableName{Name: spineCTE}}
	sel := &sqlast.SelectCore{From: from}
	for _, dim := range req.Dimensions {
		sel.Columns = append(sel.Columns, sqlast.SelectItem{Expr: sqlast.QualifiedCol(spineCTE, dim), Alias: dim})
	}
	for _, f := range fragments {
		from.Joins = append(from.Joins, &sqlast.Join{
			Type:      sqlast.JoinLeft,
			Right:     &sqlast.TableName{Name: f.Name},
			Condition: matchKeys(spineCTE, f.Name, f.Dimensions),
		})
		sel.Columns = append(sel.Columns, sqlast.SelectItem{
			Expr:  sqlast.QualifiedCol(f.Name, f.Metric),
			Alias: f.Metric,
		})
	}
	return append(ctes, &sqlast.CTE{Name: joinedCTE, Select: &sqlast.SelectStmt{Core: sel}}), nil
}

func crossJoin(fragments []*Fragment) *sqlast.SelectStmt {
	from := &sqlast.FromClause{Source: &sqlast.TableName{Name: fragments[0].Name}}
	sel := &sqlast.SelectCore{From: from}
	for i, f := range fragments {
		if i > 0 {
			from.Joins = append(from.Joins, &sqlast.Join{Type: sqlast.JoinCross, Right: &sqlast.TableName{Name: f.Name}})
		}
		sel.Columns = append(sel.Columns, sqlast.SelectItem{
			Expr:  sqlast.QualifiedCol(f.Name, f.Metric),
			Alias: f.Metric,
		})
	}
	return &sqlast.SelectStmt{Core: sel}
}

// keyGroup is a dimension set and the fragments grouping by exactly it.
type keyGroup struct {
	dims      []string
	fragments []*Fragment
}

// spine returns the CTEs building spineCTE, one row per dimension tuple.
//
// Fragments sharing a dimension set contribute their tuples by UNION. With
// several sets, each set's tuples are outer joined onto the tuples gathered
// so far, widest sets first.
func spine(fragments []*Fragment, dims []string) []*sqlast.CTE {
	groups := keyGroups(fragments)
	if len(groups) == 1 {
		return []*sqlast.CTE{{Name: spineCTE, Select: groups[0].keys()}}
	}

	dimSets := make([][]string, len(groups))
	for i, g := range groups {
		dimSets[i] = g.dims
	}
	order, _ := connectedOrder(dimSets)

	first := groups[order[0]]
	ctes := []*sqlast.CTE{{Name: keysCTE(1), Select: first.keys()}}
	prev, seen := keysCTE(1), first.dims
	for k := 1; k < len(order); k++ {
		g := groups[order[k]]
		keys := keysCTE(k + 1)
		name := spineCTE
		if k < len(order)-1 {
			name = spineStepCTE(k + 1)
		}
		ctes = append(ctes,
			&sqlast.CTE{Name: keys, Select: g.keys()},
			&sqlast.CTE{Name: name, Select: outerJoinKeys(prev, seen, keys, g.dims, dims)},
		)

		var next []string
		for _, dim := range dims {
			if slices.Contains(seen, dim) || slices.Contains(g.dims, dim) {
				next = append(next, dim)
			}
		}
		prev, seen = name, next
	}
	return ctes
}

// outerJoinKeys emulates a full outer join of two tuple relations on the
// dimensions they share: prev left joined to keys, plus the keys tuples that
// match nothing in prev with NULL for the dimensions only prev has.
func outerJoinKeys(prev string, prevDims []string, keys string, keyDims []string, dims []string) *sqlast.SelectStmt {
	var shared []string
	for _, dim := range keyDims {
		if slices.Contains(prevDims, dim) {
			shared = append(shared, dim)
		}
	}

	matched := &sqlast.SelectCore{From: &sqlast.FromClause{
		Source: &sqlast.TableName{Name: prev},
		Joins: []*sqlast.Join{{
			Type:      sqlast.JoinLeft,
			Right:     &sqlast.TableName{Name: keys},
			Condition: matchKeys(prev, keys, shared),
		}},
	}}
	unmatched := &sqlast.SelectCore{
		From: &sqlast.FromClause{Source: &sqlast.TableName{Name: keys}},
		Where: &sqlast.ExistsExpr{Not: true, Select: &sqlast.SelectStmt{Core: &sqlast.SelectCore{
			Columns: []sqlast.SelectItem{{Expr: &sqlast.NumberLit{Value: "1"}}},
			From:    &sqlast.FromClause{Source: &sqlast.TableName{Name: prev}},
			Where:   matchKeys(prev, keys, shared),
		}}},
	}

	for _, dim := range dims {
		inPrev, inKeys := slices.Contains(prevDims, dim), slices.Contains(keyDims, dim)
		switch {
		case inPrev:
			matched.Columns = append(matched.Columns, sqlast.SelectItem{Expr: sqlast.QualifiedCol(prev, dim), Alias: dim})
		case inKeys:
			matched.Columns = append(matched.Columns, sqlast.SelectItem{Expr: sqlast.QualifiedCol(keys, dim), Alias: dim})
		default:
			continue
		}
		if inKeys {
			unmatched.Columns = append(unmatched.Columns, sqlast.SelectItem{Expr: sqlast.QualifiedCol(keys, dim), Alias: dim})
		} else {
			// A nil expression renders as NULL.
			unmatched.Columns = append(unmatched.Columns, sqlast.SelectItem{Alias: dim})
		}
	}
	return &sqlast.SelectStmt{Core: matched, Union: []*sqlast.SelectCore{unmatched}}
}

// keys selects the dimension tuples of the group's fragments. Each fragment
// already has one row per tuple.
func (g *keyGroup) keys() *sqlast.SelectStmt {
	project := func(f *Fragment) *sqlast.SelectCore {
		sc := &sqlast.SelectCore{From: &sqlast.FromClause{Source: &sqlast.TableName{Name: f.Name}}}
		for _, dim := range g.dims {
			sc.Columns = append(sc.Columns, sqlast.SelectItem{Expr: sqlast.Col(dim)})
		}
		return sc
	}
	stmt := &sqlast.SelectStmt{Core: project(g.fragments[0])}
	for _, f := range g.fragments[1:] {
		stmt.Union = append(stmt.Union, project(f))
	}
	return stmt
}

// keyGroups groups fragments by dimension set. Larger sets come first and
// equal-sized sets keep first-appearance order.
func keyGroups(fragments []*Fragment) []*keyGroup {
	var groups []*keyGroup
	for _, f := range fragments {
		var group *keyGroup
		for _, g := range groups {
			if sameSet(g.dims, f.Dimensions) {
				group = g
				break
			}
		}
		if group == nil {
			group = &keyGroup{dims: f.Dimensions}
			groups = append(groups, group)
		}
		group.fragments = append(group.fragments, f)
	}
	slices.SortStableFunc(groups, func(a, b *keyGroup) int {
		return len(b.dims) - len(a.dims)
	})
	return groups
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for _, d := range b {
		if !slices.Contains(a, d) {
			return false
		}
	}
	return true
}

// connectedOrder orders dimension sets so that each one shares a dimension
// with an earlier one, starting from the first and otherwise keeping the
// given order. ok is false when some sets are unreachable; order then holds
// the reachable ones.
func connectedOrder(dimSets [][]string) (order []int, ok bool) {
	joined := make([]bool, len(dimSets))
	seen := make(map[string]bool)
	add := func(i int) {
		joined[i] = true
		order = append(order, i)
		for _, d := range dimSets[i] {
			seen[d] = true
		}
	}

	add(0)
	for len(order) < len(dimSets) {
		next := -1
		for i, dims := range dimSets {
			if joined[i] {
				continue
			}
			if slices.ContainsFunc(dims, func(d string) bool { return seen[d] }) {
				next = i
				break
			}
		}
		if next < 0 {
			return order, false
		}
		add(next)
	}
	return order, true
}

func firstUnjoined(fragments []*Fragment, order []int) *Fragment {
	for i, f := range fragments {
		if !slices.Contains(order, i) {
			return f
		}
	}
	return fragments[len(fragments)-1]
}

// matchKeys is the null-safe equality of left and right on dims.
func matchKeys(left, right string, dims []string) sqlast.Expr {
	var cond sqlast.Expr
	for _, dim := range dims {
		eq := nullSafeEq(sqlast.QualifiedCol(left, dim), sqlast.QualifiedCol(right, dim))
		if cond == nil {
			cond = eq
		} else {
			cond = &sqlast.BinaryExpr{Left: cond, Op: "AND", Right: eq}
		}
	}
	return cond
}

func nullSafeEq(left, right sqlast.Expr) sqlast.Expr {
	return &sqlast.BinaryExpr{Left: left, Op: "IS NOT DISTINCT FROM", Right: right}
}

func metricList(fragments []*Fragment) string {
	names := make([]string, len(fragments))
	for i, f := range fragments {
		names[i] = fmt.Sprintf("%q", f.Metric)
	}
	return strings.Join(names, ", ")
}

// levelSelect computes one dependency level of ratio and derived metrics on
// top of the previous relation.
func levelSelect(plan *resolver.Plan, steps []*resolver.Step, prev string) *sqlast.SelectStmt {
	sel := &sqlast.SelectCore{
		Columns: []sqlast.SelectItem{{TableStar: prev}},
		From:    &sqlast.FromClause{Source: &sqlast.TableName{Name: prev}},
	}
	for _, step := range steps {
		sel.Columns = append(sel.Columns, sqlast.SelectItem{Expr: stepExpr(plan, step), Alias: step.Metric.Name})
	}
	return &sqlast.SelectStmt{Core: sel}
}

func stepExpr(plan *resolver.Plan, step *resolver.Step) sqlast.Expr {
	col := func(name string) sqlast.Expr { return sqlast.Col(plan.Column(name)) }

	switch step.Metric.Kind {
	case core.MetricRatio:
		return &sqlast.BinaryExpr{
			Left:  &sqlast.BinaryExpr{Left: col(step.Metric.Ratio.Numerator), Op: "*", Right: &sqlast.NumberLit{Value: "1.0"}},
			Op:    "/",
			Right: sqlast.Call("NULLIF", col(step.Metric.Ratio.Denominator), &sqlast.NumberLit{Value: "0"}),
		}
	case core.MetricDerived:
		return step.Formula.ToSQL(col)
	case core.MetricSimple, core.MetricCumulative:
	}
	return col(step.Metric.Name)
}

func orderBy(req core.QueryRequest) []sqlast.OrderByItem {
	var items []sqlast.OrderByItem
	if len(req.OrderBy) > 0 {
		for _, o := range req.OrderBy {
			items = append(items, sqlast.OrderByItem{Expr: sqlast.Col(o.Name), Desc: o.Desc})
		}
		return items
	}
	for _, dim := range req.Dimensions {
		items = append(items, sqlast.OrderByItem{Expr: sqlast.Col(dim)})
	}
	return items
}
