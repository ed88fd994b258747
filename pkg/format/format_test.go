package format

import (
	"testing"

	duckdbdialect "github.com/leapstack-labs/leapmetrics/pkg/dialects/duckdb"
	postgresdialect "github.com/leapstack-labs/leapmetrics/pkg/dialects/postgres"
	"github.com/leapstack-labs/leapmetrics/pkg/sqlast"
	"github.com/stretchr/testify/assert"
)

func TestFormat_SelectCore(t *testing.T) {
	d := duckdbdialect.DuckDB
	tests := []struct {
		name     string
		stmt     *sqlast.SelectStmt
		expected string
	}{
		{
			name: "grouped aggregate",
			stmt: &sqlast.SelectStmt{Core: &sqlast.SelectCore{
				Columns: []sqlast.SelectItem{
					{Expr: &sqlast.Raw{SQL: "country"}, Alias: "country"},
					{Expr: sqlast.Call("SUM", &sqlast.Raw{SQL: "amount"}), Alias: "revenue"},
				},
				From:    &sqlast.FromClause{Source: &sqlast.TableName{Name: "orders"}},
				Where:   sqlast.And(&sqlast.Raw{SQL: "status = 'completed'"}),
				GroupBy: []sqlast.Expr{&sqlast.Raw{SQL: "country"}},
			}},
			expected: `SELECT
  country,
  SUM(amount) AS revenue
FROM orders
WHERE status = 'completed'
GROUP BY country
`,
		},
		{
			name: "conjunction order and limit",
			stmt: &sqlast.SelectStmt{Core: &sqlast.SelectCore{
				Columns: []sqlast.SelectItem{{Star: true}},
				From:    &sqlast.FromClause{Source: &sqlast.TableName{Schema: "analytics", Name: "order"}},
				Where: sqlast.And(
					&sqlast.Raw{SQL: "a = 1"},
					nil,
					&sqlast.BinaryExpr{Left: sqlast.Col("day"), Op: ">=", Right: &sqlast.DateLit{Value: "2024-01-01"}},
				),
				OrderBy: []sqlast.OrderByItem{{Expr: sqlast.Col("day")}, {Expr: sqlast.Col("x"), Desc: true}},
				Limit:   10,
			}},
			expected: `SELECT
  *
FROM analytics."order"
WHERE (a = 1) AND (day >= DATE '2024-01-01')
ORDER BY day, x DESC
LIMIT 10
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Format(tt.stmt, d))
		})
	}
}

func TestFormat_WithAndJoins(t *testing.T) {
	keys := func(table string) *sqlast.SelectCore {
		return &sqlast.SelectCore{
			Columns: []sqlast.SelectItem{{Expr: sqlast.Col("day")}},
			From:    &sqlast.FromClause{Source: &sqlast.TableName{Name: table}},
		}
	}
	onDay := func(table string) sqlast.Expr {
		return &sqlast.BinaryExpr{
			Left:  sqlast.QualifiedCol("s", "day"),
			Op:    "IS NOT DISTINCT FROM",
			Right: sqlast.QualifiedCol(table, "day"),
		}
	}
	stmt := &sqlast.SelectStmt{
		With: &sqlast.WithClause{CTEs: []*sqlast.CTE{
			{Name: "s", Select: &sqlast.SelectStmt{Core: keys("f_a"), Union: []*sqlast.SelectCore{keys("f_b")}}},
		}},
		Core: &sqlast.SelectCore{
			Columns: []sqlast.SelectItem{
				{Expr: sqlast.QualifiedCol("s", "day"), Alias: "day"},
				{Expr: sqlast.QualifiedCol("f_a", "a")},
				{Expr: sqlast.QualifiedCol("f_b", "b")},
			},
			From: &sqlast.FromClause{
				Source: &sqlast.TableName{Name: "s"},
				Joins: []*sqlast.Join{
					{Type: sqlast.JoinLeft, Right: &sqlast.TableName{Name: "f_a"}, Condition: onDay("f_a")},
					{Type: sqlast.JoinLeft, Right: &sqlast.TableName{Name: "f_b"}, Condition: onDay("f_b")},
				},
			},
		},
	}

	expected := `WITH
  s AS (
    SELECT
      day
    FROM f_a
    UNION
    SELECT
      day
    FROM f_b
  )
SELECT
  s.day AS day,
  f_a.a,
  f_b.b
FROM s
LEFT JOIN f_a ON s.day IS NOT DISTINCT FROM f_a.day
LEFT JOIN f_b ON s.day IS NOT DISTINCT FROM f_b.day
`
	assert.Equal(t, expected, Format(stmt, duckdbdialect.DuckDB))
}

func TestFormat_CrossAndInnerJoins(t *testing.T) {
	stmt := &sqlast.SelectStmt{Core: &sqlast.SelectCore{
		Columns: []sqlast.SelectItem{{Star: true}},
		From: &sqlast.FromClause{
			Source: &sqlast.TableName{Name: "k1"},
			Joins: []*sqlast.Join{
				{Type: sqlast.JoinInner, Right: &sqlast.TableName{Name: "k2"}, Condition: &sqlast.Raw{SQL: "k1.x = k2.x"}},
				{Type: sqlast.JoinCross, Right: &sqlast.TableName{Name: "k3"}},
			},
		},
	}}

	expected := `SELECT
  *
FROM k1
INNER JOIN k2 ON k1.x = k2.x
CROSS JOIN k3
`
	assert.Equal(t, expected, Format(stmt, postgresdialect.Postgres))
}

func TestFormat_NotExists(t *testing.T) {
	stmt := &sqlast.SelectStmt{Core: &sqlast.SelectCore{
		Columns: []sqlast.SelectItem{{Expr: sqlast.QualifiedCol("b", "day"), Alias: "day"}, {Alias: "country"}},
		From:    &sqlast.FromClause{Source: &sqlast.TableName{Name: "b"}},
		Where: &sqlast.ExistsExpr{Not: true, Select: &sqlast.SelectStmt{Core: &sqlast.SelectCore{
			Columns: []sqlast.SelectItem{{Expr: &sqlast.NumberLit{Value: "1"}}},
			From:    &sqlast.FromClause{Source: &sqlast.TableName{Name: "a"}},
			Where:   &sqlast.BinaryExpr{Left: sqlast.QualifiedCol("a", "day"), Op: "IS NOT DISTINCT FROM", Right: sqlast.QualifiedCol("b", "day")},
		}}},
	}}

	expected := `SELECT
  b.day AS day,
  NULL AS country
FROM b
WHERE NOT EXISTS (
  SELECT
    1
  FROM a
  WHERE a.day IS NOT DISTINCT FROM b.day
)
`
	assert.Equal(t, expected, Format(stmt, duckdbdialect.DuckDB))
}

func TestExpr_Window(t *testing.T) {
	e := &sqlast.FuncCall{
		Name: "SUM",
		Args: []sqlast.Expr{sqlast.Col("revenue")},
		Over: &sqlast.WindowSpec{
			PartitionBy: []sqlast.Expr{sqlast.Col("country")},
			OrderBy:     []sqlast.OrderByItem{{Expr: sqlast.Col("order_date")}},
			Frame:       &sqlast.FrameSpec{Preceding: &sqlast.IntervalLit{Value: "6 days"}},
		},
	}
	assert.Equal(t,
		"SUM(revenue) OVER (PARTITION BY country ORDER BY order_date RANGE BETWEEN INTERVAL '6 days' PRECEDING AND CURRENT ROW)",
		Expr(e, duckdbdialect.DuckDB))
}

func TestExpr_DateTruncByDialect(t *testing.T) {
	e := &sqlast.DateTrunc{Grain: "month", Expr: &sqlast.Raw{SQL: "created_at"}}
	assert.Equal(t, "DATE_TRUNC('month', created_at)", Expr(e, duckdbdialect.DuckDB))
	assert.Equal(t, "CAST(DATE_TRUNC('month', created_at) AS DATE)", Expr(e, postgresdialect.Postgres))
}

func TestExpr_Literals(t *testing.T) {
	d := duckdbdialect.DuckDB
	assert.Equal(t, "COUNT(DISTINCT customer_id)", Expr(&sqlast.FuncCall{Name: "count", Distinct: true, Args: []sqlast.Expr{sqlast.Col("customer_id")}}, d))
	assert.Equal(t, "'it''s'", Expr(&sqlast.StringLit{Value: "it's"}, d))
	assert.Equal(t, "-(a)", Expr(&sqlast.UnaryExpr{Op: "-", Operand: &sqlast.ParenExpr{Expr: sqlast.Col("a")}}, d))
}
