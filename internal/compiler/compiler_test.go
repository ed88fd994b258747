package compiler

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapmetrics/internal/registry"
	"github.com/leapstack-labs/leapmetrics/internal/testutil"
	"github.com/leapstack-labs/leapmetrics/pkg/core"
	"github.com/leapstack-labs/leapmetrics/pkg/dialect"
	duckdbdialect "github.com/leapstack-labs/leapmetrics/pkg/dialects/duckdb"
	postgresdialect "github.com/leapstack-labs/leapmetrics/pkg/dialects/postgres"
)

func ordersCompiler(t *testing.T, extra ...core.Metric) *Compiler {
	t.Helper()
	reg, err := registry.New([]core.SemanticModel{testutil.OrdersModel()}, append(testutil.OrderMetrics(), extra...))
	require.NoError(t, err)
	return New(reg, duckdbdialect.DuckDB, WithLogger(testutil.NewTestLogger(t)))
}

func trafficCompiler(t *testing.T) *Compiler {
	t.Helper()
	reg, err := registry.New(testutil.TrafficModels(), testutil.TrafficMetrics())
	require.NoError(t, err)
	return New(reg, duckdbdialect.DuckDB, WithLogger(testutil.NewTestLogger(t)))
}

func TestCompile_SimpleMetric(t *testing.T) {
	c := ordersCompiler(t)

	got, err := c.Compile(core.QueryRequest{Metrics: []string{"revenue"}, Dimensions: []string{"country"}})
	require.NoError(t, err)

	expected := `WITH
  f_revenue AS (
    SELECT
      country,
      SUM(amount) AS revenue
    FROM orders
    WHERE status = 'completed'
    GROUP BY country
  )
SELECT
  country,
  revenue
FROM f_revenue
ORDER BY country
`
	assert.Equal(t, expected, got.SQL)
	assert.Equal(t, []string{"country", "revenue"}, got.Columns)
	assert.Equal(t, []string{"country"}, got.Dimensions)
	assert.Equal(t, []string{"revenue"}, got.Metrics)
}

func TestCompile_Deterministic(t *testing.T) {
	c := ordersCompiler(t)
	req := core.QueryRequest{
		Metrics:    []string{"average_order_value", "order_completion_rate", "customer_count"},
		Dimensions: []string{"order_date", "country"},
		Grain:      core.GrainMonth,
		Filters:    []string{"country <> 'FR'"},
		Limit:      20,
	}

	first, err := c.Compile(req)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := c.Compile(req)
		require.NoError(t, err)
		require.Equal(t, first.SQL, again.SQL)
	}
}

func TestCompile_PreservesDimensions(t *testing.T) {
	c := ordersCompiler(t)
	dimSets := [][]string{
		nil,
		{"country"},
		{"order_date"},
		{"order_status", "country"},
		{"country", "order_date", "order_status"},
	}

	for _, metric := range []string{"revenue", "customer_count", "average_order_value", "order_completion_rate"} {
		for _, dims := range dimSets {
			got, err := c.Compile(core.QueryRequest{Metrics: []string{metric}, Dimensions: dims})
			require.NoError(t, err, "%s by %v", metric, dims)
			if len(dims) == 0 {
				assert.Empty(t, got.Dimensions)
			} else {
				assert.Equal(t, dims, got.Dimensions)
			}
			assert.Equal(t, append(append([]string(nil), dims...), metric), got.Columns)
		}
	}
}

func TestCompile_Grain(t *testing.T) {
	monthly := core.SemanticModel{
		Name:  "budgets",
		Table: "budgets",
		Measures: []core.Measure{
			{Name: "budget_amount", Agg: core.AggSum, Expr: "amount"},
		},
		Dimensions: []core.Dimension{
			{Name: "budget_month", Type: core.DimensionTime, Expr: "month_start", Granularity: core.GrainMonth},
		},
	}
	reg, err := registry.New(
		[]core.SemanticModel{testutil.OrdersModel(), monthly},
		append(testutil.OrderMetrics(), core.Metric{
			Name: "budget", Kind: core.MetricSimple, Simple: &core.SimpleParams{Measure: "budget_amount"},
		}),
	)
	require.NoError(t, err)
	c := New(reg, duckdbdialect.DuckDB)

	t.Run("coarser grain truncates", func(t *testing.T) {
		got, err := c.Compile(core.QueryRequest{Metrics: []string{"revenue"}, Dimensions: []string{"order_date"}, Grain: core.GrainMonth})
		require.NoError(t, err)
		assert.Contains(t, got.SQL, "DATE_TRUNC('month', order_date) AS order_date")
		assert.Contains(t, got.SQL, "GROUP BY DATE_TRUNC('month', order_date)")
	})

	t.Run("no grain uses base granularity", func(t *testing.T) {
		got, err := c.Compile(core.QueryRequest{Metrics: []string{"budget"}, Dimensions: []string{"budget_month"}})
		require.NoError(t, err)
		assert.Contains(t, got.SQL, "DATE_TRUNC('month', month_start) AS budget_month")
	})

	t.Run("finer grain fails", func(t *testing.T) {
		_, err := c.Compile(core.QueryRequest{Metrics: []string{"budget"}, Dimensions: []string{"budget_month"}, Grain: core.GrainDay})
		var grainErr *core.InvalidGrainError
		require.ErrorAs(t, err, &grainErr)
		assert.Equal(t, "budget_month", grainErr.Dimension)
		assert.Equal(t, core.GrainDay, grainErr.Grain)
		assert.Equal(t, core.GrainMonth, grainErr.Base)
	})
}

func TestCompile_Ratio(t *testing.T) {
	c := trafficCompiler(t)

	got, err := c.Compile(core.QueryRequest{Metrics: []string{"conversion_rate"}, Dimensions: []string{"day"}})
	require.NoError(t, err)

	assert.Contains(t, got.SQL, "DATE_TRUNC('day', purchased_on) AS day")
	assert.Contains(t, got.SQL, "DATE_TRUNC('day', session_date) AS day")
	assert.Contains(t, got.SQL, "FROM f_purchases\n    UNION\n    SELECT\n      day\n    FROM f_sessions\n")
	assert.Contains(t, got.SQL, "LEFT JOIN f_purchases ON metrics_spine.day IS NOT DISTINCT FROM f_purchases.day")
	assert.Contains(t, got.SQL, "LEFT JOIN f_sessions ON metrics_spine.day IS NOT DISTINCT FROM f_sessions.day")
	assert.Contains(t, got.SQL, "metrics_spine.day AS day")
	assert.Contains(t, got.SQL, "purchases * 1.0 / NULLIF(sessions, 0) AS conversion_rate")
	assert.Contains(t, got.SQL, "FROM metrics_level_1")
	assert.Equal(t, []string{"day", "conversion_rate"}, got.Columns)
}

func TestCompile_PostgresJoinShape(t *testing.T) {
	reg, err := registry.New(testutil.TrafficModels(), testutil.TrafficMetrics())
	require.NoError(t, err)

	got, err := New(reg, postgresdialect.Postgres).Compile(core.QueryRequest{
		Metrics:    []string{"conversion_rate"},
		Dimensions: []string{"day"},
	})
	require.NoError(t, err)

	expected := `WITH
  f_purchases AS (
    SELECT
      CAST(DATE_TRUNC('day', purchased_on) AS DATE) AS day,
      COUNT(purchase_id) AS purchases
    FROM purchases
    GROUP BY CAST(DATE_TRUNC('day', purchased_on) AS DATE)
  ),
  f_sessions AS (
    SELECT
      CAST(DATE_TRUNC('day', session_date) AS DATE) AS day,
      COUNT(session_id) AS sessions
    FROM sessions
    GROUP BY CAST(DATE_TRUNC('day', session_date) AS DATE)
  ),
  metrics_spine AS (
    SELECT
      day
    FROM f_purchases
    UNION
    SELECT
      day
    FROM f_sessions
  ),
  metrics_joined AS (
    SELECT
      metrics_spine.day AS day,
      f_purchases.purchases AS purchases,
      f_sessions.sessions AS sessions
    FROM metrics_spine
    LEFT JOIN f_purchases ON metrics_spine.day IS NOT DISTINCT FROM f_purchases.day
    LEFT JOIN f_sessions ON metrics_spine.day IS NOT DISTINCT FROM f_sessions.day
  ),
  metrics_level_1 AS (
    SELECT
      metrics_joined.*,
      purchases * 1.0 / NULLIF(sessions, 0) AS conversion_rate
    FROM metrics_joined
  )
SELECT
  day,
  conversion_rate
FROM metrics_level_1
ORDER BY day
`
	assert.Equal(t, expected, got.SQL)
	// PostgreSQL rejects FULL JOIN on IS NOT DISTINCT FROM.
	assert.NotContains(t, got.SQL, "FULL")
}

func overlapCompiler(t *testing.T) *Compiler {
	t.Helper()
	reg, err := registry.New(testutil.OverlapModels(), testutil.OverlapMetrics())
	require.NoError(t, err)
	return New(reg, duckdbdialect.DuckDB, WithLogger(testutil.NewTestLogger(t)))
}

func TestCompile_JoinIgnoresMetricOrder(t *testing.T) {
	c := overlapCompiler(t)

	orders := [][]string{
		{"target", "visits", "sales"},
		{"target", "sales", "visits"},
		{"visits", "target", "sales"},
		{"visits", "sales", "target"},
		{"sales", "target", "visits"},
		{"sales", "visits", "target"},
	}
	for _, metrics := range orders {
		t.Run(strings.Join(metrics, ","), func(t *testing.T) {
			got, err := c.Compile(core.QueryRequest{Metrics: metrics, Dimensions: []string{"country", "day"}})
			require.NoError(t, err)

			// The widest key set seeds the spine whatever the request order.
			assert.Contains(t, got.SQL, "metrics_keys_1 AS (\n    SELECT\n      country,\n      day\n    FROM f_sales\n  )")
			assert.Contains(t, got.SQL, "metrics_spine_2 AS (")
			assert.Contains(t, got.SQL, "metrics_spine AS (")
			assert.Equal(t, 2, strings.Count(got.SQL, "WHERE NOT EXISTS ("))
			assert.Contains(t, got.SQL, "LEFT JOIN f_target ON metrics_spine.country IS NOT DISTINCT FROM f_target.country\n")
			assert.Contains(t, got.SQL, "LEFT JOIN f_visits ON metrics_spine.day IS NOT DISTINCT FROM f_visits.day\n")
			assert.Contains(t, got.SQL,
				"LEFT JOIN f_sales ON metrics_spine.country IS NOT DISTINCT FROM f_sales.country AND metrics_spine.day IS NOT DISTINCT FROM f_sales.day\n")
			assert.Equal(t, append([]string{"country", "day"}, metrics...), got.Columns)
		})
	}
}

func TestCompile_JoinDisconnectedDimensions(t *testing.T) {
	c := overlapCompiler(t)

	for _, metrics := range [][]string{{"target", "visits"}, {"visits", "target"}} {
		t.Run(strings.Join(metrics, ","), func(t *testing.T) {
			_, err := c.Compile(core.QueryRequest{Metrics: metrics, Dimensions: []string{"country", "day"}})
			var conflict *core.AssemblyConflictError
			require.ErrorAs(t, err, &conflict)
			assert.Contains(t, conflict.Reason, "shares no requested dimension")
		})
	}
}

func TestCompile_JoinKeySetsWithoutCommonSuperset(t *testing.T) {
	reg, err := registry.New(testutil.OverlapModels(), testutil.OverlapMetrics())
	require.NoError(t, err)

	got, err := New(reg, postgresdialect.Postgres).Compile(core.QueryRequest{
		Metrics:    []string{"stores", "sales"},
		Dimensions: []string{"country", "region", "day"},
	})
	require.NoError(t, err)

	expected := `  metrics_keys_1 AS (
    SELECT
      country,
      region
    FROM f_stores
  ),
  metrics_keys_2 AS (
    SELECT
      country,
      day
    FROM f_sales
  ),
  metrics_spine AS (
    SELECT
      metrics_keys_1.country AS country,
      metrics_keys_1.region AS region,
      metrics_keys_2.day AS day
    FROM metrics_keys_1
    LEFT JOIN metrics_keys_2 ON metrics_keys_1.country IS NOT DISTINCT FROM metrics_keys_2.country
    UNION
    SELECT
      metrics_keys_2.country AS country,
      NULL AS region,
      metrics_keys_2.day AS day
    FROM metrics_keys_2
    WHERE NOT EXISTS (
      SELECT
        1
      FROM metrics_keys_1
      WHERE metrics_keys_1.country IS NOT DISTINCT FROM metrics_keys_2.country
    )
  ),
`
	assert.Contains(t, got.SQL, expected)
	assert.Contains(t, got.SQL, "LEFT JOIN f_stores ON metrics_spine.country IS NOT DISTINCT FROM f_stores.country AND metrics_spine.region IS NOT DISTINCT FROM f_stores.region\n")
	assert.NotContains(t, got.SQL, "FULL")
}

func TestCompile_Derived(t *testing.T) {
	c := ordersCompiler(t)

	got, err := c.Compile(core.QueryRequest{Metrics: []string{"average_order_value"}})
	require.NoError(t, err)

	assert.Contains(t, got.SQL, "f_revenue AS (")
	assert.Contains(t, got.SQL, "f_completed_orders AS (")
	assert.Contains(t, got.SQL, "CROSS JOIN f_completed_orders")
	assert.Contains(t, got.SQL, "revenue * 1.0 / NULLIF(completed_orders, 0) AS average_order_value")
	assert.NotContains(t, got.SQL, "ORDER BY")
}

func TestCompile_NestedLevels(t *testing.T) {
	c := ordersCompiler(t, core.Metric{
		Name: "value_per_completion", Kind: core.MetricDerived,
		Derived: &core.DerivedParams{
			Expr:    "average_order_value * order_completion_rate",
			Metrics: []string{"average_order_value", "order_completion_rate"},
		},
	})

	got, err := c.Compile(core.QueryRequest{Metrics: []string{"value_per_completion"}, Dimensions: []string{"country"}})
	require.NoError(t, err)

	assert.Contains(t, got.SQL, "metrics_level_1 AS (")
	assert.Contains(t, got.SQL, "metrics_level_2 AS (")
	assert.Contains(t, got.SQL, "metrics_level_1.*")
	assert.Contains(t, got.SQL, "average_order_value * order_completion_rate AS value_per_completion")
	assert.Contains(t, got.SQL, "FROM metrics_level_2")
}

func TestCompile_SharedLeafAlias(t *testing.T) {
	c := ordersCompiler(t, core.Metric{
		Name: "done_orders", Kind: core.MetricSimple, Filter: "status = 'completed'",
		Simple: &core.SimpleParams{Measure: "order_count"},
	})

	got, err := c.Compile(core.QueryRequest{Metrics: []string{"completed_orders", "done_orders"}})
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(got.SQL, "COUNT(order_id)"))
	assert.Contains(t, got.SQL, "completed_orders AS done_orders")
}

func TestCompile_Cumulative(t *testing.T) {
	tests := []struct {
		name     string
		params   core.CumulativeParams
		grain    core.Grain
		contains []string
	}{
		{
			name:   "running total",
			params: core.CumulativeParams{Measure: "order_amount"},
			contains: []string{
				"SUM(cumulative_revenue) OVER (PARTITION BY country ORDER BY order_date) AS cumulative_revenue",
				") AS buckets",
			},
		},
		{
			name:   "seven day window",
			params: core.CumulativeParams{Measure: "order_amount", Window: &core.Window{Count: 7, Grain: core.GrainDay}},
			contains: []string{
				"ORDER BY order_date RANGE BETWEEN INTERVAL '6 days' PRECEDING AND CURRENT ROW",
			},
		},
		{
			name:   "month window",
			params: core.CumulativeParams{Measure: "order_amount", Window: &core.Window{Count: 3, Grain: core.GrainMonth}},
			grain:  core.GrainMonth,
			contains: []string{
				"RANGE BETWEEN (INTERVAL '3 months' - INTERVAL '1 day') PRECEDING AND CURRENT ROW",
			},
		},
		{
			name:   "month to date",
			params: core.CumulativeParams{Measure: "order_amount", GrainToDate: core.GrainMonth},
			contains: []string{
				"PARTITION BY country, DATE_TRUNC('month', order_date) ORDER BY order_date)",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := tt.params
			metrics := testutil.OrderMetrics()
			for i := range metrics {
				if metrics[i].Name == "cumulative_revenue" {
					metrics[i].Cumulative = &params
				}
			}
			reg, err := registry.New([]core.SemanticModel{testutil.OrdersModel()}, metrics)
			require.NoError(t, err)

			got, err := New(reg, duckdbdialect.DuckDB).Compile(core.QueryRequest{
				Metrics:    []string{"cumulative_revenue"},
				Dimensions: []string{"country", "order_date"},
				Grain:      tt.grain,
			})
			require.NoError(t, err)
			for _, want := range tt.contains {
				assert.Contains(t, got.SQL, want)
			}
		})
	}
}

func TestCompile_CumulativeRequiresTimeDimension(t *testing.T) {
	c := ordersCompiler(t)

	_, err := c.Compile(core.QueryRequest{Metrics: []string{"cumulative_revenue"}, Dimensions: []string{"country"}})
	var cumErr *core.CumulativeRequiresTimeDimensionError
	require.ErrorAs(t, err, &cumErr)
	assert.Equal(t, "cumulative_revenue", cumErr.Metric)
}

func TestCompile_Filters(t *testing.T) {
	t.Run("dimension names are rewritten to expressions", func(t *testing.T) {
		c := ordersCompiler(t)
		got, err := c.Compile(core.QueryRequest{
			Metrics: []string{"total_orders"},
			Filters: []string{"order_status = 'pending'"},
		})
		require.NoError(t, err)
		assert.Contains(t, got.SQL, "WHERE status = 'pending'")
	})

	t.Run("conjoined with metric filter", func(t *testing.T) {
		c := ordersCompiler(t)
		got, err := c.Compile(core.QueryRequest{
			Metrics: []string{"revenue"},
			Filters: []string{"country IN ('US', 'UK')"},
		})
		require.NoError(t, err)
		assert.Contains(t, got.SQL, "WHERE (status = 'completed') AND (country IN ('US', 'UK'))")
	})

	t.Run("applied only where the dimension exists", func(t *testing.T) {
		c := trafficCompiler(t)
		got, err := c.Compile(core.QueryRequest{
			Metrics:    []string{"conversion_rate"},
			Dimensions: []string{"day"},
			Filters:    []string{"channel = 'web'"},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, strings.Count(got.SQL, "channel = 'web'"))
		assert.Contains(t, got.SQL, "FROM sessions\n    WHERE channel = 'web'")
	})

	t.Run("unknown identifiers pass through", func(t *testing.T) {
		c := ordersCompiler(t)
		got, err := c.Compile(core.QueryRequest{
			Metrics: []string{"total_orders"},
			Filters: []string{"amount > 10"},
		})
		require.NoError(t, err)
		assert.Contains(t, got.SQL, "WHERE amount > 10")
	})

	t.Run("unparseable filter", func(t *testing.T) {
		c := ordersCompiler(t)
		_, err := c.Compile(core.QueryRequest{Metrics: []string{"revenue"}, Filters: []string{"status = 'open"}})
		var reqErr *core.InvalidRequestError
		require.ErrorAs(t, err, &reqErr)
		assert.Equal(t, "filters[0]", reqErr.Field)
	})
}

func TestCompile_TimeRange(t *testing.T) {
	c := ordersCompiler(t)
	tr, err := core.ParseTimeRange("2024-01-01", "2024-01-31")
	require.NoError(t, err)

	got, err := c.Compile(core.QueryRequest{Metrics: []string{"total_orders"}, Dimensions: []string{"country"}, TimeRange: tr})
	require.NoError(t, err)
	assert.Contains(t, got.SQL, "WHERE (order_date >= DATE '2024-01-01') AND (order_date < DATE '2024-02-01')")
}

func TestCompile_OpenEndedTimeRange(t *testing.T) {
	tests := []struct {
		name       string
		start, end string
		where      string
		absent     string
	}{
		{"start only", "2024-02-01", "", "WHERE order_date >= DATE '2024-02-01'\n", "order_date <"},
		{"end only", "", "2024-02-29", "WHERE order_date < DATE '2024-03-01'\n", "order_date >="},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := core.ParseTimeRange(tt.start, tt.end)
			require.NoError(t, err)

			got, err := ordersCompiler(t).Compile(core.QueryRequest{Metrics: []string{"total_orders"}, TimeRange: tr})
			require.NoError(t, err)
			assert.Contains(t, got.SQL, tt.where)
			assert.NotContains(t, got.SQL, tt.absent)
		})
	}
}

func TestAggregate_UnknownKind(t *testing.T) {
	_, err := aggregate(core.Measure{Name: "median_amount", Agg: "median", Expr: "amount"})
	var defErr *core.DefinitionError
	require.ErrorAs(t, err, &defErr)
	assert.Equal(t, "median_amount", defErr.Name)
	assert.Contains(t, defErr.Message, `unknown aggregation "median"`)
}

func TestCompile_TimeRangeWithoutTimeDimension(t *testing.T) {
	model := testutil.OrdersModel()
	model.Dimensions = model.Dimensions[1:]
	reg, err := registry.New([]core.SemanticModel{model}, []core.Metric{
		{Name: "total_orders", Kind: core.MetricSimple, Simple: &core.SimpleParams{Measure: "order_count"}},
	})
	require.NoError(t, err)

	_, err = New(reg, duckdbdialect.DuckDB).Compile(core.QueryRequest{
		Metrics:   []string{"total_orders"},
		TimeRange: &core.TimeRange{Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
	})
	var reqErr *core.InvalidRequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, "time_range", reqErr.Field)
}

func TestCompile_OrderAndLimit(t *testing.T) {
	c := ordersCompiler(t)

	got, err := c.Compile(core.QueryRequest{
		Metrics:    []string{"revenue", "total_orders"},
		Dimensions: []string{"country"},
		OrderBy:    []core.OrderBy{core.ParseOrderBy("-revenue"), core.ParseOrderBy("country")},
		Limit:      5,
	})
	require.NoError(t, err)
	assert.Contains(t, got.SQL, "ORDER BY revenue DESC, country\nLIMIT 5\n")
}

func TestCompile_PostgresDialect(t *testing.T) {
	reg, err := registry.New([]core.SemanticModel{testutil.OrdersModel()}, testutil.OrderMetrics())
	require.NoError(t, err)

	got, err := New(reg, postgresdialect.Postgres).Compile(core.QueryRequest{
		Metrics:    []string{"revenue"},
		Dimensions: []string{"order_date"},
	})
	require.NoError(t, err)
	assert.Contains(t, got.SQL, "CAST(DATE_TRUNC('day', order_date) AS DATE) AS order_date")
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		traffic bool
		req     core.QueryRequest
		check   func(t *testing.T, err error)
	}{
		{
			name: "no metrics",
			req:  core.QueryRequest{},
			check: func(t *testing.T, err error) {
				var e *core.InvalidRequestError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, "metrics", e.Field)
			},
		},
		{
			name: "unknown metric",
			req:  core.QueryRequest{Metrics: []string{"revenue", "profit"}},
			check: func(t *testing.T, err error) {
				var e *core.UnknownMetricError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, "profit", e.Name)
			},
		},
		{
			name: "unknown dimension",
			req:  core.QueryRequest{Metrics: []string{"revenue"}, Dimensions: []string{"planet"}},
			check: func(t *testing.T, err error) {
				var e *core.UnknownDimensionError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, "planet", e.Name)
			},
		},
		{
			name: "duplicate metric",
			req:  core.QueryRequest{Metrics: []string{"revenue", "revenue"}},
			check: func(t *testing.T, err error) {
				var e *core.InvalidRequestError
				require.ErrorAs(t, err, &e)
				assert.Contains(t, e.Message, "twice")
			},
		},
		{
			name: "negative limit",
			req:  core.QueryRequest{Metrics: []string{"revenue"}, Limit: -1},
			check: func(t *testing.T, err error) {
				var e *core.InvalidRequestError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, "limit", e.Field)
			},
		},
		{
			name: "unknown grain",
			req:  core.QueryRequest{Metrics: []string{"revenue"}, Grain: "fortnight"},
			check: func(t *testing.T, err error) {
				var e *core.InvalidRequestError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, "grain", e.Field)
			},
		},
		{
			name: "order by unrequested column",
			req:  core.QueryRequest{Metrics: []string{"revenue"}, OrderBy: []core.OrderBy{{Name: "country"}}},
			check: func(t *testing.T, err error) {
				var e *core.InvalidRequestError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, "order_by", e.Field)
			},
		},
		{
			name:    "no shared dimension to join on",
			traffic: true,
			req:     core.QueryRequest{Metrics: []string{"conversion_rate"}, Dimensions: []string{"channel"}},
			check: func(t *testing.T, err error) {
				var e *core.AssemblyConflictError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, []string{"conversion_rate"}, e.Metrics)
				assert.Equal(t, []string{"channel"}, e.Dimensions)
			},
		},
		{
			name:    "dimension on another model only",
			traffic: true,
			req:     core.QueryRequest{Metrics: []string{"purchases"}, Dimensions: []string{"channel"}},
			check: func(t *testing.T, err error) {
				var e *core.AssemblyConflictError
				require.ErrorAs(t, err, &e)
				assert.Contains(t, e.Error(), `dimension "channel" is not available on model "purchases"`)
			},
		},
		{
			name:    "filter no fragment can apply",
			traffic: true,
			req:     core.QueryRequest{Metrics: []string{"purchases"}, Filters: []string{"channel = 'web'"}},
			check: func(t *testing.T, err error) {
				var e *core.AssemblyConflictError
				require.ErrorAs(t, err, &e)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ordersCompiler(t)
			if tt.traffic {
				c = trafficCompiler(t)
			}
			_, err := c.Compile(tt.req)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestCompile_RequiresDialect(t *testing.T) {
	reg, err := registry.New([]core.SemanticModel{testutil.OrdersModel()}, testutil.OrderMetrics())
	require.NoError(t, err)

	_, err = New(reg, nil).Compile(core.QueryRequest{Metrics: []string{"revenue"}})
	assert.ErrorIs(t, err, dialect.ErrDialectRequired)
}
