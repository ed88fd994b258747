package testutil

import "github.com/leapstack-labs/leapmetrics/pkg/core"

// OrdersModel returns the orders semantic model used across tests.
func OrdersModel() core.SemanticModel {
	return core.SemanticModel{
		Name:          "orders",
		Table:         "orders",
		PrimaryEntity: "order_id",
		Entities: []core.Entity{
			{Name: "order_id", Type: core.EntityPrimary},
			{Name: "customer_id", Type: core.EntityForeign},
		},
		Measures: []core.Measure{
			{Name: "order_amount", Agg: core.AggSum, Expr: "amount"},
			{Name: "order_count", Agg: core.AggCount, Expr: "order_id"},
			{Name: "unique_customers", Agg: core.AggCountDistinct, Expr: "customer_id"},
			{Name: "avg_amount", Agg: core.AggAvg, Expr: "amount"},
		},
		Dimensions: []core.Dimension{
			{Name: "order_date", Type: core.DimensionTime, Granularity: core.GrainDay},
			{Name: "order_status", Type: core.DimensionCategorical, Expr: "status"},
			{Name: "country", Type: core.DimensionCategorical},
		},
	}
}

// OrderMetrics returns metrics over OrdersModel covering every metric kind.
func OrderMetrics() []core.Metric {
	return []core.Metric{
		{Name: "revenue", Kind: core.MetricSimple, Filter: "status = 'completed'",
			Simple: &core.SimpleParams{Measure: "order_amount"}},
		{Name: "total_orders", Kind: core.MetricSimple,
			Simple: &core.SimpleParams{Measure: "order_count"}},
		{Name: "completed_orders", Kind: core.MetricSimple, Filter: "status = 'completed'",
			Simple: &core.SimpleParams{Measure: "orders.order_count"}},
		{Name: "customer_count", Kind: core.MetricSimple,
			Simple: &core.SimpleParams{Measure: "unique_customers"}},
		{Name: "average_order_value", Kind: core.MetricDerived,
			Derived: &core.DerivedParams{Expr: "revenue / completed_orders", Metrics: []string{"revenue", "completed_orders"}}},
		{Name: "order_completion_rate", Kind: core.MetricRatio,
			Ratio: &core.RatioParams{Numerator: "completed_orders", Denominator: "total_orders"}},
		{Name: "cumulative_revenue", Kind: core.MetricCumulative, Filter: "status = 'completed'",
			Cumulative: &core.CumulativeParams{Measure: "order_amount"}},
	}
}

// TrafficModels returns two models sharing a "day" time dimension.
func TrafficModels() []core.SemanticModel {
	return []core.SemanticModel{
		{
			Name:          "sessions",
			Table:         "sessions",
			PrimaryEntity: "session_id",
			Measures:      []core.Measure{{Name: "session_count", Agg: core.AggCount, Expr: "session_id"}},
			Dimensions: []core.Dimension{
				{Name: "day", Type: core.DimensionTime, Expr: "session_date", Granularity: core.GrainDay},
				{Name: "channel", Type: core.DimensionCategorical},
			},
		},
		{
			Name:          "purchases",
			Table:         "purchases",
			PrimaryEntity: "purchase_id",
			Measures:      []core.Measure{{Name: "purchase_count", Agg: core.AggCount, Expr: "purchase_id"}},
			Dimensions: []core.Dimension{
				{Name: "day", Type: core.DimensionTime, Expr: "purchased_on", Granularity: core.GrainDay},
			},
		},
	}
}

// TrafficMetrics returns purchases, sessions and their ratio.
func TrafficMetrics() []core.Metric {
	return []core.Metric{
		{Name: "purchases", Kind: core.MetricSimple, Simple: &core.SimpleParams{Measure: "purchase_count"}},
		{Name: "sessions", Kind: core.MetricSimple, Simple: &core.SimpleParams{Measure: "session_count"}},
		{Name: "conversion_rate", Kind: core.MetricRatio,
			Ratio: &core.RatioParams{Numerator: "purchases", Denominator: "sessions"}},
	}
}

// OverlapModels returns models whose dimension sets only partly overlap:
// targets by country, visits by day, sales by country and day, and stores
// by country and region.
func OverlapModels() []core.SemanticModel {
	country := core.Dimension{Name: "country", Type: core.DimensionCategorical}
	return []core.SemanticModel{
		{
			Name:       "targets",
			Table:      "targets",
			Measures:   []core.Measure{{Name: "target_total", Agg: core.AggSum, Expr: "target"}},
			Dimensions: []core.Dimension{country},
		},
		{
			Name:     "visits",
			Table:    "visits",
			Measures: []core.Measure{{Name: "visit_count", Agg: core.AggCount, Expr: "visit_id"}},
			Dimensions: []core.Dimension{
				{Name: "day", Type: core.DimensionTime, Expr: "visited_on", Granularity: core.GrainDay},
			},
		},
		{
			Name:     "sales",
			Table:    "sales",
			Measures: []core.Measure{{Name: "sale_total", Agg: core.AggSum, Expr: "amount"}},
			Dimensions: []core.Dimension{
				country,
				{Name: "day", Type: core.DimensionTime, Expr: "sold_on", Granularity: core.GrainDay},
			},
		},
		{
			Name:     "stores",
			Table:    "stores",
			Measures: []core.Measure{{Name: "store_count", Agg: core.AggCount, Expr: "store_id"}},
			Dimensions: []core.Dimension{
				country,
				{Name: "region", Type: core.DimensionCategorical},
			},
		},
	}
}

// OverlapMetrics returns one simple metric per OverlapModels model.
func OverlapMetrics() []core.Metric {
	return []core.Metric{
		{Name: "target", Kind: core.MetricSimple, Simple: &core.SimpleParams{Measure: "target_total"}},
		{Name: "visits", Kind: core.MetricSimple, Simple: &core.SimpleParams{Measure: "visit_count"}},
		{Name: "sales", Kind: core.MetricSimple, Simple: &core.SimpleParams{Measure: "sale_total"}},
		{Name: "stores", Kind: core.MetricSimple, Simple: &core.SimpleParams{Measure: "store_count"}},
	}
}

// OrdersCSV is ten sample orders matching OrdersModel.
const OrdersCSV = `order_id,customer_id,amount,status,country,order_date
1,101,100,completed,US,2024-01-15
2,102,150,completed,UK,2024-01-20
3,101,200,pending,US,2024-02-01
4,103,75,completed,DE,2024-02-10
5,104,300,completed,US,2024-02-15
6,102,125,cancelled,UK,2024-02-20
7,105,175,completed,FR,2024-03-01
8,101,250,completed,US,2024-03-05
9,106,50,pending,DE,2024-03-10
10,103,400,completed,UK,2024-03-15
`

// OrdersYAML declares OrdersModel and OrderMetrics as a definition file.
const OrdersYAML = `semantic_models:
  - name: orders
    table: ref('orders')
    primary_entity: order_id
    description: One row per order
    entities:
      - name: order_id
        type: primary
      - name: customer_id
        type: foreign
    measures:
      - name: order_amount
        agg: sum
        expr: amount
      - name: order_count
        agg: count
        expr: order_id
      - name: unique_customers
        agg: count_distinct
        expr: customer_id
      - name: avg_amount
        agg: avg
        expr: amount
    dimensions:
      - name: order_date
        type: time
        time_granularity: day
      - name: order_status
        type: categorical
        expr: status
      - name: country
        type: categorical

metrics:
  - name: revenue
    type: simple
    label: Revenue
    filter: status = 'completed'
    type_params:
      measure: order_amount
  - name: total_orders
    type: simple
    type_params:
      measure: order_count
  - name: completed_orders
    type: simple
    filter: status = 'completed'
    type_params:
      measure: orders.order_count
  - name: customer_count
    type: simple
    type_params:
      measure: unique_customers
  - name: average_order_value
    type: derived
    type_params:
      expr: revenue / completed_orders
      metrics: [revenue, completed_orders]
  - name: order_completion_rate
    type: ratio
    type_params:
      numerator: completed_orders
      denominator: total_orders
  - name: cumulative_revenue
    type: cumulative
    filter: status = 'completed'
    type_params:
      measure: order_amount
`
