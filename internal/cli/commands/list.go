package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapmetrics/internal/cli/output"
	"github.com/leapstack-labs/leapmetrics/internal/engine"
)

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List metrics, dimensions or measures",
		Long: `List the metrics, dimensions or measures defined in the metrics directory.
With no subcommand, metrics are listed.

Output adapts to environment:
  - Terminal: Styled table
  - Piped/Scripted: Markdown format (agent-friendly)

Use --output to override: auto, text, markdown, json, csv`,
		Example: `  # List all metrics
  leapmetrics list

  # List dimensions as JSON
  leapmetrics list dimensions --output json

  # List measures as Markdown (for agents/scripts)
  leapmetrics list measures --output markdown`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd, "metrics")
		},
	}

	for _, kind := range []string{"metrics", "dimensions", "measures"} {
		cmd.AddCommand(&cobra.Command{
			Use:   kind,
			Short: "List " + kind,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runList(cmd, kind)
			},
		})
	}

	return cmd
}

func runList(cmd *cobra.Command, kind string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	eng := cmdCtx.Engine
	r := cmdCtx.Renderer

	switch kind {
	case "dimensions":
		dims := eng.DescribeDimensions()
		if r.EffectiveMode() == output.ModeJSON {
			return r.JSON(dims)
		}
		r.Header(1, fmt.Sprintf("Dimensions (%d total)", len(dims)))
		rows := make([][]string, len(dims))
		for i, d := range dims {
			rows[i] = []string{d.Name, d.Model, d.Type, d.Granularity, d.Expr}
		}
		return r.Table([]string{"name", "model", "type", "granularity", "expr"}, rows)

	case "measures":
		measures := eng.DescribeMeasures()
		if r.EffectiveMode() == output.ModeJSON {
			return r.JSON(measures)
		}
		r.Header(1, fmt.Sprintf("Measures (%d total)", len(measures)))
		rows := make([][]string, len(measures))
		for i, m := range measures {
			rows[i] = []string{m.Name, m.Model, m.Agg, m.Expr}
		}
		return r.Table([]string{"name", "model", "agg", "expr"}, rows)

	default:
		metrics := eng.DescribeMetrics()
		if r.EffectiveMode() == output.ModeJSON {
			return r.JSON(metrics)
		}
		r.Header(1, fmt.Sprintf("Metrics (%d total)", len(metrics)))
		rows := make([][]string, len(metrics))
		for i, m := range metrics {
			rows[i] = []string{m.Name, m.Type, metricSource(m), m.Description}
		}
		return r.Table([]string{"name", "type", "definition", "description"}, rows)
	}
}

// metricSource is the one-line definition shown in metric listings.
func metricSource(m engine.MetricInfo) string {
	src := m.Measure
	if m.Expr != "" {
		src = m.Expr
	}
	if m.Filter != "" {
		src += " where " + strings.TrimSpace(m.Filter)
	}
	return src
}
