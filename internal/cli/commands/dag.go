package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapmetrics/internal/cli/output"
)

// GraphQuerier provides read-only access to DAG structure.
type GraphQuerier interface {
	Parents(string) []string
	Children(string) []string
	NodeCount() int
	EdgeCount() int
}

// DAGNode is one metric in the dependency graph output.
type DAGNode struct {
	Name      string   `json:"name"`
	DependsOn []string `json:"depends_on"`
	UsedBy    []string `json:"used_by"`
}

// DAGLevel groups the metrics at one dependency depth.
type DAGLevel struct {
	Level   int       `json:"level"`
	Metrics []DAGNode `json:"metrics"`
}

// DAGOutput is the JSON shape of the dag command.
type DAGOutput struct {
	Levels       []DAGLevel `json:"levels"`
	TotalMetrics int        `json:"total_metrics"`
	TotalEdges   int        `json:"total_edges"`
}

// NewDAGCommand creates the dag command.
func NewDAGCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dag",
		Short: "Show the metric dependency graph",
		Long: `Display the dependency graph (DAG) of all metrics.

Metrics are grouped by dependency level. Level 0 holds simple and
cumulative metrics; ratio and derived metrics sit one level above the
deepest metric they reference.

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format (agent-friendly)`,
		Example: `  # Show the DAG
  leapmetrics dag

  # Output as JSON
  leapmetrics dag --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDAG(cmd)
		},
	}

	return cmd
}

func runDAG(cmd *cobra.Command) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	r := cmdCtx.Renderer
	graph := cmdCtx.Engine.Registry().Graph()

	levels, err := graph.ExecutionLevels()
	if err != nil {
		return fmt.Errorf("failed to get dependency levels: %w", err)
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(buildDAGOutput(graph, levels))
	case output.ModeMarkdown, output.ModeCSV:
		return dagMarkdown(r, graph, levels)
	default:
		return dagText(r, graph, levels)
	}
}

// dagText outputs DAG in styled text format.
func dagText(r *output.Renderer, graph GraphQuerier, levels [][]string) error {
	styles := r.Styles()

	r.Header(1, "Metric Dependencies")

	for i, level := range levels {
		r.Println(styles.Header2.Render(fmt.Sprintf("Level %d:", i)))
		for _, metric := range level {
			r.Printf("  %s\n", styles.Bold.Render(metric))
			if deps := graph.Parents(metric); len(deps) > 0 {
				r.Printf("    %s %s\n", styles.Muted.Render("depends on:"), strings.Join(deps, ", "))
			}
			if children := graph.Children(metric); len(children) > 0 {
				r.Printf("    %s %s\n", styles.Muted.Render("used by:"), strings.Join(children, ", "))
			}
		}
		r.Println("")
	}

	r.Println(styles.Muted.Render(fmt.Sprintf("Total: %d metrics, %d dependencies", graph.NodeCount(), graph.EdgeCount())))
	return nil
}

// dagMarkdown outputs DAG in markdown format.
func dagMarkdown(r *output.Renderer, graph GraphQuerier, levels [][]string) error {
	r.Println(output.FormatHeader(1, "Metric Dependencies"))
	r.Println("")

	for i, level := range levels {
		levelName := fmt.Sprintf("Level %d", i)
		if i == 0 {
			levelName = "Level 0 (Base metrics)"
		}
		r.Println(output.FormatHeader(2, levelName))

		for _, metric := range level {
			r.Printf("- %s\n", metric)
			if deps := graph.Parents(metric); len(deps) > 0 {
				r.Printf("  - depends on: %s\n", strings.Join(deps, ", "))
			}
			if children := graph.Children(metric); len(children) > 0 {
				r.Printf("  - used by: %s\n", strings.Join(children, ", "))
			}
		}
		r.Println("")
	}

	r.Println(output.FormatHeader(2, "Summary"))
	r.Printf("**Total Metrics:** %d\n", graph.NodeCount())
	r.Printf("**Total Dependencies:** %d\n", graph.EdgeCount())
	return nil
}

func buildDAGOutput(graph GraphQuerier, levels [][]string) DAGOutput {
	out := DAGOutput{
		Levels:       make([]DAGLevel, 0, len(levels)),
		TotalMetrics: graph.NodeCount(),
		TotalEdges:   graph.EdgeCount(),
	}
	for i, level := range levels {
		dagLevel := DAGLevel{Level: i, Metrics: make([]DAGNode, 0, len(level))}
		for _, metric := range level {
			dagLevel.Metrics = append(dagLevel.Metrics, DAGNode{
				Name:      metric,
				DependsOn: nonNil(graph.Parents(metric)),
				UsedBy:    nonNil(graph.Children(metric)),
			})
		}
		out.Levels = append(out.Levels, dagLevel)
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
