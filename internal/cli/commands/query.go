package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapmetrics/internal/cli/output"
	"github.com/leapstack-labs/leapmetrics/internal/engine"
)

// QueryOptions holds options for the query and sql commands.
type QueryOptions struct {
	Params  engine.RequestParams
	ShowSQL bool
	DryRun  bool
	Seed    bool
}

// addRequestFlags registers the flags that build a query request.
func addRequestFlags(cmd *cobra.Command, opts *QueryOptions) {
	cmd.Flags().StringSliceVarP(&opts.Params.Dimensions, "dimensions", "d", nil, "Dimensions to group by (comma-separated)")
	cmd.Flags().StringVarP(&opts.Params.Grain, "grain", "g", "", "Time grain for time dimensions: day, week, month, quarter, year")
	cmd.Flags().StringArrayVarP(&opts.Params.Filters, "filter", "f", nil, "SQL predicate over dimensions (repeatable)")
	cmd.Flags().StringVar(&opts.Params.Start, "start", "", "Inclusive start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.Params.End, "end", "", "Inclusive end date (YYYY-MM-DD)")
	cmd.Flags().IntVarP(&opts.Params.Limit, "limit", "l", 0, "Maximum rows (0 for no limit)")
	cmd.Flags().StringSliceVar(&opts.Params.OrderBy, "order-by", nil, "Order columns; prefix with - for descending")

	_ = cmd.RegisterFlagCompletionFunc("grain", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"day", "week", "month", "quarter", "year"}, cobra.ShellCompDirectiveNoFileComp
	})
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query <metric>...",
		Short: "Query metrics",
		Long: `Compile metrics to SQL and run the query against the target database.

Metrics are sliced by the requested dimensions, truncated to --grain,
filtered by --filter predicates and bounded by --start/--end on the time
dimension. Either bound may be given alone. Each execution is recorded in the query history.`,
		Example: `  # Revenue by country
  leapmetrics query revenue -d country

  # Monthly revenue and order count, most recent first
  leapmetrics query revenue total_orders -d order_date -g month --order-by -order_date

  # Print the SQL before the results
  leapmetrics query order_completion_rate --sql

  # Load seeds into an in-memory database first
  leapmetrics query revenue -d country --seed

  # Show the SQL without running it
  leapmetrics query revenue -d country --dry-run`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Params.Metrics = args
			return runQuery(cmd, opts)
		},
	}

	addRequestFlags(cmd, opts)
	cmd.Flags().BoolVar(&opts.ShowSQL, "sql", false, "Print the generated SQL before the results")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Print the generated SQL without executing it")
	cmd.Flags().BoolVar(&opts.Seed, "seed", false, "Load seed files before querying")

	return cmd
}

func runQuery(cmd *cobra.Command, opts *QueryOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	eng := cmdCtx.Engine
	r := cmdCtx.Renderer

	req, err := opts.Params.Request()
	if err != nil {
		return err
	}

	if opts.Seed && !opts.DryRun {
		tables, err := eng.LoadSeeds(cmd.Context(), "")
		if err != nil {
			return err
		}
		cmdCtx.Logger.Debug("seeds loaded", "tables", tables)
	}

	result, err := eng.Query(cmd.Context(), req, engine.QueryOptions{DryRun: opts.DryRun})
	if err != nil {
		return err
	}

	if opts.DryRun {
		return printSQL(r, result.SQL)
	}
	if opts.ShowSQL && r.EffectiveMode() != output.ModeJSON {
		if err := printSQL(r, result.SQL); err != nil {
			return err
		}
		r.Println("")
	}
	return r.Result(result)
}

// printSQL writes SQL as a fenced block in markdown, JSON when asked, and
// plain text otherwise.
func printSQL(r *output.Renderer, sql string) error {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(map[string]string{"sql": sql})
	case output.ModeMarkdown:
		r.Printf("```sql\n%s\n```\n", strings.TrimRight(sql, "\n"))
	case output.ModeText:
		// Styled per line; lipgloss pads multi-line blocks to equal width.
		for _, line := range strings.Split(strings.TrimRight(sql, "\n"), "\n") {
			r.Println(r.Styles().Code.Render(line))
		}
	case output.ModeAuto, output.ModeCSV:
		r.Println(strings.TrimRight(sql, "\n"))
	}
	return nil
}

// NewSQLCommand creates the sql command.
func NewSQLCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "sql <metric>...",
		Short: "Show the SQL for a metric query",
		Long: `Compile metrics to SQL without connecting to the database.
Accepts the same flags as query.`,
		Example: `  # SQL for weekly revenue in the US
  leapmetrics sql revenue -d order_date -g week -f "country = 'US'"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Params.Metrics = args
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			req, err := opts.Params.Request()
			if err != nil {
				return err
			}
			compiled, err := cmdCtx.Engine.Compile(req)
			if err != nil {
				return err
			}
			return printSQL(cmdCtx.Renderer, compiled.SQL)
		},
	}

	addRequestFlags(cmd, opts)
	return cmd
}
