package commands

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapmetrics/internal/cli/output"
	"github.com/leapstack-labs/leapmetrics/internal/engine"
	"github.com/leapstack-labs/leapmetrics/internal/state"
)

// HistoryRow is the JSON shape of one history entry.
type HistoryRow struct {
	ID         string   `json:"id"`
	ExecutedAt string   `json:"executed_at"`
	Metrics    []string `json:"metrics"`
	Dimensions []string `json:"dimensions"`
	Status     string   `json:"status"`
	RowCount   int      `json:"row_count"`
	DurationMS int64    `json:"duration_ms"`
	SQL        string   `json:"sql"`
	Error      string   `json:"error,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [id]",
		Short: "Show recently executed queries",
		Long: `Show queries executed by query and serve, newest first.
Dry runs and compile failures are not recorded.

With an entry ID, show that execution and its SQL.`,
		Example: `  # Last 20 queries
  leapmetrics history

  # Last 5 queries as JSON
  leapmetrics history --limit 5 --output json

  # One execution with its SQL
  leapmetrics history 0b6f3c1e-...`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runHistoryEntry(cmd, args[0])
			}
			return runHistory(cmd, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries to show")
	return cmd
}

func runHistory(cmd *cobra.Command, limit int) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	r := cmdCtx.Renderer

	entries, err := cmdCtx.Engine.History(cmd.Context(), limit)
	if errors.Is(err, engine.ErrHistoryDisabled) {
		r.Warning("Query history is disabled (set history: true and a state path)")
		return nil
	}
	if err != nil {
		return err
	}

	if r.EffectiveMode() == output.ModeJSON {
		rows := make([]HistoryRow, len(entries))
		for i, e := range entries {
			rows[i] = historyRow(e)
		}
		return r.JSON(rows)
	}

	r.Header(1, "Query History")
	if len(entries) == 0 {
		r.Muted("No queries recorded yet")
		return nil
	}

	rows := make([][]string, len(entries))
	for i, e := range entries {
		status := string(e.Status)
		if e.Error != "" {
			status += ": " + firstLine(e.Error)
		}
		rows[i] = []string{
			e.ExecutedAt.Local().Format(time.DateTime),
			strings.Join(e.Metrics, ", "),
			strings.Join(e.Dimensions, ", "),
			status,
			strconv.Itoa(e.RowCount),
			e.Duration.Round(time.Millisecond).String(),
		}
	}
	return r.Table([]string{"executed at", "metrics", "dimensions", "status", "rows", "duration"}, rows)
}

func runHistoryEntry(cmd *cobra.Command, id string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	r := cmdCtx.Renderer

	entry, err := cmdCtx.Engine.HistoryEntry(cmd.Context(), id)
	if errors.Is(err, engine.ErrHistoryDisabled) {
		r.Warning("Query history is disabled (set history: true and a state path)")
		return nil
	}
	if err != nil {
		return err
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(historyRow(entry))
	}

	r.Header(1, "Query "+entry.ID)
	r.Printf("Executed at: %s\n", entry.ExecutedAt.Local().Format(time.DateTime))
	r.Printf("Metrics:     %s\n", strings.Join(entry.Metrics, ", "))
	if len(entry.Dimensions) > 0 {
		r.Printf("Dimensions:  %s\n", strings.Join(entry.Dimensions, ", "))
	}
	r.Printf("Status:      %s\n", entry.Status)
	r.Printf("Rows:        %d\n", entry.RowCount)
	r.Printf("Duration:    %s\n", entry.Duration.Round(time.Millisecond))
	if entry.Error != "" {
		r.Error(entry.Error)
	}
	r.Println("")
	return printSQL(r, entry.SQL)
}

func historyRow(e *state.HistoryEntry) HistoryRow {
	row := HistoryRow{
		ID:         e.ID,
		ExecutedAt: e.ExecutedAt.UTC().Format(time.RFC3339),
		Metrics:    nonNil(e.Metrics),
		Dimensions: nonNil(e.Dimensions),
		Status:     string(e.Status),
		RowCount:   e.RowCount,
		DurationMS: e.Duration.Milliseconds(),
		SQL:        e.SQL,
		Error:      e.Error,
	}
	return row
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
