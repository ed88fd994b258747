// Package main provides tests for the leapmetrics CLI.
package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapmetrics/internal/cli"
	"github.com/leapstack-labs/leapmetrics/internal/cli/testutil"
)

// run executes the root command with args and returns stdout and stderr.
func run(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := cli.NewRootCmd()
	outBuf, errBuf := new(bytes.Buffer), new(bytes.Buffer)
	cmd.SetOut(outBuf)
	cmd.SetErr(errBuf)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return outBuf.String(), errBuf.String(), err
}

// inProject changes into a fresh orders project for the test.
func inProject(t *testing.T) string {
	t.Helper()
	dir := testutil.SetupTestProject(t)
	t.Chdir(dir)
	return dir
}

func TestVersionCommand(t *testing.T) {
	out, _, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "leapmetrics v"+cli.Version)
}

func TestHelpCommand(t *testing.T) {
	out, _, err := run(t, "--help")
	require.NoError(t, err)
	for _, name := range []string{"query", "sql", "validate", "list", "dag", "seed", "history", "serve", "init"} {
		assert.Contains(t, out, name)
	}
}

func TestQueryCommand_CSV(t *testing.T) {
	inProject(t)

	out, _, err := run(t, "query", "revenue", "-d", "country", "--seed", "-o", "csv")
	require.NoError(t, err)
	assert.Equal(t, "country,revenue\nDE,75\nFR,175\nUK,550\nUS,650\n", out)
}

func TestQueryCommand_OrderAndLimit(t *testing.T) {
	inProject(t)

	out, _, err := run(t, "query", "revenue", "-d", "country", "--order-by", "-revenue", "--limit", "2", "--seed", "-o", "csv")
	require.NoError(t, err)
	assert.Equal(t, "country,revenue\nUS,650\nUK,550\n", out)
}

func TestQueryCommand_DryRun(t *testing.T) {
	inProject(t)

	out, _, err := run(t, "query", "order_completion_rate", "--dry-run", "-o", "markdown")
	require.NoError(t, err)
	testutil.AssertValidMarkdown(t, out)
	assert.Contains(t, out, "```sql\n")
	assert.Contains(t, out, "NULLIF(total_orders, 0)")

	// Dry runs are not recorded.
	out, _, err = run(t, "history", "-o", "json")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)
}

func TestQueryCommand_Errors(t *testing.T) {
	inProject(t)

	tests := []struct {
		name     string
		args     []string
		wantErr  string
		wantCode int
	}{
		{
			name:     "unknown metric",
			args:     []string{"query", "profit"},
			wantErr:  "profit",
			wantCode: cli.ExitRequest,
		},
		{
			name:     "unknown dimension",
			args:     []string{"query", "revenue", "-d", "region", "--dry-run"},
			wantErr:  "region",
			wantCode: cli.ExitRequest,
		},
		{
			name:     "bad grain",
			args:     []string{"sql", "revenue", "-d", "order_date", "-g", "fortnight"},
			wantErr:  "grain",
			wantCode: cli.ExitRequest,
		},
		{
			name:     "end before start",
			args:     []string{"sql", "revenue", "--start", "2024-02-01", "--end", "2024-01-01"},
			wantErr:  "before start",
			wantCode: cli.ExitRequest,
		},
		{
			name:     "missing argument",
			args:     []string{"query"},
			wantErr:  "requires at least 1 arg",
			wantCode: cli.ExitError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := run(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, tt.wantCode, cli.ExitCode(err))
		})
	}
}

func TestQueryCommand_OpenEndedRange(t *testing.T) {
	inProject(t)

	out, _, err := run(t, "query", "total_orders", "--start", "2024-03-01", "--seed", "-o", "csv")
	require.NoError(t, err)
	assert.Equal(t, "total_orders\n4\n", out)

	out, _, err = run(t, "query", "total_orders", "--end", "2024-01-31", "--seed", "-o", "csv")
	require.NoError(t, err)
	assert.Equal(t, "total_orders\n2\n", out)
}

func TestSQLCommand_JSON(t *testing.T) {
	inProject(t)

	out, _, err := run(t, "sql", "revenue", "-d", "order_date", "-g", "month", "-o", "json")
	require.NoError(t, err)

	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Contains(t, got["sql"], "DATE_TRUNC('month', order_date)")
	assert.Contains(t, got["sql"], "SUM(amount) AS revenue")
}

func TestListCommandJSON(t *testing.T) {
	inProject(t)

	out, _, err := run(t, "list", "-o", "json")
	require.NoError(t, err)

	var metrics []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &metrics))
	require.Len(t, metrics, 7)
	assert.Equal(t, "revenue", metrics[0]["name"])
	assert.Equal(t, "simple", metrics[0]["type"])
}

func TestListCommandMarkdown(t *testing.T) {
	inProject(t)

	out, _, err := run(t, "list", "dimensions", "-o", "markdown")
	require.NoError(t, err)
	testutil.AssertValidMarkdown(t, out)
	testutil.AssertNoANSI(t, out)
	assert.Contains(t, out, "# Dimensions (3 total)")
	assert.Contains(t, out, "| order_status | orders | categorical |")
}

func TestDAGCommand(t *testing.T) {
	inProject(t)

	out, _, err := run(t, "dag", "-o", "json")
	require.NoError(t, err)

	var got struct {
		Levels []struct {
			Level   int `json:"level"`
			Metrics []struct {
				Name      string   `json:"name"`
				DependsOn []string `json:"depends_on"`
			} `json:"metrics"`
		} `json:"levels"`
		TotalMetrics int `json:"total_metrics"`
		TotalEdges   int `json:"total_edges"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got.Levels, 2)
	assert.Equal(t, 7, got.TotalMetrics)
	assert.Equal(t, 4, got.TotalEdges)

	level1 := got.Levels[1].Metrics
	require.Len(t, level1, 2)
	assert.Equal(t, "average_order_value", level1[0].Name)
	assert.Equal(t, []string{"revenue", "completed_orders"}, level1[0].DependsOn)
	assert.Equal(t, "order_completion_rate", level1[1].Name)
}

func TestValidateCommand(t *testing.T) {
	dir := inProject(t)

	out, _, err := run(t, "validate", "-o", "markdown")
	require.NoError(t, err)
	assert.Contains(t, out, "All definitions are valid.")

	broken := `metrics:
  - name: broken
    type: ratio
    type_params:
      numerator: revenue
      denominator: nowhere
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "metrics", "broken.yaml"), []byte(broken), 0o600))

	out, _, err = run(t, "validate", "-o", "markdown")
	require.Error(t, err)
	assert.Equal(t, cli.ExitDefinition, cli.ExitCode(err))
	assert.Contains(t, out, "nowhere")
}

func TestSeedAndHistory(t *testing.T) {
	inProject(t)

	out, _, err := run(t, "seed", "-o", "json")
	require.NoError(t, err)
	var seeded struct {
		Tables []string `json:"tables"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &seeded))
	assert.Equal(t, []string{"orders"}, seeded.Tables)

	_, _, err = run(t, "query", "total_orders", "--seed", "-o", "csv")
	require.NoError(t, err)

	out, _, err = run(t, "history", "-o", "json")
	require.NoError(t, err)
	var history []struct {
		ID       string   `json:"id"`
		Metrics  []string `json:"metrics"`
		Status   string   `json:"status"`
		RowCount int      `json:"row_count"`
		SQL      string   `json:"sql"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &history))
	require.Len(t, history, 1)
	assert.Equal(t, []string{"total_orders"}, history[0].Metrics)
	assert.Equal(t, "success", history[0].Status)
	assert.Equal(t, 1, history[0].RowCount)

	out, _, err = run(t, "history", history[0].ID, "-o", "markdown")
	require.NoError(t, err)
	assert.Contains(t, out, "Status:      success")
	assert.Contains(t, out, "```sql\n"+strings.TrimRight(history[0].SQL, "\n")+"\n```")

	_, _, err = run(t, "history", "no-such-id")
	require.Error(t, err)
	assert.Equal(t, cli.ExitError, cli.ExitCode(err))
}

func TestHistoryDisabled(t *testing.T) {
	inProject(t)

	_, stderr, err := run(t, "history", "--history=false")
	require.NoError(t, err)
	assert.Contains(t, stderr, "history is disabled")
}

func TestInitThenQuery(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	_, _, err := run(t, "init", "project")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "project", "leapmetrics.yaml"))
	assert.FileExists(t, filepath.Join(dir, "project", ".gitignore"))

	t.Chdir(filepath.Join(dir, "project"))
	out, _, err := run(t, "query", "total_orders", "--seed", "-o", "csv")
	require.NoError(t, err)
	assert.Equal(t, "total_orders\n10\n", out)
	assert.FileExists(t, filepath.Join(dir, "project", "warehouse.duckdb"))
}

func TestCompletionCommand(t *testing.T) {
	out, _, err := run(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "leapmetrics")
}

func TestUnknownCommand(t *testing.T) {
	_, _, err := run(t, "frobnicate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}
