package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/leapstack-labs/leapmetrics/pkg/core"
)

// Table renders headers and rows in the effective mode. JSON output is an
// array of objects keyed by header.
func (r *Renderer) Table(headers []string, rows [][]string) error {
	if r.EffectiveMode() == ModeJSON {
		objects := make([]map[string]string, len(rows))
		for i, row := range rows {
			obj := make(map[string]string, len(headers))
			for j, h := range headers {
				if j < len(row) {
					obj[h] = row[j]
				}
			}
			objects[i] = obj
		}
		return r.JSON(objects)
	}
	return r.grid(headers, rows)
}

// Result renders a query result. Text and markdown output are followed by
// the row count and elapsed time on the diagnostics writer.
func (r *Renderer) Result(result *core.QueryResult) error {
	mode := r.EffectiveMode()
	if mode == ModeJSON {
		return r.JSON(resultJSON(result))
	}

	rows := make([][]string, len(result.Rows))
	for i, row := range result.Rows {
		rows[i] = make([]string, len(row))
		for j, v := range row {
			rows[i][j] = FormatValue(v)
		}
	}
	if err := r.grid(result.ColumnNames(), rows); err != nil {
		return err
	}

	if mode != ModeCSV {
		r.Muted(fmt.Sprintf("(%d rows, %s)", result.RowCount, result.Duration.Round(time.Millisecond)))
	}
	return nil
}

func (r *Renderer) grid(headers []string, rows [][]string) error {
	if r.EffectiveMode() == ModeCSV {
		cw := csv.NewWriter(r.w)
		if err := cw.Write(headers); err != nil {
			return err
		}
		if err := cw.WriteAll(rows); err != nil {
			return fmt.Errorf("failed to write csv: %w", err)
		}
		return nil
	}

	t := table.NewWriter()
	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	t.AppendHeader(header)
	for _, row := range rows {
		tr := make(table.Row, len(row))
		for i, v := range row {
			tr[i] = v
		}
		t.AppendRow(tr)
	}

	if r.EffectiveMode() == ModeMarkdown {
		r.Println(t.RenderMarkdown())
		return nil
	}
	t.SetStyle(table.StyleLight)
	r.Println(t.Render())
	return nil
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type jsonResult struct {
	SQL        string           `json:"sql"`
	Columns    []core.Column    `json:"columns"`
	Rows       []map[string]any `json:"rows"`
	RowCount   int              `json:"row_count"`
	DurationMS int64            `json:"duration_ms"`
}

func resultJSON(result *core.QueryResult) jsonResult {
	rows := make([]map[string]any, len(result.Rows))
	for i, row := range result.Rows {
		obj := make(map[string]any, len(row))
		for j, v := range row {
			if j < len(result.Columns) {
				obj[result.Columns[j].Name] = jsonValue(v)
			}
		}
		rows[i] = obj
	}
	return jsonResult{
		SQL:        result.SQL,
		Columns:    result.Columns,
		Rows:       rows,
		RowCount:   result.RowCount,
		DurationMS: result.Duration.Milliseconds(),
	}
}

func jsonValue(v any) any {
	if t, ok := v.(time.Time); ok {
		return FormatValue(t)
	}
	return v
}

// FormatValue formats a result value for display. NULL is "NULL" and dates
// at midnight UTC print without a time.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format(core.DateLayout)
		}
		return x.Format(time.RFC3339)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case *big.Int:
		if x == nil {
			return "NULL"
		}
		return x.String()
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}
