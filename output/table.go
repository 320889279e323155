package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Formats accepted by Rows.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatCSV   = "csv"
)

// KeyValues renders ordered key/value pairs, such as parsed hdbnsutil
// output, as a two column table.
func KeyValues(w io.Writer, keys []string, get func(string) string) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Key", "Value"})
	for _, k := range keys {
		t.AppendRow(table.Row{k, get(k)})
	}
	t.Render()
}

// Rows renders a result set in the given format. An unknown format falls
// back to a table.
func Rows(w io.Writer, cols []string, records [][]any, format string) error {
	switch format {
	case FormatJSON:
		return rowsJSON(w, cols, records)
	case FormatCSV:
		return rowsCSV(w, cols, records)
	default:
		return rowsTable(w, cols, records)
	}
}

func rowsTable(w io.Writer, cols []string, records [][]any) error {
	if len(records) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(cols))
	for i, col := range cols {
		header[i] = col
	}
	t.AppendHeader(header)

	for _, rec := range records {
		row := make(table.Row, len(rec))
		for i, v := range rec {
			row[i] = formatValue(v)
		}
		t.AppendRow(row)
	}

	t.Render()
	_, _ = fmt.Fprintf(w, "(%d rows)\n", len(records))
	return nil
}

func rowsJSON(w io.Writer, cols []string, records [][]any) error {
	results := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		results = append(results, row)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

func rowsCSV(w io.Writer, cols []string, records [][]any) error {
	_, _ = fmt.Fprintln(w, strings.Join(cols, ","))
	for _, rec := range records {
		values := make([]string, len(rec))
		for i, v := range rec {
			values[i] = escapeCSV(formatValue(v))
		}
		_, _ = fmt.Fprintln(w, strings.Join(values, ","))
	}
	return nil
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func escapeCSV(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}
