package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// PrintJSON writes v as indented JSON followed by a newline.
func PrintJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// PrintTable writes rows as a column-aligned table. Headers are
// uppercased, columns are separated by two spaces, and trailing padding
// is trimmed. No columns means no output.
func PrintTable(w io.Writer, columns []string, rows [][]string) {
	if len(columns) == 0 {
		return
	}
	widths := make([]int, len(columns))
	for i, col := range columns {
		widths[i] = len(col)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	header := make([]string, len(columns))
	for i, col := range columns {
		header[i] = pad(strings.ToUpper(col), widths[i])
	}
	fmt.Fprintln(w, strings.TrimRight(strings.Join(header, "  "), " "))

	for _, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			width := 0
			if i < len(widths) {
				width = widths[i]
			}
			cells[i] = pad(cell, width)
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(cells, "  "), " "))
	}
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// PrintDetail writes one key per line, sorted, with values aligned past
// the longest key.
func PrintDetail(w io.Writer, fields map[string]any) {
	keys := make([]string, 0, len(fields))
	maxLen := 0
	for k := range fields {
		keys = append(keys, k)
		if len(k) > maxLen {
			maxLen = len(k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s:%s  %s\n", k, strings.Repeat(" ", maxLen-len(k)), renderValue(fields[k]))
	}
}

// ExtractField pulls a single named field out of a decoded JSON object,
// rendered for display. Missing fields come back empty.
func ExtractField(obj map[string]any, field string) string {
	v, ok := obj[field]
	if !ok {
		return ""
	}
	return renderValue(v)
}

// ExtractRows projects a list of decoded JSON objects onto the given
// fields, one table row per object.
func ExtractRows(items []map[string]any, fields []string) [][]string {
	rows := make([][]string, 0, len(items))
	for _, obj := range items {
		row := make([]string, len(fields))
		for i, f := range fields {
			row[i] = ExtractField(obj, f)
		}
		rows = append(rows, row)
	}
	return rows
}

// renderValue formats a decoded JSON value for display. Composite values
// render as compact JSON, not Go syntax. Numbers that are whole render
// without a decimal point.
func renderValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'g', -1, 64)
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(raw)
	}
}
