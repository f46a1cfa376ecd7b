package server

import (
	"fmt"

	"github.com/shapestone/shape-csvreader/pkg/csv"
)

// columns names every column seen in headers or rows and infers its type
// from the first sample rows. Columns past the header are named column_N.
func columns(headers []string, rows [][]string, sample int, nullValues []string) []Column {
	width := len(headers)
	for _, row := range rows {
		width = max(width, len(row))
	}
	if sample < len(rows) {
		rows = rows[:sample]
	}

	cols := make([]Column, width)
	for i := range cols {
		name := fmt.Sprintf("column_%d", i+1)
		if i < len(headers) {
			name = headers[i]
		}
		cols[i] = Column{Name: name, Type: inferColumn(rows, i, nullValues)}
	}
	return cols
}

// inferColumn merges the inferred type of every non-null cell in column i.
func inferColumn(rows [][]string, i int, nullValues []string) string {
	kind := ""
	for _, row := range rows {
		if i >= len(row) || csv.IsNullValue(row[i], nullValues) {
			continue
		}
		t, _ := csv.InferType(row[i])
		kind = mergeType(kind, t)
		if kind == "string" {
			break
		}
	}
	if kind == "" {
		return "string"
	}
	return kind
}

// mergeType widens a to cover b: int and float widen to float, date and
// time widen to time, anything else mixed is string.
func mergeType(a, b string) string {
	switch {
	case a == "" || a == b:
		return b
	case (a == "int" && b == "float") || (a == "float" && b == "int"):
		return "float"
	case (a == "date" && b == "time") || (a == "time" && b == "date"):
		return "time"
	default:
		return "string"
	}
}
