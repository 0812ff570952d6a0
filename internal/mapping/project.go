package mapping

import (
	"strings"

	"github.com/hiredesk/hiredesk/internal/schema"
	"github.com/hiredesk/hiredesk/internal/tabular"
)

// Project applies a mapping to the raw matrix and returns canonical rows
// in source order. It is a pure function of its inputs: re-projecting
// with a new mapping fully replaces any earlier projection.
//
// Unmapped fields project to the empty string. Identifier fields keep
// only the last segment of namespace-prefixed values, so a catalog export
// like "Rental:Medical:OXY50" reconciles against product code "OXY50".
func Project(m *tabular.Matrix, mapping Mapping) []schema.Row {
	colIndex := make(map[string]int, len(m.Columns))
	for i, col := range m.Columns {
		colIndex[col] = i
	}

	rows := make([]schema.Row, len(m.Rows))
	for i, raw := range m.Rows {
		row := schema.Row{Index: i}

		for _, f := range schema.Fields() {
			col, ok := mapping[f]
			if !ok {
				continue
			}
			pos, ok := colIndex[col]
			if !ok || pos >= len(raw) {
				continue
			}

			value := tabular.CleanCell(raw[pos])
			if schema.SpecOf(f).Kind == schema.KindIdentifier {
				value = lastSegment(value)
			}
			row.Set(f, value)
		}

		rows[i] = row
	}
	return rows
}

// lastSegment strips a "Category:Subcategory:" namespace prefix.
func lastSegment(s string) string {
	if i := strings.LastIndex(s, ":"); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
