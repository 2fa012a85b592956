package stats

import (
	"strings"
	"text/tabwriter"
)

// renderTable formats rows as a space-aligned table with a header line.
// Missing cells render as "-".
func renderTable(columns []string, rows []map[string]interface{}) string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	w.Write([]byte(strings.Join(columns, "\t") + "\n"))
	for _, row := range rows {
		cells := make([]string, len(columns))
		for i, col := range columns {
			s := asString(row[col])
			if s == "" {
				s = "-"
			}
			cells[i] = s
		}
		w.Write([]byte(strings.Join(cells, "\t") + "\n"))
	}
	w.Flush()
	return b.String()
}
