package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/schemadrift/internal/diff"
)

// TextExporter writes a compact plain text report
type TextExporter struct {
	writer io.Writer
}

// NewTextExporter creates a new text exporter
func NewTextExporter(w io.Writer) *TextExporter {
	return &TextExporter{writer: w}
}

// Export writes the report in compact text format
func (e *TextExporter) Export(r Report) error {
	if r.Diff == nil {
		return fmt.Errorf("report has no diff")
	}
	_, _ = fmt.Fprintf(e.writer, "DRIFT %s: %s\n", r.Database, summaryLine(r.Diff.Summary))

	for _, td := range r.Diff.Tables {
		_, _ = fmt.Fprintln(e.writer) // Blank line between tables
		_, _ = fmt.Fprintf(e.writer, "TABLE %s %s\n", td.Name, strings.ToUpper(string(td.Status)))

		for _, row := range tableRows(td, r.Database, r.UnchangedColumns) {
			_, _ = fmt.Fprintf(e.writer, "  %s\n", e.formatRow(row))
		}
	}
	return nil
}

func (e *TextExporter) formatRow(row Row) string {
	if row.Object == ObjectTable {
		detail := row.Detail
		if detail == "" {
			detail = string(row.Result)
		}
		return marker(row.Result) + " " + detail
	}

	parts := []string{marker(row.Result), string(row.Object)}
	if row.Name != "" {
		parts = append(parts, row.Name+":")
	} else {
		parts[1] += ":"
	}
	if row.Result == ResultReordered {
		parts = append(parts, "order")
	}
	parts = append(parts, row.Detail)

	return strings.Join(parts, " ")
}

func marker(r Result) string {
	switch r {
	case ResultAdded:
		return "+"
	case ResultRemoved:
		return "-"
	case ResultUnchanged:
		return "="
	default:
		return "~"
	}
}

func summaryLine(s diff.Summary) string {
	return fmt.Sprintf("%d removed, %d added, %d modified, %d unchanged",
		s.Removed, s.Added, s.Modified, s.Unchanged)
}
