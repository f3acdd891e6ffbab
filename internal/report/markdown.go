package report

import (
	"fmt"
	"io"
	"strings"
)

// MarkdownExporter writes the report as markdown
type MarkdownExporter struct {
	writer io.Writer
}

// NewMarkdownExporter creates a new markdown exporter
func NewMarkdownExporter(w io.Writer) *MarkdownExporter {
	return &MarkdownExporter{writer: w}
}

// Export writes the report in markdown format
func (e *MarkdownExporter) Export(r Report) error {
	if r.Diff == nil {
		return fmt.Errorf("report has no diff")
	}

	_, _ = fmt.Fprintf(e.writer, "# Schema Drift: %s\n\n", r.Database)

	if !r.BaselineCapturedAt.IsZero() {
		_, _ = fmt.Fprintf(e.writer, "- **Baseline:** %s\n", formatTime(r.BaselineCapturedAt))
	}
	if !r.CurrentCapturedAt.IsZero() {
		_, _ = fmt.Fprintf(e.writer, "- **Current:** %s\n", formatTime(r.CurrentCapturedAt))
	}
	_, _ = fmt.Fprintf(e.writer, "- **Tables:** %s\n\n", summaryLine(r.Diff.Summary))

	if len(r.Diff.Tables) == 0 {
		_, _ = fmt.Fprintln(e.writer, "No differences.")
		return nil
	}

	for _, td := range r.Diff.Tables {
		e.formatTable(td.Name, string(td.Status), tableRows(td, r.Database, r.UnchangedColumns))
	}
	return nil
}

func (e *MarkdownExporter) formatTable(name, status string, rows []Row) {
	_, _ = fmt.Fprintf(e.writer, "## %s (%s)\n\n", name, status)

	if len(rows) == 1 && rows[0].Object == ObjectTable {
		if rows[0].Detail != "" {
			_, _ = fmt.Fprintf(e.writer, "%s\n\n", capitalize(rows[0].Detail))
		}
		return
	}

	_, _ = fmt.Fprintln(e.writer, "| Object | Name | Result | Detail |")
	_, _ = fmt.Fprintln(e.writer, "|---|---|---|---|")
	for _, row := range rows {
		_, _ = fmt.Fprintf(e.writer, "| %s | %s | %s | %s |\n",
			row.Object,
			escapeCell(row.Name),
			row.Result,
			escapeCell(row.Detail))
	}
	_, _ = fmt.Fprintln(e.writer)
}

func escapeCell(s string) string {
	if s == "" {
		return ""
	}
	return "`" + strings.ReplaceAll(s, "|", `\|`) + "`"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
