package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/tordrt/schemadrift/internal/logger"
)

// DefaultXLSXOutput is used when no usable output name is configured.
const DefaultXLSXOutput = "validateResult.xlsx"

const (
	driftSheet   = "Drift"
	summarySheet = "Summary"
)

// XLSXExporter writes a workbook with a Drift sheet (one row per Row) and a
// Summary sheet.
type XLSXExporter struct {
	path string
}

// NewXLSXExporter creates an exporter writing to path. A path without the
// .xlsx extension is replaced by DefaultXLSXOutput, with a warning.
func NewXLSXExporter(path string, log *logger.Logger) *XLSXExporter {
	if log == nil {
		log = logger.Nop()
	}
	resolved, ok := ResolveXLSXPath(path)
	if !ok {
		log.Warnf("output file %q must end with .xlsx, writing %s instead", path, resolved)
	}
	return &XLSXExporter{path: resolved}
}

// ResolveXLSXPath returns path when it names an .xlsx file and
// DefaultXLSXOutput otherwise. The boolean reports whether path was kept.
func ResolveXLSXPath(path string) (string, bool) {
	if path == "" {
		return DefaultXLSXOutput, true
	}
	if !strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		return DefaultXLSXOutput, false
	}
	return path, true
}

// Path is the file Export writes.
func (e *XLSXExporter) Path() string {
	return e.path
}

// Export writes the workbook to the exporter's path.
func (e *XLSXExporter) Export(r Report) error {
	f, err := buildWorkbook(r)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(e.path); err != nil {
		return fmt.Errorf("failed to save %s: %w", e.path, err)
	}
	return nil
}

// Write streams the workbook to w.
func (e *XLSXExporter) Write(w io.Writer, r Report) error {
	f, err := buildWorkbook(r)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func buildWorkbook(r Report) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := writeDriftSheet(f, r); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to build drift sheet: %w", err)
	}
	if err := writeSummarySheet(f, r); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to build summary sheet: %w", err)
	}
	return f, nil
}

func writeDriftSheet(f *excelize.File, r Report) error {
	if err := f.SetSheetName(f.GetSheetName(0), driftSheet); err != nil {
		return err
	}

	header := make([]any, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(driftSheet, "A1", &header); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	lastCol, err := excelize.ColumnNumberToName(len(Header))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(driftSheet, "A1", lastCol+"1", bold); err != nil {
		return err
	}

	for i, row := range r.Rows() {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		cells := row.Cells()
		values := make([]any, len(cells))
		for j, c := range cells {
			values[j] = c
		}
		if err := f.SetSheetRow(driftSheet, cell, &values); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(driftSheet, "A", "E", 16); err != nil {
		return err
	}
	return f.SetColWidth(driftSheet, lastCol, lastCol, 60)
}

func writeSummarySheet(f *excelize.File, r Report) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}

	var s struct{ removed, added, modified, unchanged int }
	drift := "no"
	if r.Diff != nil {
		s.removed = r.Diff.Summary.Removed
		s.added = r.Diff.Summary.Added
		s.modified = r.Diff.Summary.Modified
		s.unchanged = r.Diff.Summary.Unchanged
		if r.Diff.HasDrift() {
			drift = "yes"
		}
	}

	lines := [][]any{
		{"Database", r.Database},
		{"Baseline captured at", formatTime(r.BaselineCapturedAt)},
		{"Current captured at", formatTime(r.CurrentCapturedAt)},
		{"Tables removed", s.removed},
		{"Tables added", s.added},
		{"Tables modified", s.modified},
		{"Tables unchanged", s.unchanged},
		{"Drift", drift},
	}
	for i, line := range lines {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheet, cell, &line); err != nil {
			return err
		}
	}
	return f.SetColWidth(summarySheet, "A", "B", 24)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
