// Package report renders a diff for people: as a spreadsheet, as plain
// text or as markdown. Every format is built from the same flat rows.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/tordrt/schemadrift/internal/diff"
	"github.com/tordrt/schemadrift/internal/schema"
)

// Result is the outcome column of a report row.
type Result string

const (
	ResultAdded     Result = "added"
	ResultRemoved   Result = "removed"
	ResultModified  Result = "modified"
	ResultReordered Result = "reordered"
	ResultUnchanged Result = "unchanged"
)

// Object is the kind of schema object a row describes.
type Object string

const (
	ObjectTable      Object = "table"
	ObjectColumn     Object = "column"
	ObjectIndex      Object = "index"
	ObjectConstraint Object = "constraint"
)

// Header is the column header shared by every format.
var Header = []string{"Database", "Table", "Object", "Name", "Result", "Detail"}

// Row is one reported difference.
type Row struct {
	Database string
	Table    string
	Object   Object
	Name     string
	Result   Result
	Detail   string
}

// Cells returns the row in Header order.
func (r Row) Cells() []string {
	return []string{r.Database, r.Table, string(r.Object), r.Name, string(r.Result), r.Detail}
}

// Report is what an Exporter writes.
type Report struct {
	Database string
	Diff     *diff.Diff

	// BaselineCapturedAt and CurrentCapturedAt are shown in summaries when
	// set.
	BaselineCapturedAt time.Time
	CurrentCapturedAt  time.Time

	// UnchangedColumns adds an unchanged row for every column that matches
	// the baseline, in tables the diff lists.
	UnchangedColumns bool
}

// Rows flattens the report's diff, honouring UnchangedColumns.
func (r Report) Rows() []Row {
	if r.Diff == nil {
		return nil
	}
	var rows []Row
	for _, td := range r.Diff.Tables {
		rows = append(rows, tableRows(td, r.Database, r.UnchangedColumns)...)
	}
	return rows
}

// Exporter writes a report somewhere.
type Exporter interface {
	Export(r Report) error
}

// Rows flattens d in its own order. Inside a table, column rows come first
// (removed, added, modified, then a reorder row), followed by index and
// constraint rows in the same removed, added, modified order.
func Rows(d *diff.Diff, database string) []Row {
	return Report{Database: database, Diff: d}.Rows()
}

// tableRows renders one table. With unchangedColumns, matching columns get
// an unchanged row after the modified ones.
func tableRows(td diff.TableDiff, database string, unchangedColumns bool) []Row {
	row := func(obj Object, name string, res Result, detail string) Row {
		return Row{Database: database, Table: td.Name, Object: obj, Name: name, Result: res, Detail: detail}
	}

	switch td.Status {
	case diff.Removed:
		return []Row{row(ObjectTable, td.Name, ResultRemoved, "table missing from current schema")}
	case diff.Added:
		return []Row{row(ObjectTable, td.Name, ResultAdded, "table not in baseline")}
	case diff.Unchanged:
		rows := []Row{row(ObjectTable, td.Name, ResultUnchanged, "")}
		if unchangedColumns && td.Current != nil {
			for _, c := range td.Current.Columns {
				rows = append(rows, row(ObjectColumn, c.Name, ResultUnchanged, ColumnDefinition(c)))
			}
		}
		return rows
	}

	var rows []Row
	for _, c := range td.Columns.Removed {
		rows = append(rows, row(ObjectColumn, c.Name, ResultRemoved, ColumnDefinition(c)))
	}
	for _, c := range td.Columns.Added {
		rows = append(rows, row(ObjectColumn, c.Name, ResultAdded, ColumnDefinition(c)))
	}
	for _, m := range td.Columns.Modified {
		rows = append(rows, row(ObjectColumn, m.Name, ResultModified, fieldChanges(m.Fields)))
	}
	if unchangedColumns && td.Current != nil {
		changed := make(map[string]bool, len(td.Columns.Added)+len(td.Columns.Modified))
		for _, c := range td.Columns.Added {
			changed[c.Name] = true
		}
		for _, m := range td.Columns.Modified {
			changed[m.New.Name] = true
		}
		for _, c := range td.Current.Columns {
			if !changed[c.Name] {
				rows = append(rows, row(ObjectColumn, c.Name, ResultUnchanged, ColumnDefinition(c)))
			}
		}
	}
	if r := td.Columns.Reordered; r != nil {
		rows = append(rows, row(ObjectColumn, "", ResultReordered,
			fmt.Sprintf("(%s) -> (%s)", strings.Join(r.Old, ", "), strings.Join(r.New, ", "))))
	}

	for _, idx := range td.Indexes.Removed {
		rows = append(rows, row(ObjectIndex, idx.Name, ResultRemoved, IndexDefinition(idx)))
	}
	for _, idx := range td.Indexes.Added {
		rows = append(rows, row(ObjectIndex, idx.Name, ResultAdded, IndexDefinition(idx)))
	}
	for _, m := range td.Indexes.Modified {
		rows = append(rows, row(ObjectIndex, m.Name, ResultModified, fieldChanges(m.Fields)))
	}

	for _, c := range td.Constraints.Removed {
		rows = append(rows, row(ObjectConstraint, c.Name, ResultRemoved, ConstraintDefinition(c)))
	}
	for _, c := range td.Constraints.Added {
		rows = append(rows, row(ObjectConstraint, c.Name, ResultAdded, ConstraintDefinition(c)))
	}
	for _, m := range td.Constraints.Modified {
		rows = append(rows, row(ObjectConstraint, m.Name, ResultModified, fieldChanges(m.Fields)))
	}
	return rows
}

func fieldChanges(fields []schema.FieldChange) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s -> %s", f.Field, f.Old, f.New))
	}
	return strings.Join(parts, "; ")
}

// ColumnDefinition renders a column the way it would read in DDL, without
// its name.
func ColumnDefinition(col schema.Column) string {
	parts := []string{col.Type}

	if !col.Nullable {
		parts = append(parts, "NOT NULL")
	}
	if col.Default != nil {
		parts = append(parts, fmt.Sprintf("DEFAULT %s", *col.Default))
	}

	return strings.Join(parts, " ")
}

// IndexDefinition renders an index without its name.
func IndexDefinition(idx schema.Index) string {
	var parts []string
	if idx.Unique {
		parts = append(parts, "UNIQUE")
	}
	if idx.Kind != "" {
		parts = append(parts, idx.Kind)
	}
	parts = append(parts, "("+strings.Join(idx.Columns, ", ")+")")
	return strings.Join(parts, " ")
}

// ConstraintDefinition renders a constraint without its name.
func ConstraintDefinition(c schema.Constraint) string {
	switch c.Kind {
	case schema.Check:
		return fmt.Sprintf("CHECK %s", c.Check)
	case schema.ForeignKey:
		s := fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)",
			strings.Join(c.Columns, ", "), c.RefTable, strings.Join(c.RefColumns, ", "))
		if c.OnDelete != "" {
			s += " ON DELETE " + c.OnDelete
		}
		if c.OnUpdate != "" {
			s += " ON UPDATE " + c.OnUpdate
		}
		return s
	}
	return fmt.Sprintf("%s (%s)", c.Kind, strings.Join(c.Columns, ", "))
}
