// Package diff computes the structural difference between two schema
// snapshots.
//
// The engine is a pure function of its inputs: it performs no I/O, never
// modifies the schemas it is given and always succeeds. Output ordering is
// fixed (removed, added, modified, then unchanged tables, each group sorted
// by name) so that two runs over the same inputs produce identical results.
package diff

import (
	"slices"

	"github.com/tordrt/schemadrift/internal/schema"
)

// Status classifies a table in a Diff.
type Status string

const (
	Removed   Status = "removed"
	Added     Status = "added"
	Modified  Status = "modified"
	Unchanged Status = "unchanged"
)

// rank is the emission order of each status.
func (s Status) rank() int {
	switch s {
	case Removed:
		return 0
	case Added:
		return 1
	case Modified:
		return 2
	default:
		return 3
	}
}

// Options configures an Engine.
type Options struct {
	// Collation decides how table, column, index and constraint names are
	// matched and ordered. The zero value is schema.CaseSensitive.
	Collation schema.Collation

	// IgnoreColumnOrder suppresses ColumnOrderChange entries.
	IgnoreColumnOrder bool

	// IncludeUnchanged emits UNCHANGED tables at the end of Diff.Tables.
	// They are always counted in Summary.
	IncludeUnchanged bool
}

// Diff is the result of comparing a baseline schema with a current one. It
// shares no memory with the schemas it was computed from.
type Diff struct {
	Tables  []TableDiff
	Summary Summary
}

// Summary counts tables per status.
type Summary struct {
	Removed   int
	Added     int
	Modified  int
	Unchanged int
}

// Total is the number of distinct tables across both schemas.
func (s Summary) Total() int {
	return s.Removed + s.Added + s.Modified + s.Unchanged
}

// HasDrift reports whether any table was added, removed or modified.
func (d *Diff) HasDrift() bool {
	return d.Summary.Removed+d.Summary.Added+d.Summary.Modified > 0
}

// Table returns the entry for name, if it was emitted.
func (d *Diff) Table(name string) (TableDiff, bool) {
	for _, t := range d.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return TableDiff{}, false
}

// TableDiff describes one table. Baseline is nil for added tables and
// Current is nil for removed ones.
type TableDiff struct {
	Name        string
	Status      Status
	Baseline    *schema.Table
	Current     *schema.Table
	Columns     ColumnChanges
	Indexes     Changes[schema.Index]
	Constraints Changes[schema.Constraint]
}

// ColumnChanges lists column level differences of a modified table.
type ColumnChanges struct {
	Changes[schema.Column]
	Reordered *ColumnOrderChange
}

// Empty reports whether there are no column differences.
func (c ColumnChanges) Empty() bool {
	return c.Changes.Empty() && c.Reordered == nil
}

// ColumnOrderChange records that the columns present on both sides appear
// in a different relative order. Old and New list those columns only.
type ColumnOrderChange struct {
	Old []string
	New []string
}

// Changes lists added, removed and modified entities of one kind.
type Changes[T any] struct {
	Added    []T
	Removed  []T
	Modified []Change[T]
}

// Empty reports whether there are no differences.
func (c Changes[T]) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Modified) == 0
}

// Change is one entity present on both sides with differing definitions.
type Change[T any] struct {
	Name   string
	Old    T
	New    T
	Fields []schema.FieldChange
}

// Engine computes diffs with a fixed set of options.
type Engine struct {
	opts Options
}

// New creates an Engine.
func New(opts Options) *Engine {
	return &Engine{opts: opts}
}

// Compare diffs two schemas with default options.
func Compare(baseline, current schema.Schema) *Diff {
	return New(Options{}).Diff(baseline, current)
}

// Diff compares baseline against current.
func (e *Engine) Diff(baseline, current schema.Schema) *Diff {
	coll := e.opts.Collation
	res := &Diff{}

	currentByKey := make(map[string]schema.Table, len(current.Tables))
	for _, t := range current.Tables {
		currentByKey[coll.Key(t.Name)] = t
	}
	baselineKeys := make(map[string]struct{}, len(baseline.Tables))

	var entries []TableDiff
	for _, old := range baseline.Tables {
		key := coll.Key(old.Name)
		baselineKeys[key] = struct{}{}

		cur, ok := currentByKey[key]
		if !ok {
			t := old.Canonical(coll)
			entries = append(entries, TableDiff{Name: old.Name, Status: Removed, Baseline: &t})
			res.Summary.Removed++
			continue
		}

		td := e.diffTable(old, cur)
		if td.Status == Modified {
			res.Summary.Modified++
		} else {
			res.Summary.Unchanged++
		}
		if td.Status == Modified || e.opts.IncludeUnchanged {
			entries = append(entries, td)
		}
	}

	for _, cur := range current.Tables {
		if _, ok := baselineKeys[coll.Key(cur.Name)]; ok {
			continue
		}
		t := cur.Canonical(coll)
		entries = append(entries, TableDiff{Name: cur.Name, Status: Added, Current: &t})
		res.Summary.Added++
	}

	slices.SortStableFunc(entries, func(a, b TableDiff) int {
		if a.Status != b.Status {
			return a.Status.rank() - b.Status.rank()
		}
		return coll.Compare(a.Name, b.Name)
	})
	res.Tables = entries
	return res
}

// diffTable compares two versions of the same table.
func (e *Engine) diffTable(old, cur schema.Table) TableDiff {
	coll := e.opts.Collation
	oldT := old.Canonical(coll)
	curT := cur.Canonical(coll)

	td := TableDiff{
		Name:     cur.Name,
		Baseline: &oldT,
		Current:  &curT,
	}

	td.Columns.Changes = match(oldT.Columns, curT.Columns, coll,
		func(c schema.Column) string { return c.Name },
		func(a, b schema.Column) []schema.FieldChange { return a.Changes(b) },
		schema.Column.Clone,
	)
	if !e.opts.IgnoreColumnOrder {
		td.Columns.Reordered = columnOrder(oldT.Columns, curT.Columns, coll)
	}

	td.Indexes = match(oldT.Indexes, curT.Indexes, coll,
		func(i schema.Index) string { return i.Name },
		func(a, b schema.Index) []schema.FieldChange { return a.Changes(b, coll) },
		schema.Index.Clone,
	)

	td.Constraints = match(oldT.Constraints, curT.Constraints, coll,
		func(c schema.Constraint) string { return c.Name },
		func(a, b schema.Constraint) []schema.FieldChange { return a.Changes(b, coll) },
		schema.Constraint.Clone,
	)

	if td.Columns.Empty() && td.Indexes.Empty() && td.Constraints.Empty() {
		td.Status = Unchanged
	} else {
		td.Status = Modified
	}
	return td
}

// match pairs entities by name. Inputs are in canonical order, so removed
// entries follow old's order and added and modified entries follow cur's.
// There is no rename detection.
func match[T any](
	old, cur []T,
	coll schema.Collation,
	name func(T) string,
	changes func(a, b T) []schema.FieldChange,
	clone func(T) T,
) Changes[T] {
	var out Changes[T]

	oldByKey := make(map[string]T, len(old))
	for _, o := range old {
		oldByKey[coll.Key(name(o))] = o
	}
	curKeys := make(map[string]struct{}, len(cur))
	for _, c := range cur {
		curKeys[coll.Key(name(c))] = struct{}{}
	}

	for _, o := range old {
		if _, ok := curKeys[coll.Key(name(o))]; !ok {
			out.Removed = append(out.Removed, clone(o))
		}
	}
	for _, c := range cur {
		o, ok := oldByKey[coll.Key(name(c))]
		if !ok {
			out.Added = append(out.Added, clone(c))
			continue
		}
		if fields := changes(o, c); len(fields) > 0 {
			out.Modified = append(out.Modified, Change[T]{
				Name:   name(c),
				Old:    clone(o),
				New:    clone(c),
				Fields: fields,
			})
		}
	}
	return out
}

// columnOrder compares the relative order of the columns present on both
// sides. Adding or dropping a column shifts ordinals but is not a reorder.
func columnOrder(old, cur []schema.Column, coll schema.Collation) *ColumnOrderChange {
	inCur := make(map[string]struct{}, len(cur))
	for _, c := range cur {
		inCur[coll.Key(c.Name)] = struct{}{}
	}
	inOld := make(map[string]struct{}, len(old))
	for _, c := range old {
		inOld[coll.Key(c.Name)] = struct{}{}
	}

	var oldOrder, curOrder []string
	for _, c := range old {
		if _, ok := inCur[coll.Key(c.Name)]; ok {
			oldOrder = append(oldOrder, c.Name)
		}
	}
	for _, c := range cur {
		if _, ok := inOld[coll.Key(c.Name)]; ok {
			curOrder = append(curOrder, c.Name)
		}
	}

	if coll.EqualNames(oldOrder, curOrder) {
		return nil
	}
	return &ColumnOrderChange{Old: oldOrder, New: curOrder}
}
