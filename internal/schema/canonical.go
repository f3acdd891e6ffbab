package schema

import (
	"cmp"
	"slices"

	"github.com/tordrt/schemadrift/internal/errs"
)

// Canonical returns a deep copy of s in canonical order: tables by name,
// columns by ordinal position, indexes and constraints by name. Names are
// ordered under coll. s itself is not modified.
func (s Schema) Canonical(coll Collation) Schema {
	out := s.Clone()
	for i := range out.Tables {
		out.Tables[i] = out.Tables[i].canonical(coll)
	}
	slices.SortStableFunc(out.Tables, func(a, b Table) int {
		return coll.Compare(a.Name, b.Name)
	})
	return out
}

// Canonical returns a deep copy of t in canonical order.
func (t Table) Canonical(coll Collation) Table {
	return t.Clone().canonical(coll)
}

// canonical sorts t in place; callers pass a clone.
func (t Table) canonical(coll Collation) Table {
	t.Columns = sortedColumns(t.Columns)
	slices.SortStableFunc(t.Indexes, func(a, b Index) int {
		return coll.Compare(a.Name, b.Name)
	})
	slices.SortStableFunc(t.Constraints, func(a, b Constraint) int {
		return coll.Compare(a.Name, b.Name)
	})
	return t
}

// sortedColumns orders columns by position. Columns without a position keep
// their declared slice order, so hand-built tables need not number them.
func sortedColumns(cols []Column) []Column {
	out := slices.Clone(cols)
	slices.SortStableFunc(out, func(a, b Column) int {
		return cmp.Compare(a.Position, b.Position)
	})
	return out
}

// Validate checks the model invariants: non-empty and unique table names,
// and within each table non-empty column types and unique column, index and
// constraint names, plus known constraint kinds.
func (s Schema) Validate(coll Collation) error {
	tables := make(map[string]struct{}, len(s.Tables))
	for _, t := range s.Tables {
		if t.Name == "" {
			return errs.New(errs.ErrKindInvalidInput, "table with empty name")
		}
		if seenBefore(tables, coll.Key(t.Name)) {
			return errs.Newf(errs.ErrKindInvalidInput, "table %q declared twice", t.Name)
		}

		if err := t.Validate(coll); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the per-table invariants described on Schema.Validate.
func (t Table) Validate(coll Collation) error {
	columns := make(map[string]struct{}, len(t.Columns))
	for _, c := range t.Columns {
		if c.Name == "" {
			return errs.Newf(errs.ErrKindInvalidInput, "table %q: column with empty name", t.Name)
		}
		if c.Type == "" {
			return errs.Newf(errs.ErrKindInvalidInput, "table %q: column %q has no type", t.Name, c.Name)
		}
		if seenBefore(columns, coll.Key(c.Name)) {
			return errs.Newf(errs.ErrKindInvalidInput, "table %q: column %q declared twice", t.Name, c.Name)
		}
	}

	indexes := make(map[string]struct{}, len(t.Indexes))
	for _, idx := range t.Indexes {
		if idx.Name == "" {
			return errs.Newf(errs.ErrKindInvalidInput, "table %q: index with empty name", t.Name)
		}
		if seenBefore(indexes, coll.Key(idx.Name)) {
			return errs.Newf(errs.ErrKindInvalidInput, "table %q: index %q declared twice", t.Name, idx.Name)
		}
	}

	constraints := make(map[string]struct{}, len(t.Constraints))
	for _, c := range t.Constraints {
		if c.Name == "" {
			return errs.Newf(errs.ErrKindInvalidInput, "table %q: constraint with empty name", t.Name)
		}
		if !c.Kind.Valid() {
			return errs.Newf(errs.ErrKindInvalidInput, "table %q: constraint %q has unknown kind %q", t.Name, c.Name, c.Kind)
		}
		if seenBefore(constraints, coll.Key(c.Name)) {
			return errs.Newf(errs.ErrKindInvalidInput, "table %q: constraint %q declared twice", t.Name, c.Name)
		}
	}
	return nil
}

// seenBefore records key and reports whether it was already present.
func seenBefore(seen map[string]struct{}, key string) bool {
	if _, ok := seen[key]; ok {
		return true
	}
	seen[key] = struct{}{}
	return false
}
