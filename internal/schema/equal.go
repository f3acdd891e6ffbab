package schema

import (
	"strconv"
	"strings"
)

// FieldChange records one differing field between two versions of an entity.
type FieldChange struct {
	Field string
	Old   string
	New   string
}

// Field names reported by the Changes methods.
const (
	FieldType       = "type"
	FieldNullable   = "nullable"
	FieldDefault    = "default"
	FieldColumns    = "columns"
	FieldUnique     = "unique"
	FieldKind       = "kind"
	FieldRefTable   = "ref_table"
	FieldRefColumns = "ref_columns"
	FieldOnDelete   = "on_delete"
	FieldOnUpdate   = "on_update"
	FieldCheck      = "check"
)

// Changes lists the definition fields that differ between c (old) and o
// (new). Names and positions are not compared.
func (c Column) Changes(o Column) []FieldChange {
	var out []FieldChange
	if c.Type != o.Type {
		out = append(out, FieldChange{FieldType, c.Type, o.Type})
	}
	if c.Nullable != o.Nullable {
		out = append(out, FieldChange{FieldNullable, strconv.FormatBool(c.Nullable), strconv.FormatBool(o.Nullable)})
	}
	if !equalDefault(c.Default, o.Default) {
		out = append(out, FieldChange{FieldDefault, c.DefaultString(), o.DefaultString()})
	}
	return out
}

// Changes lists the definition fields that differ between i (old) and o
// (new). Indexed column names follow coll.
func (i Index) Changes(o Index, coll Collation) []FieldChange {
	var out []FieldChange
	if !coll.EqualNames(i.Columns, o.Columns) {
		out = append(out, FieldChange{FieldColumns, joinNames(i.Columns), joinNames(o.Columns)})
	}
	if i.Unique != o.Unique {
		out = append(out, FieldChange{FieldUnique, strconv.FormatBool(i.Unique), strconv.FormatBool(o.Unique)})
	}
	if i.Kind != o.Kind {
		out = append(out, FieldChange{FieldKind, i.Kind, o.Kind})
	}
	return out
}

// Changes lists the definition fields that differ between c (old) and o
// (new). Referenced identifiers follow coll.
func (c Constraint) Changes(o Constraint, coll Collation) []FieldChange {
	var out []FieldChange
	if c.Kind != o.Kind {
		out = append(out, FieldChange{FieldKind, string(c.Kind), string(o.Kind)})
	}
	if !coll.EqualNames(c.Columns, o.Columns) {
		out = append(out, FieldChange{FieldColumns, joinNames(c.Columns), joinNames(o.Columns)})
	}
	if !coll.Equal(c.RefTable, o.RefTable) {
		out = append(out, FieldChange{FieldRefTable, c.RefTable, o.RefTable})
	}
	if !coll.EqualNames(c.RefColumns, o.RefColumns) {
		out = append(out, FieldChange{FieldRefColumns, joinNames(c.RefColumns), joinNames(o.RefColumns)})
	}
	if c.OnDelete != o.OnDelete {
		out = append(out, FieldChange{FieldOnDelete, c.OnDelete, o.OnDelete})
	}
	if c.OnUpdate != o.OnUpdate {
		out = append(out, FieldChange{FieldOnUpdate, c.OnUpdate, o.OnUpdate})
	}
	if c.Check != o.Check {
		out = append(out, FieldChange{FieldCheck, c.Check, o.Check})
	}
	return out
}

// Equal reports structural equality: name, type, nullability and default.
func (c Column) Equal(o Column) bool {
	return c.EqualUnder(o, CaseSensitive)
}

// EqualUnder is Equal with names compared under coll.
func (c Column) EqualUnder(o Column, coll Collation) bool {
	return coll.Equal(c.Name, o.Name) && len(c.Changes(o)) == 0
}

// Equal reports structural equality: name, ordered columns, uniqueness and kind.
func (i Index) Equal(o Index) bool {
	return i.EqualUnder(o, CaseSensitive)
}

// EqualUnder is Equal with identifiers compared under coll.
func (i Index) EqualUnder(o Index, coll Collation) bool {
	return coll.Equal(i.Name, o.Name) && len(i.Changes(o, coll)) == 0
}

// Equal reports structural equality over every constraint field.
func (c Constraint) Equal(o Constraint) bool {
	return c.EqualUnder(o, CaseSensitive)
}

// EqualUnder is Equal with identifiers compared under coll.
func (c Constraint) EqualUnder(o Constraint, coll Collation) bool {
	return coll.Equal(c.Name, o.Name) && len(c.Changes(o, coll)) == 0
}

// Equal reports structural equality of two tables: same name, the same
// columns in the same declared order, and the same sets of indexes and
// constraints regardless of their slice order.
func (t Table) Equal(o Table) bool {
	return t.EqualUnder(o, CaseSensitive)
}

// EqualUnder is Equal with identifiers compared under coll.
func (t Table) EqualUnder(o Table, coll Collation) bool {
	if !coll.Equal(t.Name, o.Name) || len(t.Columns) != len(o.Columns) ||
		len(t.Indexes) != len(o.Indexes) || len(t.Constraints) != len(o.Constraints) {
		return false
	}

	a := sortedColumns(t.Columns)
	b := sortedColumns(o.Columns)
	for i := range a {
		if !a[i].EqualUnder(b[i], coll) {
			return false
		}
	}
	for _, idx := range t.Indexes {
		other, ok := o.Index(idx.Name, coll)
		if !ok || !idx.EqualUnder(other, coll) {
			return false
		}
	}
	for _, c := range t.Constraints {
		other, ok := o.Constraint(c.Name, coll)
		if !ok || !c.EqualUnder(other, coll) {
			return false
		}
	}
	return true
}

// Equal reports whether two schemas hold structurally equal tables. The
// database name and capture time are metadata and are not compared.
func (s Schema) Equal(o Schema) bool {
	return s.EqualUnder(o, CaseSensitive)
}

// EqualUnder is Equal with identifiers compared under coll.
func (s Schema) EqualUnder(o Schema, coll Collation) bool {
	if len(s.Tables) != len(o.Tables) {
		return false
	}
	for _, t := range s.Tables {
		other, ok := o.Table(t.Name, coll)
		if !ok || !t.EqualUnder(other, coll) {
			return false
		}
	}
	return true
}

func equalDefault(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func joinNames(names []string) string {
	return "(" + strings.Join(names, ", ") + ")"
}
