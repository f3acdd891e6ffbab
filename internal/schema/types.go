// Package schema holds the in-memory model of a captured database schema.
//
// Values are plain data: the collector and the snapshot codec build them,
// everything else only reads them. Structural equality and canonical
// ordering are defined here so that every consumer agrees on them.
package schema

import (
	"slices"
	"time"
)

// Schema represents one database's structure at one point in time.
type Schema struct {
	Database   string
	CapturedAt time.Time
	Tables     []Table
}

// Table represents a database table
type Table struct {
	Name        string
	Columns     []Column
	Indexes     []Index
	Constraints []Constraint
}

// Column represents a table column
type Column struct {
	Name     string
	Type     string // engine-native type, e.g. "varchar(255)"
	Nullable bool
	Default  *string // nil means no default
	Position int     // 1-based ordinal position
}

// Index represents a database index
type Index struct {
	Name    string
	Columns []string
	Unique  bool
	Kind    string // BTREE, FULLTEXT, ... compared as an opaque label
}

// ConstraintKind is the closed set of constraint types.
type ConstraintKind string

const (
	PrimaryKey ConstraintKind = "PRIMARY KEY"
	ForeignKey ConstraintKind = "FOREIGN KEY"
	Unique     ConstraintKind = "UNIQUE"
	Check      ConstraintKind = "CHECK"
)

// Valid reports whether k is one of the known constraint kinds.
func (k ConstraintKind) Valid() bool {
	switch k {
	case PrimaryKey, ForeignKey, Unique, Check:
		return true
	}
	return false
}

// Constraint represents a table constraint. Reference fields are only set
// for foreign keys, Check only for check constraints.
type Constraint struct {
	Name       string
	Kind       ConstraintKind
	Columns    []string
	RefTable   string
	RefColumns []string
	OnDelete   string
	OnUpdate   string
	Check      string
}

// NoDefault is how an absent default value is rendered.
const NoDefault = "none"

// DefaultString returns the default value, or NoDefault when there is none.
func (c Column) DefaultString() string {
	if c.Default == nil {
		return NoDefault
	}
	return *c.Default
}

// Clone returns a deep copy of c.
func (c Column) Clone() Column {
	if c.Default != nil {
		v := *c.Default
		c.Default = &v
	}
	return c
}

// Clone returns a deep copy of i.
func (i Index) Clone() Index {
	i.Columns = slices.Clone(i.Columns)
	return i
}

// Clone returns a deep copy of c.
func (c Constraint) Clone() Constraint {
	c.Columns = slices.Clone(c.Columns)
	c.RefColumns = slices.Clone(c.RefColumns)
	return c
}

// Clone returns a deep copy of t.
func (t Table) Clone() Table {
	out := Table{Name: t.Name}
	if t.Columns != nil {
		out.Columns = make([]Column, len(t.Columns))
		for i, c := range t.Columns {
			out.Columns[i] = c.Clone()
		}
	}
	if t.Indexes != nil {
		out.Indexes = make([]Index, len(t.Indexes))
		for i, idx := range t.Indexes {
			out.Indexes[i] = idx.Clone()
		}
	}
	if t.Constraints != nil {
		out.Constraints = make([]Constraint, len(t.Constraints))
		for i, c := range t.Constraints {
			out.Constraints[i] = c.Clone()
		}
	}
	return out
}

// Clone returns a deep copy of s.
func (s Schema) Clone() Schema {
	out := Schema{Database: s.Database, CapturedAt: s.CapturedAt}
	if s.Tables != nil {
		out.Tables = make([]Table, len(s.Tables))
		for i, t := range s.Tables {
			out.Tables[i] = t.Clone()
		}
	}
	return out
}

// TableNames returns the table names in slice order.
func (s Schema) TableNames() []string {
	names := make([]string, len(s.Tables))
	for i, t := range s.Tables {
		names[i] = t.Name
	}
	return names
}

// ColumnNames returns the column names in slice order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Table looks a table up by name under coll.
func (s Schema) Table(name string, coll Collation) (Table, bool) {
	for _, t := range s.Tables {
		if coll.Equal(t.Name, name) {
			return t, true
		}
	}
	return Table{}, false
}

// Column looks a column up by name under coll.
func (t Table) Column(name string, coll Collation) (Column, bool) {
	for _, c := range t.Columns {
		if coll.Equal(c.Name, name) {
			return c, true
		}
	}
	return Column{}, false
}

// Index looks an index up by name under coll.
func (t Table) Index(name string, coll Collation) (Index, bool) {
	for _, idx := range t.Indexes {
		if coll.Equal(idx.Name, name) {
			return idx, true
		}
	}
	return Index{}, false
}

// Constraint looks a constraint up by name under coll.
func (t Table) Constraint(name string, coll Collation) (Constraint, bool) {
	for _, c := range t.Constraints {
		if coll.Equal(c.Name, name) {
			return c, true
		}
	}
	return Constraint{}, false
}
