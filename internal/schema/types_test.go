package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/schemadrift/internal/errs"
)

func strPtr(s string) *string { return &s }

func usersTable() Table {
	return Table{
		Name: "users",
		Columns: []Column{
			{Name: "id", Type: "int", Position: 1},
			{Name: "email", Type: "varchar(255)", Position: 2},
			{Name: "status", Type: "varchar(16)", Nullable: true, Default: strPtr("active"), Position: 3},
		},
		Indexes: []Index{
			{Name: "idx_status", Columns: []string{"status"}, Kind: "BTREE"},
			{Name: "idx_email", Columns: []string{"email"}, Unique: true, Kind: "BTREE"},
		},
		Constraints: []Constraint{
			{Name: "uq_email", Kind: Unique, Columns: []string{"email"}},
			{Name: "PRIMARY", Kind: PrimaryKey, Columns: []string{"id"}},
		},
	}
}

func TestColumn_Equal(t *testing.T) {
	base := Column{Name: "c1", Type: "varchar(50)", Default: strPtr("x"), Position: 1}

	tests := []struct {
		name   string
		modify func(c Column) Column
		want   bool
	}{
		{"identical", func(c Column) Column { return c }, true},
		{"position ignored", func(c Column) Column { c.Position = 7; return c }, true},
		{"type differs", func(c Column) Column { c.Type = "varchar(100)"; return c }, false},
		{"nullability differs", func(c Column) Column { c.Nullable = true; return c }, false},
		{"default removed", func(c Column) Column { c.Default = nil; return c }, false},
		{"default value differs", func(c Column) Column { c.Default = strPtr("y"); return c }, false},
		{"empty default is not none", func(c Column) Column { c.Default = strPtr(""); return c }, false},
		{"name differs", func(c Column) Column { c.Name = "c2"; return c }, false},
		{"name case differs", func(c Column) Column { c.Name = "C1"; return c }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, base.Equal(tt.modify(base.Clone())))
		})
	}
}

func TestColumn_EqualUnderCaseInsensitive(t *testing.T) {
	a := Column{Name: "CreatedAt", Type: "datetime"}
	b := Column{Name: "createdat", Type: "datetime"}

	assert.False(t, a.EqualUnder(b, CaseSensitive))
	assert.True(t, a.EqualUnder(b, CaseInsensitive))
}

func TestColumn_Changes(t *testing.T) {
	old := Column{Name: "c1", Type: "varchar(50)"}
	cur := Column{Name: "c1", Type: "varchar(100)", Nullable: true, Default: strPtr("n/a")}

	assert.Equal(t, []FieldChange{
		{Field: FieldType, Old: "varchar(50)", New: "varchar(100)"},
		{Field: FieldNullable, Old: "false", New: "true"},
		{Field: FieldDefault, Old: "none", New: "n/a"},
	}, old.Changes(cur))
}

func TestIndex_Equal(t *testing.T) {
	base := Index{Name: "idx1", Columns: []string{"a", "b"}, Kind: "BTREE"}

	assert.True(t, base.Equal(base.Clone()))

	reordered := base.Clone()
	reordered.Columns = []string{"b", "a"}
	assert.False(t, base.Equal(reordered))
	assert.Equal(t, []FieldChange{{Field: FieldColumns, Old: "(a, b)", New: "(b, a)"}}, base.Changes(reordered, CaseSensitive))

	unique := base.Clone()
	unique.Unique = true
	assert.False(t, base.Equal(unique))

	fulltext := base.Clone()
	fulltext.Kind = "FULLTEXT"
	assert.False(t, base.Equal(fulltext))

	upper := base.Clone()
	upper.Columns = []string{"A", "B"}
	assert.False(t, base.Equal(upper))
	assert.True(t, base.EqualUnder(upper, CaseInsensitive))
}

func TestConstraint_Equal(t *testing.T) {
	fk := Constraint{
		Name:       "fk_orders_user",
		Kind:       ForeignKey,
		Columns:    []string{"user_id"},
		RefTable:   "users",
		RefColumns: []string{"id"},
		OnDelete:   "CASCADE",
		OnUpdate:   "RESTRICT",
	}
	assert.True(t, fk.Equal(fk.Clone()))

	other := fk.Clone()
	other.OnDelete = "SET NULL"
	assert.False(t, fk.Equal(other))
	assert.Equal(t, []FieldChange{{Field: FieldOnDelete, Old: "CASCADE", New: "SET NULL"}}, fk.Changes(other, CaseSensitive))

	other = fk.Clone()
	other.RefTable = "accounts"
	assert.False(t, fk.Equal(other))

	check := Constraint{Name: "chk_qty", Kind: Check, Check: "(`qty` > 0)"}
	changed := check.Clone()
	changed.Check = "(`qty` >= 0)"
	assert.False(t, check.Equal(changed))
}

func TestTable_Equal(t *testing.T) {
	a := usersTable()

	shuffled := a.Clone()
	shuffled.Indexes[0], shuffled.Indexes[1] = shuffled.Indexes[1], shuffled.Indexes[0]
	shuffled.Constraints[0], shuffled.Constraints[1] = shuffled.Constraints[1], shuffled.Constraints[0]
	assert.True(t, a.Equal(shuffled), "index and constraint order must not matter")

	reordered := a.Clone()
	reordered.Columns[0].Position, reordered.Columns[1].Position = 2, 1
	assert.False(t, a.Equal(reordered), "column order matters")

	missing := a.Clone()
	missing.Indexes = missing.Indexes[:1]
	assert.False(t, a.Equal(missing))
}

func TestClone_IsDeep(t *testing.T) {
	s := Schema{Database: "shop", Tables: []Table{usersTable()}}
	c := s.Clone()

	*c.Tables[0].Columns[2].Default = "banned"
	c.Tables[0].Indexes[0].Columns[0] = "other"
	c.Tables[0].Name = "renamed"

	assert.Equal(t, "active", *s.Tables[0].Columns[2].Default)
	assert.Equal(t, "status", s.Tables[0].Indexes[0].Columns[0])
	assert.Equal(t, "users", s.Tables[0].Name)
}

func TestSchema_Canonical(t *testing.T) {
	s := Schema{Tables: []Table{
		{Name: "users", Columns: []Column{
			{Name: "b", Type: "int", Position: 2},
			{Name: "a", Type: "int", Position: 1},
		}},
		{Name: "Orders"},
		{Name: "accounts"},
	}}
	s.Tables[0].Indexes = []Index{{Name: "z"}, {Name: "m"}}
	s.Tables[0].Constraints = []Constraint{{Name: "uq", Kind: Unique}, {Name: "PRIMARY", Kind: PrimaryKey}}

	c := s.Canonical(CaseSensitive)
	assert.Equal(t, []string{"Orders", "accounts", "users"}, c.TableNames())

	users, ok := c.Table("users", CaseSensitive)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, users.ColumnNames())
	assert.Equal(t, "m", users.Indexes[0].Name)
	assert.Equal(t, "PRIMARY", users.Constraints[0].Name)

	ci := s.Canonical(CaseInsensitive)
	assert.Equal(t, []string{"accounts", "Orders", "users"}, ci.TableNames())

	assert.Equal(t, "users", s.Tables[0].Name, "input must not be reordered")
	assert.Equal(t, "b", s.Tables[0].Columns[0].Name, "input columns must not be reordered")
}

func TestSortedColumns_KeepsDeclaredOrderWithoutPositions(t *testing.T) {
	cols := []Column{{Name: "z", Type: "int"}, {Name: "a", Type: "int"}}
	assert.Equal(t, []string{"z", "a"}, Table{Columns: sortedColumns(cols)}.ColumnNames())
}

func TestSchema_Lookups(t *testing.T) {
	s := Schema{Tables: []Table{usersTable()}}

	_, ok := s.Table("USERS", CaseSensitive)
	assert.False(t, ok)
	tbl, ok := s.Table("USERS", CaseInsensitive)
	require.True(t, ok)

	col, ok := tbl.Column("Email", CaseInsensitive)
	require.True(t, ok)
	assert.Equal(t, "varchar(255)", col.Type)

	_, ok = tbl.Index("idx_email", CaseSensitive)
	assert.True(t, ok)
	_, ok = tbl.Constraint("missing", CaseSensitive)
	assert.False(t, ok)
}

func TestSchema_Validate(t *testing.T) {
	tests := []struct {
		name    string
		schema  Schema
		coll    Collation
		wantErr bool
	}{
		{"valid", Schema{Tables: []Table{usersTable()}}, CaseSensitive, false},
		{"empty schema", Schema{}, CaseSensitive, false},
		{"duplicate table", Schema{Tables: []Table{{Name: "t"}, {Name: "t"}}}, CaseSensitive, true},
		{"tables differing in case", Schema{Tables: []Table{{Name: "t"}, {Name: "T"}}}, CaseSensitive, false},
		{"tables differing in case, insensitive", Schema{Tables: []Table{{Name: "t"}, {Name: "T"}}}, CaseInsensitive, true},
		{"empty table name", Schema{Tables: []Table{{}}}, CaseSensitive, true},
		{"duplicate column", Schema{Tables: []Table{{Name: "t", Columns: []Column{{Name: "a", Type: "int"}, {Name: "a", Type: "int"}}}}}, CaseSensitive, true},
		{"column without type", Schema{Tables: []Table{{Name: "t", Columns: []Column{{Name: "a"}}}}}, CaseSensitive, true},
		{"duplicate index", Schema{Tables: []Table{{Name: "t", Indexes: []Index{{Name: "i"}, {Name: "i"}}}}}, CaseSensitive, true},
		{"duplicate constraint", Schema{Tables: []Table{{Name: "t", Constraints: []Constraint{{Name: "c", Kind: Check}, {Name: "c", Kind: Check}}}}}, CaseSensitive, true},
		{"unknown constraint kind", Schema{Tables: []Table{{Name: "t", Constraints: []Constraint{{Name: "c", Kind: "EXCLUDE"}}}}}, CaseSensitive, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.schema.Validate(tt.coll)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errs.IsInvalidInput(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCollation(t *testing.T) {
	assert.True(t, CaseInsensitive.Equal("Straße", "STRASSE"))
	assert.False(t, CaseSensitive.Equal("users", "Users"))
	assert.Negative(t, CaseInsensitive.Compare("Users", "users"))
	assert.Zero(t, CaseSensitive.Compare("a", "a"))
	assert.Equal(t, "case-insensitive", CaseInsensitive.String())
}

func TestColumn_DefaultString(t *testing.T) {
	assert.Equal(t, "none", Column{}.DefaultString())
	assert.Equal(t, "", Column{Default: strPtr("")}.DefaultString())
	assert.Equal(t, "CURRENT_TIMESTAMP", Column{Default: strPtr("CURRENT_TIMESTAMP")}.DefaultString())
}
