package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/tordrt/schemadrift/internal/errs"
	"github.com/tordrt/schemadrift/internal/schema"
)

// MySQLExtractor reads table definitions from information_schema.
type MySQLExtractor struct {
	client     *MySQLClient
	schemaName string
	collation  schema.Collation
}

// NewMySQLExtractor creates a new MySQL schema extractor. Requested table
// names are matched under coll.
func NewMySQLExtractor(client *MySQLClient, schemaName string, coll schema.Collation) *MySQLExtractor {
	return &MySQLExtractor{
		client:     client,
		schemaName: schemaName,
		collation:  coll,
	}
}

// ExtractSchema extracts the complete schema for specified tables.
// If tables is empty, extracts all base tables in the schema. A requested
// table that does not exist is an errs.ErrKindNotFound error.
func (e *MySQLExtractor) ExtractSchema(ctx context.Context, tables []string) (*schema.Schema, error) {
	tableNames, err := e.getTableNames(ctx, tables)
	if err != nil {
		return nil, fmt.Errorf("failed to get table names: %w", err)
	}

	extractedTables := make([]schema.Table, 0, len(tableNames))
	for _, tableName := range tableNames {
		table, err := e.extractTable(ctx, tableName)
		if err != nil {
			return nil, fmt.Errorf("failed to extract table %s: %w", tableName, err)
		}
		extractedTables = append(extractedTables, *table)
	}

	return &schema.Schema{Database: e.schemaName, Tables: extractedTables}, nil
}

// getTableNames returns the list of tables to extract
func (e *MySQLExtractor) getTableNames(ctx context.Context, requestedTables []string) ([]string, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = ? AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.schemaName)
	if err != nil {
		return nil, mapMySQLError(err, "failed to list tables")
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, mapMySQLError(err, "failed to scan table name")
		}
		tables = append(tables, tableName)
	}
	if err := rows.Err(); err != nil {
		return nil, mapMySQLError(err, "failed to list tables")
	}

	return selectTables(tables, requestedTables, e.schemaName, e.collation)
}

// extractTable extracts all information for a single table
func (e *MySQLExtractor) extractTable(ctx context.Context, tableName string) (*schema.Table, error) {
	table := &schema.Table{Name: tableName}

	columns, err := e.extractColumns(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract columns: %w", err)
	}
	table.Columns = columns

	indexes, err := e.extractIndexes(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract indexes: %w", err)
	}
	table.Indexes = indexes

	constraints, err := e.extractKeyConstraints(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract constraints: %w", err)
	}

	checks, err := e.extractCheckConstraints(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract check constraints: %w", err)
	}
	table.Constraints = append(constraints, checks...)

	return table, nil
}

// extractColumns extracts column information for a table
func (e *MySQLExtractor) extractColumns(ctx context.Context, tableName string) ([]schema.Column, error) {
	query := `
		SELECT
			c.column_name,
			c.column_type,
			c.is_nullable,
			c.column_default,
			c.ordinal_position
		FROM information_schema.columns c
		WHERE c.table_schema = ? AND c.table_name = ?
		ORDER BY c.ordinal_position
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.schemaName, tableName)
	if err != nil {
		return nil, mapMySQLError(err, "columns query failed")
	}
	defer rows.Close()

	var columns []schema.Column
	for rows.Next() {
		var col schema.Column
		var nullable string
		var defaultVal sql.NullString

		if err := rows.Scan(&col.Name, &col.Type, &nullable, &defaultVal, &col.Position); err != nil {
			return nil, mapMySQLError(err, "failed to scan column")
		}

		col.Nullable = nullable == "YES"
		if defaultVal.Valid {
			col.Default = &defaultVal.String
		}
		columns = append(columns, col)
	}

	if err := rows.Err(); err != nil {
		return nil, mapMySQLError(err, "columns query failed")
	}
	return columns, nil
}

// extractIndexes extracts secondary indexes. The primary key is reported as
// a constraint instead.
func (e *MySQLExtractor) extractIndexes(ctx context.Context, tableName string) ([]schema.Index, error) {
	query := `
		SELECT
			s.index_name,
			MIN(s.non_unique) = 0 AS is_unique,
			MIN(s.index_type) AS index_type,
			GROUP_CONCAT(s.column_name ORDER BY s.seq_in_index SEPARATOR ',') AS column_names
		FROM information_schema.statistics s
		WHERE s.table_schema = ?
			AND s.table_name = ?
			AND s.index_name != 'PRIMARY'
		GROUP BY s.index_name
		ORDER BY s.index_name
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.schemaName, tableName)
	if err != nil {
		return nil, mapMySQLError(err, "indexes query failed")
	}
	defer rows.Close()

	var indexes []schema.Index
	for rows.Next() {
		var idx schema.Index
		var isUnique int
		var columnNames sql.NullString

		if err := rows.Scan(&idx.Name, &isUnique, &idx.Kind, &columnNames); err != nil {
			return nil, mapMySQLError(err, "failed to scan index")
		}

		idx.Unique = isUnique == 1
		idx.Columns = splitColumnList(columnNames.String)
		indexes = append(indexes, idx)
	}

	if err := rows.Err(); err != nil {
		return nil, mapMySQLError(err, "indexes query failed")
	}
	return indexes, nil
}

// extractKeyConstraints reads primary key, unique and foreign key
// constraints with their columns and referential actions.
func (e *MySQLExtractor) extractKeyConstraints(ctx context.Context, tableName string) ([]schema.Constraint, error) {
	query := `
		SELECT
			tc.constraint_name,
			tc.constraint_type,
			kcu.column_name,
			kcu.referenced_table_name,
			kcu.referenced_column_name,
			rc.update_rule,
			rc.delete_rule
		FROM information_schema.table_constraints tc
		LEFT JOIN information_schema.key_column_usage kcu
			ON kcu.constraint_schema = tc.constraint_schema
			AND kcu.table_name = tc.table_name
			AND kcu.constraint_name = tc.constraint_name
		LEFT JOIN information_schema.referential_constraints rc
			ON rc.constraint_schema = tc.constraint_schema
			AND rc.table_name = tc.table_name
			AND rc.constraint_name = tc.constraint_name
		WHERE tc.table_schema = ?
			AND tc.table_name = ?
			AND tc.constraint_type IN ('PRIMARY KEY', 'UNIQUE', 'FOREIGN KEY')
		ORDER BY tc.constraint_name, kcu.ordinal_position
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.schemaName, tableName)
	if err != nil {
		return nil, mapMySQLError(err, "constraints query failed")
	}
	defer rows.Close()

	var keyRows []keyUsageRow
	for rows.Next() {
		var r keyUsageRow
		if err := rows.Scan(&r.Name, &r.Type, &r.Column, &r.RefTable, &r.RefColumn, &r.UpdateRule, &r.DeleteRule); err != nil {
			return nil, mapMySQLError(err, "failed to scan constraint")
		}
		keyRows = append(keyRows, r)
	}
	if err := rows.Err(); err != nil {
		return nil, mapMySQLError(err, "constraints query failed")
	}

	return assembleConstraints(keyRows)
}

// extractCheckConstraints reads CHECK constraints. Servers older than
// MySQL 8.0.16 have no check_constraints view and yield none.
func (e *MySQLExtractor) extractCheckConstraints(ctx context.Context, tableName string) ([]schema.Constraint, error) {
	query := `
		SELECT
			cc.constraint_name,
			cc.check_clause
		FROM information_schema.table_constraints tc
		JOIN information_schema.check_constraints cc
			ON cc.constraint_schema = tc.constraint_schema
			AND cc.constraint_name = tc.constraint_name
		WHERE tc.table_schema = ?
			AND tc.table_name = ?
			AND tc.constraint_type = 'CHECK'
		ORDER BY cc.constraint_name
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.schemaName, tableName)
	if err != nil {
		if isMissingTable(err) {
			return nil, nil
		}
		return nil, mapMySQLError(err, "check constraints query failed")
	}
	defer rows.Close()

	var checks []schema.Constraint
	for rows.Next() {
		c := schema.Constraint{Kind: schema.Check}
		if err := rows.Scan(&c.Name, &c.Check); err != nil {
			return nil, mapMySQLError(err, "failed to scan check constraint")
		}
		checks = append(checks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapMySQLError(err, "check constraints query failed")
	}
	return checks, nil
}

// keyUsageRow is one row of the constraints query: one column of one
// constraint.
type keyUsageRow struct {
	Name       string
	Type       string
	Column     sql.NullString
	RefTable   sql.NullString
	RefColumn  sql.NullString
	UpdateRule sql.NullString
	DeleteRule sql.NullString
}

// assembleConstraints folds per-column rows into constraints. Rows of one
// constraint are contiguous and in column order.
func assembleConstraints(rows []keyUsageRow) ([]schema.Constraint, error) {
	var out []schema.Constraint
	for _, r := range rows {
		if n := len(out); n > 0 && out[n-1].Name == r.Name {
			appendKeyColumn(&out[n-1], r)
			continue
		}

		kind := schema.ConstraintKind(r.Type)
		if !kind.Valid() || kind == schema.Check {
			return nil, errs.Newf(errs.ErrKindQueryFailed, "constraint %s has unexpected type %q", r.Name, r.Type)
		}
		c := schema.Constraint{Name: r.Name, Kind: kind}
		if kind == schema.ForeignKey {
			c.RefTable = r.RefTable.String
			c.OnUpdate = r.UpdateRule.String
			c.OnDelete = r.DeleteRule.String
		}
		appendKeyColumn(&c, r)
		out = append(out, c)
	}
	return out, nil
}

func appendKeyColumn(c *schema.Constraint, r keyUsageRow) {
	if r.Column.Valid {
		c.Columns = append(c.Columns, r.Column.String)
	}
	if c.Kind == schema.ForeignKey && r.RefColumn.Valid {
		c.RefColumns = append(c.RefColumns, r.RefColumn.String)
	}
}

// splitColumnList splits a GROUP_CONCAT column list. Functional index parts
// have no column name and are skipped by GROUP_CONCAT.
func splitColumnList(list string) []string {
	if list == "" {
		return nil
	}
	return strings.Split(list, ",")
}

// selectTables narrows all to requested, in the order of all and with the
// names as the server spells them. Names that do not exist are reported
// together.
func selectTables(all, requested []string, schemaName string, coll schema.Collation) ([]string, error) {
	if len(requested) == 0 {
		return all, nil
	}

	exists := make(map[string]bool, len(all))
	for _, t := range all {
		exists[coll.Key(t)] = true
	}
	want := make(map[string]bool, len(requested))
	var missing []string
	for _, t := range requested {
		if !exists[coll.Key(t)] {
			missing = append(missing, t)
		}
		want[coll.Key(t)] = true
	}
	if len(missing) > 0 {
		return nil, errs.Newf(errs.ErrKindNotFound, "tables not found in %s: %s", schemaName, strings.Join(missing, ", "))
	}

	var out []string
	for _, t := range all {
		if want[coll.Key(t)] {
			out = append(out, t)
		}
	}
	return out, nil
}
