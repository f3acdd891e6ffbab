package schemadrift

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/schemadrift/internal/config"
	"github.com/tordrt/schemadrift/internal/diff"
	"github.com/tordrt/schemadrift/internal/errs"
	"github.com/tordrt/schemadrift/internal/schema"
	"github.com/tordrt/schemadrift/internal/snapshot"
	"github.com/tordrt/schemadrift/internal/store"
)

type fakeCollector struct {
	schema    schema.Schema
	err       error
	gotTables []string
}

// ExtractSchema behaves like db.MySQLExtractor: named tables must exist.
func (f *fakeCollector) ExtractSchema(_ context.Context, tables []string) (*schema.Schema, error) {
	f.gotTables = tables
	if f.err != nil {
		return nil, f.err
	}
	s := f.schema.Clone()
	if len(tables) == 0 {
		return &s, nil
	}

	var kept []schema.Table
	for _, name := range tables {
		t, ok := s.Table(name, schema.CaseSensitive)
		if !ok {
			return nil, errs.Newf(errs.ErrKindNotFound, "tables not found in %s: %s", s.Database, name)
		}
		kept = append(kept, t)
	}
	s.Tables = kept
	return &s, nil
}

func shopSchema() schema.Schema {
	return schema.Schema{
		Database: "shop",
		Tables: []schema.Table{
			{
				Name: "users",
				Columns: []schema.Column{
					{Name: "id", Type: "int", Position: 1},
					{Name: "email", Type: "varchar(50)", Position: 2},
				},
				Constraints: []schema.Constraint{{Name: "PRIMARY", Kind: schema.PrimaryKey, Columns: []string{"id"}}},
			},
			{Name: "orders", Columns: []schema.Column{{Name: "id", Type: "int", Position: 1}}},
			{Name: "audit_log", Columns: []schema.Column{{Name: "id", Type: "bigint", Position: 1}}},
		},
	}
}

var fixedNow = time.Date(2026, 10, 19, 9, 30, 0, 0, time.FixedZone("CEST", 2*60*60))

func newTestRunner(t *testing.T, c Collector, opts Options) (*Runner, string) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(context.Background(), "file://"+dir, store.Options{})
	require.NoError(t, err)

	r := NewRunner(c, st, opts, nil)
	r.now = func() time.Time { return fixedNow }
	t.Cleanup(func() { _ = r.Close() })
	return r, dir
}

func TestCacheThenValidate_NoDrift(t *testing.T) {
	ctx := context.Background()
	c := &fakeCollector{schema: shopSchema()}
	r, dir := newTestRunner(t, c, Options{})

	cached, err := r.Cache(ctx, "schema-snapshot.yaml")
	require.NoError(t, err)
	assert.Equal(t, fixedNow.UTC(), cached.CapturedAt)
	assert.FileExists(t, filepath.Join(dir, "schema-snapshot.yaml"))

	res, err := r.Validate(ctx, "schema-snapshot.yaml")
	require.NoError(t, err)

	assert.False(t, res.Diff.HasDrift())
	assert.Equal(t, 3, res.Diff.Summary.Unchanged)
	assert.Empty(t, res.Diff.Tables)
	assert.Equal(t, "shop", res.Report().Database)
	assert.Equal(t, fixedNow.UTC(), res.Report().BaselineCapturedAt)
}

func TestValidate_DetectsDrift(t *testing.T) {
	ctx := context.Background()
	c := &fakeCollector{schema: shopSchema()}
	r, _ := newTestRunner(t, c, Options{})

	_, err := r.Cache(ctx, "baseline.yaml")
	require.NoError(t, err)

	changed := shopSchema()
	changed.Tables[0].Columns[1].Type = "varchar(100)"
	changed.Tables = changed.Tables[:2]
	changed.Tables = append(changed.Tables, schema.Table{
		Name: "payments", Columns: []schema.Column{{Name: "id", Type: "int", Position: 1}},
	})
	c.schema = changed

	res, err := r.Validate(ctx, "baseline.yaml")
	require.NoError(t, err)

	require.True(t, res.Diff.HasDrift())
	assert.Equal(t, diff.Summary{Removed: 1, Added: 1, Modified: 1, Unchanged: 1}, res.Diff.Summary)

	users, ok := res.Diff.Table("users")
	require.True(t, ok)
	require.Len(t, users.Columns.Modified, 1)
	assert.Equal(t, "varchar(50)", users.Columns.Modified[0].Old.Type)
	assert.Equal(t, "varchar(100)", users.Columns.Modified[0].New.Type)
}

func TestValidate_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing snapshot", func(t *testing.T) {
		r, _ := newTestRunner(t, &fakeCollector{schema: shopSchema()}, Options{})
		_, err := r.Validate(ctx, "nope.yaml")
		require.Error(t, err)
		assert.True(t, errs.IsNotFound(err))
	})

	t.Run("corrupt snapshot", func(t *testing.T) {
		r, dir := newTestRunner(t, &fakeCollector{schema: shopSchema()}, Options{})
		require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("format_version: 1\ntables: [\n"), 0o644))

		_, err := r.Validate(ctx, "bad.yaml")
		require.Error(t, err)
		assert.True(t, snapshot.IsDecodeError(err))
		assert.True(t, errs.IsCorruptSnapshot(err))
	})

	t.Run("unsupported version", func(t *testing.T) {
		r, dir := newTestRunner(t, &fakeCollector{schema: shopSchema()}, Options{})
		require.NoError(t, os.WriteFile(filepath.Join(dir, "v9.yaml"), []byte("format_version: 9\n"), 0o644))

		_, err := r.Validate(ctx, "v9.yaml")
		require.Error(t, err)
		assert.True(t, snapshot.IsUnsupportedVersion(err))
	})

	t.Run("collector failure", func(t *testing.T) {
		c := &fakeCollector{schema: shopSchema()}
		r, _ := newTestRunner(t, c, Options{})
		_, err := r.Cache(ctx, "s.yaml")
		require.NoError(t, err)

		c.err = errs.New(errs.ErrKindConnectionFailed, "connection refused")
		_, err = r.Validate(ctx, "s.yaml")
		require.Error(t, err)
		assert.True(t, errs.IsConnectionFailed(err))
	})

	t.Run("no collector", func(t *testing.T) {
		r, _ := newTestRunner(t, nil, Options{})
		_, err := r.Cache(ctx, "s.yaml")
		require.Error(t, err)
		assert.True(t, errs.IsInvalidInput(err))
	})
}

func TestTableSelection(t *testing.T) {
	ctx := context.Background()
	c := &fakeCollector{schema: shopSchema()}
	full, dir := newTestRunner(t, c, Options{})
	_, err := full.Cache(ctx, "full.yaml")
	require.NoError(t, err)

	st, err := store.Open(ctx, "file://"+dir, store.Options{})
	require.NoError(t, err)

	t.Run("exclude", func(t *testing.T) {
		r := NewRunner(c, st, Options{ExcludeTables: []string{"audit_log"}}, nil)

		cached, err := r.Cache(ctx, "excluded.yaml")
		require.NoError(t, err)
		assert.Equal(t, []string{"users", "orders"}, cached.TableNames())

		res, err := r.Validate(ctx, "full.yaml")
		require.NoError(t, err)
		assert.False(t, res.Diff.HasDrift(), "excluded tables must not show up as removed")
	})

	t.Run("include list", func(t *testing.T) {
		r := NewRunner(c, st, Options{Tables: []string{"users"}}, nil)

		res, err := r.Validate(ctx, "full.yaml")
		require.NoError(t, err)
		assert.False(t, res.Diff.HasDrift())
		assert.Equal(t, diff.Summary{Unchanged: 1}, res.Diff.Summary)
	})

	t.Run("cache requires selected tables to exist", func(t *testing.T) {
		r := NewRunner(c, st, Options{Tables: []string{"users", "ghost"}}, nil)

		_, err := r.Cache(ctx, "ghost.yaml")
		require.Error(t, err)
		assert.True(t, errs.IsNotFound(err))
	})

	t.Run("case insensitive exclusion", func(t *testing.T) {
		r := NewRunner(c, st, Options{
			ExcludeTables: []string{"AUDIT_LOG"},
			Diff:          diff.Options{Collation: schema.CaseInsensitive},
		}, nil)

		s, err := r.Capture(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"users", "orders"}, s.TableNames())
	})
}

func TestValidate_SelectedTableDropped(t *testing.T) {
	ctx := context.Background()
	c := &fakeCollector{schema: shopSchema()}
	r, _ := newTestRunner(t, c, Options{Tables: []string{"users", "orders"}})

	_, err := r.Cache(ctx, "baseline.yaml")
	require.NoError(t, err)

	dropped := shopSchema()
	dropped.Tables = []schema.Table{dropped.Tables[0], dropped.Tables[2]}
	c.schema = dropped

	res, err := r.Validate(ctx, "baseline.yaml")
	require.NoError(t, err)

	assert.Equal(t, diff.Summary{Removed: 1, Unchanged: 1}, res.Diff.Summary)
	orders, ok := res.Diff.Table("orders")
	require.True(t, ok)
	assert.Equal(t, diff.Removed, orders.Status)
	_, ok = res.Diff.Table("audit_log")
	assert.False(t, ok, "unselected tables stay out of the diff")
}

func TestCompare_NamesCollideUnderCollation(t *testing.T) {
	ctx := context.Background()
	c := &fakeCollector{schema: schema.Schema{Database: "shop", Tables: []schema.Table{
		{Name: "Users", Columns: []schema.Column{{Name: "id", Type: "int", Position: 1}}},
		{Name: "users", Columns: []schema.Column{{Name: "id", Type: "int", Position: 1}}},
	}}}
	r, _ := newTestRunner(t, c, Options{})
	_, err := r.Cache(ctx, "mixed.yaml")
	require.NoError(t, err)

	folded := NewRunner(c, r.store, Options{Diff: diff.Options{Collation: schema.CaseInsensitive}}, nil)

	_, err = folded.CompareSnapshots(ctx, "mixed.yaml", "mixed.yaml")
	require.Error(t, err)
	assert.True(t, errs.IsInvalidInput(err))
	assert.Contains(t, err.Error(), "case-insensitive")

	_, err = folded.Validate(ctx, "mixed.yaml")
	require.Error(t, err)
	assert.True(t, errs.IsInvalidInput(err))

	res, err := r.CompareSnapshots(ctx, "mixed.yaml", "mixed.yaml")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Diff.Summary.Unchanged)
}

func TestCompareSnapshots(t *testing.T) {
	ctx := context.Background()
	c := &fakeCollector{schema: shopSchema()}
	r, _ := newTestRunner(t, c, Options{Diff: diff.Options{IncludeUnchanged: true}})

	_, err := r.Cache(ctx, "before.yaml.gz")
	require.NoError(t, err)

	c.schema.Tables[1].Columns = append(c.schema.Tables[1].Columns,
		schema.Column{Name: "total", Type: "decimal(10,2)", Position: 2})
	_, err = r.Cache(ctx, "after.yaml.gz")
	require.NoError(t, err)

	offline := NewRunner(nil, r.store, r.opts, nil)
	res, err := offline.CompareSnapshots(ctx, "before.yaml.gz", "after.yaml.gz")
	require.NoError(t, err)

	require.Len(t, res.Diff.Tables, 3)
	assert.Equal(t, "orders", res.Diff.Tables[0].Name)
	assert.Equal(t, diff.Modified, res.Diff.Tables[0].Status)
	require.Len(t, res.Diff.Tables[0].Columns.Added, 1)
	assert.Equal(t, "total", res.Diff.Tables[0].Columns.Added[0].Name)
}

func TestCapture_DoesNotAliasCollectorResult(t *testing.T) {
	c := &fakeCollector{schema: shopSchema()}
	r, _ := newTestRunner(t, c, Options{ExcludeTables: []string{"orders"}})

	_, err := r.Capture(context.Background())
	require.NoError(t, err)
	assert.Len(t, c.schema.Tables, 3)
}

func TestConfigConversion(t *testing.T) {
	cfg := &config.Config{
		Database: config.DatabaseConfig{
			Host: "db", Port: 3307, User: "app", Password: "p@ss", Name: "shop",
			ConnectTimeout: 3 * time.Second,
		},
		Report:        config.ReportConfig{UnchangedColumns: true},
		Diff:          config.DiffConfig{CaseInsensitive: true, IgnoreColumnOrder: true},
		Tables:        []string{"users"},
		ExcludeTables: []string{"audit_log"},
	}

	conn := ConnConfig(cfg)
	assert.Equal(t, "db", conn.Host)
	assert.Equal(t, 3307, conn.Port)
	assert.Equal(t, "p@ss", conn.Password)
	assert.Equal(t, "shop", conn.Database)
	assert.Equal(t, 3*time.Second, conn.ConnectTimeout)

	opts := RunnerOptions(cfg)
	assert.Equal(t, []string{"users"}, opts.Tables)
	assert.Equal(t, []string{"audit_log"}, opts.ExcludeTables)
	assert.Equal(t, diff.Options{
		Collation:         schema.CaseInsensitive,
		IgnoreColumnOrder: true,
		IncludeUnchanged:  true,
	}, opts.Diff)
}

func TestOpen_RequiresDatabaseName(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{Database: config.DatabaseConfig{Host: "localhost"}}, nil)
	require.Error(t, err)
	assert.True(t, errs.IsInvalidInput(err))
}

func TestOpenOffline(t *testing.T) {
	cfg := &config.Config{Snapshot: config.SnapshotConfig{Store: "file://" + t.TempDir()}}
	r, err := OpenOffline(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Capture(context.Background())
	assert.True(t, errs.IsInvalidInput(err))
}
