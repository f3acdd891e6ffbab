package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tordrt/schemadrift/internal/errs"
)

const (
	sqliteCreateTable = `CREATE TABLE IF NOT EXISTS schema_snapshots (
	key      TEXT PRIMARY KEY,
	body     BLOB NOT NULL,
	saved_at TIMESTAMP NOT NULL
)`
	sqliteUpsert = `INSERT INTO schema_snapshots (key, body, saved_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET body = excluded.body, saved_at = excluded.saved_at`
	sqliteSelect = `SELECT body FROM schema_snapshots WHERE key = ?`
)

// SQLiteStore keeps snapshots as rows of a schema_snapshots table in a
// SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to open database", err)
	}
	// A single writer avoids SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to ping database", err)
	}
	if _, err := db.ExecContext(ctx, sqliteCreateTable); err != nil {
		_ = db.Close()
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "failed to create schema_snapshots table", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Put upserts the row for key.
func (s *SQLiteStore) Put(ctx context.Context, key string, data []byte) error {
	if _, err := s.db.ExecContext(ctx, sqliteUpsert, key, data, time.Now().UTC()); err != nil {
		return mapSQLError(err, "failed to save snapshot "+key)
	}
	return nil
}

// Get returns the body stored for key.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var body []byte
	if err := s.db.QueryRowContext(ctx, sqliteSelect, key).Scan(&body); err != nil {
		return nil, mapSQLError(err, "failed to load snapshot "+key)
	}
	return body, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func mapSQLError(err error, msg string) *errs.Error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}
	return errs.Wrap(errs.ErrKindQueryFailed, msg, err)
}
