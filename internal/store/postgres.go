package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tordrt/schemadrift/internal/errs"
)

// PostgreSQL SQLSTATE codes
// Full list: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgErrConnectionFailure     = "08006"
	pgErrInvalidPassword       = "28P01"
	pgErrInsufficientPrivilege = "42501"
	pgErrQueryCanceled         = "57014"
)

const (
	pgCreateTable = `CREATE TABLE IF NOT EXISTS schema_snapshots (
	key      TEXT PRIMARY KEY,
	body     BYTEA NOT NULL,
	saved_at TIMESTAMPTZ NOT NULL
)`
	pgUpsert = `INSERT INTO schema_snapshots (key, body, saved_at) VALUES ($1, $2, $3)
ON CONFLICT (key) DO UPDATE SET body = EXCLUDED.body, saved_at = EXCLUDED.saved_at`
	pgSelect = `SELECT body FROM schema_snapshots WHERE key = $1`
)

// PostgresStore keeps snapshots as rows of a schema_snapshots table in a
// PostgreSQL database.
type PostgresStore struct {
	conn *pgx.Conn
}

// NewPostgresStore connects with a pgx connection string and creates the
// snapshot table when it is missing.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, mapPgError(err, "failed to connect to database")
	}

	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close(ctx)
		return nil, mapPgError(err, "failed to ping database")
	}
	if _, err := conn.Exec(ctx, pgCreateTable); err != nil {
		_ = conn.Close(ctx)
		return nil, mapPgError(err, "failed to create schema_snapshots table")
	}

	return &PostgresStore{conn: conn}, nil
}

// Put upserts the row for key.
func (s *PostgresStore) Put(ctx context.Context, key string, data []byte) error {
	if _, err := s.conn.Exec(ctx, pgUpsert, key, data, time.Now().UTC()); err != nil {
		return mapPgError(err, "failed to save snapshot "+key)
	}
	return nil
}

// Get returns the body stored for key.
func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var body []byte
	if err := s.conn.QueryRow(ctx, pgSelect, key).Scan(&body); err != nil {
		return nil, mapPgError(err, "failed to load snapshot "+key)
	}
	return body, nil
}

// Close closes the connection.
func (s *PostgresStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.conn.Close(ctx)
}

// mapPgError converts a pgx error into an *errs.Error.
func mapPgError(err error, msg string) *errs.Error {
	if errors.Is(err, pgx.ErrNoRows) {
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgErrConnectionFailure:
			return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
		case pgErrInvalidPassword, pgErrInsufficientPrivilege:
			return errs.Wrap(errs.ErrKindPermissionDenied, msg, err)
		case pgErrQueryCanceled:
			return errs.Wrap(errs.ErrKindTimeout, msg, err)
		}
		return errs.Wrap(errs.ErrKindQueryFailed, msg, err)
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
	}
	return errs.Wrap(errs.ErrKindUnknown, msg, err)
}
