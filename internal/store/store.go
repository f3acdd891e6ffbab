// Package store persists encoded snapshots.
//
// A Store maps a key to the bytes of one snapshot. Every backend keeps a
// single value per key: Put overwrites, there is no history. Which backend
// is used is decided by the location passed to Open:
//
//	""  or "file" or "file://<dir>"   files on local disk, keys are paths
//	"sqlite://<path>"                 a SQLite database file
//	"postgres://..." "postgresql://…" a PostgreSQL database (pgx connection string)
//	"minio://<bucket>"                objects in a MinIO / S3 bucket
//
// Keys ending in ".gz" are gzip compressed regardless of the backend.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/tordrt/schemadrift/internal/errs"
	"github.com/tordrt/schemadrift/internal/logger"
)

// Store is implemented by every snapshot backend.
type Store interface {
	// Put stores data under key, replacing any previous value.
	Put(ctx context.Context, key string, data []byte) error

	// Get returns the bytes stored under key. A missing key is an
	// errs.ErrKindNotFound error.
	Get(ctx context.Context, key string) ([]byte, error)

	// Close releases connections held by the backend.
	Close() error
}

// Backend names a store implementation.
type Backend string

const (
	BackendFile     Backend = "file"
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
	BackendMinIO    Backend = "minio"
)

// MinIOConfig holds the connection settings of the MinIO backend. The
// bucket comes from the location.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
}

// Options configures Open.
type Options struct {
	MinIO  MinIOConfig
	Logger *logger.Logger
}

// Location is a parsed store location.
type Location struct {
	Backend Backend
	// Target is the directory, database path, connection string or bucket,
	// depending on Backend.
	Target string
}

// ParseLocation splits a store location into backend and target.
func ParseLocation(location string) (Location, error) {
	switch {
	case location == "" || location == "file":
		return Location{Backend: BackendFile}, nil
	case strings.HasPrefix(location, "file://"):
		return Location{Backend: BackendFile, Target: strings.TrimPrefix(location, "file://")}, nil
	case strings.HasPrefix(location, "sqlite://"):
		path := strings.TrimPrefix(location, "sqlite://")
		if path == "" {
			return Location{}, errs.New(errs.ErrKindInvalidInput, "sqlite store location has no database path")
		}
		return Location{Backend: BackendSQLite, Target: path}, nil
	case strings.HasPrefix(location, "postgres://"), strings.HasPrefix(location, "postgresql://"):
		return Location{Backend: BackendPostgres, Target: location}, nil
	case strings.HasPrefix(location, "minio://"):
		bucket := strings.Trim(strings.TrimPrefix(location, "minio://"), "/")
		if bucket == "" {
			return Location{}, errs.New(errs.ErrKindInvalidInput, "minio store location has no bucket")
		}
		return Location{Backend: BackendMinIO, Target: bucket}, nil
	}
	return Location{}, errs.Newf(errs.ErrKindInvalidInput, "unsupported snapshot store %q", location)
}

// Open connects to the store described by location.
func Open(ctx context.Context, location string, opts Options) (Store, error) {
	loc, err := ParseLocation(location)
	if err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	var s Store
	switch loc.Backend {
	case BackendFile:
		s = NewFileStore(loc.Target)
	case BackendSQLite:
		s, err = NewSQLiteStore(ctx, loc.Target)
	case BackendPostgres:
		s, err = NewPostgresStore(ctx, loc.Target)
	case BackendMinIO:
		s, err = NewMinIOStore(ctx, loc.Target, opts.MinIO)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s snapshot store: %w", loc.Backend, err)
	}

	log.With().Str("backend", string(loc.Backend)).Logger().Debug("snapshot store opened")
	return &gzipStore{next: s}, nil
}
