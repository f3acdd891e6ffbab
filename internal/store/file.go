package store

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/tordrt/schemadrift/internal/errs"
)

// FileStore keeps each snapshot in its own file. Relative keys resolve
// against the store directory, or the working directory when it is empty.
type FileStore struct {
	dir string
}

// NewFileStore creates a store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) path(key string) string {
	if s.dir == "" || filepath.IsAbs(key) {
		return key
	}
	return filepath.Join(s.dir, key)
}

// Put writes data to a temporary file next to the target and renames it
// into place, so readers never see a partially written snapshot.
func (s *FileStore) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return errs.Wrap(errs.ErrKindTimeout, "write cancelled", err)
	}
	if key == "" {
		return errs.New(errs.ErrKindInvalidInput, "empty snapshot key")
	}
	path := s.path(key)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return mapFileError(err, "failed to create snapshot directory")
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return mapFileError(err, "failed to create snapshot file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return mapFileError(err, "failed to write snapshot file")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return mapFileError(err, "failed to write snapshot file")
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return mapFileError(err, "failed to write snapshot file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return mapFileError(err, "failed to replace snapshot file")
	}
	return nil
}

// Get reads the file for key.
func (s *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(errs.ErrKindTimeout, "read cancelled", err)
	}
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		return nil, mapFileError(err, "failed to read snapshot "+key)
	}
	return data, nil
}

// Close is a no-op.
func (s *FileStore) Close() error {
	return nil
}

func mapFileError(err error, msg string) *errs.Error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	case errors.Is(err, fs.ErrPermission):
		return errs.Wrap(errs.ErrKindPermissionDenied, msg, err)
	}
	return errs.Wrap(errs.ErrKindUnknown, msg, err)
}
