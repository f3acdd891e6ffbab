package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/tordrt/schemadrift/internal/errs"
)

const gzipSuffix = ".gz"

// maxSnapshotSize bounds the decompressed size of a snapshot.
var maxSnapshotSize int64 = 256 << 20

// gzipStore compresses values whose key ends in ".gz" and passes every other
// value through unchanged.
type gzipStore struct {
	next Store
}

func (s *gzipStore) Put(ctx context.Context, key string, data []byte) error {
	if !strings.HasSuffix(key, gzipSuffix) {
		return s.next.Put(ctx, key, data)
	}
	compressed, err := compress(data)
	if err != nil {
		return errs.Wrap(errs.ErrKindUnknown, "failed to compress snapshot", err)
	}
	return s.next.Put(ctx, key, compressed)
}

func (s *gzipStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.next.Get(ctx, key)
	if err != nil || !strings.HasSuffix(key, gzipSuffix) {
		return data, err
	}
	plain, err := decompress(data)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindCorruptSnapshot, "failed to decompress snapshot "+key, err)
	}
	return plain, nil
}

func (s *gzipStore) Close() error {
	return s.next.Close()
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	plain, err := io.ReadAll(io.LimitReader(zr, maxSnapshotSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(plain)) > maxSnapshotSize {
		return nil, fmt.Errorf("decompressed snapshot exceeds %d bytes", maxSnapshotSize)
	}
	return plain, nil
}
