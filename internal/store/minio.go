package store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/tordrt/schemadrift/internal/errs"
)

// contentType reports the object content type for key. Compressed keys are
// stored as gzip.
func contentType(key string) string {
	if strings.HasSuffix(key, gzipSuffix) {
		return "application/gzip"
	}
	return "application/yaml"
}

// MinIOStore keeps each snapshot as an object in one bucket.
// It is safe for concurrent use by multiple goroutines.
type MinIOStore struct {
	client *miniogo.Client
	bucket string
}

// NewMinIOStore connects to the server in cfg and checks that bucket
// exists.
func NewMinIOStore(ctx context.Context, bucket string, cfg MinIOConfig) (*MinIOStore, error) {
	if cfg.Endpoint == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "minio endpoint is not configured")
	}
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to create minio client", err)
	}

	ok, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, mapMinIOError(err, "failed to check bucket "+bucket)
	}
	if !ok {
		return nil, errs.Newf(errs.ErrKindNotFound, "bucket %q does not exist", bucket)
	}

	return &MinIOStore{client: client, bucket: bucket}, nil
}

// Put uploads data as the object key.
func (s *MinIOStore) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		miniogo.PutObjectOptions{ContentType: contentType(key)})
	if err != nil {
		return mapMinIOError(err, "failed to upload snapshot "+key)
	}
	return nil
}

// Get downloads the object key.
func (s *MinIOStore) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, miniogo.GetObjectOptions{})
	if err != nil {
		return nil, mapMinIOError(err, "failed to get snapshot "+key)
	}
	defer obj.Close()

	// GetObject is lazy; a missing key surfaces on the first read.
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, mapMinIOError(err, "failed to download snapshot "+key)
	}
	return data, nil
}

// Close is a no-op; the SDK client holds no persistent connections.
func (s *MinIOStore) Close() error {
	return nil
}

// mapMinIOError translates a MinIO SDK error into a *errs.Error.
func mapMinIOError(err error, msg string) *errs.Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	var resp miniogo.ErrorResponse
	if errors.As(err, &resp) {
		switch resp.Code {
		case "NoSuchBucket", "NoSuchKey":
			return errs.Wrap(errs.ErrKindNotFound, msg, err)
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return errs.Wrap(errs.ErrKindPermissionDenied, msg, err)
		case "InvalidBucketName", "InvalidObjectName", "KeyTooLongError":
			return errs.Wrap(errs.ErrKindInvalidInput, msg, err)
		case "RequestTimeout", "SlowDown":
			return errs.Wrap(errs.ErrKindTimeout, msg, err)
		}

		switch resp.StatusCode {
		case http.StatusNotFound:
			return errs.Wrap(errs.ErrKindNotFound, msg, err)
		case http.StatusForbidden, http.StatusUnauthorized:
			return errs.Wrap(errs.ErrKindPermissionDenied, msg, err)
		case http.StatusBadRequest:
			return errs.Wrap(errs.ErrKindInvalidInput, msg, err)
		}
	}

	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}
