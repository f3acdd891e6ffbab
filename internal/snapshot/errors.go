package snapshot

import (
	"errors"
	"fmt"

	"github.com/tordrt/schemadrift/internal/errs"
)

// DecodeError reports snapshot bytes that are not a valid snapshot:
// malformed YAML, a truncated document, unknown or missing fields, or model
// invariant violations.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid snapshot: %s: %v", e.Reason, e.Err)
	}
	return "invalid snapshot: " + e.Reason
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ErrKind classifies the error for errs.KindOf.
func (e *DecodeError) ErrKind() errs.ErrKind {
	return errs.ErrKindCorruptSnapshot
}

// UnsupportedVersionError reports a well-formed snapshot written with a
// format version this build cannot read.
type UnsupportedVersionError struct {
	Version   int
	Supported int
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("unsupported snapshot format version %d (supported: %d)", e.Version, e.Supported)
}

// ErrKind classifies the error for errs.KindOf.
func (e *UnsupportedVersionError) ErrKind() errs.ErrKind {
	return errs.ErrKindUnsupportedVersion
}

// IsDecodeError reports whether err wraps a *DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// IsUnsupportedVersion reports whether err wraps an *UnsupportedVersionError.
func IsUnsupportedVersion(err error) bool {
	var ve *UnsupportedVersionError
	return errors.As(err, &ve)
}

func decodeErr(reason string, err error) *DecodeError {
	return &DecodeError{Reason: reason, Err: err}
}
