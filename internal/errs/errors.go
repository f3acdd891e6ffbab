// Package errs provides the error type shared by every schemadrift package.
//
// Collectors, stores and the snapshot codec translate their native errors
// into an error carrying an ErrKind. Callers branch on the kind with the Is*
// predicates instead of importing driver packages:
//
//	if errs.IsNotFound(err) {
//	    // no baseline has been captured yet
//	}
package errs

import (
	"errors"
	"fmt"
)

// ErrKind categorises an error without exposing backend-specific codes.
type ErrKind int

const (
	ErrKindUnknown            ErrKind = iota
	ErrKindNotFound                   // no snapshot, no object, no table
	ErrKindConnectionFailed           // cannot reach the backend
	ErrKindTimeout                    // context deadline / cancellation
	ErrKindQueryFailed                // SQL or storage operation error
	ErrKindInvalidInput               // bad arguments or an ill-formed schema
	ErrKindPermissionDenied           // access denied / auth failure
	ErrKindCorruptSnapshot            // snapshot bytes cannot be decoded
	ErrKindUnsupportedVersion         // snapshot written by an unknown format version
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindNotFound:
		return "not_found"
	case ErrKindConnectionFailed:
		return "connection_failed"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindQueryFailed:
		return "query_failed"
	case ErrKindInvalidInput:
		return "invalid_input"
	case ErrKindPermissionDenied:
		return "permission_denied"
	case ErrKindCorruptSnapshot:
		return "corrupt_snapshot"
	case ErrKindUnsupportedVersion:
		return "unsupported_version"
	default:
		return "unknown"
	}
}

// Error is the general-purpose kinded error.
type Error struct {
	Kind    ErrKind
	Message string
	Cause   error // underlying driver error, kept for logging
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// ErrKind implements Kinded.
func (e *Error) ErrKind() ErrKind {
	return e.Kind
}

// Kinded is implemented by any error that reports its own kind. Packages
// with dedicated error types (the snapshot codec) implement it so that the
// predicates below work across the whole tree.
type Kinded interface {
	error
	ErrKind() ErrKind
}

// --- Constructors ---

// New creates an *Error with the given kind and message and no cause.
func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf is New with a format string.
func Newf(kind ErrKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// --- Predicates ---

// IsNotFound reports whether err represents a missing snapshot, object or row.
func IsNotFound(err error) bool {
	return KindOf(err) == ErrKindNotFound
}

// IsTimeout reports whether err was caused by a deadline or context cancellation.
func IsTimeout(err error) bool {
	return KindOf(err) == ErrKindTimeout
}

// IsConnectionFailed reports whether err is a connectivity or auth failure.
func IsConnectionFailed(err error) bool {
	return KindOf(err) == ErrKindConnectionFailed
}

// IsQueryFailed reports whether err is a backend operation failure.
func IsQueryFailed(err error) bool {
	return KindOf(err) == ErrKindQueryFailed
}

// IsInvalidInput reports whether err was caused by bad input from the caller.
func IsInvalidInput(err error) bool {
	return KindOf(err) == ErrKindInvalidInput
}

// IsPermissionDenied reports whether err is an access control failure.
func IsPermissionDenied(err error) bool {
	return KindOf(err) == ErrKindPermissionDenied
}

// IsCorruptSnapshot reports whether err comes from undecodable snapshot bytes.
func IsCorruptSnapshot(err error) bool {
	return KindOf(err) == ErrKindCorruptSnapshot
}

// IsUnsupportedVersion reports whether err comes from a snapshot whose
// format version this build does not understand.
func IsUnsupportedVersion(err error) bool {
	return KindOf(err) == ErrKindUnsupportedVersion
}

// KindOf extracts the ErrKind from the first kinded error in the chain.
func KindOf(err error) ErrKind {
	var k Kinded
	if errors.As(err, &k) {
		return k.ErrKind()
	}
	return ErrKindUnknown
}
