// Package errs defines the error-kind vocabulary spec.md §7 requires every
// subsystem to surface through, independent of the RPC transport that
// eventually maps each kind onto a gRPC status code.
package errs

import (
	"errors"
	"fmt"
)

// Kind is one of the eight error kinds spec.md §7 names.
type Kind string

const (
	InvalidArgument  Kind = "InvalidArgument"
	InvalidPayload   Kind = "InvalidPayload"
	InvalidPolicy    Kind = "InvalidPolicy"
	InvalidMetadata  Kind = "InvalidMetadata"
	NotFound         Kind = "NotFound"
	PermissionDenied Kind = "PermissionDenied"
	Unauthenticated  Kind = "Unauthenticated"
	Internal         Kind = "Internal"
)

// Error pairs a Kind with a human-readable message, the shape every
// subsystem in this module returns instead of a bare error string.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind carrying an underlying cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error, defaulting to Internal for anything else — the catch-all
// spec.md §7 assigns to unexpected failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}
