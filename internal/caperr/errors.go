// Package caperr defines the structured error taxonomy shared by every
// component of the capability core. Callers branch on Kind, never on
// message text.
package caperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for the caller. The string values are the
// errorKind field of the invocation result and must stay stable.
type Kind string

const (
	// KindValidation marks bad or missing arguments. Never retried.
	KindValidation Kind = "validation_error"
	// KindPermission marks an insufficient role for a capability or table
	// operation. Never retried.
	KindPermission Kind = "permission_error"
	// KindNotFound marks an unknown capability or table name.
	KindNotFound Kind = "not_found"
	// KindQuery marks a malformed or failed SQL operation, including
	// identifier-validation rejection.
	KindQuery Kind = "query_error"
	// KindExecution marks a failure inside a capability implementation.
	KindExecution Kind = "execution_error"
)

// Error is the single structured error type of the core.
type Error struct {
	Kind    Kind
	Message string
	Err     error // wrapped cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error carrying a cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// Validationf builds a KindValidation error.
func Validationf(format string, args ...any) *Error {
	return New(KindValidation, format, args...)
}

// Permissionf builds a KindPermission error.
func Permissionf(format string, args ...any) *Error {
	return New(KindPermission, format, args...)
}

// NotFoundf builds a KindNotFound error.
func NotFoundf(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

// Queryf builds a KindQuery error.
func Queryf(format string, args ...any) *Error {
	return New(KindQuery, format, args...)
}

// Executionf builds a KindExecution error.
func Executionf(format string, args ...any) *Error {
	return New(KindExecution, format, args...)
}

// KindOf extracts the Kind from an error chain. Errors outside the
// taxonomy report KindExecution so nothing escapes unclassified.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindExecution
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, kind Kind) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Kind == kind
}

// Retryable reports whether a failure may be retried. Permission and
// validation failures are terminal per the error-handling contract.
func Retryable(err error) bool {
	var ce *Error
	if !errors.As(err, &ce) {
		return true
	}
	switch ce.Kind {
	case KindValidation, KindPermission, KindNotFound:
		return false
	}
	return true
}
