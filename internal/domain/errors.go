package domain

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindValidation        ErrorKind = "VALIDATION_ERROR"
	KindNotFound          ErrorKind = "NOT_FOUND"
	KindConflict          ErrorKind = "CONFLICT"
	KindInsufficientFunds ErrorKind = "INSUFFICIENT_FUNDS"
	KindRemoteService     ErrorKind = "REMOTE_SERVICE_ERROR"
	KindInternal          ErrorKind = "INTERNAL_ERROR"
)

// Error is the classified error returned by the ledger, the orchestrator and
// the counter workflow. Transport layers map Kind to a status code.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error {
	return newError(KindValidation, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return newError(KindNotFound, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return newError(KindConflict, format, args...)
}

func InsufficientFunds(format string, args ...any) *Error {
	return newError(KindInsufficientFunds, format, args...)
}

// RemoteService wraps a failure talking to another service.
func RemoteService(err error, format string, args ...any) *Error {
	e := newError(KindRemoteService, format, args...)
	e.Err = err
	return e
}

func Internal(err error, format string, args ...any) *Error {
	e := newError(KindInternal, format, args...)
	e.Err = err
	return e
}

// KindOf returns the kind of a classified error anywhere in err's chain.
// Unclassified errors are internal.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
