// Package apperr defines the tagged error type shared by the stores, the
// identity verifier, the queue publisher and the dispatcher. The HTTP layer
// maps a Kind to a status code; nothing else inspects error strings.
package apperr

import (
	"errors"
	"fmt"
)

// Kind discriminates application failures.
type Kind string

const (
	KindNotFound           Kind = "not_found"
	KindValidation         Kind = "validation"
	KindInvalidCredential  Kind = "invalid_credential"
	KindUnauthorized       Kind = "unauthorized"
	KindConflict           Kind = "conflict"
	KindPublishUnavailable Kind = "publish_unavailable"
	KindInternal           Kind = "internal"
)

// Error carries a Kind, a client-safe message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by Kind so that errors.Is(err, apperr.ErrNotFound) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

// Sentinels usable with errors.Is.
var (
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrValidation         = &Error{Kind: KindValidation}
	ErrInvalidCredential  = &Error{Kind: KindInvalidCredential}
	ErrUnauthorized       = &Error{Kind: KindUnauthorized}
	ErrConflict           = &Error{Kind: KindConflict}
	ErrPublishUnavailable = &Error{Kind: KindPublishUnavailable}
	ErrInternal           = &Error{Kind: KindInternal}
)

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func NotFound(format string, args ...any) *Error { return New(KindNotFound, format, args...) }

func Validation(format string, args ...any) *Error { return New(KindValidation, format, args...) }

func Conflict(format string, args ...any) *Error { return New(KindConflict, format, args...) }

func Unauthorized(err error) *Error {
	return &Error{Kind: KindUnauthorized, Message: "invalid or expired token", Err: err}
}

func Internal(err error, format string, args ...any) *Error {
	return Wrap(KindInternal, err, format, args...)
}

func PublishUnavailable(err error, format string, args ...any) *Error {
	return Wrap(KindPublishUnavailable, err, format, args...)
}

// KindOf reports the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the client-safe message of err. Foreign errors are
// reported generically so store internals never leak to callers.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	return "internal server error"
}
