// Package apperr defines the error kinds surfaced by the vote engine, the
// comment tree and the application service. Transport layers map a Kind to
// their own status codes.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindAuthenticationRequired Kind = "AUTHENTICATION_REQUIRED"
	KindPermissionDenied       Kind = "PERMISSION_DENIED"
	KindNotFound               Kind = "NOT_FOUND"
	KindInvalidArgument        Kind = "INVALID_ARGUMENT"
	KindConflict               Kind = "CONFLICT"
	KindInternal               Kind = "INTERNAL"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an underlying error. A nil err yields nil.
func Wrap(kind Kind, err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf reports the kind of the outermost *Error in err's chain.
// Errors without one are internal failures.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// MessageOf returns the user-facing message of err. Internal failures never
// leak their underlying text.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Kind != KindInternal {
		return appErr.Message
	}
	return "internal error"
}

func AuthenticationRequired() *Error {
	return New(KindAuthenticationRequired, "authentication required")
}

func NotFound(what string) *Error {
	return Newf(KindNotFound, "%s not found", what)
}

func InvalidArgument(message string) *Error {
	return New(KindInvalidArgument, message)
}
