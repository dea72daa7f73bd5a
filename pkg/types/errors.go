package types

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind is the stable tag carried by every core error.
type ErrorKind string

const (
	KindUnknownTool             ErrorKind = "UnknownTool"
	KindDuplicateTool           ErrorKind = "DuplicateTool"
	KindInvalidParameters       ErrorKind = "InvalidParameters"
	KindPermissionDenied        ErrorKind = "PermissionDenied"
	KindNotFound                ErrorKind = "NotFound"
	KindIsDirectory             ErrorKind = "IsDirectory"
	KindNoMatch                 ErrorKind = "NoMatch"
	KindIOFailure               ErrorKind = "IOFailure"
	KindInvalidWorkingDirectory ErrorKind = "InvalidWorkingDirectory"
	KindUnknownParent           ErrorKind = "UnknownParent"
	KindCancelled               ErrorKind = "Cancelled"
)

// Sentinels for errors.Is. Any *Error with the same kind matches.
var (
	ErrUnknownTool             = &Error{Kind: KindUnknownTool}
	ErrDuplicateTool           = &Error{Kind: KindDuplicateTool}
	ErrInvalidParameters       = &Error{Kind: KindInvalidParameters}
	ErrPermissionDenied        = &Error{Kind: KindPermissionDenied}
	ErrNotFound                = &Error{Kind: KindNotFound}
	ErrIsDirectory             = &Error{Kind: KindIsDirectory}
	ErrNoMatch                 = &Error{Kind: KindNoMatch}
	ErrIOFailure               = &Error{Kind: KindIOFailure}
	ErrInvalidWorkingDirectory = &Error{Kind: KindInvalidWorkingDirectory}
	ErrUnknownParent           = &Error{Kind: KindUnknownParent}
	ErrCancelled               = &Error{Kind: KindCancelled}
)

// Error is the error type returned by the tool runtime.
//
// Reason is written for humans and never contains file system paths, so it
// can cross the network boundary. Path and Err hold the details that are
// only shown to trusted in-process callers.
type Error struct {
	Kind   ErrorKind
	Reason string
	Path   string
	Err    error
}

// NewError creates an error of the given kind.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// WrapError creates an error of the given kind wrapping a lower-level cause.
func WrapError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...), Err: err}
}

// WithPath attaches the offending path.
func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// PublicMessage returns the kind and reason only.
func (e *Error) PublicMessage() string {
	if e.Reason == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Reason
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports kind equality so that errors.Is(err, ErrNoMatch) holds for any
// NoMatch error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf extracts the error kind. Context cancellation and deadline errors
// are reported as KindCancelled. Unknown errors return "".
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCancelled
	}
	return ""
}

// AsError converts any error into an *Error, classifying unknown errors as
// fallback.
func AsError(err error, fallback ErrorKind) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if kind := KindOf(err); kind == KindCancelled {
		return WrapError(KindCancelled, err, "operation cancelled")
	}
	return WrapError(fallback, err, "unexpected error")
}

// CancelledError builds a Cancelled error from a context error.
func CancelledError(ctx context.Context) *Error {
	cause := context.Cause(ctx)
	if cause == nil {
		cause = context.Canceled
	}
	if errors.Is(cause, context.DeadlineExceeded) {
		return WrapError(KindCancelled, cause, "deadline exceeded")
	}
	return WrapError(KindCancelled, cause, "operation cancelled")
}
