// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for hioload-dcp.

package api

import (
	"errors"
	"fmt"
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeBackpressure
	ErrCodeNotSupported
	ErrCodeNotFound
	ErrCodeStreamClosed
	ErrCodeReactorClosed
	ErrCodeIO
	ErrCodeInternal
)

// String implements fmt.Stringer.
func (c ErrorCode) String() string {
	switch c {
	case ErrCodeOK:
		return "ok"
	case ErrCodeInvalidArgument:
		return "invalid argument"
	case ErrCodeBackpressure:
		return "backpressure"
	case ErrCodeNotSupported:
		return "not supported"
	case ErrCodeNotFound:
		return "not found"
	case ErrCodeStreamClosed:
		return "stream closed"
	case ErrCodeReactorClosed:
		return "reactor closed"
	case ErrCodeIO:
		return "io"
	case ErrCodeInternal:
		return "internal"
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// Common errors used across the library. Match them with errors.Is; any
// *Error carrying the same code matches.
var (
	ErrInvalidArgument = NewError(ErrCodeInvalidArgument, "invalid argument")
	ErrBackpressure    = NewError(ErrCodeBackpressure, "backpressure: buffer full")
	ErrNotSupported    = NewError(ErrCodeNotSupported, "operation not supported")
	ErrNotFound        = NewError(ErrCodeNotFound, "resource not found")
	ErrStreamClosed    = NewError(ErrCodeStreamClosed, "stream closed")
	ErrReactorClosed   = NewError(ErrCodeReactorClosed, "reactor is closed")
)

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Op      string
	Err     error
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if len(e.Context) == 0 {
		return msg
	}
	return fmt.Sprintf("%s (context: %+v)", msg, e.Context)
}

// Unwrap exposes the underlying cause, typically a syscall.Errno.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WrapError creates a structured error for op caused by err.
func WrapError(code ErrorCode, op string, err error) *Error {
	return &Error{
		Code:    code,
		Message: code.String(),
		Op:      op,
		Err:     err,
	}
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// CodeOf extracts the code of err, or ErrCodeIO for foreign non-nil errors.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrCodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeIO
}
