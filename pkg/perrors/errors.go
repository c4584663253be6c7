// Package perrors defines the typed error vocabulary for the runtime
// substrate. Contract violations and I/O/format errors are returned as
// AppError values and propagated by the caller; they are never thrown across
// package boundaries. Policy-driven termination (kill_now) is the only path
// that bypasses this discipline — see internal/memsup.
package perrors

import (
	"errors"
	"fmt"
)

// Error codes for the runtime substrate.
const (
	CodeUnknown            = "UNKNOWN_ERROR"
	CodeAlreadyExists       = "ALREADY_EXISTS"
	CodeNotRegistered       = "NOT_REGISTERED"
	CodeInvalidArgument     = "INVALID_ARGUMENT"
	CodeArrowDecode         = "ARROW_DECODE_ERROR"
	CodeInvariantViolation  = "INVARIANT_VIOLATION"
	CodeNotFound            = "NOT_FOUND"
	CodeConfigError         = "CONFIG_ERROR"
	CodeTimeout             = "TIMEOUT_ERROR"
	CodeOOMKill             = "OOM_KILL"
)

// AppError represents an application error with a machine-checkable code and
// a human message, optionally wrapping a lower-level cause.
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches AppErrors by code, so errors.Is(err, ErrAlreadyExists) works
// even when Message/Err differ across call sites.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError.
func New(code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap wraps an existing error with an AppError.
func Wrap(code, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// Common error instances matching spec.md §7's contract-violation and
// I/O-format failure kinds.
var (
	ErrAlreadyExists      = New(CodeAlreadyExists, "resource already exists")
	ErrNotRegistered      = New(CodeNotRegistered, "manager not registered")
	ErrInvalidArgument    = New(CodeInvalidArgument, "invalid argument")
	ErrArrowDecode        = New(CodeArrowDecode, "arrow decode failure")
	ErrInvariantViolation = New(CodeInvariantViolation, "invariant violation")
	ErrNotFound           = New(CodeNotFound, "resource not found")
	ErrConfigError        = New(CodeConfigError, "configuration error")
	ErrTimeout            = New(CodeTimeout, "operation timeout")
	ErrOOMKill            = New(CodeOOMKill, "process self-terminated for lack of memory")
)

// Code extracts the error code from an error, or CodeUnknown if err is not
// an AppError.
func Code(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}
