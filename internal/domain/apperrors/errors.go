package apperrors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinels used for classification with errors.Is. The typed errors below
// match their sentinel so callers never need a type switch.
var (
	ErrInput           = errors.New("invalid input")
	ErrProcess         = errors.New("inference process failed")
	ErrTimeout         = errors.New("inference timed out")
	ErrStorage         = errors.New("storage failure")
	ErrNotFound        = errors.New("not found")
	ErrOwnership       = errors.New("not owned by caller")
	ErrSchemaMismatch  = errors.New("db schema mismatch")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrBusy            = errors.New("inference capacity exhausted")
)

// Input error codes.
const (
	CodeInvalidContentType = "invalid_content_type"
	CodeSizeExceeded       = "size_exceeded"
	CodeMissingFile        = "missing_file"
	CodeInvalidArgument    = "invalid_argument"
)

// InputError is a rejected upload or request argument.
type InputError struct {
	Code    string
	Message string
}

func (e *InputError) Error() string { return e.Code + ": " + e.Message }

func (e *InputError) Is(target error) bool { return target == ErrInput }

// Input builds an InputError.
func Input(code, format string, args ...any) error {
	return &InputError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ProcessError is a crashed inference process, a non-zero exit or an output
// that is not exactly one JSON object.
type ProcessError struct {
	ExitCode int
	Stderr   string
	Cause    error
}

func (e *ProcessError) Error() string {
	msg := fmt.Sprintf("inference process failed (exit=%d)", e.ExitCode)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ProcessError) Unwrap() error { return e.Cause }

func (e *ProcessError) Is(target error) bool { return target == ErrProcess }

// TimeoutError is raised when the inference call exceeded its deadline.
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("inference timed out after %s", e.After)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// StorageError wraps a failed write/read against durable storage or the database.
type StorageError struct {
	Op    string
	Cause error
}

func (e *StorageError) Error() string { return "storage: " + e.Op + ": " + e.Cause.Error() }

func (e *StorageError) Unwrap() error { return e.Cause }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// Storage wraps err as a StorageError, passing nil and already classified errors through.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrOwnership) || errors.Is(err, ErrInput) {
		return err
	}
	return &StorageError{Op: op, Cause: err}
}

// SchemaMismatchError names every logical field the resolver could not map.
type SchemaMismatchError struct {
	Missing []string
}

func (e *SchemaMismatchError) Error() string {
	return "db schema mismatch: missing " + strings.Join(e.Missing, ", ")
}

func (e *SchemaMismatchError) Is(target error) bool { return target == ErrSchemaMismatch }
