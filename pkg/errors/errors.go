// Package errors provides structured error types for pypackages.
//
// Every public entry point of the core returns either a success value or an
// [*Error] carrying one of the codes below. Callers branch on the code with
// [Is] or [GetCode]; structured payloads (a resolution conflict, a digest
// mismatch, an unsafe archive entry) travel as the wrapped cause and are
// reachable with the standard library's errors.As.
//
// # Error Codes
//
//   - INVALID_*: parse and validation failures, abort the affected operation only
//   - INDEX_UNAVAILABLE, NETWORK_ERROR, TIMEOUT, RATE_LIMITED: transient, see [Retryable]
//   - PACKAGE_NOT_FOUND: terminal for that package name
//   - UNSATISFIABLE: resolution-level failure with a conflict explanation
//   - CORRUPT_LOCKFILE: the persisted lockfile could not be trusted
//   - INTEGRITY_VIOLATION, UNSAFE_ARCHIVE_ENTRY, ARCHIVE_TOO_LARGE: always fatal
//     for the affected package, never downgraded to a warning
//   - ACQUISITION_FAILED: per-package, reported in the batch result
//   - ENVIRONMENT_LOCKED: another invocation holds the environment lock
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidVersion, "invalid version %q", s)
//	if errors.Is(err, errors.ErrCodeInvalidVersion) {
//	    // Handle validation error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeIndexUnavailable, origErr, "query %s", name)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput       Code = "INVALID_INPUT"
	ErrCodeInvalidPackage     Code = "INVALID_PACKAGE"
	ErrCodeInvalidVersion     Code = "INVALID_VERSION"
	ErrCodeInvalidRequirement Code = "INVALID_REQUIREMENT"
	ErrCodeInvalidManifest    Code = "INVALID_MANIFEST"
	ErrCodeInvalidPath        Code = "INVALID_PATH"

	// Index errors
	ErrCodeIndexUnavailable Code = "INDEX_UNAVAILABLE"
	ErrCodePackageNotFound  Code = "PACKAGE_NOT_FOUND"

	// Resolution and lockfile errors
	ErrCodeUnsatisfiable   Code = "UNSATISFIABLE"
	ErrCodeCorruptLockfile Code = "CORRUPT_LOCKFILE"
	ErrCodeStaleLockfile   Code = "STALE_LOCKFILE"

	// Acquisition and extraction errors
	ErrCodeIntegrityViolation Code = "INTEGRITY_VIOLATION"
	ErrCodeAcquisitionFailed  Code = "ACQUISITION_FAILED"
	ErrCodeUnsafeArchiveEntry Code = "UNSAFE_ARCHIVE_ENTRY"
	ErrCodeArchiveTooLarge    Code = "ARCHIVE_TOO_LARGE"

	// Environment errors
	ErrCodeEnvironmentLocked Code = "ENVIRONMENT_LOCKED"

	// Network errors
	ErrCodeNetwork     Code = "NETWORK_ERROR"
	ErrCodeTimeout     Code = "TIMEOUT"
	ErrCodeRateLimited Code = "RATE_LIMITED"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err carries the given error code anywhere in its chain.
// Unlike a plain errors.As, an outer code does not hide an inner one, so an
// ACQUISITION_FAILED wrapping an INTEGRITY_VIOLATION matches both.
func Is(err error, code Code) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Cause
	}
	return false
}

// GetCode extracts the outermost error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Cause != nil {
			return e.Message + ": " + UserMessage(e.Cause)
		}
		return e.Message
	}
	return err.Error()
}

// Retryable reports whether err is transient and the caller may retry the
// operation that produced it.
func Retryable(err error) bool {
	switch GetCode(err) {
	case ErrCodeIndexUnavailable, ErrCodeNetwork, ErrCodeTimeout, ErrCodeRateLimited:
		return true
	}
	return false
}
