package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted marks errors returned after all retry attempts
	// are exhausted. Test with errors.Is.
	ErrRetryExhausted = errors.New("retry attempts exhausted")
)

// ErrorClass classifies a client failure.
type ErrorClass string

const (
	// ErrorClassValidation represents bad caller input, raised before any
	// network attempt.
	ErrorClassValidation ErrorClass = "validation"

	// ErrorClassClient represents non-retryable 4xx responses.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents retryable 5xx responses.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 responses.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents connection and read failures.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassParse represents a malformed response document.
	ErrorClassParse ErrorClass = "parse"
)

// Error is the common root of all errors surfaced by the client. Callers
// can match broadly with errors.As(*Error) or narrowly on Class.
type Error struct {
	Class      ErrorClass
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.StatusCode > 0 {
		if e.Err != nil {
			return fmt.Sprintf("pubmed %s error (status %d): %s: %v",
				e.Class, e.StatusCode, e.Message, e.Err)
		}
		return fmt.Sprintf("pubmed %s error (status %d): %s",
			e.Class, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("pubmed %s error: %s: %v", e.Class, e.Message, e.Err)
	}
	return fmt.Sprintf("pubmed %s error: %s", e.Class, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// newValidationError builds a validation failure. These are always raised
// before any network attempt.
func newValidationError(format string, args ...any) *Error {
	return &Error{
		Class:   ErrorClassValidation,
		Message: fmt.Sprintf(format, args...),
	}
}

// classOf returns the error's class, or empty for foreign errors.
func classOf(err error) ErrorClass {
	var e *Error
	if errors.As(err, &e) {
		return e.Class
	}
	return ""
}

// IsValidation reports whether err is a caller-input validation failure.
func IsValidation(err error) bool {
	return classOf(err) == ErrorClassValidation
}

// IsParse reports whether err came from a malformed response document.
func IsParse(err error) bool {
	return classOf(err) == ErrorClassParse
}

// shouldRetry determines whether an error class is worth another attempt.
// Client errors are not: the request itself is malformed and will fail the
// same way again. Parse errors are not: the payload is already received.
func shouldRetry(class ErrorClass) bool {
	switch class {
	case ErrorClassServer, ErrorClassRateLimit, ErrorClassNetwork:
		return true
	default:
		return false
	}
}
