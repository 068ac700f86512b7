package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeUnknown     ErrorType = "unknown"

	// ErrorTypeAbort marks a structural failure that ends the current
	// extraction unit. It is never retried.
	ErrorTypeAbort ErrorType = "abort"
)

// Error represents an API error with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
}

func (e *Error) Error() string {
	if e.Type == ErrorTypeAbort {
		return e.Message
	}
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

// Abort returns an abort-class error carrying msg.
func Abort(msg string) *Error {
	return &Error{Type: ErrorTypeAbort, Message: msg}
}

// Abortf is Abort with formatting.
func Abortf(format string, args ...interface{}) *Error {
	return Abort(fmt.Sprintf(format, args...))
}

// IsAbort reports whether err, or anything it wraps, is abort-class.
func IsAbort(err error) bool {
	var e *Error
	return stderrors.As(err, &e) && e.Type == ErrorTypeAbort
}

// TypeOf returns the ErrorType of err, or ErrorTypeUnknown for foreign errors.
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	default:
		return false
	}
}

// FromStatusCode maps an HTTP status to an error kind. It returns nil for 2xx/3xx.
func FromStatusCode(statusCode int) *Error {
	switch {
	case statusCode < 400:
		return nil
	case statusCode == 401 || statusCode == 403:
		return &Error{Type: ErrorTypeAuth, Message: "authentication required", Code: statusCode}
	case statusCode == 404:
		return &Error{Type: ErrorTypeNotFound, Message: "resource not found", Code: statusCode}
	case statusCode == 429:
		return &Error{Type: ErrorTypeRateLimit, Message: "rate limit exceeded", Code: statusCode}
	case statusCode >= 500:
		return &Error{Type: ErrorTypeServerError, Message: "server error", Code: statusCode}
	default:
		return &Error{Type: ErrorTypeUnknown, Message: fmt.Sprintf("unexpected status code: %d", statusCode), Code: statusCode}
	}
}
