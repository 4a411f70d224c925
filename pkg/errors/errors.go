package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorType classifies failures so callers can decide between retrying,
// skipping a unit, aborting a batch run or failing a job outright.
type ErrorType string

const (
	ErrorTypeConfig       ErrorType = "config"
	ErrorTypeNetwork      ErrorType = "network"
	ErrorTypeRateLimit    ErrorType = "rate_limit"
	ErrorTypeAuth         ErrorType = "auth"
	ErrorTypeParsing      ErrorType = "parsing"
	ErrorTypeMalformed    ErrorType = "malformed_response"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeServerError  ErrorType = "server_error"
	ErrorTypeConflict     ErrorType = "conflict"
	ErrorTypeInvalidState ErrorType = "invalid_state"
	ErrorTypeCancelled    ErrorType = "cancelled"
	ErrorTypeUnknown      ErrorType = "unknown"
)

// Error is a typed error carrying an optional HTTP status code and cause.
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error

	// RetryAfter is the server-provided wait hint, zero when absent.
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	var msg string
	if e.Code > 0 {
		msg = fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	} else {
		msg = fmt.Sprintf("%s error: %s", e.Type, e.Message)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error.
func New(t ErrorType, message string) *Error {
	return &Error{Type: t, Message: message}
}

// Newf creates a typed error with a formatted message.
func Newf(t ErrorType, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a type and message to an underlying error.
func Wrap(t ErrorType, err error, message string) *Error {
	return &Error{Type: t, Message: message, Err: err}
}

// Config reports a missing credential, missing input file or invalid setting.
func Config(format string, args ...interface{}) *Error {
	return Newf(ErrorTypeConfig, format, args...)
}

// NotFound reports an unknown resource such as a job id.
func NotFound(format string, args ...interface{}) *Error {
	return Newf(ErrorTypeNotFound, format, args...)
}

// Cancelled reports that work stopped because cancellation was requested.
func Cancelled(format string, args ...interface{}) *Error {
	return Newf(ErrorTypeCancelled, format, args...)
}

// TypeOf returns the type of the first *Error in err's chain, or
// ErrorTypeUnknown.
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// Is reports whether err's chain contains an *Error of type t.
func Is(err error, t ErrorType) bool {
	var e *Error
	return stderrors.As(err, &e) && e.Type == t
}

// IsRetryable checks if an error type should be retried at the adapter layer
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case http.StatusTooManyRequests, http.StatusRequestTimeout:
		return true
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return false
	default:
		return statusCode >= 500
	}
}

// FromStatusCode maps an HTTP failure status onto the taxonomy.
func FromStatusCode(statusCode int, message string) *Error {
	e := &Error{Code: statusCode, Message: message}
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		e.Type = ErrorTypeAuth
	case statusCode == http.StatusNotFound:
		e.Type = ErrorTypeNotFound
	case statusCode == http.StatusTooManyRequests:
		e.Type = ErrorTypeRateLimit
	case statusCode == http.StatusRequestTimeout || statusCode >= 500:
		e.Type = ErrorTypeServerError
	default:
		e.Type = ErrorTypeUnknown
	}
	return e
}

// HTTPStatus maps an error onto the status code the HTTP shell answers with.
func HTTPStatus(err error) int {
	switch TypeOf(err) {
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeConflict:
		return http.StatusConflict
	case ErrorTypeInvalidState, ErrorTypeConfig, ErrorTypeParsing:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
