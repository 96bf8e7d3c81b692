package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the class of failure an operation ran into
type ErrorType string

const (
	ErrorTypeNetwork        ErrorType = "network"
	ErrorTypeValidation     ErrorType = "validation"
	ErrorTypeDuplicate      ErrorType = "duplicate"
	ErrorTypeClassification ErrorType = "classification"
	ErrorTypeSearch         ErrorType = "search"
	ErrorTypeStorage        ErrorType = "storage"
	ErrorTypeRateLimit      ErrorType = "rate_limit"
	ErrorTypeUnknown        ErrorType = "unknown"
)

// Error is a typed failure. Code carries the HTTP status when there is one.
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, msg)
	}
	return fmt.Sprintf("%s error: %s", e.Type, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error
func New(t ErrorType, msg string, cause error) *Error {
	return &Error{Type: t, Message: msg, Err: cause}
}

// NewNetwork reports a timeout, transport failure or non-success response
func NewNetwork(msg string, code int, cause error) *Error {
	return &Error{Type: ErrorTypeNetwork, Message: msg, Code: code, Err: cause}
}

// NewValidation reports an undersized, corrupt or undecodable image
func NewValidation(msg string, cause error) *Error {
	return New(ErrorTypeValidation, msg, cause)
}

// NewDuplicate reports a fingerprint collision
func NewDuplicate(fingerprint string) *Error {
	return New(ErrorTypeDuplicate, "fingerprint already stored: "+fingerprint, nil)
}

// NewClassification reports a content analysis failure
func NewClassification(msg string, cause error) *Error {
	return New(ErrorTypeClassification, msg, cause)
}

// NewSearch reports a failed search query
func NewSearch(msg string, cause error) *Error {
	return New(ErrorTypeSearch, msg, cause)
}

// NewStorage reports a failed filesystem or database write
func NewStorage(msg string, cause error) *Error {
	return New(ErrorTypeStorage, msg, cause)
}

// TypeOf returns the type of the first typed error in the chain
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether err carries the given type anywhere in its chain
func IsType(err error, t ErrorType) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == t
	}
	return false
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit:
		return true
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // transport error
		return true
	case 429:
		return true
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
