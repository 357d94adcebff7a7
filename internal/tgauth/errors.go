package tgauth

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies why a login attempt was rejected.
type ErrorCode string

const (
	ErrCodeConfig           ErrorCode = "config_error"
	ErrCodeMalformed        ErrorCode = "malformed_input"
	ErrCodeMethodNotAllowed ErrorCode = "method_not_allowed"
	ErrCodeInvalidSignature ErrorCode = "invalid_signature"
	ErrCodeStale            ErrorCode = "stale_auth_data"
	ErrCodeInternal         ErrorCode = "internal_error"
)

var errorMessages = map[ErrorCode]string{
	ErrCodeConfig:           "Server misconfigured",
	ErrCodeMalformed:        "Malformed auth data",
	ErrCodeMethodNotAllowed: "Method Not Allowed",
	ErrCodeInvalidSignature: "Invalid signature",
	ErrCodeStale:            "Auth data is too old",
	ErrCodeInternal:         "Server error",
}

var errorStatus = map[ErrorCode]int{
	ErrCodeConfig:           http.StatusInternalServerError,
	ErrCodeMalformed:        http.StatusBadRequest,
	ErrCodeMethodNotAllowed: http.StatusMethodNotAllowed,
	ErrCodeInvalidSignature: http.StatusForbidden,
	ErrCodeStale:            http.StatusForbidden,
	ErrCodeInternal:         http.StatusInternalServerError,
}

// Error is a terminal rejection of a login attempt. Message is safe to show
// to the caller; Err carries server-side detail and is never rendered.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusCode maps the error to its HTTP status.
func (e *Error) StatusCode() int {
	if status, ok := errorStatus[e.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// NewError builds an Error with the default caller-facing message for code.
func NewError(code ErrorCode, err error) *Error {
	return &Error{Code: code, Message: errorMessages[code], Err: err}
}

// Malformed builds a malformed-input error whose message is shown to the caller.
func Malformed(message string, err error) *Error {
	return &Error{Code: ErrCodeMalformed, Message: message, Err: err}
}

// AsError converts any error into an *Error, classifying unknown errors as
// internal.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return NewError(ErrCodeInternal, err)
}

// CodeOf returns the error code of err, or "" for nil.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	return AsError(err).Code
}
