// Package apperror carries an HTTP status alongside domain errors so handlers can map
// failures onto the API error taxonomy in one place.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a domain error with the HTTP status it maps to.
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error with the given status and formatted message.
func New(status int, format string, args ...interface{}) *Error {
	return &Error{Status: status, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a status and message to an underlying error.
func Wrap(status int, err error, message string) *Error {
	return &Error{Status: status, Message: message, Err: err}
}

func BadRequest(format string, args ...interface{}) *Error {
	return New(http.StatusBadRequest, format, args...)
}

func Unauthorized(format string, args ...interface{}) *Error {
	return New(http.StatusUnauthorized, format, args...)
}

func Forbidden(format string, args ...interface{}) *Error {
	return New(http.StatusForbidden, format, args...)
}

func NotFound(format string, args ...interface{}) *Error {
	return New(http.StatusNotFound, format, args...)
}

func Conflict(format string, args ...interface{}) *Error {
	return New(http.StatusConflict, format, args...)
}

func Locked(format string, args ...interface{}) *Error {
	return New(http.StatusLocked, format, args...)
}

// Internal wraps an unexpected failure.
func Internal(err error, message string) *Error {
	return Wrap(http.StatusInternalServerError, err, message)
}

// StatusCode returns the HTTP status for err, 500 when it carries none.
func StatusCode(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

// PublicMessage returns the message that is safe to send to a client.
// Server-side failures never expose their cause.
func PublicMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Status < http.StatusInternalServerError {
		return appErr.Message
	}
	return "Internal server error"
}
