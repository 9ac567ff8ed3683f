package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError carries an HTTP status and a message that is safe to return to clients.
// The wrapped cause stays available for logging through Unwrap.
type StatusError struct {
	Status  int
	Message string
	Cause   error
}

func (e *StatusError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *StatusError) Unwrap() error {
	return e.Cause
}

// NewStatus creates a StatusError without a cause.
func NewStatus(status int, format string, args ...interface{}) *StatusError {
	return &StatusError{Status: status, Message: fmt.Sprintf(format, args...)}
}

// WithStatus attaches an HTTP status and public message to err.
// The cause is sanitized so credentials never reach a log line through it.
func WithStatus(err error, status int, format string, args ...interface{}) *StatusError {
	return &StatusError{
		Status:  status,
		Message: fmt.Sprintf(format, args...),
		Cause:   SanitizeError(err),
	}
}

// BadRequest is shorthand for a 400 StatusError.
func BadRequest(format string, args ...interface{}) *StatusError {
	return NewStatus(http.StatusBadRequest, format, args...)
}

// NotFound is shorthand for a 404 StatusError.
func NotFound(format string, args ...interface{}) *StatusError {
	return NewStatus(http.StatusNotFound, format, args...)
}

// StatusOf returns the HTTP status and public message for err.
// Errors that are not StatusErrors map to 500 with a generic message.
func StatusOf(err error) (int, string) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status, se.Message
	}
	return http.StatusInternalServerError, "internal server error"
}
