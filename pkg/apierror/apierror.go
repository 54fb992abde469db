// Package apierror provides typed errors carrying an HTTP-flavored status
// code. These are expected control flow for validation, auth and lookup
// failures, and are translated into responses at the transport boundary.
package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is an error with a numeric status code and a caller-facing message.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

// New creates an error with the given code and message.
func New(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an error with a formatted message.
func Newf(code int, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// BadRequest creates a 400 error.
func BadRequest(message string) *Error {
	return New(http.StatusBadRequest, message)
}

// Conflict creates a 409 error naming the offending field.
func Conflict(field string) *Error {
	return Newf(http.StatusConflict, "%s is already in use", field)
}

// NotFound creates a 404 error.
func NotFound(message string) *Error {
	return New(http.StatusNotFound, message)
}

// Common sentinel errors, mirroring the fixed vocabulary used across the
// user manager, access evaluator and REST layer.
var (
	ErrInternal          = New(http.StatusInternalServerError, "Internal server error")
	ErrUnauthorized      = New(http.StatusUnauthorized, "Unauthorized")
	ErrForbidden         = New(http.StatusForbidden, "Forbidden")
	ErrResourceNotFound  = New(http.StatusNotFound, "Resource not found")
	ErrUsernameTaken     = New(http.StatusConflict, "Username is already in use")
	ErrInvalidCredential = New(http.StatusUnauthorized, "Invalid username or password")
	ErrInvalidUserGroup  = New(http.StatusBadRequest, "Invalid user group")
	ErrSessionExpired    = New(http.StatusUnauthorized, "Session expired")
	ErrMissingFile       = New(http.StatusBadRequest, "Missing file")
)

// FromError normalizes any error into an *Error. Unrecognized errors map to
// a generic 500 so internal detail never leaks to the caller.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return ErrInternal
}

// Code returns the status code of err, or 500 for unrecognized errors.
func Code(err error) int {
	return FromError(err).Code
}

// IsConflict reports whether err carries a 409 code.
func IsConflict(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict
}

// IsNotFound reports whether err carries a 404 code.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
