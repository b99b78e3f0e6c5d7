package errors

import (
	"errors"
	"net/http"
)

// Kind classifies an AppError so callers can branch on the failure
// without string matching.
type Kind string

const (
	KindValidation          Kind = "validation"
	KindAuthorization       Kind = "authorization"
	KindEditWindowExpired   Kind = "edit_window_expired"
	KindDeleteWindowExpired Kind = "delete_window_expired"
	KindInvalidState        Kind = "invalid_state"
	KindNotFound            Kind = "not_found"
	KindPersistence         Kind = "persistence"
)

// AppError is a custom error type that includes an HTTP status code
type AppError struct {
	Kind    Kind   `json:"kind"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *AppError) Error() string {
	return e.Message
}

// NewAppError creates a new AppError
func NewAppError(kind Kind, code int, message string) *AppError {
	return &AppError{
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

// Helper functions to create specific errors
func Validation(msg string) *AppError {
	return NewAppError(KindValidation, http.StatusBadRequest, msg)
}

func Authorization(msg string) *AppError {
	return NewAppError(KindAuthorization, http.StatusForbidden, msg)
}

func EditWindowExpired(msg string) *AppError {
	return NewAppError(KindEditWindowExpired, http.StatusForbidden, msg)
}

func DeleteWindowExpired(msg string) *AppError {
	return NewAppError(KindDeleteWindowExpired, http.StatusForbidden, msg)
}

func InvalidState(msg string) *AppError {
	return NewAppError(KindInvalidState, http.StatusConflict, msg)
}

func NotFound(msg string) *AppError {
	return NewAppError(KindNotFound, http.StatusNotFound, msg)
}

func Persistence(msg string) *AppError {
	return NewAppError(KindPersistence, http.StatusInternalServerError, msg)
}

// IsKind reports whether err is an AppError of the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

// StatusCode returns the HTTP status for err, defaulting to 500 for
// anything that is not an AppError.
func StatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return http.StatusInternalServerError
}
