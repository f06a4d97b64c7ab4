package apperror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// AppError is an error that knows how it should be presented to API clients.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Internal   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Internal)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Internal
}

// NewValidationError reports malformed or missing input.
func NewValidationError(message string) *AppError {
	return &AppError{Code: "VALIDATION_ERROR", Message: message, HTTPStatus: http.StatusBadRequest}
}

// NewNotFoundError reports a missing resource.
func NewNotFoundError(message string) *AppError {
	return &AppError{Code: "NOT_FOUND", Message: message, HTTPStatus: http.StatusNotFound}
}

// NewUnauthorizedError reports missing or invalid credentials.
func NewUnauthorizedError(message string) *AppError {
	return &AppError{Code: "UNAUTHORIZED", Message: message, HTTPStatus: http.StatusUnauthorized}
}

// NewForbiddenError reports an authenticated caller that may not perform the action.
func NewForbiddenError(message string) *AppError {
	return &AppError{Code: "FORBIDDEN", Message: message, HTTPStatus: http.StatusForbidden}
}

// NewConflictError reports a uniqueness violation.
func NewConflictError(message string) *AppError {
	return &AppError{Code: "CONFLICT", Message: message, HTTPStatus: http.StatusConflict}
}

// NewServiceUnavailableError reports a failed downstream dependency such as mail delivery.
func NewServiceUnavailableError(message string, internal error) *AppError {
	return &AppError{Code: "SERVICE_UNAVAILABLE", Message: message, HTTPStatus: http.StatusServiceUnavailable, Internal: internal}
}

// NewInternalError wraps an unexpected failure.
func NewInternalError(message string, internal error) *AppError {
	return &AppError{Code: "INTERNAL_ERROR", Message: message, HTTPStatus: http.StatusInternalServerError, Internal: internal}
}

// NewDatabaseError wraps a failed persistence operation.
func NewDatabaseError(operation string, internal error) *AppError {
	return &AppError{
		Code:       "DATABASE_ERROR",
		Message:    fmt.Sprintf("database error during %s", operation),
		HTTPStatus: http.StatusInternalServerError,
		Internal:   internal,
	}
}

// As returns the AppError in err's chain, if any.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// FromError converts any error into an AppError, treating unknown errors as internal.
func FromError(err error) *AppError {
	if appErr, ok := As(err); ok {
		return appErr
	}
	return NewInternalError("internal server error", err)
}

// HasStatus reports whether err is an AppError carrying the given HTTP status.
func HasStatus(err error, status int) bool {
	appErr, ok := As(err)
	return ok && appErr.HTTPStatus == status
}

// StatusCode maps err to the HTTP status the error handler will answer with.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if appErr, ok := As(err); ok {
		return appErr.HTTPStatus
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code
	}
	return http.StatusInternalServerError
}
