package utils

import "errors"

// AppError carries a machine-readable code alongside the human message.
// Transient marks storage write-conflicts that are safe to retry.
type AppError struct {
	Code      string
	Message   string
	Origin    error // Original error that caused this error, if any
	Transient bool
}

func (appErr *AppError) Error() string {
	if appErr.Origin != nil {
		return appErr.Message + ": " + appErr.Origin.Error()
	}
	return appErr.Message
}

func (appErr *AppError) Unwrap() error {
	return appErr.Origin
}

// Standard error codes for the application
const (
	// Request errors
	ErrValidation = "VALIDATION_ERROR"
	ErrNotFound   = "NOT_FOUND"

	// Storage errors
	ErrConflict = "CONFLICT"
	ErrDatabase = "DATABASE_ERROR"

	// Downstream errors
	ErrNotification = "NOTIFICATION_ERROR"

	// Authentication/Authorization errors
	ErrUnauthorized = "UNAUTHORIZED"
	ErrForbidden    = "FORBIDDEN"
	ErrInvalidToken = "INVALID_TOKEN"

	// Actor communication errors
	ErrActorTimeout = "ACTOR_TIMEOUT"

	// Rate limiting
	ErrTooManyRequests = "TOO_MANY_REQUESTS"
)

// Error creation helper functions
func NewAppError(code string, message string, originalErr error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Origin:  originalErr,
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    ErrValidation,
		Message: message,
	}
}

func NewNotFoundError(what string, id string) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: what + " not found: " + id,
	}
}

// NewTransientConflictError marks a storage write-conflict that callers may
// retry with fresh state.
func NewTransientConflictError(message string, originalErr error) *AppError {
	return &AppError{
		Code:      ErrConflict,
		Message:   message,
		Origin:    originalErr,
		Transient: true,
	}
}

func NewNotificationError(message string, originalErr error) *AppError {
	return &AppError{
		Code:    ErrNotification,
		Message: message,
		Origin:  originalErr,
	}
}

// Helper method to check if an error is of a specific type
func IsErrorCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsTransient reports whether err is a retryable storage write-conflict.
func IsTransient(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Transient
	}
	return false
}

// AppErrorToHTTPStatus converts an AppError code to an HTTP status code.
func AppErrorToHTTPStatus(errorCode string) int {
	switch errorCode {
	case ErrNotFound:
		return 404 // http.StatusNotFound
	case ErrValidation:
		return 400 // http.StatusBadRequest
	case ErrUnauthorized, ErrInvalidToken:
		return 401 // http.StatusUnauthorized
	case ErrForbidden:
		return 403 // http.StatusForbidden
	case ErrConflict:
		return 409 // http.StatusConflict
	case ErrTooManyRequests:
		return 429 // http.StatusTooManyRequests
	case ErrDatabase, ErrActorTimeout, ErrNotification:
		return 500 // http.StatusInternalServerError
	default:
		return 500 // http.StatusInternalServerError for unknown errors
	}
}
