package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// AppError represents an application error with additional context
type AppError struct {
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	StatusCode int         `json:"-"`
	Internal   error       `json:"-"`
	Details    interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}
	return e.Message
}

// Unwrap returns the internal error for errors.Is and errors.As
func (e *AppError) Unwrap() error {
	return e.Internal
}

// Common error codes
const (
	ErrCodeInternal     = "INTERNAL_ERROR"
	ErrCodeBadRequest   = "BAD_REQUEST"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeConflict     = "CONFLICT"
	ErrCodeValidation   = "VALIDATION_ERROR"
	ErrCodeDatabase     = "DATABASE_ERROR"
	ErrCodeNotSupported = "NOT_SUPPORTED"
	ErrCodeInvalidState = "INVALID_STATE"
	ErrCodeTransport    = "PROVIDER_TRANSPORT_ERROR"
	ErrCodeProviderAuth = "PROVIDER_AUTH_ERROR"
	ErrCodeRateLimited  = "RATE_LIMITED"
)

// New creates a new AppError
func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an error with an AppError
func Wrap(err error, code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Internal:   err,
	}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

// HasCode reports whether err is an AppError carrying the given code
func HasCode(err error, code string) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// Common error constructors

// Internal creates an internal server error
func Internal(message string, err error) *AppError {
	return Wrap(err, ErrCodeInternal, message, http.StatusInternalServerError)
}

// BadRequest creates a bad request error
func BadRequest(message string) *AppError {
	return New(ErrCodeBadRequest, message, http.StatusBadRequest)
}

// Unauthorized creates an unauthorized error
func Unauthorized(message string) *AppError {
	return New(ErrCodeUnauthorized, message, http.StatusUnauthorized)
}

// NotFound creates a not found error
func NotFound(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

// Conflict creates a conflict error
func Conflict(message string) *AppError {
	return New(ErrCodeConflict, message, http.StatusConflict)
}

// NotSupported creates an error for an unknown vendor or portal type.
// Deliberately distinct from TransportFailure: an unknown identifier maps
// to an UNSUPPORTED terminal state, a known but unreachable provider maps
// to FAILED/ERROR.
func NotSupported(kind, id string) *AppError {
	return New(ErrCodeNotSupported, fmt.Sprintf("%s %q is not supported", kind, id), http.StatusUnprocessableEntity)
}

// InvalidState creates an error for an operation attempted on a link that
// is not eligible for it
func InvalidState(message string) *AppError {
	return New(ErrCodeInvalidState, message, http.StatusConflict)
}

// TransportFailure creates an error for an unreachable or erring vendor API
func TransportFailure(vendor string, err error) *AppError {
	return Wrap(err, ErrCodeTransport,
		fmt.Sprintf("failed to communicate with %s", vendor),
		http.StatusBadGateway)
}

// ProviderAuthError creates a provider authentication error
func ProviderAuthError(vendor string, err error) *AppError {
	return Wrap(err, ErrCodeProviderAuth,
		fmt.Sprintf("failed to authenticate with %s", vendor),
		http.StatusUnauthorized)
}

// ValidationError creates a validation error
func ValidationError(message string, details interface{}) *AppError {
	return New(ErrCodeValidation, message, http.StatusBadRequest).WithDetails(details)
}

// DatabaseError creates a database error
func DatabaseError(message string, err error) *AppError {
	return Wrap(err, ErrCodeDatabase, message, http.StatusInternalServerError)
}

// RateLimited creates a rate limited error
func RateLimited(message string) *AppError {
	return New(ErrCodeRateLimited, message, http.StatusTooManyRequests)
}
