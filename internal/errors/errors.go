// Package errors is the error taxonomy shared by the job service and the HTTP layer. A code
// decides the response status; the message is what callers see.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode categorises an AppError.
type ErrorCode string

const (
	ErrCodeNotFound   ErrorCode = "not_found"
	ErrCodeConflict   ErrorCode = "conflict"
	ErrCodeValidation ErrorCode = "validation" // caller errors; never become jobs
	ErrCodeInternal   ErrorCode = "internal"
	// ErrCodeUnavailable means a dependency (Postgres, Redis) could not be reached.
	ErrCodeUnavailable ErrorCode = "unavailable"
	ErrCodeTimeout     ErrorCode = "timeout"
	ErrCodeCanceled    ErrorCode = "canceled"
)

// HTTPStatus maps the code onto a response status. Unknown codes are 500.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeUnavailable:
		return http.StatusServiceUnavailable
	case ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// AppError is a coded error with a caller-facing message and an optional cause.
type AppError struct {
	Code    ErrorCode
	Message string
	Cause   error
	// Field names the offending input for single-field validation errors.
	Field string
	// Details maps input paths (for example "data.csa") to messages.
	Details map[string]string
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// New builds an AppError with a formatted message.
func New(code ErrorCode, format string, args ...any) *AppError {
	if len(args) > 0 {
		format = fmt.Sprintf(format, args...)
	}
	return &AppError{Code: code, Message: format}
}

// NotFound reports a missing resource.
func NotFound(message string) *AppError { return New(ErrCodeNotFound, message) }

// NotFoundf is NotFound with a formatted message.
func NotFoundf(format string, args ...any) *AppError { return New(ErrCodeNotFound, format, args...) }

// Conflict reports a clash with existing data.
func Conflict(message string) *AppError { return New(ErrCodeConflict, message) }

// Internal reports a server-side failure.
func Internal(message string) *AppError { return New(ErrCodeInternal, message) }

// Validation reports invalid caller input.
func Validation(message string) *AppError { return New(ErrCodeValidation, message) }

// ValidationField reports one invalid input field.
func ValidationField(field, message string) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: message,
		Field:   field,
		Details: map[string]string{field: message},
	}
}

// ValidationDetails reports several invalid fields at once.
func ValidationDetails(message string, details map[string]string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message, Details: details}
}

// Wrap attaches a code and message to err. A nil err stays nil.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: message, Cause: err}
}

// Is reports whether any AppError in err's chain carries code.
func Is(err error, code ErrorCode) bool {
	return GetCode(err) == code && code != ""
}

func IsNotFound(err error) bool   { return Is(err, ErrCodeNotFound) }
func IsConflict(err error) bool   { return Is(err, ErrCodeConflict) }
func IsValidation(err error) bool { return Is(err, ErrCodeValidation) }
func IsInternal(err error) bool   { return Is(err, ErrCodeInternal) }
func IsTimeout(err error) bool    { return Is(err, ErrCodeTimeout) }

// GetCode returns the code of the outermost AppError in err's chain, or "".
func GetCode(err error) ErrorCode {
	if appErr, ok := as(err); ok {
		return appErr.Code
	}
	return ""
}

// GetField returns the Field of the outermost AppError, or "".
func GetField(err error) string {
	if appErr, ok := as(err); ok {
		return appErr.Field
	}
	return ""
}

// GetDetails returns the per-field messages of the outermost AppError, or nil.
func GetDetails(err error) map[string]string {
	if appErr, ok := as(err); ok {
		return appErr.Details
	}
	return nil
}

// Message returns the caller-facing message without the cause chain, falling back to
// err.Error() for plain errors.
func Message(err error) string {
	if appErr, ok := as(err); ok {
		return appErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func as(err error) (*AppError, bool) {
	var appErr *AppError
	ok := errors.As(err, &appErr)
	return appErr, ok
}
