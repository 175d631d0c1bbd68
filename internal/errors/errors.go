package errors

import (
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
)

// Common error types that can be used across the application
var (
	ErrNotFound               = new(ErrCodeNotFound, "resource not found")
	ErrAlreadyExists          = new(ErrCodeAlreadyExists, "resource already exists")
	ErrVersionConflict        = new(ErrCodeVersionConflict, "version conflict")
	ErrValidation             = new(ErrCodeValidation, "validation error")
	ErrInvalidOperation       = new(ErrCodeInvalidOperation, "invalid operation")
	ErrPermissionDenied       = new(ErrCodePermissionDenied, "permission denied")
	ErrUnauthenticated        = new(ErrCodeUnauthenticated, "unauthenticated")
	ErrDatabase               = new(ErrCodeDatabase, "database error")
	ErrSystem                 = new(ErrCodeSystemError, "system error")
	ErrConcurrencyConflict    = new(ErrCodeConcurrencyConflict, "concurrency conflict")
	ErrInvalidStateTransition = new(ErrCodeInvalidStateTransition, "invalid state transition")
	ErrArithmetic             = new(ErrCodeArithmetic, "arithmetic error")
	// maps errors to http status codes
	statusCodeMap = map[error]int{
		ErrDatabase:               http.StatusInternalServerError,
		ErrNotFound:               http.StatusNotFound,
		ErrAlreadyExists:          http.StatusConflict,
		ErrVersionConflict:        http.StatusConflict,
		ErrValidation:             http.StatusBadRequest,
		ErrInvalidOperation:       http.StatusBadRequest,
		ErrPermissionDenied:       http.StatusForbidden,
		ErrUnauthenticated:        http.StatusUnauthorized,
		ErrSystem:                 http.StatusInternalServerError,
		ErrConcurrencyConflict:    http.StatusConflict,
		ErrInvalidStateTransition: http.StatusUnprocessableEntity,
		ErrArithmetic:             http.StatusBadRequest,
	}
)

const (
	ErrCodeSystemError            = "system_error"
	ErrCodeNotFound               = "not_found"
	ErrCodeAlreadyExists          = "already_exists"
	ErrCodeVersionConflict        = "version_conflict"
	ErrCodeValidation             = "validation_error"
	ErrCodeInvalidOperation       = "invalid_operation"
	ErrCodePermissionDenied       = "permission_denied"
	ErrCodeUnauthenticated        = "unauthenticated"
	ErrCodeDatabase               = "database_error"
	ErrCodeConcurrencyConflict    = "concurrency_conflict"
	ErrCodeInvalidStateTransition = "invalid_state_transition"
	ErrCodeArithmetic             = "arithmetic_error"
)

// InternalError represents a domain error
type InternalError struct {
	Code    string // Machine-readable error code
	Message string // Human-readable error message
	Op      string // Logical operation name
	Err     error  // Underlying error
}

func (e *InternalError) Error() string {
	if e.Err == nil {
		return e.DisplayError()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Err.Error())
}

func (e *InternalError) DisplayError() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// Is implements error matching for wrapped errors
func (e *InternalError) Is(target error) bool {
	if target == nil {
		return false
	}

	t, ok := target.(*InternalError)
	if !ok {
		return errors.Is(e.Err, target)
	}

	return e.Code == t.Code
}

func new(code string, message string) *InternalError {
	return &InternalError{
		Code:    code,
		Message: message,
	}
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if an error is an already exists error
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsUnauthenticated checks if an error is a missing or rejected credential
func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrUnauthenticated)
}

// IsInvalidOperation checks if an error is an invalid operation error
func IsInvalidOperation(err error) bool {
	return errors.Is(err, ErrInvalidOperation)
}

// IsConcurrencyConflict checks if an error is a lock timeout or serialization failure
func IsConcurrencyConflict(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}

// IsInvalidStateTransition checks if an error is a rejected status change
func IsInvalidStateTransition(err error) bool {
	return errors.Is(err, ErrInvalidStateTransition)
}

// IsArithmetic checks if an error is an arithmetic error
func IsArithmetic(err error) bool {
	return errors.Is(err, ErrArithmetic)
}

// IsRetryable reports whether the caller may retry the operation as-is.
// Only concurrency conflicts qualify; every other kind is terminal for the request.
func IsRetryable(err error) bool {
	return IsConcurrencyConflict(err)
}

func HTTPStatusFromErr(err error) int {
	for e, status := range statusCodeMap {
		if errors.Is(err, e) {
			return status
		}
	}
	return http.StatusInternalServerError
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}
