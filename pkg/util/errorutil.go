package util

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Error codes carried by DomainError. Handlers map them onto the wire
// unchanged, so they are part of the API contract.
const (
	CodeValidationFailed  = "VALIDATION_FAILED"
	CodeNotFound          = "NOT_FOUND"
	CodeConflict          = "CONFLICT"
	CodePersistenceFailed = "PERSISTENCE_FAILED"
	CodeInternal          = "INTERNAL_ERROR"
)

// DomainError standardizes application errors across services, handlers and
// the CLI. The code travels to clients; the wrapped error stays in the logs.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewValidationError flags caller input that failed validation.
func NewValidationError(message string, details map[string]any) error {
	return &DomainError{
		Code:       CodeValidationFailed,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Details:    details,
	}
}

// NewNotFound flags a missing resource by name.
func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

// NewConflict flags an optimistic-concurrency loss or duplicate write.
func NewConflict(message string, details map[string]any) error {
	return &DomainError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
		Details:    details,
	}
}

// NewPersistenceError wraps storage failures that are not the caller's fault.
func NewPersistenceError(op string, err error) error {
	return &DomainError{
		Code:       CodePersistenceFailed,
		Message:    fmt.Sprintf("storage operation %s failed", op),
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewInternalError wraps everything else.
func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// IsNotFound reports whether the error chain carries a NOT_FOUND code.
func IsNotFound(err error) bool {
	return hasCode(err, CodeNotFound)
}

// IsConflict reports whether the error chain carries a CONFLICT code.
func IsConflict(err error) bool {
	return hasCode(err, CodeConflict)
}

// IsValidation reports whether the error chain carries a VALIDATION_FAILED code.
func IsValidation(err error) bool {
	return hasCode(err, CodeValidationFailed)
}

func hasCode(err error, code string) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == code
}

// ToDomainError normalizes any error into a DomainError for the response
// writer. Unrecognized errors become opaque internal errors so storage
// details never leak to clients.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		if de, ok := NewNotFound("resource", nil).(*DomainError); ok {
			return de
		}
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}
