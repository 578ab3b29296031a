package shared

import "errors"

// Error codes for the billing core error taxonomy.
// Repositories and services map infrastructure failures (e.g. unique
// constraint violations) onto these codes so that callers can treat
// pre-write checks and database-detected conflicts identically.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeInvalidState = "INVALID_STATE"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewValidationError creates an error for malformed input
func NewValidationError(message string) *DomainError {
	return NewDomainError(CodeValidation, message)
}

// NewNotFoundError creates an error for a missing resource
func NewNotFoundError(message string) *DomainError {
	return NewDomainError(CodeNotFound, message)
}

// NewConflictError creates an error for a duplicate or concurrent conflict
func NewConflictError(message string) *DomainError {
	return NewDomainError(CodeConflict, message)
}

// NewStateError creates an error for an operation not allowed in the current state
func NewStateError(message string) *DomainError {
	return NewDomainError(CodeInvalidState, message)
}

// Common domain errors
var (
	ErrNotFound      = NewDomainError(CodeNotFound, "Resource not found")
	ErrAlreadyExists = NewDomainError(CodeConflict, "Resource already exists")
	ErrInvalidInput  = NewDomainError(CodeValidation, "Invalid input provided")
	ErrInvalidState  = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
)

func hasCode(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// IsValidation reports whether err is a validation error
func IsValidation(err error) bool {
	return hasCode(err, CodeValidation)
}

// IsNotFound reports whether err is a not-found error
func IsNotFound(err error) bool {
	return hasCode(err, CodeNotFound)
}

// IsConflict reports whether err is a conflict error
func IsConflict(err error) bool {
	return hasCode(err, CodeConflict)
}

// IsStateError reports whether err is an invalid-state error
func IsStateError(err error) bool {
	return hasCode(err, CodeInvalidState)
}
