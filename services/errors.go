package services

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeNotFound          ErrorType = "not_found"
	ErrorTypeValidation        ErrorType = "validation"
	ErrorTypeUnauthorized      ErrorType = "unauthorized"
	ErrorTypeForbidden         ErrorType = "forbidden"
	ErrorTypeInternal          ErrorType = "internal"
	ErrorTypeSourceUnavailable ErrorType = "source_unavailable"
	ErrorTypeExhausted         ErrorType = "exhausted"
	ErrorTypePersistence       ErrorType = "persistence"
	ErrorTypeOverloaded        ErrorType = "overloaded"
)

// Validation reasons reported under Details["reason"].
const (
	ReasonEmpty         = "empty"
	ReasonTooLong       = "too_long"
	ReasonUnsafeContent = "unsafe_content"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error. Call it on errors built with
// NewDomainError, never on the package-level sentinels.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// NewValidationError builds a validation error tagged with its reason.
func NewValidationError(reason, message string) *DomainError {
	return NewDomainError(ErrorTypeValidation, message, nil).WithDetail("reason", reason)
}

// NewSourceUnavailable reports that a retrieval stage produced no usable result.
func NewSourceUnavailable(source string, err error) *DomainError {
	return NewDomainError(ErrorTypeSourceUnavailable, source+" unavailable", err).WithDetail("source", source)
}

// Domain error variables

var (
	// Not Found Errors
	ErrRouteNotFound = NewDomainError(ErrorTypeNotFound, "resource not found", nil)

	// Validation Errors
	ErrInvalidInput     = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrEmptyQuestion    = NewDomainError(ErrorTypeValidation, "question cannot be empty", nil)
	ErrQuestionTooLong  = NewDomainError(ErrorTypeValidation, "question exceeds maximum length", nil)
	ErrUnsafeContent    = NewDomainError(ErrorTypeValidation, "question contains unsafe content", nil)
	ErrInvalidSolverCfg = NewDomainError(ErrorTypeValidation, "invalid solver configuration", nil)

	// Authorization Errors
	ErrUnauthorized  = NewDomainError(ErrorTypeUnauthorized, "unauthorized", nil)
	ErrInvalidToken  = NewDomainError(ErrorTypeUnauthorized, "invalid authentication token", nil)
	ErrTokenExpired  = NewDomainError(ErrorTypeUnauthorized, "authentication token expired", nil)
	ErrForbidden     = NewDomainError(ErrorTypeForbidden, "access forbidden", nil)
	ErrInternal      = NewDomainError(ErrorTypeInternal, "internal server error", nil)
	ErrDatabaseError = NewDomainError(ErrorTypeInternal, "database error", nil)

	// Retrieval stage errors
	ErrKnowledgeBaseUnavailable = NewDomainError(ErrorTypeSourceUnavailable, "knowledge base unavailable", nil)
	ErrWebSearchUnavailable     = NewDomainError(ErrorTypeSourceUnavailable, "web search unavailable", nil)
	ErrSolverFailed             = NewDomainError(ErrorTypeExhausted, "all answer sources exhausted", nil)

	ErrFeedbackPersistence = NewDomainError(ErrorTypePersistence, "failed to record feedback", nil)
	ErrServerBusy          = NewDomainError(ErrorTypeOverloaded, "too many concurrent requests", nil)
)

// Error type checking helper functions

func hasType(err error, t ErrorType) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == t
	}
	return false
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return hasType(err, ErrorTypeNotFound)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return hasType(err, ErrorTypeValidation)
}

// IsUnauthorizedError checks if an error is an unauthorized error
func IsUnauthorizedError(err error) bool {
	return hasType(err, ErrorTypeUnauthorized)
}

// IsForbiddenError checks if an error is a forbidden error
func IsForbiddenError(err error) bool {
	return hasType(err, ErrorTypeForbidden)
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	return hasType(err, ErrorTypeInternal)
}

// IsSourceUnavailableError checks if a retrieval stage failed
func IsSourceUnavailableError(err error) bool {
	return hasType(err, ErrorTypeSourceUnavailable)
}

// IsExhaustedError checks if every answer source failed
func IsExhaustedError(err error) bool {
	return hasType(err, ErrorTypeExhausted)
}

// IsPersistenceError checks if a write to the feedback store failed
func IsPersistenceError(err error) bool {
	return hasType(err, ErrorTypePersistence)
}

// IsOverloadedError checks if the request was refused for capacity
func IsOverloadedError(err error) bool {
	return hasType(err, ErrorTypeOverloaded)
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// GetValidationReason returns the reason attached to a validation error.
func GetValidationReason(err error) string {
	if reason, ok := GetErrorDetails(err)["reason"].(string); ok {
		return reason
	}
	return ""
}

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}

// WrapPersistence wraps a storage failure
func WrapPersistence(message string, err error) error {
	return NewDomainError(ErrorTypePersistence, message, err)
}

// WrapExhausted wraps the final stage failure
func WrapExhausted(message string, err error) error {
	return NewDomainError(ErrorTypeExhausted, message, err)
}

// HTTPStatus returns the status code an error is reported with
func HTTPStatus(err error) int {
	switch GetErrorType(err) {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case ErrorTypeForbidden:
		return http.StatusForbidden
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeSourceUnavailable, ErrorTypeExhausted, ErrorTypeOverloaded:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
