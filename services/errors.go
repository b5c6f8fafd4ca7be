package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeValidation      ErrorType = "validation"
	ErrorTypeNotFound        ErrorType = "not_found"
	ErrorTypeNoFeasibleModel ErrorType = "no_feasible_model"
	ErrorTypeInvocation      ErrorType = "invocation"
	ErrorTypeCacheBackend    ErrorType = "cache_backend"
	ErrorTypeEmbedding       ErrorType = "embedding"
	ErrorTypeInternal        ErrorType = "internal"
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

// WithDetail returns a copy of the error with the detail added. The
// receiver is left untouched: callers attach details to the shared
// sentinel errors, which concurrent requests must never mutate.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &DomainError{
		Type:    e.Type,
		Message: e.Message,
		Err:     e.Err,
		Details: details,
	}
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

// Domain error variables

var (
	// Validation errors
	ErrInvalidInput       = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrEmptyPrompt        = NewDomainError(ErrorTypeValidation, "prompt cannot be empty", nil)
	ErrInvalidObjective   = NewDomainError(ErrorTypeValidation, "invalid optimization objective", nil)
	ErrInvalidConstraints = NewDomainError(ErrorTypeValidation, "invalid selection constraints", nil)
	ErrInvalidVariants    = NewDomainError(ErrorTypeValidation, "experiment variants must carry positive weights", nil)

	// Not found errors
	ErrModelNotFound      = NewDomainError(ErrorTypeNotFound, "model not found in catalog", nil)
	ErrExperimentNotFound = NewDomainError(ErrorTypeNotFound, "experiment not found", nil)

	// Selection errors. Constraint infeasibility is an expected business
	// outcome and must never be substituted with a different model.
	ErrNoFeasibleModel = NewDomainError(ErrorTypeNoFeasibleModel, "no model satisfies the given constraints", nil)

	// Invocation errors. Surfaced only to the requester whose invocation
	// failed; batch siblings are unaffected.
	ErrInvocationFailed  = NewDomainError(ErrorTypeInvocation, "provider invocation failed", nil)
	ErrInvocationTimeout = NewDomainError(ErrorTypeInvocation, "provider invocation timed out", nil)

	// Infrastructure errors. Absorbed and logged by the cache service,
	// never propagated to the request path.
	ErrCacheBackendUnavailable = NewDomainError(ErrorTypeCacheBackend, "cache backing store unavailable", nil)
	ErrEmbeddingUnavailable    = NewDomainError(ErrorTypeEmbedding, "embedding backend unavailable", nil)

	// Internal errors
	ErrInternal = NewDomainError(ErrorTypeInternal, "internal error", nil)
)

// Error type checking helper functions

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return GetErrorType(err) == ErrorTypeValidation
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return GetErrorType(err) == ErrorTypeNotFound
}

// IsNoFeasibleModelError checks if an error reports constraint infeasibility
func IsNoFeasibleModelError(err error) bool {
	return GetErrorType(err) == ErrorTypeNoFeasibleModel
}

// IsInvocationError checks if an error is a per-request invocation failure
func IsInvocationError(err error) bool {
	return GetErrorType(err) == ErrorTypeInvocation
}

// IsCacheBackendError checks if an error is a cache backing store failure
func IsCacheBackendError(err error) bool {
	return GetErrorType(err) == ErrorTypeCacheBackend
}

// IsEmbeddingError checks if an error is an embedding backend failure
func IsEmbeddingError(err error) bool {
	return GetErrorType(err) == ErrorTypeEmbedding
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

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapInvocation wraps an error as a per-request invocation failure
func WrapInvocation(message string, err error) error {
	return NewDomainError(ErrorTypeInvocation, message, err)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}
