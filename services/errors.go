package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeProvider   ErrorType = "provider"
	ErrorTypeExhausted  ErrorType = "exhausted_providers"
	ErrorTypeCache      ErrorType = "cache"
	ErrorTypeInternal   ErrorType = "internal"
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

// WithDetail adds a detail to the error
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

// Domain error variables

var (
	// Validation Errors
	ErrEmptyMessage = NewDomainError(ErrorTypeValidation, "message cannot be empty", nil)
	ErrInvalidMode  = NewDomainError(ErrorTypeValidation, "mode must be one of: fast, deep", nil)

	// Provider Errors
	ErrProviderNotRegistered = NewDomainError(ErrorTypeNotFound, "no adapter registered for provider", nil)
	ErrProviderDispatch      = NewDomainError(ErrorTypeProvider, "provider dispatch failed", nil)

	// Exhaustion Errors
	ErrNoProvidersAvailable = NewDomainError(ErrorTypeExhausted, "no providers available", nil)
	ErrAllProvidersFailed   = NewDomainError(ErrorTypeExhausted, "all providers failed", nil)

	// Internal Errors
	ErrInternal    = NewDomainError(ErrorTypeInternal, "internal server error", nil)
	ErrCacheFailed = NewDomainError(ErrorTypeCache, "cache operation failed", nil)
)

// Error type checking helper functions

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeNotFound
	}
	return false
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeValidation
	}
	return false
}

// IsProviderError checks if an error is a provider dispatch error
func IsProviderError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeProvider
	}
	return false
}

// IsExhaustedError checks if an error is an exhausted-providers error
func IsExhaustedError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeExhausted
	}
	return false
}

// IsCacheError checks if an error is a cache error
func IsCacheError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeCache
	}
	return false
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeInternal
	}
	return false
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

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}

// WrapProvider wraps an error as a provider dispatch error
func WrapProvider(message string, err error) error {
	return NewDomainError(ErrorTypeProvider, message, err)
}

// NewExhaustedError builds the terminal exhausted-providers error carrying the
// last dispatch error. Callers attach the provider health snapshot via WithDetail.
func NewExhaustedError(lastErr error) *DomainError {
	return NewDomainError(ErrorTypeExhausted, "all providers failed", lastErr)
}
