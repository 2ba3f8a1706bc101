package providers

import (
	"context"
	"errors"
	"fmt"
)

// Mode selects the answering style for a request.
type Mode string

const (
	// ModeFast favors low latency over depth.
	ModeFast Mode = "fast"

	// ModeDeep requests a slower, reasoned answer.
	ModeDeep Mode = "deep"
)

// ValidMode reports whether m is a supported request mode.
func ValidMode(m Mode) bool {
	return m == ModeFast || m == ModeDeep
}

// Message represents a single message in a conversation
type Message struct {
	// Role can be "system", "user", or "assistant"
	Role string `json:"role"`

	// Content is the message text
	Content string `json:"content"`
}

// Request represents a normalized chat request handed to an adapter
type Request struct {
	// Message is the current user message
	Message string

	// Mode selects fast or deep answering
	Mode Mode

	// History contains prior conversation turns, oldest first
	History []Message
}

// NormalizedResponse represents a provider-independent answer
type NormalizedResponse struct {
	// Content is the answer text
	Content string `json:"content"`

	// ReasoningTrace holds the model's reasoning, when the provider exposes one
	ReasoningTrace string `json:"reasoning_trace,omitempty"`

	// Mode echoes the request mode
	Mode Mode `json:"mode"`

	// Model identifies the model that produced the answer
	Model string `json:"model"`
}

// Adapter translates a normalized request into one provider's native API call.
// The orchestration layer never sees a provider's wire format; everything
// provider-specific lives behind this interface.
type Adapter interface {
	// Name returns the provider name the adapter serves (e.g., "openai", "groq")
	Name() string

	// Execute performs the chat call and normalizes the result
	Execute(ctx context.Context, req *Request) (*NormalizedResponse, error)
}

// ErrorKind categorizes a provider failure
type ErrorKind string

const (
	ErrorKindNetwork           ErrorKind = "network"
	ErrorKindAuth              ErrorKind = "auth"
	ErrorKindRateLimit         ErrorKind = "rate_limit"
	ErrorKindMalformedResponse ErrorKind = "malformed_response"
)

// Error represents an error from a provider
type Error struct {
	// Provider that generated the error
	Provider string

	// Kind is the failure category
	Kind ErrorKind

	// Message is the error message
	Message string

	// StatusCode is the HTTP status code (if applicable)
	StatusCode int

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// Unwrap implements error unwrapping
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewNetworkError reports a transport-level failure reaching the provider
func NewNetworkError(provider string, cause error) *Error {
	return &Error{
		Provider: provider,
		Kind:     ErrorKindNetwork,
		Message:  "request failed",
		Cause:    cause,
	}
}

// NewAuthError reports rejected credentials
func NewAuthError(provider string, statusCode int) *Error {
	return &Error{
		Provider:   provider,
		Kind:       ErrorKindAuth,
		Message:    "authentication rejected",
		StatusCode: statusCode,
	}
}

// NewRateLimitError reports provider-side throttling
func NewRateLimitError(provider string, statusCode int) *Error {
	return &Error{
		Provider:   provider,
		Kind:       ErrorKindRateLimit,
		Message:    "rate limited",
		StatusCode: statusCode,
	}
}

// NewMalformedResponseError reports an undecodable or empty provider response
func NewMalformedResponseError(provider, message string, cause error) *Error {
	return &Error{
		Provider: provider,
		Kind:     ErrorKindMalformedResponse,
		Message:  message,
		Cause:    cause,
	}
}

// NewServerError reports an upstream 5xx, treated as a transient network-class failure
func NewServerError(provider string, statusCode int) *Error {
	return &Error{
		Provider:   provider,
		Kind:       ErrorKindNetwork,
		Message:    fmt.Sprintf("upstream returned %d", statusCode),
		StatusCode: statusCode,
	}
}

// IsRetryable reports whether the failure is transient for the same provider.
// Network faults and throttling tend to clear; rejected credentials and
// undecodable responses do not.
func IsRetryable(err error) bool {
	var provErr *Error
	if errors.As(err, &provErr) {
		switch provErr.Kind {
		case ErrorKindNetwork, ErrorKindRateLimit:
			return true
		case ErrorKindAuth, ErrorKindMalformedResponse:
			return false
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return false
}

// KindOf returns the ErrorKind of a provider error, or empty string otherwise
func KindOf(err error) ErrorKind {
	var provErr *Error
	if errors.As(err, &provErr) {
		return provErr.Kind
	}
	return ""
}
