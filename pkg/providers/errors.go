package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

// ErrorKind classifies provider failures so callers can branch on the class
// of failure without inspecting vendor error strings.
type ErrorKind string

const (
	// ErrKindConfig covers missing credentials and invalid model setup.
	// These are raised at construction time, before any network call.
	ErrKindConfig ErrorKind = "config"
	// ErrKindRateLimited maps vendor HTTP 429 responses.
	ErrKindRateLimited ErrorKind = "rate_limited"
	// ErrKindUnauthorized maps vendor HTTP 401 and 403 responses.
	ErrKindUnauthorized ErrorKind = "unauthorized"
	// ErrKindEmptyResponse is returned when the vendor accepted the request
	// but returned no choices or no embedding data.
	ErrKindEmptyResponse ErrorKind = "empty_response"
	// ErrKindMalformedResponse is returned when the vendor payload doesn't
	// line up with the request, such as a batch with missing vectors.
	ErrKindMalformedResponse ErrorKind = "malformed_response"
	// ErrKindTransport covers everything else: network failures, timeouts
	// and unclassified vendor errors.
	ErrKindTransport ErrorKind = "transport"
)

type ProviderError struct {
	Kind          ErrorKind
	Provider      string
	message       string
	originalError error
}

func (e *ProviderError) Error() string {
	if e.originalError == nil {
		return fmt.Sprintf("%s provider error (%s): %s", e.Provider, e.Kind, e.message)
	}
	return fmt.Sprintf(
		"%s provider error (%s): %s (original error: %v)",
		e.Provider, e.Kind, e.message, e.originalError,
	)
}

func (e *ProviderError) Unwrap() error {
	return e.originalError
}

func NewProviderError(provider string, kind ErrorKind, message string, originalError error) *ProviderError {
	return &ProviderError{Kind: kind, Provider: provider, message: message, originalError: originalError}
}

// KindOf returns the ErrorKind carried by err, or "" when err is not a
// ProviderError.
func KindOf(err error) ErrorKind {
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Kind
	}
	return ""
}

func IsRateLimited(err error) bool {
	return KindOf(err) == ErrKindRateLimited
}

func IsUnauthorized(err error) bool {
	return KindOf(err) == ErrKindUnauthorized
}

func IsConfigError(err error) bool {
	return KindOf(err) == ErrKindConfig
}

func IsEmptyResponse(err error) bool {
	return KindOf(err) == ErrKindEmptyResponse
}

// classifyVendorError wraps an error from the OpenAI-compatible client with
// the ErrorKind derived from its HTTP status. Classification is by status
// code only; vendor error strings are not inspected.
func classifyVendorError(provider, message string, err error) *ProviderError {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NewProviderError(provider, ErrKindTransport, message, err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return NewProviderError(provider, kindFromStatus(apiErr.HTTPStatusCode), message, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return NewProviderError(provider, kindFromStatus(reqErr.HTTPStatusCode), message, err)
	}

	return NewProviderError(provider, ErrKindTransport, message, err)
}

func kindFromStatus(status int) ErrorKind {
	switch status {
	case http.StatusTooManyRequests:
		return ErrKindRateLimited
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrKindUnauthorized
	default:
		return ErrKindTransport
	}
}
