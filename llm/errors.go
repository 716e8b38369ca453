package llm

import (
	"errors"
	"fmt"
	"strings"
)

// Kind categorizes a provider failure. Adapters classify raw vendor errors
// into exactly one Kind; the retry and fallback loops branch only on the
// classification.
type Kind string

const (
	KindAuth           Kind = "auth_error"
	KindRateLimited    Kind = "rate_limited"
	KindModel          Kind = "model_error"
	KindEmptyResponse  Kind = "empty_response"
	KindContentBlocked Kind = "content_blocked"
	KindUnavailable    Kind = "unavailable"
	KindUnknown        Kind = "unknown"

	// Manager-level kinds.
	KindNoProviders      Kind = "no_providers_configured"
	KindProviderNotFound Kind = "provider_not_found"
	KindAllFailed        Kind = "all_providers_failed"
)

// ProviderFailure records one provider's failure during a fallback pass.
type ProviderFailure struct {
	Provider string `json:"provider"`
	Message  string `json:"message"`
}

// Error is the uniform provider error. Adapters produce it, the RetryClient
// and Manager propagate it, and the API layer maps it to responses.
type Error struct {
	Kind       Kind
	Provider   string // Originating provider id ("" for manager-level errors)
	Message    string
	Retryable  bool
	StatusCode int               // HTTP status when known, 0 otherwise
	Failures   []ProviderFailure // Populated for KindAllFailed
	Err        error             // Original vendor error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Provider != "" {
		b.WriteString(e.Provider)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	for _, f := range e.Failures {
		fmt.Fprintf(&b, "; %s: %s", f.Provider, f.Message)
	}
	return b.String()
}

// Unwrap returns the underlying vendor error.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is classified as transient. Errors that are
// not *Error (including context errors) are never retryable.
func IsRetryable(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Retryable
	}
	return false
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Kind == kind
	}
	return false
}

// IsRateLimited reports whether err is a rate-limit classification.
func IsRateLimited(err error) bool {
	return IsKind(err, KindRateLimited)
}

// KindOf returns the classification of err, or KindUnknown for foreign errors.
func KindOf(err error) Kind {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Kind
	}
	return KindUnknown
}

// NewAuthError creates a fatal credential error.
func NewAuthError(provider, message string, err error) *Error {
	return &Error{Kind: KindAuth, Provider: provider, Message: message, Retryable: false, Err: err}
}

// NewRateLimitError creates a retryable rate-limit/quota error.
func NewRateLimitError(provider, message string, err error) *Error {
	return &Error{Kind: KindRateLimited, Provider: provider, Message: message, Retryable: true, Err: err}
}

// NewModelError creates a fatal unknown/unsupported-model error.
func NewModelError(provider, message string, err error) *Error {
	return &Error{Kind: KindModel, Provider: provider, Message: message, Retryable: false, Err: err}
}

// NewEmptyResponseError creates a retryable empty-response error.
func NewEmptyResponseError(provider string) *Error {
	return &Error{Kind: KindEmptyResponse, Provider: provider, Message: "empty response", Retryable: true}
}

// NewContentBlockedError creates a fatal content-block error.
func NewContentBlockedError(provider, message string) *Error {
	return &Error{Kind: KindContentBlocked, Provider: provider, Message: message, Retryable: false}
}

// NewUnavailableError creates a fatal not-configured/unreachable error.
func NewUnavailableError(provider, message string, err error) *Error {
	return &Error{Kind: KindUnavailable, Provider: provider, Message: message, Retryable: false, Err: err}
}

// NewUnknownError creates an unclassified error. Unclassified failures
// default to retryable: transient infrastructure faults are the common case.
func NewUnknownError(provider, message string, err error) *Error {
	return &Error{Kind: KindUnknown, Provider: provider, Message: message, Retryable: true, Err: err}
}
