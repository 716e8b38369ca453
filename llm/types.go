package llm

import (
	"context"
	"fmt"
	"time"
)

// Request represents a single generation request.
// The recognized options are enumerated here; there is no open-ended option
// bag. An adapter ignores a recognized option its vendor cannot express.
type Request struct {
	Prompt      string
	System      string   // Optional system prompt
	MaxTokens   int64    // Maximum output tokens (0 = adapter default)
	Temperature *float64 // Optional sampling temperature override
}

// Result represents a completed generation.
type Result struct {
	Text     string `json:"text"`
	Provider string `json:"provider"`
}

// RetryPolicy tunes the retry state machine of a RetryClient.
type RetryPolicy struct {
	MaxAttempts int           // Total attempts, including the first (>= 1)
	BaseDelay   time.Duration // Linear backoff unit (>= 0)
}

// Normalize clamps the policy to its invariants: at least one attempt,
// never a negative delay.
func (p RetryPolicy) Normalize() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	return p
}

// Provider is the capability contract every vendor adapter implements.
// Calls must be safe to retry: no side effects beyond the remote call itself.
type Provider interface {
	// Name returns the provider id (e.g. "gemini").
	Name() string

	// Model returns the model name this provider generates with.
	Model() string

	// Available reports whether the provider can be used. This is a cheap
	// local check (credential present, host configured), never a network
	// probe.
	Available() bool

	// Generate produces text for the request, or a classified *Error.
	Generate(ctx context.Context, req *Request) (string, error)

	// GenerateCode specializes Generate by injecting a code-only system
	// prompt for the target language. No output parsing is performed.
	GenerateCode(ctx context.Context, req *Request, language string) (string, error)
}

// Descriptor is a read-only snapshot of a registered provider, for API and
// UI layers.
type Descriptor struct {
	Name      string `json:"name"`
	Model     string `json:"model"`
	Available bool   `json:"available"`
	Default   bool   `json:"default"`
}

// CodeSystemPrompt returns the system prompt used for code generation in the
// given target language.
func CodeSystemPrompt(language string) string {
	return fmt.Sprintf(
		"You are an expert %s programmer. Generate clean, well-documented, "+
			"production-ready %s code. Only output the code without explanations "+
			"or markdown formatting unless specifically asked. Follow best "+
			"practices and conventions.",
		language, language,
	)
}

// WithCodePrompt returns a copy of req whose system prompt instructs the
// model to emit only code. Adapters use this so GenerateCode and Generate
// share one request path.
func (r *Request) WithCodePrompt(language string) *Request {
	out := *r
	out.System = CodeSystemPrompt(language)
	return &out
}
