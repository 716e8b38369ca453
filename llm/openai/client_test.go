package openai

import (
	"errors"
	"testing"

	"github.com/modelmux/modelmux/llm"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

func newTestClient() *Client {
	return NewClient("sk-test", "", "", "", zerolog.Nop())
}

func TestClassifyAPIErrors(t *testing.T) {
	c := newTestClient()

	cases := []struct {
		name      string
		err       *openai.APIError
		kind      llm.Kind
		retryable bool
	}{
		{"unauthorized", &openai.APIError{HTTPStatusCode: 401, Message: "invalid key"}, llm.KindAuth, false},
		{"bad key code", &openai.APIError{HTTPStatusCode: 400, Code: "invalid_api_key", Message: "bad key"}, llm.KindAuth, false},
		{"rate limited", &openai.APIError{HTTPStatusCode: 429, Message: "slow down"}, llm.KindRateLimited, true},
		{"quota", &openai.APIError{HTTPStatusCode: 403, Code: "insufficient_quota", Message: "no quota"}, llm.KindRateLimited, true},
		{"model", &openai.APIError{HTTPStatusCode: 404, Message: "no such model"}, llm.KindModel, false},
		{"model code", &openai.APIError{HTTPStatusCode: 400, Code: "model_not_found", Message: "gone"}, llm.KindModel, false},
		{"content policy", &openai.APIError{HTTPStatusCode: 400, Code: "content_policy_violation", Message: "nope"}, llm.KindContentBlocked, false},
		{"server error", &openai.APIError{HTTPStatusCode: 500, Message: "boom"}, llm.KindUnknown, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := c.classify(tc.err)
			if !llm.IsKind(got, tc.kind) {
				t.Fatalf("expected kind %q, got %v", tc.kind, got)
			}
			if llm.IsRetryable(got) != tc.retryable {
				t.Errorf("expected retryable=%v for %v", tc.retryable, got)
			}
		})
	}
}

func TestClassifyQuotaPrecedence(t *testing.T) {
	// insufficient_quota arrives with a 403; quota wins over the auth status.
	c := newTestClient()
	got := c.classify(&openai.APIError{HTTPStatusCode: 403, Code: "insufficient_quota", Message: "no quota"})
	if !llm.IsRateLimited(got) {
		t.Fatalf("expected rate limited, got %v", got)
	}
}

func TestClassifyTransportErrors(t *testing.T) {
	c := newTestClient()

	got := c.classify(errors.New("Rate limit reached for requests"))
	if !llm.IsRateLimited(got) {
		t.Errorf("expected rate limit sniff, got %v", got)
	}

	got = c.classify(errors.New("connection reset by peer"))
	if !llm.IsKind(got, llm.KindUnknown) || !llm.IsRetryable(got) {
		t.Errorf("expected retryable unknown, got %v", got)
	}
}

func TestAvailability(t *testing.T) {
	c := NewClient("", "", "", "", zerolog.Nop())
	if c.Available() {
		t.Error("client without key must be unavailable")
	}
	if c.Model() != DefaultModel {
		t.Errorf("expected default model, got %q", c.Model())
	}
	if c.Name() != llm.ProviderOpenAI {
		t.Errorf("unexpected name %q", c.Name())
	}
}
