package anthropic

import (
	"context"
	"errors"
	"testing"

	"github.com/modelmux/modelmux/llm"
	"github.com/rs/zerolog"
)

func TestAvailability(t *testing.T) {
	c := NewClient("", "", zerolog.Nop())
	if c.Available() {
		t.Error("client without key must be unavailable")
	}
	_, err := c.Generate(context.Background(), &llm.Request{Prompt: "hi"})
	if !llm.IsKind(err, llm.KindUnavailable) {
		t.Errorf("expected unavailable, got %v", err)
	}

	c = NewClient("sk-ant-test", "", zerolog.Nop())
	if !c.Available() {
		t.Error("client with key must be available")
	}
	if c.Model() != DefaultModel {
		t.Errorf("expected default model, got %q", c.Model())
	}
	if c.Name() != llm.ProviderAnthropic {
		t.Errorf("unexpected name %q", c.Name())
	}
}

func TestModelOverride(t *testing.T) {
	c := NewClient("sk-ant-test", "claude-3-haiku-20240307", zerolog.Nop())
	if c.Model() != "claude-3-haiku-20240307" {
		t.Errorf("model override lost, got %q", c.Model())
	}
}

func TestClassifyTransportErrors(t *testing.T) {
	c := NewClient("sk-ant-test", "", zerolog.Nop())

	got := c.classify(errors.New("anthropic: rate limit exceeded"))
	if !llm.IsRateLimited(got) {
		t.Errorf("expected rate limit sniff, got %v", got)
	}

	got = c.classify(errors.New("api is overloaded, try again"))
	if !llm.IsRateLimited(got) {
		t.Errorf("expected overloaded to classify as rate limited, got %v", got)
	}

	got = c.classify(errors.New("connection reset by peer"))
	if !llm.IsKind(got, llm.KindUnknown) || !llm.IsRetryable(got) {
		t.Errorf("expected retryable unknown, got %v", got)
	}
}
