package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeProvider scripts per-call outcomes for retry and fallback tests.
type fakeProvider struct {
	name      string
	model     string
	available bool

	calls     int
	codeCalls int
	lastReq   *Request
	lastLang  string

	// fn receives the 1-based call number and returns the outcome.
	fn func(call int) (string, error)
}

func (p *fakeProvider) Name() string    { return p.name }
func (p *fakeProvider) Model() string   { return p.model }
func (p *fakeProvider) Available() bool { return p.available }

func (p *fakeProvider) Generate(_ context.Context, req *Request) (string, error) {
	p.calls++
	p.lastReq = req
	return p.fn(p.calls)
}

func (p *fakeProvider) GenerateCode(_ context.Context, req *Request, language string) (string, error) {
	p.calls++
	p.codeCalls++
	p.lastReq = req
	p.lastLang = language
	return p.fn(p.calls)
}

func newFakeProvider(name string, fn func(int) (string, error)) *fakeProvider {
	return &fakeProvider{name: name, model: name + "-model", available: true, fn: fn}
}

// fakeTimer records requested backoff suspensions and fires immediately.
type fakeTimer struct {
	delays []time.Duration
	ch     chan time.Time
}

func (t *fakeTimer) Start(d time.Duration) {
	t.delays = append(t.delays, d)
	t.ch = make(chan time.Time, 1)
	t.ch <- time.Now()
}

func (t *fakeTimer) Stop() {}

func (t *fakeTimer) C() <-chan time.Time { return t.ch }

func newTestRetryClient(p Provider, policy RetryPolicy) (*RetryClient, *fakeTimer) {
	c := NewRetryClient(p, policy, zerolog.Nop())
	timer := &fakeTimer{}
	c.timer = timer
	return c, timer
}

func TestRetryClientSuccessFirstAttempt(t *testing.T) {
	p := newFakeProvider("test", func(int) (string, error) {
		return "hello", nil
	})
	c, timer := newTestRetryClient(p, RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second})

	text, err := c.Generate(context.Background(), &Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if text != "hello" {
		t.Errorf("expected %q, got %q", "hello", text)
	}
	if p.calls != 1 {
		t.Errorf("expected 1 call, got %d", p.calls)
	}
	if len(timer.delays) != 0 {
		t.Errorf("expected no backoff suspensions, got %v", timer.delays)
	}
}

func TestRetryClientFatalErrorNoRetry(t *testing.T) {
	authErr := NewAuthError("test", "invalid API key", nil)
	p := newFakeProvider("test", func(int) (string, error) {
		return "", authErr
	})
	c, timer := newTestRetryClient(p, RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second})

	_, err := c.Generate(context.Background(), &Request{Prompt: "hi"})
	if p.calls != 1 {
		t.Fatalf("fatal error must not be retried, got %d calls", p.calls)
	}
	if len(timer.delays) != 0 {
		t.Errorf("expected no backoff suspensions, got %v", timer.delays)
	}
	var got *Error
	if !errors.As(err, &got) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if got != authErr {
		t.Errorf("fatal error must propagate unchanged, got %v", got)
	}
}

func TestRetryClientLinearBackoffExhaustion(t *testing.T) {
	p := newFakeProvider("anthropic", func(int) (string, error) {
		return "", NewRateLimitError("anthropic", "rate limit exceeded", nil)
	})
	c, timer := newTestRetryClient(p, RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second})

	_, err := c.Generate(context.Background(), &Request{Prompt: "hi"})
	if p.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", p.calls)
	}

	want := []time.Duration{1 * time.Second, 2 * time.Second}
	if len(timer.delays) != len(want) {
		t.Fatalf("expected delays %v, got %v", want, timer.delays)
	}
	var total time.Duration
	for i, d := range timer.delays {
		if d != want[i] {
			t.Errorf("suspension %d: expected %v, got %v", i, want[i], d)
		}
		total += d
	}
	if total != 3*time.Second {
		t.Errorf("expected total backoff 3s, got %v", total)
	}

	var got *Error
	if !errors.As(err, &got) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if got.Kind != KindRateLimited {
		t.Errorf("exhaustion keeps the last kind, got %q", got.Kind)
	}
	if got.Retryable {
		t.Error("exhaustion error must not be retryable")
	}
	if !strings.Contains(got.Message, "failed after 3 attempts") {
		t.Errorf("expected attempt count in message, got %q", got.Message)
	}
}

func TestRetryClientRecoversAfterTransientFailure(t *testing.T) {
	p := newFakeProvider("test", func(call int) (string, error) {
		if call == 1 {
			return "", NewEmptyResponseError("test")
		}
		return "second time lucky", nil
	})
	c, timer := newTestRetryClient(p, RetryPolicy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond})

	text, err := c.Generate(context.Background(), &Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if text != "second time lucky" {
		t.Errorf("unexpected text %q", text)
	}
	if p.calls != 2 {
		t.Errorf("expected 2 calls, got %d", p.calls)
	}
	if len(timer.delays) != 1 || timer.delays[0] != 500*time.Millisecond {
		t.Errorf("expected one 500ms suspension, got %v", timer.delays)
	}
}

func TestRetryClientContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := newFakeProvider("test", func(int) (string, error) {
		cancel()
		return "", NewRateLimitError("test", "rate limit exceeded", nil)
	})
	c, _ := newTestRetryClient(p, RetryPolicy{MaxAttempts: 5, BaseDelay: time.Second})

	_, err := c.Generate(ctx, &Request{Prompt: "hi"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if p.calls != 1 {
		t.Errorf("cancellation must stop the loop, got %d calls", p.calls)
	}
}

func TestRetryClientGenerateCodeDelegates(t *testing.T) {
	p := newFakeProvider("test", func(int) (string, error) {
		return "package main", nil
	})
	c, _ := newTestRetryClient(p, RetryPolicy{MaxAttempts: 2, BaseDelay: time.Second})

	text, err := c.GenerateCode(context.Background(), &Request{Prompt: "hello world"}, "go")
	if err != nil {
		t.Fatalf("GenerateCode returned error: %v", err)
	}
	if text != "package main" {
		t.Errorf("unexpected text %q", text)
	}
	if p.codeCalls != 1 {
		t.Errorf("expected 1 code call, got %d", p.codeCalls)
	}
	if p.lastLang != "go" {
		t.Errorf("expected language %q, got %q", "go", p.lastLang)
	}
}

func TestRetryClientImplementsProvider(t *testing.T) {
	p := newFakeProvider("test", func(int) (string, error) { return "", nil })
	c, _ := newTestRetryClient(p, RetryPolicy{MaxAttempts: 1})

	if c.Name() != "test" {
		t.Errorf("Name: got %q", c.Name())
	}
	if c.Model() != "test-model" {
		t.Errorf("Model: got %q", c.Model())
	}
	if !c.Available() {
		t.Error("Available: expected true")
	}
}

func TestRetryPolicyNormalize(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 0, BaseDelay: -time.Second}.Normalize()
	if p.MaxAttempts != 1 {
		t.Errorf("expected at least 1 attempt, got %d", p.MaxAttempts)
	}
	if p.BaseDelay != 0 {
		t.Errorf("expected non-negative delay, got %v", p.BaseDelay)
	}

	q := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second}.Normalize()
	if q.MaxAttempts != 3 || q.BaseDelay != time.Second {
		t.Errorf("valid policy must pass through unchanged, got %+v", q)
	}
}
