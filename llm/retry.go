package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// linearBackOff produces base*1, base*2, base*3, ... with no jitter, so the
// retry schedule is fully deterministic.
type linearBackOff struct {
	base    time.Duration
	attempt int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return b.base * time.Duration(b.attempt)
}

func (b *linearBackOff) Reset() {
	b.attempt = 0
}

// RetryClient wraps a Provider with a deterministic retry state machine.
// Retryable errors are absorbed up to the attempt budget, suspending for
// baseDelay*attempt between attempts; fatal errors propagate immediately.
// RetryClient itself satisfies Provider, so the Manager stores retry clients
// homogeneously.
type RetryClient struct {
	provider Provider
	policy   RetryPolicy
	timer    backoff.Timer // nil = real timer; tests inject a fake
	logger   zerolog.Logger
}

// NewRetryClient wraps provider with the given retry policy. The policy is
// normalized: at least one attempt, never a negative delay.
func NewRetryClient(provider Provider, policy RetryPolicy, logger zerolog.Logger) *RetryClient {
	return &RetryClient{
		provider: provider,
		policy:   policy.Normalize(),
		logger:   logger.With().Str("component", "retry_client").Str("provider", provider.Name()).Logger(),
	}
}

// Name implements Provider.
func (c *RetryClient) Name() string { return c.provider.Name() }

// Model implements Provider.
func (c *RetryClient) Model() string { return c.provider.Model() }

// Available implements Provider.
func (c *RetryClient) Available() bool { return c.provider.Available() }

// Policy returns the normalized retry policy.
func (c *RetryClient) Policy() RetryPolicy { return c.policy }

// Generate implements Provider, retrying transient adapter failures.
func (c *RetryClient) Generate(ctx context.Context, req *Request) (string, error) {
	return c.do(ctx, func(ctx context.Context) (string, error) {
		return c.provider.Generate(ctx, req)
	})
}

// GenerateCode implements Provider, retrying transient adapter failures.
func (c *RetryClient) GenerateCode(ctx context.Context, req *Request, language string) (string, error) {
	return c.do(ctx, func(ctx context.Context) (string, error) {
		return c.provider.GenerateCode(ctx, req, language)
	})
}

// do drives the retry loop: linear backoff capped at MaxAttempts-1 retries,
// cancelable through ctx. Fatal classifications are signalled as permanent,
// ending the loop without consuming remaining attempts.
func (c *RetryClient) do(ctx context.Context, call func(context.Context) (string, error)) (string, error) {
	var (
		text    string
		attempt int
	)

	var b backoff.BackOff = &linearBackOff{base: c.policy.BaseDelay}
	b = backoff.WithMaxRetries(b, uint64(c.policy.MaxAttempts-1)) //nolint:gosec // MaxAttempts >= 1 after Normalize
	b = backoff.WithContext(b, ctx)

	operation := func() error {
		attempt++
		out, err := call(ctx)
		if err == nil {
			text = out
			return nil
		}
		if !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, delay time.Duration) {
		c.logger.Warn().
			Int("attempt", attempt).
			Int("max_attempts", c.policy.MaxAttempts).
			Dur("delay", delay).
			Str("kind", string(KindOf(err))).
			Err(err).
			Msg("Generation attempt failed, retrying after delay")
	}

	err := backoff.RetryNotifyWithTimer(operation, b, notify, c.timer)
	if err == nil {
		return text, nil
	}

	// Fatal classifications and context errors propagate unchanged.
	if !IsRetryable(err) {
		return "", err
	}

	// Retry budget exhausted on a retryable error: wrap the last failure in
	// a non-retryable error naming the attempt count.
	var last *Error
	errors.As(err, &last)
	c.logger.Error().
		Int("attempts", attempt).
		Str("kind", string(last.Kind)).
		Err(err).
		Msg("Generation failed, retry budget exhausted")
	return "", &Error{
		Kind:       last.Kind,
		Provider:   c.provider.Name(),
		Message:    fmt.Sprintf("generation failed after %d attempts", c.policy.MaxAttempts),
		Retryable:  false,
		StatusCode: last.StatusCode,
		Err:        err,
	}
}

var _ Provider = (*RetryClient)(nil)
