// Package anthropic implements the Anthropic provider over the official SDK.
package anthropic

import (
	"context"
	"errors"
	"net/http"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/modelmux/modelmux/llm"
	"github.com/rs/zerolog"
)

const (
	DefaultModel = "claude-3-sonnet-20240229"

	// Anthropic requires max_tokens on every request.
	defaultMaxTokens = 4096
)

// Client is the Anthropic adapter. It satisfies llm.Provider.
type Client struct {
	client *anthropic.Client
	apiKey string
	model  string
	logger zerolog.Logger
}

// NewClient builds an Anthropic adapter. An empty API key is allowed; the
// client just reports unavailable.
func NewClient(apiKey, model string, logger zerolog.Logger) *Client {
	if model == "" {
		model = DefaultModel
	}
	var client *anthropic.Client
	if apiKey != "" {
		c := anthropic.NewClient(option.WithAPIKey(apiKey))
		client = &c
	}
	return &Client{
		client: client,
		apiKey: apiKey,
		model:  model,
		logger: logger.With().Str("component", "anthropic_client").Logger(),
	}
}

// Name implements llm.Provider.
func (c *Client) Name() string { return llm.ProviderAnthropic }

// Model implements llm.Provider.
func (c *Client) Model() string { return c.model }

// Available implements llm.Provider.
func (c *Client) Available() bool { return c.apiKey != "" }

// Generate implements llm.Provider.
func (c *Client) Generate(ctx context.Context, req *llm.Request) (string, error) {
	if !c.Available() {
		return "", llm.NewUnavailableError(c.Name(), "no API key configured", nil)
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", c.classify(err)
	}

	if message.StopReason == anthropic.StopReasonRefusal {
		return "", llm.NewContentBlockedError(c.Name(), "model refused to generate a response")
	}

	var out strings.Builder
	for _, blockUnion := range message.Content {
		if block, ok := blockUnion.AsAny().(anthropic.TextBlock); ok {
			out.WriteString(block.Text)
		}
	}
	if out.Len() == 0 {
		return "", llm.NewEmptyResponseError(c.Name())
	}
	return out.String(), nil
}

// GenerateCode implements llm.Provider.
func (c *Client) GenerateCode(ctx context.Context, req *llm.Request, language string) (string, error) {
	return c.Generate(ctx, req.WithCodePrompt(language))
}

// classify maps SDK errors to the uniform error taxonomy.
func (c *Client) classify(err error) error {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		lower := strings.ToLower(err.Error())
		if strings.Contains(lower, "rate limit") || strings.Contains(lower, "overloaded") {
			return llm.NewRateLimitError(c.Name(), err.Error(), err)
		}
		return llm.NewUnknownError(c.Name(), err.Error(), err)
	}

	e := &llm.Error{Provider: c.Name(), Message: err.Error(), StatusCode: apiErr.StatusCode, Err: err}
	switch apiErr.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		e.Kind = llm.KindAuth
	case http.StatusTooManyRequests:
		e.Kind = llm.KindRateLimited
		e.Retryable = true
	case http.StatusNotFound:
		e.Kind = llm.KindModel
	case http.StatusServiceUnavailable, 529:
		// 529 is Anthropic's overloaded status; transient.
		e.Kind = llm.KindRateLimited
		e.Retryable = true
	default:
		if apiErr.StatusCode == http.StatusBadRequest && strings.Contains(strings.ToLower(err.Error()), "model") {
			e.Kind = llm.KindModel
		} else {
			e.Kind = llm.KindUnknown
			e.Retryable = true
		}
	}
	return e
}

var _ llm.Provider = (*Client)(nil)
