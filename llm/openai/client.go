// Package openai implements the OpenAI provider. It also serves
// OpenAI-compatible endpoints through the base URL override.
package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/modelmux/modelmux/llm"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

const DefaultModel = "gpt-4-turbo"

// Client is the OpenAI adapter. It satisfies llm.Provider.
type Client struct {
	client *openai.Client
	apiKey string
	model  string
	logger zerolog.Logger
}

// NewClient builds an OpenAI adapter. baseURL and organization are optional;
// an empty API key is allowed and the client just reports unavailable.
func NewClient(apiKey, baseURL, model, organization string, logger zerolog.Logger) *Client {
	if model == "" {
		model = DefaultModel
	}
	var client *openai.Client
	if apiKey != "" {
		config := openai.DefaultConfig(apiKey)
		if baseURL != "" {
			config.BaseURL = baseURL
		}
		if organization != "" {
			config.OrgID = organization
		}
		client = openai.NewClientWithConfig(config)
	}
	return &Client{
		client: client,
		apiKey: apiKey,
		model:  model,
		logger: logger.With().Str("component", "openai_client").Logger(),
	}
}

// Name implements llm.Provider.
func (c *Client) Name() string { return llm.ProviderOpenAI }

// Model implements llm.Provider.
func (c *Client) Model() string { return c.model }

// Available implements llm.Provider.
func (c *Client) Available() bool { return c.apiKey != "" }

// Generate implements llm.Provider.
func (c *Client) Generate(ctx context.Context, req *llm.Request) (string, error) {
	if !c.Available() {
		return "", llm.NewUnavailableError(c.Name(), "no API key configured", nil)
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	chatReq := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = int(req.MaxTokens)
	}
	if req.Temperature != nil {
		chatReq.Temperature = float32(*req.Temperature)
	}

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", c.classify(err)
	}

	if len(resp.Choices) == 0 {
		return "", llm.NewEmptyResponseError(c.Name())
	}
	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter {
		return "", llm.NewContentBlockedError(c.Name(), "response blocked by content filter")
	}
	if choice.Message.Content == "" {
		return "", llm.NewEmptyResponseError(c.Name())
	}
	return choice.Message.Content, nil
}

// GenerateCode implements llm.Provider.
func (c *Client) GenerateCode(ctx context.Context, req *llm.Request, language string) (string, error) {
	return c.Generate(ctx, req.WithCodePrompt(language))
}

// classify maps go-openai errors to the uniform error taxonomy.
func (c *Client) classify(err error) error {
	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) {
		lower := strings.ToLower(err.Error())
		if strings.Contains(lower, "rate limit") {
			return llm.NewRateLimitError(c.Name(), err.Error(), err)
		}
		return llm.NewUnknownError(c.Name(), err.Error(), err)
	}

	e := &llm.Error{Provider: c.Name(), Message: apiErr.Message, StatusCode: apiErr.HTTPStatusCode, Err: err}
	code, _ := apiErr.Code.(string)
	switch {
	// Quota exhaustion arrives with auth-looking statuses; the code wins.
	case apiErr.HTTPStatusCode == http.StatusTooManyRequests,
		code == "insufficient_quota":
		e.Kind = llm.KindRateLimited
		e.Retryable = true
	case apiErr.HTTPStatusCode == http.StatusUnauthorized,
		apiErr.HTTPStatusCode == http.StatusForbidden,
		code == "invalid_api_key":
		e.Kind = llm.KindAuth
	case apiErr.HTTPStatusCode == http.StatusNotFound,
		code == "model_not_found":
		e.Kind = llm.KindModel
	case code == "content_policy_violation", code == "content_filter":
		e.Kind = llm.KindContentBlocked
	default:
		e.Kind = llm.KindUnknown
		e.Retryable = true
	}
	return e
}

var _ llm.Provider = (*Client)(nil)
