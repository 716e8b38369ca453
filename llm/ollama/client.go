// Package ollama implements the provider for a local Ollama server.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/modelmux/modelmux/llm"
	"github.com/ollama/ollama/api"
	"github.com/rs/zerolog"
)

const (
	DefaultHost  = "http://localhost:11434"
	DefaultModel = "llama3"
)

// Client is the Ollama adapter. It satisfies llm.Provider. Availability only
// requires a configured host; no key is involved, and connection failures
// surface per request as fatal unavailable errors.
type Client struct {
	client *api.Client
	host   string
	model  string
	logger zerolog.Logger
}

// NewClient builds an Ollama adapter for the given host and model. An empty
// host falls back to the default local address, an empty model to the
// default model.
func NewClient(host, model string, logger zerolog.Logger) (*Client, error) {
	if host == "" {
		host = DefaultHost
	}
	if model == "" {
		model = DefaultModel
	}
	baseURL, err := parseHost(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host: %w", err)
	}
	return &Client{
		client: api.NewClient(baseURL, &http.Client{}),
		host:   host,
		model:  model,
		logger: logger.With().Str("component", "ollama_client").Logger(),
	}, nil
}

func parseHost(host string) (*url.URL, error) {
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return url.Parse(host)
}

// Name implements llm.Provider.
func (c *Client) Name() string { return llm.ProviderOllama }

// Model implements llm.Provider.
func (c *Client) Model() string { return c.model }

// Available implements llm.Provider.
func (c *Client) Available() bool { return c.host != "" }

// Generate implements llm.Provider.
func (c *Client) Generate(ctx context.Context, req *llm.Request) (string, error) {
	messages := make([]api.Message, 0, 2)
	if req.System != "" {
		messages = append(messages, api.Message{Role: "system", Content: req.System})
	}
	messages = append(messages, api.Message{Role: "user", Content: req.Prompt})

	chatReq := &api.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   new(bool), // non-streaming
		Options:  make(map[string]interface{}),
	}
	if req.MaxTokens > 0 {
		chatReq.Options["num_predict"] = int(req.MaxTokens)
	}
	if req.Temperature != nil {
		chatReq.Options["temperature"] = *req.Temperature
	}

	var text strings.Builder
	err := c.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		text.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", c.classify(err)
	}
	if text.Len() == 0 {
		return "", llm.NewEmptyResponseError(c.Name())
	}
	return text.String(), nil
}

// GenerateCode implements llm.Provider.
func (c *Client) GenerateCode(ctx context.Context, req *llm.Request, language string) (string, error) {
	return c.Generate(ctx, req.WithCodePrompt(language))
}

// classify maps Ollama client errors to the uniform error taxonomy. A local
// server that is down stays down for the duration of a request cycle, so
// connection failures are fatal rather than retried.
func (c *Client) classify(err error) error {
	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "connection refused"),
		strings.Contains(lower, "no such host"),
		strings.Contains(lower, "could not connect"):
		return llm.NewUnavailableError(c.Name(), "ollama server is not reachable", err)
	case strings.Contains(lower, "not found"), strings.Contains(lower, "no such model"):
		return llm.NewModelError(c.Name(), err.Error(), err)
	default:
		return llm.NewUnknownError(c.Name(), err.Error(), err)
	}
}

var _ llm.Provider = (*Client)(nil)
