// Package gemini implements the Google Gemini provider over the REST
// generateContent endpoint. There is no SDK dependency; the wire shapes are
// declared locally. Multiple API keys rotate through an llm.Keyring, one key
// per request.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/modelmux/modelmux/llm"
	"github.com/rs/zerolog"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-1.5-pro"

	defaultTimeout = 120 * time.Second
)

// Client is the Gemini adapter. It satisfies llm.Provider.
type Client struct {
	httpClient *http.Client
	keyring    *llm.Keyring
	baseURL    string
	model      string
	logger     zerolog.Logger
}

// NewClient builds a Gemini adapter over the given keyring. An empty keyring
// is allowed; the client just reports unavailable.
func NewClient(keyring *llm.Keyring, baseURL, model string, logger zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		keyring:    keyring,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      model,
		logger:     logger.With().Str("component", "gemini_client").Logger(),
	}
}

// Name implements llm.Provider.
func (c *Client) Name() string { return llm.ProviderGemini }

// Model implements llm.Provider.
func (c *Client) Model() string { return c.model }

// Available implements llm.Provider. True when at least one key is
// configured.
func (c *Client) Available() bool { return c.keyring != nil && !c.keyring.Empty() }

// Keyring exposes the key ring for the stats API.
func (c *Client) Keyring() *llm.Keyring { return c.keyring }

// Wire shapes, minimal for this use.
type generateContentRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type generationConfig struct {
	MaxOutputTokens int64    `json:"maxOutputTokens,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text,omitempty"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason,omitempty"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason,omitempty"`
	} `json:"promptFeedback,omitempty"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// Generate implements llm.Provider.
func (c *Client) Generate(ctx context.Context, req *llm.Request) (string, error) {
	if !c.Available() {
		return "", llm.NewUnavailableError(c.Name(), "no API key configured", nil)
	}

	key := c.keyring.Next()
	text, err := c.generateContent(ctx, key, req)
	if err != nil {
		c.keyring.RecordError(key, llm.IsRateLimited(err))
		return "", err
	}
	c.keyring.RecordUsage(key)
	return text, nil
}

// GenerateCode implements llm.Provider.
func (c *Client) GenerateCode(ctx context.Context, req *llm.Request, language string) (string, error) {
	return c.Generate(ctx, req.WithCodePrompt(language))
}

func (c *Client) generateContent(ctx context.Context, key string, req *llm.Request) (string, error) {
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, key)

	body := generateContentRequest{
		Contents: []content{{
			Role:  "user",
			Parts: []part{{Text: req.Prompt}},
		}},
	}
	if req.System != "" {
		body.SystemInstruction = &content{Parts: []part{{Text: req.System}}}
	}
	if req.MaxTokens > 0 || req.Temperature != nil {
		body.GenerationConfig = &generationConfig{
			MaxOutputTokens: req.MaxTokens,
			Temperature:     req.Temperature,
		}
	}

	b, err := json.Marshal(body)
	if err != nil {
		return "", llm.NewUnknownError(c.Name(), "failed to marshal request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", llm.NewUnknownError(c.Name(), "failed to build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", llm.NewUnknownError(c.Name(), "request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", llm.NewUnknownError(c.Name(), "failed to read response", err)
	}

	var gcr generateContentResponse
	if jsonErr := json.Unmarshal(data, &gcr); jsonErr != nil && resp.StatusCode == http.StatusOK {
		return "", llm.NewUnknownError(c.Name(), "failed to decode response", jsonErr)
	}

	if resp.StatusCode != http.StatusOK {
		message := strings.TrimSpace(string(data))
		if gcr.Error != nil && gcr.Error.Message != "" {
			message = gcr.Error.Message
		}
		return "", c.classifyStatus(resp.StatusCode, message)
	}

	if gcr.PromptFeedback != nil && gcr.PromptFeedback.BlockReason != "" {
		return "", llm.NewContentBlockedError(c.Name(),
			fmt.Sprintf("prompt blocked: %s", gcr.PromptFeedback.BlockReason))
	}
	if len(gcr.Candidates) == 0 || len(gcr.Candidates[0].Content.Parts) == 0 {
		return "", llm.NewEmptyResponseError(c.Name())
	}
	if reason := gcr.Candidates[0].FinishReason; reason == "SAFETY" || reason == "PROHIBITED_CONTENT" {
		return "", llm.NewContentBlockedError(c.Name(), fmt.Sprintf("response blocked: %s", reason))
	}

	var out strings.Builder
	for _, p := range gcr.Candidates[0].Content.Parts {
		out.WriteString(p.Text)
	}
	if out.Len() == 0 {
		return "", llm.NewEmptyResponseError(c.Name())
	}
	return out.String(), nil
}

// classifyStatus maps a non-200 response to the uniform error taxonomy.
func (c *Client) classifyStatus(status int, message string) error {
	lower := strings.ToLower(message)
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return &llm.Error{Kind: llm.KindAuth, Provider: c.Name(), Message: message, StatusCode: status}
	case status == http.StatusBadRequest && strings.Contains(lower, "api key"):
		return &llm.Error{Kind: llm.KindAuth, Provider: c.Name(), Message: message, StatusCode: status}
	case status == http.StatusTooManyRequests,
		strings.Contains(lower, "quota"),
		strings.Contains(lower, "rate limit"):
		return &llm.Error{Kind: llm.KindRateLimited, Provider: c.Name(), Message: message, Retryable: true, StatusCode: status}
	case status == http.StatusNotFound, strings.Contains(lower, "model"):
		return &llm.Error{Kind: llm.KindModel, Provider: c.Name(), Message: message, StatusCode: status}
	default:
		return &llm.Error{Kind: llm.KindUnknown, Provider: c.Name(), Message: message, Retryable: true, StatusCode: status}
	}
}

var _ llm.Provider = (*Client)(nil)
