package config

import (
	"github.com/rs/zerolog"

	llmopenai "github.com/modelmux/modelmux/llm/openai"
)

// NewOpenAIClient creates an OpenAI adapter from the configuration. The base
// URL override also serves OpenAI-compatible endpoints.
func NewOpenAIClient(cfg *ServerConfig, logger zerolog.Logger) *llmopenai.Client {
	p := cfg.Providers.OpenAI
	return llmopenai.NewClient(p.APIKey, p.BaseURL, p.Model, p.Organization, logger)
}
