package config

import (
	"github.com/rs/zerolog"

	llmanthropic "github.com/modelmux/modelmux/llm/anthropic"
)

// NewAnthropicClient creates an Anthropic adapter from the configuration.
func NewAnthropicClient(cfg *ServerConfig, logger zerolog.Logger) *llmanthropic.Client {
	p := cfg.Providers.Anthropic
	return llmanthropic.NewClient(p.APIKey, p.Model, logger)
}
