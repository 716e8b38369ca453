package config

import (
	"github.com/rs/zerolog"

	llmollama "github.com/modelmux/modelmux/llm/ollama"
)

// NewOllamaClient creates an Ollama adapter from the configuration.
func NewOllamaClient(cfg *ServerConfig, logger zerolog.Logger) (*llmollama.Client, error) {
	p := cfg.Providers.Ollama
	return llmollama.NewClient(p.Host, p.Model, logger)
}
