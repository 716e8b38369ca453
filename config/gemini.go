package config

import (
	"github.com/rs/zerolog"

	"github.com/modelmux/modelmux/llm"
	llmgemini "github.com/modelmux/modelmux/llm/gemini"
)

// NewGeminiClient creates a Gemini adapter from the configuration. The
// configured keys rotate through a keyring with the shared strategy and
// cooldown.
func NewGeminiClient(cfg *ServerConfig, logger zerolog.Logger) *llmgemini.Client {
	p := cfg.Providers
	ring := llm.NewKeyring(
		llm.ProviderGemini,
		p.Gemini.APIKeys,
		llm.ParseRotationStrategy(p.KeyStrategy),
		p.KeyCooldown(),
	)
	return llmgemini.NewClient(ring, p.Gemini.BaseURL, p.Gemini.Model, logger)
}
