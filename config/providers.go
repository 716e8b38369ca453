package config

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/modelmux/modelmux/llm"
)

// RegisterProviders walks the configured priority list, builds each adapter,
// wraps it in a retry client with the shared policy, and registers it with
// the manager. Providers without credentials are skipped by the manager's
// availability check. The returned map holds the keyring of every provider
// that rotates keys, for usage reporting. Returns an error only for unknown
// provider ids or a broken adapter construction; a fully empty registry is
// left for the caller to judge.
func RegisterProviders(manager *llm.Manager, cfg *ServerConfig, logger zerolog.Logger) (map[string]*llm.Keyring, error) {
	policy := cfg.Providers.Retry.Policy()
	keyrings := make(map[string]*llm.Keyring)

	for _, id := range cfg.Providers.Priority {
		var provider llm.Provider
		switch id {
		case llm.ProviderGemini:
			client := NewGeminiClient(cfg, logger)
			keyrings[id] = client.Keyring()
			provider = client
		case llm.ProviderAnthropic:
			provider = NewAnthropicClient(cfg, logger)
		case llm.ProviderOpenAI:
			provider = NewOpenAIClient(cfg, logger)
		case llm.ProviderOllama:
			client, err := NewOllamaClient(cfg, logger)
			if err != nil {
				return nil, fmt.Errorf("failed to build ollama client: %w", err)
			}
			provider = client
		default:
			return nil, fmt.Errorf("unknown provider %q in priority list", id)
		}

		manager.Register(id, llm.NewRetryClient(provider, policy, logger))
	}

	if def := cfg.Providers.Default; def != "" {
		if _, ok := manager.Get(def); ok {
			if err := manager.SetDefault(def); err != nil {
				return nil, err
			}
		}
	}
	return keyrings, nil
}
