package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/modelmux/modelmux/llm"
)

func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"GEMINI_API_KEY", "GEMINI_API_KEY_1", "GEMINI_API_KEY_2", "GEMINI_API_KEY_3",
		"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_ORG_ID",
		"OPENAI_MODEL", "OLLAMA_HOST", "OLLAMA_MODEL", "LOG_LEVEL",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadServerConfigDefaults(t *testing.T) {
	clearProviderEnv(t)

	cfg, err := LoadServerConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("missing config file must not fail: %v", err)
	}
	if cfg.API.Port != 8000 {
		t.Errorf("expected api port 8000, got %d", cfg.API.Port)
	}
	if cfg.Preview.Port != 8080 {
		t.Errorf("expected preview port 8080, got %d", cfg.Preview.Port)
	}
	if cfg.Workspace.Path != "./workspaces" {
		t.Errorf("expected default workspace path, got %q", cfg.Workspace.Path)
	}
	if cfg.Providers.Retry.MaxAttempts != 3 || cfg.Providers.Retry.BaseDelaySeconds != 1 {
		t.Errorf("unexpected retry defaults: %+v", cfg.Providers.Retry)
	}
	if cfg.Providers.Default != llm.ProviderGemini {
		t.Errorf("expected gemini default, got %q", cfg.Providers.Default)
	}
	if cfg.Providers.KeyStrategy != "load_balance" {
		t.Errorf("expected load_balance strategy, got %q", cfg.Providers.KeyStrategy)
	}
}

func TestLoadServerConfigFileOverrides(t *testing.T) {
	clearProviderEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
api:
  port: 9000
providers:
  default: anthropic
  retry:
    max_attempts: 5
    base_delay_seconds: 2
  anthropic:
    api_key: sk-ant-from-file
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadServerConfig(path)
	if err != nil {
		t.Fatalf("LoadServerConfig: %v", err)
	}
	if cfg.API.Port != 9000 {
		t.Errorf("file override lost, port=%d", cfg.API.Port)
	}
	// Untouched sections keep their defaults.
	if cfg.API.Host != "localhost" {
		t.Errorf("default host lost, got %q", cfg.API.Host)
	}
	if cfg.Providers.Default != llm.ProviderAnthropic {
		t.Errorf("expected anthropic default, got %q", cfg.Providers.Default)
	}
	if got := cfg.Providers.Retry.Policy(); got.MaxAttempts != 5 || got.BaseDelay != 2*time.Second {
		t.Errorf("unexpected retry policy %+v", got)
	}
	if cfg.Providers.Anthropic.APIKey != "sk-ant-from-file" {
		t.Errorf("api key lost, got %q", cfg.Providers.Anthropic.APIKey)
	}
}

func TestLoadServerConfigMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("api: [broken"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadServerConfig(path); err == nil {
		t.Error("malformed config must fail loudly")
	}
}

func TestEnvOverrides(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-env")
	t.Setenv("OPENAI_API_KEY", "sk-oai-env")
	t.Setenv("OPENAI_BASE_URL", "http://localhost:1234/v1")
	t.Setenv("OLLAMA_HOST", "ollama.lan:11434")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadServerConfig("")
	if err != nil {
		t.Fatalf("LoadServerConfig: %v", err)
	}
	if cfg.Providers.Anthropic.APIKey != "sk-ant-env" {
		t.Errorf("anthropic env override lost: %q", cfg.Providers.Anthropic.APIKey)
	}
	if cfg.Providers.OpenAI.APIKey != "sk-oai-env" || cfg.Providers.OpenAI.BaseURL != "http://localhost:1234/v1" {
		t.Errorf("openai env overrides lost: %+v", cfg.Providers.OpenAI)
	}
	if cfg.Providers.Ollama.Host != "ollama.lan:11434" {
		t.Errorf("ollama env override lost: %q", cfg.Providers.Ollama.Host)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level env override lost: %q", cfg.Logging.Level)
	}
}

func TestNumberedGeminiKeys(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("GEMINI_API_KEY", "g0")
	t.Setenv("GEMINI_API_KEY_1", "g1")
	t.Setenv("GEMINI_API_KEY_2", "g2")

	cfg, err := LoadServerConfig("")
	if err != nil {
		t.Fatalf("LoadServerConfig: %v", err)
	}
	want := []string{"g0", "g1", "g2"}
	if len(cfg.Providers.Gemini.APIKeys) != len(want) {
		t.Fatalf("expected %v, got %v", want, cfg.Providers.Gemini.APIKeys)
	}
	for i, w := range want {
		if cfg.Providers.Gemini.APIKeys[i] != w {
			t.Errorf("key %d: expected %q, got %q", i, w, cfg.Providers.Gemini.APIKeys[i])
		}
	}
}

func TestRegisterProviders(t *testing.T) {
	clearProviderEnv(t)

	cfg := DefaultServerConfig()
	cfg.Providers.Priority = []string{llm.ProviderAnthropic, llm.ProviderOpenAI}
	cfg.Providers.Default = llm.ProviderAnthropic
	cfg.Providers.Anthropic.APIKey = "sk-ant-test"
	// OpenAI has no key; its adapter reports unavailable and the manager
	// rejects it.

	m := llm.NewManager(zerolog.Nop())
	keyrings, err := RegisterProviders(m, &cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("RegisterProviders: %v", err)
	}
	if len(keyrings) != 0 {
		t.Errorf("expected no keyrings for keyless providers, got %v", keyrings)
	}

	providers := m.Providers()
	if len(providers) != 1 || providers[0] != llm.ProviderAnthropic {
		t.Errorf("expected only anthropic registered, got %v", providers)
	}
	if m.Default() != llm.ProviderAnthropic {
		t.Errorf("expected anthropic default, got %q", m.Default())
	}
}

func TestRegisterProvidersReturnsGeminiKeyring(t *testing.T) {
	clearProviderEnv(t)

	cfg := DefaultServerConfig()
	cfg.Providers.Priority = []string{llm.ProviderGemini}
	cfg.Providers.Gemini.APIKeys = []string{"g0", "g1"}

	m := llm.NewManager(zerolog.Nop())
	keyrings, err := RegisterProviders(m, &cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("RegisterProviders: %v", err)
	}
	ring, ok := keyrings[llm.ProviderGemini]
	if !ok || ring.Len() != 2 {
		t.Fatalf("expected a 2-key gemini keyring, got %v", keyrings)
	}
}

func TestRegisterProvidersUnknownID(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.Providers.Priority = []string{"mistral"}

	m := llm.NewManager(zerolog.Nop())
	if _, err := RegisterProviders(m, &cfg, zerolog.Nop()); err == nil {
		t.Error("unknown provider id must fail")
	}
}
