// Package config loads daemon configuration and constructs provider clients
// from it. Precedence is struct defaults, then the YAML file, then
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/modelmux/modelmux/llm"
)

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`  // trace, debug, info, warn, error
	File   string `yaml:"file,omitempty"`   // Log file path ("" = stdout)
	Pretty bool   `yaml:"pretty,omitempty"` // Console output when logging to stdout
}

// APIConfig controls the HTTP API listener.
type APIConfig struct {
	Host string `yaml:"host,omitempty"`
	Port int    `yaml:"port,omitempty"`
}

// PreviewConfig controls the static preview server.
type PreviewConfig struct {
	Port int `yaml:"port,omitempty"`
}

// WorkspaceConfig controls project workspace storage.
type WorkspaceConfig struct {
	Path          string `yaml:"path,omitempty"`
	CleanupOld    bool   `yaml:"cleanup_old,omitempty"`     // Scheduled removal of stale projects
	MaxAgeDays    int    `yaml:"max_age_days,omitempty"`    // Age threshold for cleanup
	CleanupCron   string `yaml:"cleanup_cron,omitempty"`    // Cron spec for the cleanup job
	KeyReportCron string `yaml:"key_report_cron,omitempty"` // Cron spec for key usage reports
}

// MemoryConfig controls the sqlite-backed application memory.
type MemoryConfig struct {
	Path string `yaml:"path,omitempty"` // Database file path
}

// RetryConfig tunes per-provider retry behavior.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts,omitempty"`
	BaseDelaySeconds int `yaml:"base_delay_seconds,omitempty"`
}

// Policy converts the config values to an llm.RetryPolicy.
func (r RetryConfig) Policy() llm.RetryPolicy {
	return llm.RetryPolicy{
		MaxAttempts: r.MaxAttempts,
		BaseDelay:   time.Duration(r.BaseDelaySeconds) * time.Second,
	}.Normalize()
}

// GeminiConfig configures the Gemini provider. Multiple API keys rotate
// through a keyring.
type GeminiConfig struct {
	APIKeys []string `yaml:"api_keys,omitempty"`
	BaseURL string   `yaml:"base_url,omitempty"`
	Model   string   `yaml:"model,omitempty"`
}

// AnthropicConfig configures the Anthropic provider.
type AnthropicConfig struct {
	APIKey string `yaml:"api_key,omitempty"`
	Model  string `yaml:"model,omitempty"`
}

// OpenAIConfig configures the OpenAI provider.
type OpenAIConfig struct {
	APIKey       string `yaml:"api_key,omitempty"`
	BaseURL      string `yaml:"base_url,omitempty"`
	Model        string `yaml:"model,omitempty"`
	Organization string `yaml:"organization,omitempty"`
}

// OllamaConfig configures the local Ollama provider.
type OllamaConfig struct {
	Host  string `yaml:"host,omitempty"`
	Model string `yaml:"model,omitempty"`
}

// ProvidersConfig configures provider registration and shared policies.
type ProvidersConfig struct {
	// Priority lists provider ids in fallback order. Unknown ids are
	// rejected at registration.
	Priority []string `yaml:"priority,omitempty"`
	Default  string   `yaml:"default,omitempty"`

	Retry           RetryConfig `yaml:"retry,omitempty"`
	KeyStrategy     string      `yaml:"key_strategy,omitempty"` // round_robin, least_used, failover, load_balance
	KeyCooldownSecs int         `yaml:"key_cooldown_seconds,omitempty"`

	Gemini    GeminiConfig    `yaml:"gemini,omitempty"`
	Anthropic AnthropicConfig `yaml:"anthropic,omitempty"`
	OpenAI    OpenAIConfig    `yaml:"openai,omitempty"`
	Ollama    OllamaConfig    `yaml:"ollama,omitempty"`
}

// KeyCooldown returns the configured cooldown as a duration.
func (p ProvidersConfig) KeyCooldown() time.Duration {
	return time.Duration(p.KeyCooldownSecs) * time.Second
}

// ServerConfig is the full daemon configuration.
type ServerConfig struct {
	Logging   LoggingConfig   `yaml:"logging,omitempty"`
	API       APIConfig       `yaml:"api,omitempty"`
	Preview   PreviewConfig   `yaml:"preview,omitempty"`
	Workspace WorkspaceConfig `yaml:"workspace,omitempty"`
	Memory    MemoryConfig    `yaml:"memory,omitempty"`
	Providers ProvidersConfig `yaml:"providers,omitempty"`
}

// DefaultServerConfig returns the built-in defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Logging: LoggingConfig{
			Level: "info",
			File:  "modelmux.log",
		},
		API: APIConfig{
			Host: "localhost",
			Port: 8000,
		},
		Preview: PreviewConfig{
			Port: 8080,
		},
		Workspace: WorkspaceConfig{
			Path:          "./workspaces",
			CleanupOld:    false,
			MaxAgeDays:    30,
			CleanupCron:   "0 3 * * *",
			KeyReportCron: "0 * * * *",
		},
		Memory: MemoryConfig{
			Path: "./modelmux.db",
		},
		Providers: ProvidersConfig{
			Priority: []string{llm.ProviderGemini, llm.ProviderAnthropic, llm.ProviderOpenAI, llm.ProviderOllama},
			Default:  llm.ProviderGemini,
			Retry: RetryConfig{
				MaxAttempts:      3,
				BaseDelaySeconds: 1,
			},
			KeyStrategy:     "load_balance",
			KeyCooldownSecs: 60,
			Gemini: GeminiConfig{
				Model: "gemini-1.5-pro",
			},
			Anthropic: AnthropicConfig{
				Model: "claude-3-sonnet-20240229",
			},
			OpenAI: OpenAIConfig{
				BaseURL: "https://api.openai.com/v1",
				Model:   "gpt-4-turbo",
			},
			Ollama: OllamaConfig{
				Host:  "http://localhost:11434",
				Model: "llama3",
			},
		},
	}
}

// GetServerConfigPath returns the config file path, honoring the
// MODELMUX_CONFIG environment variable.
func GetServerConfigPath() string {
	if envPath := os.Getenv("MODELMUX_CONFIG"); envPath != "" {
		return expandPath(envPath)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./.modelmux/config.yaml"
	}
	return filepath.Join(homeDir, ".modelmux", "config.yaml")
}

// expandPath expands a leading ~/ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// LoadServerConfig loads configuration in three layers: defaults, the YAML
// file at path (missing file is fine), then environment variables. A present
// but malformed file is an error rather than a silent fallback.
func LoadServerConfig(path string) (*ServerConfig, error) {
	cfg := DefaultServerConfig()

	if path != "" {
		data, err := os.ReadFile(expandPath(path)) //#nosec G304 -- intentional config file read
		switch {
		case err == nil:
			var fileCfg ServerConfig
			if err := yaml.Unmarshal(data, &fileCfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %q: %w", path, err)
			}
			if err := mergo.Merge(&cfg, fileCfg, mergo.WithOverride); err != nil {
				return nil, fmt.Errorf("failed to merge config %q: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("failed to read config %q: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// SaveServerConfig writes cfg to path as YAML, creating the directory.
func SaveServerConfig(cfg *ServerConfig, path string) error {
	expanded := expandPath(path)
	if err := os.MkdirAll(filepath.Dir(expanded), 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(expanded, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// applyEnvOverrides layers environment variables over the loaded config.
// Gemini keys follow the numbered scheme: GEMINI_API_KEY plus
// GEMINI_API_KEY_1, GEMINI_API_KEY_2, ... until the first gap.
func applyEnvOverrides(cfg *ServerConfig) {
	if keys := geminiKeysFromEnv(); len(keys) > 0 {
		cfg.Providers.Gemini.APIKeys = keys
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.Providers.Anthropic.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Providers.OpenAI.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.Providers.OpenAI.BaseURL = v
	}
	if v := os.Getenv("OPENAI_ORG_ID"); v != "" {
		cfg.Providers.OpenAI.Organization = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		cfg.Providers.OpenAI.Model = v
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		cfg.Providers.Ollama.Host = v
	}
	if v := os.Getenv("OLLAMA_MODEL"); v != "" {
		cfg.Providers.Ollama.Model = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

func geminiKeysFromEnv() []string {
	var keys []string
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		keys = append(keys, v)
	}
	for i := 1; ; i++ {
		v := os.Getenv(fmt.Sprintf("GEMINI_API_KEY_%d", i))
		if v == "" {
			break
		}
		keys = append(keys, v)
	}
	return keys
}
