package completion

import (
	"errors"
	"fmt"

	"diet-cookbook/pkg/config"
)

// Supported providers.
const (
	ProviderOpenAI = "openai"
	ProviderClaude = "claude"
)

// Config holds configuration for a completion provider.
type Config struct {
	// Provider selects the adapter: "openai" or "claude".
	Provider string

	// APIKey authenticates against the provider.
	APIKey string

	// Model is the provider model identifier.
	Model string

	// MaxTokens is the maximum number of tokens for the response.
	MaxTokens int

	// BaseURL overrides the provider endpoint. Empty uses the SDK default.
	BaseURL string
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Provider != ProviderOpenAI && c.Provider != ProviderClaude {
		return fmt.Errorf("completion: unsupported provider %q", c.Provider)
	}
	if c.APIKey == "" {
		return errors.New("completion: api key cannot be empty")
	}
	if c.Model == "" {
		return errors.New("completion: model cannot be empty")
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("completion: max tokens must be positive, got %d", c.MaxTokens)
	}
	return nil
}

// LoadConfig loads the provider configuration from environment variables.
//
// Environment variables:
//   - AI_PROVIDER: "openai" (default) or "claude"
//   - OPENAI_API_KEY / ANTHROPIC_API_KEY: API key of the selected provider
//   - OPENAI_MODEL (default: gpt-4o, vision capable) / ANTHROPIC_MODEL
//   - AI_MAX_TOKENS: response token limit (default: 1024)
//   - AI_BASE_URL: optional endpoint override
func LoadConfig() (Config, error) {
	cfg := Config{
		Provider:  config.GetEnvString("AI_PROVIDER", ProviderOpenAI),
		MaxTokens: config.GetEnvInt("AI_MAX_TOKENS", 1024),
		BaseURL:   config.GetEnvString("AI_BASE_URL", ""),
	}

	switch cfg.Provider {
	case ProviderClaude:
		cfg.APIKey = config.GetEnvString("ANTHROPIC_API_KEY", "")
		cfg.Model = config.GetEnvString("ANTHROPIC_MODEL", defaultClaudeModel)
	default:
		cfg.APIKey = config.GetEnvString("OPENAI_API_KEY", "")
		cfg.Model = config.GetEnvString("OPENAI_MODEL", "gpt-4o")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid completion configuration: %w", err)
	}
	return cfg, nil
}
