package llm

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds all LLM provider configuration.
type Config struct {
	// Provider selects which LLM provider to use.
	// Values: "gemini", "openai", "openrouter", "anthropic", "offline"
	Provider string

	Anthropic  AnthropicConfig
	OpenAI     OpenAIConfig
	Gemini     GeminiConfig
	OpenRouter OpenRouterConfig
	Retry      RetryConfig

	// Timeout bounds a single request including retries. Default: 20s.
	Timeout time.Duration
}

// AnthropicConfig holds Anthropic-specific configuration.
type AnthropicConfig struct {
	APIKey string
	Model  string // Default: "claude-haiku"
}

// OpenAIConfig holds OpenAI-specific configuration.
type OpenAIConfig struct {
	APIKey  string
	Model   string // Default: "gpt-4o-mini"
	BaseURL string // Optional. Override for compatible APIs.
}

// GeminiConfig holds Gemini-specific configuration.
type GeminiConfig struct {
	APIKey string
	Model  string // Default: "gemini-flash-lite"
}

// OpenRouterConfig holds OpenRouter-specific configuration.
type OpenRouterConfig struct {
	APIKey  string
	Model   string // Default: "google/gemini-2.5-flash-lite"
	BaseURL string // Default: "https://openrouter.ai/api/v1"
}

// RetryConfig configures retry behavior for transient failures.
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

// DefaultConfig returns a Config with sensible defaults. Retries are off:
// a turn degrades rather than waits.
func DefaultConfig() Config {
	return Config{
		Provider: "gemini",
		Anthropic: AnthropicConfig{
			Model: "claude-haiku",
		},
		OpenAI: OpenAIConfig{
			Model: "gpt-4o-mini",
		},
		Gemini: GeminiConfig{
			Model: "gemini-flash-lite",
		},
		OpenRouter: OpenRouterConfig{
			Model: "google/gemini-2.5-flash-lite",
		},
		Retry: RetryConfig{
			MaxAttempts: 1,
			InitialWait: 500 * time.Millisecond,
			MaxWait:     5 * time.Second,
			Multiplier:  2.0,
		},
		Timeout: 20 * time.Second,
	}
}

// ConfigFromEnv builds a Config from DENTAI_* environment variables,
// falling back to defaults for unset values.
func ConfigFromEnv() Config {
	return ConfigFromEnvPrefix("DENTAI")
}

// ConfigFromEnvPrefix is ConfigFromEnv with a custom variable prefix, so a
// second provider (the clinical validator) can be configured independently.
func ConfigFromEnvPrefix(prefix string) Config {
	cfg := DefaultConfig()
	env := func(name string) string {
		return os.Getenv(prefix + "_" + name)
	}

	if p := env("LLM_PROVIDER"); p != "" {
		cfg.Provider = strings.ToLower(p)
	}

	if k := env("ANTHROPIC_API_KEY"); k != "" {
		cfg.Anthropic.APIKey = k
	}
	if m := env("ANTHROPIC_MODEL"); m != "" {
		cfg.Anthropic.Model = m
	}

	if k := env("OPENAI_API_KEY"); k != "" {
		cfg.OpenAI.APIKey = k
	}
	if m := env("OPENAI_MODEL"); m != "" {
		cfg.OpenAI.Model = m
	}
	if u := env("OPENAI_BASE_URL"); u != "" {
		cfg.OpenAI.BaseURL = u
	}

	if k := env("GEMINI_API_KEY"); k != "" {
		cfg.Gemini.APIKey = k
	}
	if m := env("GEMINI_MODEL"); m != "" {
		cfg.Gemini.Model = m
	}

	if k := env("OPENROUTER_API_KEY"); k != "" {
		cfg.OpenRouter.APIKey = k
	}
	if m := env("OPENROUTER_MODEL"); m != "" {
		cfg.OpenRouter.Model = m
	}

	if d, err := time.ParseDuration(env("LLM_TIMEOUT")); err == nil && d > 0 {
		cfg.Timeout = d
	}
	if n := env("LLM_MAX_ATTEMPTS"); n != "" {
		var attempts int
		if _, err := fmt.Sscanf(n, "%d", &attempts); err == nil && attempts > 0 {
			cfg.Retry.MaxAttempts = attempts
		}
	}

	return cfg
}

// DiscoverConfig probes standard API key env vars in priority order
// (Gemini → OpenAI → Anthropic → OpenRouter) and returns a Config for the
// first provider whose key is found. Returns (Config{}, false) if none found.
func DiscoverConfig() (Config, bool) {
	cfg := DefaultConfig()

	if k := firstEnv("GEMINI_API_KEY", "GOOGLE_API_KEY"); k != "" {
		cfg.Provider = "gemini"
		cfg.Gemini.APIKey = k
		return cfg, true
	}
	if k := os.Getenv("OPENAI_API_KEY"); k != "" {
		cfg.Provider = "openai"
		cfg.OpenAI.APIKey = k
		return cfg, true
	}
	if k := os.Getenv("ANTHROPIC_API_KEY"); k != "" {
		cfg.Provider = "anthropic"
		cfg.Anthropic.APIKey = k
		return cfg, true
	}
	if k := os.Getenv("OPENROUTER_API_KEY"); k != "" {
		cfg.Provider = "openrouter"
		cfg.OpenRouter.APIKey = k
		return cfg, true
	}

	return Config{}, false
}

// HasCredentials reports whether the selected provider has an API key.
func (c Config) HasCredentials() bool {
	switch c.Provider {
	case "anthropic":
		return c.Anthropic.APIKey != ""
	case "openai":
		return c.OpenAI.APIKey != ""
	case "gemini":
		return c.Gemini.APIKey != ""
	case "openrouter":
		return c.OpenRouter.APIKey != ""
	}
	return false
}

// Validate checks that the selected provider has its required API key set.
func (c Config) Validate() error {
	switch c.Provider {
	case "anthropic", "openai", "gemini", "openrouter":
		if !c.HasCredentials() {
			return fmt.Errorf("DENTAI_%s_API_KEY is required for the %s provider",
				strings.ToUpper(c.Provider), c.Provider)
		}
	case "offline":
		// No API key needed.
	default:
		return fmt.Errorf("unknown LLM provider: %q", c.Provider)
	}
	return nil
}

func firstEnv(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}
