// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/abhisek/dentai/internal/llm"
)

// Config holds all application configuration.
type Config struct {
	Port      string
	CasesPath string
	RulesPath string
	Debug     bool

	State StateConfig

	// LLM drives interpretation and roleplay.
	LLM llm.Config
	// Evaluator drives the second evaluator, configured independently.
	Evaluator llm.Config
}

// State backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// StateConfig selects where learner state lives.
type StateConfig struct {
	// Backend is memory, sqlite or redis. Empty picks redis when RedisURL
	// is set and sqlite otherwise.
	Backend     string
	RedisURL    string
	RedisPrefix string
	TTL         time.Duration
}

// Load reads configuration from environment variables. A .env file in the
// working directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:      getEnv("PORT", "8080"),
		CasesPath: getEnv("DENTAI_CASES_PATH", "data/cases.json"),
		RulesPath: getEnv("DENTAI_RULES_PATH", "data/rules.yaml"),
		Debug:     getEnvBool("DENTAI_DEBUG", false),
		State: StateConfig{
			Backend:     strings.ToLower(getEnv("DENTAI_STATE_BACKEND", "")),
			RedisURL:    getEnv("DENTAI_REDIS_URL", ""),
			RedisPrefix: getEnv("DENTAI_REDIS_PREFIX", "dentai"),
			TTL:         getEnvDuration("DENTAI_STATE_TTL", 24*time.Hour),
		},
		LLM:       primaryLLMConfig(),
		Evaluator: llm.ConfigFromEnvPrefix("DENTAI_EVALUATOR"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// primaryLLMConfig honours DENTAI_LLM_PROVIDER when set and otherwise
// probes the standard vendor key variables.
func primaryLLMConfig() llm.Config {
	if _, ok := os.LookupEnv("DENTAI_LLM_PROVIDER"); ok {
		return llm.ConfigFromEnv()
	}
	if cfg, ok := llm.DiscoverConfig(); ok {
		return cfg
	}
	return llm.ConfigFromEnv()
}

// Validate checks that all required configuration fields are set and picks
// the state backend when none was named. Missing
// model credentials are not an error; those capabilities run degraded.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.CasesPath == "" {
		return fmt.Errorf("DENTAI_CASES_PATH cannot be empty")
	}
	if c.RulesPath == "" {
		return fmt.Errorf("DENTAI_RULES_PATH cannot be empty")
	}
	if c.State.Backend == "" {
		c.State.Backend = BackendSQLite
		if c.State.RedisURL != "" {
			c.State.Backend = BackendRedis
		}
	}
	switch c.State.Backend {
	case BackendMemory, BackendSQLite:
	case BackendRedis:
		if c.State.RedisURL == "" {
			return fmt.Errorf("DENTAI_REDIS_URL is required for the redis state backend")
		}
	default:
		return fmt.Errorf("unknown state backend: %q", c.State.Backend)
	}
	if c.State.TTL < 0 {
		return fmt.Errorf("DENTAI_STATE_TTL cannot be negative")
	}
	if !knownProvider(c.LLM.Provider) {
		return fmt.Errorf("unknown LLM provider: %q", c.LLM.Provider)
	}
	if !knownProvider(c.Evaluator.Provider) {
		return fmt.Errorf("unknown evaluator provider: %q", c.Evaluator.Provider)
	}
	return nil
}

func knownProvider(name string) bool {
	switch name {
	case "gemini", "openai", "openrouter", "anthropic", "offline":
		return true
	}
	return false
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// getEnvDuration accepts Go durations ("90m") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs := getEnvInt(key, -1); secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
