package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load reads so the host environment does
// not leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"GEMINI_API_KEY", "GOOGLE_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "OPENROUTER_API_KEY",
		"DENTAI_GEMINI_API_KEY", "DENTAI_EVALUATOR_GEMINI_API_KEY", "DENTAI_EVALUATOR_LLM_PROVIDER",
		"DENTAI_STATE_BACKEND", "DENTAI_REDIS_URL",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "data/cases.json", cfg.CasesPath)
	assert.Equal(t, "data/rules.yaml", cfg.RulesPath)
	assert.Equal(t, BackendSQLite, cfg.State.Backend)
	assert.False(t, cfg.Debug)
	assert.Empty(t, cfg.State.RedisURL)
	assert.Equal(t, "dentai", cfg.State.RedisPrefix)
	assert.Equal(t, 24*time.Hour, cfg.State.TTL)
	assert.False(t, cfg.LLM.HasCredentials())
	assert.False(t, cfg.Evaluator.HasCredentials())
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("DENTAI_CASES_PATH", "/srv/cases.json")
	t.Setenv("DENTAI_DEBUG", "yes")
	t.Setenv("DENTAI_REDIS_URL", "redis://localhost:6379/2")
	t.Setenv("DENTAI_STATE_TTL", "90m")
	t.Setenv("DENTAI_LLM_PROVIDER", "openai")
	t.Setenv("DENTAI_OPENAI_API_KEY", "sk-test")
	t.Setenv("DENTAI_EVALUATOR_LLM_PROVIDER", "anthropic")
	t.Setenv("DENTAI_EVALUATOR_ANTHROPIC_API_KEY", "ak-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "/srv/cases.json", cfg.CasesPath)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "redis://localhost:6379/2", cfg.State.RedisURL)
	assert.Equal(t, BackendRedis, cfg.State.Backend)
	assert.Equal(t, 90*time.Minute, cfg.State.TTL)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "sk-test", cfg.LLM.OpenAI.APIKey)
	assert.Equal(t, "anthropic", cfg.Evaluator.Provider)
	assert.Equal(t, "ak-test", cfg.Evaluator.Anthropic.APIKey)
}

func TestLoad_DiscoversStandardKeys(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-standard")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.True(t, cfg.LLM.HasCredentials())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"empty port", "PORT", ""},
		{"empty cases path", "DENTAI_CASES_PATH", ""},
		{"negative ttl", "DENTAI_STATE_TTL", "-5m"},
		{"unknown state backend", "DENTAI_STATE_BACKEND", "etcd"},
		{"redis without url", "DENTAI_STATE_BACKEND", "redis"},
		{"unknown provider", "DENTAI_LLM_PROVIDER", "palm"},
		{"unknown evaluator provider", "DENTAI_EVALUATOR_LLM_PROVIDER", "palm"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		val  string
		want time.Duration
	}{
		{"2h", 2 * time.Hour},
		{"3600", time.Hour},
		{"0", 0},
		{"soon", time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.val, func(t *testing.T) {
			t.Setenv("DENTAI_TEST_DURATION", tt.val)
			assert.Equal(t, tt.want, getEnvDuration("DENTAI_TEST_DURATION", time.Minute))
		})
	}
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("DENTAI_TEST_BOOL", "maybe")
	assert.True(t, getEnvBool("DENTAI_TEST_BOOL", true))
	t.Setenv("DENTAI_TEST_BOOL", "off")
	assert.False(t, getEnvBool("DENTAI_TEST_BOOL", true))
}
