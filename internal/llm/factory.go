package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// NewProvider creates a Provider from configuration, wrapped with the
// timeout, retry and logging middleware. The "offline" provider and a
// provider without credentials both return ErrNotConfigured.
func NewProvider(ctx context.Context, cfg Config, events EventRecorder, logger *zap.Logger) (Provider, error) {
	if cfg.Provider == "offline" || !cfg.HasCredentials() {
		return nil, fmt.Errorf("%s: %w", cfg.Provider, ErrNotConfigured)
	}

	var base Provider
	var err error

	switch cfg.Provider {
	case "anthropic":
		base, err = NewAnthropicProvider(cfg.Anthropic)
	case "openai":
		base, err = NewOpenAIProvider(cfg.OpenAI)
	case "openrouter":
		base, err = NewOpenRouterProvider(cfg.OpenRouter)
	case "gemini":
		base, err = NewGeminiProvider(ctx, cfg.Gemini)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}

	// caller → timeout → retry → logging → base
	logged := WithLogging(base, cfg.Provider, events, logger)
	retried := WithRetry(logged, cfg.Retry)
	return WithTimeout(retried, cfg.Timeout), nil
}
