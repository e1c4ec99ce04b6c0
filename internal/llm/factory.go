package llm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/scrypster/disambig/internal/config"
)

// NewTextGenerator creates the TextGenerator selected by cfg.Provider.
// It returns (nil, nil) for provider "none" so callers fall back to search scores.
func NewTextGenerator(cfg config.LLMConfig, logger *zap.Logger) (TextGenerator, error) {
	breaker := func(name string) *CircuitBreaker {
		c := DefaultCircuitBreakerConfig()
		c.Name = name
		c.Logger = logger
		return NewCircuitBreakerWithConfig(c)
	}

	switch cfg.Provider {
	case "none", "":
		return nil, nil
	case "openai":
		return NewOpenAIClient(OpenAIConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
			Breaker: breaker("openai"),
		}), nil
	case "anthropic":
		return NewAnthropicClient(AnthropicConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
			Breaker: breaker("anthropic"),
		}), nil
	case "ollama":
		return NewOllamaClient(OllamaConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
			Breaker: breaker("ollama"),
		}), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", cfg.Provider)
	}
}
