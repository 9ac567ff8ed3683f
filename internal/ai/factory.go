package ai

import (
	"context"
	"fmt"
)

// ProviderConfig selects and configures an LLM provider.
type ProviderConfig struct {
	Type           ProviderType
	TimeoutSeconds int
	MaxTokens      int

	AnthropicAPIKey string
	ClaudeModel     string
	ProxyURL        string

	OllamaBaseURL string
	OllamaModel   string

	LMStudioBaseURL string
	LMStudioModel   string

	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string
}

// NewProvider creates the provider named by cfg.Type.
func NewProvider(ctx context.Context, cfg ProviderConfig) (Provider, error) {
	switch cfg.Type {
	case ProviderAnthropic:
		return NewAnthropicClient(AnthropicConfig{
			APIKey:         cfg.AnthropicAPIKey,
			Model:          cfg.ClaudeModel,
			ProxyURL:       cfg.ProxyURL,
			TimeoutSeconds: cfg.TimeoutSeconds,
			MaxTokens:      cfg.MaxTokens,
		})

	case ProviderOllama:
		return NewOllamaClient(OllamaConfig{
			BaseURL:        cfg.OllamaBaseURL,
			Model:          cfg.OllamaModel,
			TimeoutSeconds: cfg.TimeoutSeconds,
			MaxTokens:      cfg.MaxTokens,
		})

	case ProviderLMStudio:
		return NewLMStudioClient(LMStudioConfig{
			BaseURL:        cfg.LMStudioBaseURL,
			Model:          cfg.LMStudioModel,
			TimeoutSeconds: cfg.TimeoutSeconds,
			MaxTokens:      cfg.MaxTokens,
		})

	case ProviderGemini:
		return NewGeminiClient(ctx, GeminiConfig{
			APIKey:         cfg.GeminiAPIKey,
			Model:          cfg.GeminiModel,
			BaseURL:        cfg.GeminiBaseURL,
			ProxyURL:       cfg.ProxyURL,
			TimeoutSeconds: cfg.TimeoutSeconds,
			MaxTokens:      cfg.MaxTokens,
		})

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q (valid: %v)", cfg.Type, ValidProviderTypes())
	}
}
