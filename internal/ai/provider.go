package ai

import (
	"context"
	"slices"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation sent to a provider.
type Message struct {
	Role    Role
	Content string
}

// CompletionRequest is a provider-neutral chat completion request.
type CompletionRequest struct {
	SystemPrompt string
	Messages     []Message
	MaxTokens    int // 0 uses the provider's configured default
}

// Provider is an LLM backend that can continue a conversation.
type Provider interface {
	// Complete generates the next assistant message for the conversation.
	Complete(ctx context.Context, req CompletionRequest) (string, *Stats, error)

	// GetModelInfo describes the model for /status: name, provider, token limits.
	GetModelInfo() map[string]interface{}

	// GetProviderName is the display name used in logs and stats.
	GetProviderName() string
}

// ProviderType is the LLM_PROVIDER setting.
type ProviderType string

const (
	ProviderAnthropic ProviderType = "anthropic"
	ProviderOllama    ProviderType = "ollama"
	ProviderLMStudio  ProviderType = "lmstudio"
	ProviderGemini    ProviderType = "gemini"
)

// ValidProviderTypes lists the accepted LLM_PROVIDER values.
func ValidProviderTypes() []ProviderType {
	return []ProviderType{ProviderAnthropic, ProviderOllama, ProviderLMStudio, ProviderGemini}
}

// IsValidProviderType reports whether pt is one of ValidProviderTypes.
func IsValidProviderType(pt string) bool {
	return slices.Contains(ValidProviderTypes(), ProviderType(pt))
}

// Stats is the usage of one completion, or a sum of several.
type Stats struct {
	Provider            string
	Model               string
	InputTokens         int
	OutputTokens        int
	CacheCreationTokens int
	CacheReadTokens     int
	CostUSD             float64
	DurationSeconds     float64
}

// Add accumulates token counts, cost and duration from other.
func (s *Stats) Add(other *Stats) {
	if other == nil {
		return
	}
	if s.Provider == "" {
		s.Provider = other.Provider
		s.Model = other.Model
	}
	s.InputTokens += other.InputTokens
	s.OutputTokens += other.OutputTokens
	s.CacheCreationTokens += other.CacheCreationTokens
	s.CacheReadTokens += other.CacheReadTokens
	s.CostUSD += other.CostUSD
	s.DurationSeconds += other.DurationSeconds
}

// maxTokensFor returns the request budget, falling back to the configured default.
func maxTokensFor(req CompletionRequest, fallback int) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return fallback
}
