package ai

import (
	"context"
	"testing"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name         string
		cfg          ProviderConfig
		wantErr      bool
		wantProvider string
	}{
		{
			name:         "anthropic",
			cfg:          ProviderConfig{Type: ProviderAnthropic, AnthropicAPIKey: "sk-ant-test", ClaudeModel: "claude-sonnet-4-5", TimeoutSeconds: 30, MaxTokens: 400},
			wantProvider: "Anthropic",
		},
		{
			name:    "anthropic without key",
			cfg:     ProviderConfig{Type: ProviderAnthropic},
			wantErr: true,
		},
		{
			name:         "ollama",
			cfg:          ProviderConfig{Type: ProviderOllama, OllamaModel: "llama3.3:latest"},
			wantProvider: "Ollama",
		},
		{
			name:    "ollama without model",
			cfg:     ProviderConfig{Type: ProviderOllama},
			wantErr: true,
		},
		{
			name:         "lmstudio",
			cfg:          ProviderConfig{Type: ProviderLMStudio},
			wantProvider: "LMStudio",
		},
		{
			name:         "gemini",
			cfg:          ProviderConfig{Type: ProviderGemini, GeminiAPIKey: "test-key"},
			wantProvider: "Gemini",
		},
		{
			name:    "unknown",
			cfg:     ProviderConfig{Type: "openai"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewProvider(context.Background(), tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewProvider() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if provider.GetProviderName() != tt.wantProvider {
				t.Errorf("GetProviderName() = %s, want %s", provider.GetProviderName(), tt.wantProvider)
			}
		})
	}
}

func TestStatsAdd(t *testing.T) {
	total := &Stats{}
	total.Add(&Stats{Provider: "Ollama", Model: "llama3.3", InputTokens: 10, OutputTokens: 5, DurationSeconds: 1})
	total.Add(&Stats{Provider: "Other", InputTokens: 20, OutputTokens: 7, CostUSD: 0.5, DurationSeconds: 2})
	total.Add(nil)

	if total.Provider != "Ollama" || total.Model != "llama3.3" {
		t.Errorf("Provider/Model = %s/%s, want Ollama/llama3.3", total.Provider, total.Model)
	}
	if total.InputTokens != 30 || total.OutputTokens != 12 {
		t.Errorf("tokens = %d/%d, want 30/12", total.InputTokens, total.OutputTokens)
	}
	if total.CostUSD != 0.5 || total.DurationSeconds != 3 {
		t.Errorf("cost/duration = %v/%v", total.CostUSD, total.DurationSeconds)
	}
}

func TestIsValidProviderType(t *testing.T) {
	for _, pt := range ValidProviderTypes() {
		if !IsValidProviderType(string(pt)) {
			t.Errorf("IsValidProviderType(%q) = false", pt)
		}
	}
	if IsValidProviderType("openai") {
		t.Error("IsValidProviderType(openai) = true")
	}
}
