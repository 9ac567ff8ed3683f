package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	internalerrors "github.com/olegiv/crashlens-ai-go/internal/errors"
	"google.golang.org/genai"
)

// GeminiClient wraps the Google Gen AI client for the Gemini API backend.
type GeminiClient struct {
	cli       *genai.Client
	model     string
	maxTokens int
}

// GeminiConfig holds Gemini-specific configuration
type GeminiConfig struct {
	APIKey         string
	Model          string // e.g., "gemini-2.5-flash"
	BaseURL        string // optional endpoint override
	ProxyURL       string // optional http(s) proxy
	TimeoutSeconds int
	MaxTokens      int
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 400
	}

	httpClient, err := proxiedHTTPClient(cfg.ProxyURL, cfg.TimeoutSeconds)
	if err != nil {
		return nil, err
	}

	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		},
	})
	if err != nil {
		return nil, internalerrors.Wrapf(err, "failed to create Gemini client")
	}

	return &GeminiClient{cli: cli, model: cfg.Model, maxTokens: cfg.MaxTokens}, nil
}

// Complete implements Provider.Complete.
func (g *GeminiClient) Complete(ctx context.Context, req CompletionRequest) (string, *Stats, error) {
	startTime := time.Now()

	resp, err := retryWithBackoff(ctx, defaultMaxRetries, func() (*genai.GenerateContentResponse, error) {
		return g.callAPI(ctx, req)
	})
	if err != nil {
		return "", nil, err
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil, fmt.Errorf("empty response from Gemini (no candidates)")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && !part.Thought {
			text.WriteString(part.Text)
		}
	}
	if text.Len() == 0 {
		return "", nil, fmt.Errorf("empty response from Gemini")
	}

	return text.String(), g.calculateStats(resp, time.Since(startTime).Seconds()), nil
}

func (g *GeminiClient) callAPI(ctx context.Context, req CompletionRequest) (*genai.GenerateContentResponse, error) {
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}

	temperature := float32(defaultTemperature)
	config := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: int32(maxTokensFor(req, g.maxTokens)),
	}
	if req.SystemPrompt != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.SystemPrompt}}}
	}

	resp, err := g.cli.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return nil, internalerrors.Wrapf(err, "API call failed")
	}
	return resp, nil
}

func (g *GeminiClient) calculateStats(resp *genai.GenerateContentResponse, durationSeconds float64) *Stats {
	stats := &Stats{
		Provider:        g.GetProviderName(),
		Model:           g.model,
		DurationSeconds: durationSeconds,
	}
	if u := resp.UsageMetadata; u != nil {
		stats.CacheReadTokens = int(u.CachedContentTokenCount)
		stats.InputTokens = int(u.PromptTokenCount) - stats.CacheReadTokens
		stats.OutputTokens = int(u.CandidatesTokenCount)
	}
	price(stats)
	return stats
}

// GetModelInfo returns information about the configured model
func (g *GeminiClient) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"model":         g.model,
		"provider":      "Gemini",
		"max_tokens":    g.maxTokens,
		"context_limit": 1000000,
	}
}

// GetProviderName returns the name of the provider
func (g *GeminiClient) GetProviderName() string {
	return "Gemini"
}

// Ensure GeminiClient implements Provider interface
var _ Provider = (*GeminiClient)(nil)
