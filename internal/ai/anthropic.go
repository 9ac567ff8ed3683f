package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	internalerrors "github.com/olegiv/crashlens-ai-go/internal/errors"
)

// defaultTemperature keeps debugging answers focused while allowing some phrasing variety.
const defaultTemperature = 0.3

// AnthropicClient talks to the Claude Messages API.
type AnthropicClient struct {
	api       *anthropic.Client
	model     string
	maxTokens int
}

// AnthropicConfig holds Anthropic-specific configuration.
type AnthropicConfig struct {
	APIKey         string
	Model          string
	ProxyURL       string // optional http(s) proxy
	BaseURL        string // optional endpoint override
	TimeoutSeconds int
	MaxTokens      int
}

// NewAnthropicClient creates a Claude client.
func NewAnthropicClient(cfg AnthropicConfig) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-5"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 400
	}

	httpClient, err := proxiedHTTPClient(cfg.ProxyURL, cfg.TimeoutSeconds)
	if err != nil {
		return nil, err
	}
	api := anthropic.NewClient(cfg.APIKey, anthropic.WithHTTPClient(httpClient))
	if cfg.BaseURL != "" {
		api = anthropic.NewClient(cfg.APIKey,
			anthropic.WithHTTPClient(httpClient),
			anthropic.WithBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")))
	}

	return &AnthropicClient{
		api:       api,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}, nil
}

// Complete implements Provider.Complete.
func (c *AnthropicClient) Complete(ctx context.Context, req CompletionRequest) (string, *Stats, error) {
	start := time.Now()

	resp, err := retryWithBackoff(ctx, defaultMaxRetries, func() (anthropic.MessagesResponse, error) {
		r, err := c.api.CreateMessages(ctx, c.buildRequest(req))
		if err != nil {
			return r, internalerrors.Wrapf(err, "API call failed")
		}
		return r, nil
	})
	if err != nil {
		return "", nil, err
	}

	var b strings.Builder
	for _, part := range resp.Content {
		if part.Type == "text" && part.Text != nil {
			b.WriteString(*part.Text)
		}
	}
	text := b.String()
	if strings.TrimSpace(text) == "" {
		return "", nil, fmt.Errorf("empty response from Claude")
	}

	stats := &Stats{
		Provider:            c.GetProviderName(),
		Model:               c.model,
		InputTokens:         resp.Usage.InputTokens,
		OutputTokens:        resp.Usage.OutputTokens,
		CacheCreationTokens: resp.Usage.CacheCreationInputTokens,
		CacheReadTokens:     resp.Usage.CacheReadInputTokens,
		DurationSeconds:     time.Since(start).Seconds(),
	}
	price(stats)
	return text, stats, nil
}

func (c *AnthropicClient) buildRequest(req CompletionRequest) anthropic.MessagesRequest {
	messages := make([]anthropic.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := anthropic.RoleUser
		if m.Role == RoleAssistant {
			role = anthropic.RoleAssistant
		}
		messages = append(messages, anthropic.Message{
			Role:    role,
			Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(m.Content)},
		})
	}

	temperature := float32(defaultTemperature)
	return anthropic.MessagesRequest{
		Model:       anthropic.Model(c.model),
		Messages:    messages,
		System:      req.SystemPrompt,
		MaxTokens:   maxTokensFor(req, c.maxTokens),
		Temperature: &temperature,
	}
}

// GetModelInfo returns information about the configured model
func (c *AnthropicClient) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"model":         c.model,
		"provider":      c.GetProviderName(),
		"max_tokens":    c.maxTokens,
		"context_limit": 200000,
	}
}

// GetProviderName returns the name of the provider
func (c *AnthropicClient) GetProviderName() string {
	return "Anthropic"
}

var _ Provider = (*AnthropicClient)(nil)
