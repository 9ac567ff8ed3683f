package ai

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// OllamaClient talks to a local Ollama server through /api/chat.
type OllamaClient struct {
	localBackend
}

// OllamaConfig holds Ollama-specific configuration
type OllamaConfig struct {
	BaseURL        string // e.g., "http://localhost:11434"
	Model          string // e.g., "llama3.3:latest"
	TimeoutSeconds int
	MaxTokens      int
}

type ollamaOptions struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
}

type ollamaChatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  ollamaOptions `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Model           string      `json:"model"`
	CreatedAt       time.Time   `json:"created_at"`
	Message         chatMessage `json:"message"`
	Done            bool        `json:"done"`
	TotalDuration   int64       `json:"total_duration,omitempty"`
	PromptEvalCount int         `json:"prompt_eval_count,omitempty"`
	EvalCount       int         `json:"eval_count,omitempty"`
}

type ollamaTags struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// NewOllamaClient creates a client. The model is required because Ollama
// has no notion of a currently loaded default.
func NewOllamaClient(cfg OllamaConfig) (*OllamaClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("ollama model is required")
	}
	return &OllamaClient{
		localBackend: newLocalBackend("Ollama", cfg.BaseURL, "http://localhost:11434", cfg.Model, cfg.TimeoutSeconds, cfg.MaxTokens),
	}, nil
}

// Complete implements Provider.Complete.
func (c *OllamaClient) Complete(ctx context.Context, req CompletionRequest) (string, *Stats, error) {
	start := time.Now()

	resp, err := retryWithBackoff(ctx, defaultMaxRetries, func() (*ollamaChatResponse, error) {
		return doJSONPost[ollamaChatResponse](ctx, c.httpClient, c.baseURL+"/api/chat", ollamaChatRequest{
			Model:    c.model,
			Messages: chatMessages(req),
			Options: ollamaOptions{
				NumPredict:  maxTokensFor(req, c.maxTokens),
				Temperature: defaultTemperature,
				TopP:        0.9,
			},
		})
	})
	if err != nil {
		return "", nil, err
	}
	if !resp.Done {
		return "", nil, fmt.Errorf("incomplete response from Ollama")
	}
	if resp.Message.Content == "" {
		return "", nil, fmt.Errorf("empty response from Ollama")
	}

	return resp.Message.Content, c.stats(resp.PromptEvalCount, resp.EvalCount, time.Since(start).Seconds()), nil
}

// CheckConnection verifies Ollama is up and has pulled the model.
// "llama3.3" matches a pulled "llama3.3:latest".
func (c *OllamaClient) CheckConnection(ctx context.Context) error {
	names, err := listModels(ctx, &c.localBackend, "/api/tags", func(t *ollamaTags) []string {
		out := make([]string, len(t.Models))
		for i, m := range t.Models {
			out[i] = m.Name
		}
		return out
	})
	if err != nil {
		return err
	}

	family, _, _ := strings.Cut(c.model, ":")
	for _, name := range names {
		if name == c.model || strings.HasPrefix(name, family) {
			return nil
		}
	}
	return fmt.Errorf("model %q not found in Ollama (available: %v); run 'ollama pull %s'", c.model, names, c.model)
}

var (
	_ Provider          = (*OllamaClient)(nil)
	_ ConnectionChecker = (*OllamaClient)(nil)
)
