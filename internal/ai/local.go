package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Local inference servers are slow on large models.
const localDefaultTimeout = 300

// ConnectionChecker is implemented by providers that can verify their
// backend is up and serving the configured model.
type ConnectionChecker interface {
	CheckConnection(ctx context.Context) error
}

// localBackend is the part Ollama and LM Studio share: a base URL, a
// model name and a plain HTTP client. Local inference costs nothing, so
// only tokens and duration are reported.
type localBackend struct {
	name       string
	baseURL    string
	model      string
	maxTokens  int
	httpClient *http.Client
}

func newLocalBackend(name, baseURL, defaultURL, model string, timeoutSeconds, maxTokens int) localBackend {
	if baseURL == "" {
		baseURL = defaultURL
	}
	if timeoutSeconds <= 0 {
		timeoutSeconds = localDefaultTimeout
	}
	if maxTokens <= 0 {
		maxTokens = 400
	}
	return localBackend{
		name:       name,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      model,
		maxTokens:  maxTokens,
		httpClient: &http.Client{Timeout: time.Duration(timeoutSeconds) * time.Second},
	}
}

func (b *localBackend) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"model":         b.model,
		"provider":      b.name,
		"max_tokens":    b.maxTokens,
		"base_url":      b.baseURL,
		"context_limit": 128000, // varies by model
	}
}

func (b *localBackend) GetProviderName() string {
	return b.name
}

func (b *localBackend) stats(inputTokens, outputTokens int, durationSeconds float64) *Stats {
	return &Stats{
		Provider:        b.name,
		Model:           b.model,
		InputTokens:     inputTokens,
		OutputTokens:    outputTokens,
		DurationSeconds: durationSeconds,
	}
}

// listModels fetches path and hands the decoded body to names.
func listModels[T any](ctx context.Context, b *localBackend, path string, names func(*T) []string) ([]string, error) {
	resp, err := doJSONGet[T](ctx, b.httpClient, b.baseURL+path)
	if err != nil {
		return nil, fmt.Errorf("%s is not reachable at %s: %w", b.name, b.baseURL, err)
	}
	return names(resp), nil
}
