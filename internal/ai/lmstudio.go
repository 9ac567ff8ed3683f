package ai

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// anyLoadedModel asks LM Studio to answer with whatever model is loaded.
const anyLoadedModel = "local-model"

// LMStudioClient talks to LM Studio's OpenAI-compatible server.
//
// Instruction-tuned models of 8B parameters and up give usable crash
// explanations; GGUF Q4_K_M or Q5_K_M quantizations fit consumer GPUs.
type LMStudioClient struct {
	localBackend
}

// LMStudioConfig holds LM Studio-specific configuration
type LMStudioConfig struct {
	BaseURL        string // e.g., "http://localhost:1234"
	Model          string // empty means any loaded model
	TimeoutSeconds int
	MaxTokens      int
}

type openAIChatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
	TopP        float64       `json:"top_p,omitempty"`
	Stream      bool          `json:"stream"`
}

type openAIChatResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int         `json:"index"`
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type openAIModels struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

func NewLMStudioClient(cfg LMStudioConfig) (*LMStudioClient, error) {
	if cfg.Model == "" {
		cfg.Model = anyLoadedModel
	}
	return &LMStudioClient{
		localBackend: newLocalBackend("LMStudio", cfg.BaseURL, "http://localhost:1234", cfg.Model, cfg.TimeoutSeconds, cfg.MaxTokens),
	}, nil
}

// Complete implements Provider.Complete.
func (c *LMStudioClient) Complete(ctx context.Context, req CompletionRequest) (string, *Stats, error) {
	start := time.Now()

	resp, err := retryWithBackoff(ctx, defaultMaxRetries, func() (*openAIChatResponse, error) {
		return doJSONPost[openAIChatResponse](ctx, c.httpClient, c.baseURL+"/v1/chat/completions", openAIChatRequest{
			Model:       c.model,
			Messages:    chatMessages(req),
			MaxTokens:   maxTokensFor(req, c.maxTokens),
			Temperature: defaultTemperature,
			TopP:        0.9,
		})
	})
	if err != nil {
		return "", nil, err
	}
	if len(resp.Choices) == 0 {
		return "", nil, fmt.Errorf("empty response from LM Studio (no choices)")
	}
	text := resp.Choices[0].Message.Content
	if text == "" {
		return "", nil, fmt.Errorf("empty response from LM Studio")
	}

	return text, c.stats(resp.Usage.PromptTokens, resp.Usage.CompletionTokens, time.Since(start).Seconds()), nil
}

// CheckConnection verifies LM Studio is up with at least one model loaded,
// and with the configured one when a specific model is named.
func (c *LMStudioClient) CheckConnection(ctx context.Context) error {
	ids, err := listModels(ctx, &c.localBackend, "/v1/models", func(m *openAIModels) []string {
		out := make([]string, len(m.Data))
		for i, d := range m.Data {
			out[i] = d.ID
		}
		return out
	})
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return fmt.Errorf("no models loaded in LM Studio")
	}
	if c.model == anyLoadedModel {
		return nil
	}
	for _, id := range ids {
		if strings.Contains(id, c.model) {
			return nil
		}
	}
	return fmt.Errorf("model %q not loaded in LM Studio (available: %v); use %q for the current model", c.model, ids, anyLoadedModel)
}

var (
	_ Provider          = (*LMStudioClient)(nil)
	_ ConnectionChecker = (*LMStudioClient)(nil)
)
