package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// proxiedHTTPClient returns a client for hosted APIs, routed through proxyURL
// when it is set. Only http and https proxies are accepted.
func proxiedHTTPClient(proxyURL string, timeoutSeconds int) (*http.Client, error) {
	if timeoutSeconds <= 0 {
		timeoutSeconds = 120
	}
	client := &http.Client{Timeout: time.Duration(timeoutSeconds) * time.Second}
	if proxyURL == "" {
		return client, nil
	}

	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("proxy URL must use http or https scheme, got: %s", u.Scheme)
	}
	client.Transport = &http.Transport{Proxy: http.ProxyURL(u)}
	return client, nil
}

// chatMessage is the role/content pair shared by the Ollama and OpenAI-compatible chat APIs.
type chatMessage struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// chatMessages flattens a request into a system message followed by the conversation.
func chatMessages(req CompletionRequest) []chatMessage {
	messages := make([]chatMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		messages = append(messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}
	return messages
}

// doJSONPost sends request as JSON and decodes a 200 reply into T.
func doJSONPost[T any](ctx context.Context, client *http.Client, url string, request any) (*T, error) {
	reqBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return doJSON[T](client, req)
}

// doJSONGet decodes a 200 reply from url into T.
func doJSONGet[T any](ctx context.Context, client *http.Client, url string) (*T, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return doJSON[T](client, req)
}

// doJSON runs req. Non-200 replies come back as *statusError.
func doJSON[T any](client *http.Client, req *http.Request) (*T, error) {
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API call failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{Code: resp.StatusCode, Body: string(body)}
	}

	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &out, nil
}
