package bugtracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	internalerrors "github.com/olegiv/crashlens-ai-go/internal/errors"
	"github.com/olegiv/crashlens-ai-go/internal/httpapi"
)

// maxErrorBody bounds how much of a failed response is kept in the error.
const maxErrorBody = 4096

// Client talks to a tracker over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the tracker at baseURL.
// timeoutSeconds <= 0 defaults to 10.
func NewClient(baseURL string, timeoutSeconds int) *Client {
	if timeoutSeconds <= 0 {
		timeoutSeconds = 10
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: time.Duration(timeoutSeconds) * time.Second},
	}
}

// BaseURL returns the tracker address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CreateBug files bug and returns it as stored, with id and creation time set.
func (c *Client) CreateBug(ctx context.Context, bug *Bug) (*Bug, error) {
	var created Bug
	if err := c.do(ctx, http.MethodPost, "/api/bugs", bug, &created, http.StatusCreated); err != nil {
		return nil, err
	}
	return &created, nil
}

// Stats fetches per-status and per-priority counts.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var stats Stats
	if err := c.do(ctx, http.MethodGet, "/api/bugs/stats", nil, &stats, http.StatusOK); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}, want int) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("bug tracker request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != want {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var e httpapi.ErrorBody
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return internalerrors.NewStatus(http.StatusBadGateway, "bug tracker returned status %d: %s", resp.StatusCode, msg)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
