package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"google.golang.org/genai"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want failure
	}{
		{"nil", nil, failTransient},
		{"cancelled", context.Canceled, failFatal},
		{"wrapped deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), failFatal},
		{"claude rate limit", &anthropic.APIError{Type: anthropic.ErrTypeRateLimit}, failThrottled},
		{"claude overloaded", &anthropic.APIError{Type: anthropic.ErrTypeOverloaded}, failThrottled},
		{"claude bad key", &anthropic.APIError{Type: anthropic.ErrTypeAuthentication}, failFatal},
		{"claude bad request", &anthropic.APIError{Type: anthropic.ErrTypeInvalidRequest}, failFatal},
		{"gemini quota", genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED"}, failThrottled},
		{"gemini unavailable", fmt.Errorf("API call failed: %w", genai.APIError{Code: 503}), failThrottled},
		{"gemini bad key", genai.APIError{Code: 400, Status: "INVALID_ARGUMENT"}, failFatal},
		{"http 429", &statusError{Code: 429}, failThrottled},
		{"http 500", &statusError{Code: 500}, failTransient},
		{"http 404", fmt.Errorf("call: %w", &statusError{Code: 404}), failFatal},
		{"message rate limit", errors.New("rate_limit_error: exceeded"), failThrottled},
		{"message overloaded", errors.New("API is currently overloaded"), failThrottled},
		{"connection reset", errors.New("connection reset by peer"), failTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.err); got != tt.want {
				t.Errorf("classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWaitFor(t *testing.T) {
	throttled := &statusError{Code: 429}
	flaky := errors.New("connection reset")

	tests := []struct {
		name    string
		err     error
		attempt int
		want    time.Duration
	}{
		{"throttled first", throttled, 1, 60 * time.Second},
		{"throttled second", throttled, 2, 120 * time.Second},
		{"throttled capped", throttled, 5, 120 * time.Second},
		{"transient first", flaky, 1, 2 * time.Second},
		{"transient third", flaky, 3, 8 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := waitFor(tt.err, tt.attempt); got != tt.want {
				t.Errorf("waitFor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRetryWithBackoff(t *testing.T) {
	noBackoff(t)

	tests := []struct {
		name      string
		failures  int
		err       error
		wantErr   string
		wantCalls int
	}{
		{name: "first attempt succeeds", wantCalls: 1},
		{name: "recovers on third attempt", failures: 2, err: errors.New("boom"), wantCalls: 3},
		{name: "gives up after max attempts", failures: 5, err: errors.New("boom"), wantErr: "all retry attempts failed", wantCalls: 3},
		{name: "fatal stops at once", failures: 5, err: &statusError{Code: 401, Body: "bad key"}, wantErr: "status 401", wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			got, err := retryWithBackoff(context.Background(), 3, func() (string, error) {
				calls++
				if calls <= tt.failures {
					return "", tt.err
				}
				return "ok", nil
			})

			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil || got != "ok" {
				t.Errorf("got (%q, %v), want (ok, nil)", got, err)
			}
		})
	}
}

func TestRetryWithBackoff_CancelDuringSleep(t *testing.T) {
	origSleep, origBackoff := sleepCtx, backoffFor
	t.Cleanup(func() { sleepCtx, backoffFor = origSleep, origBackoff })

	var waited []time.Duration
	backoffFor = waitFor
	sleepCtx = func(ctx context.Context, d time.Duration) error {
		waited = append(waited, d)
		return context.Canceled
	}

	calls := 0
	_, err := retryWithBackoff(context.Background(), 3, func() (int, error) {
		calls++
		return 0, &statusError{Code: 502}
	})

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if len(waited) != 1 || waited[0] != 2*time.Second {
		t.Errorf("waited = %v, want [2s]", waited)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}
