package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"google.golang.org/genai"
)

const (
	defaultMaxRetries = 3

	// Token windows reset per minute on the hosted providers.
	throttleBaseWait = 60 * time.Second
	throttleMaxWait  = 120 * time.Second
)

// failure says how a provider error should be retried.
type failure int

const (
	failTransient failure = iota // network hiccup or 5xx: short exponential wait
	failThrottled                // rate limited or overloaded: wait for the window
	failFatal                    // bad key, bad request, cancelled: do not retry
)

func (f failure) String() string {
	switch f {
	case failThrottled:
		return "throttled"
	case failFatal:
		return "fatal"
	default:
		return "transient"
	}
}

// statusError is a non-200 reply from an HTTP-based backend.
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("API returned status %d: %s", e.Code, e.Body)
}

// classify maps a provider error to a retry decision.
func classify(err error) failure {
	if err == nil {
		return failTransient
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return failFatal
	}

	var claudeErr *anthropic.APIError
	if errors.As(err, &claudeErr) {
		switch {
		case claudeErr.IsRateLimitErr(), claudeErr.IsOverloadedErr():
			return failThrottled
		case claudeErr.Type == anthropic.ErrTypeAuthentication,
			claudeErr.Type == anthropic.ErrTypeInvalidRequest:
			return failFatal
		}
		return failTransient
	}

	var geminiErr genai.APIError
	if errors.As(err, &geminiErr) {
		return classifyStatus(geminiErr.Code)
	}

	var httpErr *statusError
	if errors.As(err, &httpErr) {
		return classifyStatus(httpErr.Code)
	}

	msg := strings.ToLower(err.Error())
	for _, hint := range []string{"rate_limit_error", "rate limit", "too many requests", "resource_exhausted", "overloaded"} {
		if strings.Contains(msg, hint) {
			return failThrottled
		}
	}
	return failTransient
}

func classifyStatus(code int) failure {
	switch {
	case code == http.StatusTooManyRequests, code == http.StatusServiceUnavailable, code == 529:
		return failThrottled
	case code >= 500:
		return failTransient
	case code >= 400:
		return failFatal
	default:
		return failTransient
	}
}

// waitFor returns how long to pause before attempt+1.
func waitFor(err error, attempt int) time.Duration {
	if classify(err) == failThrottled {
		return min(throttleBaseWait*time.Duration(attempt), throttleMaxWait)
	}
	return time.Duration(1<<attempt) * time.Second
}

// backoffFor and sleepCtx are replaced in tests to avoid real waits.
var (
	backoffFor = waitFor
	sleepCtx   = func(ctx context.Context, d time.Duration) error {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	}
)

// retryWithBackoff calls fn up to maxAttempts times. Fatal failures are
// returned after the first call.
func retryWithBackoff[T any](ctx context.Context, maxAttempts int, fn func() (T, error)) (T, error) {
	var (
		result T
		err    error
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err = fn()
		if err == nil {
			return result, nil
		}
		if classify(err) == failFatal {
			return result, err
		}
		if attempt == maxAttempts {
			break
		}
		if sleepErr := sleepCtx(ctx, backoffFor(err, attempt)); sleepErr != nil {
			return result, fmt.Errorf("retry aborted: %w", sleepErr)
		}
	}
	return result, fmt.Errorf("all retry attempts failed: %w", err)
}
