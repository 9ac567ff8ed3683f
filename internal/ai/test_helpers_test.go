package ai

import (
	"context"
	"testing"
	"time"
)

// testConversation is a two-turn conversation used by the provider tests.
var testConversation = CompletionRequest{
	SystemPrompt: "System prompt",
	Messages: []Message{
		{Role: RoleUser, Content: "Why does the service crash?"},
		{Role: RoleAssistant, Content: "It runs out of memory."},
		{Role: RoleUser, Content: "How do I fix it?"},
	},
}

// noBackoff disables retry sleeps for the duration of the test.
func noBackoff(t *testing.T) {
	t.Helper()
	origSleep, origBackoff := sleepCtx, backoffFor
	sleepCtx = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	backoffFor = func(error, int) time.Duration { return 0 }
	t.Cleanup(func() {
		sleepCtx, backoffFor = origSleep, origBackoff
	})
}
