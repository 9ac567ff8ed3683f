// Package chat drives multi-turn debugging conversations and log analyses
// against a configured LLM provider.
package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/olegiv/crashlens-ai-go/internal/ai"
	"github.com/olegiv/crashlens-ai-go/internal/analyzer"
	"github.com/olegiv/crashlens-ai-go/internal/crashlog"
	internalerrors "github.com/olegiv/crashlens-ai-go/internal/errors"
	"github.com/olegiv/crashlens-ai-go/internal/logging"
	"github.com/olegiv/crashlens-ai-go/internal/session"
)

// FallbackResponse is returned when no attempt produced any text.
const FallbackResponse = "I apologize, but I had trouble generating a complete response. Please try asking your question again."

const (
	defaultMaxTokens       = 400
	defaultMaxRetryTokens  = 600
	defaultMaxPromptTokens = 2048
	defaultHistoryTurns    = 3
	defaultAttempts        = 3
	retryTokenStep         = 100
)

// Notifier is told about every completed analysis and decides whether to alert.
type Notifier interface {
	SendAnalysisAlert(ctx context.Context, filename string, result *crashlog.Result, analysis string) error
}

// Options tunes generation. Zero values use the defaults.
type Options struct {
	MaxTokens       int // first attempt budget
	MaxRetryTokens  int // ceiling for retry budgets
	MaxPromptTokens int // estimated prompt size above which history is trimmed
	HistoryTurns    int // turns of history sent with each message
	Attempts        int // generation attempts per message
}

func (o Options) withDefaults() Options {
	if o.MaxTokens <= 0 {
		o.MaxTokens = defaultMaxTokens
	}
	if o.MaxRetryTokens < o.MaxTokens {
		o.MaxRetryTokens = max(defaultMaxRetryTokens, o.MaxTokens)
	}
	if o.MaxPromptTokens <= 0 {
		o.MaxPromptTokens = defaultMaxPromptTokens
	}
	if o.HistoryTurns <= 0 {
		o.HistoryTurns = defaultHistoryTurns
	}
	if o.Attempts <= 0 {
		o.Attempts = defaultAttempts
	}
	return o
}

// Analysis is the outcome of AnalyzeLog.
type Analysis struct {
	Result   *crashlog.Result `json:"result"`
	Analysis string           `json:"analysis"`
	Filename string           `json:"filename"`
	Stats    *ai.Stats        `json:"-"`
}

// Service answers chat messages and analyzes logs. It is safe for concurrent use;
// all per-conversation state lives in the session store.
type Service struct {
	provider ai.Provider
	sessions session.Store
	engine   *crashlog.Engine
	prompts  *crashlog.PromptBuilder
	notifier Notifier
	opts     Options
	log      *logging.SecureLogger
	now      func() time.Time
}

// NewService creates a chat service. notifier may be nil.
func NewService(provider ai.Provider, sessions session.Store, engine *crashlog.Engine, notifier Notifier, opts Options, log *logging.SecureLogger) *Service {
	if engine == nil {
		engine = crashlog.NewEngine(crashlog.DefaultMaxLines)
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Service{
		provider: provider,
		sessions: sessions,
		engine:   engine,
		prompts:  crashlog.NewPromptBuilder(),
		notifier: notifier,
		opts:     opts.withDefaults(),
		log:      log.Component("chat"),
		now:      time.Now,
	}
}

// Chat answers message in the context of the session's recent history and
// records the exchange.
func (s *Service) Chat(ctx context.Context, sessionID, message string) (string, *ai.Stats, error) {
	req := s.buildRequest(s.sessions.History(sessionID), message)

	response, stats, err := s.generate(ctx, req)
	if err != nil {
		return "", nil, err
	}

	s.sessions.AppendTurn(sessionID, session.Turn{
		User:      message,
		Assistant: response,
		Timestamp: s.now(),
	})

	s.log.Debug().
		Str("session_id", sessionID).
		Int("input_tokens", stats.InputTokens).
		Int("output_tokens", stats.OutputTokens).
		Float64("duration_s", stats.DurationSeconds).
		Msg("Chat response generated")

	return response, stats, nil
}

// generate runs up to opts.Attempts completions, keeping the longest cleaned
// answer and stopping at the first one that ends like a finished sentence.
// Only incomplete answers are retried here: providers retry their own
// transport failures, so a provider error ends the loop.
func (s *Service) generate(ctx context.Context, req ai.CompletionRequest) (string, *ai.Stats, error) {
	total := &ai.Stats{}
	best := ""

	for attempt := 0; attempt < s.opts.Attempts; attempt++ {
		req.MaxTokens = min(s.opts.MaxTokens+attempt*retryTokenStep, s.opts.MaxRetryTokens)

		raw, stats, err := s.provider.Complete(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return "", nil, ctx.Err()
			}
			if best == "" {
				return "", nil, fmt.Errorf("generation failed: %w", err)
			}
			s.log.Warn().Err(err).Int("attempt", attempt+1).Msg("Continuation attempt failed, keeping partial answer")
			break
		}
		total.Add(stats)

		response := ai.CleanResponse(raw)
		if len(response) > len(best) {
			best = response
		}
		if ai.IsCompleteResponse(response) {
			best = response
			break
		}
	}

	if best == "" {
		best = FallbackResponse
	}
	return best, total, nil
}

// buildRequest assembles the system prompt, the most recent turns and message.
// The oldest turns are dropped while the estimated prompt exceeds the budget.
func (s *Service) buildRequest(history []session.Turn, message string) ai.CompletionRequest {
	if len(history) > s.opts.HistoryTurns {
		history = history[len(history)-s.opts.HistoryTurns:]
	}

	req := ai.CompletionRequest{SystemPrompt: s.prompts.GetSystemPrompt()}
	for {
		req.Messages = make([]ai.Message, 0, 2*len(history)+1)
		for _, turn := range history {
			req.Messages = append(req.Messages,
				ai.Message{Role: ai.RoleUser, Content: turn.User},
				ai.Message{Role: ai.RoleAssistant, Content: turn.Assistant},
			)
		}
		req.Messages = append(req.Messages, ai.Message{Role: ai.RoleUser, Content: message})

		if len(history) == 0 || estimatePromptTokens(req) <= s.opts.MaxPromptTokens {
			return req
		}
		history = history[1:]
	}
}

func estimatePromptTokens(req ai.CompletionRequest) int {
	total := analyzer.EstimateTokens(req.SystemPrompt)
	for _, m := range req.Messages {
		total += analyzer.EstimateTokens(m.Content)
	}
	return total
}

// AnalyzeLog runs the crash log engine over content and asks the provider for
// debugging guidance. When generation fails the engine result is still
// returned together with the error.
func (s *Service) AnalyzeLog(ctx context.Context, sessionID, content, filename string) (*Analysis, error) {
	result := s.engine.Analyze(content, filename)
	out := &Analysis{Result: result, Filename: filename}

	s.log.Info().
		Str("filename", filename).
		Stringer("severity", result.Severity).
		Str("log_type", result.LogType).
		Int("errors", result.Findings.ErrorCount).
		Int("warnings", result.Findings.WarningCount).
		Msg("Log analyzed")

	prompt, redacted := internalerrors.Redact(s.prompts.BuildAnalysisPrompt(result, filename))
	if redacted > 0 {
		s.log.Info().Str("filename", filename).Int("redacted", redacted).Msg("Masked credentials before sending log excerpt")
	}
	response, stats, err := s.Chat(ctx, sessionID, prompt)
	if err != nil {
		return out, fmt.Errorf("failed to generate analysis: %w", err)
	}
	out.Analysis = response
	out.Stats = stats

	if s.notifier != nil {
		if err := s.notifier.SendAnalysisAlert(ctx, filename, result, response); err != nil {
			s.log.Warn().Err(err).Str("filename", filename).Msg("Failed to send analysis alert")
		}
	}

	return out, nil
}

// Inspect runs only the crash log engine over content.
func (s *Service) Inspect(content, filename string) *crashlog.Result {
	return s.engine.Analyze(content, filename)
}

// ClearSession drops the session's conversation history.
func (s *Service) ClearSession(sessionID string) {
	s.sessions.Clear(sessionID)
}

// History returns the session's conversation history, oldest first.
func (s *Service) History(sessionID string) []session.Turn {
	return s.sessions.History(sessionID)
}

// ProviderInfo describes the configured provider.
func (s *Service) ProviderInfo() map[string]interface{} {
	return s.provider.GetModelInfo()
}
