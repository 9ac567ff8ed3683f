// Package notification sends crash analysis alerts to Telegram.
package notification

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/olegiv/crashlens-ai-go/internal/crashlog"
	internalerrors "github.com/olegiv/crashlens-ai-go/internal/errors"
)

const (
	maxMessageLength = 4096
	// minMessageInterval spaces consecutive sends to stay under the per-chat limit.
	minMessageInterval = 1 * time.Second
	// Send attempts per message chunk. Waits double from baseRetryDelay.
	maxRetries     = 3
	baseRetryDelay = 2 * time.Second
	// defaultRetryAfter applies to a 429 that carries no retry_after.
	defaultRetryAfter = 30 * time.Second
	// maxListedIssues caps the critical issues and suggestions shown in an alert
	maxListedIssues = 5
)

// sender is the part of tgbotapi.BotAPI used for delivery.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramClient sends analysis alerts to Telegram channels.
type TelegramClient struct {
	bot            sender
	botName        string
	archiveChannel int64
	alertsChannel  int64
	minSeverity    crashlog.Severity
	hostname       string

	mu              sync.Mutex
	lastMessageTime time.Time
	sleep           func(ctx context.Context, d time.Duration) error
	now             func() time.Time
}

// TelegramConfig configures a TelegramClient.
type TelegramConfig struct {
	BotToken       string
	ArchiveChannel int64 // every analysis, 0 disables
	AlertsChannel  int64 // analyses at or above MinSeverity, 0 disables
	MinSeverity    crashlog.Severity
}

// NewTelegramClient creates a new Telegram client
func NewTelegramClient(cfg TelegramConfig) (*TelegramClient, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		// Keep the bot token out of error messages
		return nil, internalerrors.Wrapf(err, "failed to create Telegram bot")
	}

	client := newTelegramClient(bot, cfg)
	client.botName = bot.Self.UserName
	return client, nil
}

func newTelegramClient(bot sender, cfg TelegramConfig) *TelegramClient {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	return &TelegramClient{
		bot:            bot,
		archiveChannel: cfg.ArchiveChannel,
		alertsChannel:  cfg.AlertsChannel,
		minSeverity:    cfg.MinSeverity,
		hostname:       hostname,
		sleep:          sleepCtx,
		now:            time.Now,
	}
}

// ShouldAlert reports whether severity reaches the alert threshold.
func ShouldAlert(severity, minSeverity crashlog.Severity) bool {
	return severity >= minSeverity
}

// SendAnalysisAlert sends the analysis to the archive channel and, when the
// severity reaches the threshold, to the alerts channel.
func (t *TelegramClient) SendAnalysisAlert(ctx context.Context, filename string, result *crashlog.Result, analysis string) error {
	if result == nil {
		return nil
	}

	message := t.formatMessage(filename, result, analysis)

	if t.archiveChannel != 0 {
		if err := t.sendToChannel(ctx, t.archiveChannel, message); err != nil {
			return fmt.Errorf("failed to send to archive channel: %w", err)
		}
	}

	if t.alertsChannel != 0 && ShouldAlert(result.Severity, t.minSeverity) {
		if err := t.sendToChannel(ctx, t.alertsChannel, message); err != nil {
			return fmt.Errorf("failed to send to alerts channel: %w", err)
		}
	}

	return nil
}

// severityEmoji returns the marker shown next to a severity.
func severityEmoji(s crashlog.Severity) string {
	switch s {
	case crashlog.SeverityCritical:
		return "🔴"
	case crashlog.SeverityHigh:
		return "🟠"
	case crashlog.SeverityMedium:
		return "🟡"
	default:
		return "🟢"
	}
}

// formatMessage formats the analysis into a Telegram MarkdownV2 message
func (t *TelegramClient) formatMessage(filename string, result *crashlog.Result, analysis string) string {
	const formattedListTemplate = "%d\\. %s\n"

	f := result.Findings
	var msg strings.Builder

	// Header
	msg.WriteString("🚨 *Crash Log Analysis*\n")
	msg.WriteString(fmt.Sprintf("🖥 Host\\: %s\n", escapeMarkdown(t.hostname)))
	msg.WriteString(fmt.Sprintf("📅 Date\\: %s\n", escapeMarkdown(t.now().Format("2006-01-02 15:04:05"))))
	msg.WriteString(fmt.Sprintf("📄 File\\: %s\n", escapeMarkdown(filename)))
	msg.WriteString(fmt.Sprintf("🏷 Log type\\: %s\n", escapeMarkdown(result.LogType)))
	msg.WriteString(fmt.Sprintf("%s *Severity\\:* %s\n\n", severityEmoji(result.Severity), escapeMarkdown(strings.ToUpper(result.Severity.String()))))

	// Findings
	if f != nil {
		msg.WriteString("📋 *Findings*\n")
		msg.WriteString(fmt.Sprintf("• Lines analyzed\\: %d\n", f.LinesAnalyzed))
		msg.WriteString(fmt.Sprintf("• Errors\\: %d\n", f.ErrorCount))
		msg.WriteString(fmt.Sprintf("• Warnings\\: %d\n", f.WarningCount))
		msg.WriteString(fmt.Sprintf("• Stack traces\\: %d\n\n", len(f.StackTraces)))

		if len(f.CriticalIssues) > 0 {
			issues := f.CriticalIssues[:min(maxListedIssues, len(f.CriticalIssues))]
			msg.WriteString(fmt.Sprintf("🔴 *Critical Issues* \\(%d\\)\n", f.CriticalCount))
			for i, issue := range issues {
				msg.WriteString(fmt.Sprintf(formattedListTemplate, i+1, escapeMarkdown(issue)))
			}
			msg.WriteString("\n")
		}
	}

	// Summary
	if analysis != "" {
		msg.WriteString("📊 *Summary*\n")
		msg.WriteString(escapeMarkdown(analysis))
		msg.WriteString("\n\n")
	}

	// Suggestions
	if len(result.Suggestions) > 0 {
		msg.WriteString("💡 *Suggestions*\n")
		for i, s := range result.Suggestions[:min(maxListedIssues, len(result.Suggestions))] {
			msg.WriteString(fmt.Sprintf(formattedListTemplate, i+1, escapeMarkdown(s)))
		}
	}

	return msg.String()
}

// sendToChannel sends a message to a Telegram channel with rate limiting
func (t *TelegramClient) sendToChannel(ctx context.Context, channelID int64, message string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, msg := range splitMessage(message) {
		if err := t.waitForRateLimit(ctx); err != nil {
			return err
		}

		msgConfig := tgbotapi.NewMessage(channelID, msg)
		msgConfig.ParseMode = tgbotapi.ModeMarkdownV2

		if err := t.sendWithRetry(ctx, msgConfig); err != nil {
			return err
		}

		t.lastMessageTime = t.now()
	}

	return nil
}

// waitForRateLimit ensures minimum interval between messages. Callers hold t.mu.
func (t *TelegramClient) waitForRateLimit(ctx context.Context) error {
	if t.lastMessageTime.IsZero() {
		return nil
	}

	elapsed := t.now().Sub(t.lastMessageTime)
	if elapsed < minMessageInterval {
		return t.sleep(ctx, minMessageInterval-elapsed)
	}
	return nil
}

// sendWithRetry delivers one message, retrying up to maxRetries times.
func (t *TelegramClient) sendWithRetry(ctx context.Context, msgConfig tgbotapi.MessageConfig) error {
	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if _, err = t.bot.Send(msgConfig); err == nil {
			return nil
		}
		delay, retry := retryDelay(err, attempt)
		if !retry || attempt == maxRetries {
			break
		}
		if err := t.sleep(ctx, delay); err != nil {
			return err
		}
	}
	return internalerrors.Wrapf(err, "failed to send message after %d attempts", maxRetries)
}

// retryDelay decides whether a failed send is worth repeating and how long to
// wait first. Telegram's retry_after wins when present. Rejected requests
// (bad markup, bot removed from the channel) are final.
func retryDelay(err error, attempt int) (time.Duration, bool) {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.RetryAfter > 0:
			return time.Duration(apiErr.RetryAfter) * time.Second, true
		case apiErr.Code == http.StatusTooManyRequests:
			return defaultRetryAfter, true
		case apiErr.Code >= 400 && apiErr.Code < 500:
			return 0, false
		}
	}
	return baseRetryDelay << (attempt - 1), true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// splitMessage cuts message into chunks of at most maxMessageLength bytes,
// breaking after the last newline in each window when there is one and never
// inside a UTF-8 sequence.
func splitMessage(message string) []string {
	var parts []string
	for len(message) > maxMessageLength {
		cut := strings.LastIndexByte(message[:maxMessageLength], '\n') + 1
		if cut == 0 {
			cut = maxMessageLength
			for cut > 0 && !utf8.RuneStart(message[cut]) {
				cut--
			}
		}
		parts = append(parts, message[:cut])
		message = message[cut:]
	}
	if message != "" || len(parts) == 0 {
		parts = append(parts, message)
	}
	return parts
}

// markdownEscaper escapes special characters for Telegram MarkdownV2.
// See: https://core.telegram.org/bots/api#markdownv2-style
var markdownEscaper = strings.NewReplacer(
	"\\", "\\\\",
	"_", "\\_", "*", "\\*", "[", "\\[", "]", "\\]", "(", "\\(", ")", "\\)",
	"~", "\\~", "`", "\\`", ">", "\\>", "#", "\\#", "+", "\\+", "-", "\\-",
	"=", "\\=", "|", "\\|", "{", "\\{", "}", "\\}", ".", "\\.", "!", "\\!", ":", "\\:",
)

// escapeMarkdown escapes special characters for Telegram MarkdownV2
func escapeMarkdown(text string) string {
	return markdownEscaper.Replace(text)
}

// GetBotInfo returns information about the bot
func (t *TelegramClient) GetBotInfo() map[string]interface{} {
	return map[string]interface{}{
		"username":        t.botName,
		"archive_channel": t.archiveChannel,
		"alerts_channel":  t.alertsChannel,
		"min_severity":    t.minSeverity.String(),
		"hostname":        t.hostname,
	}
}

// Close stops the bot's update polling.
func (t *TelegramClient) Close() error {
	if bot, ok := t.bot.(*tgbotapi.BotAPI); ok {
		bot.StopReceivingUpdates()
	}
	return nil
}
