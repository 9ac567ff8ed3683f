package config

import (
	"crypto/subtle"
	"errors"
	"flag"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/olegiv/crashlens-ai-go/internal/ai"
	"github.com/olegiv/crashlens-ai-go/internal/crashlog"
	"github.com/olegiv/crashlens-ai-go/pkg/logger"
	"github.com/spf13/viper"
)

// Output formats accepted by -format.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ErrHelp is returned by ParseCLI when -help or -h was given.
var ErrHelp = flag.ErrHelp

var telegramTokenRegex = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)

// CLIOptions holds command-line argument overrides
type CLIOptions struct {
	AnalyzePath string   // -analyze: analyze a file offline and exit
	ExtraPaths  []string // further files given after -analyze
	Format      string // -format: output format for -analyze (text, json, yaml)
	Addr        string // -addr: HTTP listen address (overrides LISTEN_ADDR)
	ShowHelp    bool   // -help: show usage
	ShowVersion bool   // -version: show version
}

// ParseCLI parses args (without the program name) into CLIOptions.
// Usage is written to output on -help and on parse errors.
func ParseCLI(name string, args []string, output io.Writer) (*CLIOptions, error) {
	opts := &CLIOptions{}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(output)

	fs.StringVar(&opts.AnalyzePath, "analyze", "", "Analyze a log file offline (no LLM) and print the result")
	fs.StringVar(&opts.Format, "format", FormatText, "Output format for -analyze: text, json, yaml")
	fs.StringVar(&opts.Addr, "addr", "", "HTTP listen address (overrides LISTEN_ADDR)")
	fs.BoolVar(&opts.ShowHelp, "help", false, "Show usage information")
	fs.BoolVar(&opts.ShowVersion, "version", false, "Show version information")

	fs.Usage = func() {
		_, _ = fmt.Fprintf(output, "CrashLens AI - crash and error log analysis assistant\n\n")
		_, _ = fmt.Fprintf(output, "Usage: %s [options]\n\n", name)
		_, _ = fmt.Fprintf(output, "Options:\n")
		fs.PrintDefaults()
		_, _ = fmt.Fprintf(output, "\nExamples:\n")
		_, _ = fmt.Fprintf(output, "  %s                          # run the HTTP server\n", name)
		_, _ = fmt.Fprintf(output, "  %s -addr :8080\n", name)
		_, _ = fmt.Fprintf(output, "  %s -analyze app.crash -format json\n", name)
		_, _ = fmt.Fprintf(output, "  %s -analyze app.log worker.log kernel.log\n", name)
		_, _ = fmt.Fprintf(output, "\nEnvironment variables can be set in .env file or exported directly.\n")
		_, _ = fmt.Fprintf(output, "CLI arguments override environment variables.\n")
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if opts.ShowHelp {
		fs.Usage()
		return opts, ErrHelp
	}

	opts.Format = strings.ToLower(strings.TrimSpace(opts.Format))
	switch opts.Format {
	case FormatText, FormatJSON, FormatYAML:
	default:
		return nil, fmt.Errorf("invalid -format %q (must be text, json or yaml)", opts.Format)
	}
	if fs.NArg() > 0 {
		if opts.AnalyzePath == "" {
			return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
		}
		opts.ExtraPaths = fs.Args()
	}
	return opts, nil
}

// AnalyzePaths returns every file requested for offline analysis.
func (o *CLIOptions) AnalyzePaths() []string {
	if o.AnalyzePath == "" {
		return nil
	}
	return append([]string{o.AnalyzePath}, o.ExtraPaths...)
}

// Config holds all application configuration
type Config struct {
	// LLM Provider Selection
	LLMProvider string // "anthropic" (default), "ollama", "lmstudio" or "gemini"

	// Anthropic/Claude Settings (used when LLMProvider = "anthropic")
	AnthropicAPIKey string
	ClaudeModel     string

	// Ollama Settings (used when LLMProvider = "ollama")
	OllamaBaseURL string // e.g., "http://localhost:11434"
	OllamaModel   string // e.g., "llama3.3:latest"

	// LM Studio Settings (used when LLMProvider = "lmstudio")
	LMStudioBaseURL string // e.g., "http://localhost:1234"
	LMStudioModel   string

	// Gemini Settings (used when LLMProvider = "gemini")
	GeminiAPIKey string
	GeminiModel  string

	// Generation
	AITimeoutSeconds int
	AIMaxTokens      int
	AIMaxRetryTokens int
	MaxPromptTokens  int

	// HTTP server
	ListenAddr       string
	UploadDir        string
	MaxUploadSizeMB  int
	LocalLogDir      string // confines /fetch-log paths when set
	MaxAnalysisLines int

	// Sessions
	SessionCapacity int
	SessionMaxTurns int

	// Issue tracker
	BugTrackerURL        string // used by the assistant to file bugs
	BugTrackerListenAddr string // used by the tracker itself
	BugTrackerDBPath     string

	// Telegram (optional)
	TelegramBotToken       string
	TelegramArchiveChannel int64
	TelegramAlertsChannel  int64
	AlertMinSeverity       string

	// Application
	LogLevel  string
	LogDir    string
	LogFormat string // console format: text or json

	// Proxy
	HTTPProxy  string
	HTTPSProxy string
}

// Load loads configuration from .env file and environment variables
// Priority: .env file > OS environment variables
// For CLI overrides, use LoadWithCLI instead
func Load() (*Config, error) {
	return LoadWithCLI(nil)
}

// LoadWithCLI loads configuration with CLI argument overrides
// Priority: CLI args > .env file > OS environment variables
func LoadWithCLI(cli *CLIOptions) (*Config, error) {
	// Set up viper first to read OS environment variables
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// godotenv.Load() sets OS env vars from .env, which viper will then read
	_ = godotenv.Load()

	setDefaults()

	config := &Config{
		LLMProvider:     strings.ToLower(viper.GetString("LLM_PROVIDER")),
		AnthropicAPIKey: viper.GetString("ANTHROPIC_API_KEY"),
		ClaudeModel:     viper.GetString("CLAUDE_MODEL"),
		OllamaBaseURL:   viper.GetString("OLLAMA_BASE_URL"),
		OllamaModel:     viper.GetString("OLLAMA_MODEL"),
		LMStudioBaseURL: viper.GetString("LMSTUDIO_BASE_URL"),
		LMStudioModel:   viper.GetString("LMSTUDIO_MODEL"),
		GeminiAPIKey:    viper.GetString("GEMINI_API_KEY"),
		GeminiModel:     viper.GetString("GEMINI_MODEL"),

		AITimeoutSeconds: viper.GetInt("AI_TIMEOUT_SECONDS"),
		AIMaxTokens:      viper.GetInt("AI_MAX_TOKENS"),
		AIMaxRetryTokens: viper.GetInt("AI_MAX_RETRY_TOKENS"),
		MaxPromptTokens:  viper.GetInt("MAX_PROMPT_TOKENS"),

		ListenAddr:       viper.GetString("LISTEN_ADDR"),
		UploadDir:        viper.GetString("UPLOAD_DIR"),
		MaxUploadSizeMB:  viper.GetInt("MAX_UPLOAD_SIZE_MB"),
		LocalLogDir:      viper.GetString("LOCAL_LOG_DIR"),
		MaxAnalysisLines: viper.GetInt("MAX_ANALYSIS_LINES"),

		SessionCapacity: viper.GetInt("SESSION_CAPACITY"),
		SessionMaxTurns: viper.GetInt("SESSION_MAX_TURNS"),

		BugTrackerURL:        strings.TrimSpace(viper.GetString("BUGTRACKER_URL")),
		BugTrackerListenAddr: viper.GetString("BUGTRACKER_LISTEN_ADDR"),
		BugTrackerDBPath:     viper.GetString("BUGTRACKER_DB_PATH"),

		TelegramBotToken:       viper.GetString("TELEGRAM_BOT_TOKEN"),
		TelegramArchiveChannel: viper.GetInt64("TELEGRAM_CHANNEL_ARCHIVE_ID"),
		TelegramAlertsChannel:  viper.GetInt64("TELEGRAM_CHANNEL_ALERTS_ID"),
		AlertMinSeverity:       viper.GetString("ALERT_MIN_SEVERITY"),

		LogLevel:   viper.GetString("LOG_LEVEL"),
		LogDir:     viper.GetString("LOG_DIR"),
		LogFormat:  strings.ToLower(strings.TrimSpace(viper.GetString("LOG_FORMAT"))),
		HTTPProxy:  viper.GetString("HTTP_PROXY"),
		HTTPSProxy: viper.GetString("HTTPS_PROXY"),
	}

	// Apply CLI overrides (highest priority)
	if cli != nil && cli.Addr != "" {
		config.ListenAddr = cli.Addr
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// LLM Provider defaults
	viper.SetDefault("LLM_PROVIDER", "anthropic")
	viper.SetDefault("CLAUDE_MODEL", "claude-sonnet-4-5-20250929")
	viper.SetDefault("OLLAMA_BASE_URL", "http://localhost:11434")
	viper.SetDefault("OLLAMA_MODEL", "llama3.3:latest")
	viper.SetDefault("LMSTUDIO_BASE_URL", "http://localhost:1234")
	viper.SetDefault("LMSTUDIO_MODEL", "local-model")
	viper.SetDefault("GEMINI_MODEL", "gemini-2.5-flash")

	viper.SetDefault("AI_TIMEOUT_SECONDS", 120)
	viper.SetDefault("AI_MAX_TOKENS", 400)
	viper.SetDefault("AI_MAX_RETRY_TOKENS", 600)
	viper.SetDefault("MAX_PROMPT_TOKENS", 2048)

	viper.SetDefault("LISTEN_ADDR", ":5000")
	viper.SetDefault("UPLOAD_DIR", "./uploads")
	viper.SetDefault("MAX_UPLOAD_SIZE_MB", 10)
	viper.SetDefault("MAX_ANALYSIS_LINES", crashlog.DefaultMaxLines)
	viper.SetDefault("SESSION_CAPACITY", 1000)
	viper.SetDefault("SESSION_MAX_TURNS", 10)

	viper.SetDefault("BUGTRACKER_LISTEN_ADDR", ":3001")
	viper.SetDefault("BUGTRACKER_DB_PATH", "./data/bugs.db")

	viper.SetDefault("ALERT_MIN_SEVERITY", "critical")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_DIR", "./logs")
	viper.SetDefault("LOG_FORMAT", FormatText)
}

// Validate checks everything except the LLM settings, which only matter to
// commands that generate text (see ValidateLLM).
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("LISTEN_ADDR is required")
	}
	if c.UploadDir == "" {
		return fmt.Errorf("UPLOAD_DIR is required")
	}
	if c.MaxUploadSizeMB < 1 || c.MaxUploadSizeMB > 100 {
		return fmt.Errorf("MAX_UPLOAD_SIZE_MB must be between 1 and 100")
	}
	if c.MaxAnalysisLines < 1 {
		return fmt.Errorf("MAX_ANALYSIS_LINES must be positive")
	}
	if c.SessionCapacity < 1 {
		return fmt.Errorf("SESSION_CAPACITY must be positive")
	}
	if c.SessionMaxTurns < 1 {
		return fmt.Errorf("SESSION_MAX_TURNS must be positive")
	}

	if c.BugTrackerURL != "" && !isHTTPURL(c.BugTrackerURL) {
		return fmt.Errorf("BUGTRACKER_URL must start with 'http://' or 'https://'")
	}

	if err := c.validateTelegram(); err != nil {
		return err
	}
	if _, err := crashlog.ParseSeverity(c.AlertMinSeverity); err != nil {
		return fmt.Errorf("ALERT_MIN_SEVERITY: %w", err)
	}

	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error")
	}
	if c.LogFormat != FormatText && c.LogFormat != FormatJSON {
		return fmt.Errorf("LOG_FORMAT must be %q or %q", FormatText, FormatJSON)
	}

	return nil
}

// validateTelegram checks the optional Telegram settings. A token needs at
// least one channel.
func (c *Config) validateTelegram() error {
	if c.TelegramBotToken == "" {
		if c.TelegramArchiveChannel != 0 || c.TelegramAlertsChannel != 0 {
			return fmt.Errorf("TELEGRAM_BOT_TOKEN is required when a Telegram channel is set")
		}
		return nil
	}
	if !telegramTokenRegex.MatchString(c.TelegramBotToken) {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN has invalid format (expected: 'number:token')")
	}
	if c.TelegramArchiveChannel == 0 && c.TelegramAlertsChannel == 0 {
		return fmt.Errorf("TELEGRAM_CHANNEL_ALERTS_ID or TELEGRAM_CHANNEL_ARCHIVE_ID is required when TELEGRAM_BOT_TOKEN is set")
	}
	if c.TelegramArchiveChannel != 0 && c.TelegramArchiveChannel > -100 {
		return fmt.Errorf("TELEGRAM_CHANNEL_ARCHIVE_ID must be a supergroup/channel ID (starts with -100)")
	}
	if c.TelegramAlertsChannel != 0 && c.TelegramAlertsChannel > -100 {
		return fmt.Errorf("TELEGRAM_CHANNEL_ALERTS_ID must be a supergroup/channel ID (starts with -100)")
	}
	return nil
}

// ValidateLLM checks the settings of the selected LLM provider.
func (c *Config) ValidateLLM() error {
	if err := c.validateLLMProvider(); err != nil {
		return err
	}
	if c.AITimeoutSeconds < 30 || c.AITimeoutSeconds > 600 {
		return fmt.Errorf("AI_TIMEOUT_SECONDS must be between 30 and 600")
	}
	if c.AIMaxTokens < 50 || c.AIMaxTokens > 16000 {
		return fmt.Errorf("AI_MAX_TOKENS must be between 50 and 16000")
	}
	if c.AIMaxRetryTokens < c.AIMaxTokens || c.AIMaxRetryTokens > 16000 {
		return fmt.Errorf("AI_MAX_RETRY_TOKENS must be between AI_MAX_TOKENS and 16000")
	}
	if c.MaxPromptTokens < 256 {
		return fmt.Errorf("MAX_PROMPT_TOKENS must be at least 256")
	}
	return nil
}

// HasTelegram returns true if Telegram alerts are configured
func (c *Config) HasTelegram() bool {
	return c.TelegramBotToken != ""
}

// HasBugTracker returns true if the assistant can file bugs
func (c *Config) HasBugTracker() bool {
	return c.BugTrackerURL != ""
}

// MinSeverity returns the parsed alert threshold. Validate guarantees it parses.
func (c *Config) MinSeverity() crashlog.Severity {
	sev, err := crashlog.ParseSeverity(c.AlertMinSeverity)
	if err != nil {
		return crashlog.SeverityCritical
	}
	return sev
}

// GetProxyURL returns the appropriate proxy URL for HTTP/HTTPS requests
func (c *Config) GetProxyURL(isHTTPS bool) string {
	if isHTTPS && c.HTTPSProxy != "" {
		return c.HTTPSProxy
	}
	if c.HTTPProxy != "" {
		return c.HTTPProxy
	}
	return ""
}

// ProviderConfig returns the settings for ai.NewProvider.
func (c *Config) ProviderConfig() ai.ProviderConfig {
	return ai.ProviderConfig{
		Type:            ai.ProviderType(c.LLMProvider),
		TimeoutSeconds:  c.AITimeoutSeconds,
		MaxTokens:       c.AIMaxTokens,
		AnthropicAPIKey: c.AnthropicAPIKey,
		ClaudeModel:     c.ClaudeModel,
		ProxyURL:        c.GetProxyURL(true),
		OllamaBaseURL:   c.OllamaBaseURL,
		OllamaModel:     c.OllamaModel,
		LMStudioBaseURL: c.LMStudioBaseURL,
		LMStudioModel:   c.LMStudioModel,
		GeminiAPIKey:    c.GeminiAPIKey,
		GeminiModel:     c.GeminiModel,
	}
}

// constantTimePrefixMatch checks if s starts with prefix using constant-time comparison.
// Returns false if s is shorter than prefix.
func constantTimePrefixMatch(s, prefix string) bool {
	if len(s) < len(prefix) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(s[:len(prefix)]), []byte(prefix)) == 1
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// validateLLMProvider validates LLM provider configuration
func (c *Config) validateLLMProvider() error {
	if !ai.IsValidProviderType(c.LLMProvider) {
		return fmt.Errorf("LLM_PROVIDER must be 'anthropic', 'ollama', 'lmstudio' or 'gemini' (got: %s)", c.LLMProvider)
	}

	switch ai.ProviderType(c.LLMProvider) {
	case ai.ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required when LLM_PROVIDER=anthropic")
		}
		if !constantTimePrefixMatch(c.AnthropicAPIKey, "sk-ant-") {
			return fmt.Errorf("ANTHROPIC_API_KEY must start with 'sk-ant-'")
		}
		if c.ClaudeModel == "" {
			return fmt.Errorf("CLAUDE_MODEL is required when LLM_PROVIDER=anthropic")
		}

	case ai.ProviderOllama:
		if c.OllamaModel == "" {
			return fmt.Errorf("OLLAMA_MODEL is required when LLM_PROVIDER=ollama")
		}
		if c.OllamaBaseURL == "" {
			return fmt.Errorf("OLLAMA_BASE_URL is required when LLM_PROVIDER=ollama")
		}
		if !isHTTPURL(c.OllamaBaseURL) {
			return fmt.Errorf("OLLAMA_BASE_URL must start with 'http://' or 'https://'")
		}

	case ai.ProviderLMStudio:
		if c.LMStudioBaseURL == "" {
			return fmt.Errorf("LMSTUDIO_BASE_URL is required when LLM_PROVIDER=lmstudio")
		}
		if !isHTTPURL(c.LMStudioBaseURL) {
			return fmt.Errorf("LMSTUDIO_BASE_URL must start with 'http://' or 'https://'")
		}
		// Model is optional for LM Studio (defaults to "local-model")

	case ai.ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when LLM_PROVIDER=gemini")
		}
		if c.GeminiModel == "" {
			return fmt.Errorf("GEMINI_MODEL is required when LLM_PROVIDER=gemini")
		}
	}

	return nil
}

// GetLLMModel returns the model name for the current LLM provider
func (c *Config) GetLLMModel() string {
	switch ai.ProviderType(c.LLMProvider) {
	case ai.ProviderOllama:
		return c.OllamaModel
	case ai.ProviderLMStudio:
		return c.LMStudioModel
	case ai.ProviderGemini:
		return c.GeminiModel
	default:
		return c.ClaudeModel
	}
}

// IsHelp reports whether err came from -help.
func IsHelp(err error) bool {
	return errors.Is(err, ErrHelp)
}
