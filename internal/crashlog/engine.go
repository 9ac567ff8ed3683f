// Package crashlog extracts bounded diagnostic signals from crash and error logs
// and classifies them by severity and log type.
package crashlog

// Result is the complete analysis of one log.
type Result struct {
	Findings    *Findings `json:"findings" yaml:"findings"`
	Severity    Severity  `json:"severity" yaml:"severity"`
	LogType     string    `json:"log_type" yaml:"log_type"`
	Suggestions []string  `json:"suggestions" yaml:"suggestions"`
}

// Engine runs the analysis pipeline with a fixed line cap.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	pre *Preprocessor
}

// NewEngine creates an engine analyzing at most maxLines lines per log.
func NewEngine(maxLines int) *Engine {
	return &Engine{pre: NewPreprocessor(maxLines)}
}

// MaxLines returns the line cap.
func (e *Engine) MaxLines() int {
	return e.pre.MaxLines()
}

// ExtractFindings scans the bounded prefix of content.
func (e *Engine) ExtractFindings(content string) *Findings {
	return extract(e.pre.Lines(content))
}

// Analyze extracts findings and derives severity, log type and suggestions.
func (e *Engine) Analyze(content, filename string) *Result {
	f := e.ExtractFindings(content)
	return &Result{
		Findings:    f,
		Severity:    ClassifySeverity(f),
		LogType:     IdentifyLogType(filename, content),
		Suggestions: GenerateSuggestions(f),
	}
}

var defaultEngine = NewEngine(DefaultMaxLines)

// Analyze runs the default engine (DefaultMaxLines) over content.
func Analyze(content, filename string) *Result {
	return defaultEngine.Analyze(content, filename)
}
