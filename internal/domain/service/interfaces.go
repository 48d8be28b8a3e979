package service

import "context"

// Logger abstracts structured logging operations.
type Logger interface {
	// Debug logs a debug message.
	Debug(msg string, args ...any)

	// Info logs an info message.
	Info(msg string, args ...any)

	// Warn logs a warning message.
	Warn(msg string, args ...any)

	// Error logs an error message.
	Error(msg string, args ...any)

	// With returns a new logger with the given key-value pairs.
	With(args ...any) Logger

	// WithContext returns a new logger with context.
	WithContext(ctx context.Context) Logger
}

// Usage accumulates token/cost accounting for one or more LLM calls, the
// numbers a job reports back in its Result (spec §10).
type Usage struct {
	Calls        int
	InputTokens  int
	OutputTokens int
	CostUSD      float64
}

// Add accumulates other into u.
func (u *Usage) Add(other Usage) {
	u.Calls += other.Calls
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CostUSD += other.CostUSD
}

// CompletionRequest is one structured-output chat call.
type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	// SchemaName identifies the expected JSON shape for logging/metrics;
	// the caller is responsible for unmarshaling Completion.Text itself.
	SchemaName string
}

// Completion is the result of one CompletionRequest.
type Completion struct {
	Text  string
	Usage Usage
}

// LLMClient abstracts the chat-completion and embedding surface that the
// extraction and linking engines depend on. One instance is constructed
// per worker process (spec §6): the underlying provider client is not
// safe to share across OS processes, and per-process construction keeps
// rate limiting local to the process that issues the calls.
type LLMClient interface {
	// Complete issues one structured-output chat call.
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)

	// Embed returns one embedding vector per input text, in order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
