// Package ai turns natural-language questions into SQL using one of
// several interchangeable backends.
//
// Design decisions:
//   - Provider is an interface so we can swap backends (OpenAI-style,
//     Anthropic-style, OpenAI-compatible self-hosted, local inference)
//     without changing TUI code.
//   - Generation is streaming-first: tokens are delivered through
//     StreamCallbacks as they arrive; GenerateText is a convenience
//     built on the same path.
//   - Cancellation is graceful: Abort resolves the in-flight generation
//     as OnComplete with the text accumulated so far, never as OnError.
package ai

import "context"

// Role values used in chat messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single chat message.
type Message struct {
	Role    string // "user", "assistant", "system"
	Content string
}

// Request carries one generation request to a provider.
type Request struct {
	Messages    []Message
	MaxTokens   int
	Temperature float64
	Stop        []string
}

// StreamCallbacks receives incremental output from a streaming generation.
//
// Contract: zero or more OnToken calls, then exactly one of OnComplete or
// OnError. After a terminal callback fires, no further OnToken may fire
// for that request.
type StreamCallbacks struct {
	OnToken    func(delta string)
	OnComplete func(fullText string)
	OnError    func(err error)
}

// Status is a point-in-time snapshot of a provider's readiness.
type Status struct {
	Ready        bool
	Initializing bool
	Err          string
	CurrentModel string
}

// Provider is the interface all AI backends must implement.
type Provider interface {
	// Initialize validates configuration, runs a connectivity probe and
	// flips the provider ready. Returns a *ConfigError when required
	// fields are missing and a *ConnectivityError when the probe fails.
	Initialize(ctx context.Context) error

	// GenerateStreaming runs one generation, delivering output through
	// the callbacks. Returns a *NotReadyError when called before
	// Initialize has succeeded. The error return only covers dispatch
	// failures; in-stream failures are routed to OnError.
	GenerateStreaming(req Request, cb StreamCallbacks) error

	// GenerateText runs one generation and blocks until the full text
	// is available.
	GenerateText(ctx context.Context, req Request) (string, error)

	// Abort cancels the in-flight generation, if any. Idempotent and a
	// no-op while not streaming.
	Abort()

	// Cleanup releases network/worker resources, clears stored
	// credentials and sets ready=false.
	Cleanup()

	// Status returns a snapshot without side effects.
	Status() Status

	// Name returns the provider name for display.
	Name() string
}
