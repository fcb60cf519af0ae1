// messages.go defines Bubble Tea messages used for async communication.
//
// Database execution and AI generation run in commands; results come
// back to the UI via these message types, so the UI never blocks.
package tui

import (
	"github.com/askql/askql/ai"
	"github.com/askql/askql/db"
)

// OrchestratorEventMsg wraps one orchestrator event (token, state
// change, appended message, lifecycle progress, error).
type OrchestratorEventMsg struct {
	Event ai.Event
}

// GenerationDoneMsg is sent when GenerateSQL returns.
type GenerationDoneMsg struct {
	SQL string
	Err error
}

// ProviderReadyMsg is sent when provider initialization finishes.
type ProviderReadyMsg struct {
	Err error
}

// QueryResultMsg is sent when executing extracted SQL completes.
type QueryResultMsg struct {
	MessageID string
	Result    *db.QueryResult
	Err       error
}
