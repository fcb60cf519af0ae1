// Package tui implements the interactive chat interface.
//
// Design decisions:
//   - One root model (App) renders the whole screen; there are no
//     nested view models to switch between.
//   - Orchestrator events arrive on a channel and are re-injected as
//     Bubble Tea messages, so all state mutation happens in Update.
//   - Generation and query execution run inside tea.Cmd closures; the
//     event loop itself never blocks.
package tui

import (
	"github.com/askql/askql/ai"
	"github.com/askql/askql/applog"
	"github.com/askql/askql/db"
	tea "github.com/charmbracelet/bubbletea"
)

// Start runs the chat UI until the user quits.
func Start(orc *ai.Orchestrator, database *db.DB) error {
	applog.Event("APP", "tui started, provider=%s", orc.Provider().Name())
	p := tea.NewProgram(NewApp(orc, database), tea.WithAltScreen())
	_, err := p.Run()
	applog.Event("APP", "tui exited")
	return err
}
