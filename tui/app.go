// app.go — root Bubble Tea model: a chat view over the generation
// orchestrator with a status bar for provider and model lifecycle.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/askql/askql/ai"
	"github.com/askql/askql/applog"
	"github.com/askql/askql/db"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// App is the root model.
type App struct {
	orc      *ai.Orchestrator
	database *db.DB

	vp      viewport.Model
	input   textinput.Model
	spin    spinner.Model
	events  chan ai.Event
	unsub   func()
	ready   bool
	initErr string

	streaming  bool
	streamText string
	lifecycle  *ai.ModelLifecycleState
	banner     string
	lastSQLID  string
	lastSQL    string
	width      int
	height     int
}

// NewApp wires the orchestrator into a fresh chat UI. database may be
// nil when running without a connection (generation still works, the
// run action is disabled).
func NewApp(orc *ai.Orchestrator, database *db.DB) *App {
	input := textinput.New()
	input.Placeholder = "Ask a question about your data"
	input.Prompt = StylePrompt.Render("Ask> ")
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.MiniDot
	spin.Style = StyleDimmed

	events := make(chan ai.Event, 64)
	app := &App{
		orc:      orc,
		database: database,
		vp:       viewport.New(80, 20),
		input:    input,
		spin:     spin,
		events:   events,
	}
	app.unsub = orc.Subscribe(func(ev ai.Event) {
		// Drop rather than block: the UI catches up on the next event.
		select {
		case events <- ev:
		default:
		}
	})
	return app
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.waitForEvent(), a.initProvider(), a.spin.Tick)
}

// waitForEvent bridges the orchestrator subscription into Bubble Tea.
func (a *App) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		return OrchestratorEventMsg{Event: <-a.events}
	}
}

func (a *App) initProvider() tea.Cmd {
	return func() tea.Msg {
		err := a.orc.InitializeProvider(context.Background())
		return ProviderReadyMsg{Err: err}
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.vp.Width = msg.Width - 2
		a.vp.Height = msg.Height - 5
		a.input.Width = msg.Width - 8
		a.refresh()
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case ProviderReadyMsg:
		if msg.Err != nil {
			a.initErr = msg.Err.Error()
			applog.Error("provider init: %v", msg.Err)
		} else {
			a.ready = true
			a.initErr = ""
		}
		a.refresh()
		return a, nil

	case OrchestratorEventMsg:
		a.applyEvent(msg.Event)
		return a, a.waitForEvent()

	case GenerationDoneMsg:
		a.streaming = false
		if msg.Err != nil && msg.Err != ai.ErrGenerationInFlight {
			a.banner = msg.Err.Error()
		}
		a.refresh()
		return a, nil

	case QueryResultMsg:
		errStr := ""
		if msg.Err != nil {
			errStr = msg.Err.Error()
		}
		a.orc.AttachQueryResult(msg.MessageID, msg.Result, errStr)
		a.refresh()
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spin, cmd = a.spin.Update(msg)
		return a, cmd
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		a.unsub()
		a.orc.Cleanup()
		return a, tea.Quit
	case "esc":
		a.orc.AbortGeneration()
		return a, nil
	case "enter":
		return a, a.send()
	case "ctrl+r":
		return a, a.runLastSQL()
	case "ctrl+k":
		a.vp.LineUp(1)
		return a, nil
	case "ctrl+j":
		a.vp.LineDown(1)
		return a, nil
	case "pgup":
		a.vp.HalfViewUp()
		return a, nil
	case "pgdown":
		a.vp.HalfViewDown()
		return a, nil
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

func (a *App) send() tea.Cmd {
	text := strings.TrimSpace(a.input.Value())
	if text == "" || a.streaming || !a.ready {
		return nil
	}
	a.input.SetValue("")
	a.banner = ""
	orc := a.orc
	return func() tea.Msg {
		sql, err := orc.GenerateSQL(context.Background(), text)
		return GenerationDoneMsg{SQL: sql, Err: err}
	}
}

// runLastSQL executes the most recent extracted SQL and attaches the
// result to its message. Disabled when extraction found no valid SQL.
func (a *App) runLastSQL() tea.Cmd {
	if a.database == nil || a.lastSQL == "" || a.streaming {
		return nil
	}
	id, sql, database := a.lastSQLID, a.lastSQL, a.database
	return func() tea.Msg {
		res, err := database.Execute(context.Background(), sql)
		return QueryResultMsg{MessageID: id, Result: res, Err: err}
	}
}

func (a *App) applyEvent(ev ai.Event) {
	switch ev.Kind {
	case ai.EventStateChanged:
		a.streaming = ev.State == ai.GenStreaming
		if a.streaming {
			a.streamText = ""
		}
	case ai.EventToken:
		a.streamText = ev.StreamingText
	case ai.EventMessageAppended:
		a.streamText = ""
		if ev.Message != nil && ev.Message.SQL != "" {
			a.lastSQLID = ev.Message.ID
			a.lastSQL = ev.Message.SQL
		}
	case ai.EventLifecycle:
		a.lifecycle = ev.Lifecycle
	case ai.EventError:
		if ev.Err != nil {
			a.banner = ev.Err.Error()
		}
	}
	a.refresh()
}

// refresh re-renders the chat transcript into the viewport.
func (a *App) refresh() {
	var lines []string
	for _, m := range a.orc.History() {
		switch m.Role {
		case ai.RoleUser:
			lines = append(lines, StyleUser.Render("You: ")+m.Content, "")
		case ai.RoleAssistant:
			lines = append(lines, StyleAssistant.Render("AI:"))
			for _, l := range strings.Split(m.Content, "\n") {
				lines = append(lines, StyleNormal.Render("  "+l))
			}
			if m.SQL != "" {
				lines = append(lines, "", StyleSQL.Render(fmt.Sprintf("  SQL (confidence %.1f), Ctrl+R to run", m.Confidence)))
			} else {
				lines = append(lines, "", StyleDimmed.Render("  No runnable SQL found in this response"))
			}
			if m.QueryErr != "" {
				lines = append(lines, StyleError.Render("  query error: "+m.QueryErr))
			} else if m.QueryResult != nil {
				lines = append(lines, renderResult(m.QueryResult)...)
			}
			lines = append(lines, "")
		}
	}
	if a.streaming && a.streamText != "" {
		lines = append(lines, StyleAssistant.Render("AI:"))
		for _, l := range strings.Split(a.streamText, "\n") {
			lines = append(lines, StyleNormal.Render("  "+l))
		}
	}
	a.vp.SetContent(strings.Join(lines, "\n"))
	a.vp.GotoBottom()
}

// renderResult shows the first rows of an attached query result.
func renderResult(r *db.QueryResult) []string {
	lines := []string{StyleSuccess.Render("  " + strings.Join(r.Columns, " | "))}
	max := len(r.Rows)
	if max > 10 {
		max = 10
	}
	for _, row := range r.Rows[:max] {
		lines = append(lines, "  "+strings.Join(row, " | "))
	}
	if r.RowCount > max {
		lines = append(lines, StyleDimmed.Render(fmt.Sprintf("  (%s more rows)", db.FormatRowCount(int64(r.RowCount-max)))))
	}
	return lines
}

func (a *App) View() string {
	title := StyleTitle.Render("askql") + " " + StyleDimmed.Render("("+a.orc.Provider().Name()+")")

	prompt := a.input.View()
	if a.streaming {
		prompt = StylePrompt.Render("Ask> ") + a.spin.View() + StyleDimmed.Render(" generating… (Esc to stop)")
	}

	status := a.statusLine()
	return lipgloss.JoinVertical(lipgloss.Left, title, a.vp.View(), prompt, status)
}

func (a *App) statusLine() string {
	if a.initErr != "" {
		return StyleError.Render("provider error: " + a.initErr)
	}
	if a.banner != "" {
		return StyleError.Render(a.banner)
	}
	if a.lifecycle != nil && a.lifecycle.Phase != ai.LifecycleReady && a.lifecycle.Phase != ai.LifecycleIdle {
		return StyleWarning.Render(fmt.Sprintf("%s %.0f%%: %s", a.lifecycle.Phase, a.lifecycle.Progress, a.lifecycle.StatusText))
	}
	st := a.orc.Provider().Status()
	switch {
	case st.Ready:
		return StyleStatusBar.Render("ready · Enter send · Ctrl+R run · Esc abort · Ctrl+C quit")
	case st.Initializing:
		return StyleStatusBar.Render("initializing provider…")
	default:
		return StyleStatusBar.Render("provider not ready")
	}
}
