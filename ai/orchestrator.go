// orchestrator.go owns the single-flight generation state machine.
//
// Design decisions:
//   - At most one generation is in flight; a second request while
//     streaming fails immediately instead of queueing.
//   - The orchestrator exclusively owns conversation history and the
//     streaming accumulation buffer. Providers never touch either.
//   - Token deliveries append to one monotonically-growing buffer;
//     the buffer is never reordered or rewritten mid-stream.
//   - Abort resolves as completion, so an aborted generation still
//     yields a best-effort assistant message.
package ai

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/askql/askql/config"
	"github.com/askql/askql/db"
	"github.com/google/uuid"
)

// ErrGenerationInFlight is returned when GenerateSQL is called while a
// generation is already streaming.
var ErrGenerationInFlight = errors.New("a generation is already in flight")

// ErrStreamingInProgress is returned when provider switching is
// attempted mid-stream.
var ErrStreamingInProgress = errors.New("cannot switch provider while streaming")

// GenState is the orchestrator's generation state.
type GenState int

const (
	GenIdle GenState = iota
	GenStreaming
)

// ConversationMessage is one entry in the conversation. Messages are
// appended and never mutated afterwards, except to attach a
// later-arriving query result.
type ConversationMessage struct {
	ID          string
	Role        string
	Content     string
	Timestamp   time.Time
	SQL         string
	Confidence  float64
	Issues      []string
	QueryResult *db.QueryResult
	QueryErr    string
}

// EventKind discriminates orchestrator events pushed to subscribers.
type EventKind int

const (
	EventStateChanged EventKind = iota
	EventToken
	EventMessageAppended
	EventLifecycle
	EventError
)

// Event is pushed to subscribers on every observable change.
type Event struct {
	Kind          EventKind
	State         GenState
	StreamingText string
	Message       *ConversationMessage
	Lifecycle     *ModelLifecycleState
	Err           error
}

// SchemaSource supplies catalog metadata for prompt construction.
type SchemaSource interface {
	SchemaSnapshot(ctx context.Context) ([]db.DatabaseSchema, error)
}

// Orchestrator wires the prompt builder, the active provider and the
// response parser into one conversation.
type Orchestrator struct {
	mu           sync.Mutex
	cfg          config.AIConfig
	providerType ProviderType
	provider     Provider
	builder      *PromptBuilder
	schema       SchemaSource
	history      []ConversationMessage
	state        GenState
	buf          strings.Builder
	listeners    map[int]func(Event)
	nextListener int
}

// NewOrchestrator creates an orchestrator with the provider selected by
// cfg. The provider is constructed but not initialized.
func NewOrchestrator(cfg config.AIConfig, schema SchemaSource) (*Orchestrator, error) {
	t, err := ParseProviderType(cfg.Provider)
	if err != nil {
		return nil, err
	}
	p, err := NewProvider(t, cfg)
	if err != nil {
		return nil, err
	}
	o := &Orchestrator{
		cfg:          cfg,
		providerType: t,
		provider:     p,
		builder:      NewPromptBuilder(),
		schema:       schema,
		listeners:    make(map[int]func(Event)),
	}
	o.hookLifecycle(p)
	return o, nil
}

// hookLifecycle relays local model lifecycle changes to subscribers.
func (o *Orchestrator) hookLifecycle(p Provider) {
	if local, ok := p.(*LocalInference); ok {
		local.SetStateListener(func(s ModelLifecycleState) {
			o.notify(Event{Kind: EventLifecycle, Lifecycle: &s})
		})
	}
}

// Subscribe registers a listener for orchestrator events and returns an
// unsubscribe function.
func (o *Orchestrator) Subscribe(fn func(Event)) func() {
	o.mu.Lock()
	id := o.nextListener
	o.nextListener++
	o.listeners[id] = fn
	o.mu.Unlock()
	return func() {
		o.mu.Lock()
		delete(o.listeners, id)
		o.mu.Unlock()
	}
}

func (o *Orchestrator) notify(ev Event) {
	o.mu.Lock()
	fns := make([]func(Event), 0, len(o.listeners))
	for _, fn := range o.listeners {
		fns = append(fns, fn)
	}
	o.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// InitializeProvider runs the active provider's Initialize.
func (o *Orchestrator) InitializeProvider(ctx context.Context) error {
	o.mu.Lock()
	p := o.provider
	o.mu.Unlock()
	return p.Initialize(ctx)
}

// Provider returns the active provider.
func (o *Orchestrator) Provider() Provider {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.provider
}

// State returns the current generation state.
func (o *Orchestrator) State() GenState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// StreamingText returns the text accumulated by the in-flight (or most
// recent) generation.
func (o *Orchestrator) StreamingText() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.buf.String()
}

// History returns a copy of the conversation.
func (o *Orchestrator) History() []ConversationMessage {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]ConversationMessage, len(o.history))
	copy(out, o.history)
	return out
}

// GenerateSQL runs one full generation: append the user message, build
// the prompt, stream from the active provider, parse the result and
// append the assistant message. Returns the extracted SQL, or "" when
// the response contained no valid statement.
//
// The single-flight guard is checked synchronously: a call while a
// generation is streaming fails with ErrGenerationInFlight before any
// message is appended.
func (o *Orchestrator) GenerateSQL(ctx context.Context, text string) (string, error) {
	o.mu.Lock()
	if o.state == GenStreaming {
		o.mu.Unlock()
		return "", ErrGenerationInFlight
	}
	o.state = GenStreaming
	o.buf.Reset()
	p := o.provider
	userMsg := ConversationMessage{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Content:   text,
		Timestamp: time.Now(),
	}
	o.history = append(o.history, userMsg)
	history := make([]ConversationMessage, len(o.history)-1)
	copy(history, o.history[:len(o.history)-1])
	o.mu.Unlock()

	o.notify(Event{Kind: EventMessageAppended, Message: &userMsg})
	o.notify(Event{Kind: EventStateChanged, State: GenStreaming})

	// Schema failures degrade the prompt, they do not block generation.
	var databases []db.DatabaseSchema
	if o.schema != nil {
		if dbs, err := o.schema.SchemaSnapshot(ctx); err == nil {
			databases = dbs
		}
	}
	msgs := o.builder.Build(databases, history, text)
	LogGenerationRequest(p.Name(), msgs)

	type outcome struct {
		text string
		err  error
	}
	done := make(chan outcome, 1)

	err := p.GenerateStreaming(Request{Messages: msgs, MaxTokens: 1024}, StreamCallbacks{
		OnToken: func(delta string) {
			o.mu.Lock()
			o.buf.WriteString(delta)
			current := o.buf.String()
			o.mu.Unlock()
			o.notify(Event{Kind: EventToken, StreamingText: current})
		},
		OnComplete: func(full string) {
			done <- outcome{text: full}
		},
		OnError: func(err error) {
			done <- outcome{err: err}
		},
	})
	if err != nil {
		o.mu.Lock()
		o.state = GenIdle
		o.mu.Unlock()
		o.notify(Event{Kind: EventStateChanged, State: GenIdle})
		return "", err
	}

	var result outcome
	select {
	case result = <-done:
	case <-ctx.Done():
		p.Abort()
		result = <-done
	}

	if result.err != nil {
		// Error: no assistant message, history stays intact.
		o.mu.Lock()
		o.state = GenIdle
		o.mu.Unlock()
		LogGenerationResult(p.Name(), o.StreamingText(), ParsedSQL{}, result.err)
		o.notify(Event{Kind: EventError, Err: result.err})
		o.notify(Event{Kind: EventStateChanged, State: GenIdle})
		return "", result.err
	}

	parsed := ExtractSQL(result.text)
	LogGenerationResult(p.Name(), result.text, parsed, nil)

	assistant := ConversationMessage{
		ID:         uuid.NewString(),
		Role:       RoleAssistant,
		Content:    result.text,
		Timestamp:  time.Now(),
		SQL:        parsed.SQL,
		Confidence: parsed.Confidence,
		Issues:     parsed.Issues,
	}
	o.mu.Lock()
	o.history = append(o.history, assistant)
	o.state = GenIdle
	o.mu.Unlock()

	o.notify(Event{Kind: EventMessageAppended, Message: &assistant})
	o.notify(Event{Kind: EventStateChanged, State: GenIdle})
	return parsed.SQL, nil
}

// AbortGeneration cancels the in-flight generation. Safe to call at any
// time; a no-op when nothing is streaming.
func (o *Orchestrator) AbortGeneration() {
	o.mu.Lock()
	p := o.provider
	o.mu.Unlock()
	p.Abort()
}

// AttachQueryResult attaches an execution result (or error) to the
// message that produced the SQL.
func (o *Orchestrator) AttachQueryResult(messageID string, res *db.QueryResult, execErr string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := range o.history {
		if o.history[i].ID == messageID {
			o.history[i].QueryResult = res
			o.history[i].QueryErr = execErr
			return true
		}
	}
	return false
}

// UpdateProviderConfig replaces the stored config for one provider type
// and rebuilds the active provider when it is the one affected.
func (o *Orchestrator) UpdateProviderConfig(t ProviderType, cfg config.AIConfig) error {
	o.mu.Lock()
	if o.state == GenStreaming {
		o.mu.Unlock()
		return ErrStreamingInProgress
	}
	o.cfg = cfg
	rebuild := o.providerType == t
	o.mu.Unlock()

	if rebuild {
		return o.SetProvider(t)
	}
	return nil
}

// SetProvider switches the active provider type. Disallowed while
// streaming; the previous provider is cleaned up. The new provider is
// constructed uninitialized — run InitializeProvider next.
func (o *Orchestrator) SetProvider(t ProviderType) error {
	o.mu.Lock()
	if o.state == GenStreaming {
		o.mu.Unlock()
		return ErrStreamingInProgress
	}
	cfg := o.cfg
	old := o.provider
	o.mu.Unlock()

	p, err := NewProvider(t, cfg)
	if err != nil {
		return err
	}
	old.Cleanup()

	o.mu.Lock()
	o.provider = p
	o.providerType = t
	o.mu.Unlock()
	o.hookLifecycle(p)
	return nil
}

// Cleanup releases the active provider.
func (o *Orchestrator) Cleanup() {
	o.mu.Lock()
	p := o.provider
	o.mu.Unlock()
	p.Cleanup()
}
