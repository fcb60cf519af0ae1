package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/askql/askql/config"
	"github.com/askql/askql/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func localTestConfig() config.AIConfig {
	cfg := config.DefaultAIConfig()
	cfg.Provider = "local"
	cfg.Local.Model = "qwen2.5-coder-1.5b"
	return cfg
}

// failingSchema always errors; schema failures must degrade the prompt,
// never block generation.
type failingSchema struct{}

func (failingSchema) SchemaSnapshot(ctx context.Context) ([]db.DatabaseSchema, error) {
	return nil, errors.New("connection reset")
}

func newTestOrchestrator(t *testing.T, schema SchemaSource) *Orchestrator {
	t.Helper()
	orc, err := NewOrchestrator(localTestConfig(), schema)
	require.NoError(t, err)
	require.NoError(t, orc.InitializeProvider(context.Background()))
	t.Cleanup(orc.Cleanup)
	return orc
}

func TestOrchestrator_GenerateSQL(t *testing.T) {
	orc := newTestOrchestrator(t, nil)

	sql, err := orc.GenerateSQL(context.Background(), "how many users are there?")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 'canned local engine' AS note;", sql)

	history := orc.History()
	require.Len(t, history, 2)
	assert.Equal(t, RoleUser, history[0].Role)
	assert.Equal(t, "how many users are there?", history[0].Content)
	assert.Equal(t, RoleAssistant, history[1].Role)
	assert.Equal(t, sql, history[1].SQL)
	assert.InDelta(t, 0.9, history[1].Confidence, 0.001)
	assert.NotEmpty(t, history[0].ID)
	assert.NotEqual(t, history[0].ID, history[1].ID)
	assert.Equal(t, GenIdle, orc.State())
}

func TestOrchestrator_SchemaFailureDoesNotBlock(t *testing.T) {
	orc := newTestOrchestrator(t, failingSchema{})

	sql, err := orc.GenerateSQL(context.Background(), "anything")
	require.NoError(t, err)
	assert.NotEmpty(t, sql)
}

func TestOrchestrator_SingleFlight(t *testing.T) {
	orc := newTestOrchestrator(t, nil)

	firstDone := make(chan error, 1)
	go func() {
		_, err := orc.GenerateSQL(context.Background(), "first question")
		firstDone <- err
	}()

	waitForState(t, orc, GenStreaming)

	_, err := orc.GenerateSQL(context.Background(), "second question")
	assert.ErrorIs(t, err, ErrGenerationInFlight)

	// The rejected call must not have appended a second user message.
	userCount := 0
	for _, m := range orc.History() {
		if m.Role == RoleUser {
			userCount++
		}
	}
	assert.Equal(t, 1, userCount)

	require.NoError(t, <-firstDone)
}

func TestOrchestrator_AbortYieldsPartialMessage(t *testing.T) {
	orc := newTestOrchestrator(t, nil)

	unsub := orc.Subscribe(func(ev Event) {
		if ev.Kind == EventToken {
			orc.AbortGeneration()
		}
	})
	defer unsub()

	_, err := orc.GenerateSQL(context.Background(), "slow question")
	require.NoError(t, err)

	history := orc.History()
	require.Len(t, history, 2)
	assert.Equal(t, RoleAssistant, history[1].Role)
	// Aborted mid-stream: partial content, shorter than the full reply.
	assert.NotEmpty(t, history[1].Content)
	assert.NotContains(t, history[1].Content, "-- asked:")
	assert.Equal(t, GenIdle, orc.State())
}

func TestOrchestrator_ContextCancelAborts(t *testing.T) {
	orc := newTestOrchestrator(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	unsub := orc.Subscribe(func(ev Event) {
		if ev.Kind == EventToken {
			cancel()
		}
	})
	defer unsub()
	defer cancel()

	_, err := orc.GenerateSQL(ctx, "q")
	// Cancellation resolves as graceful completion of the stream.
	require.NoError(t, err)
	assert.Equal(t, GenIdle, orc.State())
}

func TestOrchestrator_Events(t *testing.T) {
	orc := newTestOrchestrator(t, nil)

	var kinds []EventKind
	unsub := orc.Subscribe(func(ev Event) {
		kinds = append(kinds, ev.Kind)
	})

	_, err := orc.GenerateSQL(context.Background(), "q")
	require.NoError(t, err)
	unsub()

	require.GreaterOrEqual(t, len(kinds), 4)
	assert.Equal(t, EventMessageAppended, kinds[0], "user message first")
	assert.Equal(t, EventStateChanged, kinds[1])
	assert.Contains(t, kinds, EventToken)
	assert.Equal(t, EventStateChanged, kinds[len(kinds)-1], "idle transition last")
	assert.Equal(t, EventMessageAppended, kinds[len(kinds)-2], "assistant message before idle")
}

func TestOrchestrator_AttachQueryResult(t *testing.T) {
	orc := newTestOrchestrator(t, nil)

	_, err := orc.GenerateSQL(context.Background(), "q")
	require.NoError(t, err)

	assistantID := orc.History()[1].ID
	res := &db.QueryResult{Columns: []string{"note"}, RowCount: 1, Status: "(1 row)"}
	assert.True(t, orc.AttachQueryResult(assistantID, res, ""))
	assert.False(t, orc.AttachQueryResult("missing-id", res, ""))

	attached := orc.History()[1]
	require.NotNil(t, attached.QueryResult)
	assert.Equal(t, 1, attached.QueryResult.RowCount)
}

func TestOrchestrator_SetProviderRejectedWhileStreaming(t *testing.T) {
	orc := newTestOrchestrator(t, nil)

	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		_, _ = orc.GenerateSQL(context.Background(), "q")
	}()
	waitForState(t, orc, GenStreaming)

	err := orc.SetProvider(ProviderCompatible)
	assert.ErrorIs(t, err, ErrStreamingInProgress)

	<-firstDone
}

func TestOrchestrator_SetProviderSwapsAndCleansUp(t *testing.T) {
	orc := newTestOrchestrator(t, nil)
	require.True(t, orc.Provider().Status().Ready)

	require.NoError(t, orc.SetProvider(ProviderCompatible))
	assert.Equal(t, "Compatible (llama3.2)", orc.Provider().Name())
	assert.False(t, orc.Provider().Status().Ready, "new provider starts uninitialized")
}

func waitForState(t *testing.T, orc *Orchestrator, want GenState) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if orc.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("orchestrator never reached state %v", want)
}
