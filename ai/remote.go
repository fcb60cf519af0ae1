// remote.go holds the plumbing shared by the HTTP streaming providers:
// the terminal-callback guard, the abort handle, vendor error envelope
// parsing and the blocking GenerateText adapter.
package ai

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// probeTimeout bounds the Initialize connectivity probe so a hung
// endpoint resolves to a ConnectivityError instead of blocking forever.
const probeTimeout = 15 * time.Second

// streamGuard accumulates streamed text and enforces the callback
// contract: after a terminal callback fires, no further OnToken may fire.
type streamGuard struct {
	mu   sync.Mutex
	done bool
	buf  strings.Builder
	cb   StreamCallbacks
}

func newStreamGuard(cb StreamCallbacks) *streamGuard {
	return &streamGuard{cb: cb}
}

// token appends a delta and forwards it. Deltas arriving after a
// terminal callback are dropped.
func (g *streamGuard) token(delta string) {
	g.mu.Lock()
	if g.done {
		g.mu.Unlock()
		return
	}
	g.buf.WriteString(delta)
	g.mu.Unlock()

	if g.cb.OnToken != nil {
		g.cb.OnToken(delta)
	}
}

// complete fires OnComplete with everything accumulated so far.
func (g *streamGuard) complete() {
	g.mu.Lock()
	if g.done {
		g.mu.Unlock()
		return
	}
	g.done = true
	full := g.buf.String()
	g.mu.Unlock()

	if g.cb.OnComplete != nil {
		g.cb.OnComplete(full)
	}
}

func (g *streamGuard) fail(err error) {
	g.mu.Lock()
	if g.done {
		g.mu.Unlock()
		return
	}
	g.done = true
	g.mu.Unlock()

	if g.cb.OnError != nil {
		g.cb.OnError(err)
	}
}

// text returns the accumulated text so far.
func (g *streamGuard) text() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.buf.String()
}

// aborter owns the cancel handle for the in-flight generation.
// Abort is idempotent and a no-op while nothing is streaming.
type aborter struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

// arm creates a fresh cancellation context for one generation.
func (a *aborter) arm() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	a.mu.Lock()
	a.cancel = cancel
	a.mu.Unlock()
	return ctx
}

func (a *aborter) fire() {
	a.mu.Lock()
	cancel := a.cancel
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (a *aborter) clear() {
	a.mu.Lock()
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.mu.Unlock()
}

// vendorErrorMessage extracts a human-readable message from a JSON error
// envelope. Both vendors wrap errors as {"error":{"message":...}}; some
// self-hosted servers return a bare {"message":...} or {"error":"..."}.
func vendorErrorMessage(body []byte) string {
	var envelope struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	if len(envelope.Error) > 0 {
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(envelope.Error, &nested); err == nil && nested.Message != "" {
			return nested.Message
		}
		var plain string
		if err := json.Unmarshal(envelope.Error, &plain); err == nil {
			return plain
		}
	}
	return envelope.Message
}

// connectivityError builds a ConnectivityError from a non-2xx response,
// preferring the parsed vendor message over the raw status code.
func connectivityError(provider string, statusCode int, body []byte) *ConnectivityError {
	return &ConnectivityError{
		Provider:   provider,
		Message:    vendorErrorMessage(body),
		StatusCode: statusCode,
	}
}

// collectText adapts a streaming start function into the blocking
// GenerateText contract. Cancelling ctx aborts the stream; the text
// accumulated before the cut is still returned.
func collectText(ctx context.Context, start func(Request, StreamCallbacks) error, abort func(), req Request) (string, error) {
	done := make(chan struct{})
	var (
		out    string
		outErr error
	)
	err := start(req, StreamCallbacks{
		OnComplete: func(full string) {
			out = full
			close(done)
		},
		OnError: func(e error) {
			outErr = e
			close(done)
		},
	})
	if err != nil {
		return "", err
	}

	select {
	case <-done:
		return out, outErr
	case <-ctx.Done():
		abort()
		<-done
		return out, ctx.Err()
	}
}
