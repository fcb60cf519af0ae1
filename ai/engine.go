// engine.go defines the boundary to the local inference backend.
//
// The neural-network internals are opaque to this package: the provider
// only needs capability probing, model loading with progress, and
// token-streamed generation. The built-in canned engine keeps the whole
// local pipeline usable for development and tests without model weights.
package ai

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ModelDescriptor describes a locally loadable model.
type ModelDescriptor struct {
	ID            string
	DisplayName   string
	SizeEstimate  string
	ContextLength int
}

// LocalModelCatalog is the static catalog of models the local provider
// can load.
var LocalModelCatalog = []ModelDescriptor{
	{ID: "qwen2.5-coder-1.5b", DisplayName: "Qwen2.5 Coder 1.5B", SizeEstimate: "1.1 GB", ContextLength: 32768},
	{ID: "llama-3.2-3b", DisplayName: "Llama 3.2 3B", SizeEstimate: "2.0 GB", ContextLength: 131072},
	{ID: "sqlcoder-7b", DisplayName: "SQLCoder 7B", SizeEstimate: "4.1 GB", ContextLength: 8192},
}

// LookupLocalModel returns the catalog entry for an id.
func LookupLocalModel(id string) (ModelDescriptor, bool) {
	for _, m := range LocalModelCatalog {
		if m.ID == id {
			return m, true
		}
	}
	return ModelDescriptor{}, false
}

// LoadProgress reports model download/load progress across the worker
// boundary.
type LoadProgress struct {
	Stage   string // "downloading" or "loading"
	Percent float64
	Status  string
}

// InferenceEngine is the opaque local backend invoked by the worker.
type InferenceEngine interface {
	// Probe checks the required local compute capability is present.
	Probe(ctx context.Context) error

	// Load downloads and loads a model, reporting progress as it goes.
	Load(ctx context.Context, modelID string, progress func(LoadProgress)) error

	// Generate produces a completion, delivering each token through
	// onToken. Cancelling ctx stops generation early; the text produced
	// up to that point is still returned.
	Generate(ctx context.Context, req Request, onToken func(string)) (string, error)

	// Close releases the loaded model.
	Close() error
}

// cannedEngine is a development engine that fakes the full lifecycle:
// staged download progress, load delay and token-by-token canned output.
type cannedEngine struct {
	latency time.Duration
}

var _ InferenceEngine = (*cannedEngine)(nil)

// NewCannedEngine returns the built-in development engine.
func NewCannedEngine() InferenceEngine {
	return &cannedEngine{latency: 20 * time.Millisecond}
}

func (e *cannedEngine) Probe(ctx context.Context) error {
	select {
	case <-time.After(e.latency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *cannedEngine) Load(ctx context.Context, modelID string, progress func(LoadProgress)) error {
	if _, ok := LookupLocalModel(modelID); !ok {
		return fmt.Errorf("unknown local model %q", modelID)
	}

	for pct := 0; pct <= 100; pct += 25 {
		select {
		case <-time.After(e.latency):
		case <-ctx.Done():
			return ctx.Err()
		}
		progress(LoadProgress{
			Stage:   "downloading",
			Percent: float64(pct),
			Status:  fmt.Sprintf("Downloading %s (%d%%)", modelID, pct),
		})
	}
	progress(LoadProgress{Stage: "loading", Percent: 100, Status: "Loading model into memory"})

	select {
	case <-time.After(e.latency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *cannedEngine) Generate(ctx context.Context, req Request, onToken func(string)) (string, error) {
	question := ""
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == RoleUser {
			question = req.Messages[i].Content
			break
		}
	}

	reply := "```sql\nSELECT 'canned local engine' AS note;\n```\n" +
		"-- asked: " + firstLine(question)

	var out strings.Builder
	for _, tok := range strings.SplitAfter(reply, " ") {
		select {
		case <-time.After(e.latency):
		case <-ctx.Done():
			return out.String(), nil
		}
		out.WriteString(tok)
		onToken(tok)
	}
	return out.String(), nil
}

func (e *cannedEngine) Close() error { return nil }

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
