package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

const anthropicDefaultBaseURL = "https://api.anthropic.com/v1"

// AnthropicStyle implements the Provider interface for the Anthropic
// Messages API with SSE streaming.
type AnthropicStyle struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client

	mu           sync.Mutex
	ready        bool
	initializing bool
	lastErr      string
	abort        aborter
}

var _ Provider = (*AnthropicStyle)(nil)

// NewAnthropicStyle creates an Anthropic provider.
func NewAnthropicStyle(apiKey, model, baseURL string) *AnthropicStyle {
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	if baseURL == "" {
		baseURL = anthropicDefaultBaseURL
	}
	return &AnthropicStyle{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		client:  http.DefaultClient,
	}
}

func (a *AnthropicStyle) Name() string {
	return fmt.Sprintf("Anthropic (%s)", a.model)
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
	// Temperature is a pointer so 0 survives omitempty semantics only
	// when explicitly requested.
	Temperature   *float64 `json:"temperature,omitempty"`
	StopSequences []string `json:"stop_sequences,omitempty"`
	Stream        bool     `json:"stream,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// anthropicEvent covers every stream event we care about; the Type
// discriminator selects the branch.
type anthropicEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Initialize verifies the API key and probes the models endpoint.
func (a *AnthropicStyle) Initialize(ctx context.Context) error {
	if a.apiKey == "" && a.baseURL == anthropicDefaultBaseURL {
		return &ConfigError{Provider: "anthropic", Field: "api_key", Reason: "required for the hosted endpoint"}
	}

	a.mu.Lock()
	a.initializing = true
	a.ready = false
	a.lastErr = ""
	a.mu.Unlock()

	err := probeModelsEndpoint(ctx, a.client, "anthropic", a.baseURL, a.authHeader)

	a.mu.Lock()
	a.initializing = false
	if err != nil {
		a.lastErr = err.Error()
	} else {
		a.ready = true
	}
	a.mu.Unlock()
	return err
}

// authHeader snapshots the key under the mutex; the stream goroutine
// may race a concurrent Cleanup otherwise.
func (a *AnthropicStyle) authHeader(req *http.Request) {
	a.mu.Lock()
	key := a.apiKey
	a.mu.Unlock()
	req.Header.Set("x-api-key", key)
	req.Header.Set("anthropic-version", "2023-06-01")
}

func (a *AnthropicStyle) GenerateStreaming(req Request, cb StreamCallbacks) error {
	a.mu.Lock()
	if !a.ready {
		a.mu.Unlock()
		return &NotReadyError{Provider: "anthropic"}
	}
	a.mu.Unlock()

	ctx := a.abort.arm()
	go a.stream(ctx, req, newStreamGuard(cb))
	return nil
}

func (a *AnthropicStyle) GenerateText(ctx context.Context, req Request) (string, error) {
	return collectText(ctx, a.GenerateStreaming, a.Abort, req)
}

func (a *AnthropicStyle) Abort() {
	a.abort.fire()
}

func (a *AnthropicStyle) Cleanup() {
	a.abort.clear()
	a.mu.Lock()
	a.ready = false
	a.initializing = false
	a.apiKey = ""
	a.mu.Unlock()
}

func (a *AnthropicStyle) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Status{
		Ready:        a.ready,
		Initializing: a.initializing,
		Err:          a.lastErr,
		CurrentModel: a.model,
	}
}

// stream runs one streaming Messages request. Only content_block_delta
// events contribute text; message_stop is terminal; error events surface
// through OnError. All other event types are ignored, and malformed
// data lines are skipped.
func (a *AnthropicStyle) stream(ctx context.Context, req Request, g *streamGuard) {
	// The system role lives in a top-level field, not in messages.
	var system string
	msgs := make([]anthropicMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == RoleSystem {
			system = m.Content
			continue
		}
		msgs = append(msgs, anthropicMessage{Role: m.Role, Content: m.Content})
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}
	body := anthropicRequest{
		Model:         a.model,
		MaxTokens:     maxTokens,
		System:        system,
		Messages:      msgs,
		StopSequences: req.Stop,
		Stream:        true,
	}
	if req.Temperature > 0 {
		body.Temperature = &req.Temperature
	}

	payload, err := json.Marshal(body)
	if err != nil {
		g.fail(&TransportError{Provider: "anthropic", Err: err})
		return
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		g.fail(&TransportError{Provider: "anthropic", Err: err})
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")
	a.authHeader(httpReq)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			g.complete()
			return
		}
		g.fail(&TransportError{Provider: "anthropic", Err: err})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		g.fail(connectivityError("anthropic", resp.StatusCode, respBody))
		return
	}

	var dec sseDecoder
	buf := make([]byte, 4096)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			for _, data := range dec.Feed(buf[:n]) {
				var ev anthropicEvent
				if err := json.Unmarshal([]byte(data), &ev); err != nil {
					continue
				}
				switch ev.Type {
				case "content_block_delta":
					if ev.Delta.Text == "" {
						continue
					}
					if ctx.Err() != nil {
						g.complete()
						return
					}
					g.token(ev.Delta.Text)
				case "message_stop":
					g.complete()
					return
				case "error":
					// Always surfaced, never swallowed.
					g.fail(&TransportError{
						Provider: "anthropic",
						Err:      fmt.Errorf("%s", ev.Error.Message),
					})
					return
				}
			}
		}
		if readErr != nil {
			if readErr == io.EOF || ctx.Err() != nil {
				// A final data line missing its newline still counts.
				if data, ok := dec.Flush(); ok && ctx.Err() == nil {
					var ev anthropicEvent
					if err := json.Unmarshal([]byte(data), &ev); err == nil {
						switch ev.Type {
						case "content_block_delta":
							if ev.Delta.Text != "" {
								g.token(ev.Delta.Text)
							}
						case "error":
							g.fail(&TransportError{
								Provider: "anthropic",
								Err:      fmt.Errorf("%s", ev.Error.Message),
							})
							return
						}
					}
				}
				g.complete()
				return
			}
			g.fail(&TransportError{Provider: "anthropic", Err: readErr})
			return
		}
	}
}
