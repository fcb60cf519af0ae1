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

const openAIDefaultBaseURL = "https://api.openai.com/v1"

// OpenAIStyle implements the Provider interface for OpenAI's Chat
// Completions API with SSE streaming.
type OpenAIStyle struct {
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

var _ Provider = (*OpenAIStyle)(nil)

// NewOpenAIStyle creates an OpenAI provider. baseURL may be empty for
// the official endpoint; the API key is required unless a self-hosted
// base URL is supplied.
func NewOpenAIStyle(apiKey, model, baseURL string) *OpenAIStyle {
	if model == "" {
		model = "gpt-4o"
	}
	if baseURL == "" {
		baseURL = openAIDefaultBaseURL
	}
	return &OpenAIStyle{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		client:  http.DefaultClient,
	}
}

func (o *OpenAIStyle) Name() string {
	return fmt.Sprintf("OpenAI (%s)", o.model)
}

// Wire types shared with the OpenAI-compatible provider.

type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
	Stop        []string        `json:"stop,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
		Delta   struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func openAIMessages(msgs []Message) []openAIMessage {
	out := make([]openAIMessage, len(msgs))
	for i, m := range msgs {
		out[i] = openAIMessage{Role: m.Role, Content: m.Content}
	}
	return out
}

// Initialize verifies the API key is present and probes the models
// endpoint before flipping ready.
func (o *OpenAIStyle) Initialize(ctx context.Context) error {
	if o.apiKey == "" && o.baseURL == openAIDefaultBaseURL {
		return &ConfigError{Provider: "openai", Field: "api_key", Reason: "required for the hosted endpoint"}
	}

	o.mu.Lock()
	o.initializing = true
	o.ready = false
	o.lastErr = ""
	o.mu.Unlock()

	err := probeModelsEndpoint(ctx, o.client, "openai", o.baseURL, o.authHeader)

	o.mu.Lock()
	o.initializing = false
	if err != nil {
		o.lastErr = err.Error()
	} else {
		o.ready = true
	}
	o.mu.Unlock()
	return err
}

// authHeader snapshots the key under the mutex; the stream goroutine
// may race a concurrent Cleanup otherwise.
func (o *OpenAIStyle) authHeader(req *http.Request) {
	o.mu.Lock()
	key := o.apiKey
	o.mu.Unlock()
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
}

// probeModelsEndpoint runs the lightweight metadata call hosted vendors
// expose. A bounded timeout keeps a hung endpoint from wedging Initialize.
func probeModelsEndpoint(ctx context.Context, client *http.Client, provider, baseURL string, auth func(*http.Request)) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/models", nil)
	if err != nil {
		return &ConnectivityError{Provider: provider, Err: err}
	}
	auth(req)

	resp, err := client.Do(req)
	if err != nil {
		return &ConnectivityError{Provider: provider, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return connectivityError(provider, resp.StatusCode, body)
	}
	return nil
}

func (o *OpenAIStyle) GenerateStreaming(req Request, cb StreamCallbacks) error {
	o.mu.Lock()
	if !o.ready {
		o.mu.Unlock()
		return &NotReadyError{Provider: "openai"}
	}
	o.mu.Unlock()

	ctx := o.abort.arm()
	go streamOpenAIWire(ctx, o.client, "openai", o.baseURL, o.authHeader, o.model, req, newStreamGuard(cb))
	return nil
}

func (o *OpenAIStyle) GenerateText(ctx context.Context, req Request) (string, error) {
	return collectText(ctx, o.GenerateStreaming, o.Abort, req)
}

func (o *OpenAIStyle) Abort() {
	o.abort.fire()
}

func (o *OpenAIStyle) Cleanup() {
	o.abort.clear()
	o.mu.Lock()
	o.ready = false
	o.initializing = false
	o.apiKey = ""
	o.mu.Unlock()
}

func (o *OpenAIStyle) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Status{
		Ready:        o.ready,
		Initializing: o.initializing,
		Err:          o.lastErr,
		CurrentModel: o.model,
	}
}

// streamOpenAIWire runs one streaming completion over the OpenAI wire
// shape: "data: <json>" lines with delta text at choices[0].delta.content
// and a terminal "data: [DONE]" sentinel. Malformed lines are skipped.
// Shared by OpenAIStyle and OpenAICompatible.
func streamOpenAIWire(ctx context.Context, client *http.Client, provider, baseURL string, auth func(*http.Request), model string, req Request, g *streamGuard) {
	payload, err := json.Marshal(openAIChatRequest{
		Model:       model,
		Messages:    openAIMessages(req.Messages),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stop:        req.Stop,
		Stream:      true,
	})
	if err != nil {
		g.fail(&TransportError{Provider: provider, Err: err})
		return
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		g.fail(&TransportError{Provider: provider, Err: err})
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")
	auth(httpReq)

	resp, err := client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			g.complete()
			return
		}
		g.fail(&TransportError{Provider: provider, Err: err})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		g.fail(connectivityError(provider, resp.StatusCode, body))
		return
	}

	var dec sseDecoder
	buf := make([]byte, 4096)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			for _, data := range dec.Feed(buf[:n]) {
				if data == "[DONE]" {
					g.complete()
					return
				}
				if delta, ok := openAIDelta(data); ok {
					if ctx.Err() != nil {
						g.complete()
						return
					}
					g.token(delta)
				}
			}
		}
		if readErr != nil {
			if readErr == io.EOF || ctx.Err() != nil {
				// Abort and a cleanly closed body both resolve as
				// completion with whatever text accumulated. A final
				// data line missing its newline still counts.
				if data, ok := dec.Flush(); ok && ctx.Err() == nil && data != "[DONE]" {
					if delta, ok := openAIDelta(data); ok {
						g.token(delta)
					}
				}
				g.complete()
				return
			}
			g.fail(&TransportError{Provider: provider, Err: readErr})
			return
		}
	}
}

// openAIDelta extracts the delta text from one data payload.
// Partial or malformed JSON yields ok=false and the line is skipped.
func openAIDelta(data string) (string, bool) {
	var chunk openAIChatResponse
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		return "", false
	}
	if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
		return "", false
	}
	return chunk.Choices[0].Delta.Content, true
}
