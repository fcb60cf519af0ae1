package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// OpenAICompatible implements the Provider interface for self-hosted
// inference servers exposing the OpenAI wire shape (Ollama, vLLM,
// llama.cpp, LM Studio and the like). A base URL and model are required;
// an API key is optional.
type OpenAICompatible struct {
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

var _ Provider = (*OpenAICompatible)(nil)

// NewOpenAICompatible creates a provider for an OpenAI-compatible endpoint.
func NewOpenAICompatible(baseURL, model, apiKey string) *OpenAICompatible {
	return &OpenAICompatible{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		client:  http.DefaultClient,
	}
}

func (c *OpenAICompatible) Name() string {
	return fmt.Sprintf("Compatible (%s)", c.model)
}

// Initialize validates the endpoint configuration and probes it. Many
// self-hosted servers lack a models-listing endpoint, so when the
// metadata probe is rejected we fall back to a minimal one-token
// completion as the connectivity check.
func (c *OpenAICompatible) Initialize(ctx context.Context) error {
	if c.baseURL == "" {
		return &ConfigError{Provider: "compatible", Field: "base_url", Reason: "required"}
	}
	if c.model == "" {
		return &ConfigError{Provider: "compatible", Field: "model", Reason: "required"}
	}

	c.mu.Lock()
	c.initializing = true
	c.ready = false
	c.lastErr = ""
	c.mu.Unlock()

	err := probeModelsEndpoint(ctx, c.client, "compatible", c.baseURL, c.authHeader)
	var connErr *ConnectivityError
	if errors.As(err, &connErr) && connErr.StatusCode != 0 {
		// The server answered but has no /models; try a real completion.
		err = c.probeCompletion(ctx)
	}

	c.mu.Lock()
	c.initializing = false
	if err != nil {
		c.lastErr = err.Error()
	} else {
		c.ready = true
	}
	c.mu.Unlock()
	return err
}

// probeCompletion issues a one-token non-streaming completion.
func (c *OpenAICompatible) probeCompletion(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	payload, err := json.Marshal(openAIChatRequest{
		Model:     c.model,
		Messages:  []openAIMessage{{Role: RoleUser, Content: "ping"}},
		MaxTokens: 1,
	})
	if err != nil {
		return &ConnectivityError{Provider: "compatible", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return &ConnectivityError{Provider: "compatible", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	c.authHeader(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return &ConnectivityError{Provider: "compatible", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return connectivityError("compatible", resp.StatusCode, body)
	}
	return nil
}

// authHeader snapshots the key under the mutex; the stream goroutine
// may race a concurrent Cleanup otherwise.
func (c *OpenAICompatible) authHeader(req *http.Request) {
	c.mu.Lock()
	key := c.apiKey
	c.mu.Unlock()
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
}

func (c *OpenAICompatible) GenerateStreaming(req Request, cb StreamCallbacks) error {
	c.mu.Lock()
	if !c.ready {
		c.mu.Unlock()
		return &NotReadyError{Provider: "compatible"}
	}
	c.mu.Unlock()

	ctx := c.abort.arm()
	go streamOpenAIWire(ctx, c.client, "compatible", c.baseURL, c.authHeader, c.model, req, newStreamGuard(cb))
	return nil
}

func (c *OpenAICompatible) GenerateText(ctx context.Context, req Request) (string, error) {
	return collectText(ctx, c.GenerateStreaming, c.Abort, req)
}

func (c *OpenAICompatible) Abort() {
	c.abort.fire()
}

func (c *OpenAICompatible) Cleanup() {
	c.abort.clear()
	c.mu.Lock()
	c.ready = false
	c.initializing = false
	c.apiKey = ""
	c.mu.Unlock()
}

func (c *OpenAICompatible) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		Ready:        c.ready,
		Initializing: c.initializing,
		Err:          c.lastErr,
		CurrentModel: c.model,
	}
}
