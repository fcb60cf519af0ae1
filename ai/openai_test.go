package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openAIMock serves /models for the probe and an SSE stream of the
// given chunks for /chat/completions.
func openAIMock(t *testing.T, chunks []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/models":
			w.WriteHeader(http.StatusOK)
		case "/chat/completions":
			w.Header().Set("Content-Type", "text/event-stream")
			for _, chunk := range chunks {
				fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", chunk)
			}
			fmt.Fprintf(w, "data: [DONE]\n\n")
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestOpenAIStyle_MissingAPIKey(t *testing.T) {
	p := NewOpenAIStyle("", "", "")
	err := p.Initialize(context.Background())

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "api_key", cfgErr.Field)
}

func TestOpenAIStyle_NotReady(t *testing.T) {
	p := NewOpenAIStyle("key", "", "http://127.0.0.1:1")
	err := p.GenerateStreaming(Request{}, StreamCallbacks{})

	var notReady *NotReadyError
	assert.ErrorAs(t, err, &notReady)
}

func TestOpenAIStyle_ProbeFailureCarriesVendorMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"Incorrect API key provided"}}`)
	}))
	defer server.Close()

	p := NewOpenAIStyle("bad", "", server.URL)
	err := p.Initialize(context.Background())

	var connErr *ConnectivityError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "Incorrect API key provided", connErr.Message)
	assert.Equal(t, http.StatusUnauthorized, connErr.StatusCode)
	assert.False(t, p.Status().Ready)
}

func TestOpenAIStyle_GenerateText(t *testing.T) {
	server := openAIMock(t, []string{"SELECT", " 1", ";"})
	defer server.Close()

	p := NewOpenAIStyle("key", "gpt-4o", server.URL)
	require.NoError(t, p.Initialize(context.Background()))
	assert.True(t, p.Status().Ready)

	text, err := p.GenerateText(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "one please"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1;", text)
}

func TestOpenAIStyle_MalformedLinesSkipped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/models" {
			w.WriteHeader(http.StatusOK)
			return
		}
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n\n")
		fmt.Fprint(w, "data: {truncated json\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"b\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	p := NewOpenAIStyle("key", "", server.URL)
	require.NoError(t, p.Initialize(context.Background()))

	text, err := p.GenerateText(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "ab", text)
}

func TestOpenAIStyle_UnterminatedFinalLine(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/models" {
			w.WriteHeader(http.StatusOK)
			return
		}
		// The body ends mid-event: last data line has no trailing
		// newline and no [DONE] sentinel.
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"b\"}}]}")
	}))
	defer server.Close()

	p := NewOpenAIStyle("key", "", server.URL)
	require.NoError(t, p.Initialize(context.Background()))

	text, err := p.GenerateText(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "ab", text)
}

func TestOpenAIStyle_CallbackOrder(t *testing.T) {
	server := openAIMock(t, []string{"x", "y"})
	defer server.Close()

	p := NewOpenAIStyle("key", "", server.URL)
	require.NoError(t, p.Initialize(context.Background()))

	var tokens []string
	done := make(chan string, 1)
	err := p.GenerateStreaming(Request{}, StreamCallbacks{
		OnToken: func(delta string) { tokens = append(tokens, delta) },
		OnComplete: func(full string) {
			done <- full
		},
		OnError: func(err error) {
			t.Errorf("unexpected OnError: %v", err)
			done <- ""
		},
	})
	require.NoError(t, err)

	select {
	case full := <-done:
		assert.Equal(t, []string{"x", "y"}, tokens)
		assert.Equal(t, "xy", full)
	case <-time.After(5 * time.Second):
		t.Fatal("stream never completed")
	}
}

func TestOpenAIStyle_AbortResolvesAsComplete(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/models" {
			w.WriteHeader(http.StatusOK)
			return
		}
		fl, ok := w.(http.Flusher)
		if !ok {
			t.Error("response writer is not a flusher")
			return
		}
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n\n")
		fl.Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	p := NewOpenAIStyle("key", "", server.URL)
	require.NoError(t, p.Initialize(context.Background()))

	gotToken := make(chan struct{}, 1)
	done := make(chan string, 1)
	err := p.GenerateStreaming(Request{}, StreamCallbacks{
		OnToken: func(delta string) {
			select {
			case gotToken <- struct{}{}:
			default:
			}
		},
		OnComplete: func(full string) { done <- full },
		OnError: func(err error) {
			t.Errorf("abort must not surface as OnError, got: %v", err)
			done <- ""
		},
	})
	require.NoError(t, err)

	select {
	case <-gotToken:
	case <-time.After(5 * time.Second):
		t.Fatal("never received the first token")
	}
	p.Abort()

	select {
	case full := <-done:
		assert.Equal(t, "partial", full)
	case <-time.After(5 * time.Second):
		t.Fatal("abort did not resolve the stream")
	}
}

func TestOpenAIStyle_CleanupDuringStream(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/models" {
			w.WriteHeader(http.StatusOK)
			return
		}
		fl, ok := w.(http.Flusher)
		if !ok {
			t.Error("response writer is not a flusher")
			return
		}
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n\n")
		fl.Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	p := NewOpenAIStyle("key", "", server.URL)
	require.NoError(t, p.Initialize(context.Background()))

	gotToken := make(chan struct{}, 1)
	done := make(chan string, 1)
	err := p.GenerateStreaming(Request{}, StreamCallbacks{
		OnToken: func(string) {
			select {
			case gotToken <- struct{}{}:
			default:
			}
		},
		OnComplete: func(full string) { done <- full },
		OnError: func(err error) {
			t.Errorf("cleanup must resolve the stream as OnComplete, got: %v", err)
			done <- ""
		},
	})
	require.NoError(t, err)

	select {
	case <-gotToken:
	case <-time.After(5 * time.Second):
		t.Fatal("never received the first token")
	}
	// Cleanup while the stream goroutine is still live; the key is
	// cleared and the in-flight generation resolves gracefully.
	p.Cleanup()

	select {
	case full := <-done:
		assert.Equal(t, "partial", full)
	case <-time.After(5 * time.Second):
		t.Fatal("cleanup did not resolve the stream")
	}
	assert.False(t, p.Status().Ready)
}

func TestOpenAIStyle_CleanupClearsReady(t *testing.T) {
	server := openAIMock(t, nil)
	defer server.Close()

	p := NewOpenAIStyle("key", "", server.URL)
	require.NoError(t, p.Initialize(context.Background()))
	p.Cleanup()

	assert.False(t, p.Status().Ready)
	var notReady *NotReadyError
	err := p.GenerateStreaming(Request{}, StreamCallbacks{})
	assert.True(t, errors.As(err, &notReady))
}
