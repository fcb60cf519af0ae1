package ai

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAICompatible_RequiredFields(t *testing.T) {
	var cfgErr *ConfigError

	err := NewOpenAICompatible("", "llama3.2", "").Initialize(context.Background())
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "base_url", cfgErr.Field)

	err = NewOpenAICompatible("http://localhost:11434/v1", "", "").Initialize(context.Background())
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "model", cfgErr.Field)
}

func TestOpenAICompatible_ProbeFallsBackToCompletion(t *testing.T) {
	var completionProbes atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/models":
			// Plenty of self-hosted servers have no models endpoint.
			http.NotFound(w, r)
		case "/chat/completions":
			completionProbes.Add(1)
			fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"x"}}]}`)
		}
	}))
	defer server.Close()

	p := NewOpenAICompatible(server.URL, "llama3.2", "")
	require.NoError(t, p.Initialize(context.Background()))
	assert.True(t, p.Status().Ready)
	assert.Equal(t, int32(1), completionProbes.Load())
}

func TestOpenAICompatible_UnreachableEndpoint(t *testing.T) {
	p := NewOpenAICompatible("http://127.0.0.1:1", "llama3.2", "")
	err := p.Initialize(context.Background())

	var connErr *ConnectivityError
	require.ErrorAs(t, err, &connErr)
	assert.False(t, p.Status().Ready)
}

func TestOpenAICompatible_StreamsOpenAIWire(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/models":
			w.WriteHeader(http.StatusOK)
		case "/chat/completions":
			// No Authorization header when no key is configured.
			assert.Empty(t, r.Header.Get("Authorization"))
			fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"SELECT 2;\"}}]}\n\n")
			fmt.Fprint(w, "data: [DONE]\n\n")
		}
	}))
	defer server.Close()

	p := NewOpenAICompatible(server.URL, "llama3.2", "")
	require.NoError(t, p.Initialize(context.Background()))

	text, err := p.GenerateText(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "two"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT 2;", text)
}
