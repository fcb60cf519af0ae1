package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSSEDecoder_SingleChunk(t *testing.T) {
	var dec sseDecoder
	payloads := dec.Feed([]byte("data: one\ndata: two\n"))
	assert.Equal(t, []string{"one", "two"}, payloads)
}

func TestSSEDecoder_SplitAcrossReads(t *testing.T) {
	// Event boundaries never align with read boundaries; the decoder
	// must stitch the fragments back together.
	var dec sseDecoder
	assert.Empty(t, dec.Feed([]byte("da")))
	assert.Empty(t, dec.Feed([]byte("ta: hel")))
	payloads := dec.Feed([]byte("lo\ndata: wor"))
	assert.Equal(t, []string{"hello"}, payloads)
	payloads = dec.Feed([]byte("ld\n"))
	assert.Equal(t, []string{"world"}, payloads)
}

func TestSSEDecoder_IgnoresNonDataLines(t *testing.T) {
	var dec sseDecoder
	payloads := dec.Feed([]byte("event: message_start\n: keep-alive\n\ndata: x\n"))
	assert.Equal(t, []string{"x"}, payloads)
}

func TestSSEDecoder_CRLF(t *testing.T) {
	var dec sseDecoder
	payloads := dec.Feed([]byte("data: a\r\ndata: b\r\n"))
	assert.Equal(t, []string{"a", "b"}, payloads)
}

func TestSSEDecoder_Flush(t *testing.T) {
	var dec sseDecoder
	dec.Feed([]byte("data: unterminated"))
	payload, ok := dec.Flush()
	assert.True(t, ok)
	assert.Equal(t, "unterminated", payload)

	// A second flush yields nothing.
	_, ok = dec.Flush()
	assert.False(t, ok)
}
