// sse.go implements incremental decoding of Server-Sent-Events bodies.
//
// Both remote dialects (OpenAI-style and Anthropic-style) deliver
// line-oriented "data: <payload>" events over a streaming HTTP body.
// Network reads do not align with event boundaries, so the decoder keeps
// undecoded trailing bytes from one read and prefixes them onto the next.
package ai

import (
	"bytes"
	"strings"
)

const sseDataPrefix = "data: "

// sseDecoder accumulates raw body bytes and yields complete "data:"
// payloads. It is not safe for concurrent use; each stream owns one.
type sseDecoder struct {
	buf []byte
}

// Feed appends a chunk of body bytes and returns the payloads of all
// data lines completed by this chunk. Non-data lines (comments,
// "event:" fields, blank keep-alives) are dropped.
func (d *sseDecoder) Feed(p []byte) []string {
	d.buf = append(d.buf, p...)

	var payloads []string
	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			break
		}
		line := string(d.buf[:i])
		d.buf = d.buf[i+1:]

		if payload, ok := ssePayload(line); ok {
			payloads = append(payloads, payload)
		}
	}
	return payloads
}

// Flush returns the payload of a final unterminated data line, if any.
// Called once at end of stream.
func (d *sseDecoder) Flush() (string, bool) {
	line := string(d.buf)
	d.buf = nil
	return ssePayload(line)
}

func ssePayload(line string) (string, bool) {
	line = strings.TrimRight(line, "\r")
	if !strings.HasPrefix(line, sseDataPrefix) {
		return "", false
	}
	payload := strings.TrimSpace(strings.TrimPrefix(line, sseDataPrefix))
	if payload == "" {
		return "", false
	}
	return payload, true
}
