// errors.go defines the error taxonomy shared by all providers.
//
// Callers dispatch on these with errors.As:
//   - ConfigError:       required credential/endpoint missing at Initialize
//   - ConnectivityError: connectivity probe or connection setup failed
//   - NotReadyError:     generation requested before Initialize succeeded
//   - TransportError:    mid-stream network failure, routed to OnError
//
// Malformed SSE fragments are not part of the taxonomy: they are recovered
// locally by skipping the fragment and never surface to callers.
package ai

import "fmt"

// ConfigError reports a missing or invalid provider configuration field.
type ConfigError struct {
	Provider string
	Field    string
	Reason   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s config: %s: %s", e.Provider, e.Field, e.Reason)
}

// ConnectivityError reports a failed connectivity probe or connection.
// Message carries the parsed vendor error when one was available,
// otherwise StatusCode holds the transport status.
type ConnectivityError struct {
	Provider   string
	Message    string
	StatusCode int
	Err        error
}

func (e *ConnectivityError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Provider, e.Message)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: connectivity check failed (status %d)", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s: connectivity check failed: %v", e.Provider, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// NotReadyError reports a generation attempt on an uninitialized provider.
type NotReadyError struct {
	Provider string
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("%s: provider not ready (call Initialize first)", e.Provider)
}

// TransportError reports a network failure in the middle of a stream.
type TransportError struct {
	Provider string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: stream transport error: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
