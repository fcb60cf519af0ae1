// local.go implements the local inference provider.
//
// Design decisions:
//   - The engine runs in a dedicated worker goroutine so multi-gigabyte
//     downloads and tokenized generation never block the orchestrator
//     or the UI.
//   - Everything crossing the worker boundary — requests, token deltas,
//     load progress and terminal results — flows through one typed
//     event channel rather than ad hoc callbacks.
//   - Only one model runs at a time: initializing a different model
//     tears the existing worker down completely first.
package ai

import (
	"context"
	"fmt"
	"sync"
)

// LifecyclePhase enumerates the local model lifecycle.
type LifecyclePhase int

const (
	LifecycleIdle LifecyclePhase = iota
	LifecycleCheckingCapability
	LifecycleDownloading
	LifecycleLoading
	LifecycleReady
	LifecycleError
)

func (p LifecyclePhase) String() string {
	switch p {
	case LifecycleIdle:
		return "idle"
	case LifecycleCheckingCapability:
		return "checking capability"
	case LifecycleDownloading:
		return "downloading"
	case LifecycleLoading:
		return "loading"
	case LifecycleReady:
		return "ready"
	case LifecycleError:
		return "error"
	default:
		return "unknown"
	}
}

// ModelLifecycleState is the observable state of the local pipeline.
// Owned by the provider; mutated only by it; reset to Idle on Cleanup.
type ModelLifecycleState struct {
	Phase      LifecyclePhase
	Progress   float64
	StatusText string
	ErrMessage string
}

type workerEventKind int

const (
	evProgress workerEventKind = iota
	evLoaded
	evLoadFailed
	evToken
	evDone
	evFailed
)

// workerEvent is the single message type crossing the worker boundary
// back to the provider.
type workerEvent struct {
	kind     workerEventKind
	progress LoadProgress
	token    string
	err      error
}

// workerRequest carries one generation into the worker. The context is
// the per-request cancellation token.
type workerRequest struct {
	ctx context.Context
	req Request
}

// LocalInference implements the Provider interface over an
// InferenceEngine executed in a worker goroutine.
type LocalInference struct {
	engine  InferenceEngine
	modelID string

	mu         sync.Mutex
	state      ModelLifecycleState
	onState    func(ModelLifecycleState)
	reqs       chan workerRequest
	stopWorker context.CancelFunc
	relayDone  chan struct{}
	gen        *localGeneration
}

type localGeneration struct {
	guard  *streamGuard
	ctx    context.Context
	cancel context.CancelFunc
}

var _ Provider = (*LocalInference)(nil)

// NewLocalInference creates a local provider for the given catalog model.
func NewLocalInference(engine InferenceEngine, modelID string) *LocalInference {
	return &LocalInference{
		engine:  engine,
		modelID: modelID,
		state:   ModelLifecycleState{Phase: LifecycleIdle},
	}
}

func (l *LocalInference) Name() string {
	return fmt.Sprintf("Local (%s)", l.modelID)
}

// SetStateListener registers the lifecycle observer. Pass nil to clear.
func (l *LocalInference) SetStateListener(fn func(ModelLifecycleState)) {
	l.mu.Lock()
	l.onState = fn
	l.mu.Unlock()
}

func (l *LocalInference) setState(s ModelLifecycleState) {
	l.mu.Lock()
	l.state = s
	fn := l.onState
	l.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

// Initialize probes the local compute capability, then starts the worker
// and blocks until the model is loaded or loading fails. Re-initializing
// with a loaded model is a no-op; a different model tears the current
// worker down first.
func (l *LocalInference) Initialize(ctx context.Context) error {
	if _, ok := LookupLocalModel(l.modelID); !ok {
		return &ConfigError{Provider: "local", Field: "model", Reason: fmt.Sprintf("%q is not in the local catalog", l.modelID)}
	}

	l.mu.Lock()
	running := l.reqs != nil
	ready := l.state.Phase == LifecycleReady
	l.mu.Unlock()
	if running && ready {
		return nil
	}
	if running {
		l.teardown()
	}

	l.setState(ModelLifecycleState{Phase: LifecycleCheckingCapability, StatusText: "Checking local compute capability"})
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	err := l.engine.Probe(probeCtx)
	cancel()
	if err != nil {
		l.setState(ModelLifecycleState{Phase: LifecycleError, ErrMessage: err.Error()})
		return &ConnectivityError{Provider: "local", Message: "local compute capability unavailable", Err: err}
	}

	workerCtx, stop := context.WithCancel(context.Background())
	reqs := make(chan workerRequest, 1)
	events := make(chan workerEvent, 16)
	relayDone := make(chan struct{})
	loadResult := make(chan error, 1)

	l.mu.Lock()
	l.reqs = reqs
	l.stopWorker = stop
	l.relayDone = relayDone
	l.mu.Unlock()

	go runWorker(workerCtx, l.engine, l.modelID, reqs, events)
	go l.relay(events, relayDone, loadResult)

	select {
	case err := <-loadResult:
		if err != nil {
			l.teardown()
			l.setState(ModelLifecycleState{Phase: LifecycleError, ErrMessage: err.Error()})
			return &ConnectivityError{Provider: "local", Message: err.Error(), Err: err}
		}
		return nil
	case <-ctx.Done():
		l.teardown()
		l.setState(ModelLifecycleState{Phase: LifecycleError, ErrMessage: ctx.Err().Error()})
		return &ConnectivityError{Provider: "local", Err: ctx.Err()}
	}
}

// runWorker owns the engine for the lifetime of one loaded model.
func runWorker(ctx context.Context, engine InferenceEngine, modelID string, reqs <-chan workerRequest, events chan<- workerEvent) {
	defer close(events)
	defer engine.Close()

	err := engine.Load(ctx, modelID, func(p LoadProgress) {
		events <- workerEvent{kind: evProgress, progress: p}
	})
	if err != nil {
		events <- workerEvent{kind: evLoadFailed, err: err}
		return
	}
	events <- workerEvent{kind: evLoaded}

	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-reqs:
			if !ok {
				return
			}
			_, err := engine.Generate(r.ctx, r.req, func(tok string) {
				events <- workerEvent{kind: evToken, token: tok}
			})
			if err != nil && r.ctx.Err() == nil {
				events <- workerEvent{kind: evFailed, err: err}
			} else {
				events <- workerEvent{kind: evDone}
			}
		}
	}
}

// relay dispatches worker events into lifecycle state and the active
// generation. It runs until the worker closes its event channel.
func (l *LocalInference) relay(events <-chan workerEvent, done chan<- struct{}, loadResult chan<- error) {
	defer close(done)
	for ev := range events {
		switch ev.kind {
		case evProgress:
			phase := LifecycleDownloading
			if ev.progress.Stage == "loading" {
				phase = LifecycleLoading
			}
			l.setState(ModelLifecycleState{
				Phase:      phase,
				Progress:   ev.progress.Percent,
				StatusText: ev.progress.Status,
			})
		case evLoaded:
			l.setState(ModelLifecycleState{Phase: LifecycleReady, Progress: 100, StatusText: "Model ready"})
			loadResult <- nil
		case evLoadFailed:
			loadResult <- ev.err
		case evToken:
			l.mu.Lock()
			gen := l.gen
			l.mu.Unlock()
			// The cancel token is checked on each scheduled delivery.
			if gen != nil && gen.ctx.Err() == nil {
				gen.guard.token(ev.token)
			}
		case evDone:
			l.finishGeneration(nil)
		case evFailed:
			l.finishGeneration(&TransportError{Provider: "local", Err: ev.err})
		}
	}
}

func (l *LocalInference) finishGeneration(err error) {
	l.mu.Lock()
	gen := l.gen
	l.gen = nil
	l.mu.Unlock()
	if gen == nil {
		return
	}
	gen.cancel()
	if err != nil {
		gen.guard.fail(err)
		return
	}
	gen.guard.complete()
}

func (l *LocalInference) GenerateStreaming(req Request, cb StreamCallbacks) error {
	l.mu.Lock()
	if l.state.Phase != LifecycleReady || l.reqs == nil {
		l.mu.Unlock()
		return &NotReadyError{Provider: "local"}
	}
	if l.gen != nil {
		l.mu.Unlock()
		return fmt.Errorf("local: generation already in flight")
	}
	ctx, cancel := context.WithCancel(context.Background())
	gen := &localGeneration{guard: newStreamGuard(cb), ctx: ctx, cancel: cancel}
	l.gen = gen
	reqs := l.reqs
	l.mu.Unlock()

	select {
	case reqs <- workerRequest{ctx: ctx, req: req}:
		return nil
	default:
		l.mu.Lock()
		l.gen = nil
		l.mu.Unlock()
		cancel()
		return fmt.Errorf("local: worker busy")
	}
}

func (l *LocalInference) GenerateText(ctx context.Context, req Request) (string, error) {
	return collectText(ctx, l.GenerateStreaming, l.Abort, req)
}

// Abort flips the per-generation cancel token. Token deliveries already
// in flight may still be observed by the worker but are dropped before
// reaching callbacks.
func (l *LocalInference) Abort() {
	l.mu.Lock()
	gen := l.gen
	l.mu.Unlock()
	if gen != nil {
		gen.cancel()
	}
}

// teardown stops the worker and waits for the relay to drain.
func (l *LocalInference) teardown() {
	l.mu.Lock()
	stop := l.stopWorker
	reqs := l.reqs
	relayDone := l.relayDone
	l.stopWorker = nil
	l.reqs = nil
	l.relayDone = nil
	l.mu.Unlock()

	if stop != nil {
		stop()
	}
	if reqs != nil {
		close(reqs)
	}
	if relayDone != nil {
		<-relayDone
	}
}

func (l *LocalInference) Cleanup() {
	l.Abort()
	l.teardown()
	l.setState(ModelLifecycleState{Phase: LifecycleIdle})
}

func (l *LocalInference) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Status{
		Ready:        l.state.Phase == LifecycleReady,
		Initializing: l.state.Phase == LifecycleCheckingCapability || l.state.Phase == LifecycleDownloading || l.state.Phase == LifecycleLoading,
		Err:          l.state.ErrMessage,
		CurrentModel: l.modelID,
	}
}

// LifecycleState returns the current lifecycle snapshot.
func (l *LocalInference) LifecycleState() ModelLifecycleState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}
