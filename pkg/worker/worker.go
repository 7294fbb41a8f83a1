package worker

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jzx17/matrixpipe/pkg/types"
)

// WorkerState defines the lifecycle state of a Producer or Consumer
type WorkerState int32

const (
	// WorkerStateIdle represents a worker that has not been started
	WorkerStateIdle WorkerState = iota
	// WorkerStateRunning represents a worker inside its main loop
	WorkerStateRunning
	// WorkerStateStopping represents a producer that has left its loop and is queueing End
	WorkerStateStopping
	// WorkerStateTerminated represents a worker that has returned from Run
	WorkerStateTerminated
)

// String returns the string representation of WorkerState
func (ws WorkerState) String() string {
	switch ws {
	case WorkerStateIdle:
		return "idle"
	case WorkerStateRunning:
		return "running"
	case WorkerStateStopping:
		return "stopping"
	case WorkerStateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// lifecycle holds the state shared by both workers
type lifecycle struct {
	state int32 // atomic WorkerState
	done  chan struct{}
}

func newLifecycle() lifecycle {
	return lifecycle{
		state: int32(WorkerStateIdle),
		done:  make(chan struct{}),
	}
}

// start moves idle to running; it fails when Run was already called
func (l *lifecycle) start(name string) error {
	if !atomic.CompareAndSwapInt32(&l.state, int32(WorkerStateIdle), int32(WorkerStateRunning)) {
		return fmt.Errorf("%s already started", name)
	}
	return nil
}

func (l *lifecycle) setState(s WorkerState) {
	atomic.StoreInt32(&l.state, int32(s))
}

func (l *lifecycle) terminate() {
	l.setState(WorkerStateTerminated)
	close(l.done)
}

// State returns the current state
func (l *lifecycle) State() WorkerState {
	return WorkerState(atomic.LoadInt32(&l.state))
}

// Done returns a channel closed once Run has returned
func (l *lifecycle) Done() <-chan struct{} {
	return l.done
}

// panicError converts a recovered value into a StageError carrying the stack
func panicError(stage, itemID string, r interface{}) error {
	var buf [4096]byte
	n := runtime.Stack(buf[:], false)

	var cause error
	switch v := r.(type) {
	case error:
		cause = fmt.Errorf("%w: %w", types.ErrWorkerPanic, v)
	default:
		cause = fmt.Errorf("%w: %v", types.ErrWorkerPanic, v)
	}

	return types.NewStageError(stage, itemID, cause).
		WithContext("stack_trace", string(buf[:n]))
}

// latencyWindow keeps the most recent multiply durations
type latencyWindow struct {
	mu      sync.Mutex
	samples []time.Duration
	next    int
	full    bool
}

const latencyWindowSize = 1024

func (w *latencyWindow) add(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.samples == nil {
		w.samples = make([]time.Duration, latencyWindowSize)
	}
	w.samples[w.next] = d
	w.next = (w.next + 1) % latencyWindowSize
	if w.next == 0 {
		w.full = true
	}
}

func (w *latencyWindow) snapshot() []time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out []time.Duration
	if w.full {
		out = append(out, w.samples[w.next:]...)
	}
	out = append(out, w.samples[:w.next]...)
	return out
}
