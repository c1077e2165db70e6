package query

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/asyncquery/observe"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// countingFetcher returns value and counts calls.
func countingFetcher[T any](value T, calls *atomic.Int32) Fetcher[T] {
	return func(context.Context) (T, error) {
		calls.Add(1)
		return value, nil
	}
}

// gatedFetcher blocks until gate is closed, then returns value.
// started receives once per call.
func gatedFetcher[T any](value T, gate <-chan struct{}, started chan<- struct{}) Fetcher[T] {
	return func(context.Context) (T, error) {
		if started != nil {
			started <- struct{}{}
		}
		<-gate
		return value, nil
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitForStatus[T any](t *testing.T, q *Query[T], status Status) State[T] {
	t.Helper()
	var s State[T]
	waitFor(t, "status "+status.String(), func() bool {
		s = q.State()
		return s.Status == status
	})
	return s
}

// recordingLogger captures messages for assertions.
type recordingLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (l *recordingLogger) record(msg string) {
	l.mu.Lock()
	l.msgs = append(l.msgs, msg)
	l.mu.Unlock()
}

func (l *recordingLogger) has(msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.msgs {
		if m == msg {
			return true
		}
	}
	return false
}

func (l *recordingLogger) Info(_ context.Context, msg string, _ ...observe.Field)  { l.record(msg) }
func (l *recordingLogger) Warn(_ context.Context, msg string, _ ...observe.Field)  { l.record(msg) }
func (l *recordingLogger) Error(_ context.Context, msg string, _ ...observe.Field) { l.record(msg) }
func (l *recordingLogger) Debug(_ context.Context, msg string, _ ...observe.Field) { l.record(msg) }
func (l *recordingLogger) WithOperation(observe.OperationMeta) observe.Logger      { return l }

// stateRecorder collects published states.
type stateRecorder[S any] struct {
	mu     sync.Mutex
	states []S
}

func (r *stateRecorder[S]) add(s S) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
}

func (r *stateRecorder[S]) snapshot() []S {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]S, len(r.states))
	copy(out, r.states)
	return out
}
