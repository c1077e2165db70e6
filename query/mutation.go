package query

import (
	"context"
	"sync"

	"github.com/jonwraymond/asyncquery/observe"
)

// MutationFunc performs one asynchronous write.
type MutationFunc[V, R any] func(ctx context.Context, variables V) (R, error)

// MutationStatus is the lifecycle state of a Mutation.
type MutationStatus int

const (
	// MutationIdle means the mutation has not run since creation or Reset.
	MutationIdle MutationStatus = iota
	// MutationPending means a call is in flight.
	MutationPending
	// MutationSuccess means the latest call succeeded.
	MutationSuccess
	// MutationError means the latest call failed.
	MutationError
)

// String returns the string representation of the status.
func (s MutationStatus) String() string {
	switch s {
	case MutationIdle:
		return "idle"
	case MutationPending:
		return "pending"
	case MutationSuccess:
		return "success"
	case MutationError:
		return "error"
	default:
		return "unknown"
	}
}

// MutationState is what a mutation consumer observes.
type MutationState[R any] struct {
	Status MutationStatus
	Data   R
	Err    error
}

// IsIdle reports whether the mutation has not run since creation or Reset.
func (s MutationState[R]) IsIdle() bool { return s.Status == MutationIdle }

// IsPending reports whether a call is in flight.
func (s MutationState[R]) IsPending() bool { return s.Status == MutationPending }

// IsSuccess reports whether the latest call succeeded.
func (s MutationState[R]) IsSuccess() bool { return s.Status == MutationSuccess }

// IsError reports whether the latest call failed.
func (s MutationState[R]) IsError() bool { return s.Status == MutationError }

// Callbacks are invoked when a mutation call resolves.
// Either field may be nil.
type Callbacks[V, R any] struct {
	OnSuccess func(result R, variables V)
	OnError   func(err error, variables V)
}

// MutationConfig configures a Mutation.
type MutationConfig[V, R any] struct {
	// Name labels the mutation in logs, spans and metrics.
	Name string

	// Middleware instruments each call. Nil disables instrumentation.
	Middleware *observe.Middleware

	// OnSuccess and OnError are the controller-level callbacks. They run
	// before any call-site callbacks passed to Mutate.
	OnSuccess func(result R, variables V)
	OnError   func(err error, variables V)
}

// Mutation runs one-shot asynchronous writes and tracks their lifecycle.
// Results are never cached.
//
// When calls overlap, only the most recently started one updates State;
// every call still runs its callbacks. All methods are safe for concurrent use.
type Mutation[V, R any] struct {
	fn   MutationFunc[V, R]
	name string
	mw   *observe.Middleware

	mu        sync.Mutex
	callbacks Callbacks[V, R]
	state     MutationState[R]
	gen       uint64
	notifier  notifier[MutationState[R]]
}

// NewMutation creates an idle mutation around fn.
func NewMutation[V, R any](fn MutationFunc[V, R], config ...MutationConfig[V, R]) *Mutation[V, R] {
	var cfg MutationConfig[V, R]
	if len(config) > 0 {
		cfg = config[0]
	}
	return &Mutation[V, R]{
		fn:   fn,
		name: cfg.Name,
		mw:   cfg.Middleware,
		callbacks: Callbacks[V, R]{
			OnSuccess: cfg.OnSuccess,
			OnError:   cfg.OnError,
		},
	}
}

// SetCallbacks replaces the controller-level callbacks. Calls already in
// flight use the callbacks registered when they resolve.
func (m *Mutation[V, R]) SetCallbacks(cb Callbacks[V, R]) {
	m.mu.Lock()
	m.callbacks = cb
	m.mu.Unlock()
}

// State returns the current state.
func (m *Mutation[V, R]) State() MutationState[R] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsIdle reports whether the current state is idle.
func (m *Mutation[V, R]) IsIdle() bool { return m.State().IsIdle() }

// IsPending reports whether the most recently started call is in flight.
func (m *Mutation[V, R]) IsPending() bool { return m.State().IsPending() }

// IsSuccess reports whether the most recently started call succeeded.
func (m *Mutation[V, R]) IsSuccess() bool { return m.State().IsSuccess() }

// IsError reports whether the most recently started call failed.
func (m *Mutation[V, R]) IsError() bool { return m.State().IsError() }

// Subscribe registers fn to receive every state the mutation publishes, in
// order, starting with the current state.
func (m *Mutation[V, R]) Subscribe(fn func(MutationState[R])) (unsubscribe func()) {
	m.mu.Lock()
	id := m.notifier.addLocked(fn)
	m.notifier.sendLocked(id, m.state)
	m.mu.Unlock()
	m.notifier.drain(&m.mu)

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			m.notifier.removeLocked(id)
			m.mu.Unlock()
		})
	}
}

// Reset returns the mutation to idle. Calls in flight still run their
// callbacks but no longer update State.
func (m *Mutation[V, R]) Reset() {
	m.mu.Lock()
	m.gen++
	m.setLocked(MutationState[R]{})
	m.mu.Unlock()
	m.notifier.drain(&m.mu)
}

// MutateAsync runs the mutation and blocks until it resolves. The
// controller-level callbacks run before it returns; the error, if any, is
// returned to the caller.
func (m *Mutation[V, R]) MutateAsync(ctx context.Context, variables V) (R, error) {
	gen := m.begin()
	return m.execute(ctx, gen, variables)
}

// Mutate starts the mutation and returns immediately. The state is pending
// when Mutate returns. Call-site callbacks run after the controller-level
// ones; a failure is reported only through callbacks and State.
func (m *Mutation[V, R]) Mutate(ctx context.Context, variables V, callbacks ...Callbacks[V, R]) {
	gen := m.begin()
	go func() {
		result, err := m.execute(ctx, gen, variables)
		for _, cb := range callbacks {
			if err != nil {
				if cb.OnError != nil {
					cb.OnError(err, variables)
				}
				continue
			}
			if cb.OnSuccess != nil {
				cb.OnSuccess(result, variables)
			}
		}
	}()
}

// begin moves the state to pending and returns the call's generation.
func (m *Mutation[V, R]) begin() uint64 {
	m.mu.Lock()
	m.gen++
	gen := m.gen
	m.setLocked(MutationState[R]{Status: MutationPending, Data: m.state.Data})
	m.mu.Unlock()
	m.notifier.drain(&m.mu)
	return gen
}

func (m *Mutation[V, R]) execute(ctx context.Context, gen uint64, variables V) (R, error) {
	meta := observe.OperationMeta{Kind: observe.KindMutate, Name: m.name}
	if m.mw != nil {
		meta.ID = observe.NewOperationID()
	}
	run := observe.Instrument(m.mw, meta, recoverPanics(func(ctx context.Context) (R, error) {
		if m.fn == nil {
			var zero R
			return zero, ErrNilMutationFunc
		}
		return m.fn(ctx, variables)
	}))

	result, err := run(ctx)

	m.mu.Lock()
	cb := m.callbacks
	if gen == m.gen {
		if err != nil {
			m.setLocked(MutationState[R]{Status: MutationError, Data: m.state.Data, Err: err})
		} else {
			m.setLocked(MutationState[R]{Status: MutationSuccess, Data: result})
		}
	}
	m.mu.Unlock()
	m.notifier.drain(&m.mu)

	if err != nil {
		if cb.OnError != nil {
			cb.OnError(err, variables)
		}
		var zero R
		return zero, err
	}
	if cb.OnSuccess != nil {
		cb.OnSuccess(result, variables)
	}
	return result, nil
}

func (m *Mutation[V, R]) setLocked(next MutationState[R]) {
	m.state = next
	m.notifier.publishLocked(next)
}
