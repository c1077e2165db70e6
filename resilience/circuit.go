package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonwraymond/asyncquery/observe"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means calls pass through.
	StateClosed State = iota
	// StateOpen means calls are rejected with ErrCircuitOpen.
	StateOpen
	// StateHalfOpen means a limited number of trial calls are let through.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	// Name labels the breaker in logs.
	Name string

	// MaxFailures is the number of consecutive failures that opens the circuit.
	// Default: 5
	MaxFailures int

	// ResetTimeout is how long the circuit stays open before probing.
	// Default: 30 seconds
	ResetTimeout time.Duration

	// HalfOpenMaxRequests is the number of concurrent trials allowed while half-open.
	// Default: 1
	HalfOpenMaxRequests int

	// OnStateChange is called after each transition, outside the breaker's lock.
	OnStateChange func(from, to State)

	// IsFailure determines if an error counts against the circuit.
	// Default: every error except context cancellation.
	IsFailure func(err error) bool

	// Logger receives a warning on every transition. Default: no-op.
	Logger observe.Logger

	// Now replaces time.Now, mainly for tests.
	Now func() time.Time
}

// CircuitCounts is a point-in-time view of a circuit breaker.
type CircuitCounts struct {
	State               State
	ConsecutiveFailures int
	Rejected            int64
	LastFailure         time.Time
}

// CircuitBreaker stops calling a failing backend for a while. Wrapped around
// a fetcher it turns a dead backend into fast ErrCircuitOpen results instead
// of a pile of slow ones.
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mu          sync.Mutex
	state       State
	failures    int
	rejected    int64
	lastFailure time.Time
	trials      int
}

type transition struct {
	from, to State
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.MaxFailures <= 0 {
		config.MaxFailures = 5
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 30 * time.Second
	}
	if config.HalfOpenMaxRequests <= 0 {
		config.HalfOpenMaxRequests = 1
	}
	if config.IsFailure == nil {
		config.IsFailure = func(err error) bool {
			return err != nil && !errors.Is(err, context.Canceled)
		}
	}
	if config.Logger == nil {
		config.Logger = observe.NewNoopLogger()
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &CircuitBreaker{config: config}
}

// Execute runs op unless the circuit is open.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	trial, err := cb.admit(ctx)
	if err != nil {
		return err
	}

	err = op(ctx)
	cb.record(ctx, trial, err)
	return err
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	var changes []transition
	state := cb.refreshLocked(&changes)
	cb.mu.Unlock()
	cb.notify(context.Background(), changes)
	return state
}

// Counts returns the current counters.
func (cb *CircuitBreaker) Counts() CircuitCounts {
	cb.mu.Lock()
	var changes []transition
	counts := CircuitCounts{
		State:               cb.refreshLocked(&changes),
		ConsecutiveFailures: cb.failures,
		Rejected:            cb.rejected,
		LastFailure:         cb.lastFailure,
	}
	cb.mu.Unlock()
	cb.notify(context.Background(), changes)
	return counts
}

// Reset closes the circuit and clears the failure count.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	var changes []transition
	cb.failures = 0
	cb.trials = 0
	cb.moveLocked(StateClosed, &changes)
	cb.mu.Unlock()
	cb.notify(context.Background(), changes)
}

// admit reports whether the call may proceed and whether it is a trial.
func (cb *CircuitBreaker) admit(ctx context.Context) (trial bool, err error) {
	cb.mu.Lock()
	var changes []transition
	defer func() {
		cb.mu.Unlock()
		cb.notify(ctx, changes)
	}()

	switch cb.refreshLocked(&changes) {
	case StateOpen:
		cb.rejected++
		return false, ErrCircuitOpen
	case StateHalfOpen:
		if cb.trials >= cb.config.HalfOpenMaxRequests {
			cb.rejected++
			return false, ErrCircuitOpen
		}
		cb.trials++
		return true, nil
	}
	return false, nil
}

func (cb *CircuitBreaker) record(ctx context.Context, trial bool, err error) {
	failed := cb.config.IsFailure(err)

	cb.mu.Lock()
	var changes []transition
	if trial {
		cb.trials--
	}
	switch {
	case failed:
		cb.failures++
		cb.lastFailure = cb.config.Now()
		if cb.state == StateHalfOpen || cb.failures >= cb.config.MaxFailures {
			cb.moveLocked(StateOpen, &changes)
		}
	case err == nil:
		cb.failures = 0
		if cb.state == StateHalfOpen {
			cb.moveLocked(StateClosed, &changes)
		}
	}
	cb.mu.Unlock()
	cb.notify(ctx, changes)
}

// refreshLocked moves an open circuit to half-open once ResetTimeout has passed.
func (cb *CircuitBreaker) refreshLocked(changes *[]transition) State {
	if cb.state == StateOpen && cb.config.Now().Sub(cb.lastFailure) >= cb.config.ResetTimeout {
		cb.trials = 0
		cb.moveLocked(StateHalfOpen, changes)
	}
	return cb.state
}

func (cb *CircuitBreaker) moveLocked(to State, changes *[]transition) {
	if cb.state == to {
		return
	}
	*changes = append(*changes, transition{from: cb.state, to: to})
	cb.state = to
}

func (cb *CircuitBreaker) notify(ctx context.Context, changes []transition) {
	for _, c := range changes {
		cb.config.Logger.Warn(ctx, "circuit state changed",
			observe.Field{Key: "circuit", Value: cb.config.Name},
			observe.Field{Key: "from", Value: c.from.String()},
			observe.Field{Key: "to", Value: c.to.String()},
		)
		if cb.config.OnStateChange != nil {
			cb.config.OnStateChange(c.from, c.to)
		}
	}
}
