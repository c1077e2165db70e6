package resilience

import (
	"context"
	"time"
)

// Executor is a Policy built from a circuit breaker, a retry and a
// per-attempt timeout, any of which may be absent. A typical fetcher stack:
//
//	fetch := WrapFetcher(NewExecutor(
//		WithCircuitBreaker(booksBreaker),
//		WithRetry(NewRetry(RetryConfig{MaxAttempts: 3})),
//		WithTimeout(2*time.Second),
//	), fetchBooks)
type Executor struct {
	breaker *CircuitBreaker
	retry   *Retry
	timeout *Timeout
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// NewExecutor creates an executor; with no options it runs operations as is.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithCircuitBreaker guards the whole call, retries included, with cb.
func WithCircuitBreaker(cb *CircuitBreaker) ExecutorOption {
	return func(e *Executor) { e.breaker = cb }
}

// WithRetry retries failed attempts with r.
func WithRetry(r *Retry) ExecutorOption {
	return func(e *Executor) { e.retry = r }
}

// WithTimeout bounds each attempt to timeout.
func WithTimeout(timeout time.Duration) ExecutorOption {
	return WithTimeoutConfig(NewTimeout(TimeoutConfig{Timeout: timeout}))
}

// WithTimeoutConfig bounds each attempt with t.
func WithTimeoutConfig(t *Timeout) ExecutorOption {
	return func(e *Executor) { e.timeout = t }
}

// layers returns the configured policies from innermost to outermost.
func (e *Executor) layers() []Policy {
	var ps []Policy
	if e.timeout != nil {
		ps = append(ps, e.timeout)
	}
	if e.retry != nil {
		ps = append(ps, e.retry)
	}
	if e.breaker != nil {
		ps = append(ps, e.breaker)
	}
	return ps
}

// Execute runs op as breaker(retry(timeout(op))). An open breaker rejects
// the call before any attempt, and a retried call counts once against it.
func (e *Executor) Execute(ctx context.Context, op func(context.Context) error) error {
	run := op
	for _, p := range e.layers() {
		run = within(p, run)
	}
	return run(ctx)
}

func within(p Policy, op func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		return p.Execute(ctx, op)
	}
}
