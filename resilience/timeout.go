package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// TimeoutConfig configures the timeout wrapper.
type TimeoutConfig struct {
	// Timeout is the maximum duration for one attempt.
	// Default: 30 seconds
	Timeout time.Duration
}

// Timeout bounds how long an operation may run. The operation's context is
// cancelled when the limit passes; Execute returns without waiting for it.
type Timeout struct {
	config TimeoutConfig
}

// NewTimeout creates a new timeout wrapper.
func NewTimeout(config TimeoutConfig) *Timeout {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	return &Timeout{config: config}
}

// Execute runs the operation with a timeout. Expiry returns an error
// matching ErrTimeout; cancellation of ctx returns ctx.Err().
func (t *Timeout) Execute(ctx context.Context, op func(context.Context) error) error {
	attemptCtx, cancel := context.WithTimeout(ctx, t.config.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- op(attemptCtx)
	}()

	select {
	case err := <-done:
		if err != nil && attemptCtx.Err() != nil {
			return t.contextErr(ctx, attemptCtx)
		}
		return err
	case <-attemptCtx.Done():
		return t.contextErr(ctx, attemptCtx)
	}
}

// contextErr prefers the parent's own error over ErrTimeout.
func (t *Timeout) contextErr(parent, attemptCtx context.Context) error {
	if err := parent.Err(); err != nil {
		return err
	}
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return t.expired()
	}
	return attemptCtx.Err()
}

func (t *Timeout) expired() error {
	return fmt.Errorf("%w after %v", ErrTimeout, t.config.Timeout)
}

// Config returns the timeout configuration.
func (t *Timeout) Config() TimeoutConfig {
	return t.config
}

// ExecuteWithTimeout runs op once under a timeout.
func ExecuteWithTimeout(ctx context.Context, timeout time.Duration, op func(context.Context) error) error {
	return NewTimeout(TimeoutConfig{Timeout: timeout}).Execute(ctx, op)
}
