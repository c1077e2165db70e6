package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// BackoffStrategy defines how delays increase between retries.
type BackoffStrategy int

const (
	// BackoffExponential multiplies the delay each attempt.
	BackoffExponential BackoffStrategy = iota
	// BackoffLinear increases delay linearly.
	BackoffLinear
	// BackoffConstant uses the same delay for all retries.
	BackoffConstant
)

// jitterFactor is the randomization applied to each delay when Jitter is set.
const jitterFactor = 0.25

// RetryConfig configures the retry behavior.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including initial).
	// Default: 3
	MaxAttempts int

	// InitialDelay is the delay before the first retry.
	// Default: 100ms
	InitialDelay time.Duration

	// MaxDelay caps the delay between retries.
	// Default: 30s
	MaxDelay time.Duration

	// Multiplier is the backoff multiplier for exponential backoff.
	// Default: 2.0
	Multiplier float64

	// Strategy is the backoff strategy.
	// Default: BackoffExponential
	Strategy BackoffStrategy

	// Jitter randomizes each exponential delay by up to 25% either way.
	Jitter bool

	// RetryIf determines if an error should trigger a retry.
	// Default: every error except context cancellation and deadline expiry.
	RetryIf func(err error) bool

	// OnRetry is called before each retry attempt.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Retry re-runs a failing operation with backoff. A fetcher wrapped in Retry
// still resolves once from the query's point of view.
type Retry struct {
	config RetryConfig
}

// NewRetry creates a new retry handler.
func NewRetry(config RetryConfig) *Retry {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 100 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	if config.Multiplier <= 0 {
		config.Multiplier = 2.0
	}
	if config.RetryIf == nil {
		config.RetryIf = retryable
	}

	return &Retry{config: config}
}

func retryable(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// Execute runs op until it succeeds, RetryIf rejects its error, or
// MaxAttempts is reached. Exhausting the attempts returns an error matching
// both ErrMaxRetriesExceeded and the last error from op.
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	attempts := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		err := op(ctx)
		if err != nil && !r.config.RetryIf(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(r.newBackOff()),
		backoff.WithMaxTries(uint(r.config.MaxAttempts)),
		backoff.WithNotify(func(err error, delay time.Duration) {
			if r.config.OnRetry != nil {
				r.config.OnRetry(attempts, err, delay)
			}
		}),
	)
	if err == nil {
		return nil
	}

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Err
	}
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		return ctxErr
	}
	if attempts >= r.config.MaxAttempts && r.config.MaxAttempts > 1 {
		return fmt.Errorf("%w after %d attempts: %w", ErrMaxRetriesExceeded, attempts, err)
	}
	return err
}

// newBackOff builds a fresh delay sequence for one Execute call.
func (r *Retry) newBackOff() backoff.BackOff {
	switch r.config.Strategy {
	case BackoffConstant:
		return backoff.NewConstantBackOff(min(r.config.InitialDelay, r.config.MaxDelay))
	case BackoffLinear:
		return &linearBackOff{step: r.config.InitialDelay, max: r.config.MaxDelay}
	default:
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = r.config.InitialDelay
		b.MaxInterval = r.config.MaxDelay
		b.Multiplier = r.config.Multiplier
		b.RandomizationFactor = 0
		if r.config.Jitter {
			b.RandomizationFactor = jitterFactor
		}
		b.Reset()
		return b
	}
}

// calculateDelay returns the delay applied after the given failed attempt.
func (r *Retry) calculateDelay(attempt int) time.Duration {
	b := r.newBackOff()
	var delay time.Duration
	for i := 0; i < attempt; i++ {
		delay = b.NextBackOff()
	}
	return delay
}

// Config returns the retry configuration.
func (r *Retry) Config() RetryConfig {
	return r.config
}

// linearBackOff grows the delay by step each attempt, capped at max.
type linearBackOff struct {
	step    time.Duration
	max     time.Duration
	attempt int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return min(b.step*time.Duration(b.attempt), b.max)
}

func (b *linearBackOff) Reset() {
	b.attempt = 0
}
