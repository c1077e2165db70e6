package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

// BenchmarkCircuitBreaker_Execute_Closed measures happy path execution.
func BenchmarkCircuitBreaker_Execute_Closed(b *testing.B) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures:  100,
		ResetTimeout: time.Minute,
	})
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cb.Execute(ctx, succeed)
	}
}

// BenchmarkCircuitBreaker_Execute_Open measures rejection cost.
func BenchmarkCircuitBreaker_Execute_Open(b *testing.B) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures:  1,
		ResetTimeout: time.Hour,
	})
	ctx := context.Background()
	_ = cb.Execute(ctx, fail(errors.New("down")))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cb.Execute(ctx, succeed)
	}
}

// BenchmarkCircuitBreaker_Concurrent measures parallel execution.
func BenchmarkCircuitBreaker_Concurrent(b *testing.B) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures:  1000,
		ResetTimeout: time.Minute,
	})
	ctx := context.Background()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = cb.Execute(ctx, succeed)
		}
	})
}

// BenchmarkRetry_NoRetries measures retry with immediate success.
func BenchmarkRetry_NoRetries(b *testing.B) {
	retry := NewRetry(RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
	})
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = retry.Execute(ctx, succeed)
	}
}

// BenchmarkTimeout_Execute_Fast measures timeout overhead for fast operations.
func BenchmarkTimeout_Execute_Fast(b *testing.B) {
	timeout := NewTimeout(TimeoutConfig{Timeout: time.Second})
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = timeout.Execute(ctx, succeed)
	}
}

// BenchmarkWrapFetcher_AllPolicies measures a fetcher wrapped in every policy.
func BenchmarkWrapFetcher_AllPolicies(b *testing.B) {
	fetch := WrapFetcher(NewExecutor(
		WithCircuitBreaker(NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 1000})),
		WithRetry(NewRetry(RetryConfig{MaxAttempts: 3})),
		WithTimeout(time.Second),
	), func(context.Context) (int, error) { return 1, nil })
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = fetch(ctx)
	}
}

// BenchmarkErrorIs measures wrapped sentinel matching.
func BenchmarkErrorIs(b *testing.B) {
	err := (&Timeout{config: TimeoutConfig{Timeout: time.Second}}).expired()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = errors.Is(err, ErrTimeout)
	}
}
