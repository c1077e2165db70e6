// Package resilience provides failure-handling policies for fetchers and
// mutation functions.
//
// The query package never retries, times out, or short-circuits on its own.
// Callers that want those behaviors wrap their functions here before handing
// them to query.NewQuery or query.NewMutation. A wrapped fetcher still
// resolves exactly once from the query's point of view.
//
// # Policies
//
//   - Retry: re-runs failed operations with exponential, linear, or constant
//     backoff. Context cancellation is not retried by default.
//
//   - Timeout: bounds each attempt and reports ErrTimeout on expiry.
//
//   - CircuitBreaker: rejects calls with ErrCircuitOpen after consecutive
//     failures, then lets trial calls through to detect recovery.
//
//   - Executor: composes the above as breaker, then retry, then timeout.
//
// # Usage
//
//	policy := resilience.NewExecutor(
//	    resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{
//	        MaxAttempts:  3,
//	        InitialDelay: 100 * time.Millisecond,
//	    })),
//	    resilience.WithTimeout(5*time.Second),
//	)
//
//	books := query.NewQuery(ctx, client, query.Key{"books"},
//	    resilience.WrapFetcher(policy, api.ListBooks))
//
//	checkout := query.NewMutation(resilience.WrapMutation(policy, api.Checkout))
package resilience
