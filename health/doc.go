// Package health reports on the state of a query cache and the policies
// around its fetchers.
//
// A Checker reports a Status: Healthy, Degraded, or Unhealthy.
// CacheChecker judges a query.Client by the share of its entries that hold
// fetch errors. CircuitChecker reports a resilience.CircuitBreaker's state.
// An Aggregator runs several checkers concurrently and Handler serves the
// combined result as JSON.
//
//	agg := health.NewAggregator()
//	agg.Register(health.NewCacheChecker(client, health.CacheCheckerConfig{}))
//	agg.Register(health.NewCircuitChecker("books-api", breaker))
//
//	http.Handle("/health", health.Handler(agg))
package health
