package health

import (
	"context"

	"github.com/jonwraymond/asyncquery/resilience"
)

// CircuitChecker maps a circuit breaker's state onto a health status:
// closed is healthy, half-open is degraded, open is unhealthy.
type CircuitChecker struct {
	name string
	cb   *resilience.CircuitBreaker
}

// NewCircuitChecker creates a checker for cb.
func NewCircuitChecker(name string, cb *resilience.CircuitBreaker) *CircuitChecker {
	return &CircuitChecker{name: name, cb: cb}
}

// Name returns the checker name.
func (c *CircuitChecker) Name() string {
	return c.name
}

// Check reports the breaker's current state.
func (c *CircuitChecker) Check(context.Context) Result {
	counts := c.cb.Counts()
	details := map[string]any{
		"state":                counts.State.String(),
		"consecutive_failures": counts.ConsecutiveFailures,
		"rejected":             counts.Rejected,
	}

	switch counts.State {
	case resilience.StateOpen:
		return Unhealthy("circuit open", ErrCircuitOpen).WithDetails(details)
	case resilience.StateHalfOpen:
		return Degraded("circuit probing").WithDetails(details)
	default:
		return Healthy("circuit closed").WithDetails(details)
	}
}
