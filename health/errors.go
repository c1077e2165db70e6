package health

import "errors"

var (
	// ErrCheckTimeout indicates a health check did not finish in time.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrCheckerNotFound indicates no checker is registered under a name.
	ErrCheckerNotFound = errors.New("health: checker not found")

	// ErrErrorRatio indicates too many cache entries hold fetch errors.
	ErrErrorRatio = errors.New("health: cache error ratio exceeded")

	// ErrNilCheck indicates a CheckerFunc without a function.
	ErrNilCheck = errors.New("health: nil check function")

	// ErrCircuitOpen indicates a circuit breaker is rejecting calls.
	ErrCircuitOpen = errors.New("health: circuit open")
)
