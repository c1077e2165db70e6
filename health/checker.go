package health

import (
	"context"
	"maps"
	"time"
)

// Status orders component health from best to worst, so the overall status
// of several components is the maximum of theirs.
type Status int

const (
	// StatusHealthy means reads are served and fetches succeed.
	StatusHealthy Status = iota
	// StatusDegraded means reads are served but some fetches fail or a
	// breaker is probing its backend.
	StatusDegraded
	// StatusUnhealthy means most fetches fail or a breaker is open.
	StatusUnhealthy
)

var statusNames = [...]string{"healthy", "degraded", "unhealthy"}

// String returns the lower-case status name, or "unknown".
func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

// Serving reports whether a component in this status still answers reads.
func (s Status) Serving() bool {
	return s == StatusHealthy || s == StatusDegraded
}

// Result is one checker's verdict.
type Result struct {
	Status  Status
	Message string

	// Details carries the numbers behind the verdict, e.g. entry counts.
	Details map[string]any

	// Duration and Timestamp are filled in by the Aggregator when unset.
	Duration  time.Duration
	Timestamp time.Time

	// Error explains an unhealthy result.
	Error error
}

func newResult(status Status, message string, err error) Result {
	return Result{Status: status, Message: message, Error: err, Timestamp: time.Now()}
}

// Healthy returns a healthy result.
func Healthy(message string) Result { return newResult(StatusHealthy, message, nil) }

// Degraded returns a degraded result.
func Degraded(message string) Result { return newResult(StatusDegraded, message, nil) }

// Unhealthy returns an unhealthy result caused by err.
func Unhealthy(message string, err error) Result {
	return newResult(StatusUnhealthy, message, err)
}

// WithDetails returns a copy of r with details merged over its existing ones.
// Neither map is modified.
func (r Result) WithDetails(details map[string]any) Result {
	merged := make(map[string]any, len(r.Details)+len(details))
	maps.Copy(merged, r.Details)
	maps.Copy(merged, details)
	r.Details = merged
	return r
}

// WithDuration returns a copy of r with Duration set.
func (r Result) WithDuration(d time.Duration) Result {
	r.Duration = d
	return r
}

// Checker reports the health of one component, such as a query.Client or
// the circuit breaker in front of a backend.
type Checker interface {
	Name() string
	Check(ctx context.Context) Result
}

// CheckerFunc is a named function checker.
type CheckerFunc struct {
	name string
	fn   func(context.Context) Result
}

// NewCheckerFunc names fn as a Checker. A nil fn always reports unhealthy.
func NewCheckerFunc(name string, fn func(context.Context) Result) *CheckerFunc {
	return &CheckerFunc{name: name, fn: fn}
}

// Name returns the checker name.
func (f *CheckerFunc) Name() string { return f.name }

// Check calls the wrapped function.
func (f *CheckerFunc) Check(ctx context.Context) Result {
	if f.fn == nil {
		return Unhealthy("no check function", ErrNilCheck)
	}
	return f.fn(ctx)
}
