package query

import "errors"

// Sentinel errors for query operations.
var (
	// ErrNilClient is returned when a controller is constructed without a Client.
	ErrNilClient = errors.New("query: client is nil")

	// ErrNilFetcher is returned by Refetch when the query has no fetcher.
	ErrNilFetcher = errors.New("query: fetcher is nil")

	// ErrNilMutationFunc is returned when a mutation has no function to run.
	ErrNilMutationFunc = errors.New("query: mutation function is nil")

	// ErrClosed is returned when an operation is attempted on a closed query.
	ErrClosed = errors.New("query: query is closed")

	// ErrInvalidSupersededWrites indicates an unknown SupersededWrites mode.
	ErrInvalidSupersededWrites = errors.New("query: invalid superseded writes mode")

	// ErrPanic wraps a panic recovered from a fetcher or mutation function.
	ErrPanic = errors.New("query: panic in operation")

	// ErrTypeMismatch indicates a fetch result that does not match the query's data type.
	ErrTypeMismatch = errors.New("query: result type does not match query")

	// ErrInvalidStaleTime indicates a negative stale time.
	ErrInvalidStaleTime = errors.New("query: stale time must not be negative")
)
