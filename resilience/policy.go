package resilience

import (
	"context"
	"sync"
)

// Policy runs an operation under some failure-handling rule.
// Retry, Timeout, CircuitBreaker and Executor all implement it.
type Policy interface {
	Execute(ctx context.Context, op func(context.Context) error) error
}

var (
	_ Policy = (*Retry)(nil)
	_ Policy = (*Timeout)(nil)
	_ Policy = (*CircuitBreaker)(nil)
	_ Policy = (*Executor)(nil)
)

// WrapFetcher applies p to a fetcher. The result has the signature of
// query.Fetcher and can be passed straight to query.NewQuery.
func WrapFetcher[T any](p Policy, fetch func(context.Context) (T, error)) func(context.Context) (T, error) {
	if p == nil {
		return fetch
	}
	return func(ctx context.Context) (T, error) {
		var res result[T]
		err := p.Execute(ctx, func(ctx context.Context) error {
			attempt := res.begin()
			v, err := fetch(ctx)
			if err == nil {
				res.set(attempt, v)
			}
			return err
		})
		if err != nil {
			var zero T
			return zero, err
		}
		return res.get(), nil
	}
}

// WrapMutation applies p to a mutation function. The result has the
// signature of query.MutationFunc.
func WrapMutation[V, R any](p Policy, fn func(context.Context, V) (R, error)) func(context.Context, V) (R, error) {
	if p == nil {
		return fn
	}
	return func(ctx context.Context, variables V) (R, error) {
		return WrapFetcher(p, func(ctx context.Context) (R, error) {
			return fn(ctx, variables)
		})(ctx)
	}
}

// result holds the value of the latest attempt. An attempt abandoned by a
// timeout may still finish in the background; its value is ignored once a
// later attempt has started.
type result[T any] struct {
	mu      sync.Mutex
	started int
	v       T
}

func (r *result[T]) begin() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started++
	return r.started
}

func (r *result[T]) set(attempt int, v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if attempt == r.started {
		r.v = v
	}
}

func (r *result[T]) get() T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.v
}
