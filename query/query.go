package query

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"
)

// Fetcher performs one asynchronous read.
type Fetcher[T any] func(ctx context.Context) (T, error)

// State is what a query consumer observes.
type State[T any] struct {
	Data      T
	HasData   bool
	Err       error
	Status    Status
	UpdatedAt time.Time

	// IsLoading is true while a fetch is in flight and no result is available.
	IsLoading bool

	// IsFetching is true while the query's current fetch is in flight.
	IsFetching bool
}

// QueryOption configures a Query.
type QueryOption func(*queryOptions)

type queryOptions struct {
	enabled      bool
	staleTime    time.Duration
	staleTimeSet bool
	name         string
}

// WithEnabled gates fetching. A disabled query never calls its fetcher on
// activation. Default: true.
func WithEnabled(enabled bool) QueryOption {
	return func(o *queryOptions) {
		o.enabled = enabled
	}
}

// WithStaleTime overrides the client's default stale time for this query.
// Negative durations are treated as zero.
func WithStaleTime(d time.Duration) QueryOption {
	return func(o *queryOptions) {
		o.staleTime = max(d, 0)
		o.staleTimeSet = true
	}
}

// WithName labels the query's fetches in logs, spans and metrics.
func WithName(name string) QueryOption {
	return func(o *queryOptions) {
		o.name = name
	}
}

// fetchToken marks one fetch. Deactivating the query cancels the token;
// a resolution with a cancelled token never reaches the query's state.
type fetchToken struct {
	cancelled atomic.Bool
}

func (t *fetchToken) cancel() {
	if t != nil {
		t.cancelled.Store(true)
	}
}

// Query is one consumer's view of a cached asynchronous read.
//
// A Query is active from NewQuery until Close. While active it serves fresh
// cache entries directly and fetches otherwise. Changing the key or the
// enabled flag reactivates it; results of fetches started before that are
// dropped from its state.
//
// All methods are safe for concurrent use.
type Query[T any] struct {
	client    *Client
	ctx       context.Context
	name      string
	staleTime time.Duration

	mu       sync.Mutex
	key      Key
	encoded  string
	fetcher  Fetcher[T]
	enabled  bool
	closed   bool
	state    State[T]
	current  *fetchToken
	notifier notifier[State[T]]
}

// NewQuery creates and activates a query for key.
//
// ctx is passed to fetches started by activation; it is not cancelled when
// the query is deactivated. NewQuery panics if client is nil.
func NewQuery[T any](ctx context.Context, client *Client, key Key, fetcher Fetcher[T], opts ...QueryOption) *Query[T] {
	if client == nil {
		panic(ErrNilClient)
	}

	o := queryOptions{enabled: true}
	for _, opt := range opts {
		opt(&o)
	}
	if !o.staleTimeSet {
		o.staleTime = client.DefaultStaleTime()
	}

	q := &Query[T]{
		client:    client,
		ctx:       context.WithoutCancel(ctx),
		name:      o.name,
		staleTime: o.staleTime,
		key:       key,
		encoded:   client.keyer.Encode(key),
		fetcher:   fetcher,
		enabled:   o.enabled,
	}

	q.mu.Lock()
	q.activateLocked()
	q.mu.Unlock()
	return q
}

// State returns the current state.
func (q *Query[T]) State() State[T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Key returns the current key.
func (q *Query[T]) Key() Key {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.key
}

// StaleTime returns the resolved stale time.
func (q *Query[T]) StaleTime() time.Duration {
	return q.staleTime
}

// Subscribe registers fn to receive every state the query publishes, in
// order, starting with the current state. The returned function
// unsubscribes; a delivery already under way may still reach fn once.
func (q *Query[T]) Subscribe(fn func(State[T])) (unsubscribe func()) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return func() {}
	}
	id := q.notifier.addLocked(fn)
	q.notifier.sendLocked(id, q.state)
	q.mu.Unlock()
	q.notifier.drain(&q.mu)

	var once sync.Once
	return func() {
		once.Do(func() {
			q.mu.Lock()
			q.notifier.removeLocked(id)
			q.mu.Unlock()
		})
	}
}

// SetKey switches the query to key. If the canonical key changed the query
// reactivates. A non-nil fetcher replaces the current one either way.
func (q *Query[T]) SetKey(key Key, fetcher Fetcher[T]) {
	encoded := q.client.keyer.Encode(key)

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	if fetcher != nil {
		q.fetcher = fetcher
	}
	q.key = key
	if encoded == q.encoded {
		q.mu.Unlock()
		return
	}
	q.encoded = encoded
	q.activateLocked()
	q.mu.Unlock()
	q.notifier.drain(&q.mu)
}

// SetEnabled turns fetching on or off, reactivating the query on change.
func (q *Query[T]) SetEnabled(enabled bool) {
	q.mu.Lock()
	if q.closed || q.enabled == enabled {
		q.mu.Unlock()
		return
	}
	q.enabled = enabled
	q.activateLocked()
	q.mu.Unlock()
	q.notifier.drain(&q.mu)
}

// Refetch fetches unconditionally, ignoring freshness and the enabled flag.
// It blocks until the fetcher returns and returns the fetcher's error.
// Any fetch already in flight for this query is superseded.
func (q *Query[T]) Refetch(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.current.cancel()
	token := q.beginFetchLocked()
	fetcher, encoded := q.fetcher, q.encoded
	q.mu.Unlock()
	q.notifier.drain(&q.mu)

	data, err := q.client.fetch(ctx, q.call(encoded, fetcher, false))
	q.resolve(token, encoded, data, err)
	return err
}

// Close deactivates the query. In-flight fetches run to completion but no
// longer affect the query; subscribers are dropped. Close is idempotent.
func (q *Query[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.current.cancel()
	q.current = nil
	q.state.IsFetching = false
	q.notifier.clearLocked()
}

// activateLocked consults the cache and starts a fetch when needed.
func (q *Query[T]) activateLocked() {
	q.current.cancel()
	q.current = nil

	entry, ok := q.client.store.Get(q.encoded)
	var cached State[T]
	if ok {
		cached, ok = stateFromEntry[T](entry)
	}

	if !q.enabled {
		next := State[T]{Status: StatusIdle}
		if ok {
			next = cached
			next.Status = StatusIdle
		}
		q.setLocked(next)
		return
	}

	if ok && entry.Fresh(q.client.now(), q.staleTime) {
		q.client.mw.RecordCacheHit(q.ctx, q.client.meta(q.encoded, q.name))
		q.setLocked(cached)
		return
	}

	token := q.beginFetchLocked()
	call := q.call(q.encoded, q.fetcher, true)
	encoded := q.encoded
	go func() {
		data, err := q.client.fetch(q.ctx, call)
		q.resolve(token, encoded, data, err)
	}()
}

// beginFetchLocked publishes the loading state and returns the new token.
func (q *Query[T]) beginFetchLocked() *fetchToken {
	token := &fetchToken{}
	q.current = token
	q.setLocked(State[T]{Status: StatusLoading, UpdatedAt: q.client.now()})
	return token
}

func (q *Query[T]) call(encoded string, fetcher Fetcher[T], shared bool) fetchCall {
	return fetchCall{
		encoded: encoded,
		flight:  encoded + "|" + reflect.TypeFor[T]().String(),
		name:    q.name,
		shared:  shared,
		fn: func(ctx context.Context) (any, error) {
			if fetcher == nil {
				return nil, ErrNilFetcher
			}
			return fetcher(ctx)
		},
	}
}

// resolve applies a fetch result to the store and, if token is still
// current, to the query's state.
func (q *Query[T]) resolve(token *fetchToken, encoded string, data any, err error) {
	entry := Entry{Status: StatusSuccess, Data: data, UpdatedAt: q.client.now()}
	if err != nil {
		entry = Entry{Status: StatusError, Err: err, UpdatedAt: entry.UpdatedAt}
	}

	q.mu.Lock()
	superseded := token.cancelled.Load()
	q.client.storeResult(encoded, entry, superseded)
	if superseded {
		q.mu.Unlock()
		q.client.mw.RecordSuperseded(q.ctx, q.client.meta(encoded, q.name))
		return
	}

	if q.current == token {
		q.current = nil
	}
	next, ok := stateFromEntry[T](entry)
	if !ok {
		next = State[T]{
			Status:    StatusError,
			Err:       fmt.Errorf("%w: got %T", ErrTypeMismatch, data),
			UpdatedAt: entry.UpdatedAt,
		}
	}
	q.setLocked(next)
	q.mu.Unlock()
	q.notifier.drain(&q.mu)
}

// setLocked replaces the state and queues it for subscribers.
func (q *Query[T]) setLocked(next State[T]) {
	next.IsLoading = next.Status == StatusLoading
	next.IsFetching = q.current != nil && !q.current.cancelled.Load()
	q.state = next
	q.notifier.publishLocked(next)
}

// stateFromEntry converts a cache entry to a typed state. It reports false
// when the entry holds data of another type.
func stateFromEntry[T any](e Entry) (State[T], bool) {
	s := State[T]{
		Err:       e.Err,
		Status:    e.Status,
		UpdatedAt: e.UpdatedAt,
	}
	if e.Data == nil {
		s.HasData = e.Status == StatusSuccess
		return s, true
	}
	data, ok := e.Data.(T)
	if !ok {
		return State[T]{}, false
	}
	s.Data = data
	s.HasData = true
	return s, true
}
