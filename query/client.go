package query

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/asyncquery/observe"
)

// EnvPrefix prefixes every environment variable read by LoadClientConfig.
const EnvPrefix = "ASYNCQUERY_"

// SupersededWrites selects what happens to the result of a fetch whose query
// was deactivated (key changed, disabled, closed, or refetched) before the
// fetcher returned. The query's local state is never touched either way.
type SupersededWrites string

const (
	// SupersededKeep writes superseded results to the shared store.
	// The store reflects the last resolved request, not the last initiated one.
	SupersededKeep SupersededWrites = "keep"

	// SupersededDiscard drops superseded results entirely.
	SupersededDiscard SupersededWrites = "discard"
)

// ClientConfig configures a Client.
type ClientConfig struct {
	// StaleTime is the default freshness window for queries that do not set
	// their own. Zero means every activation fetches.
	StaleTime time.Duration `env:"STALE_TIME" envDefault:"0s"`

	// SupersededWrites decides whether superseded fetch results reach the store.
	// Default: SupersededKeep
	SupersededWrites SupersededWrites `env:"SUPERSEDED_WRITES" envDefault:"keep"`

	// Dedupe makes concurrent passive fetches of the same key and data type
	// share one fetcher call. Refetch always calls its own fetcher.
	Dedupe bool `env:"DEDUPE"`
}

// Validate checks the configuration.
func (c ClientConfig) Validate() error {
	if c.StaleTime < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidStaleTime, c.StaleTime)
	}
	switch c.SupersededWrites {
	case SupersededKeep, SupersededDiscard, "":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidSupersededWrites, c.SupersededWrites)
	}
	return nil
}

// LoadClientConfig reads a ClientConfig from ASYNCQUERY_STALE_TIME,
// ASYNCQUERY_SUPERSEDED_WRITES and ASYNCQUERY_DEDUPE.
func LoadClientConfig() (ClientConfig, error) {
	var cfg ClientConfig
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return ClientConfig{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithStore replaces the default MemoryStore.
func WithStore(s Store) ClientOption {
	return func(c *Client) {
		c.store = s
	}
}

// WithKeyer replaces the default key codec.
func WithKeyer(k Keyer) ClientOption {
	return func(c *Client) {
		c.keyer = k
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// WithMiddleware instruments every fetch made through the client.
func WithMiddleware(mw *observe.Middleware) ClientOption {
	return func(c *Client) {
		c.mw = mw
	}
}

// WithLogger sets the logger for store-level events.
// Default: the middleware's logger, or a no-op logger.
func WithLogger(l observe.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// Client is the shared cache that queries read from and write to.
// A Client has no global state; create one per application or per test.
type Client struct {
	cfg     ClientConfig
	store   Store
	keyer   Keyer
	now     func() time.Time
	mw      *observe.Middleware
	logger  observe.Logger
	flights singleflight.Group
}

// NewClient creates a Client. Invalid config values fall back to defaults.
func NewClient(cfg ClientConfig, opts ...ClientOption) *Client {
	if cfg.StaleTime < 0 {
		cfg.StaleTime = 0
	}
	if cfg.SupersededWrites != SupersededDiscard {
		cfg.SupersededWrites = SupersededKeep
	}

	c := &Client{cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}

	if c.store == nil {
		c.store = NewMemoryStore()
	}
	if c.keyer == nil {
		c.keyer = NewDefaultKeyer()
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.logger == nil {
		c.logger = c.mw.Logger()
	}
	return c
}

// Config returns the effective configuration.
func (c *Client) Config() ClientConfig {
	return c.cfg
}

// DefaultStaleTime returns the stale time used by queries that set none.
func (c *Client) DefaultStaleTime() time.Duration {
	return c.cfg.StaleTime
}

// Get returns the entry for key, or (Entry{}, false) if it was never populated.
func (c *Client) Get(key Key) (Entry, bool) {
	return c.store.Get(c.keyer.Encode(key))
}

// Set replaces the entry for key.
func (c *Client) Set(key Key, entry Entry) {
	c.store.Set(c.keyer.Encode(key), entry)
}

// SetData stores data as a successful entry updated now.
// Queries activated afterwards see it as fresh.
func (c *Client) SetData(key Key, data any) {
	c.Set(key, Entry{Data: data, Status: StatusSuccess, UpdatedAt: c.now()})
}

// Invalidate marks the entry for key stale so the next activation refetches.
// The cached data stays readable by disabled queries.
func (c *Client) Invalidate(key Key) bool {
	encoded := c.keyer.Encode(key)
	entry, ok := c.store.Get(encoded)
	if !ok {
		return false
	}
	entry.UpdatedAt = time.Time{}
	c.store.Set(encoded, entry)
	c.logger.Debug(context.Background(), "entry invalidated", observe.Field{Key: "query.key", Value: encoded})
	return true
}

// Remove deletes the entry for key. This is a caller action; the client never evicts.
func (c *Client) Remove(key Key) {
	encoded := c.keyer.Encode(key)
	c.store.Delete(encoded)
	c.logger.Debug(context.Background(), "entry removed", observe.Field{Key: "query.key", Value: encoded})
}

// Stats summarizes the cached entries by status.
type Stats struct {
	Entries int
	Idle    int
	Loading int
	Success int
	Error   int
}

// Stats counts the stored entries by status.
func (c *Client) Stats() Stats {
	var s Stats
	c.store.Range(func(_ string, e Entry) bool {
		s.Entries++
		switch e.Status {
		case StatusIdle:
			s.Idle++
		case StatusLoading:
			s.Loading++
		case StatusSuccess:
			s.Success++
		case StatusError:
			s.Error++
		}
		return true
	})
	return s
}

// fetchCall is one fetcher invocation on behalf of a query.
type fetchCall struct {
	encoded string
	flight  string // dedupe key: encoded key plus result type
	name    string
	shared  bool // eligible for dedupe
	fn      func(context.Context) (any, error)
}

func (c *Client) meta(encoded, name string) observe.OperationMeta {
	return observe.OperationMeta{Kind: observe.KindFetch, Name: name, Key: encoded}
}

// fetch runs call.fn with instrumentation and, when enabled, dedupe.
func (c *Client) fetch(ctx context.Context, call fetchCall) (any, error) {
	meta := c.meta(call.encoded, call.name)
	if c.mw != nil {
		meta.ID = observe.NewOperationID()
	}
	run := observe.Instrument(c.mw, meta, recoverPanics(call.fn))
	if !call.shared || !c.cfg.Dedupe {
		return run(ctx)
	}
	v, err, _ := c.flights.Do(call.flight, func() (any, error) {
		return run(ctx)
	})
	return v, err
}

// storeResult writes the result of a resolved fetch.
func (c *Client) storeResult(encoded string, entry Entry, superseded bool) {
	if superseded && c.cfg.SupersededWrites == SupersededDiscard {
		c.logger.Debug(context.Background(), "superseded result discarded", observe.Field{Key: "query.key", Value: encoded})
		return
	}
	c.store.Set(encoded, entry)
}

// recoverPanics turns a panicking fetcher or mutation into an ErrPanic error.
func recoverPanics[T any](fn func(context.Context) (T, error)) func(context.Context) (T, error) {
	return func(ctx context.Context) (result T, err error) {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				result = zero
				err = fmt.Errorf("%w: %v", ErrPanic, r)
			}
		}()
		return fn(ctx)
	}
}
