package query

import (
	"sync"
	"time"
)

// Status is the lifecycle state of a cache entry or query.
type Status int

const (
	// StatusIdle means no fetch has been requested (the query is disabled).
	StatusIdle Status = iota
	// StatusLoading means a fetch is in flight and no result is available yet.
	StatusLoading
	// StatusSuccess means the last fetch resolved with data.
	StatusSuccess
	// StatusError means the last fetch failed.
	StatusError
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Entry is the latest known result for one query key.
// Entries are values; writers replace them whole.
type Entry struct {
	Data      any
	Err       error
	Status    Status
	UpdatedAt time.Time
}

// Fresh reports whether the entry may be served without refetching.
// An entry is fresh while now - UpdatedAt < staleTime.
func (e Entry) Fresh(now time.Time, staleTime time.Duration) bool {
	return now.Sub(e.UpdatedAt) < staleTime
}

// Store holds entries by canonical key.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Atomicity: Set replaces the whole entry; readers never see partial writes.
// - Errors: Get returns (Entry{}, false) on miss; no method errors.
type Store interface {
	// Get returns the entry for key, if one was ever set.
	Get(key string) (Entry, bool)

	// Set replaces the entry for key.
	Set(key string, entry Entry)

	// Delete removes the entry for key. Idempotent.
	Delete(key string)

	// Len returns the number of stored entries.
	Len() int

	// Range calls fn for each entry until fn returns false.
	Range(fn func(key string, entry Entry) bool)
}

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]Entry),
	}
}

// Get returns the entry for key. Returns (Entry{}, false) on miss.
func (s *MemoryStore) Get(key string) (Entry, bool) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	return entry, ok
}

// Set replaces the entry for key.
func (s *MemoryStore) Set(key string, entry Entry) {
	s.mu.Lock()
	s.entries[key] = entry
	s.mu.Unlock()
}

// Delete removes the entry for key. Idempotent - no-op on miss.
func (s *MemoryStore) Delete(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Range iterates over a snapshot of the entries, so fn may call back into the store.
func (s *MemoryStore) Range(fn func(key string, entry Entry) bool) {
	s.mu.RLock()
	snapshot := make(map[string]Entry, len(s.entries))
	for k, v := range s.entries {
		snapshot[k] = v
	}
	s.mu.RUnlock()

	for k, v := range snapshot {
		if !fn(k, v) {
			return
		}
	}
}

var _ Store = (*MemoryStore)(nil)
