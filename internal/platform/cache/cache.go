// Package cache provides the bounded, TTL-based memoization store used for
// recommendation, pricing, and oracle-response lookups.
package cache

import (
	"sort"
	"sync"
	"time"
)

const (
	// DefaultCapacity bounds the number of live entries per store.
	DefaultCapacity = 100
	// DefaultEvictBatch is how many of the oldest entries one eviction removes.
	DefaultEvictBatch = 10

	// RecommendationTTL applies to recommendation and pricing signatures.
	RecommendationTTL = 24 * time.Hour
	// OracleResponseTTL applies to raw oracle responses.
	OracleResponseTTL = 30 * time.Minute
)

type entry struct {
	value    any
	storedAt time.Time
}

// Store memoizes opaque payloads under string signatures. Entries expire
// after the store TTL; when the store is full, the oldest entries are evicted
// in a batch. Eviction scans all entries, which is deliberate at this
// capacity.
type Store struct {
	ttl        time.Duration
	capacity   int
	evictBatch int
	now        func() time.Time

	mu      sync.RWMutex
	entries map[string]entry
}

// Option customises a Store.
type Option func(*Store)

// WithCapacity overrides the entry capacity.
func WithCapacity(capacity int) Option {
	return func(s *Store) {
		if capacity > 0 {
			s.capacity = capacity
		}
	}
}

// WithEvictBatch overrides how many entries an eviction pass removes.
func WithEvictBatch(batch int) Option {
	return func(s *Store) {
		if batch > 0 {
			s.evictBatch = batch
		}
	}
}

// WithClock injects a clock for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Store with the given TTL.
func New(ttl time.Duration, opts ...Option) *Store {
	s := &Store{
		ttl:        ttl,
		capacity:   DefaultCapacity,
		evictBatch: DefaultEvictBatch,
		now:        time.Now,
		entries:    make(map[string]entry),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Get returns the cached value, or a miss when the key is absent or expired.
func (s *Store) Get(key string) (any, bool) {
	if s == nil {
		return nil, false
	}
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if s.now().Sub(e.storedAt) > s.ttl {
		s.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have refreshed it.
		if current, still := s.entries[key]; still && s.now().Sub(current.storedAt) > s.ttl {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Set stores the value, evicting the oldest entries first when full.
func (s *Store) Set(key string, value any) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[key]; !exists && len(s.entries) >= s.capacity {
		s.evictOldestLocked()
	}
	s.entries[key] = entry{value: value, storedAt: s.now()}
}

// Len reports the number of live entries, expired or not.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) evictOldestLocked() {
	type aged struct {
		key      string
		storedAt time.Time
	}
	all := make([]aged, 0, len(s.entries))
	for k, e := range s.entries {
		all = append(all, aged{key: k, storedAt: e.storedAt})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].storedAt.Before(all[j].storedAt) })

	evict := s.evictBatch
	// Evict at least enough to get under capacity.
	if over := len(s.entries) - s.capacity + 1; over > evict {
		evict = over
	}
	if evict > len(all) {
		evict = len(all)
	}
	for _, e := range all[:evict] {
		delete(s.entries, e.key)
	}
}
