// Package ratelimit implements the per-client fixed-window request limiter.
package ratelimit

import (
	"strings"
	"sync"
	"time"
)

const (
	// DefaultLimit is the number of requests allowed per window.
	DefaultLimit = 100
	// DefaultWindow is the counting window per client.
	DefaultWindow = time.Hour
	// DefaultSweepInterval is how often expired buckets are removed.
	DefaultSweepInterval = 15 * time.Minute
)

type bucket struct {
	count     int
	resetTime time.Time
}

// Limiter tracks request counts per client identifier (session id or IP).
// Buckets past their reset time are lazily re-created on next access; a
// background sweep keeps the map from accumulating dead clients.
type Limiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]bucket

	stopOnce sync.Once
	stop     chan struct{}
}

// Option customises a Limiter.
type Option func(*Limiter)

// WithClock injects a clock for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// New constructs a Limiter. Non-positive limit or window fall back to the
// defaults.
func New(limit int, window time.Duration, opts ...Option) *Limiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	l := &Limiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		buckets: make(map[string]bucket),
		stop:    make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Allow records one request for the client and reports whether it is within
// the window limit. The check-and-increment is atomic per client.
func (l *Limiter) Allow(clientID string) bool {
	if l == nil {
		return true
	}
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		clientID = "anonymous"
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.buckets[clientID]
	if !ok || now.After(entry.resetTime) {
		l.buckets[clientID] = bucket{count: 1, resetTime: now.Add(l.window)}
		return true
	}

	entry.count++
	l.buckets[clientID] = entry
	return entry.count <= l.limit
}

// StartSweeper launches the periodic removal of expired buckets. The sweep is
// memory hygiene only; Allow is correct without it.
func (l *Limiter) StartSweeper(interval time.Duration) {
	if l == nil {
		return
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.Sweep()
			case <-l.stop:
				return
			}
		}
	}()
}

// Sweep removes every bucket whose window has passed.
func (l *Limiter) Sweep() {
	if l == nil {
		return
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, entry := range l.buckets {
		if now.After(entry.resetTime) {
			delete(l.buckets, key)
		}
	}
}

// Stop terminates the background sweeper.
func (l *Limiter) Stop() {
	if l == nil {
		return
	}
	l.stopOnce.Do(func() { close(l.stop) })
}

// Size reports the number of tracked clients.
func (l *Limiter) Size() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
