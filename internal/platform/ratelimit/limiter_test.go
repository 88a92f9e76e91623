package ratelimit

import (
	"sync"
	"testing"
	"time"
)

func TestAllowWithinLimitThenDeny(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	limiter := New(100, time.Hour, WithClock(func() time.Time { return now }))

	for i := 0; i < 100; i++ {
		if !limiter.Allow("203.0.113.9") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if limiter.Allow("203.0.113.9") {
		t.Fatalf("101st request within the window must be denied")
	}
	// Other clients are unaffected.
	if !limiter.Allow("203.0.113.10") {
		t.Fatalf("independent client should be allowed")
	}
}

func TestWindowExpiryResetsCounter(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	limiter := New(2, time.Hour, WithClock(func() time.Time { return now }))

	limiter.Allow("sess-1")
	limiter.Allow("sess-1")
	if limiter.Allow("sess-1") {
		t.Fatalf("expected denial at limit")
	}

	now = now.Add(61 * time.Minute)
	if !limiter.Allow("sess-1") {
		t.Fatalf("expected lazy reset after window expiry")
	}
}

func TestSweepRemovesExpiredBucketsOnly(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	limiter := New(100, time.Hour, WithClock(func() time.Time { return now }))

	limiter.Allow("old")
	now = now.Add(30 * time.Minute)
	limiter.Allow("fresh")
	now = now.Add(45 * time.Minute) // "old" expired, "fresh" still live

	limiter.Sweep()
	if limiter.Size() != 1 {
		t.Fatalf("expected one live bucket after sweep, got %d", limiter.Size())
	}
	// Sweeping must not change the live client's count.
	if !limiter.Allow("fresh") {
		t.Fatalf("fresh client should still be allowed")
	}
}

func TestAllowIsSafeUnderConcurrentRequests(t *testing.T) {
	limiter := New(1000, time.Hour)

	var wg sync.WaitGroup
	allowed := make([]bool, 500)
	for i := 0; i < 500; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			allowed[idx] = limiter.Allow("shared-client")
		}(i)
	}
	wg.Wait()

	for i, ok := range allowed {
		if !ok {
			t.Fatalf("request %d unexpectedly denied under limit", i)
		}
	}
}

func TestEmptyClientFallsBackToAnonymous(t *testing.T) {
	limiter := New(1, time.Hour)
	if !limiter.Allow("") {
		t.Fatalf("first anonymous request should pass")
	}
	if limiter.Allow("  ") {
		t.Fatalf("blank ids share the anonymous bucket")
	}
}
