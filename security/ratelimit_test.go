package security

import (
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func TestNewRateLimiter(t *testing.T) {
	rl := NewRateLimiter(10, 20, nil)
	defer rl.Stop()

	if rl.limit != 10 {
		t.Errorf("limit = %v, want 10", rl.limit)
	}
	if rl.burst != 20 {
		t.Errorf("burst = %d, want 20", rl.burst)
	}
	if rl.maxEntries != DefaultMaxLimiters {
		t.Errorf("maxEntries = %d, want %d", rl.maxEntries, DefaultMaxLimiters)
	}
	if rl.logger == nil {
		t.Error("logger should default to slog.Default()")
	}
}

func TestNewRateLimiterWithConfig_NegativeMax(t *testing.T) {
	rl := NewRateLimiterWithConfig(1, 1, -5, slog.Default())
	defer rl.Stop()

	if rl.maxEntries != DefaultMaxLimiters {
		t.Errorf("maxEntries = %d, want %d", rl.maxEntries, DefaultMaxLimiters)
	}
}

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(10, 5, slog.Default())
	defer rl.Stop()

	for i := 0; i < 5; i++ {
		if !rl.Allow("client") {
			t.Fatalf("request %d should be allowed within burst", i+1)
		}
	}
	if rl.Allow("client") {
		t.Error("request beyond burst should be limited")
	}
}

func TestRateLimiter_SeparateKeys(t *testing.T) {
	rl := NewRateLimiter(10, 2, slog.Default())
	defer rl.Stop()

	rl.Allow("a")
	rl.Allow("a")
	if rl.Allow("a") {
		t.Error("key a should be limited")
	}
	if !rl.Allow("b") {
		t.Error("key b has its own bucket")
	}
}

func TestRateLimiter_Refill(t *testing.T) {
	rl := NewRateLimiter(20, 1, slog.Default())
	defer rl.Stop()

	if !rl.Allow("client") {
		t.Fatal("first request should be allowed")
	}
	if rl.Allow("client") {
		t.Fatal("second immediate request should be limited")
	}

	time.Sleep(80 * time.Millisecond)

	if !rl.Allow("client") {
		t.Error("request should be allowed after refill")
	}
}

func TestRateLimiter_EvictsLeastRecentlyUsed(t *testing.T) {
	rl := NewRateLimiterWithConfig(10, 1, 2, slog.Default())
	defer rl.Stop()

	rl.Allow("a")
	rl.Allow("b")
	// a is now the least recently used key once b is touched again
	rl.Allow("b")
	rl.Allow("c")

	if got := rl.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2", got)
	}
	if got := rl.Evictions(); got != 1 {
		t.Errorf("Evictions() = %d, want 1", got)
	}

	rl.mu.Lock()
	_, hasA := rl.limiters["a"]
	_, hasB := rl.limiters["b"]
	rl.mu.Unlock()
	if hasA {
		t.Error("a should have been evicted")
	}
	if !hasB {
		t.Error("b should still be tracked")
	}

	// an evicted key starts over with a full bucket
	if !rl.Allow("a") {
		t.Error("evicted key should get a fresh bucket")
	}
}

func TestRateLimiter_Unbounded(t *testing.T) {
	rl := NewRateLimiterWithConfig(10, 1, 0, slog.Default())
	defer rl.Stop()

	for i := 0; i < 50; i++ {
		rl.Allow(fmt.Sprintf("client-%d", i))
	}
	if got := rl.Len(); got != 50 {
		t.Errorf("Len() = %d, want 50", got)
	}
	if rl.Evictions() != 0 {
		t.Error("unbounded limiter should not evict")
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(10, 5, slog.Default())
	defer rl.Stop()

	rl.Allow("old-1")
	rl.Allow("old-2")

	rl.mu.Lock()
	for _, elem := range rl.limiters {
		elem.Value.(*limiterEntry).lastAccess = time.Now().Add(-time.Hour)
	}
	rl.mu.Unlock()

	rl.Allow("fresh")

	rl.Cleanup(30 * time.Minute)

	if got := rl.Len(); got != 1 {
		t.Fatalf("Len() = %d after cleanup, want 1", got)
	}
	rl.mu.Lock()
	_, ok := rl.limiters["fresh"]
	rl.mu.Unlock()
	if !ok {
		t.Error("recently used key should survive cleanup")
	}
}

func TestRateLimiter_Concurrent(t *testing.T) {
	rl := NewRateLimiterWithConfig(1000, 1000, 10, slog.Default())
	defer rl.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				rl.Allow(fmt.Sprintf("client-%d", (n+j)%15))
			}
		}(i)
	}
	wg.Wait()

	if got := rl.Len(); got > 10 {
		t.Errorf("Len() = %d, exceeds cap of 10", got)
	}
}

func TestRateLimiter_StopIdempotent(t *testing.T) {
	rl := NewRateLimiter(1, 1, slog.Default())
	rl.Stop()
	rl.Stop()
}
