// File: internal/ratelimit/ratelimit_test.go
package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/iyunix/go-roomchat/internal/domain"
	"github.com/iyunix/go-roomchat/internal/services"
)

func testLimiter(t *testing.T) *Limiter {
	t.Helper()
	store := NewMemoryCounterStore()
	t.Cleanup(store.Close)
	return NewLimiter(store, nil, &services.NoOpLogger{})
}

func TestFreeTierDailyAILimit(t *testing.T) {
	l := testLimiter(t)
	// Pin the clock inside one hour so only the daily ceiling binds.
	l.now = func() time.Time {
		return time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	}
	ctx := context.Background()

	limits := DefaultTierLimits()[domain.TierFree][ActionAIRequest]
	if limits.PerDay != 25 {
		t.Fatalf("free daily AI limit expected 25, got %d", limits.PerDay)
	}

	// The hourly ceiling is 10, so spread attempts across hours of
	// the same day.
	hour := 10
	used := 0
	for used < limits.PerDay {
		perHour := limits.PerHour
		if limits.PerDay-used < perHour {
			perHour = limits.PerDay - used
		}
		h := hour
		l.now = func() time.Time {
			return time.Date(2025, 3, 1, h, 0, 0, 0, time.UTC)
		}
		for i := 0; i < perHour; i++ {
			res, err := l.TryConsume(ctx, "user-1", "r1", ActionAIRequest, domain.TierFree)
			if err != nil {
				t.Fatalf("TryConsume: %v", err)
			}
			if !res.Allowed {
				t.Fatalf("attempt %d should be allowed", used+i+1)
			}
		}
		used += perHour
		hour++
	}

	// The 26th request of the day is the one rejected.
	res, err := l.TryConsume(ctx, "user-1", "r1", ActionAIRequest, domain.TierFree)
	if err != nil {
		t.Fatalf("TryConsume: %v", err)
	}
	if res.Allowed {
		t.Fatal("26th daily AI request must be rejected")
	}
	if res.Window != WindowDay {
		t.Fatalf("expected the daily window to be hit, got %q", res.Window)
	}
	if res.Remaining != 0 {
		t.Fatalf("expected remaining 0, got %d", res.Remaining)
	}
	if res.ResetAt.IsZero() {
		t.Fatal("rejection must carry the reset time")
	}
}

func TestHourlyLimitHitsFirst(t *testing.T) {
	l := testLimiter(t)
	l.now = func() time.Time {
		return time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)
	}
	ctx := context.Background()

	perHour := DefaultTierLimits()[domain.TierAnonymous][ActionAIRequest].PerHour
	for i := 0; i < perHour; i++ {
		res, err := l.TryConsume(ctx, "anon-1", "r1", ActionAIRequest, domain.TierAnonymous)
		if err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
		if !res.Allowed {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}

	res, err := l.TryConsume(ctx, "anon-1", "r1", ActionAIRequest, domain.TierAnonymous)
	if err != nil {
		t.Fatalf("TryConsume: %v", err)
	}
	if res.Allowed || res.Window != WindowHour {
		t.Fatalf("expected hourly rejection, got allowed=%v window=%q", res.Allowed, res.Window)
	}
	wantReset := time.Date(2025, 3, 1, 11, 0, 0, 0, time.UTC)
	if !res.ResetAt.Equal(wantReset) {
		t.Fatalf("reset at %v, want %v", res.ResetAt, wantReset)
	}
}

func TestRemainingDecreasesMonotonically(t *testing.T) {
	l := testLimiter(t)
	l.now = func() time.Time {
		return time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	}
	ctx := context.Background()

	prev := int(^uint(0) >> 1)
	for i := 0; i < 5; i++ {
		res, err := l.TryConsume(ctx, "user-1", "r1", ActionMessage, domain.TierFree)
		if err != nil {
			t.Fatalf("TryConsume: %v", err)
		}
		if res.Remaining >= prev {
			t.Fatalf("remaining did not decrease: %d then %d", prev, res.Remaining)
		}
		prev = res.Remaining
	}
}

func TestWindowRollover(t *testing.T) {
	l := testLimiter(t)
	ctx := context.Background()

	l.now = func() time.Time {
		return time.Date(2025, 3, 1, 10, 59, 0, 0, time.UTC)
	}
	perHour := DefaultTierLimits()[domain.TierAnonymous][ActionAIRequest].PerHour
	for i := 0; i < perHour+1; i++ {
		l.TryConsume(ctx, "anon-1", "r1", ActionAIRequest, domain.TierAnonymous)
	}

	// Next hour bucket: fresh counter, requests flow again.
	l.now = func() time.Time {
		return time.Date(2025, 3, 1, 11, 0, 0, 0, time.UTC)
	}
	res, err := l.TryConsume(ctx, "anon-1", "r1", ActionAIRequest, domain.TierAnonymous)
	if err != nil {
		t.Fatalf("TryConsume: %v", err)
	}
	if !res.Allowed {
		t.Fatal("request after hour rollover must be allowed")
	}
}

func TestIdentitiesAreIsolated(t *testing.T) {
	l := testLimiter(t)
	l.now = func() time.Time {
		return time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	}
	ctx := context.Background()

	perHour := DefaultTierLimits()[domain.TierAnonymous][ActionAIRequest].PerHour
	for i := 0; i < perHour+1; i++ {
		l.TryConsume(ctx, "anon-1", "r1", ActionAIRequest, domain.TierAnonymous)
	}

	res, err := l.TryConsume(ctx, "anon-2", "r1", ActionAIRequest, domain.TierAnonymous)
	if err != nil {
		t.Fatalf("TryConsume: %v", err)
	}
	if !res.Allowed {
		t.Fatal("other identity must not be affected")
	}
}

func TestConcurrentConsumersNeverOvershoot(t *testing.T) {
	l := testLimiter(t)
	l.now = func() time.Time {
		return time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	}
	ctx := context.Background()

	limit := DefaultTierLimits()[domain.TierFree][ActionAIRequest].PerHour

	var wg sync.WaitGroup
	allowed := make(chan struct{}, limit*3)
	for i := 0; i < limit*3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := l.TryConsume(ctx, "user-1", "r1", ActionAIRequest, domain.TierFree)
			if err == nil && res.Allowed {
				allowed <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(allowed)

	got := 0
	for range allowed {
		got++
	}
	if got != limit {
		t.Fatalf("exactly %d concurrent attempts may pass, got %d", limit, got)
	}
}
