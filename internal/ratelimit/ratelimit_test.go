package ratelimit

import (
	"testing"
	"time"
)

func newTestLimiter(start time.Time) (*Limiter, *time.Time) {
	now := start
	l := New()
	l.now = func() time.Time { return now }
	return l, &now
}

func TestCheck_RemainingDecreasesMonotonically(t *testing.T) {
	t.Parallel()

	l, _ := newTestLimiter(time.Date(2026, 1, 4, 10, 0, 0, 0, time.UTC))
	tier := TierByName("free")

	for i := 1; i <= tier.RequestsPerHour; i++ {
		allowed, info := l.Check("k1", tier)
		if !allowed {
			t.Fatalf("request %d: expected allowed", i)
		}
		if info.Remaining != tier.RequestsPerHour-i {
			t.Fatalf("request %d: remaining = %d, want %d", i, info.Remaining, tier.RequestsPerHour-i)
		}
		if info.Limit != tier.RequestsPerHour {
			t.Fatalf("request %d: limit = %d, want %d", i, info.Limit, tier.RequestsPerHour)
		}
	}
}

func TestCheck_DeniesOverLimit(t *testing.T) {
	t.Parallel()

	l, _ := newTestLimiter(time.Date(2026, 1, 4, 10, 0, 0, 0, time.UTC))
	tier := TierByName("free")

	var lastReset int64
	for i := 0; i < tier.RequestsPerHour; i++ {
		_, info := l.Check("k1", tier)
		lastReset = info.Reset
	}

	allowed, info := l.Check("k1", tier)
	if allowed {
		t.Fatalf("expected denial past the limit")
	}
	if info.Remaining != 0 {
		t.Fatalf("remaining = %d, want 0", info.Remaining)
	}
	if info.Reset != lastReset {
		t.Fatalf("reset changed on denial: %d != %d", info.Reset, lastReset)
	}
}

func TestCheck_WindowReset(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 4, 10, 0, 0, 0, time.UTC)
	l, now := newTestLimiter(start)
	tier := TierByName("free")

	for i := 0; i < tier.RequestsPerHour; i++ {
		l.Check("k1", tier)
	}
	if allowed, _ := l.Check("k1", tier); allowed {
		t.Fatalf("expected denial before reset")
	}

	// Landing exactly on resetAt starts a fresh window.
	*now = start.Add(time.Hour)
	allowed, info := l.Check("k1", tier)
	if !allowed {
		t.Fatalf("expected allowed after window reset")
	}
	if info.Remaining != tier.RequestsPerHour-1 {
		t.Fatalf("remaining = %d, want %d (fresh window)", info.Remaining, tier.RequestsPerHour-1)
	}
}

func TestCheck_KeysAreIndependent(t *testing.T) {
	t.Parallel()

	l, _ := newTestLimiter(time.Date(2026, 1, 4, 10, 0, 0, 0, time.UTC))
	tier := TierByName("free")

	for i := 0; i < tier.RequestsPerHour; i++ {
		l.Check("k1", tier)
	}
	if allowed, _ := l.Check("k1", tier); allowed {
		t.Fatalf("expected k1 denied")
	}
	if allowed, _ := l.Check("k2", tier); !allowed {
		t.Fatalf("expected k2 unaffected by k1's quota")
	}
}

func TestCheck_DailyQuota(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 4, 0, 0, 0, 0, time.UTC)
	l, now := newTestLimiter(start)
	tier := TierByName("free")

	// Burn the full daily quota across hourly windows.
	for d := 0; d < tier.RequestsPerDay; d++ {
		if d > 0 && d%tier.RequestsPerHour == 0 {
			*now = now.Add(time.Hour)
		}
		if allowed, _ := l.Check("k1", tier); !allowed {
			t.Fatalf("request %d: expected allowed within daily quota", d)
		}
	}

	*now = now.Add(time.Hour)
	allowed, info := l.Check("k1", tier)
	if allowed {
		t.Fatalf("expected denial once the daily quota is spent")
	}
	if info.Limit != tier.RequestsPerDay {
		t.Fatalf("denial should report the daily window, got limit %d", info.Limit)
	}
}

func TestStatus_DoesNotConsume(t *testing.T) {
	t.Parallel()

	l, _ := newTestLimiter(time.Date(2026, 1, 4, 10, 0, 0, 0, time.UTC))
	tier := TierByName("free")

	l.Check("k1", tier)
	before := l.Status("k1", tier)
	after := l.Status("k1", tier)
	if before.Remaining != after.Remaining {
		t.Fatalf("Status mutated state: %d != %d", before.Remaining, after.Remaining)
	}
	if before.Remaining != tier.RequestsPerHour-1 {
		t.Fatalf("remaining = %d, want %d", before.Remaining, tier.RequestsPerHour-1)
	}
}

func TestStatus_AbsentWindowReportsFullQuota(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 4, 10, 0, 0, 0, time.UTC)
	l, _ := newTestLimiter(start)
	tier := TierByName("pro")

	info := l.Status("unseen", tier)
	if info.Remaining != tier.RequestsPerHour {
		t.Fatalf("remaining = %d, want full quota %d", info.Remaining, tier.RequestsPerHour)
	}
	if info.Reset != start.Add(time.Hour).Unix() {
		t.Fatalf("reset = %d, want %d", info.Reset, start.Add(time.Hour).Unix())
	}
}

func TestAllowIP(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 4, 10, 0, 0, 0, time.UTC)
	l, now := newTestLimiter(start)

	for i := 0; i < ipLimit; i++ {
		if allowed, _ := l.AllowIP("203.0.113.9"); !allowed {
			t.Fatalf("request %d: expected allowed", i)
		}
	}

	*now = start.Add(30 * time.Second)
	allowed, retryAfter := l.AllowIP("203.0.113.9")
	if allowed {
		t.Fatalf("expected denial past the per-minute limit")
	}
	if retryAfter != 30 {
		t.Fatalf("retryAfter = %d, want 30", retryAfter)
	}

	if allowed, _ := l.AllowIP("198.51.100.7"); !allowed {
		t.Fatalf("expected other IPs unaffected")
	}

	*now = start.Add(time.Minute)
	if allowed, _ := l.AllowIP("203.0.113.9"); !allowed {
		t.Fatalf("expected allowed after window reset")
	}
}

func TestCleanup_RemovesOnlyExpired(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 4, 10, 0, 0, 0, time.UTC)
	l, now := newTestLimiter(start)
	tier := TierByName("free")

	l.Check("old", tier)
	l.AllowIP("203.0.113.9")

	*now = start.Add(30 * time.Minute)
	l.Check("fresh", tier)

	*now = start.Add(61 * time.Minute)
	removed := l.Cleanup()
	// "old"'s hour window and the IP window are past reset; the day
	// windows and "fresh"'s hour window are not.
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}

	info := l.Status("fresh", tier)
	if info.Remaining != tier.RequestsPerHour-1 {
		t.Fatalf("fresh window lost to cleanup: remaining %d", info.Remaining)
	}
}

func TestHeaders(t *testing.T) {
	t.Parallel()

	h := Headers(Info{Limit: 100, Remaining: 58, Reset: 1767520800})
	if h["X-RateLimit-Limit"] != "100" {
		t.Fatalf("limit header = %q", h["X-RateLimit-Limit"])
	}
	if h["X-RateLimit-Remaining"] != "58" {
		t.Fatalf("remaining header = %q", h["X-RateLimit-Remaining"])
	}
	if h["X-RateLimit-Reset"] != "1767520800" {
		t.Fatalf("reset header = %q", h["X-RateLimit-Reset"])
	}
}

func TestTierByName_UnknownFallsBackToFree(t *testing.T) {
	t.Parallel()

	tier := TierByName("platinum")
	if tier.Name != "free" {
		t.Fatalf("expected free fallback, got %q", tier.Name)
	}
	if !IsValidTier("enterprise") || IsValidTier("platinum") {
		t.Fatalf("IsValidTier misclassified a tier")
	}
}
