// Package ratelimit implements the per-key and per-IP request quotas.
//
// Windows are fixed (counter resets at a fixed boundary), not sliding:
// a caller can burst a full quota in the last second of one window and
// again in the first second of the next, up to 2x the nominal rate
// across the boundary. That is an accepted property of this algorithm,
// kept for its simplicity.
//
// All state is in-process. This limiter is only correct for a
// single-instance deployment; running multiple replicas multiplies the
// effective quota by the replica count.
package ratelimit

import (
	"strconv"
	"sync"
	"time"
)

// Tier is a named quota level assigned to an API key.
type Tier struct {
	Name            string
	RequestsPerHour int
	RequestsPerDay  int
}

var tiers = map[string]Tier{
	"free":       {Name: "free", RequestsPerHour: 100, RequestsPerDay: 1000},
	"pro":        {Name: "pro", RequestsPerHour: 10000, RequestsPerDay: 100000},
	"enterprise": {Name: "enterprise", RequestsPerHour: 100000, RequestsPerDay: 1000000},
}

// TierByName returns the tier for name, falling back to free for
// unknown names so a bad row never grants an unlimited key.
func TierByName(name string) Tier {
	if t, ok := tiers[name]; ok {
		return t
	}
	return tiers["free"]
}

// IsValidTier reports whether name is a known tier.
func IsValidTier(name string) bool {
	_, ok := tiers[name]
	return ok
}

// Info describes the state of a key's hourly window after a check.
type Info struct {
	Limit     int
	Remaining int
	// Reset is the window expiry in Unix seconds.
	Reset int64
}

const (
	ipWindow = time.Minute
	ipLimit  = 30
)

type window struct {
	count   int
	resetAt time.Time
}

// expired reports whether the window is over at now. A request landing
// exactly at resetAt starts a fresh window (strict less-than).
func (w *window) expired(now time.Time) bool {
	return !now.Before(w.resetAt)
}

// Limiter tracks fixed-window request counts per API key and per IP.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	ips     map[string]*window

	now func() time.Time
}

// New creates a limiter with empty in-memory state.
func New() *Limiter {
	return &Limiter{
		windows: make(map[string]*window),
		ips:     make(map[string]*window),
		now:     time.Now,
	}
}

// Check consumes one request for keyID under tier. It returns whether
// the request is allowed and the hourly window info for response
// headers. Both the hourly and daily quotas must have room; a denial
// reports whichever window tripped.
func (l *Limiter) Check(keyID string, tier Tier) (bool, Info) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	hour := l.live("h:"+keyID, now)
	day := l.live("d:"+keyID, now)

	if hour != nil && hour.count >= tier.RequestsPerHour {
		return false, Info{Limit: tier.RequestsPerHour, Remaining: 0, Reset: hour.resetAt.Unix()}
	}
	if day != nil && day.count >= tier.RequestsPerDay {
		return false, Info{Limit: tier.RequestsPerDay, Remaining: 0, Reset: day.resetAt.Unix()}
	}

	hour = l.bump("h:"+keyID, hour, now, time.Hour)
	l.bump("d:"+keyID, day, now, 24*time.Hour)

	return true, Info{
		Limit:     tier.RequestsPerHour,
		Remaining: tier.RequestsPerHour - hour.count,
		Reset:     hour.resetAt.Unix(),
	}
}

// Status returns the hourly window info for keyID without consuming a
// request. An absent or expired window reports the full quota with a
// hypothetical reset one hour out.
func (l *Limiter) Status(keyID string, tier Tier) Info {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	hour := l.live("h:"+keyID, now)
	if hour == nil {
		return Info{
			Limit:     tier.RequestsPerHour,
			Remaining: tier.RequestsPerHour,
			Reset:     now.Add(time.Hour).Unix(),
		}
	}

	remaining := tier.RequestsPerHour - hour.count
	if remaining < 0 {
		remaining = 0
	}
	return Info{Limit: tier.RequestsPerHour, Remaining: remaining, Reset: hour.resetAt.Unix()}
}

// AllowIP consumes one request for an unauthenticated caller's IP
// (30/minute). When denied, retryAfter is the seconds until the window
// resets, rounded up.
func (l *Limiter) AllowIP(ip string) (allowed bool, retryAfter int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	win := l.ips[ip]
	if win == nil || win.expired(now) {
		l.ips[ip] = &window{count: 1, resetAt: now.Add(ipWindow)}
		return true, 0
	}
	if win.count >= ipLimit {
		secs := int((win.resetAt.Sub(now) + time.Second - 1) / time.Second)
		if secs < 1 {
			secs = 1
		}
		return false, secs
	}
	win.count++
	return true, 0
}

// Cleanup sweeps both stores and drops windows that have already
// reset. Returns the number of entries removed.
func (l *Limiter) Cleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for k, w := range l.windows {
		if w.expired(now) {
			delete(l.windows, k)
			removed++
		}
	}
	for k, w := range l.ips {
		if w.expired(now) {
			delete(l.ips, k)
			removed++
		}
	}
	return removed
}

// StartCleanupWorker sweeps expired windows on a fixed interval so the
// maps don't grow with every key ever seen.
func (l *Limiter) StartCleanupWorker(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for range ticker.C {
			l.Cleanup()
		}
	}()
}

// live returns the current non-expired window for key, or nil.
func (l *Limiter) live(key string, now time.Time) *window {
	win := l.windows[key]
	if win == nil || win.expired(now) {
		return nil
	}
	return win
}

// bump increments win, creating a fresh window of length dur if nil.
func (l *Limiter) bump(key string, win *window, now time.Time, dur time.Duration) *window {
	if win == nil {
		win = &window{count: 1, resetAt: now.Add(dur)}
		l.windows[key] = win
		return win
	}
	win.count++
	return win
}

// Headers maps window info onto the standard rate-limit headers.
func Headers(info Info) map[string]string {
	return map[string]string{
		"X-RateLimit-Limit":     strconv.Itoa(info.Limit),
		"X-RateLimit-Remaining": strconv.Itoa(info.Remaining),
		"X-RateLimit-Reset":     strconv.FormatInt(info.Reset, 10),
	}
}
