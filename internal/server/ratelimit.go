package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimitConfig holds per-client limits. A zero limit is not enforced.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	RequestsPerHour   int
	MaxRequestsPerDay int
	MaxDataPerDay     int64 // bytes
}

// RateLimiter tracks fixed-window request counts and a daily upload quota
// per client.
type RateLimiter struct {
	mu      sync.Mutex
	cfg     RateLimitConfig
	now     func() time.Time
	clients map[string]*clientUsage
}

// Usage is a snapshot of one client's counters.
type Usage struct {
	RequestsThisMinute int
	RequestsThisHour   int
	RequestsToday      int
	BytesToday         int64
	LastRequest        time.Time
}

type clientUsage struct {
	Usage
	minuteStart time.Time
	hourStart   time.Time
	dayStart    time.Time
}

// NewRateLimiter creates a limiter for cfg.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	return &RateLimiter{cfg: cfg, now: time.Now, clients: make(map[string]*clientUsage)}
}

// Allow records a request of size bytes from client, or returns a
// *RateLimitError or *QuotaExceededError when a limit is hit. Rejected
// requests are not counted.
func (rl *RateLimiter) Allow(client string, size int64) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	u := rl.clients[client]
	if u == nil {
		u = &clientUsage{minuteStart: now, hourStart: now, dayStart: startOfDay(now)}
		rl.clients[client] = u
	}
	u.roll(now)

	if limit := rl.cfg.RequestsPerMinute; limit > 0 && u.RequestsThisMinute >= limit {
		return &RateLimitError{Window: "minute", Limit: limit, RetryAfter: u.minuteStart.Add(time.Minute).Sub(now)}
	}
	if limit := rl.cfg.RequestsPerHour; limit > 0 && u.RequestsThisHour >= limit {
		return &RateLimitError{Window: "hour", Limit: limit, RetryAfter: u.hourStart.Add(time.Hour).Sub(now)}
	}
	resets := u.dayStart.AddDate(0, 0, 1)
	if limit := rl.cfg.MaxRequestsPerDay; limit > 0 && u.RequestsToday >= limit {
		return &QuotaExceededError{Kind: "requests", Limit: int64(limit), Used: int64(u.RequestsToday), Resets: resets}
	}
	if limit := rl.cfg.MaxDataPerDay; limit > 0 && u.BytesToday+size > limit {
		return &QuotaExceededError{Kind: "data", Limit: limit, Used: u.BytesToday, Resets: resets}
	}

	u.RequestsThisMinute++
	u.RequestsThisHour++
	u.RequestsToday++
	u.BytesToday += size
	u.LastRequest = now
	return nil
}

func (u *clientUsage) roll(now time.Time) {
	if now.Sub(u.minuteStart) >= time.Minute {
		u.minuteStart = now
		u.RequestsThisMinute = 0
	}
	if now.Sub(u.hourStart) >= time.Hour {
		u.hourStart = now
		u.RequestsThisHour = 0
	}
	if day := startOfDay(now); !day.Equal(u.dayStart) {
		u.dayStart = day
		u.RequestsToday = 0
		u.BytesToday = 0
	}
}

// Usage returns a snapshot of client's counters; unknown clients report zeros.
func (rl *RateLimiter) Usage(client string) Usage {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if u, ok := rl.clients[client]; ok {
		return u.Usage
	}
	return Usage{}
}

// Prune forgets clients idle for longer than idle.
func (rl *RateLimiter) Prune(idle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-idle)
	n := 0
	for id, u := range rl.clients {
		if u.LastRequest.Before(cutoff) {
			delete(rl.clients, id)
			n++
		}
	}
	return n
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// RateLimitError is returned when a per-minute or per-hour limit is hit.
type RateLimitError struct {
	Window     string // "minute" or "hour"
	Limit      int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)", e.Window, e.Limit, e.RetryAfter)
}

// QuotaExceededError is returned when a daily quota is used up.
type QuotaExceededError struct {
	Kind   string // "requests" or "data"
	Limit  int64
	Used   int64
	Resets time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s (used: %d, limit: %d, resets: %s)",
		e.Kind, e.Used, e.Limit, e.Resets.Format(time.RFC3339))
}
