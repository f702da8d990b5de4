package ratelimit

import (
	"sync"
	"time"
)

// Config holds the limiter budget settings.
type Config struct {
	Max      int           // requests per window per identity
	Window   time.Duration // fixed window length
	KeyBurst int           // extra budget for callers presenting an API key
}

// Result reports one admission decision.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
	ResetAt    time.Time
}

type window struct {
	count   int
	resetAt time.Time
}

// Limiter is an in-process fixed-window counter per identity. Distinct
// identities never share a budget. Safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	cfg     Config
	windows map[string]*window
	now     func() time.Time
}

// maxEntries triggers a sweep of expired windows to bound memory.
const maxEntries = 16384

// New creates a limiter with the given config.
func New(cfg Config) *Limiter {
	return &Limiter{
		cfg:     cfg,
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Allow admits or rejects one request for the identity. A keyed caller gets
// the burst allowance on top of the base budget. An override > 0 replaces
// the base budget entirely (per-key rate limit).
func (l *Limiter) Allow(identity string, keyed bool, override *int) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	w := l.windows[identity]
	if w == nil || !now.Before(w.resetAt) {
		if len(l.windows) >= maxEntries {
			l.sweep(now)
		}
		w = &window{resetAt: now.Add(l.cfg.Window)}
		l.windows[identity] = w
	}

	budget := l.cfg.Max
	if override != nil && *override > 0 {
		budget = *override
	}
	if keyed {
		budget += l.cfg.KeyBurst
	}

	if w.count >= budget {
		return Result{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: w.resetAt.Sub(now),
			ResetAt:    w.resetAt,
		}
	}

	w.count++
	return Result{
		Allowed:   true,
		Remaining: budget - w.count,
		ResetAt:   w.resetAt,
	}
}

// sweep drops expired windows. Caller holds the lock.
func (l *Limiter) sweep(now time.Time) {
	for id, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, id)
		}
	}
}
