package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a fixed-window counter per client identity: at most Limit
// operations per Window. Rollover is computed from wall-clock time on each
// check, so no background timer is involved.
type Limiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	counts map[string]*windowCount

	now func() time.Time
}

type windowCount struct {
	start time.Time
	count int
}

func NewLimiter(limit int, window time.Duration) *Limiter {
	return &Limiter{
		limit:  limit,
		window: window,
		counts: make(map[string]*windowCount),
		now:    time.Now,
	}
}

// Allow records one attempt for clientID and reports whether it is within the
// bound. When rejected, retryAfter is the time left until the client's window
// rolls over (always <= the configured window). remaining is the number of
// further attempts the current window still admits.
func (l *Limiter) Allow(clientID string) (ok bool, remaining int, retryAfter time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	wc, exists := l.counts[clientID]
	if !exists || now.Sub(wc.start) >= l.window {
		wc = &windowCount{start: now}
		l.counts[clientID] = wc
	}

	if wc.count >= l.limit {
		return false, 0, wc.start.Add(l.window).Sub(now)
	}

	wc.count++
	return true, l.limit - wc.count, 0
}

// Limit returns the configured per-window bound.
func (l *Limiter) Limit() int { return l.limit }

// Window returns the configured window length.
func (l *Limiter) Window() time.Duration { return l.window }

// Prune drops identities whose window has long expired. Called from the
// janitor so the counter map does not grow with every IP ever seen.
func (l *Limiter) Prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	var pruned int
	for id, wc := range l.counts {
		if now.Sub(wc.start) >= 2*l.window {
			delete(l.counts, id)
			pruned++
		}
	}
	return pruned
}
