package gateway

import (
	"sync"
	"time"
)

const (
	rateLimitWindow = 60 * time.Second
)

// limiter is a per-connection sliding-window rate limiter: at most
// limit inbound operations within any trailing rateLimitWindow,
// per spec.md §4.6. Shape (mutex-guarded map, not a token bucket)
// mirrors the teacher's Hub.clients map locking idiom in
// internal/game/hub.go.
type limiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	events map[string][]time.Time
}

func newLimiter(limit int) *limiter {
	return &limiter{
		limit:  limit,
		window: rateLimitWindow,
		events: make(map[string][]time.Time),
	}
}

// Allow records one operation for connID at now and reports whether
// it falls within the rate limit. Exceeding the cap does not count
// against future windows — the caller is expected to drop the
// connection on a false result (spec.md: "Exceeding the cap drops the
// connection").
func (l *limiter) Allow(connID string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-l.window)
	kept := l.events[connID][:0]
	for _, t := range l.events[connID] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= l.limit {
		l.events[connID] = kept
		return false
	}

	l.events[connID] = append(kept, now)
	return true
}

// Forget drops connID's window, called on disconnect.
func (l *limiter) Forget(connID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.events, connID)
}
