package auth

import (
	"context"
	"sync"
	"time"
)

// RateLimiter checks whether a request from identity should be allowed.
type RateLimiter interface {
	Allow(ctx context.Context, identity *Identity) error
}

// InProcessLimiter is a fixed-window rate limiter that tracks request
// counts per subject in memory.
type InProcessLimiter struct {
	rpm int
	now func() time.Time

	mu       sync.Mutex
	counters map[string]*counter
}

type counter struct {
	count    int
	windowAt time.Time
}

// NewInProcessLimiter creates a rate limiter allowing rpm requests per
// subject per minute. rpm <= 0 allows everything.
func NewInProcessLimiter(rpm int) *InProcessLimiter {
	return &InProcessLimiter{
		rpm:      rpm,
		now:      time.Now,
		counters: make(map[string]*counter),
	}
}

// Allow checks if the request is within the rate limit.
func (l *InProcessLimiter) Allow(_ context.Context, identity *Identity) error {
	if l.rpm <= 0 {
		return nil
	}
	key := identity.Subject

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	c, ok := l.counters[key]
	if !ok || now.Sub(c.windowAt) >= time.Minute {
		l.counters[key] = &counter{count: 1, windowAt: now}
		return nil
	}

	c.count++
	if c.count > l.rpm {
		return ErrTooManyRequests
	}
	return nil
}

// Prune drops counters whose window has closed and returns how many were
// removed. Without it, every subject ever seen keeps a counter.
func (l *InProcessLimiter) Prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for key, c := range l.counters {
		if now.Sub(c.windowAt) >= time.Minute {
			delete(l.counters, key)
			removed++
		}
	}
	return removed
}

// Run prunes closed windows every interval until ctx is cancelled.
func (l *InProcessLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Prune()
		}
	}
}
