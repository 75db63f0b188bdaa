package gateway

import (
	"sync"
	"time"
)

// RateLimiter applies a sliding one-minute window per remote address. It
// is constructed by the daemon and injected, never package state; Stop
// ends the background pruning of idle address entries.
type RateLimiter struct {
	mu       sync.Mutex
	limit    int
	requests map[string][]time.Time
	done     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a limiter allowing limit requests per minute per
// address and starts its cleanup goroutine.
func NewRateLimiter(limit int) *RateLimiter {
	if limit <= 0 {
		limit = 120
	}

	r := &RateLimiter{
		limit:    limit,
		requests: make(map[string][]time.Time),
		done:     make(chan struct{}),
	}
	go r.cleanupLoop()
	return r
}

// Allow records and admits the request unless the address has exhausted
// its window.
func (r *RateLimiter) Allow(addr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	window := r.prune(addr, now)

	if len(window) >= r.limit {
		r.requests[addr] = window
		return false
	}

	r.requests[addr] = append(window, now)
	return true
}

// SetLimit replaces the per-minute limit. Called from the config watcher.
func (r *RateLimiter) SetLimit(limit int) {
	if limit <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limit = limit
}

// Stop ends the cleanup goroutine. Safe to call more than once.
func (r *RateLimiter) Stop() {
	r.stopOnce.Do(func() { close(r.done) })
}

func (r *RateLimiter) prune(addr string, now time.Time) []time.Time {
	cutoff := now.Add(-time.Minute)
	window := r.requests[addr][:0]
	for _, t := range r.requests[addr] {
		if t.After(cutoff) {
			window = append(window, t)
		}
	}
	return window
}

// cleanupLoop drops addresses with no requests in the window so the map
// does not grow with every client that ever connected.
func (r *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.mu.Lock()
			now := time.Now()
			for addr := range r.requests {
				if window := r.prune(addr, now); len(window) == 0 {
					delete(r.requests, addr)
				} else {
					r.requests[addr] = window
				}
			}
			r.mu.Unlock()
		case <-r.done:
			return
		}
	}
}
