// Package ratelimit implements a per-key sliding window limiter. The client
// uses it to throttle outbound collaborator calls so a retry storm on a flaky
// connection cannot hammer the backend.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Config configures a Limiter.
type Config struct {
	// Max is the maximum number of events allowed per window.
	Max int
	// Window is the duration of each sliding window.
	Window time.Duration
}

// entry tracks event counts across two adjacent windows for the sliding
// window algorithm.
type entry struct {
	prevCount float64
	prevStart time.Time
	currCount float64
	currStart time.Time
}

// Limiter holds the shared sliding window state. Safe for concurrent use.
type Limiter struct {
	cfg     Config
	mu      sync.Mutex
	entries map[string]*entry
}

// New creates a Limiter. Use StartCleanup to evict stale keys in long-lived
// processes.
func New(cfg Config) *Limiter {
	return &Limiter{
		cfg:     cfg,
		entries: make(map[string]*entry),
	}
}

// Allow checks whether one more event for key is within the limit at now.
// It returns the remaining budget, the window reset time, and whether the
// event is allowed.
func (l *Limiter) Allow(key string, now time.Time) (remaining int, resetAt time.Time, allowed bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		e = &entry{currStart: now}
		l.entries[key] = e
	}

	// Rotate window if the current window has elapsed.
	if now.Sub(e.currStart) >= l.cfg.Window {
		e.prevCount = e.currCount
		e.prevStart = e.currStart
		e.currCount = 0
		e.currStart = now.Truncate(l.cfg.Window)
		// If even the previous window is stale, zero it out.
		if now.Sub(e.prevStart) >= 2*l.cfg.Window {
			e.prevCount = 0
		}
	}

	// Sliding window: weight the previous window by how much of it
	// overlaps with the current sliding window.
	elapsed := now.Sub(e.currStart)
	overlapRatio := 1.0 - elapsed.Seconds()/l.cfg.Window.Seconds()
	if overlapRatio < 0 {
		overlapRatio = 0
	}
	effectiveCount := e.prevCount*overlapRatio + e.currCount
	resetAt = e.currStart.Add(l.cfg.Window)

	if effectiveCount >= float64(l.cfg.Max) {
		return 0, resetAt, false
	}

	e.currCount++
	effectiveCount++

	remaining = int(float64(l.cfg.Max) - effectiveCount)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, resetAt, true
}

// cleanup removes entries whose windows have fully expired.
func (l *Limiter) cleanup(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, e := range l.entries {
		if now.Sub(e.currStart) >= 2*l.cfg.Window {
			delete(l.entries, key)
		}
	}
}

// StartCleanup launches a background goroutine that evicts expired entries
// every 2x the window duration. It stops when ctx is cancelled.
func (l *Limiter) StartCleanup(ctx context.Context) {
	interval := 2 * l.cfg.Window
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				l.cleanup(now)
			}
		}
	}()
}
