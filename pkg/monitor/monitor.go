// Package monitor tracks the reachability of the client's collaborators.
//
// Each registered check runs in its own background goroutine at a
// configurable interval. Checks use failure/success thresholds to avoid
// flapping between online and offline on a single dropped request: a check
// must fail consecutively failureThreshold times before being counted
// against the connection, and succeed successThreshold times before it is
// trusted again.
package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gramkart/commerce-core/pkg/pubsub"
)

// CheckFunc probes one collaborator. It returns nil when the collaborator is
// reachable, or an error describing the problem.
type CheckFunc func(ctx context.Context) error

// Status is a snapshot of the monitored collaborators.
type Status struct {
	// Online is true when every check is passing.
	Online bool
	// Failures maps failing check names to their last error message.
	Failures map[string]string
}

// check holds the configuration and runtime state for a single probe.
//
// Concurrency model: run() is called from exactly one goroutine (the
// ticker), so the consecutive counters need no synchronization. The healthy
// flag and lastErr are read from arbitrary goroutines via atomics.
type check struct {
	name             string
	timeout          time.Duration
	fn               CheckFunc
	failureThreshold int
	successThreshold int

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	consecutiveFails int
	consecutiveOK    int
}

func (c *check) isHealthy() bool {
	return c.healthy.Load()
}

func (c *check) lastError() error {
	if p := c.lastErr.Load(); p != nil {
		return *p
	}
	return nil
}

// run executes the probe once and updates thresholds. Must be called from a
// single goroutine.
func (c *check) run(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.fn(probeCtx)
	c.lastErr.Store(&err)

	if err != nil {
		c.consecutiveOK = 0
		c.consecutiveFails++
		if c.consecutiveFails >= c.failureThreshold {
			c.healthy.Store(false)
		}
	} else {
		c.consecutiveFails = 0
		c.consecutiveOK++
		if c.consecutiveOK >= c.successThreshold {
			c.healthy.Store(true)
		}
	}
}

// Monitor watches a set of collaborator probes and publishes transitions
// between online and offline.
type Monitor struct {
	// mu protects checks and cancel. Held during registration (before
	// Start) and in Start/Stop; Status snapshots the slice under RLock.
	mu     sync.RWMutex
	checks []*check
	cancel context.CancelFunc

	online atomic.Bool
	hub    *pubsub.Hub[Status]
}

// New creates a Monitor with no checks. It reports online until Start runs
// a first round of probes.
func New() *Monitor {
	m := &Monitor{hub: pubsub.New[Status]()}
	m.online.Store(true)
	return m
}

// AddCheck registers a probe. Register all checks before calling Start.
func (m *Monitor) AddCheck(name string, timeout time.Duration, fn CheckFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := &check{
		name:             name,
		timeout:          timeout,
		fn:               fn,
		failureThreshold: 3,
		successThreshold: 1,
	}
	c.healthy.Store(true)
	m.checks = append(m.checks, c)
}

// Start begins probing at the given interval, one goroutine per check, each
// running immediately and then on every tick. It stops when Stop is called
// or ctx is cancelled.
func (m *Monitor) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	m.cancel = cancel
	checks := make([]*check, len(m.checks))
	copy(checks, m.checks)
	m.mu.Unlock()

	for _, c := range checks {
		go m.runCheck(ctx, c, interval)
	}
}

func (m *Monitor) runCheck(ctx context.Context, c *check, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.run(ctx)
	m.publish()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.run(ctx)
			m.publish()
		}
	}
}

// publish notifies subscribers when the overall online state flips.
func (m *Monitor) publish() {
	status := m.Status()
	if m.online.Swap(status.Online) != status.Online {
		m.hub.Notify(status)
	}
}

// Online reports whether every check passed on its last completed round.
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// Status returns the current snapshot with per-check failure messages.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	checks := make([]*check, len(m.checks))
	copy(checks, m.checks)
	m.mu.RUnlock()

	status := Status{Online: true, Failures: make(map[string]string)}
	for _, c := range checks {
		if c.isHealthy() {
			continue
		}
		status.Online = false
		if err := c.lastError(); err != nil {
			status.Failures[c.name] = err.Error()
		} else {
			status.Failures[c.name] = "check failed"
		}
	}
	return status
}

// Subscribe registers fn for online/offline transitions. The returned
// function removes the subscription.
func (m *Monitor) Subscribe(fn func(Status)) (unsubscribe func()) {
	return m.hub.Subscribe(fn)
}

// Stop cancels all probe goroutines. Safe to call multiple times.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}
