package geo

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/gramkart/commerce-core/pkg/pubsub"
)

// Config tunes a Resolver.
type Config struct {
	// AccuracyThreshold is the maximum acceptable error radius in meters.
	// A fix at or below it resolves immediately.
	AccuracyThreshold float64
	// ImproveWindow is how long the watch may chase a better fix before the
	// best fix seen so far is used.
	ImproveWindow time.Duration
	// Request is passed through to the platform source.
	Request Options
}

// DefaultConfig returns the resolver defaults: a 50 m threshold and an 8 s
// improvement window.
func DefaultConfig() Config {
	return Config{
		AccuracyThreshold: 50,
		ImproveWindow:     8 * time.Second,
		Request: Options{
			HighAccuracy: true,
			Timeout:      10 * time.Second,
			MaxAge:       30 * time.Second,
		},
	}
}

// Resolver is a one-shot async state machine around a position Source and a
// reverse-geocode collaborator. At most one resolution attempt is in flight;
// Detect calls made while one is outstanding are ignored.
type Resolver struct {
	source   Source
	geocoder Geocoder
	cfg      Config

	mu       sync.Mutex
	state    State
	attempt  int
	inFlight bool
	cancel   context.CancelFunc

	hub *pubsub.Hub[State]
}

// NewResolver creates a Resolver in the IDLE phase.
func NewResolver(source Source, geocoder Geocoder, cfg Config) *Resolver {
	if cfg.AccuracyThreshold <= 0 {
		cfg.AccuracyThreshold = DefaultConfig().AccuracyThreshold
	}
	if cfg.ImproveWindow <= 0 {
		cfg.ImproveWindow = DefaultConfig().ImproveWindow
	}
	return &Resolver{
		source:   source,
		geocoder: geocoder,
		cfg:      cfg,
		state:    State{Phase: PhaseIdle},
		hub:      pubsub.New[State](),
	}
}

// State returns the current resolver state.
func (r *Resolver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Subscribe registers fn, replays the current state once, and returns an
// unsubscribe function.
func (r *Resolver) Subscribe(fn func(State)) (unsubscribe func()) {
	unsubscribe = r.hub.Subscribe(fn)
	fn(r.State())
	return unsubscribe
}

// Detect starts a resolution attempt. It reports false when an attempt is
// already outstanding, in which case the call is ignored.
func (r *Resolver) Detect(ctx context.Context) bool {
	r.mu.Lock()
	if r.inFlight {
		r.mu.Unlock()
		return false
	}
	// Tear down whatever a previous attempt may still hold before starting
	// a new watch/timer pair.
	if r.cancel != nil {
		r.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.inFlight = true
	r.attempt++
	attempt := r.attempt
	r.state = State{Phase: PhaseRequesting}
	snap := r.state
	r.mu.Unlock()

	r.hub.Notify(snap)
	go r.run(runCtx, attempt)
	return true
}

// Refresh is semantically identical to Detect. It is the only way out of the
// FAILED and RESOLVED phases back into a fresh attempt.
func (r *Resolver) Refresh(ctx context.Context) bool {
	return r.Detect(ctx)
}

// Cancel aborts the outstanding attempt, if any, and returns to IDLE.
func (r *Resolver) Cancel() {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	wasInFlight := r.inFlight
	r.inFlight = false
	r.attempt++
	if wasInFlight {
		r.state = State{Phase: PhaseIdle}
	}
	snap := r.state
	r.mu.Unlock()

	if wasInFlight {
		r.hub.Notify(snap)
	}
}

// run performs one resolution attempt. The attempt number guards terminal
// transitions: a superseded attempt's late result is dropped instead of
// overwriting a newer resolution.
func (r *Resolver) run(ctx context.Context, attempt int) {
	lg := zctx.From(ctx)

	fix, err := r.source.Current(ctx, r.cfg.Request)
	if err != nil {
		r.finish(attempt, State{Phase: PhaseFailed, Message: categorize(err)})
		return
	}

	if fix.Accuracy <= r.cfg.AccuracyThreshold {
		r.resolve(ctx, attempt, fix)
		return
	}

	lg.Debug("Fix accuracy above threshold, awaiting better fix",
		zap.Float64("accuracy", fix.Accuracy),
		zap.Float64("threshold", r.cfg.AccuracyThreshold),
	)
	r.transition(attempt, State{Phase: PhaseAwaitingBetterFix, Fix: fix})

	best := fix
	updates, stop, err := r.source.Watch(ctx, r.cfg.Request)
	if err != nil {
		// The watch could not start; the initial fix is the best we get.
		r.resolve(ctx, attempt, best)
		return
	}
	defer stop()

	timer := time.NewTimer(r.cfg.ImproveWindow)
	defer timer.Stop()

	// The first of {threshold met, timer expiry} wins; returning from the
	// select tears down both the watch and the timer, so a second firing
	// can never produce a second resolution.
	for {
		select {
		case f, ok := <-updates:
			if !ok {
				r.resolve(ctx, attempt, best)
				return
			}
			if f.Accuracy < best.Accuracy {
				best = f
			}
			if f.Accuracy <= r.cfg.AccuracyThreshold {
				r.resolve(ctx, attempt, best)
				return
			}
		case <-timer.C:
			r.resolve(ctx, attempt, best)
			return
		case <-ctx.Done():
			// A no-op when this attempt was superseded via Cancel/Refresh.
			r.finish(attempt, State{Phase: PhaseFailed, Message: categorize(ctx.Err())})
			return
		}
	}
}

// resolve reverse-geocodes the winning fix and enters RESOLVED. The geocode
// call shares the attempt context, so cancelling the attempt also cancels
// the in-flight network call.
func (r *Resolver) resolve(ctx context.Context, attempt int, fix Fix) {
	addr, err := r.geocoder.ReverseGeocode(ctx, fix.Lat, fix.Lon)
	if err != nil {
		if ctx.Err() != nil {
			r.finish(attempt, State{Phase: PhaseFailed, Fix: fix, Message: categorize(ctx.Err())})
			return
		}
		r.finish(attempt, State{
			Phase:   PhaseFailed,
			Fix:     fix,
			Message: "reverse geocode failed: " + err.Error(),
		})
		return
	}
	r.finish(attempt, State{Phase: PhaseResolved, Address: addr, Fix: fix})
}

// transition publishes a non-terminal state for a still-current attempt.
func (r *Resolver) transition(attempt int, next State) {
	r.mu.Lock()
	if attempt != r.attempt {
		r.mu.Unlock()
		return
	}
	r.state = next
	snap := r.state
	r.mu.Unlock()

	r.hub.Notify(snap)
}

// finish publishes a terminal state and releases the in-flight guard.
func (r *Resolver) finish(attempt int, terminal State) {
	r.mu.Lock()
	if attempt != r.attempt {
		r.mu.Unlock()
		return
	}
	r.state = terminal
	r.inFlight = false
	snap := r.state
	r.mu.Unlock()

	r.hub.Notify(snap)
}

// categorize maps platform errors to the stable failure messages surfaced to
// the caller.
func categorize(err error) string {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return "location permission denied"
	case errors.Is(err, ErrPositionUnavailable):
		return "position unavailable"
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "location request timed out"
	case errors.Is(err, context.Canceled):
		return "location request canceled"
	default:
		return err.Error()
	}
}
