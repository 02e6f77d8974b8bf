// Package geo resolves the device position to a postal address. A one-shot
// fix is requested first; when its accuracy is worse than the configured
// threshold, a continuous position watch races a timeout for a better fix,
// and the winner's coordinates are reverse-geocoded.
package geo

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/gramkart/commerce-core/postal"
)

// Fix is one position sample. Accuracy is the error radius in meters, so
// lower is better.
type Fix struct {
	Lat       float64
	Lon       float64
	Accuracy  float64
	Timestamp time.Time
}

// Options control a position request, mirroring the platform geolocation API.
type Options struct {
	// HighAccuracy asks the platform for its best (usually slower) source.
	HighAccuracy bool
	// Timeout bounds the initial one-shot request.
	Timeout time.Duration
	// MaxAge is the oldest cached fix the platform may hand back.
	MaxAge time.Duration
}

// Source abstracts the platform geolocation API.
type Source interface {
	// Current returns a single position fix. Errors should wrap one of the
	// package sentinel errors so the resolver can categorize the failure.
	Current(ctx context.Context, opts Options) (Fix, error)
	// Watch streams position updates until stop is called. The returned
	// channel is closed when the watch ends.
	Watch(ctx context.Context, opts Options) (updates <-chan Fix, stop func(), err error)
}

// Geocoder is the reverse-geocode collaborator.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (postal.Address, error)
}

// Sentinel errors categorizing platform geolocation failures.
var (
	ErrPermissionDenied    = errors.New("location permission denied")
	ErrPositionUnavailable = errors.New("position unavailable")
	ErrTimeout             = errors.New("location request timed out")
)

// Phase is the resolver lifecycle state.
type Phase string

const (
	PhaseIdle              Phase = "IDLE"
	PhaseRequesting        Phase = "REQUESTING"
	PhaseAwaitingBetterFix Phase = "AWAITING_BETTER_FIX"
	PhaseResolved          Phase = "RESOLVED"
	PhaseFailed            Phase = "FAILED"
)

// State is the observable resolver state. Terminal states carry either the
// resolved address with its raw fix, or a categorized failure message.
type State struct {
	Phase   Phase
	Address postal.Address
	Fix     Fix
	Message string
}
