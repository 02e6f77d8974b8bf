// Package commerce wires the client-side commerce stack together: role
// namespaced cart and checkout stores, the reward-aware order pipeline, the
// location resolver, and the offline pincode directory, all over a shared
// state backend and collaborator API client.
package commerce

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/gramkart/commerce-core/api"
	"github.com/gramkart/commerce-core/cart"
	"github.com/gramkart/commerce-core/checkout"
	"github.com/gramkart/commerce-core/geo"
	"github.com/gramkart/commerce-core/namespace"
	"github.com/gramkart/commerce-core/order"
	"github.com/gramkart/commerce-core/pkg/monitor"
	"github.com/gramkart/commerce-core/postal"
	"github.com/gramkart/commerce-core/state"
)

// Option configures an App.
type Option func(*App)

// WithLogger sets the logger shared by all stores. Defaults to zap.NewNop.
func WithLogger(lg *zap.Logger) Option {
	return func(a *App) { a.lg = lg }
}

// WithLocationSource attaches a platform position source, enabling the
// location resolver. Without one, Location returns nil.
func WithLocationSource(src geo.Source) Option {
	return func(a *App) { a.source = src }
}

// WithStateBackend overrides the configured state backend. Intended for
// tests; it takes precedence over Config.Database.
func WithStateBackend(s state.Store) Option {
	return func(a *App) { a.backend = s }
}

// App is the root of the commerce client stack. Per-namespace stores are
// created lazily and cached; all accessors are safe for concurrent use.
type App struct {
	cfg    Config
	lg     *zap.Logger
	source geo.Source

	client    *api.Client
	backend   state.Store
	pg        *state.Postgres
	directory *postal.Directory
	resolver  *geo.Resolver
	monitor   *monitor.Monitor

	mu        sync.Mutex
	carts     map[namespace.Namespace]*cart.Store
	checkouts map[namespace.Namespace]*checkout.Store
	pipelines map[namespace.Namespace]*order.Pipeline
}

// New builds the stack from cfg. State lives in Postgres when a database URL
// is configured and in process memory otherwise.
func New(ctx context.Context, cfg Config, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		lg:        zap.NewNop(),
		carts:     make(map[namespace.Namespace]*cart.Store),
		checkouts: make(map[namespace.Namespace]*checkout.Store),
		pipelines: make(map[namespace.Namespace]*order.Pipeline),
	}
	for _, opt := range opts {
		opt(a)
	}

	client, err := api.NewClient(api.Config{
		BaseURL:    cfg.API.BaseURL,
		APIKey:     cfg.API.Key,
		Timeout:    cfg.API.Timeout,
		RateLimit:  cfg.API.RateLimit,
		RateWindow: cfg.API.RateWindow,
	})
	if err != nil {
		return nil, errors.Wrap(err, "api client")
	}
	a.client = client

	if a.backend == nil {
		if cfg.Database.URL != "" {
			pg, err := state.NewPostgres(ctx, cfg.Database.URL)
			if err != nil {
				return nil, errors.Wrap(err, "state backend")
			}
			a.pg = pg
			a.backend = pg
		} else {
			a.backend = state.NewMemory()
		}
	}

	if cfg.Postal.Dir != "" {
		dir := postal.NewDirectory()
		if err := dir.Load(ctx, cfg.Postal.Dir); err != nil {
			return nil, errors.Wrap(err, "postal directory")
		}
		a.directory = dir
	}

	if a.source != nil {
		a.resolver = geo.NewResolver(a.source, a.client, geo.Config{
			AccuracyThreshold: cfg.Geo.AccuracyThreshold,
			ImproveWindow:     cfg.Geo.ImproveWindow,
			Request: geo.Options{
				HighAccuracy: true,
				Timeout:      cfg.Geo.RequestTimeout,
				MaxAge:       geo.DefaultConfig().Request.MaxAge,
			},
		})
	}

	if cfg.Monitor.Interval > 0 {
		timeout := cfg.Monitor.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		a.monitor = monitor.New()
		a.monitor.AddCheck("api", timeout, monitor.HTTPCheck(http.DefaultClient, cfg.API.BaseURL))
		if a.pg != nil {
			a.monitor.AddCheck("database", timeout, monitor.PingCheck(a.pg))
		}
		a.monitor.Start(ctx, cfg.Monitor.Interval)
	}

	return a, nil
}

// API returns the collaborator client.
func (a *App) API() *api.Client { return a.client }

// Location returns the resolver, or nil when no position source was given.
func (a *App) Location() *geo.Resolver { return a.resolver }

// Monitor returns the connectivity monitor, or nil when probing is disabled.
func (a *App) Monitor() *monitor.Monitor { return a.monitor }

// Cart returns the cart store for ns, creating it on first use.
func (a *App) Cart(ctx context.Context, ns namespace.Namespace) *cart.Store {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.carts[ns]
	if !ok {
		s = cart.NewStore(ctx, ns, a.backend, a.lg)
		a.carts[ns] = s
	}
	return s
}

// Checkout returns the checkout store for ns, creating it on first use.
func (a *App) Checkout(ctx context.Context, ns namespace.Namespace) *checkout.Store {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.checkouts[ns]
	if !ok {
		s = checkout.NewStore(ctx, ns, a.backend, a.lg)
		a.checkouts[ns] = s
	}
	return s
}

// Orders returns the order pipeline for ns, creating it (and its stores) on
// first use. When state is backed by Postgres the pipeline journals every
// submission attempt.
func (a *App) Orders(ctx context.Context, ns namespace.Namespace) *order.Pipeline {
	carts := a.Cart(ctx, ns)
	checkouts := a.Checkout(ctx, ns)

	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.pipelines[ns]
	if !ok {
		var opts []order.Option
		if a.pg != nil {
			opts = append(opts, order.WithJournal(a.pg))
		}
		p = order.NewPipeline(carts, checkouts, a.client, a.client, opts...)
		a.pipelines[ns] = p
	}
	return p
}

// LookupPincode resolves a pincode offline first, falling back to the
// collaborator when the directory is disabled or misses.
func (a *App) LookupPincode(ctx context.Context, pin string) (*postal.PinRecord, error) {
	if a.directory != nil {
		rec, err := a.directory.Lookup(pin)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, postal.ErrPinNotFound) {
			return nil, err
		}
	}
	return a.client.PincodeLookup(ctx, pin)
}

// SearchOffices matches post offices by name prefix within a pincode, using
// the offline directory when available.
func (a *App) SearchOffices(ctx context.Context, query, pin string) (postal.OfficeMatches, error) {
	if a.directory != nil {
		return a.directory.SearchOffices(query, pin), nil
	}
	return a.client.PostOfficeSearch(ctx, query, pin)
}

// Close stops background probing and releases the state backend.
func (a *App) Close() {
	if a.monitor != nil {
		a.monitor.Stop()
	}
	if a.resolver != nil {
		a.resolver.Cancel()
	}
	if a.pg != nil {
		a.pg.Close()
	}
}
