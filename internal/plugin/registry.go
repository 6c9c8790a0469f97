package plugin

import (
	"context"
	"sync"
	"time"

	"pin/internal/kv"
	"pin/internal/perr"
)

// Logger is the minimal surface the runtime needs to report through the
// application's structured logger (internal/log), kept as an interface so
// tests can substitute a recorder.
type Logger interface {
	Logf(level LogLevel, tag, format string, args ...any)
}

// record is the registry's mutable entry for one registered plugin: the
// static descriptor plus every piece of the "Per-plugin context" named in
// spec §3.
type record struct {
	plugin Plugin
	meta   Metadata
	cfg    Config

	mu    sync.Mutex
	state State

	statsMu sync.Mutex
	stats   Stats

	widget WidgetState

	suspendUntil time.Time

	tickMu    sync.Mutex
	tickTimer *time.Timer
	tickCh    chan struct{}

	cancel context.CancelFunc
	done   chan struct{}
}

func (r *record) getState() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *record) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

func (r *record) alloc(size int) error {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	if r.stats.MemoryUsed+size > r.cfg.MemoryLimit {
		return perr.New(perr.OutOfMemory, "plugin.alloc", r.meta.Name)
	}
	r.stats.MemoryUsed += size
	if r.stats.MemoryUsed > r.stats.MemoryPeak {
		r.stats.MemoryPeak = r.stats.MemoryUsed
	}
	return nil
}

func (r *record) free(size int) {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	r.stats.MemoryUsed -= size
	if r.stats.MemoryUsed < 0 {
		r.stats.MemoryUsed = 0
	}
}

// checkRateLimit increments the call counter, resetting the window after
// APIRateWindow has elapsed (spec §9 Open Question 1: the window-reset
// logic is deliberately a simple "now - windowStart > window" check here,
// not the dead comparison against a constant zero the original left
// unreachable).
func (r *record) checkRateLimit() error {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()

	now := time.Now()
	if r.stats.APICallsWindowStart.IsZero() || now.Sub(r.stats.APICallsWindowStart) > APIRateWindow {
		r.stats.APICallsWindowStart = now
		r.stats.APICallsCount = 0
	}
	r.stats.APICallsCount++
	if r.stats.APICallsCount > r.cfg.APIRateLimit {
		return perr.New(perr.RateLimited, "plugin.api_call", r.meta.Name)
	}
	return nil
}

// suspendSelf parks the plugin in Suspended for SuspensionCooldown, called
// by a host-API entry point when checkRateLimit trips.
func (r *record) suspendSelf() {
	r.mu.Lock()
	r.state = Suspended
	r.suspendUntil = time.Now().Add(SuspensionCooldown)
	r.mu.Unlock()
}

func (r *record) requestTick(delay time.Duration) {
	r.tickMu.Lock()
	defer r.tickMu.Unlock()
	if r.tickTimer != nil {
		r.tickTimer.Stop()
	}
	ch := r.tickCh
	r.tickTimer = time.AfterFunc(delay, func() {
		select {
		case ch <- struct{}{}:
		default:
		}
	})
}

func (r *record) cancelTick() {
	r.tickMu.Lock()
	defer r.tickMu.Unlock()
	if r.tickTimer != nil {
		r.tickTimer.Stop()
		r.tickTimer = nil
	}
}

// Summary is the read-only view exposed to the HTTP surface (spec §6
// "GET /api/plugins").
type Summary struct {
	Metadata Metadata
	Config   Config
	State    State
	Stats    Stats
	Widget   WidgetSnapshot
}

// Runtime is the plugin registry and supervisor (spec §4.3). It owns up
// to MaxPlugins records, a shared event bus, and the bounded
// enable/disable/config-change queue the supervisor drains.
type Runtime struct {
	mu      sync.Mutex
	order   []string
	records map[string]*record

	store     kv.Store
	bus       *eventBus
	allowlist []string
	logger    Logger

	queue chan supervisorMsg
	quit  chan struct{}
}

// New constructs a Runtime. allowlist is the compiled-in set of domains
// plugin HTTP calls may reach (spec §4.3 Host API "HTTP").
func New(store kv.Store, allowlist []string, logger Logger) *Runtime {
	rt := &Runtime{
		records:   make(map[string]*record),
		store:     store,
		bus:       newEventBus(),
		allowlist: allowlist,
		logger:    logger,
		queue:     make(chan supervisorMsg, 10),
		quit:      make(chan struct{}),
	}
	go rt.superviseLoop()
	return rt
}

// Register validates and installs p, transitioning it to Loaded (spec
// §4.3 "Registry"). Rejects empty name/version and a full table.
func (rt *Runtime) Register(p Plugin, cfg Config) error {
	meta := p.Metadata()
	if meta.Name == "" || meta.Version == "" {
		return perr.New(perr.InvalidArgument, "plugin.register", "name and version are required")
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	if _, exists := rt.records[meta.Name]; exists {
		return perr.New(perr.AlreadyExists, "plugin.register", meta.Name)
	}
	if len(rt.records) >= MaxPlugins {
		return perr.New(perr.Full, "plugin.register", "registry is full")
	}

	rec := &record{
		plugin: p,
		meta:   meta,
		cfg:    cfg.normalize(),
		state:  Loaded,
		tickCh: make(chan struct{}, 1),
	}
	rt.records[meta.Name] = rec
	rt.order = append(rt.order, meta.Name)
	return nil
}

func (rt *Runtime) lookup(name string) (*record, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rec, ok := rt.records[name]
	if !ok {
		return nil, perr.New(perr.NotFound, "plugin.lookup", name)
	}
	return rec, nil
}

// List returns a summary per registered plugin in registration order.
func (rt *Runtime) List() []Summary {
	rt.mu.Lock()
	names := append([]string(nil), rt.order...)
	rt.mu.Unlock()

	out := make([]Summary, 0, len(names))
	for _, name := range names {
		rec, err := rt.lookup(name)
		if err != nil {
			continue
		}
		rec.statsMu.Lock()
		stats := rec.stats
		rec.statsMu.Unlock()
		out = append(out, Summary{
			Metadata: rec.meta,
			Config:   rec.cfg,
			State:    rec.getState(),
			Stats:    stats,
			Widget:   rec.widget.Snapshot(),
		})
	}
	return out
}

// Enable transitions a plugin Loaded -> Initialized -> Running and starts
// its worker (spec §4.3 lifecycle FSM). Disable does the reverse,
// delegated to the supervisor queue so it cannot race the worker loop.
func (rt *Runtime) Enable(ctx context.Context, name string) error {
	if _, err := rt.lookup(name); err != nil {
		return err
	}
	select {
	case rt.queue <- supervisorMsg{kind: msgEnable, name: name, ctx: ctx}:
		return nil
	default:
		return perr.New(perr.Busy, "plugin.enable", "supervisor queue full")
	}
}

// Disable requests the supervisor stop and unload a running plugin.
func (rt *Runtime) Disable(ctx context.Context, name string) error {
	if _, err := rt.lookup(name); err != nil {
		return err
	}
	select {
	case rt.queue <- supervisorMsg{kind: msgDisable, name: name, ctx: ctx}:
		return nil
	default:
		return perr.New(perr.Busy, "plugin.disable", "supervisor queue full")
	}
}

// ConfigChanged notifies a running plugin of an external config edit
// (e.g. via the HTTP settings endpoint), via the supervisor queue.
func (rt *Runtime) ConfigChanged(ctx context.Context, name, key, value string) error {
	if _, err := rt.lookup(name); err != nil {
		return err
	}
	select {
	case rt.queue <- supervisorMsg{kind: msgConfigChanged, name: name, ctx: ctx, key: key, value: value}:
		return nil
	default:
		return perr.New(perr.Busy, "plugin.config_changed", "supervisor queue full")
	}
}

// Close stops the supervisor loop. It does not wait for running plugin
// workers to exit; callers that need a clean shutdown should Disable every
// running plugin first.
func (rt *Runtime) Close() {
	close(rt.quit)
}
