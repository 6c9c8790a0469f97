// Package display serializes every panel-driver call behind one
// recursive-safe mutex with per-operation deadlines, and tracks refresh
// statistics used to decide full-vs-partial refresh policy (spec §4.6).
// It plays the same role the teacher's internal/web in-memory caches play
// for HTTP responses: a single choke point multiple goroutines rendezvous
// on. The lock is a capacity-1 channel rather than sync.Mutex (see
// Service).
package display

import (
	"context"
	"sync"
	"time"

	"pin/internal/color"
	"pin/internal/panel"
	"pin/internal/perr"
)

// Deadlines for the operation classes named in spec §5.
const (
	QuickDeadline  = 100 * time.Millisecond
	DrawDeadline   = time.Second
	SleepDeadline  = 5 * time.Second
	RefreshDeadline = 30 * time.Second
)

// Policy holds the refresh-mode thresholds from spec §4.6, overridable via
// configuration.
type Policy struct {
	PartialStreakLimit int           // default 10
	FullRefreshInterval time.Duration // default 1800s
	SleepAfterInactive  time.Duration // default 600s
}

// DefaultPolicy matches the documented defaults.
func DefaultPolicy() Policy {
	return Policy{
		PartialStreakLimit: 10,
		FullRefreshInterval: 30 * time.Minute,
		SleepAfterInactive:  10 * time.Minute,
	}
}

// Stats is the observable refresh history the façade maintains.
type Stats struct {
	FullCount     uint64
	PartialCount  uint64
	LastFull      time.Time
	LastPartial   time.Time
	PartialStreak int
}

// Service is the single choke point every subsystem (plugins, the HTTP
// handlers, the boot sequence) goes through to touch the panel. The zero
// value is not usable; construct with New.
//
// The mutex is a buffered channel of capacity 1 rather than sync.Mutex so
// that acquisition can honor a deadline without leaking the goroutine that
// would otherwise block forever on Lock(). Recursion is supported by
// stamping the holder's call chain with a token in ctx: a nested call
// carrying the current holder's token skips the channel entirely.
type Service struct {
	sem chan struct{}

	meta   sync.Mutex
	holder uint64
	depth  int

	tokens uint64

	drv    *panel.Driver
	policy Policy

	statsMu sync.Mutex
	stats   Stats
}

// New wraps an initialized panel driver.
func New(drv *panel.Driver, policy Policy) *Service {
	s := &Service{drv: drv, policy: policy, sem: make(chan struct{}, 1)}
	s.sem <- struct{}{}
	return s
}

type tokenKey struct{}

func tokenFrom(ctx context.Context) (uint64, bool) {
	v, ok := ctx.Value(tokenKey{}).(uint64)
	return v, ok
}

// acquire blocks up to deadline for the mutex, or reenters it immediately
// if ctx already carries this Service's current holder token. It returns
// a context carrying the token to pass to nested calls, and a release
// function the caller must defer exactly once.
func (s *Service) acquire(ctx context.Context, deadline time.Duration) (context.Context, func(), error) {
	if tok, ok := tokenFrom(ctx); ok {
		s.meta.Lock()
		reentrant := s.depth > 0 && s.holder == tok
		if reentrant {
			s.depth++
		}
		s.meta.Unlock()
		if reentrant {
			return ctx, func() {
				s.meta.Lock()
				s.depth--
				s.meta.Unlock()
			}, nil
		}
	}

	select {
	case <-s.sem:
	case <-time.After(deadline):
		return ctx, func() {}, perr.New(perr.Timeout, "display.acquire", "mutex deadline exceeded")
	case <-ctx.Done():
		return ctx, func() {}, perr.Wrap(perr.Timeout, "display.acquire", "context cancelled", ctx.Err())
	}

	s.meta.Lock()
	s.tokens++
	tok := s.tokens
	s.holder = tok
	s.depth = 1
	s.meta.Unlock()

	return context.WithValue(ctx, tokenKey{}, tok), func() {
		s.meta.Lock()
		s.depth--
		done := s.depth == 0
		s.meta.Unlock()
		if done {
			s.sem <- struct{}{}
		}
	}, nil
}

// Clear fills the panel white and refreshes it fully.
func (s *Service) Clear(ctx context.Context) error {
	ctx, release, err := s.acquire(ctx, DrawDeadline)
	if err != nil {
		return err
	}
	defer release()
	s.drv.Clear(color.White)
	return s.refreshLocked(ctx, panel.RefreshFull)
}

// Draw runs fn with exclusive access to the panel driver for up to
// DrawDeadline, without triggering a refresh. Callers use this to batch
// multiple primitive calls (e.g. the canvas engine's render step).
func (s *Service) Draw(ctx context.Context, fn func(*panel.Driver) error) error {
	ctx, release, err := s.acquire(ctx, DrawDeadline)
	if err != nil {
		return err
	}
	defer release()
	return fn(s.drv)
}

// Refresh triggers a visible update, applying the refresh-mode policy
// (spec §4.6): a requested partial refresh is upgraded to full once the
// streak limit or the full-refresh interval has elapsed.
func (s *Service) Refresh(ctx context.Context, mode panel.RefreshMode) error {
	ctx, release, err := s.acquire(ctx, RefreshDeadline)
	if err != nil {
		return err
	}
	defer release()
	return s.refreshLocked(ctx, mode)
}

func (s *Service) refreshLocked(ctx context.Context, mode panel.RefreshMode) error {
	if mode == panel.RefreshPartial && s.dueForFull() {
		mode = panel.RefreshFull
	}
	if err := s.drv.Refresh(ctx, mode); err != nil {
		return err
	}

	now := time.Now()
	s.statsMu.Lock()
	if mode == panel.RefreshFull {
		s.stats.FullCount++
		s.stats.LastFull = now
		s.stats.PartialStreak = 0
	} else {
		s.stats.PartialCount++
		s.stats.LastPartial = now
		s.stats.PartialStreak++
	}
	s.statsMu.Unlock()
	return nil
}

func (s *Service) dueForFull() bool {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	if s.stats.PartialStreak >= s.policy.PartialStreakLimit {
		return true
	}
	if s.stats.LastFull.IsZero() {
		return false
	}
	return time.Since(s.stats.LastFull) >= s.policy.FullRefreshInterval
}

// Sleep and Wake delegate to the panel driver under the mutex with the
// sleep/wake deadline class.
func (s *Service) Sleep(ctx context.Context) error {
	ctx, release, err := s.acquire(ctx, SleepDeadline)
	if err != nil {
		return err
	}
	defer release()
	return s.drv.Sleep(ctx)
}

func (s *Service) Wake(ctx context.Context) error {
	ctx, release, err := s.acquire(ctx, SleepDeadline)
	if err != nil {
		return err
	}
	defer release()
	return s.drv.Wake(ctx)
}

// ShouldEnterSleep reports whether the inactivity threshold has elapsed
// since the last refresh of either kind, per spec §4.6.
func (s *Service) ShouldEnterSleep() bool {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	last := s.stats.LastFull
	if s.stats.LastPartial.After(last) {
		last = s.stats.LastPartial
	}
	if last.IsZero() {
		return false
	}
	return time.Since(last) >= s.policy.SleepAfterInactive
}

// Stats returns a copy of the current refresh statistics.
func (s *Service) Stats() Stats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}
