package plugin

import (
	"context"
	"time"
)

// runWorker is the per-plugin cooperative loop (spec §4.3 "Per-plugin
// scheduling"). It runs until the context is cancelled (Disable) or the
// plugin's error budget is exhausted.
func (rt *Runtime) runWorker(ctx context.Context, rec *record) {
	defer close(rec.done)

	host := rt.hostFor(rec)

	for {
		if ctx.Err() != nil {
			return
		}

		if rec.getState() == Suspended {
			remaining := time.Until(rec.suspendUntilSnapshot())
			if remaining > 0 {
				if !sleepOrDone(ctx, remaining) {
					return
				}
				continue
			}
			rec.setState(Running)
		}

		updateErr := rec.plugin.Update(ctx, host)
		rec.statsMu.Lock()
		if updateErr == nil {
			rec.stats.ErrorCount = 0
			rec.stats.UpdateCount++
		} else {
			rec.stats.ErrorCount++
		}
		errCount := rec.stats.ErrorCount
		rec.statsMu.Unlock()

		if updateErr != nil && errCount >= MaxErrors {
			rec.setState(Error)
			return
		}

		interval := rec.cfg.UpdateInterval
		if interval < MinUpdateInterval {
			interval = MinUpdateInterval
		}

		if !sleepOrTick(ctx, interval, rec.tickCh) {
			return
		}
	}
}

func (r *record) suspendUntilSnapshot() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.suspendUntil
}

// sleepOrDone blocks for d or until ctx is cancelled, returning false on
// cancellation.
func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// sleepOrTick blocks for d, an early tick request (HostAPI.ScheduleUpdate),
// or cancellation.
func sleepOrTick(ctx context.Context, d time.Duration, tick <-chan struct{}) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-tick:
		return true
	case <-ctx.Done():
		return false
	}
}
