// internal/ratelimit/window.go
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Window is a sliding-window throttle: at most maxCalls dispatches inside any
// trailing window. Unlike a token bucket, a slot only frees when the oldest
// call falls out of the window, so the (maxCalls+1)th immediate call waits the
// full window relative to the first.
//
// The timestamp slice is the only mutable state and is mutex-guarded, so a
// single Window can be shared across concurrent workers.
type Window struct {
	mu       sync.Mutex
	window   time.Duration
	maxCalls int
	calls    []time.Time

	// Injected for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewWindow creates a limiter allowing maxCalls per window.
func NewWindow(maxCalls int, window time.Duration) *Window {
	return &Window{
		window:   window,
		maxCalls: maxCalls,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Wait blocks until a call slot is free or the context is cancelled, then
// claims the slot.
func (w *Window) Wait(ctx context.Context) error {
	for {
		w.mu.Lock()
		now := w.now()
		w.prune(now)

		if len(w.calls) < w.maxCalls {
			w.calls = append(w.calls, now)
			w.mu.Unlock()
			return nil
		}

		// Slot frees when the oldest in-window call expires.
		wait := w.calls[0].Add(w.window).Sub(now)
		w.mu.Unlock()

		if err := w.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// prune drops timestamps that have aged out of the window. Caller holds mu.
func (w *Window) prune(now time.Time) {
	cutoff := now.Add(-w.window)
	i := 0
	for i < len(w.calls) && !w.calls[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.calls = append(w.calls[:0], w.calls[i:]...)
	}
}
