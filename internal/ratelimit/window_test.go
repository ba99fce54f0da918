// internal/ratelimit/window_test.go
package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock drives the window deterministically: sleeps advance the clock
// instead of blocking.
type fakeClock struct {
	current time.Time
	slept   []time.Duration
}

func (f *fakeClock) now() time.Time { return f.current }

func (f *fakeClock) sleep(_ context.Context, d time.Duration) error {
	f.slept = append(f.slept, d)
	f.current = f.current.Add(d)
	return nil
}

func newTestWindow(maxCalls int, window time.Duration) (*Window, *fakeClock) {
	clock := &fakeClock{current: time.Unix(1700000000, 0)}
	w := NewWindow(maxCalls, window)
	w.now = clock.now
	w.sleep = clock.sleep
	return w, clock
}

func TestWindow_ThirdCallWaitsFullWindow(t *testing.T) {
	t.Parallel()
	w, clock := newTestWindow(2, 60*time.Second)
	ctx := context.Background()

	start := clock.current
	require.NoError(t, w.Wait(ctx))
	require.NoError(t, w.Wait(ctx))
	// Two immediate calls exhaust the window; the third must not dispatch
	// until 60s after the first.
	require.NoError(t, w.Wait(ctx))

	elapsed := clock.current.Sub(start)
	assert.GreaterOrEqual(t, elapsed, 60*time.Second)
	assert.NotEmpty(t, clock.slept)
}

func TestWindow_SlotFreesAfterExpiry(t *testing.T) {
	t.Parallel()
	w, clock := newTestWindow(1, 60*time.Second)
	ctx := context.Background()

	require.NoError(t, w.Wait(ctx))
	clock.current = clock.current.Add(61 * time.Second)
	require.NoError(t, w.Wait(ctx))

	// The second call found a free slot, so nothing slept.
	assert.Empty(t, clock.slept)
}

func TestWindow_ContextCancellation(t *testing.T) {
	t.Parallel()
	w, _ := newTestWindow(1, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Wait(ctx))

	cancel()
	// Real sleeper honors cancellation.
	w.sleep = sleepContext
	err := w.Wait(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
