package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunTicksImmediatelyThenPeriodically(t *testing.T) {
	s := New(Options{Interval: 20 * time.Millisecond}, zerolog.Nop())

	var ticks atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Run(ctx, func(context.Context, time.Time) { ticks.Add(1) })
	}()

	require.Eventually(t, func() bool { return ticks.Load() >= 1 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return ticks.Load() >= 3 }, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
}

func TestRestartFiresImmediatelyWithoutOverlappingTimers(t *testing.T) {
	s := New(Options{Interval: time.Hour}, zerolog.Nop())

	var ticks atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx, func(context.Context, time.Time) { ticks.Add(1) }) }()

	require.Eventually(t, func() bool { return ticks.Load() == 1 }, time.Second, time.Millisecond)

	for i := 0; i < 5; i++ {
		require.True(t, s.Restart())
		assert.LessOrEqual(t, s.loops.Load(), int32(1), "at most one timer loop after restart")
	}

	require.Eventually(t, func() bool { return ticks.Load() == 6 }, time.Second, time.Millisecond)
}

func TestRestartDoesNotCancelInflightTicks(t *testing.T) {
	s := New(Options{Interval: time.Hour}, zerolog.Nop())

	release := make(chan struct{})
	var finished, cancelled atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_ = s.Run(ctx, func(tickCtx context.Context, _ time.Time) {
			<-release
			if tickCtx.Err() != nil {
				cancelled.Add(1)
			}
			finished.Add(1)
		})
	}()

	require.Eventually(t, func() bool { return s.loops.Load() == 1 }, time.Second, time.Millisecond)
	require.True(t, s.Restart())
	close(release)

	require.Eventually(t, func() bool { return finished.Load() == 2 }, time.Second, time.Millisecond)
	assert.Zero(t, cancelled.Load())
}

func TestRestartWhenStopped(t *testing.T) {
	s := New(Options{Interval: time.Second}, zerolog.Nop())
	assert.False(t, s.Restart())
}

func TestNewRejectsZeroInterval(t *testing.T) {
	assert.Panics(t, func() { New(Options{}, zerolog.Nop()) })
}
