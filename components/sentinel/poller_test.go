package sentinel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollerRunsImmediatelyThenOnTicks(t *testing.T) {
	clock := newFakeClock()
	var runs atomic.Int32
	poller, err := NewPoller(PollerOptions{
		Name:     "test",
		Interval: 5 * time.Second,
		Clock:    clock,
		Cycle: func(context.Context) error {
			runs.Add(1)
			return nil
		},
	})
	require.NoError(t, err)
	require.NoError(t, poller.Start(context.Background()))
	defer poller.Stop()

	require.Eventually(t, func() bool { return poller.State().Cycles == 1 }, time.Second, time.Millisecond)

	clock.Advance(5 * time.Second)
	clock.Tick()
	require.Eventually(t, func() bool { return poller.State().Cycles == 2 }, time.Second, time.Millisecond)

	poller.Pause()
	clock.Tick()
	assert.Never(t, func() bool { return runs.Load() > 2 }, 50*time.Millisecond, 5*time.Millisecond)

	poller.Resume()
	clock.Tick()
	require.Eventually(t, func() bool { return poller.State().Cycles == 3 }, time.Second, time.Millisecond)
	assert.True(t, poller.State().LastTickOK)
	assert.ErrorIs(t, poller.Start(context.Background()), errPollerRunning)
}

func TestPollerRejectsInvalidOptions(t *testing.T) {
	_, err := NewPoller(PollerOptions{Interval: time.Second})
	assert.ErrorIs(t, err, errMissingCycle)

	_, err = NewPoller(PollerOptions{Cycle: func(context.Context) error { return nil }})
	assert.ErrorIs(t, err, errInvalidInterval)
}

func TestPollerCountsErrorsAndRecovers(t *testing.T) {
	telemetry := &recordingTelemetry{}
	fail := errors.New("backend down")
	var calls int
	poller, err := NewPoller(PollerOptions{
		Name:      "errors",
		Interval:  time.Second,
		Clock:     newFakeClock(),
		Telemetry: telemetry,
		Cycle: func(context.Context) error {
			calls++
			if calls <= 2 {
				return fail
			}
			return nil
		},
	})
	require.NoError(t, err)
	ctx := context.Background()

	assert.ErrorIs(t, poller.RunCycle(ctx), fail)
	assert.ErrorIs(t, poller.RunCycle(ctx), fail)
	state := poller.State()
	assert.Equal(t, 2, state.ConsecutiveErrs)
	assert.False(t, state.LastTickOK)
	assert.Equal(t, "backend down", state.LastError)

	require.NoError(t, poller.RunCycle(ctx))
	state = poller.State()
	assert.Equal(t, 0, state.ConsecutiveErrs)
	assert.True(t, state.LastTickOK)
	assert.Equal(t, 3, state.Cycles)
	assert.Equal(t, 2, telemetry.count("sentinel.poll.error"))
	assert.Equal(t, 1, telemetry.count("sentinel.poll.ok"))
}

func TestPollerSkipsOverlappingCycles(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	poller, err := NewPoller(PollerOptions{
		Name:     "slow",
		Interval: time.Second,
		Clock:    newFakeClock(),
		Cycle: func(context.Context) error {
			close(started)
			<-release
			return nil
		},
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- poller.RunCycle(context.Background()) }()
	<-started

	assert.ErrorIs(t, poller.RunCycle(context.Background()), ErrCycleInFlight)
	assert.True(t, poller.State().InFlight)
	assert.Equal(t, 1, poller.State().Skipped)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, poller.State().Cycles)
	assert.False(t, poller.State().InFlight)
}

func TestPollerStopCancelsInFlightCycle(t *testing.T) {
	telemetry := &recordingTelemetry{}
	started := make(chan struct{}, 1)
	poller, err := NewPoller(PollerOptions{
		Name:      "cancel",
		Interval:  time.Second,
		Clock:     newFakeClock(),
		Telemetry: telemetry,
		Cycle: func(ctx context.Context) error {
			started <- struct{}{}
			<-ctx.Done()
			return ctx.Err()
		},
	})
	require.NoError(t, err)
	require.NoError(t, poller.Start(context.Background()))
	<-started

	poller.Stop()
	state := poller.State()
	assert.False(t, state.Running)
	assert.False(t, state.InFlight)
	assert.Equal(t, 0, state.Cycles)
	assert.Empty(t, state.LastError)
	assert.Equal(t, 1, telemetry.count("sentinel.poll.cancelled"))

	poller.Stop()
}

func TestPollerRefreshWhenStoppedRunsSynchronously(t *testing.T) {
	var runs int
	poller, err := NewPoller(PollerOptions{
		Interval: time.Second,
		Clock:    newFakeClock(),
		Cycle: func(context.Context) error {
			runs++
			return nil
		},
	})
	require.NoError(t, err)
	require.NoError(t, poller.Refresh(context.Background()))
	assert.Equal(t, 1, runs)
}

func TestPollerRefreshKicksRunningLoop(t *testing.T) {
	clock := newFakeClock()
	poller, err := NewPoller(PollerOptions{
		Interval: time.Minute,
		Clock:    clock,
		Cycle:    func(context.Context) error { return nil },
	})
	require.NoError(t, err)
	require.NoError(t, poller.Start(context.Background()))
	defer poller.Stop()
	require.Eventually(t, func() bool { return poller.State().Cycles == 1 }, time.Second, time.Millisecond)

	poller.Pause()
	require.NoError(t, poller.Refresh(context.Background()))
	require.Eventually(t, func() bool { return poller.State().Cycles == 2 }, time.Second, time.Millisecond)
}
