package countdown

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimerDeliversTicks(t *testing.T) {
	var ticks atomic.Int32
	timer := New(5*time.Millisecond, func() { ticks.Add(1) })
	timer.Arm()
	defer timer.Disarm()

	require.Eventually(t, func() bool {
		return ticks.Load() >= 3
	}, time.Second, time.Millisecond)
}

func TestTimerDisarmStopsTicks(t *testing.T) {
	var ticks atomic.Int32
	timer := New(5*time.Millisecond, func() { ticks.Add(1) })
	timer.Arm()

	require.Eventually(t, func() bool {
		return ticks.Load() >= 1
	}, time.Second, time.Millisecond)

	timer.Disarm()
	require.False(t, timer.Armed())

	// The count must settle: no further ticks after disarm. Allow a tick
	// already past the stopped check to land before sampling.
	time.Sleep(10 * time.Millisecond)
	settled := ticks.Load()
	time.Sleep(40 * time.Millisecond)
	require.Equal(t, settled, ticks.Load())
}

func TestTimerDisarmIsIdempotent(t *testing.T) {
	timer := New(time.Millisecond, nil)
	timer.Arm()
	timer.Disarm()
	timer.Disarm()
	timer.Disarm()
	require.False(t, timer.Armed())
}

func TestTimerDisarmFromTickCallback(t *testing.T) {
	var timer *Timer
	done := make(chan struct{})
	var once atomic.Bool
	timer = New(time.Millisecond, func() {
		if once.CompareAndSwap(false, true) {
			timer.Disarm()
			close(done)
		}
	})
	timer.Arm()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("tick callback never fired")
	}
	require.False(t, timer.Armed())
}

func TestTimerNeverRestarts(t *testing.T) {
	var ticks atomic.Int32
	timer := New(time.Millisecond, func() { ticks.Add(1) })
	timer.Arm()
	timer.Disarm()

	timer.Arm() // must not resurrect tick delivery
	settled := ticks.Load()
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, settled, ticks.Load())
}

func TestTimerUnarmedDeliversNothing(t *testing.T) {
	var ticks atomic.Int32
	_ = New(time.Millisecond, func() { ticks.Add(1) })
	time.Sleep(10 * time.Millisecond)
	require.Zero(t, ticks.Load())
}
