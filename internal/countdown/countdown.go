// Package countdown provides a cancellable repeating tick source for
// bounded-duration recording sessions.
package countdown

import (
	"sync"
	"time"
)

// Timer delivers ticks at a fixed interval until disarmed. A timer arms at
// most once and never restarts; sessions create a fresh timer per recording.
// Disarm is idempotent and safe to call from inside the tick callback.
type Timer struct {
	interval time.Duration
	onTick   func()

	mu      sync.Mutex
	armed   bool
	stopped bool
	stopCh  chan struct{}
}

// New creates an unarmed timer that invokes onTick once per interval.
func New(interval time.Duration, onTick func()) *Timer {
	if interval <= 0 {
		interval = time.Second
	}
	if onTick == nil {
		onTick = func() {}
	}
	return &Timer{
		interval: interval,
		onTick:   onTick,
		stopCh:   make(chan struct{}),
	}
}

// Arm starts tick delivery. Arming an already-armed or disarmed timer is a
// no-op.
func (t *Timer) Arm() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.armed || t.stopped {
		return
	}
	t.armed = true
	go t.run()
}

// Disarm halts tick delivery. Any number of calls beyond the first are no-ops.
// A tick already racing the disarm is suppressed by the stopped check before
// callback dispatch; owners additionally guard ticks against their own state.
func (t *Timer) Disarm() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true
	close(t.stopCh)
}

// Armed reports whether the timer is currently delivering ticks.
func (t *Timer) Armed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.armed && !t.stopped
}

func (t *Timer) run() {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopCh:
			return
		case <-ticker.C:
			t.mu.Lock()
			if t.stopped {
				t.mu.Unlock()
				return
			}
			t.mu.Unlock()
			t.onTick()
		}
	}
}
