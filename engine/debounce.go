package engine

import (
	"sync"
	"time"
)

// Debouncer collapses a burst of edits into a single reconciliation pass once
// a quiet period elapses with no further edits. Frequently-edited monetary
// fields would otherwise submit once per keystroke.
//
// The policy is pure bookkeeping over an injected Clock, so tests can drive
// it with a virtual clock; the api flusher polls Fire on wall time.
type Debouncer struct {
	mu          sync.Mutex
	quiet       time.Duration
	clock       Clock
	pending     bool
	lastTrigger time.Time
}

func NewDebouncer(quiet time.Duration, clock Clock) *Debouncer {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Debouncer{quiet: quiet, clock: clock}
}

// Trigger records one edit. Repeated triggers extend the quiet period.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = true
	d.lastTrigger = d.clock.Now()
}

// Fire reports whether the quiet period has elapsed since the last trigger,
// consuming the pending mark when it has.
func (d *Debouncer) Fire() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.pending {
		return false
	}
	if d.clock.Now().Sub(d.lastTrigger) < d.quiet {
		return false
	}
	d.pending = false
	return true
}

// Pending reports whether a flush is still owed.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}
