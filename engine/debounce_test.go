package engine

import (
	"testing"
	"time"
)

func TestDebouncer_CollapsesBurstIntoOneFlush(t *testing.T) {
	clock := NewVirtualClock(time.Date(2026, time.March, 5, 9, 0, 0, 0, time.UTC))
	d := NewDebouncer(500*time.Millisecond, clock)

	// A burst of keystrokes within the quiet window.
	for i := 0; i < 10; i++ {
		d.Trigger()
		clock.Advance(50 * time.Millisecond)
		if d.Fire() {
			t.Fatalf("must not flush while edits keep arriving")
		}
	}

	clock.Advance(500 * time.Millisecond)
	if !d.Fire() {
		t.Fatalf("expected a flush once the quiet period elapsed")
	}
	if d.Fire() {
		t.Fatalf("a flush must consume the pending mark")
	}
	if d.Pending() {
		t.Fatalf("nothing must be pending after the flush")
	}
}

func TestDebouncer_LateEditExtendsQuietPeriod(t *testing.T) {
	clock := NewVirtualClock(time.Date(2026, time.March, 5, 9, 0, 0, 0, time.UTC))
	d := NewDebouncer(500*time.Millisecond, clock)

	d.Trigger()
	clock.Advance(400 * time.Millisecond)
	d.Trigger() // resets the window just before it elapses

	clock.Advance(400 * time.Millisecond)
	if d.Fire() {
		t.Fatalf("the second trigger must have extended the quiet period")
	}
	clock.Advance(100 * time.Millisecond)
	if !d.Fire() {
		t.Fatalf("expected a flush 500ms after the last trigger")
	}
}

func TestDebouncer_NoTriggerNoFlush(t *testing.T) {
	clock := NewVirtualClock(time.Date(2026, time.March, 5, 9, 0, 0, 0, time.UTC))
	d := NewDebouncer(500*time.Millisecond, clock)
	clock.Advance(time.Hour)
	if d.Fire() {
		t.Fatalf("must never flush without a trigger")
	}
}
