package button

import (
	"testing"
	"time"

	"snappysense.dev/firmware/internal/bus"
)

// fakeClock lets tests control "elapsed" time without sleeping, and the
// captured afterFunc callback lets a test fire the long-press timeout on
// demand instead of waiting LongPressMin of wall-clock time.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newMonitorWithFakes(t *testing.T) (m *Monitor, clock *fakeClock, fireTimer func(), b *bus.Bus) {
	t.Helper()
	b = bus.New(10)
	clock = &fakeClock{t: time.Unix(0, 0)}
	var timerFn func()
	m = &Monitor{
		bus: b,
		now: clock.now,
		afterFunc: func(d time.Duration, fn func()) *time.Timer {
			timerFn = fn
			return nil
		},
	}
	fireTimer = func() {
		if timerFn != nil {
			timerFn()
		}
	}
	return m, clock, fireTimer, b
}

func assertNoEvent(t *testing.T, b *bus.Bus) {
	t.Helper()
	if ev, ok := b.TryReceive(); ok {
		t.Fatalf("expected no event, got %v", ev.Code)
	}
}

func TestShortBounceBelowDebounceIsDiscarded(t *testing.T) {
	m, clock, _, b := newMonitorWithFakes(t)
	m.Down()
	clock.advance(50 * time.Millisecond)
	m.Up()
	assertNoEvent(t, b)
}

func TestShortPressPostsButtonPress(t *testing.T) {
	m, clock, _, b := newMonitorWithFakes(t)
	m.Down()
	clock.advance(500 * time.Millisecond)
	m.Up()
	ev, ok := b.TryReceive()
	if !ok || ev.Code != bus.ButtonPress {
		t.Fatalf("got %v, %v, want ButtonPress, true", ev.Code, ok)
	}
}

func TestDeadZoneBetweenShortAndLongIsDiscarded(t *testing.T) {
	m, clock, _, b := newMonitorWithFakes(t)
	m.Down()
	clock.advance(2500 * time.Millisecond)
	m.Up()
	assertNoEvent(t, b)
}

func TestLongPressFiresFromTimerNotRelease(t *testing.T) {
	m, clock, fireTimer, b := newMonitorWithFakes(t)
	m.Down()
	clock.advance(3000 * time.Millisecond)
	// Timer fires while the button is still physically held down.
	fireTimer()
	ev, ok := b.TryReceive()
	if !ok || ev.Code != bus.ButtonLongPress {
		t.Fatalf("got %v, %v, want ButtonLongPress, true", ev.Code, ok)
	}
	// Release afterward must not post a second event.
	clock.advance(100 * time.Millisecond)
	m.Up()
	assertNoEvent(t, b)
}

func TestReleaseAtOrAboveLongPressMinPostsLongPress(t *testing.T) {
	m, clock, _, b := newMonitorWithFakes(t)
	m.Down()
	clock.advance(3100 * time.Millisecond)
	m.Up()
	ev, ok := b.TryReceive()
	if !ok || ev.Code != bus.ButtonLongPress {
		t.Fatalf("got %v, %v, want ButtonLongPress, true", ev.Code, ok)
	}
}

func TestUpWithoutDownIsIgnored(t *testing.T) {
	m, _, _, b := newMonitorWithFakes(t)
	m.Up()
	assertNoEvent(t, b)
}

func TestSecondDownResetsTimer(t *testing.T) {
	m, clock, fireTimer, b := newMonitorWithFakes(t)
	m.Down()
	clock.advance(1000 * time.Millisecond)
	m.Up()
	if _, ok := b.TryReceive(); !ok {
		t.Fatal("expected ButtonPress from first press")
	}
	m.Down()
	clock.advance(3000 * time.Millisecond)
	fireTimer()
	ev, ok := b.TryReceive()
	if !ok || ev.Code != bus.ButtonLongPress {
		t.Fatalf("got %v, %v, want ButtonLongPress, true", ev.Code, ok)
	}
}
