// Package button turns raw GPIO down/up edges into ButtonPress and
// ButtonLongPress events on the bus, per spec.md §4.4. The edge-to-event
// translation is grounded on the original firmware's button.cpp; the
// GPIO-edge-to-debounce-goroutine shape is grounded on seedhammer.com's
// input package, which similarly turns raw pin edges into bus sends from
// a dedicated goroutine rather than doing that work on the main loop.
package button

import (
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"

	"snappysense.dev/firmware/internal/bus"
)

// Debounce and hold thresholds, unchanged from the original firmware.
const (
	DebounceMin   = 100 * time.Millisecond
	ShortPressMax = 1999 * time.Millisecond
	LongPressMin  = 3000 * time.Millisecond
)

// Monitor converts Down/Up calls into ButtonPress/ButtonLongPress events.
// Down and Up are meant to be called from an interrupt-like context (a
// GPIO edge watcher); Monitor itself does no blocking beyond arming one
// internal timer.
type Monitor struct {
	bus *bus.Bus

	now       func() time.Time
	afterFunc func(time.Duration, func()) *time.Timer

	mu     sync.Mutex
	down   bool
	downAt time.Time
	timer  *time.Timer
}

// New returns a Monitor posting to b.
func New(b *bus.Bus) *Monitor {
	return &Monitor{
		bus:       b,
		now:       time.Now,
		afterFunc: time.AfterFunc,
	}
}

// Down records a button-down edge and arms the long-press timeout. A
// long press is posted from the timer itself, at LongPressMin elapsed,
// not at release, matching the original firmware's behavior of firing
// BUTTON_LONG_PRESS from its own FreeRTOS timer callback.
func (m *Monitor) Down() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.down = true
	m.downAt = m.now()
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = m.afterFunc(LongPressMin, m.onLongPressTimeout)
}

func (m *Monitor) onLongPressTimeout() {
	m.mu.Lock()
	fire := m.down
	m.down = false
	m.mu.Unlock()
	if fire {
		m.bus.PostFromInterrupt(bus.ButtonLongPress)
	}
}

// Up records a button-up edge. If the press was shorter than
// DebounceMin it is treated as contact bounce and discarded; between
// DebounceMin and ShortPressMax it posts ButtonPress; at or above
// LongPressMin it posts ButtonLongPress (covering a release that lands
// at or after LongPressMin before the long-press timer has run; once
// the timer has run, down is false and Up posts nothing); in between (the dead zone between a short and a long
// press) nothing is posted.
func (m *Monitor) Up() {
	m.mu.Lock()
	if !m.down {
		m.mu.Unlock()
		return
	}
	m.down = false
	if m.timer != nil {
		m.timer.Stop()
	}
	elapsed := m.now().Sub(m.downAt)
	m.mu.Unlock()

	switch {
	case elapsed >= DebounceMin && elapsed <= ShortPressMax:
		m.bus.Post(bus.ButtonPress)
	case elapsed >= LongPressMin:
		m.bus.Post(bus.ButtonLongPress)
	}
}

// Watch configures pin for both-edge input and starts a goroutine that
// calls Down/Up on each transition, in the style of
// seedhammer.com/input's per-button goroutine, then returns at once.
// The goroutine exits once done is closed. Watch returns an error only
// if the pin cannot be configured.
func (m *Monitor) Watch(pin gpio.PinIn, done <-chan struct{}) error {
	if err := pin.In(gpio.PullUp, gpio.BothEdges); err != nil {
		return err
	}
	go func() {
		for {
			select {
			case <-done:
				return
			default:
			}
			if !pin.WaitForEdge(50 * time.Millisecond) {
				continue
			}
			if pin.Read() == gpio.Low {
				m.Down()
			} else {
				m.Up()
			}
		}
	}()
	return nil
}
