// Package slideshow implements the display sequencer of spec.md §4.8:
// it rotates a splash screen and one icon+value screen per valid
// sensor factor, with transient messages pre-empting the next
// scheduled view exactly once. The cursor/pending-message/pending-data
// handoff is grounded directly on the original firmware's
// slideshow.cpp (next_view, current_data/next_data,
// current_message), generalized from its struct-offset metadata
// table to an ordered slice of views over sensors.Snapshot's typed
// accessors.
package slideshow

import (
	"fmt"
	"time"

	"snappysense.dev/firmware/internal/bus"
	"snappysense.dev/firmware/internal/display"
	"snappysense.dev/firmware/internal/sensors"
)

// Tick is how often a running slideshow advances (§5 defaults).
const Tick = 2 * time.Second

// view is one slide: an icon, a unit label, and an accessor that
// reports the formatted value and whether the factor is valid on the
// current snapshot. A view with a nil format is "not for slideshow
// display" (the original's snappy_metadata[...].display == nullptr)
// and is always skipped.
type view struct {
	icon   display.Icon
	unit   string
	format func(s *sensors.Snapshot) (text string, ok bool)
}

func floatView(f sensors.Factor, precision int) func(*sensors.Snapshot) (string, bool) {
	return func(s *sensors.Snapshot) (string, bool) {
		v, ok := s.Float(f)
		if !ok {
			return "", false
		}
		return fmt.Sprintf("%.*f", precision, v), true
	}
}

// views is the fixed slide order, mirroring the original's
// snappy_metadata row order.
var views = []view{
	{display.IconThermometer, "C", floatView(sensors.Temperature, 1)},
	{display.IconDroplet, "%", floatView(sensors.Humidity, 0)},
	{display.IconGauge, "hPa", floatView(sensors.Pressure, 0)},
	{display.IconMountain, "m", floatView(sensors.Altitude, 0)},
	{display.IconSun, "uv", floatView(sensors.UV, 1)},
	{display.IconLightbulb, "lx", floatView(sensors.Illuminance, 0)},
	{display.IconLeaf, "aqi", func(s *sensors.Snapshot) (string, bool) {
		aqi, ok := s.AQI()
		if !ok {
			return "", false
		}
		return fmt.Sprintf("%d", aqi), true
	}},
	{display.IconCloud, "ppb", floatView(sensors.TVOC, 0)},
	{display.IconWind, "ppm", floatView(sensors.ECO2, 0)},
	{display.IconMotion, "", func(s *sensors.Snapshot) (string, bool) {
		v, ok := s.Float(sensors.Motion)
		if !ok {
			return "", false
		}
		if v != 0 {
			return "yes", true
		}
		return "no", true
	}},
	{display.IconSpeaker, "", floatView(sensors.Noise, 0)},
}

// Sequencer drives a display.Facade through the splash/data/message
// rotation of §4.8. It owns its tick timer itself (per §5, "per-
// component timers ... are owned by their component") rather than
// share the bus's single master timeout.
type Sequencer struct {
	disp      display.Facade
	bus       *bus.Bus
	afterFunc func(time.Duration, func()) *time.Timer
	running   bool
	tickTimer *time.Timer

	nextView    int // -1 means splash
	currentData *sensors.Snapshot
	nextData    *sensors.Snapshot
	message     *string
}

// New returns a stopped Sequencer driving disp, arming SLIDESHOW_WORK
// ticks on b while running.
func New(disp display.Facade, b *bus.Bus) *Sequencer {
	return &Sequencer{disp: disp, bus: b, afterFunc: time.AfterFunc, nextView: -1}
}

// Running reports whether the slideshow is active.
func (s *Sequencer) Running() bool { return s.running }

// Start begins or resumes rotation, arming the first tick.
func (s *Sequencer) Start() {
	s.running = true
	s.armTick()
}

func (s *Sequencer) armTick() {
	if s.tickTimer != nil {
		s.tickTimer.Stop()
	}
	s.tickTimer = s.afterFunc(Tick, func() {
		s.bus.Post(bus.SlideshowWork)
	})
}

// Stop halts rotation. A stopped slideshow ignores late SLIDESHOW_WORK
// ticks per §5's "gate work by the component's running flag".
func (s *Sequencer) Stop() {
	s.running = false
	if s.tickTimer != nil {
		s.tickTimer.Stop()
	}
}

// Reset rewinds the cursor to the splash screen without touching
// pending data or a pending message.
func (s *Sequencer) Reset() {
	s.nextView = -1
}

// NewData replaces the snapshot that will be swapped in the next time
// the splash screen is shown, discarding any previous one not yet
// swapped in (slideshow_new_data).
func (s *Sequencer) NewData(snap *sensors.Snapshot) {
	s.nextData = snap
}

// ShowMessageOnce queues msg to pre-empt the next scheduled view
// exactly once, discarding any previous unshown message
// (slideshow_show_message_once). A stopped slideshow still records the
// message so Start renders it on the first tick -- messages posted
// from comm/monitor handlers are not tied to the slideshow's own
// run state.
func (s *Sequencer) ShowMessageOnce(msg string) {
	s.message = &msg
}

// Tick handles one SLIDESHOW_WORK event, advancing per §4.8's
// numbered rule list. It is a no-op while stopped.
func (s *Sequencer) Tick(code bus.Code) {
	if code != bus.SlideshowWork || !s.running {
		return
	}
	s.advance()
	s.armTick()
}

func (s *Sequencer) advance() {
	for {
		if s.message != nil {
			s.disp.Clear()
			s.disp.DrawText(0, 12, *s.message)
			s.disp.Flush()
			s.message = nil
			return
		}

		if s.nextView == -1 {
			s.showSplash()
			if s.nextData != nil {
				s.currentData = s.nextData
				s.nextData = nil
			}
			s.nextView++
			return
		}

		if s.currentData == nil {
			s.nextView = -1
			continue
		}

		if s.nextView >= len(views) {
			s.nextView = -1
			continue
		}

		v := views[s.nextView]
		text, ok := v.format(s.currentData)
		if !ok {
			s.nextView++
			continue
		}

		s.disp.Clear()
		s.disp.DrawIcon(0, 0, v.icon)
		if v.unit != "" {
			s.disp.DrawText(12, 12, text+" "+v.unit)
		} else {
			s.disp.DrawText(12, 12, text)
		}
		s.disp.Flush()
		s.nextView++
		return
	}
}

func (s *Sequencer) showSplash() {
	s.disp.Clear()
	s.disp.DrawIcon(0, 0, display.IconSplash)
	s.disp.DrawText(12, 12, "SnappySense")
	s.disp.Flush()
}
