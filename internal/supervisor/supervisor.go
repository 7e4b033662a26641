// Package supervisor implements the main-loop state machine of
// spec.md §4.7: it owns the top-level window booleans and the
// slideshow/monitoring mode toggle, and drives the Wi-Fi manager, time
// service, broker client, monitoring pipeline and slideshow sequencer
// through one shared event bus. It is grounded directly on the
// original firmware's main.cpp loop() switch, generalized from its
// #ifdef-gated subsystems to runtime fields and from its raw
// FreeRTOS queue/timer calls to internal/bus.
package supervisor

import (
	"time"

	"snappysense.dev/firmware/internal/bus"
	"snappysense.dev/firmware/internal/nvs"
	"snappysense.dev/firmware/internal/sensors"
)

// wifiManager is the subset of wifi.Manager the supervisor drives.
type wifiManager interface {
	EnableStart()
	EnableRetry()
	Disable()
}

// commService is satisfied by both timeservice.Service and
// broker.Client: both are ticked by their own COMM_*_WORK code and
// expose have_work()/start()/stop()/work() (§4.6, §4.10). Work is
// called directly from the matching COMM_*_WORK case in Handle rather
// than through the bus again, since each service already knows how to
// advance its own state machine by one step.
type commService interface {
	HaveWork() bool
	Start()
	Stop()
	Work()
}

// observationSink is broker.Client's enqueue side.
type observationSink interface {
	EnqueueObservation(snap *sensors.Snapshot)
}

// slideshowSequencer is the subset of slideshow.Sequencer the
// supervisor drives.
type slideshowSequencer interface {
	Start()
	Stop()
	Reset()
	ShowMessageOnce(msg string)
	NewData(snap *sensors.Snapshot)
}

// monitorSequencer is the subset of monitor.Sequencer the supervisor
// drives; monitor.Sequencer.Stop posts MONITOR_DATA itself (§4.5).
// Tick advances the warmup/PIR/MEMS state machine in response to the
// four tick codes owned by the monitoring pipeline.
type monitorSequencer interface {
	Start() error
	Stop()
	Tick(code bus.Code)
}

// PeripheralPower gates the shared OLED/I2C rail, mirroring
// device.cpp's power_peripherals_on/off. On blocks for the settle time
// the hardware needs before I2C use (§5 "Shared resources"); tests use
// a no-op implementation.
type PeripheralPower interface {
	On()
	Off()
}

// Config bundles the durations §6 calls out as "Intervals (defaults,
// in production)".
type Config struct {
	CommActivityTimeout    time.Duration
	CommRelaxationTimeout  time.Duration
	MonitoringModeSleep    time.Duration
	SlideshowModeSleep     time.Duration
	MonitoringWindow       time.Duration
	WifiEnabled            bool
	EnterProvisioning      func()
}

// Supervisor is the main-loop state machine of §4.7.
type Supervisor struct {
	bus   *bus.Bus
	power PeripheralPower
	cfg   Config

	wifi       wifiManager
	time       commService
	broker     commService
	brokerSink observationSink
	slideshow  slideshowSequencer
	monitor    monitorSequencer
	scratch    *nvs.Scratch

	inWifiWindow          bool
	inCommunicationWindow bool
	inMonitoringWindow    bool
	inSleepWindow         bool
	firstTime             bool

	slideshowMode     bool
	slideshowNextMode bool

	lastSnapshot *sensors.Snapshot
}

// Deps bundles the collaborating subsystems a Supervisor drives.
type Deps struct {
	Wifi       wifiManager
	Time       commService
	Broker     commService
	BrokerSink observationSink
	Slideshow  slideshowSequencer
	Monitor    monitorSequencer
	Power      PeripheralPower
	// Scratch resolves the persisted clock adjustment on
	// CLOCK_SYNCHRONIZED so it can be forwarded to Broker; when nil,
	// CLOCK_SYNCHRONIZED is ignored and Broker is never notified.
	Scratch *nvs.Scratch
}

// New returns a Supervisor that starts in slideshow mode, matching
// main.cpp's `bool slideshow_mode = true`.
func New(b *bus.Bus, deps Deps, cfg Config) *Supervisor {
	return &Supervisor{
		bus:               b,
		power:             deps.Power,
		cfg:               cfg,
		wifi:              deps.Wifi,
		time:              deps.Time,
		broker:            deps.Broker,
		brokerSink:        deps.BrokerSink,
		slideshow:         deps.Slideshow,
		monitor:           deps.Monitor,
		scratch:           deps.Scratch,
		firstTime:         true,
		slideshowMode:     true,
		slideshowNextMode: true,
	}
}

// LastSnapshot returns the most recently completed observation, for
// serial/HTTP introspection; nil until the first MONITOR_DATA arrives.
func (s *Supervisor) LastSnapshot() *sensors.Snapshot { return s.lastSnapshot }

// Boot kicks off the state machine: start the slideshow and post
// START_CYCLE, mirroring main.cpp's setup()/loop() prologue. Callers
// still need to separately start the button watcher and any serial
// listener.
func (s *Supervisor) Boot() {
	s.slideshow.Start()
	s.bus.Post(bus.StartCycle)
}

// Run processes events forever and never returns. A BUTTON_LONG_PRESS
// with a nil EnterProvisioning is a configuration error and panics via
// Fatal. Tests drive Handle directly instead of Run.
func (s *Supervisor) Run() {
	for {
		ev := s.bus.Receive()
		s.Handle(ev)
	}
}

// Handle processes one bus event, exactly as main.cpp's loop() switch
// does, generalized to this module's Code set.
func (s *Supervisor) Handle(ev bus.Event) {
	switch ev.Code {
	case bus.StartCycle:
		s.onStartCycle()
	case bus.CommStart:
		s.wifi.EnableStart()
		s.inWifiWindow = true
	case bus.CommWifiClientRetry:
		s.wifi.EnableRetry()
	case bus.CommWifiClientFailed:
		s.slideshow.ShowMessageOnce("No WiFi")
		s.inWifiWindow = false
		s.bus.Post(bus.PostComm)
	case bus.CommWifiClientUp:
		s.onWifiUp()
	case bus.CommActivity:
		if s.inCommunicationWindow {
			s.armActivityTimeout()
		}
	case bus.CommActivityExpired:
		s.onActivityExpired()
	case bus.CommNTPWork:
		s.time.Work()
	case bus.CommMQTTWork:
		s.broker.Work()
	case bus.ClockSynchronized:
		s.onClockSynchronized()
	case bus.WarmupWork, bus.GoToWork, bus.SamplePIR, bus.SampleMEMS:
		s.monitor.Tick(ev.Code)
	case bus.ButtonDown, bus.ButtonUp:
		// Reserved: this build drives button.Monitor's Down/Up directly
		// from the GPIO edge watcher rather than round-tripping the raw
		// edge through the bus, so these codes never arrive in
		// practice. Ignored rather than Fatal in case a future
		// producer does post them.
	case bus.PostComm:
		s.onPostComm()
	case bus.SleepStart:
		s.onSleepStart()
	case bus.PostSleep:
		s.onPostSleep()
	case bus.MonitorStart:
		s.onMonitorStart()
	case bus.MonitorStop:
		s.monitor.Stop()
		s.bus.Post(bus.StartCycle)
		s.inMonitoringWindow = false
	case bus.MonitorData:
		s.onMonitorData(ev)
	case bus.ButtonPress:
		s.onButtonPress()
	case bus.ButtonLongPress:
		s.onButtonLongPress()
	case bus.EnableDevice:
		s.brokerSetEnabled(true)
	case bus.DisableDevice:
		s.brokerSetEnabled(false)
	case bus.SetInterval:
		s.brokerSetInterval(ev.Scalar)
	case bus.SlideshowWork:
		if t, ok := s.slideshow.(ticker); ok {
			t.Tick(ev.Code)
		}
	default:
		s.Fatal("unknown event")
	}
}

func (s *Supervisor) onStartCycle() {
	if !s.cfg.WifiEnabled {
		s.bus.Post(bus.SleepStart)
		return
	}
	commWork := s.time.HaveWork() || s.broker.HaveWork()
	if commWork {
		s.bus.Post(bus.CommStart)
	} else {
		s.bus.Post(bus.PostComm)
	}
}

func (s *Supervisor) onWifiUp() {
	s.inCommunicationWindow = true
	if s.time.HaveWork() {
		s.time.Start()
	}
	if s.broker.HaveWork() {
		s.broker.Start()
	}
	s.armActivityTimeout()
}

func (s *Supervisor) armActivityTimeout() {
	timeout := s.cfg.CommActivityTimeout
	if s.firstTime {
		timeout /= 2
	}
	s.bus.Arm(timeout, bus.CommActivityExpired)
}

func (s *Supervisor) onActivityExpired() {
	if s.inCommunicationWindow || s.inWifiWindow {
		s.bus.Post(bus.PostComm)
	}
	if s.inCommunicationWindow {
		s.broker.Stop()
		s.time.Stop()
		s.inCommunicationWindow = false
	}
	if s.inWifiWindow {
		s.wifi.Disable()
		s.inWifiWindow = false
	}
}

func (s *Supervisor) onPostComm() {
	if s.firstTime {
		s.bus.Post(bus.SleepStart)
		return
	}
	s.bus.Arm(s.cfg.CommRelaxationTimeout, bus.SleepStart)
}

func (s *Supervisor) onSleepStart() {
	if s.firstTime {
		s.bus.Post(bus.PostSleep)
		return
	}
	s.slideshowMode = s.slideshowNextMode
	if s.slideshowMode {
		s.bus.Arm(s.cfg.SlideshowModeSleep, bus.PostSleep)
		return
	}
	s.slideshow.Stop()
	s.bus.Arm(s.cfg.MonitoringModeSleep, bus.PostSleep)
	s.power.Off()
	s.inSleepWindow = true
}

func (s *Supervisor) onPostSleep() {
	if s.inSleepWindow {
		s.bus.Cancel()
		s.power.On()
		s.inSleepWindow = false
		s.slideshow.Reset()
		s.slideshow.Start()
	}
	s.bus.Post(bus.MonitorStart)
	s.firstTime = false
}

func (s *Supervisor) onMonitorStart() {
	s.inMonitoringWindow = true
	// The window's length is not compared with the monitor's warmup
	// duration here or in monitor.Start; any Start error (a non-positive
	// warmup, a power-on failure) is fatal.
	if err := s.monitor.Start(); err != nil {
		s.Fatal("monitor start: " + err.Error())
	}
	s.bus.Arm(s.cfg.MonitoringWindow, bus.MonitorStop)
}

func (s *Supervisor) onMonitorData(ev bus.Event) {
	snap, ok := ev.Owned.(*sensors.Snapshot)
	if !ok || snap == nil {
		s.Fatal("MONITOR_DATA without a snapshot payload")
	}
	s.lastSnapshot = snap
	s.brokerSink.EnqueueObservation(snap)
	s.slideshow.NewData(snap)
}

func (s *Supervisor) onButtonPress() {
	if s.inSleepWindow {
		s.bus.Post(bus.PostSleep)
		s.slideshow.ShowMessageOnce(modeBanner(s.slideshowMode))
		return
	}
	s.slideshowNextMode = !s.slideshowNextMode
	s.slideshow.Reset()
	s.slideshow.ShowMessageOnce(modeBanner(s.slideshowNextMode))
	s.slideshow.Start()
}

func modeBanner(slideshowMode bool) string {
	if slideshowMode {
		return "Slideshow mode"
	}
	return "Monitoring mode"
}

// onButtonLongPress mirrors main.cpp's BUTTON_LONG_PRESS handler:
// cancel everything and hand off to provisioning mode, from which the
// only exit is a device reset (§4.7, §9 Open Questions).
func (s *Supervisor) onButtonLongPress() {
	s.bus.Cancel()
	s.slideshow.Stop()

	if s.inSleepWindow {
		s.power.On()
		s.inSleepWindow = false
	}
	if s.inMonitoringWindow {
		s.monitor.Stop()
		s.inMonitoringWindow = false
	}
	if s.inCommunicationWindow {
		s.broker.Stop()
		s.time.Stop()
		s.inCommunicationWindow = false
	}
	if s.inWifiWindow {
		s.wifi.Disable()
		s.inWifiWindow = false
	}

	if s.cfg.EnterProvisioning == nil {
		s.Fatal("long press received with no provisioning entry point configured")
	}
	s.cfg.EnterProvisioning()
}

// brokerSetEnabled/brokerSetInterval/onClockSynchronized go through tiny
// adapter methods rather than widening commService, since only
// broker.Client needs them; SLIDESHOW_WORK reaches slideshow.Sequencer's
// Tick the same way.
type enabler interface{ SetEnabled(bool) }
type ticker interface{ Tick(bus.Code) }
type intervalSetter interface{ SetCaptureInterval(time.Duration) }
type clockNotifiee interface{ NotifyClockSynchronized(delta int64) }

// onClockSynchronized resolves the persisted adjustment and forwards it
// to the broker, mirroring the original firmware's time-server callback
// telling mqtt_upload about the new delta so it can drain its delayed
// queue (§4.6).
func (s *Supervisor) onClockSynchronized() {
	if s.scratch == nil {
		return
	}
	delta, ok := s.scratch.TimeAdjustment()
	if !ok {
		return
	}
	if n, ok := s.broker.(clockNotifiee); ok {
		n.NotifyClockSynchronized(delta)
	}
}

func (s *Supervisor) brokerSetEnabled(v bool) {
	if e, ok := s.broker.(enabler); ok {
		e.SetEnabled(v)
	}
}

func (s *Supervisor) brokerSetInterval(seconds uint32) {
	if is, ok := s.broker.(intervalSetter); ok {
		is.SetCaptureInterval(time.Duration(seconds) * time.Second)
	}
}

// Fatal queues the "Press reset button!" banner on the slideshow (§7,
// "Impossible state") and panics, halting the event loop. The banner is
// only queued: Fatal neither logs nor draws it, and the panic comes
// before any later slideshow tick could render it. There is deliberately
// no recovery path: an impossible state means an invariant the rest
// of the code relies on has already been violated.
func (s *Supervisor) Fatal(reason string) {
	s.slideshow.ShowMessageOnce("Press reset button!")
	panic("supervisor: " + reason)
}
