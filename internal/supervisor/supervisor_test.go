package supervisor

import (
	"testing"
	"time"

	"snappysense.dev/firmware/internal/bus"
	"snappysense.dev/firmware/internal/nvs"
	"snappysense.dev/firmware/internal/sensors"
)

type fakeWifi struct {
	startCalls, retryCalls, disableCalls int
}

func (f *fakeWifi) EnableStart() { f.startCalls++ }
func (f *fakeWifi) EnableRetry() { f.retryCalls++ }
func (f *fakeWifi) Disable()     { f.disableCalls++ }

type fakeComm struct {
	haveWork              bool
	startCalls, stopCalls int
	workCalls             int
	enabled               bool
	interval              time.Duration
	clockDelta            int64
	clockNotified         bool
}

func (f *fakeComm) HaveWork() bool                            { return f.haveWork }
func (f *fakeComm) Start()                                    { f.startCalls++ }
func (f *fakeComm) Stop()                                     { f.stopCalls++ }
func (f *fakeComm) Work()                                     { f.workCalls++ }
func (f *fakeComm) SetEnabled(v bool)                         { f.enabled = v }
func (f *fakeComm) SetCaptureInterval(d time.Duration)        { f.interval = d }
func (f *fakeComm) EnqueueObservation(snap *sensors.Snapshot) {}
func (f *fakeComm) NotifyClockSynchronized(delta int64) {
	f.clockDelta = delta
	f.clockNotified = true
}

type fakeSlideshow struct {
	startCalls, stopCalls, resetCalls int
	messages                          []string
	data                              []*sensors.Snapshot
}

func (f *fakeSlideshow) Start()                      { f.startCalls++ }
func (f *fakeSlideshow) Stop()                       { f.stopCalls++ }
func (f *fakeSlideshow) Reset()                      { f.resetCalls++ }
func (f *fakeSlideshow) ShowMessageOnce(m string)    { f.messages = append(f.messages, m) }
func (f *fakeSlideshow) NewData(s *sensors.Snapshot) { f.data = append(f.data, s) }

type fakeMonitor struct {
	startErr              error
	startCalls, stopCalls int
	ticks                 []bus.Code
}

func (f *fakeMonitor) Start() error       { f.startCalls++; return f.startErr }
func (f *fakeMonitor) Stop()              { f.stopCalls++ }
func (f *fakeMonitor) Tick(code bus.Code) { f.ticks = append(f.ticks, code) }

type fakePower struct{ onCalls, offCalls int }

func (f *fakePower) On()  { f.onCalls++ }
func (f *fakePower) Off() { f.offCalls++ }

type harness struct {
	b         *bus.Bus
	sup       *Supervisor
	wifi      *fakeWifi
	timeSvc   *fakeComm
	broker    *fakeComm
	slideshow *fakeSlideshow
	monitor   *fakeMonitor
	power     *fakePower
	scratch   *nvs.Scratch
}

func newHarness(cfg Config) *harness {
	b := bus.New(10)
	store, _ := nvs.Open("")
	h := &harness{
		b:         b,
		wifi:      &fakeWifi{},
		timeSvc:   &fakeComm{},
		broker:    &fakeComm{},
		slideshow: &fakeSlideshow{},
		monitor:   &fakeMonitor{},
		power:     &fakePower{},
		scratch:   nvs.NewScratch(store),
	}
	h.sup = New(b, Deps{
		Wifi:       h.wifi,
		Time:       h.timeSvc,
		Broker:     h.broker,
		Scratch:    h.scratch,
		BrokerSink: h.broker,
		Slideshow:  h.slideshow,
		Monitor:    h.monitor,
		Power:      h.power,
	}, cfg)
	return h
}

func testConfig() Config {
	return Config{
		CommActivityTimeout:   time.Minute,
		CommRelaxationTimeout: time.Minute,
		MonitoringModeSleep:   time.Hour,
		SlideshowModeSleep:    5 * time.Minute,
		MonitoringWindow:      30 * time.Second,
		WifiEnabled:           true,
	}
}

func TestStartCycleWithNoCommWorkGoesToPostComm(t *testing.T) {
	h := newHarness(testConfig())
	h.sup.Handle(bus.Event{Code: bus.StartCycle})

	ev, ok := h.b.TryReceive()
	if !ok || ev.Code != bus.PostComm {
		t.Fatalf("got %v %v, want PostComm", ev.Code, ok)
	}
}

func TestStartCycleWithCommWorkGoesToCommStart(t *testing.T) {
	h := newHarness(testConfig())
	h.broker.haveWork = true
	h.sup.Handle(bus.Event{Code: bus.StartCycle})

	ev, ok := h.b.TryReceive()
	if !ok || ev.Code != bus.CommStart {
		t.Fatalf("got %v %v, want CommStart", ev.Code, ok)
	}
}

func TestStartCycleWifiDisabledGoesStraightToSleep(t *testing.T) {
	cfg := testConfig()
	cfg.WifiEnabled = false
	h := newHarness(cfg)
	h.sup.Handle(bus.Event{Code: bus.StartCycle})

	ev, ok := h.b.TryReceive()
	if !ok || ev.Code != bus.SleepStart {
		t.Fatalf("got %v %v, want SleepStart", ev.Code, ok)
	}
}

func TestCommStartEnablesWifiAndEntersWindow(t *testing.T) {
	h := newHarness(testConfig())
	h.sup.Handle(bus.Event{Code: bus.CommStart})

	if h.wifi.startCalls != 1 {
		t.Fatalf("got %d, want 1 EnableStart call", h.wifi.startCalls)
	}
	if !h.sup.inWifiWindow {
		t.Fatal("expected inWifiWindow to be set")
	}
}

func TestWifiUpStartsServicesWithWorkAndArmsTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.CommActivityTimeout = 2 * time.Millisecond
	h := newHarness(cfg)
	h.timeSvc.haveWork = true
	h.broker.haveWork = false

	h.sup.Handle(bus.Event{Code: bus.CommWifiClientUp})

	if h.timeSvc.startCalls != 1 {
		t.Fatalf("got %d, want time service started", h.timeSvc.startCalls)
	}
	if h.broker.startCalls != 0 {
		t.Fatalf("got %d, want broker NOT started (no work)", h.broker.startCalls)
	}
	if !h.sup.inCommunicationWindow {
		t.Fatal("expected inCommunicationWindow to be set")
	}
	deadline := time.Now().Add(time.Second)
	for {
		if ev, ok := h.b.TryReceive(); ok && ev.Code == bus.CommActivityExpired {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("expected the armed activity timeout to post CommActivityExpired")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestWifiFailedShowsBannerAndPostsPostComm(t *testing.T) {
	h := newHarness(testConfig())
	h.sup.inWifiWindow = true

	h.sup.Handle(bus.Event{Code: bus.CommWifiClientFailed})

	if len(h.slideshow.messages) != 1 || h.slideshow.messages[0] != "No WiFi" {
		t.Fatalf("got %v, want a No WiFi banner", h.slideshow.messages)
	}
	if h.sup.inWifiWindow {
		t.Fatal("expected inWifiWindow cleared")
	}
	ev, ok := h.b.TryReceive()
	if !ok || ev.Code != bus.PostComm {
		t.Fatalf("got %v %v, want PostComm", ev.Code, ok)
	}
}

func TestActivityExpiredStopsServicesAndDisablesWifi(t *testing.T) {
	h := newHarness(testConfig())
	h.sup.inCommunicationWindow = true
	h.sup.inWifiWindow = true

	h.sup.Handle(bus.Event{Code: bus.CommActivityExpired})

	if h.broker.stopCalls != 1 || h.timeSvc.stopCalls != 1 {
		t.Fatal("expected both comm services stopped")
	}
	if h.wifi.disableCalls != 1 {
		t.Fatal("expected wifi disabled")
	}
	if h.sup.inCommunicationWindow || h.sup.inWifiWindow {
		t.Fatal("expected both windows cleared")
	}
}

func TestLateActivityExpiredIsIgnoredOutsideWindow(t *testing.T) {
	h := newHarness(testConfig())
	// Neither window flag set: a stale timer firing after windows closed.
	h.sup.Handle(bus.Event{Code: bus.CommActivityExpired})

	if _, ok := h.b.TryReceive(); ok {
		t.Fatal("expected no PostComm for a late, already-closed window")
	}
}

func TestPostCommFirstTimeSkipsRelaxation(t *testing.T) {
	h := newHarness(testConfig())
	h.sup.firstTime = true

	h.sup.Handle(bus.Event{Code: bus.PostComm})

	ev, ok := h.b.TryReceive()
	if !ok || ev.Code != bus.SleepStart {
		t.Fatalf("got %v %v, want immediate SleepStart", ev.Code, ok)
	}
}

func TestSleepStartMonitoringModePowersOff(t *testing.T) {
	h := newHarness(testConfig())
	h.sup.firstTime = false
	h.sup.slideshowMode = true
	h.sup.slideshowNextMode = false // tentatively switched to monitoring mode

	h.sup.Handle(bus.Event{Code: bus.SleepStart})

	if h.sup.slideshowMode {
		t.Fatal("expected the tentative mode to be committed")
	}
	if h.slideshow.stopCalls != 1 {
		t.Fatal("expected the slideshow stopped in monitoring mode")
	}
	if h.power.offCalls != 1 {
		t.Fatal("expected peripherals powered off")
	}
	if !h.sup.inSleepWindow {
		t.Fatal("expected inSleepWindow set")
	}
}

func TestSleepStartSlideshowModeStaysPowered(t *testing.T) {
	h := newHarness(testConfig())
	h.sup.firstTime = false
	h.sup.slideshowNextMode = true

	h.sup.Handle(bus.Event{Code: bus.SleepStart})

	if h.power.offCalls != 0 {
		t.Fatal("expected peripherals to stay powered in slideshow mode")
	}
	if h.sup.inSleepWindow {
		t.Fatal("expected inSleepWindow to remain clear in slideshow mode")
	}
}

func TestPostSleepFromSleepWindowPowersOnAndResetsSlideshow(t *testing.T) {
	h := newHarness(testConfig())
	h.sup.inSleepWindow = true
	h.sup.firstTime = true

	h.sup.Handle(bus.Event{Code: bus.PostSleep})

	if h.power.onCalls != 1 {
		t.Fatal("expected peripherals powered back on")
	}
	if h.sup.inSleepWindow {
		t.Fatal("expected inSleepWindow cleared")
	}
	if h.slideshow.resetCalls != 1 || h.slideshow.startCalls != 1 {
		t.Fatal("expected the slideshow reset and restarted")
	}
	if h.sup.firstTime {
		t.Fatal("expected firstTime cleared")
	}
	ev, ok := h.b.TryReceive()
	if !ok || ev.Code != bus.MonitorStart {
		t.Fatalf("got %v %v, want MonitorStart", ev.Code, ok)
	}
}

func TestMonitorStartArmsWindowTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.MonitoringWindow = time.Millisecond
	h := newHarness(cfg)
	h.sup.Handle(bus.Event{Code: bus.MonitorStart})

	if h.monitor.startCalls != 1 {
		t.Fatal("expected monitor started")
	}
	if !h.sup.inMonitoringWindow {
		t.Fatal("expected inMonitoringWindow set")
	}
	deadline := time.Now().Add(time.Second)
	for {
		if ev, ok := h.b.TryReceive(); ok && ev.Code == bus.MonitorStop {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("expected the armed window timeout to post MonitorStop")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestMonitorStartInvariantViolationIsFatal(t *testing.T) {
	h := newHarness(testConfig())
	h.monitor.startErr = errShort

	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic when the monitoring window is too short")
		}
	}()
	h.sup.Handle(bus.Event{Code: bus.MonitorStart})
}

func TestMonitorStopPostsStartCycle(t *testing.T) {
	h := newHarness(testConfig())
	h.sup.inMonitoringWindow = true

	h.sup.Handle(bus.Event{Code: bus.MonitorStop})

	if h.monitor.stopCalls != 1 {
		t.Fatal("expected monitor stopped")
	}
	if h.sup.inMonitoringWindow {
		t.Fatal("expected inMonitoringWindow cleared")
	}
	ev, ok := h.b.TryReceive()
	if !ok || ev.Code != bus.StartCycle {
		t.Fatalf("got %v %v, want StartCycle", ev.Code, ok)
	}
}

func TestMonitorDataFansOutToBrokerAndSlideshow(t *testing.T) {
	h := newHarness(testConfig())
	snap := sensors.NewBuilder(1, 1000).Build()

	h.sup.Handle(bus.Event{Code: bus.MonitorData, Owned: snap})

	if h.sup.LastSnapshot() != snap {
		t.Fatal("expected LastSnapshot to record the arriving snapshot")
	}
	if len(h.slideshow.data) != 1 || h.slideshow.data[0] != snap {
		t.Fatal("expected the slideshow to receive the snapshot")
	}
}

func TestButtonPressInSleepWindowWakesAndBanners(t *testing.T) {
	h := newHarness(testConfig())
	h.sup.inSleepWindow = true
	h.sup.slideshowMode = true

	h.sup.Handle(bus.Event{Code: bus.ButtonPress})

	ev, ok := h.b.TryReceive()
	if !ok || ev.Code != bus.PostSleep {
		t.Fatalf("got %v %v, want PostSleep", ev.Code, ok)
	}
	if len(h.slideshow.messages) != 1 || h.slideshow.messages[0] != "Slideshow mode" {
		t.Fatalf("got %v, want a mode banner", h.slideshow.messages)
	}
}

func TestButtonPressOutsideSleepTogglesTentativeMode(t *testing.T) {
	h := newHarness(testConfig())
	h.sup.slideshowNextMode = true

	h.sup.Handle(bus.Event{Code: bus.ButtonPress})

	if h.sup.slideshowNextMode {
		t.Fatal("expected the tentative mode to flip")
	}
	if h.slideshow.resetCalls != 1 || h.slideshow.startCalls != 1 {
		t.Fatal("expected the slideshow reset and restarted")
	}
	if len(h.slideshow.messages) != 1 || h.slideshow.messages[0] != "Monitoring mode" {
		t.Fatalf("got %v, want the new tentative mode banner", h.slideshow.messages)
	}
}

func TestButtonLongPressTearsEverythingDownAndEntersProvisioning(t *testing.T) {
	cfg := testConfig()
	entered := false
	cfg.EnterProvisioning = func() { entered = true }
	h := newHarness(cfg)
	h.sup.inSleepWindow = true
	h.sup.inMonitoringWindow = true
	h.sup.inCommunicationWindow = true
	h.sup.inWifiWindow = true

	h.sup.Handle(bus.Event{Code: bus.ButtonLongPress})

	if h.slideshow.stopCalls != 1 {
		t.Fatal("expected the slideshow stopped")
	}
	if h.power.onCalls != 1 {
		t.Fatal("expected peripherals powered on to use the screen")
	}
	if h.monitor.stopCalls != 1 || h.broker.stopCalls != 1 || h.timeSvc.stopCalls != 1 {
		t.Fatal("expected monitor/broker/time service stopped")
	}
	if h.wifi.disableCalls != 1 {
		t.Fatal("expected wifi disabled")
	}
	if !entered {
		t.Fatal("expected EnterProvisioning to be called")
	}
}

func TestEnableDisableDeviceReachBroker(t *testing.T) {
	h := newHarness(testConfig())

	h.sup.Handle(bus.Event{Code: bus.DisableDevice})
	if h.broker.enabled {
		t.Fatal("expected broker disabled")
	}
	h.sup.Handle(bus.Event{Code: bus.EnableDevice})
	if !h.broker.enabled {
		t.Fatal("expected broker re-enabled")
	}
}

func TestSetIntervalReachesBroker(t *testing.T) {
	h := newHarness(testConfig())
	h.sup.Handle(bus.Event{Code: bus.SetInterval, Scalar: 120})

	if h.broker.interval != 120*time.Second {
		t.Fatalf("got %v, want 120s", h.broker.interval)
	}
}

func TestUnknownEventIsFatal(t *testing.T) {
	h := newHarness(testConfig())
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic on an unrecognized event code")
		}
	}()
	h.sup.Handle(bus.Event{Code: bus.Code(9999)})
}

func TestCommNTPWorkAdvancesTimeService(t *testing.T) {
	h := newHarness(testConfig())
	h.sup.Handle(bus.Event{Code: bus.CommNTPWork})

	if h.timeSvc.workCalls != 1 {
		t.Fatalf("got %d, want time service Work() called once", h.timeSvc.workCalls)
	}
	if h.broker.workCalls != 0 {
		t.Fatal("expected the broker's Work() untouched by a COMM_NTP_WORK tick")
	}
}

func TestCommMQTTWorkAdvancesBroker(t *testing.T) {
	h := newHarness(testConfig())
	h.sup.Handle(bus.Event{Code: bus.CommMQTTWork})

	if h.broker.workCalls != 1 {
		t.Fatalf("got %d, want broker Work() called once", h.broker.workCalls)
	}
}

func TestMonitorTickCodesReachMonitor(t *testing.T) {
	for _, code := range []bus.Code{bus.WarmupWork, bus.GoToWork, bus.SamplePIR, bus.SampleMEMS} {
		h := newHarness(testConfig())
		h.sup.Handle(bus.Event{Code: code})
		if len(h.monitor.ticks) != 1 || h.monitor.ticks[0] != code {
			t.Fatalf("got %v, want %v forwarded to the monitor", h.monitor.ticks, code)
		}
	}
}

func TestButtonEdgeCodesAreIgnored(t *testing.T) {
	h := newHarness(testConfig())
	h.sup.Handle(bus.Event{Code: bus.ButtonDown})
	h.sup.Handle(bus.Event{Code: bus.ButtonUp})
	// Neither should panic nor post anything.
	if _, ok := h.b.TryReceive(); ok {
		t.Fatal("expected no events posted for raw button edges")
	}
}

func TestClockSynchronizedForwardsDeltaToBroker(t *testing.T) {
	h := newHarness(testConfig())
	h.scratch.SetTimeAdjustment(42)

	h.sup.Handle(bus.Event{Code: bus.ClockSynchronized})

	if !h.broker.clockNotified || h.broker.clockDelta != 42 {
		t.Fatalf("got notified=%v delta=%d, want 42 forwarded to the broker", h.broker.clockNotified, h.broker.clockDelta)
	}
}

func TestClockSynchronizedWithoutScratchIsNoOp(t *testing.T) {
	h := newHarness(testConfig())
	h.sup.scratch = nil

	h.sup.Handle(bus.Event{Code: bus.ClockSynchronized})

	if h.broker.clockNotified {
		t.Fatal("expected no notification when scratch is unavailable")
	}
}

type stubErr struct{ s string }

func (e *stubErr) Error() string { return e.s }

var errShort = &stubErr{"monitoring window too short"}
