package broker

import (
	"fmt"
	"testing"
	"time"

	"snappysense.dev/firmware/internal/bus"
	"snappysense.dev/firmware/internal/sensors"
)

type fakeTransport struct {
	configureErr error
	connectErrs  []error // consumed in order; last repeats
	connected    bool
	subscribed   []string
	published    []outboundMessage
}

func (f *fakeTransport) Configure(cfg Config) error { return f.configureErr }

func (f *fakeTransport) Connect() error {
	if len(f.connectErrs) == 0 {
		f.connected = true
		return nil
	}
	err := f.connectErrs[0]
	if len(f.connectErrs) > 1 {
		f.connectErrs = f.connectErrs[1:]
	}
	f.connected = err == nil
	return err
}

func (f *fakeTransport) Connected() bool { return f.connected }
func (f *fakeTransport) Disconnect()     { f.connected = false }

func (f *fakeTransport) Publish(topic string, qos byte, payload []byte) error {
	f.published = append(f.published, outboundMessage{Topic: topic, Payload: payload})
	return nil
}

func (f *fakeTransport) Subscribe(topic string, qos byte) error {
	f.subscribed = append(f.subscribed, topic)
	return nil
}

func testConfig() Config {
	return Config{
		DeviceID:           "dev-1",
		DeviceClass:        "snappysense",
		Host:               "broker.example",
		Port:               8883,
		UseTLS:             true,
		Auth:               "pass",
		Username:           "u",
		Password:           "p",
		UploadInterval:     time.Hour,
		CaptureInterval:    time.Minute,
		MaxUnconnectedTime: 4 * time.Hour,
	}
}

// driveToRunning advances a freshly Start()ed Client through Connecting
// and Subscribed to Running: Start() itself only reaches Connected, one
// Work() call subscribes and reaches Subscribed, and a second reaches
// Running (queuing, but not yet sending, the startup announcement).
func driveToRunning(t *testing.T, c *Client) {
	t.Helper()
	c.Start()
	c.Work()
	c.Work()
	if c.State() != Running {
		t.Fatalf("got %v, want Running", c.State())
	}
}

func TestStartConnectsSubscribesAndSendsStartup(t *testing.T) {
	transport := &fakeTransport{}
	inbox := make(chan InboundMessage, 10)
	b := bus.New(10)
	c := New(b, transport, testConfig(), inbox, true)

	driveToRunning(t, c)

	if len(transport.subscribed) != 4 {
		t.Fatalf("got %v, want 4 subscriptions", transport.subscribed)
	}
	// The startup announcement is queued but not yet sent.
	c.Work()
	if len(transport.published) != 1 {
		t.Fatalf("got %d published, want 1 startup message", len(transport.published))
	}
	if transport.published[0].Topic != "snappy/startup/snappysense/dev-1" {
		t.Fatalf("got %q", transport.published[0].Topic)
	}
}

func TestBadConfigurationFailsWithoutRetry(t *testing.T) {
	transport := &fakeTransport{configureErr: fmt.Errorf("bad auth")}
	b := bus.New(10)
	c := New(b, transport, testConfig(), make(chan InboundMessage), true)

	c.Start()

	if c.State() != Failed {
		t.Fatalf("got %v, want Failed", c.State())
	}
}

func TestConnectRetriesThenFails(t *testing.T) {
	errs := make([]error, MaxConnectRetries)
	for i := range errs {
		errs[i] = fmt.Errorf("refused")
	}
	transport := &fakeTransport{connectErrs: errs}
	b := bus.New(10)
	c := New(b, transport, testConfig(), make(chan InboundMessage), true)

	c.Start()
	for i := 0; i < MaxConnectRetries-1; i++ {
		c.Work()
	}

	if c.State() != Failed {
		t.Fatalf("got %v, want Failed", c.State())
	}
}

func TestEnqueueObservationDiscardedWhenDisabled(t *testing.T) {
	transport := &fakeTransport{}
	b := bus.New(10)
	c := New(b, transport, testConfig(), make(chan InboundMessage), false)

	c.EnqueueObservation(sensors.NewBuilder(1, 1000).Build())

	if len(c.outbound) != 0 || len(c.delayed) != 0 {
		t.Fatal("expected observation to be discarded while disabled")
	}
}

func TestEnqueueObservationGoesToDelayedUntilClockSynced(t *testing.T) {
	transport := &fakeTransport{}
	cfg := testConfig()
	cfg.CaptureInterval = 0 // both observations must pass the capture-interval check
	b := bus.New(10)
	c := New(b, transport, cfg, make(chan InboundMessage), true)

	c.EnqueueObservation(sensors.NewBuilder(1, 1000).SetTemperature(21).Build())
	if len(c.delayed) != 1 || len(c.outbound) != 0 {
		t.Fatal("expected observation to go to the delayed queue before clock sync")
	}

	c.NotifyClockSynchronized(5)
	c.EnqueueObservation(sensors.NewBuilder(2, 2000).SetTemperature(22).Build())

	if len(c.delayed) != 0 {
		t.Fatal("expected the delayed queue to drain once a second observation arrives post-sync")
	}
	if len(c.outbound) != 2 {
		t.Fatalf("got %d outbound, want 2 (drained + new)", len(c.outbound))
	}
}

func TestEnqueueObservationRespectsCaptureInterval(t *testing.T) {
	transport := &fakeTransport{}
	cfg := testConfig()
	cfg.CaptureInterval = time.Hour
	b := bus.New(10)
	c := New(b, transport, cfg, make(chan InboundMessage), true)
	c.NotifyClockSynchronized(0)

	c.EnqueueObservation(sensors.NewBuilder(1, 1000).Build())
	c.EnqueueObservation(sensors.NewBuilder(2, 2000).Build())

	if len(c.outbound) != 1 {
		t.Fatalf("got %d, want 1 (second capture too soon)", len(c.outbound))
	}
}

func TestQueueOverflowDropsOldest(t *testing.T) {
	q := []int{}
	for i := 0; i < queueCapacity+10; i++ {
		q = pushDropOldest(q, i)
	}
	if len(q) != queueCapacity {
		t.Fatalf("got %d, want %d", len(q), queueCapacity)
	}
	if q[0] != 10 {
		t.Fatalf("got %d, want 10 (the oldest 10 entries dropped)", q[0])
	}
}

func TestHaveWorkIsTrueDuringEarlyCycles(t *testing.T) {
	transport := &fakeTransport{}
	cfg := testConfig()
	b := bus.New(10)
	c := New(b, transport, cfg, make(chan InboundMessage), true)

	if !c.HaveWork() {
		t.Fatal("expected have_work to be true before any connection cycle")
	}
}

func TestHaveWorkFalseWhenNothingPending(t *testing.T) {
	transport := &fakeTransport{}
	cfg := testConfig()
	cfg.MaxUnconnectedTime = time.Hour
	b := bus.New(10)
	c := New(b, transport, cfg, make(chan InboundMessage), true)
	c.cycleCount = EarlyConnectionCycles
	c.lastConnect = time.Now()

	if c.HaveWork() {
		t.Fatal("expected have_work to be false with nothing pending and a recent connection")
	}
}

func TestControlMessageSetsEnableAndInterval(t *testing.T) {
	transport := &fakeTransport{}
	b := bus.New(10)
	c := New(b, transport, testConfig(), make(chan InboundMessage), true)

	c.handleInbound(InboundMessage{Topic: "snappy/control/dev-1", Payload: []byte(`{"enable":0,"interval":120}`)})

	ev, ok := b.TryReceive()
	if !ok || ev.Code != bus.DisableDevice {
		t.Fatalf("got %v, %v, want DisableDevice", ev.Code, ok)
	}
	ev, ok = b.TryReceive()
	if !ok || ev.Code != bus.SetInterval || ev.Scalar != 120 {
		t.Fatalf("got %v scalar=%d, %v, want SetInterval 120", ev.Code, ev.Scalar, ok)
	}
}

func TestControlMessageWithNoKnownFieldsLogsInvalid(t *testing.T) {
	transport := &fakeTransport{}
	b := bus.New(10)
	c := New(b, transport, testConfig(), make(chan InboundMessage), true)

	c.handleInbound(InboundMessage{Topic: "snappy/control-all", Payload: []byte(`{"unknown":true}`)})

	if _, ok := b.TryReceive(); ok {
		t.Fatal("expected no event for a control message with no recognized fields")
	}
}

func TestOversizeInboundMessageDiscarded(t *testing.T) {
	transport := &fakeTransport{}
	b := bus.New(10)
	c := New(b, transport, testConfig(), make(chan InboundMessage), true)

	big := make([]byte, MaxIncomingMessageSize+1)
	c.handleInbound(InboundMessage{Topic: "snappy/control/dev-1", Payload: big})

	if _, ok := b.TryReceive(); ok {
		t.Fatal("expected oversize message to be discarded without posting anything")
	}
}

func TestCommandTopicIsReservedAndLogged(t *testing.T) {
	transport := &fakeTransport{}
	b := bus.New(10)
	c := New(b, transport, testConfig(), make(chan InboundMessage), true)

	c.handleInbound(InboundMessage{Topic: "snappy/command/dev-1", Payload: []byte(`{"actuator":"x"}`)})

	if _, ok := b.TryReceive(); ok {
		t.Fatal("expected no bus event for a reserved command message")
	}
}
