// Package broker implements the publish/subscribe client of spec.md
// §4.6: connect to an MQTT broker over TLS or plain transport, announce
// once per process lifetime, drain an outbound observation queue, and
// dispatch inbound control messages back onto the bus. The state
// machine (STARTING/CONNECTING/CONNECTED/SUBSCRIBED/RUNNING/FAILED/
// STOPPED), its have_work policy, and its queueing rules are grounded
// directly on the original firmware's mqtt_upload.cpp; the transport
// itself is grounded on github.com/eclipse/paho.mqtt.golang (see
// paho.go), the same MQTT client library referenced by the other
// example pack repos that do sensor telemetry over MQTT.
package broker

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"snappysense.dev/firmware/internal/bus"
	"snappysense.dev/firmware/internal/sensors"
)

// State is the broker client's connection state.
type State int

const (
	Starting State = iota
	Connecting
	Connected
	Subscribed
	Running
	Failed
	Stopped
)

func (s State) String() string {
	switch s {
	case Starting:
		return "STARTING"
	case Connecting:
		return "CONNECTING"
	case Connected:
		return "CONNECTED"
	case Subscribed:
		return "SUBSCRIBED"
	case Running:
		return "RUNNING"
	case Failed:
		return "FAILED"
	case Stopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// MaxConnectRetries and RetryBackoff bound the Connecting state's
// reconnection attempts, unchanged from the original firmware.
const (
	MaxConnectRetries = 10
	RetryBackoff      = 500 * time.Millisecond
)

// EarlyConnectionCycles is how many start()s after boot count as "early
// times": the device connects aggressively during these because control
// messages are often delivered on a later connection than the one that
// sent the triggering observation.
const EarlyConnectionCycles = 5

// queueCapacity bounds both the outbound and delayed queues (§5).
const queueCapacity = 100

// Config configures one broker connection, resolved from the
// preferences store (§6).
type Config struct {
	DeviceID    string
	DeviceClass string
	Host        string
	Port        int
	UseTLS      bool
	Auth        string // "pass" or "x509"
	Username    string
	Password    string
	RootCert    string
	DeviceCert  string
	PrivateKey  string

	UploadInterval     time.Duration
	CaptureInterval    time.Duration
	MaxUnconnectedTime time.Duration
}

// InboundMessage is one message delivered on a subscribed topic.
type InboundMessage struct {
	Topic   string
	Payload []byte
}

// MaxIncomingMessageSize discards oversize inbound messages (§4.6).
const MaxIncomingMessageSize = 1023

// Transport is the MQTT wire capability a Client drives. A production
// implementation wraps paho.mqtt.golang (see paho.go); tests use a fake.
type Transport interface {
	// Configure applies cfg (TLS/certs/credentials, client id, clean
	// session disabled). An error here means the configuration itself is
	// invalid and the caller must not retry.
	Configure(cfg Config) error
	// Connect attempts one connection. Connected() reflects the result.
	Connect() error
	Connected() bool
	Disconnect()
	Publish(topic string, qos byte, payload []byte) error
	Subscribe(topic string, qos byte) error
}

type outboundMessage struct {
	Topic   string
	Payload []byte
}

// Client runs the broker connection state machine described in §4.6.
// It owns its retry/poll timer itself (per §5, "per-component timers
// ... are owned by their component"), mirroring mqtt_upload.cpp's
// dedicated mqtt_timer rather than sharing the bus's master timeout.
type Client struct {
	bus       *bus.Bus
	transport Transport
	cfg       Config
	afterFunc func(time.Duration, func()) *time.Timer

	state State

	retries     int
	cycleCount  int
	lastConnect time.Time
	lastCapture time.Time
	startupSent bool
	enabled     bool
	clockSynced bool
	clockDelta  int64

	outbound []outboundMessage
	delayed  []*sensors.Snapshot

	workTimer *time.Timer
	inbound   <-chan InboundMessage
}

// New returns a Client. inbound is the channel the Transport's
// subscription handlers deliver messages on; enabled seeds the initial
// device-enabled flag (normally the "enabled" pref).
func New(b *bus.Bus, transport Transport, cfg Config, inbound <-chan InboundMessage, enabled bool) *Client {
	return &Client{
		bus:       b,
		transport: transport,
		cfg:       cfg,
		afterFunc: time.AfterFunc,
		state:     Stopped,
		enabled:   enabled,
		inbound:   inbound,
	}
}

// armWork schedules a CommMQTTWork tick on the Client's own timer,
// replacing any pending one.
func (c *Client) armWork(d time.Duration) {
	if c.workTimer != nil {
		c.workTimer.Stop()
	}
	c.workTimer = c.afterFunc(d, func() {
		c.bus.Post(bus.CommMQTTWork)
	})
}

// State reports the current connection state.
func (c *Client) State() State { return c.state }

// SetEnabled applies an ENABLE_DEVICE/DISABLE_DEVICE control message.
func (c *Client) SetEnabled(v bool) { c.enabled = v }

// Enabled reports the current device-enabled flag.
func (c *Client) Enabled() bool { return c.enabled }

// SetCaptureInterval applies a SET_INTERVAL control message.
func (c *Client) SetCaptureInterval(d time.Duration) { c.cfg.CaptureInterval = d }

// NotifyClockSynchronized records the computed clock adjustment so the
// next Work() pass in the Running state drains the delayed queue.
func (c *Client) NotifyClockSynchronized(delta int64) {
	c.clockDelta = delta
	c.clockSynced = true
}

// HaveWork implements §4.6's have_work() policy.
func (c *Client) HaveWork() bool {
	sinceConnect := time.Since(c.lastConnect)
	if len(c.outbound) > 0 && sinceConnect >= c.cfg.UploadInterval {
		return true
	}
	if len(c.delayed) > 0 && c.clockSynced {
		return true
	}
	if sinceConnect >= c.cfg.MaxUnconnectedTime {
		return true
	}
	if c.cycleCount < EarlyConnectionCycles {
		return true
	}
	return false
}

// Start begins a new connection cycle.
func (c *Client) Start() {
	c.state = Starting
	c.retries = 0
	c.cycleCount++
	c.work()
}

// Stop tears down any active connection.
func (c *Client) Stop() {
	c.transport.Disconnect()
	c.state = Stopped
	if c.workTimer != nil {
		c.workTimer.Stop()
	}
}

// EnqueueObservation applies §4.6's enqueue_observation policy and takes
// ownership of snap.
func (c *Client) EnqueueObservation(snap *sensors.Snapshot) {
	if !c.enabled {
		return
	}
	now := time.Now()
	if !c.lastCapture.IsZero() && now.Sub(c.lastCapture) < c.cfg.CaptureInterval {
		return
	}
	c.lastCapture = now

	if !c.clockSynced {
		c.delayed = pushDropOldest(c.delayed, snap)
		return
	}
	c.drainDelayed()
	c.outbound = pushDropOldest(c.outbound, c.encodeObservation(snap))
}

func (c *Client) drainDelayed() {
	for _, snap := range c.delayed {
		c.outbound = pushDropOldest(c.outbound, c.encodeObservation(snap))
	}
	c.delayed = nil
}

func pushDropOldest[T any](q []T, v T) []T {
	q = append(q, v)
	if len(q) > queueCapacity {
		q = q[len(q)-queueCapacity:]
	}
	return q
}

// Work handles one COMM_MQTT_WORK tick, advancing the connection state
// machine per §4.6.
func (c *Client) Work() {
	c.work()
}

func (c *Client) work() {
	for {
		switch c.state {
		case Starting:
			if err := c.transport.Configure(c.cfg); err != nil {
				log.Printf("broker: bad configuration: %v", err)
				c.state = Failed
				return
			}
			log.Println("broker: connecting")
			c.state = Connecting
			continue

		case Connecting:
			c.bus.Post(bus.CommActivity)
			if err := c.transport.Connect(); err != nil {
				c.retries++
				log.Printf("broker: connect failed: %v", err)
				if c.retries < MaxConnectRetries {
					c.armWork(RetryBackoff)
					return
				}
				log.Println("broker: rejected, giving up")
				c.state = Failed
				return
			}
			log.Println("broker: accepted")
			c.state = Connected
			c.lastConnect = time.Now()
			c.bus.Post(bus.CommMQTTWork)
			return

		case Connected:
			c.subscribe()
			c.state = Subscribed
			c.bus.Post(bus.CommActivity)
			c.bus.Post(bus.CommMQTTWork)
			return

		case Subscribed:
			c.state = Running
			if !c.startupSent {
				c.outbound = append([]outboundMessage{c.encodeStartup()}, c.outbound...)
				c.startupSent = true
				c.bus.Post(bus.CommMQTTWork)
				return
			}
			continue

		case Running:
			if c.clockSynced {
				c.drainDelayed()
			}
			if len(c.outbound) > 0 {
				c.send()
				c.bus.Post(bus.CommActivity)
				c.bus.Post(bus.CommMQTTWork)
				return
			}
			if c.poll() {
				c.bus.Post(bus.CommActivity)
			}
			c.armWork(RetryBackoff)
			return

		case Failed, Stopped:
			return
		}
	}
}

func (c *Client) subscribe() {
	qos := byte(1)
	if c.cfg.DeviceID != "" {
		c.trySubscribe(fmt.Sprintf("snappy/control/%s", c.cfg.DeviceID), qos)
		c.trySubscribe(fmt.Sprintf("snappy/command/%s", c.cfg.DeviceID), qos)
	}
	if c.cfg.DeviceClass != "" {
		c.trySubscribe(fmt.Sprintf("snappy/control-class/%s", c.cfg.DeviceClass), qos)
	}
	c.trySubscribe("snappy/control-all", qos)
}

func (c *Client) trySubscribe(topic string, qos byte) {
	if err := c.transport.Subscribe(topic, qos); err != nil {
		log.Printf("broker: subscribe %s: %v", topic, err)
	}
}

func (c *Client) send() {
	if len(c.outbound) == 0 {
		return
	}
	msg := c.outbound[0]
	if err := c.transport.Publish(msg.Topic, 1, msg.Payload); err != nil {
		log.Printf("broker: publish %s: %v", msg.Topic, err)
	}
	c.outbound = c.outbound[1:]
}

// poll drains any buffered inbound messages without blocking, reporting
// whether at least one was processed.
func (c *Client) poll() bool {
	workDone := false
	for {
		select {
		case msg := <-c.inbound:
			c.handleInbound(msg)
			workDone = true
		default:
			return workDone
		}
	}
}

func (c *Client) encodeStartup() outboundMessage {
	topic := fmt.Sprintf("snappy/startup/%s/%s", c.cfg.DeviceClass, c.cfg.DeviceID)
	body, _ := json.Marshal(map[string]any{
		"version":  "1.0.0",
		"sent":     time.Now().Unix(),
		"interval": int(c.cfg.CaptureInterval.Seconds()),
	})
	return outboundMessage{Topic: topic, Payload: body}
}
