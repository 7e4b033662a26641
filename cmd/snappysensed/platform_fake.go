//go:build !hardware

package main

import (
	"log"
	"time"

	"snappysense.dev/firmware/internal/broker"
	"snappysense.dev/firmware/internal/bus"
	"snappysense.dev/firmware/internal/display"
	"snappysense.dev/firmware/internal/sensors"
	"snappysense.dev/firmware/internal/timeservice"
)

// fakePower logs the shared rail's state instead of driving real
// hardware, mirroring supervisor_test.go's fakePower.
type fakePower struct{}

func (fakePower) On()  { log.Println("platform: peripheral power on") }
func (fakePower) Off() { log.Println("platform: peripheral power off") }

// fakeRadio is a station-mode and access-point Wi-Fi stand-in that
// "connects" to whatever SSID it's given after one retry tick, for
// exercising the full supervisor/wifi/broker wiring without real
// hardware.
type fakeRadio struct {
	connected bool
}

func (r *fakeRadio) Begin(ssid, password string) error {
	log.Printf("platform: fake wifi begin %q", ssid)
	r.connected = true
	return nil
}
func (r *fakeRadio) Status() bool    { return r.connected }
func (r *fakeRadio) Disconnect()     { r.connected = false }
func (r *fakeRadio) LocalIP() string { return "192.0.2.1" }
func (r *fakeRadio) CreateAccessPoint(ssid, password string) (string, error) {
	log.Printf("platform: fake access point %q", ssid)
	return "192.0.2.1", nil
}

// fakeTransport is a no-op MQTT transport: Connect always succeeds and
// nothing is actually published, for running the daemon end-to-end
// against no real broker.
type fakeTransport struct {
	cfg       broker.Config
	connected bool
}

func (t *fakeTransport) Configure(cfg broker.Config) error { t.cfg = cfg; return nil }
func (t *fakeTransport) Connect() error                    { t.connected = true; return nil }
func (t *fakeTransport) Connected() bool                   { return t.connected }
func (t *fakeTransport) Disconnect()                       { t.connected = false }
func (t *fakeTransport) Publish(topic string, qos byte, payload []byte) error {
	log.Printf("platform: fake publish %s: %s", topic, payload)
	return nil
}
func (t *fakeTransport) Subscribe(topic string, qos byte) error {
	log.Printf("platform: fake subscribe %s", topic)
	return nil
}

func newPlatform(b *bus.Bus, inbound chan<- broker.InboundMessage) (*platform, error) {
	return &platform{
		sensors:    sensors.NewFake(),
		display:    display.NewMemory(),
		power:      fakePower{},
		wifiRadio:  &fakeRadio{},
		apRadio:    &fakeRadio{},
		transport:  &fakeTransport{},
		button:     nil,
		timeSource: localTimeSource{},
		clock:      timeservice.SystemClock,
	}, nil
}

// localTimeSource reports the host's own clock as already-authoritative,
// since a development build has no real NTP/HTTPS round trip to make.
type localTimeSource struct{}

func (localTimeSource) Now() (time.Time, error) { return time.Now(), nil }
