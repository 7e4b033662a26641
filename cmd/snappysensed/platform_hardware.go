//go:build hardware

package main

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"snappysense.dev/firmware/internal/broker"
	"snappysense.dev/firmware/internal/bus"
	"snappysense.dev/firmware/internal/button"
	"snappysense.dev/firmware/internal/display"
	"snappysense.dev/firmware/internal/sensors"
	"snappysense.dev/firmware/internal/timeservice"
)

// Pin names and I2C addresses match the reference SnappySense carrier
// board wiring; adjust for a different board.
const (
	pinPIR    = "GPIO17"
	pinPower  = "GPIO27"
	pinButton = "GPIO22"

	climateAddr = 0x76
	airAddr     = 0x5a
	oledAddr    = 0x3c
)

// hardwarePower gates the shared OLED/I2C rail through the sensor
// facade's own power pin, matching §5's description of the rail as a
// single shared gate rather than per-peripheral power control.
type hardwarePower struct {
	sensors *sensors.PeriphFacade
}

func (p *hardwarePower) On() {
	if err := p.sensors.PowerOn(); err != nil {
		panic("platform: peripheral power on: " + err.Error())
	}
}

func (p *hardwarePower) Off() {
	if err := p.sensors.PowerOff(); err != nil {
		panic("platform: peripheral power off: " + err.Error())
	}
}

func newPlatform(b *bus.Bus, inbound chan<- broker.InboundMessage) (*platform, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("platform: periph host init: %w", err)
	}

	pirPin := gpioreg.ByName(pinPIR)
	if pirPin == nil {
		return nil, fmt.Errorf("platform: pir pin %s not found", pinPIR)
	}
	powerPin := gpioreg.ByName(pinPower)
	if powerPin == nil {
		return nil, fmt.Errorf("platform: power pin %s not found", pinPower)
	}
	powerOut, ok := powerPin.(gpio.PinOut)
	if !ok {
		return nil, fmt.Errorf("platform: power pin %s is not an output", pinPower)
	}

	// periph.io has no board-agnostic ADC registry the way it has
	// gpioreg/i2creg/spireg (see DESIGN.md); a microphone sample is
	// therefore unavailable until a board-specific analog.PinADC is
	// substituted here. PeriphFacade.SampleNoise already treats a nil
	// micADC as "no microphone configured" rather than panicking.
	sf, err := sensors.OpenPeriphFacade("", climateAddr, airAddr, pirPin, nil, powerOut)
	if err != nil {
		return nil, fmt.Errorf("platform: sensors: %w", err)
	}

	disp, err := display.OpenPeriph("", oledAddr)
	if err != nil {
		return nil, fmt.Errorf("platform: display: %w", err)
	}

	buttonPin := gpioreg.ByName(pinButton)
	if buttonPin == nil {
		return nil, fmt.Errorf("platform: button pin %s not found", pinButton)
	}
	buttonIn, ok := buttonPin.(gpio.PinIn)
	if !ok {
		return nil, fmt.Errorf("platform: button pin %s is not an input", pinButton)
	}
	mon := button.New(b)
	if err := mon.Watch(buttonIn, make(chan struct{})); err != nil {
		return nil, fmt.Errorf("platform: button watch: %w", err)
	}

	return &platform{
		sensors:    sf,
		display:    disp,
		power:      &hardwarePower{sensors: sf},
		wifiRadio:  &unsupportedRadio{},
		apRadio:    &unsupportedRadio{},
		transport:  broker.NewPahoTransport(inbound),
		button:     mon,
		timeSource: timeservice.NewHTTPSource("https://www.cloudflare.com"),
		clock:      timeservice.SystemClock,
	}, nil
}

// unsupportedRadio reports that station-mode and access-point Wi-Fi
// control need a board-specific driver: periph.io has no generic
// Wi-Fi radio abstraction (its scope stops at GPIO/I2C/SPI buses), so
// unlike the sensor and display facades there is no periph-backed
// wifi.Radio to wrap here. A real deployment supplies one (e.g. wpa_supplicant
// control socket, or a vendor SDK) in place of this stub.
type unsupportedRadio struct{}

func (unsupportedRadio) Begin(ssid, password string) error {
	return fmt.Errorf("platform: no Wi-Fi radio driver wired for this board")
}
func (unsupportedRadio) Status() bool    { return false }
func (unsupportedRadio) Disconnect()     {}
func (unsupportedRadio) LocalIP() string { return "" }
func (unsupportedRadio) CreateAccessPoint(ssid, password string) (string, error) {
	return "", fmt.Errorf("platform: no Wi-Fi radio driver wired for this board")
}
