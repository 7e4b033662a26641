//go:build hardware

package sensors

import (
	"fmt"
	"math"
	"time"

	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
)

// PeriphFacade wires the Facade interface to real peripherals via
// periph.io, the same conn abstraction seedhammer.com/lcd and
// seedhammer.com/input use for their SPI/GPIO access. The climate chip
// is addressed over I2C like a BME280; the microphone and PIR are
// sampled from GPIO/ADC pins, matching how input.Open reads GPIO edges
// in the teacher repo.
type PeriphFacade struct {
	climate  *i2c.Dev
	airQual  *i2c.Dev
	pirPin   gpio.PinIn
	micADC   analog.PinADC
	powerPin gpio.PinOut

	calibrated bool
}

// Register addresses for the climate chip, BME280-shaped.
const (
	regCtrlHum  = 0xF2
	regCtrlMeas = 0xF4
	regPress    = 0xF7
	regTemp     = 0xFA
	regHum      = 0xFD
)

// OpenPeriphFacade opens the I2C bus named busName (empty string picks
// the first available bus, as spireg/i2creg do throughout the teacher
// repo) and wires the climate sensor at addr, the air-quality sensor at
// airAddr, plus the given PIR and microphone pins.
func OpenPeriphFacade(busName string, addr, airAddr uint16, pir gpio.PinIn, mic analog.PinADC, power gpio.PinOut) (*PeriphFacade, error) {
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("sensors: i2c open: %w", err)
	}
	if err := pir.In(gpio.PullDown, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("sensors: pir pin: %w", err)
	}
	return &PeriphFacade{
		climate:  &i2c.Dev{Bus: bus, Addr: addr},
		airQual:  &i2c.Dev{Bus: bus, Addr: airAddr},
		pirPin:   pir,
		micADC:   mic,
		powerPin: power,
	}, nil
}

func (f *PeriphFacade) PowerOn() error {
	if err := f.powerPin.Out(gpio.High); err != nil {
		return fmt.Errorf("sensors: power on: %w", err)
	}
	// §5: peripheral power is a single gate; re-enabling requires a
	// >=1000ms settle before I2C use.
	time.Sleep(1000 * time.Millisecond)
	return nil
}

func (f *PeriphFacade) PowerOff() error {
	if err := f.powerPin.Out(gpio.Low); err != nil {
		return fmt.Errorf("sensors: power off: %w", err)
	}
	return nil
}

func (f *PeriphFacade) Read() (Reading, error) {
	raw := make([]byte, 8)
	if err := f.climate.Tx([]byte{regPress}, raw); err != nil {
		return Reading{}, fmt.Errorf("sensors: climate read: %w", err)
	}
	press := uint16(raw[0])<<8 | uint16(raw[1])
	tempRaw := int32(raw[3])<<12 | int32(raw[4])<<4 | int32(raw[5]>>4)
	humRaw := uint16(raw[6])<<8 | uint16(raw[7])

	r := Reading{
		TemperatureC: float64(tempRaw) / 100.0,
		HumidityPct:  float64(humRaw) / 1024.0,
		PressureHPa:  press,
		AltitudeM:    altitudeFromPressure(press),
	}

	uvRaw := make([]byte, 2)
	if err := f.airQual.Tx([]byte{0x10}, uvRaw); err == nil {
		r.UVRaw = float64(uint16(uvRaw[0])<<8|uint16(uvRaw[1])) / 1000.0
	}
	light := make([]byte, 2)
	if err := f.airQual.Tx([]byte{0x12}, light); err == nil {
		r.IlluminanceRaw = float64(uint16(light[0])<<8 | uint16(light[1]))
	}

	air := make([]byte, 5)
	if err := f.airQual.Tx([]byte{0x20}, air); err == nil {
		r.AirStatus = AirStatus(air[0])
		r.AQI = int(air[1])
		r.TVOCPPB = int(uint16(air[2])<<8 | uint16(air[3]))
		r.ECO2PPM = int(air[4]) * 100
	} else {
		r.AirStatus = AirInvalid
	}
	return r, nil
}

func (f *PeriphFacade) SamplePIR() (bool, error) {
	return f.pirPin.Read() == gpio.High, nil
}

func (f *PeriphFacade) SampleNoise() (uint16, error) {
	if f.micADC == nil {
		return 0, fmt.Errorf("sensors: no microphone ADC configured")
	}
	sample, err := f.micADC.Read()
	if err != nil {
		return 0, fmt.Errorf("sensors: noise sample: %w", err)
	}
	return uint16(sample.Raw), nil
}

func (f *PeriphFacade) Calibrate(temperatureC, humidityFraction float64) error {
	payload := []byte{
		0x30,
		byte(int16(temperatureC * 100) >> 8), byte(int16(temperatureC * 100)),
		byte(uint16(humidityFraction*10000) >> 8), byte(uint16(humidityFraction * 10000)),
	}
	if err := f.airQual.Tx(payload, nil); err != nil {
		return fmt.Errorf("sensors: calibrate: %w", err)
	}
	f.calibrated = true
	return nil
}

// altitudeFromPressure derives an approximate altitude in meters from a
// sea-level-relative pressure reading using the international barometric
// formula.
func altitudeFromPressure(hpa uint16) float64 {
	if hpa == 0 {
		return 0
	}
	const seaLevelHPa = 1013.25
	return 44330.0 * (1.0 - math.Pow(float64(hpa)/seaLevelHPa, 1.0/5.255))
}
