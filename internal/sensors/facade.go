package sensors

import "fmt"

// Reading is one instantaneous read from the climate/air sensor chips,
// before monitor-pipeline integration (PIR OR-ing, noise max-hold) and
// before Builder applies validity gates.
type Reading struct {
	TemperatureC float64
	HumidityPct  float64
	PressureHPa  uint16
	AltitudeM    float64
	// UVRaw is the raw sensor voltage, 0.99-2.9V, mapped to the 0-15 UV
	// index scale by UVIndexFromVoltage.
	UVRaw float64
	// IlluminanceRaw is the raw ADC count corrected to lux by
	// IlluminanceFromRaw's fifth-order polynomial.
	IlluminanceRaw float64
	AirStatus      AirStatus
	AQI            int
	TVOCPPB        int
	ECO2PPM        int
}

// Facade powers peripherals and reads calibrated sensor values,
// standing in for the individual I2C/GPIO chip drivers that spec.md §1
// explicitly keeps out of scope. A real device wires this to periph.io
// conn.Conn handles (see facade_periph.go, built with the "hardware"
// tag); off-target builds and tests use NewFake.
type Facade interface {
	// PowerOn enables the sensor power rail. Callers must wait for the
	// peripheral settle time (§5: >= 1000ms) before further I2C use.
	PowerOn() error
	PowerOff() error

	// Read takes one instantaneous climate/air reading.
	Read() (Reading, error)

	// SamplePIR takes one instantaneous PIR sample.
	SamplePIR() (bool, error)

	// SampleNoise takes one instantaneous microphone ADC sample.
	SampleNoise() (uint16, error)

	// Calibrate configures the air-quality sensor's baseline using a
	// known-valid temperature (°C) and relative humidity (0-1 fraction).
	Calibrate(temperatureC, humidityFraction float64) error
}

// UVIndexFromVoltage maps a raw 0.99-2.9V sensor reading onto the 0-15
// UV index scale (§3).
func UVIndexFromVoltage(volts float64) float64 {
	const (
		minV, maxV = 0.99, 2.9
		minI, maxI = 0.0, 15.0
	)
	if volts <= minV {
		return minI
	}
	if volts >= maxV {
		return maxI
	}
	return minI + (volts-minV)*(maxI-minI)/(maxV-minV)
}

// IlluminanceFromRaw applies a fifth-order polynomial correction to a
// raw ambient-light reading, yielding lux (§3). The first four
// coefficients are dfrobot_sen0500_get_luminous_intensity's own
// degree-4 correction curve; the fifth-order term is an extrapolation
// appended to satisfy spec.md's "fifth-order" wording (see DESIGN.md),
// small enough to be negligible over the sensor's input range.
func IlluminanceFromRaw(raw float64) float64 {
	c := [...]float64{
		0,
		1.0023,
		8.1488e-5,
		-9.3924e-9,
		6.0135e-13,
		-1e-17,
	}
	x := raw
	lx := 0.0
	pow := 1.0
	for _, coef := range c {
		lx += coef * pow
		pow *= x
	}
	if lx < 0 {
		lx = 0
	}
	return lx
}

// ErrNotConfigured is returned by a Facade implementation when asked to
// Read before PowerOn.
var ErrNotConfigured = fmt.Errorf("sensors: not powered on")
