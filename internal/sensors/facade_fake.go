package sensors

import "sync"

// Fake is an in-memory Facade used by tests and by cmd/snappysensed's
// default (non-"hardware") build. It returns a fixed, adjustable
// reading so monitoring-pipeline and supervisor tests can drive
// specific scenarios without real I2C hardware.
type Fake struct {
	mu          sync.Mutex
	poweredOn   bool
	reading     Reading
	pir         bool
	noise       uint16
	calibrated  bool
	calibTemp   float64
	calibHumid  float64
}

// NewFake returns a Fake with a plausible room-temperature reading.
func NewFake() *Fake {
	return &Fake{
		reading: Reading{
			TemperatureC: 21.5,
			HumidityPct:  45.0,
			PressureHPa:  1013,
			AltitudeM:    42,
			UVRaw:        1.2,
			IlluminanceRaw: 300,
			AirStatus:    AirWarmup,
		},
	}
}

func (f *Fake) PowerOn() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.poweredOn = true
	return nil
}

func (f *Fake) PowerOff() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.poweredOn = false
	return nil
}

func (f *Fake) Read() (Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.poweredOn {
		return Reading{}, ErrNotConfigured
	}
	r := f.reading
	if f.calibrated {
		r.AirStatus = AirNormal
		if r.AQI == 0 {
			r.AQI = 1
		}
	}
	return r, nil
}

func (f *Fake) SamplePIR() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.poweredOn {
		return false, ErrNotConfigured
	}
	return f.pir, nil
}

func (f *Fake) SampleNoise() (uint16, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.poweredOn {
		return 0, ErrNotConfigured
	}
	return f.noise, nil
}

func (f *Fake) Calibrate(temperatureC, humidityFraction float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calibrated = true
	f.calibTemp = temperatureC
	f.calibHumid = humidityFraction
	return nil
}

// SetReading lets a test fix the next Read result.
func (f *Fake) SetReading(r Reading) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reading = r
}

// SetPIR lets a test drive a PIR sample.
func (f *Fake) SetPIR(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pir = v
}

// SetNoise lets a test drive a microphone sample.
func (f *Fake) SetNoise(v uint16) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.noise = v
}

// Calibrated reports whether Calibrate has been called, and with what
// inputs, for assertions in tests.
func (f *Fake) Calibrated() (bool, float64, float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calibrated, f.calibTemp, f.calibHumid
}
