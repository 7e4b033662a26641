// Package sensors defines the sensor snapshot data model (§3) and a
// driver facade (§4 "Sensor driver facade") that powers peripherals and
// reads calibrated values. Individual chip drivers are out of scope
// per spec.md §1; Facade is capability-shaped so a real implementation
// can sit behind periph.io/x/conn (see facade_periph.go, built with the
// "hardware" tag) while tests and cmd/snappysensed's default build use
// the in-memory fake in facade_fake.go.
package sensors

// Factor identifies one optional observation in a Snapshot, replacing
// the original firmware's raw struct-offset metadata rows with an
// enumerated kind and a per-factor accessor (§9 Design Notes).
type Factor int

const (
	Temperature Factor = iota
	Humidity
	Pressure
	Altitude
	UV
	Illuminance
	AirQuality
	TVOC
	ECO2
	Motion
	Noise
)

// AirStatus mirrors the air-quality sensor's own status byte.
type AirStatus int

const (
	AirNormal AirStatus = iota
	AirWarmup
	AirInitialStartup
	AirInvalid
)

// value is a (float64, valid) pair, used internally by Snapshot; the
// public API is the Valid/Float/AQI accessors below.
type value struct {
	f     float64
	valid bool
}

// Snapshot is an immutable single observation (§3). Create with
// NewBuilder, finalize with Build; once built a Snapshot is
// shared freely between consumers without further copying since it is
// never mutated after construction.
type Snapshot struct {
	Sequence  uint64
	UnixTime  int64 // may be uncorrected if the time service has not run yet
	values    [11]value
	airStatus AirStatus
	aqi       int
}

// Valid reports whether factor f was read and passed its validity gate.
func (s *Snapshot) Valid(f Factor) bool {
	return s.values[f].valid
}

// Float returns factor f's value and whether it is valid.
func (s *Snapshot) Float(f Factor) (float64, bool) {
	v := s.values[f]
	return v.f, v.valid
}

// AirStatus returns the air-quality sensor's status code (§3: 0 normal,
// 1 warmup, 2 initial startup, 3 invalid).
func (s *Snapshot) AirStatus() AirStatus {
	return s.airStatus
}

// payloadMarker tags *Snapshot as the owned payload of MONITOR_DATA
// (§4.5). bus.Payload accepts any value, so nothing calls it.
func (s *Snapshot) payloadMarker() {}

// AQI returns the Air Quality Index (1-5) and whether AirQuality is valid.
func (s *Snapshot) AQI() (int, bool) {
	return s.aqi, s.values[AirQuality].valid
}

// validTemperature through validECO2 apply the per-factor gates from
// spec.md §4.5.
func validTemperature(c float64) bool  { return c != -45.0 }
func validHumidity(pct float64) bool   { return pct != 0 }
func validPressure(hpa uint16) bool    { return hpa > 0 }
func validAQI(v int) bool              { return v >= 1 && v <= 5 }
func validTVOC(ppb int) bool           { return ppb > 0 && ppb <= 65000 }
func validECO2(ppm int) bool           { return ppm > 400 }

// Builder accumulates raw readings before Build applies validity gates
// and air-sensor suppression (§4.5).
type Builder struct {
	seq       uint64
	unixTime  int64
	raw       map[Factor]float64
	rawPres   uint16
	rawAQI    int
	rawTVOC   int
	rawECO2   int
	airStatus AirStatus
	hasAir    bool
}

// NewBuilder starts a snapshot for the given sequence number and
// (possibly uncorrected) UTC time.
func NewBuilder(seq uint64, unixTime int64) *Builder {
	return &Builder{seq: seq, unixTime: unixTime, raw: map[Factor]float64{}}
}

func (b *Builder) SetTemperature(c float64) *Builder   { b.raw[Temperature] = c; return b }
func (b *Builder) SetHumidity(pct float64) *Builder    { b.raw[Humidity] = pct; return b }
func (b *Builder) SetAltitude(m float64) *Builder      { b.raw[Altitude] = m; return b }
func (b *Builder) SetUV(v float64) *Builder             { b.raw[UV] = v; return b }
func (b *Builder) SetIlluminance(lx float64) *Builder  { b.raw[Illuminance] = lx; return b }
func (b *Builder) SetMotion(v bool) *Builder {
	if v {
		b.raw[Motion] = 1
	} else {
		b.raw[Motion] = 0
	}
	return b
}
func (b *Builder) SetNoise(raw uint16) *Builder { b.raw[Noise] = float64(raw); return b }

func (b *Builder) SetPressure(hpa uint16) *Builder {
	b.rawPres = hpa
	return b
}

// SetAirQuality records the air sensor's status, AQI, tVOC (ppb) and
// eCO2 (ppm). Per §4.5, status == AirInvalid suppresses all three air
// readings regardless of their individual gates.
func (b *Builder) SetAirQuality(status AirStatus, aqi, tvocPPB, eco2PPM int) *Builder {
	b.hasAir = true
	b.airStatus = status
	b.rawAQI = aqi
	b.rawTVOC = tvocPPB
	b.rawECO2 = eco2PPM
	return b
}

// Build applies every validity gate and returns the finished immutable
// Snapshot.
func (b *Builder) Build() *Snapshot {
	s := &Snapshot{Sequence: b.seq, UnixTime: b.unixTime}
	if c, ok := b.raw[Temperature]; ok {
		s.values[Temperature] = value{c, validTemperature(c)}
	}
	if h, ok := b.raw[Humidity]; ok {
		s.values[Humidity] = value{h, validHumidity(h)}
	}
	if a, ok := b.raw[Altitude]; ok {
		s.values[Altitude] = value{a, true}
	}
	if uv, ok := b.raw[UV]; ok {
		s.values[UV] = value{uv, true}
	}
	if lx, ok := b.raw[Illuminance]; ok {
		s.values[Illuminance] = value{lx, true}
	}
	if m, ok := b.raw[Motion]; ok {
		s.values[Motion] = value{m, true}
	}
	if n, ok := b.raw[Noise]; ok {
		s.values[Noise] = value{n, true}
	}
	s.values[Pressure] = value{float64(b.rawPres), validPressure(b.rawPres)}

	s.airStatus = b.airStatus
	if b.hasAir && b.airStatus != AirInvalid {
		s.aqi = b.rawAQI
		s.values[AirQuality] = value{float64(b.rawAQI), validAQI(b.rawAQI)}
		s.values[TVOC] = value{float64(b.rawTVOC), validTVOC(b.rawTVOC)}
		s.values[ECO2] = value{float64(b.rawECO2), validECO2(b.rawECO2)}
	}
	return s
}
