// Package monitor implements the sensor monitoring pipeline of spec.md
// §4.5: a warmup phase that keeps the sensor rail warm without keeping
// any readings, followed by a PIR-latch/MEMS-max-hold sampling window,
// finalized into one Snapshot posted as MONITOR_DATA. Grounded on the
// main loop's MONITOR_START/MONITOR_WORK/MONITOR_STOP handling in
// main.cpp, and on sensor.cpp's three dedicated FreeRTOS timers
// (warmup_timer, pir_timer, mems_timer) -- the latter two auto-reload,
// the former one-shot and manually restarted each tick -- which this
// Sequencer owns itself rather than share the bus's master timer (§5).
package monitor

import (
	"fmt"
	"log"
	"time"

	"snappysense.dev/firmware/internal/bus"
	"snappysense.dev/firmware/internal/sensors"
)

// warmupTicks is how many equal ticks the total warmup duration splits
// into before the pipeline moves on to sampling (§4.5 step 1).
const warmupTicks = 5

// pirInterval and memsInterval are the sampling windows' per-tick
// periods once warmup completes (§4.5 step 3).
const (
	pirInterval  = 1 * time.Second
	memsInterval = 10 * time.Millisecond
)

// Sequencer turns sensor Facade reads into a validated Snapshot over
// one monitoring window.
type Sequencer struct {
	bus       *bus.Bus
	sensors   sensors.Facade
	afterFunc func(time.Duration, func()) *time.Timer

	warmupDuration time.Duration

	running     bool
	warmupCount int
	seq         uint64

	calibrated bool
	pirLatched bool
	memsMax    uint16

	warmupTimer *time.Timer
	pirTimer    *time.Timer
	memsTimer   *time.Timer
}

// New returns a Sequencer. warmupTotal is sensor_warmup_time_s()'s
// value; it is split into warmupTicks equal sub-intervals (§4.5 step 1).
func New(b *bus.Bus, facade sensors.Facade, warmupTotal time.Duration) *Sequencer {
	return &Sequencer{bus: b, sensors: facade, warmupDuration: warmupTotal, afterFunc: time.AfterFunc}
}

// Running reports whether a monitoring window is currently open.
func (s *Sequencer) Running() bool { return s.running }

// Start opens a monitoring window: powers the sensor rail and arms the
// first warmup tick. Per §4.5's invariant, callers must ensure the
// monitoring window itself outlasts warmupTotal; Start does not enforce
// that here since the window timeout is owned by the supervisor, but it
// returns an error for a non-positive warmup duration since that can
// never converge.
func (s *Sequencer) Start() error {
	if s.warmupDuration <= 0 {
		return fmt.Errorf("monitor: non-positive warmup duration")
	}
	if err := s.sensors.PowerOn(); err != nil {
		return fmt.Errorf("monitor: power on: %w", err)
	}
	s.running = true
	s.warmupCount = 0
	s.pirLatched = false
	s.memsMax = 0
	s.armWarmupTick()
	return nil
}

func (s *Sequencer) armWarmupTick() {
	if s.warmupTimer != nil {
		s.warmupTimer.Stop()
	}
	s.warmupTimer = s.afterFunc(s.warmupDuration/warmupTicks, func() {
		s.bus.Post(bus.WarmupWork)
	})
}

// armPIRTick and armMEMSTick reload their timers the way pir_timer and
// mems_timer auto-reload in sensor.cpp: each fire re-arms itself.
func (s *Sequencer) armPIRTick() {
	if s.pirTimer != nil {
		s.pirTimer.Stop()
	}
	s.pirTimer = s.afterFunc(pirInterval, func() {
		s.bus.Post(bus.SamplePIR)
	})
}

func (s *Sequencer) armMEMSTick() {
	if s.memsTimer != nil {
		s.memsTimer.Stop()
	}
	s.memsTimer = s.afterFunc(memsInterval, func() {
		s.bus.Post(bus.SampleMEMS)
	})
}

// Tick handles one WARMUP_WORK, GO_TO_WORK, SAMPLE_PIR or SAMPLE_MEMS
// event, per §4.5's state machine.
func (s *Sequencer) Tick(code bus.Code) {
	if !s.running {
		return
	}
	switch code {
	case bus.WarmupWork:
		s.warmupTick()
	case bus.GoToWork:
		s.goToWork()
	case bus.SamplePIR:
		s.samplePIR()
		s.armPIRTick()
	case bus.SampleMEMS:
		s.sampleMEMS()
		s.armMEMSTick()
	}
}

func (s *Sequencer) warmupTick() {
	// Read and discard: this keeps the sensor pipeline warm without
	// retaining any of these early, not-yet-stable readings.
	if _, err := s.sensors.Read(); err != nil {
		log.Printf("monitor: warmup read: %v", err)
	}
	s.warmupCount++
	if s.warmupCount < warmupTicks {
		s.armWarmupTick()
		return
	}
	s.bus.Post(bus.GoToWork)
}

func (s *Sequencer) goToWork() {
	s.pirLatched = false
	s.memsMax = 0
	s.samplePIR()
	s.sampleMEMS()
	s.armPIRTick()
	s.armMEMSTick()
}

func (s *Sequencer) samplePIR() {
	v, err := s.sensors.SamplePIR()
	if err != nil {
		log.Printf("monitor: sample PIR: %v", err)
		return
	}
	s.pirLatched = s.pirLatched || v
}

func (s *Sequencer) sampleMEMS() {
	v, err := s.sensors.SampleNoise()
	if err != nil {
		log.Printf("monitor: sample noise: %v", err)
		return
	}
	if v > s.memsMax {
		s.memsMax = v
	}
}

// Stop takes the final snapshot, posts it as an owned MONITOR_DATA
// event, powers the sensor rail back off, and closes the window
// (§4.5 step 5).
func (s *Sequencer) Stop() {
	if !s.running {
		return
	}
	s.running = false
	for _, t := range []*time.Timer{s.warmupTimer, s.pirTimer, s.memsTimer} {
		if t != nil {
			t.Stop()
		}
	}

	s.seq++
	b := sensors.NewBuilder(s.seq, time.Now().Unix())

	reading, err := s.sensors.Read()
	if err != nil {
		log.Printf("monitor: final read: %v", err)
	} else {
		b.SetTemperature(reading.TemperatureC).
			SetHumidity(reading.HumidityPct).
			SetPressure(reading.PressureHPa).
			SetAltitude(reading.AltitudeM).
			SetUV(sensors.UVIndexFromVoltage(reading.UVRaw)).
			SetIlluminance(sensors.IlluminanceFromRaw(reading.IlluminanceRaw))

		// Air readings are kept only once an earlier window has
		// calibrated the sensor (§4.5).
		if s.calibrated && reading.AirStatus != sensors.AirInvalid {
			b.SetAirQuality(reading.AirStatus, reading.AQI, reading.TVOCPPB, reading.ECO2PPM)
		}

		// Calibration happens once, the first time both temperature and
		// humidity pass their validity gates (§4.5).
		if !s.calibrated && reading.TemperatureC != -45.0 && reading.HumidityPct != 0 {
			if err := s.sensors.Calibrate(reading.TemperatureC, reading.HumidityPct/100.0); err != nil {
				log.Printf("monitor: calibrate: %v", err)
			} else {
				s.calibrated = true
			}
		}
	}

	b.SetMotion(s.pirLatched).SetNoise(s.memsMax)

	if err := s.sensors.PowerOff(); err != nil {
		log.Printf("monitor: power off: %v", err)
	}

	s.bus.PostOwned(bus.MonitorData, b.Build())
}
