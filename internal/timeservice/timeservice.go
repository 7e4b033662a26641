// Package timeservice implements the one-shot clock synchronization of
// spec.md §4.10: query an external time source once, compute the local
// clock's drift, and persist it so the device never needs to resync
// once it has succeeded. Grounded on the original firmware's
// time_server.cpp, translated from its explicit alloc/free
// TimeServerState into a value the Go garbage collector owns, and
// driven by its own retry timer the way that file's dedicated
// FreeRTOS "time server" timer drives its retry (§5, "per-component
// timers ... are owned by their component").
package timeservice

import (
	"log"
	"time"

	"snappysense.dev/firmware/internal/bus"
	"snappysense.dev/firmware/internal/nvs"
)

// Bounds a returned timestamp must fall within to be trusted, unchanged
// from the original firmware's sanity window (28 March 2023 .. 1 Jan 2038).
var (
	earliestValid = time.Date(2023, time.March, 28, 0, 0, 0, 0, time.UTC)
	latestValid   = time.Date(2038, time.January, 1, 0, 0, 0, 0, time.UTC)
)

// RetryInterval is how long to wait before retrying a failed or
// unreachable time source during a comm window.
const RetryInterval = 10 * time.Second

// Source fetches the current wall-clock time from an external
// authority. A real implementation queries NTP or an HTTPS time
// endpoint; tests use a fake.
type Source interface {
	Now() (time.Time, error)
}

// Clock applies a resolved time to the local system.
type Clock interface {
	Set(time.Time) error
	Now() time.Time
}

// systemClock is the production Clock backed by the OS wall clock. On
// most POSIX targets only root can call settimeofday; SnappySense
// normally keeps the adjustment in Scratch instead of mutating the OS
// clock. Set is therefore a best-effort no-op to keep the interface
// simple for embedders that do have permission.
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
func (systemClock) Set(time.Time) error { return nil }

// SystemClock is the default production Clock.
var SystemClock Clock = systemClock{}

// Service runs the one-shot sync state machine described in §4.10: at
// most one attempt is outstanding at a time; a spurious or out-of-range
// reading triggers one retry after RetryInterval; success persists the
// adjustment to Scratch and the service goes permanently quiet.
type Service struct {
	bus       *bus.Bus
	source    Source
	clock     Clock
	scratch   *nvs.Scratch
	afterFunc func(time.Duration, func()) *time.Timer

	active     bool
	retryTimer *time.Timer
}

// New returns a Service. Once scratch already records a configured
// adjustment, the service never attempts another sync (matching
// ntp_start's `if (persistent_data.time_server.time_configured) return`).
func New(b *bus.Bus, source Source, clock Clock, scratch *nvs.Scratch) *Service {
	return &Service{bus: b, source: source, clock: clock, scratch: scratch, afterFunc: time.AfterFunc}
}

// HaveWork reports whether the service still has sync work pending,
// mirroring ntp_have_work: either the clock has never been configured,
// or an attempt is currently in flight.
func (s *Service) HaveWork() bool {
	_, configured := s.scratch.TimeAdjustment()
	return !configured || s.active
}

// Start begins a sync attempt when entering a comm window. A no-op if
// the clock is already configured.
func (s *Service) Start() {
	if _, configured := s.scratch.TimeAdjustment(); configured {
		return
	}
	s.active = true
	s.bus.Post(bus.CommActivity)
	s.attempt()
}

// Work handles a CommNTPWork retry event. A no-op if the comm window
// already closed (Stop was called) since the prior attempt was posted,
// matching ntp_work's stale-callback guard.
func (s *Service) Work() {
	if _, configured := s.scratch.TimeAdjustment(); configured {
		return
	}
	if !s.active {
		return
	}
	s.attempt()
}

// Stop abandons any in-flight attempt; a later comm window calls Start again.
func (s *Service) Stop() {
	s.active = false
	if s.retryTimer != nil {
		s.retryTimer.Stop()
	}
}

func (s *Service) armRetry() {
	if s.retryTimer != nil {
		s.retryTimer.Stop()
	}
	s.retryTimer = s.afterFunc(RetryInterval, func() {
		s.bus.Post(bus.CommNTPWork)
	})
}

func (s *Service) attempt() bool {
	t, err := s.source.Now()
	if err != nil {
		s.armRetry()
		return false
	}
	if t.Before(earliestValid) || t.After(latestValid) {
		s.armRetry()
		return false
	}
	s.configureClock(t)
	return true
}

func (s *Service) configureClock(t time.Time) {
	before := s.clock.Now()
	delta := int64(t.Sub(before).Seconds())
	if err := s.clock.Set(t); err != nil {
		// Persisting the computed delta still lets callers apply it to
		// timestamps even if the OS clock itself couldn't be moved.
		log.Printf("timeservice: set clock: %v", err)
	}
	s.scratch.SetTimeAdjustment(delta)
	s.active = false
	s.bus.Post(bus.ClockSynchronized)
}
