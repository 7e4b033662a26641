// Package wifi implements the station-mode connectivity manager of
// spec.md §4.3: try up to three configured access points in turn,
// starting from whichever one last worked, until one connects or all
// are exhausted. It is grounded directly on the original firmware's
// network_wifi.cpp state machine (STARTING/RETRYING/CONNECTED/FAILED/
// STOPPED, including its "goto again" re-entrant switch), translated
// into a for/continue loop, and on the teacher's driver state-machine
// style (see driver/wshat's own small connect/retry loops).
package wifi

import (
	"log"
	"time"

	"snappysense.dev/firmware/internal/bus"
	"snappysense.dev/firmware/internal/nvs"
)

// State is the Wi-Fi manager's connection state.
type State int

const (
	Starting State = iota
	Retrying
	Connected
	Failed
	Stopped
)

func (s State) String() string {
	switch s {
	case Starting:
		return "STARTING"
	case Retrying:
		return "RETRYING"
	case Connected:
		return "CONNECTED"
	case Failed:
		return "FAILED"
	case Stopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// AccessPoint is one of the (up to three) configured station-mode
// credentials, matching prefs' s1/p1, s2/p2, s3/p3 slots.
type AccessPoint struct {
	SSID     string
	Password string
}

// Radio is the station-mode hardware capability a Manager drives. Begin
// starts a non-blocking connection attempt; Status reports whether it
// has since completed.
type Radio interface {
	Begin(ssid, password string) error
	Status() bool
	Disconnect()
	LocalIP() string
}

// APRadio is the access-point (provisioning) mode hardware capability.
// Unlike Radio's station-mode connect/retry loop, bringing up an
// access point is "a single synchronous call that returns the
// assigned IP or fails hard" (§4.3's closing paragraph) -- there is no
// state machine to drive.
type APRadio interface {
	CreateAccessPoint(ssid, password string) (ip string, err error)
}

// MaxTimeouts bounds how many retry ticks a single access point gets
// before the manager moves on to the next one, unchanged from the
// original firmware's MAX_TIMEOUTS.
const MaxTimeouts = 10

// Manager runs the station-mode connect/retry/rotate state machine. It
// owns its retry timer itself (per §5, "per-component timers ... are
// owned by their component"), mirroring network_wifi.cpp's dedicated
// retry_timer rather than sharing the bus's single master timeout.
type Manager struct {
	bus           *bus.Bus
	scratch       *nvs.Scratch
	radio         Radio
	aps           []AccessPoint
	retryInterval time.Duration
	maxTimeouts   int
	afterFunc     func(time.Duration, func()) *time.Timer

	state       State
	current     int
	numTried    int
	numTimeouts int
	retryTimer  *time.Timer
}

// New returns a Manager over the given access points. retryInterval is
// the station-mode per-tick delay (§4.3's "wifi_retry_ms").
func New(b *bus.Bus, scratch *nvs.Scratch, radio Radio, aps []AccessPoint, retryInterval time.Duration) *Manager {
	return &Manager{
		bus:           b,
		scratch:       scratch,
		radio:         radio,
		aps:           aps,
		retryInterval: retryInterval,
		maxTimeouts:   MaxTimeouts,
		afterFunc:     time.AfterFunc,
		state:         Stopped,
	}
}

// armRetry schedules a CommWifiClientRetry tick on the Manager's own
// timer, replacing any pending one.
func (m *Manager) armRetry() {
	if m.retryTimer != nil {
		m.retryTimer.Stop()
	}
	m.retryTimer = m.afterFunc(m.retryInterval, func() {
		m.bus.Post(bus.CommWifiClientRetry)
	})
}

// State reports the current state.
func (m *Manager) State() State { return m.state }

// LocalIP returns the assigned address once Connected, else "".
func (m *Manager) LocalIP() string {
	if m.state != Connected {
		return ""
	}
	return m.radio.LocalIP()
}

// EnableStart begins a fresh connection sequence, starting from the
// last access point that successfully connected (§4.3, invariant 4).
func (m *Manager) EnableStart() {
	m.numTried = 0
	m.current = m.scratch.LastSuccessfulAP()
	m.state = Starting
	m.connect()
}

// EnableRetry drives the state machine forward in response to a
// CommWifiClientRetry tick.
func (m *Manager) EnableRetry() {
	m.connect()
}

// Disable tears down any in-progress or active connection.
func (m *Manager) Disable() {
	switch m.state {
	case Retrying, Connected:
		log.Println("wifi: disconnected")
		m.radio.Disconnect()
	}
	if m.retryTimer != nil {
		m.retryTimer.Stop()
	}
	m.state = Stopped
}

func (m *Manager) connect() {
	for {
		switch m.state {
		case Starting:
			if m.numTried == len(m.aps) {
				m.state = Failed
				m.bus.Post(bus.CommWifiClientFailed)
				m.radio.Disconnect()
				log.Println("wifi: failed to connect to any access point")
				return
			}
			ap := m.aps[m.current]
			m.numTried++
			if ap.SSID == "" {
				m.current = (m.current + 1) % len(m.aps)
				continue
			}
			m.numTimeouts = 0
			log.Printf("wifi: trying access point %q", ap.SSID)
			if err := m.radio.Begin(ap.SSID, ap.Password); err != nil {
				log.Printf("wifi: begin %q: %v", ap.SSID, err)
			}
			m.armRetry()
			m.state = Retrying
			return
		case Retrying:
			if m.radio.Status() {
				m.scratch.SetLastSuccessfulAP(m.current)
				m.state = Connected
				m.bus.Post(bus.CommWifiClientUp)
				log.Printf("wifi: connected, IP address %s", m.radio.LocalIP())
				return
			}
			if m.numTimeouts == m.maxTimeouts {
				m.current = (m.current + 1) % len(m.aps)
				m.state = Starting
				continue
			}
			m.numTimeouts++
			m.armRetry()
			return
		case Failed, Stopped, Connected:
			return
		}
	}
}
