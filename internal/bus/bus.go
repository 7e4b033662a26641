// Package bus implements the single process-wide event queue that
// coordinates every SnappySense subsystem. It plays the role that
// seedhammer.com/gui's EventRouter plays for that program's UI events,
// generalized into a tagged union that can additionally carry an owned
// heap payload, matching the original firmware's `{code, payload}` event
// shape.
package bus

import (
	"sync"
	"time"
)

// Code identifies the meaning of an Event. The zero value is never posted.
type Code int

// Payload is an owned heap value attached to an Event. The receiver of
// an Event is responsible for consuming it exactly once; Payload places
// no requirements on implementations, so any value (such as a
// *sensors.Snapshot) can be attached, mirroring the original firmware's
// `Box<dyn Payload>` owned pointer.
type Payload interface{}

// Event is a tagged value: a Code plus either no payload, a scalar, or
// an owned Payload. Receivers read exactly one of Scalar/Owned depending
// on what the producer of that Code is documented to attach.
type Event struct {
	Code   Code
	Scalar uint32
	Owned  Payload
}

// DefaultCapacity is the minimum bound §2 requires of the bus queue.
const DefaultCapacity = 100

// Bus is the one process-wide bounded FIFO event queue. All producers
// are non-blocking: a full queue silently drops the event, since the
// queue is sized conservatively (§4.1). The single consumer blocks in
// Receive.
type Bus struct {
	events chan Event

	mu        sync.Mutex
	masterT   *time.Timer
	masterGen uint64
}

// New creates a Bus with the given capacity. Capacity must be at least
// DefaultCapacity in production; tests may use a smaller value to
// exercise overflow behavior.
func New(capacity int) *Bus {
	return &Bus{
		events: make(chan Event, capacity),
	}
}

// Post enqueues a bare event. Safe to call from any goroutine, including
// ones standing in for interrupt/timer contexts, but per §5 those
// contexts must do nothing else.
func (b *Bus) Post(code Code) {
	b.post(Event{Code: code})
}

// PostScalar enqueues an event carrying a small scalar.
func (b *Bus) PostScalar(code Code, v uint32) {
	b.post(Event{Code: code, Scalar: v})
}

// PostOwned enqueues an event carrying an owned payload. Ownership
// transfers to whichever handler eventually receives the event; if the
// queue is full the payload is dropped along with the event.
func (b *Bus) PostOwned(code Code, p Payload) {
	b.post(Event{Code: code, Owned: p})
}

// PostFromInterrupt is identical to Post but named separately so call
// sites make the "came from an interrupt-like context" explicit, per
// §4.1's requirement that implementations needing two call sites offer
// both.
func (b *Bus) PostFromInterrupt(code Code) {
	b.post(Event{Code: code})
}

func (b *Bus) post(e Event) {
	select {
	case b.events <- e:
	default:
		// Queue is sized conservatively; a full queue means something
		// downstream is stuck. Drop rather than block, as required by
		// §4.1 and §5 (no suspension outside Receive).
	}
}

// Receive blocks until an event is available. It is the only
// suspension point for the main consumer (§5).
func (b *Bus) Receive() Event {
	return <-b.events
}

// TryReceive returns the next queued event without blocking, reporting
// false if the queue is empty. It exists for tests that need to assert
// "no event was posted" without racing a blocking Receive.
func (b *Bus) TryReceive() (Event, bool) {
	select {
	case e := <-b.events:
		return e, true
	default:
		return Event{}, false
	}
}

// Arm schedules the single master timeout: code is posted after d
// unless Cancel is called, or Arm is called again first (replacing the
// prior pending timeout, per §4.1).
func (b *Bus) Arm(d time.Duration, code Code) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.masterT != nil {
		b.masterT.Stop()
	}
	b.masterGen++
	gen := b.masterGen
	b.masterT = time.AfterFunc(d, func() {
		b.mu.Lock()
		stale := gen != b.masterGen
		b.mu.Unlock()
		if stale {
			return
		}
		b.Post(code)
	})
}

// Cancel stops any pending master timeout. It cannot retract an event
// that has already been posted to the queue (§4.1); handlers must
// tolerate late arrivals.
func (b *Bus) Cancel() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.masterT != nil {
		b.masterT.Stop()
		b.masterT = nil
	}
	b.masterGen++
}
