// Package notify defines the telemetry collaborator the heap reports
// memory-range events to: a minimal interface consumed by the heap plus a
// concrete counting implementation with its own locking that the heap never
// calls back into.
package notify

import (
	"sync"

	"github.com/joshuapare/zebraheap/internal/logging"
)

// Range is a half-open byte range, expressed as [Base, Base+Size).
type Range struct {
	Base uintptr
	Size int
}

// Notifier receives memory-range lifecycle events from the heap. None of
// its methods are on the correctness critical path — a Notifier must never
// call back into the heap that invokes it, and a Notifier's own failures
// are logged and ignored by callers.
type Notifier interface {
	// NotifyReservation reports that r was just reserved from the OS.
	NotifyReservation(r Range)
	// NotifyInternalUse reports that r transitioned between heap-internal
	// states (e.g. a slab going from Free to Allocated).
	NotifyInternalUse(r Range)
	// NotifyReturnedToOS reports that r was released back to the OS.
	NotifyReturnedToOS(r Range)
}

// Counters is a Notifier that accumulates counts and logs each event at
// debug level through internal/logging. It has its own mutex, independent
// of any heap lock.
type Counters struct {
	mu sync.Mutex

	Reservations  int
	InternalUses  int
	ReturnsToOS   int
	ReservedBytes int64
	ReturnedBytes int64
}

// NewCounters returns a ready-to-use Notifier backed by in-memory counters.
func NewCounters() *Counters {
	return &Counters{}
}

func (c *Counters) NotifyReservation(r Range) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Reservations++
	c.ReservedBytes += int64(r.Size)
	logging.L.Debug("heap reservation", "base", r.Base, "size", r.Size)
}

func (c *Counters) NotifyInternalUse(r Range) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.InternalUses++
	logging.L.Debug("heap internal use", "base", r.Base, "size", r.Size)
}

func (c *Counters) NotifyReturnedToOS(r Range) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ReturnsToOS++
	c.ReturnedBytes += int64(r.Size)
	logging.L.Debug("heap returned to OS", "base", r.Base, "size", r.Size)
}

// Snapshot is a point-in-time copy of the counters, safe to read without
// holding Counters' lock afterward.
type Snapshot struct {
	Reservations  int
	InternalUses  int
	ReturnsToOS   int
	ReservedBytes int64
	ReturnedBytes int64
}

// Snapshot returns a copy of the current counts.
func (c *Counters) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Reservations:  c.Reservations,
		InternalUses:  c.InternalUses,
		ReturnsToOS:   c.ReturnsToOS,
		ReservedBytes: c.ReservedBytes,
		ReturnedBytes: c.ReturnedBytes,
	}
}

// noop discards every event. Used as the heap's default Notifier so
// construction never requires one.
type noop struct{}

func (noop) NotifyReservation(Range)  {}
func (noop) NotifyInternalUse(Range)  {}
func (noop) NotifyReturnedToOS(Range) {}

// Noop returns a Notifier that discards all events.
func Noop() Notifier { return noop{} }
