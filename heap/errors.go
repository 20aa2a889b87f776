package heap

import "errors"

var (
	// ErrOutOfCapacity indicates no Free slab was available to satisfy an
	// allocation request.
	ErrOutOfCapacity = errors.New("heap: no free slab available")

	// ErrTooLarge indicates a requested size exceeds the per-slab maximum
	// (one page minus the block header for AllocateBlock, one page for
	// Allocate).
	ErrTooLarge = errors.New("heap: requested size exceeds maximum allocation size")

	// ErrNotOwned indicates an address outside the reservation, or not
	// exactly at a slab's header address where one is required.
	ErrNotOwned = errors.New("heap: address not owned by this heap")

	// ErrWrongState indicates an operation required a slab to be in a
	// specific state that it is not currently in (e.g. freeing a slab that
	// is already Free or Quarantined).
	ErrWrongState = errors.New("heap: slab is not in the required state")

	// ErrInvalidRatio indicates a quarantine ratio outside [0, 1].
	ErrInvalidRatio = errors.New("heap: quarantine ratio must be in [0, 1]")

	// ErrInvalidSize indicates a reservation size too small to hold a single
	// slab (two system pages).
	ErrInvalidSize = errors.New("heap: size must be a positive multiple of the slab size")

	// ErrInvalidAlignment indicates a shadow ratio (body alignment) that
	// is not a positive power of two.
	ErrInvalidAlignment = errors.New("heap: shadow ratio must be a positive power of two")

	// ErrInvariantBroken is the panic value raised when debug checks are
	// enabled (see WithDebugChecks) and internal bookkeeping has diverged
	// from the queues it tracks. It is never returned as an error. Without
	// debug checks these cross-checks are not run, and such a divergence is
	// not detected or reported.
	ErrInvariantBroken = errors.New("heap: internal invariant violated")
)
