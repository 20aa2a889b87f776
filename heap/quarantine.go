package heap

import (
	"math"

	"github.com/joshuapare/zebraheap/notify"
)

// Push moves info's slab from Allocated into Quarantined, delaying its
// reuse instead of returning it straight to Free. If the quarantine is
// already at its ratio bound (which a zero ratio makes permanent), Push
// refuses outright and the caller should call FreeBlock or Free instead.
//
// Trimming is synchronous in this heap: every successful Push returns
// SyncTrimRequired and the caller must call Pop exactly once before doing
// anything else with the heap. Pushing without popping is only safe while
// the quarantine stays under its ratio bound; past it, Push rejects.
func (h *Heap) Push(info BlockInfo) (PushOutcome, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.ownsLocked(info) {
		return Rejected, ErrNotOwned
	}
	idx := info.SlabIndex
	if h.slabs[idx].state != Allocated {
		return Rejected, ErrWrongState
	}
	// Refusing at the bound keeps the ratio invariant true after Push
	// itself, not just after the paired Pop.
	if h.quarantineQueue.len() >= h.maxQuarantinedSlabs {
		return Rejected, nil
	}

	h.slabs[idx] = slabEntry{state: Quarantined, block: &info}
	h.quarantineQueue.push(idx)
	h.stats.QuarantinePushes++
	h.notifier.NotifyInternalUse(notify.Range{Base: h.headerAddress(idx), Size: int(h.slabSize)})
	if h.debugChecks {
		h.verifyLocked()
	}
	return SyncTrimRequired, nil
}

// Pop evicts the oldest quarantined block, returning its slab to Free. It
// reports ok=false if the quarantine is empty. Every eviction this
// implementation produces is Green; Color exists for parity with
// temperature-aware quarantines that can report otherwise.
func (h *Heap) Pop() (BlockInfo, Color, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	idx, ok := h.quarantineQueue.pop()
	if !ok {
		return BlockInfo{}, Green, false
	}
	info := *h.slabs[idx].block
	h.freeSlabLocked(idx)
	h.stats.QuarantinePops++
	return info, Green, true
}

// Empty evicts every quarantined block, returning their slabs to Free, and
// reports the evicted blocks in FIFO order.
func (h *Heap) Empty() []BlockInfo {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]BlockInfo, 0, h.quarantineQueue.len())
	for {
		idx, ok := h.quarantineQueue.pop()
		if !ok {
			break
		}
		out = append(out, *h.slabs[idx].block)
		h.freeSlabLocked(idx)
		h.stats.QuarantinePops++
	}
	return out
}

// SetQuarantineRatio changes the fraction of total slabs the quarantine may
// hold. It never trims by itself: if the quarantine already holds more than
// the new bound allows, further pushes are rejected until Pop or Empty
// brings it back under.
func (h *Heap) SetQuarantineRatio(r float64) error {
	if r < 0 || r > 1 {
		return ErrInvalidRatio
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ratio = r
	h.maxQuarantinedSlabs = int(math.Floor(r * float64(len(h.slabs))))
	return nil
}

// QuarantineRatio returns the currently configured ratio.
func (h *Heap) QuarantineRatio() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ratio
}

// LockID returns the identifier a sharded quarantine would use to pick
// info's shard lock. This heap has a single shard, so every block maps to
// the same id; the method exists so BlockQuarantineInterface matches a
// sharded implementation's shape.
func (h *Heap) LockID(info BlockInfo) int {
	return 0
}

// Lock is a no-op. A sharded quarantine would take id's shard lock here;
// this heap has a single shard and every exported method already takes the
// heap's own lock, so a caller may bracket Push or Pop with Lock/Unlock
// without deadlocking.
func (h *Heap) Lock(id int) {}

// Unlock is the no-op counterpart of Lock.
func (h *Heap) Unlock(id int) {}
