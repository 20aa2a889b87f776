// Package heap implements the Zebra Block Heap: a slab-indexed
// virtual-memory allocator that places every allocation's body flush
// against an unreadable guard page, so that most right-side overflows
// fault immediately instead of corrupting adjacent data.
//
// # Overview
//
// The heap reserves one contiguous region of virtual memory sized to hold
// an integral number of slabs. A slab is two adjacent system pages: an even
// page (the allocation lives here) followed by an odd page, permanently
// mapped with no access. Slabs are identified by a zero-based index and
// move through three states: Free, Allocated, and Quarantined.
//
//	fa, err := heap.New(8 * heap.SlabSize())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer fa.Close()
//
//	ptr, info, err := fa.AllocateBlock(96, 8, 8)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	// ptr+96 is the first byte of the guard page; writing there faults.
//
//	if !fa.FreeBlock(info) {
//	    log.Fatal("block not owned by this heap")
//	}
//
// # Quarantine
//
// Freed blocks can instead be quarantined to delay reuse of their slab, so
// a use-after-free access touches memory no newer allocation has taken
// over yet. A quarantined block's page stays writable; the heap does not
// reprotect it:
//
//	outcome, err := fa.Push(info)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if outcome == heap.SyncTrimRequired {
//	    evicted, _, _ := fa.Pop() // always required, same call sequence
//	    _ = evicted
//	}
//
// The quarantine is a bounded FIFO: its capacity is a fraction of total
// heap bytes (the quarantine ratio), not a fixed entry count. Every
// successful Push returns SyncTrimRequired and is normally followed by
// exactly one Pop; Push itself rejects a block once the quarantine is at its
// bound, so the ratio bound holds even while trims are deferred — see
// Push's documentation.
//
// # Thread safety
//
// Every exported method on Heap, except the LockID, Lock and Unlock hooks
// (which do no locking), acquires the heap's single internal lock on entry
// and releases it on every exit path. The three roles the lock
// guards — whole-heap bookkeeping, block allocation, and quarantine
// management — are exposed as the HeapInterface, BlockHeapInterface, and
// BlockQuarantineInterface facets, all implemented by *Heap. Because each
// facet method takes the lock exactly once and never calls another
// exported method while holding it, the lock never needs to be reentrant;
// Push and Pop remain two separate calls a caller issues back to back.
package heap
