package heap

import (
	"math"
	"math/bits"
	"sync"

	"github.com/joshuapare/zebraheap/internal/logging"
	"github.com/joshuapare/zebraheap/internal/vm"
	"github.com/joshuapare/zebraheap/layout"
	"github.com/joshuapare/zebraheap/notify"
)

// Stats is a point-in-time snapshot of heap activity, returned by
// (*Heap).Stats.
type Stats struct {
	SlabCount           int
	FreeSlabs           int
	AllocatedSlabs      int
	QuarantinedSlabs    int
	Allocations         int64
	Frees               int64
	OutOfCapacity       int64
	QuarantinePushes    int64
	QuarantinePops      int64
	MaxQuarantinedSlabs int
}

// Heap is a slab-indexed guard-page allocator. The zero value is not
// usable; construct one with New.
type Heap struct {
	mu sync.Mutex

	region   vm.Region
	pageSize int32
	slabSize int32

	maxRawAllocationSize   int32
	maxBlockAllocationSize int32
	shadowRatio            int32

	notifier notify.Notifier

	slabs           []slabEntry
	freeQueue       intQueue
	quarantineQueue intQueue

	ratio               float64
	maxQuarantinedSlabs int

	debugChecks bool
	closed      bool

	stats Stats
}

// SlabSize returns the size in bytes of one slab (two system pages) on the
// running system. It is provided so callers can size a reservation in
// whole slabs without hard-coding the page size.
func SlabSize() int {
	return 2 * vm.PageSize
}

// New rounds size down to a multiple of SlabSize(), reserves that many bytes
// of virtual memory, lays it out as size/SlabSize() slabs, and mprotects
// every odd page as a permanent guard page. size must cover at least one
// slab.
func New(size int, opts ...Option) (*Heap, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.ratio < 0 || cfg.ratio > 1 {
		return nil, ErrInvalidRatio
	}
	if cfg.shadowRatio <= 0 || bits.OnesCount32(uint32(cfg.shadowRatio)) != 1 {
		return nil, ErrInvalidAlignment
	}

	pageSize := int32(vm.PageSize)
	slabSize := 2 * pageSize
	size -= size % int(slabSize)
	if size <= 0 {
		return nil, ErrInvalidSize
	}

	region, err := vm.Reserve(size)
	if err != nil {
		return nil, err
	}

	slabCount := size / int(slabSize)
	h := &Heap{
		region:                 region,
		pageSize:               pageSize,
		slabSize:               slabSize,
		maxRawAllocationSize:   pageSize,
		maxBlockAllocationSize: pageSize - layout.HeaderSize,
		shadowRatio:            cfg.shadowRatio,
		notifier:               cfg.notifier,
		slabs:                  make([]slabEntry, slabCount),
		ratio:                  cfg.ratio,
		maxQuarantinedSlabs:    int(math.Floor(cfg.ratio * float64(slabCount))),
		debugChecks:            cfg.debugChecks,
	}
	for i := 0; i < slabCount; i++ {
		h.freeQueue.push(i)
		guardAddr := region.Base + uintptr(i)*uintptr(slabSize) + uintptr(pageSize)
		if err := vm.Protect(guardAddr, int(pageSize), vm.NoAccess); err != nil {
			_ = vm.Release(region)
			return nil, err
		}
	}

	h.notifier.NotifyReservation(notify.Range{Base: region.Base, Size: size})
	logging.L.Info("heap constructed", "slabs", slabCount, "slab_size", slabSize, "ratio", cfg.ratio)
	return h, nil
}

// Close releases the heap's entire reservation back to the OS. The heap
// must not be used afterward.
func (h *Heap) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	h.notifier.NotifyReturnedToOS(notify.Range{Base: h.region.Base, Size: h.region.Size})
	return vm.Release(h.region)
}

func (h *Heap) headerAddress(slabIndex int) uintptr {
	return h.region.Base + uintptr(slabIndex)*uintptr(h.slabSize)
}

// indexOf returns the slab index owning addr, and whether addr falls
// within this heap's reservation at all.
func (h *Heap) indexOf(addr uintptr) (int, bool) {
	if addr < h.region.Base {
		return 0, false
	}
	offset := addr - h.region.Base
	if offset >= uintptr(h.region.Size) {
		return 0, false
	}
	idx := int(offset / uintptr(h.slabSize))
	return idx, true
}

// ptrAlign is the only alignment the raw Allocate path promises. Callers
// that need more go through AllocateBlock.
const ptrAlign = bits.UintSize / 8

// Allocate reserves one slab and returns a buffer of bytes bytes whose last
// byte abuts the slab's guard page, so the first overflowing write faults.
// The returned address is aligned only to the pointer size; AllocateBlock is
// the layout-aware facet most callers want.
func (h *Heap) Allocate(bytes int32) (uintptr, error) {
	if bytes < 0 || bytes > h.maxRawAllocationSize {
		return 0, ErrTooLarge
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	idx, err := h.takeFreeSlabLocked()
	if err != nil {
		return 0, err
	}
	slabBase := h.headerAddress(idx)
	pageEnd := slabBase + uintptr(h.pageSize)
	// Right-align the buffer against the guard page, then round the start
	// down to the pointer size. Rounding down can only grow the buffer
	// leftward, never push its end past the boundary.
	ptr := (pageEnd - uintptr(bytes)) &^ (ptrAlign - 1)
	h.slabs[idx] = slabEntry{state: Allocated, block: &BlockInfo{
		SlabIndex: idx,
		Header:    ptr,
		Body:      ptr,
		BodySize:  bytes,
		TotalSize: int32(pageEnd - ptr),
	}}
	h.stats.Allocations++
	h.notifier.NotifyInternalUse(notify.Range{Base: slabBase, Size: int(h.slabSize)})
	if h.debugChecks {
		h.verifyLocked()
	}
	return ptr, nil
}

// Free releases the slab owning ptr back to Free if ptr is exactly the
// header address its descriptor records and the slab is Allocated. It
// reports false, with no state change, for any other ptr.
func (h *Heap) Free(ptr uintptr) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	idx, ok := h.indexOf(ptr)
	if !ok {
		return false
	}
	entry := h.slabs[idx]
	if entry.state != Allocated || entry.block.Header != ptr {
		return false
	}
	h.freeSlabLocked(idx)
	h.stats.Frees++
	return true
}

// IsAllocated reports whether addr is exactly the header address of a slab
// currently in the Allocated state. Interior and body pointers are not
// recognized, matching the exact-header interpretation of the public API.
func (h *Heap) IsAllocated(addr uintptr) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	idx, ok := h.indexOf(addr)
	if !ok {
		return false
	}
	entry := h.slabs[idx]
	return entry.state == Allocated && entry.block.Header == addr
}

// GetAllocationSize returns the body size recorded for the block at ptr
// (which must be the exact header address its descriptor records) and
// whether one was found in either the Allocated or Quarantined state.
func (h *Heap) GetAllocationSize(ptr uintptr) (uint32, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	idx, ok := h.indexOf(ptr)
	if !ok {
		return 0, false
	}
	entry := h.slabs[idx]
	if entry.block == nil || entry.block.Header != ptr {
		return 0, false
	}
	return uint32(entry.block.BodySize), true
}

// AllocateBlock reserves one slab and places a body of bodySize bytes
// inside it, flush against the slab's guard page, honoring at least
// minLeftRZ bytes before the body and minRightRZ bytes after it (the guard
// page itself serves as the right redzone, since writes past it fault, so
// any minRightRZ up to one page is satisfied; a larger one fails with
// ErrTooLarge).
func (h *Heap) AllocateBlock(bodySize, minLeftRZ, minRightRZ int32) (uintptr, BlockInfo, error) {
	if bodySize < 0 || bodySize > h.maxBlockAllocationSize {
		return 0, BlockInfo{}, ErrTooLarge
	}

	l, err := h.computeFlushLayout(bodySize, minLeftRZ, minRightRZ)
	if err != nil {
		return 0, BlockInfo{}, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	idx, err := h.takeFreeSlabLocked()
	if err != nil {
		return 0, BlockInfo{}, err
	}

	header := h.headerAddress(idx)
	body := header + uintptr(l.BodyOffset)
	info := BlockInfo{
		SlabIndex: idx,
		Header:    header,
		Body:      body,
		BodySize:  bodySize,
		TotalSize: l.TotalSize,
	}
	h.slabs[idx] = slabEntry{state: Allocated, block: &info}
	h.stats.Allocations++
	h.notifier.NotifyInternalUse(notify.Range{Base: header, Size: int(h.slabSize)})
	if h.debugChecks {
		h.verifyLocked()
	}
	return body, info, nil
}

// FreeBlock releases info's slab back to Free. It reports false, with no
// state change, if info does not describe a slab currently Allocated under
// this heap.
func (h *Heap) FreeBlock(info BlockInfo) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.ownsLocked(info) {
		return false
	}
	if h.slabs[info.SlabIndex].state != Allocated {
		return false
	}
	h.freeSlabLocked(info.SlabIndex)
	h.stats.Frees++
	return true
}

// Describe returns the current bookkeeping row for slabIndex, for
// diagnostics and tests.
func (h *Heap) Describe(slabIndex int) (SlabState, *BlockInfo, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if slabIndex < 0 || slabIndex >= len(h.slabs) {
		return Free, nil, false
	}
	e := h.slabs[slabIndex]
	return e.state, e.block, true
}

// Stats returns a snapshot of the heap's current bookkeeping.
func (h *Heap) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.stats
	s.SlabCount = len(h.slabs)
	s.FreeSlabs = h.freeQueue.len()
	s.QuarantinedSlabs = h.quarantineQueue.len()
	s.AllocatedSlabs = s.SlabCount - s.FreeSlabs - s.QuarantinedSlabs
	s.MaxQuarantinedSlabs = h.maxQuarantinedSlabs
	return s
}

// computeFlushLayout derives the layout.Layout that places a bodySize body
// flush against the end of the writable page: the body (rounded up to the
// shadow ratio) ends exactly at the page boundary, so any overflow past it
// lands on the guard page on the very next byte the allocator does not
// already own.
func (h *Heap) computeFlushLayout(bodySize, minLeftRZ, minRightRZ int32) (layout.Layout, error) {
	bodyOffset := h.pageSize - alignUp32(bodySize, h.shadowRatio)
	if floor := alignUp32(max32(minLeftRZ, layout.HeaderSize), h.shadowRatio); bodyOffset < floor {
		bodyOffset = floor
	}
	if bodyOffset+bodySize > h.pageSize {
		return layout.Layout{}, ErrTooLarge
	}
	effectiveMinRightRZ := minRightRZ
	if effectiveMinRightRZ < h.pageSize {
		effectiveMinRightRZ = h.pageSize
	}
	l, err := layout.ComputeLayout(bodySize, bodyOffset, effectiveMinRightRZ, h.shadowRatio, h.pageSize-bodyOffset-bodySize)
	if err != nil {
		return layout.Layout{}, err
	}
	// The trailer lives in the guard page; a right redzone that would run
	// past it cannot be honored.
	if l.TotalSize > h.slabSize {
		return layout.Layout{}, ErrTooLarge
	}
	return l, nil
}

func alignUp32(v, alignment int32) int32 {
	if alignment <= 1 {
		return v
	}
	rem := v % alignment
	if rem == 0 {
		return v
	}
	return v + (alignment - rem)
}

func max32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}

// ownsLocked reports whether info's SlabIndex is in range and its Header
// names that slab: the header the current descriptor records, or the slab
// base when the slab is Free and has no descriptor. A true result says only
// that the address belongs here; callers still check the state. Callers
// must hold h.mu.
func (h *Heap) ownsLocked(info BlockInfo) bool {
	if info.SlabIndex < 0 || info.SlabIndex >= len(h.slabs) {
		return false
	}
	if b := h.slabs[info.SlabIndex].block; b != nil {
		return b.Header == info.Header
	}
	return h.headerAddress(info.SlabIndex) == info.Header
}

// verifyLocked cross-checks the queues against the slab table: the states
// must partition the index space and each queue must hold exactly the
// indices in its state. Only called when debug checks are enabled; a
// divergence here means the allocator itself is corrupt, so it panics
// rather than returning an error the caller could mask.
func (h *Heap) verifyLocked() {
	free, quarantined := 0, 0
	for _, e := range h.slabs {
		switch e.state {
		case Free:
			free++
		case Quarantined:
			quarantined++
		}
	}
	if free != h.freeQueue.len() || quarantined != h.quarantineQueue.len() {
		logging.L.Error("queue lengths diverged from slab table",
			"free", free, "free_queue", h.freeQueue.len(),
			"quarantined", quarantined, "quarantine_queue", h.quarantineQueue.len())
		panic(ErrInvariantBroken)
	}
	for _, i := range h.freeQueue.values() {
		if h.slabs[i].state != Free {
			panic(ErrInvariantBroken)
		}
	}
	for _, i := range h.quarantineQueue.values() {
		if h.slabs[i].state != Quarantined {
			panic(ErrInvariantBroken)
		}
	}
}

// takeFreeSlabLocked pops one index off the free queue and reports
// ErrOutOfCapacity if none remain. Callers must hold h.mu.
func (h *Heap) takeFreeSlabLocked() (int, error) {
	idx, ok := h.freeQueue.pop()
	if !ok {
		h.stats.OutOfCapacity++
		return 0, ErrOutOfCapacity
	}
	if h.debugChecks && h.slabs[idx].state != Free {
		panic(ErrInvariantBroken)
	}
	return idx, nil
}

// freeSlabLocked moves slabIndex to Free and returns it to the free queue.
// Callers must hold h.mu and must have already verified the slab's
// previous state.
func (h *Heap) freeSlabLocked(slabIndex int) {
	h.slabs[slabIndex] = slabEntry{state: Free}
	h.freeQueue.push(slabIndex)
	h.notifier.NotifyInternalUse(notify.Range{Base: h.headerAddress(slabIndex), Size: int(h.slabSize)})
	if h.debugChecks {
		h.verifyLocked()
	}
}
