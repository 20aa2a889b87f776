package heap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestHeap(t *testing.T, slabs int, opts ...Option) *Heap {
	t.Helper()
	h, err := New(slabs*SlabSize(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestNewRejectsBadSize(t *testing.T) {
	_, err := New(0)
	require.ErrorIs(t, err, ErrInvalidSize)

	_, err = New(SlabSize() - 1)
	require.ErrorIs(t, err, ErrInvalidSize)
}

func TestNewRejectsBadRatio(t *testing.T) {
	_, err := New(4*SlabSize(), WithQuarantineRatio(-0.1))
	require.ErrorIs(t, err, ErrInvalidRatio)

	_, err = New(4*SlabSize(), WithQuarantineRatio(1.5))
	require.ErrorIs(t, err, ErrInvalidRatio)
}

func TestNewRejectsBadShadowRatio(t *testing.T) {
	_, err := New(4*SlabSize(), WithShadowRatio(3))
	require.ErrorIs(t, err, ErrInvalidAlignment)
}

func TestStatsAfterConstruction(t *testing.T) {
	h := newTestHeap(t, 8)
	s := h.Stats()
	require.Equal(t, 8, s.SlabCount)
	require.Equal(t, 8, s.FreeSlabs)
	require.Zero(t, s.AllocatedSlabs)
	require.Zero(t, s.QuarantinedSlabs)
}

func TestAllocateBlockFlushesAgainstGuardPage(t *testing.T) {
	h := newTestHeap(t, 4)

	body, info, err := h.AllocateBlock(100, 8, 8)
	require.NoError(t, err)
	require.Equal(t, info.Body, body)

	pageEnd := info.Header + uintptr(h.pageSize)
	require.LessOrEqual(t, body+uintptr(info.BodySize), pageEnd)
	require.Greater(t, body+uintptr(info.BodySize)+uintptr(h.shadowRatio), pageEnd,
		"body should end within one alignment unit of the guard page")
}

func TestAllocateBlockRejectsOversizeBody(t *testing.T) {
	h := newTestHeap(t, 2)
	_, _, err := h.AllocateBlock(h.maxBlockAllocationSize+1, 0, 0)
	require.ErrorIs(t, err, ErrTooLarge)
}

func TestAllocateBlockRejectsRightRedzonePastGuardPage(t *testing.T) {
	h := newTestHeap(t, 2)
	_, _, err := h.AllocateBlock(16, 0, h.pageSize+1)
	require.ErrorIs(t, err, ErrTooLarge)
}

func TestAllocateRejectsOversize(t *testing.T) {
	h := newTestHeap(t, 2)
	_, err := h.Allocate(h.pageSize + 1)
	require.ErrorIs(t, err, ErrTooLarge)

	// A full page is the raw path's maximum and fills the even page exactly.
	addr, err := h.Allocate(h.pageSize)
	require.NoError(t, err)
	require.Zero(t, addr%uintptr(h.pageSize), "a full-page buffer must start at the slab base")
}

func TestAllocateAbutsGuardPage(t *testing.T) {
	h := newTestHeap(t, 2)

	addr, err := h.Allocate(100)
	require.NoError(t, err)
	require.Zero(t, addr%ptrAlign)

	idx := int((addr - h.region.Base) / uintptr(h.slabSize))
	pageEnd := h.headerAddress(idx) + uintptr(h.pageSize)
	end := addr + 100
	require.LessOrEqual(t, end, pageEnd)
	require.Less(t, pageEnd-end, uintptr(ptrAlign),
		"buffer end must sit within one pointer-alignment step of the guard page")
}

func TestOutOfCapacityOnExhaustion(t *testing.T) {
	h := newTestHeap(t, 2)
	for i := 0; i < 2; i++ {
		_, _, err := h.AllocateBlock(16, 0, 0)
		require.NoError(t, err)
	}
	_, _, err := h.AllocateBlock(16, 0, 0)
	require.ErrorIs(t, err, ErrOutOfCapacity)
}

func TestFreeBlockRoundTrip(t *testing.T) {
	h := newTestHeap(t, 2)
	_, info, err := h.AllocateBlock(32, 0, 0)
	require.NoError(t, err)

	require.True(t, h.IsAllocated(info.Header))
	require.True(t, h.FreeBlock(info))
	require.False(t, h.IsAllocated(info.Header))

	state, _, ok := h.Describe(info.SlabIndex)
	require.True(t, ok)
	require.Equal(t, Free, state)
}

func TestFreeBlockRejectsForeignAddress(t *testing.T) {
	h := newTestHeap(t, 2)
	foreign := BlockInfo{SlabIndex: 0, Header: 0xdeadbeef}
	require.False(t, h.FreeBlock(foreign))
}

func TestFreeBlockRejectsDoubleFree(t *testing.T) {
	h := newTestHeap(t, 2)
	_, info, err := h.AllocateBlock(32, 0, 0)
	require.NoError(t, err)
	require.True(t, h.FreeBlock(info))
	require.False(t, h.FreeBlock(info))
}

func TestIsAllocatedRequiresExactHeaderAddress(t *testing.T) {
	h := newTestHeap(t, 2)
	body, info, err := h.AllocateBlock(64, 8, 8)
	require.NoError(t, err)
	require.True(t, h.IsAllocated(info.Header))
	if body != info.Header {
		require.False(t, h.IsAllocated(body))
	}
	require.False(t, h.IsAllocated(body+1))
}

func TestGetAllocationSize(t *testing.T) {
	h := newTestHeap(t, 2)
	_, info, err := h.AllocateBlock(48, 0, 0)
	require.NoError(t, err)

	size, ok := h.GetAllocationSize(info.Header)
	require.True(t, ok)
	require.Equal(t, uint32(48), size)

	_, ok = h.GetAllocationSize(info.Header + uintptr(h.slabSize))
	require.False(t, ok)
}

func TestRawAllocateFreeRoundTrip(t *testing.T) {
	h := newTestHeap(t, 2)
	addr, err := h.Allocate(128)
	require.NoError(t, err)
	require.True(t, h.IsAllocated(addr))
	require.True(t, h.Free(addr))
	require.False(t, h.IsAllocated(addr))
}
