package heap

import (
	"testing"
)

// Benchmark_AllocateFreeBlock benchmarks the block allocate/free round trip,
// the hot path a sanitizer runtime drives on every instrumented malloc/free
// pair.
func Benchmark_AllocateFreeBlock(b *testing.B) {
	h, err := New(64 * SlabSize())
	if err != nil {
		b.Fatal(err)
	}
	defer h.Close()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		size := int32(16 + (i%64)*8)
		_, info, allocErr := h.AllocateBlock(size, 8, 8)
		if allocErr != nil {
			b.Fatal(allocErr)
		}
		if !h.FreeBlock(info) {
			b.Fatal("free failed")
		}
	}
}

// Benchmark_RawAllocateFree benchmarks the raw slab path, which skips the
// layout arithmetic entirely.
func Benchmark_RawAllocateFree(b *testing.B) {
	h, err := New(64 * SlabSize())
	if err != nil {
		b.Fatal(err)
	}
	defer h.Close()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		ptr, allocErr := h.Allocate(int32(32 + i%128))
		if allocErr != nil {
			b.Fatal(allocErr)
		}
		if !h.Free(ptr) {
			b.Fatal("free failed")
		}
	}
}

// Benchmark_QuarantineCycle benchmarks the full allocate → push → pop cycle
// the quarantine's synchronous trim contract imposes on every free.
func Benchmark_QuarantineCycle(b *testing.B) {
	h, err := New(64*SlabSize(), WithQuarantineRatio(0.25))
	if err != nil {
		b.Fatal(err)
	}
	defer h.Close()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_, info, allocErr := h.AllocateBlock(64, 8, 8)
		if allocErr != nil {
			b.Fatal(allocErr)
		}
		outcome, pushErr := h.Push(info)
		if pushErr != nil {
			b.Fatal(pushErr)
		}
		if outcome != SyncTrimRequired {
			b.Fatal("push rejected")
		}
		if _, _, ok := h.Pop(); !ok {
			b.Fatal("pop returned empty")
		}
	}
}
