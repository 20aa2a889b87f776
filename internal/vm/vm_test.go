package vm

import (
	"testing"
)

func TestReserveReleaseRoundTrip(t *testing.T) {
	size := PageSize * 4
	r, err := Reserve(size)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if r.Size != size {
		t.Fatalf("size mismatch: got %d want %d", r.Size, size)
	}
	if len(r.Data) != size {
		t.Fatalf("data len mismatch: got %d want %d", len(r.Data), size)
	}
	if r.Base%uintptr(PageSize) != 0 {
		t.Fatalf("base 0x%x is not page-aligned", r.Base)
	}

	// Writable by default.
	r.Data[0] = 0x42
	if r.Data[0] != 0x42 {
		t.Fatalf("write did not stick")
	}

	if err := Release(r); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

func TestReserveRejectsNonPageMultiple(t *testing.T) {
	if _, err := Reserve(PageSize + 1); err == nil {
		t.Fatalf("expected error for non-page-aligned size")
	}
}

func TestReserveRejectsNonPositive(t *testing.T) {
	if _, err := Reserve(0); err == nil {
		t.Fatalf("expected error for zero size")
	}
	if _, err := Reserve(-PageSize); err == nil {
		t.Fatalf("expected error for negative size")
	}
}

func TestProtectTogglesNoAccessAndReadWrite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping protection toggle test in short mode")
	}
	size := PageSize * 2
	r, err := Reserve(size)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	defer Release(r) //nolint:errcheck // best-effort cleanup

	second := r.Base + uintptr(PageSize)
	if err := Protect(second, PageSize, NoAccess); err != nil {
		t.Fatalf("Protect(NoAccess): %v", err)
	}

	// Restoring access must succeed and make the page usable again.
	if err := Protect(second, PageSize, ReadWrite); err != nil {
		t.Fatalf("Protect(ReadWrite): %v", err)
	}
	r.Data[PageSize] = 0x7

	if err := Protect(second, PageSize, NoAccess); err != nil {
		t.Fatalf("Protect(NoAccess) again: %v", err)
	}
}

func TestProtectRejectsUnalignedAddr(t *testing.T) {
	size := PageSize * 2
	r, err := Reserve(size)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	defer Release(r) //nolint:errcheck // best-effort cleanup

	if err := Protect(r.Base+1, PageSize, NoAccess); err == nil {
		t.Fatalf("expected error for unaligned addr")
	}
}
