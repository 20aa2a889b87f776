// Package vm provides the virtual-memory primitives the block heap is built
// on: reserving a contiguous anonymous range, releasing it, and toggling
// page protection between writable and inaccessible.
package vm

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Mode selects the protection state applied to a page range.
type Mode int

const (
	// NoAccess marks pages inaccessible; any read or write faults.
	NoAccess Mode = iota
	// ReadWrite marks pages readable and writable.
	ReadWrite
)

// PageSize is the process's page size, read once at package init via the
// OS rather than hardcoded, matching real page sizes on non-4KB platforms.
var PageSize = unix.Getpagesize()

// Region describes a reserved virtual-memory range. Data is the live byte
// slice backing the mapping; Base is its address, kept separately because
// Protect and the heap's own indexing are expressed in terms of addresses,
// not slices.
type Region struct {
	Base uintptr
	Size int
	Data []byte
}

// Reserve maps size bytes (rounded up by the caller to a multiple of
// PageSize) of anonymous, writable memory and returns its base address.
//
// The mapping is PROT_READ|PROT_WRITE, MAP_PRIVATE|MAP_ANONYMOUS: it is
// never backed by a file and never shared with another process.
func Reserve(size int) (Region, error) {
	if size <= 0 {
		return Region{}, fmt.Errorf("vm: reserve size must be positive, got %d", size)
	}
	if size%PageSize != 0 {
		return Region{}, fmt.Errorf("vm: reserve size %d is not a multiple of page size %d", size, PageSize)
	}

	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return Region{}, fmt.Errorf("vm: mmap reserve %d bytes: %w", size, err)
	}

	return Region{Base: sliceBase(data), Size: size, Data: data}, nil
}

// Release unmaps a region previously returned by Reserve. Callers must not
// touch the range afterward.
func Release(r Region) error {
	if r.Size == 0 {
		return nil
	}
	if err := unix.Munmap(r.Data); err != nil {
		return fmt.Errorf("vm: munmap base=0x%x size=%d: %w", r.Base, r.Size, err)
	}
	return nil
}

// Protect changes the protection of the length bytes starting at addr.
// addr and length must be page-aligned; the heap never calls Protect with
// anything else since every guard page is exactly one system page.
func Protect(addr uintptr, length int, mode Mode) error {
	if length <= 0 {
		return fmt.Errorf("vm: protect length must be positive, got %d", length)
	}
	if int(addr)%PageSize != 0 {
		return fmt.Errorf("vm: protect addr 0x%x is not page-aligned", addr)
	}

	var prot int
	switch mode {
	case NoAccess:
		prot = unix.PROT_NONE
	case ReadWrite:
		prot = unix.PROT_READ | unix.PROT_WRITE
	default:
		return fmt.Errorf("vm: unknown protection mode %d", mode)
	}

	data := bytesAt(addr, length)
	if err := unix.Mprotect(data, prot); err != nil {
		return fmt.Errorf("vm: mprotect addr=0x%x length=%d mode=%d: %w", addr, length, mode, err)
	}
	return nil
}

// bytesAt reinterprets the length bytes starting at addr as a slice,
// without copying. addr must come from a live Region (i.e. still mapped);
// the slice is only used to satisfy syscall APIs that take []byte.
func bytesAt(addr uintptr, length int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), length)
}

// sliceBase returns the address of a slice's backing array.
func sliceBase(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}
