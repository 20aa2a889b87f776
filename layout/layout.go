// Package layout computes the header/body/trailer byte offsets for a single
// block allocation, given the body's size and the caller's redzone and
// alignment requirements.
//
// It has no notion of pages, slabs, or guards — those are the heap's
// concern.
package layout

import "fmt"

// HeaderSize is the fixed number of bytes every block reserves ahead of any
// caller-requested left redzone, regardless of alignment. It is small and
// constant because the heap tracks allocation metadata out of band (in the
// slab table), not inside the block itself — this space exists purely so a
// non-zero header region always exists for a caller that wants to stash a
// canary value there.
const HeaderSize = 8

// Layout is the computed placement of a single block.
type Layout struct {
	HeaderSize     int32 // bytes of fixed header preceding any redzone
	HeaderPadding  int32 // additional left-redzone padding after the header
	BodyOffset     int32 // offset of the body's first byte, relative to the block start
	BodySize       int32 // the body size this layout was computed for
	TrailerPadding int32 // gap between the body's last byte and the trailer
	TrailerSize    int32 // right-redzone size recorded after the trailer padding
	TotalSize      int32 // BodyOffset + BodySize + TrailerPadding + TrailerSize
}

// ComputeLayout places a body of bodySize bytes such that:
//   - the body starts at an offset that is a multiple of bodyAlignment
//   - at least minLeftRZ bytes separate the block start from the body
//   - at least minRightRZ bytes of trailer follow the body, after the
//     bodyTrailingPad gap the caller supplies
//
// bodyTrailingPad lets a caller make the trailer start on some external
// boundary (e.g. a page boundary): once the body's offset has been chosen so
// the body ends at or just before that boundary, the caller passes the
// remaining distance to it (0 when the body ends exactly there) — see the
// heap package's placement code for that usage.
func ComputeLayout(bodySize, minLeftRZ, minRightRZ, bodyAlignment, bodyTrailingPad int32) (Layout, error) {
	if bodySize < 0 {
		return Layout{}, fmt.Errorf("layout: bodySize must be >= 0, got %d", bodySize)
	}
	if minLeftRZ < 0 || minRightRZ < 0 || bodyTrailingPad < 0 {
		return Layout{}, fmt.Errorf("layout: redzone and trailing pad sizes must be >= 0")
	}
	if bodyAlignment <= 0 || bodyAlignment&(bodyAlignment-1) != 0 {
		return Layout{}, fmt.Errorf("layout: bodyAlignment must be a positive power of two, got %d", bodyAlignment)
	}

	minBodyOffset := max32(HeaderSize, minLeftRZ)
	bodyOffset := alignUp32(minBodyOffset, bodyAlignment)
	headerPadding := bodyOffset - HeaderSize

	return Layout{
		HeaderSize:     HeaderSize,
		HeaderPadding:  headerPadding,
		BodyOffset:     bodyOffset,
		BodySize:       bodySize,
		TrailerPadding: bodyTrailingPad,
		TrailerSize:    minRightRZ,
		TotalSize:      bodyOffset + bodySize + bodyTrailingPad + minRightRZ,
	}, nil
}

func alignUp32(n, alignment int32) int32 {
	return (n + alignment - 1) &^ (alignment - 1)
}

func max32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}
