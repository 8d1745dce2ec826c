// Package typed reinterprets a region.NamedRegion's raw bytes as a single
// value of type T, or as a contiguous slice of N values of type T.
//
// T must be a self-contained plain-old-data value: no pointers, no slices,
// no maps, no interfaces — anything that would make a copy across process
// boundaries meaningless or dangerous (spec.md §3, §9 "no pointers in
// shared payloads"). Go cannot enforce this structurally for an arbitrary
// generic T the way a language with an unsafe/Copy trait bound could; it is
// documented here as the contract callers must uphold, same as the
// original Rust implementation's `Copy` bound.
package typed

import (
	"fmt"
	"unsafe"

	"hotreload/region"
)

// Region is a typed view of a NamedRegion holding exactly one T.
type Region[T any] struct {
	backing *region.NamedRegion
	offset  uintptr
	ptr     *T
}

// Slice is a typed view of a NamedRegion holding length consecutive Ts.
type Slice[T any] struct {
	backing *region.NamedRegion
	offset  uintptr
	length  int
}

// alignedSize returns the size to allocate for requested bytes of T: the
// requested size plus one alignment's worth of headroom, so a T-aligned
// pointer exists within the mapping wherever it lands. The returned offset
// is always 0; Value and NewSlice compute the real offset once the mapping
// address is known. Most OS shared-memory allocators already return
// page-aligned addresses (far stricter than any POD type's alignment), so
// that offset is 0 in the overwhelmingly common case; the headroom exists
// for hosts that don't guarantee this (spec.md §4.2).
func alignedSize[T any](requested uintptr) (size uintptr, offset uintptr) {
	var zero T
	align := uintptr(unsafe.Alignof(zero))
	if align <= 1 {
		return requested, 0
	}
	// Request one extra alignment's worth of headroom; the offset is
	// computed once the actual mapping address is known (see Value and
	// NewSlice).
	return requested + align, 0
}

func alignOffset(addr uintptr, align uintptr) uintptr {
	if align <= 1 {
		return 0
	}
	rem := addr % align
	if rem == 0 {
		return 0
	}
	return align - rem
}

// Value constructs a Region[T] backed by a NamedRegion with the given
// identifier: created if isOwner, opened otherwise.
func Value[T any](isOwner bool, identifier string) (*Region[T], error) {
	var zero T
	rawSize := unsafe.Sizeof(zero)
	allocSize, _ := alignedSize[T](rawSize)

	backing, err := attach(isOwner, identifier, allocSize)
	if err != nil {
		return nil, err
	}

	base := unsafe.Pointer(unsafe.SliceData(backing.Bytes()))
	offset := alignOffset(uintptr(base), uintptr(unsafe.Alignof(zero)))
	if offset+rawSize > uintptr(len(backing.Bytes())) {
		backing.Close()
		return nil, fmt.Errorf("typed: region %q too small for aligned %T (need offset %d + %d bytes, have %d)",
			identifier, zero, offset, rawSize, len(backing.Bytes()))
	}

	ptr := (*T)(unsafe.Add(base, offset))
	return &Region[T]{backing: backing, offset: offset, ptr: ptr}, nil
}

// Get returns a pointer to the shared T. There is no synchronization here;
// concurrent mutation across processes is the application's responsibility
// unless a channel or mutex is layered on top (spec.md §4.2).
func (r *Region[T]) Get() *T { return r.ptr }

// Identifier returns the backing region's OS object name.
func (r *Region[T]) Identifier() string { return r.backing.Identifier() }

// Close releases the backing region.
func (r *Region[T]) Close() error { return r.backing.Close() }

// NewSlice constructs a Slice[T] of the given length, backed by a
// NamedRegion with the given identifier: created if isOwner, opened
// otherwise. Both processes must pass the same length — the schema layer
// guarantees this by construction (spec.md §4.7).
func NewSlice[T any](isOwner bool, identifier string, length int) (*Slice[T], error) {
	if length <= 0 {
		return nil, fmt.Errorf("typed: slice length must be positive, got %d", length)
	}
	var zero T
	elemSize := unsafe.Sizeof(zero)
	rawSize := elemSize * uintptr(length)
	allocSize, _ := alignedSize[T](rawSize)

	backing, err := attach(isOwner, identifier, allocSize)
	if err != nil {
		return nil, err
	}

	base := unsafe.Pointer(unsafe.SliceData(backing.Bytes()))
	offset := alignOffset(uintptr(base), uintptr(unsafe.Alignof(zero)))
	if offset+rawSize > uintptr(len(backing.Bytes())) {
		backing.Close()
		return nil, fmt.Errorf("typed: region %q too small for aligned [%d]%T (need offset %d + %d bytes, have %d)",
			identifier, length, zero, offset, rawSize, len(backing.Bytes()))
	}

	return &Slice[T]{backing: backing, offset: offset, length: length}, nil
}

// Get returns the shared [T] of the agreed length. There is no
// synchronization here; see Region[T].Get.
func (s *Slice[T]) Get() []T {
	base := unsafe.Pointer(unsafe.SliceData(s.backing.Bytes()))
	ptr := (*T)(unsafe.Add(base, s.offset))
	return unsafe.Slice(ptr, s.length)
}

// Length returns the agreed element count.
func (s *Slice[T]) Length() int { return s.length }

// Identifier returns the backing region's OS object name.
func (s *Slice[T]) Identifier() string { return s.backing.Identifier() }

// Close releases the backing region.
func (s *Slice[T]) Close() error { return s.backing.Close() }

func attach(isOwner bool, identifier string, size uintptr) (*region.NamedRegion, error) {
	if isOwner {
		return region.Create(identifier, size)
	}
	return region.Open(identifier)
}
