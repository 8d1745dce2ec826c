// Package region provides NamedRegion: a thin wrapper over OS named shared
// memory, created or opened by a short identifier and mapped into the
// current process's address space.
package region

import (
	"errors"
	"fmt"
)

// maxIdentifierLen is the tightest host OS name-length limit this framework
// targets (macOS's shm_open name limit). Identifiers of exactly this length
// are rejected so that every platform this framework runs on agrees.
const maxIdentifierLen = 32

// Sentinel errors. Compare with errors.Is; construction errors are fatal to
// the caller (see spec.md §7).
var (
	// ErrIdentifierTooLong is returned when len(identifier) >= 32.
	ErrIdentifierTooLong = errors.New("region: identifier too long")
	// ErrAllocationFailed is returned when the OS refuses to create the
	// backing object (permissions, resource exhaustion, mapping failure).
	ErrAllocationFailed = errors.New("region: allocation failed")
	// ErrNotFound is returned by Open when no such identifier exists.
	ErrNotFound = errors.New("region: not found")
)

// NamedRegion is a contiguous byte range backed by a named OS shared-memory
// object, mapped into this process's address space. Exactly one process
// creates a given identifier per lifetime (IsOwner() == true there); every
// other process opens it.
type NamedRegion struct {
	identifier string
	size       uintptr
	isOwner    bool
	impl       regionImpl
}

// regionImpl is the platform-specific half: a memory-mapped byte slice plus
// whatever handle(s) the OS needs to unmap/unlink on Close.
type regionImpl interface {
	bytes() []byte
	close(unlink bool) error
}

// Identifier returns the OS object name backing this region.
func (r *NamedRegion) Identifier() string { return r.identifier }

// Size returns the region's size in bytes.
func (r *NamedRegion) Size() uintptr { return r.size }

// IsOwner reports whether this handle created (rather than opened) the
// region.
func (r *NamedRegion) IsOwner() bool { return r.isOwner }

// Bytes returns the mapped byte slice backing the region. Callers that need
// a typed view should use the typed package rather than casting this slice
// directly.
func (r *NamedRegion) Bytes() []byte { return r.impl.bytes() }

// Close unmaps the region. If this handle is the owner, the OS object name
// is also unlinked, freeing it for reuse.
func (r *NamedRegion) Close() error {
	if r == nil || r.impl == nil {
		return nil
	}
	return r.impl.close(r.isOwner)
}

func validateIdentifier(identifier string) error {
	if len(identifier) >= maxIdentifierLen {
		return fmt.Errorf("%w: %q is %d bytes, must be < %d", ErrIdentifierTooLong, identifier, len(identifier), maxIdentifierLen)
	}
	if identifier == "" {
		return fmt.Errorf("%w: empty identifier", ErrIdentifierTooLong)
	}
	return nil
}

// Create allocates identifier as a new named shared-memory region of size
// bytes, zero-initialized. Any prior OS object with this name is first
// unlinked (force-create), recovering from a previous unclean exit — see
// spec.md §4.1 and §8 ("owner crash followed by owner restart succeeds").
func Create(identifier string, size uintptr) (*NamedRegion, error) {
	if err := validateIdentifier(identifier); err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, fmt.Errorf("%w: zero-size region %q", ErrAllocationFailed, identifier)
	}
	impl, err := createImpl(identifier, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAllocationFailed, err)
	}
	return &NamedRegion{identifier: identifier, size: size, isOwner: true, impl: impl}, nil
}

// Open attaches to an already-created named shared-memory region.
func Open(identifier string) (*NamedRegion, error) {
	if err := validateIdentifier(identifier); err != nil {
		return nil, err
	}
	impl, size, err := openImpl(identifier)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return &NamedRegion{identifier: identifier, size: size, isOwner: false, impl: impl}, nil
}
