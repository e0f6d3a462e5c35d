// Package buffer defines the memory footprint vocabulary of the execution
// core: byte slices of numbered allocations, read/write access modes, and
// the conflict predicate the dependency graph is built from. It also holds
// the allocation table that resolves slices to live memory and the allocator
// capability that backs it.
package buffer

import "fmt"

// Access is the declared access mode of a buffer or resource use.
type Access int

const (
	// Read declares that the memory is only read.
	Read Access = iota
	// Write declares that the memory may be written.
	Write
)

// String returns a human-readable access mode name.
func (a Access) String() string {
	switch a {
	case Read:
		return "read"
	case Write:
		return "write"
	default:
		return fmt.Sprintf("access(%d)", int(a))
	}
}

// Slice identifies a contiguous byte range inside a numbered allocation.
// Slices are plain values; they carry no pointer to live memory and are
// resolved against an Allocations table at execution time.
type Slice struct {
	// Alloc is the allocation index the slice belongs to.
	Alloc int
	// Offset is the byte offset of the slice inside its allocation.
	Offset int64
	// Len is the length of the slice in bytes.
	Len int64
}

// NewSlice returns a slice covering [offset, offset+n) of the given allocation.
func NewSlice(alloc int, offset, n int64) Slice {
	return Slice{Alloc: alloc, Offset: offset, Len: n}
}

// End returns the exclusive upper bound of the slice's byte range.
func (s Slice) End() int64 {
	return s.Offset + s.Len
}

// Overlaps reports whether two slices share at least one byte. Slices in
// different allocations never overlap.
func (s Slice) Overlaps(other Slice) bool {
	if s.Alloc != other.Alloc {
		return false
	}
	return s.Offset < other.End() && other.Offset < s.End()
}

// String renders the slice as "a<alloc>[offset:end)".
func (s Slice) String() string {
	return fmt.Sprintf("a%d[%d:%d)", s.Alloc, s.Offset, s.End())
}

// Use pairs a slice with its declared access mode. A unit's buffer footprint
// is an ordered list of uses.
type Use struct {
	Slice  Slice
	Access Access
}

// ReadUse declares a read of the given slice.
func ReadUse(s Slice) Use {
	return Use{Slice: s, Access: Read}
}

// WriteUse declares a write of the given slice.
func WriteUse(s Slice) Use {
	return Use{Slice: s, Access: Write}
}

// String renders the use as "read a0[0:64)".
func (u Use) String() string {
	return fmt.Sprintf("%s %s", u.Access, u.Slice)
}

// Conflicts reports whether two buffer uses must be ordered relative to each
// other: the slices overlap and at least one of the accesses is a write.
// The predicate is symmetric.
func Conflicts(a, b Use) bool {
	if !a.Slice.Overlaps(b.Slice) {
		return false
	}
	return a.Access == Write || b.Access == Write
}
