package buffer

import "fmt"

// Allocations is the read-only table that resolves slices to live memory.
// Index i of the table backs every slice with Alloc == i. The table is
// built once per run by the caller and never mutated by the execution core.
type Allocations struct {
	base [][]byte
}

// NewAllocations wraps the given backing buffers into an allocation table.
// The table borrows the buffers; it does not copy them.
func NewAllocations(base [][]byte) *Allocations {
	return &Allocations{base: base}
}

// Count returns the number of allocations in the table.
func (a *Allocations) Count() int {
	return len(a.base)
}

// Size returns the byte size of the given allocation.
func (a *Allocations) Size(alloc int) (int64, error) {
	if alloc < 0 || alloc >= len(a.base) {
		return 0, fmt.Errorf("allocation %d out of range (have %d allocations)", alloc, len(a.base))
	}
	return int64(len(a.base[alloc])), nil
}

// Resolve returns the live byte view of the given slice. It fails when the
// allocation index is unknown or the slice escapes the allocation's bounds.
func (a *Allocations) Resolve(s Slice) ([]byte, error) {
	if s.Alloc < 0 || s.Alloc >= len(a.base) {
		return nil, fmt.Errorf("slice %s: allocation out of range (have %d allocations)", s, len(a.base))
	}
	buf := a.base[s.Alloc]
	if s.Offset < 0 || s.Len < 0 || s.End() > int64(len(buf)) {
		return nil, fmt.Errorf("slice %s escapes allocation of %d bytes", s, len(buf))
	}
	return buf[s.Offset:s.End():s.End()], nil
}
