package unit

import (
	"github.com/vk/runcore/internal/buffer"
	"github.com/vk/runcore/internal/resource"
)

// Sequence is an ordered, owned collection of units representing one
// compiled region. Slice order is program order: the fallback total order
// when no data dependency exists. A sequence owns its units exclusively and
// is never reordered after construction; it only grows through Append.
type Sequence []Unit

// NewSequence returns a sequence owning the given units.
func NewSequence(units ...Unit) Sequence {
	return Sequence(units)
}

// Append concatenates another sequence, transferring ownership of its units.
// The donor sequence is emptied.
func (s *Sequence) Append(other *Sequence) {
	*s = append(*s, *other...)
	*other = nil
}

// BufferUses returns the union of all contained units' buffer uses, in
// program order. It lets a sequence stand in as an opaque unit's footprint
// when nested inside control flow.
func (s Sequence) BufferUses() []buffer.Use {
	var uses []buffer.Use
	for _, u := range s {
		uses = append(uses, u.BufferUses()...)
	}
	return uses
}

// ResourceUses returns the union of all contained units' resource uses, in
// program order.
func (s Sequence) ResourceUses() []resource.Use {
	var uses []resource.Use
	for _, u := range s {
		uses = append(uses, u.ResourceUses()...)
	}
	return uses
}
