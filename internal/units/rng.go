package units

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/vk/runcore/internal/buffer"
	"github.com/vk/runcore/internal/event"
	"github.com/vk/runcore/internal/resource"
	"github.com/vk/runcore/internal/unit"
)

// rngStateBytes is the size of the 128-bit counter-based RNG state.
const rngStateBytes = 16

// RngUnit advances a replica's 128-bit RNG state counter by a fixed delta.
// The state lives in a buffer slice; the shared RNG resource serializes all
// units advancing the same state.
type RngUnit struct {
	unit.Base
	state buffer.Slice
	delta uint64
	res   *resource.Resource
}

// NewRngGetAndUpdateState returns an RNG update unit. Units advancing the
// same state must share the same resource identity; passing a nil resource
// creates a fresh one.
func NewRngGetAndUpdateState(info unit.Info, state buffer.Slice, delta uint64, res *resource.Resource) (*RngUnit, error) {
	if state.Len != rngStateBytes {
		return nil, fmt.Errorf("rng '%s': state slice is %d bytes, want %d", info.OpName, state.Len, rngStateBytes)
	}
	if res == nil {
		res = resource.New(resource.RngState, info.OpName)
	}
	return &RngUnit{
		Base:  unit.NewBase(unit.RngGetAndUpdateState, info),
		state: state,
		delta: delta,
		res:   res,
	}, nil
}

// Resource returns the RNG state resource identity.
func (r *RngUnit) Resource() *resource.Resource {
	return r.res
}

// BufferUses implements unit.Unit.
func (r *RngUnit) BufferUses() []buffer.Use {
	return []buffer.Use{buffer.WriteUse(r.state)}
}

// ResourceUses implements unit.Unit.
func (r *RngUnit) ResourceUses() []resource.Use {
	return []resource.Use{resource.WriteUse(r.res)}
}

// Execute implements unit.Unit: read the 128-bit little-endian counter, add
// the delta with carry, write it back.
func (r *RngUnit) Execute(_ context.Context, params *unit.ExecuteParams) *event.Event {
	state, err := params.Allocations.Resolve(r.state)
	if err != nil {
		return event.Fail(err)
	}

	lo := binary.LittleEndian.Uint64(state[0:8])
	hi := binary.LittleEndian.Uint64(state[8:16])
	newLo := lo + r.delta
	if newLo < lo {
		hi++
	}
	binary.LittleEndian.PutUint64(state[0:8], newLo)
	binary.LittleEndian.PutUint64(state[8:16], hi)
	return event.Ok()
}
