// Package units holds the concrete execution-unit implementations: data
// movement, kernel launch, nested control flow, RNG state update, feeds and
// collectives. Every unit declares its exact buffer/resource footprint; the
// scheduler trusts those declarations completely.
package units

import (
	"context"
	"fmt"

	"github.com/vk/runcore/internal/buffer"
	"github.com/vk/runcore/internal/event"
	"github.com/vk/runcore/internal/unit"
)

// CopyUnit copies bytes from one slice to another.
type CopyUnit struct {
	unit.Base
	src, dst buffer.Slice
}

// NewCopy returns a copy unit. Source and destination must have equal
// length; they may live in the same allocation as long as compilation
// declared them (overlap simply serializes against conflicting neighbors).
func NewCopy(info unit.Info, src, dst buffer.Slice) (*CopyUnit, error) {
	if src.Len != dst.Len {
		return nil, fmt.Errorf("copy '%s': src %d bytes, dst %d bytes", info.OpName, src.Len, dst.Len)
	}
	return &CopyUnit{Base: unit.NewBase(unit.Copy, info), src: src, dst: dst}, nil
}

// BufferUses implements unit.Unit.
func (c *CopyUnit) BufferUses() []buffer.Use {
	return []buffer.Use{buffer.ReadUse(c.src), buffer.WriteUse(c.dst)}
}

// Execute implements unit.Unit. The copy is small and runs on the calling
// thread, so the shared resolved event is returned.
func (c *CopyUnit) Execute(_ context.Context, params *unit.ExecuteParams) *event.Event {
	src, err := params.Allocations.Resolve(c.src)
	if err != nil {
		return event.Fail(err)
	}
	dst, err := params.Allocations.Resolve(c.dst)
	if err != nil {
		return event.Fail(err)
	}
	copy(dst, src)
	return event.Ok()
}
