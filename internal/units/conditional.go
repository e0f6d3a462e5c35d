package units

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/vk/runcore/internal/buffer"
	"github.com/vk/runcore/internal/event"
	"github.com/vk/runcore/internal/executor"
	"github.com/vk/runcore/internal/resource"
	"github.com/vk/runcore/internal/unit"
)

// ConditionalUnit reads a 32-bit branch index and executes one of its
// nested branch sequences. An index outside [0, branches) clamps to the
// last branch. The unit's footprint is the index read plus the union of
// every branch's footprint: which branch runs is a runtime value, so the
// graph must assume any of them.
type ConditionalUnit struct {
	unit.Base
	index        buffer.Slice
	branches     []*executor.Executor
	bufferUses   []buffer.Use
	resourceUses []resource.Use
}

// NewConditional builds nested executors for each branch sequence and
// returns the conditional unit. Ownership of the branches transfers in.
func NewConditional(ctx context.Context, info unit.Info, index buffer.Slice, branches []unit.Sequence) (*ConditionalUnit, error) {
	if index.Len != 4 {
		return nil, fmt.Errorf("conditional '%s': index slice is %d bytes, want 4", info.OpName, index.Len)
	}
	if len(branches) == 0 {
		return nil, fmt.Errorf("conditional '%s': no branches", info.OpName)
	}

	c := &ConditionalUnit{
		Base:       unit.NewBase(unit.Conditional, info),
		index:      index,
		bufferUses: []buffer.Use{buffer.ReadUse(index)},
	}
	for _, branch := range branches {
		c.bufferUses = append(c.bufferUses, branch.BufferUses()...)
		c.resourceUses = append(c.resourceUses, branch.ResourceUses()...)
		c.branches = append(c.branches, executor.New(ctx, branch))
	}
	return c, nil
}

// BufferUses implements unit.Unit.
func (c *ConditionalUnit) BufferUses() []buffer.Use {
	return c.bufferUses
}

// ResourceUses implements unit.Unit.
func (c *ConditionalUnit) ResourceUses() []resource.Use {
	return c.resourceUses
}

// Execute implements unit.Unit.
func (c *ConditionalUnit) Execute(ctx context.Context, params *unit.ExecuteParams) *event.Event {
	view, err := params.Allocations.Resolve(c.index)
	if err != nil {
		return event.Fail(err)
	}
	index := int(int32(binary.LittleEndian.Uint32(view)))
	if index < 0 || index >= len(c.branches) {
		index = len(c.branches) - 1
	}
	return c.branches[index].Execute(ctx, params)
}
