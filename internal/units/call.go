package units

import (
	"context"

	"github.com/vk/runcore/internal/buffer"
	"github.com/vk/runcore/internal/event"
	"github.com/vk/runcore/internal/executor"
	"github.com/vk/runcore/internal/resource"
	"github.com/vk/runcore/internal/unit"
)

// CallUnit executes a nested unit sequence. Its footprint is the nested
// sequence's aggregate footprint, so the outer graph treats the whole
// region as one opaque unit.
type CallUnit struct {
	unit.Base
	body         *executor.Executor
	bufferUses   []buffer.Use
	resourceUses []resource.Use
}

// NewCall builds a nested executor over the body sequence and returns the
// call unit. Ownership of the body transfers to the unit.
func NewCall(ctx context.Context, info unit.Info, body unit.Sequence) *CallUnit {
	return &CallUnit{
		Base:         unit.NewBase(unit.Call, info),
		bufferUses:   body.BufferUses(),
		resourceUses: body.ResourceUses(),
		body:         executor.New(ctx, body),
	}
}

// BufferUses implements unit.Unit.
func (c *CallUnit) BufferUses() []buffer.Use {
	return c.bufferUses
}

// ResourceUses implements unit.Unit.
func (c *CallUnit) ResourceUses() []resource.Use {
	return c.resourceUses
}

// Execute implements unit.Unit: the nested sequence's event is the call's
// event.
func (c *CallUnit) Execute(ctx context.Context, params *unit.ExecuteParams) *event.Event {
	return c.body.Execute(ctx, params)
}
