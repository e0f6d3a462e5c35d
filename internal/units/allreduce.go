package units

import (
	"context"
	"fmt"

	"github.com/vk/runcore/internal/buffer"
	"github.com/vk/runcore/internal/event"
	"github.com/vk/runcore/internal/resource"
	"github.com/vk/runcore/internal/unit"
)

// AllReduceUnit delegates an all-reduce to the injected collective backend.
// All collective units of one program share a communicator resource, so
// collectives over the same communicator execute in program order on every
// participant; the backend relies on that for rendezvous matching.
type AllReduceUnit struct {
	unit.Base
	src, dst buffer.Slice
	comm     *resource.Resource
}

// NewAllReduce returns an all-reduce unit. Units sharing a communicator
// must share the same resource identity; a nil resource creates a fresh one.
func NewAllReduce(info unit.Info, src, dst buffer.Slice, comm *resource.Resource) (*AllReduceUnit, error) {
	if src.Len != dst.Len {
		return nil, fmt.Errorf("all-reduce '%s': src %d bytes, dst %d bytes", info.OpName, src.Len, dst.Len)
	}
	if comm == nil {
		comm = resource.New(resource.Communicator, info.OpName)
	}
	return &AllReduceUnit{Base: unit.NewBase(unit.AllReduce, info), src: src, dst: dst, comm: comm}, nil
}

// Communicator returns the shared communicator resource identity.
func (u *AllReduceUnit) Communicator() *resource.Resource {
	return u.comm
}

// BufferUses implements unit.Unit.
func (u *AllReduceUnit) BufferUses() []buffer.Use {
	return []buffer.Use{buffer.ReadUse(u.src), buffer.WriteUse(u.dst)}
}

// ResourceUses implements unit.Unit.
func (u *AllReduceUnit) ResourceUses() []resource.Use {
	return []resource.Use{resource.WriteUse(u.comm)}
}

// Execute implements unit.Unit. The backend call may block on remote
// participants, so it runs on the task runner.
func (u *AllReduceUnit) Execute(ctx context.Context, params *unit.ExecuteParams) *event.Event {
	cp := params.Collective
	if cp == nil || cp.Collectives == nil {
		return event.Fail(fmt.Errorf("all-reduce '%s': no collective backend", u.Info().OpName))
	}
	src, err := params.Allocations.Resolve(u.src)
	if err != nil {
		return event.Fail(err)
	}
	dst, err := params.Allocations.Resolve(u.dst)
	if err != nil {
		return event.Fail(err)
	}

	key := fmt.Sprintf("all-reduce/%s/%s", cp.RunID, u.Info().OpName)
	ev := event.New()
	params.Run(func() {
		if err := cp.Collectives.AllReduce(ctx, key, src, dst); err != nil {
			ev.SignalError(fmt.Errorf("all-reduce '%s': %w", u.Info().OpName, err))
			return
		}
		ev.Signal()
	})
	return ev
}
