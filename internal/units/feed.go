package units

import (
	"context"
	"fmt"

	"github.com/vk/runcore/internal/buffer"
	"github.com/vk/runcore/internal/event"
	"github.com/vk/runcore/internal/feed"
	"github.com/vk/runcore/internal/resource"
	"github.com/vk/runcore/internal/unit"
)

// InfeedUnit dequeues one payload per destination slice from the infeed
// queue. Writing the queue's channel resource keeps infeeds in program
// order relative to each other.
type InfeedUnit struct {
	unit.Base
	dsts []buffer.Slice
	res  *resource.Resource
}

// NewInfeed returns an infeed unit against the given queue.
func NewInfeed(info unit.Info, q *feed.Queue, dsts []buffer.Slice) (*InfeedUnit, error) {
	if len(dsts) == 0 {
		return nil, fmt.Errorf("infeed '%s': no destination slices", info.OpName)
	}
	return &InfeedUnit{Base: unit.NewBase(unit.Infeed, info), dsts: dsts, res: q.Resource()}, nil
}

// BufferUses implements unit.Unit.
func (u *InfeedUnit) BufferUses() []buffer.Use {
	uses := make([]buffer.Use, len(u.dsts))
	for i, s := range u.dsts {
		uses[i] = buffer.WriteUse(s)
	}
	return uses
}

// ResourceUses implements unit.Unit.
func (u *InfeedUnit) ResourceUses() []resource.Use {
	return []resource.Use{resource.WriteUse(u.res)}
}

// Execute implements unit.Unit.
func (u *InfeedUnit) Execute(_ context.Context, params *unit.ExecuteParams) *event.Event {
	if params.Feeds == nil {
		return event.Fail(fmt.Errorf("infeed '%s': no feed manager", u.Info().OpName))
	}
	for _, s := range u.dsts {
		dst, err := params.Allocations.Resolve(s)
		if err != nil {
			return event.Fail(err)
		}
		payload, err := params.Feeds.Infeed.Dequeue()
		if err != nil {
			return event.Fail(fmt.Errorf("infeed '%s': %w", u.Info().OpName, err))
		}
		if len(payload) != len(dst) {
			return event.Fail(fmt.Errorf("infeed '%s': payload %d bytes, slice %s",
				u.Info().OpName, len(payload), s))
		}
		copy(dst, payload)
	}
	return event.Ok()
}

// OutfeedUnit enqueues a copy of each source slice onto the outfeed queue.
type OutfeedUnit struct {
	unit.Base
	srcs []buffer.Slice
	res  *resource.Resource
}

// NewOutfeed returns an outfeed unit against the given queue.
func NewOutfeed(info unit.Info, q *feed.Queue, srcs []buffer.Slice) (*OutfeedUnit, error) {
	if len(srcs) == 0 {
		return nil, fmt.Errorf("outfeed '%s': no source slices", info.OpName)
	}
	return &OutfeedUnit{Base: unit.NewBase(unit.Outfeed, info), srcs: srcs, res: q.Resource()}, nil
}

// BufferUses implements unit.Unit.
func (u *OutfeedUnit) BufferUses() []buffer.Use {
	uses := make([]buffer.Use, len(u.srcs))
	for i, s := range u.srcs {
		uses[i] = buffer.ReadUse(s)
	}
	return uses
}

// ResourceUses implements unit.Unit. Outfeeds write the channel resource:
// consumption order on the queue is a side effect that must serialize.
func (u *OutfeedUnit) ResourceUses() []resource.Use {
	return []resource.Use{resource.WriteUse(u.res)}
}

// Execute implements unit.Unit.
func (u *OutfeedUnit) Execute(_ context.Context, params *unit.ExecuteParams) *event.Event {
	if params.Feeds == nil {
		return event.Fail(fmt.Errorf("outfeed '%s': no feed manager", u.Info().OpName))
	}
	for _, s := range u.srcs {
		src, err := params.Allocations.Resolve(s)
		if err != nil {
			return event.Fail(err)
		}
		if err := params.Feeds.Outfeed.Enqueue(src); err != nil {
			return event.Fail(fmt.Errorf("outfeed '%s': %w", u.Info().OpName, err))
		}
	}
	return event.Ok()
}
