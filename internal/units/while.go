package units

import (
	"context"
	"fmt"

	"github.com/vk/runcore/internal/buffer"
	"github.com/vk/runcore/internal/event"
	"github.com/vk/runcore/internal/executor"
	"github.com/vk/runcore/internal/resource"
	"github.com/vk/runcore/internal/unit"
)

// WhileUnit runs its condition sequence, reads the 1-byte predicate the
// condition wrote, and runs the body sequence while the predicate is
// non-zero. Iterations chain through event continuations, so no goroutine
// ever blocks between them.
type WhileUnit struct {
	unit.Base
	pred         buffer.Slice
	cond         *executor.Executor
	body         *executor.Executor
	bufferUses   []buffer.Use
	resourceUses []resource.Use
}

// NewWhile builds nested executors for the condition and body sequences and
// returns the while unit. Ownership of both sequences transfers in.
func NewWhile(ctx context.Context, info unit.Info, pred buffer.Slice, cond, body unit.Sequence) (*WhileUnit, error) {
	if pred.Len != 1 {
		return nil, fmt.Errorf("while '%s': predicate slice is %d bytes, want 1", info.OpName, pred.Len)
	}

	w := &WhileUnit{
		Base:       unit.NewBase(unit.While, info),
		pred:       pred,
		bufferUses: []buffer.Use{buffer.ReadUse(pred)},
	}
	w.bufferUses = append(w.bufferUses, cond.BufferUses()...)
	w.bufferUses = append(w.bufferUses, body.BufferUses()...)
	w.resourceUses = append(w.resourceUses, cond.ResourceUses()...)
	w.resourceUses = append(w.resourceUses, body.ResourceUses()...)
	w.cond = executor.New(ctx, cond)
	w.body = executor.New(ctx, body)
	return w, nil
}

// BufferUses implements unit.Unit.
func (w *WhileUnit) BufferUses() []buffer.Use {
	return w.bufferUses
}

// ResourceUses implements unit.Unit.
func (w *WhileUnit) ResourceUses() []resource.Use {
	return w.resourceUses
}

// Execute implements unit.Unit.
func (w *WhileUnit) Execute(ctx context.Context, params *unit.ExecuteParams) *event.Event {
	done := event.New()
	w.evalCond(ctx, params, done)
	return done
}

// evalCond runs one condition evaluation and continues into the body or
// resolves the loop's event.
func (w *WhileUnit) evalCond(ctx context.Context, params *unit.ExecuteParams, done *event.Event) {
	w.cond.Execute(ctx, params).AndThen(func(err error) {
		if err != nil {
			done.SignalError(fmt.Errorf("while '%s' condition: %w", w.Info().OpName, err))
			return
		}
		view, err := params.Allocations.Resolve(w.pred)
		if err != nil {
			done.SignalError(err)
			return
		}
		if view[0] == 0 {
			done.Signal()
			return
		}
		w.body.Execute(ctx, params).AndThen(func(err error) {
			if err != nil {
				done.SignalError(fmt.Errorf("while '%s' body: %w", w.Info().OpName, err))
				return
			}
			w.evalCond(ctx, params, done)
		})
	})
}
