package units

import (
	"context"
	"fmt"

	"github.com/vk/runcore/internal/buffer"
	"github.com/vk/runcore/internal/event"
	"github.com/vk/runcore/internal/unit"
)

// KernelUnit launches a host kernel looked up by name. The kernel receives
// the resolved byte views of the declared argument slices, reads first and
// results after, in declaration order.
type KernelUnit struct {
	unit.Base
	name string
	args []buffer.Use
}

// NewKernel returns a kernel unit over the given read and written slices.
func NewKernel(info unit.Info, name string, reads, writes []buffer.Slice) (*KernelUnit, error) {
	if name == "" {
		return nil, fmt.Errorf("kernel '%s': empty kernel name", info.OpName)
	}
	args := make([]buffer.Use, 0, len(reads)+len(writes))
	for _, s := range reads {
		args = append(args, buffer.ReadUse(s))
	}
	for _, s := range writes {
		args = append(args, buffer.WriteUse(s))
	}
	return &KernelUnit{Base: unit.NewBase(unit.Kernel, info), name: name, args: args}, nil
}

// Name returns the kernel's lookup name.
func (k *KernelUnit) Name() string {
	return k.name
}

// BufferUses implements unit.Unit.
func (k *KernelUnit) BufferUses() []buffer.Use {
	return k.args
}

// Execute implements unit.Unit. The kernel invocation is handed to the task
// runner; the returned event resolves when it finishes.
func (k *KernelUnit) Execute(_ context.Context, params *unit.ExecuteParams) *event.Event {
	if params.Kernels == nil {
		return event.Fail(fmt.Errorf("kernel '%s': no kernel lookup capability", k.name))
	}
	fn, err := params.Kernels.Find(k.name)
	if err != nil {
		return event.Fail(err)
	}

	views := make([][]byte, len(k.args))
	for i, arg := range k.args {
		view, err := params.Allocations.Resolve(arg.Slice)
		if err != nil {
			return event.Fail(err)
		}
		views[i] = view
	}

	ev := event.New()
	params.Run(func() {
		if err := fn(views); err != nil {
			ev.SignalError(fmt.Errorf("kernel '%s': %w", k.name, err))
			return
		}
		ev.Signal()
	})
	return ev
}
