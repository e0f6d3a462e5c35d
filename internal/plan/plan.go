// Package plan turns a loaded HCL plan into live execution inputs: backing
// allocations from the allocator capability and a program-order unit
// sequence built through the unit constructors.
package plan

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/runcore/internal/buffer"
	"github.com/vk/runcore/internal/ctxlog"
	"github.com/vk/runcore/internal/feed"
	"github.com/vk/runcore/internal/hclplan"
	"github.com/vk/runcore/internal/resource"
	"github.com/vk/runcore/internal/unit"
	"github.com/vk/runcore/internal/units"
)

// Assembled is a plan made executable: the allocation table, the unit
// sequence, and ownership of the backing memory.
type Assembled struct {
	Allocations *buffer.Allocations
	Sequence    unit.Sequence

	allocator buffer.Allocator
	backing   [][]byte
}

// Release returns the plan's backing memory to the allocator.
func (a *Assembled) Release() error {
	var errs []error
	for _, buf := range a.backing {
		if err := a.allocator.Free(buf); err != nil {
			errs = append(errs, err)
		}
	}
	a.backing = nil
	return errors.Join(errs...)
}

// assembler carries the shared state of one assembly pass.
type assembler struct {
	ctx        context.Context
	moduleName string
	allocs     map[string]int   // buffer name -> allocation index
	sizes      map[string]int64 // buffer name -> byte size
	feeds      *feed.Manager
	// rngStates shares one RNG resource identity per state reference, so
	// every unit advancing the same state serializes.
	rngStates map[string]*resource.Resource
	// comm is the plan-wide communicator shared by all collective units.
	comm *resource.Resource
}

// Assemble allocates the plan's buffers from the allocator and builds its
// unit sequence. The feed manager is the one the caller will pass in the
// execution parameters; feed units bind to its queue resources.
func Assemble(ctx context.Context, p *hclplan.Plan, alloc buffer.Allocator, feeds *feed.Manager, moduleName string) (*Assembled, error) {
	logger := ctxlog.FromContext(ctx)

	a := &assembler{
		ctx:        ctx,
		moduleName: moduleName,
		allocs:     make(map[string]int),
		sizes:      make(map[string]int64),
		feeds:      feeds,
		rngStates:  make(map[string]*resource.Resource),
		comm:       resource.New(resource.Communicator, moduleName),
	}

	out := &Assembled{allocator: alloc}
	for i, b := range p.Buffers {
		if _, exists := a.allocs[b.Name]; exists {
			_ = out.Release()
			return nil, fmt.Errorf("duplicate buffer '%s'", b.Name)
		}
		backing, err := alloc.Allocate(b.Size)
		if err != nil {
			_ = out.Release()
			return nil, fmt.Errorf("allocating buffer '%s': %w", b.Name, err)
		}
		a.allocs[b.Name] = i
		a.sizes[b.Name] = b.Size
		out.backing = append(out.backing, backing)
	}
	out.Allocations = buffer.NewAllocations(out.backing)

	seq, err := a.buildSequence(p.Units)
	if err != nil {
		_ = out.Release()
		return nil, err
	}
	out.Sequence = seq

	logger.Debug("Plan assembled.", "buffers", len(p.Buffers), "units", len(seq))
	return out, nil
}

// resolve turns a slice reference string into a buffer slice.
func (a *assembler) resolve(ref string) (buffer.Slice, error) {
	parsed, err := hclplan.ParseSliceRef(ref)
	if err != nil {
		return buffer.Slice{}, err
	}
	index, ok := a.allocs[parsed.Buffer]
	if !ok {
		return buffer.Slice{}, fmt.Errorf("slice '%s': unknown buffer '%s'", ref, parsed.Buffer)
	}
	size := a.sizes[parsed.Buffer]
	if parsed.Whole {
		return buffer.NewSlice(index, 0, size), nil
	}
	if parsed.End > size {
		return buffer.Slice{}, fmt.Errorf("slice '%s' escapes buffer of %d bytes", ref, size)
	}
	return buffer.NewSlice(index, parsed.Offset, parsed.End-parsed.Offset), nil
}

func (a *assembler) resolveAll(refs []string) ([]buffer.Slice, error) {
	slices := make([]buffer.Slice, len(refs))
	for i, ref := range refs {
		s, err := a.resolve(ref)
		if err != nil {
			return nil, err
		}
		slices[i] = s
	}
	return slices, nil
}

func (a *assembler) buildSequence(specs []*hclplan.UnitSpec) (unit.Sequence, error) {
	seq := make(unit.Sequence, 0, len(specs))
	for _, spec := range specs {
		u, err := a.buildUnit(spec)
		if err != nil {
			return nil, fmt.Errorf("unit '%s' (%s): %w", spec.Name, spec.Kind, err)
		}
		seq = append(seq, u)
	}
	return seq, nil
}

func (a *assembler) buildUnit(spec *hclplan.UnitSpec) (unit.Unit, error) {
	info := unit.Info{OpName: spec.Name, ModuleName: a.moduleName}

	switch spec.Kind {
	case "kernel":
		reads, err := a.resolveAll(spec.Reads)
		if err != nil {
			return nil, err
		}
		writes, err := a.resolveAll(spec.Writes)
		if err != nil {
			return nil, err
		}
		return units.NewKernel(info, spec.Kernel, reads, writes)

	case "copy":
		src, err := a.resolve(spec.From)
		if err != nil {
			return nil, err
		}
		dst, err := a.resolve(spec.To)
		if err != nil {
			return nil, err
		}
		return units.NewCopy(info, src, dst)

	case "rng":
		state, err := a.resolve(spec.State)
		if err != nil {
			return nil, err
		}
		res, ok := a.rngStates[spec.State]
		if !ok {
			res = resource.New(resource.RngState, spec.State)
			a.rngStates[spec.State] = res
		}
		return units.NewRngGetAndUpdateState(info, state, uint64(spec.Delta), res)

	case "infeed":
		dsts, err := a.resolveAll(spec.Into)
		if err != nil {
			return nil, err
		}
		return units.NewInfeed(info, a.feeds.Infeed, dsts)

	case "outfeed":
		srcs, err := a.resolveAll(spec.Srcs)
		if err != nil {
			return nil, err
		}
		return units.NewOutfeed(info, a.feeds.Outfeed, srcs)

	case "replica_id":
		dst, err := a.resolve(spec.Target)
		if err != nil {
			return nil, err
		}
		return units.NewReplicaId(info, dst)

	case "partition_id":
		dst, err := a.resolve(spec.Target)
		if err != nil {
			return nil, err
		}
		return units.NewPartitionId(info, dst)

	case "all_reduce":
		src, err := a.resolve(spec.From)
		if err != nil {
			return nil, err
		}
		dst, err := a.resolve(spec.To)
		if err != nil {
			return nil, err
		}
		return units.NewAllReduce(info, src, dst, a.comm)

	case "call":
		body, err := a.buildSequence(spec.Units)
		if err != nil {
			return nil, err
		}
		return units.NewCall(a.ctx, info, body), nil

	case "while":
		pred, err := a.resolve(spec.Predicate)
		if err != nil {
			return nil, err
		}
		cond, err := a.buildSequence(spec.Cond)
		if err != nil {
			return nil, err
		}
		body, err := a.buildSequence(spec.Body)
		if err != nil {
			return nil, err
		}
		return units.NewWhile(a.ctx, info, pred, cond, body)

	case "conditional":
		index, err := a.resolve(spec.Index)
		if err != nil {
			return nil, err
		}
		branches := make([]unit.Sequence, 0, len(spec.Branches))
		for _, b := range spec.Branches {
			branch, err := a.buildSequence(b)
			if err != nil {
				return nil, err
			}
			branches = append(branches, branch)
		}
		return units.NewConditional(a.ctx, info, index, branches)

	default:
		return nil, fmt.Errorf("unknown unit kind '%s'", spec.Kind)
	}
}
