// Package unit defines the execution unit: the basic schedulable piece of
// compiled work. A unit declares its memory and resource footprint and
// executes asynchronously; the dependency graph and the concurrent executor
// consume nothing but this contract.
//
// Units are thread-compatible, not thread-safe: Execute may be called
// concurrently for distinct runs of the same unit, but never twice
// concurrently for the same run.
package unit

import (
	"context"
	"fmt"

	"github.com/vk/runcore/internal/buffer"
	"github.com/vk/runcore/internal/event"
	"github.com/vk/runcore/internal/resource"
)

// Kind tags the closed set of lowered operation kinds.
type Kind int

const (
	AllGather Kind = iota
	AllReduce
	AllToAll
	Call
	CollectivePermute
	Copy
	Conditional
	Convolution
	CustomCall
	Dot
	Fft
	Infeed
	Kernel
	Outfeed
	PartitionId
	ReduceScatter
	ReplicaId
	RngGetAndUpdateState
	While
)

var kindNames = map[Kind]string{
	AllGather:            "all-gather",
	AllReduce:            "all-reduce",
	AllToAll:             "all-to-all",
	Call:                 "call",
	CollectivePermute:    "collective-permute",
	Copy:                 "copy",
	Conditional:          "conditional",
	Convolution:          "convolution",
	CustomCall:           "custom-call",
	Dot:                  "dot",
	Fft:                  "fft",
	Infeed:               "infeed",
	Kernel:               "kernel",
	Outfeed:              "outfeed",
	PartitionId:          "partition-id",
	ReduceScatter:        "reduce-scatter",
	ReplicaId:            "replica-id",
	RngGetAndUpdateState: "rng-get-and-update-state",
	While:                "while",
}

// String returns the stable lowercase name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Info carries diagnostic identification of a unit: the operation name and
// the compiled module it was lowered from. Info never affects scheduling.
type Info struct {
	OpName     string
	ModuleName string
	ModuleID   int64
}

// String renders the info as "op 'x' in module 'm' (id 0)".
func (i Info) String() string {
	return fmt.Sprintf("op '%s' in module '%s' (id %d)", i.OpName, i.ModuleName, i.ModuleID)
}

// Unit is one schedulable piece of compiled work.
//
// BufferUses and ResourceUses must cover every buffer and resource the unit
// touches during Execute; an omission is a race, not an optimization loss.
// Execute must return without blocking on work it hands to the task runner;
// completion is reported through the returned event.
type Unit interface {
	Kind() Kind
	Info() Info
	BufferUses() []buffer.Use
	ResourceUses() []resource.Use
	Execute(ctx context.Context, params *ExecuteParams) *event.Event
}

// Base carries the immutable identity shared by all unit implementations
// and the default empty resource footprint.
type Base struct {
	kind Kind
	info Info
}

// NewBase returns the identity embedded by concrete units.
func NewBase(kind Kind, info Info) Base {
	return Base{kind: kind, info: info}
}

// Kind returns the unit's operation kind.
func (b Base) Kind() Kind {
	return b.kind
}

// Info returns the unit's diagnostic identification.
func (b Base) Info() Info {
	return b.info
}

// ResourceUses returns the default empty resource footprint. Only units
// with non-buffer side effects override it.
func (b Base) ResourceUses() []resource.Use {
	return nil
}
