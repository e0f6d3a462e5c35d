package units

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/vk/runcore/internal/buffer"
	"github.com/vk/runcore/internal/event"
	"github.com/vk/runcore/internal/unit"
)

// idBytes is the size of the 32-bit id written by ReplicaId/PartitionId.
const idBytes = 4

// ReplicaIdUnit writes this device's replica id into a 4-byte slice.
type ReplicaIdUnit struct {
	unit.Base
	dst buffer.Slice
}

// NewReplicaId returns a replica-id unit.
func NewReplicaId(info unit.Info, dst buffer.Slice) (*ReplicaIdUnit, error) {
	if dst.Len != idBytes {
		return nil, fmt.Errorf("replica-id '%s': slice is %d bytes, want %d", info.OpName, dst.Len, idBytes)
	}
	return &ReplicaIdUnit{Base: unit.NewBase(unit.ReplicaId, info), dst: dst}, nil
}

// BufferUses implements unit.Unit.
func (u *ReplicaIdUnit) BufferUses() []buffer.Use {
	return []buffer.Use{buffer.WriteUse(u.dst)}
}

// Execute implements unit.Unit.
func (u *ReplicaIdUnit) Execute(_ context.Context, params *unit.ExecuteParams) *event.Event {
	replica, _, err := logicalID(u.Info(), params)
	if err != nil {
		return event.Fail(err)
	}
	return writeID(u.dst, replica, params)
}

// PartitionIdUnit writes this device's partition id into a 4-byte slice.
type PartitionIdUnit struct {
	unit.Base
	dst buffer.Slice
}

// NewPartitionId returns a partition-id unit.
func NewPartitionId(info unit.Info, dst buffer.Slice) (*PartitionIdUnit, error) {
	if dst.Len != idBytes {
		return nil, fmt.Errorf("partition-id '%s': slice is %d bytes, want %d", info.OpName, dst.Len, idBytes)
	}
	return &PartitionIdUnit{Base: unit.NewBase(unit.PartitionId, info), dst: dst}, nil
}

// BufferUses implements unit.Unit.
func (u *PartitionIdUnit) BufferUses() []buffer.Use {
	return []buffer.Use{buffer.WriteUse(u.dst)}
}

// Execute implements unit.Unit.
func (u *PartitionIdUnit) Execute(_ context.Context, params *unit.ExecuteParams) *event.Event {
	_, partition, err := logicalID(u.Info(), params)
	if err != nil {
		return event.Fail(err)
	}
	return writeID(u.dst, partition, params)
}

func logicalID(info unit.Info, params *unit.ExecuteParams) (replica, partition int, err error) {
	cp := params.Collective
	if cp == nil || cp.DeviceAssignment == nil {
		return 0, 0, fmt.Errorf("%s: no collective parameters", info)
	}
	return cp.DeviceAssignment.LogicalID(cp.GlobalDeviceID)
}

func writeID(dst buffer.Slice, id int, params *unit.ExecuteParams) *event.Event {
	view, err := params.Allocations.Resolve(dst)
	if err != nil {
		return event.Fail(err)
	}
	binary.LittleEndian.PutUint32(view, uint32(id))
	return event.Ok()
}
