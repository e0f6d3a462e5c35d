package unit

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/vk/runcore/internal/buffer"
	"github.com/vk/runcore/internal/feed"
)

// Task is a zero-argument piece of work handed to a task runner.
type Task = func()

// TaskRunner is the externally supplied task-submission capability. It may
// run the task inline on the caller's goroutine or hand it to a pool; the
// executor is correct under either policy and assumes neither FIFO order
// nor any particular latency.
type TaskRunner func(task Task)

// HostKernel is a compiled host kernel: it receives the resolved byte views
// of its declared arguments, reads first and results after, in declaration
// order.
type HostKernel func(views [][]byte) error

// HostKernels is the kernel-lookup capability. At run time it is typically
// backed by a JIT that compiles kernels on demand; tests and the replay
// tool use a static registry.
type HostKernels interface {
	Find(name string) (HostKernel, error)
}

// Collectives is the backend handle for cross-device collective operations.
// The backend itself (rendezvous, transport) is an external collaborator.
type Collectives interface {
	// AllReduce combines src across all participants of the rendezvous
	// identified by key and writes the combined bytes to dst.
	AllReduce(ctx context.Context, key string, src, dst []byte) error
}

// DeviceAssignment maps the (replica, partition) logical grid to global
// device ids.
type DeviceAssignment struct {
	// Devices[replica][partition] is the global device id of that logical
	// position. All rows have the same length.
	Devices [][]int64
}

// ReplicaCount returns the number of replicas in the assignment.
func (d *DeviceAssignment) ReplicaCount() int {
	return len(d.Devices)
}

// PartitionCount returns the number of partitions in the assignment.
func (d *DeviceAssignment) PartitionCount() int {
	if len(d.Devices) == 0 {
		return 0
	}
	return len(d.Devices[0])
}

// LogicalID returns the (replica, partition) position of a global device id.
func (d *DeviceAssignment) LogicalID(globalDeviceID int64) (replica, partition int, err error) {
	for r, row := range d.Devices {
		for p, id := range row {
			if id == globalDeviceID {
				return r, p, nil
			}
		}
	}
	return 0, 0, fmt.Errorf("global device id %d not in device assignment", globalDeviceID)
}

// SingleDevice returns the trivial 1x1 assignment for device 0.
func SingleDevice() *DeviceAssignment {
	return &DeviceAssignment{Devices: [][]int64{{0}}}
}

// CollectiveParams captures everything collective units need: the run
// identity, this device's position, and the collective backend handle.
type CollectiveParams struct {
	RunID              uuid.UUID
	LocalDeviceOrdinal int
	GlobalDeviceID     int64
	DeviceAssignment   *DeviceAssignment
	Collectives        Collectives
}

// NewCollectiveParams returns collective parameters for a fresh run.
func NewCollectiveParams(localOrdinal int, globalID int64, assignment *DeviceAssignment, collectives Collectives) *CollectiveParams {
	return &CollectiveParams{
		RunID:              uuid.New(),
		LocalDeviceOrdinal: localOrdinal,
		GlobalDeviceID:     globalID,
		DeviceAssignment:   assignment,
		Collectives:        collectives,
	}
}

// CustomCallParams captures what external calls need: the device, an opaque
// stream handle, an allocator handle, and the extension context.
type CustomCallParams struct {
	DeviceOrdinal int
	Stream        any
	Allocator     buffer.Allocator
	Extensions    map[string]any
}

// ExecuteParams is the read-only parameter bundle supplied by the caller of
// a whole sequence. The core mutates none of it.
type ExecuteParams struct {
	Kernels     HostKernels
	Allocations *buffer.Allocations
	Feeds       *feed.Manager
	TaskRunner  TaskRunner
	Collective  *CollectiveParams
	CustomCall  *CustomCallParams
}

// Run submits a task through the bundle's task runner, or runs it inline
// when no runner is configured.
func (p *ExecuteParams) Run(task Task) {
	if p.TaskRunner == nil {
		task()
		return
	}
	p.TaskRunner(task)
}
