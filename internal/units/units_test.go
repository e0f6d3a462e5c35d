package units

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/runcore/internal/buffer"
	"github.com/vk/runcore/internal/collective"
	"github.com/vk/runcore/internal/feed"
	"github.com/vk/runcore/internal/registry"
	"github.com/vk/runcore/internal/resource"
	"github.com/vk/runcore/internal/unit"
)

// testParams returns inline execution parameters over fresh allocations of
// the given sizes.
func testParams(sizes ...int) (*unit.ExecuteParams, *buffer.Allocations) {
	base := make([][]byte, len(sizes))
	for i, size := range sizes {
		base[i] = make([]byte, size)
	}
	allocs := buffer.NewAllocations(base)
	return &unit.ExecuteParams{
		Kernels:     registry.Builtin(),
		Allocations: allocs,
		Feeds:       feed.NewManager(0),
		Collective:  unit.NewCollectiveParams(0, 0, unit.SingleDevice(), collective.NewLoopback()),
	}, allocs
}

func mustResolve(t *testing.T, allocs *buffer.Allocations, s buffer.Slice) []byte {
	t.Helper()
	view, err := allocs.Resolve(s)
	require.NoError(t, err)
	return view
}

func TestCopyUnit(t *testing.T) {
	params, allocs := testParams(64)
	src := buffer.NewSlice(0, 0, 32)
	dst := buffer.NewSlice(0, 32, 32)

	u, err := NewCopy(unit.Info{OpName: "copy.0"}, src, dst)
	require.NoError(t, err)

	uses := u.BufferUses()
	require.Len(t, uses, 2)
	assert.Equal(t, buffer.Read, uses[0].Access)
	assert.Equal(t, buffer.Write, uses[1].Access)

	srcView := mustResolve(t, allocs, src)
	for i := range srcView {
		srcView[i] = byte(i)
	}

	ev := u.Execute(context.Background(), params)
	require.True(t, ev.Resolved())
	require.NoError(t, ev.Err())
	assert.Equal(t, srcView, mustResolve(t, allocs, dst))
}

func TestCopyUnitLengthMismatch(t *testing.T) {
	_, err := NewCopy(unit.Info{OpName: "copy.0"},
		buffer.NewSlice(0, 0, 32), buffer.NewSlice(0, 32, 16))
	assert.Error(t, err)
}

func TestKernelUnit(t *testing.T) {
	params, allocs := testParams(16, 16, 16)
	a := buffer.NewSlice(0, 0, 16)
	b := buffer.NewSlice(1, 0, 16)
	out := buffer.NewSlice(2, 0, 16)

	for i := 0; i < 4; i++ {
		binary.LittleEndian.PutUint32(mustResolve(t, allocs, a)[i*4:], uint32(i))
		binary.LittleEndian.PutUint32(mustResolve(t, allocs, b)[i*4:], uint32(10*i))
	}

	u, err := NewKernel(unit.Info{OpName: "add.0"}, "add32",
		[]buffer.Slice{a, b}, []buffer.Slice{out})
	require.NoError(t, err)
	assert.Equal(t, "add32", u.Name())

	ev := u.Execute(context.Background(), params)
	require.NoError(t, ev.Wait(context.Background()))

	outView := mustResolve(t, allocs, out)
	for i := 0; i < 4; i++ {
		assert.Equal(t, uint32(11*i), binary.LittleEndian.Uint32(outView[i*4:]))
	}
}

func TestKernelUnitUnknownName(t *testing.T) {
	params, _ := testParams(16)
	u, err := NewKernel(unit.Info{OpName: "k"}, "no-such-kernel",
		nil, []buffer.Slice{buffer.NewSlice(0, 0, 16)})
	require.NoError(t, err)

	ev := u.Execute(context.Background(), params)
	require.True(t, ev.Resolved())
	assert.Error(t, ev.Err())
}

func TestKernelUnitEmptyName(t *testing.T) {
	_, err := NewKernel(unit.Info{OpName: "k"}, "", nil, nil)
	assert.Error(t, err)
}

func TestRngUnit(t *testing.T) {
	params, allocs := testParams(16)
	state := buffer.NewSlice(0, 0, 16)

	// Start just below the low-word boundary to exercise the carry.
	view := mustResolve(t, allocs, state)
	binary.LittleEndian.PutUint64(view[0:8], ^uint64(0))

	u, err := NewRngGetAndUpdateState(unit.Info{OpName: "rng.0"}, state, 2, nil)
	require.NoError(t, err)

	ev := u.Execute(context.Background(), params)
	require.NoError(t, ev.Err())
	assert.Equal(t, uint64(1), binary.LittleEndian.Uint64(view[0:8]))
	assert.Equal(t, uint64(1), binary.LittleEndian.Uint64(view[8:16]))
}

func TestRngUnitSharedResourceSerializes(t *testing.T) {
	state := buffer.NewSlice(0, 0, 16)
	first, err := NewRngGetAndUpdateState(unit.Info{OpName: "rng.0"}, state, 1, nil)
	require.NoError(t, err)
	second, err := NewRngGetAndUpdateState(unit.Info{OpName: "rng.1"}, state, 1, first.Resource())
	require.NoError(t, err)

	assert.True(t, resource.Conflicts(first.ResourceUses()[0], second.ResourceUses()[0]))
}

func TestRngUnitBadStateSize(t *testing.T) {
	_, err := NewRngGetAndUpdateState(unit.Info{OpName: "rng"}, buffer.NewSlice(0, 0, 8), 1, nil)
	assert.Error(t, err)
}

func TestReplicaAndPartitionId(t *testing.T) {
	params, allocs := testParams(4, 4)
	params.Collective = unit.NewCollectiveParams(0, 3,
		&unit.DeviceAssignment{Devices: [][]int64{{0, 1}, {2, 3}}},
		collective.NewLoopback())

	replicaDst := buffer.NewSlice(0, 0, 4)
	partitionDst := buffer.NewSlice(1, 0, 4)

	ru, err := NewReplicaId(unit.Info{OpName: "replica-id.0"}, replicaDst)
	require.NoError(t, err)
	pu, err := NewPartitionId(unit.Info{OpName: "partition-id.0"}, partitionDst)
	require.NoError(t, err)

	require.NoError(t, ru.Execute(context.Background(), params).Err())
	require.NoError(t, pu.Execute(context.Background(), params).Err())

	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(mustResolve(t, allocs, replicaDst)))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(mustResolve(t, allocs, partitionDst)))
}

func TestInfeedUnit(t *testing.T) {
	params, allocs := testParams(8)
	dst := buffer.NewSlice(0, 0, 8)

	u, err := NewInfeed(unit.Info{OpName: "infeed.0"}, params.Feeds.Infeed, []buffer.Slice{dst})
	require.NoError(t, err)

	t.Run("fails on an empty queue", func(t *testing.T) {
		ev := u.Execute(context.Background(), params)
		require.True(t, ev.Resolved())
		assert.ErrorIs(t, ev.Err(), feed.ErrEmpty)
	})

	t.Run("copies the payload into the slice", func(t *testing.T) {
		payload := []byte{1, 2, 3, 4, 5, 6, 7, 8}
		require.NoError(t, params.Feeds.Infeed.Enqueue(payload))

		ev := u.Execute(context.Background(), params)
		require.NoError(t, ev.Err())
		assert.Equal(t, payload, mustResolve(t, allocs, dst))
	})

	t.Run("rejects a payload of the wrong size", func(t *testing.T) {
		require.NoError(t, params.Feeds.Infeed.Enqueue([]byte{1}))
		ev := u.Execute(context.Background(), params)
		assert.Error(t, ev.Err())
	})
}

func TestOutfeedUnit(t *testing.T) {
	params, allocs := testParams(8)
	src := buffer.NewSlice(0, 0, 8)
	copy(mustResolve(t, allocs, src), []byte{9, 8, 7, 6, 5, 4, 3, 2})

	u, err := NewOutfeed(unit.Info{OpName: "outfeed.0"}, params.Feeds.Outfeed, []buffer.Slice{src})
	require.NoError(t, err)

	ev := u.Execute(context.Background(), params)
	require.NoError(t, ev.Err())

	payload, err := params.Feeds.Outfeed.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 8, 7, 6, 5, 4, 3, 2}, payload)
}

func TestFeedUnitsShareChannelOrdering(t *testing.T) {
	q := feed.NewQueue("infeed", 0)
	first, err := NewInfeed(unit.Info{OpName: "infeed.0"}, q, []buffer.Slice{buffer.NewSlice(0, 0, 4)})
	require.NoError(t, err)
	second, err := NewInfeed(unit.Info{OpName: "infeed.1"}, q, []buffer.Slice{buffer.NewSlice(1, 0, 4)})
	require.NoError(t, err)

	// Both write the queue's channel resource, so the graph orders them
	// even though their buffer footprints are disjoint.
	assert.True(t, resource.Conflicts(first.ResourceUses()[0], second.ResourceUses()[0]))
}

func TestAllReduceUnit(t *testing.T) {
	params, allocs := testParams(8, 8)
	src := buffer.NewSlice(0, 0, 8)
	dst := buffer.NewSlice(1, 0, 8)
	copy(mustResolve(t, allocs, src), []byte{1, 2, 3, 4, 5, 6, 7, 8})

	u, err := NewAllReduce(unit.Info{OpName: "all-reduce.0"}, src, dst, nil)
	require.NoError(t, err)

	ev := u.Execute(context.Background(), params)
	require.NoError(t, ev.Wait(context.Background()))
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, mustResolve(t, allocs, dst))
}

func TestAllReduceUnitWithoutBackend(t *testing.T) {
	params, _ := testParams(8, 8)
	params.Collective = nil

	u, err := NewAllReduce(unit.Info{OpName: "all-reduce.0"},
		buffer.NewSlice(0, 0, 8), buffer.NewSlice(1, 0, 8), nil)
	require.NoError(t, err)

	ev := u.Execute(context.Background(), params)
	require.True(t, ev.Resolved())
	assert.Error(t, ev.Err())
}

func TestAllReduceUnitsShareCommunicator(t *testing.T) {
	comm := resource.New(resource.Communicator, "comm")
	first, err := NewAllReduce(unit.Info{OpName: "ar.0"},
		buffer.NewSlice(0, 0, 8), buffer.NewSlice(1, 0, 8), comm)
	require.NoError(t, err)
	second, err := NewAllReduce(unit.Info{OpName: "ar.1"},
		buffer.NewSlice(2, 0, 8), buffer.NewSlice(3, 0, 8), comm)
	require.NoError(t, err)

	assert.Same(t, first.Communicator(), second.Communicator())
	assert.True(t, resource.Conflicts(first.ResourceUses()[0], second.ResourceUses()[0]))
}
