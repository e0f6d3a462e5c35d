package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSliceOverlaps(t *testing.T) {
	t.Run("overlapping ranges in same allocation", func(t *testing.T) {
		a := NewSlice(0, 0, 64)
		b := NewSlice(0, 32, 64)
		assert.True(t, a.Overlaps(b))
		assert.True(t, b.Overlaps(a))
	})

	t.Run("adjacent ranges do not overlap", func(t *testing.T) {
		a := NewSlice(0, 0, 64)
		b := NewSlice(0, 64, 64)
		assert.False(t, a.Overlaps(b))
		assert.False(t, b.Overlaps(a))
	})

	t.Run("same range in different allocations", func(t *testing.T) {
		a := NewSlice(0, 0, 64)
		b := NewSlice(1, 0, 64)
		assert.False(t, a.Overlaps(b))
	})

	t.Run("contained range", func(t *testing.T) {
		outer := NewSlice(0, 0, 128)
		inner := NewSlice(0, 16, 8)
		assert.True(t, outer.Overlaps(inner))
		assert.True(t, inner.Overlaps(outer))
	})
}

func TestConflicts(t *testing.T) {
	x := NewSlice(0, 0, 64)
	xTail := NewSlice(0, 32, 64)
	y := NewSlice(1, 0, 64)

	t.Run("read read never conflicts", func(t *testing.T) {
		assert.False(t, Conflicts(ReadUse(x), ReadUse(x)))
	})

	t.Run("write read on overlapping slices conflicts", func(t *testing.T) {
		assert.True(t, Conflicts(WriteUse(x), ReadUse(xTail)))
		assert.True(t, Conflicts(ReadUse(xTail), WriteUse(x)))
	})

	t.Run("write write on same slice conflicts", func(t *testing.T) {
		assert.True(t, Conflicts(WriteUse(x), WriteUse(x)))
	})

	t.Run("disjoint slices never conflict", func(t *testing.T) {
		assert.False(t, Conflicts(WriteUse(x), WriteUse(y)))
	})
}

func TestAllocationsResolve(t *testing.T) {
	allocs := NewAllocations([][]byte{make([]byte, 128), make([]byte, 16)})
	require.Equal(t, 2, allocs.Count())

	t.Run("resolves a valid slice", func(t *testing.T) {
		view, err := allocs.Resolve(NewSlice(0, 32, 64))
		require.NoError(t, err)
		assert.Len(t, view, 64)

		// Writes through the view land in the backing allocation.
		view[0] = 42
		full, err := allocs.Resolve(NewSlice(0, 0, 128))
		require.NoError(t, err)
		assert.Equal(t, byte(42), full[32])
	})

	t.Run("rejects unknown allocation", func(t *testing.T) {
		_, err := allocs.Resolve(NewSlice(5, 0, 8))
		assert.Error(t, err)
	})

	t.Run("rejects out-of-bounds range", func(t *testing.T) {
		_, err := allocs.Resolve(NewSlice(1, 8, 16))
		assert.Error(t, err)
	})

	t.Run("reports allocation sizes", func(t *testing.T) {
		size, err := allocs.Size(1)
		require.NoError(t, err)
		assert.Equal(t, int64(16), size)
	})
}

func TestUseString(t *testing.T) {
	u := WriteUse(NewSlice(2, 16, 48))
	assert.Equal(t, "write a2[16:64)", u.String())
}
