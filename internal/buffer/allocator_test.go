package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolAllocate(t *testing.T) {
	p := NewPool(0)

	buf, err := p.Allocate(100)
	require.NoError(t, err)
	assert.Len(t, buf, 100)

	stats := p.Stats()
	assert.Equal(t, int64(1), stats.NumAllocs)
	assert.Equal(t, int64(128), stats.BytesInUse) // rounded to the 128 size class
	assert.Equal(t, int64(100), stats.LargestAllocSize)
}

func TestPoolReusesFreedBuffers(t *testing.T) {
	p := NewPool(0)

	first, err := p.Allocate(64)
	require.NoError(t, err)
	first[0] = 0xff
	firstPtr := &first[0]
	require.NoError(t, p.Free(first))

	second, err := p.Allocate(64)
	require.NoError(t, err)
	assert.Same(t, firstPtr, &second[0], "freed buffer should be reused")
	assert.Equal(t, byte(0), second[0], "reused buffer must be zeroed")
}

func TestPoolLimit(t *testing.T) {
	p := NewPool(256)

	buf, err := p.Allocate(200) // 256 size class
	require.NoError(t, err)

	_, err = p.Allocate(1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOutOfMemory)

	require.NoError(t, p.Free(buf))
	_, err = p.Allocate(1)
	assert.NoError(t, err)
}

func TestPoolFreeValidation(t *testing.T) {
	p := NewPool(0)

	t.Run("foreign buffer is rejected", func(t *testing.T) {
		err := p.Free(make([]byte, 32))
		assert.Error(t, err)
	})

	t.Run("zero-length free is a no-op", func(t *testing.T) {
		assert.NoError(t, p.Free(nil))
	})
}

func TestPoolStats(t *testing.T) {
	p := NewPool(0)

	a, err := p.Allocate(64)
	require.NoError(t, err)
	b, err := p.Allocate(64)
	require.NoError(t, err)
	require.NoError(t, p.Free(a))

	stats := p.Stats()
	assert.Equal(t, int64(2), stats.NumAllocs)
	assert.Equal(t, int64(1), stats.NumFrees)
	assert.Equal(t, int64(64), stats.BytesInUse)
	assert.Equal(t, int64(128), stats.PeakBytesInUse)

	require.NoError(t, p.Free(b))
	assert.Equal(t, int64(0), p.Stats().BytesInUse)
}

func TestBucketFor(t *testing.T) {
	assert.Equal(t, int64(64), bucketFor(1))
	assert.Equal(t, int64(64), bucketFor(64))
	assert.Equal(t, int64(128), bucketFor(65))
	assert.Equal(t, int64(1024), bucketFor(1024))
	assert.Equal(t, int64(2048), bucketFor(1025))
}
