package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/runcore/internal/resource"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue("infeed", 0)
	require.NoError(t, q.Enqueue([]byte{1}))
	require.NoError(t, q.Enqueue([]byte{2}))
	assert.Equal(t, 2, q.Len())

	first, err := q.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, first)

	second, err := q.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, []byte{2}, second)

	_, err = q.Dequeue()
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestQueueCopiesPayloads(t *testing.T) {
	q := NewQueue("infeed", 0)
	payload := []byte{1, 2, 3}
	require.NoError(t, q.Enqueue(payload))

	payload[0] = 99
	got, err := q.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got, "queued payload must not alias the caller's slice")
}

func TestQueueCapacity(t *testing.T) {
	q := NewQueue("outfeed", 1)
	require.NoError(t, q.Enqueue([]byte{1}))
	assert.ErrorIs(t, q.Enqueue([]byte{2}), ErrFull)

	_, err := q.Dequeue()
	require.NoError(t, err)
	assert.NoError(t, q.Enqueue([]byte{2}))
}

func TestQueueResource(t *testing.T) {
	q := NewQueue("infeed", 0)
	assert.Same(t, q.Resource(), q.Resource())
	assert.Equal(t, resource.Channel, q.Resource().Kind())
}

func TestManager(t *testing.T) {
	m := NewManager(4)
	require.NotNil(t, m.Infeed)
	require.NotNil(t, m.Outfeed)
	assert.NotSame(t, m.Infeed.Resource(), m.Outfeed.Resource(),
		"infeed and outfeed must not serialize against each other")
}
