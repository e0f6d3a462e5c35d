package collective

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopbackAllReduce(t *testing.T) {
	l := NewLoopback()

	src := []byte{1, 2, 3, 4}
	dst := make([]byte, 4)
	require.NoError(t, l.AllReduce(context.Background(), "key", src, dst))
	assert.Equal(t, src, dst)
}

func TestLoopbackAllReduceSizeMismatch(t *testing.T) {
	l := NewLoopback()
	err := l.AllReduce(context.Background(), "key", []byte{1, 2}, make([]byte, 4))
	assert.Error(t, err)
}
