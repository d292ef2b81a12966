package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInvalidShape(t *testing.T) {
	_, err := New[float64](0, 4, 4)
	assert.ErrorIs(t, err, ErrAllocation)
}

func TestBufferHandOff(t *testing.T) {
	buf, err := New[float64](2, 3, 4)
	require.NoError(t, err)
	defer buf.Close()

	d, h, w := buf.Shape()
	assert.Equal(t, []int{2, 3, 4}, []int{d, h, w})

	src := make([]float64, buf.Len())
	for i := range src {
		src[i] = float64(i)
	}
	require.NoError(t, buf.Load(src))

	handle, err := buf.Share()
	require.NoError(t, err)

	// Workers scale their data in place.
	data := handle.Data()
	for i := range data {
		data[i] *= 2
	}

	require.NoError(t, buf.Reclaim(handle))

	dst := make([]float64, buf.Len())
	require.NoError(t, buf.AddTo(dst))
	require.NoError(t, buf.AddTo(dst))
	for i, v := range dst {
		assert.Equal(t, 4*float64(i), v)
	}
}

func TestBufferRejectsOverlappingGenerations(t *testing.T) {
	buf, err := New[float32](1, 2, 2)
	require.NoError(t, err)
	defer buf.Close()

	handle, err := buf.Share()
	require.NoError(t, err)

	// The owner may not write or read while workers hold the buffer.
	assert.ErrorIs(t, buf.Load(make([]float32, 4)), ErrState)
	assert.ErrorIs(t, buf.AddTo(make([]float32, 4)), ErrState)
	_, err = buf.Share()
	assert.ErrorIs(t, err, ErrState)

	require.NoError(t, buf.Reclaim(handle))
	assert.ErrorIs(t, buf.Reclaim(handle), ErrState)

	// A handle from an older generation is stale.
	next, err := buf.Share()
	require.NoError(t, err)
	assert.Panics(t, func() { handle.Data() })
	assert.NotPanics(t, func() { next.Data() })
	assert.ErrorIs(t, buf.Reclaim(handle), ErrState)
	require.NoError(t, buf.Reclaim(next))
}

func TestBufferLengthMismatch(t *testing.T) {
	buf, err := New[float64](1, 1, 3)
	require.NoError(t, err)
	defer buf.Close()

	assert.Error(t, buf.Load(make([]float64, 2)))
	assert.Error(t, buf.AddTo(make([]float64, 4)))
}

func TestBufferClose(t *testing.T) {
	buf, err := New[float64](1, 2, 2)
	require.NoError(t, err)

	require.NoError(t, buf.Close())
	require.NoError(t, buf.Close())

	assert.ErrorIs(t, buf.Load(make([]float64, 4)), ErrClosed)
	_, err = buf.Share()
	assert.ErrorIs(t, err, ErrClosed)
}
