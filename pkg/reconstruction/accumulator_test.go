package reconstruction

import (
	"bytes"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"odtrecon/pkg/arena"
	"odtrecon/pkg/transform"
	"odtrecon/pkg/workpool"
)

type accumulatorFixture struct {
	layout padLayout
	plan   *transform.Plan
	exec   workpool.Executor
	cfg    settings
	proj   []complex128
	depth  []complex128
}

func newAccumulatorFixture(t *testing.T, ln, ny, nx int, opts Options) *accumulatorFixture {
	t.Helper()

	f := &accumulatorFixture{
		layout: newPadLayout(ny, nx, opts.Padding, opts.PadFactor),
		exec:   workpool.New(2),
		cfg:    settings{Options: opts, workers: 2, logger: slog.New(slog.DiscardHandler)},
	}
	provider := transform.NewProvider(2)
	t.Cleanup(func() {
		provider.Close()
		f.exec.Close()
	})

	var err error
	f.plan, err = provider.Plan(f.layout.lNy, f.layout.lNx, Float64)
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(21, 22))
	f.proj = make([]complex128, f.layout.size())
	for i := range f.proj {
		f.proj[i] = complex(rng.NormFloat64(), rng.NormFloat64())
	}
	filter := newFrequencyFilter(f.layout, 4, 1.33, 2, 1, Float64)
	f.depth, err = buildDepthFilter[complex128](ln, f.layout, filter, f.exec)
	require.NoError(t, err)
	return f
}

func TestAccumulatorZeroAngleIsIdentity(t *testing.T) {
	const ln, ny, nx = 7, 5, 6
	for _, order := range []int{0, 1, 2, 3, 5} {
		opts := DefaultOptions()
		opts.Padding = Padding{}
		opts.InterpolationOrder = order
		f := newAccumulatorFixture(t, ln, ny, nx, opts)

		acc, err := newAccumulator[float64, complex128](ln, f.layout, f.plan, f.exec, f.cfg)
		require.NoError(t, err)
		require.NoError(t, acc.add(f.proj, f.depth, 0))
		vol, err := acc.volume()
		require.NoError(t, err)
		require.NoError(t, acc.Close())

		ref, err := newAccumulator[float64, complex128](ln, f.layout, f.plan, f.exec, f.cfg)
		require.NoError(t, err)
		require.NoError(t, ref.filter(f.proj, f.depth))

		assert.InDeltaSlice(t, ref.filtered[realPart], vol.Real, 1e-9, "order %d", order)
		assert.InDeltaSlice(t, ref.filtered[imagPart], vol.Imag, 1e-9, "order %d", order)
		require.NoError(t, ref.Close())
	}
}

func TestAccumulatorBuffering(t *testing.T) {
	tests := []struct {
		name      string
		buffering Buffering
		onlyReal  bool
		buffers   int
		channels  int
	}{
		{"double", DoubleBuffer, false, 2, 2},
		{"double real only", DoubleBuffer, true, 2, 1},
		{"single", SingleBuffer, false, 1, 2},
		{"single real only", SingleBuffer, true, 1, 1},
	}

	const ln, ny, nx = 6, 4, 6
	var want *Volume
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.Buffering = tt.buffering
			opts.OnlyReal = tt.onlyReal
			f := newAccumulatorFixture(t, ln, ny, nx, opts)

			acc, err := newAccumulator[float64, complex128](ln, f.layout, f.plan, f.exec, f.cfg)
			require.NoError(t, err)
			defer acc.Close()
			assert.Len(t, acc.buffers, tt.buffers)
			assert.Len(t, acc.channels, tt.channels)

			for _, phi := range []float64{0.3, 1.2, 2.9} {
				require.NoError(t, acc.add(f.proj, f.depth, phi))
				assert.LessOrEqual(t, len(acc.pending), tt.buffers)
			}
			vol, err := acc.volume()
			require.NoError(t, err)
			assert.Empty(t, acc.pending)

			if want == nil {
				want = vol
				return
			}
			assert.Equal(t, want.Real, vol.Real)
			if vol.Imag != nil {
				assert.Equal(t, want.Imag, vol.Imag)
			}
		})
	}
}

func TestAccumulatorCloseWaitsForPending(t *testing.T) {
	const ln, ny, nx = 5, 4, 5
	f := newAccumulatorFixture(t, ln, ny, nx, DefaultOptions())

	acc, err := newAccumulator[float32, complex128](ln, f.layout, f.plan, f.exec, f.cfg)
	require.NoError(t, err)
	require.NoError(t, acc.add(f.proj, f.depth, 0.7))
	assert.NoError(t, acc.Close())
	assert.Empty(t, acc.pending)
	assert.NoError(t, acc.Close())
}

func TestAccumulatorLogsSharedBuffers(t *testing.T) {
	const ln, ny, nx = 4, 3, 4

	sample, err := arena.New[float64](1, 1, 1)
	require.NoError(t, err)
	mapped := sample.Mapped()
	require.NoError(t, sample.Close())

	for _, buffering := range []Buffering{DoubleBuffer, SingleBuffer} {
		opts := DefaultOptions()
		opts.Buffering = buffering
		f := newAccumulatorFixture(t, ln, ny, nx, opts)

		var out bytes.Buffer
		f.cfg.logger = slog.New(slog.NewTextHandler(&out, &slog.HandlerOptions{Level: slog.LevelDebug}))

		acc, err := newAccumulator[float64, complex128](ln, f.layout, f.plan, f.exec, f.cfg)
		require.NoError(t, err)
		require.NoError(t, acc.Close())

		count := 2
		if buffering == SingleBuffer {
			count = 1
		}
		assert.Contains(t, out.String(), "shared buffers allocated")
		assert.Contains(t, out.String(), fmt.Sprintf("count=%d", count))
		assert.Contains(t, out.String(), fmt.Sprintf("memory_mapped=%t", mapped))
	}
}

func TestChannelSet(t *testing.T) {
	both := newChannelSet(false)
	assert.Equal(t, channelSet{realPart, imagPart}, both)
	assert.True(t, both.has(imagPart))

	realOnly := newChannelSet(true)
	assert.Equal(t, channelSet{realPart}, realOnly)
	assert.False(t, realOnly.has(imagPart))
	assert.Equal(t, "imag", imagPart.String())
}
