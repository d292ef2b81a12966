package reconstruction

import (
	"errors"
	"math"
	"math/rand/v2"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"odtrecon/pkg/metrics"
	"odtrecon/pkg/phantom"
)

func randomSinogram(seed uint64, angles, height, width int) *Sinogram {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	sino := NewSinogram(angles, height, width)
	for i := range sino.Data {
		sino.Data[i] = complex(rng.NormFloat64(), rng.NormFloat64())
	}
	return sino
}

func maxAbs(values []float64) float64 {
	var m float64
	for _, v := range values {
		m = max(m, math.Abs(v))
	}
	return m
}

func testAngles() []float64 {
	return []float64{0.1, 0.9, 2.0, 3.3, 4.1, 5.5}
}

func TestBackpropagateZeroSinogram(t *testing.T) {
	zero := 0.0
	tests := []struct {
		name   string
		modify func(*Options)
	}{
		{name: "defaults", modify: func(*Options) {}},
		{name: "real only", modify: func(o *Options) { o.OnlyReal = true }},
		{name: "float32", modify: func(o *Options) { o.Precision = Float32 }},
		{name: "nearest", modify: func(o *Options) { o.InterpolationOrder = 0 }},
		{name: "quintic", modify: func(o *Options) { o.InterpolationOrder = 5 }},
		{name: "single buffer", modify: func(o *Options) { o.Buffering = SingleBuffer }},
		{name: "sequential", modify: func(o *Options) { o.Executor = ExecutorSequential }},
		{name: "no padding", modify: func(o *Options) { o.Padding = Padding{} }},
		{name: "ramp to zero", modify: func(o *Options) { o.PadValue = &zero }},
		{name: "unweighted", modify: func(o *Options) { o.WeightAngles = false }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.modify(&opts)

			sino := NewSinogram(4, 8, 10)
			vol, err := Backpropagate3D(sino, []float64{0, 1, 2, 3}, 5, 1.33, 4, opts)
			require.NoError(t, err)

			assert.Equal(t, 10, vol.Depth)
			assert.Equal(t, 8, vol.Height)
			assert.Equal(t, 10, vol.Width)
			assert.Equal(t, !opts.OnlyReal, vol.IsComplex())

			nonzero := 0
			for i, v := range vol.Real {
				if v != 0 || (vol.Imag != nil && vol.Imag[i] != 0) {
					nonzero++
				}
			}
			assert.Zero(t, nonzero)
		})
	}
}

func TestBackpropagateRealOnlyMatchesRealPart(t *testing.T) {
	sino := randomSinogram(7, 6, 8, 10)
	opts := DefaultOptions()

	full, err := Backpropagate3D(sino, testAngles(), 6, 1.33, 3, opts)
	require.NoError(t, err)

	opts.OnlyReal = true
	realOnly, err := Backpropagate3D(sino, testAngles(), 6, 1.33, 3, opts)
	require.NoError(t, err)

	assert.Nil(t, realOnly.Imag)
	assert.Equal(t, full.Real, realOnly.Real)
	assert.NotZero(t, maxAbs(full.Imag))
}

func TestBackpropagateExecutorsAgree(t *testing.T) {
	sino := randomSinogram(11, 6, 9, 7)
	workers := min(4, runtime.NumCPU())

	base := DefaultOptions()
	base.Executor = ExecutorSequential
	base.Buffering = SingleBuffer
	want, err := Backpropagate3D(sino, testAngles(), 5, 1, 2, base)
	require.NoError(t, err)
	require.NotZero(t, maxAbs(want.Real))

	for _, exec := range []ExecutorKind{ExecutorSequential, ExecutorParallel, ExecutorAuto} {
		for _, buffering := range []Buffering{SingleBuffer, DoubleBuffer} {
			t.Run(exec.String()+"/"+buffering.String(), func(t *testing.T) {
				opts := DefaultOptions()
				opts.Executor = exec
				opts.Buffering = buffering
				opts.Workers = workers

				got, err := Backpropagate3D(sino, testAngles(), 5, 1, 2, opts)
				require.NoError(t, err)
				assert.Equal(t, want.Real, got.Real)
				assert.Equal(t, want.Imag, got.Imag)
			})
		}
	}
}

func TestBackpropagatePermutationInvariance(t *testing.T) {
	angles := testAngles()
	sino := randomSinogram(5, len(angles), 8, 8)
	opts := DefaultOptions()

	want, err := Backpropagate3D(sino, angles, 5, 1.33, 0, opts)
	require.NoError(t, err)

	perm := []int{4, 2, 5, 0, 3, 1}
	shuffled := NewSinogram(len(angles), 8, 8)
	permuted := make([]float64, len(angles))
	for i, p := range perm {
		permuted[i] = angles[p]
		copy(shuffled.Projection(i), sino.Projection(p))
	}
	got, err := Backpropagate3D(shuffled, permuted, 5, 1.33, 0, opts)
	require.NoError(t, err)

	tol := 1e-9 * maxAbs(want.Real)
	assert.InDeltaSlice(t, want.Real, got.Real, tol)
	assert.InDeltaSlice(t, want.Imag, got.Imag, tol)
}

func TestBackpropagateFloat32CloseToFloat64(t *testing.T) {
	sino := randomSinogram(9, 6, 8, 8)
	opts := DefaultOptions()

	want, err := Backpropagate3D(sino, testAngles(), 5, 1.33, 2, opts)
	require.NoError(t, err)

	opts.Precision = Float32
	got, err := Backpropagate3D(sino, testAngles(), 5, 1.33, 2, opts)
	require.NoError(t, err)

	tol := 1e-3 * maxAbs(want.Real)
	assert.InDeltaSlice(t, want.Real, got.Real, tol)
	assert.InDeltaSlice(t, want.Imag, got.Imag, tol)
}

func TestBackpropagateLeavesInputUntouched(t *testing.T) {
	sino := randomSinogram(13, 6, 8, 8)
	orig := append([]complex128(nil), sino.Data...)
	angles := testAngles()
	origAngles := append([]float64(nil), angles...)

	_, err := Backpropagate3D(sino, angles, 5, 1.33, 2, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, orig, sino.Data)
	assert.Equal(t, origAngles, angles)
}

func TestBackpropagateValidation(t *testing.T) {
	nan := math.NaN()
	tests := []struct {
		name   string
		sino   *Sinogram
		angles []float64
		res    float64
		lD     float64
		modify func(*Options)
		field  string
		kind   error
	}{
		{name: "nil sinogram", sino: nil, field: "sinogram"},
		{name: "short data", sino: &Sinogram{Data: make([]complex128, 5), Angles: 2, Height: 2, Width: 2}, field: "sinogram"},
		{name: "angle count", angles: []float64{0}, field: "angles"},
		{name: "nan angle", angles: []float64{0, nan}, field: "angles"},
		{name: "negative wavelength", res: -1, field: "res"},
		{name: "infinite distance", lD: math.Inf(1), field: "lD"},
		{name: "pad factor", modify: func(o *Options) { o.PadFactor = 0.5 }, field: "padfac"},
		{name: "pad value", modify: func(o *Options) { o.PadValue = &nan }, field: "padval"},
		{name: "order", modify: func(o *Options) { o.InterpolationOrder = 6 }, field: "interpolation order"},
		{name: "precision", modify: func(o *Options) { o.Precision = Precision(7) }, field: "precision"},
		{name: "negative workers", modify: func(o *Options) { o.Workers = -1 }, field: "workers"},
		{name: "too many workers", modify: func(o *Options) { o.Workers = runtime.NumCPU() + 1 }, field: "workers"},
		{name: "executor", modify: func(o *Options) { o.Executor = ExecutorKind(9) }, field: "executor"},
		{name: "buffering", modify: func(o *Options) { o.Buffering = Buffering(9) }, field: "buffering"},
		{name: "coords", modify: func(o *Options) { o.Coords = [][3]float64{{0, 0, 0}} }, field: "coords", kind: ErrUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sino := tt.sino
			if sino == nil && tt.field != "sinogram" {
				sino = NewSinogram(2, 4, 4)
			}
			angles := tt.angles
			if angles == nil {
				angles = []float64{0, 1}
			}
			res := 5.0
			if tt.res != 0 {
				res = tt.res
			}
			opts := DefaultOptions()
			if tt.modify != nil {
				tt.modify(&opts)
			}

			vol, err := Backpropagate3D(sino, angles, res, 1.33, tt.lD, opts)
			require.Error(t, err)
			assert.Nil(t, vol)

			kind := tt.kind
			if kind == nil {
				kind = ErrValidation
			}
			assert.ErrorIs(t, err, kind)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestBackpropagatePointScatterer(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping end-to-end reconstruction in short mode")
	}

	geom := phantom.Geometry{Height: 31, Width: 31, Wavelength: 5, MediumIndex: 1, Distance: 2}
	scatterer := phantom.Scatterer{Z: 3, Y: -2, X: 4, Sigma: 1.5, Amplitude: 0.01}
	angles := phantom.Angles(16)

	sino, err := phantom.Sinogram(geom, scatterer, angles)
	require.NoError(t, err)

	vol, err := Backpropagate3D(sino, angles, geom.Wavelength, geom.MediumIndex, geom.Distance, DefaultOptions())
	require.NoError(t, err)

	wz, wy, wx := scatterer.Voxel(geom)
	z, y, x := metrics.PeakLocation(vol)
	assert.LessOrEqual(t, abs(z-wz), 1, "peak z %d, want %d", z, wz)
	assert.LessOrEqual(t, abs(y-wy), 1, "peak y %d, want %d", y, wy)
	assert.LessOrEqual(t, abs(x-wx), 1, "peak x %d, want %d", x, wx)

	leakage, err := metrics.SpectralLeakage(vol, 2*geom.Wavenumber())
	require.NoError(t, err)
	assert.Less(t, leakage, 0.25)

	truth, err := phantom.Object(geom, scatterer)
	require.NoError(t, err)
	report, err := metrics.Compare(truth, vol)
	require.NoError(t, err)
	assert.Greater(t, report.Correlation, 0.5)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
