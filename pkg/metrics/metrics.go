// Package metrics scores a reconstructed object function against a ground
// truth volume.
package metrics

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"odtrecon/internal/models"
	"odtrecon/pkg/transform"
)

// ErrShapeMismatch is returned when two volumes cannot be compared.
var ErrShapeMismatch = errors.New("metrics: volume shapes differ")

// entropyBins is the histogram resolution used for entropy estimates.
const entropyBins = 256

// Report holds the quality metrics of one reconstruction.
type Report struct {
	// MI (Mutual Information) is the Gaussian estimate of the statistical
	// dependency between truth and reconstruction. Higher is better.
	MI float64

	// EntropyDiff is the absolute difference of the histogram entropies.
	// Lower is better.
	EntropyDiff float64

	// RMSE is the root mean square voxel error.
	RMSE float64

	// NRMSE is RMSE divided by the dynamic range of the truth.
	NRMSE float64

	// SSIM is the global structural similarity index, in [-1, 1].
	SSIM float64

	// Correlation is the Pearson correlation of the voxel values.
	Correlation float64

	// EdgePreserved is the correlation of the gradient magnitudes, in [-1, 1].
	EdgePreserved float64
}

// Compare scores the real part of recon against truth. The reconstruction
// is mapped onto the truth by a least-squares gain and offset first, since
// backpropagation from few angles recovers the object only up to an affine
// change of scale.
func Compare(truth, recon *models.Volume) (Report, error) {
	if truth.Depth != recon.Depth || truth.Height != recon.Height || truth.Width != recon.Width {
		return Report{}, fmt.Errorf("%w: %dx%dx%d vs %dx%dx%d", ErrShapeMismatch,
			truth.Depth, truth.Height, truth.Width, recon.Depth, recon.Height, recon.Width)
	}

	x := truth.Real
	gain, offset, err := Fit(x, recon.Real)
	if err != nil {
		return Report{}, err
	}
	y := make([]float64, len(recon.Real))
	for i, v := range recon.Real {
		y[i] = gain*v + offset
	}
	fitted := &models.Volume{Real: y, Depth: recon.Depth, Height: recon.Height, Width: recon.Width}

	lo, hi := floats.Min(x), floats.Max(x)
	r := Report{
		MI:            MutualInformation(x, y),
		EntropyDiff:   math.Abs(Entropy(x) - Entropy(y)),
		RMSE:          RMSE(x, y),
		SSIM:          SSIM(x, y, hi-lo),
		Correlation:   stat.Correlation(x, y, nil),
		EdgePreserved: EdgePreservation(truth, fitted),
	}
	if hi > lo {
		r.NRMSE = r.RMSE / (hi - lo)
	}
	return r, nil
}

// Fit returns the gain and offset minimising |truth - (gain·recon + offset)|²,
// solved by QR factorization of the n×2 design matrix. A constant recon
// yields a zero gain and the mean of truth.
func Fit(truth, recon []float64) (gain, offset float64, err error) {
	n := len(truth)
	if n != len(recon) || n < 2 {
		return 0, 0, fmt.Errorf("%w: fit of %d values to %d", ErrShapeMismatch, len(recon), n)
	}
	if floats.Min(recon) == floats.Max(recon) {
		return 0, stat.Mean(truth, nil), nil
	}

	design := mat.NewDense(n, 2, nil)
	for i, v := range recon {
		design.Set(i, 0, v)
		design.Set(i, 1, 1)
	}
	var qr mat.QR
	qr.Factorize(design)

	coef := mat.NewDense(2, 1, nil)
	if err := qr.SolveTo(coef, false, mat.NewVecDense(n, truth)); err != nil {
		return 0, 0, fmt.Errorf("metrics: least squares fit: %w", err)
	}
	return coef.At(0, 0), coef.At(1, 0), nil
}

// MutualInformation computes 0.5·log(σx²σy² / (σx²σy² - σxy²)), the mutual
// information of two jointly Gaussian variables.
func MutualInformation(x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 2 {
		return 0
	}
	vx := stat.Variance(x, nil)
	vy := stat.Variance(y, nil)
	cov := stat.Covariance(x, y, nil)
	det := vx*vy - cov*cov
	if vx > 0 && vy > 0 && det > 0 {
		return 0.5 * math.Log(vx*vy/det)
	}
	return 0
}

// RMSE computes the root mean square error.
func RMSE(x, y []float64) float64 {
	if len(x) != len(y) || len(x) == 0 {
		return 0
	}
	return floats.Distance(x, y, 2) / math.Sqrt(float64(len(x)))
}

// SSIM computes the structural similarity index over the whole volume for
// the given dynamic range.
func SSIM(x, y []float64, dynamicRange float64) float64 {
	const k1, k2 = 0.01, 0.03
	if len(x) != len(y) || len(x) < 2 {
		return 0
	}
	if dynamicRange <= 0 {
		dynamicRange = 1
	}
	c1 := (k1 * dynamicRange) * (k1 * dynamicRange)
	c2 := (k2 * dynamicRange) * (k2 * dynamicRange)

	muX, muY := stat.Mean(x, nil), stat.Mean(y, nil)
	num := (2*muX*muY + c1) * (2*stat.Covariance(x, y, nil) + c2)
	den := (muX*muX + muY*muY + c1) * (stat.Variance(x, nil) + stat.Variance(y, nil) + c2)
	if den > 0 {
		return num / den
	}
	return 0
}

// Entropy computes the Shannon entropy in bits of a 256-bin histogram
// spanning the data range.
func Entropy(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	lo, hi := floats.Min(data), floats.Max(data)
	if hi <= lo {
		return 0
	}

	dividers := make([]float64, entropyBins+1)
	floats.Span(dividers, lo, hi)
	// Histogram requires the last divider to exceed every value.
	dividers[entropyBins] = math.Nextafter(hi, math.Inf(1))

	sorted := slices.Clone(data)
	slices.Sort(sorted)
	counts := stat.Histogram(nil, dividers, sorted, nil)

	n := float64(len(data))
	var h float64
	for _, c := range counts {
		if c > 0 {
			p := c / n
			h -= p * math.Log2(p)
		}
	}
	return h
}

// EdgePreservation correlates the gradient magnitude maps of two volumes.
func EdgePreservation(truth, recon *models.Volume) float64 {
	gt := gradientMagnitude(truth.Real, truth.Depth, truth.Height, truth.Width)
	gr := gradientMagnitude(recon.Real, recon.Depth, recon.Height, recon.Width)
	if len(gt) != len(gr) || len(gt) < 2 {
		return 0
	}
	c := stat.Correlation(gt, gr, nil)
	if math.IsNaN(c) {
		return 0
	}
	return c
}

// gradientMagnitude uses central differences inside the volume and
// one-sided differences on its faces.
func gradientMagnitude(data []float64, depth, height, width int) []float64 {
	out := make([]float64, len(data))
	at := func(z, y, x int) float64 { return data[(z*height+y)*width+x] }
	diff := func(i, n int, get func(int) float64) float64 {
		switch {
		case n == 1:
			return 0
		case i == 0:
			return get(1) - get(0)
		case i == n-1:
			return get(n-1) - get(n-2)
		default:
			return (get(i+1) - get(i-1)) / 2
		}
	}
	for z := 0; z < depth; z++ {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				gz := diff(z, depth, func(k int) float64 { return at(k, y, x) })
				gy := diff(y, height, func(k int) float64 { return at(z, k, x) })
				gx := diff(x, width, func(k int) float64 { return at(z, y, k) })
				out[(z*height+y)*width+x] = math.Sqrt(gz*gz + gy*gy + gx*gx)
			}
		}
	}
	return out
}

// PeakLocation returns the voxel holding the largest real value.
func PeakLocation(vol *models.Volume) (z, y, x int) {
	idx := floats.MaxIdx(vol.Real)
	x = idx % vol.Width
	y = (idx / vol.Width) % vol.Height
	z = idx / (vol.Width * vol.Height)
	return z, y, x
}

// SpectralLeakage returns the fraction of the volume's spectral power at
// spatial frequencies above cutoff, in radians per voxel.
func SpectralLeakage(vol *models.Volume, cutoff float64) (float64, error) {
	data := make([]complex128, vol.Len())
	for i := range data {
		data[i] = complex(vol.Real[i], 0)
		if vol.Imag != nil {
			data[i] += complex(0, vol.Imag[i])
		}
	}
	if err := transform.Forward3D(data, vol.Depth, vol.Height, vol.Width); err != nil {
		return 0, err
	}

	fz := transform.Frequencies(vol.Depth)
	fy := transform.Frequencies(vol.Height)
	fx := transform.Frequencies(vol.Width)
	limit := cutoff / (2 * math.Pi)
	limit *= limit

	var total, outside float64
	for z, vz := range fz {
		for y, vy := range fy {
			for x, vx := range fx {
				v := data[(z*vol.Height+y)*vol.Width+x]
				p := real(v)*real(v) + imag(v)*imag(v)
				total += p
				if vz*vz+vy*vy+vx*vx > limit {
					outside += p
				}
			}
		}
	}
	if total == 0 {
		return 0, nil
	}
	return outside / total, nil
}
