package reconstruction

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// AngleWeights returns one weight per acquisition angle, proportional to
// the angular interval the projection covers. Angles are reduced modulo π,
// since φ and φ+π sample the same Ewald-sphere support. Weights sum to
// len(angles). Degenerate sets (a single angle, or coincident angles)
// yield all ones.
func AngleWeights(angles []float64) []float64 {
	n := len(angles)
	w := make([]float64, n)
	if n == 0 {
		return w
	}

	lowest := floats.Min(angles)
	sorted := make([]float64, n)
	for i, a := range angles {
		sorted[i] = modPi(a - lowest)
	}
	inds := make([]int, n)
	floats.Argsort(sorted, inds)

	gaps := make([]float64, n)
	for k := range gaps {
		next := sorted[(k+1)%n]
		prev := sorted[(k-1+n)%n]
		gaps[k] = modPi(next - prev)
	}

	total := floats.Sum(gaps)
	if n == 1 || !(total > 0) {
		for i := range w {
			w[i] = 1
		}
		return w
	}

	floats.Scale(float64(n)/total, gaps)
	for k, idx := range inds {
		w[idx] = gaps[k]
	}
	return w
}

func modPi(a float64) float64 {
	m := math.Mod(a, math.Pi)
	if m < 0 {
		m += math.Pi
	}
	return m
}
