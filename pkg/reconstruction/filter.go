package reconstruction

import (
	"fmt"
	"math"
	"math/cmplx"

	"odtrecon/pkg/transform"
	"odtrecon/pkg/workpool"
)

// spectrum is the set of complex storage types, one per precision.
type spectrum interface {
	complex64 | complex128
}

// frequencyFilter holds the per-frequency terms shared by the forward pass
// and the depth filter.
type frequencyFilter struct {
	km float64

	// m is sqrt(km²-kx²-ky²)/km inside the Ewald band and zero outside.
	m []float64

	// prefactor is -i·km/(2π)·(2π/A)·|kx|·exp(-i·km·M·lD), masked.
	prefactor []complex128
}

func newFrequencyFilter(l padLayout, res, nm, lD float64, angles int, precision Precision) *frequencyFilter {
	km := 2 * math.Pi * nm / res
	fy := transform.Frequencies(l.lNy)
	fx := transform.Frequencies(l.lNx)
	dphi := 2 * math.Pi / float64(angles)

	f := &frequencyFilter{
		km:        km,
		m:         make([]float64, l.size()),
		prefactor: make([]complex128, l.size()),
	}
	scale := complex(0, -km/(2*math.Pi))
	for y, vy := range fy {
		ky := 2 * math.Pi * vy
		for x, vx := range fx {
			kx := 2 * math.Pi * vx
			k2 := kx*kx + ky*ky
			if k2 >= km*km {
				continue
			}
			i := y*l.lNx + x
			m := math.Sqrt(km*km-k2) / km
			f.m[i] = m
			p := scale * complex(dphi*math.Abs(kx), 0) * cmplx.Exp(complex(0, -km*m*lD))
			f.prefactor[i] = precision.Round(p)
		}
	}
	return f
}

// forwardProjections pads, weights and transforms every projection and
// applies the prefactor. The result holds one lNy×lNx spectrum per angle.
func forwardProjections[C spectrum](
	sino *Sinogram,
	weights []float64,
	l padLayout,
	filter *frequencyFilter,
	plan *transform.Plan,
	exec workpool.Executor,
	padValue *float64,
) ([]C, error) {
	size := l.size()
	out := make([]C, sino.Angles*size)

	ranges := workpool.Split(sino.Angles, exec.Workers())
	tasks := make([]workpool.Task, len(ranges))
	for t, r := range ranges {
		tasks[t] = func() error {
			buf := make([]complex128, size)
			for a := r.Start; a < r.End; a++ {
				w := 1.0
				if weights != nil {
					w = weights[a]
				}
				padSlice(buf, sino.Projection(a), w, l, padValue)
				if err := plan.Forward(buf); err != nil {
					return fmt.Errorf("projection %d: %w", a, err)
				}
				dst := out[a*size : (a+1)*size]
				for i, v := range buf {
					dst[i] = C(v * filter.prefactor[i])
				}
			}
			return nil
		}
	}
	if err := exec.Submit(tasks...).Wait(); err != nil {
		return nil, fmt.Errorf("forward transform: %w", err)
	}
	return out, nil
}
