package reconstruction

import (
	"math"
	"math/cmplx"
)

// ObjectToIndex converts an object function f = km²((n/nm)²-1) into the
// complex refractive index n, taking the root with non-negative real part.
func ObjectToIndex(vol *Volume, res, nm float64) []complex128 {
	km := 2 * math.Pi * nm / res
	k2 := complex(km*km, 0)
	out := make([]complex128, vol.Len())
	for i := range out {
		f := complex(vol.Real[i], 0)
		if vol.Imag != nil {
			f += complex(0, vol.Imag[i])
		}
		n := complex(nm, 0) * cmplx.Sqrt(f/k2+1)
		if real(n) < 0 {
			n = -n
		}
		out[i] = n
	}
	return out
}
