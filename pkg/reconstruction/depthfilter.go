package reconstruction

import (
	"fmt"
	"math"

	"odtrecon/pkg/workpool"
)

// depthCoordinate is the axial position of depth slice k on the grid
// [-ln/2, ln/2) with unit spacing. Its origin sits half a voxel past the
// rotation centre (ln-1)/2.
func depthCoordinate(k, ln int) float64 {
	return float64(k) - float64(ln)/2
}

// buildDepthFilter computes exp(i·z·km·(M-1)) for every depth slice. Slices
// are independent and written by index, so any worker may take any range.
func buildDepthFilter[C spectrum](ln int, l padLayout, filter *frequencyFilter, exec workpool.Executor) ([]C, error) {
	size := l.size()
	out := make([]C, ln*size)

	ranges := workpool.Split(ln, exec.Workers())
	tasks := make([]workpool.Task, len(ranges))
	for t, r := range ranges {
		tasks[t] = func() error {
			for k := r.Start; k < r.End; k++ {
				z := depthCoordinate(k, ln)
				dst := out[k*size : (k+1)*size]
				for i, m := range filter.m {
					s, c := math.Sincos(z * filter.km * (m - 1))
					dst[i] = C(complex(c, s))
				}
			}
			return nil
		}
	}
	if err := exec.Submit(tasks...).Wait(); err != nil {
		return nil, fmt.Errorf("depth filter: %w", err)
	}
	return out, nil
}
