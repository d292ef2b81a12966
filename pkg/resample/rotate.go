// Package resample rotates volumes in place about their y axis using
// B-spline interpolation of order 0 to 5, the way the accumulator turns a
// detector-frame contribution into the object frame.
//
// Volumes are row-major (z, y, x). Rotation acts in the (z, x) plane, so
// every y plane is independent and a caller may rotate any band of planes
// without touching the rest of the volume.
package resample

import (
	"errors"
	"fmt"
	"math"
)

// Real is the set of element types a volume may hold.
type Real interface {
	~float32 | ~float64
}

// ErrOrder is returned for an unsupported interpolation order.
var ErrOrder = errors.New("resample: interpolation order must be between 0 and 5")

// boundary tolerance for coordinates landing on the first or last sample
const edgeTolerance = 1e-9

// ValidateOrder checks that order is supported.
func ValidateOrder(order int) error {
	if order < 0 || order > MaxOrder {
		return fmt.Errorf("%w, got %d", ErrOrder, order)
	}
	return nil
}

type rotation struct {
	cos, sin float64
}

func newRotation(angleDeg float64) rotation {
	a := angleDeg * math.Pi / 180
	return rotation{cos: math.Cos(a), sin: math.Sin(a)}
}

func (r rotation) source(p0, p1 float64) (float64, float64) {
	return r.cos*p0 + r.sin*p1, -r.sin*p0 + r.cos*p1
}

// SourcePoint maps a centered output coordinate (p0 along z, p1 along x)
// of a rotation by angleDeg to the centered input coordinate it samples.
func SourcePoint(angleDeg, p0, p1 float64) (float64, float64) {
	return newRotation(angleDeg).source(p0, p1)
}

// RotateBand rotates the y planes [y0, y1) of the volume in place by
// angleDeg degrees about the volume center. Samples mapped from outside
// the input are set to zero.
func RotateBand[T Real](vol []T, depth, height, width, y0, y1 int, angleDeg float64, order int) error {
	if err := ValidateOrder(order); err != nil {
		return err
	}
	if len(vol) != depth*height*width {
		return fmt.Errorf("resample: volume %dx%dx%d has %d values", depth, height, width, len(vol))
	}
	if y0 < 0 || y1 > height || y0 > y1 {
		return fmt.Errorf("resample: band [%d,%d) outside height %d", y0, y1, height)
	}

	r := newRotation(angleDeg)
	zs := poles(order)
	coeff := make([]float64, depth*width)
	line := make([]float64, depth)
	wz := make([]float64, order+1)
	wx := make([]float64, order+1)

	cz := float64(depth-1) / 2
	cx := float64(width-1) / 2
	zmax := float64(depth-1) + edgeTolerance
	xmax := float64(width-1) + edgeTolerance

	for y := y0; y < y1; y++ {
		// Gather the (z, x) plane.
		for z := 0; z < depth; z++ {
			base := (z*height + y) * width
			for x := 0; x < width; x++ {
				coeff[z*width+x] = float64(vol[base+x])
			}
		}

		if zs != nil {
			for z := 0; z < depth; z++ {
				prefilterLine(coeff[z*width:(z+1)*width], zs)
			}
			for x := 0; x < width; x++ {
				for z := 0; z < depth; z++ {
					line[z] = coeff[z*width+x]
				}
				prefilterLine(line, zs)
				for z := 0; z < depth; z++ {
					coeff[z*width+x] = line[z]
				}
			}
		}

		for zo := 0; zo < depth; zo++ {
			base := (zo*height + y) * width
			for xo := 0; xo < width; xo++ {
				zi, xi := r.source(float64(zo)-cz, float64(xo)-cx)
				zi += cz
				xi += cx
				if zi < -edgeTolerance || zi > zmax || xi < -edgeTolerance || xi > xmax {
					vol[base+xo] = 0
					continue
				}
				vol[base+xo] = T(evaluate(coeff, depth, width, zi, xi, order, wz, wx))
			}
		}
	}
	return nil
}

func evaluate(coeff []float64, depth, width int, z, x float64, order int, wz, wx []float64) float64 {
	z0 := weights(z, order, wz)
	x0 := weights(x, order, wx)

	var sum float64
	for i := 0; i <= order; i++ {
		row := mirror(z0+i, depth) * width
		var acc float64
		for j := 0; j <= order; j++ {
			acc += wx[j] * coeff[row+mirror(x0+j, width)]
		}
		sum += wz[i] * acc
	}
	return sum
}
