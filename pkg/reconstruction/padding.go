package reconstruction

import "math"

// minPaddedSize is the smallest transform size used on a padded axis.
const minPaddedSize = 64

// PaddedSize returns the transform length for an axis of n samples grown
// by factor: the next power of two of n·factor, at least 64.
func PaddedSize(n int, factor float64) int {
	size := int(math.Exp2(math.Ceil(math.Log2(float64(n) * factor))))
	return max(minPaddedSize, size)
}

// padLayout places an ny×nx slice inside its lNy×lNx transform buffer.
type padLayout struct {
	ny, nx   int
	lNy, lNx int

	// leading pad per axis; the trailing pad is the remainder
	top, left int
}

func newPadLayout(ny, nx int, padding Padding, factor float64) padLayout {
	l := padLayout{ny: ny, nx: nx, lNy: ny, lNx: nx}
	if padding.Y {
		l.lNy = PaddedSize(ny, factor)
	}
	if padding.X {
		l.lNx = PaddedSize(nx, factor)
	}
	l.top = (l.lNy - ny + 1) / 2
	l.left = (l.lNx - nx + 1) / 2
	return l
}

func (l padLayout) size() int {
	return l.lNy * l.lNx
}

func (l padLayout) bottom() int {
	return l.lNy - l.ny - l.top
}

func (l padLayout) right() int {
	return l.lNx - l.nx - l.left
}

// padSlice writes weight·src into the centre of dst and fills the margins,
// rows first then columns. With a nil padValue the edge samples are
// replicated; otherwise a linear ramp runs from the edge sample to
// padValue, reaching it exactly at the outermost sample.
func padSlice(dst, src []complex128, weight float64, l padLayout, padValue *float64) {
	w := complex(weight, 0)
	for y := 0; y < l.ny; y++ {
		row := dst[(l.top+y)*l.lNx+l.left:]
		for x, v := range src[y*l.nx : (y+1)*l.nx] {
			row[x] = w * v
		}
	}

	var end complex128
	ramp := padValue != nil
	if ramp {
		end = complex(*padValue, 0)
	}
	fill := func(edge complex128, distance, width int) complex128 {
		if !ramp {
			return edge
		}
		if distance == width {
			return end
		}
		// distance counts from the edge: 1 is the neighbour, width the outermost sample
		t := complex(float64(distance)/float64(width), 0)
		return edge + (end-edge)*t
	}

	top, bottom := l.top, l.bottom()
	for x := l.left; x < l.left+l.nx; x++ {
		first := dst[l.top*l.lNx+x]
		last := dst[(l.top+l.ny-1)*l.lNx+x]
		for y := 0; y < top; y++ {
			dst[y*l.lNx+x] = fill(first, top-y, top)
		}
		for i := 0; i < bottom; i++ {
			dst[(l.top+l.ny+i)*l.lNx+x] = fill(last, i+1, bottom)
		}
	}

	left, right := l.left, l.right()
	for y := 0; y < l.lNy; y++ {
		row := dst[y*l.lNx : (y+1)*l.lNx]
		first := row[l.left]
		last := row[l.left+l.nx-1]
		for x := 0; x < left; x++ {
			row[x] = fill(first, left-x, left)
		}
		for i := 0; i < right; i++ {
			row[l.left+l.nx+i] = fill(last, i+1, right)
		}
	}
}

// crop reads the original-size window out of a transform buffer.
func (l padLayout) crop(y, x int) int {
	return (l.top+y)*l.lNx + l.left + x
}
