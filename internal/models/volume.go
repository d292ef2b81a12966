package models

// Volume represents a reconstructed object function f(r) on a regular grid.
// Voxels are stored as a 1D array in row-major (z, y, x) order.
type Volume struct {
	// Real is the real part of the object function
	Real []float64

	// Imag is the imaginary part, nil when only the real part was reconstructed
	Imag []float64

	// Depth, Height and Width are the volume dimensions in voxels (z, y, x)
	Depth  int
	Height int
	Width  int
}

// NewVolume allocates a zeroed volume. The imaginary part is only
// allocated when complexValued is true.
func NewVolume(depth, height, width int, complexValued bool) *Volume {
	v := &Volume{
		Real:   make([]float64, depth*height*width),
		Depth:  depth,
		Height: height,
		Width:  width,
	}
	if complexValued {
		v.Imag = make([]float64, depth*height*width)
	}
	return v
}

// IsComplex reports whether the volume carries an imaginary part.
func (v *Volume) IsComplex() bool {
	return v.Imag != nil
}

// Len returns the number of voxels.
func (v *Volume) Len() int {
	return v.Depth * v.Height * v.Width
}

// Index converts voxel coordinates to the linear index.
func (v *Volume) Index(z, y, x int) int {
	return (z*v.Height+y)*v.Width + x
}

// At returns the complex value at (z, y, x).
func (v *Volume) At(z, y, x int) complex128 {
	idx := v.Index(z, y, x)
	if v.Imag == nil {
		return complex(v.Real[idx], 0)
	}
	return complex(v.Real[idx], v.Imag[idx])
}
