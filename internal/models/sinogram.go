package models

import "fmt"

// Sinogram holds the complex scattered-wave projections recorded at every
// rotation angle. Data is stored in row-major (angle, y, x) order.
type Sinogram struct {
	// Data is the projection data, Angles*Height*Width values
	Data []complex128

	// Angles is the number of projections
	Angles int

	// Height and Width are the detector dimensions in pixels (Ny, Nx)
	Height int
	Width  int
}

// NewSinogram allocates a zeroed sinogram of the given shape.
func NewSinogram(angles, height, width int) *Sinogram {
	return &Sinogram{
		Data:   make([]complex128, angles*height*width),
		Angles: angles,
		Height: height,
		Width:  width,
	}
}

// Validate checks that the dimensions are positive and match the data length.
func (s *Sinogram) Validate() error {
	if s == nil {
		return fmt.Errorf("sinogram is nil")
	}
	if s.Angles <= 0 || s.Height <= 0 || s.Width <= 0 {
		return fmt.Errorf("sinogram must have shape (A,Ny,Nx) with positive dimensions, got (%d,%d,%d)",
			s.Angles, s.Height, s.Width)
	}
	if want := s.Angles * s.Height * s.Width; len(s.Data) != want {
		return fmt.Errorf("sinogram data holds %d values, shape (%d,%d,%d) needs %d",
			len(s.Data), s.Angles, s.Height, s.Width, want)
	}
	return nil
}

// Projection returns the slice recorded at angle index i. The returned
// slice aliases the sinogram data.
func (s *Sinogram) Projection(i int) []complex128 {
	size := s.Height * s.Width
	return s.Data[i*size : (i+1)*size]
}

// Set stores a value at (angle, y, x).
func (s *Sinogram) Set(a, y, x int, v complex128) {
	s.Data[(a*s.Height+y)*s.Width+x] = v
}

// At returns the value at (angle, y, x).
func (s *Sinogram) At(a, y, x int) complex128 {
	return s.Data[(a*s.Height+y)*s.Width+x]
}
