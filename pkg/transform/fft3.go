package transform

import (
	"fmt"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Forward3D computes the unnormalized forward transform of a row-major
// nz×ny×nx volume in place.
func Forward3D(data []complex128, nz, ny, nx int) error {
	if nz <= 0 || ny <= 0 || nx <= 0 {
		return fmt.Errorf("%w: %dx%dx%d", ErrInvalidShape, nz, ny, nx)
	}
	if len(data) != nz*ny*nx {
		return fmt.Errorf("%w: volume %dx%dx%d, got %d values", ErrLengthMismatch, nz, ny, nx, len(data))
	}

	plane := newPlan(ny, nx, Float64, 1)
	planeSize := ny * nx
	for z := 0; z < nz; z++ {
		if err := plane.Forward(data[z*planeSize : (z+1)*planeSize]); err != nil {
			return err
		}
	}

	fft := fourier.NewCmplxFFT(nz)
	line := make([]complex128, nz)
	for i := 0; i < planeSize; i++ {
		for z := 0; z < nz; z++ {
			line[z] = data[z*planeSize+i]
		}
		fft.Coefficients(line, line)
		for z := 0; z < nz; z++ {
			data[z*planeSize+i] = line[z]
		}
	}
	return nil
}
