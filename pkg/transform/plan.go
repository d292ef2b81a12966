// Package transform is the frequency-transform provider of the
// reconstruction. It wraps gonum's complex FFT into 2D plans that are
// cached per (shape, precision, thread count) and reused for every slice of
// a reconstruction.
package transform

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/dsp/fourier"
)

var (
	// ErrLengthMismatch is returned when a buffer does not match the plan shape.
	ErrLengthMismatch = errors.New("transform: slice length mismatch")

	// ErrInvalidShape is returned for non-positive transform sizes.
	ErrInvalidShape = errors.New("transform: invalid shape")
)

// Plan performs in-place 2D transforms on ny×nx row-major complex slices.
//
// A plan owns one lane per thread. gonum's FFT objects keep internal work
// space, so each concurrent transform borrows a lane of its own.
type Plan struct {
	ny, nx    int
	precision Precision
	threads   int
	lanes     chan *lane
}

type lane struct {
	rows   *fourier.CmplxFFT
	cols   *fourier.CmplxFFT
	column []complex128
}

func newPlan(ny, nx int, precision Precision, threads int) *Plan {
	p := &Plan{
		ny:        ny,
		nx:        nx,
		precision: precision,
		threads:   threads,
		lanes:     make(chan *lane, threads),
	}
	for range threads {
		p.lanes <- &lane{
			rows:   fourier.NewCmplxFFT(nx),
			cols:   fourier.NewCmplxFFT(ny),
			column: make([]complex128, ny),
		}
	}
	return p
}

// Shape returns the transform dimensions (ny, nx).
func (p *Plan) Shape() (ny, nx int) {
	return p.ny, p.nx
}

// Len returns the number of values in one slice.
func (p *Plan) Len() int {
	return p.ny * p.nx
}

// Threads returns the number of transforms the plan can run concurrently.
func (p *Plan) Threads() int {
	return p.threads
}

// Precision returns the precision results are rounded to.
func (p *Plan) Precision() Precision {
	return p.precision
}

// Forward computes the unnormalized forward 2D transform of data in place.
func (p *Plan) Forward(data []complex128) error {
	return p.execute(data, false)
}

// Inverse computes the unnormalized inverse 2D transform of data in place.
// Callers divide by Len themselves.
func (p *Plan) Inverse(data []complex128) error {
	return p.execute(data, true)
}

func (p *Plan) execute(data []complex128, inverse bool) error {
	if len(data) != p.Len() {
		return fmt.Errorf("%w: plan %dx%d, got %d values", ErrLengthMismatch, p.ny, p.nx, len(data))
	}

	l := <-p.lanes
	defer func() { p.lanes <- l }()

	// Rows
	for y := 0; y < p.ny; y++ {
		row := data[y*p.nx : (y+1)*p.nx]
		if inverse {
			l.rows.Sequence(row, row)
		} else {
			l.rows.Coefficients(row, row)
		}
	}

	// Columns
	col := l.column
	for x := 0; x < p.nx; x++ {
		for y := 0; y < p.ny; y++ {
			col[y] = data[y*p.nx+x]
		}
		if inverse {
			l.cols.Sequence(col, col)
		} else {
			l.cols.Coefficients(col, col)
		}
		for y := 0; y < p.ny; y++ {
			data[y*p.nx+x] = col[y]
		}
	}

	if p.precision == Float32 {
		for i, v := range data {
			data[i] = complex128(complex64(v))
		}
	}
	return nil
}

// Frequencies returns the sample frequencies of an n-point transform in
// cycles per sample, in transform order: 0, 1/n, ..., then the negative
// frequencies starting at -floor(n/2)/n.
func Frequencies(n int) []float64 {
	freqs := make([]float64, n)
	step := 1 / float64(n)
	for i := range freqs {
		if i < (n-1)/2+1 {
			freqs[i] = step * float64(i)
		} else {
			freqs[i] = step * float64(i-n)
		}
	}
	return freqs
}
