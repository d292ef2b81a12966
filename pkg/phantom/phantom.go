// Package phantom synthesizes Born-approximation sinograms of a Gaussian
// scatterer. The fields are computed from the Fourier diffraction theorem,
// so they match the geometry the reconstruction assumes: rotation about the
// detector y axis, through the centre of the output volume.
package phantom

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"odtrecon/internal/models"
	"odtrecon/pkg/resample"
	"odtrecon/pkg/transform"
	"odtrecon/pkg/workpool"
)

// ErrInvalid is returned for unusable geometry or scatterer parameters.
var ErrInvalid = errors.New("phantom: invalid parameters")

// minDirectionCosine drops spectral components close to the evanescent
// band edge, where 1/M diverges.
const minDirectionCosine = 0.1

// Geometry describes the detector and the medium.
type Geometry struct {
	// Height and Width are the detector size in pixels
	Height int
	Width  int

	// Wavelength is the vacuum wavelength in pixels
	Wavelength float64

	// MediumIndex is the refractive index of the surrounding medium
	MediumIndex float64

	// Distance from the rotation centre to the detector plane in pixels
	Distance float64
}

// Depth is the depth of the volume the geometry reconstructs into.
func (g Geometry) Depth() int {
	return max(g.Height, g.Width)
}

// Wavenumber returns km = 2π·nm/λ in radians per pixel.
func (g Geometry) Wavenumber() float64 {
	return 2 * math.Pi * g.MediumIndex / g.Wavelength
}

func (g Geometry) validate() error {
	if g.Height <= 0 || g.Width <= 0 {
		return fmt.Errorf("%w: detector %dx%d", ErrInvalid, g.Height, g.Width)
	}
	if !(g.Wavelength > 0) || !(g.MediumIndex > 0) {
		return fmt.Errorf("%w: wavelength %v, medium index %v", ErrInvalid, g.Wavelength, g.MediumIndex)
	}
	if math.IsNaN(g.Distance) || math.IsInf(g.Distance, 0) {
		return fmt.Errorf("%w: distance %v", ErrInvalid, g.Distance)
	}
	return nil
}

// Scatterer is a Gaussian object function A·exp(-|r-r0|²/(2σ²)).
type Scatterer struct {
	// Z, Y, X offset the centre from the rotation centre, in voxels
	Z, Y, X float64

	// Sigma is the Gaussian width in voxels
	Sigma float64

	// Amplitude is the peak value of the object function
	Amplitude float64
}

func (s Scatterer) validate() error {
	if !(s.Sigma > 0) {
		return fmt.Errorf("%w: sigma %v", ErrInvalid, s.Sigma)
	}
	return nil
}

// Voxel returns the voxel nearest to the scatterer centre.
func (s Scatterer) Voxel(g Geometry) (z, y, x int) {
	cz, cy, cx := centre(g)
	return int(math.Round(cz + s.Z)), int(math.Round(cy + s.Y)), int(math.Round(cx + s.X))
}

func centre(g Geometry) (z, y, x float64) {
	return float64(g.Depth()-1) / 2, float64(g.Height-1) / 2, float64(g.Width-1) / 2
}

// Angles returns n angles evenly spaced over [0, 2π).
func Angles(n int) []float64 {
	angles := make([]float64, n)
	for i := range angles {
		angles[i] = 2 * math.Pi * float64(i) / float64(n)
	}
	return angles
}

// Object returns the ground-truth object function on the reconstruction
// grid.
func Object(g Geometry, s Scatterer) (*models.Volume, error) {
	if err := g.validate(); err != nil {
		return nil, err
	}
	if err := s.validate(); err != nil {
		return nil, err
	}

	vol := models.NewVolume(g.Depth(), g.Height, g.Width, false)
	cz, cy, cx := centre(g)
	inv := 1 / (2 * s.Sigma * s.Sigma)
	for z := 0; z < vol.Depth; z++ {
		dz := float64(z) - cz - s.Z
		for y := 0; y < vol.Height; y++ {
			dy := float64(y) - cy - s.Y
			for x := 0; x < vol.Width; x++ {
				dx := float64(x) - cx - s.X
				vol.Real[vol.Index(z, y, x)] = s.Amplitude * math.Exp(-(dz*dz+dy*dy+dx*dx)*inv)
			}
		}
	}
	return vol, nil
}

// gridSize is the transform size used to sample the detector field,
// large enough that the periodic field does not wrap onto the detector.
func gridSize(n int) int {
	size := 64
	for size < 2*n {
		size *= 2
	}
	return size
}

// Sinogram returns the Born field u_B/u_0 recorded at each angle.
func Sinogram(g Geometry, s Scatterer, angles []float64) (*models.Sinogram, error) {
	if err := g.validate(); err != nil {
		return nil, err
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	if len(angles) == 0 {
		return nil, fmt.Errorf("%w: no angles", ErrInvalid)
	}

	pool := workpool.New(0)
	defer pool.Close()

	grid := gridSize(max(g.Height, g.Width))
	provider := transform.NewProvider(pool.Workers())
	defer provider.Close()
	plan, err := provider.Plan(grid, grid, transform.Float64)
	if err != nil {
		return nil, err
	}

	sino := models.NewSinogram(len(angles), g.Height, g.Width)
	freqs := transform.Frequencies(grid)
	km := g.Wavenumber()
	_, cy, cx := centre(g)

	// unitary transform of the Gaussian, and the 2π of the inverse 2D
	// transform spread over grid² samples
	amplitude := s.Amplitude * s.Sigma * s.Sigma * s.Sigma
	norm := complex(2*math.Pi/float64(grid*grid), 0)
	born := math.Sqrt(2/math.Pi) * km

	ranges := workpool.Split(len(angles), pool.Workers())
	tasks := make([]workpool.Task, len(ranges))
	for t, r := range ranges {
		tasks[t] = func() error {
			field := make([]complex128, grid*grid)
			for a := r.Start; a < r.End; a++ {
				// scatterer centre in the detector frame
				zD, xD := resample.SourcePoint(-angles[a]*180/math.Pi, s.Z, s.X)
				xD += cx
				yD := s.Y + cy

				for iy, fy := range freqs {
					ky := 2 * math.Pi * fy
					for ix, fx := range freqs {
						kx := 2 * math.Pi * fx
						i := iy*grid + ix
						field[i] = 0

						k2 := kx*kx + ky*ky
						if k2 >= km*km {
							continue
						}
						m := math.Sqrt(km*km-k2) / km
						if m < minDirectionCosine {
							continue
						}
						kz := km * (m - 1)
						f := amplitude * math.Exp(-s.Sigma*s.Sigma*(k2+kz*kz)/2)
						phase := km*m*g.Distance - (kx*xD + ky*yD + kz*zD)
						field[i] = complex(0, f/(born*m)) * cmplx.Exp(complex(0, phase))
					}
				}
				if err := plan.Inverse(field); err != nil {
					return err
				}
				for y := 0; y < g.Height; y++ {
					for x := 0; x < g.Width; x++ {
						sino.Set(a, y, x, field[y*grid+x]*norm)
					}
				}
			}
			return nil
		}
	}
	if err := pool.Submit(tasks...).Wait(); err != nil {
		return nil, fmt.Errorf("phantom sinogram: %w", err)
	}
	return sino, nil
}
