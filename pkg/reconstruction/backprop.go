// Package reconstruction implements filtered backpropagation for optical
// diffraction tomography under the Born approximation, for a single-axis
// rotation geometry.
//
// The object is rotated about the detector y axis. Each complex projection
// is padded, transformed, filtered along depth with the Fourier diffraction
// theorem propagator, rotated back into the object frame and accumulated.
package reconstruction

import (
	"fmt"
	"math"

	"odtrecon/pkg/arena"
	"odtrecon/pkg/transform"
	"odtrecon/pkg/workpool"
)

// Backpropagate3D reconstructs the 3D object function from a sinogram of
// complex Born fields u_B/u_0 recorded at the given rotation angles
// (radians). res is the vacuum wavelength in pixels, nm the refractive
// index of the medium and lD the distance from the rotation centre to the
// detector plane in pixels.
//
// The returned volume has depth max(Nx, Ny), height Ny and width Nx. It is
// real-valued when opts.OnlyReal is set.
func Backpropagate3D(sino *Sinogram, angles []float64, res, nm, lD float64, opts Options) (*Volume, error) {
	cfg, err := validate(sino, angles, res, nm, lD, opts)
	if err != nil {
		return nil, err
	}

	if cfg.Precision == Float32 {
		return backpropagate[float32, complex64](sino, angles, res, nm, lD, cfg)
	}
	return backpropagate[float64, complex128](sino, angles, res, nm, lD, cfg)
}

func newExecutor(cfg settings) workpool.Executor {
	switch cfg.Executor {
	case ExecutorSequential:
		return workpool.Sequential{}
	case ExecutorParallel:
		return workpool.New(cfg.workers)
	default:
		if cfg.workers > 1 {
			return workpool.New(cfg.workers)
		}
		return workpool.Sequential{}
	}
}

func backpropagate[R arena.Real, C spectrum](
	sino *Sinogram,
	angles []float64,
	res, nm, lD float64,
	cfg settings,
) (*Volume, error) {
	log := cfg.logger
	ny, nx := sino.Height, sino.Width
	ln := max(nx, ny)
	layout := newPadLayout(ny, nx, cfg.Padding, cfg.PadFactor)

	exec := newExecutor(cfg)
	defer exec.Close()

	log.Debug("backpropagation",
		"angles", len(angles),
		"height", ny, "width", nx,
		"padded_height", layout.lNy, "padded_width", layout.lNx,
		"precision", cfg.Precision.String(),
		"workers", exec.Workers(),
		"buffering", cfg.Buffering.String())
	if cfg.PadValue == nil {
		log.Debug("padding with edge values")
	} else {
		log.Debug("padding with linear ramp", "value", *cfg.PadValue)
	}

	provider := transform.NewProvider(exec.Workers())
	defer provider.Close()
	plan, err := provider.Plan(layout.lNy, layout.lNx, cfg.Precision)
	if err != nil {
		return nil, err
	}
	log.Debug("transform plan ready", "lanes", plan.Threads())

	var weights []float64
	if cfg.WeightAngles {
		weights = AngleWeights(angles)
	}

	filter := newFrequencyFilter(layout, res, nm, lD, len(angles), cfg.Precision)
	projections, err := forwardProjections[C](sino, weights, layout, filter, plan, exec, cfg.PadValue)
	if err != nil {
		return nil, err
	}
	log.Debug("projections transformed")

	depth, err := buildDepthFilter[C](ln, layout, filter, exec)
	if err != nil {
		return nil, err
	}
	log.Debug("depth filter built", "slices", ln)

	acc, err := newAccumulator[R, C](ln, layout, plan, exec, cfg)
	if err != nil {
		return nil, fmt.Errorf("shared buffer: %w", err)
	}
	defer acc.Close()

	size := layout.size()
	for i, phi := range angles {
		if err := acc.add(projections[i*size:(i+1)*size], depth, phi); err != nil {
			return nil, fmt.Errorf("angle %d (%.4f rad): %w", i, phi, err)
		}
		log.Debug("backpropagated", "angle", i+1, "of", len(angles), "deg", phi*180/math.Pi)
	}
	return acc.volume()
}
