package reconstruction

import (
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"strings"

	"odtrecon/internal/models"
	"odtrecon/pkg/resample"
	"odtrecon/pkg/transform"
)

// Sinogram is the complex projection stack, indexed (angle, y, x).
type Sinogram = models.Sinogram

// Volume is the reconstructed object function, indexed (z, y, x).
type Volume = models.Volume

// Precision selects float32 or float64 working precision.
type Precision = transform.Precision

const (
	Float64 = transform.Float64
	Float32 = transform.Float32
)

// NewSinogram allocates a zeroed A×Ny×Nx sinogram.
func NewSinogram(angles, height, width int) *Sinogram {
	return models.NewSinogram(angles, height, width)
}

// NewVolume allocates a zeroed volume, with an imaginary part when
// complexValued is set.
func NewVolume(depth, height, width int, complexValued bool) *Volume {
	return models.NewVolume(depth, height, width, complexValued)
}

// Padding toggles padding per transverse axis.
type Padding struct {
	Y bool
	X bool
}

// ExecutorKind selects how parallel stages are executed.
type ExecutorKind int

const (
	// ExecutorAuto uses a worker pool when more than one worker is allowed.
	ExecutorAuto ExecutorKind = iota
	// ExecutorParallel always uses a worker pool.
	ExecutorParallel
	// ExecutorSequential runs every stage on the calling goroutine.
	ExecutorSequential
)

func (k ExecutorKind) String() string {
	switch k {
	case ExecutorAuto:
		return "auto"
	case ExecutorParallel:
		return "parallel"
	case ExecutorSequential:
		return "sequential"
	default:
		return fmt.Sprintf("ExecutorKind(%d)", int(k))
	}
}

// ParseExecutorKind converts a name into an ExecutorKind.
func ParseExecutorKind(s string) (ExecutorKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return ExecutorAuto, nil
	case "parallel":
		return ExecutorParallel, nil
	case "sequential":
		return ExecutorSequential, nil
	default:
		return 0, fmt.Errorf("unknown executor %q", s)
	}
}

// Buffering selects how many shared rotation buffers are used.
type Buffering int

const (
	// DoubleBuffer rotates one buffer while the next one is filled.
	DoubleBuffer Buffering = iota
	// SingleBuffer reuses one buffer with strict alternation, halving
	// the scratch memory.
	SingleBuffer
)

func (b Buffering) String() string {
	switch b {
	case DoubleBuffer:
		return "double"
	case SingleBuffer:
		return "single"
	default:
		return fmt.Sprintf("Buffering(%d)", int(b))
	}
}

// ParseBuffering converts a name into a Buffering mode.
func ParseBuffering(s string) (Buffering, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "double":
		return DoubleBuffer, nil
	case "single":
		return SingleBuffer, nil
	default:
		return 0, fmt.Errorf("unknown buffering %q", s)
	}
}

// Options configures Backpropagate3D.
type Options struct {
	// WeightAngles weights each projection by its local angular spacing.
	WeightAngles bool

	// OnlyReal reconstructs the real part only.
	OnlyReal bool

	// Padding enables padding per transverse axis.
	Padding Padding

	// PadFactor grows the padded size; must be >= 1.
	PadFactor float64

	// PadValue is the value a linear ramp reaches at the padded edge.
	// Edge values are replicated when nil.
	PadValue *float64

	// InterpolationOrder is the spline order used for rotation (0-5).
	InterpolationOrder int

	// Precision is the working precision.
	Precision Precision

	// Workers caps parallelism; 0 means all available CPUs.
	Workers int

	// Executor selects parallel or sequential execution.
	Executor ExecutorKind

	// Buffering selects the shared-buffer strategy.
	Buffering Buffering

	// Coords requests output at arbitrary coordinates. Not supported;
	// any non-nil value is rejected.
	Coords [][3]float64

	// Logger receives progress diagnostics. Nothing is logged when nil.
	Logger *slog.Logger
}

// DefaultOptions returns the options used when nothing else is configured.
func DefaultOptions() Options {
	return Options{
		WeightAngles:       true,
		Padding:            Padding{Y: true, X: true},
		PadFactor:          1.75,
		InterpolationOrder: 2,
		Precision:          Float64,
	}
}

// settings are validated options with defaults resolved.
type settings struct {
	Options
	workers int
	logger  *slog.Logger
}

func validate(sino *Sinogram, angles []float64, res, nm, lD float64, opts Options) (settings, error) {
	if err := sino.Validate(); err != nil {
		return settings{}, invalid("sinogram", "%v", err)
	}
	if len(angles) != sino.Angles {
		return settings{}, invalid("angles", "len(angles) = %d must equal the number of projections %d",
			len(angles), sino.Angles)
	}
	for i, a := range angles {
		if math.IsNaN(a) || math.IsInf(a, 0) {
			return settings{}, invalid("angles", "angle %d is not finite", i)
		}
	}

	if !(res > 0) || math.IsInf(res, 0) {
		return settings{}, invalid("res", "wavelength in pixels must be positive, got %v", res)
	}
	if !(nm > 0) || math.IsInf(nm, 0) {
		return settings{}, invalid("nm", "medium refractive index must be positive, got %v", nm)
	}
	if math.IsNaN(lD) || math.IsInf(lD, 0) {
		return settings{}, invalid("lD", "detector distance must be finite, got %v", lD)
	}

	if opts.Coords != nil {
		return settings{}, unsupported("coords", "output coordinates cannot be set for 3D backpropagation")
	}
	if !(opts.PadFactor >= 1) || math.IsInf(opts.PadFactor, 0) {
		return settings{}, invalid("padfac", "padding factor must be >= 1, got %v", opts.PadFactor)
	}
	if opts.PadValue != nil && (math.IsNaN(*opts.PadValue) || math.IsInf(*opts.PadValue, 0)) {
		return settings{}, invalid("padval", "padding value must be finite, got %v", *opts.PadValue)
	}
	if err := resample.ValidateOrder(opts.InterpolationOrder); err != nil {
		return settings{}, invalid("interpolation order", "%v", err)
	}
	if !opts.Precision.Valid() {
		return settings{}, invalid("precision", "must be float32 or float64, got %v", opts.Precision)
	}

	cpus := runtime.NumCPU()
	workers := opts.Workers
	switch {
	case workers < 0:
		return settings{}, invalid("workers", "worker count must not be negative, got %d", workers)
	case workers > cpus:
		return settings{}, invalid("workers", "worker count %d exceeds available cores %d", workers, cpus)
	case workers == 0:
		workers = cpus
	}

	switch opts.Executor {
	case ExecutorAuto, ExecutorParallel:
	case ExecutorSequential:
		workers = 1
	default:
		return settings{}, invalid("executor", "unknown executor %v", opts.Executor)
	}
	if opts.Buffering != DoubleBuffer && opts.Buffering != SingleBuffer {
		return settings{}, invalid("buffering", "unknown buffering %v", opts.Buffering)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return settings{Options: opts, workers: workers, logger: logger}, nil
}
