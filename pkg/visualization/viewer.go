// Package visualization renders slices of reconstructed object functions
// as grayscale images.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"math/cmplx"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/floats"

	"odtrecon/internal/models"
)

// Component selects which part of a complex volume is displayed.
type Component int

const (
	Real Component = iota
	Imag
	Magnitude
)

func (c Component) String() string {
	switch c {
	case Real:
		return "real"
	case Imag:
		return "imag"
	case Magnitude:
		return "magnitude"
	default:
		return fmt.Sprintf("Component(%d)", int(c))
	}
}

// ParseComponent converts a name into a Component.
func ParseComponent(s string) (Component, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "real":
		return Real, nil
	case "imag", "imaginary":
		return Imag, nil
	case "magnitude", "abs":
		return Magnitude, nil
	default:
		return 0, fmt.Errorf("invalid component: %s (must be real, imag or magnitude)", s)
	}
}

// Viewer extracts slices and regions from one component of a volume.
// Gray levels span the component's value range.
type Viewer struct {
	// values holds the selected component, row-major (z, y, x)
	values []float64

	// dimensions of the volume
	width  int
	height int
	depth  int

	// lo and hi map to black and white
	lo, hi float64
}

// NewViewer creates a viewer for component c of vol.
func NewViewer(vol *models.Volume, c Component) (*Viewer, error) {
	if vol.Len() == 0 || len(vol.Real) != vol.Len() {
		return nil, fmt.Errorf("volume %dx%dx%d holds %d values", vol.Depth, vol.Height, vol.Width, len(vol.Real))
	}

	values := make([]float64, vol.Len())
	switch c {
	case Real:
		copy(values, vol.Real)
	case Imag:
		if !vol.IsComplex() {
			return nil, fmt.Errorf("volume has no imaginary part")
		}
		copy(values, vol.Imag)
	case Magnitude:
		for i, re := range vol.Real {
			var im float64
			if vol.Imag != nil {
				im = vol.Imag[i]
			}
			values[i] = cmplx.Abs(complex(re, im))
		}
	default:
		return nil, fmt.Errorf("invalid component %v", c)
	}

	return &Viewer{
		values: values,
		width:  vol.Width,
		height: vol.Height,
		depth:  vol.Depth,
		lo:     floats.Min(values),
		hi:     floats.Max(values),
	}, nil
}

// Range returns the values mapped to black and white.
func (v *Viewer) Range() (lo, hi float64) {
	return v.lo, v.hi
}

func (v *Viewer) gray(idx int) color.Gray16 {
	if v.hi <= v.lo {
		return color.Gray16{}
	}
	t := (v.values[idx] - v.lo) / (v.hi - v.lo)
	return color.Gray16{Y: uint16(math.Round(math.Max(0, math.Min(1, t)) * 65535))}
}

// ExtractSlice extracts a 2D slice from the 3D volume along the specified axis
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}

	var img *image.Gray16

	switch axis {
	case "x", "X":
		// YZ plane
		if position >= v.width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, v.width)
		}
		img = image.NewGray16(image.Rect(0, 0, v.depth, v.height))
		for y := 0; y < v.height; y++ {
			for z := 0; z < v.depth; z++ {
				img.SetGray16(z, y, v.gray((z*v.height+y)*v.width+position))
			}
		}

	case "y", "Y":
		// XZ plane
		if position >= v.height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, v.height)
		}
		img = image.NewGray16(image.Rect(0, 0, v.width, v.depth))
		for z := 0; z < v.depth; z++ {
			for x := 0; x < v.width; x++ {
				img.SetGray16(x, z, v.gray((z*v.height+position)*v.width+x))
			}
		}

	case "z", "Z":
		// XY plane
		if position >= v.depth {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, v.depth)
		}
		img = image.NewGray16(image.Rect(0, 0, v.width, v.height))
		for y := 0; y < v.height; y++ {
			for x := 0; x < v.width; x++ {
				img.SetGray16(x, y, v.gray((position*v.height+y)*v.width+x))
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

// ExtractRegion extracts a 3D subregion of the selected component
func (v *Viewer) ExtractRegion(startX, startY, startZ, sizeX, sizeY, sizeZ int) ([]float64, error) {
	if startX < 0 || startY < 0 || startZ < 0 {
		return nil, fmt.Errorf("start coordinates must be non-negative")
	}
	if sizeX <= 0 || sizeY <= 0 || sizeZ <= 0 {
		return nil, fmt.Errorf("size dimensions must be positive")
	}
	if startX+sizeX > v.width || startY+sizeY > v.height || startZ+sizeZ > v.depth {
		return nil, fmt.Errorf("region extends beyond volume boundaries")
	}

	region := make([]float64, sizeX*sizeY*sizeZ)
	for z := 0; z < sizeZ; z++ {
		for y := 0; y < sizeY; y++ {
			src := ((startZ+z)*v.height+startY+y)*v.width + startX
			dst := (z*sizeY + y) * sizeX
			copy(region[dst:dst+sizeX], v.values[src:src+sizeX])
		}
	}
	return region, nil
}

// RegionAround extracts the cube of the given radius centred on voxel
// (z, y, x), clipped to the volume. It also returns the clipped extent.
func (v *Viewer) RegionAround(z, y, x, radius int) (region []float64, sizeZ, sizeY, sizeX int, err error) {
	if radius < 0 {
		return nil, 0, 0, 0, fmt.Errorf("radius must be non-negative")
	}
	if z < 0 || z >= v.depth || y < 0 || y >= v.height || x < 0 || x >= v.width {
		return nil, 0, 0, 0, fmt.Errorf("voxel (%d,%d,%d) outside volume", z, y, x)
	}

	z0, y0, x0 := max(0, z-radius), max(0, y-radius), max(0, x-radius)
	sizeZ = min(v.depth, z+radius+1) - z0
	sizeY = min(v.height, y+radius+1) - y0
	sizeX = min(v.width, x+radius+1) - x0

	region, err = v.ExtractRegion(x0, y0, z0, sizeX, sizeY, sizeZ)
	if err != nil {
		return nil, 0, 0, 0, err
	}
	return region, sizeZ, sizeY, sizeX, nil
}

// SaveSlice saves an extracted slice as a PNG or, for any other extension,
// a JPEG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	if strings.EqualFold(filepath.Ext(filename), ".png") {
		return png.Encode(file, img)
	}
	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveSliceSequence extracts and saves every slice along the specified axis
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) error {
	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = v.width
	case "y", "Y":
		maxPos = v.height
	case "z", "Z":
		maxPos = v.depth
	default:
		return fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.png", axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}
