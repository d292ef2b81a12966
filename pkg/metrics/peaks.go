package metrics

import (
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"

	"odtrecon/internal/models"
)

// Peak is a local maximum of the real part of a volume.
type Peak struct {
	Z, Y, X int
	Value   float64
}

// voxel is a peak position indexed by the k-d tree.
type voxel struct {
	pos  [3]float64
	peak int
}

// Compare implements the kdtree.Comparable interface
func (v voxel) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return v.pos[d] - c.(voxel).pos[d]
}

// Dims returns the number of dimensions for the k-d tree
func (v voxel) Dims() int { return 3 }

// Distance returns the squared Euclidean distance between two voxels
func (v voxel) Distance(c kdtree.Comparable) float64 {
	q := c.(voxel)
	var d float64
	for i := range v.pos {
		diff := v.pos[i] - q.pos[i]
		d += diff * diff
	}
	return d
}

// voxels satisfies kdtree.Interface
type voxels []voxel

func (p voxels) Index(i int) kdtree.Comparable         { return p[i] }
func (p voxels) Len() int                              { return len(p) }
func (p voxels) Slice(start, end int) kdtree.Interface { return p[start:end] }

func (p voxels) Pivot(d kdtree.Dim) int {
	plane := voxelPlane{voxels: p, Dim: d}
	return kdtree.Partition(plane, kdtree.MedianOfRandoms(plane, 100))
}

// voxelPlane implements kdtree.SortSlicer for one dimension
type voxelPlane struct {
	voxels
	kdtree.Dim
}

func (p voxelPlane) Less(i, j int) bool {
	return p.voxels[i].pos[p.Dim] < p.voxels[j].pos[p.Dim]
}

func (p voxelPlane) Slice(start, end int) kdtree.SortSlicer {
	return voxelPlane{voxels: p.voxels[start:end], Dim: p.Dim}
}

func (p voxelPlane) Swap(i, j int) {
	p.voxels[i], p.voxels[j] = p.voxels[j], p.voxels[i]
}

// LocalMaxima returns the voxels above threshold that are not smaller than
// any of their 26 neighbours, in storage order.
func LocalMaxima(vol *models.Volume, threshold float64) []Peak {
	var peaks []Peak
	for z := 0; z < vol.Depth; z++ {
		for y := 0; y < vol.Height; y++ {
			for x := 0; x < vol.Width; x++ {
				v := vol.Real[vol.Index(z, y, x)]
				if v > threshold && isMaximum(vol, z, y, x, v) {
					peaks = append(peaks, Peak{Z: z, Y: y, X: x, Value: v})
				}
			}
		}
	}
	return peaks
}

func isMaximum(vol *models.Volume, z, y, x int, v float64) bool {
	for dz := -1; dz <= 1; dz++ {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nz, ny, nx := z+dz, y+dy, x+dx
				if nz < 0 || ny < 0 || nx < 0 || nz >= vol.Depth || ny >= vol.Height || nx >= vol.Width {
					continue
				}
				if vol.Real[vol.Index(nz, ny, nx)] > v {
					return false
				}
			}
		}
	}
	return true
}

// NearestPeak finds the local maximum above threshold closest to (z, y, x)
// and its Euclidean distance. ok is false when there is no such maximum.
func NearestPeak(vol *models.Volume, z, y, x, threshold float64) (peak Peak, dist float64, ok bool) {
	peaks := LocalMaxima(vol, threshold)
	if len(peaks) == 0 {
		return Peak{}, 0, false
	}

	points := make(voxels, len(peaks))
	for i, p := range peaks {
		points[i] = voxel{pos: [3]float64{float64(p.Z), float64(p.Y), float64(p.X)}, peak: i}
	}
	tree := kdtree.New(points, false)

	got, d2 := tree.Nearest(voxel{pos: [3]float64{z, y, x}})
	return peaks[got.(voxel).peak], math.Sqrt(d2), true
}
