// Package porosity computes local porosity: for every voxel, the fraction of
// a cubic (2r+1)^3 neighborhood holding the pore label. Reads beyond the
// volume replicate the nearest in-bounds voxel.
package porosity

import (
	"golang.org/x/sync/errgroup"

	"github.com/clementsan/poresize/internal/models"
)

// MaxRadius bounds the neighborhood so per-voxel counts fit in an int32
const MaxRadius = 600

// Params holds the local porosity parameters
type Params struct {
	// Phase is the label counted as pore space
	Phase int

	// Radius is the half-width of the cubic neighborhood in voxels
	Radius int

	// Workers is the number of goroutines used per pass
	Workers int
}

// Result holds the porosity of one phase model
type Result struct {
	// Local holds the per-voxel neighborhood fraction, with the input geometry
	Local *models.FloatVolume

	// Global is the fraction of all voxels holding the pore label
	Global float64

	// Count is the number of voxels holding the pore label
	Count int
}

// Compute returns local and global porosity of labels
func Compute(labels *models.LabelVolume, params Params) (*Result, error) {
	if params.Radius < 1 {
		return nil, models.Configf("neighborhood size must be greater than zero, got %d", params.Radius)
	}
	if params.Radius > MaxRadius {
		return nil, models.Configf("neighborhood radius %d exceeds the maximum of %d", params.Radius, MaxRadius)
	}
	if params.Phase < 0 || params.Phase > 255 {
		return nil, models.Configf("phase label must be in 0..255, got %d", params.Phase)
	}
	g := labels.Geometry
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if len(labels.Data) != g.Len() {
		return nil, models.Configf("phase field holds %d values for %s voxels", len(labels.Data), g)
	}
	workers := params.Workers
	if workers < 1 {
		workers = 1
	}

	label := uint8(params.Phase)
	a := make([]int32, g.Len())
	count := 0
	for i, l := range labels.Data {
		if l == label {
			a[i] = 1
			count++
		}
	}

	// Box sums are separable: three 1D passes, each replicating the edge
	// voxel along its own axis.
	b := make([]int32, g.Len())
	r := params.Radius
	for _, axis := range []int{0, 1, 2} {
		if err := boxPass(a, b, g, axis, r, workers); err != nil {
			return nil, err
		}
		a, b = b, a
	}

	local := models.NewFloatVolume(g)
	size := float32(2*r + 1)
	cells := size * size * size
	for i, c := range a {
		local.Data[i] = float32(c) / cells
	}

	return &Result{
		Local:  local,
		Global: float64(count) / float64(g.Len()),
		Count:  count,
	}, nil
}

// line describes the voxels along one axis
type line struct {
	stride, length, count int
	start                 func(l int) int
}

func axisLines(g models.Geometry, axis int) line {
	switch axis {
	case 0:
		return line{stride: 1, length: g.Width, count: g.Height * g.Depth,
			start: func(l int) int { return l * g.Width }}
	case 1:
		return line{stride: g.Width, length: g.Height, count: g.Width * g.Depth,
			start: func(l int) int { return (l/g.Width)*g.Width*g.Height + l%g.Width }}
	default:
		return line{stride: g.Width * g.Height, length: g.Depth, count: g.Width * g.Height,
			start: func(l int) int { return l }}
	}
}

// boxPass writes into dst the sum of src over [k-r, k+r] along axis,
// clamping indexes to the line
func boxPass(src, dst []int32, g models.Geometry, axis, r, workers int) error {
	ln := axisLines(g, axis)
	chunk := (ln.count + workers - 1) / workers

	var eg errgroup.Group
	for l0 := 0; l0 < ln.count; l0 += chunk {
		l1 := l0 + chunk
		if l1 > ln.count {
			l1 = ln.count
		}
		lo, hi := l0, l1
		eg.Go(func() error {
			for l := lo; l < hi; l++ {
				slide(src, dst, ln.start(l), ln.stride, ln.length, r)
			}
			return nil
		})
	}
	return eg.Wait()
}

// slide runs a moving window sum of width 2r+1 along one line
func slide(src, dst []int32, start, stride, n, r int) {
	at := func(k int) int32 {
		if k < 0 {
			k = 0
		} else if k >= n {
			k = n - 1
		}
		return src[start+k*stride]
	}

	var sum int32
	for k := -r; k <= r; k++ {
		sum += at(k)
	}
	for k := 0; k < n; k++ {
		dst[start+k*stride] = sum
		sum += at(k+r+1) - at(k-r)
	}
}
