// Package covering computes the covering radius transform of a two-phase
// volume: for every voxel of the analysed phase, the radius of the largest
// admissible ball that covers it.
//
// A ball is centered at an in-phase voxel c and has radius d = |dt(c)|, where
// dt is the input distance transform. It covers every in-phase voxel within
// Euclidean distance d of c whose own |dt| does not exceed d. Each voxel keeps
// the largest radius among the balls covering it.
package covering

import (
	"sync/atomic"

	"github.com/chewxy/math32"
	"golang.org/x/sync/errgroup"

	"github.com/clementsan/poresize/internal/models"
)

// Sentinel is the output value of voxels outside the analysed phase. Every
// legitimate covering radius is non-negative, so a negative sentinel cannot
// collide with one.
const Sentinel float32 = -1.0

// IsSentinel reports whether v marks a wrong-phase voxel
func IsSentinel(v float32) bool {
	return v < 0
}

// Params holds the covering radius transform parameters
type Params struct {
	// Phase is the label (0 or 1) for which the transform is computed
	Phase int

	// Workers is the number of goroutines scanning ball centers.
	// Values below 2 run the single-threaded pass.
	Workers int

	// Progress receives coarse progress updates; nil disables reporting
	Progress Progress
}

// Stats counts the work done by one pass
type Stats struct {
	// Voxels is the number of voxels scanned
	Voxels int64

	// InPhase is the number of voxels of the analysed phase (ball centers)
	InPhase int64

	// Examined is the number of in-bounds candidates inside bounding boxes
	Examined int64

	// Accepted is the number of candidates inside a ball that passed the
	// phase and distance checks
	Accepted int64

	// Raised is the number of accepted candidates whose output value grew
	Raised int64
}

func (s *Stats) add(o Stats) {
	s.Voxels += o.Voxels
	s.InPhase += o.InPhase
	s.Examined += o.Examined
	s.Accepted += o.Accepted
	s.Raised += o.Raised
}

// Engine runs covering radius transforms
type Engine struct {
	params *Params
	stats  Stats
}

// NewEngine creates an engine with the provided parameters
func NewEngine(params *Params) *Engine {
	return &Engine{params: params}
}

// Stats returns the counters of the last Transform call
func (e *Engine) Stats() Stats {
	return e.stats
}

// Transform is a convenience wrapper running a single-threaded engine
func Transform(dist *models.FloatVolume, phase *models.LabelVolume, target int) (*models.FloatVolume, error) {
	return NewEngine(&Params{Phase: target}).Transform(dist, phase)
}

// Seed allocates the output field: a copy of the distance field in which
// every voxel outside the target phase holds Sentinel. Inputs are validated
// first and nothing is allocated when they are rejected.
func Seed(dist *models.FloatVolume, phase *models.LabelVolume, target int) (*models.FloatVolume, error) {
	out, _, err := seed(dist, phase, target)
	return out, err
}

func seed(dist *models.FloatVolume, phase *models.LabelVolume, target int) (*models.FloatVolume, float64, error) {
	if target != 0 && target != 1 {
		return nil, 0, models.Configf("phase must be 0 or 1, got %d", target)
	}
	spacing, err := models.CheckPair(dist, phase)
	if err != nil {
		return nil, 0, err
	}
	out := dist.Clone()
	label := uint8(target)
	for i, p := range phase.Data {
		if p != label {
			out.Data[i] = Sentinel
		}
	}
	return out, spacing, nil
}

// Transform computes the covering radius field of dist for the configured
// phase. dist and phase are only read; the result is a new volume with the
// geometry of dist.
func (e *Engine) Transform(dist *models.FloatVolume, phase *models.LabelVolume) (*models.FloatVolume, error) {
	e.stats = Stats{}

	out, spacing, err := seed(dist, phase, e.params.Phase)
	if err != nil {
		return nil, err
	}

	progress := e.params.Progress
	if progress == nil {
		progress = NopProgress{}
	}

	workers := e.params.Workers
	if workers > dist.Depth {
		workers = dist.Depth
	}

	p := &pass{
		dist:     dist,
		phase:    phase,
		label:    uint8(e.params.Phase),
		spacing:  float32(spacing),
		progress: progress,
		total:    int64(dist.Len()),
	}

	if workers < 2 {
		p.out = plainField(out.Data)
		p.stats = make([]Stats, 1)
		p.scan(0, 0, dist.Depth)
		e.stats = p.stats[0]
		return out, nil
	}

	af := newAtomicField(out.Data)
	p.out = af
	p.stats = make([]Stats, workers)

	// Each worker scans the ball centers of one z-slab; balls reach across
	// slab borders, hence the atomic field.
	slab := (dist.Depth + workers - 1) / workers
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		z0 := w * slab
		z1 := z0 + slab
		if z1 > dist.Depth {
			z1 = dist.Depth
		}
		if z0 >= z1 {
			continue
		}
		worker := w
		g.Go(func() error {
			p.scan(worker, z0, z1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	af.copyTo(out.Data)
	for _, s := range p.stats {
		e.stats.add(s)
	}
	return out, nil
}

// pass is the shared state of one transform run
type pass struct {
	dist     *models.FloatVolume
	phase    *models.LabelVolume
	label    uint8
	spacing  float32
	out      maxField
	progress Progress
	total    int64
	done     atomic.Int64
	stats    []Stats
}

// scan processes the ball centers in planes [z0, z1)
func (p *pass) scan(worker, z0, z1 int) {
	g := p.dist.Geometry
	plane := int64(g.Width * g.Height)
	st := &p.stats[worker]

	for z := z0; z < z1; z++ {
		for y := 0; y < g.Height; y++ {
			for x := 0; x < g.Width; x++ {
				st.Voxels++
				if p.phase.Data[g.Index(x, y, z)] != p.label {
					continue
				}
				st.InPhase++
				p.cover(x, y, z, st)
			}
		}
		p.progress.Advance(p.done.Add(plane), p.total)
	}
}

// cover propagates the ball centered at (cx, cy, cz) into the output field
func (p *pass) cover(cx, cy, cz int, st *Stats) {
	g := p.dist.Geometry
	d := math32.Abs(p.dist.Data[g.Index(cx, cy, cz)])
	if math32.IsNaN(d) {
		return
	}

	// Half-width of the cubic bounding box in voxels. Both ends are
	// inclusive; ceil keeps every in-ball voxel inside the box.
	s := g.Width + g.Height + g.Depth
	if hw := math32.Ceil(d / p.spacing); hw < float32(s) {
		s = int(hw)
	}

	x0, x1 := clampRange(cx-s, cx+s, g.Width)
	y0, y1 := clampRange(cy-s, cy+s, g.Height)
	z0, z1 := clampRange(cz-s, cz+s, g.Depth)

	for z := z0; z <= z1; z++ {
		dz := float32(z - cz)
		dz2 := dz * dz
		for y := y0; y <= y1; y++ {
			dy := float32(y - cy)
			dyz2 := dy*dy + dz2
			row := g.Index(0, y, z)
			for x := x0; x <= x1; x++ {
				st.Examined++
				dx := float32(x - cx)
				if p.spacing*math32.Sqrt(dx*dx+dyz2) > d {
					continue
				}
				i := row + x
				// Candidates are validated against the input distance
				// field, never against the output being updated.
				if p.phase.Data[i] != p.label || math32.Abs(p.dist.Data[i]) > d {
					continue
				}
				st.Accepted++
				if p.out.raise(i, d) {
					st.Raised++
				}
			}
		}
	}
}

// clampRange clips the inclusive range [lo, hi] to [0, n-1]
func clampRange(lo, hi, n int) (int, int) {
	if lo < 0 {
		lo = 0
	}
	if hi > n-1 {
		hi = n - 1
	}
	return lo, hi
}
