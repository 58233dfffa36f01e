package covering

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clementsan/poresize/internal/models"
)

// randomPair builds a two-phase volume with a mix of positive and negative
// distance values
func randomPair(seed int64, w, h, d int, spacing float64) (*models.FloatVolume, *models.LabelVolume) {
	rng := rand.New(rand.NewSource(seed))
	g := models.NewGeometry(w, h, d)
	g.Spacing = models.Vec3{X: spacing, Y: spacing, Z: spacing}
	dist := models.NewFloatVolume(g)
	phase := models.NewLabelVolume(g)
	for i := range dist.Data {
		dist.Data[i] = float32(rng.Intn(13)) / 4
		if rng.Intn(5) == 0 {
			dist.Data[i] = -dist.Data[i]
		}
		if rng.Intn(3) == 0 {
			phase.Data[i] = 1
		}
	}
	return dist, phase
}

// bruteForce evaluates the covering radius definition directly: every
// in-phase center against every in-phase target.
func bruteForce(dist *models.FloatVolume, phase *models.LabelVolume, target uint8) []float32 {
	g := dist.Geometry
	sp := float32(g.Spacing.X)
	out := make([]float32, g.Len())
	for t := range out {
		if phase.Data[t] != target {
			out[t] = Sentinel
			continue
		}
		out[t] = dist.Data[t]
		tx, ty, tz := g.Coords(t)
		for c := range out {
			if phase.Data[c] != target {
				continue
			}
			d := math32.Abs(dist.Data[c])
			cx, cy, cz := g.Coords(c)
			dx, dy, dz := float32(tx-cx), float32(ty-cy), float32(tz-cz)
			if sp*math32.Sqrt(dx*dx+(dy*dy+dz*dz)) <= d && math32.Abs(dist.Data[t]) <= d && d > out[t] {
				out[t] = d
			}
		}
	}
	return out
}

func TestSentinelIsOutOfBand(t *testing.T) {
	assert.Less(t, Sentinel, float32(0))
	assert.True(t, IsSentinel(Sentinel))
	assert.False(t, IsSentinel(0))
}

func TestSeedCopiesInPhaseValues(t *testing.T) {
	dist, phase := randomPair(1, 6, 5, 4, 1)
	out, err := Seed(dist, phase, 1)
	require.NoError(t, err)

	for i := range out.Data {
		if phase.Data[i] == 1 {
			assert.Equal(t, dist.Data[i], out.Data[i], "voxel %d", i)
		} else {
			assert.Equal(t, Sentinel, out.Data[i], "voxel %d", i)
		}
	}
	// the seed owns its buffer
	out.Data[0] = 42
	assert.NotEqual(t, float32(42), dist.Data[0])
}

func TestBallCoverage(t *testing.T) {
	g := models.NewGeometry(11, 11, 11)
	dist := models.NewFloatVolume(g)
	phase := models.NewLabelVolume(g)
	dist.Set(5, 5, 5, 3)

	out, err := Transform(dist, phase, 0)
	require.NoError(t, err)

	for z := 0; z < g.Depth; z++ {
		for y := 0; y < g.Height; y++ {
			for x := 0; x < g.Width; x++ {
				dx, dy, dz := x-5, y-5, z-5
				want := float32(0)
				if dx*dx+dy*dy+dz*dz <= 9 {
					want = 3
				}
				require.Equal(t, want, out.At(x, y, z), "voxel (%d,%d,%d)", x, y, z)
			}
		}
	}
}

func TestBallClippedAtVolumeEdge(t *testing.T) {
	g := models.NewGeometry(4, 4, 4)
	dist := models.NewFloatVolume(g)
	phase := models.NewLabelVolume(g)
	dist.Set(0, 0, 0, 2)

	out, err := Transform(dist, phase, 0)
	require.NoError(t, err)
	assert.Equal(t, float32(2), out.At(0, 0, 0))
	assert.Equal(t, float32(2), out.At(2, 0, 0))
	assert.Equal(t, float32(2), out.At(1, 1, 1))
	assert.Equal(t, float32(0), out.At(2, 2, 0))
	assert.Equal(t, float32(0), out.At(3, 3, 3))
}

func TestLargerCandidateIsNotOverwritten(t *testing.T) {
	g := models.NewGeometry(9, 1, 1)
	dist := models.NewFloatVolume(g)
	phase := models.NewLabelVolume(g)
	dist.Set(2, 0, 0, 3)
	dist.Set(4, 0, 0, 5)
	dist.Set(3, 0, 0, 1)

	out, err := Transform(dist, phase, 0)
	require.NoError(t, err)
	// voxel 4 is inside the d=3 ball of voxel 2 but its own distance (5)
	// exceeds 3, so only its own ball applies
	assert.Equal(t, float32(5), out.At(4, 0, 0))
	// voxel 3 is covered by both balls and keeps the larger radius
	assert.Equal(t, float32(5), out.At(3, 0, 0))
	assert.Equal(t, float32(5), out.At(0, 0, 0))
}

func TestWrongPhaseVoxelsStaySentinel(t *testing.T) {
	g := models.NewGeometry(7, 7, 7)
	dist := models.NewFloatVolume(g)
	phase := models.NewLabelVolume(g)
	phase.Fill(1)
	phase.Set(3, 3, 3, 0)
	dist.Set(3, 3, 3, 3)
	dist.Set(0, 0, 0, 9)

	out, err := Transform(dist, phase, 0)
	require.NoError(t, err)
	for i, v := range out.Data {
		if i == g.Index(3, 3, 3) {
			assert.Equal(t, float32(3), v)
			continue
		}
		require.Equal(t, Sentinel, v, "voxel %d", i)
	}
}

func TestSignedDistancesUseMagnitude(t *testing.T) {
	g := models.NewGeometry(5, 5, 5)
	dist := models.NewFloatVolume(g)
	phase := models.NewLabelVolume(g)
	dist.Set(2, 2, 2, -2)

	out, err := Transform(dist, phase, 0)
	require.NoError(t, err)
	assert.Equal(t, float32(2), out.At(2, 2, 2))
	assert.Equal(t, float32(2), out.At(2, 2, 0))
	assert.Equal(t, float32(0), out.At(0, 0, 0))
}

func TestPhysicalSpacing(t *testing.T) {
	g := models.NewGeometry(9, 9, 9)
	g.Spacing = models.Vec3{X: 0.5, Y: 0.5, Z: 0.5}
	dist := models.NewFloatVolume(g)
	phase := models.NewLabelVolume(g)
	dist.Set(4, 4, 4, 1) // 1mm = 2 voxels

	out, err := Transform(dist, phase, 0)
	require.NoError(t, err)
	assert.Equal(t, float32(1), out.At(6, 4, 4))
	assert.Equal(t, float32(1), out.At(4, 2, 4))
	assert.Equal(t, float32(0), out.At(7, 4, 4))
	assert.Equal(t, float32(0), out.At(6, 6, 4))
}

func TestMatchesBruteForce(t *testing.T) {
	for _, target := range []int{0, 1} {
		for _, spacing := range []float64{1, 0.5} {
			dist, phase := randomPair(int64(3+target), 8, 7, 6, spacing)
			want := bruteForce(dist, phase, uint8(target))

			seq, err := NewEngine(&Params{Phase: target}).Transform(dist, phase)
			require.NoError(t, err)
			assert.Equal(t, want, seq.Data, "sequential, phase %d spacing %g", target, spacing)

			par, err := NewEngine(&Params{Phase: target, Workers: 4}).Transform(dist, phase)
			require.NoError(t, err)
			assert.Equal(t, want, par.Data, "parallel, phase %d spacing %g", target, spacing)
		}
	}
}

func TestMonotonicAndNonNegative(t *testing.T) {
	dist, phase := randomPair(11, 10, 9, 8, 1)
	seeded, err := Seed(dist, phase, 0)
	require.NoError(t, err)
	out, err := Transform(dist, phase, 0)
	require.NoError(t, err)

	for i, v := range out.Data {
		if phase.Data[i] != 0 {
			require.Equal(t, Sentinel, v)
			continue
		}
		require.GreaterOrEqual(t, v, seeded.Data[i], "voxel %d decreased", i)
		require.GreaterOrEqual(t, v, float32(0), "voxel %d negative", i)
	}
}

func TestInputsAreNotMutated(t *testing.T) {
	dist, phase := randomPair(5, 6, 6, 6, 1)
	distCopy := dist.Clone()
	phaseCopy := append([]uint8(nil), phase.Data...)

	_, err := NewEngine(&Params{Phase: 1, Workers: 3}).Transform(dist, phase)
	require.NoError(t, err)
	assert.Equal(t, distCopy.Data, dist.Data)
	assert.Equal(t, phaseCopy, phase.Data)
}

func TestRejectsInvalidInputs(t *testing.T) {
	aniso := models.NewGeometry(4, 4, 4)
	aniso.Spacing = models.Vec3{X: 1, Y: 1, Z: 2}

	cases := map[string]struct {
		dist  *models.FloatVolume
		phase *models.LabelVolume
		label int
	}{
		"anisotropic": {models.NewFloatVolume(aniso), models.NewLabelVolume(models.NewGeometry(4, 4, 4)), 0},
		"mismatch":    {models.NewFloatVolume(models.NewGeometry(10, 10, 10)), models.NewLabelVolume(models.NewGeometry(10, 10, 11)), 0},
		"phase":       {models.NewFloatVolume(models.NewGeometry(2, 2, 2)), models.NewLabelVolume(models.NewGeometry(2, 2, 2)), 2},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			out, err := Transform(tc.dist, tc.phase, tc.label)
			require.Error(t, err)
			assert.Nil(t, out)
			assert.True(t, models.IsConfig(err), "want ConfigError, got %v", err)
		})
	}
}

func TestStats(t *testing.T) {
	g := models.NewGeometry(5, 5, 5)
	dist := models.NewFloatVolume(g)
	phase := models.NewLabelVolume(g)
	phase.Fill(1)
	phase.Set(2, 2, 2, 0)
	phase.Set(0, 0, 0, 0)
	dist.Set(2, 2, 2, -1)

	e := NewEngine(&Params{Phase: 0})
	_, err := e.Transform(dist, phase)
	require.NoError(t, err)

	st := e.Stats()
	assert.EqualValues(t, 125, st.Voxels)
	assert.EqualValues(t, 2, st.InPhase)
	// 3x3x3 box around the center plus the degenerate box at the corner
	assert.EqualValues(t, 28, st.Examined)
	assert.EqualValues(t, 2, st.Accepted)
	assert.EqualValues(t, 1, st.Raised)
}

type recordingProgress struct {
	mu    sync.Mutex
	dones []int64
	total int64
}

func (r *recordingProgress) Advance(done, total int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dones = append(r.dones, done)
	r.total = total
}

func TestProgressReachesTotal(t *testing.T) {
	dist, phase := randomPair(2, 4, 4, 6, 1)
	for _, workers := range []int{1, 3} {
		rec := &recordingProgress{}
		_, err := NewEngine(&Params{Phase: 0, Workers: workers, Progress: rec}).Transform(dist, phase)
		require.NoError(t, err)

		require.Len(t, rec.dones, 6, "one update per z plane")
		assert.EqualValues(t, 96, rec.total)
		max := int64(0)
		for _, d := range rec.dones {
			if d > max {
				max = d
			}
		}
		assert.EqualValues(t, 96, max)
	}
}

func TestParallelLargeVolume(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping large parallel comparison in short mode")
	}
	dist, phase := randomPair(99, 40, 40, 40, 1)
	seq, err := NewEngine(&Params{Phase: 0}).Transform(dist, phase)
	require.NoError(t, err)
	par, err := NewEngine(&Params{Phase: 0, Workers: 8}).Transform(dist, phase)
	require.NoError(t, err)
	assert.Equal(t, seq.Data, par.Data)
}
