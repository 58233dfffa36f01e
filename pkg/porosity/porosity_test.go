package porosity

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clementsan/poresize/internal/models"
)

func clamp(v, n int) int {
	if v < 0 {
		return 0
	}
	if v >= n {
		return n - 1
	}
	return v
}

// bruteForce counts each neighborhood voxel by voxel
func bruteForce(labels *models.LabelVolume, phase uint8, r int) []float32 {
	g := labels.Geometry
	out := make([]float32, g.Len())
	size := float32((2*r + 1) * (2*r + 1) * (2*r + 1))
	for z := 0; z < g.Depth; z++ {
		for y := 0; y < g.Height; y++ {
			for x := 0; x < g.Width; x++ {
				c := 0
				for dz := -r; dz <= r; dz++ {
					for dy := -r; dy <= r; dy++ {
						for dx := -r; dx <= r; dx++ {
							if labels.At(clamp(x+dx, g.Width), clamp(y+dy, g.Height), clamp(z+dz, g.Depth)) == phase {
								c++
							}
						}
					}
				}
				out[g.Index(x, y, z)] = float32(c) / size
			}
		}
	}
	return out
}

func TestUniformPhase(t *testing.T) {
	labels := models.NewLabelVolume(models.NewGeometry(5, 4, 3))
	labels.Fill(1)

	res, err := Compute(labels, Params{Phase: 1, Radius: 1})
	require.NoError(t, err)
	for i, v := range res.Local.Data {
		require.Equal(t, float32(1), v, "voxel %d", i)
	}
	assert.Equal(t, 1.0, res.Global)
	assert.Equal(t, 60, res.Count)

	res, err = Compute(labels, Params{Phase: 0, Radius: 2})
	require.NoError(t, err)
	for _, v := range res.Local.Data {
		require.Zero(t, v)
	}
	assert.Zero(t, res.Global)
}

func TestEdgeReplication(t *testing.T) {
	labels := models.NewLabelVolume(models.NewGeometry(3, 1, 1))
	labels.Set(0, 0, 0, 1)

	res, err := Compute(labels, Params{Phase: 1, Radius: 1})
	require.NoError(t, err)
	assert.InDelta(t, 18.0/27, res.Local.At(0, 0, 0), 1e-6)
	assert.InDelta(t, 9.0/27, res.Local.At(1, 0, 0), 1e-6)
	assert.InDelta(t, 0, res.Local.At(2, 0, 0), 1e-6)
	assert.InDelta(t, 1.0/3, res.Global, 1e-12)
}

func TestMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	g := models.NewGeometry(7, 6, 5)
	labels := models.NewLabelVolume(g)
	for i := range labels.Data {
		labels.Data[i] = uint8(rng.Intn(2))
	}

	for _, r := range []int{1, 2, 4} {
		want := bruteForce(labels, 0, r)
		for _, workers := range []int{1, 3} {
			res, err := Compute(labels, Params{Phase: 0, Radius: r, Workers: workers})
			require.NoError(t, err)
			assert.InDeltaSlice(t, want, res.Local.Data, 1e-6, "radius %d workers %d", r, workers)
		}
	}
}

func TestKeepsGeometry(t *testing.T) {
	g := models.NewGeometry(2, 2, 2)
	g.Spacing = models.Vec3{X: 0.3, Y: 0.3, Z: 0.3}
	g.Origin = models.Vec3{X: 1, Y: 2, Z: 3}
	res, err := Compute(models.NewLabelVolume(g), Params{Phase: 0, Radius: 1})
	require.NoError(t, err)
	assert.Equal(t, g, res.Local.Geometry)
}

func TestRejectsBadParams(t *testing.T) {
	labels := models.NewLabelVolume(models.NewGeometry(2, 2, 2))
	for _, p := range []Params{
		{Phase: 0, Radius: 0},
		{Phase: 0, Radius: -3},
		{Phase: 0, Radius: MaxRadius + 1},
		{Phase: 256, Radius: 1},
	} {
		_, err := Compute(labels, p)
		require.Error(t, err, "%+v", p)
		assert.True(t, models.IsConfig(err))
	}
}
