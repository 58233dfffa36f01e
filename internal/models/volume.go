package models

import (
	"fmt"
)

// Vec3 holds a per-axis physical quantity (spacing or origin) in mm
type Vec3 struct {
	X, Y, Z float64
}

// Geometry describes the voxel grid shared by every volume of one run
type Geometry struct {
	// Width is the number of voxels along x
	Width int

	// Height is the number of voxels along y
	Height int

	// Depth is the number of voxels along z
	Depth int

	// Spacing is the physical size of each voxel in mm
	Spacing Vec3

	// Origin is the physical position of voxel (0,0,0)
	Origin Vec3
}

// NewGeometry returns a geometry with unit spacing and zero origin
func NewGeometry(width, height, depth int) Geometry {
	return Geometry{
		Width:   width,
		Height:  height,
		Depth:   depth,
		Spacing: Vec3{1, 1, 1},
	}
}

// Len returns the number of voxels in the grid
func (g Geometry) Len() int {
	return g.Width * g.Height * g.Depth
}

// Index returns the flat row-major index of voxel (x, y, z)
func (g Geometry) Index(x, y, z int) int {
	return z*g.Width*g.Height + y*g.Width + x
}

// Coords is the inverse of Index
func (g Geometry) Coords(i int) (x, y, z int) {
	plane := g.Width * g.Height
	z = i / plane
	rem := i - z*plane
	y = rem / g.Width
	x = rem - y*g.Width
	return x, y, z
}

// Contains reports whether (x, y, z) lies inside the grid
func (g Geometry) Contains(x, y, z int) bool {
	return x >= 0 && y >= 0 && z >= 0 && x < g.Width && y < g.Height && z < g.Depth
}

// SameSize reports whether both geometries have identical voxel counts on every axis
func (g Geometry) SameSize(o Geometry) bool {
	return g.Width == o.Width && g.Height == o.Height && g.Depth == o.Depth
}

// IsIsotropic reports whether the spacing is equal along all three axes.
// The comparison is exact.
func (g Geometry) IsIsotropic() bool {
	return g.Spacing.X == g.Spacing.Y && g.Spacing.Y == g.Spacing.Z
}

// IsotropicSpacing returns the single voxel size of an isotropic grid
func (g Geometry) IsotropicSpacing() (float64, error) {
	if !g.IsIsotropic() {
		return 0, Configf("isotropic voxels required, got spacing %gmm x %gmm x %gmm",
			g.Spacing.X, g.Spacing.Y, g.Spacing.Z)
	}
	if !(g.Spacing.X > 0) {
		return 0, Configf("voxel spacing must be positive, got %g", g.Spacing.X)
	}
	return g.Spacing.X, nil
}

// Validate checks that the grid is non-empty
func (g Geometry) Validate() error {
	if g.Width <= 0 || g.Height <= 0 || g.Depth <= 0 {
		return Configf("invalid volume dimensions %dx%dx%d", g.Width, g.Height, g.Depth)
	}
	return nil
}

// String formats the dimensions as WxHxD
func (g Geometry) String() string {
	return fmt.Sprintf("%dx%dx%d", g.Width, g.Height, g.Depth)
}

// FloatVolume is a scalar volume stored as a 1D array in row-major order
type FloatVolume struct {
	Geometry

	// Data holds one value per voxel, indexed by Geometry.Index
	Data []float32
}

// NewFloatVolume allocates a zero-filled scalar volume
func NewFloatVolume(g Geometry) *FloatVolume {
	return &FloatVolume{Geometry: g, Data: make([]float32, g.Len())}
}

// At returns the value at (x, y, z)
func (v *FloatVolume) At(x, y, z int) float32 {
	return v.Data[v.Index(x, y, z)]
}

// Set stores a value at (x, y, z)
func (v *FloatVolume) Set(x, y, z int, val float32) {
	v.Data[v.Index(x, y, z)] = val
}

// Clone returns a deep copy with its own buffer
func (v *FloatVolume) Clone() *FloatVolume {
	data := make([]float32, len(v.Data))
	copy(data, v.Data)
	return &FloatVolume{Geometry: v.Geometry, Data: data}
}

// LabelVolume holds one small integer phase label per voxel
type LabelVolume struct {
	Geometry

	// Data holds one label per voxel, indexed by Geometry.Index
	Data []uint8
}

// NewLabelVolume allocates a label volume filled with label 0
func NewLabelVolume(g Geometry) *LabelVolume {
	return &LabelVolume{Geometry: g, Data: make([]uint8, g.Len())}
}

// At returns the label at (x, y, z)
func (v *LabelVolume) At(x, y, z int) uint8 {
	return v.Data[v.Index(x, y, z)]
}

// Set stores a label at (x, y, z)
func (v *LabelVolume) Set(x, y, z int, label uint8) {
	v.Data[v.Index(x, y, z)] = label
}

// Fill sets every voxel to label
func (v *LabelVolume) Fill(label uint8) {
	for i := range v.Data {
		v.Data[i] = label
	}
}

// CheckGeometries validates that a distance grid and a phase grid can be
// processed together: identical voxel counts along all axes and isotropic
// spacing. It returns the isotropic spacing of the distance grid.
func CheckGeometries(dist, phase Geometry) (float64, error) {
	if err := dist.Validate(); err != nil {
		return 0, err
	}
	if !dist.SameSize(phase) {
		return 0, Configf("input images are not the same size: distance %s, phase %s", dist, phase)
	}
	spacing, err := dist.IsotropicSpacing()
	if err != nil {
		return 0, fmt.Errorf("distance field: %w", err)
	}
	if _, err := phase.IsotropicSpacing(); err != nil {
		return 0, fmt.Errorf("phase field: %w", err)
	}
	return spacing, nil
}

// CheckPair runs CheckGeometries on two loaded volumes after checking that
// their buffers match their geometry.
func CheckPair(dist *FloatVolume, phase *LabelVolume) (float64, error) {
	if err := dist.Validate(); err != nil {
		return 0, err
	}
	if len(dist.Data) != dist.Len() {
		return 0, Configf("distance field holds %d values for %s voxels", len(dist.Data), dist.Geometry)
	}
	if len(phase.Data) != phase.Len() {
		return 0, Configf("phase field holds %d values for %s voxels", len(phase.Data), phase.Geometry)
	}
	return CheckGeometries(dist.Geometry, phase.Geometry)
}
