package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/nfnt/resize"

	"github.com/clementsan/poresize/internal/fsutil"
	"github.com/clementsan/poresize/internal/models"
)

// Viewer renders axis-aligned slices of a scalar volume as grayscale images.
// Values are mapped linearly from [0, max] to [0, 65535]; negative values
// (the wrong-phase sentinel) render black.
type Viewer struct {
	// volume holds the scalar field being viewed
	volume *models.FloatVolume

	// max is the value rendered white
	max float32

	// scale is the integer upscaling factor applied when saving
	scale int
}

// NewViewer creates a viewer normalizing by the largest value of vol
func NewViewer(vol *models.FloatVolume) *Viewer {
	var max float32
	for _, v := range vol.Data {
		if v > max {
			max = v
		}
	}
	return &Viewer{volume: vol, max: max, scale: 1}
}

// SetScale sets the upscaling factor used by SaveSlice
func (v *Viewer) SetScale(scale int) {
	if scale < 1 {
		scale = 1
	}
	v.scale = scale
}

func (v *Viewer) gray(val float32) color.Gray16 {
	if val <= 0 || v.max <= 0 {
		return color.Gray16{}
	}
	if val >= v.max {
		return color.Gray16{Y: 65535}
	}
	return color.Gray16{Y: uint16(val / v.max * 65535)}
}

// ExtractSlice extracts a 2D slice from the volume along the specified axis
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}
	g := v.volume.Geometry

	var img *image.Gray16

	switch axis {
	case "x", "X":
		// YZ plane
		if position >= g.Width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, g.Width)
		}
		img = image.NewGray16(image.Rect(0, 0, g.Depth, g.Height))
		for y := 0; y < g.Height; y++ {
			for z := 0; z < g.Depth; z++ {
				img.SetGray16(z, y, v.gray(v.volume.At(position, y, z)))
			}
		}

	case "y", "Y":
		// XZ plane
		if position >= g.Height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, g.Height)
		}
		img = image.NewGray16(image.Rect(0, 0, g.Width, g.Depth))
		for z := 0; z < g.Depth; z++ {
			for x := 0; x < g.Width; x++ {
				img.SetGray16(x, z, v.gray(v.volume.At(x, position, z)))
			}
		}

	case "z", "Z":
		// XY plane
		if position >= g.Depth {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, g.Depth)
		}
		img = image.NewGray16(image.Rect(0, 0, g.Width, g.Height))
		for y := 0; y < g.Height; y++ {
			for x := 0; x < g.Width; x++ {
				img.SetGray16(x, y, v.gray(v.volume.At(x, y, position)))
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

// ExtractRegion extracts a 3D subregion from the volume, keeping spacing and
// shifting the origin to the first voxel of the region
func (v *Viewer) ExtractRegion(startX, startY, startZ, sizeX, sizeY, sizeZ int) (*models.FloatVolume, error) {
	if startX < 0 || startY < 0 || startZ < 0 {
		return nil, fmt.Errorf("start coordinates must be non-negative")
	}

	if sizeX <= 0 || sizeY <= 0 || sizeZ <= 0 {
		return nil, fmt.Errorf("size dimensions must be positive")
	}

	g := v.volume.Geometry
	if startX+sizeX > g.Width || startY+sizeY > g.Height || startZ+sizeZ > g.Depth {
		return nil, fmt.Errorf("region extends beyond volume boundaries")
	}

	rg := g
	rg.Width, rg.Height, rg.Depth = sizeX, sizeY, sizeZ
	rg.Origin = models.Vec3{
		X: g.Origin.X + float64(startX)*g.Spacing.X,
		Y: g.Origin.Y + float64(startY)*g.Spacing.Y,
		Z: g.Origin.Z + float64(startZ)*g.Spacing.Z,
	}
	region := models.NewFloatVolume(rg)

	for z := 0; z < sizeZ; z++ {
		for y := 0; y < sizeY; y++ {
			src := g.Index(startX, startY+y, startZ+z)
			copy(region.Data[rg.Index(0, y, z):rg.Index(0, y, z)+sizeX], v.volume.Data[src:src+sizeX])
		}
	}

	return region, nil
}

// WriteSlice encodes img as PNG, upscaled by the viewer's scale factor
func (v *Viewer) WriteSlice(w io.Writer, img image.Image) error {
	if v.scale > 1 {
		b := img.Bounds()
		img = resize.Resize(uint(b.Dx()*v.scale), uint(b.Dy()*v.scale), img, resize.NearestNeighbor)
	}
	return png.Encode(w, img)
}

// SaveSlice saves an extracted slice as a PNG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	return fsutil.WriteAtomic(filename, func(w io.Writer) error {
		return v.WriteSlice(w, img)
	})
}

// SaveSliceSequence extracts and saves every slice along the specified axis
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) error {
	g := v.volume.Geometry

	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = g.Width
	case "y", "Y":
		maxPos = g.Height
	case "z", "Z":
		maxPos = g.Depth
	default:
		return fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return models.WrapIO("create", outputDir, err)
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
