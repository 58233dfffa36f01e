// Package metaimage reads and writes 3D volumes in the MetaImage format
// (.mha with inline data, .mhd with a detached raw file).
package metaimage

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/clementsan/poresize/internal/models"
)

// ElementType is a MetaImage voxel type tag such as MET_FLOAT
type ElementType string

const (
	Char   ElementType = "MET_CHAR"
	UChar  ElementType = "MET_UCHAR"
	Short  ElementType = "MET_SHORT"
	UShort ElementType = "MET_USHORT"
	Int    ElementType = "MET_INT"
	UInt   ElementType = "MET_UINT"
	Float  ElementType = "MET_FLOAT"
	Double ElementType = "MET_DOUBLE"
)

// MaxVoxels bounds DimSize so a header cannot request an unallocatable volume
const MaxVoxels int64 = 1 << 34

// LocalData is the ElementDataFile value of a file whose voxels follow the header
const LocalData = "LOCAL"

// Size returns the number of bytes per element, or 0 for an unknown type
func (t ElementType) Size() int {
	switch t {
	case Char, UChar:
		return 1
	case Short, UShort:
		return 2
	case Int, UInt, Float:
		return 4
	case Double:
		return 8
	}
	return 0
}

func (t ElementType) value(b []byte, order binary.ByteOrder) float64 {
	switch t {
	case Char:
		return float64(int8(b[0]))
	case UChar:
		return float64(b[0])
	case Short:
		return float64(int16(order.Uint16(b)))
	case UShort:
		return float64(order.Uint16(b))
	case Int:
		return float64(int32(order.Uint32(b)))
	case UInt:
		return float64(order.Uint32(b))
	case Float:
		return float64(math.Float32frombits(order.Uint32(b)))
	case Double:
		return math.Float64frombits(order.Uint64(b))
	}
	return 0
}

// Header is the subset of MetaImage header fields used for scalar 3D volumes
type Header struct {
	Geometry       models.Geometry
	ElementType    ElementType
	MSB            bool
	Compressed     bool
	CompressedSize int64
	DataFile       string
}

// ParseHeader reads "Key = Value" lines up to and including ElementDataFile.
// The reader is left positioned at the first byte of inline voxel data.
func ParseHeader(r *bufio.Reader) (*Header, error) {
	fields := make(map[string]string)
	for {
		line, err := r.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			if err == io.EOF {
				return nil, fmt.Errorf("header ended before ElementDataFile")
			}
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("malformed header line %q", line)
		}
		key = strings.TrimSpace(key)
		fields[key] = strings.TrimSpace(val)
		if key == "ElementDataFile" {
			break
		}
		if err == io.EOF {
			return nil, fmt.Errorf("header ended before ElementDataFile")
		}
	}
	return headerFromFields(fields)
}

func headerFromFields(f map[string]string) (*Header, error) {
	if ot, ok := f["ObjectType"]; ok && !strings.EqualFold(ot, "Image") {
		return nil, fmt.Errorf("unsupported ObjectType %q", ot)
	}
	ndims, err := strconv.Atoi(f["NDims"])
	if err != nil {
		return nil, fmt.Errorf("invalid NDims %q", f["NDims"])
	}
	if ndims != 3 {
		return nil, fmt.Errorf("only 3D images are supported, got NDims = %d", ndims)
	}
	if ch, ok := f["ElementNumberOfChannels"]; ok && ch != "1" {
		return nil, fmt.Errorf("only single-channel images are supported, got %s channels", ch)
	}
	if bd, ok := f["BinaryData"]; ok && !parseBool(bd) {
		return nil, fmt.Errorf("ASCII voxel data is not supported")
	}

	h := &Header{}
	dims, err := parseInts(f["DimSize"])
	if err != nil {
		return nil, fmt.Errorf("invalid DimSize: %w", err)
	}
	if dims[0] <= 0 || dims[1] <= 0 || dims[2] <= 0 {
		return nil, fmt.Errorf("invalid DimSize %d %d %d", dims[0], dims[1], dims[2])
	}
	limit := MaxVoxels
	if int64(math.MaxInt/8) < limit {
		limit = int64(math.MaxInt / 8)
	}
	nx, ny, nz := int64(dims[0]), int64(dims[1]), int64(dims[2])
	if nx > limit/ny || nx*ny > limit/nz {
		return nil, fmt.Errorf("DimSize %d %d %d exceeds %d voxels", dims[0], dims[1], dims[2], limit)
	}
	h.Geometry = models.NewGeometry(dims[0], dims[1], dims[2])

	spacingKey := "ElementSpacing"
	if _, ok := f[spacingKey]; !ok {
		spacingKey = "ElementSize"
	}
	if s, ok := f[spacingKey]; ok {
		v, err := parseFloats(s)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", spacingKey, err)
		}
		h.Geometry.Spacing = models.Vec3{X: v[0], Y: v[1], Z: v[2]}
	}
	for _, key := range []string{"Offset", "Origin", "Position"} {
		if s, ok := f[key]; ok {
			v, err := parseFloats(s)
			if err != nil {
				return nil, fmt.Errorf("invalid %s: %w", key, err)
			}
			h.Geometry.Origin = models.Vec3{X: v[0], Y: v[1], Z: v[2]}
			break
		}
	}

	h.ElementType = ElementType(f["ElementType"])
	if h.ElementType.Size() == 0 {
		return nil, fmt.Errorf("unsupported ElementType %q", f["ElementType"])
	}
	if msb, ok := f["BinaryDataByteOrderMSB"]; ok {
		h.MSB = parseBool(msb)
	} else if msb, ok := f["ElementByteOrderMSB"]; ok {
		h.MSB = parseBool(msb)
	}
	if c, ok := f["CompressedData"]; ok {
		h.Compressed = parseBool(c)
	}
	if cs, ok := f["CompressedDataSize"]; ok {
		h.CompressedSize, err = strconv.ParseInt(cs, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid CompressedDataSize %q", cs)
		}
	}
	h.DataFile = f["ElementDataFile"]
	if h.DataFile == "" {
		return nil, fmt.Errorf("missing ElementDataFile")
	}
	if strings.HasPrefix(h.DataFile, "LIST") || strings.Contains(h.DataFile, "%") {
		return nil, fmt.Errorf("multi-file ElementDataFile %q is not supported", h.DataFile)
	}
	return h, nil
}

// WriteTo formats the header. ElementDataFile is always the last line.
func (h *Header) WriteTo(w io.Writer) (int64, error) {
	g := h.Geometry
	var b strings.Builder
	fmt.Fprintf(&b, "ObjectType = Image\n")
	fmt.Fprintf(&b, "NDims = 3\n")
	fmt.Fprintf(&b, "BinaryData = True\n")
	fmt.Fprintf(&b, "BinaryDataByteOrderMSB = %s\n", formatBool(h.MSB))
	fmt.Fprintf(&b, "CompressedData = %s\n", formatBool(h.Compressed))
	if h.Compressed {
		fmt.Fprintf(&b, "CompressedDataSize = %d\n", h.CompressedSize)
	}
	fmt.Fprintf(&b, "TransformMatrix = 1 0 0 0 1 0 0 0 1\n")
	fmt.Fprintf(&b, "Offset = %s %s %s\n", formatFloat(g.Origin.X), formatFloat(g.Origin.Y), formatFloat(g.Origin.Z))
	fmt.Fprintf(&b, "CenterOfRotation = 0 0 0\n")
	fmt.Fprintf(&b, "AnatomicalOrientation = RAI\n")
	fmt.Fprintf(&b, "ElementSpacing = %s %s %s\n", formatFloat(g.Spacing.X), formatFloat(g.Spacing.Y), formatFloat(g.Spacing.Z))
	fmt.Fprintf(&b, "DimSize = %d %d %d\n", g.Width, g.Height, g.Depth)
	fmt.Fprintf(&b, "ElementType = %s\n", h.ElementType)
	fmt.Fprintf(&b, "ElementDataFile = %s\n", h.DataFile)
	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

func parseBool(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "true")
}

func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func parseInts(s string) ([3]int, error) {
	var out [3]int
	parts := strings.Fields(s)
	if len(parts) != 3 {
		return out, fmt.Errorf("want 3 values, got %q", s)
	}
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return out, err
		}
		out[i] = v
	}
	return out, nil
}

func parseFloats(s string) ([3]float64, error) {
	var out [3]float64
	parts := strings.Fields(s)
	if len(parts) != 3 {
		return out, fmt.Errorf("want 3 values, got %q", s)
	}
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return out, err
		}
		out[i] = v
	}
	return out, nil
}
