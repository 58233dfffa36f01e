package metaimage

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zlib"

	"github.com/clementsan/poresize/internal/models"
)

// decodeChunk is the number of voxels converted per read
const decodeChunk = 1 << 16

// ReadFloat reads a scalar volume such as a distance transform
func ReadFloat(path string) (*models.FloatVolume, error) {
	var vol *models.FloatVolume
	err := read(path, func(h *Header) func(int, float64) error {
		vol = models.NewFloatVolume(h.Geometry)
		return func(i int, v float64) error {
			vol.Data[i] = float32(v)
			return nil
		}
	})
	if err != nil {
		return nil, err
	}
	return vol, nil
}

// ReadLabels reads a phase model. Every voxel must hold an integer label in 0..255.
func ReadLabels(path string) (*models.LabelVolume, error) {
	var vol *models.LabelVolume
	err := read(path, func(h *Header) func(int, float64) error {
		vol = models.NewLabelVolume(h.Geometry)
		return func(i int, v float64) error {
			if v < 0 || v > 255 || v != math.Trunc(v) {
				x, y, z := vol.Coords(i)
				return models.Configf("phase label %g at voxel (%d,%d,%d) is not in 0..255", v, x, y, z)
			}
			vol.Data[i] = uint8(v)
			return nil
		}
	})
	if err != nil {
		return nil, err
	}
	return vol, nil
}

// ReadHeader parses only the header of a MetaImage file
func ReadHeader(path string) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, models.WrapIO("open", path, err)
	}
	defer f.Close()
	h, err := ParseHeader(bufio.NewReader(f))
	if err != nil {
		return nil, models.WrapIO("parse header of", path, err)
	}
	return h, nil
}

func read(path string, sink func(*Header) func(int, float64) error) error {
	f, err := os.Open(path)
	if err != nil {
		return models.WrapIO("open", path, err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	h, err := ParseHeader(br)
	if err != nil {
		return models.WrapIO("parse header of", path, err)
	}

	var data io.Reader = br
	dataPath := path
	if h.DataFile != LocalData {
		dataPath = h.DataFile
		if !filepath.IsAbs(dataPath) {
			dataPath = filepath.Join(filepath.Dir(path), dataPath)
		}
		df, err := os.Open(dataPath)
		if err != nil {
			return models.WrapIO("open", dataPath, err)
		}
		defer df.Close()
		data = bufio.NewReader(df)
	}

	if h.Compressed {
		if h.CompressedSize > 0 {
			data = io.LimitReader(data, h.CompressedSize)
		}
		zr, err := zlib.NewReader(data)
		if err != nil {
			return models.WrapIO("decompress", dataPath, err)
		}
		defer zr.Close()
		data = zr
	}

	if err := decode(data, h, sink(h)); err != nil {
		return models.WrapIO("read voxels of", dataPath, err)
	}
	return nil
}

func decode(r io.Reader, h *Header, emit func(int, float64) error) error {
	var order binary.ByteOrder = binary.LittleEndian
	if h.MSB {
		order = binary.BigEndian
	}
	size := h.ElementType.Size()
	n := h.Geometry.Len()
	buf := make([]byte, size*decodeChunk)

	for i := 0; i < n; {
		m := n - i
		if m > decodeChunk {
			m = decodeChunk
		}
		if _, err := io.ReadFull(r, buf[:m*size]); err != nil {
			return fmt.Errorf("expected %d voxels, data ended near voxel %d: %w", n, i, err)
		}
		for j := 0; j < m; j++ {
			if err := emit(i+j, h.ElementType.value(buf[j*size:], order)); err != nil {
				return err
			}
		}
		i += m
	}
	return nil
}
