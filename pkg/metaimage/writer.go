package metaimage

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zlib"

	"github.com/clementsan/poresize/internal/fsutil"
	"github.com/clementsan/poresize/internal/models"
)

// WriteOptions controls how a volume is stored
type WriteOptions struct {
	// Compress stores the voxel payload zlib-compressed
	Compress bool
}

// WriteFloat writes a scalar volume as MET_FLOAT. A ".mhd" path gets a detached
// ".raw" (or ".zraw") payload next to it, any other extension gets inline data.
func WriteFloat(path string, vol *models.FloatVolume, opts WriteOptions) error {
	return write(path, vol.Geometry, Float, opts, func(w io.Writer) error {
		buf := make([]byte, 4*decodeChunk)
		for i := 0; i < len(vol.Data); i += decodeChunk {
			end := i + decodeChunk
			if end > len(vol.Data) {
				end = len(vol.Data)
			}
			b := buf[:4*(end-i)]
			for j, v := range vol.Data[i:end] {
				binary.LittleEndian.PutUint32(b[4*j:], math.Float32bits(v))
			}
			if _, err := w.Write(b); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteLabels writes a phase volume as MET_UCHAR
func WriteLabels(path string, vol *models.LabelVolume, opts WriteOptions) error {
	return write(path, vol.Geometry, UChar, opts, func(w io.Writer) error {
		_, err := w.Write(vol.Data)
		return err
	})
}

func write(path string, g models.Geometry, et ElementType, opts WriteOptions, payload func(io.Writer) error) error {
	h := &Header{Geometry: g, ElementType: et, Compressed: opts.Compress, DataFile: LocalData}

	var body bytes.Buffer
	if opts.Compress {
		zw := zlib.NewWriter(&body)
		if err := payload(zw); err != nil {
			return models.WrapIO("compress", path, err)
		}
		if err := zw.Close(); err != nil {
			return models.WrapIO("compress", path, err)
		}
		h.CompressedSize = int64(body.Len())
	} else {
		body.Grow(g.Len() * et.Size())
		if err := payload(&body); err != nil {
			return models.WrapIO("encode", path, err)
		}
	}

	if !strings.EqualFold(filepath.Ext(path), ".mhd") {
		return fsutil.WriteAtomic(path, func(w io.Writer) error {
			if _, err := h.WriteTo(w); err != nil {
				return err
			}
			_, err := body.WriteTo(w)
			return err
		})
	}

	ext := ".raw"
	if opts.Compress {
		ext = ".zraw"
	}
	rawPath := strings.TrimSuffix(path, filepath.Ext(path)) + ext
	h.DataFile = filepath.Base(rawPath)
	if err := fsutil.WriteAtomic(rawPath, func(w io.Writer) error {
		_, err := body.WriteTo(w)
		return err
	}); err != nil {
		return err
	}
	return fsutil.WriteAtomic(path, func(w io.Writer) error {
		_, err := h.WriteTo(w)
		return err
	})
}
