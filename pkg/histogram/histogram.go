// Package histogram bins a covering radius field into equal-width bins.
//
// Negative voxel values mark the ignored phase and are skipped. The range is
// [0, max], divided into k half-open bins; the last bin is closed at
// max + Epsilon so the largest value is counted.
package histogram

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/clementsan/poresize/internal/models"
)

// Epsilon widens the last bin to absorb rounding at max
const Epsilon = 0.00001

// Bin is one histogram row
type Bin struct {
	Index    int
	Min      float64
	Max      float64
	Count    int
	Fraction float64
}

// Histogram is the binned distribution of the non-negative voxels of a field
type Histogram struct {
	Bins []Bin

	// Max is the largest counted value, Min is always 0
	Max float64

	// Mean of the counted values, 0 when none were counted
	Mean float64

	// Total is the number of counted voxels
	Total int

	// Unbounded is the number of infinite or NaN values left out of the bins
	Unbounded int
}

// Compute bins the non-sentinel voxels of field into numBins bins
func Compute(field *models.FloatVolume, numBins int) (*Histogram, error) {
	values := make([]float64, len(field.Data))
	for i, v := range field.Data {
		values[i] = float64(v)
	}
	return FromValues(values, numBins)
}

// FromValues bins the non-negative finite entries of values. Negative values
// are skipped as sentinels; infinite and NaN values are only counted in
// Unbounded. The slice is filtered and sorted in place.
func FromValues(values []float64, numBins int) (*Histogram, error) {
	if numBins < 1 {
		return nil, models.Configf("number of bins must be at least 1, got %d", numBins)
	}

	unbounded := 0
	kept := values[:0]
	for _, v := range values {
		switch {
		case math.IsNaN(v) || math.IsInf(v, 0):
			unbounded++
		case v >= 0:
			kept = append(kept, v)
		}
	}
	values = kept

	h := &Histogram{Bins: make([]Bin, numBins), Total: len(values), Unbounded: unbounded}
	if len(values) > 0 {
		h.Max = floats.Max(values)
		h.Mean = stat.Mean(values, nil)
	}

	width := h.Max / float64(numBins)
	for i := range h.Bins {
		h.Bins[i].Index = i
		if i > 0 {
			h.Bins[i].Min = h.Bins[i-1].Max
		}
		h.Bins[i].Max = h.Bins[i].Min + width
	}
	last := h.Max + Epsilon
	if !(last > h.Max) {
		last = math.Nextafter(h.Max, math.Inf(1))
	}
	h.Bins[numBins-1].Max = last

	switch {
	case len(values) == 0:
	case width == 0:
		// Every value equals 0; a zero bin width routes all of them to bin 0.
		h.Bins[0].Count = len(values)
	default:
		dividers := make([]float64, numBins+1)
		for i, b := range h.Bins {
			dividers[i] = b.Min
		}
		dividers[numBins] = last
		sort.Float64s(values)
		counts := stat.Histogram(nil, dividers, values, nil)
		for i, c := range counts {
			h.Bins[i].Count = int(c)
		}
	}

	if h.Total > 0 {
		for i := range h.Bins {
			h.Bins[i].Fraction = float64(h.Bins[i].Count) / float64(h.Total)
		}
	}
	return h, nil
}
