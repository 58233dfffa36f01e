package covering

import (
	"math"
	"sync/atomic"
)

// maxField is the output buffer of a transform pass. raise stores v at i
// when v exceeds the current value and reports whether it did.
type maxField interface {
	raise(i int, v float32) bool
}

// plainField serves a single goroutine.
type plainField []float32

func (f plainField) raise(i int, v float32) bool {
	if v > f[i] {
		f[i] = v
		return true
	}
	return false
}

// atomicField holds float32 bit patterns updated with a compare-and-swap
// maximum, so concurrent sources may target the same cell.
type atomicField []uint32

func newAtomicField(values []float32) atomicField {
	f := make(atomicField, len(values))
	for i, v := range values {
		f[i] = math.Float32bits(v)
	}
	return f
}

func (f atomicField) raise(i int, v float32) bool {
	addr := &f[i]
	nv := math.Float32bits(v)
	for {
		old := atomic.LoadUint32(addr)
		if v <= math.Float32frombits(old) {
			return false
		}
		if atomic.CompareAndSwapUint32(addr, old, nv) {
			return true
		}
	}
}

func (f atomicField) copyTo(dst []float32) {
	for i := range f {
		dst[i] = math.Float32frombits(atomic.LoadUint32(&f[i]))
	}
}
