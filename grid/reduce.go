package grid

import (
	"fmt"

	"gonum.org/v1/gonum/blas/blas32"
)

func (f *Field) vector() blas32.Vector {
	return blas32.Vector{N: len(f.data), Inc: 1, Data: f.data}
}

// CopyFrom overwrites f with the contents of src. Both fields must have the
// same shape and must not be the same field.
func (f *Field) CopyFrom(src *Field) error {
	if src == f {
		return nil
	}
	if !f.SameShape(src) {
		return fmt.Errorf("grid: copy %v %dx%d into %v %dx%d",
			src.kind, src.w, src.h, f.kind, f.w, f.h)
	}
	blas32.Copy(src.vector(), f.vector())
	return nil
}

// Scale multiplies every component by s in place.
func (f *Field) Scale(s float32) {
	blas32.Scal(s, f.vector())
}

// MeanAbs returns the mean absolute value over all components of all cells.
func MeanAbs(f *Field) float32 {
	if len(f.data) == 0 {
		return 0
	}
	return blas32.Asum(f.vector()) / float32(len(f.data))
}

// KineticEnergy returns 0.5 * sum(|v|^2) / cells for a vector field.
func KineticEnergy(f *Field) float32 {
	if f.Cells() == 0 {
		return 0
	}
	v := f.vector()
	return 0.5 * blas32.Dot(v, v) / float32(f.Cells())
}

// MaxLen returns the largest per-cell magnitude.
func MaxLen(f *Field) float32 {
	var best float32
	for y := 0; y < f.h; y++ {
		for x := 0; x < f.w; x++ {
			if l := f.At(x, y).Len(); l > best {
				best = l
			}
		}
	}
	return best
}
