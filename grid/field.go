// Package grid provides the 2D fields the solver operates on: scalar and
// two-component fields, double-buffered pairs and the named buffer set the
// simulation owns.
package grid

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidSize is returned when a field or buffer set is requested with a
// non-positive dimension.
var ErrInvalidSize = errors.New("grid: invalid size")

// Kind is the number of float32 components stored per cell.
type Kind uint8

const (
	Scalar Kind = 1
	Vector Kind = 2
)

func (k Kind) String() string {
	switch k {
	case Scalar:
		return "scalar"
	case Vector:
		return "vector"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Vec2 is a two-component value. Scalar fields use X only.
type Vec2 struct {
	X, Y float32
}

// Add returns v+o.
func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }

// Sub returns v-o.
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }

// Scale returns v*s.
func (v Vec2) Scale(s float32) Vec2 { return Vec2{v.X * s, v.Y * s} }

// Len returns the Euclidean length.
func (v Vec2) Len() float32 {
	return float32(math.Sqrt(float64(v.X*v.X + v.Y*v.Y)))
}

// Finite reports whether both components are neither NaN nor Inf.
func (v Vec2) Finite() bool {
	return !math.IsNaN(float64(v.X)) && !math.IsInf(float64(v.X), 0) &&
		!math.IsNaN(float64(v.Y)) && !math.IsInf(float64(v.Y), 0)
}

// Field is a width×height array of scalar or Vec2 values, stored row-major
// with interleaved components.
type Field struct {
	kind Kind
	w, h int
	data []float32
}

// NewField allocates a zero-filled field.
func NewField(kind Kind, w, h int) (*Field, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, w, h)
	}
	if kind != Scalar && kind != Vector {
		return nil, fmt.Errorf("grid: unsupported field kind %v", kind)
	}
	return &Field{
		kind: kind,
		w:    w,
		h:    h,
		data: make([]float32, w*h*int(kind)),
	}, nil
}

// Kind returns the component count of the field.
func (f *Field) Kind() Kind { return f.kind }

// Width returns the number of cells along x.
func (f *Field) Width() int { return f.w }

// Height returns the number of cells along y.
func (f *Field) Height() int { return f.h }

// Cells returns width*height.
func (f *Field) Cells() int { return f.w * f.h }

// Data exposes the raw interleaved storage.
func (f *Field) Data() []float32 { return f.data }

// SameShape reports whether o has the same kind and dimensions.
func (f *Field) SameShape(o *Field) bool {
	return o != nil && f.kind == o.kind && f.w == o.w && f.h == o.h
}

func (f *Field) index(x, y int) int {
	return (y*f.w + x) * int(f.kind)
}

// InBounds reports whether (x, y) addresses a cell of the field.
func (f *Field) InBounds(x, y int) bool {
	return x >= 0 && x < f.w && y >= 0 && y < f.h
}

// At returns the value at (x, y), clamping the coordinates to the nearest
// edge cell.
func (f *Field) At(x, y int) Vec2 {
	x = clampInt(x, 0, f.w-1)
	y = clampInt(y, 0, f.h-1)
	i := f.index(x, y)
	if f.kind == Scalar {
		return Vec2{X: f.data[i]}
	}
	return Vec2{X: f.data[i], Y: f.data[i+1]}
}

// Scalar returns the first component at (x, y) with edge clamping.
func (f *Field) Scalar(x, y int) float32 {
	x = clampInt(x, 0, f.w-1)
	y = clampInt(y, 0, f.h-1)
	return f.data[f.index(x, y)]
}

// Set stores v at (x, y). Out-of-range coordinates are ignored.
func (f *Field) Set(x, y int, v Vec2) {
	if !f.InBounds(x, y) {
		return
	}
	i := f.index(x, y)
	f.data[i] = v.X
	if f.kind == Vector {
		f.data[i+1] = v.Y
	}
}

// AddAt adds v to the value at (x, y). Out-of-range coordinates are ignored.
func (f *Field) AddAt(x, y int, v Vec2) {
	if !f.InBounds(x, y) {
		return
	}
	i := f.index(x, y)
	f.data[i] += v.X
	if f.kind == Vector {
		f.data[i+1] += v.Y
	}
}

// Clear zero-fills the field.
func (f *Field) Clear() {
	clear(f.data)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampF(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
