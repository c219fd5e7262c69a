package grid

import "math"

// Sample bilinearly interpolates the field at (px, py), given in cell units
// where the center of cell (i, j) is (i+0.5, j+0.5). Positions outside the
// grid clamp to the nearest edge cell; there is no wraparound.
func (f *Field) Sample(px, py float32) Vec2 {
	v, _, _ := f.sample(px, py, false)
	return v
}

// SampleRange is Sample plus the per-component min and max of the four
// cells that contributed to the interpolation.
func (f *Field) SampleRange(px, py float32) (v, lo, hi Vec2) {
	return f.sample(px, py, true)
}

func (f *Field) sample(px, py float32, withRange bool) (v, lo, hi Vec2) {
	if math.IsNaN(float64(px)) || math.IsNaN(float64(py)) {
		px, py = 0, 0
	}
	fx := clampF(px-0.5, 0, float32(f.w-1))
	fy := clampF(py-0.5, 0, float32(f.h-1))

	x0 := int(fx)
	y0 := int(fy)
	x1 := min(x0+1, f.w-1)
	y1 := min(y0+1, f.h-1)
	tx := fx - float32(x0)
	ty := fy - float32(y0)

	a := f.At(x0, y0)
	b := f.At(x1, y0)
	c := f.At(x0, y1)
	d := f.At(x1, y1)

	sx := 1 - tx
	sy := 1 - ty
	v = Vec2{
		X: sy*(sx*a.X+tx*b.X) + ty*(sx*c.X+tx*d.X),
		Y: sy*(sx*a.Y+tx*b.Y) + ty*(sx*c.Y+tx*d.Y),
	}
	if !withRange {
		return v, Vec2{}, Vec2{}
	}
	lo = Vec2{min(a.X, b.X, c.X, d.X), min(a.Y, b.Y, c.Y, d.Y)}
	hi = Vec2{max(a.X, b.X, c.X, d.X), max(a.Y, b.Y, c.Y, d.Y)}
	return v, lo, hi
}
