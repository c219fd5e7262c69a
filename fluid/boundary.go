package fluid

import "github.com/pthm-cable/stablefluid/grid"

// epsilon is the smallest denominator the passes divide by.
const epsilon = 1e-6

// velocityAt reads a velocity neighbour. Outside the domain an open
// boundary clamps to the edge cell; a bounded one mirrors the edge cell
// with the wall-normal component negated.
func velocityAt(f *grid.Field, x, y int, bounded bool) grid.Vec2 {
	if f.InBounds(x, y) || !bounded {
		return f.At(x, y)
	}
	v := f.At(x, y)
	if x < 0 || x >= f.Width() {
		v.X = -v.X
	}
	if y < 0 || y >= f.Height() {
		v.Y = -v.Y
	}
	return v
}

// pressureAt reads a pressure neighbour. Outside the domain a bounded
// boundary returns the center value (zero normal gradient) and an open one
// returns zero.
func pressureAt(f *grid.Field, x, y int, center float32, bounded bool) float32 {
	if f.InBounds(x, y) {
		return f.Scalar(x, y)
	}
	if bounded {
		return center
	}
	return 0
}

func divergenceAt(vel *grid.Field, x, y int, bounded bool) float32 {
	l := velocityAt(vel, x-1, y, bounded)
	r := velocityAt(vel, x+1, y, bounded)
	b := velocityAt(vel, x, y-1, bounded)
	t := velocityAt(vel, x, y+1, bounded)
	return ((r.X - l.X) + (t.Y - b.Y)) * 0.5
}

// Divergence computes the central-difference divergence of vel into out.
// It is the same stencil the divergence pass uses, for diagnostics.
func Divergence(vel, out *grid.Field, bounded bool) {
	for y := 0; y < vel.Height(); y++ {
		for x := 0; x < vel.Width(); x++ {
			out.Set(x, y, grid.Vec2{X: divergenceAt(vel, x, y, bounded)})
		}
	}
}
