package fluid

import (
	"math"

	"github.com/pthm-cable/stablefluid/grid"
)

// Source is a point force. Center is in grid-normalized coordinates
// ([0,1] per axis, y up), Force is in cells per second and Radius in cells.
type Source struct {
	Center grid.Vec2
	Force  grid.Vec2
	Radius float32
}

// SourceFromNDC builds a source from a position and a per-frame displacement
// in normalized device coordinates ([-1,1], y up). The displacement becomes
// a velocity of delta_uv × grid size × gain.
func SourceFromNDC(center, delta grid.Vec2, gain, radius float32, w, h int) Source {
	return Source{
		Center: grid.Vec2{X: (center.X + 1) * 0.5, Y: (center.Y + 1) * 0.5},
		Force: grid.Vec2{
			X: delta.X * 0.5 * float32(w) * gain,
			Y: delta.Y * 0.5 * float32(h) * gain,
		},
		Radius: radius,
	}
}

// Valid reports whether the source has finite values and a positive radius.
func (s Source) Valid() bool {
	return s.Center.Finite() && s.Force.Finite() && s.Radius > 0 &&
		!math.IsInf(float64(s.Radius), 0)
}

// cellCenter returns the source center in cell units.
func (s Source) cellCenter(w, h int) grid.Vec2 {
	return grid.Vec2{X: s.Center.X * float32(w), Y: s.Center.Y * float32(h)}
}

// nearEdge reports whether the source center lies within radius+margin
// cells of any boundary of a w×h grid.
func (s Source) nearEdge(w, h int, margin float32) bool {
	c := s.cellCenter(w, h)
	reach := s.Radius + margin
	return c.X < reach || c.Y < reach ||
		float32(w)-c.X < reach || float32(h)-c.Y < reach
}

// falloffWeight evaluates the policy at q = d/r in [0, 1].
func falloffWeight(f Falloff, q float32) float32 {
	if q >= 1 {
		return 0
	}
	if q < 0 {
		q = 0
	}
	switch f {
	case Gaussian:
		return float32(math.Exp(float64(-4 * q * q)))
	case Smooth:
		s := q * q * (3 - 2*q)
		return 1 - s
	default:
		k := 1 - q
		return k * k
	}
}
