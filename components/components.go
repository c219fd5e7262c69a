// Package components defines ECS components for trajectory agents.
package components

import (
	"sort"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/stablefluid/grid"
)

// Keyframe is a recorded world position at time T (seconds).
type Keyframe struct {
	T float64 `json:"t"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Keyframes is a time-ordered keyframe sequence with strictly increasing T.
type Keyframes []Keyframe

// minSpan is the smallest interval the interpolation divides by.
const minSpan = 1e-9

// Span returns the first and last keyframe times.
func (k Keyframes) Span() (start, end float64) {
	if len(k) == 0 {
		return 0, 0
	}
	return k[0].T, k[len(k)-1].T
}

// Covers reports whether t lies within the recorded interval.
func (k Keyframes) Covers(t float64) bool {
	if len(k) == 0 {
		return false
	}
	start, end := k.Span()
	return t >= start && t <= end
}

// Sample linearly interpolates the position at t. Times before the first
// or after the last keyframe clamp to that endpoint.
func (k Keyframes) Sample(t float64) r2.Vec {
	n := len(k)
	if n == 0 {
		return r2.Vec{}
	}
	if t <= k[0].T {
		return r2.Vec{X: k[0].X, Y: k[0].Y}
	}
	if t >= k[n-1].T {
		return r2.Vec{X: k[n-1].X, Y: k[n-1].Y}
	}

	// First keyframe strictly after t; its predecessor brackets t.
	i := sort.Search(n, func(i int) bool { return k[i].T > t })
	a, b := k[i-1], k[i]
	u := (t - a.T) / max(b.T-a.T, minSpan)
	pa := r2.Vec{X: a.X, Y: a.Y}
	pb := r2.Vec{X: b.X, Y: b.Y}
	return r2.Add(pa, r2.Scale(u, r2.Sub(pb, pa)))
}

// Agent identifies a trajectory agent and its activity state.
type Agent struct {
	ID     int
	Active bool
}

// Track holds an agent's keyframes. It is read-only after load.
type Track struct {
	Keys Keyframes
}

// Motion is the agent's current and previous position in normalized
// device coordinates.
type Motion struct {
	Pos  grid.Vec2
	Prev grid.Vec2
}

// Delta returns the displacement since the previous tick.
func (m Motion) Delta() grid.Vec2 { return m.Pos.Sub(m.Prev) }
