// Package pointer turns pointer positions into a force sample: the
// displacement between consecutive positions, decayed to zero once the
// pointer stops moving.
package pointer

import (
	"math"
	"time"

	"github.com/pthm-cable/stablefluid/grid"
)

// minForce is the displacement below which a decayed force snaps to zero.
const minForce = 1e-6

// Tracker converts screen positions (pixels, y down) to normalized device
// coordinates (y up) and keeps the latest displacement.
type Tracker struct {
	viewW, viewH float32

	idleTimeout time.Duration
	decayRate   float64

	pos    grid.Vec2
	force  grid.Vec2
	idle   time.Duration
	placed bool
}

// NewTracker creates a tracker for a w×h viewport. After idleTimeout
// without movement the force decays as exp(-decayRate·t).
func NewTracker(w, h int, idleTimeout time.Duration, decayRate float64) *Tracker {
	t := &Tracker{idleTimeout: idleTimeout, decayRate: decayRate}
	t.Resize(w, h)
	return t
}

// Resize updates the viewport. The next Move re-anchors the position so a
// resize never produces a jump.
func (t *Tracker) Resize(w, h int) {
	t.viewW = float32(max(w, 1))
	t.viewH = float32(max(h, 1))
	t.placed = false
	t.force = grid.Vec2{}
}

// ToNDC maps a screen position to normalized device coordinates.
func (t *Tracker) ToNDC(x, y float32) grid.Vec2 {
	return grid.Vec2{
		X: x/t.viewW*2 - 1,
		Y: 1 - y/t.viewH*2,
	}
}

// Move records the pointer at screen position (x, y). Non-finite positions
// are ignored.
func (t *Tracker) Move(x, y float32) {
	t.MoveNDC(t.ToNDC(x, y))
}

// MoveNDC records the pointer at an already mapped NDC position.
func (t *Tracker) MoveNDC(p grid.Vec2) {
	if !p.Finite() {
		return
	}
	if !t.placed {
		t.pos = p
		t.placed = true
		return
	}
	if p == t.pos {
		return
	}
	t.force = p.Sub(t.pos)
	t.pos = p
	t.idle = 0
}

// Leave forgets the position, e.g. when the pointer exits the window.
func (t *Tracker) Leave() {
	t.placed = false
	t.force = grid.Vec2{}
}

// Update advances the idle clock by dt and decays the force once idle.
func (t *Tracker) Update(dt time.Duration) {
	if dt <= 0 {
		return
	}
	t.idle += dt
	if t.idle <= t.idleTimeout {
		return
	}
	k := float32(math.Exp(-t.decayRate * dt.Seconds()))
	t.force = t.force.Scale(k)
	if t.force.Len() < minForce {
		t.force = grid.Vec2{}
	}
}

// Sample returns the current center and displacement in NDC. ok is false
// when there is no force to apply.
func (t *Tracker) Sample() (center, force grid.Vec2, ok bool) {
	if !t.placed || t.force == (grid.Vec2{}) {
		return t.pos, grid.Vec2{}, false
	}
	return t.pos, t.force, true
}
