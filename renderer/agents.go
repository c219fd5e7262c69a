package renderer

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/stablefluid/grid"
	"github.com/pthm-cable/stablefluid/trajectory"
	"github.com/pthm-cable/stablefluid/viewport"
)

var (
	agentColor   = rl.Color{R: 240, G: 240, B: 240, A: 220}
	idleColor    = rl.Color{R: 120, G: 120, B: 120, A: 120}
	cursorColor  = rl.Color{R: 255, G: 255, B: 255, A: 90}
	markerRadius = float32(4)
)

// DrawAgents draws a marker per agent and a short tail towards its previous
// position. Inactive agents are drawn dimmed at their last position.
func DrawAgents(states []trajectory.State, vp *viewport.Viewport) {
	for _, s := range states {
		x, y := vp.NDCToScreen(s.Pos)
		pos := rl.Vector2{X: x, Y: y}
		if !s.Active {
			rl.DrawCircleV(pos, markerRadius*0.75, idleColor)
			continue
		}
		px, py := vp.NDCToScreen(s.Prev)
		rl.DrawLineEx(rl.Vector2{X: px, Y: py}, pos, 2, agentColor)
		rl.DrawCircleV(pos, markerRadius, agentColor)
	}
}

// DrawCursor outlines the force radius around the pointer. radiusCells is
// converted to pixels using the on-screen cell size of a w×h grid.
func DrawCursor(center grid.Vec2, radiusCells float32, w, h int, vp *viewport.Viewport) {
	x, y := vp.NDCToScreen(center)
	cw, _ := vp.CellSize(w, h)
	rl.DrawCircleLines(int32(x), int32(y), radiusCells*cw, cursorColor)
}
