// Package viewport maps between screen pixels, normalized device
// coordinates and grid cells, with pan and zoom for inspecting the field.
package viewport

import "github.com/pthm-cable/stablefluid/grid"

// Viewport is the window onto the simulation domain.
type Viewport struct {
	// Center of the view in domain coordinates ([0,1] per axis, y up).
	X, Y float32

	// Zoom level (1.0 shows the whole domain).
	Zoom float32

	// Screen dimensions in pixels.
	ScreenW, ScreenH float32

	MinZoom, MaxZoom float32
}

// New creates a viewport showing the whole domain.
func New(screenW, screenH float32) *Viewport {
	return &Viewport{
		X:       0.5,
		Y:       0.5,
		Zoom:    1.0,
		ScreenW: screenW,
		ScreenH: screenH,
		MinZoom: 1.0,
		MaxZoom: 8.0,
	}
}

// ScreenToUV converts a screen position (y down) to domain coordinates.
func (v *Viewport) ScreenToUV(sx, sy float32) grid.Vec2 {
	dx := (sx/v.ScreenW - 0.5) / v.Zoom
	dy := (0.5 - sy/v.ScreenH) / v.Zoom
	return grid.Vec2{X: v.X + dx, Y: v.Y + dy}
}

// UVToScreen converts domain coordinates to a screen position.
func (v *Viewport) UVToScreen(p grid.Vec2) (sx, sy float32) {
	sx = ((p.X-v.X)*v.Zoom + 0.5) * v.ScreenW
	sy = (0.5 - (p.Y-v.Y)*v.Zoom) * v.ScreenH
	return sx, sy
}

// ScreenToNDC converts a screen position to normalized device coordinates.
func (v *Viewport) ScreenToNDC(sx, sy float32) grid.Vec2 {
	return UVToNDC(v.ScreenToUV(sx, sy))
}

// NDCToScreen converts normalized device coordinates to a screen position.
func (v *Viewport) NDCToScreen(p grid.Vec2) (sx, sy float32) {
	return v.UVToScreen(NDCToUV(p))
}

// CellSize returns the on-screen size of one grid cell of a w×h grid.
func (v *Viewport) CellSize(w, h int) (cw, ch float32) {
	return v.ScreenW * v.Zoom / float32(w), v.ScreenH * v.Zoom / float32(h)
}

// IsVisible returns true if a circle at p (domain coordinates) with the
// given radius could be visible on screen.
func (v *Viewport) IsVisible(p grid.Vec2, radius float32) bool {
	halfW := 0.5/v.Zoom + radius
	halfH := 0.5/v.Zoom + radius
	return absf(p.X-v.X) <= halfW && absf(p.Y-v.Y) <= halfH
}

// VisibleBounds returns the domain rectangle on screen.
func (v *Viewport) VisibleBounds() (minX, minY, maxX, maxY float32) {
	half := 0.5 / v.Zoom
	return v.X - half, v.Y - half, v.X + half, v.Y + half
}

// Resize updates the screen dimensions. It returns false when nothing
// changed.
func (v *Viewport) Resize(screenW, screenH float32) bool {
	if screenW == v.ScreenW && screenH == v.ScreenH {
		return false
	}
	v.ScreenW = screenW
	v.ScreenH = screenH
	return true
}

// Pan moves the view by a delta in screen pixels, keeping it inside the
// domain.
func (v *Viewport) Pan(dx, dy float32) {
	v.X += dx / (v.ScreenW * v.Zoom)
	v.Y -= dy / (v.ScreenH * v.Zoom)
	v.clampCenter()
}

// SetZoom sets the zoom level, clamped to min/max.
func (v *Viewport) SetZoom(zoom float32) {
	v.Zoom = clamp(zoom, v.MinZoom, v.MaxZoom)
	v.clampCenter()
}

// ZoomBy multiplies the current zoom by the given factor.
func (v *Viewport) ZoomBy(factor float32) {
	v.SetZoom(v.Zoom * factor)
}

// Reset shows the whole domain again.
func (v *Viewport) Reset() {
	v.X, v.Y = 0.5, 0.5
	v.Zoom = 1.0
}

func (v *Viewport) clampCenter() {
	half := 0.5 / v.Zoom
	v.X = clamp(v.X, half, 1-half)
	v.Y = clamp(v.Y, half, 1-half)
}

// UVToNDC maps [0,1] domain coordinates to [-1,1].
func UVToNDC(p grid.Vec2) grid.Vec2 {
	return grid.Vec2{X: p.X*2 - 1, Y: p.Y*2 - 1}
}

// NDCToUV maps [-1,1] to [0,1] domain coordinates.
func NDCToUV(p grid.Vec2) grid.Vec2 {
	return grid.Vec2{X: (p.X + 1) * 0.5, Y: (p.Y + 1) * 0.5}
}

// NDCToCell maps normalized device coordinates to cell units of a w×h grid.
func NDCToCell(p grid.Vec2, w, h int) grid.Vec2 {
	uv := NDCToUV(p)
	return grid.Vec2{X: uv.X * float32(w), Y: uv.Y * float32(h)}
}

// absf returns the absolute value of a float32.
func absf(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

// clamp restricts a value to a range.
func clamp(x, min, max float32) float32 {
	if x < min {
		return min
	}
	if x > max {
		return max
	}
	return x
}
