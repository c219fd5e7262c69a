package viewport

import (
	"math"
	"testing"

	"github.com/pthm-cable/stablefluid/grid"
)

func near(a, b float32) bool { return math.Abs(float64(a-b)) < 1e-4 }

func TestNew(t *testing.T) {
	v := New(1280, 720)
	if v.X != 0.5 || v.Y != 0.5 {
		t.Errorf("expected view centered on domain, got (%f, %f)", v.X, v.Y)
	}
	if v.Zoom != 1.0 {
		t.Errorf("expected zoom 1.0, got %f", v.Zoom)
	}
}

func TestScreenToNDCCorners(t *testing.T) {
	v := New(1280, 720)
	tests := []struct {
		sx, sy float32
		want   grid.Vec2
	}{
		{640, 360, grid.Vec2{X: 0, Y: 0}},
		{0, 0, grid.Vec2{X: -1, Y: 1}},
		{1280, 720, grid.Vec2{X: 1, Y: -1}},
	}
	for _, tc := range tests {
		got := v.ScreenToNDC(tc.sx, tc.sy)
		if !near(got.X, tc.want.X) || !near(got.Y, tc.want.Y) {
			t.Errorf("ScreenToNDC(%g, %g) = %v, want %v", tc.sx, tc.sy, got, tc.want)
		}
	}
}

func TestScreenRoundtrip(t *testing.T) {
	v := New(1280, 720)
	v.SetZoom(2)
	v.Pan(100, -50)

	testCases := []struct{ sx, sy float32 }{
		{640, 360},
		{100, 100},
		{1200, 600},
	}
	for _, tc := range testCases {
		p := v.ScreenToNDC(tc.sx, tc.sy)
		sx, sy := v.NDCToScreen(p)
		if !near(sx, tc.sx) || !near(sy, tc.sy) {
			t.Errorf("roundtrip failed: (%f,%f) -> %v -> (%f,%f)", tc.sx, tc.sy, p, sx, sy)
		}
	}
}

func TestZoomClampsCenter(t *testing.T) {
	v := New(800, 800)
	v.SetZoom(100)
	if v.Zoom != v.MaxZoom {
		t.Errorf("expected zoom clamped to %f, got %f", v.MaxZoom, v.Zoom)
	}
	v.Pan(1e6, 0)
	minX, _, maxX, _ := v.VisibleBounds()
	if maxX > 1+1e-6 || minX < -1e-6 {
		t.Errorf("view left the domain: [%f, %f]", minX, maxX)
	}
	v.SetZoom(0.1)
	if v.Zoom != 1 || v.X != 0.5 {
		t.Errorf("expected full view at min zoom, got zoom %f x %f", v.Zoom, v.X)
	}
}

func TestNDCToCell(t *testing.T) {
	c := NDCToCell(grid.Vec2{X: 0, Y: -1}, 64, 32)
	if c != (grid.Vec2{X: 32, Y: 0}) {
		t.Errorf("unexpected cell position %v", c)
	}
}

func TestResize(t *testing.T) {
	v := New(1280, 720)
	if v.Resize(1280, 720) {
		t.Error("same size should report no change")
	}
	if !v.Resize(1920, 1080) {
		t.Error("new size should report change")
	}
	if w, h := v.CellSize(960, 540); !near(w, 2) || !near(h, 2) {
		t.Errorf("expected 2px cells, got %fx%f", w, h)
	}
}
