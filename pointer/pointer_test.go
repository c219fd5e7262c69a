package pointer

import (
	"math"
	"testing"
	"time"

	"github.com/pthm-cable/stablefluid/grid"
)

func TestToNDC(t *testing.T) {
	tr := NewTracker(200, 100, time.Second, 1)
	tests := []struct {
		x, y float32
		want grid.Vec2
	}{
		{0, 0, grid.Vec2{X: -1, Y: 1}},
		{200, 100, grid.Vec2{X: 1, Y: -1}},
		{100, 50, grid.Vec2{X: 0, Y: 0}},
	}
	for _, tc := range tests {
		if got := tr.ToNDC(tc.x, tc.y); got != tc.want {
			t.Errorf("ToNDC(%g, %g) = %v, want %v", tc.x, tc.y, got, tc.want)
		}
	}
}

func TestMoveProducesDisplacement(t *testing.T) {
	tr := NewTracker(100, 100, time.Second, 1)
	tr.Move(50, 50)
	if _, _, ok := tr.Sample(); ok {
		t.Fatal("first position should not produce force")
	}
	tr.Move(60, 40)
	center, force, ok := tr.Sample()
	if !ok {
		t.Fatal("expected force after movement")
	}
	if center.Sub(grid.Vec2{X: 0.2, Y: 0.2}).Len() > 1e-6 {
		t.Errorf("unexpected center %v", center)
	}
	if math.Abs(float64(force.X-0.2)) > 1e-6 || math.Abs(float64(force.Y-0.2)) > 1e-6 {
		t.Errorf("unexpected force %v", force)
	}
}

func TestIdleDecay(t *testing.T) {
	tr := NewTracker(100, 100, 100*time.Millisecond, 20)
	tr.Move(50, 50)
	tr.Move(70, 50)
	_, f0, _ := tr.Sample()

	tr.Update(50 * time.Millisecond)
	if _, f, _ := tr.Sample(); f != f0 {
		t.Errorf("force decayed before idle timeout: %v", f)
	}

	tr.Update(100 * time.Millisecond)
	_, f1, ok := tr.Sample()
	if !ok || !(f1.Len() < f0.Len()) {
		t.Errorf("expected decayed force, got %v (was %v)", f1, f0)
	}

	for i := 0; i < 200; i++ {
		tr.Update(50 * time.Millisecond)
	}
	if _, f, ok := tr.Sample(); ok || f != (grid.Vec2{}) {
		t.Errorf("expected force to reach zero, got %v", f)
	}

	// Movement resets the idle clock.
	tr.Move(80, 50)
	tr.Update(50 * time.Millisecond)
	if _, _, ok := tr.Sample(); !ok {
		t.Error("expected force after new movement")
	}
}

func TestResizeReanchors(t *testing.T) {
	tr := NewTracker(100, 100, time.Second, 1)
	tr.Move(10, 10)
	tr.Move(20, 10)
	tr.Resize(400, 400)
	tr.Move(200, 200)
	if _, _, ok := tr.Sample(); ok {
		t.Error("resize should not produce a jump force")
	}
}
