package trajectory

import (
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pthm-cable/stablefluid/components"
	"github.com/pthm-cable/stablefluid/grid"
)

const sample = `{
  "sample_dt": 0.5,
  "duration": 10,
  "bounds": {"min_x": 0, "min_y": 0, "max_x": 100, "max_y": 50},
  "agents": [
    {"id": 1, "keyframes": [{"t": 10, "x": 100, "y": 0}, {"t": 0, "x": 0, "y": 0}, {"t": 0, "x": 0, "y": 0}]},
    {"id": 2, "keyframes": [{"t": 4, "x": 50, "y": 25}, {"t": 6, "x": 60, "y": 25}]}
  ]
}`

func mustLoad(t *testing.T, s string) *Collection {
	t.Helper()
	c, err := Load(strings.NewReader(s))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return c
}

func TestLoadDedupesAndSorts(t *testing.T) {
	c := mustLoad(t, sample)
	if len(c.Agents) != 2 {
		t.Fatalf("expected 2 agents, got %d", len(c.Agents))
	}
	k := c.Agents[0].Keyframes
	if len(k) != 2 {
		t.Fatalf("expected duplicates removed, got %d keyframes", len(k))
	}
	for i := 1; i < len(k); i++ {
		if !(k[i].T > k[i-1].T) {
			t.Errorf("keyframes not strictly increasing at %d: %v", i, k)
		}
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"duplicate id", `{"duration": 1, "agents": [{"id": 1, "keyframes": [{"t": 0, "x": 0, "y": 0}, {"t": 1, "x": 1, "y": 1}]}, {"id": 1, "keyframes": [{"t": 0}]}]}`},
		{"no keyframes", `{"duration": 1, "bounds": {"max_x": 1, "max_y": 1}, "agents": [{"id": 1, "keyframes": []}]}`},
		{"negative duration", `{"duration": -2, "bounds": {"max_x": 1, "max_y": 1}, "agents": []}`},
		{"degenerate bounds", `{"duration": 1, "bounds": {"min_x": 5, "max_x": 5, "max_y": 1}, "agents": []}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(strings.NewReader(tc.json)); !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}

	if _, err := Load(strings.NewReader("{not json")); err == nil {
		t.Error("expected decode error")
	}
}

func TestLoadDerivesMetadata(t *testing.T) {
	c := mustLoad(t, `{"agents": [{"id": 7, "keyframes": [{"t": 0, "x": -5, "y": 2}, {"t": 8, "x": 5, "y": 12}]}]}`)
	if c.Duration != 8 {
		t.Errorf("expected duration derived from keyframes, got %g", c.Duration)
	}
	want := Bounds{MinX: -5, MinY: 2, MaxX: 5, MaxY: 12}
	if c.Bounds != want {
		t.Errorf("expected derived bounds %+v, got %+v", want, c.Bounds)
	}
}

func TestSaveLoadFile(t *testing.T) {
	c := Demo(3, 4, 0.25)
	path, err := Save(c, t.TempDir(), "demo.json")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(got.Agents) != 3 || got.Duration != 4 {
		t.Errorf("round trip lost data: %d agents, duration %g", len(got.Agents), got.Duration)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func stateByID(d *Driver, id int) State {
	for _, s := range d.Snapshot(nil) {
		if s.ID == id {
			return s
		}
	}
	return State{ID: -1}
}

func TestDriverInterpolatesAndMaps(t *testing.T) {
	d := NewDriver(mustLoad(t, sample), 1)

	d.Advance(5)
	if d.LoopTime() != 5 {
		t.Fatalf("expected loop time 5, got %g", d.LoopTime())
	}
	s := stateByID(d, 1)
	if !s.Active {
		t.Fatal("agent 1 should be active at t=5")
	}
	// World (50, 0) in [0,100]x[0,50] maps to NDC (0, -1).
	if s.Pos != (grid.Vec2{X: 0, Y: -1}) {
		t.Errorf("unexpected NDC position %v", s.Pos)
	}
	if s.Prev != s.Pos {
		t.Errorf("first activation should reset prev, got prev %v pos %v", s.Prev, s.Pos)
	}
	if !stateByID(d, 2).Active {
		t.Error("agent 2 should be active at t=5")
	}

	d.Advance(1)
	s = stateByID(d, 1)
	if s.Prev != (grid.Vec2{X: 0, Y: -1}) {
		t.Errorf("expected prev shifted from last position, got %v", s.Prev)
	}
	if math.Abs(float64(s.Pos.X-0.2)) > 1e-6 {
		t.Errorf("expected x=0.2 at t=6, got %v", s.Pos)
	}
}

func TestDriverDataGapDeactivates(t *testing.T) {
	d := NewDriver(mustLoad(t, sample), 1)
	d.Advance(5)
	if d.Active() != 2 {
		t.Fatalf("expected 2 active agents, got %d", d.Active())
	}

	// t=7 is past agent 2's last keyframe.
	d.Advance(2)
	s := stateByID(d, 2)
	if s.Active {
		t.Fatal("agent 2 should be inactive outside its keyframe span")
	}
	if s.Prev != s.Pos {
		t.Errorf("inactive agent must hold prev = pos, got %v vs %v", s.Prev, s.Pos)
	}
	if d.Active() != 1 {
		t.Errorf("expected 1 active agent, got %d", d.Active())
	}

	srcs := d.Sources(nil, 1, 3, 64, 32)
	if len(srcs) != 1 {
		t.Fatalf("expected one source from the moving agent, got %d", len(srcs))
	}
}

func TestDriverOutOfBoundsDeactivates(t *testing.T) {
	c := &Collection{
		Duration: 4,
		Bounds:   Bounds{MaxX: 10, MaxY: 10},
		Agents: []AgentTrack{{ID: 1, Keyframes: components.Keyframes{
			{T: 0, X: 5, Y: 5}, {T: 2, X: 15, Y: 5}, {T: 4, X: 5, Y: 5},
		}}},
	}
	d := NewDriver(c, 1)
	d.Advance(0.5)
	if !stateByID(d, 1).Active {
		t.Fatal("expected active inside bounds")
	}
	d.Advance(1.5)
	if stateByID(d, 1).Active {
		t.Fatal("expected inactive outside bounds")
	}
	if n := len(d.Sources(nil, 1, 3, 64, 64)); n != 0 {
		t.Errorf("inactive agent produced %d sources", n)
	}
	// Re-entering resets prev to the new position: no force spike.
	d.Advance(1.5)
	s := stateByID(d, 1)
	if !s.Active || s.Prev != s.Pos {
		t.Errorf("expected re-activation with prev = pos, got %+v", s)
	}
}

func TestDriverLoops(t *testing.T) {
	d := NewDriver(mustLoad(t, sample), 2)
	d.Advance(6) // 12 trajectory seconds
	if got := d.LoopTime(); math.Abs(got-2) > 1e-9 {
		t.Errorf("expected loop time 2, got %g", got)
	}
}

func TestDriverLoopWrapIsNotDisplacement(t *testing.T) {
	d := NewDriver(mustLoad(t, sample), 1)
	d.Advance(9.5)
	d.Advance(1) // wraps to t = 0.5
	s := stateByID(d, 1)
	if !s.Active || s.Prev != s.Pos {
		t.Errorf("expected no displacement across the loop seam, got %+v", s)
	}
	if src := d.Sources(nil, 1, 4, 64, 32); len(src) != 0 {
		t.Errorf("expected no sources across the seam, got %+v", src)
	}
}

func TestRebuildKeepsKeyframes(t *testing.T) {
	c := mustLoad(t, sample)
	before := append(components.Keyframes(nil), c.Agents[0].Keyframes...)
	d := NewDriver(c, 1)
	d.Advance(3)
	d.Rebuild(c)
	if d.Elapsed() != 0 || d.Active() != 0 {
		t.Errorf("rebuild should reset playback, elapsed %g active %d", d.Elapsed(), d.Active())
	}
	for i, k := range c.Agents[0].Keyframes {
		if k != before[i] {
			t.Fatalf("keyframe %d changed: %v vs %v", i, k, before[i])
		}
	}
	if n := len(d.Snapshot(nil)); n != 2 {
		t.Errorf("expected 2 agents after rebuild, got %d", n)
	}
}
