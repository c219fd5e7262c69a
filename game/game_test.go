package game

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pthm-cable/stablefluid/config"
	"github.com/pthm-cable/stablefluid/fluid"
	"github.com/pthm-cable/stablefluid/grid"
)

func testConfig(agents int) *config.Config {
	cfg := config.Defaults()
	cfg.Screen.Width = 96
	cfg.Screen.Height = 64
	cfg.Telemetry.WindowTicks = 5
	cfg.Telemetry.LogInterval = 0
	cfg.Agents.DemoCount = agents
	return cfg
}

func newTestGame(t *testing.T, opts Options) *Game {
	t.Helper()
	g, err := NewGame(opts)
	if err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	return g
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return len(strings.Split(strings.TrimSpace(string(data)), "\n"))
}

func TestHeadlessRunWritesOutput(t *testing.T) {
	dir := t.TempDir()
	g := newTestGame(t, Options{Config: testConfig(3), OutputDir: dir})

	s := &Scheduler{Game: g, MaxTicks: 12}
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if g.Frame() != 12 {
		t.Errorf("expected 12 frames, got %d", g.Frame())
	}
	if g.Stats().Agents != 3 {
		t.Errorf("expected 3 active agents, got %d", g.Stats().Agents)
	}
	if err := g.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Two full windows plus the partial window flushed on close.
	if n := countLines(t, filepath.Join(dir, "stats.csv")); n != 4 {
		t.Errorf("stats.csv: expected 4 lines, got %d", n)
	}
	if n := countLines(t, filepath.Join(dir, "perf.csv")); n != 3 {
		t.Errorf("perf.csv: expected 3 lines, got %d", n)
	}
	if _, err := os.Stat(filepath.Join(dir, "config.yaml")); err != nil {
		t.Errorf("missing config snapshot: %v", err)
	}
}

func TestParamChangeAppliedAtFrameBoundary(t *testing.T) {
	cfg := testConfig(0)
	g := newTestGame(t, Options{Config: cfg})
	defer g.Close()

	if err := g.Surface().Set("iterations_poisson", 5); err != nil {
		t.Fatal(err)
	}
	if g.Sim().Params().PoissonIterations != 32 {
		t.Fatal("change applied before the frame boundary")
	}
	if err := g.Step(10 * time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if g.Sim().Params().PoissonIterations != 5 {
		t.Errorf("expected 5 iterations, got %d", g.Sim().Params().PoissonIterations)
	}
	if cfg.Solver.IterationsPoisson != 5 {
		t.Errorf("config not updated: %d", cfg.Solver.IterationsPoisson)
	}
}

func TestResizeTakesEffectNextFrame(t *testing.T) {
	g := newTestGame(t, Options{Config: testConfig(2)})
	defer g.Close()

	g.Resize(128, 128)
	if w, h := g.Sim().Size(); w != 48 || h != 32 {
		t.Fatalf("grid resized early: %dx%d", w, h)
	}
	params := g.Sim().Params()
	if err := g.Step(10 * time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if w, h := g.Sim().Size(); w != 64 || h != 64 {
		t.Errorf("expected 64x64 grid, got %dx%d", w, h)
	}
	if g.Sim().Params() != params {
		t.Error("resize changed parameters")
	}
}

func TestPointerDrivesFlow(t *testing.T) {
	g := newTestGame(t, Options{Config: testConfig(0)})
	defer g.Close()

	g.Pointer().MoveNDC(grid.Vec2{})
	g.Pointer().MoveNDC(grid.Vec2{X: 0.05})
	if err := g.Step(10 * time.Millisecond); err != nil {
		t.Fatal(err)
	}
	st := g.Stats()
	if st.Sources != 1 || st.MaxSpeed <= 0 {
		t.Errorf("expected the pointer to push the fluid, got %+v", st)
	}
}

func TestPointerUsesParamsChangedThisFrame(t *testing.T) {
	touched := 0
	g := newTestGame(t, Options{
		Config: testConfig(0),
		PassHook: func(pass string, out *grid.Field) {
			if pass != fluid.PassForce {
				return
			}
			touched = 0
			for y := 0; y < out.Height(); y++ {
				for x := 0; x < out.Width(); x++ {
					if out.At(x, y) != (grid.Vec2{}) {
						touched++
					}
				}
			}
		},
	})
	defer g.Close()

	// A 4px cursor at resolution 0.5 is a 2-cell stamp; the default covers
	// the whole 48x32 grid.
	if err := g.Surface().Set("cursor_size", 4); err != nil {
		t.Fatal(err)
	}
	g.Pointer().MoveNDC(grid.Vec2{})
	g.Pointer().MoveNDC(grid.Vec2{X: 0.05})
	if err := g.Step(10 * time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if g.Stats().Sources != 1 {
		t.Fatalf("expected one pointer source, got %d", g.Stats().Sources)
	}
	if touched == 0 || touched > 25 {
		t.Errorf("force stamp touched %d cells, want a 2-cell radius", touched)
	}
}

func TestPausedSkipsSolver(t *testing.T) {
	g := newTestGame(t, Options{Config: testConfig(0)})
	defer g.Close()

	g.SetPaused(true)
	if err := g.Step(10 * time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if g.Frame() != 0 {
		t.Errorf("paused game advanced to frame %d", g.Frame())
	}
}

func TestMissingTrajectoryIsFatal(t *testing.T) {
	_, err := NewGame(Options{
		Config:     testConfig(0),
		Trajectory: filepath.Join(t.TempDir(), "missing.json"),
	})
	if err == nil {
		t.Fatal("expected an error for a missing trajectory file")
	}
}

func TestSchedulerStopsOnCancel(t *testing.T) {
	g := newTestGame(t, Options{Config: testConfig(1)})
	defer g.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	s := &Scheduler{Game: g, Interval: time.Millisecond}
	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if g.Frame() == 0 {
		t.Error("expected some frames before cancellation")
	}
}

func TestWindowedPresentTiming(t *testing.T) {
	g := newTestGame(t, Options{Config: testConfig(0), Windowed: true})
	defer g.Close()

	for i := 0; i < 3; i++ {
		if err := g.Step(10 * time.Millisecond); err != nil {
			t.Fatal(err)
		}
		g.BeginPresent()
		time.Sleep(time.Millisecond)
		g.EndPresent()
	}
	if _, ok := g.Perf().Stats().PhaseAvg["present"]; !ok {
		t.Error("present phase not recorded")
	}
}
