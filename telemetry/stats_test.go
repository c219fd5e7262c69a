package telemetry

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pthm-cable/stablefluid/config"
	"github.com/pthm-cable/stablefluid/fluid"
	"github.com/pthm-cable/stablefluid/grid"
)

func TestPercentile(t *testing.T) {
	tests := []struct {
		name   string
		sorted []float64
		p      float64
		want   float64
	}{
		{"empty slice", []float64{}, 0.5, 0},
		{"single element", []float64{5.0}, 0.5, 5.0},
		{"p0", []float64{1, 2, 3, 4, 5}, 0.0, 1.0},
		{"p100", []float64{1, 2, 3, 4, 5}, 1.0, 5.0},
		{"p50 odd", []float64{1, 2, 3, 4, 5}, 0.5, 3.0},
		{"p50 even", []float64{1, 2, 3, 4}, 0.5, 2.5},
		{"p90", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.9, 9.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Percentile(tt.sorted, tt.p)
			if math.Abs(got-tt.want) > 0.001 {
				t.Errorf("Percentile(%v, %v) = %v, want %v", tt.sorted, tt.p, got, tt.want)
			}
		})
	}
}

func TestComputeSpeedStats(t *testing.T) {
	mean, p50, p90 := ComputeSpeedStats([]float64{10, 1, 9, 2, 8, 3, 7, 4, 6, 5})
	if math.Abs(mean-5.5) > 1e-9 || math.Abs(p50-5.5) > 1e-9 || math.Abs(p90-9.1) > 1e-9 {
		t.Errorf("got mean %v p50 %v p90 %v", mean, p50, p90)
	}
	if m, _, _ := ComputeSpeedStats(nil); m != 0 {
		t.Errorf("empty input: mean %v", m)
	}
}

func TestCollectorWindow(t *testing.T) {
	c := NewCollector(3, 0.5)
	if c.ShouldFlush() {
		t.Fatal("empty window should not flush")
	}
	for f := uint64(1); f <= 3; f++ {
		c.Record(FrameStats{
			Frame:         f,
			DivBefore:     2,
			DivAfter:      0.5,
			MaxSpeed:      float32(f),
			KineticEnergy: float32(f),
			Agents:        int(f),
			Sources:       1,
		})
	}
	if !c.ShouldFlush() {
		t.Fatal("expected flush after 3 frames")
	}

	w := c.Flush()
	if w.WindowStart != 0 || w.WindowEnd != 3 {
		t.Errorf("window [%d, %d], want [0, 3]", w.WindowStart, w.WindowEnd)
	}
	if w.SimTimeSec != 1.5 {
		t.Errorf("sim time %v, want 1.5", w.SimTimeSec)
	}
	if w.DivRatio != 0.25 {
		t.Errorf("div ratio %v, want 0.25", w.DivRatio)
	}
	if w.EnergyMean != 2 || w.EnergyEnd != 3 || w.Agents != 3 || w.Sources != 3 {
		t.Errorf("unexpected window %+v", w)
	}
	if c.ShouldFlush() {
		t.Error("flush should reset the window")
	}
	if (c.Flush() != WindowStats{}) {
		t.Error("empty flush should return the zero value")
	}
}

func TestSamplerTracksProjection(t *testing.T) {
	p := fluid.DefaultParams()
	p.PoissonIterations = 40
	p.CursorSize = 20
	sim, err := fluid.New(p, 128, 128, fluid.Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sim.Close()

	src := sim.Source(grid.Vec2{}, grid.Vec2{X: 0.05}, p.ForceGain)
	if err := sim.Tick([]fluid.Source{src}); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	var s Sampler
	fs, err := s.Sample(sim, 2)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if fs.Frame != 1 || fs.Sources != 1 || fs.Agents != 2 {
		t.Errorf("unexpected counters %+v", fs)
	}
	if fs.MaxSpeed <= 0 || fs.KineticEnergy <= 0 {
		t.Errorf("expected motion after a push, got %+v", fs)
	}
	if fs.DivAfter >= fs.DivBefore {
		t.Errorf("projection did not reduce divergence: before %g after %g", fs.DivBefore, fs.DivAfter)
	}

	sim.RequestResize(64, 64)
	if err := sim.Tick(nil); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if _, err := s.Sample(sim, 0); err != nil {
		t.Fatalf("Sample after resize: %v", err)
	}
	if w, _ := sim.Size(); s.scratch.Width() != w {
		t.Errorf("scratch not resized: %d vs %d", s.scratch.Width(), w)
	}
}

func TestOutputManager(t *testing.T) {
	if om, err := NewOutputManager(""); om != nil || err != nil {
		t.Fatalf("empty dir should disable output, got %v, %v", om, err)
	}
	var disabled *OutputManager
	if err := disabled.WriteStats(WindowStats{}); err != nil {
		t.Errorf("nil manager: %v", err)
	}

	dir := filepath.Join(t.TempDir(), "run")
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatalf("NewOutputManager: %v", err)
	}
	for i := uint64(1); i <= 2; i++ {
		if err := om.WriteStats(WindowStats{WindowEnd: i * 60, DivRatio: 0.1}); err != nil {
			t.Fatal(err)
		}
		if err := om.WritePerf(PerfStats{PhasePct: map[string]float64{}}, i*60); err != nil {
			t.Fatal(err)
		}
	}
	if err := om.WriteConfig(config.Defaults()); err != nil {
		t.Fatal(err)
	}
	if err := om.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "stats.csv"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines:\n%s", len(lines), data)
	}
	if !strings.HasPrefix(lines[0], "window_end,sim_time,div_before_mean") {
		t.Errorf("unexpected header %q", lines[0])
	}
	if !strings.HasPrefix(lines[2], "120,") {
		t.Errorf("unexpected second row %q", lines[2])
	}
	if _, err := config.Load(filepath.Join(dir, "config.yaml")); err != nil {
		t.Errorf("config snapshot does not load: %v", err)
	}
}
