package config

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pthm-cable/stablefluid/fluid"
)

func TestDefaultsMatchSolverDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Derived.Params != fluid.DefaultParams() {
		t.Errorf("embedded defaults differ from solver defaults:\n%+v\n%+v",
			cfg.Derived.Params, fluid.DefaultParams())
	}
	if cfg.Derived.DT32 != 0.014 {
		t.Errorf("expected dt 0.014, got %g", cfg.Derived.DT32)
	}
}

func TestLoadMergesUserFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "user.yaml")
	data := "solver:\n  iterations_poisson: 8\n  is_bounce: true\n  falloff: gaussian\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	p := cfg.Derived.Params
	if p.PoissonIterations != 8 || !p.Bounded || p.Falloff != fluid.Gaussian {
		t.Errorf("user values not applied: %+v", p)
	}
	if p.ViscousIterations != 32 || p.ForceGain != 20 {
		t.Errorf("defaults lost during merge: %+v", p)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	tests := map[string]string{
		"falloff":    "solver:\n  falloff: square\n",
		"iterations": "solver:\n  iterations_viscous: 0\n",
		"backend":    "dispatch:\n  backend: gpu\n",
		"screen":     "screen:\n  width: 0\n",
		"dt_inf":     "solver:\n  dt: .inf\n",
		"dt_nan":     "solver:\n  dt: .nan\n",
		"viscous":    "solver:\n  viscous: .inf\n  is_viscous: true\n",
		"force":      "solver:\n  mouse_force: -.inf\n",
	}
	for name, body := range tests {
		path := filepath.Join(dir, name+".yaml")
		if err := os.WriteFile(path, []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	cfg := Defaults()
	p := cfg.Derived.Params
	p.Viscosity = 12
	p.Falloff = fluid.Smooth
	cfg.SetParams(p)

	path := filepath.Join(t.TempDir(), "snapshot.yaml")
	if err := cfg.WriteYAML(path); err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Derived.Params != p {
		t.Errorf("snapshot did not round trip:\n%+v\n%+v", got.Derived.Params, p)
	}
}

func newTestSurface() (*Surface, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	return NewSurface(fluid.DefaultParams(), logger), &buf
}

func TestSurfaceSetAndGet(t *testing.T) {
	s, _ := newTestSurface()
	if err := s.Set("iterations_poisson", 10); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set("isBounce", "true"); err != nil {
		t.Fatalf("Set bool string: %v", err)
	}
	if err := s.Set("falloff", "smooth"); err != nil {
		t.Fatalf("Set falloff: %v", err)
	}
	if err := s.Set("dt", float32(0.02)); err != nil {
		t.Fatalf("Set float32: %v", err)
	}
	if err := s.Set("iterations_viscous", "12"); err != nil {
		t.Fatalf("Set integral string: %v", err)
	}
	if err := s.Set("iterations_viscous", 14.0); err != nil {
		t.Fatalf("Set integral float: %v", err)
	}

	p := s.Params()
	if p.PoissonIterations != 10 || p.ViscousIterations != 14 || !p.Bounded ||
		p.Falloff != fluid.Smooth || p.DT != 0.02 {
		t.Errorf("unexpected params %+v", p)
	}
	if v, ok := s.Get("iterations_poisson"); !ok || v != 10 {
		t.Errorf("Get returned %g, %v", v, ok)
	}
	if !s.GetBool("isBounce") {
		t.Error("GetBool(isBounce) = false")
	}
}

func TestSurfaceWarnings(t *testing.T) {
	s, logs := newTestSurface()
	before := s.Params()

	cases := []struct {
		name  string
		value any
	}{
		{"no_such_param", 1},
		{"iterations_poisson", 0},
		{"resolution", 4.0},
		{"dt", "fast"},
		{"falloff", "square"},
		{"mouse_force", []int{1}},
		{"iterations_poisson", 3.7},
		{"iterations_viscous", "12.5"},
		{"falloff", 1.5},
	}
	for _, tc := range cases {
		err := s.Set(tc.name, tc.value)
		var w *Warning
		if !errors.As(err, &w) {
			t.Errorf("Set(%s, %v): expected *Warning, got %v", tc.name, tc.value, err)
			continue
		}
		if w.Name != tc.name {
			t.Errorf("warning names %q, want %q", w.Name, tc.name)
		}
	}
	if s.Params() != before {
		t.Error("rejected values changed the parameters")
	}
	if n := strings.Count(logs.String(), "parameter rejected"); n != len(cases) {
		t.Errorf("expected %d warnings logged, got %d", len(cases), n)
	}
	select {
	case p := <-s.Changes():
		t.Errorf("rejected values published a change: %+v", p)
	default:
	}
}

func TestSurfaceLatestWins(t *testing.T) {
	s, _ := newTestSurface()
	for i := 2; i <= 5; i++ {
		if err := s.Set("iterations_viscous", i); err != nil {
			t.Fatal(err)
		}
	}
	select {
	case p := <-s.Changes():
		if p.ViscousIterations != 5 {
			t.Errorf("expected latest snapshot (5), got %d", p.ViscousIterations)
		}
	default:
		t.Fatal("expected a change")
	}
	select {
	case <-s.Changes():
		t.Error("expected a single pending change")
	default:
	}

	// Setting the current value publishes nothing.
	if err := s.Set("iterations_viscous", 5); err != nil {
		t.Fatal(err)
	}
	select {
	case <-s.Changes():
		t.Error("unchanged value published a change")
	default:
	}
}

func TestNamesCoverEveryParameter(t *testing.T) {
	s, _ := newTestSurface()
	for _, n := range Names() {
		if _, ok := s.Get(n); !ok {
			t.Errorf("Get(%q) failed", n)
		}
	}
	if len(Names()) != 13 {
		t.Errorf("expected 13 parameters, got %d", len(Names()))
	}
}
