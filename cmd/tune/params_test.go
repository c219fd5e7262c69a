package main

import (
	"testing"

	"github.com/pthm-cable/stablefluid/config"
)

func TestNormalizeRoundTrip(t *testing.T) {
	pv := NewParamVector()
	def := pv.DefaultVector()
	back := pv.Denormalize(pv.Normalize(def))
	for i := range def {
		if d := back[i] - def[i]; d > 1e-9 || d < -1e-9 {
			t.Errorf("%s: got %g, want %g", pv.Specs[i].Name, back[i], def[i])
		}
	}
}

func TestClampRoundsIntegers(t *testing.T) {
	pv := NewParamVector()
	got := pv.Clamp([]float64{200, 7.6, -1})
	if got[0] != 96 || got[1] != 8 || got[2] != 0 {
		t.Errorf("Clamp = %v", got)
	}
}

func TestApplyToConfig(t *testing.T) {
	pv := NewParamVector()
	cfg := config.Defaults()
	if err := pv.ApplyToConfig(cfg, []float64{12.2, 40, 2.5}); err != nil {
		t.Fatalf("ApplyToConfig: %v", err)
	}
	p := cfg.Derived.Params
	if p.PoissonIterations != 12 || p.ViscousIterations != 40 || p.BFECCClamp != 2.5 {
		t.Errorf("derived params not updated: %+v", p)
	}
}
