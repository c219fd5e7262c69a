package fluid

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Falloff shapes how a force source decays from its center to its radius.
type Falloff uint8

const (
	// Quadratic is (1 - d/r)^2.
	Quadratic Falloff = iota
	// Gaussian is exp(-4 (d/r)^2), cut at the radius.
	Gaussian
	// Smooth is 1 - smoothstep(0, 1, d/r).
	Smooth
)

var falloffNames = [...]string{"quadratic", "gaussian", "smooth"}

func (f Falloff) String() string {
	if int(f) < len(falloffNames) {
		return falloffNames[f]
	}
	return fmt.Sprintf("falloff(%d)", int(f))
}

// ParseFalloff maps a name to a falloff policy.
func ParseFalloff(s string) (Falloff, error) {
	for i, n := range falloffNames {
		if strings.EqualFold(s, n) {
			return Falloff(i), nil
		}
	}
	return 0, fmt.Errorf("fluid: unknown falloff %q", s)
}

// Params is the per-frame solver configuration. The simulation takes a
// snapshot at the start of each tick.
type Params struct {
	PoissonIterations int
	ViscousIterations int
	// ForceGain scales pointer and agent displacement into velocity.
	ForceGain float32
	// CursorSize is the influence radius in screen pixels.
	CursorSize float32
	// Resolution is grid cells per screen pixel.
	Resolution       float32
	Viscosity        float32
	ViscosityEnabled bool
	// Bounded selects solid walls; otherwise the domain is open.
	Bounded bool
	DT      float32
	BFECC   bool

	Falloff Falloff
	// BFECCClamp bounds the position correction, in cells.
	BFECCClamp float32
	// EdgeMargin is added to the radius when suppressing sources near walls, in cells.
	EdgeMargin float32
}

// DefaultParams returns the stock configuration.
func DefaultParams() Params {
	return Params{
		PoissonIterations: 32,
		ViscousIterations: 32,
		ForceGain:         20,
		CursorSize:        100,
		Resolution:        0.5,
		Viscosity:         30,
		ViscosityEnabled:  false,
		Bounded:           false,
		DT:                0.014,
		BFECC:             true,
		Falloff:           Quadratic,
		BFECCClamp:        1,
		EdgeMargin:        1,
	}
}

// RadiusCells converts CursorSize to grid cells.
func (p Params) RadiusCells() float32 {
	return p.CursorSize * p.Resolution
}

// Validate reports every out-of-range or non-finite field.
func (p Params) Validate() error {
	var errs []error
	for _, f := range []struct {
		name string
		v    float32
	}{
		{"force gain", p.ForceGain},
		{"cursor size", p.CursorSize},
		{"resolution", p.Resolution},
		{"viscosity", p.Viscosity},
		{"dt", p.DT},
		{"bfecc clamp", p.BFECCClamp},
		{"edge margin", p.EdgeMargin},
	} {
		if math.IsNaN(float64(f.v)) || math.IsInf(float64(f.v), 0) {
			errs = append(errs, fmt.Errorf("%s %g is not finite", f.name, f.v))
		}
	}
	if p.PoissonIterations < 1 {
		errs = append(errs, fmt.Errorf("poisson iterations %d < 1", p.PoissonIterations))
	}
	if p.ViscousIterations < 1 {
		errs = append(errs, fmt.Errorf("viscous iterations %d < 1", p.ViscousIterations))
	}
	if !(p.DT > 0) {
		errs = append(errs, fmt.Errorf("dt %g must be positive", p.DT))
	}
	if !(p.Resolution > 0) || p.Resolution > 1 {
		errs = append(errs, fmt.Errorf("resolution %g outside (0, 1]", p.Resolution))
	}
	if p.CursorSize < 0 {
		errs = append(errs, fmt.Errorf("cursor size %g is negative", p.CursorSize))
	}
	if p.Viscosity < 0 {
		errs = append(errs, fmt.Errorf("viscosity %g is negative", p.Viscosity))
	}
	if p.BFECCClamp < 0 {
		errs = append(errs, fmt.Errorf("bfecc clamp %g is negative", p.BFECCClamp))
	}
	if p.EdgeMargin < 0 {
		errs = append(errs, fmt.Errorf("edge margin %g is negative", p.EdgeMargin))
	}
	if int(p.Falloff) >= len(falloffNames) {
		errs = append(errs, fmt.Errorf("unknown falloff %d", p.Falloff))
	}
	return errors.Join(errs...)
}

// GridSize derives the grid resolution for a viewport. A positive viewport
// yields at least one cell per axis; a degenerate one yields zero so that
// allocation fails.
func (p Params) GridSize(viewW, viewH int) (w, h int) {
	if viewW <= 0 || viewH <= 0 {
		return 0, 0
	}
	w = int(float32(viewW) * p.Resolution)
	h = int(float32(viewH) * p.Resolution)
	return max(w, 1), max(h, 1)
}
