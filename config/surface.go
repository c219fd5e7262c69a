package config

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"sync"

	"github.com/pthm-cable/stablefluid/fluid"
)

// Warning reports a rejected parameter change. The previous value stays in
// effect.
type Warning struct {
	Name   string
	Value  any
	Reason string
}

func (w *Warning) Error() string {
	return fmt.Sprintf("config: %s=%v ignored: %s", w.Name, w.Value, w.Reason)
}

type paramKind uint8

const (
	kindInt paramKind = iota
	kindFloat
	kindBool
	kindFalloff
)

// paramDef describes one named solver parameter.
type paramDef struct {
	kind     paramKind
	min, max float64
	get      func(p *fluid.Params) float64
	set      func(p *fluid.Params, v float64)
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// params uses the option names of the interactive panel.
var params = map[string]paramDef{
	"iterations_poisson": {kindInt, 1, 500,
		func(p *fluid.Params) float64 { return float64(p.PoissonIterations) },
		func(p *fluid.Params, v float64) { p.PoissonIterations = int(v) }},
	"iterations_viscous": {kindInt, 1, 500,
		func(p *fluid.Params) float64 { return float64(p.ViscousIterations) },
		func(p *fluid.Params, v float64) { p.ViscousIterations = int(v) }},
	"mouse_force": {kindFloat, 0, 1000,
		func(p *fluid.Params) float64 { return float64(p.ForceGain) },
		func(p *fluid.Params, v float64) { p.ForceGain = float32(v) }},
	"cursor_size": {kindFloat, 0, 1000,
		func(p *fluid.Params) float64 { return float64(p.CursorSize) },
		func(p *fluid.Params, v float64) { p.CursorSize = float32(v) }},
	"resolution": {kindFloat, 0.05, 1,
		func(p *fluid.Params) float64 { return float64(p.Resolution) },
		func(p *fluid.Params, v float64) { p.Resolution = float32(v) }},
	"viscous": {kindFloat, 0, 500,
		func(p *fluid.Params) float64 { return float64(p.Viscosity) },
		func(p *fluid.Params, v float64) { p.Viscosity = float32(v) }},
	"dt": {kindFloat, 1e-4, 1,
		func(p *fluid.Params) float64 { return float64(p.DT) },
		func(p *fluid.Params, v float64) { p.DT = float32(v) }},
	"isViscous": {kindBool, 0, 1,
		func(p *fluid.Params) float64 { return b2f(p.ViscosityEnabled) },
		func(p *fluid.Params, v float64) { p.ViscosityEnabled = v != 0 }},
	"isBounce": {kindBool, 0, 1,
		func(p *fluid.Params) float64 { return b2f(p.Bounded) },
		func(p *fluid.Params, v float64) { p.Bounded = v != 0 }},
	"BFECC": {kindBool, 0, 1,
		func(p *fluid.Params) float64 { return b2f(p.BFECC) },
		func(p *fluid.Params, v float64) { p.BFECC = v != 0 }},
	"falloff": {kindFalloff, 0, 2,
		func(p *fluid.Params) float64 { return float64(p.Falloff) },
		func(p *fluid.Params, v float64) { p.Falloff = fluid.Falloff(v) }},
	"bfecc_clamp": {kindFloat, 0, 10,
		func(p *fluid.Params) float64 { return float64(p.BFECCClamp) },
		func(p *fluid.Params, v float64) { p.BFECCClamp = float32(v) }},
	"edge_margin": {kindFloat, 0, 100,
		func(p *fluid.Params) float64 { return float64(p.EdgeMargin) },
		func(p *fluid.Params, v float64) { p.EdgeMargin = float32(v) }},
}

// Surface is the live parameter surface. Producers (UI, network, flags)
// set named values; the simulation loop receives whole snapshots from
// Changes, latest first, and applies them at a tick boundary.
type Surface struct {
	mu      sync.Mutex
	params  fluid.Params
	changes chan fluid.Params
	logger  *slog.Logger
}

// NewSurface creates a surface holding p. A nil logger uses slog.Default().
func NewSurface(p fluid.Params, logger *slog.Logger) *Surface {
	if logger == nil {
		logger = slog.Default()
	}
	return &Surface{
		params:  p,
		changes: make(chan fluid.Params, 1),
		logger:  logger,
	}
}

// Names returns every settable parameter name, sorted.
func Names() []string {
	names := make([]string, 0, len(params))
	for n := range params {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Params returns the current snapshot.
func (s *Surface) Params() fluid.Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// Changes delivers parameter snapshots. Only the most recent unread
// snapshot is kept.
func (s *Surface) Changes() <-chan fluid.Params { return s.changes }

// Get returns the named value as a float64 (booleans as 0 or 1).
func (s *Surface) Get(name string) (float64, bool) {
	def, ok := params[name]
	if !ok {
		return 0, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return def.get(&s.params), true
}

// GetBool returns a boolean parameter.
func (s *Surface) GetBool(name string) bool {
	v, _ := s.Get(name)
	return v != 0
}

// Set changes one parameter. Unknown names, unparsable, fractional integer
// or out-of-range values return a *Warning and leave the surface unchanged.
func (s *Surface) Set(name string, value any) error {
	def, ok := params[name]
	if !ok {
		return s.warn(&Warning{Name: name, Value: value, Reason: "unknown parameter"})
	}
	v, err := toFloat(def.kind, value)
	if err != nil {
		return s.warn(&Warning{Name: name, Value: value, Reason: err.Error()})
	}
	if (def.kind == kindInt || def.kind == kindFalloff) && v != math.Trunc(v) {
		return s.warn(&Warning{Name: name, Value: value, Reason: "not an integer"})
	}
	if math.IsNaN(v) || v < def.min || v > def.max {
		return s.warn(&Warning{
			Name: name, Value: value,
			Reason: fmt.Sprintf("outside [%g, %g]", def.min, def.max),
		})
	}

	s.mu.Lock()
	next := s.params
	def.set(&next, v)
	if err := next.Validate(); err != nil {
		s.mu.Unlock()
		return s.warn(&Warning{Name: name, Value: value, Reason: err.Error()})
	}
	changed := next != s.params
	s.params = next
	if changed {
		s.publish(next)
	}
	s.mu.Unlock()
	return nil
}

// Replace swaps in a whole record after validation.
func (s *Surface) Replace(p fluid.Params) error {
	if err := p.Validate(); err != nil {
		return s.warn(&Warning{Name: "params", Value: p, Reason: err.Error()})
	}
	s.mu.Lock()
	s.params = p
	s.publish(p)
	s.mu.Unlock()
	return nil
}

// publish replaces any unread snapshot with p. Callers hold s.mu.
func (s *Surface) publish(p fluid.Params) {
	select {
	case <-s.changes:
	default:
	}
	s.changes <- p
}

func (s *Surface) warn(w *Warning) error {
	s.logger.Warn("parameter rejected", "name", w.Name, "value", w.Value, "reason", w.Reason)
	return w
}

func toFloat(kind paramKind, value any) (float64, error) {
	switch v := value.(type) {
	case bool:
		return b2f(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case fluid.Falloff:
		return float64(v), nil
	case string:
		switch kind {
		case kindBool:
			b, err := strconv.ParseBool(v)
			return b2f(b), err
		case kindFalloff:
			f, err := fluid.ParseFalloff(v)
			return float64(f), err
		default:
			return strconv.ParseFloat(v, 64)
		}
	default:
		return 0, fmt.Errorf("unsupported type %T", value)
	}
}
