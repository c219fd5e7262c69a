// Package fluid is a fixed-grid stable-fluids solver. Each tick advects the
// velocity field, injects point forces, optionally diffuses it and projects
// it onto its divergence-free part with a Jacobi pressure solve.
package fluid

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/pthm-cable/stablefluid/grid"
	"github.com/pthm-cable/stablefluid/kernel"
)

// ErrClosed is returned by Tick and ApplyPending after Close.
var ErrClosed = errors.New("fluid: simulation closed")

// PhaseRecorder receives the name of each stage as it starts.
type PhaseRecorder interface {
	StartPhase(phase string)
}

// Options wires a simulation to its collaborators. Zero values select the
// in-process registry, the serial dispatcher and slog.Default().
type Options struct {
	Provider   kernel.Provider
	Dispatcher kernel.Dispatcher
	Logger     *slog.Logger
	Phases     PhaseRecorder
	// PassHook, when set, sees the output of every stage after it ran.
	PassHook func(pass string, out *grid.Field)
}

// Simulation owns the buffers, the linked passes and the active parameter
// snapshot. Tick must be called from one goroutine; SetParams and
// RequestResize may be called from any goroutine and take effect at the
// start of the next tick.
type Simulation struct {
	provider kernel.Provider
	dispatch kernel.Dispatcher
	buffers  *grid.BufferSet
	logger   *slog.Logger
	phases   PhaseRecorder
	hook     func(pass string, out *grid.Field)

	params       Params
	viewW, viewH int

	mu            sync.Mutex
	pendingParams *Params
	pendingView   *[2]int

	ticking atomic.Bool
	closed  bool
	frame   uint64

	applied    int
	suppressed int
}

// New validates p, links every pass and allocates the grid for a viewW×viewH
// viewport. Failures here are fatal to startup.
func New(p Params, viewW, viewH int, opts Options) (*Simulation, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("fluid: invalid parameters: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	provider := opts.Provider
	if provider == nil {
		reg, err := NewRegistry()
		if err != nil {
			return nil, err
		}
		provider = reg
	}
	if _, err := kernel.Link(provider, PassNames...); err != nil {
		return nil, fmt.Errorf("fluid: linking passes: %w", err)
	}

	dispatch := opts.Dispatcher
	if dispatch == nil {
		dispatch = kernel.NewSerial(provider, logger)
	}

	s := &Simulation{
		provider: provider,
		dispatch: dispatch,
		buffers:  grid.NewBufferSet(provider),
		logger:   logger,
		phases:   opts.Phases,
		hook:     opts.PassHook,
		params:   p,
		viewW:    viewW,
		viewH:    viewH,
	}
	w, h := p.GridSize(viewW, viewH)
	if err := s.buffers.Allocate(w, h); err != nil {
		return nil, fmt.Errorf("fluid: allocating %dx%d grid for %dx%d viewport: %w", w, h, viewW, viewH, err)
	}
	logger.Info("simulation ready",
		"grid_w", w, "grid_h", h,
		"dispatcher", dispatch.Name(),
	)
	return s, nil
}

// SetParams validates p and queues it for the next tick. An invalid record
// is rejected and the current parameters stay in effect.
func (s *Simulation) SetParams(p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.pendingParams = &p
	s.mu.Unlock()
	return nil
}

// RequestResize queues a viewport change. It is applied at the start of
// the next tick, never while a tick is running.
func (s *Simulation) RequestResize(viewW, viewH int) {
	s.mu.Lock()
	s.pendingView = &[2]int{viewW, viewH}
	s.mu.Unlock()
}

// Params returns the parameters of the last (or next, before the first) tick.
func (s *Simulation) Params() Params { return s.params }

// Ticking reports whether a tick is executing.
func (s *Simulation) Ticking() bool { return s.ticking.Load() }

// Frame returns the number of completed ticks.
func (s *Simulation) Frame() uint64 { return s.frame }

// Size returns the grid resolution.
func (s *Simulation) Size() (w, h int) { return s.buffers.Size() }

// Viewport returns the viewport size the grid was derived from.
func (s *Simulation) Viewport() (w, h int) { return s.viewW, s.viewH }

// CellScale returns 1/width, 1/height.
func (s *Simulation) CellScale() grid.Vec2 { return s.buffers.CellScale() }

// Buffers exposes the buffer set for inspection.
func (s *Simulation) Buffers() *grid.BufferSet { return s.buffers }

// Velocity returns the current velocity field.
func (s *Simulation) Velocity() *grid.Field { return s.buffers.Pair(grid.Velocity).Read() }

// Pressure returns the current pressure field.
func (s *Simulation) Pressure() *grid.Field { return s.buffers.Pair(grid.Pressure).Read() }

// Divergence returns the divergence computed during the last tick.
func (s *Simulation) Divergence() *grid.Field { return s.buffers.Pair(grid.Divergence).Read() }

// SourcesApplied returns how many sources the last tick injected.
func (s *Simulation) SourcesApplied() int { return s.applied }

// SourcesSuppressed returns how many sources the last tick dropped at walls.
func (s *Simulation) SourcesSuppressed() int { return s.suppressed }

// Source converts an NDC position and displacement into a force source
// using the active gain and cursor radius.
func (s *Simulation) Source(center, delta grid.Vec2, gain float32) Source {
	w, h := s.buffers.Size()
	return SourceFromNDC(center, delta, gain, s.params.RadiusCells(), w, h)
}

// Reset zero-fills every field.
func (s *Simulation) Reset() {
	for _, id := range grid.PairIDs {
		if p := s.buffers.Pair(id); p != nil {
			p.Clear()
		}
	}
}

// Close stops the dispatcher and frees the buffers.
func (s *Simulation) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.dispatch.Close()
	s.buffers.Release()
}

// ApplyPending takes the queued parameter snapshot and viewport, and
// reallocates the grid if its size changed. Tick calls it first; callers
// that build sources from Params or Size call it before doing so.
func (s *Simulation) ApplyPending() error {
	if s.closed {
		return ErrClosed
	}
	s.mu.Lock()
	pp, pv := s.pendingParams, s.pendingView
	s.pendingParams, s.pendingView = nil, nil
	s.mu.Unlock()

	if pp != nil {
		s.params = *pp
	}
	if pv != nil {
		s.viewW, s.viewH = pv[0], pv[1]
	}
	if pp == nil && pv == nil {
		return nil
	}

	w, h := s.params.GridSize(s.viewW, s.viewH)
	if cw, ch := s.buffers.Size(); cw == w && ch == h {
		return nil
	}
	if err := s.buffers.Allocate(w, h); err != nil {
		return fmt.Errorf("fluid: resize to %dx%d: %w", w, h, err)
	}
	s.logger.Info("grid resized", "grid_w", w, "grid_h", h, "view_w", s.viewW, "view_h", s.viewH)
	return nil
}

// Tick advances the simulation by one frame.
func (s *Simulation) Tick(sources []Source) error {
	if s.closed {
		return ErrClosed
	}
	s.ticking.Store(true)
	defer s.ticking.Store(false)

	if err := s.ApplyPending(); err != nil {
		return err
	}
	p := s.params

	if err := s.advect(p); err != nil {
		return err
	}
	if err := s.inject(p, sources); err != nil {
		return err
	}
	vel := s.buffers.Pair(grid.Velocity).Read()
	if p.ViscosityEnabled {
		if err := s.diffuse(p); err != nil {
			return err
		}
		vel = s.buffers.Pair(grid.Viscous).Read()
	}
	if err := s.divergence(p, vel); err != nil {
		return err
	}
	if err := s.relaxPressure(p); err != nil {
		return err
	}
	if err := s.project(p, vel); err != nil {
		return err
	}
	s.frame++
	return nil
}

func (s *Simulation) phase(name string) {
	if s.phases != nil {
		s.phases.StartPhase(name)
	}
}

func (s *Simulation) passDone(pass string, out *grid.Field) {
	if s.hook != nil {
		s.hook(pass, out)
	}
}

func (s *Simulation) advect(p Params) error {
	s.phase(PassAdvect)
	vp := s.buffers.Pair(grid.Velocity)
	err := s.dispatch.Dispatch(kernel.Invocation{
		Pass:   PassAdvect,
		Inputs: []*grid.Field{vp.Read()},
		Output: vp.Write(),
		Params: kernel.Bag{
			"dt":          kernel.Float(p.DT),
			"bfecc":       kernel.Bool(p.BFECC),
			"bfecc_clamp": kernel.Float(p.BFECCClamp),
		},
	})
	if err != nil {
		return fmt.Errorf("advect: %w", err)
	}
	vp.Swap()
	s.passDone(PassAdvect, vp.Read())
	return nil
}

func (s *Simulation) inject(p Params, sources []Source) error {
	s.phase(PassForce)
	s.applied, s.suppressed = 0, 0
	out := s.buffers.Pair(grid.Velocity).Read()
	w, h := out.Width(), out.Height()

	for _, src := range sources {
		if !src.Valid() {
			continue
		}
		if p.Bounded && src.nearEdge(w, h, p.EdgeMargin) {
			s.suppressed++
			continue
		}
		c := src.cellCenter(w, h)
		r := src.Radius
		// The stamp never needs to reach further than the grid diagonal.
		reach := min(r, float32(math.Hypot(float64(w), float64(h))))
		rect := kernel.Rect{
			X0: int(c.X - reach - 1), Y0: int(c.Y - reach - 1),
			X1: int(c.X+reach) + 2, Y1: int(c.Y+reach) + 2,
		}
		err := s.dispatch.Dispatch(kernel.Invocation{
			Pass:   PassForce,
			Output: out,
			Blend:  kernel.Add,
			Rect:   &rect,
			Params: kernel.Bag{
				"center":  kernel.Vec(c.X, c.Y),
				"force":   kernel.Vec(src.Force.X, src.Force.Y),
				"radius":  kernel.Float(r),
				"falloff": kernel.Float(float32(p.Falloff)),
			},
		})
		if err != nil {
			return fmt.Errorf("force: %w", err)
		}
		s.applied++
	}
	s.passDone(PassForce, out)
	return nil
}

func (s *Simulation) diffuse(p Params) error {
	s.phase(PassViscous)
	src := s.buffers.Pair(grid.Velocity).Read()
	vp := s.buffers.Pair(grid.Viscous)
	if err := vp.Read().CopyFrom(src); err != nil {
		return fmt.Errorf("viscous seed: %w", err)
	}
	bag := kernel.Bag{
		"alpha":   kernel.Float(p.Viscosity * p.DT),
		"bounded": kernel.Bool(p.Bounded),
	}
	for i := 0; i < p.ViscousIterations; i++ {
		err := s.dispatch.Dispatch(kernel.Invocation{
			Pass:   PassViscous,
			Inputs: []*grid.Field{vp.Read(), src},
			Output: vp.Write(),
			Params: bag,
		})
		if err != nil {
			return fmt.Errorf("viscous sweep %d: %w", i, err)
		}
		vp.Swap()
	}
	s.passDone(PassViscous, vp.Read())
	return nil
}

func (s *Simulation) divergence(p Params, vel *grid.Field) error {
	s.phase(PassDivergence)
	dp := s.buffers.Pair(grid.Divergence)
	err := s.dispatch.Dispatch(kernel.Invocation{
		Pass:   PassDivergence,
		Inputs: []*grid.Field{vel},
		Output: dp.Write(),
		Params: kernel.Bag{"bounded": kernel.Bool(p.Bounded)},
	})
	if err != nil {
		return fmt.Errorf("divergence: %w", err)
	}
	dp.Swap()
	s.passDone(PassDivergence, dp.Read())
	return nil
}

func (s *Simulation) relaxPressure(p Params) error {
	s.phase(PassPoisson)
	pp := s.buffers.Pair(grid.Pressure)
	div := s.buffers.Pair(grid.Divergence).Read()
	bag := kernel.Bag{
		"dt":      kernel.Float(p.DT),
		"bounded": kernel.Bool(p.Bounded),
	}
	for i := 0; i < p.PoissonIterations; i++ {
		err := s.dispatch.Dispatch(kernel.Invocation{
			Pass:   PassPoisson,
			Inputs: []*grid.Field{pp.Read(), div},
			Output: pp.Write(),
			Params: bag,
		})
		if err != nil {
			return fmt.Errorf("poisson sweep %d: %w", i, err)
		}
		pp.Swap()
	}
	s.passDone(PassPoisson, pp.Read())
	return nil
}

// project writes the projected field into the velocity pair's write slot
// and swaps, so it becomes the next tick's input.
func (s *Simulation) project(p Params, vel *grid.Field) error {
	s.phase(PassProject)
	vp := s.buffers.Pair(grid.Velocity)
	err := s.dispatch.Dispatch(kernel.Invocation{
		Pass:   PassProject,
		Inputs: []*grid.Field{vel, s.buffers.Pair(grid.Pressure).Read()},
		Output: vp.Write(),
		Params: kernel.Bag{
			"dt":      kernel.Float(p.DT),
			"bounded": kernel.Bool(p.Bounded),
		},
	})
	if err != nil {
		return fmt.Errorf("project: %w", err)
	}
	vp.Swap()
	s.passDone(PassProject, vp.Read())
	return nil
}
