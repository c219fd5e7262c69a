// Package game is the application shell: it owns the simulation and its
// collaborators and advances them one frame at a time.
package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pthm-cable/stablefluid/config"
	"github.com/pthm-cable/stablefluid/fluid"
	"github.com/pthm-cable/stablefluid/grid"
	"github.com/pthm-cable/stablefluid/kernel"
	"github.com/pthm-cable/stablefluid/pointer"
	"github.com/pthm-cable/stablefluid/stream"
	"github.com/pthm-cable/stablefluid/telemetry"
	"github.com/pthm-cable/stablefluid/trajectory"
)

// Options configures a Game. Config is required.
type Options struct {
	Config *config.Config
	Logger *slog.Logger

	// Trajectory overrides Config.Agents.Path.
	Trajectory string
	// OutputDir overrides Config.Telemetry.OutputDir.
	OutputDir string
	// ServeAddr overrides Config.Stream.Addr.
	ServeAddr string
	// PassHook is forwarded to the simulation.
	PassHook func(pass string, out *grid.Field)
	// Windowed leaves each tick's timing open after Step so the
	// presentation phase is measured; the caller brackets drawing with
	// BeginPresent and EndPresent.
	Windowed bool
}

// Game holds the simulation and everything that feeds or observes it.
type Game struct {
	cfg    *config.Config
	logger *slog.Logger

	sim     *fluid.Simulation
	surface *config.Surface
	tracker *pointer.Tracker
	driver  *trajectory.Driver

	perf      *telemetry.PerfCollector
	sampler   telemetry.Sampler
	collector *telemetry.Collector
	output    *telemetry.OutputManager
	hub       *stream.Hub
	serveAddr string
	stopServe context.CancelFunc
	serveDone chan error

	viewW, viewH int
	sources      []fluid.Source
	stats        telemetry.FrameStats
	paused       bool
	windowed     bool
	tickOpen     bool
}

// NewGame builds the simulation and its collaborators. Any error here is
// fatal to startup.
func NewGame(opts Options) (*Game, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("game: nil config")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	g := &Game{
		cfg:      cfg,
		logger:   logger,
		viewW:    cfg.Screen.Width,
		viewH:    cfg.Screen.Height,
		perf:     telemetry.NewPerfCollector(cfg.Telemetry.WindowTicks),
		windowed: opts.Windowed,
	}

	coll, err := loadAgents(cfg.Agents, opts.Trajectory)
	if err != nil {
		return nil, err
	}
	g.driver = trajectory.NewDriver(coll, cfg.Agents.Speed)

	reg, err := fluid.NewRegistry()
	if err != nil {
		return nil, fmt.Errorf("game: registering passes: %w", err)
	}
	var dispatch kernel.Dispatcher
	if cfg.Dispatch.Backend == "pool" {
		dispatch = kernel.NewPool(reg, cfg.Dispatch.Workers, logger)
	} else {
		dispatch = kernel.NewSerial(reg, logger)
	}

	params := cfg.Derived.Params
	g.sim, err = fluid.New(params, g.viewW, g.viewH, fluid.Options{
		Provider:   reg,
		Dispatcher: dispatch,
		Logger:     logger,
		Phases:     g.perf,
		PassHook:   opts.PassHook,
	})
	if err != nil {
		dispatch.Close()
		return nil, err
	}

	g.surface = config.NewSurface(params, logger)
	g.tracker = pointer.NewTracker(g.viewW, g.viewH, cfg.Derived.IdleTimeout, cfg.Pointer.DecayRate)
	g.collector = telemetry.NewCollector(cfg.Telemetry.WindowTicks, params.DT)

	outputDir := cfg.Telemetry.OutputDir
	if opts.OutputDir != "" {
		outputDir = opts.OutputDir
	}
	g.output, err = telemetry.NewOutputManager(outputDir)
	if err != nil {
		g.sim.Close()
		return nil, err
	}
	if err := g.output.WriteConfig(cfg); err != nil {
		logger.Error("failed to write config snapshot", "error", err)
	}

	g.serveAddr = cfg.Stream.Addr
	if opts.ServeAddr != "" {
		g.serveAddr = opts.ServeAddr
	}
	if g.serveAddr != "" {
		g.hub = stream.NewHub(g.surface, cfg.Stream.Stride, cfg.Stream.Every, logger)
	}

	logger.Info("game ready",
		"agents", len(agentsOf(coll)),
		"backend", dispatch.Name(),
		"output", g.output.Dir(),
		"serve", g.serveAddr,
	)
	return g, nil
}

func agentsOf(c *trajectory.Collection) []trajectory.AgentTrack {
	if c == nil {
		return nil
	}
	return c.Agents
}

// loadAgents reads the trajectory file, or builds the demo set when no
// file is configured. A configured file that fails to load is fatal.
func loadAgents(ac config.AgentsConfig, override string) (*trajectory.Collection, error) {
	path := ac.Path
	if override != "" {
		path = override
	}
	if path != "" {
		c, err := trajectory.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("game: loading trajectories: %w", err)
		}
		return c, nil
	}
	if ac.DemoCount > 0 {
		return trajectory.Demo(ac.DemoCount, ac.DemoDuration, 0), nil
	}
	return nil, nil
}

// Start launches the websocket stream if configured. It returns
// immediately; the listener stops when Close is called.
func (g *Game) Start(ctx context.Context) {
	if g.hub == nil || g.stopServe != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	g.stopServe = cancel
	g.serveDone = make(chan error, 1)
	go func() {
		err := g.hub.Serve(ctx, g.serveAddr)
		if err != nil && !errors.Is(err, context.Canceled) {
			g.logger.Error("stream server stopped", "error", err)
		}
		g.serveDone <- err
	}()
}

// Sim returns the simulation.
func (g *Game) Sim() *fluid.Simulation { return g.sim }

// Surface returns the live parameter surface.
func (g *Game) Surface() *config.Surface { return g.surface }

// Pointer returns the pointer tracker.
func (g *Game) Pointer() *pointer.Tracker { return g.tracker }

// Driver returns the trajectory driver.
func (g *Game) Driver() *trajectory.Driver { return g.driver }

// Perf returns the performance collector.
func (g *Game) Perf() *telemetry.PerfCollector { return g.perf }

// Stats returns the statistics of the last frame.
func (g *Game) Stats() telemetry.FrameStats { return g.stats }

// Frame returns the number of completed frames.
func (g *Game) Frame() uint64 { return g.sim.Frame() }

// Paused reports whether Step skips the solver.
func (g *Game) Paused() bool { return g.paused }

// SetPaused pauses or resumes the solver.
func (g *Game) SetPaused(p bool) { g.paused = p }

// Resize propagates a new viewport size. The grid is reallocated at the
// next frame boundary.
func (g *Game) Resize(w, h int) {
	if w == g.viewW && h == g.viewH {
		return
	}
	g.viewW, g.viewH = w, h
	g.sim.RequestResize(w, h)
	g.tracker.Resize(w, h)
}

// applyParams drains the surface's change channel. Only the latest
// snapshot is ever pending.
func (g *Game) applyParams() {
	select {
	case p := <-g.surface.Changes():
		if err := g.sim.SetParams(p); err != nil {
			g.logger.Warn("parameters rejected by solver", "error", err)
			return
		}
		g.cfg.SetParams(p)
		g.collector.SetDT(p.DT)
		g.logger.Info("parameters updated", "params", p)
	default:
	}
}

// Step advances one frame: parameter changes, agent playback, pointer
// decay, the solver tick and telemetry. dt is the wall time since the last
// frame and only drives playback and pointer decay; the solver uses its
// fixed time step.
func (g *Game) Step(dt time.Duration) error {
	g.applyParams()
	if g.paused {
		return nil
	}
	// Sources below are sized from the active params and grid.
	if err := g.sim.ApplyPending(); err != nil {
		return fmt.Errorf("game: frame %d: %w", g.sim.Frame(), err)
	}

	g.perf.StartTick()
	g.tickOpen = true
	g.perf.StartPhase(telemetry.PhaseAgents)
	g.driver.Advance(dt.Seconds())
	g.tracker.Update(dt)

	p := g.sim.Params()
	w, h := g.sim.Size()
	g.sources = g.sources[:0]
	if center, force, ok := g.tracker.Sample(); ok {
		g.sources = append(g.sources, g.sim.Source(center, force, p.ForceGain))
	}
	g.sources = g.driver.Sources(g.sources, float32(g.cfg.Agents.Gain), p.RadiusCells(), w, h)

	if err := g.sim.Tick(g.sources); err != nil {
		g.endTick()
		return fmt.Errorf("game: frame %d: %w", g.sim.Frame(), err)
	}
	if !g.windowed {
		g.endTick()
	}

	stats, err := g.sampler.Sample(g.sim, g.driver.Active())
	if err != nil {
		return err
	}
	g.stats = stats
	g.collector.Record(stats)
	g.flushTelemetry()

	if g.hub != nil {
		g.hub.Publish(g.sim)
	}
	return nil
}

func (g *Game) endTick() {
	if g.tickOpen {
		g.perf.EndTick()
		g.tickOpen = false
	}
}

// BeginPresent starts timing the presentation of the current frame.
func (g *Game) BeginPresent() {
	if g.tickOpen {
		g.perf.StartPhase(telemetry.PhasePresent)
	}
}

// EndPresent closes the current frame's timing.
func (g *Game) EndPresent() {
	g.endTick()
	g.perf.RecordFrame()
}

// flushTelemetry writes and logs a window once it is complete.
func (g *Game) flushTelemetry() {
	if interval := g.cfg.Telemetry.LogInterval; interval > 0 && g.sim.Frame()%uint64(interval) == 0 {
		g.perf.Stats().LogStats(g.logger)
	}
	if !g.collector.ShouldFlush() {
		return
	}
	window := g.collector.Flush()
	if err := g.output.WriteStats(window); err != nil {
		g.logger.Error("failed to write stats", "error", err)
	}
	if err := g.output.WritePerf(g.perf.Stats(), window.WindowEnd); err != nil {
		g.logger.Error("failed to write perf", "error", err)
	}
	g.logger.Debug("window", "stats", window)
}

// Close stops the stream, flushes output and releases the simulation.
func (g *Game) Close() error {
	if g.stopServe != nil {
		g.stopServe()
		<-g.serveDone
		g.stopServe = nil
	}
	var errs []error
	if window := g.collector.Flush(); window.WindowEnd > 0 {
		errs = append(errs, g.output.WriteStats(window))
	}
	errs = append(errs, g.output.Close())
	g.sim.Close()
	return errors.Join(errs...)
}
