// Package config provides configuration loading and access for the solver
// and its collaborators.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/stablefluid/fluid"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all configuration parameters.
type Config struct {
	Screen    ScreenConfig    `yaml:"screen"`
	Solver    SolverConfig    `yaml:"solver"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Pointer   PointerConfig   `yaml:"pointer"`
	Agents    AgentsConfig    `yaml:"agents"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Stream    StreamConfig    `yaml:"stream"`
	Render    RenderConfig    `yaml:"render"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// ScreenConfig holds window parameters.
type ScreenConfig struct {
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
	Title     string `yaml:"title"`
	TargetFPS int    `yaml:"target_fps"`
}

// SolverConfig holds the simulation parameters.
type SolverConfig struct {
	IterationsPoisson int     `yaml:"iterations_poisson"`
	IterationsViscous int     `yaml:"iterations_viscous"`
	MouseForce        float64 `yaml:"mouse_force"`
	CursorSize        float64 `yaml:"cursor_size"`
	Resolution        float64 `yaml:"resolution"`
	Viscous           float64 `yaml:"viscous"`
	IsViscous         bool    `yaml:"is_viscous"`
	IsBounce          bool    `yaml:"is_bounce"`
	DT                float64 `yaml:"dt"`
	BFECC             bool    `yaml:"bfecc"`
	Falloff           string  `yaml:"falloff"`
	BFECCClamp        float64 `yaml:"bfecc_clamp"`
	EdgeMargin        float64 `yaml:"edge_margin"`
}

// DispatchConfig selects the kernel backend.
type DispatchConfig struct {
	Backend string `yaml:"backend"` // serial | pool
	Workers int    `yaml:"workers"` // 0 = GOMAXPROCS
}

// PointerConfig holds the pointer idle policy.
type PointerConfig struct {
	IdleTimeout float64 `yaml:"idle_timeout"` // seconds
	DecayRate   float64 `yaml:"decay_rate"`   // per second
}

// AgentsConfig holds trajectory playback parameters.
type AgentsConfig struct {
	Path         string  `yaml:"path"`
	DemoCount    int     `yaml:"demo_count"`
	DemoDuration float64 `yaml:"demo_duration"`
	Speed        float64 `yaml:"speed"`
	Gain         float64 `yaml:"gain"`
}

// TelemetryConfig holds performance logging and CSV output settings.
type TelemetryConfig struct {
	WindowTicks int    `yaml:"window_ticks"`
	LogInterval int    `yaml:"log_interval"`
	OutputDir   string `yaml:"output_dir"`
}

// StreamConfig holds the websocket frame broadcaster settings.
type StreamConfig struct {
	Addr   string `yaml:"addr"`
	Stride int    `yaml:"stride"`
	Every  int    `yaml:"every"`
}

// RenderConfig holds presentation settings.
type RenderConfig struct {
	Field      string `yaml:"field"`
	Colormap   string `yaml:"colormap"`
	ShowAgents bool   `yaml:"show_agents"`
	Panel      bool   `yaml:"panel"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	DT32        float32       // Solver.DT as float32
	Params      fluid.Params  // solver parameters ready for the simulation
	IdleTimeout time.Duration // Pointer.IdleTimeout as a duration
	FrameTime   time.Duration // 1 / Screen.TargetFPS
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Defaults returns the embedded defaults.
func Defaults() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults invalid: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Only overwrites fields present in the file.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.ComputeDerived(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ComputeDerived recalculates derived values and validates the result.
// Call it after changing fields in code.
func (c *Config) ComputeDerived() error {
	c.Derived.DT32 = float32(c.Solver.DT)
	c.Derived.IdleTimeout = time.Duration(c.Pointer.IdleTimeout * float64(time.Second))
	if c.Screen.TargetFPS > 0 {
		c.Derived.FrameTime = time.Second / time.Duration(c.Screen.TargetFPS)
	} else {
		c.Derived.FrameTime = time.Second / 60
	}

	falloff, err := fluid.ParseFalloff(c.Solver.Falloff)
	if err != nil {
		return fmt.Errorf("config: solver.falloff: %w", err)
	}
	s := c.Solver
	c.Derived.Params = fluid.Params{
		PoissonIterations: s.IterationsPoisson,
		ViscousIterations: s.IterationsViscous,
		ForceGain:         float32(s.MouseForce),
		CursorSize:        float32(s.CursorSize),
		Resolution:        float32(s.Resolution),
		Viscosity:         float32(s.Viscous),
		ViscosityEnabled:  s.IsViscous,
		Bounded:           s.IsBounce,
		DT:                float32(s.DT),
		BFECC:             s.BFECC,
		Falloff:           falloff,
		BFECCClamp:        float32(s.BFECCClamp),
		EdgeMargin:        float32(s.EdgeMargin),
	}

	var errs []error
	if err := c.Derived.Params.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("solver: %w", err))
	}
	if c.Screen.Width <= 0 || c.Screen.Height <= 0 {
		errs = append(errs, fmt.Errorf("screen size %dx%d must be positive", c.Screen.Width, c.Screen.Height))
	}
	switch c.Dispatch.Backend {
	case "serial", "pool":
	default:
		errs = append(errs, fmt.Errorf("dispatch.backend %q: want serial or pool", c.Dispatch.Backend))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// SetParams writes solver parameters back into the YAML-facing fields, so
// a snapshot reflects live changes.
func (c *Config) SetParams(p fluid.Params) {
	c.Solver = SolverConfig{
		IterationsPoisson: p.PoissonIterations,
		IterationsViscous: p.ViscousIterations,
		MouseForce:        float64(p.ForceGain),
		CursorSize:        float64(p.CursorSize),
		Resolution:        float64(p.Resolution),
		Viscous:           float64(p.Viscosity),
		IsViscous:         p.ViscosityEnabled,
		IsBounce:          p.Bounded,
		DT:                float64(p.DT),
		BFECC:             p.BFECC,
		Falloff:           p.Falloff.String(),
		BFECCClamp:        float64(p.BFECCClamp),
		EdgeMargin:        float64(p.EdgeMargin),
	}
	c.Derived.Params = p
	c.Derived.DT32 = p.DT
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
