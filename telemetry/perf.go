package telemetry

import (
	"log/slog"
	"time"
)

// Phase names for one frame. The solver stages match the pass names the
// simulation reports through fluid.PhaseRecorder.
const (
	PhaseAdvect     = "advect"
	PhaseForce      = "force"
	PhaseViscous    = "viscous"
	PhaseDivergence = "divergence"
	PhasePoisson    = "poisson"
	PhaseProject    = "project"
	PhaseAgents     = "agents"
	PhasePresent    = "present"
)

// Phases lists every phase in frame order.
var Phases = []string{
	PhaseAgents, PhaseAdvect, PhaseForce, PhaseViscous,
	PhaseDivergence, PhasePoisson, PhaseProject, PhasePresent,
}

// perfSample is one tick. phases is indexed by slot.
type perfSample struct {
	tick   time.Duration
	phases []time.Duration
}

// PerfCollector times ticks and their phases over a rolling window. Phase
// names get a slot the first time they are seen, so steady-state ticks do
// not allocate.
type PerfCollector struct {
	window  []perfSample
	next    int
	filled  int
	names   []string
	slots   map[string]int
	current []time.Duration

	now        func() time.Time
	tickStart  time.Time
	phaseStart time.Time
	phase      int // running slot, -1 when none

	// Presentation frame timing
	lastFrame time.Time
	frameDur  time.Duration
}

// NewPerfCollector creates a collector averaging over windowSize ticks;
// values below 1 mean 60.
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 60
	}
	return &PerfCollector{
		window: make([]perfSample, windowSize),
		slots:  make(map[string]int, len(Phases)),
		now:    time.Now,
		phase:  -1,
	}
}

func (p *PerfCollector) slot(name string) int {
	if i, ok := p.slots[name]; ok {
		return i
	}
	i := len(p.names)
	p.names = append(p.names, name)
	p.slots[name] = i
	p.current = append(p.current, 0)
	return i
}

// closePhase charges the time since the last phase switch to the running
// phase.
func (p *PerfCollector) closePhase(now time.Time) {
	if p.phase >= 0 {
		p.current[p.phase] += now.Sub(p.phaseStart)
	}
	p.phaseStart = now
}

// StartTick begins timing a new frame.
func (p *PerfCollector) StartTick() {
	p.tickStart = p.now()
	clear(p.current)
	p.phase = -1
}

// StartPhase ends the running phase and starts timing the named one.
// Repeated phases within a tick accumulate.
func (p *PerfCollector) StartPhase(phase string) {
	p.closePhase(p.now())
	p.phase = p.slot(phase)
}

// EndTick finishes timing the current tick and records the sample.
func (p *PerfCollector) EndTick() {
	now := p.now()
	p.closePhase(now)
	p.phase = -1

	s := &p.window[p.next]
	s.tick = now.Sub(p.tickStart)
	s.phases = append(s.phases[:0], p.current...)
	p.next = (p.next + 1) % len(p.window)
	p.filled = min(p.filled+1, len(p.window))
}

// RecordFrame marks the end of a presented frame.
func (p *PerfCollector) RecordFrame() {
	now := p.now()
	if !p.lastFrame.IsZero() {
		p.frameDur = now.Sub(p.lastFrame)
	}
	p.lastFrame = now
}

// PerfStats holds aggregated performance statistics.
type PerfStats struct {
	AvgTickDuration time.Duration
	MinTickDuration time.Duration
	MaxTickDuration time.Duration

	// Phase breakdown (average durations)
	PhaseAvg map[string]time.Duration

	// Phase percentages of total tick time
	PhasePct map[string]float64

	TicksPerSecond float64

	FrameDuration time.Duration
	FPS           float64
}

// Stats aggregates the window. Every phase seen so far appears in the
// maps, with zero for phases absent from the window.
func (p *PerfCollector) Stats() PerfStats {
	out := PerfStats{
		PhaseAvg:      make(map[string]time.Duration, len(p.names)),
		PhasePct:      make(map[string]float64, len(p.names)),
		FrameDuration: p.frameDur,
	}
	if p.frameDur > 0 {
		out.FPS = float64(time.Second) / float64(p.frameDur)
	}
	if p.filled == 0 {
		return out
	}

	var total time.Duration
	sums := make([]time.Duration, len(p.names))
	for i, s := range p.window[:p.filled] {
		total += s.tick
		if i == 0 || s.tick < out.MinTickDuration {
			out.MinTickDuration = s.tick
		}
		out.MaxTickDuration = max(out.MaxTickDuration, s.tick)
		for slot, d := range s.phases {
			sums[slot] += d
		}
	}

	n := time.Duration(p.filled)
	out.AvgTickDuration = total / n
	for slot, name := range p.names {
		avg := sums[slot] / n
		out.PhaseAvg[name] = avg
		if out.AvgTickDuration > 0 {
			out.PhasePct[name] = float64(avg) / float64(out.AvgTickDuration) * 100
		}
	}
	if out.AvgTickDuration > 0 {
		out.TicksPerSecond = float64(time.Second) / float64(out.AvgTickDuration)
	}
	return out
}

// LogStats logs performance statistics.
func (s PerfStats) LogStats(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{
		"avg_tick_us", s.AvgTickDuration.Microseconds(),
		"min_tick_us", s.MinTickDuration.Microseconds(),
		"max_tick_us", s.MaxTickDuration.Microseconds(),
		"ticks_per_sec", int(s.TicksPerSecond),
	}
	if s.FPS > 0 {
		attrs = append(attrs, "fps", int(s.FPS))
	}
	for _, phase := range Phases {
		if pct, ok := s.PhasePct[phase]; ok && pct > 0.1 {
			attrs = append(attrs, phase+"_pct", float64(int(pct*10))/10)
		}
	}
	logger.Info("perf", attrs...)
}

// LogValue implements slog.LogValuer for structured logging.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("avg_tick_us", s.AvgTickDuration.Microseconds()),
		slog.Int64("min_tick_us", s.MinTickDuration.Microseconds()),
		slog.Int64("max_tick_us", s.MaxTickDuration.Microseconds()),
		slog.Float64("ticks_per_sec", s.TicksPerSecond),
	}
	if s.FPS > 0 {
		attrs = append(attrs, slog.Float64("fps", s.FPS))
	}
	for _, phase := range Phases {
		if pct, ok := s.PhasePct[phase]; ok {
			attrs = append(attrs, slog.Float64(phase+"_pct", pct))
		}
	}
	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is a flat struct for CSV export of performance stats.
type PerfStatsCSV struct {
	Frame         uint64  `csv:"frame"`
	AvgTickUS     int64   `csv:"avg_tick_us"`
	MinTickUS     int64   `csv:"min_tick_us"`
	MaxTickUS     int64   `csv:"max_tick_us"`
	TicksPerSec   float64 `csv:"ticks_per_sec"`
	FPS           float64 `csv:"fps"`
	AgentsPct     float64 `csv:"agents_pct"`
	AdvectPct     float64 `csv:"advect_pct"`
	ForcePct      float64 `csv:"force_pct"`
	ViscousPct    float64 `csv:"viscous_pct"`
	DivergencePct float64 `csv:"divergence_pct"`
	PoissonPct    float64 `csv:"poisson_pct"`
	ProjectPct    float64 `csv:"project_pct"`
	PresentPct    float64 `csv:"present_pct"`
}

// ToCSV converts PerfStats to a flat CSV-friendly struct.
func (s PerfStats) ToCSV(frame uint64) PerfStatsCSV {
	return PerfStatsCSV{
		Frame:         frame,
		AvgTickUS:     s.AvgTickDuration.Microseconds(),
		MinTickUS:     s.MinTickDuration.Microseconds(),
		MaxTickUS:     s.MaxTickDuration.Microseconds(),
		TicksPerSec:   s.TicksPerSecond,
		FPS:           s.FPS,
		AgentsPct:     s.PhasePct[PhaseAgents],
		AdvectPct:     s.PhasePct[PhaseAdvect],
		ForcePct:      s.PhasePct[PhaseForce],
		ViscousPct:    s.PhasePct[PhaseViscous],
		DivergencePct: s.PhasePct[PhaseDivergence],
		PoissonPct:    s.PhasePct[PhasePoisson],
		ProjectPct:    s.PhasePct[PhaseProject],
		PresentPct:    s.PhasePct[PhasePresent],
	}
}
