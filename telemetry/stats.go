package telemetry

import (
	"log/slog"
	"sort"

	"github.com/pthm-cable/stablefluid/fluid"
	"github.com/pthm-cable/stablefluid/grid"
)

// FrameStats is a per-frame numerical summary of the solver state.
type FrameStats struct {
	Frame         uint64  `csv:"frame"`
	DivBefore     float32 `csv:"div_before"` // mean |div| before projection
	DivAfter      float32 `csv:"div_after"`  // mean |div| of the projected field
	MaxSpeed      float32 `csv:"max_speed"`  // cells/s
	KineticEnergy float32 `csv:"kinetic_energy"`
	Agents        int     `csv:"agents"`
	Sources       int     `csv:"sources"`
	Suppressed    int     `csv:"suppressed"`
}

// Sampler computes FrameStats. It keeps a scratch field for the
// post-projection divergence so sampling does not allocate per frame.
type Sampler struct {
	scratch *grid.Field
}

// Sample summarizes the simulation after its latest Tick. agents is the
// number of active trajectory agents.
func (s *Sampler) Sample(sim *fluid.Simulation, agents int) (FrameStats, error) {
	vel := sim.Velocity()
	if s.scratch == nil || s.scratch.Width() != vel.Width() || s.scratch.Height() != vel.Height() {
		f, err := grid.NewField(grid.Scalar, vel.Width(), vel.Height())
		if err != nil {
			return FrameStats{}, err
		}
		s.scratch = f
	}
	fluid.Divergence(vel, s.scratch, sim.Params().Bounded)

	return FrameStats{
		Frame:         sim.Frame(),
		DivBefore:     grid.MeanAbs(sim.Divergence()),
		DivAfter:      grid.MeanAbs(s.scratch),
		MaxSpeed:      grid.MaxLen(vel),
		KineticEnergy: grid.KineticEnergy(vel),
		Agents:        agents,
		Sources:       sim.SourcesApplied(),
		Suppressed:    sim.SourcesSuppressed(),
	}, nil
}

// LogValue implements slog.LogValuer for structured logging.
func (s FrameStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("frame", s.Frame),
		slog.Float64("div_before", float64(s.DivBefore)),
		slog.Float64("div_after", float64(s.DivAfter)),
		slog.Float64("max_speed", float64(s.MaxSpeed)),
		slog.Float64("kinetic_energy", float64(s.KineticEnergy)),
		slog.Int("agents", s.Agents),
		slog.Int("sources", s.Sources),
		slog.Int("suppressed", s.Suppressed),
	)
}

// WindowStats holds aggregated statistics for a window of frames.
type WindowStats struct {
	WindowStart uint64  `csv:"-"`
	WindowEnd   uint64  `csv:"window_end"`
	SimTimeSec  float64 `csv:"sim_time"`

	// Divergence reduction ratio after/before, averaged over the window
	DivBeforeMean float64 `csv:"div_before_mean"`
	DivAfterMean  float64 `csv:"div_after_mean"`
	DivRatio      float64 `csv:"div_ratio"`

	SpeedMean float64 `csv:"max_speed_mean"`
	SpeedP50  float64 `csv:"max_speed_p50"`
	SpeedP90  float64 `csv:"max_speed_p90"`

	EnergyMean float64 `csv:"energy_mean"`
	EnergyEnd  float64 `csv:"energy_end"`

	Agents     int `csv:"agents"` // at window end
	Sources    int `csv:"sources"`
	Suppressed int `csv:"suppressed"`
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// ComputeSpeedStats returns the mean and the median and 90th percentile of
// per-frame peak speeds.
func ComputeSpeedStats(values []float64) (mean, p50, p90 float64) {
	n := len(values)
	if n == 0 {
		return 0, 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(n)

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)
	return mean, Percentile(sorted, 0.5), Percentile(sorted, 0.9)
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("window_start", s.WindowStart),
		slog.Uint64("window_end", s.WindowEnd),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Float64("div_before_mean", s.DivBeforeMean),
		slog.Float64("div_after_mean", s.DivAfterMean),
		slog.Float64("div_ratio", s.DivRatio),
		slog.Float64("max_speed_mean", s.SpeedMean),
		slog.Float64("max_speed_p90", s.SpeedP90),
		slog.Float64("energy_mean", s.EnergyMean),
		slog.Int("agents", s.Agents),
		slog.Int("sources", s.Sources),
		slog.Int("suppressed", s.Suppressed),
	)
}

// LogStats logs the window stats.
func (s WindowStats) LogStats(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("stats",
		"window_end", s.WindowEnd,
		"sim_time", s.SimTimeSec,
		"div_ratio", s.DivRatio,
		"max_speed_p90", s.SpeedP90,
		"energy", s.EnergyEnd,
		"agents", s.Agents,
		"sources", s.Sources,
	)
}
