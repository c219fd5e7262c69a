package telemetry

// Collector accumulates FrameStats within fixed-size windows and produces
// WindowStats.
type Collector struct {
	windowTicks int
	dt          float32

	windowStart uint64
	last        FrameStats

	frames     int
	divBefore  float64
	divAfter   float64
	energy     float64
	speeds     []float64
	sources    int
	suppressed int
}

// NewCollector creates a collector that flushes every windowTicks frames.
// dt is the solver time step, used for the simulated time column.
func NewCollector(windowTicks int, dt float32) *Collector {
	if windowTicks < 1 {
		windowTicks = 1
	}
	return &Collector{
		windowTicks: windowTicks,
		dt:          dt,
		speeds:      make([]float64, 0, windowTicks),
	}
}

// SetDT updates the time step after a parameter change.
func (c *Collector) SetDT(dt float32) { c.dt = dt }

// Record adds one frame to the current window.
func (c *Collector) Record(s FrameStats) {
	if c.frames == 0 && s.Frame > 0 {
		c.windowStart = s.Frame - 1
	}
	c.frames++
	c.divBefore += float64(s.DivBefore)
	c.divAfter += float64(s.DivAfter)
	c.energy += float64(s.KineticEnergy)
	c.speeds = append(c.speeds, float64(s.MaxSpeed))
	c.sources += s.Sources
	c.suppressed += s.Suppressed
	c.last = s
}

// ShouldFlush returns true once the window holds windowTicks frames.
func (c *Collector) ShouldFlush() bool {
	return c.frames >= c.windowTicks
}

// Flush produces a WindowStats and resets the window. Flushing an empty
// window returns the zero value.
func (c *Collector) Flush() WindowStats {
	if c.frames == 0 {
		return WindowStats{}
	}
	n := float64(c.frames)
	before, after := c.divBefore/n, c.divAfter/n
	var ratio float64
	if before > 0 {
		ratio = after / before
	}
	mean, p50, p90 := ComputeSpeedStats(c.speeds)

	stats := WindowStats{
		WindowStart:   c.windowStart,
		WindowEnd:     c.last.Frame,
		SimTimeSec:    float64(c.last.Frame) * float64(c.dt),
		DivBeforeMean: before,
		DivAfterMean:  after,
		DivRatio:      ratio,
		SpeedMean:     mean,
		SpeedP50:      p50,
		SpeedP90:      p90,
		EnergyMean:    c.energy / n,
		EnergyEnd:     float64(c.last.KineticEnergy),
		Agents:        c.last.Agents,
		Sources:       c.sources,
		Suppressed:    c.suppressed,
	}

	c.windowStart = c.last.Frame
	c.frames = 0
	c.divBefore, c.divAfter, c.energy = 0, 0, 0
	c.speeds = c.speeds[:0]
	c.sources, c.suppressed = 0, 0
	return stats
}

// WindowTicks returns the number of frames per window.
func (c *Collector) WindowTicks() int { return c.windowTicks }
