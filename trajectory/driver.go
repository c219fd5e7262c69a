package trajectory

import (
	"math"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/stablefluid/components"
	"github.com/pthm-cable/stablefluid/fluid"
	"github.com/pthm-cable/stablefluid/grid"
)

// State is a read-only copy of one agent for presentation.
type State struct {
	ID     int
	Active bool
	Pos    grid.Vec2
	Prev   grid.Vec2
}

// Driver plays a collection back: every Update places each agent at its
// interpolated position for the current loop time.
type Driver struct {
	world  *ecs.World
	mapper *ecs.Map3[components.Agent, components.Track, components.Motion]
	filter *ecs.Filter3[components.Agent, components.Track, components.Motion]

	coll    *Collection
	speed   float64
	elapsed float64
	lastT   float64
	active  int
}

// NewDriver creates a driver for c. speed scales elapsed time into
// trajectory time; values <= 0 use 1.
func NewDriver(c *Collection, speed float64) *Driver {
	d := &Driver{}
	d.SetSpeed(speed)
	d.Rebuild(c)
	return d
}

// Rebuild replaces the collection and recreates every agent inactive.
// Elapsed time restarts at zero.
func (d *Driver) Rebuild(c *Collection) {
	world := ecs.NewWorld()
	d.world = world
	d.mapper = ecs.NewMap3[components.Agent, components.Track, components.Motion](world)
	d.filter = ecs.NewFilter3[components.Agent, components.Track, components.Motion](world)
	d.coll = c
	d.elapsed = 0
	d.lastT = 0
	d.active = 0

	if c == nil {
		return
	}
	for _, a := range c.Agents {
		agent := components.Agent{ID: a.ID}
		track := components.Track{Keys: a.Keyframes}
		motion := components.Motion{}
		d.mapper.NewEntity(&agent, &track, &motion)
	}
}

// Collection returns the collection being played.
func (d *Driver) Collection() *Collection { return d.coll }

// SetSpeed sets the playback rate.
func (d *Driver) SetSpeed(speed float64) {
	if !(speed > 0) || math.IsInf(speed, 0) {
		speed = 1
	}
	d.speed = speed
}

// Elapsed returns the accumulated wall time in seconds.
func (d *Driver) Elapsed() float64 { return d.elapsed }

// LoopTime returns the current trajectory time, elapsed×speed modulo the
// loop duration.
func (d *Driver) LoopTime() float64 {
	if d.coll == nil || !(d.coll.Duration > 0) {
		return 0
	}
	t := math.Mod(d.elapsed*d.speed, d.coll.Duration)
	if t < 0 {
		t += d.coll.Duration
	}
	return t
}

// Active returns how many agents were active after the last Update.
func (d *Driver) Active() int { return d.active }

// Advance adds dt seconds and updates every agent.
func (d *Driver) Advance(dt float64) {
	if dt > 0 && !math.IsInf(dt, 0) {
		d.elapsed += dt
	}
	d.Update()
}

// Update evaluates every agent at the current loop time.
func (d *Driver) Update() {
	if d.coll == nil {
		return
	}
	t := d.LoopTime()
	// Jumping back to the start of the loop is not a displacement.
	wrapped := t < d.lastT
	d.lastT = t
	bounds := d.coll.Bounds
	d.active = 0

	query := d.filter.Query()
	for query.Next() {
		agent, track, motion := query.Get()

		if !track.Keys.Covers(t) {
			motion.Prev = motion.Pos
			agent.Active = false
			continue
		}
		world := track.Keys.Sample(t)
		if !bounds.Contains(world) {
			motion.Prev = motion.Pos
			agent.Active = false
			continue
		}

		pos := toNDC(world, bounds)
		if agent.Active && !wrapped {
			motion.Prev = motion.Pos
		} else {
			motion.Prev = pos
		}
		motion.Pos = pos
		agent.Active = true
		d.active++
	}
}

// Sources appends a force source for every active agent that moved. The
// displacement since the last update is scaled by gain into velocity on a
// w×h grid.
func (d *Driver) Sources(dst []fluid.Source, gain, radius float32, w, h int) []fluid.Source {
	query := d.filter.Query()
	for query.Next() {
		agent, _, motion := query.Get()
		if !agent.Active {
			continue
		}
		delta := motion.Delta()
		if delta == (grid.Vec2{}) || !delta.Finite() {
			continue
		}
		dst = append(dst, fluid.SourceFromNDC(motion.Pos, delta, gain, radius, w, h))
	}
	return dst
}

// Snapshot appends the state of every agent to dst.
func (d *Driver) Snapshot(dst []State) []State {
	query := d.filter.Query()
	for query.Next() {
		agent, _, motion := query.Get()
		dst = append(dst, State{
			ID:     agent.ID,
			Active: agent.Active,
			Pos:    motion.Pos,
			Prev:   motion.Prev,
		})
	}
	return dst
}

// toNDC maps a world position inside b to [-1, 1] per axis.
func toNDC(p r2.Vec, b Bounds) grid.Vec2 {
	size := r2.Sub(b.Box().Max, b.Box().Min)
	rel := r2.Sub(p, b.Box().Min)
	return grid.Vec2{
		X: float32(2*rel.X/size.X - 1),
		Y: float32(2*rel.Y/size.Y - 1),
	}
}
