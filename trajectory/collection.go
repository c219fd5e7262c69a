// Package trajectory loads recorded multi-agent timelines and drives them
// as moving force sources.
package trajectory

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/stablefluid/components"
)

// ErrInvalid wraps every validation failure of a collection.
var ErrInvalid = errors.New("trajectory: invalid collection")

// Bounds is the world rectangle agents move in.
type Bounds struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// Box returns the bounds as a gonum box.
func (b Bounds) Box() r2.Box {
	return r2.Box{Min: r2.Vec{X: b.MinX, Y: b.MinY}, Max: r2.Vec{X: b.MaxX, Y: b.MaxY}}
}

// Contains reports whether p lies inside the bounds, edges included.
func (b Bounds) Contains(p r2.Vec) bool {
	return p.X >= b.MinX && p.X <= b.MaxX && p.Y >= b.MinY && p.Y <= b.MaxY
}

func (b Bounds) empty() bool {
	return b.MinX == 0 && b.MinY == 0 && b.MaxX == 0 && b.MaxY == 0
}

// AgentTrack is one agent's recorded keyframes.
type AgentTrack struct {
	ID        int                  `json:"id"`
	Keyframes components.Keyframes `json:"keyframes"`
}

// Collection is a loaded trajectory set. It is not modified after Load.
type Collection struct {
	// SampleDT is the recording interval in seconds.
	SampleDT float64 `json:"sample_dt"`
	// Duration is the loop length in seconds.
	Duration float64      `json:"duration"`
	Bounds   Bounds       `json:"bounds"`
	Agents   []AgentTrack `json:"agents"`
}

// Load decodes and validates a collection.
func Load(r io.Reader) (*Collection, error) {
	var c Collection
	if err := json.NewDecoder(r).Decode(&c); err != nil {
		return nil, fmt.Errorf("decode trajectory: %w", err)
	}
	if err := c.normalize(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadFile reads a collection from disk.
func LoadFile(path string) (*Collection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trajectory: %w", err)
	}
	defer f.Close()

	c, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Save writes the collection as indented JSON and returns the file path.
func Save(c *Collection, dir, name string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create trajectory dir: %w", err)
	}
	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal trajectory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write trajectory: %w", err)
	}
	return path, nil
}

// normalize sorts and de-duplicates keyframes, derives missing metadata
// and rejects anything the driver cannot use.
func (c *Collection) normalize() error {
	seen := make(map[int]bool, len(c.Agents))
	var lastT float64
	box := r2.Box{
		Min: r2.Vec{X: math.Inf(1), Y: math.Inf(1)},
		Max: r2.Vec{X: math.Inf(-1), Y: math.Inf(-1)},
	}

	for i := range c.Agents {
		a := &c.Agents[i]
		if seen[a.ID] {
			return fmt.Errorf("%w: duplicate agent id %d", ErrInvalid, a.ID)
		}
		seen[a.ID] = true

		for _, k := range a.Keyframes {
			if !finite(k.T) || !finite(k.X) || !finite(k.Y) {
				return fmt.Errorf("%w: agent %d has a non-finite keyframe", ErrInvalid, a.ID)
			}
		}
		a.Keyframes = dedupe(a.Keyframes)
		if len(a.Keyframes) == 0 {
			return fmt.Errorf("%w: agent %d has no keyframes", ErrInvalid, a.ID)
		}
		for _, k := range a.Keyframes {
			box.Min.X = min(box.Min.X, k.X)
			box.Min.Y = min(box.Min.Y, k.Y)
			box.Max.X = max(box.Max.X, k.X)
			box.Max.Y = max(box.Max.Y, k.Y)
		}
		_, end := a.Keyframes.Span()
		lastT = max(lastT, end)
	}

	if c.Duration == 0 {
		c.Duration = lastT
	}
	if !(c.Duration > 0) || !finite(c.Duration) {
		return fmt.Errorf("%w: duration %g must be positive", ErrInvalid, c.Duration)
	}
	if c.SampleDT < 0 || !finite(c.SampleDT) {
		return fmt.Errorf("%w: sample_dt %g", ErrInvalid, c.SampleDT)
	}
	if c.Bounds.empty() && len(c.Agents) > 0 {
		c.Bounds = Bounds{MinX: box.Min.X, MinY: box.Min.Y, MaxX: box.Max.X, MaxY: box.Max.Y}
	}
	b := c.Bounds
	if !(b.MaxX > b.MinX) || !(b.MaxY > b.MinY) {
		return fmt.Errorf("%w: degenerate bounds %+v", ErrInvalid, b)
	}
	return nil
}

// dedupe sorts keyframes by time and keeps the last of any equal times.
func dedupe(k components.Keyframes) components.Keyframes {
	sort.SliceStable(k, func(i, j int) bool { return k[i].T < k[j].T })
	out := k[:0]
	for _, kf := range k {
		if n := len(out); n > 0 && out[n-1].T == kf.T {
			out[n-1] = kf
			continue
		}
		out = append(out, kf)
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Demo builds a collection of n agents orbiting the center of a 100×100
// world on staggered ellipses, sampled every sampleDT over duration.
func Demo(n int, duration, sampleDT float64) *Collection {
	if !(sampleDT > 0) {
		sampleDT = duration / 100
	}
	c := &Collection{
		SampleDT: sampleDT,
		Duration: duration,
		Bounds:   Bounds{MinX: 0, MinY: 0, MaxX: 100, MaxY: 100},
	}
	steps := int(duration/sampleDT) + 1
	for i := 0; i < n; i++ {
		phase := 2 * math.Pi * float64(i) / float64(max(n, 1))
		rx := 20 + 20*float64(i%3)/2
		ry := 15 + 10*float64(i%2)
		track := AgentTrack{ID: i, Keyframes: make(components.Keyframes, 0, steps)}
		for s := 0; s < steps; s++ {
			t := min(float64(s)*sampleDT, duration)
			a := phase + 2*math.Pi*t/duration
			track.Keyframes = append(track.Keyframes, components.Keyframe{
				T: t,
				X: 50 + rx*math.Cos(a),
				Y: 50 + ry*math.Sin(a),
			})
		}
		track.Keyframes = dedupe(track.Keyframes)
		c.Agents = append(c.Agents, track)
	}
	return c
}
