// Package colormap converts solver fields into RGBA pixel buffers.
package colormap

import (
	"fmt"
	"image/color"
	"math"
	"sort"

	"github.com/mazznoer/colorgrad"

	"github.com/pthm-cable/stablefluid/grid"
)

const lutSize = 256

var gradients = map[string]func() colorgrad.Gradient{
	"turbo":   colorgrad.Turbo,
	"viridis": colorgrad.Viridis,
	"inferno": colorgrad.Inferno,
	"plasma":  colorgrad.Plasma,
	"magma":   colorgrad.Magma,
	"rdbu":    colorgrad.RdBu,
	"sinebow": colorgrad.Sinebow,
}

// Names returns the available palette names, sorted.
func Names() []string {
	names := make([]string, 0, len(gradients))
	for n := range gradients {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Palette is a sampled gradient lookup table.
type Palette struct {
	name string
	lut  [lutSize]color.RGBA
}

// New samples the named gradient.
func New(name string) (*Palette, error) {
	g, ok := gradients[name]
	if !ok {
		return nil, fmt.Errorf("colormap: unknown palette %q", name)
	}
	p := &Palette{name: name}
	for i, c := range g().Colors(lutSize) {
		r, gg, b, _ := c.RGBA()
		p.lut[i] = color.RGBA{R: uint8(r >> 8), G: uint8(gg >> 8), B: uint8(b >> 8), A: 255}
	}
	return p, nil
}

// Name returns the gradient name.
func (p *Palette) Name() string { return p.name }

// At returns the color for t in [0,1]; t is clamped.
func (p *Palette) At(t float32) color.RGBA {
	if !(t > 0) {
		return p.lut[0]
	}
	if t >= 1 {
		return p.lut[lutSize-1]
	}
	return p.lut[int(t*(lutSize-1)+0.5)]
}

func grow(dst []color.RGBA, n int) []color.RGBA {
	if cap(dst) < n {
		return make([]color.RGBA, n)
	}
	return dst[:n]
}

// Velocity renders a vector field: hue from direction (via the cyclic
// palette), brightness from |v|/maxSpeed. Rows are flipped so row 0 of the
// result is the top of the domain. A maxSpeed <= 0 uses the field maximum.
func Velocity(f *grid.Field, hue *Palette, maxSpeed float32, dst []color.RGBA) []color.RGBA {
	w, h := f.Width(), f.Height()
	dst = grow(dst, w*h)
	if maxSpeed <= 0 {
		maxSpeed = grid.MaxLen(f)
	}
	for y := 0; y < h; y++ {
		row := (h - 1 - y) * w
		for x := 0; x < w; x++ {
			v := f.At(x, y)
			l := v.Len()
			if l == 0 || maxSpeed == 0 {
				dst[row+x] = color.RGBA{A: 255}
				continue
			}
			angle := math.Atan2(float64(v.Y), float64(v.X))
			c := hue.At(float32(angle/(2*math.Pi) + 0.5))
			k := l / maxSpeed
			if k > 1 {
				k = 1
			}
			dst[row+x] = color.RGBA{
				R: uint8(float32(c.R) * k),
				G: uint8(float32(c.G) * k),
				B: uint8(float32(c.B) * k),
				A: 255,
			}
		}
	}
	return dst
}

// Scalar renders the first component of f mapped from [lo, hi]. When
// lo == hi the range is taken symmetric around zero from the field's
// largest magnitude.
func Scalar(f *grid.Field, pal *Palette, lo, hi float32, dst []color.RGBA) []color.RGBA {
	w, h := f.Width(), f.Height()
	dst = grow(dst, w*h)
	if lo == hi {
		var m float32
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				if a := float32(math.Abs(float64(f.Scalar(x, y)))); a > m {
					m = a
				}
			}
		}
		if m == 0 {
			m = 1
		}
		lo, hi = -m, m
	}
	span := hi - lo
	for y := 0; y < h; y++ {
		row := (h - 1 - y) * w
		for x := 0; x < w; x++ {
			dst[row+x] = pal.At((f.Scalar(x, y) - lo) / span)
		}
	}
	return dst
}
