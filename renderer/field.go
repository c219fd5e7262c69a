// Package renderer presents the simulation with raylib.
package renderer

import (
	"fmt"
	"image/color"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/stablefluid/colormap"
	"github.com/pthm-cable/stablefluid/fluid"
	"github.com/pthm-cable/stablefluid/grid"
	"github.com/pthm-cable/stablefluid/viewport"
)

// Mode selects which field is displayed.
type Mode uint8

const (
	ModeVelocity Mode = iota
	ModePressure
	ModeDivergence
	modeCount
)

func (m Mode) String() string {
	switch m {
	case ModeVelocity:
		return "velocity"
	case ModePressure:
		return "pressure"
	case ModeDivergence:
		return "divergence"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	for m := Mode(0); m < modeCount; m++ {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("renderer: unknown field %q", s)
}

// FieldRenderer uploads one solver field per frame into a texture and
// draws the visible part of it to the screen.
type FieldRenderer struct {
	mode   Mode
	hue    *colormap.Palette
	scalar *colormap.Palette

	tex        rl.Texture2D
	texW, texH int
	pixels     []color.RGBA

	initialized bool
}

// NewFieldRenderer creates a renderer. palette is used for the scalar
// fields; velocity always uses a cyclic hue wheel.
func NewFieldRenderer(mode Mode, palette string) (*FieldRenderer, error) {
	scalar, err := colormap.New(palette)
	if err != nil {
		return nil, err
	}
	hue, err := colormap.New("sinebow")
	if err != nil {
		return nil, err
	}
	return &FieldRenderer{mode: mode, hue: hue, scalar: scalar}, nil
}

// Mode returns the displayed field.
func (r *FieldRenderer) Mode() Mode { return r.mode }

// CycleMode switches to the next field.
func (r *FieldRenderer) CycleMode() {
	r.mode = (r.mode + 1) % modeCount
}

// init (re)creates the texture. Must be called after the window is open.
func (r *FieldRenderer) init(w, h int) {
	if r.initialized {
		rl.UnloadTexture(r.tex)
	}
	img := rl.GenImageColor(w, h, rl.Black)
	r.tex = rl.LoadTextureFromImage(img)
	rl.SetTextureFilter(r.tex, rl.FilterBilinear)
	rl.SetTextureWrap(r.tex, rl.WrapClamp)
	rl.UnloadImage(img)

	r.texW, r.texH = w, h
	r.initialized = true
}

// Update converts the selected field to pixels and uploads them. A grid
// resize recreates the texture.
func (r *FieldRenderer) Update(sim *fluid.Simulation) {
	var f *grid.Field
	switch r.mode {
	case ModePressure:
		f = sim.Pressure()
	case ModeDivergence:
		f = sim.Divergence()
	default:
		f = sim.Velocity()
	}
	if !r.initialized || f.Width() != r.texW || f.Height() != r.texH {
		r.init(f.Width(), f.Height())
	}

	if r.mode == ModeVelocity {
		r.pixels = colormap.Velocity(f, r.hue, 0, r.pixels)
	} else {
		r.pixels = colormap.Scalar(f, r.scalar, 0, 0, r.pixels)
	}
	rl.UpdateTexture(r.tex, r.pixels)
}

// Draw renders the visible part of the field to fill the screen.
func (r *FieldRenderer) Draw(vp *viewport.Viewport) {
	if !r.initialized {
		return
	}
	minX, minY, maxX, maxY := vp.VisibleBounds()
	tw, th := float32(r.texW), float32(r.texH)
	src := rl.Rectangle{
		X:      minX * tw,
		Y:      (1 - maxY) * th,
		Width:  (maxX - minX) * tw,
		Height: (maxY - minY) * th,
	}
	dst := rl.Rectangle{Width: vp.ScreenW, Height: vp.ScreenH}
	rl.DrawTexturePro(r.tex, src, dst, rl.Vector2{}, 0, rl.White)
}

// Unload frees GPU resources.
func (r *FieldRenderer) Unload() {
	if !r.initialized {
		return
	}
	rl.UnloadTexture(r.tex)
	r.initialized = false
}
