package ui

import (
	"errors"
	"fmt"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/stablefluid/config"
	"github.com/pthm-cable/stablefluid/fluid"
)

// ControlKind specifies how a parameter is edited.
type ControlKind int

const (
	ControlSlider    ControlKind = iota // continuous value
	ControlIntSlider                    // value rounded to an integer
	ControlToggle                       // checkbox
	ControlChoice                       // button cycling through Choices
)

// Control describes one widget bound to a named parameter on the surface.
type Control struct {
	Name     string
	Label    string
	Kind     ControlKind
	Min, Max float32
	Choices  []string
}

// DefaultControls binds every solver parameter. Slider ranges are the
// interactive ranges; the surface still validates each value.
var DefaultControls = []Control{
	{Name: "iterations_poisson", Label: "Poisson iterations", Kind: ControlIntSlider, Min: 1, Max: 100},
	{Name: "iterations_viscous", Label: "Viscous iterations", Kind: ControlIntSlider, Min: 1, Max: 100},
	{Name: "mouse_force", Label: "Force", Kind: ControlSlider, Min: 0, Max: 200},
	{Name: "cursor_size", Label: "Cursor size", Kind: ControlSlider, Min: 10, Max: 200},
	{Name: "resolution", Label: "Resolution", Kind: ControlSlider, Min: 0.1, Max: 1},
	{Name: "viscous", Label: "Viscosity", Kind: ControlSlider, Min: 0, Max: 500},
	{Name: "dt", Label: "Time step", Kind: ControlSlider, Min: 0.001, Max: 0.05},
	{Name: "bfecc_clamp", Label: "BFECC clamp", Kind: ControlSlider, Min: 0, Max: 4},
	{Name: "edge_margin", Label: "Edge margin", Kind: ControlSlider, Min: 0, Max: 8},
	{Name: "falloff", Label: "Falloff", Kind: ControlChoice,
		Choices: []string{fluid.Quadratic.String(), fluid.Gaussian.String(), fluid.Smooth.String()}},
	{Name: "isViscous", Label: "Viscosity enabled", Kind: ControlToggle},
	{Name: "isBounce", Label: "Bounded walls", Kind: ControlToggle},
	{Name: "BFECC", Label: "BFECC", Kind: ControlToggle},
}

// ParamPanel draws raygui widgets for a set of controls and writes edits
// to a config.Surface. Values are read back from the surface every frame,
// so edits from other producers show up immediately.
type ParamPanel struct {
	theme    Theme
	controls []Control
	surface  *config.Surface
	x, y     int32
	width    int32
	visible  bool
	lastWarn string
}

// NewParamPanel creates a panel at (x, y).
func NewParamPanel(surface *config.Surface, controls []Control, x, y, width int32) *ParamPanel {
	return &ParamPanel{
		theme:    DefaultTheme(),
		controls: controls,
		surface:  surface,
		x:        x,
		y:        y,
		width:    width,
		visible:  true,
	}
}

// Move places the panel's top-left corner at (x, y).
func (p *ParamPanel) Move(x, y int32) {
	p.x, p.y = x, y
}

// Toggle switches panel visibility.
func (p *ParamPanel) Toggle() bool {
	p.visible = !p.visible
	return p.visible
}

// IsVisible returns whether the panel is shown.
func (p *ParamPanel) IsVisible() bool { return p.visible }

// Contains reports whether a screen position is over the panel, so the
// caller can keep pointer drags on widgets from pushing the fluid.
func (p *ParamPanel) Contains(sx, sy float32) bool {
	if !p.visible {
		return false
	}
	return sx >= float32(p.x) && sx < float32(p.x+p.width) &&
		sy >= float32(p.y) && sy < float32(p.y+p.height())
}

func (p *ParamPanel) height() int32 {
	t := p.theme
	h := t.Padding*2 + t.LineHeight + int32(len(p.controls))*t.LineHeight
	if p.lastWarn != "" {
		h += t.LineHeight
	}
	return h
}

// Draw renders the panel and applies any edits.
func (p *ParamPanel) Draw() {
	if !p.visible {
		return
	}
	t := p.theme
	t.drawPanel(p.x, p.y, p.width, p.height())

	x := p.x + t.Padding
	y := p.y + t.Padding
	rl.DrawText("Solver", x, y, t.HeaderFontSize, t.SectionHeader)
	y += t.LineHeight

	widgetX := float32(x + t.LabelWidth)
	widgetW := float32(p.width - t.LabelWidth - t.Padding*2 - 50)
	for _, c := range p.controls {
		cur, ok := p.surface.Get(c.Name)
		if !ok {
			continue
		}
		rl.DrawText(c.Label, x, y+1, t.FontSize, t.LabelColor)
		bounds := rl.Rectangle{X: widgetX, Y: float32(y), Width: widgetW, Height: float32(t.SliderHeight)}

		switch c.Kind {
		case ControlToggle:
			box := rl.Rectangle{X: widgetX, Y: float32(y), Width: float32(t.SliderHeight), Height: float32(t.SliderHeight)}
			if next := gui.CheckBox(box, "", cur != 0); next != (cur != 0) {
				p.set(c.Name, next)
			}
		case ControlChoice:
			idx := int(cur)
			if idx < 0 || idx >= len(c.Choices) {
				idx = 0
			}
			if gui.Button(bounds, c.Choices[idx]) {
				p.set(c.Name, c.Choices[(idx+1)%len(c.Choices)])
			}
		default:
			next := gui.SliderBar(bounds, "", "", float32(cur), c.Min, c.Max)
			text := fmt.Sprintf("%.3g", cur)
			if c.Kind == ControlIntSlider {
				next = float32(int(next + 0.5))
				text = fmt.Sprintf("%d", int(cur))
			}
			rl.DrawText(text, int32(widgetX+widgetW)+6, y+1, t.FontSize, t.ValueColor)
			if float64(next) != cur {
				p.set(c.Name, next)
			}
		}
		y += t.LineHeight
	}

	if p.lastWarn != "" {
		rl.DrawText(p.lastWarn, x, y, t.FontSize, t.WarnColor)
	}
}

func (p *ParamPanel) set(name string, value any) {
	err := p.surface.Set(name, value)
	var w *config.Warning
	switch {
	case errors.As(err, &w):
		p.lastWarn = fmt.Sprintf("%s: %s", w.Name, w.Reason)
	case err == nil:
		p.lastWarn = ""
	}
}
