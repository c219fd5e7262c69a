package ui

import (
	"fmt"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/stablefluid/telemetry"
)

// HUDData holds all the data needed to render the heads-up display.
type HUDData struct {
	Title        string
	Frame        uint64
	GridW, GridH int
	Field        string
	FPS          int32
	Paused       bool
	Stats        telemetry.FrameStats
	Perf         telemetry.PerfStats
}

// HUD renders the heads-up display.
type HUD struct {
	theme Theme
}

// NewHUD creates a new HUD renderer.
func NewHUD() *HUD {
	return &HUD{theme: DefaultTheme()}
}

// Draw renders the HUD in the top-left corner.
func (h *HUD) Draw(data HUDData) {
	t := h.theme
	rl.DrawText(data.Title, 10, 10, 20, rl.White)

	y := int32(36)
	y = t.drawLabelValue(10, y, "Grid", fmt.Sprintf("%dx%d  frame %d", data.GridW, data.GridH, data.Frame))
	y = t.drawLabelValue(10, y, "Field", data.Field)
	y = t.drawLabelValue(10, y, "Divergence", fmt.Sprintf("%.4f -> %.4f", data.Stats.DivBefore, data.Stats.DivAfter))
	y = t.drawLabelValue(10, y, "Max speed", fmt.Sprintf("%.1f cells/s", data.Stats.MaxSpeed))
	y = t.drawLabelValue(10, y, "Agents", fmt.Sprintf("%d  sources %d (%d at walls)",
		data.Stats.Agents, data.Stats.Sources, data.Stats.Suppressed))
	y = t.drawLabelValue(10, y, "Tick", fmt.Sprintf("%d us  %d fps",
		data.Perf.AvgTickDuration.Microseconds(), data.FPS))
	if data.Paused {
		rl.DrawText("PAUSED", 10, y, 16, rl.Yellow)
	}
}

// DrawControls renders the key legend at the bottom of the screen.
func (h *HUD) DrawControls(screenHeight int32, controls string) {
	rl.DrawText(controls, 10, screenHeight-25, 14, rl.Gray)
}
