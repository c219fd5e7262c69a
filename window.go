package main

import (
	"context"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/stablefluid/config"
	"github.com/pthm-cable/stablefluid/game"
	"github.com/pthm-cable/stablefluid/renderer"
	"github.com/pthm-cable/stablefluid/trajectory"
	"github.com/pthm-cable/stablefluid/ui"
	"github.com/pthm-cable/stablefluid/viewport"
)

const panelWidth = 320

const controlsLegend = "[move] push  [RMB] pan  [wheel] zoom  [Z] reset view  [V] field  [R] clear  [A] agents  [Tab] panel  [Space] pause  [F11] fullscreen"

// window is the raylib front end: input, presentation and the per-frame
// call into the game.
type window struct {
	g      *game.Game
	cfg    *config.Config
	vp     *viewport.Viewport
	field  *renderer.FieldRenderer
	panel  *ui.ParamPanel
	hud    *ui.HUD
	states []trajectory.State

	showAgents bool
}

func runWindow(ctx context.Context, g *game.Game, cfg *config.Config, maxTicks uint64) error {
	rl.SetConfigFlags(rl.FlagWindowResizable | rl.FlagVsyncHint)
	rl.InitWindow(int32(cfg.Screen.Width), int32(cfg.Screen.Height), cfg.Screen.Title)
	defer rl.CloseWindow()
	rl.SetTargetFPS(int32(cfg.Screen.TargetFPS))

	mode, err := renderer.ParseMode(cfg.Render.Field)
	if err != nil {
		return err
	}
	field, err := renderer.NewFieldRenderer(mode, cfg.Render.Colormap)
	if err != nil {
		return err
	}
	defer field.Unload()

	w := &window{
		g:          g,
		cfg:        cfg,
		vp:         viewport.New(float32(cfg.Screen.Width), float32(cfg.Screen.Height)),
		field:      field,
		panel:      ui.NewParamPanel(g.Surface(), ui.DefaultControls, int32(cfg.Screen.Width)-panelWidth-10, 10, panelWidth),
		hud:        ui.NewHUD(),
		showAgents: cfg.Render.ShowAgents,
	}
	if !cfg.Render.Panel {
		w.panel.Toggle()
	}

	for !rl.WindowShouldClose() {
		if ctx.Err() != nil {
			return nil
		}
		w.handleInput()

		dt := time.Duration(float64(rl.GetFrameTime()) * float64(time.Second))
		if err := g.Step(dt); err != nil {
			return err
		}

		g.BeginPresent()
		w.draw()
		g.EndPresent()

		if maxTicks > 0 && g.Frame() >= maxTicks {
			return nil
		}
	}
	return nil
}

func (w *window) handleInput() {
	w.handleResize()

	if rl.IsKeyPressed(rl.KeyF11) {
		rl.ToggleFullscreen()
	}
	if rl.IsKeyPressed(rl.KeySpace) {
		w.g.SetPaused(!w.g.Paused())
	}
	if rl.IsKeyPressed(rl.KeyTab) {
		w.panel.Toggle()
	}
	if rl.IsKeyPressed(rl.KeyV) {
		w.field.CycleMode()
	}
	if rl.IsKeyPressed(rl.KeyA) {
		w.showAgents = !w.showAgents
	}
	if rl.IsKeyPressed(rl.KeyR) {
		w.g.Sim().Reset()
	}
	if rl.IsKeyPressed(rl.KeyZ) {
		w.vp.Reset()
	}

	if wheel := rl.GetMouseWheelMove(); wheel != 0 {
		w.vp.ZoomBy(1 + wheel*0.1)
	}
	panning := rl.IsMouseButtonDown(rl.MouseButtonRight)
	if panning {
		d := rl.GetMouseDelta()
		w.vp.Pan(-d.X, -d.Y)
	}

	tracker := w.g.Pointer()
	mouse := rl.GetMousePosition()
	switch {
	case !rl.IsCursorOnScreen(), panning, w.panel.Contains(mouse.X, mouse.Y):
		// Re-anchor on return so the gap is not read as a push.
		tracker.Leave()
	default:
		tracker.MoveNDC(w.vp.ScreenToNDC(mouse.X, mouse.Y))
	}
}

// handleResize checks for window resize and propagates new dimensions.
func (w *window) handleResize() {
	if !rl.IsWindowResized() {
		return
	}
	sw, sh := rl.GetScreenWidth(), rl.GetScreenHeight()
	w.panel.Move(int32(sw)-panelWidth-10, 10)
	if w.vp.Resize(float32(sw), float32(sh)) {
		w.g.Resize(sw, sh)
	}
}

func (w *window) draw() {
	sim := w.g.Sim()
	gw, gh := sim.Size()
	w.field.Update(sim)

	rl.BeginDrawing()
	rl.ClearBackground(rl.Black)
	w.field.Draw(w.vp)

	if w.showAgents {
		w.states = w.g.Driver().Snapshot(w.states[:0])
		renderer.DrawAgents(w.states, w.vp)
	}
	if center, _, ok := w.g.Pointer().Sample(); ok {
		renderer.DrawCursor(center, sim.Params().RadiusCells(), gw, gh, w.vp)
	}

	w.hud.Draw(ui.HUDData{
		Title:  w.cfg.Screen.Title,
		Frame:  sim.Frame(),
		GridW:  gw,
		GridH:  gh,
		Field:  w.field.Mode().String(),
		FPS:    rl.GetFPS(),
		Paused: w.g.Paused(),
		Stats:  w.g.Stats(),
		Perf:   w.g.Perf().Stats(),
	})
	w.hud.DrawControls(int32(rl.GetScreenHeight()), controlsLegend)
	w.panel.Draw()
	rl.EndDrawing()
}
