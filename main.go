package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pthm-cable/stablefluid/config"
	"github.com/pthm-cable/stablefluid/game"
	"github.com/pthm-cable/stablefluid/renderer"
)

// setFlags collects repeated --set name=value arguments.
type setFlags []string

func (s *setFlags) String() string { return strings.Join(*s, ",") }

func (s *setFlags) Set(v string) error {
	if !strings.Contains(v, "=") {
		return fmt.Errorf("expected name=value, got %q", v)
	}
	*s = append(*s, v)
	return nil
}

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	headless := flag.Bool("headless", false, "Run without a window")
	realtime := flag.Bool("realtime", false, "Pace headless ticks at screen.target_fps")
	maxTicks := flag.Uint64("max-ticks", 0, "Stop after N frames (0 = unlimited)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	trajectoryPath := flag.String("trajectory", "", "Trajectory JSON file (overrides agents.path)")
	serve := flag.String("serve", "", "Websocket listen address for frame streaming, e.g. :8080")
	debug := flag.Bool("debug", false, "Enable debug logging")
	var sets setFlags
	flag.Var(&sets, "set", "Override a solver parameter, name=value (repeatable)")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()
	if _, err := renderer.ParseMode(cfg.Render.Field); err != nil && !*headless {
		slog.Error("invalid render config", "error", err)
		os.Exit(1)
	}

	g, err := game.NewGame(game.Options{
		Config:     cfg,
		Logger:     logger,
		Trajectory: *trajectoryPath,
		OutputDir:  *outputDir,
		ServeAddr:  *serve,
		Windowed:   !*headless,
	})
	if err != nil {
		slog.Error("startup failed", "error", err)
		os.Exit(1)
	}

	// Rejected overrides are logged by the surface and the defaults stay.
	for _, kv := range sets {
		name, value, _ := strings.Cut(kv, "=")
		_ = g.Surface().Set(name, value)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g.Start(ctx)

	if *headless {
		s := &game.Scheduler{Game: g, MaxTicks: *maxTicks}
		if *realtime {
			s.Interval = cfg.Derived.FrameTime
		}
		slog.Info("starting headless simulation", "max_ticks", *maxTicks, "realtime", *realtime)
		err = s.Run(ctx)
	} else {
		err = runWindow(ctx, g, cfg, *maxTicks)
	}

	if cerr := g.Close(); cerr != nil {
		slog.Error("shutdown failed", "error", cerr)
	}
	if err != nil {
		slog.Error("simulation stopped", "error", err, "frame", g.Frame())
		os.Exit(1)
	}
	slog.Info("simulation finished", "frame", g.Frame())
}
