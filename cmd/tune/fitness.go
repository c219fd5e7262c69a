package main

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/pthm-cable/stablefluid/config"
	"github.com/pthm-cable/stablefluid/game"
)

// FitnessEvaluator runs headless simulations and scores a parameter
// vector by residual divergence and tick cost.
type FitnessEvaluator struct {
	params     *ParamVector
	ticks      int
	scenarios  []int // demo agent counts, one run each
	baseConfig *config.Config
	timeWeight float64 // fitness per millisecond of average tick time

	mu   sync.Mutex
	last runResult
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, ticks int, scenarios []int, baseCfg *config.Config, timeWeight float64) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:     params,
		ticks:      ticks,
		scenarios:  scenarios,
		baseConfig: baseCfg,
		timeWeight: timeWeight,
	}
}

// runResult holds the measurements from one headless run.
type runResult struct {
	residual float64 // mean div_after / div_before over sampled frames
	tickMS   float64 // average solver tick time
	failed   bool
}

// Last returns the averaged measurements of the most recent evaluation.
func (fe *FitnessEvaluator) Last() (residual, tickMS float64) {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.last.residual, fe.last.tickMS
}

// Evaluate computes fitness for raw parameter values (lower = better).
// Scenarios run in parallel, each on a serial dispatcher.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	results := make([]runResult, len(fe.scenarios))
	var wg sync.WaitGroup
	for i, agents := range fe.scenarios {
		wg.Add(1)
		go func(idx, n int) {
			defer wg.Done()
			results[idx] = fe.runSimulation(x, n)
		}(i, agents)
	}
	wg.Wait()

	var avg runResult
	for _, r := range results {
		if r.failed {
			fe.mu.Lock()
			fe.last = r
			fe.mu.Unlock()
			return math.Inf(1)
		}
		avg.residual += r.residual
		avg.tickMS += r.tickMS
	}
	n := float64(len(results))
	avg.residual /= n
	avg.tickMS /= n

	fe.mu.Lock()
	fe.last = avg
	fe.mu.Unlock()

	return avg.residual + fe.timeWeight*avg.tickMS
}

// runSimulation executes one headless run with n demo agents.
func (fe *FitnessEvaluator) runSimulation(x []float64, agents int) runResult {
	cfg := fe.copyConfig()
	cfg.Agents.Path = ""
	cfg.Agents.DemoCount = agents
	cfg.Dispatch.Backend = "serial"
	cfg.Telemetry.OutputDir = ""
	cfg.Telemetry.LogInterval = 0
	cfg.Stream.Addr = ""
	if err := fe.params.ApplyToConfig(cfg, x); err != nil {
		return runResult{failed: true}
	}

	g, err := game.NewGame(game.Options{
		Config: cfg,
		Logger: slog.New(slog.DiscardHandler),
	})
	if err != nil {
		return runResult{failed: true}
	}
	defer g.Close()

	dt := time.Duration(cfg.Solver.DT * float64(time.Second))
	var ratioSum float64
	var samples int
	for i := 0; i < fe.ticks; i++ {
		if err := g.Step(dt); err != nil {
			return runResult{failed: true}
		}
		s := g.Stats()
		if s.DivBefore > 1e-9 {
			ratioSum += float64(s.DivAfter / s.DivBefore)
			samples++
		}
	}
	if samples == 0 {
		return runResult{failed: true}
	}
	return runResult{
		residual: ratioSum / float64(samples),
		tickMS:   float64(g.Perf().Stats().AvgTickDuration) / float64(time.Millisecond),
	}
}

// copyConfig returns an independent copy of the base configuration.
func (fe *FitnessEvaluator) copyConfig() *config.Config {
	c := *fe.baseConfig
	return &c
}
