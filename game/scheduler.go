package game

import (
	"context"
	"time"
)

// Scheduler drives a Game without a window. Ticks are issued from a single
// goroutine; cancellation stops scheduling but never interrupts a frame.
type Scheduler struct {
	Game *Game
	// Interval between ticks. Zero runs ticks back to back.
	Interval time.Duration
	// MaxTicks stops the run after this many frames. Zero is unlimited.
	MaxTicks uint64
	// FrameDT is the wall time reported to Step for playback and pointer
	// decay. Zero uses Interval, or the solver time step when Interval is
	// zero too.
	FrameDT time.Duration
}

func (s *Scheduler) frameDT() time.Duration {
	switch {
	case s.FrameDT > 0:
		return s.FrameDT
	case s.Interval > 0:
		return s.Interval
	default:
		return time.Duration(float64(s.Game.Sim().Params().DT) * float64(time.Second))
	}
}

func (s *Scheduler) done() bool {
	return s.MaxTicks > 0 && s.Game.Frame() >= s.MaxTicks
}

// Run ticks until ctx is cancelled, MaxTicks is reached or a frame fails.
// Reaching MaxTicks or cancellation returns nil.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.Interval <= 0 {
		for !s.done() {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			if err := s.Game.Step(s.frameDT()); err != nil {
				return err
			}
		}
		return nil
	}

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for !s.done() {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.Game.Step(s.frameDT()); err != nil {
				return err
			}
		}
	}
	return nil
}
