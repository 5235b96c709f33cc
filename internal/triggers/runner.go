package triggers

import (
	"context"
	"time"

	"github.com/madara-alliance/orchestrator-go/internal/common"
)

// Runner drives a set of Triggers on a fixed interval, grounded on the
// teacher's startPriceScheduler ticker loop (internal/app/scheduler.go).
type Runner struct {
	Triggers []Trigger
	Interval time.Duration
	Logger   *common.Logger
}

// Run blocks, firing one discovery pass per Trigger every Interval, until
// ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	interval := r.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if r.Logger != nil {
				r.Logger.Info().Msg("trigger runner: stopped")
			}
			return
		case <-ticker.C:
			r.runOnce(ctx)
		}
	}
}

func (r *Runner) runOnce(ctx context.Context) {
	for _, t := range r.Triggers {
		if err := t.Run(ctx); err != nil {
			if r.Logger != nil {
				r.Logger.Error().Msgf("trigger runner: %s failed: %v", t.Name(), err)
			}
			continue
		}
		if r.Logger != nil {
			r.Logger.Debug().Msgf("trigger runner: %s completed", t.Name())
		}
	}
}
