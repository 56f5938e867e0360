package indexing

import (
	"context"
	"log/slog"
	"time"
)

// RunnerConfig controls how the runner paces its sources.
type RunnerConfig struct {
	// TickInterval is the pause after a tick that made progress.
	TickInterval time.Duration
	// IdleInterval is the pause when every source came back empty.
	IdleInterval time.Duration
}

// Runner round-robins a set of sources, pacing them by whether the last
// round made progress. Exhausted sources drop out; the runner returns once
// every source has stopped or the context is canceled.
type Runner struct {
	cfg     RunnerConfig
	sources []*Source
	logger  *slog.Logger

	sleepFn func(ctx context.Context, d time.Duration) error
}

func NewRunner(cfg RunnerConfig, sources []*Source, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		cfg:     cfg,
		sources: sources,
		logger:  logger.With("component", "runner"),
		sleepFn: sleepCtx,
	}
}

func (r *Runner) Run(ctx context.Context) error {
	for _, src := range r.sources {
		if err := src.Init(ctx); err != nil {
			return err
		}
	}

	active := make([]*Source, 0, len(r.sources))
	for _, src := range r.sources {
		if !src.Stopped() {
			active = append(active, src)
		}
	}

	for len(active) > 0 {
		progressed := false
		next := active[:0]

		for _, src := range active {
			if err := ctx.Err(); err != nil {
				return err
			}

			result := src.Tick(ctx)
			switch result.Status {
			case TickProcessed:
				progressed = true
				next = append(next, src)
			case TickExhausted:
				r.logger.Info("source finished",
					"program", src.ProgramID(),
					"mode", src.Mode())
			default:
				next = append(next, src)
			}
		}
		active = next

		if len(active) == 0 {
			break
		}

		pause := r.cfg.IdleInterval
		if progressed {
			pause = r.cfg.TickInterval
		}
		if err := r.sleepFn(ctx, pause); err != nil {
			return err
		}
	}

	r.logger.Info("all sources stopped")
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
