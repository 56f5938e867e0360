package aggregation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Porostik/dln-dashboard/internal/store"
)

// Pool runs a fixed set of workers until the context is canceled. Workers
// share nothing in memory; the job table coordinates them.
type Pool struct {
	workers []*Worker
	logger  *slog.Logger
}

func NewPool(
	count int,
	cfg WorkerConfig,
	db store.TxBeginner,
	jobs store.JobRepository,
	events store.OrderEventRepository,
	stats store.DayStatRepository,
	processor *Processor,
	logger *slog.Logger,
) *Pool {
	if logger == nil {
		logger = slog.Default()
	}

	runID := uuid.NewString()
	workers := make([]*Worker, 0, count)
	for i := 0; i < count; i++ {
		workerCfg := cfg
		workerCfg.ID = fmt.Sprintf("agg-worker-%s-%d", runID, i)
		workers = append(workers, NewWorker(workerCfg, db, jobs, events, stats, processor, logger))
	}

	return &Pool{workers: workers, logger: logger.With("component", "pool")}
}

func (p *Pool) Run(ctx context.Context) error {
	p.logger.Info("starting workers", "count", len(p.workers))

	g, gctx := errgroup.WithContext(ctx)
	for _, w := range p.workers {
		g.Go(func() error {
			return w.Run(gctx)
		})
	}
	return g.Wait()
}
