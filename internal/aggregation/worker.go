package aggregation

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/Porostik/dln-dashboard/internal/domain/model"
	"github.com/Porostik/dln-dashboard/internal/metrics"
	"github.com/Porostik/dln-dashboard/internal/store"
)

const idleBackoffCeiling = 5 * time.Second

type WorkerConfig struct {
	ID           string
	BatchSize    int
	LockFor      time.Duration
	Concurrency  int
	TickInterval time.Duration
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	MaxAttempts  int
}

// Worker claims job batches, processes them with bounded fan-out, and
// persists the results in one transaction. It never talks to other workers;
// the claim query is the only coordination.
type Worker struct {
	cfg       WorkerConfig
	db        store.TxBeginner
	jobs      store.JobRepository
	events    store.OrderEventRepository
	stats     store.DayStatRepository
	processor *Processor
	logger    *slog.Logger

	sleepFn func(ctx context.Context, d time.Duration) error
	nowFn   func() time.Time
}

func NewWorker(
	cfg WorkerConfig,
	db store.TxBeginner,
	jobs store.JobRepository,
	events store.OrderEventRepository,
	stats store.DayStatRepository,
	processor *Processor,
	logger *slog.Logger,
) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		cfg:       cfg,
		db:        db,
		jobs:      jobs,
		events:    events,
		stats:     stats,
		processor: processor,
		logger:    logger.With("component", "worker", "worker_id", cfg.ID),
		sleepFn:   sleepCtx,
		nowFn:     time.Now,
	}
}

// Run loops ticks until the context is canceled. An empty queue backs the
// worker off multiplicatively up to a ceiling; any claimed batch resets the
// pace to the configured floor.
func (w *Worker) Run(ctx context.Context) error {
	pause := w.cfg.TickInterval

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		claimed, err := w.tick(ctx)
		switch {
		case err != nil:
			metrics.WorkerTicksTotal.WithLabelValues("failed").Inc()
			w.logger.Error("tick failed", "error", err)
			pause = w.cfg.TickInterval
		case claimed == 0:
			metrics.WorkerTicksTotal.WithLabelValues("idle").Inc()
			pause = time.Duration(math.Min(
				float64(pause)*1.5,
				float64(idleBackoffCeiling),
			))
		default:
			metrics.WorkerTicksTotal.WithLabelValues("processed").Inc()
			pause = w.cfg.TickInterval
		}

		if err := w.sleepFn(ctx, pause); err != nil {
			return err
		}
	}
}

type jobResult struct {
	job    model.AggregationJob
	events []*model.OrderEvent
	err    error
}

// tick claims one batch and drives it to resolution. It returns how many
// jobs were claimed. A persistence failure aborts the tick with all claimed
// jobs left processing; their leases expire and another worker reclaims.
func (w *Worker) tick(ctx context.Context) (int, error) {
	jobs, err := w.jobs.ClaimBatch(ctx, w.cfg.ID, w.cfg.BatchSize, w.cfg.LockFor, w.cfg.MaxAttempts)
	if err != nil {
		return 0, err
	}
	if len(jobs) == 0 {
		return 0, nil
	}

	start := time.Now()
	defer func() {
		metrics.JobBatchLatency.Observe(time.Since(start).Seconds())
	}()

	results := make([]jobResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.Concurrency)
	for i, job := range jobs {
		g.Go(func() error {
			events, err := w.processor.Process(gctx, job.Signature)
			results[i] = jobResult{job: job, events: events, err: err}
			return nil
		})
	}
	// Workers swallow per-job errors; the group never fails.
	_ = g.Wait()

	if err := w.persist(ctx, results); err != nil {
		return len(jobs), err
	}
	return len(jobs), nil
}

// persist writes the whole batch outcome in one transaction: events,
// day-stat deltas, then job resolutions.
func (w *Worker) persist(ctx context.Context, results []jobResult) error {
	var doneSigs, skippedSigs []string
	var allEvents []*model.OrderEvent

	for _, res := range results {
		switch {
		case res.err == nil:
			doneSigs = append(doneSigs, res.job.Signature)
			allEvents = append(allEvents, res.events...)
		case errors.Is(res.err, ErrNoEvents):
			skippedSigs = append(skippedSigs, res.job.Signature)
		}
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := w.events.InsertManyTx(ctx, tx, allEvents); err != nil {
		return err
	}

	for _, delta := range buildDeltas(allEvents) {
		if err := w.stats.ApplyDeltaTx(ctx, tx, delta); err != nil {
			return err
		}
	}

	if err := w.jobs.MarkDoneTx(ctx, tx, doneSigs); err != nil {
		return err
	}
	if err := w.jobs.MarkSkippedTx(ctx, tx, skippedSigs); err != nil {
		return err
	}

	for _, res := range results {
		if res.err == nil || errors.Is(res.err, ErrNoEvents) {
			continue
		}
		retryAt := w.nowFn().Add(w.retryDelay(res.job.Attempts))
		if err := w.jobs.MarkFailedTx(ctx, tx, res.job.Signature, retryAt); err != nil {
			return err
		}
		w.logger.Warn("job failed",
			"signature", res.job.Signature,
			"attempts", res.job.Attempts+1,
			"retry_at", retryAt,
			"error", res.err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	metrics.JobsResolvedTotal.WithLabelValues("done").Add(float64(len(doneSigs)))
	metrics.JobsResolvedTotal.WithLabelValues("skipped").Add(float64(len(skippedSigs)))
	failed := len(results) - len(doneSigs) - len(skippedSigs)
	if failed > 0 {
		metrics.JobsResolvedTotal.WithLabelValues("failed").Add(float64(failed))
	}
	for _, ev := range allEvents {
		metrics.OrderEventsTotal.WithLabelValues(string(ev.Type)).Inc()
	}
	return nil
}

// retryDelay doubles with each recorded failure, capped at the maximum.
func (w *Worker) retryDelay(priorAttempts int) time.Duration {
	delay := float64(w.cfg.BaseDelay) * math.Pow(2, float64(priorAttempts))
	if max := float64(w.cfg.MaxDelay); delay > max {
		delay = max
	}
	return time.Duration(delay)
}

// buildDeltas folds events into one commutative increment per (day, type).
func buildDeltas(events []*model.OrderEvent) []model.DayStatDelta {
	type key struct {
		day  time.Time
		kind model.EventType
	}

	sums := make(map[key]*struct {
		count  int64
		volume decimal.Decimal
	})
	var order []key

	for _, ev := range events {
		k := key{day: ev.Day, kind: ev.Type}
		entry, ok := sums[k]
		if !ok {
			entry = &struct {
				count  int64
				volume decimal.Decimal
			}{}
			sums[k] = entry
			order = append(order, k)
		}
		amount, err := decimal.NewFromString(ev.AmountUSD)
		if err != nil {
			continue
		}
		entry.count++
		entry.volume = entry.volume.Add(amount)
	}

	deltas := make([]model.DayStatDelta, 0, len(order))
	for _, k := range order {
		entry := sums[k]
		deltas = append(deltas, model.DayStatDelta{
			Day:       k.day,
			Type:      k.kind,
			Count:     entry.count,
			VolumeUSD: entry.volume.StringFixed(2),
		})
	}
	return deltas
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
