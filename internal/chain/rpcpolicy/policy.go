package rpcpolicy

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"golang.org/x/time/rate"

	"github.com/Porostik/dln-dashboard/internal/metrics"
)

// MethodClass partitions RPC traffic so heavy methods cannot starve light
// ones. Each class gets its own concurrency gate and throttle.
type MethodClass string

const (
	MethodSignatures       MethodClass = "sig"
	MethodTransaction      MethodClass = "tx"
	MethodTransactionBatch MethodClass = "batchTx"
)

type ClassConfig struct {
	Concurrency int
	MinInterval time.Duration
}

type Config struct {
	Classes     map[MethodClass]ClassConfig
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

type classState struct {
	slots   chan struct{}
	limiter *rate.Limiter
}

// Policy serializes, throttles and retries RPC calls. The wrapped function
// runs at most MaxAttempts times; only transient failures are retried.
type Policy struct {
	classes     map[MethodClass]*classState
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	logger      *slog.Logger

	// test hooks
	sleepFn  func(ctx context.Context, d time.Duration) error
	jitterFn func() float64
}

func New(cfg Config, logger *slog.Logger) *Policy {
	if logger == nil {
		logger = slog.Default()
	}
	classes := make(map[MethodClass]*classState, len(cfg.Classes))
	for class, cc := range cfg.Classes {
		concurrency := cc.Concurrency
		if concurrency < 1 {
			concurrency = 1
		}
		limiter := rate.NewLimiter(rate.Inf, 1)
		if cc.MinInterval > 0 {
			limiter = rate.NewLimiter(rate.Every(cc.MinInterval), 1)
		}
		classes[class] = &classState{
			slots:   make(chan struct{}, concurrency),
			limiter: limiter,
		}
	}
	return &Policy{
		classes:     classes,
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.BaseDelay,
		maxDelay:    cfg.MaxDelay,
		logger:      logger.With("component", "rpc_policy"),
		sleepFn:     sleepCtx,
		jitterFn:    rand.Float64,
	}
}

// Run executes fn under the class gate with retries. It returns the last
// error once attempts are exhausted or a terminal failure occurs.
func (p *Policy) Run(ctx context.Context, class MethodClass, fn func(context.Context) error) error {
	state, ok := p.classes[class]
	if !ok {
		return fmt.Errorf("rpc policy: unknown method class %q", class)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case state.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-state.slots }()

	start := time.Now()
	defer func() {
		metrics.RPCCallLatency.WithLabelValues(string(class)).Observe(time.Since(start).Seconds())
	}()

	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if !state.limiter.Allow() {
			metrics.RPCThrottleWaits.WithLabelValues(string(class)).Inc()
			if err := state.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		err := fn(ctx)
		if err == nil {
			metrics.RPCCallsTotal.WithLabelValues(string(class), "ok").Inc()
			return nil
		}
		lastErr = err

		decision := Classify(err)
		if !decision.Retryable() {
			metrics.RPCCallsTotal.WithLabelValues(string(class), "terminal").Inc()
			p.logger.Warn("rpc call failed terminally",
				"class", class,
				"reason", decision.Reason,
				"error", err)
			return err
		}
		metrics.RPCCallsTotal.WithLabelValues(string(class), "transient").Inc()

		if attempt == p.maxAttempts {
			break
		}

		delay := p.backoff(attempt)
		metrics.RPCRetriesTotal.WithLabelValues(string(class)).Inc()
		p.logger.Debug("rpc call retrying",
			"class", class,
			"attempt", attempt,
			"delay", delay,
			"reason", decision.Reason)
		if err := p.sleepFn(ctx, delay); err != nil {
			return err
		}
	}

	return fmt.Errorf("rpc policy: %d attempts exhausted: %w", p.maxAttempts, lastErr)
}

// backoff doubles the base delay per attempt, caps it at maxDelay, and
// spreads calls with a multiplicative jitter of up to 20% either way.
func (p *Policy) backoff(attempt int) time.Duration {
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt-1))
	if max := float64(p.maxDelay); delay > max {
		delay = max
	}
	jitter := 0.8 + 0.4*p.jitterFn()
	return time.Duration(delay * jitter)
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
