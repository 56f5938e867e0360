package rpcpolicy

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Porostik/dln-dashboard/internal/chain/solana/rpc"
)

func newTestPolicy(t *testing.T, maxAttempts int) (*Policy, *[]time.Duration) {
	t.Helper()

	p := New(Config{
		Classes: map[MethodClass]ClassConfig{
			MethodSignatures:       {Concurrency: 1},
			MethodTransaction:      {Concurrency: 2},
			MethodTransactionBatch: {Concurrency: 1},
		},
		MaxAttempts: maxAttempts,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    1 * time.Second,
	}, nil)

	var slept []time.Duration
	p.sleepFn = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	// deterministic midpoint jitter: factor of exactly 1.0
	p.jitterFn = func() float64 { return 0.5 }
	return p, &slept
}

func TestRun_SucceedsFirstAttempt(t *testing.T) {
	p, slept := newTestPolicy(t, 5)

	calls := 0
	err := p.Run(context.Background(), MethodSignatures, func(context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *slept)
}

func TestRun_RetriesTransientThenSucceeds(t *testing.T) {
	p, slept := newTestPolicy(t, 5)

	calls := 0
	err := p.Run(context.Background(), MethodTransaction, func(context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("http status 429: slow down")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	require.Len(t, *slept, 2)
	assert.Equal(t, 100*time.Millisecond, (*slept)[0])
	assert.Equal(t, 200*time.Millisecond, (*slept)[1])
}

func TestRun_TerminalErrorNotRetried(t *testing.T) {
	p, slept := newTestPolicy(t, 5)

	calls := 0
	rpcErr := &rpc.RPCError{Code: -32602, Message: "invalid params"}
	err := p.Run(context.Background(), MethodTransaction, func(context.Context) error {
		calls++
		return rpcErr
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, rpcErr)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *slept)
}

func TestRun_ExhaustionSurfacesLastError(t *testing.T) {
	p, slept := newTestPolicy(t, 3)

	calls := 0
	err := p.Run(context.Background(), MethodTransactionBatch, func(context.Context) error {
		calls++
		return fmt.Errorf("http status 503: unavailable")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 attempts exhausted")
	assert.Contains(t, err.Error(), "503")
	assert.Equal(t, 3, calls)
	assert.Len(t, *slept, 2)
}

func TestRun_MinIntervalPacesCalls(t *testing.T) {
	interval := 40 * time.Millisecond
	p := New(Config{
		Classes: map[MethodClass]ClassConfig{
			MethodSignatures: {Concurrency: 1, MinInterval: interval},
		},
		MaxAttempts: 1,
		BaseDelay:   time.Millisecond,
		MaxDelay:    time.Millisecond,
	}, nil)

	noop := func(context.Context) error { return nil }

	start := time.Now()
	require.NoError(t, p.Run(context.Background(), MethodSignatures, noop))
	first := time.Since(start)
	require.NoError(t, p.Run(context.Background(), MethodSignatures, noop))
	elapsed := time.Since(start)

	// First call passes immediately; the second waits out the interval.
	assert.Less(t, first, interval)
	assert.GreaterOrEqual(t, elapsed, interval)
}

func TestRun_UnknownClass(t *testing.T) {
	p, _ := newTestPolicy(t, 3)

	err := p.Run(context.Background(), MethodClass("bogus"), func(context.Context) error {
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown method class")
}

func TestRun_ContextCanceledBeforeCall(t *testing.T) {
	p, _ := newTestPolicy(t, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Run(ctx, MethodSignatures, func(context.Context) error {
		t.Fatal("fn must not run after cancellation")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackoff_MonotonicUpToCap(t *testing.T) {
	p, _ := newTestPolicy(t, 10)

	var prev time.Duration
	for attempt := 1; attempt <= 8; attempt++ {
		d := p.backoff(attempt)
		assert.GreaterOrEqual(t, d, prev, "attempt %d", attempt)
		assert.LessOrEqual(t, d, 1*time.Second)
		prev = d
	}
	// 100ms * 2^7 = 12.8s, capped at 1s
	assert.Equal(t, 1*time.Second, p.backoff(8))
}

func TestBackoff_JitterStaysWithinTwentyPercent(t *testing.T) {
	p, _ := newTestPolicy(t, 5)

	base := 100 * time.Millisecond

	p.jitterFn = func() float64 { return 0 }
	assert.Equal(t, time.Duration(float64(base)*0.8), p.backoff(1))

	p.jitterFn = func() float64 { return 1 }
	assert.InDelta(t, float64(base)*1.2, float64(p.backoff(1)), float64(time.Millisecond))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"nil", nil, false},
		{"context canceled", context.Canceled, false},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"http 429", errors.New("http status 429: too many requests"), true},
		{"http 500", errors.New("http status 500: boom"), true},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"eof", errors.New("unexpected EOF"), true},
		{"rpc node behind", &rpc.RPCError{Code: -32005, Message: "node is behind"}, true},
		{"rpc rate limit message", &rpc.RPCError{Code: -32000, Message: "Too many requests"}, true},
		{"rpc invalid params", &rpc.RPCError{Code: -32602, Message: "invalid params"}, false},
		{"unclassified", errors.New("something odd"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, Classify(tt.err).Retryable())
		})
	}
}
