package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSrcProgram = "So11111111111111111111111111111111111111112"
	testDstProgram = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

func setRequired(t *testing.T) {
	t.Setenv("DB_URL", "postgres://localhost:5432/dln")
	t.Setenv("SOLANA_RPC_URL", "https://rpc.example")
	t.Setenv("SRC_PROGRAM_ID", testSrcProgram)
	t.Setenv("DST_PROGRAM_ID", testDstProgram)
	t.Setenv("JUPITER_URL", "https://quote.example")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, uint64(7565164), cfg.Solana.DstChainID)
	assert.Equal(t, 20, cfg.Indexer.BackfillBatchSize)
	assert.Equal(t, 50, cfg.Indexer.ForwardBatchSize)
	assert.Equal(t, 20, cfg.Indexer.BackfillMaxEmptyPages)
	assert.Equal(t, 5, cfg.RPCPolicy.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.RPCPolicy.BaseDelay)
	assert.Equal(t, 800*time.Millisecond, cfg.RPCPolicy.SigMinInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.RPCPolicy.TxMinInterval)
	assert.Equal(t, 8*time.Second, cfg.RPCPolicy.BatchTxMinInterval)
	assert.Equal(t, 6, cfg.Aggregator.JobsMaxAttempts)
	assert.Equal(t, time.Minute, cfg.Aggregator.JobsLockFor)
	assert.Equal(t, "redis://localhost:6379", cfg.Redis.URL)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("DST_CHAIN_ID", "100000001")
	t.Setenv("INDEXER_BACKFILL_BATCH_SIZE", "7")
	t.Setenv("AGGREGATION_WORKERS_COUNT", "4")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, uint64(100000001), cfg.Solana.DstChainID)
	assert.Equal(t, 7, cfg.Indexer.BackfillBatchSize)
	assert.Equal(t, 4, cfg.Aggregator.WorkersCount)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_CollectsAllMissingKeys(t *testing.T) {
	setRequired(t)
	t.Setenv("DB_URL", "")
	t.Setenv("JUPITER_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_URL is required")
	assert.Contains(t, err.Error(), "JUPITER_URL is required")
}

func TestLoad_RejectsMalformedProgramID(t *testing.T) {
	setRequired(t)
	t.Setenv("SRC_PROGRAM_ID", "not-a-pubkey")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SRC_PROGRAM_ID")
}

func TestLoad_RejectsInvertedRPCDelays(t *testing.T) {
	setRequired(t)
	t.Setenv("RPC_BASE_DELAY_MS", "5000")
	t.Setenv("RPC_MAX_DELAY_MS", "1000")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RPC_MAX_DELAY_MS")
}

func TestLoad_RejectsZeroWorkers(t *testing.T) {
	setRequired(t)
	t.Setenv("AGGREGATION_WORKERS_COUNT", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AGGREGATION_WORKERS_COUNT")
}
