package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
)

type Config struct {
	DB         DBConfig
	Redis      RedisConfig
	Solana     SolanaConfig
	RPCPolicy  RPCPolicyConfig
	Indexer    IndexerConfig
	Aggregator AggregatorConfig
	Jupiter    JupiterConfig
	Server     ServerConfig
	Log        LogConfig
}

type DBConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MigrationsDir   string
}

type RedisConfig struct {
	URL string
}

type SolanaConfig struct {
	RPCURL       string
	SrcProgramID string
	DstProgramID string
	// DstChainID is the numeric id of the destination chain; fulfill
	// instructions whose take offer targets another chain are discarded.
	DstChainID uint64
}

type RPCPolicyConfig struct {
	SigConcurrency     int
	TxConcurrency      int
	BatchTxConcurrency int
	// Min intervals pace calls per method class so bursts within a
	// concurrency slot still respect the node's rate limits.
	SigMinInterval     time.Duration
	TxMinInterval      time.Duration
	BatchTxMinInterval time.Duration
	MaxAttempts        int
	BaseDelay          time.Duration
	MaxDelay           time.Duration
}

type IndexerConfig struct {
	BackfillBatchSize int
	ForwardBatchSize  int
	TickInterval      time.Duration
	IdleInterval      time.Duration
	// BackfillMaxEmptyPages bounds how many consecutive signature pages may
	// resolve zero transactions before the cursor is advanced anyway.
	BackfillMaxEmptyPages int
}

type AggregatorConfig struct {
	WorkersCount    int
	TickInterval    time.Duration
	JobsBatchSize   int
	JobsLockFor     time.Duration
	JobsConcurrency int
	JobsBaseDelay   time.Duration
	JobsMaxDelay    time.Duration
	JobsMaxAttempts int
}

type JupiterConfig struct {
	URL    string
	APIKey string
}

type ServerConfig struct {
	HealthPort    int
	DashboardPort int
}

type LogConfig struct {
	Level string
}

func Load() (*Config, error) {
	var missing []error

	require := func(key string) string {
		v := os.Getenv(key)
		if v == "" {
			missing = append(missing, fmt.Errorf("%s is required", key))
		}
		return v
	}

	cfg := &Config{
		DB: DBConfig{
			URL:             require("DB_URL"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: time.Duration(getEnvInt("DB_CONN_MAX_LIFETIME_MIN", 30)) * time.Minute,
			MigrationsDir:   getEnv("DB_MIGRATIONS_DIR", "migrations"),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Solana: SolanaConfig{
			RPCURL:       require("SOLANA_RPC_URL"),
			SrcProgramID: require("SRC_PROGRAM_ID"),
			DstProgramID: require("DST_PROGRAM_ID"),
			DstChainID:   uint64(getEnvInt("DST_CHAIN_ID", 7565164)),
		},
		RPCPolicy: RPCPolicyConfig{
			SigConcurrency:     getEnvInt("RPC_SIG_CONCURRENCY", 2),
			TxConcurrency:      getEnvInt("RPC_TX_CONCURRENCY", 4),
			BatchTxConcurrency: getEnvInt("RPC_BATCH_TX_CONCURRENCY", 1),
			SigMinInterval:     time.Duration(getEnvInt("RPC_SIG_MIN_INTERVAL_MS", 800)) * time.Millisecond,
			TxMinInterval:      time.Duration(getEnvInt("RPC_TX_MIN_INTERVAL_MS", 500)) * time.Millisecond,
			BatchTxMinInterval: time.Duration(getEnvInt("RPC_BATCH_TX_MIN_INTERVAL_MS", 8000)) * time.Millisecond,
			MaxAttempts:        getEnvInt("RPC_MAX_ATTEMPTS", 5),
			BaseDelay:          time.Duration(getEnvInt("RPC_BASE_DELAY_MS", 500)) * time.Millisecond,
			MaxDelay:           time.Duration(getEnvInt("RPC_MAX_DELAY_MS", 15000)) * time.Millisecond,
		},
		Indexer: IndexerConfig{
			BackfillBatchSize:     getEnvInt("INDEXER_BACKFILL_BATCH_SIZE", 20),
			ForwardBatchSize:      getEnvInt("INDEXER_FORWARD_BATCH_SIZE", 50),
			TickInterval:          time.Duration(getEnvInt("INDEXER_TICK_INTERVAL_MS", 500)) * time.Millisecond,
			IdleInterval:          time.Duration(getEnvInt("INDEXER_IDLE_INTERVAL_MS", 3000)) * time.Millisecond,
			BackfillMaxEmptyPages: getEnvInt("INDEXER_BACKFILL_MAX_EMPTY_PAGES", 20),
		},
		Aggregator: AggregatorConfig{
			WorkersCount:    getEnvInt("AGGREGATION_WORKERS_COUNT", 2),
			TickInterval:    time.Duration(getEnvInt("AGGREGATION_WORKER_TICK_INTERVAL_MS", 500)) * time.Millisecond,
			JobsBatchSize:   getEnvInt("AGGREGATION_WORKER_JOBS_BATCH_SIZE", 25),
			JobsLockFor:     time.Duration(getEnvInt("AGGREGATION_WORKER_JOBS_BATCH_LOCK_MS", 60000)) * time.Millisecond,
			JobsConcurrency: getEnvInt("AGGREGATION_WORKER_JOBS_CONCURRENCY", 5),
			JobsBaseDelay:   time.Duration(getEnvInt("AGGREGATION_WORKER_JOBS_BASE_ERROR_DELAY_MS", 5000)) * time.Millisecond,
			JobsMaxDelay:    time.Duration(getEnvInt("AGGREGATION_WORKER_JOBS_MAX_ERROR_DELAY_MS", 300000)) * time.Millisecond,
			JobsMaxAttempts: getEnvInt("AGGREGATION_WORKER_JOBS_MAX_ATTEMPTS", 6),
		},
		Jupiter: JupiterConfig{
			URL:    require("JUPITER_URL"),
			APIKey: getEnv("JUPITER_API_KEY", ""),
		},
		Server: ServerConfig{
			HealthPort:    getEnvInt("HEALTH_PORT", 8080),
			DashboardPort: getEnvInt("DASHBOARD_PORT", 3000),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("config: %w", joinErrors(missing))
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if _, err := solana.PublicKeyFromBase58(c.Solana.SrcProgramID); err != nil {
		return fmt.Errorf("SRC_PROGRAM_ID is not a valid public key: %w", err)
	}
	if _, err := solana.PublicKeyFromBase58(c.Solana.DstProgramID); err != nil {
		return fmt.Errorf("DST_PROGRAM_ID is not a valid public key: %w", err)
	}
	if c.RPCPolicy.MaxAttempts < 1 {
		return fmt.Errorf("RPC_MAX_ATTEMPTS must be at least 1")
	}
	if c.RPCPolicy.MaxDelay < c.RPCPolicy.BaseDelay {
		return fmt.Errorf("RPC_MAX_DELAY_MS must not be below RPC_BASE_DELAY_MS")
	}
	if c.Indexer.BackfillBatchSize < 1 || c.Indexer.ForwardBatchSize < 1 {
		return fmt.Errorf("indexer batch sizes must be at least 1")
	}
	if c.Aggregator.WorkersCount < 1 {
		return fmt.Errorf("AGGREGATION_WORKERS_COUNT must be at least 1")
	}
	if c.Aggregator.JobsBatchSize < 1 || c.Aggregator.JobsConcurrency < 1 {
		return fmt.Errorf("aggregation batch size and concurrency must be at least 1")
	}
	if c.Aggregator.JobsLockFor <= 0 {
		return fmt.Errorf("AGGREGATION_WORKER_JOBS_BATCH_LOCK_MS must be positive")
	}
	return nil
}

func joinErrors(errs []error) error {
	err := errs[0]
	for _, e := range errs[1:] {
		err = fmt.Errorf("%w; %w", err, e)
	}
	return err
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
