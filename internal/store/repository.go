package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/Porostik/dln-dashboard/internal/domain/model"
)

// TxBeginner abstracts the ability to begin a database transaction.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// RawTransactionRepository provides access to stored ledger transactions.
type RawTransactionRepository interface {
	GetBySignature(ctx context.Context, signature string) (*model.RawTransaction, error)
	InsertBatchTx(ctx context.Context, tx *sql.Tx, txs []*model.RawTransaction) error
}

// IndexerStateRepository provides access to per-(program, mode) cursor rows.
type IndexerStateRepository interface {
	GetOrCreate(ctx context.Context, programID string, mode model.IndexerMode) (*model.IndexerState, error)
	MarkStopped(ctx context.Context, id int64) error
	AdvanceCursorTx(ctx context.Context, tx *sql.Tx, id int64, cursor string) error
}

// IngestionRepository persists one fetched page atomically: raw
// transactions, their pending aggregation jobs, and the cursor advance.
type IngestionRepository interface {
	IngestPage(ctx context.Context, stateID int64, txs []*model.RawTransaction, cursor *string) error
}

// JobRepository provides the job queue claim and resolution operations.
type JobRepository interface {
	ClaimBatch(ctx context.Context, workerID string, limit int, lockFor time.Duration, maxAttempts int) ([]model.AggregationJob, error)
	MarkDoneTx(ctx context.Context, tx *sql.Tx, signatures []string) error
	MarkSkippedTx(ctx context.Context, tx *sql.Tx, signatures []string) error
	MarkFailedTx(ctx context.Context, tx *sql.Tx, signature string, nextRetryAt time.Time) error
}

// OrderEventRepository provides access to decoded order events.
type OrderEventRepository interface {
	InsertManyTx(ctx context.Context, tx *sql.Tx, events []*model.OrderEvent) error
}

// DayStatRepository provides access to aggregated daily volumes.
type DayStatRepository interface {
	ApplyDeltaTx(ctx context.Context, tx *sql.Tx, delta model.DayStatDelta) error
	GetDayVolumes(ctx context.Context, from, to *time.Time) ([]model.DayStat, error)
}
