package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/Porostik/dln-dashboard/internal/domain/model"
)

type RawTxRepo struct {
	db *DB
}

func NewRawTxRepo(db *DB) *RawTxRepo {
	return &RawTxRepo{db: db}
}

func (r *RawTxRepo) GetBySignature(ctx context.Context, signature string) (*model.RawTransaction, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	var t model.RawTransaction
	err := r.db.QueryRowContext(ctx, `
		SELECT signature, slot, block_time, tx_data, created_at, updated_at
		FROM raw_transactions
		WHERE signature = $1
	`, signature).Scan(
		&t.Signature, &t.Slot, &t.BlockTime, &t.TxData, &t.CreatedAt, &t.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get raw transaction: %w", err)
	}
	return &t, nil
}

// InsertBatchTx inserts raw transactions, ignoring signatures already stored.
// Re-ingestion of the same page is a no-op.
func (r *RawTxRepo) InsertBatchTx(ctx context.Context, tx *sql.Tx, txs []*model.RawTransaction) error {
	if len(txs) == 0 {
		return nil
	}

	signatures := make([]string, len(txs))
	slots := make([]int64, len(txs))
	blockTimes := make([]int64, len(txs))
	payloads := make([]string, len(txs))
	for i, t := range txs {
		signatures[i] = t.Signature
		slots[i] = t.Slot
		blockTimes[i] = t.BlockTime
		payloads[i] = string(t.TxData)
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO raw_transactions (signature, slot, block_time, tx_data)
		SELECT * FROM unnest($1::text[], $2::bigint[], $3::bigint[], $4::jsonb[])
		ON CONFLICT (signature) DO NOTHING
	`, pq.Array(signatures), pq.Array(slots), pq.Array(blockTimes), pq.Array(payloads))
	if err != nil {
		return fmt.Errorf("insert raw transactions: %w", err)
	}
	return nil
}
