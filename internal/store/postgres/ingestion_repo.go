package postgres

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/Porostik/dln-dashboard/internal/domain/model"
	"github.com/Porostik/dln-dashboard/internal/store"
)

// IngestionRepo writes one fetched page in a single transaction: the raw
// transactions, a pending aggregation job per signature, and the cursor
// advance. A failure rolls all three back so the next tick retries the same
// position.
type IngestionRepo struct {
	db     *DB
	rawTxs store.RawTransactionRepository
	states store.IndexerStateRepository
}

func NewIngestionRepo(db *DB, rawTxs store.RawTransactionRepository, states store.IndexerStateRepository) *IngestionRepo {
	return &IngestionRepo{db: db, rawTxs: rawTxs, states: states}
}

func (r *IngestionRepo) IngestPage(ctx context.Context, stateID int64, txs []*model.RawTransaction, cursor *string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ingestion tx: %w", err)
	}
	defer tx.Rollback()

	if err := r.rawTxs.InsertBatchTx(ctx, tx, txs); err != nil {
		return err
	}

	if len(txs) > 0 {
		signatures := make([]string, len(txs))
		for i, t := range txs {
			signatures[i] = t.Signature
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO aggregation_jobs (signature, status)
			SELECT sig, 'pending' FROM unnest($1::text[]) AS sig
			ON CONFLICT (signature) DO NOTHING
		`, pq.Array(signatures)); err != nil {
			return fmt.Errorf("enqueue aggregation jobs: %w", err)
		}
	}

	if cursor != nil {
		if err := r.states.AdvanceCursorTx(ctx, tx, stateID, *cursor); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ingestion tx: %w", err)
	}
	return nil
}
