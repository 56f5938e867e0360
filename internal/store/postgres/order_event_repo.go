package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/Porostik/dln-dashboard/internal/domain/model"
)

type OrderEventRepo struct {
	db *DB
}

func NewOrderEventRepo(db *DB) *OrderEventRepo {
	return &OrderEventRepo{db: db}
}

// InsertManyTx bulk-inserts decoded events, ignoring rows that collide on
// (signature, type, order_id). Reprocessing a transaction is idempotent.
func (r *OrderEventRepo) InsertManyTx(ctx context.Context, tx *sql.Tx, events []*model.OrderEvent) error {
	if len(events) == 0 {
		return nil
	}

	orderIDs := make([]string, len(events))
	types := make([]string, len(events))
	signatures := make([]string, len(events))
	slots := make([]int64, len(events))
	blockTimes := make([]int64, len(events))
	tokenMints := make([]string, len(events))
	amounts := make([]string, len(events))
	days := make([]string, len(events))
	for i, e := range events {
		orderIDs[i] = e.OrderID
		types[i] = string(e.Type)
		signatures[i] = e.Signature
		slots[i] = e.Slot
		blockTimes[i] = e.BlockTime
		tokenMints[i] = e.TokenMint
		amounts[i] = e.AmountUSD
		days[i] = e.Day.Format("2006-01-02")
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO order_events (order_id, type, signature, slot, block_time, token_mint, amount_usd, day)
		SELECT * FROM unnest(
			$1::text[], $2::order_event_type[], $3::text[], $4::bigint[],
			$5::bigint[], $6::text[], $7::numeric[], $8::date[]
		)
		ON CONFLICT (signature, type, order_id) DO NOTHING
	`, pq.Array(orderIDs), pq.Array(types), pq.Array(signatures), pq.Array(slots),
		pq.Array(blockTimes), pq.Array(tokenMints), pq.Array(amounts), pq.Array(days))
	if err != nil {
		return fmt.Errorf("insert order events: %w", err)
	}
	return nil
}
