package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Porostik/dln-dashboard/internal/domain/model"
)

type IndexerStateRepo struct {
	db *DB
}

func NewIndexerStateRepo(db *DB) *IndexerStateRepo {
	return &IndexerStateRepo{db: db}
}

// GetOrCreate returns the cursor row for (programID, mode), creating a fresh
// one with a null cursor when the pair has never been indexed.
func (r *IndexerStateRepo) GetOrCreate(ctx context.Context, programID string, mode model.IndexerMode) (*model.IndexerState, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	var s model.IndexerState
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO indexer_state (program_id, mode)
		VALUES ($1, $2)
		ON CONFLICT (program_id, mode) DO UPDATE SET updated_at = indexer_state.updated_at
		RETURNING id, program_id, mode, last_signature, is_stopped, created_at, updated_at
	`, programID, mode).Scan(
		&s.ID, &s.ProgramID, &s.Mode, &s.Cursor, &s.IsStopped, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("get or create indexer state: %w", err)
	}
	return &s, nil
}

func (r *IndexerStateRepo) MarkStopped(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		UPDATE indexer_state
		SET is_stopped = TRUE, updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("mark indexer state stopped: %w", err)
	}
	return nil
}

func (r *IndexerStateRepo) AdvanceCursorTx(ctx context.Context, tx *sql.Tx, id int64, cursor string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE indexer_state
		SET last_signature = $2, updated_at = now()
		WHERE id = $1
	`, id, cursor)
	if err != nil {
		return fmt.Errorf("advance cursor: %w", err)
	}
	return nil
}
