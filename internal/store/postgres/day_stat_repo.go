package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Porostik/dln-dashboard/internal/domain/model"
)

type DayStatRepo struct {
	db *DB
}

func NewDayStatRepo(db *DB) *DayStatRepo {
	return &DayStatRepo{db: db}
}

// ApplyDeltaTx applies one commutative (day, type) increment. Increments are
// expressed in SQL so concurrent workers touching the same day never lose
// updates to read-modify-write races.
func (r *DayStatRepo) ApplyDeltaTx(ctx context.Context, tx *sql.Tx, delta model.DayStatDelta) error {
	var query string
	switch delta.Type {
	case model.EventCreate:
		query = `
			INSERT INTO daily_stats (day, created_count, created_volume_usd)
			VALUES ($1, $2, $3)
			ON CONFLICT (day) DO UPDATE SET
				created_count = daily_stats.created_count + EXCLUDED.created_count,
				created_volume_usd = daily_stats.created_volume_usd + EXCLUDED.created_volume_usd,
				updated_at = now()
		`
	case model.EventFulfill:
		query = `
			INSERT INTO daily_stats (day, fulfilled_count, fulfilled_volume_usd)
			VALUES ($1, $2, $3)
			ON CONFLICT (day) DO UPDATE SET
				fulfilled_count = daily_stats.fulfilled_count + EXCLUDED.fulfilled_count,
				fulfilled_volume_usd = daily_stats.fulfilled_volume_usd + EXCLUDED.fulfilled_volume_usd,
				updated_at = now()
		`
	default:
		return fmt.Errorf("apply day delta: unknown event type %q", delta.Type)
	}

	if _, err := tx.ExecContext(ctx, query, delta.Day.Format("2006-01-02"), delta.Count, delta.VolumeUSD); err != nil {
		return fmt.Errorf("apply day delta: %w", err)
	}
	return nil
}

// GetDayVolumes returns daily stats ascending by day, optionally bounded by
// inclusive UTC day limits.
func (r *DayStatRepo) GetDayVolumes(ctx context.Context, from, to *time.Time) ([]model.DayStat, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	query := `
		SELECT day, created_count, fulfilled_count, created_volume_usd, fulfilled_volume_usd
		FROM daily_stats
	`
	var args []interface{}
	var conds []string
	if from != nil {
		args = append(args, from.Format("2006-01-02"))
		conds = append(conds, fmt.Sprintf("day >= $%d", len(args)))
	}
	if to != nil {
		args = append(args, to.Format("2006-01-02"))
		conds = append(conds, fmt.Sprintf("day <= $%d", len(args)))
	}
	for i, cond := range conds {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY day ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get day volumes: %w", err)
	}
	defer rows.Close()

	var stats []model.DayStat
	for rows.Next() {
		var s model.DayStat
		if err := rows.Scan(
			&s.Day, &s.CreatedCount, &s.FulfilledCount,
			&s.CreatedVolumeUSD, &s.FulfilledVolumeUSD,
		); err != nil {
			return nil, fmt.Errorf("scan day stat: %w", err)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate day stats: %w", err)
	}
	return stats, nil
}
