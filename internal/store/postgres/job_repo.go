package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/Porostik/dln-dashboard/internal/domain/model"
)

type JobRepo struct {
	db *DB
}

func NewJobRepo(db *DB) *JobRepo {
	return &JobRepo{db: db}
}

// ClaimBatch atomically locks up to limit eligible jobs for workerID.
// Eligible rows are pending, failed past their retry time, or processing
// with an expired lease. Rows locked by a concurrent claimer are skipped, so
// two workers never claim the same signature.
func (r *JobRepo) ClaimBatch(ctx context.Context, workerID string, limit int, lockFor time.Duration, maxAttempts int) ([]model.AggregationJob, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		WITH eligible AS (
			SELECT signature
			FROM aggregation_jobs
			WHERE (
				status = 'pending'
				OR (status = 'failed' AND next_retry_at IS NOT NULL AND next_retry_at <= now())
				OR (status = 'processing' AND locked_until < now())
			)
			AND (next_retry_at IS NULL OR next_retry_at <= now())
			AND attempts < $3
			ORDER BY signature ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		UPDATE aggregation_jobs j
		SET status = 'processing',
			locked_by = $1,
			locked_until = now() + $4 * INTERVAL '1 millisecond',
			updated_at = now()
		FROM eligible e
		WHERE j.signature = e.signature
		RETURNING j.signature, j.status, j.locked_by, j.locked_until, j.attempts, j.next_retry_at, j.created_at, j.updated_at
	`, workerID, limit, maxAttempts, lockFor.Milliseconds())
	if err != nil {
		return nil, fmt.Errorf("claim jobs: %w", err)
	}
	defer rows.Close()

	var jobs []model.AggregationJob
	for rows.Next() {
		var j model.AggregationJob
		if err := rows.Scan(
			&j.Signature, &j.Status, &j.LockedBy, &j.LockedUntil,
			&j.Attempts, &j.NextRetryAt, &j.CreatedAt, &j.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan claimed job: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate claimed jobs: %w", err)
	}
	return jobs, nil
}

func (r *JobRepo) MarkDoneTx(ctx context.Context, tx *sql.Tx, signatures []string) error {
	return r.markTerminalTx(ctx, tx, signatures, model.JobDone)
}

func (r *JobRepo) MarkSkippedTx(ctx context.Context, tx *sql.Tx, signatures []string) error {
	return r.markTerminalTx(ctx, tx, signatures, model.JobSkipped)
}

func (r *JobRepo) markTerminalTx(ctx context.Context, tx *sql.Tx, signatures []string, status model.JobStatus) error {
	if len(signatures) == 0 {
		return nil
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE aggregation_jobs
		SET status = $2,
			locked_by = NULL,
			locked_until = NULL,
			next_retry_at = NULL,
			updated_at = now()
		WHERE signature = ANY($1)
	`, pq.Array(signatures), status)
	if err != nil {
		return fmt.Errorf("mark jobs %s: %w", status, err)
	}
	return nil
}

// MarkFailedTx records one more failed attempt and schedules the retry.
func (r *JobRepo) MarkFailedTx(ctx context.Context, tx *sql.Tx, signature string, nextRetryAt time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE aggregation_jobs
		SET status = 'failed',
			locked_by = NULL,
			locked_until = NULL,
			attempts = attempts + 1,
			next_retry_at = $2,
			updated_at = now()
		WHERE signature = $1
	`, signature, nextRetryAt)
	if err != nil {
		return fmt.Errorf("mark job failed: %w", err)
	}
	return nil
}
