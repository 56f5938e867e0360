//go:build integration

package postgres

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Porostik/dln-dashboard/internal/domain/model"
)

// Needs a reachable postgres: TEST_DB_URL=postgres://... go test -tags integration ./...

func newIntegrationDB(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("TEST_DB_URL")
	if url == "" {
		t.Skip("TEST_DB_URL not set")
	}
	db, err := New(Config{
		URL:             url,
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.RunMigrations("../../../migrations"))
	return db
}

func seedPendingJobs(t *testing.T, db *DB, n int) []string {
	t.Helper()
	ctx := context.Background()

	_, err := db.ExecContext(ctx, "TRUNCATE aggregation_jobs, raw_transactions CASCADE")
	require.NoError(t, err)

	sigs := make([]string, n)
	for i := range sigs {
		sig := fmt.Sprintf("sig%03d", i)
		sigs[i] = sig
		_, err := db.ExecContext(ctx, `
			INSERT INTO raw_transactions (signature, slot, block_time, tx_data)
			VALUES ($1, $2, $3, '{}'::jsonb)
		`, sig, i, 1700000000+i)
		require.NoError(t, err)
		_, err = db.ExecContext(ctx, "INSERT INTO aggregation_jobs (signature) VALUES ($1)", sig)
		require.NoError(t, err)
	}
	return sigs
}

func TestClaimBatch_ConcurrentClaimsAreDisjoint(t *testing.T) {
	dbA := newIntegrationDB(t)
	dbB := newIntegrationDB(t)

	sigs := seedPendingJobs(t, dbA, 40)

	repos := []*JobRepo{NewJobRepo(dbA), NewJobRepo(dbB)}
	claims := make([][]model.AggregationJob, len(repos))
	errs := make([]error, len(repos))

	var wg sync.WaitGroup
	for i, repo := range repos {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claims[i], errs[i] = repo.ClaimBatch(
				context.Background(), fmt.Sprintf("worker-%d", i), 25, time.Minute, 6)
		}()
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	// No signature may be claimed by both workers.
	seen := map[string]string{}
	for i, batch := range claims {
		worker := fmt.Sprintf("worker-%d", i)
		for _, job := range batch {
			prev, dup := seen[job.Signature]
			assert.False(t, dup, "signature %s claimed by %s and %s", job.Signature, prev, worker)
			seen[job.Signature] = worker
			assert.Equal(t, model.JobProcessing, job.Status)
		}
	}
	assert.LessOrEqual(t, len(seen), len(sigs))
	assert.NotEmpty(t, seen)

	// Everything claimed is locked; a follow-up claim only sees the remainder.
	rest, err := NewJobRepo(dbA).ClaimBatch(context.Background(), "worker-late", 40, time.Minute, 6)
	require.NoError(t, err)
	for _, job := range rest {
		_, taken := seen[job.Signature]
		assert.False(t, taken, "signature %s reclaimed while locked", job.Signature)
	}
	assert.Equal(t, len(sigs), len(seen)+len(rest))
}

func TestClaimBatch_ExpiredLeaseIsReclaimable(t *testing.T) {
	db := newIntegrationDB(t)
	seedPendingJobs(t, db, 1)

	repo := NewJobRepo(db)
	ctx := context.Background()

	first, err := repo.ClaimBatch(ctx, "worker-a", 1, time.Minute, 6)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// While the lease holds, nobody else gets the job.
	none, err := repo.ClaimBatch(ctx, "worker-b", 1, time.Minute, 6)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = db.ExecContext(ctx,
		"UPDATE aggregation_jobs SET locked_until = now() - INTERVAL '1 second' WHERE signature = $1",
		first[0].Signature)
	require.NoError(t, err)

	second, err := repo.ClaimBatch(ctx, "worker-b", 1, time.Minute, 6)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].Signature, second[0].Signature)
	require.NotNil(t, second[0].LockedBy)
	assert.Equal(t, "worker-b", *second[0].LockedBy)
}
