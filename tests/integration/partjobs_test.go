package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vgprice/engine/internal/partjobs"
	"github.com/vgprice/engine/internal/priceseries"
)

func TestPartitionCreationEnqueuesIndexJobsAndProcessesThem(t *testing.T) {
	ctx := context.Background()
	pool := setupTestDB(t)

	partitions := priceseries.NewPartitions()
	ts := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, partitions.EnsurePartition(ctx, pool, ts))

	// Re-invocation for the same month is a no-op, including on the queue.
	require.NoError(t, partitions.EnsurePartition(ctx, pool, ts))

	var pending int
	require.NoError(t, pool.QueryRow(ctx, `
		SELECT count(*) FROM partition_index_jobs WHERE partition_name = 'prices_2026_03' AND status = 'pending'
	`).Scan(&pending))
	assert.Equal(t, len(priceseries.DeferredIndexTypes), pending)

	completed, failed, err := partjobs.ProcessDue(ctx, pool, 5, func(ctx context.Context, j partjobs.Job) error {
		return priceseries.CreatePartitionIndex(ctx, pool, j.PartitionName, j.IndexType)
	})
	require.NoError(t, err)
	assert.Equal(t, len(priceseries.DeferredIndexTypes), completed)
	assert.Equal(t, 0, failed)

	var indexCount int
	require.NoError(t, pool.QueryRow(ctx, `
		SELECT count(*) FROM pg_indexes WHERE tablename = 'prices_2026_03'
	`).Scan(&indexCount))
	// The primary-key index inherited from prices, the inline composite
	// btree, plus the three deferred indexes.
	assert.Equal(t, 2+len(priceseries.DeferredIndexTypes), indexCount)
}

func TestFailedPartitionIndexJobIsRetriedThenFailed(t *testing.T) {
	ctx := context.Background()
	pool := setupTestDB(t)

	require.NoError(t, partjobs.Enqueue(ctx, pool, "prices_2026_04", "bogus_type"))

	failOnce := func(ctx context.Context, j partjobs.Job) error {
		return priceseries.CreatePartitionIndex(ctx, pool, j.PartitionName, j.IndexType)
	}

	// Unknown index type fails; the job returns to pending with attempts
	// incremented until the attempt cap flips it to failed.
	for i := 0; i < 5; i++ {
		_, failed, err := partjobs.ProcessDue(ctx, pool, 5, failOnce)
		require.NoError(t, err)
		assert.Equal(t, 1, failed)
	}

	var status string
	var attempts int
	require.NoError(t, pool.QueryRow(ctx, `
		SELECT status, attempts FROM partition_index_jobs WHERE partition_name = 'prices_2026_04'
	`).Scan(&status, &attempts))
	assert.Equal(t, "failed", status)
	assert.Equal(t, 5, attempts)

	// A terminal job is no longer claimable.
	jobs, err := partjobs.ClaimBatch(ctx, pool, 5)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}
