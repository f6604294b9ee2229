// Package partjobs implements the partition-index job queue: asynchronous
// per-partition index backfill, tracked by {partition_name, index_type,
// status, attempts, error_message}.
package partjobs

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Status enumerates job status transitions: pending -> running -> completed|failed.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Job is one partition_index_jobs row.
type Job struct {
	ID            int64
	PartitionName string
	IndexType     string
	Status        Status
	Attempts      int32
	ErrorMessage  *string
}

const maxAttempts = 5

// Enqueue schedules an index-backfill job for a partition, idempotent on
// (partition_name, index_type).
func Enqueue(ctx context.Context, pool *pgxpool.Pool, partitionName, indexType string) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO partition_index_jobs (partition_name, index_type, status, attempts, created_at, updated_at)
		VALUES ($1, $2, 'pending', 0, now(), now())
		ON CONFLICT (partition_name, index_type) DO NOTHING
	`, partitionName, indexType)
	return err
}

// ClaimBatch reserves up to max pending jobs using FOR UPDATE SKIP LOCKED,
// marking them running.
func ClaimBatch(ctx context.Context, pool *pgxpool.Pool, max int) ([]Job, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT id, partition_name, index_type, status, attempts, error_message
		FROM partition_index_jobs
		WHERE status = 'pending' AND attempts < $2
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, max, maxAttempts)
	if err != nil {
		return nil, err
	}

	var jobs []Job
	var ids []int64
	for rows.Next() {
		var j Job
		if err := rows.Scan(&j.ID, &j.PartitionName, &j.IndexType, &j.Status, &j.Attempts, &j.ErrorMessage); err != nil {
			rows.Close()
			return nil, err
		}
		jobs = append(jobs, j)
		ids = append(ids, j.ID)
	}
	rows.Close()

	if len(ids) == 0 {
		return nil, tx.Commit(ctx)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE partition_index_jobs SET status = 'running', updated_at = now() WHERE id = ANY($1)
	`, ids); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	for i := range jobs {
		jobs[i].Status = StatusRunning
	}
	return jobs, nil
}

// Complete marks a job completed.
func Complete(ctx context.Context, pool *pgxpool.Pool, id int64) error {
	_, err := pool.Exec(ctx, `
		UPDATE partition_index_jobs SET status = 'completed', updated_at = now() WHERE id = $1
	`, id)
	return err
}

// Fail marks a job failed and increments attempts, resetting to pending if
// attempts remain under the cap so it is retried.
func Fail(ctx context.Context, pool *pgxpool.Pool, id int64, reason string) error {
	_, err := pool.Exec(ctx, `
		UPDATE partition_index_jobs
		SET attempts = attempts + 1,
		    error_message = $2,
		    status = CASE WHEN attempts + 1 >= $3 THEN 'failed' ELSE 'pending' END,
		    updated_at = now()
		WHERE id = $1
	`, id, reason, maxAttempts)
	return err
}

// ProcessDue runs up to max jobs synchronously via fn.
func ProcessDue(ctx context.Context, pool *pgxpool.Pool, max int, fn func(ctx context.Context, j Job) error) (completed, failed int, err error) {
	jobs, err := ClaimBatch(ctx, pool, max)
	if err != nil {
		return 0, 0, fmt.Errorf("claim partition jobs: %w", err)
	}
	for _, j := range jobs {
		if runErr := fn(ctx, j); runErr != nil {
			if failErr := Fail(ctx, pool, j.ID, runErr.Error()); failErr != nil {
				return completed, failed, failErr
			}
			failed++
			continue
		}
		if err := Complete(ctx, pool, j.ID); err != nil {
			return completed, failed, err
		}
		completed++
	}
	return completed, failed, nil
}
