package pipeline

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vgprice/engine/internal/pkg/cuid2"
)

// RunStatus enumerates ingestion_runs.status.
type RunStatus string

const (
	RunRunning     RunStatus = "running"
	RunCompleted   RunStatus = "completed"
	RunFailed      RunStatus = "failed"
	RunInterrupted RunStatus = "interrupted"
)

// createRun inserts the ingestion_runs row a Run() call reports progress
// against. Run IDs are time-sortable prefixed IDs so the run list orders
// naturally by start time without a round trip.
func createRun(ctx context.Context, pool *pgxpool.Pool, sourceID int64) (string, error) {
	runID := cuid2.GeneratePrefixedId("run", cuid2.PrefixedIdOptions{TimeSortable: true})
	_, err := pool.Exec(ctx, `
		INSERT INTO ingestion_runs (id, source_id, status, started_at, created_at)
		VALUES ($1, $2, $3, now(), now())
	`, runID, sourceID, RunRunning)
	if err != nil {
		return "", err
	}
	return runID, nil
}

func markRunCompleted(ctx context.Context, pool *pgxpool.Pool, runID string, fetched, persisted, errored int) error {
	_, err := pool.Exec(ctx, `
		UPDATE ingestion_runs
		SET status = $2, completed_at = now(),
		    records_fetched = $3, records_persisted = $4, records_errored = $5
		WHERE id = $1
	`, runID, RunCompleted, fetched, persisted, errored)
	return err
}

func markRunFailed(ctx context.Context, pool *pgxpool.Pool, runID string, fetched, persisted, errored int, cause error) error {
	_, err := pool.Exec(ctx, `
		UPDATE ingestion_runs
		SET status = $2, completed_at = now(),
		    records_fetched = $3, records_persisted = $4, records_errored = $5,
		    failure_reason = $6
		WHERE id = $1
	`, runID, RunFailed, fetched, persisted, errored, cause.Error())
	return err
}

// MarkInterrupted flags runs left "running" by a crashed worker so a
// restart doesn't silently report them as still in progress. Called by
// cmd/server on startup.
func MarkInterrupted(ctx context.Context, pool *pgxpool.Pool, olderThan time.Duration) (int, error) {
	tag, err := pool.Exec(ctx, `
		UPDATE ingestion_runs
		SET status = $1, completed_at = now()
		WHERE status = $2 AND started_at < now() - make_interval(secs => $3)
	`, RunInterrupted, RunRunning, olderThan.Seconds())
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// RecordErrorKind enumerates ingestion_record_errors.error_type.
type RecordErrorKind string

const (
	RecordErrorParse      RecordErrorKind = "parse"
	RecordErrorValidation RecordErrorKind = "validation"
	RecordErrorInvariant  RecordErrorKind = "invariant"
	RecordErrorConflict   RecordErrorKind = "conflict"
	RecordErrorLock       RecordErrorKind = "lock"
)

func recordError(ctx context.Context, pool *pgxpool.Pool, runID string, externalID string, kind RecordErrorKind, message string, details []byte) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO ingestion_record_errors (run_id, external_id, error_type, message, details, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
	`, runID, externalID, kind, message, details)
	return err
}
