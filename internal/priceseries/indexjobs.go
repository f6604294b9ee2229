package priceseries

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Deferred per-partition index types, back-filled asynchronously by the
// partition_index_jobs queue after EnsurePartition creates the partition
// and its inline btree index.
const (
	IndexBRINRecorded  = "brin_recorded"
	IndexPartialLast7  = "partial_last7"
	IndexPartialLast30 = "partial_last30"
)

// DeferredIndexTypes lists every index type EnsurePartition enqueues.
var DeferredIndexTypes = []string{IndexBRINRecorded, IndexPartialLast7, IndexPartialLast30}

var partitionNamePattern = regexp.MustCompile(`^prices_[0-9]{4}_[0-9]{2}$`)

// CreatePartitionIndex builds one deferred index on a partition. The
// partial-index cutoffs roll weekly from the anchor of the 10th of the
// current month, so re-running a job after the anchor moved recreates the
// window (CREATE INDEX IF NOT EXISTS keeps that idempotent per cutoff).
func CreatePartitionIndex(ctx context.Context, pool *pgxpool.Pool, partitionName, indexType string) error {
	if !partitionNamePattern.MatchString(partitionName) {
		return fmt.Errorf("refusing index DDL on unexpected partition name %q", partitionName)
	}

	anchor := rollingAnchor(time.Now())

	var ddl string
	switch indexType {
	case IndexBRINRecorded:
		ddl = fmt.Sprintf(
			`CREATE INDEX IF NOT EXISTS %s_recorded_brin ON %s USING BRIN (recorded_at)`,
			partitionName, partitionName)
	case IndexPartialLast7:
		ddl = fmt.Sprintf(
			`CREATE INDEX IF NOT EXISTS %s_last7_idx ON %s (offer_jurisdiction_id, recorded_at) WHERE recorded_at >= '%s'`,
			partitionName, partitionName, anchor.AddDate(0, 0, -7).Format("2006-01-02"))
	case IndexPartialLast30:
		ddl = fmt.Sprintf(
			`CREATE INDEX IF NOT EXISTS %s_last30_idx ON %s (offer_jurisdiction_id, recorded_at) WHERE recorded_at >= '%s'`,
			partitionName, partitionName, anchor.AddDate(0, 0, -30).Format("2006-01-02"))
	default:
		return fmt.Errorf("unknown partition index type %q", indexType)
	}

	if _, err := pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create %s on %s: %w", indexType, partitionName, err)
	}
	return nil
}

// rollingAnchor returns the most recent weekly roll of the 10th-of-month
// anchor at or before now.
func rollingAnchor(now time.Time) time.Time {
	anchor := time.Date(now.Year(), now.Month(), 10, 0, 0, 0, 0, time.UTC)
	if anchor.After(now) {
		anchor = anchor.AddDate(0, -1, 0)
	}
	for anchor.AddDate(0, 0, 7).Before(now) {
		anchor = anchor.AddDate(0, 0, 7)
	}
	return anchor
}
