// Package priceseries implements the monthly-partitioned append-only price
// history and the current_price projection with agent tie-breaking.
package priceseries

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vgprice/engine/internal/partjobs"
)

// Partitions tracks which prices_YYYY_MM child partitions are known to
// exist in-process, so EnsurePartition only round-trips to Postgres on a
// true cache miss. Concurrent DDL is serialized by an advisory lock.
type Partitions struct {
	mu    sync.Mutex
	known map[string]bool
}

// NewPartitions builds an empty partition cache.
func NewPartitions() *Partitions {
	return &Partitions{known: make(map[string]bool)}
}

func partitionName(ts time.Time) string {
	return fmt.Sprintf("prices_%04d_%02d", ts.Year(), int(ts.Month()))
}

// EnsurePartition creates the monthly child partition for ts plus its
// default indexes, if it doesn't already exist, guarded by an advisory
// lock keyed on hashtext('prices:' || month) so concurrent callers never
// race on the same DDL.
func (p *Partitions) EnsurePartition(ctx context.Context, pool *pgxpool.Pool, ts time.Time) error {
	name := partitionName(ts)

	p.mu.Lock()
	if p.known[name] {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin partition tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('prices:' || $1))`, name); err != nil {
		return fmt.Errorf("acquire partition lock: %w", err)
	}

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, name).Scan(&exists); err != nil {
		return fmt.Errorf("check partition existence: %w", err)
	}

	if !exists {
		monthStart := time.Date(ts.Year(), ts.Month(), 1, 0, 0, 0, 0, time.UTC)
		monthEnd := monthStart.AddDate(0, 1, 0)

		if _, err := tx.Exec(ctx, fmt.Sprintf(`
			CREATE TABLE %s PARTITION OF prices
			FOR VALUES FROM ('%s') TO ('%s')
		`, name, monthStart.Format("2006-01-02"), monthEnd.Format("2006-01-02"))); err != nil {
			return fmt.Errorf("create partition %s: %w", name, err)
		}

		// The composite btree index the write/read paths need immediately is
		// created inline; the brin and rolling partial indexes are back-filled
		// asynchronously through the partition_index_jobs queue so partition
		// creation stays fast on the ingest path.
		if _, err := tx.Exec(ctx, fmt.Sprintf(
			`CREATE INDEX IF NOT EXISTS %s_oj_recorded_idx ON %s (offer_jurisdiction_id, recorded_at)`, name, name,
		)); err != nil {
			return fmt.Errorf("create btree index on %s: %w", name, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit partition tx: %w", err)
	}

	if !exists {
		for _, indexType := range DeferredIndexTypes {
			if err := partjobs.Enqueue(ctx, pool, name, indexType); err != nil {
				return fmt.Errorf("enqueue %s index job for %s: %w", indexType, name, err)
			}
		}
	}

	p.mu.Lock()
	p.known[name] = true
	p.mu.Unlock()

	return nil
}

// Forget drops a partition name from the in-process cache. The archival
// path (ArchiveOldPartitions) does not call it.
func (p *Partitions) Forget(ts time.Time) {
	p.mu.Lock()
	delete(p.known, partitionName(ts))
	p.mu.Unlock()
}
