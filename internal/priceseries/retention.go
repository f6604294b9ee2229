package priceseries

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DetachedPartition describes a partition archive_old_price_partitions detached.
type DetachedPartition struct {
	Name       string
	MonthStart time.Time
}

// ArchiveOldPartitions detaches prices_YYYY_MM partitions older than
// monthsToKeep from the parent table. When apply is false it only
// reports what would be detached.
func ArchiveOldPartitions(ctx context.Context, pool *pgxpool.Pool, monthsToKeep int, apply bool) ([]DetachedPartition, error) {
	cutoff := time.Now().AddDate(0, -monthsToKeep, 0)

	rows, err := pool.Query(ctx, `
		SELECT c.relname
		FROM pg_inherits i
		JOIN pg_class c ON c.oid = i.inhrelid
		JOIN pg_class p ON p.oid = i.inhparent
		WHERE p.relname = 'prices' AND c.relname ~ '^prices_[0-9]{4}_[0-9]{2}$'
		ORDER BY c.relname
	`)
	if err != nil {
		return nil, fmt.Errorf("list partitions: %w", err)
	}
	defer rows.Close()

	var candidates []DetachedPartition
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		var year, month int
		if _, err := fmt.Sscanf(name, "prices_%04d_%02d", &year, &month); err != nil {
			continue
		}
		monthStart := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
		if monthStart.Before(cutoff) {
			candidates = append(candidates, DetachedPartition{Name: name, MonthStart: monthStart})
		}
	}

	if !apply {
		return candidates, nil
	}

	for _, c := range candidates {
		if _, err := pool.Exec(ctx, fmt.Sprintf(`ALTER TABLE prices DETACH PARTITION %s`, c.Name)); err != nil {
			return nil, fmt.Errorf("detach %s: %w", c.Name, err)
		}
	}

	return candidates, nil
}
