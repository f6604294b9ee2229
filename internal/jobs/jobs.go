// Package jobs implements the periodic maintenance pass that catches any
// denormalized column left stale by a call path that bypasses
// internal/canon's ensure_* layer. Reconciliation lives in application
// code, not database triggers.
package jobs

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vgprice/engine/internal/canon"
)

// ReconcileDenormalization recomputes video_game_titles.video_game_ids/
// source_ids and products.software_children_count/hardware_children_count
// for every row, not just ones touched by a recent ensure_* call. Run on a
// timer from cmd/server and on demand via POST /internal/admin/reconcile.
func ReconcileDenormalization(ctx context.Context, pool *pgxpool.Pool) (titlesFixed, productsFixed int, err error) {
	titleIDs, err := scanIDs(ctx, pool, `SELECT id FROM video_game_titles ORDER BY id`)
	if err != nil {
		return 0, 0, fmt.Errorf("reconcile: list titles: %w", err)
	}
	for _, id := range titleIDs {
		if err := canon.ReconcileTitleChildren(ctx, pool, id); err != nil {
			return titlesFixed, productsFixed, fmt.Errorf("reconcile title %d: %w", id, err)
		}
		titlesFixed++
	}

	productIDs, err := scanIDs(ctx, pool, `SELECT id FROM products ORDER BY id`)
	if err != nil {
		return titlesFixed, 0, fmt.Errorf("reconcile: list products: %w", err)
	}
	for _, id := range productIDs {
		if err := canon.ReconcileProductCounts(ctx, pool, id); err != nil {
			return titlesFixed, productsFixed, fmt.Errorf("reconcile product %d: %w", id, err)
		}
		productsFixed++
	}

	return titlesFixed, productsFixed, nil
}

func scanIDs(ctx context.Context, pool *pgxpool.Pool, query string) ([]int64, error) {
	rows, err := pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
