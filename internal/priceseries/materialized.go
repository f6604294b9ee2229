package priceseries

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RefreshDailyView refreshes mv_price_daily (per-day min/max/median/count)
// concurrently, invoked by the `refresh-materialized-views` CLI command
// and by a periodic sweeper.
func RefreshDailyView(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `REFRESH MATERIALIZED VIEW CONCURRENTLY mv_price_daily`)
	return err
}
