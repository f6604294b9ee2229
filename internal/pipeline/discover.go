package pipeline

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vgprice/engine/internal/sources"
)

// DiscoverPhase lists sources due for a sync, ordered priority asc then
// next_sync_at asc.
func DiscoverPhase(ctx context.Context, pool *pgxpool.Pool, limit int) ([]sources.DueSource, error) {
	return sources.ListDue(ctx, pool, time.Now(), limit)
}
