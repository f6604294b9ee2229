package pipeline

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vgprice/engine/internal/ratelimiter"
	"github.com/vgprice/engine/internal/sourceadapters"
	"github.com/vgprice/engine/internal/sources"
)

// leaseResult carries everything FetchPhase acquires before a record loop
// can start: the sync lease token and a stream opened after waiting on
// this source's rate limit.
type leaseResult struct {
	LeaseToken string
	Stream     sourceadapters.RawRecordStream
}

// FetchPhase claims the 10-minute sync lease and opens
// a rate-limited RawRecordStream from the source's registered adapter.
func FetchPhase(ctx context.Context, pool *pgxpool.Pool, registry *sourceadapters.Registry, due sources.DueSource, workerID, region string) (*leaseResult, error) {
	leaseToken, err := sources.ClaimForSync(ctx, pool, due.SourceID, workerID)
	if err != nil {
		return nil, err
	}

	adapter, err := registry.Get(due.Slug)
	if err != nil {
		return nil, fmt.Errorf("fetch phase: %w", err)
	}

	limiter := ratelimiter.New(ratelimiter.FromPerMinute(due.RateLimitPerMinute, due.RateLimitBurst))
	if err := limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	stream, err := adapter.Fetch(ctx, "", region)
	if err != nil {
		return nil, fmt.Errorf("adapter fetch for %s: %w", due.Slug, err)
	}

	return &leaseResult{LeaseToken: leaseToken, Stream: stream}, nil
}
