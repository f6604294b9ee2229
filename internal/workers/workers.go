// Package workers runs the ingestion pipeline across sources. One
// goroutine owns one source for the duration of its sync: there is no
// shared per-source state across goroutines, so the only coordination
// needed is the errgroup fan-out limit itself.
package workers

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/vgprice/engine/internal/claims"
	"github.com/vgprice/engine/internal/pipeline"
	"github.com/vgprice/engine/internal/priceseries"
	"github.com/vgprice/engine/internal/sourceadapters"
)

// Pool bundles the shared infrastructure every source's pipeline.Run call
// needs; WorkerID is stamped onto the lease each goroutine claims.
type Pool struct {
	DB                 *pgxpool.Pool
	Registry           *sourceadapters.Registry
	Partitions         *priceseries.Partitions
	WorkerID           string
	CandidateThreshold float64
}

func (p Pool) deps() pipeline.Deps {
	return pipeline.Deps{
		Pool:               p.DB,
		Registry:           p.Registry,
		Partitions:         p.Partitions,
		WorkerID:           p.WorkerID,
		CandidateThreshold: p.CandidateThreshold,
	}
}

// IngestOne runs a single named source's due sync (the `ingest --source`
// CLI verb), failing if the source isn't currently due.
func IngestOne(ctx context.Context, p Pool, slug string) (*pipeline.Result, error) {
	due, err := pipeline.DiscoverPhase(ctx, p.DB, 1000)
	if err != nil {
		return nil, err
	}
	for _, d := range due {
		if d.Slug == slug {
			return pipeline.Run(ctx, p.deps(), d)
		}
	}
	return nil, errSourceNotDue(slug)
}

// IngestAll fans the per-source workers out via errgroup.Group with
// SetLimit(maxConcurrency), keyed off the due-source list. Partial
// failure is reported, never aborts the rest of the batch.
func IngestAll(ctx context.Context, p Pool, maxConcurrency int) ([]*pipeline.Result, error) {
	due, err := pipeline.DiscoverPhase(ctx, p.DB, 10000)
	if err != nil {
		return nil, err
	}

	results := make([]*pipeline.Result, len(due))
	g, gctx := errgroup.WithContext(ctx)
	if maxConcurrency > 0 {
		g.SetLimit(maxConcurrency)
	}

	for i, d := range due {
		i, d := i, d
		g.Go(func() error {
			result, err := pipeline.Run(gctx, p.deps(), d)
			results[i] = result
			if err != nil {
				log.Error().Err(err).Str("source", d.Slug).Msg("source sync failed")
			}
			return nil
		})
	}
	// errgroup's own error is always nil here: each goroutine swallows its
	// error into the log and a nil Result slot, so one failing source
	// never cancels the others.
	_ = g.Wait()

	return results, nil
}

// ReprocessResult summarizes one claim/finalize sweep over provider_items.
type ReprocessResult struct {
	Claimed   int `json:"claimed"`
	Finalized int `json:"finalized"`
	Errored   int `json:"errored"`
}

// ReprocessProviderItems claims a batch of provider_items that were
// recorded but never fully processed ((attributes IS NULL OR last_seen_at
// IS NULL)), applies fn to each, and finalizes the batch. A nil fn finalizes
// the items as-is, which is enough to mark rows seen after a backfill
// import.
func ReprocessProviderItems(ctx context.Context, pool *pgxpool.Pool, workerID string, batchSize int, fn func(ctx context.Context, item claims.ClaimedItem) ([]byte, error)) (ReprocessResult, error) {
	batch, err := claims.ClaimBatch(ctx, pool, workerID, batchSize, nil)
	if err != nil {
		return ReprocessResult{}, err
	}
	result := ReprocessResult{Claimed: len(batch)}

	for _, item := range batch {
		var attrs []byte
		if fn != nil {
			attrs, err = fn(ctx, item)
			if err != nil {
				result.Errored++
				log.Warn().Err(err).Int64("provider_item_id", item.ID).Msg("reprocess failed for item")
				continue
			}
		}
		if err := claims.Finalize(ctx, pool, []int64{item.ID}, attrs); err != nil {
			return result, err
		}
		result.Finalized++
	}

	return result, nil
}

type sourceNotDueError string

func (e sourceNotDueError) Error() string { return string(e) }

func errSourceNotDue(slug string) error {
	return sourceNotDueError("source not found or not due: " + slug)
}
