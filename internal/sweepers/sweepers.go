// Package sweepers runs the periodic maintenance timers: stale
// provider_item lock recovery, partition pre-creation,
// partition-index job processing, materialized view refresh, and
// canonical media cleanup. One ticker-driven sweeper per concern
// instead of one generic queue.
package sweepers

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/vgprice/engine/internal/claims"
	"github.com/vgprice/engine/internal/jobs"
	"github.com/vgprice/engine/internal/media"
	"github.com/vgprice/engine/internal/partjobs"
	"github.com/vgprice/engine/internal/priceseries"
)

// Sweeper is anything with a ticker-driven Start/Stop lifecycle.
type Sweeper interface {
	Start(ctx context.Context)
	Stop()
}

type base struct {
	logger   *zerolog.Logger
	interval time.Duration
	stopChan chan struct{}
	name     string
	run      func(ctx context.Context) error
}

func (s *base) Start(ctx context.Context) {
	s.logger.Info().Str("sweeper", s.name).Dur("interval", s.interval).Msg("starting sweeper")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			if err := s.run(ctx); err != nil {
				s.logger.Error().Str("sweeper", s.name).Err(err).Msg("sweep failed")
			}
		}
	}
}

func (s *base) Stop() { close(s.stopChan) }

// NewStaleLockSweeper recovers provider_items locked_by rows left behind by
// a crashed worker.
func NewStaleLockSweeper(pool *pgxpool.Pool, logger *zerolog.Logger, interval, staleThreshold time.Duration) Sweeper {
	return &base{
		logger:   logger,
		interval: interval,
		stopChan: make(chan struct{}),
		name:     "stale-lock",
		run: func(ctx context.Context) error {
			n, err := claims.RecoverStaleLocks(ctx, pool, staleThreshold)
			if err != nil {
				return err
			}
			if n > 0 {
				logger.Info().Int("recovered", n).Msg("recovered stale provider_item locks")
			}
			return nil
		},
	}
}

// NewPartitionPrecreateSweeper ensures next month's prices partition exists
// well ahead of its first write.
func NewPartitionPrecreateSweeper(pool *pgxpool.Pool, partitions *priceseries.Partitions, logger *zerolog.Logger, interval time.Duration) Sweeper {
	return &base{
		logger:   logger,
		interval: interval,
		stopChan: make(chan struct{}),
		name:     "partition-precreate",
		run: func(ctx context.Context) error {
			return partitions.EnsurePartition(ctx, pool, time.Now().AddDate(0, 1, 0))
		},
	}
}

// NewPartitionIndexJobSweeper processes up to 5 pending partition_index_jobs
// rows per tick. fn
// creates the concrete index for one job, supplied by the caller since the
// index DDL depends on the index_type.
func NewPartitionIndexJobSweeper(pool *pgxpool.Pool, logger *zerolog.Logger, interval time.Duration, fn func(ctx context.Context, j partjobs.Job) error) Sweeper {
	return &base{
		logger:   logger,
		interval: interval,
		stopChan: make(chan struct{}),
		name:     "partition-index-jobs",
		run: func(ctx context.Context) error {
			completed, failed, err := partjobs.ProcessDue(ctx, pool, 5, fn)
			if err != nil {
				return err
			}
			if completed > 0 || failed > 0 {
				logger.Info().Int("completed", completed).Int("failed", failed).Msg("processed partition index jobs")
			}
			return nil
		},
	}
}

// NewMaterializedViewSweeper refreshes mv_price_daily on a timer.
func NewMaterializedViewSweeper(pool *pgxpool.Pool, logger *zerolog.Logger, interval time.Duration) Sweeper {
	return &base{
		logger:   logger,
		interval: interval,
		stopChan: make(chan struct{}),
		name:     "materialized-view-refresh",
		run: func(ctx context.Context) error {
			return priceseries.RefreshDailyView(ctx, pool)
		},
	}
}

// NewCanonicalMediaCleanupSweeper drops canonical_media rows no game_media
// row has referenced in minAge, applying the deletion (not a dry run, since
// this sweeper runs unattended).
func NewCanonicalMediaCleanupSweeper(pool *pgxpool.Pool, logger *zerolog.Logger, interval, minAge time.Duration) Sweeper {
	return &base{
		logger:   logger,
		interval: interval,
		stopChan: make(chan struct{}),
		name:     "canonical-media-cleanup",
		run: func(ctx context.Context) error {
			removed, err := media.CleanupUnusedCanonicalMedia(ctx, pool, minAge, true)
			if err != nil {
				return err
			}
			if len(removed) > 0 {
				logger.Info().Int("removed", len(removed)).Msg("cleaned up unused canonical media")
			}
			return nil
		},
	}
}

// NewDenormalizationSweeper recomputes every title/product's denormalized
// columns on a timer, catching call paths that bypass the ensure_* layer.
func NewDenormalizationSweeper(pool *pgxpool.Pool, logger *zerolog.Logger, interval time.Duration) Sweeper {
	return &base{
		logger:   logger,
		interval: interval,
		stopChan: make(chan struct{}),
		name:     "reconcile-denormalization",
		run: func(ctx context.Context) error {
			titles, products, err := jobs.ReconcileDenormalization(ctx, pool)
			if err != nil {
				return err
			}
			logger.Debug().Int("titles", titles).Int("products", products).Msg("reconciled denormalized columns")
			return nil
		},
	}
}

// StartAll launches every sweeper in its own goroutine and returns a single
// Stop func for the whole set, matching cmd/server's shutdown sequencing.
func StartAll(ctx context.Context, sweepers ...Sweeper) func() {
	for _, s := range sweepers {
		go s.Start(ctx)
	}
	return func() {
		for _, s := range sweepers {
			s.Stop()
		}
	}
}
