package main

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/vgprice/engine/internal/claims"
	"github.com/vgprice/engine/internal/database"
	"github.com/vgprice/engine/internal/dedupe"
	"github.com/vgprice/engine/internal/media"
	"github.com/vgprice/engine/internal/partjobs"
	"github.com/vgprice/engine/internal/priceseries"
	"github.com/vgprice/engine/internal/schema"
	"github.com/vgprice/engine/internal/sourceadapters"
	"github.com/vgprice/engine/internal/sourceadapters/reference/localcache"
	"github.com/vgprice/engine/internal/storage"
	"github.com/vgprice/engine/internal/workers"
)

func init() {
	rootCmd.AddCommand(
		migrateCmd,
		ingestCmd,
		ingestAllCmd,
		recoverLocksCmd,
		refreshMaterializedViewsCmd,
		dedupePlatformsCmd,
		dedupeTitlesCmd,
		dedupeVideoGamesCmd,
		archivePartitionsCmd,
		backfillCanonicalMediaCmd,
		processPartitionJobsCmd,
	)

	processPartitionJobsCmd.Flags().Int("max", 5, "maximum pending partition index jobs to process")

	dedupeTitlesCmd.Flags().Bool("apply-candidates", false, "also merge fuzzy title_match_candidates above the configured threshold")
	archivePartitionsCmd.Flags().Int("months-to-keep", 24, "detach prices_YYYY_MM partitions older than this many months")
	archivePartitionsCmd.Flags().Bool("apply", false, "detach partitions instead of only reporting them")
	backfillCanonicalMediaCmd.Flags().Bool("apply", false, "delete unreferenced canonical_media rows instead of only reporting them")
	backfillCanonicalMediaCmd.Flags().Int("batch", 500, "unused; reserved for future batched deletes")
	ingestCmd.Flags().String("source", "", "slug of the source to ingest (required)")
	ingestCmd.Flags().String("region", "", "unused; sources already carry their own jurisdiction scope")
	ingestCmd.MarkFlagRequired("source")
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the engine's schema (idempotent)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := schema.Apply(cmd.Context(), database.Pool()); err != nil {
			return &cliError{code: ExitFailure, err: err}
		}
		logger.Info().Msg("schema applied")
		return nil
	},
}

// buildRegistry builds the source-adapter registry the CLI shares with
// cmd/server: the bundled reference adapter reading the local Steam
// catalog cache. Production source adapters register here the same way
// once they exist.
func buildRegistry() (*sourceadapters.Registry, error) {
	registry := sourceadapters.NewRegistry()
	localStore, err := storage.NewLocalStorage(cfg.Storage.BasePath)
	if err != nil {
		return nil, fmt.Errorf("init local storage: %w", err)
	}
	registry.Register("steam-local-cache", localcache.New(localStore, ""))
	return registry, nil
}

func workerPool() (workers.Pool, error) {
	registry, err := buildRegistry()
	if err != nil {
		return workers.Pool{}, err
	}
	return workers.Pool{
		DB:                 database.Pool(),
		Registry:           registry,
		Partitions:         priceseries.NewPartitions(),
		WorkerID:           "cli",
		CandidateThreshold: cfg.Ingestion.CandidateThreshold,
	}, nil
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run a single source's due sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		slug, _ := cmd.Flags().GetString("source")
		pool, err := workerPool()
		if err != nil {
			return &cliError{code: ExitFailure, err: err}
		}
		result, err := workers.IngestOne(cmd.Context(), pool, slug)
		if err != nil {
			return &cliError{code: ExitFailure, err: err}
		}
		logger.Info().
			Str("source", slug).
			Str("run_id", result.RunID).
			Int("fetched", result.Fetched).
			Int("persisted", result.Persisted).
			Int("errored", result.Errored).
			Msg("ingest complete")
		if result.Errored > 0 {
			return &cliError{code: ExitPartialFailure, err: fmt.Errorf("%d records errored", result.Errored)}
		}
		return nil
	},
}

var ingestAllCmd = &cobra.Command{
	Use:   "ingest-all",
	Short: "Run every due source's sync, fanned out across workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		pool, err := workerPool()
		if err != nil {
			return &cliError{code: ExitFailure, err: err}
		}
		results, err := workers.IngestAll(cmd.Context(), pool, cfg.ResolvedWorkers(runtime.NumCPU()))
		if err != nil {
			return &cliError{code: ExitFailure, err: err}
		}
		var anyFailed bool
		for _, r := range results {
			if r == nil {
				anyFailed = true
				continue
			}
			logger.Info().
				Str("run_id", r.RunID).
				Int("fetched", r.Fetched).
				Int("persisted", r.Persisted).
				Int("errored", r.Errored).
				Msg("source ingest complete")
			if r.Errored > 0 {
				anyFailed = true
			}
		}
		if anyFailed {
			return &cliError{code: ExitPartialFailure, err: fmt.Errorf("one or more sources failed or reported errors")}
		}
		return nil
	},
}

var recoverLocksCmd = &cobra.Command{
	Use:   "recover-locks",
	Short: "Clear provider_item locks held past the stale-lock threshold",
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := claims.RecoverStaleLocks(cmd.Context(), database.Pool(), cfg.Ingestion.StaleLockThreshold())
		if err != nil {
			return &cliError{code: ExitFailure, err: err}
		}
		logger.Info().Int("recovered", n).Msg("stale locks recovered")
		return nil
	},
}

var refreshMaterializedViewsCmd = &cobra.Command{
	Use:   "refresh-materialized-views",
	Short: "Refresh mv_price_daily",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := priceseries.RefreshDailyView(cmd.Context(), database.Pool()); err != nil {
			return &cliError{code: ExitFailure, err: err}
		}
		logger.Info().Msg("materialized views refreshed")
		return nil
	},
}

var dedupePlatformsCmd = &cobra.Command{
	Use:   "dedupe-platforms",
	Short: "Merge duplicate platforms that share a canonical_code",
	RunE: func(cmd *cobra.Command, args []string) error {
		audits, err := dedupe.MergePlatforms(cmd.Context(), database.Pool())
		if err != nil {
			return &cliError{code: ExitFailure, err: err}
		}
		logger.Info().Int("merged", len(audits)).Msg("platform dedupe complete")
		return nil
	},
}

var dedupeTitlesCmd = &cobra.Command{
	Use:   "dedupe-titles",
	Short: "Merge exact-duplicate video_game_titles, optionally applying fuzzy candidates",
	RunE: func(cmd *cobra.Command, args []string) error {
		applyCandidates, _ := cmd.Flags().GetBool("apply-candidates")
		audits, err := dedupe.RunTitleDedupe(cmd.Context(), database.Pool(), applyCandidates, cfg.Ingestion.CandidateThreshold)
		if err != nil {
			return &cliError{code: ExitFailure, err: err}
		}
		logger.Info().Int("merged", len(audits)).Bool("apply_candidates", applyCandidates).Msg("title dedupe complete")
		return nil
	},
}

var dedupeVideoGamesCmd = &cobra.Command{
	Use:   "dedupe-video-games",
	Short: "Merge duplicate video_games sharing a (title, platform) pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		audits, err := dedupe.MergeVideoGames(cmd.Context(), database.Pool())
		if err != nil {
			return &cliError{code: ExitFailure, err: err}
		}
		logger.Info().Int("merged", len(audits)).Msg("video game dedupe complete")
		return nil
	},
}

var archivePartitionsCmd = &cobra.Command{
	Use:   "archive-partitions",
	Short: "Detach prices_YYYY_MM partitions older than --months-to-keep",
	RunE: func(cmd *cobra.Command, args []string) error {
		monthsToKeep, _ := cmd.Flags().GetInt("months-to-keep")
		apply, _ := cmd.Flags().GetBool("apply")
		detached, err := priceseries.ArchiveOldPartitions(cmd.Context(), database.Pool(), monthsToKeep, apply)
		if err != nil {
			return &cliError{code: ExitFailure, err: err}
		}
		for _, d := range detached {
			logger.Info().Str("partition", d.Name).Time("month_start", d.MonthStart).Bool("applied", apply).Msg("partition archive candidate")
		}
		logger.Info().Int("count", len(detached)).Bool("applied", apply).Msg("archive-partitions complete")
		return nil
	},
}

var processPartitionJobsCmd = &cobra.Command{
	Use:   "process-partition-jobs",
	Short: "Process pending partition index backfill jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		max, _ := cmd.Flags().GetInt("max")
		completed, failed, err := partjobs.ProcessDue(cmd.Context(), database.Pool(), max, func(ctx context.Context, j partjobs.Job) error {
			return priceseries.CreatePartitionIndex(ctx, database.Pool(), j.PartitionName, j.IndexType)
		})
		if err != nil {
			return &cliError{code: ExitFailure, err: err}
		}
		logger.Info().Int("completed", completed).Int("failed", failed).Msg("partition index jobs processed")
		if failed > 0 {
			return &cliError{code: ExitPartialFailure, err: fmt.Errorf("%d partition index jobs failed", failed)}
		}
		return nil
	},
}

// canonicalMediaMinAge matches the server's NewCanonicalMediaCleanupSweeper
// grace period: a canonical_media row must go unreferenced for this long
// before a backfill run will delete it.
const canonicalMediaMinAge = 30 * 24 * time.Hour

var backfillCanonicalMediaCmd = &cobra.Command{
	Use:   "backfill-canonical-media",
	Short: "Remove canonical_media rows no longer referenced by any game_media row",
	RunE: func(cmd *cobra.Command, args []string) error {
		apply, _ := cmd.Flags().GetBool("apply")
		candidates, err := media.CleanupUnusedCanonicalMedia(cmd.Context(), database.Pool(), canonicalMediaMinAge, apply)
		if err != nil {
			return &cliError{code: ExitFailure, err: err}
		}
		logger.Info().Int("count", len(candidates)).Bool("applied", apply).Msg("canonical media cleanup complete")
		return nil
	},
}
