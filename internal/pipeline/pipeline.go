// Package pipeline implements the four-phase ingestion orchestration:
// Discover, Fetch, Parse, Persist, with IngestionRun bookkeeping per
// source sync.
package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/vgprice/engine/internal/canon"
	"github.com/vgprice/engine/internal/ingesterr"
	"github.com/vgprice/engine/internal/priceseries"
	"github.com/vgprice/engine/internal/ratelimiter"
	"github.com/vgprice/engine/internal/sourceadapters"
	"github.com/vgprice/engine/internal/sources"
)

// heartbeatEvery extends the sync lease after this many processed records,
// so a slow upstream stream never loses its lease mid-sync.
const heartbeatEvery = 200

// Deps bundles everything Run needs across all four phases for one source.
type Deps struct {
	Pool               *pgxpool.Pool
	Registry           *sourceadapters.Registry
	Partitions         *priceseries.Partitions
	WorkerID           string
	CandidateThreshold float64
}

// Result summarizes one source's sync for the caller (worker/CLI) to log.
type Result struct {
	RunID     string
	Fetched   int
	Persisted int
	Errored   int
}

// Run executes one source's full Fetch->Parse->Persist cycle. The caller
// (internal/workers) runs the Discover phase across all sources and gives
// each due source to its own goroutine; one worker owns one source for
// the duration of a sync.
func Run(ctx context.Context, deps Deps, due sources.DueSource) (*Result, error) {
	runID, err := createRun(ctx, deps.Pool, due.SourceID)
	if err != nil {
		return nil, err
	}

	result := &Result{RunID: runID}

	lease, err := FetchPhase(ctx, deps.Pool, deps.Registry, due, deps.WorkerID, "")
	if err != nil {
		_ = markRunFailed(ctx, deps.Pool, runID, 0, 0, 0, err)
		return result, err
	}
	defer lease.Stream.Close()

	retailerID, err := canon.EnsureRetailer(ctx, deps.Pool, due.Slug, due.Slug)
	if err != nil {
		_ = markRunFailed(ctx, deps.Pool, runID, 0, 0, 0, err)
		return result, err
	}

	pdeps := PersistDeps{
		Pool:               deps.Pool,
		Partitions:         deps.Partitions,
		ProviderID:         due.SourceID,
		RetailerID:         retailerID,
		CandidateThreshold: deps.CandidateThreshold,
		DefaultAgent:       due.Slug,
		DefaultPriority:    due.Priority,
	}

	var runErr error
	for {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		raw, ok, err := lease.Stream.Next(ctx)
		if err != nil {
			result.Errored++
			recordsErrored.WithLabelValues(due.Slug, string(classifyRecordError(err))).Inc()
			_ = recordError(ctx, deps.Pool, runID, raw.ExternalID, classifyRecordError(err), err.Error(), nil)
			log.Warn().Err(err).Str("source", due.Slug).Msg("stream read failed")
			continue
		}
		if !ok {
			break
		}
		result.Fetched++
		recordsFetched.WithLabelValues(due.Slug).Inc()

		classified, err := ParsePhase(raw)
		if err != nil {
			result.Errored++
			recordsErrored.WithLabelValues(due.Slug, string(classifyRecordError(err))).Inc()
			_ = recordError(ctx, deps.Pool, runID, raw.ExternalID, classifyRecordError(err), err.Error(), raw.Attributes)
			continue
		}

		if _, err := PersistPhase(ctx, pdeps, classified.Raw); err != nil {
			result.Errored++
			recordsErrored.WithLabelValues(due.Slug, string(classifyRecordError(err))).Inc()
			_ = recordError(ctx, deps.Pool, runID, raw.ExternalID, classifyRecordError(err), err.Error(), raw.Attributes)
			continue
		}
		result.Persisted++
		recordsPersisted.WithLabelValues(due.Slug).Inc()

		if result.Fetched%heartbeatEvery == 0 {
			if err := sources.Heartbeat(ctx, deps.Pool, due.SourceID, lease.LeaseToken); err != nil {
				runErr = err
				break
			}
		}
	}

	status := sources.StatusOK
	if result.Errored > 0 && result.Persisted == 0 {
		status = sources.StatusError
	} else if result.Errored > 0 {
		status = sources.StatusPartial
	}

	nextInterval := ratelimiter.DefaultBackoffPolicy().InitialInterval
	if status == sources.StatusOK {
		nextInterval = time.Hour
	}

	var errDetails []byte
	if runErr != nil {
		errDetails, _ = json.Marshal(map[string]string{"error": runErr.Error()})
	}
	if err := sources.CompleteSync(ctx, deps.Pool, due.SourceID, lease.LeaseToken, status, nextInterval, errDetails); err != nil {
		log.Error().Err(err).Str("source", due.Slug).Msg("failed to release sync lease")
	}
	runsCompleted.WithLabelValues(due.Slug, string(status)).Inc()

	if runErr != nil {
		_ = markRunFailed(ctx, deps.Pool, runID, result.Fetched, result.Persisted, result.Errored, runErr)
		return result, runErr
	}
	if err := markRunCompleted(ctx, deps.Pool, runID, result.Fetched, result.Persisted, result.Errored); err != nil {
		log.Error().Err(err).Str("run_id", runID).Msg("failed to mark run completed")
	}

	return result, nil
}

func classifyRecordError(err error) RecordErrorKind {
	switch ingesterr.KindOf(err) {
	case ingesterr.KindInvariantViolation:
		return RecordErrorInvariant
	case ingesterr.KindConflict:
		return RecordErrorConflict
	case ingesterr.KindLock:
		return RecordErrorLock
	case ingesterr.KindUpstream, ingesterr.KindTransport:
		return RecordErrorParse
	default:
		return RecordErrorValidation
	}
}

func agentFromAttributes(attrs []byte) (agent string, priority int16) {
	if len(attrs) == 0 {
		return "", 0
	}
	var parsed struct {
		Agent         string `json:"agent"`
		AgentPriority int16  `json:"agent_priority"`
	}
	if err := json.Unmarshal(attrs, &parsed); err != nil {
		return "", 0
	}
	return parsed.Agent, parsed.AgentPriority
}
