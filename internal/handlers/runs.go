package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IngestionRunSummary is the JSON projection of one ingestion_runs row.
type IngestionRunSummary struct {
	ID               string     `json:"id"`
	SourceID         int64      `json:"source_id"`
	Status           string     `json:"status"`
	StartedAt        time.Time  `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	RecordsFetched   int        `json:"records_fetched"`
	RecordsPersisted int        `json:"records_persisted"`
	RecordsErrored   int        `json:"records_errored"`
	FailureReason    *string    `json:"failure_reason,omitempty"`
}

// ListRuns handles GET /internal/ingestion/runs?limit=.
func ListRuns(pool *pgxpool.Pool) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 50
		if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 {
			limit = l
		}

		rows, err := pool.Query(c.Request.Context(), `
			SELECT id, source_id, status, started_at, completed_at,
			       records_fetched, records_persisted, records_errored, failure_reason
			FROM ingestion_runs
			ORDER BY started_at DESC
			LIMIT $1
		`, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		defer rows.Close()

		runs := make([]IngestionRunSummary, 0)
		for rows.Next() {
			var r IngestionRunSummary
			if err := rows.Scan(&r.ID, &r.SourceID, &r.Status, &r.StartedAt, &r.CompletedAt,
				&r.RecordsFetched, &r.RecordsPersisted, &r.RecordsErrored, &r.FailureReason); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			runs = append(runs, r)
		}
		c.JSON(http.StatusOK, gin.H{"runs": runs})
	}
}

// GetRun handles GET /internal/ingestion/runs/:runId.
func GetRun(pool *pgxpool.Pool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var r IngestionRunSummary
		err := pool.QueryRow(c.Request.Context(), `
			SELECT id, source_id, status, started_at, completed_at,
			       records_fetched, records_persisted, records_errored, failure_reason
			FROM ingestion_runs WHERE id = $1
		`, c.Param("runId")).Scan(&r.ID, &r.SourceID, &r.Status, &r.StartedAt, &r.CompletedAt,
			&r.RecordsFetched, &r.RecordsPersisted, &r.RecordsErrored, &r.FailureReason)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
			return
		}
		c.JSON(http.StatusOK, r)
	}
}

// SourceSummary is the JSON projection of one video_game_sources row
// joined with its retailer binding, if any.
type SourceSummary struct {
	SourceID   int64      `json:"source_id"`
	Slug       string     `json:"slug"`
	Kind       string     `json:"kind"`
	SyncStatus *string    `json:"sync_status,omitempty"`
	NextSyncAt *time.Time `json:"next_sync_at,omitempty"`
}

// ListSources handles GET /internal/sources.
func ListSources(pool *pgxpool.Pool) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := pool.Query(c.Request.Context(), `
			SELECT s.id, s.slug, s.kind, rps.sync_status, rps.next_sync_at
			FROM video_game_sources s
			LEFT JOIN retailer_video_game_sources rps ON rps.video_game_source_id = s.id
			ORDER BY s.id
		`)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		defer rows.Close()

		sources := make([]SourceSummary, 0)
		for rows.Next() {
			var s SourceSummary
			if err := rows.Scan(&s.SourceID, &s.Slug, &s.Kind, &s.SyncStatus, &s.NextSyncAt); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			sources = append(sources, s)
		}
		c.JSON(http.StatusOK, gin.H{"sources": sources})
	}
}
