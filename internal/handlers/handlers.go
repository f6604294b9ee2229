// Package handlers implements the internal admin API's gin handlers:
// health, current-price/bucketed-history lookups, ingestion run
// introspection, and the manual ingest/dedupe trigger endpoints. The
// external-facing storefront read API lives in its own consumer
// services; this is only the operator surface under /internal.
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vgprice/engine/internal/database"
	"github.com/vgprice/engine/internal/dedupe"
	"github.com/vgprice/engine/internal/jobs"
	"github.com/vgprice/engine/internal/priceseries"
	"github.com/vgprice/engine/internal/sourceadapters"
	"github.com/vgprice/engine/internal/workers"
)

// HealthCheck reports database connectivity and pool stats.
func HealthCheck(c *gin.Context) {
	if err := database.Status(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	stat := database.Stats()
	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"total_conns":    stat.TotalConns(),
		"acquired_conns": stat.AcquiredConns(),
		"idle_conns":     stat.IdleConns(),
		"max_conns":      stat.MaxConns(),
	})
}

// CurrentPriceResponse is the JSON projection of priceseries.CurrentPriceRow.
type CurrentPriceResponse struct {
	OfferJurisdictionID int64     `json:"offer_jurisdiction_id"`
	AmountMinor         int64     `json:"amount_minor"`
	IsFree              bool      `json:"is_free"`
	RecordedAt          time.Time `json:"recorded_at"`
	Agent               string    `json:"agent"`
}

// GetCurrentPrice returns the current_prices projection for one
// offer_jurisdiction, 404 if none has ever been recorded.
func GetCurrentPrice(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("offerJurisdictionId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offer_jurisdiction id"})
		return
	}
	row, err := priceseries.GetCurrentPrice(c.Request.Context(), database.Pool(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no current price recorded"})
		return
	}
	c.JSON(http.StatusOK, CurrentPriceResponse{
		OfferJurisdictionID: row.OfferJurisdictionID,
		AmountMinor:         row.AmountMinor,
		IsFree:              row.IsFree,
		RecordedAt:          row.RecordedAt,
		Agent:               row.Agent,
	})
}

// ListPriceHistory returns the hourly or daily bucketed history for one
// offer_jurisdiction, bounded by a `since` query param (default 7 days).
func ListPriceHistory(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("offerJurisdictionId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offer_jurisdiction id"})
		return
	}

	since := time.Now().AddDate(0, 0, -7)
	if s := c.Query("since"); s != "" {
		if parsed, err := time.Parse(time.RFC3339, s); err == nil {
			since = parsed
		}
	}

	pool := database.Pool()
	var points []priceseries.BucketPoint
	if c.Query("bucket") == "daily" {
		points, err = priceseries.DailyLastBySource(c.Request.Context(), pool, id, since)
	} else {
		points, err = priceseries.HourlyLastBySource(c.Request.Context(), pool, id, since)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"points": points})
}

// IngestDeps bundles the shared infra the ingestion-trigger endpoints need.
type IngestDeps struct {
	Pool               *pgxpool.Pool
	Registry           *sourceadapters.Registry
	Partitions         *priceseries.Partitions
	WorkerID           string
	CandidateThreshold float64
	MaxConcurrency     int
}

func (d IngestDeps) workerPool() workers.Pool {
	return workers.Pool{
		DB:                 d.Pool,
		Registry:           d.Registry,
		Partitions:         d.Partitions,
		WorkerID:           d.WorkerID,
		CandidateThreshold: d.CandidateThreshold,
	}
}

// TriggerIngestSource triggers POST /internal/admin/ingest/:slug,
// the administrative equivalent of `ingest --source`.
func TriggerIngestSource(deps IngestDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		slug := c.Param("slug")
		result, err := workers.IngestOne(c.Request.Context(), deps.workerPool(), slug)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// TriggerIngestAll triggers POST /internal/admin/ingest-all.
func TriggerIngestAll(deps IngestDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		results, err := workers.IngestAll(c.Request.Context(), deps.workerPool(), deps.MaxConcurrency)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"results": results})
	}
}

// TriggerReconcile triggers POST /internal/admin/reconcile, the manual
// equivalent of the jobs.ReconcileDenormalization sweep.
func TriggerReconcile(pool *pgxpool.Pool) gin.HandlerFunc {
	return func(c *gin.Context) {
		titles, products, err := jobs.ReconcileDenormalization(c.Request.Context(), pool)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"titles_reconciled": titles, "products_reconciled": products})
	}
}

// TriggerDedupeTitles triggers POST /internal/admin/dedupe/titles.
func TriggerDedupeTitles(pool *pgxpool.Pool, candidateThreshold float64) gin.HandlerFunc {
	return func(c *gin.Context) {
		applyCandidates := c.Query("apply_candidates") == "true"
		result, err := dedupe.RunTitleDedupe(c.Request.Context(), pool, applyCandidates, candidateThreshold)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// TriggerDedupeVideoGames triggers POST /internal/admin/dedupe/video-games.
func TriggerDedupeVideoGames(pool *pgxpool.Pool) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := dedupe.MergeVideoGames(c.Request.Context(), pool)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// TriggerDedupePlatforms triggers POST /internal/admin/dedupe/platforms.
func TriggerDedupePlatforms(pool *pgxpool.Pool) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := dedupe.MergePlatforms(c.Request.Context(), pool)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}
