package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vgprice/engine/internal/canon"
	"github.com/vgprice/engine/internal/workers"
)

// CreateAlertRequest is the POST /internal/alerts body.
type CreateAlertRequest struct {
	UserID             int64  `json:"user_id" binding:"required"`
	ProductID          int64  `json:"product_id" binding:"required"`
	RegionCode         string `json:"region_code" binding:"required"`
	ThresholdBTC       int64  `json:"threshold_btc" binding:"required"`
	ComparisonOperator string `json:"comparison_operator" binding:"required,oneof=below above"`
	Channel            string `json:"channel" binding:"required,oneof=email discord"`
}

// CreateAlert handles POST /internal/alerts: register a user's price watch.
// Evaluation and delivery belong to the external alerting consumer; this
// endpoint only persists the watch it reads.
func CreateAlert(pool *pgxpool.Pool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateAlertRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		id, err := canon.CreateAlert(c.Request.Context(), pool, canon.Alert{
			UserID:             req.UserID,
			ProductID:          req.ProductID,
			RegionCode:         req.RegionCode,
			ThresholdBTC:       req.ThresholdBTC,
			ComparisonOperator: canon.ComparisonOperator(req.ComparisonOperator),
			Channel:            canon.AlertChannel(req.Channel),
			IsActive:           true,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": id})
	}
}

// ListProductAlerts handles GET /internal/alerts?product_id=N&region=CC,
// the lookup the external alert evaluator performs per price change.
func ListProductAlerts(pool *pgxpool.Pool) gin.HandlerFunc {
	return func(c *gin.Context) {
		productID, err := strconv.ParseInt(c.Query("product_id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product_id"})
			return
		}
		alerts, err := canon.ListActiveAlertsForProduct(c.Request.Context(), pool, productID, c.Query("region"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"alerts": alerts})
	}
}

// MarkAlertTriggered handles POST /internal/alerts/:alertId/triggered,
// the debounce stamp the delivery consumer writes after a notification.
func MarkAlertTriggered(pool *pgxpool.Pool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("alertId"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid alert id"})
			return
		}
		if err := canon.MarkAlertTriggered(c.Request.Context(), pool, id, time.Now()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// TriggerReprocessItems handles POST /internal/admin/reprocess-items: one
// claim/finalize sweep over provider_items left without attributes or a
// last_seen_at stamp.
func TriggerReprocessItems(pool *pgxpool.Pool, workerID string, batchSize int) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := workers.ReprocessProviderItems(c.Request.Context(), pool, workerID, batchSize, nil)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}
