package canon

import (
	"context"
	"time"

	"github.com/vgprice/engine/internal/database"
	"github.com/vgprice/engine/internal/ingesterr"
)

// ComparisonOperator enumerates Alert.comparison_operator.
type ComparisonOperator string

const (
	ComparisonBelow ComparisonOperator = "below"
	ComparisonAbove ComparisonOperator = "above"
)

// AlertChannel enumerates Alert.channel.
type AlertChannel string

const (
	ChannelEmail   AlertChannel = "email"
	ChannelDiscord AlertChannel = "discord"
)

// Alert is a user's standing watch on a product's price in a region,
// evaluated and delivered by the external alerting consumer; this
// package only owns the row.
type Alert struct {
	ID                 int64
	UserID             int64
	ProductID          int64
	RegionCode         string
	ThresholdBTC       int64
	ComparisonOperator ComparisonOperator
	Channel            AlertChannel
	IsActive           bool
	LastTriggeredAt    *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// CreateAlert inserts a new alert watch. Alerts are user-owned, not
// idempotent get-or-create rows like the ensure_* primitives: creating the
// same watch twice yields two rows, matching how a user might want several
// independent thresholds on one product.
func CreateAlert(ctx context.Context, db database.Querier, a Alert) (int64, error) {
	var id int64
	err := db.QueryRow(ctx, `
		INSERT INTO alerts (user_id, product_id, region_code, threshold_btc, comparison_operator, channel, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, a.UserID, a.ProductID, a.RegionCode, a.ThresholdBTC, a.ComparisonOperator, a.Channel, a.IsActive).Scan(&id)
	if err != nil {
		return 0, ingesterr.ClassifyPG(err, map[string]any{"user_id": a.UserID, "product_id": a.ProductID})
	}
	return id, nil
}

// ListActiveAlertsForProduct returns every active alert scoped to a product
// and region, the set an external evaluator would compare a new
// current_price against.
func ListActiveAlertsForProduct(ctx context.Context, db database.Querier, productID int64, regionCode string) ([]Alert, error) {
	rows, err := db.Query(ctx, `
		SELECT id, user_id, product_id, region_code, threshold_btc, comparison_operator, channel,
		       is_active, last_triggered_at, created_at, updated_at
		FROM alerts
		WHERE product_id = $1 AND region_code = $2 AND is_active
	`, productID, regionCode)
	if err != nil {
		return nil, ingesterr.ClassifyPG(err, map[string]any{"product_id": productID})
	}
	defer rows.Close()

	var out []Alert
	for rows.Next() {
		var a Alert
		if err := rows.Scan(&a.ID, &a.UserID, &a.ProductID, &a.RegionCode, &a.ThresholdBTC,
			&a.ComparisonOperator, &a.Channel, &a.IsActive, &a.LastTriggeredAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// MarkAlertTriggered stamps last_triggered_at so the external delivery
// consumer can debounce repeat notifications.
func MarkAlertTriggered(ctx context.Context, db database.Querier, alertID int64, at time.Time) error {
	_, err := db.Exec(ctx, `UPDATE alerts SET last_triggered_at = $2, updated_at = now() WHERE id = $1`, alertID, at)
	if err != nil {
		return ingesterr.ClassifyPG(err, map[string]any{"alert_id": alertID})
	}
	return nil
}
