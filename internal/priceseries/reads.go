package priceseries

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// BucketPoint is one row of a bucketed read projection.
type BucketPoint struct {
	Bucket              time.Time
	OfferJurisdictionID int64
	Agent               string
	AmountMinor         int64
}

// HourlyLastBySource picks the latest price per provider per hour bucket
// via DISTINCT ON.
func HourlyLastBySource(ctx context.Context, pool *pgxpool.Pool, offerJurisdictionID int64, since time.Time) ([]BucketPoint, error) {
	rows, err := pool.Query(ctx, `
		SELECT DISTINCT ON (date_trunc('hour', recorded_at), agent)
			date_trunc('hour', recorded_at) AS bucket, offer_jurisdiction_id, agent, amount_minor
		FROM prices
		WHERE offer_jurisdiction_id = $1 AND recorded_at >= $2
		ORDER BY date_trunc('hour', recorded_at), agent, recorded_at DESC
	`, offerJurisdictionID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBucketPoints(rows)
}

// DailyLastBySource is the daily-bucket analogue of HourlyLastBySource.
func DailyLastBySource(ctx context.Context, pool *pgxpool.Pool, offerJurisdictionID int64, since time.Time) ([]BucketPoint, error) {
	rows, err := pool.Query(ctx, `
		SELECT DISTINCT ON (date_trunc('day', recorded_at), agent)
			date_trunc('day', recorded_at) AS bucket, offer_jurisdiction_id, agent, amount_minor
		FROM prices
		WHERE offer_jurisdiction_id = $1 AND recorded_at >= $2
		ORDER BY date_trunc('day', recorded_at), agent, recorded_at DESC
	`, offerJurisdictionID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBucketPoints(rows)
}

func scanBucketPoints(rows interface {
	Next() bool
	Scan(...any) error
}) ([]BucketPoint, error) {
	points := make([]BucketPoint, 0)
	for rows.Next() {
		var p BucketPoint
		if err := rows.Scan(&p.Bucket, &p.OfferJurisdictionID, &p.Agent, &p.AmountMinor); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, nil
}

// CurrentPriceRow is the projection read from current_prices.
type CurrentPriceRow struct {
	OfferJurisdictionID int64
	AmountMinor         int64
	RecordedAt          time.Time
	Agent               string
	AgentPriority       int16
	IsFree              bool
}

// GetCurrentPrice reads the current_price projection for one offer_jurisdiction.
// amount_minor = 0 round-trips with is_free = true.
func GetCurrentPrice(ctx context.Context, pool *pgxpool.Pool, offerJurisdictionID int64) (*CurrentPriceRow, error) {
	var r CurrentPriceRow
	err := pool.QueryRow(ctx, `
		SELECT offer_jurisdiction_id, amount_minor, recorded_at, agent, agent_priority
		FROM current_prices WHERE offer_jurisdiction_id = $1
	`, offerJurisdictionID).Scan(&r.OfferJurisdictionID, &r.AmountMinor, &r.RecordedAt, &r.Agent, &r.AgentPriority)
	if err != nil {
		return nil, err
	}
	r.IsFree = r.AmountMinor == 0
	return &r, nil
}
