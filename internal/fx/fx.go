// Package fx converts minor-unit amounts to BTC satoshis using the latest
// exchange_rates row, and runs the timer that refreshes that table.
package fx

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vgprice/engine/internal/database"
)

// Convert computes btc_sats_per_unit for amountMinor in currency, using the
// most recent exchange_rates row for currency -> BTC. Absence of a rate
// produces (nil, nil): a missing rate never fails the price write.
func Convert(ctx context.Context, db database.Querier, currencyCode string, amountMinor int64, minorUnit int32) (*int64, error) {
	var rate float64
	err := db.QueryRow(ctx, `
		SELECT rate FROM exchange_rates
		WHERE base_currency = $1 AND quote_currency = 'BTC'
		ORDER BY fetched_at DESC
		LIMIT 1
	`, currencyCode).Scan(&rate)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	sats := satsPerUnit(amountMinor, minorUnit, rate)
	return &sats, nil
}

// satsPerUnit rounds amount_minor / 10^minor_unit * rate to satoshis.
func satsPerUnit(amountMinor int64, minorUnit int32, rate float64) int64 {
	scale := math.Pow(10, float64(minorUnit))
	return int64(math.Round(float64(amountMinor) / scale * rate * 1e8))
}

// RateQuote is one fetched FX rate to persist.
type RateQuote struct {
	BaseCurrency  string
	QuoteCurrency string
	Provider      string
	Rate          float64
}

// RecordRates writes a batch of freshly fetched rates, stamped with the
// current time as fetched_at.
func RecordRates(ctx context.Context, pool *pgxpool.Pool, quotes []RateQuote) error {
	batch := &pgx.Batch{}
	now := time.Now()
	for _, q := range quotes {
		batch.Queue(`
			INSERT INTO exchange_rates (base_currency, quote_currency, provider, rate, fetched_at)
			VALUES ($1, $2, $3, $4, $5)
		`, q.BaseCurrency, q.QuoteCurrency, q.Provider, q.Rate, now)
	}
	br := pool.SendBatch(ctx, batch)
	defer br.Close()
	for range quotes {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// RateFetcher fetches fresh quotes; the default implementation reads
// FX_PROVIDER_URL, but tests and alternative providers inject their own.
type RateFetcher func(ctx context.Context) ([]RateQuote, error)

// NewHTTPFetcher builds a RateFetcher that GETs providerURL and decodes a
// JSON array of {base_currency, quote_currency, provider, rate} objects.
func NewHTTPFetcher(providerURL string, timeout time.Duration) RateFetcher {
	client := &http.Client{Timeout: timeout}
	return func(ctx context.Context) ([]RateQuote, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, providerURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("fx provider returned status %d", resp.StatusCode)
		}

		var payload []struct {
			BaseCurrency  string  `json:"base_currency"`
			QuoteCurrency string  `json:"quote_currency"`
			Provider      string  `json:"provider"`
			Rate          float64 `json:"rate"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return nil, fmt.Errorf("decode fx provider payload: %w", err)
		}

		quotes := make([]RateQuote, 0, len(payload))
		for _, p := range payload {
			quotes = append(quotes, RateQuote{
				BaseCurrency:  p.BaseCurrency,
				QuoteCurrency: p.QuoteCurrency,
				Provider:      p.Provider,
				Rate:          p.Rate,
			})
		}
		return quotes, nil
	}
}

// RefreshTimer periodically calls fetch and persists the results.
type RefreshTimer struct {
	pool     *pgxpool.Pool
	fetch    RateFetcher
	interval time.Duration
	stopCh   chan struct{}
}

// NewRefreshTimer builds a timer with the given fetch interval (default hourly).
func NewRefreshTimer(pool *pgxpool.Pool, fetch RateFetcher, interval time.Duration) *RefreshTimer {
	if interval <= 0 {
		interval = time.Hour
	}
	return &RefreshTimer{pool: pool, fetch: fetch, interval: interval, stopCh: make(chan struct{})}
}

// Start runs the refresh loop until ctx is cancelled or Stop is called.
func (t *RefreshTimer) Start(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stopCh:
			return
		case <-ticker.C:
			quotes, err := t.fetch(ctx)
			if err != nil {
				continue
			}
			_ = RecordRates(ctx, t.pool, quotes)
		}
	}
}

// Stop halts the refresh loop.
func (t *RefreshTimer) Stop() {
	close(t.stopCh)
}
