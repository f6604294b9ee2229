// Package integration runs the engine's core write paths against a real
// Postgres instance via testcontainers-go.
package integration

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/vgprice/engine/internal/canon"
	"github.com/vgprice/engine/internal/claims"
	"github.com/vgprice/engine/internal/priceseries"
	"github.com/vgprice/engine/internal/schema"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("vgprice_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err, "failed to start postgres container")

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	cfg, err := pgxpool.ParseConfig(connStr)
	require.NoError(t, err)
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)

	require.NoError(t, schema.Apply(ctx, pool))

	t.Cleanup(func() {
		pool.Close()
		testcontainers.TerminateContainer(container)
	})

	return pool
}

// pricingFixture inserts the minimal chain of rows a price write needs:
// one product/title/game/sellable/offer/offer_jurisdiction plus the
// reference rows (country, currency, jurisdiction, retailer) and one
// provider_item to attribute the price to.
type pricingFixture struct {
	OfferJurisdictionID int64
	ProviderItemID      int64
}

func seedPricingFixture(t *testing.T, ctx context.Context, pool *pgxpool.Pool) pricingFixture {
	t.Helper()

	var productID int64
	require.NoError(t, pool.QueryRow(ctx, `
		INSERT INTO products (slug, name, category) VALUES ('portal-2', 'Portal 2', 'software') RETURNING id
	`).Scan(&productID))

	var titleID int64
	require.NoError(t, pool.QueryRow(ctx, `
		INSERT INTO video_game_titles (product_id, title, normalized_title)
		VALUES ($1, 'Portal 2', 'portal 2') RETURNING id
	`, productID).Scan(&titleID))

	platformID, err := canon.EnsurePlatform(ctx, pool, "pc", "PC", "")
	require.NoError(t, err)

	var gameID int64
	require.NoError(t, pool.QueryRow(ctx, `
		INSERT INTO video_games (title_id, platform_id) VALUES ($1, $2) RETURNING id
	`, titleID, platformID).Scan(&gameID))

	var sellableID int64
	require.NoError(t, pool.QueryRow(ctx, `
		INSERT INTO sellables (software_title_id) VALUES ($1) RETURNING id
	`, titleID).Scan(&sellableID))

	var retailerID int64
	require.NoError(t, pool.QueryRow(ctx, `
		INSERT INTO retailers (slug, name) VALUES ('steam', 'Steam') RETURNING id
	`).Scan(&retailerID))

	var offerID int64
	require.NoError(t, pool.QueryRow(ctx, `
		INSERT INTO offers (sellable_id, retailer_id) VALUES ($1, $2) RETURNING id
	`, sellableID, retailerID).Scan(&offerID))

	var countryID int64
	require.NoError(t, pool.QueryRow(ctx, `
		INSERT INTO countries (iso2, name) VALUES ('US', 'United States') RETURNING id
	`).Scan(&countryID))

	var currencyID int64
	require.NoError(t, pool.QueryRow(ctx, `
		INSERT INTO currencies (code, minor_unit) VALUES ('USD', 2) RETURNING id
	`).Scan(&currencyID))

	var jurisdictionID int64
	require.NoError(t, pool.QueryRow(ctx, `
		INSERT INTO jurisdictions (country_id) VALUES ($1) RETURNING id
	`, countryID).Scan(&jurisdictionID))

	var offerJurisdictionID int64
	require.NoError(t, pool.QueryRow(ctx, `
		INSERT INTO offer_jurisdictions (offer_id, jurisdiction_id, currency_id)
		VALUES ($1, $2, $3) RETURNING id
	`, offerID, jurisdictionID, currencyID).Scan(&offerJurisdictionID))

	var sourceID int64
	require.NoError(t, pool.QueryRow(ctx, `
		INSERT INTO video_game_sources (provider_key, slug, kind) VALUES ('steam', 'steam', 'storefront') RETURNING id
	`).Scan(&sourceID))

	var providerItemID int64
	require.NoError(t, pool.QueryRow(ctx, `
		INSERT INTO provider_items (provider_id, external_id) VALUES ($1, 'app:620') RETURNING id
	`, sourceID).Scan(&providerItemID))

	return pricingFixture{OfferJurisdictionID: offerJurisdictionID, ProviderItemID: providerItemID}
}

// TestCurrentPriceTieBreak walks the tie-break rule clause by clause: a
// Steam price at t0, a cheaper Steam price five seconds later, a lower-priority
// competitor at the same instant that must not win, then a later,
// lower-priority write that wins once the grace window has elapsed.
func TestCurrentPriceTieBreak(t *testing.T) {
	ctx := context.Background()
	pool := setupTestDB(t)
	fixture := seedPricingFixture(t, ctx, pool)

	partitions := priceseries.NewPartitions()
	t0 := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	require.NoError(t, partitions.EnsurePartition(ctx, pool, t0))

	// Scenario 1: first write establishes current_price.
	require.NoError(t, priceseries.Write(ctx, pool, priceseries.Sample{
		OfferJurisdictionID: fixture.OfferJurisdictionID,
		ProviderItemID:      fixture.ProviderItemID,
		AmountMinor:         999,
		RecordedAt:          t0,
		Agent:               "steam",
		AgentPriority:       50,
	}))
	row, err := priceseries.GetCurrentPrice(ctx, pool, fixture.OfferJurisdictionID)
	require.NoError(t, err)
	assert.Equal(t, int64(999), row.AmountMinor)

	// Same agent, five seconds later, cheaper: wins outright.
	t1 := t0.Add(5 * time.Second)
	require.NoError(t, priceseries.Write(ctx, pool, priceseries.Sample{
		OfferJurisdictionID: fixture.OfferJurisdictionID,
		ProviderItemID:      fixture.ProviderItemID,
		AmountMinor:         799,
		RecordedAt:          t1,
		Agent:               "steam",
		AgentPriority:       50,
	}))
	row, err = priceseries.GetCurrentPrice(ctx, pool, fixture.OfferJurisdictionID)
	require.NoError(t, err)
	assert.Equal(t, int64(799), row.AmountMinor)

	// Scenario 3: a lower-priority competitor at the exact same instant
	// cannot displace the higher-priority writer.
	require.NoError(t, priceseries.Write(ctx, pool, priceseries.Sample{
		OfferJurisdictionID: fixture.OfferJurisdictionID,
		ProviderItemID:      fixture.ProviderItemID,
		AmountMinor:         699,
		RecordedAt:          t1,
		Agent:               "isthereanydeal",
		AgentPriority:       40,
	}))
	row, err = priceseries.GetCurrentPrice(ctx, pool, fixture.OfferJurisdictionID)
	require.NoError(t, err)
	assert.Equal(t, int64(799), row.AmountMinor, "lower-priority write at an equal timestamp must not win")

	// Scenario 4: a lower-priority agent, now ten seconds past the last
	// write. Past the grace window, it wins on recency alone.
	t2 := t1.Add(10 * time.Second)
	require.NoError(t, priceseries.Write(ctx, pool, priceseries.Sample{
		OfferJurisdictionID: fixture.OfferJurisdictionID,
		ProviderItemID:      fixture.ProviderItemID,
		AmountMinor:         599,
		RecordedAt:          t2,
		Agent:               "itad",
		AgentPriority:       40,
	}))
	row, err = priceseries.GetCurrentPrice(ctx, pool, fixture.OfferJurisdictionID)
	require.NoError(t, err)
	assert.Equal(t, int64(599), row.AmountMinor)

	history, err := priceseries.HourlyLastBySource(ctx, pool, fixture.OfferJurisdictionID, t0.Add(-time.Hour))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(history), 3, "every write should append to history regardless of who won current_price")
}

// TestCurrentPriceOlderWriteDoesNotRegress covers the boundary behavior:
// recording an older price than the current one appends history but
// never rewinds current_price.
func TestCurrentPriceOlderWriteDoesNotRegress(t *testing.T) {
	ctx := context.Background()
	pool := setupTestDB(t)
	fixture := seedPricingFixture(t, ctx, pool)

	partitions := priceseries.NewPartitions()
	t0 := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	require.NoError(t, partitions.EnsurePartition(ctx, pool, t0))

	require.NoError(t, priceseries.Write(ctx, pool, priceseries.Sample{
		OfferJurisdictionID: fixture.OfferJurisdictionID,
		ProviderItemID:      fixture.ProviderItemID,
		AmountMinor:         999,
		RecordedAt:          t0,
		Agent:               "steam",
		AgentPriority:       50,
	}))

	older := t0.Add(-24 * time.Hour)
	require.NoError(t, priceseries.Write(ctx, pool, priceseries.Sample{
		OfferJurisdictionID: fixture.OfferJurisdictionID,
		ProviderItemID:      fixture.ProviderItemID,
		AmountMinor:         1,
		RecordedAt:          older,
		Agent:               "steam",
		AgentPriority:       50,
	}))

	row, err := priceseries.GetCurrentPrice(ctx, pool, fixture.OfferJurisdictionID)
	require.NoError(t, err)
	assert.Equal(t, int64(999), row.AmountMinor, "an older write must never regress current_price")
}

// TestFreePriceRoundTripsIsFree covers amount_minor = 0 round-tripping
// with is_free = true in the read projection.
func TestFreePriceRoundTripsIsFree(t *testing.T) {
	ctx := context.Background()
	pool := setupTestDB(t)
	fixture := seedPricingFixture(t, ctx, pool)

	partitions := priceseries.NewPartitions()
	t0 := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	require.NoError(t, partitions.EnsurePartition(ctx, pool, t0))

	require.NoError(t, priceseries.Write(ctx, pool, priceseries.Sample{
		OfferJurisdictionID: fixture.OfferJurisdictionID,
		ProviderItemID:      fixture.ProviderItemID,
		AmountMinor:         0,
		RecordedAt:          t0,
		Agent:               "epic",
		AgentPriority:       50,
	}))

	row, err := priceseries.GetCurrentPrice(ctx, pool, fixture.OfferJurisdictionID)
	require.NoError(t, err)
	assert.True(t, row.IsFree)
}

// TestPlatformAliasResolvesToOneRow: ingesting "ps4" then "playstation4"
// must resolve to the same platform row.
func TestPlatformAliasResolvesToOneRow(t *testing.T) {
	ctx := context.Background()
	pool := setupTestDB(t)

	first, err := canon.EnsurePlatform(ctx, pool, "ps4", "PlayStation 4", "playstation")
	require.NoError(t, err)

	second, err := canon.EnsurePlatform(ctx, pool, "playstation4", "PlayStation 4", "playstation")
	require.NoError(t, err)

	assert.Equal(t, first, second, "ps4 and playstation4 must resolve to the same canonical platform row")
}

// TestClaimBatchDisjointAcrossWorkersThenRecovers: two workers claiming
// from a shared pool get disjoint rows, and a lock older than the stale
// threshold is recovered.
func TestClaimBatchDisjointAcrossWorkersThenRecovers(t *testing.T) {
	ctx := context.Background()
	pool := setupTestDB(t)

	var sourceID int64
	require.NoError(t, pool.QueryRow(ctx, `
		INSERT INTO video_game_sources (provider_key, slug, kind) VALUES ('itad', 'itad', 'aggregator') RETURNING id
	`).Scan(&sourceID))

	for i := 0; i < 5; i++ {
		_, err := pool.Exec(ctx, `
			INSERT INTO provider_items (provider_id, external_id) VALUES ($1, $2)
		`, sourceID, "ext-"+string(rune('a'+i)))
		require.NoError(t, err)
	}

	batchA, err := claims.ClaimBatch(ctx, pool, "worker-a", 3, nil)
	require.NoError(t, err)
	assert.Len(t, batchA, 3)

	batchB, err := claims.ClaimBatch(ctx, pool, "worker-b", 3, nil)
	require.NoError(t, err)
	assert.Len(t, batchB, 2, "the second worker should only see the remaining unlocked rows")

	seen := make(map[int64]bool)
	for _, it := range append(batchA, batchB...) {
		assert.False(t, seen[it.ID], "claims must be disjoint across workers")
		seen[it.ID] = true
	}

	// Simulate worker-a going silent for 31 minutes without finalizing.
	_, err = pool.Exec(ctx, `
		UPDATE provider_items SET locked_at = now() - interval '31 minutes' WHERE locked_by = 'worker-a'
	`)
	require.NoError(t, err)

	recovered, err := claims.RecoverStaleLocks(ctx, pool, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 3, recovered)

	again, err := claims.ClaimBatch(ctx, pool, "worker-c", 10, nil)
	require.NoError(t, err)
	assert.Len(t, again, 3, "recovered rows must be claimable again")
}
