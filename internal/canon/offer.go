package canon

import (
	"context"

	"github.com/vgprice/engine/internal/database"
	"github.com/vgprice/engine/internal/ingesterr"
)

// EnsureOffer get-or-creates a retailer's listing of a sellable. The sku
// column is NOT NULL DEFAULT '' so the plain unique key
// (sellable_id, retailer_id, sku) covers sku-less offers.
func EnsureOffer(ctx context.Context, db database.Querier, sellableID, retailerID int64, sku string) (int64, error) {
	var id int64
	err := db.QueryRow(ctx, `
		INSERT INTO offers (sellable_id, retailer_id, sku, is_active)
		VALUES ($1, $2, $3, true)
		ON CONFLICT (sellable_id, retailer_id, sku) DO UPDATE SET is_active = true
		RETURNING id
	`, sellableID, retailerID, sku).Scan(&id)
	if err != nil {
		return 0, ingesterr.ClassifyPG(err, map[string]any{
			"sellable_id": sellableID, "retailer_id": retailerID, "sku": sku,
		})
	}
	return id, nil
}

// EnsureOfferJurisdiction get-or-creates the (offer, jurisdiction) scoping
// row, unique on (offer_id, jurisdiction_id).
func EnsureOfferJurisdiction(ctx context.Context, db database.Querier, offerID, jurisdictionID, currencyID int64) (int64, error) {
	var id int64
	err := db.QueryRow(ctx, `
		INSERT INTO offer_jurisdictions (offer_id, jurisdiction_id, currency_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (offer_id, jurisdiction_id) DO UPDATE SET currency_id = EXCLUDED.currency_id
		RETURNING id
	`, offerID, jurisdictionID, currencyID).Scan(&id)
	if err != nil {
		return 0, ingesterr.ClassifyPG(err, map[string]any{
			"offer_id": offerID, "jurisdiction_id": jurisdictionID,
		})
	}
	return id, nil
}

// EnsureRetailer get-or-creates a Retailer by slug.
func EnsureRetailer(ctx context.Context, db database.Querier, slug, name string) (int64, error) {
	var id int64
	err := db.QueryRow(ctx, `
		INSERT INTO retailers (slug, name)
		VALUES ($1, $2)
		ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`, slug, name).Scan(&id)
	if err != nil {
		return 0, ingesterr.ClassifyPG(err, map[string]any{"slug": slug})
	}
	return id, nil
}

// EnsureJurisdiction get-or-creates a Jurisdiction for a country and
// optional sub-region. A nil subRegion maps to the column's '' default so
// the plain unique key (country_id, sub_region) covers country-wide rows.
func EnsureJurisdiction(ctx context.Context, db database.Querier, countryID int64, subRegion *string) (int64, error) {
	subRegionKey := ""
	if subRegion != nil {
		subRegionKey = *subRegion
	}

	var id int64
	err := db.QueryRow(ctx, `
		INSERT INTO jurisdictions (country_id, sub_region)
		VALUES ($1, $2)
		ON CONFLICT (country_id, sub_region) DO UPDATE SET country_id = EXCLUDED.country_id
		RETURNING id
	`, countryID, subRegionKey).Scan(&id)
	if err != nil {
		return 0, ingesterr.ClassifyPG(err, map[string]any{"country_id": countryID})
	}
	return id, nil
}

// EnsureCurrency get-or-creates a Currency, applying the minor_unit override table.
func EnsureCurrency(ctx context.Context, db database.Querier, code string) (int64, error) {
	var id int64
	err := db.QueryRow(ctx, `
		INSERT INTO currencies (code, minor_unit)
		VALUES ($1, $2)
		ON CONFLICT (code) DO UPDATE SET code = EXCLUDED.code
		RETURNING id
	`, code, MinorUnitFor(code)).Scan(&id)
	if err != nil {
		return 0, ingesterr.ClassifyPG(err, map[string]any{"code": code})
	}
	return id, nil
}

// EnsureCountry get-or-creates a Country by ISO2 code.
func EnsureCountry(ctx context.Context, db database.Querier, iso2, iso3, name string) (int64, error) {
	var id int64
	err := db.QueryRow(ctx, `
		INSERT INTO countries (iso2, iso3, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (iso2) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`, iso2, iso3, name).Scan(&id)
	if err != nil {
		return 0, ingesterr.ClassifyPG(err, map[string]any{"iso2": iso2})
	}
	return id, nil
}
