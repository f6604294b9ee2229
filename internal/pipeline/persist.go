package pipeline

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vgprice/engine/internal/canon"
	"github.com/vgprice/engine/internal/claims"
	"github.com/vgprice/engine/internal/database"
	"github.com/vgprice/engine/internal/dedupe"
	"github.com/vgprice/engine/internal/fx"
	"github.com/vgprice/engine/internal/ingesterr"
	"github.com/vgprice/engine/internal/media"
	"github.com/vgprice/engine/internal/normalize"
	"github.com/vgprice/engine/internal/priceseries"
	"github.com/vgprice/engine/internal/sourceadapters"
)

// PersistDeps carries the shared infrastructure PersistPhase needs for one
// record: the pool, the partition cache, the provider/retailer this
// source resolves to, and the fuzzy-candidate threshold.
type PersistDeps struct {
	Pool               *pgxpool.Pool
	Partitions         *priceseries.Partitions
	ProviderID         int64
	RetailerID         int64
	CandidateThreshold float64

	// DefaultAgent/DefaultPriority tag price samples whose attributes do
	// not carry their own agent: the source's slug and scheduler priority.
	DefaultAgent    string
	DefaultPriority int16
}

// PersistResult reports what one record's persist produced, for run counters.
type PersistResult struct {
	ProviderItemID int64
	VideoGameID    int64
	ConsoleID      int64
}

// PersistPhase runs one record's writes as a single transaction: the
// ProviderItem upsert, canonicalization into the catalog, and the price or
// media write commit together or not at all, so a retry never observes a
// half-written record. Partition DDL happens outside the transaction
// (EnsurePartition commits independently; the partition is idempotent
// either way).
func PersistPhase(ctx context.Context, deps PersistDeps, rec sourceadapters.RawRecord) (PersistResult, error) {
	// Price records may need a partition that doesn't exist yet. DDL can't
	// ride in the record transaction, so create it up front.
	if rec.Kind == sourceadapters.KindPrice {
		recordedAt := rec.RecordedAt
		if recordedAt.IsZero() {
			recordedAt = time.Now()
		}
		if err := deps.Partitions.EnsurePartition(ctx, deps.Pool, recordedAt); err != nil {
			return PersistResult{}, err
		}
	}

	tx, err := deps.Pool.Begin(ctx)
	if err != nil {
		return PersistResult{}, ingesterr.ClassifyPG(err, nil)
	}
	defer tx.Rollback(ctx)

	result, err := persistRecord(ctx, tx, deps, rec)
	if err != nil {
		return PersistResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return PersistResult{}, ingesterr.ClassifyPG(err, map[string]any{"external_id": rec.ExternalID})
	}
	return result, nil
}

func persistRecord(ctx context.Context, tx database.Querier, deps PersistDeps, rec sourceadapters.RawRecord) (PersistResult, error) {
	providerItemID, err := claims.UpsertProviderItem(ctx, tx, deps.ProviderID, rec.ExternalID, rec.Attributes)
	if err != nil {
		return PersistResult{}, err
	}

	if rec.CategoryHint == sourceadapters.CategoryHardware {
		return persistHardware(ctx, tx, deps, rec, providerItemID)
	}
	return persistSoftware(ctx, tx, deps, rec, providerItemID)
}

func persistSoftware(ctx context.Context, tx database.Querier, deps PersistDeps, rec sourceadapters.RawRecord, providerItemID int64) (PersistResult, error) {
	productHint := rec.ProductHint
	if productHint == "" {
		productHint = rec.TitleHint
	}
	productSlug := normalize.Slug(productHint)

	productID, err := canon.EnsureProduct(ctx, tx, productSlug, productHint, canon.CategorySoftware)
	if err != nil {
		return PersistResult{}, err
	}

	titleID, inserted, err := canon.EnsureTitle(ctx, tx, productID, rec.TitleHint)
	if err != nil {
		return PersistResult{}, err
	}
	if inserted {
		if err := dedupe.SurfaceTitleCandidates(ctx, tx, productID, titleID, rec.TitleHint, deps.CandidateThreshold); err != nil {
			return PersistResult{}, err
		}
	} else if err := canon.AddTitleAlias(ctx, tx, titleID, rec.TitleHint); err != nil {
		return PersistResult{}, err
	}

	platformCode := rec.PlatformHint
	if platformCode == "" {
		platformCode = "pc"
	}
	platformID, err := canon.EnsurePlatform(ctx, tx, platformCode, platformCode, "")
	if err != nil {
		return PersistResult{}, err
	}

	var edition *string
	if rec.Edition != "" {
		edition = &rec.Edition
	}
	videoGameID, err := canon.EnsureVideoGame(ctx, tx, titleID, platformID, edition)
	if err != nil {
		return PersistResult{}, err
	}

	if err := canon.ReconcileTitleChildren(ctx, tx, titleID); err != nil {
		return PersistResult{}, err
	}
	if err := canon.ReconcileProductCounts(ctx, tx, productID); err != nil {
		return PersistResult{}, err
	}

	switch rec.Kind {
	case sourceadapters.KindPrice:
		sellableID, err := canon.EnsureSellableSoftware(ctx, tx, titleID)
		if err != nil {
			return PersistResult{}, err
		}
		if err := persistPrice(ctx, tx, deps, rec, sellableID, providerItemID); err != nil {
			return PersistResult{}, err
		}
	case sourceadapters.KindMedia:
		if err := persistMedia(ctx, tx, rec, videoGameID); err != nil {
			return PersistResult{}, err
		}
	case sourceadapters.KindCatalog:
		// Catalog records only need the canonical chain above; nothing
		// further to persist.
	}

	return PersistResult{ProviderItemID: providerItemID, VideoGameID: videoGameID}, nil
}

func persistHardware(ctx context.Context, tx database.Querier, deps PersistDeps, rec sourceadapters.RawRecord, providerItemID int64) (PersistResult, error) {
	productID, err := canon.EnsureProduct(ctx, tx, normalize.Slug(rec.ProductHint), rec.ProductHint, canon.CategoryHardware)
	if err != nil {
		return PersistResult{}, err
	}

	consoleID, err := canon.EnsureConsole(ctx, tx, productID, rec.ProductHint)
	if err != nil {
		return PersistResult{}, err
	}

	if err := canon.ReconcileProductCounts(ctx, tx, productID); err != nil {
		return PersistResult{}, err
	}

	if rec.Kind == sourceadapters.KindPrice {
		sellableID, err := canon.EnsureSellableHardware(ctx, tx, consoleID)
		if err != nil {
			return PersistResult{}, err
		}
		if err := persistPrice(ctx, tx, deps, rec, sellableID, providerItemID); err != nil {
			return PersistResult{}, err
		}
	}

	return PersistResult{ProviderItemID: providerItemID, ConsoleID: consoleID}, nil
}

func persistPrice(ctx context.Context, tx database.Querier, deps PersistDeps, rec sourceadapters.RawRecord, sellableID, providerItemID int64) error {
	offerID, err := canon.EnsureOffer(ctx, tx, sellableID, deps.RetailerID, rec.SKU)
	if err != nil {
		return err
	}

	countryID, err := canon.EnsureCountry(ctx, tx, rec.CountryISO2, "", rec.CountryISO2)
	if err != nil {
		return err
	}
	var subRegion *string
	if rec.SubRegion != "" {
		subRegion = &rec.SubRegion
	}
	jurisdictionID, err := canon.EnsureJurisdiction(ctx, tx, countryID, subRegion)
	if err != nil {
		return err
	}
	currencyID, err := canon.EnsureCurrency(ctx, tx, rec.Currency)
	if err != nil {
		return err
	}
	offerJurisdictionID, err := canon.EnsureOfferJurisdiction(ctx, tx, offerID, jurisdictionID, currencyID)
	if err != nil {
		return err
	}

	recordedAt := rec.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}

	btcSats, err := fx.Convert(ctx, tx, rec.Currency, *rec.AmountMinor, canon.MinorUnitFor(rec.Currency))
	if err != nil {
		return err
	}

	agent, priority := agentFromAttributes(rec.Attributes)
	if agent == "" {
		agent, priority = deps.DefaultAgent, deps.DefaultPriority
	}

	return priceseries.Write(ctx, tx, priceseries.Sample{
		OfferJurisdictionID: offerJurisdictionID,
		ProviderItemID:      providerItemID,
		AmountMinor:         *rec.AmountMinor,
		TaxInclusive:        rec.TaxInclusive,
		BTCSatsPerUnit:      btcSats,
		Meta:                rec.Attributes,
		RecordedAt:          recordedAt,
		Agent:               agent,
		AgentPriority:       priority,
	})
}

func persistMedia(ctx context.Context, tx database.Querier, rec sourceadapters.RawRecord, videoGameID int64) error {
	for _, asset := range rec.Media {
		canonicalMediaID, err := media.EnsureCanonicalMedia(ctx, tx, asset.URL, media.CanonicalMediaOpts{
			Width:  dimensionOrNil(asset.Width),
			Height: dimensionOrNil(asset.Height),
		})
		if err != nil {
			return err
		}

		streamURL := &asset.StreamURL
		if asset.StreamURL == "" {
			streamURL = nil
		}

		if err := media.UpsertGameMedia(ctx, tx, media.GameMediaInput{
			VideoGameID:      videoGameID,
			Source:           rec.ExternalID,
			ExternalID:       rec.ExternalID + ":" + asset.MediaType,
			Kind:             media.Kind(asset.Kind),
			MediaType:        media.MediaType(asset.MediaType),
			URL:              asset.URL,
			StreamURL:        streamURL,
			Width:            dimensionOrNil(asset.Width),
			Height:           dimensionOrNil(asset.Height),
			CanonicalMediaID: &canonicalMediaID,
		}); err != nil {
			return err
		}
	}
	return nil
}

func dimensionOrNil(v int32) *int32 {
	if v <= 0 {
		return nil
	}
	return &v
}
