package priceseries

import (
	"context"
	"time"

	"github.com/vgprice/engine/internal/database"
	"github.com/vgprice/engine/internal/ingesterr"
)

// currentPriceGrace is the recency window of tie-break rule 1.
const currentPriceGrace = time.Second

// Sample is one canonicalized price observation to append to history.
type Sample struct {
	OfferJurisdictionID int64
	ProviderItemID      int64
	AmountMinor         int64
	TaxInclusive        bool
	FXMinorPerUnit      *int64
	BTCSatsPerUnit      *int64
	Meta                []byte
	RecordedAt          time.Time
	Agent               string
	AgentPriority       int16
}

// Write appends Sample to the correct monthly partition, then applies it
// to the current_price projection iff it wins the tie-break rule.
// The caller must have already ensured the partition exists via
// Partitions.EnsurePartition, and passes its record transaction so the
// history append and the projection update land atomically with the rest
// of the record.
func Write(ctx context.Context, db database.Querier, s Sample) error {
	if s.AmountMinor < 0 {
		return &ingesterr.Error{
			Kind: ingesterr.KindInvariantViolation,
			Err:  errAmountNegative,
			Context: map[string]any{
				"offer_jurisdiction_id": s.OfferJurisdictionID,
				"amount_minor":          s.AmountMinor,
			},
		}
	}

	if _, err := db.Exec(ctx, `
		INSERT INTO prices (
			offer_jurisdiction_id, provider_item_id, amount_minor, tax_inclusive,
			fx_minor_per_unit, btc_sats_per_unit, meta, recorded_at, agent, agent_priority
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, s.OfferJurisdictionID, s.ProviderItemID, s.AmountMinor, s.TaxInclusive,
		s.FXMinorPerUnit, s.BTCSatsPerUnit, s.Meta, s.RecordedAt, s.Agent, s.AgentPriority,
	); err != nil {
		return ingesterr.ClassifyPG(err, map[string]any{"offer_jurisdiction_id": s.OfferJurisdictionID})
	}

	// The tie-break rule is expressed directly as a conditional UPSERT:
	// replace when (1) strictly newer past grace, (2) newer-or-equal with
	// higher priority, or (3) exact tie broken by lexicographically
	// smaller agent. One statement, not a read-modify-write that would
	// race across concurrent writers.
	if _, err := db.Exec(ctx, `
		INSERT INTO current_prices (offer_jurisdiction_id, amount_minor, recorded_at, agent, agent_priority)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (offer_jurisdiction_id) DO UPDATE SET
			amount_minor = EXCLUDED.amount_minor,
			recorded_at = EXCLUDED.recorded_at,
			agent = EXCLUDED.agent,
			agent_priority = EXCLUDED.agent_priority
		WHERE
			EXCLUDED.recorded_at > current_prices.recorded_at + interval '1 second' * $6
			OR (EXCLUDED.recorded_at >= current_prices.recorded_at AND EXCLUDED.agent_priority > current_prices.agent_priority)
			OR (EXCLUDED.recorded_at = current_prices.recorded_at AND EXCLUDED.agent_priority = current_prices.agent_priority AND EXCLUDED.agent < current_prices.agent)
	`, s.OfferJurisdictionID, s.AmountMinor, s.RecordedAt, s.Agent, s.AgentPriority, currentPriceGrace.Seconds()); err != nil {
		return ingesterr.ClassifyPG(err, map[string]any{"offer_jurisdiction_id": s.OfferJurisdictionID})
	}

	return nil
}

var errAmountNegative = amountNegativeError{}

type amountNegativeError struct{}

func (amountNegativeError) Error() string { return "amount_minor must be >= 0" }
