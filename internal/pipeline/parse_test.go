package pipeline

import (
	"testing"
	"time"

	"github.com/vgprice/engine/internal/ingesterr"
	"github.com/vgprice/engine/internal/sourceadapters"
)

func amount(v int64) *int64 { return &v }

// A complete storefront price record must parse cleanly end to end.
func TestParsePhaseValidPriceRecord(t *testing.T) {
	rec := sourceadapters.RawRecord{
		ExternalID:   "app:620",
		Kind:         sourceadapters.KindPrice,
		TitleHint:    "Portal 2",
		PlatformHint: "pc",
		Currency:     "USD",
		CountryISO2:  "US",
		AmountMinor:  amount(999),
		RecordedAt:   time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC),
	}

	got, err := ParsePhase(rec)
	if err != nil {
		t.Fatalf("ParsePhase returned error: %v", err)
	}
	if got.Raw.ExternalID != rec.ExternalID {
		t.Errorf("ClassifiedRecord lost the raw record")
	}
}

func TestParsePhaseMissingExternalID(t *testing.T) {
	_, err := ParsePhase(sourceadapters.RawRecord{Kind: sourceadapters.KindCatalog, TitleHint: "x"})
	requireKind(t, err, ingesterr.KindUpstream)
}

func TestParsePhaseCatalogMissingTitleHint(t *testing.T) {
	_, err := ParsePhase(sourceadapters.RawRecord{ExternalID: "1", Kind: sourceadapters.KindCatalog})
	requireKind(t, err, ingesterr.KindUpstream)
}

func TestParsePhasePriceRequiredFields(t *testing.T) {
	base := sourceadapters.RawRecord{ExternalID: "1", Kind: sourceadapters.KindPrice, TitleHint: "Portal 2"}

	tests := []struct {
		name string
		mod  func(r sourceadapters.RawRecord) sourceadapters.RawRecord
		kind ingesterr.Kind
	}{
		{"missing amount", func(r sourceadapters.RawRecord) sourceadapters.RawRecord { return r }, ingesterr.KindUpstream},
		{"negative amount", func(r sourceadapters.RawRecord) sourceadapters.RawRecord {
			r.AmountMinor = amount(-1)
			r.Currency = "USD"
			r.CountryISO2 = "US"
			return r
		}, ingesterr.KindInvariantViolation},
		{"missing currency", func(r sourceadapters.RawRecord) sourceadapters.RawRecord {
			r.AmountMinor = amount(100)
			r.CountryISO2 = "US"
			return r
		}, ingesterr.KindUpstream},
		{"missing country", func(r sourceadapters.RawRecord) sourceadapters.RawRecord {
			r.AmountMinor = amount(100)
			r.Currency = "USD"
			return r
		}, ingesterr.KindUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePhase(tt.mod(base))
			requireKind(t, err, tt.kind)
		})
	}
}

func TestParsePhaseMediaRequiresAssets(t *testing.T) {
	_, err := ParsePhase(sourceadapters.RawRecord{
		ExternalID: "1", Kind: sourceadapters.KindMedia, TitleHint: "Portal 2",
	})
	requireKind(t, err, ingesterr.KindUpstream)

	_, err = ParsePhase(sourceadapters.RawRecord{
		ExternalID: "1", Kind: sourceadapters.KindMedia, TitleHint: "Portal 2",
		Media: []sourceadapters.MediaAsset{{Kind: "image", URL: "https://x/y.png"}},
	})
	if err != nil {
		t.Errorf("valid media record should parse cleanly, got %v", err)
	}
}

func TestParsePhaseHardwareRecords(t *testing.T) {
	valid := sourceadapters.RawRecord{
		ExternalID:   "console:ps5",
		Kind:         sourceadapters.KindPrice,
		CategoryHint: sourceadapters.CategoryHardware,
		ProductHint:  "PlayStation 5",
		Currency:     "USD",
		CountryISO2:  "US",
		AmountMinor:  amount(49999),
	}
	if _, err := ParsePhase(valid); err != nil {
		t.Fatalf("valid hardware price record should parse cleanly, got %v", err)
	}

	missingProduct := valid
	missingProduct.ProductHint = ""
	_, err := ParsePhase(missingProduct)
	requireKind(t, err, ingesterr.KindUpstream)

	hardwareMedia := sourceadapters.RawRecord{
		ExternalID:   "console:ps5",
		Kind:         sourceadapters.KindMedia,
		CategoryHint: sourceadapters.CategoryHardware,
		ProductHint:  "PlayStation 5",
		Media:        []sourceadapters.MediaAsset{{Kind: "image", URL: "https://x/y.png"}},
	}
	_, err = ParsePhase(hardwareMedia)
	requireKind(t, err, ingesterr.KindUpstream)

	unknownCategory := valid
	unknownCategory.CategoryHint = "firmware"
	_, err = ParsePhase(unknownCategory)
	requireKind(t, err, ingesterr.KindUpstream)
}

func TestParsePhaseUnknownKind(t *testing.T) {
	_, err := ParsePhase(sourceadapters.RawRecord{ExternalID: "1", Kind: "bogus"})
	requireKind(t, err, ingesterr.KindUpstream)
}

func requireKind(t *testing.T, err error, want ingesterr.Kind) {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error, got nil")
	}
	if got := ingesterr.KindOf(err); got != want {
		t.Errorf("error kind = %v, want %v", got, want)
	}
}
