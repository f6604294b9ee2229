package pipeline

import (
	"github.com/vgprice/engine/internal/ingesterr"
	"github.com/vgprice/engine/internal/sourceadapters"
)

// ClassifiedRecord is a RawRecord that has passed the minimal shape checks
// for its Kind, ready for PersistPhase. ParsePhase never touches the
// database; it is a pure function.
type ClassifiedRecord struct {
	Raw sourceadapters.RawRecord
}

// ParsePhase validates one RawRecord against the invariants its Kind
// requires, returning a typed ingesterr.Error for
// anything that doesn't satisfy them so PersistPhase never has to guard
// against malformed input.
func ParsePhase(rec sourceadapters.RawRecord) (ClassifiedRecord, error) {
	if rec.ExternalID == "" {
		return ClassifiedRecord{}, &ingesterr.Error{Kind: ingesterr.KindUpstream, Err: errMissingExternalID}
	}

	hardware := rec.CategoryHint == sourceadapters.CategoryHardware
	if rec.CategoryHint != "" && rec.CategoryHint != sourceadapters.CategorySoftware && !hardware {
		return ClassifiedRecord{}, &ingesterr.Error{Kind: ingesterr.KindUpstream, Err: errUnknownCategory}
	}

	switch rec.Kind {
	case sourceadapters.KindCatalog:
		if hardware {
			if rec.ProductHint == "" {
				return ClassifiedRecord{}, &ingesterr.Error{Kind: ingesterr.KindUpstream, Err: errMissingProductHint}
			}
		} else if rec.TitleHint == "" {
			return ClassifiedRecord{}, &ingesterr.Error{Kind: ingesterr.KindUpstream, Err: errMissingTitleHint}
		}
	case sourceadapters.KindPrice:
		if hardware {
			if rec.ProductHint == "" {
				return ClassifiedRecord{}, &ingesterr.Error{Kind: ingesterr.KindUpstream, Err: errMissingProductHint}
			}
		} else if rec.TitleHint == "" {
			return ClassifiedRecord{}, &ingesterr.Error{Kind: ingesterr.KindUpstream, Err: errMissingTitleHint}
		}
		if rec.AmountMinor == nil {
			return ClassifiedRecord{}, &ingesterr.Error{Kind: ingesterr.KindUpstream, Err: errMissingAmount}
		}
		if *rec.AmountMinor < 0 {
			return ClassifiedRecord{}, &ingesterr.Error{Kind: ingesterr.KindInvariantViolation, Err: errNegativeAmount}
		}
		if rec.Currency == "" {
			return ClassifiedRecord{}, &ingesterr.Error{Kind: ingesterr.KindUpstream, Err: errMissingCurrency}
		}
		if rec.CountryISO2 == "" {
			return ClassifiedRecord{}, &ingesterr.Error{Kind: ingesterr.KindUpstream, Err: errMissingCountry}
		}
	case sourceadapters.KindMedia:
		if hardware {
			return ClassifiedRecord{}, &ingesterr.Error{Kind: ingesterr.KindUpstream, Err: errHardwareMedia}
		}
		if rec.TitleHint == "" {
			return ClassifiedRecord{}, &ingesterr.Error{Kind: ingesterr.KindUpstream, Err: errMissingTitleHint}
		}
		if len(rec.Media) == 0 {
			return ClassifiedRecord{}, &ingesterr.Error{Kind: ingesterr.KindUpstream, Err: errMissingMedia}
		}
	default:
		return ClassifiedRecord{}, &ingesterr.Error{Kind: ingesterr.KindUpstream, Err: errUnknownKind}
	}

	return ClassifiedRecord{Raw: rec}, nil
}

type parseError string

func (e parseError) Error() string { return string(e) }

const (
	errMissingExternalID  parseError = "record missing external_id"
	errMissingTitleHint   parseError = "record missing title_hint"
	errMissingProductHint parseError = "hardware record missing product_hint"
	errUnknownCategory    parseError = "record carries an unrecognized category_hint"
	errHardwareMedia      parseError = "media records are only supported for software"
	errMissingAmount      parseError = "price record missing amount_minor"
	errNegativeAmount     parseError = "price record amount_minor must be >= 0"
	errMissingCurrency    parseError = "price record missing currency"
	errMissingCountry     parseError = "price record missing country_iso2"
	errMissingMedia       parseError = "media record carries no media assets"
	errUnknownKind        parseError = "record carries an unrecognized kind"
)
