// Package canon implements the canonical data model:
// products, platforms, titles, per-platform games, sellables, offers, and
// offer jurisdictions, plus the get-or-create primitives and invariants
// that wire them together. Every exported Ensure* function is idempotent:
// calling it twice with the same arguments yields the same row.
package canon

import "time"

// Category enumerates Product.category.
type Category string

const (
	CategorySoftware Category = "software"
	CategoryHardware Category = "hardware"
)

// Product is the catalog root.
type Product struct {
	ID                    int64
	Slug                  string
	Name                  string
	Category              Category
	SoftwareChildrenCount int32
	HardwareChildrenCount int32
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Platform is a hardware/software target (e.g. PS4, PC).
type Platform struct {
	ID            int64
	Code          string
	Name          string
	Family        string
	CanonicalCode string
	CreatedAt     time.Time
}

// Console is a hardware child of a Product, the hardware counterpart of
// VideoGameTitle.
type Console struct {
	ID        int64
	ProductID int64
	Name      string
	CreatedAt time.Time
}

// VideoGameTitle is the canonical per-title record, the only path from a
// Product to its per-platform VideoGames.
type VideoGameTitle struct {
	ID              int64
	ProductID       int64
	Title           string
	NormalizedTitle string
	Aliases         []string
	VideoGameIDs    []int64
	SourceIDs       []int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// VideoGame is a per-platform, per-edition SKU.
type VideoGame struct {
	ID             int64
	TitleID        int64
	PlatformID     int64
	Edition        *string
	RegionalPrices []byte // jsonb, denormalized fast-read cache
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Country is an ISO-3166 country.
type Country struct {
	ID       int64
	ISO2     string
	ISO3     string
	Name     string
}

// Currency carries the minor-unit exponent used to interpret amount_minor.
type Currency struct {
	ID        int64
	Code      string
	MinorUnit int32
}

// Jurisdiction binds a country to an optional sub-region scope.
type Jurisdiction struct {
	ID        int64
	CountryID int64
	SubRegion *string
}

// Retailer sells offers; may bind to multiple providers.
type Retailer struct {
	ID   int64
	Slug string
	Name string
}

// Sellable is a thin join entity: exactly one of SoftwareTitleID/ConsoleID is set.
type Sellable struct {
	ID              int64
	SoftwareTitleID *int64
	ConsoleID       *int64
	CreatedAt       time.Time
}

// Offer is a retailer's listing of a sellable, optionally under a SKU.
type Offer struct {
	ID         int64
	SellableID int64
	RetailerID int64
	SKU        string
	IsActive   bool
	CreatedAt  time.Time
}

// OfferJurisdiction scopes one Offer to one jurisdiction and currency.
type OfferJurisdiction struct {
	ID             int64
	OfferID        int64
	JurisdictionID int64
	CurrencyID     int64
	CreatedAt      time.Time
}

// currencyMinorUnitOverrides: most currencies use 2 minor-unit digits;
// these are the exceptions.
var currencyMinorUnitOverrides = map[string]int32{
	"JPY": 0, "KRW": 0, "VND": 0, "CLP": 0, "ISK": 0, "HUF": 0,
	"BHD": 3, "IQD": 3, "KWD": 3, "JOD": 3, "OMR": 3, "TND": 3,
}

// MinorUnitFor returns the minor-unit exponent for a currency code,
// defaulting to 2 when no override is registered.
func MinorUnitFor(code string) int32 {
	if v, ok := currencyMinorUnitOverrides[code]; ok {
		return v
	}
	return 2
}
