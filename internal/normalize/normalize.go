// Package normalize holds the pure, deterministic normalization functions
// shared by the canonical store, the ingest path, and the dedupe sweeps.
// These must agree everywhere or dedupe oscillates.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]`)

var diacriticFold = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// StripDiacritics removes combining diacritical marks via NFD fold + strip,
// e.g. "Pokémon" → "Pokemon".
func StripDiacritics(s string) string {
	out, _, err := transform.String(diacriticFold, s)
	if err != nil {
		return s
	}
	return out
}

// CanonicalCode is the platform canonical_code rule:
// lower(regex_replace(code|name, '[^a-z0-9]', '')).
func CanonicalCode(s string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(StripDiacritics(s)), "")
}

// platformMerges maps an alias canonical code to its winning canonical
// code.
var platformMerges = map[string]string{
	"ps4":          "playstation4",
	"ps5":          "playstation5",
	"xboxseriesx":  "xboxseries",
	"generic":      "pc",
}

// ResolvePlatformCanonicalCode applies CanonicalCode then the alias merge
// table, so "ps4" and "playstation-4" converge on one canonical code.
func ResolvePlatformCanonicalCode(codeOrName string) string {
	cc := CanonicalCode(codeOrName)
	if merged, ok := platformMerges[cc]; ok {
		return merged
	}
	return cc
}

// Title normalizes a game title for use as a dedupe/lookup key: diacritics
// stripped, lowercased, collapsed whitespace. Idempotent: Title(Title(t)) == Title(t).
func Title(s string) string {
	s = StripDiacritics(s)
	s = strings.ToLower(strings.TrimSpace(s))
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

// Slug produces a kebab-case slug suitable for Product.slug.
func Slug(s string) string {
	s = strings.ToLower(StripDiacritics(s))
	var b strings.Builder
	lastDash := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash && b.Len() > 0 {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
