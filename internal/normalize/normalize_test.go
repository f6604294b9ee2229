package normalize

import "testing"

func TestStripDiacritics(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Pokémon", "Pokemon"},
		{"Pikmin", "Pikmin"},
		{"Überwachung", "Uberwachung"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := StripDiacritics(tt.input); got != tt.expected {
				t.Errorf("StripDiacritics(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestCanonicalCode(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"PS4", "ps4"},
		{"ps-4", "ps4"},
		{"Xbox Series X", "xboxseriesx"},
		{"playstation-4", "playstation4"},
		{"PC", "pc"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := CanonicalCode(tt.input); got != tt.expected {
				t.Errorf("CanonicalCode(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

// The platform merge table: ps4 and playstation-4 must
// resolve to the same canonical code.
func TestResolvePlatformCanonicalCode(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"ps4", "playstation4"},
		{"PS4", "playstation4"},
		{"playstation-4", "playstation4"},
		{"ps5", "playstation5"},
		{"playstation-5", "playstation5"},
		{"xbox-series-x", "xboxseries"},
		{"xbox-series", "xboxseries"},
		{"generic", "pc"},
		{"pc", "pc"},
		{"switch", "switch"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ResolvePlatformCanonicalCode(tt.input); got != tt.expected {
				t.Errorf("ResolvePlatformCanonicalCode(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestTitle(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Portal 2", "portal 2"},
		{"  Portal   2  ", "portal 2"},
		{"Pokémon Scarlet", "pokemon scarlet"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Title(tt.input); got != tt.expected {
				t.Errorf("Title(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

// Round-trip law: Normalize(Normalize(t)) == Normalize(t).
func TestTitleIdempotent(t *testing.T) {
	inputs := []string{"Portal 2", "  Pokémon   Scarlet  ", "already normalized", ""}
	for _, in := range inputs {
		once := Title(in)
		twice := Title(once)
		if once != twice {
			t.Errorf("Title not idempotent for %q: Title(t)=%q, Title(Title(t))=%q", in, once, twice)
		}
	}
}

func TestSlug(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Portal 2", "portal-2"},
		{"Pokémon Scarlet", "pokemon-scarlet"},
		{"Half-Life: Alyx", "half-life-alyx"},
		{"  leading and trailing  ", "leading-and-trailing"},
		{"!!!", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Slug(tt.input); got != tt.expected {
				t.Errorf("Slug(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
