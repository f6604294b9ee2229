package fx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSatsPerUnit(t *testing.T) {
	tests := []struct {
		name        string
		amountMinor int64
		minorUnit   int32
		rate        float64
		want        int64
	}{
		{"usd 9.99 at 0.00002 BTC/USD", 999, 2, 0.00002, 19980},
		{"jpy has no minor digits", 500, 0, 0.0000001, 5000},
		{"kwd uses three minor digits", 1500, 3, 0.0001, 15000},
		{"free stays zero", 0, 2, 0.00002, 0},
		{"sub-satoshi amount rounds to zero", 1, 2, 0.000000000025, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, satsPerUnit(tt.amountMinor, tt.minorUnit, tt.rate))
		})
	}
}
