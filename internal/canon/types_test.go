package canon

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMinorUnitFor(t *testing.T) {
	tests := []struct {
		code string
		want int32
	}{
		{"USD", 2},
		{"EUR", 2},
		{"JPY", 0},
		{"KRW", 0},
		{"VND", 0},
		{"CLP", 0},
		{"ISK", 0},
		{"HUF", 0},
		{"BHD", 3},
		{"IQD", 3},
		{"KWD", 3},
		{"JOD", 3},
		{"OMR", 3},
		{"TND", 3},
		{"XYZ", 2},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, MinorUnitFor(tt.code))
		})
	}
}
