package dedupe

import (
	"testing"
	"time"
)

// The winner is the title with (has_sellables OR has_sources) ranked
// highest, else earliest created_at, else smallest id.
func TestPickTitleWinner(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	tests := []struct {
		name       string
		candidates []titleCandidate
		wantID     int64
	}{
		{
			name: "has sellables wins over earlier created_at",
			candidates: []titleCandidate{
				{ID: 1, CreatedAt: t0, HasSellables: false, HasSources: false},
				{ID: 2, CreatedAt: t1, HasSellables: true, HasSources: false},
			},
			wantID: 2,
		},
		{
			name: "has sources wins",
			candidates: []titleCandidate{
				{ID: 1, CreatedAt: t0},
				{ID: 2, CreatedAt: t1, HasSources: true},
			},
			wantID: 2,
		},
		{
			name: "tie on score falls back to earliest created_at",
			candidates: []titleCandidate{
				{ID: 2, CreatedAt: t1},
				{ID: 1, CreatedAt: t0},
			},
			wantID: 1,
		},
		{
			name: "tie on score and created_at falls back to smallest id",
			candidates: []titleCandidate{
				{ID: 5, CreatedAt: t0},
				{ID: 3, CreatedAt: t0},
				{ID: 7, CreatedAt: t0},
			},
			wantID: 3,
		},
		{
			name: "single candidate wins trivially",
			candidates: []titleCandidate{
				{ID: 9, CreatedAt: t0},
			},
			wantID: 9,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pickTitleWinner(tt.candidates)
			if got.ID != tt.wantID {
				t.Errorf("pickTitleWinner() = id %d, want %d", got.ID, tt.wantID)
			}
		})
	}
}
