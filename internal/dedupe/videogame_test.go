package dedupe

import (
	"testing"
	"time"
)

// The winner has (has_images OR has_videos OR has_media_links OR
// has_ratings), else earliest created_at, else smallest id.
func TestPickGameWinner(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(24 * time.Hour)

	tests := []struct {
		name       string
		candidates []gameCandidate
		wantID     int64
	}{
		{
			name: "has images wins over earlier created_at",
			candidates: []gameCandidate{
				{ID: 1, CreatedAt: t0},
				{ID: 2, CreatedAt: t1, HasImages: true},
			},
			wantID: 2,
		},
		{
			name: "has ratings wins",
			candidates: []gameCandidate{
				{ID: 1, CreatedAt: t0},
				{ID: 2, CreatedAt: t1, HasRatings: true},
			},
			wantID: 2,
		},
		{
			name: "has media links wins",
			candidates: []gameCandidate{
				{ID: 1, CreatedAt: t1, HasLinks: true},
				{ID: 2, CreatedAt: t0},
			},
			wantID: 1,
		},
		{
			name: "no media anywhere falls back to earliest created_at",
			candidates: []gameCandidate{
				{ID: 2, CreatedAt: t1},
				{ID: 1, CreatedAt: t0},
			},
			wantID: 1,
		},
		{
			name: "tie falls back to smallest id",
			candidates: []gameCandidate{
				{ID: 8, CreatedAt: t0},
				{ID: 4, CreatedAt: t0},
			},
			wantID: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pickGameWinner(tt.candidates)
			if got.ID != tt.wantID {
				t.Errorf("pickGameWinner() = id %d, want %d", got.ID, tt.wantID)
			}
		})
	}
}

func TestGameCandidateScore(t *testing.T) {
	tests := []struct {
		name string
		g    gameCandidate
		want bool
	}{
		{"nothing", gameCandidate{}, false},
		{"images", gameCandidate{HasImages: true}, true},
		{"videos", gameCandidate{HasVideos: true}, true},
		{"links", gameCandidate{HasLinks: true}, true},
		{"ratings", gameCandidate{HasRatings: true}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.g.score(); got != tt.want {
				t.Errorf("score() = %v, want %v", got, tt.want)
			}
		})
	}
}
