package dedupe

import (
	"context"
	"time"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vgprice/engine/internal/database"
	"github.com/vgprice/engine/internal/normalize"
)

// DefaultCandidateThreshold is the Jaro-Winkler similarity above which a
// near-miss on ensure_title is surfaced as a TitleMatchCandidate instead of
// silently creating a near-duplicate title.
const DefaultCandidateThreshold = 0.92

var jw = metrics.NewJaroWinkler()

// SurfaceTitleCandidates scores newTitle against every existing title in
// the same product scope and records a TitleMatchCandidate row for any
// match scoring at or above threshold. ensure_title still creates the new
// title synchronously (get-or-create stays idempotent); this only feeds a
// later dedupe-titles --apply-candidates pass.
func SurfaceTitleCandidates(ctx context.Context, db database.Querier, productID int64, newTitleID int64, newTitle string, threshold float64) error {
	normalized := normalize.Title(newTitle)

	rows, err := db.Query(ctx, `
		SELECT id, title FROM video_game_titles
		WHERE product_id = $1 AND id != $2
	`, productID, newTitleID)
	if err != nil {
		return err
	}
	defer rows.Close()

	type hit struct {
		ID    int64
		Score float64
	}
	var hits []hit
	for rows.Next() {
		var id int64
		var title string
		if err := rows.Scan(&id, &title); err != nil {
			return err
		}
		score := strutil.Similarity(normalized, normalize.Title(title), jw)
		if score >= threshold {
			hits = append(hits, hit{ID: id, Score: score})
		}
	}
	rows.Close()

	for _, h := range hits {
		if _, err := db.Exec(ctx, `
			INSERT INTO title_match_candidates (title_id, matched_title_id, score, algorithm, created_at)
			VALUES ($1, $2, $3, 'jaro_winkler', now())
			ON CONFLICT (title_id, matched_title_id) DO UPDATE SET score = EXCLUDED.score
		`, newTitleID, h.ID, h.Score); err != nil {
			return err
		}
	}

	return nil
}

// TitleCandidate is a pending match surfaced by SurfaceTitleCandidates.
type TitleCandidate struct {
	TitleID        int64
	MatchedTitleID int64
	Score          float64
	CreatedAt      time.Time
}

// PendingTitleCandidates lists candidates above threshold not yet applied.
func PendingTitleCandidates(ctx context.Context, pool *pgxpool.Pool, threshold float64) ([]TitleCandidate, error) {
	rows, err := pool.Query(ctx, `
		SELECT title_id, matched_title_id, score, created_at
		FROM title_match_candidates
		WHERE score >= $1 AND applied_at IS NULL
		ORDER BY score DESC
	`, threshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TitleCandidate
	for rows.Next() {
		var c TitleCandidate
		if err := rows.Scan(&c.TitleID, &c.MatchedTitleID, &c.Score, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// ApplyTitleCandidate folds a surfaced candidate's title into its match,
// marking the candidate applied. This is the human/ops promotion path
// referenced by `dedupe-titles --apply-candidates`.
func ApplyTitleCandidate(ctx context.Context, pool *pgxpool.Pool, c TitleCandidate) error {
	if err := mergeOneTitle(ctx, pool, c.MatchedTitleID, c.TitleID); err != nil {
		return err
	}
	_, err := pool.Exec(ctx, `
		UPDATE title_match_candidates SET applied_at = now() WHERE title_id = $1 AND matched_title_id = $2
	`, c.TitleID, c.MatchedTitleID)
	return err
}
