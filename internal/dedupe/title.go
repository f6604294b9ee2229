package dedupe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type titleCandidate struct {
	ID           int64
	CreatedAt    time.Time
	HasSellables bool
	HasSources   bool
}

// pickTitleWinner ranks (has_sellables OR has_sources) highest, else
// earliest created_at, else smallest id.
func pickTitleWinner(candidates []titleCandidate) titleCandidate {
	best := candidates[0]
	for _, c := range candidates[1:] {
		bestScore := best.HasSellables || best.HasSources
		cScore := c.HasSellables || c.HasSources
		switch {
		case cScore && !bestScore:
			best = c
		case cScore == bestScore && c.CreatedAt.Before(best.CreatedAt):
			best = c
		case cScore == bestScore && c.CreatedAt.Equal(best.CreatedAt) && c.ID < best.ID:
			best = c
		}
	}
	return best
}

// TitleDedupeAudit mirrors video_game_title_dedupe_audit.
type TitleDedupeAudit struct {
	WinnerID int64
	LoserID  int64
}

// MergeTitles scans for titles sharing the canonical key
// COALESCE(NULLIF(normalized_title,''), lower(title)) scoped by
// COALESCE(product_id, 0), picks a winner, and repoints
// video_games.title_id, video_game_title_sources, and sellables (merging
// loser sellables into the keeper's sellable to avoid unique violations
// on offers), recording an audit row per merge.
func MergeTitles(ctx context.Context, pool *pgxpool.Pool) ([]TitleDedupeAudit, error) {
	rows, err := pool.Query(ctx, `
		SELECT COALESCE(product_id, 0), COALESCE(NULLIF(normalized_title, ''), lower(title)) AS key,
		       array_agg(id) AS ids
		FROM video_game_titles
		GROUP BY 1, 2
		HAVING count(*) > 1
	`)
	if err != nil {
		return nil, fmt.Errorf("find duplicate titles: %w", err)
	}
	defer rows.Close()

	var groupsIDs [][]int64
	for rows.Next() {
		var productID int64
		var key string
		var ids []int64
		if err := rows.Scan(&productID, &key, &ids); err != nil {
			return nil, err
		}
		groupsIDs = append(groupsIDs, ids)
	}
	rows.Close()

	var audits []TitleDedupeAudit
	for _, ids := range groupsIDs {
		candidates := make([]titleCandidate, 0, len(ids))
		for _, id := range ids {
			var c titleCandidate
			c.ID = id
			err := pool.QueryRow(ctx, `
				SELECT t.created_at,
				       EXISTS(SELECT 1 FROM sellables s WHERE s.software_title_id = t.id) AS has_sellables,
				       COALESCE(array_length(t.source_ids, 1), 0) > 0 AS has_sources
				FROM video_game_titles t WHERE t.id = $1
			`, id).Scan(&c.CreatedAt, &c.HasSellables, &c.HasSources)
			if err != nil {
				return audits, err
			}
			candidates = append(candidates, c)
		}

		winner := pickTitleWinner(candidates)
		for _, c := range candidates {
			if c.ID == winner.ID {
				continue
			}
			if err := mergeOneTitle(ctx, pool, winner.ID, c.ID); err != nil {
				return audits, err
			}
			audits = append(audits, TitleDedupeAudit{WinnerID: winner.ID, LoserID: c.ID})
		}
	}

	return audits, nil
}

// RunTitleDedupe runs MergeTitles, and when applyCandidates is set also
// folds in every pending title_match_candidates row above threshold, the
// two halves of the `dedupe-titles [--apply-candidates]` CLI verb.
func RunTitleDedupe(ctx context.Context, pool *pgxpool.Pool, applyCandidates bool, candidateThreshold float64) ([]TitleDedupeAudit, error) {
	audits, err := MergeTitles(ctx, pool)
	if err != nil {
		return audits, err
	}
	if !applyCandidates {
		return audits, nil
	}

	pending, err := PendingTitleCandidates(ctx, pool, candidateThreshold)
	if err != nil {
		return audits, err
	}
	for _, c := range pending {
		if err := ApplyTitleCandidate(ctx, pool, c); err != nil {
			return audits, err
		}
		audits = append(audits, TitleDedupeAudit{WinnerID: c.MatchedTitleID, LoserID: c.TitleID})
	}
	return audits, nil
}

func mergeOneTitle(ctx context.Context, pool *pgxpool.Pool, winnerID, loserID int64) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE video_games SET title_id = $1 WHERE title_id = $2`, winnerID, loserID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE video_game_title_sources SET video_game_title_id = $1 WHERE video_game_title_id = $2
	`, winnerID, loserID); err != nil {
		return err
	}

	// Reassign offers from the loser's sellable to the keeper's sellable
	// (creating one if the keeper has none yet) so no unique violation
	// fires on (sellable_id, retailer_id, sku) during the repoint.
	var winnerSellableID *int64
	if err := tx.QueryRow(ctx, `SELECT id FROM sellables WHERE software_title_id = $1`, winnerID).Scan(&winnerSellableID); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
	}
	if winnerSellableID == nil {
		if err := tx.QueryRow(ctx, `
			INSERT INTO sellables (software_title_id) VALUES ($1) RETURNING id
		`, winnerID).Scan(&winnerSellableID); err != nil {
			return err
		}
	}

	var loserSellableID *int64
	err = tx.QueryRow(ctx, `SELECT id FROM sellables WHERE software_title_id = $1`, loserID).Scan(&loserSellableID)
	if err == nil && loserSellableID != nil {
		if _, err := tx.Exec(ctx, `
			UPDATE offers SET sellable_id = $1 WHERE sellable_id = $2
			AND NOT EXISTS (
				SELECT 1 FROM offers o2
				WHERE o2.sellable_id = $1 AND o2.retailer_id = offers.retailer_id
				  AND COALESCE(o2.sku, '') = COALESCE(offers.sku, '')
			)
		`, *winnerSellableID, *loserSellableID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM offers WHERE sellable_id = $1`, *loserSellableID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM sellables WHERE id = $1`, *loserSellableID); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO video_game_title_dedupe_audit (winner_id, loser_id, loser_attributes, logged_at)
		SELECT $1, $2, to_jsonb(t), now() FROM video_game_titles t WHERE t.id = $2
	`, winnerID, loserID); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM video_game_titles WHERE id = $1`, loserID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
