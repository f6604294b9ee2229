package dedupe

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type gameCandidate struct {
	ID          int64
	CreatedAt   time.Time
	HasImages   bool
	HasVideos   bool
	HasLinks    bool
	HasRatings  bool
}

func (g gameCandidate) score() bool {
	return g.HasImages || g.HasVideos || g.HasLinks || g.HasRatings
}

// pickGameWinner ranks media-bearing games first, then oldest, then smallest id.
func pickGameWinner(candidates []gameCandidate) gameCandidate {
	best := candidates[0]
	for _, c := range candidates[1:] {
		switch {
		case c.score() && !best.score():
			best = c
		case c.score() == best.score() && c.CreatedAt.Before(best.CreatedAt):
			best = c
		case c.score() == best.score() && c.CreatedAt.Equal(best.CreatedAt) && c.ID < best.ID:
			best = c
		}
	}
	return best
}

// GameDedupeAudit mirrors the per-game dedupe audit table.
type GameDedupeAudit struct {
	WinnerID int64
	LoserID  int64
}

// MergeVideoGames scans for video_games sharing (title_id, platform_id,
// COALESCE(edition, '')), picks a winner, and repoints game_media,
// provider_media_links, and ratings.
func MergeVideoGames(ctx context.Context, pool *pgxpool.Pool) ([]GameDedupeAudit, error) {
	rows, err := pool.Query(ctx, `
		SELECT array_agg(id) AS ids
		FROM video_games
		GROUP BY title_id, platform_id, COALESCE(edition, '')
		HAVING count(*) > 1
	`)
	if err != nil {
		return nil, fmt.Errorf("find duplicate video games: %w", err)
	}
	defer rows.Close()

	var groupsIDs [][]int64
	for rows.Next() {
		var ids []int64
		if err := rows.Scan(&ids); err != nil {
			return nil, err
		}
		groupsIDs = append(groupsIDs, ids)
	}
	rows.Close()

	var audits []GameDedupeAudit
	for _, ids := range groupsIDs {
		candidates := make([]gameCandidate, 0, len(ids))
		for _, id := range ids {
			var c gameCandidate
			c.ID = id
			err := pool.QueryRow(ctx, `
				SELECT g.created_at,
				       EXISTS(SELECT 1 FROM game_media m WHERE m.video_game_id = g.id AND m.kind = 'image') AS has_images,
				       EXISTS(SELECT 1 FROM game_media m WHERE m.video_game_id = g.id AND m.kind = 'video') AS has_videos,
				       EXISTS(SELECT 1 FROM provider_media_links l WHERE l.video_game_id = g.id) AS has_links,
				       EXISTS(SELECT 1 FROM ratings r WHERE r.video_game_id = g.id) AS has_ratings
				FROM video_games g WHERE g.id = $1
			`, id).Scan(&c.CreatedAt, &c.HasImages, &c.HasVideos, &c.HasLinks, &c.HasRatings)
			if err != nil {
				return audits, err
			}
			candidates = append(candidates, c)
		}

		winner := pickGameWinner(candidates)
		for _, c := range candidates {
			if c.ID == winner.ID {
				continue
			}
			if err := mergeOneGame(ctx, pool, winner.ID, c.ID); err != nil {
				return audits, err
			}
			audits = append(audits, GameDedupeAudit{WinnerID: winner.ID, LoserID: c.ID})
		}
	}

	return audits, nil
}

func mergeOneGame(ctx context.Context, pool *pgxpool.Pool, winnerID, loserID int64) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE game_media SET video_game_id = $1 WHERE video_game_id = $2
		AND NOT EXISTS (
			SELECT 1 FROM game_media m2 WHERE m2.video_game_id = $1
			  AND m2.source = game_media.source AND m2.external_id = game_media.external_id
		)
	`, winnerID, loserID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM game_media WHERE video_game_id = $1`, loserID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE provider_media_links SET video_game_id = $1 WHERE video_game_id = $2`, winnerID, loserID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE ratings SET video_game_id = $1 WHERE video_game_id = $2`, winnerID, loserID); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO video_game_dedupe_audit (winner_id, loser_id, loser_attributes, logged_at)
		SELECT $1, $2, to_jsonb(g), now() FROM video_games g WHERE g.id = $2
	`, winnerID, loserID); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM video_games WHERE id = $1`, loserID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
