// Package dedupe implements the deduplication sweeps: platform/title/
// video-game merges and fuzzy candidate surfacing over the
// canonical_code / normalized_title keys.
package dedupe

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PlatformMergeAudit mirrors the platform_merge_audit table.
type PlatformMergeAudit struct {
	OldID      int64
	NewID      int64
	OldCode    string
	NewCode    string
	MergedRows int64
}

// MergePlatforms finds platform rows sharing a canonical_code (which
// EnsurePlatform should prevent going forward, but pre-existing data or a
// merge-table update can still produce duplicates) and folds every loser
// into the lowest-id winner: repoint video_games.platform_id, write an
// audit row, delete the loser.
func MergePlatforms(ctx context.Context, pool *pgxpool.Pool) ([]PlatformMergeAudit, error) {
	rows, err := pool.Query(ctx, `
		SELECT canonical_code, array_agg(id ORDER BY id) AS ids, array_agg(code ORDER BY id) AS codes
		FROM platforms
		GROUP BY canonical_code
		HAVING count(*) > 1
	`)
	if err != nil {
		return nil, fmt.Errorf("find duplicate platforms: %w", err)
	}
	defer rows.Close()

	type group struct {
		canonicalCode string
		ids           []int64
		codes         []string
	}
	var groups []group
	for rows.Next() {
		var g group
		if err := rows.Scan(&g.canonicalCode, &g.ids, &g.codes); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	rows.Close()

	var audits []PlatformMergeAudit
	for _, g := range groups {
		winnerID, winnerCode := g.ids[0], g.codes[0]
		for i := 1; i < len(g.ids); i++ {
			loserID, loserCode := g.ids[i], g.codes[i]

			tx, err := pool.Begin(ctx)
			if err != nil {
				return audits, err
			}

			tag, err := tx.Exec(ctx, `UPDATE video_games SET platform_id = $1 WHERE platform_id = $2`, winnerID, loserID)
			if err != nil {
				tx.Rollback(ctx)
				return audits, err
			}
			merged := tag.RowsAffected()

			if _, err := tx.Exec(ctx, `
				INSERT INTO platform_merge_audit (old_id, new_id, old_code, new_code, merged_rows, merged_at)
				VALUES ($1, $2, $3, $4, $5, now())
			`, loserID, winnerID, loserCode, winnerCode, merged); err != nil {
				tx.Rollback(ctx)
				return audits, err
			}

			if _, err := tx.Exec(ctx, `DELETE FROM platforms WHERE id = $1`, loserID); err != nil {
				tx.Rollback(ctx)
				return audits, err
			}

			if err := tx.Commit(ctx); err != nil {
				return audits, err
			}

			audits = append(audits, PlatformMergeAudit{
				OldID: loserID, NewID: winnerID, OldCode: loserCode, NewCode: winnerCode, MergedRows: merged,
			})
		}
	}

	return audits, nil
}
