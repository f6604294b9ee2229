package canon

import (
	"context"
	"fmt"

	"github.com/vgprice/engine/internal/database"
	"github.com/vgprice/engine/internal/ingesterr"
	"github.com/vgprice/engine/internal/normalize"
)

// EnsureTitle is the only path from a Product to its per-platform games.
// Canonical key is (product_id, normalized_title). The returned
// inserted flag distinguishes a fresh row from a hit on an existing one
// (via the xmax=0 trick), used by the caller to decide whether to run
// fuzzy candidate surfacing against sibling titles.
func EnsureTitle(ctx context.Context, db database.Querier, productID int64, title string) (id int64, inserted bool, err error) {
	normalized := normalize.Title(title)

	err = db.QueryRow(ctx, `
		INSERT INTO video_game_titles (product_id, title, normalized_title)
		VALUES ($1, $2, $3)
		ON CONFLICT (product_id, normalized_title) DO UPDATE SET title = video_game_titles.title
		RETURNING id, (xmax = 0)
	`, productID, title, normalized).Scan(&id, &inserted)
	if err != nil {
		return 0, false, ingesterr.ClassifyPG(err, map[string]any{"product_id": productID, "title": title})
	}
	return id, inserted, nil
}

// AddTitleAlias appends an alias string to a title's aliases[] unless it
// is the canonical title itself or already recorded.
func AddTitleAlias(ctx context.Context, db database.Querier, titleID int64, alias string) error {
	_, err := db.Exec(ctx, `
		UPDATE video_game_titles
		SET aliases = array_append(aliases, $2), updated_at = now()
		WHERE id = $1 AND title <> $2 AND NOT ($2 = ANY(aliases))
	`, titleID, alias)
	return err
}

// ReconcileTitleChildren rebuilds video_game_ids[] and source_ids[] on a
// title from its actual VideoGame/ProviderItem children, in application
// code rather than a database trigger.
func ReconcileTitleChildren(ctx context.Context, db database.Querier, titleID int64) error {
	if _, err := db.Exec(ctx, `
		UPDATE video_game_titles t
		SET video_game_ids = COALESCE((
			SELECT array_agg(g.id ORDER BY g.id) FROM video_games g WHERE g.title_id = t.id
		), '{}'),
		source_ids = COALESCE((
			SELECT array_agg(DISTINCT s.provider_id ORDER BY s.provider_id)
			FROM video_game_title_sources s WHERE s.video_game_title_id = t.id
		), '{}'),
		updated_at = now()
		WHERE t.id = $1
	`, titleID); err != nil {
		return fmt.Errorf("rebuild title children: %w", err)
	}

	return nil
}

// GetTitle loads a VideoGameTitle by id.
func GetTitle(ctx context.Context, db database.Querier, id int64) (*VideoGameTitle, error) {
	var t VideoGameTitle
	err := db.QueryRow(ctx, `
		SELECT id, product_id, title, normalized_title, aliases, video_game_ids, source_ids, created_at, updated_at
		FROM video_game_titles WHERE id = $1
	`, id).Scan(&t.ID, &t.ProductID, &t.Title, &t.NormalizedTitle, &t.Aliases, &t.VideoGameIDs, &t.SourceIDs, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
