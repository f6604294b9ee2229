package canon

import (
	"context"

	"github.com/vgprice/engine/internal/database"
	"github.com/vgprice/engine/internal/ingesterr"
)

// EnsureVideoGame is the per-platform, per-edition SKU get-or-create.
// The edition column is NOT NULL DEFAULT '' so the unique key
// (title_id, platform_id, edition) covers edition-less SKUs without a
// COALESCE expression index. VideoGame must never carry a direct Product
// FK; the only path is title_id, enforced simply by the struct/schema
// never exposing one.
func EnsureVideoGame(ctx context.Context, db database.Querier, titleID, platformID int64, edition *string) (int64, error) {
	editionKey := ""
	if edition != nil {
		editionKey = *edition
	}

	var id int64
	err := db.QueryRow(ctx, `
		INSERT INTO video_games (title_id, platform_id, edition)
		VALUES ($1, $2, $3)
		ON CONFLICT (title_id, platform_id, edition) DO UPDATE SET updated_at = now()
		RETURNING id
	`, titleID, platformID, editionKey).Scan(&id)
	if err != nil {
		return 0, ingesterr.ClassifyPG(err, map[string]any{
			"title_id": titleID, "platform_id": platformID, "edition": editionKey,
		})
	}
	return id, nil
}

// GetVideoGame loads a VideoGame by id.
func GetVideoGame(ctx context.Context, db database.Querier, id int64) (*VideoGame, error) {
	var g VideoGame
	err := db.QueryRow(ctx, `
		SELECT id, title_id, platform_id, edition, regional_prices, created_at, updated_at
		FROM video_games WHERE id = $1
	`, id).Scan(&g.ID, &g.TitleID, &g.PlatformID, &g.Edition, &g.RegionalPrices, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}
