package canon

import (
	"context"

	"github.com/vgprice/engine/internal/database"
	"github.com/vgprice/engine/internal/ingesterr"
)

// EnsureSellableSoftware get-or-creates a Sellable wrapping a video game
// title. Exactly one of software_title_id/console_id is ever set on a
// row; this function only ever sets software_title_id.
func EnsureSellableSoftware(ctx context.Context, db database.Querier, titleID int64) (int64, error) {
	var id int64
	err := db.QueryRow(ctx, `
		INSERT INTO sellables (software_title_id)
		VALUES ($1)
		ON CONFLICT (software_title_id) WHERE software_title_id IS NOT NULL DO UPDATE SET software_title_id = EXCLUDED.software_title_id
		RETURNING id
	`, titleID).Scan(&id)
	if err != nil {
		return 0, ingesterr.ClassifyPG(err, map[string]any{"title_id": titleID})
	}
	return id, nil
}

// EnsureSellableHardware get-or-creates a Sellable wrapping a console.
func EnsureSellableHardware(ctx context.Context, db database.Querier, consoleID int64) (int64, error) {
	var id int64
	err := db.QueryRow(ctx, `
		INSERT INTO sellables (console_id)
		VALUES ($1)
		ON CONFLICT (console_id) WHERE console_id IS NOT NULL DO UPDATE SET console_id = EXCLUDED.console_id
		RETURNING id
	`, consoleID).Scan(&id)
	if err != nil {
		return 0, ingesterr.ClassifyPG(err, map[string]any{"console_id": consoleID})
	}
	return id, nil
}
