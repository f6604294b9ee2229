package canon

import (
	"context"

	"github.com/vgprice/engine/internal/database"
	"github.com/vgprice/engine/internal/ingesterr"
	"github.com/vgprice/engine/internal/normalize"
)

// EnsureConsole is the hardware counterpart of EnsureTitle: the only path
// from a hardware Product to a purchasable console row. Canonical key is
// (product_id, normalized name).
func EnsureConsole(ctx context.Context, db database.Querier, productID int64, name string) (int64, error) {
	normalized := normalize.Title(name)

	var id int64
	err := db.QueryRow(ctx, `
		INSERT INTO consoles (product_id, name, normalized_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (product_id, normalized_name) DO UPDATE SET name = consoles.name
		RETURNING id
	`, productID, name, normalized).Scan(&id)
	if err != nil {
		return 0, ingesterr.ClassifyPG(err, map[string]any{"product_id": productID, "name": name})
	}
	return id, nil
}
