package canon

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/vgprice/engine/internal/database"
	"github.com/vgprice/engine/internal/ingesterr"
)

// EnsureProduct get-or-creates the catalog root row for a slug. A
// conflicting concurrent insert resolves through the ON CONFLICT clause,
// so both callers get the same id back.
func EnsureProduct(ctx context.Context, db database.Querier, slug, name string, category Category) (int64, error) {
	var id int64
	err := db.QueryRow(ctx, `
		INSERT INTO products (slug, name, category)
		VALUES ($1, $2, $3)
		ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`, slug, name, category).Scan(&id)
	if err != nil {
		return 0, ingesterr.ClassifyPG(err, map[string]any{"slug": slug})
	}
	return id, nil
}

// ReconcileProductCounts recomputes software_children_count and
// hardware_children_count for a product from its actual children;
// reconciliation happens in application code rather than database
// triggers. Called synchronously after any operation that adds
// or removes a title/console child, and again by a periodic sweep.
// Callers that need the counts and the child writes to land atomically
// pass the transaction the writes ran in.
func ReconcileProductCounts(ctx context.Context, db database.Querier, productID int64) error {
	var softwareCount, hardwareCount int32
	if err := db.QueryRow(ctx,
		`SELECT count(*) FROM video_game_titles WHERE product_id = $1`, productID,
	).Scan(&softwareCount); err != nil {
		return fmt.Errorf("count titles: %w", err)
	}
	if err := db.QueryRow(ctx,
		`SELECT count(*) FROM consoles WHERE product_id = $1`, productID,
	).Scan(&hardwareCount); err != nil {
		return fmt.Errorf("count consoles: %w", err)
	}

	if softwareCount > 0 && hardwareCount > 0 {
		return &ingesterr.Error{
			Kind: ingesterr.KindInvariantViolation,
			Err:  fmt.Errorf("product %d has both software and hardware children", productID),
			Context: map[string]any{
				"product_id":     productID,
				"software_count": softwareCount,
				"hardware_count": hardwareCount,
			},
		}
	}

	if _, err := db.Exec(ctx, `
		UPDATE products SET software_children_count = $2, hardware_children_count = $3, updated_at = now()
		WHERE id = $1
	`, productID, softwareCount, hardwareCount); err != nil {
		return fmt.Errorf("update counts: %w", err)
	}

	return nil
}

// GetProduct loads a Product by id.
func GetProduct(ctx context.Context, db database.Querier, id int64) (*Product, error) {
	var p Product
	err := db.QueryRow(ctx, `
		SELECT id, slug, name, category, software_children_count, hardware_children_count, created_at, updated_at
		FROM products WHERE id = $1
	`, id).Scan(&p.ID, &p.Slug, &p.Name, &p.Category, &p.SoftwareChildrenCount, &p.HardwareChildrenCount, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}
