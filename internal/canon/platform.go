package canon

import (
	"context"

	"github.com/vgprice/engine/internal/database"
	"github.com/vgprice/engine/internal/ingesterr"
	"github.com/vgprice/engine/internal/normalize"
)

// EnsurePlatform resolves code/name to the merged canonical_code
// (ps4 to playstation-4, xbox-series-x to xbox-series, generic to pc)
// before the get-or-create, so aliases converge on one row without a
// separate dedupe pass ever running.
func EnsurePlatform(ctx context.Context, db database.Querier, code, name, family string) (int64, error) {
	canonicalCode := normalize.ResolvePlatformCanonicalCode(code)

	var id int64
	err := db.QueryRow(ctx, `
		INSERT INTO platforms (code, name, family, canonical_code)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (canonical_code) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`, code, name, family, canonicalCode).Scan(&id)
	if err != nil {
		return 0, ingesterr.ClassifyPG(err, map[string]any{"code": code, "canonical_code": canonicalCode})
	}
	return id, nil
}

// GetPlatformByCanonicalCode looks up a platform by its merged canonical code.
func GetPlatformByCanonicalCode(ctx context.Context, db database.Querier, codeOrName string) (*Platform, error) {
	canonicalCode := normalize.ResolvePlatformCanonicalCode(codeOrName)
	var p Platform
	err := db.QueryRow(ctx, `
		SELECT id, code, name, family, canonical_code, created_at
		FROM platforms WHERE canonical_code = $1
	`, canonicalCode).Scan(&p.ID, &p.Code, &p.Name, &p.Family, &p.CanonicalCode, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
