// Package claims implements the batch claim/finalize protocol over
// provider_items using FOR UPDATE SKIP LOCKED.
package claims

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vgprice/engine/internal/database"
)

// ClaimedItem is one provider_item row reserved by ClaimBatch.
type ClaimedItem struct {
	ID         int64
	ProviderID int64
}

// ClaimBatch atomically reserves up to batchSize unprocessed provider_items
// rows, (attributes IS NULL OR last_seen_at IS NULL) AND locked_by IS NULL,
// using FOR UPDATE SKIP LOCKED, and marks them locked_by/locked_at.
func ClaimBatch(ctx context.Context, pool *pgxpool.Pool, workerID string, batchSize int, scopeProviderID *int64) ([]ClaimedItem, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT id, provider_id
		FROM provider_items
		WHERE (attributes IS NULL OR last_seen_at IS NULL)
		  AND locked_by IS NULL
		  AND ($2::bigint IS NULL OR provider_id = $2)
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, batchSize, scopeProviderID)
	if err != nil {
		return nil, err
	}

	var ids []int64
	var items []ClaimedItem
	for rows.Next() {
		var it ClaimedItem
		if err := rows.Scan(&it.ID, &it.ProviderID); err != nil {
			rows.Close()
			return nil, err
		}
		items = append(items, it)
		ids = append(ids, it.ID)
	}
	rows.Close()

	if len(ids) == 0 {
		return nil, tx.Commit(ctx)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE provider_items SET locked_by = $1, locked_at = now() WHERE id = ANY($2)
	`, workerID, ids); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return items, nil
}

// Finalize clears the lock on a batch of provider_items, replaces their
// attributes when attributes is non-nil, and sets last_seen_at.
func Finalize(ctx context.Context, pool *pgxpool.Pool, ids []int64, attributes []byte) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := pool.Exec(ctx, `
		UPDATE provider_items
		SET locked_by = NULL, locked_at = NULL,
		    attributes = COALESCE($2, attributes), last_seen_at = now()
		WHERE id = ANY($1)
	`, ids, attributes)
	return err
}

// RecoverStaleLocks clears provider_item locks older than threshold,
// returning the count recovered. Run on a timer.
func RecoverStaleLocks(ctx context.Context, pool *pgxpool.Pool, threshold time.Duration) (int, error) {
	tag, err := pool.Exec(ctx, `
		UPDATE provider_items
		SET locked_by = NULL, locked_at = NULL
		WHERE locked_by IS NOT NULL AND locked_at < now() - make_interval(secs => $1)
	`, threshold.Seconds())
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// UpsertProviderItem records/updates a raw per-source row keyed by
// (provider_id, external_id), the first step of each ingested record.
func UpsertProviderItem(ctx context.Context, db database.Querier, providerID int64, externalID string, attributes []byte) (int64, error) {
	var id int64
	err := db.QueryRow(ctx, `
		INSERT INTO provider_items (provider_id, external_id, attributes, last_seen_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (provider_id, external_id) DO UPDATE SET
			attributes = COALESCE(EXCLUDED.attributes, provider_items.attributes),
			last_seen_at = now()
		RETURNING id
	`, providerID, externalID, attributes).Scan(&id)
	return id, err
}
