// Package sources implements the source registry:
// Provider/VideoGameSource identity, per-retailer bindings, sync state,
// and credential storage.
package sources

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vgprice/engine/internal/ingesterr"
)

// Kind enumerates VideoGameSource.kind.
type Kind string

const (
	KindStorefront Kind = "storefront"
	KindCatalog    Kind = "catalog"
	KindMedia      Kind = "media"
	KindAggregator Kind = "aggregator"
)

// SyncStatus enumerates sync_status values.
type SyncStatus string

const (
	StatusOK      SyncStatus = "ok"
	StatusPartial SyncStatus = "partial"
	StatusError   SyncStatus = "error"
	StatusRunning SyncStatus = "running"
	StatusPending SyncStatus = "pending"
)

// DueSource is one row returned by ListDue, ordered for the scheduler.
type DueSource struct {
	SourceID           int64
	RetailerProviderID *int64
	Slug               string
	ProviderKey        string
	Kind               Kind
	RateLimitPerMinute int32
	RateLimitBurst     int32
	Priority           int16
	NextSyncAt         time.Time
}

// EnsureProvider get-or-creates a Provider/VideoGameSource by provider_key.
func EnsureProvider(ctx context.Context, pool *pgxpool.Pool, providerKey, slug string, kind Kind) (int64, error) {
	var id int64
	err := pool.QueryRow(ctx, `
		INSERT INTO video_game_sources (provider_key, slug, kind)
		VALUES ($1, $2, $3)
		ON CONFLICT (provider_key) DO UPDATE SET slug = EXCLUDED.slug
		RETURNING id
	`, providerKey, slug, kind).Scan(&id)
	if err != nil {
		return 0, ingesterr.ClassifyPG(err, map[string]any{"provider_key": providerKey})
	}
	return id, nil
}

// ListDue returns sources due for a sync, ordered (priority asc,
// next_sync_at asc).
func ListDue(ctx context.Context, pool *pgxpool.Pool, now time.Time, limit int) ([]DueSource, error) {
	rows, err := pool.Query(ctx, `
		SELECT s.id, rps.id, s.slug, s.provider_key, s.kind,
		       COALESCE(rps.rate_limit_per_minute, 60), COALESCE(rps.rate_limit_burst, 10),
		       COALESCE(rps.priority, 100), COALESCE(rps.next_sync_at, now())
		FROM video_game_sources s
		LEFT JOIN retailer_video_game_sources rps ON rps.video_game_source_id = s.id
		WHERE COALESCE(rps.is_enabled, true)
		  AND COALESCE(rps.next_sync_at, now()) <= $1
		ORDER BY COALESCE(rps.priority, 100) ASC, COALESCE(rps.next_sync_at, now()) ASC
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due sources: %w", err)
	}
	defer rows.Close()

	var due []DueSource
	for rows.Next() {
		var d DueSource
		if err := rows.Scan(&d.SourceID, &d.RetailerProviderID, &d.Slug, &d.ProviderKey, &d.Kind,
			&d.RateLimitPerMinute, &d.RateLimitBurst, &d.Priority, &d.NextSyncAt); err != nil {
			return nil, err
		}
		due = append(due, d)
	}
	return due, nil
}

// ClaimForSync acquires a 10-minute sync lease on a source. Returns the
// lease token used to prove ownership on heartbeat/commit.
func ClaimForSync(ctx context.Context, pool *pgxpool.Pool, sourceID int64, workerID string) (string, error) {
	leaseToken := uuid.New().String()
	leaseExpiry := time.Now().Add(10 * time.Minute)

	tag, err := pool.Exec(ctx, `
		UPDATE retailer_video_game_sources
		SET lease_token = $1, lease_expires_at = $2, locked_by = $3, sync_status = 'running'
		WHERE video_game_source_id = $4 AND (lease_expires_at IS NULL OR lease_expires_at < now())
	`, leaseToken, leaseExpiry, workerID, sourceID)
	if err != nil {
		return "", ingesterr.ClassifyPG(err, map[string]any{"source_id": sourceID})
	}
	if tag.RowsAffected() == 0 {
		return "", &ingesterr.Error{Kind: ingesterr.KindLock, Err: fmt.Errorf("source %d already leased", sourceID)}
	}
	return leaseToken, nil
}

// Heartbeat extends an active lease so a long-running sync isn't reclaimed mid-flight.
func Heartbeat(ctx context.Context, pool *pgxpool.Pool, sourceID int64, leaseToken string) error {
	tag, err := pool.Exec(ctx, `
		UPDATE retailer_video_game_sources
		SET lease_expires_at = now() + interval '10 minutes'
		WHERE video_game_source_id = $1 AND lease_token = $2
	`, sourceID, leaseToken)
	if err != nil {
		return ingesterr.ClassifyPG(err, nil)
	}
	if tag.RowsAffected() == 0 {
		return &ingesterr.Error{Kind: ingesterr.KindLock, Err: fmt.Errorf("lease lost for source %d", sourceID)}
	}
	return nil
}

// CompleteSync releases the lease and records final sync state.
func CompleteSync(ctx context.Context, pool *pgxpool.Pool, sourceID int64, leaseToken string, status SyncStatus, nextInterval time.Duration, errDetails []byte) error {
	_, err := pool.Exec(ctx, `
		UPDATE retailer_video_game_sources
		SET lease_token = NULL, lease_expires_at = NULL, locked_by = NULL,
		    sync_status = $3, last_synced_at = now(), next_sync_at = now() + make_interval(secs => $4),
		    error_details = $5
		WHERE video_game_source_id = $1 AND lease_token = $2
	`, sourceID, leaseToken, status, nextInterval.Seconds(), errDetails)
	return err
}

// BindingInput describes one retailer-source binding to upsert. A non-nil
// Credentials is plaintext and is sealed before storage.
type BindingInput struct {
	SourceID           int64
	RetailerID         *int64
	Priority           int16
	RateLimitPerMinute int32
	RateLimitBurst     int32
	JurisdictionScope  []string
	Settings           []byte
	Credentials        []byte
}

// UpsertRetailerBinding get-or-creates the per-retailer binding row for a
// source, sealing credentials when provided. Every credential write gets
// an audit row carrying the hash only, never the plaintext.
func UpsertRetailerBinding(ctx context.Context, pool *pgxpool.Pool, in BindingInput, encKey [32]byte, changedBy string) (int64, error) {
	var sealed []byte
	var credHash string
	if in.Credentials != nil {
		var err error
		sealed, credHash, err = SealCredentials(encKey, in.Credentials)
		if err != nil {
			return 0, &ingesterr.Error{Kind: ingesterr.KindConfig, Err: fmt.Errorf("seal credentials: %w", err)}
		}
	}

	scope := in.JurisdictionScope
	if scope == nil {
		scope = []string{}
	}

	var id int64
	err := pool.QueryRow(ctx, `
		INSERT INTO retailer_video_game_sources
			(video_game_source_id, retailer_id, priority, rate_limit_per_minute, rate_limit_burst,
			 jurisdiction_scope, settings, credentials_enc)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (video_game_source_id) DO UPDATE SET
			retailer_id = EXCLUDED.retailer_id,
			priority = EXCLUDED.priority,
			rate_limit_per_minute = EXCLUDED.rate_limit_per_minute,
			rate_limit_burst = EXCLUDED.rate_limit_burst,
			jurisdiction_scope = EXCLUDED.jurisdiction_scope,
			settings = EXCLUDED.settings,
			credentials_enc = COALESCE(EXCLUDED.credentials_enc, retailer_video_game_sources.credentials_enc)
		RETURNING id
	`, in.SourceID, in.RetailerID, in.Priority, in.RateLimitPerMinute, in.RateLimitBurst,
		scope, in.Settings, sealed).Scan(&id)
	if err != nil {
		return 0, ingesterr.ClassifyPG(err, map[string]any{"source_id": in.SourceID})
	}

	if in.Credentials != nil {
		if err := RecordCredentialAudit(ctx, pool, id, changedBy, "upsert", credHash); err != nil {
			return 0, err
		}
	}
	return id, nil
}

// --- Credential encryption ---

// SealCredentials encrypts plaintext credentials with AES-256-GCM using the
// key from CREDENTIALS_ENC_KEY. Returns the sealed blob and a change-
// detection hash (sha256 of plaintext) for the audit row.
func SealCredentials(key [32]byte, plaintext []byte) (sealed []byte, credHash string, err error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, "", err
	}
	sealed = gcm.Seal(nonce, nonce, plaintext, nil)
	sum := sha256.Sum256(plaintext)
	return sealed, hex.EncodeToString(sum[:]), nil
}

// OpenCredentials decrypts a blob sealed by SealCredentials.
func OpenCredentials(key [32]byte, sealed []byte) ([]byte, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, fmt.Errorf("sealed credentials too short")
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

// RecordCredentialAudit appends a row to the credential change audit log.
func RecordCredentialAudit(ctx context.Context, pool *pgxpool.Pool, retailerProviderID int64, changedBy, operation, credHash string) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO retailer_video_game_source_credential_audit
			(retailer_provider_id, changed_by, operation, cred_hash, changed_at)
		VALUES ($1, $2, $3, $4, now())
	`, retailerProviderID, changedBy, operation, credHash)
	return err
}
