// Package media implements the deduplicated media catalog: canonical
// media rows keyed by sha256(url), and the per-game link table that
// references them.
package media

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vgprice/engine/internal/database"
	"github.com/vgprice/engine/internal/ingesterr"
)

// Kind enumerates GameMedia.kind.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// MediaType enumerates GameMedia.media_type.
type MediaType string

const (
	TypeCover      MediaType = "cover"
	TypeHero       MediaType = "hero"
	TypeScreenshot MediaType = "screenshot"
	TypeArtwork    MediaType = "artwork"
	TypeTrailer    MediaType = "trailer"
	TypeGameplay   MediaType = "gameplay"
	TypeLogo       MediaType = "logo"
	TypeIcon       MediaType = "icon"
	TypeBackground MediaType = "background"
	TypePreview    MediaType = "preview"
)

// HashURL computes the sha256 hex digest used as CanonicalMedia.url_hash.
func HashURL(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

// CanonicalMediaOpts carries the optional attributes ensure_canonical_media accepts.
type CanonicalMediaOpts struct {
	MimeType    *string
	Width       *int32
	Height      *int32
	SizeBytes   *int64
	ContentHash *string
}

// EnsureCanonicalMedia routes every new media URL through the dedup store,
// incrementing access_count on repeat sightings.
func EnsureCanonicalMedia(ctx context.Context, db database.Querier, url string, opts CanonicalMediaOpts) (int64, error) {
	urlHash := HashURL(url)

	var id int64
	err := db.QueryRow(ctx, `
		INSERT INTO canonical_media (url, url_hash, mime_type, width, height, size_bytes, hash, access_count, last_verified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 1, now())
		ON CONFLICT (url_hash) DO UPDATE SET
			access_count = canonical_media.access_count + 1,
			last_verified_at = now()
		RETURNING id
	`, url, urlHash, opts.MimeType, opts.Width, opts.Height, opts.SizeBytes, opts.ContentHash).Scan(&id)
	if err != nil {
		return 0, ingesterr.ClassifyPG(err, map[string]any{"url_hash": urlHash})
	}
	return id, nil
}

// GameMediaInput is one media link to upsert for a video game.
type GameMediaInput struct {
	VideoGameID      int64
	Source           string
	ExternalID       string
	Kind             Kind
	MediaType        MediaType
	URL              string
	StreamURL        *string
	CDNURL           *string
	Width            *int32
	Height           *int32
	ProviderData     []byte
	CanonicalMediaID *int64
}

// validate enforces the media-row invariants before the write.
func (g GameMediaInput) validate() error {
	if g.Kind == KindVideo && g.StreamURL == nil && g.URL == "" {
		return &ingesterr.Error{Kind: ingesterr.KindInvariantViolation, Err: errVideoMissingURL}
	}
	if g.URL == "" {
		return &ingesterr.Error{Kind: ingesterr.KindInvariantViolation, Err: errEmptyURL}
	}
	if (g.Width != nil && *g.Width <= 0) || (g.Height != nil && *g.Height <= 0) {
		return &ingesterr.Error{Kind: ingesterr.KindInvariantViolation, Err: errNonPositiveDims}
	}
	return nil
}

// UpsertGameMedia idempotently links media to a video game via the
// composite key (video_game_id, source, external_id), so backfill is safe.
func UpsertGameMedia(ctx context.Context, db database.Querier, in GameMediaInput) error {
	if err := in.validate(); err != nil {
		return err
	}

	_, err := db.Exec(ctx, `
		INSERT INTO game_media (
			video_game_id, source, external_id, kind, media_type, url, stream_url, cdn_url,
			width, height, provider_data, canonical_media_id, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12, now(), now())
		ON CONFLICT (video_game_id, source, external_id) DO UPDATE SET
			kind = EXCLUDED.kind,
			media_type = EXCLUDED.media_type,
			url = EXCLUDED.url,
			stream_url = EXCLUDED.stream_url,
			cdn_url = EXCLUDED.cdn_url,
			width = EXCLUDED.width,
			height = EXCLUDED.height,
			provider_data = EXCLUDED.provider_data,
			canonical_media_id = EXCLUDED.canonical_media_id,
			updated_at = now()
	`, in.VideoGameID, in.Source, in.ExternalID, in.Kind, in.MediaType, in.URL, in.StreamURL, in.CDNURL,
		in.Width, in.Height, in.ProviderData, in.CanonicalMediaID)
	if err != nil {
		return ingesterr.ClassifyPG(err, map[string]any{"video_game_id": in.VideoGameID, "source": in.Source})
	}
	return nil
}

// UnusedCandidate is a canonical_media row with zero references.
type UnusedCandidate struct {
	ID             int64
	URL            string
	LastVerifiedAt time.Time
}

// CleanupUnusedCanonicalMedia returns (and, if apply, deletes) canonical
// media rows with zero references older than minAge. Dry-run by default.
func CleanupUnusedCanonicalMedia(ctx context.Context, pool *pgxpool.Pool, minAge time.Duration, apply bool) ([]UnusedCandidate, error) {
	cutoff := time.Now().Add(-minAge)

	rows, err := pool.Query(ctx, `
		SELECT cm.id, cm.url, cm.last_verified_at
		FROM canonical_media cm
		WHERE cm.last_verified_at < $1
		  AND NOT EXISTS (SELECT 1 FROM game_media gm WHERE gm.canonical_media_id = cm.id)
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []UnusedCandidate
	for rows.Next() {
		var c UnusedCandidate
		if err := rows.Scan(&c.ID, &c.URL, &c.LastVerifiedAt); err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}

	if !apply || len(candidates) == 0 {
		return candidates, nil
	}

	ids := make([]int64, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}
	if _, err := pool.Exec(ctx, `DELETE FROM canonical_media WHERE id = ANY($1)`, ids); err != nil {
		return nil, err
	}

	return candidates, nil
}

type mediaError string

func (e mediaError) Error() string { return string(e) }

const (
	errEmptyURL        = mediaError("game_media.url must be non-empty")
	errNonPositiveDims  = mediaError("game_media dimensions must be strictly positive when present")
	errVideoMissingURL = mediaError("video media must expose stream_url or url")
)
