package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vgprice/engine/internal/ingesterr"
	"github.com/vgprice/engine/internal/sources"
)

func TestListDueOrdersByPriorityThenNextSync(t *testing.T) {
	ctx := context.Background()
	pool := setupTestDB(t)

	lowPri, err := sources.EnsureProvider(ctx, pool, "itad", "itad", sources.KindAggregator)
	require.NoError(t, err)
	highPri, err := sources.EnsureProvider(ctx, pool, "steam", "steam", sources.KindStorefront)
	require.NoError(t, err)

	_, err = sources.UpsertRetailerBinding(ctx, pool, sources.BindingInput{
		SourceID: lowPri, Priority: 200, RateLimitPerMinute: 60, RateLimitBurst: 10,
	}, [32]byte{}, "test")
	require.NoError(t, err)
	_, err = sources.UpsertRetailerBinding(ctx, pool, sources.BindingInput{
		SourceID: highPri, Priority: 50, RateLimitPerMinute: 60, RateLimitBurst: 10,
	}, [32]byte{}, "test")
	require.NoError(t, err)

	due, err := sources.ListDue(ctx, pool, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "steam", due[0].Slug, "lower priority number runs first")
	assert.Equal(t, "itad", due[1].Slug)
}

func TestSyncLeaseLifecycle(t *testing.T) {
	ctx := context.Background()
	pool := setupTestDB(t)

	sourceID, err := sources.EnsureProvider(ctx, pool, "steam", "steam", sources.KindStorefront)
	require.NoError(t, err)
	_, err = sources.UpsertRetailerBinding(ctx, pool, sources.BindingInput{
		SourceID: sourceID, Priority: 50, RateLimitPerMinute: 60, RateLimitBurst: 10,
	}, [32]byte{}, "test")
	require.NoError(t, err)

	token, err := sources.ClaimForSync(ctx, pool, sourceID, "worker-a")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	// A second scheduler cannot double-claim a leased source.
	_, err = sources.ClaimForSync(ctx, pool, sourceID, "worker-b")
	require.Error(t, err)
	assert.True(t, ingesterr.Is(err, ingesterr.KindLock))

	require.NoError(t, sources.Heartbeat(ctx, pool, sourceID, token))

	// A heartbeat with the wrong token means the lease was lost.
	err = sources.Heartbeat(ctx, pool, sourceID, "not-the-token")
	require.Error(t, err)
	assert.True(t, ingesterr.Is(err, ingesterr.KindLock))

	require.NoError(t, sources.CompleteSync(ctx, pool, sourceID, token, sources.StatusOK, time.Hour, nil))

	var status string
	var leaseToken *string
	require.NoError(t, pool.QueryRow(ctx, `
		SELECT sync_status, lease_token FROM retailer_video_game_sources WHERE video_game_source_id = $1
	`, sourceID).Scan(&status, &leaseToken))
	assert.Equal(t, "ok", status)
	assert.Nil(t, leaseToken, "completing the sync releases the lease")

	// Released, the source is claimable again.
	_, err = sources.ClaimForSync(ctx, pool, sourceID, "worker-b")
	require.NoError(t, err)
}

func TestUpsertRetailerBindingSealsAndAuditsCredentials(t *testing.T) {
	ctx := context.Background()
	pool := setupTestDB(t)

	sourceID, err := sources.EnsureProvider(ctx, pool, "epic", "epic", sources.KindStorefront)
	require.NoError(t, err)

	var key [32]byte
	copy(key[:], []byte("0123456789abcdef0123456789abcdef"))
	plaintext := []byte(`{"api_key":"secret"}`)

	bindingID, err := sources.UpsertRetailerBinding(ctx, pool, sources.BindingInput{
		SourceID: sourceID, Priority: 50, RateLimitPerMinute: 60, RateLimitBurst: 10,
		Credentials: plaintext,
	}, key, "test-operator")
	require.NoError(t, err)

	var sealed []byte
	require.NoError(t, pool.QueryRow(ctx, `
		SELECT credentials_enc FROM retailer_video_game_sources WHERE id = $1
	`, bindingID).Scan(&sealed))
	require.NotEmpty(t, sealed)
	assert.NotContains(t, string(sealed), "secret", "plaintext must never hit the table")

	opened, err := sources.OpenCredentials(key, sealed)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)

	var auditCount int
	require.NoError(t, pool.QueryRow(ctx, `
		SELECT count(*) FROM retailer_video_game_source_credential_audit
		WHERE retailer_provider_id = $1 AND changed_by = 'test-operator' AND operation = 'upsert'
	`, bindingID).Scan(&auditCount))
	assert.Equal(t, 1, auditCount)

	// Re-upserting without credentials keeps the sealed blob and adds no audit row.
	_, err = sources.UpsertRetailerBinding(ctx, pool, sources.BindingInput{
		SourceID: sourceID, Priority: 60, RateLimitPerMinute: 60, RateLimitBurst: 10,
	}, [32]byte{}, "test-operator")
	require.NoError(t, err)

	var stillSealed []byte
	require.NoError(t, pool.QueryRow(ctx, `
		SELECT credentials_enc FROM retailer_video_game_sources WHERE id = $1
	`, bindingID).Scan(&stillSealed))
	assert.Equal(t, sealed, stillSealed)

	require.NoError(t, pool.QueryRow(ctx, `
		SELECT count(*) FROM retailer_video_game_source_credential_audit WHERE retailer_provider_id = $1
	`, bindingID).Scan(&auditCount))
	assert.Equal(t, 1, auditCount)
}
