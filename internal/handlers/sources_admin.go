package handlers

import (
	"encoding/hex"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vgprice/engine/internal/canon"
	"github.com/vgprice/engine/internal/sources"
)

// RegisterSourceRequest is the POST /internal/admin/sources body.
type RegisterSourceRequest struct {
	ProviderKey        string   `json:"provider_key" binding:"required"`
	Slug               string   `json:"slug" binding:"required"`
	Kind               string   `json:"kind" binding:"required,oneof=storefront catalog media aggregator"`
	RetailerSlug       string   `json:"retailer_slug"`
	Priority           int16    `json:"priority"`
	RateLimitPerMinute int32    `json:"rate_limit_per_minute"`
	RateLimitBurst     int32    `json:"rate_limit_burst"`
	JurisdictionScope  []string `json:"jurisdiction_scope"`
	Credentials        string   `json:"credentials"`
}

// RegisterSource handles POST /internal/admin/sources: provider identity,
// its retailer binding, and (optionally) sealed credentials in one call.
// credentialsEncKeyHex must decode to 32 bytes whenever credentials are
// supplied; its absence then is a configuration error, not a silent
// plaintext write.
func RegisterSource(pool *pgxpool.Pool, credentialsEncKeyHex string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterSourceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		var encKey [32]byte
		var creds []byte
		if req.Credentials != "" {
			decoded, err := hex.DecodeString(credentialsEncKeyHex)
			if err != nil || len(decoded) != 32 {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "CREDENTIALS_ENC_KEY missing or not 32 bytes of hex"})
				return
			}
			copy(encKey[:], decoded)
			creds = []byte(req.Credentials)
		}

		ctx := c.Request.Context()
		sourceID, err := sources.EnsureProvider(ctx, pool, req.ProviderKey, req.Slug, sources.Kind(req.Kind))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		var retailerID *int64
		if req.RetailerSlug != "" {
			id, err := canon.EnsureRetailer(ctx, pool, req.RetailerSlug, req.RetailerSlug)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			retailerID = &id
		}

		priority := req.Priority
		if priority == 0 {
			priority = 100
		}
		perMinute := req.RateLimitPerMinute
		if perMinute == 0 {
			perMinute = 60
		}
		burst := req.RateLimitBurst
		if burst == 0 {
			burst = 10
		}

		bindingID, err := sources.UpsertRetailerBinding(ctx, pool, sources.BindingInput{
			SourceID:           sourceID,
			RetailerID:         retailerID,
			Priority:           priority,
			RateLimitPerMinute: perMinute,
			RateLimitBurst:     burst,
			JurisdictionScope:  req.JurisdictionScope,
			Credentials:        creds,
		}, encKey, "admin-api")
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusCreated, gin.H{"source_id": sourceID, "binding_id": bindingID})
	}
}
