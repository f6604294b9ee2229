// Package middleware provides the gin middleware guarding the internal
// admin API: constant-time API key auth and token-bucket rate limiting.
package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// InternalAuthMiddleware validates the X-Internal-API-Key header against
// apiKey using a constant-time comparison.
func InternalAuthMiddleware(apiKey string) gin.HandlerFunc {
	apiKeyBytes := []byte(apiKey)
	return func(c *gin.Context) {
		key := c.GetHeader("X-Internal-API-Key")
		if apiKey == "" || subtle.ConstantTimeCompare([]byte(key), apiKeyBytes) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// ServiceRateLimitMiddleware applies a single shared token-bucket limiter
// across all callers. Every internal caller shares one API key, so
// per-IP buckets don't fit.
func ServiceRateLimitMiddleware(requestsPerSecond float64, burstSize int) gin.HandlerFunc {
	limiter := rate.NewLimiter(rate.Limit(requestsPerSecond), burstSize)
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
