// Package ratelimiter provides the per-source token-bucket limiter and the
// capped exponential backoff used by the ingestion pipeline when talking to
// upstream SourceAdapters.
package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// Config mirrors the per-source rate-limit hints stored on a VideoGameSource row.
type Config struct {
	RequestsPerSecond float64
	Burst             int
}

// DefaultConfig is rate_limit_per_minute=60,
// rate_limit_burst=10.
func DefaultConfig() Config {
	return FromPerMinute(60, 10)
}

// FromPerMinute converts a source's rate_limit_per_minute/rate_limit_burst
// hints (as stored on VideoGameSource) into the per-second limit
// golang.org/x/time/rate expects.
func FromPerMinute(perMinute int32, burst int32) Config {
	if burst <= 0 {
		burst = 1
	}
	return Config{RequestsPerSecond: float64(perMinute) / 60, Burst: int(burst)}
}

// Limiter wraps golang.org/x/time/rate.Limiter, scoped to one source.
type Limiter struct {
	rl *rate.Limiter
}

// New builds a Limiter from Config.
func New(cfg Config) *Limiter {
	return &Limiter{rl: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)}
}

// Wait blocks until a token is available or ctx is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.rl.Wait(ctx)
}

// SetConfig adjusts limits at runtime, e.g. after a source updates its hints.
func (l *Limiter) SetConfig(cfg Config) {
	l.rl.SetLimit(rate.Limit(cfg.RequestsPerSecond))
	l.rl.SetBurst(cfg.Burst)
}
