package ratelimiter

import (
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// BackoffPolicy: base 30s, factor 2, cap 1h, jitter 20 percent.
type BackoffPolicy struct {
	InitialInterval     time.Duration
	Multiplier          float64
	MaxInterval         time.Duration
	RandomizationFactor float64
}

// DefaultBackoffPolicy is the policy applied to sync_error retry scheduling.
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		InitialInterval:     30 * time.Second,
		Multiplier:          2,
		MaxInterval:         time.Hour,
		RandomizationFactor: 0.2,
	}
}

// NewBackOff builds a backoff.BackOff from the policy. A fresh BackOff must
// be created per retry sequence; it is stateful (tracks elapsed attempts).
func (p BackoffPolicy) NewBackOff() backoff.BackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     p.InitialInterval,
		RandomizationFactor: p.RandomizationFactor,
		Multiplier:          p.Multiplier,
		MaxInterval:         p.MaxInterval,
		MaxElapsedTime:      0, // never give up on elapsed time; caller bounds attempts
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	return b
}

// NextRetryAt computes the next_sync_at value after `attempt` failures.
func (p BackoffPolicy) NextRetryAt(now time.Time, attempt int) time.Time {
	b := p.NewBackOff()
	var d time.Duration
	for i := 0; i <= attempt; i++ {
		d = b.NextBackOff()
	}
	return now.Add(d)
}

// RetryAfterOverride parses an upstream Retry-After header (seconds or
// HTTP-date) and, when present, takes precedence over the computed
// backoff, since the server knows best.
func RetryAfterOverride(header string) (time.Duration, bool) {
	if header == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second, true
	}
	if t, err := time.Parse(time.RFC1123, header); err == nil {
		if d := time.Until(t); d > 0 {
			return d, true
		}
	}
	return 0, false
}
