package ratelimiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterBurstAvailableImmediately(t *testing.T) {
	l := New(FromPerMinute(60, 10))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// The full burst should be granted without waiting a regeneration cycle.
	for i := 0; i < 10; i++ {
		require.NoError(t, l.Wait(ctx), "burst token %d should be immediately available", i)
	}
}

func TestLimiterWaitRespectsCancellation(t *testing.T) {
	l := New(Config{RequestsPerSecond: 0.001, Burst: 1})

	require.NoError(t, l.Wait(context.Background()), "first token comes from the burst")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Wait(ctx), "an exhausted bucket must surface ctx cancellation, not block forever")
}

func TestSetConfigRaisesBurst(t *testing.T) {
	l := New(Config{RequestsPerSecond: 0.001, Burst: 1})
	require.NoError(t, l.Wait(context.Background()))

	l.SetConfig(Config{RequestsPerSecond: 100, Burst: 5})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, l.Wait(ctx), "raised limits should apply to waiters")
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.InDelta(t, 1.0, cfg.RequestsPerSecond, 1e-9)
	assert.Equal(t, 10, cfg.Burst)
}
