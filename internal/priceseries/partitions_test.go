package priceseries

import (
	"testing"
	"time"
)

// prices is range-partitioned by recorded_at into monthly child
// partitions named prices_YYYY_MM.
func TestPartitionName(t *testing.T) {
	tests := []struct {
		ts   time.Time
		want string
	}{
		{time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC), "prices_2026_01"},
		{time.Date(2026, 12, 31, 23, 59, 59, 0, time.UTC), "prices_2026_12"},
		{time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), "prices_2026_09"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := partitionName(tt.ts); got != tt.want {
				t.Errorf("partitionName(%v) = %q, want %q", tt.ts, got, tt.want)
			}
		})
	}
}

func TestForgetRemovesFromCache(t *testing.T) {
	p := NewPartitions()
	ts := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	name := partitionName(ts)

	p.mu.Lock()
	p.known[name] = true
	p.mu.Unlock()

	p.Forget(ts)

	p.mu.Lock()
	_, known := p.known[name]
	p.mu.Unlock()

	if known {
		t.Error("Forget did not remove partition from cache")
	}
}
