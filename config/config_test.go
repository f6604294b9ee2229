package config

import (
	"testing"
	"time"
)

func TestResolvedWorkers(t *testing.T) {
	tests := []struct {
		name     string
		workers  int
		numCPU   int
		expected int
	}{
		{"explicit override", 8, 4, 8},
		{"unset defaults to cpus*2", 0, 4, 8},
		{"unset with single cpu", 0, 1, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Ingestion: IngestionConfig{Workers: tt.workers}}
			if got := cfg.ResolvedWorkers(tt.numCPU); got != tt.expected {
				t.Errorf("ResolvedWorkers(%d) = %d, want %d", tt.numCPU, got, tt.expected)
			}
		})
	}
}

// STALE_LOCK_MINUTES defaults to 30, HTTP_TIMEOUT_SECONDS to 15.
func TestIngestionConfigDurationHelpers(t *testing.T) {
	cfg := IngestionConfig{StaleLockMinutes: 30, HTTPTimeoutSecs: 15}

	if got := cfg.StaleLockThreshold(); got != 30*time.Minute {
		t.Errorf("StaleLockThreshold() = %v, want 30m", got)
	}
	if got := cfg.HTTPTimeout(); got != 15*time.Second {
		t.Errorf("HTTPTimeout() = %v, want 15s", got)
	}
}

func TestGetDatabaseURLFallsBackToEnv(t *testing.T) {
	globalConfig = nil
	t.Setenv("DATABASE_URL", "postgres://env-fallback")

	if got := GetDatabaseURL(); got != "postgres://env-fallback" {
		t.Errorf("GetDatabaseURL() = %q, want env fallback", got)
	}

	globalConfig = &Config{Database: DatabaseConfig{URL: "postgres://from-config"}}
	if got := GetDatabaseURL(); got != "postgres://from-config" {
		t.Errorf("GetDatabaseURL() = %q, want config value to take precedence", got)
	}
	globalConfig = nil
}
