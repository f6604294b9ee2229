package ingesterr

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestKindOf(t *testing.T) {
	plain := errors.New("boom")
	if got := KindOf(plain); got != KindFatal {
		t.Errorf("KindOf(unclassified) = %v, want %v (most conservative default)", got, KindFatal)
	}

	classified := New(KindUpstream, plain, nil)
	if got := KindOf(classified); got != KindUpstream {
		t.Errorf("KindOf(classified) = %v, want %v", got, KindUpstream)
	}
}

func TestIs(t *testing.T) {
	err := New(KindConflict, errors.New("dup"), map[string]any{"id": 1})
	if !Is(err, KindConflict) {
		t.Error("Is(err, KindConflict) = false, want true")
	}
	if Is(err, KindLock) {
		t.Error("Is(err, KindLock) = true, want false")
	}
	if Is(errors.New("plain"), KindConflict) {
		t.Error("Is(plain error, KindConflict) = true, want false")
	}
}

func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("root cause")
	wrapped := New(KindTransport, inner, nil)

	if !errors.Is(wrapped, inner) {
		t.Error("errors.Is(wrapped, inner) = false, want true")
	}
	if got := wrapped.Error(); got != "transport: root cause" {
		t.Errorf("Error() = %q, want %q", got, "transport: root cause")
	}
}

// unique_violation -> Conflict, fk/check/not-null ->
// InvariantViolation, lock-not-available/serialization-failure -> Lock,
// anything else -> Fatal.
func TestClassifyPG(t *testing.T) {
	tests := []struct {
		name string
		code string
		want Kind
	}{
		{"unique_violation", "23505", KindConflict},
		{"foreign_key_violation", "23503", KindInvariantViolation},
		{"check_violation", "23514", KindInvariantViolation},
		{"not_null_violation", "23502", KindInvariantViolation},
		{"lock_not_available", "55P03", KindLock},
		{"serialization_failure", "40001", KindLock},
		{"unrecognized_code", "42P01", KindFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pgErr := &pgconn.PgError{Code: tt.code}
			got := ClassifyPG(pgErr, nil)
			if got.Kind != tt.want {
				t.Errorf("ClassifyPG(%s) kind = %v, want %v", tt.code, got.Kind, tt.want)
			}
		})
	}
}

func TestClassifyPGNil(t *testing.T) {
	if err := ClassifyPG(nil, nil); err != nil {
		t.Errorf("ClassifyPG(nil) = %v, want nil", err)
	}
}

func TestClassifyPGNonPgError(t *testing.T) {
	got := ClassifyPG(errors.New("connection refused"), nil)
	if got.Kind != KindFatal {
		t.Errorf("ClassifyPG(non-pg error) kind = %v, want %v", got.Kind, KindFatal)
	}
}
