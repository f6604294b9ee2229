// Package ingesterr defines the error taxonomy shared by every pipeline
// phase: Config, Transport, Upstream, Conflict, InvariantViolation, Lock,
// and Fatal. Each phase boundary classifies raw errors into one of these
// kinds before recording them against a sync run or a record error log.
package ingesterr

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Kind names one of the error categories a caller can branch on.
type Kind string

const (
	// KindConfig is a misconfiguration discovered at startup or source bind time.
	KindConfig Kind = "config"
	// KindTransport is a retryable network/HTTP failure talking to a source.
	KindTransport Kind = "transport"
	// KindUpstream is a non-retryable rejection from a source (4xx, malformed payload).
	KindUpstream Kind = "upstream"
	// KindConflict is a constraint violation surfaced as a recoverable retry.
	KindConflict Kind = "conflict"
	// KindInvariantViolation is a canonical-model invariant broken by incoming data.
	KindInvariantViolation Kind = "invariant_violation"
	// KindLock is a lost or contested claim/lease.
	KindLock Kind = "lock"
	// KindFatal can never be recovered from in-process; the caller should exit.
	KindFatal Kind = "fatal"
)

// Error wraps an underlying error with a Kind and optional structured context.
type Error struct {
	Kind    Kind
	Err     error
	Context map[string]any
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a classified Error.
func New(kind Kind, err error, context map[string]any) *Error {
	return &Error{Kind: kind, Err: err, Context: context}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, defaulting to KindFatal for
// unclassified errors; an unclassified failure is treated as the most
// conservative case until a caller proves otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindFatal
}

// ClassifyPG maps common pgx/Postgres failures into the taxonomy.
// Unrecognized errors are returned wrapped as KindFatal.
func ClassifyPG(err error, context map[string]any) *Error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return New(KindConflict, err, context)
		case "23503", "23514", "23502": // fk/check/not-null violation
			return New(KindInvariantViolation, err, context)
		case "55P03", "40001": // lock_not_available, serialization_failure
			return New(KindLock, err, context)
		}
	}
	return New(KindFatal, err, context)
}
