// Package schema applies the engine's DDL. There is no migration
// framework here: schema.sql is one embedded SQL string executed
// against the target database, idempotent end to end.
package schema

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var DDL string

// Apply executes the full DDL. Every statement is CREATE ... IF NOT
// EXISTS, so Apply is itself idempotent and safe to run on every
// deploy, not just the first.
func Apply(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, DDL); err != nil {
		return fmt.Errorf("schema: apply: %w", err)
	}
	return nil
}
