package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Schema bootstrap. Idempotent, applied whenever a handle is built so a
// fresh database works on first run.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id         BIGSERIAL PRIMARY KEY,
		name       VARCHAR(100) NOT NULL,
		email      VARCHAR(150) NOT NULL UNIQUE,
		age        INTEGER,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_users_created_at ON users (created_at DESC)`,
}

func ensureSchema(ctx context.Context, handle *sqlx.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := handle.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}
