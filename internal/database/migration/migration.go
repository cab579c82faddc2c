// Package migration creates the schema used by the postgres document
// backend. Steps are idempotent and run only when the sentinel table is
// missing.
package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"portalapi/internal/logging"
)

type migrationStep struct {
	Name string
	SQL  string
}

var steps = []migrationStep{
	{
		Name: "create_table_portal_document",
		SQL: `CREATE TABLE IF NOT EXISTS portal_document (
  id         SMALLINT    PRIMARY KEY CHECK (id = 1),
  body       JSONB       NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_portal_document_updated_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_portal_document_updated_at ON portal_document (updated_at);`,
	},
}

const sentinelQuery = "SELECT to_regclass('public.portal_document') IS NOT NULL"

// EnsureMigrated runs every step unless the portal_document table exists.
func EnsureMigrated(ctx context.Context, db *sql.DB, log logging.Logger, dbHost string) error {
	start := time.Now()
	log = log.With("component", "database", "db_host", dbHost)

	var exists bool
	if err := db.QueryRowContext(ctx, sentinelQuery).Scan(&exists); err != nil {
		log.Error(ctx, "db_migration_failed",
			"error", err, "duration_ms", time.Since(start).Milliseconds())
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}
	if exists {
		log.Info(ctx, "db_migration_skip", "reason", "schema already exists")
		return nil
	}

	log.Info(ctx, "db_migration_start", "steps", len(steps))
	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			log.Error(ctx, "db_migration_failed",
				"migration_step", step.Name,
				"error", err,
				"step_duration_ms", time.Since(stepStart).Milliseconds())
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}
		log.Info(ctx, "db_migration_step",
			"migration_step", step.Name,
			"step_duration_ms", time.Since(stepStart).Milliseconds())
	}

	log.Info(ctx, "db_migration_success", "duration_ms", time.Since(start).Milliseconds())
	return nil
}
