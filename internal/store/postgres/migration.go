package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration is one versioned schema change
type Migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "raw and analytics schemas",
		SQL: `
CREATE SCHEMA IF NOT EXISTS raw;
CREATE SCHEMA IF NOT EXISTS analytics;

CREATE TABLE IF NOT EXISTS raw.user_actions (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT,
    action TEXT,
    ts TIMESTAMPTZ DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_user_actions_user ON raw.user_actions(user_id, id);

CREATE TABLE IF NOT EXISTS analytics.reports (
    id BIGSERIAL PRIMARY KEY,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    total_events BIGINT NOT NULL,
    fragility_score DOUBLE PRECISION NOT NULL,
    fragility_label TEXT NOT NULL,
    details TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reports_created_at ON analytics.reports(created_at DESC);
`,
	},
	{
		Version:     2,
		Description: "run identity and skipped row count",
		SQL: `
ALTER TABLE analytics.reports ADD COLUMN IF NOT EXISTS run_id TEXT NOT NULL DEFAULT '';
ALTER TABLE analytics.reports ADD COLUMN IF NOT EXISTS skipped_rows INTEGER NOT NULL DEFAULT 0;
`,
	},
	{
		Version:     3,
		Description: "skipped event row count",
		SQL: `
ALTER TABLE analytics.reports ADD COLUMN IF NOT EXISTS skipped_events INTEGER NOT NULL DEFAULT 0;
`,
	},
}

// ApplyMigrations applies pending migrations. A transaction-scoped advisory
// lock serializes concurrent starts.
func (s *Store) ApplyMigrations(ctx context.Context) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin migration transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(7301)`); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
CREATE SCHEMA IF NOT EXISTS analytics;
CREATE TABLE IF NOT EXISTS analytics.schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`); err != nil {
		return fmt.Errorf("ensure schema_version table: %w", err)
	}

	var applied []int
	if err := tx.SelectContext(ctx, &applied, `SELECT version FROM analytics.schema_version`); err != nil {
		return fmt.Errorf("get applied versions: %w", err)
	}
	done := make(map[int]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}

	for _, m := range migrations {
		if done[m.Version] {
			continue
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO analytics.schema_version (version) VALUES ($1)`, m.Version); err != nil {
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migrations: %w", err)
	}
	return nil
}

// GetLatestVersion returns the newest applied migration version
func (s *Store) GetLatestVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.GetContext(ctx, &version, `SELECT COALESCE(MAX(version), 0) FROM analytics.schema_version`); err != nil {
		return 0, fmt.Errorf("query latest version: %w", err)
	}
	return version, nil
}
