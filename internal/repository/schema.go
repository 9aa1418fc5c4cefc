package repository

import (
	"context"
	"fmt"
)

// schemaStatements creates the tables the store reads and writes. All
// statements are idempotent so the server can run them on every start.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS operators (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		production_line TEXT NOT NULL DEFAULT '',
		station TEXT NOT NULL DEFAULT '',
		active BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS tasks (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		standard_seconds DOUBLE PRECISION NOT NULL,
		excellent_threshold_seconds DOUBLE PRECISION NOT NULL,
		slow_threshold_seconds DOUBLE PRECISION NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS operator_tasks (
		id BIGSERIAL PRIMARY KEY,
		operator_id BIGINT NOT NULL REFERENCES operators(id),
		task_id BIGINT NOT NULL REFERENCES tasks(id),
		active BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS cycle_records (
		id BIGSERIAL PRIMARY KEY,
		operator_id BIGINT NOT NULL REFERENCES operators(id),
		task_id BIGINT NOT NULL REFERENCES tasks(id),
		recorded_at TIMESTAMPTZ NOT NULL,
		duration_seconds DOUBLE PRECISION,
		average_seconds DOUBLE PRECISION,
		status TEXT NOT NULL,
		day DATE NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS pause_records (
		id BIGSERIAL PRIMARY KEY,
		operator_id BIGINT NOT NULL REFERENCES operators(id),
		started_at TIMESTAMPTZ NOT NULL,
		ended_at TIMESTAMPTZ,
		reason TEXT NOT NULL DEFAULT '',
		duration_seconds BIGINT,
		day DATE NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_cycle_records_operator_day ON cycle_records (operator_id, day)`,
	`CREATE INDEX IF NOT EXISTS idx_cycle_records_recorded_at ON cycle_records (operator_id, recorded_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_pause_records_open ON pause_records (operator_id) WHERE ended_at IS NULL`,
	`CREATE INDEX IF NOT EXISTS idx_pause_records_day ON pause_records (day)`,
}

// EnsureSchema creates any missing tables and indexes.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	for _, statement := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	return nil
}
