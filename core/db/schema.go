package db

import (
	"context"
	"fmt"
)

// schemaStatements is the idempotent bootstrap DDL. Statements run one at a
// time because the extended query protocol rejects multi-statement strings.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS topics (
		id BIGINT PRIMARY KEY,
		question TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		created_by TEXT NOT NULL DEFAULT '',
		overall_summary TEXT,
		consensus_view TEXT,
		timeline_view JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS arguments (
		id BIGINT PRIMARY KEY,
		topic_id BIGINT NOT NULL REFERENCES topics(id) ON DELETE CASCADE,
		side TEXT NOT NULL CHECK (side IN ('pro', 'con')),
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		sources TEXT NOT NULL DEFAULT '',
		author TEXT NOT NULL DEFAULT '',
		votes INT NOT NULL DEFAULT 0,
		validity_score INT CHECK (validity_score BETWEEN 1 AND 5),
		validity_reasoning TEXT,
		validity_checked_at TIMESTAMPTZ,
		key_urls TEXT[] NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CHECK ((validity_score IS NULL) = (validity_checked_at IS NULL))
	)`,

	`CREATE INDEX IF NOT EXISTS idx_arguments_topic ON arguments(topic_id)`,

	`CREATE TABLE IF NOT EXISTS argument_matches (
		id BIGINT PRIMARY KEY,
		topic_id BIGINT NOT NULL REFERENCES topics(id) ON DELETE CASCADE,
		pro_argument_id BIGINT NOT NULL REFERENCES arguments(id) ON DELETE CASCADE,
		con_argument_id BIGINT NOT NULL REFERENCES arguments(id) ON DELETE CASCADE,
		reason TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (pro_argument_id, con_argument_id)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_matches_topic ON argument_matches(topic_id)`,
}

// EnsureSchema creates the tables and indexes if they do not exist.
// Safe to run on every startup.
func (db *DB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensuring schema: %w", err)
		}
	}
	return nil
}
