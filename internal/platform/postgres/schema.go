package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema for the two logical collections this service owns: current judgement
// state (one row per live identity plus its fields) and the append-only event
// log. Event ids come from a database sequence so the counter survives
// restarts and stays a single-owner atomic increment.
var statements = []string{
	`CREATE TABLE IF NOT EXISTS judgement_states (
		chain TEXT NOT NULL,
		address TEXT NOT NULL,
		is_fully_verified BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (chain, address)
	)`,
	`CREATE TABLE IF NOT EXISTS judgement_fields (
		chain TEXT NOT NULL,
		address TEXT NOT NULL,
		position INT NOT NULL,
		kind TEXT NOT NULL,
		value TEXT NOT NULL,
		challenge TEXT NOT NULL,
		challenge_verified BOOLEAN NOT NULL DEFAULT FALSE,
		challenge_failed_attempts BIGINT NOT NULL DEFAULT 0,
		second_challenge TEXT,
		second_verified BOOLEAN NOT NULL DEFAULT FALSE,
		second_failed_attempts BIGINT NOT NULL DEFAULT 0,
		PRIMARY KEY (chain, address, position),
		FOREIGN KEY (chain, address) REFERENCES judgement_states (chain, address) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS judgement_fields_value_idx ON judgement_fields (value)`,
	`CREATE SEQUENCE IF NOT EXISTS judgement_event_ids`,
	`CREATE TABLE IF NOT EXISTS judgement_events (
		id BIGINT PRIMARY KEY,
		kind TEXT NOT NULL,
		chain TEXT NOT NULL,
		address TEXT NOT NULL,
		field_value TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// EnsureSchema creates the tables and sequence if they do not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
