// Paceboard - CRM Activity Mirror and Productivity Leaderboard
// Copyright 2026 Paceboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/paceboard/paceboard

/*
schema.go - Database Schema Management

Tables:
  - metric_buckets: per-subject tracked time keyed
    (subject_id, period_start, period_end). Granular rows span exactly
    one calendar day in the reference timezone; multi-day rows are
    legacy data read through the averaging fallback and removed by the
    one-time cleanup once their days are materialized.
  - deals: mirror of CRM deals (won-deal counts for the leaderboard)
  - messages: mirror of CRM outbound message events

All columns are defined in the initial CREATE TABLE statements; there
are no migrations to run at startup.
*/
//nolint:staticcheck // File documentation, not package doc
package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createTables creates the core database tables.
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range getTableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}

// getTableCreationQueries returns the table creation SQL statements.
func getTableCreationQueries() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS metric_buckets (
			subject_id       VARCHAR   NOT NULL,
			period_start     TIMESTAMP NOT NULL,
			period_end       TIMESTAMP NOT NULL,
			measured_seconds BIGINT    NOT NULL CHECK (measured_seconds >= 0),
			synced_at        TIMESTAMP NOT NULL,
			PRIMARY KEY (subject_id, period_start, period_end)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_buckets_period
			ON metric_buckets (period_start, period_end)`,

		`CREATE TABLE IF NOT EXISTS deals (
			id         VARCHAR   NOT NULL PRIMARY KEY,
			subject_id VARCHAR   NOT NULL,
			title      VARCHAR   NOT NULL,
			value      DOUBLE    NOT NULL,
			stage      VARCHAR   NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_deals_subject
			ON deals (subject_id, stage)`,

		`CREATE TABLE IF NOT EXISTS messages (
			id         VARCHAR   NOT NULL PRIMARY KEY,
			subject_id VARCHAR   NOT NULL,
			sent_at    TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_subject
			ON messages (subject_id, sent_at)`,
	}
}
