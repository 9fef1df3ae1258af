// Paceboard - CRM Activity Mirror and Productivity Leaderboard
// Copyright 2026 Paceboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/paceboard/paceboard

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/paceboard/paceboard/internal/database/query"
	"github.com/paceboard/paceboard/internal/metrics"
	"github.com/paceboard/paceboard/internal/models"
)

// UpsertDeals replaces the mirrored state of each deal. The mirror
// always trusts the upstream: deals move stages, change value and get
// reassigned, so there is nothing to merge.
func (db *DB) UpsertDeals(ctx context.Context, deals []models.Deal) error {
	if len(deals) == 0 {
		return nil
	}

	defer metrics.RecordDBQuery("upsert", "deals", time.Now())

	const query = `INSERT INTO deals (id, subject_id, title, value, stage, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			subject_id = EXCLUDED.subject_id,
			title = EXCLUDED.title,
			value = EXCLUDED.value,
			stage = EXCLUDED.stage,
			updated_at = EXCLUDED.updated_at`

	for _, d := range deals {
		if _, err := db.conn.ExecContext(ctx, query,
			d.ID, d.SubjectID, d.Title, d.Value, d.Stage, d.UpdatedAt.UTC()); err != nil {
			metrics.DBQueryErrors.WithLabelValues("upsert", "deals").Inc()
			return fmt.Errorf("failed to upsert deal %s: %w", d.ID, err)
		}
	}
	return nil
}

// UpsertMessages stores mirrored message events. Messages are
// immutable; conflicts are ignored.
func (db *DB) UpsertMessages(ctx context.Context, messages []models.Message) error {
	if len(messages) == 0 {
		return nil
	}

	defer metrics.RecordDBQuery("upsert", "messages", time.Now())

	const query = `INSERT INTO messages (id, subject_id, sent_at)
		VALUES (?, ?, ?)
		ON CONFLICT (id) DO NOTHING`

	for _, m := range messages {
		if _, err := db.conn.ExecContext(ctx, query, m.ID, m.SubjectID, m.SentAt.UTC()); err != nil {
			metrics.DBQueryErrors.WithLabelValues("upsert", "messages").Inc()
			return fmt.Errorf("failed to upsert message %s: %w", m.ID, err)
		}
	}
	return nil
}

// CountWonDeals returns per-subject counts of deals in a terminal won
// stage whose last update falls in [start, end].
func (db *DB) CountWonDeals(ctx context.Context, start, end time.Time) (map[string]int, error) {
	defer metrics.RecordDBQuery("select", "deals", time.Now())

	where, args := query.NewWhereBuilder().
		AddClause("stage IN ('won', 'closed_won')").
		AddTimeRange("updated_at", start, end).
		Build()
	rows, err := db.conn.QueryContext(ctx,
		fmt.Sprintf(`SELECT subject_id, COUNT(*) FROM deals WHERE %s GROUP BY subject_id`, where),
		args...)
	if err != nil {
		metrics.DBQueryErrors.WithLabelValues("select", "deals").Inc()
		return nil, fmt.Errorf("failed to count won deals: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("failed to scan deal count: %w", err)
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

// CountMessages returns per-subject counts of messages sent in
// [start, end].
func (db *DB) CountMessages(ctx context.Context, start, end time.Time) (map[string]int, error) {
	defer metrics.RecordDBQuery("select", "messages", time.Now())

	where, args := query.NewWhereBuilder().
		AddTimeRange("sent_at", start, end).
		Build()
	rows, err := db.conn.QueryContext(ctx,
		fmt.Sprintf(`SELECT subject_id, COUNT(*) FROM messages WHERE %s GROUP BY subject_id`, where),
		args...)
	if err != nil {
		metrics.DBQueryErrors.WithLabelValues("select", "messages").Inc()
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("failed to scan message count: %w", err)
		}
		counts[id] = n
	}
	return counts, rows.Err()
}
