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
	"github.com/paceboard/paceboard/internal/logging"
	"github.com/paceboard/paceboard/internal/metrics"
	"github.com/paceboard/paceboard/internal/models"
)

// Merge policy: the upsert is a single atomic statement, so two
// concurrent syncs of the same bucket can never interleave a read and
// a write.
//
//   - strictly-past days keep the larger of stored and incoming
//     (late-arriving manual entries only ever add time; a transient
//     empty report must not wipe a day)
//   - today and future days take the incoming value verbatim (today
//     legitimately shrinks when the upstream re-attributes entries)
const (
	upsertBucketMax = `INSERT INTO metric_buckets
		(subject_id, period_start, period_end, measured_seconds, synced_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (subject_id, period_start, period_end) DO UPDATE SET
			measured_seconds = GREATEST(metric_buckets.measured_seconds, EXCLUDED.measured_seconds),
			synced_at = EXCLUDED.synced_at`

	upsertBucketReplace = `INSERT INTO metric_buckets
		(subject_id, period_start, period_end, measured_seconds, synced_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (subject_id, period_start, period_end) DO UPDATE SET
			measured_seconds = EXCLUDED.measured_seconds,
			synced_at = EXCLUDED.synced_at`
)

// UpsertBucket writes one bucket with the merge policy chosen by the
// bucket's day: GREATEST for strictly-past days, replace for today and
// future days (classified in the reference timezone). Concurrent
// upserts on the same key are serialized by a per-bucket lock and
// transaction conflicts are retried with short backoff.
func (db *DB) UpsertBucket(ctx context.Context, b models.MetricBucket) error {
	key := b.SubjectID + "|" + b.PeriodStart.UTC().Format(time.RFC3339)
	mu := db.acquireBucketLock(key)
	defer mu.Unlock()

	if b.SyncedAt.IsZero() {
		b.SyncedAt = db.now()
	}

	policy := "replace"
	query := upsertBucketReplace
	today := models.DayStart(db.now(), db.loc)
	if models.DayStart(b.PeriodStart, db.loc).Before(today) {
		policy = "max"
		query = upsertBucketMax
	}

	defer metrics.RecordDBQuery("upsert", "metric_buckets", time.Now())

	const maxRetries = 3
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.conn.ExecContext(ctx, query,
			b.SubjectID, b.PeriodStart.UTC(), b.PeriodEnd.UTC(), b.MeasuredSeconds, b.SyncedAt.UTC())
		if err == nil {
			metrics.BucketUpserts.WithLabelValues(policy).Inc()
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return fmt.Errorf("bucket upsert timed out or canceled: %w", ctx.Err())
		}
		if isInternalError(err) {
			metrics.DBQueryErrors.WithLabelValues("upsert", "metric_buckets").Inc()
			return fmt.Errorf("FATAL: DuckDB internal error on bucket upsert: %w", err)
		}
		if isTransactionConflict(err) && attempt < maxRetries-1 {
			backoff := time.Millisecond * time.Duration(1<<uint(attempt)) // 1ms, 2ms, 4ms
			select {
			case <-time.After(backoff):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		metrics.DBQueryErrors.WithLabelValues("upsert", "metric_buckets").Inc()
		return err
	}

	metrics.DBQueryErrors.WithLabelValues("upsert", "metric_buckets").Inc()
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// BucketsOverlapping returns every bucket for the given subjects whose
// period intersects [start, end], granular and legacy rows alike. The
// caller classifies them; this layer does not interpret spans.
func (db *DB) BucketsOverlapping(ctx context.Context, subjectIDs []string, start, end time.Time) ([]models.MetricBucket, error) {
	if len(subjectIDs) == 0 {
		return nil, nil
	}

	defer metrics.RecordDBQuery("select", "metric_buckets", time.Now())

	where, args := query.NewWhereBuilder().
		AddSubjects(subjectIDs).
		AddPeriodOverlap(start, end).
		Build()
	stmt := fmt.Sprintf(`SELECT subject_id, period_start, period_end, measured_seconds, synced_at
		FROM metric_buckets
		WHERE %s
		ORDER BY subject_id, period_start`, where)

	rows, err := db.conn.QueryContext(ctx, stmt, args...)
	if err != nil {
		metrics.DBQueryErrors.WithLabelValues("select", "metric_buckets").Inc()
		return nil, fmt.Errorf("failed to query buckets: %w", err)
	}
	defer rows.Close()

	var buckets []models.MetricBucket
	for rows.Next() {
		var b models.MetricBucket
		if err := rows.Scan(&b.SubjectID, &b.PeriodStart, &b.PeriodEnd, &b.MeasuredSeconds, &b.SyncedAt); err != nil {
			return nil, fmt.Errorf("failed to scan bucket: %w", err)
		}
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}

// MissingSubjectsForDay returns the subset of subjectIDs that have no
// granular bucket for the given day. The backfill skips a day only
// when this comes back empty.
func (db *DB) MissingSubjectsForDay(ctx context.Context, subjectIDs []string, day time.Time) ([]string, error) {
	if len(subjectIDs) == 0 {
		return nil, nil
	}

	defer metrics.RecordDBQuery("select", "metric_buckets", time.Now())

	dayStart := models.DayStart(day, db.loc)
	dayEnd := models.DayEnd(day, db.loc)

	where, args := query.NewWhereBuilder().
		AddPeriodExact(dayStart, dayEnd).
		AddSubjects(subjectIDs).
		Build()
	stmt := fmt.Sprintf(`SELECT DISTINCT subject_id FROM metric_buckets WHERE %s`, where)

	rows, err := db.conn.QueryContext(ctx, stmt, args...)
	if err != nil {
		metrics.DBQueryErrors.WithLabelValues("select", "metric_buckets").Inc()
		return nil, fmt.Errorf("failed to query day coverage: %w", err)
	}
	defer rows.Close()

	have := make(map[string]bool, len(subjectIDs))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan subject id: %w", err)
		}
		have[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var missing []string
	for _, id := range subjectIDs {
		if !have[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// hasGranularBucket reports whether subject has a single-day bucket for
// the given day.
func (db *DB) hasGranularBucket(ctx context.Context, subjectID string, day time.Time) (bool, error) {
	dayStart := models.DayStart(day, db.loc)
	dayEnd := models.DayEnd(day, db.loc)

	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM metric_buckets WHERE subject_id = ? AND period_start = ? AND period_end = ?`,
		subjectID, dayStart.UTC(), dayEnd.UTC()).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CleanupLegacyBuckets deletes multi-day rows whose covered days are
// all materialized as granular buckets. Rows with any missing day are
// kept so the averaging fallback still has data to serve.
func (db *DB) CleanupLegacyBuckets(ctx context.Context) (int, error) {
	defer metrics.RecordDBQuery("cleanup", "metric_buckets", time.Now())

	rows, err := db.conn.QueryContext(ctx,
		`SELECT subject_id, period_start, period_end FROM metric_buckets`)
	if err != nil {
		return 0, fmt.Errorf("failed to list buckets: %w", err)
	}

	type span struct {
		subjectID  string
		start, end time.Time
	}
	var legacy []span
	for rows.Next() {
		var s span
		if err := rows.Scan(&s.subjectID, &s.start, &s.end); err != nil {
			_ = rows.Close()
			return 0, fmt.Errorf("failed to scan bucket span: %w", err)
		}
		b := models.MetricBucket{PeriodStart: s.start, PeriodEnd: s.end}
		if !b.IsSingleDay(db.loc) {
			legacy = append(legacy, s)
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return 0, err
	}
	_ = rows.Close()

	deleted := 0
	for _, s := range legacy {
		covered := true
		for _, day := range models.DaysInRange(s.start, s.end, db.loc) {
			has, err := db.hasGranularBucket(ctx, s.subjectID, day)
			if err != nil {
				return deleted, err
			}
			if !has {
				covered = false
				break
			}
		}
		if !covered {
			continue
		}

		_, err := db.conn.ExecContext(ctx,
			`DELETE FROM metric_buckets WHERE subject_id = ? AND period_start = ? AND period_end = ?`,
			s.subjectID, s.start.UTC(), s.end.UTC())
		if err != nil {
			return deleted, fmt.Errorf("failed to delete legacy bucket: %w", err)
		}
		deleted++
		logging.Info().
			Str("subject_id", s.subjectID).
			Time("period_start", s.start).
			Time("period_end", s.end).
			Msg("removed legacy multi-day bucket")
	}
	return deleted, nil
}

// ResetBuckets deletes all stored buckets. Administrative use only.
func (db *DB) ResetBuckets(ctx context.Context) error {
	defer metrics.RecordDBQuery("delete", "metric_buckets", time.Now())

	if _, err := db.conn.ExecContext(ctx, `DELETE FROM metric_buckets`); err != nil {
		metrics.DBQueryErrors.WithLabelValues("delete", "metric_buckets").Inc()
		return fmt.Errorf("failed to reset buckets: %w", err)
	}
	logging.Warn().Msg("metric bucket store reset")
	return nil
}
