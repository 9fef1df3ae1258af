// Paceboard - CRM Activity Mirror and Productivity Leaderboard
// Copyright 2026 Paceboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/paceboard/paceboard

package buckets

import (
	"context"
	"time"

	"github.com/paceboard/paceboard/internal/models"
)

// SyncMetric refreshes the day buckets of the given subjects over
// [start, end] from the upstream.
//
// Multi-day ranges are decomposed into one upstream report call per
// calendar day in an explicit loop; the upstream's own multi-day
// aggregation is never stored. A second caller requesting the same
// logical target while a sync runs awaits the running one instead of
// issuing duplicate upstream calls.
func (s *Service) SyncMetric(ctx context.Context, subjectIDs []string, start, end time.Time) error {
	key := targetKey("sync", subjectIDs, start, end, s.loc)

	s.mu.Lock()
	if running, ok := s.inflight[key]; ok {
		s.mu.Unlock()
		select {
		case <-running.done:
			return running.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	call := &inflightSync{done: make(chan struct{})}
	s.inflight[key] = call
	s.mu.Unlock()

	call.err = s.syncRange(ctx, subjectIDs, start, end)

	s.mu.Lock()
	delete(s.inflight, key)
	s.mu.Unlock()
	close(call.done)

	return call.err
}

// syncRange walks the range one day at a time, oldest first.
func (s *Service) syncRange(ctx context.Context, subjectIDs []string, start, end time.Time) error {
	for _, day := range models.DaysInRange(start, end, s.loc) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.SyncDay(ctx, subjectIDs, day); err != nil {
			return err
		}
	}
	return nil
}

// SyncDay fetches one day's report and upserts a bucket per subject.
// Subjects absent from the report tracked nothing that day and get an
// explicit zero bucket, so day coverage stays complete and later reads
// do not mistake "nothing tracked" for "never synced".
func (s *Service) SyncDay(ctx context.Context, subjectIDs []string, day time.Time) error {
	if len(subjectIDs) == 0 {
		return nil
	}

	dayStr := formatDay(models.DayStart(day, s.loc))

	// A single-subject target narrows the report; otherwise one
	// batched call covers everyone.
	onlySubject := ""
	if len(subjectIDs) == 1 {
		onlySubject = subjectIDs[0]
	}

	records, err := s.reporter.ActivityReport(ctx, dayStr, dayStr, onlySubject)
	if err != nil {
		return err
	}

	tracked := make(map[string]int64, len(records))
	for _, rec := range records {
		tracked[rec.UserID] += rec.TrackedSeconds
	}

	periodStart := models.DayStart(day, s.loc)
	periodEnd := models.DayEnd(day, s.loc)
	for _, subjectID := range subjectIDs {
		bucket := models.MetricBucket{
			SubjectID:       subjectID,
			PeriodStart:     periodStart,
			PeriodEnd:       periodEnd,
			MeasuredSeconds: tracked[subjectID],
			SyncedAt:        s.now(),
		}
		if err := s.store.UpsertBucket(ctx, bucket); err != nil {
			return err
		}
	}

	s.log.Debug().Str("day", dayStr).Int("subjects", len(subjectIDs)).Msg("day bucket synced")
	s.InvalidateReads()
	return nil
}
