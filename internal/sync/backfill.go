// Paceboard - CRM Activity Mirror and Productivity Leaderboard
// Copyright 2026 Paceboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/paceboard/paceboard

package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/paceboard/paceboard/internal/metrics"
	"github.com/paceboard/paceboard/internal/models"
	"github.com/paceboard/paceboard/internal/upstream"
)

// ErrBackfillRunning is returned when a backfill is requested while
// one is already in progress.
var ErrBackfillRunning = errors.New("historical backfill already running")

// TriggerBackfill starts a historical backfill run in the background
// and returns its run ID. Only one backfill runs at a time.
func (m *Manager) TriggerBackfill(ctx context.Context) (string, error) {
	return m.startBackfill(ctx)
}

func (m *Manager) startBackfill(ctx context.Context) (string, error) {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return "", fmt.Errorf("sync manager is not running")
	}
	if m.backfillActive {
		activeID := ""
		if m.backfillRun != nil {
			activeID = m.backfillRun.ID
		}
		m.mu.Unlock()
		return activeID, ErrBackfillRunning
	}
	run := &models.SyncRun{
		ID:        uuid.NewString(),
		Stage:     models.StageFetchingSubjects,
		StartTime: m.now(),
	}
	m.backfillRun = run
	m.backfillActive = true
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.runBackfill(ctx, run)
	}()

	m.log.Info().Str("run_id", run.ID).Int("days", m.cfg.BackfillDays).Msg("Historical backfill started")
	return run.ID, nil
}

// runBackfill walks the backfill window oldest day first. Days whose
// buckets already cover every tracked subject are skipped; a day that
// fails is recorded on the run and the walk continues, so one bad day
// cannot block the rest of the window.
func (m *Manager) runBackfill(ctx context.Context, run *models.SyncRun) {
	m.backfillMu.Lock()
	defer m.backfillMu.Unlock()

	start := m.now()
	defer func() {
		m.mu.Lock()
		m.backfillActive = false
		m.mu.Unlock()
		metrics.BackfillDaysRemaining.Set(0)
	}()

	subjects, err := m.refreshRoster(ctx)
	if err != nil {
		m.finishBackfill(run, models.StageError, models.UnitError{
			Unit:    "subjects",
			Message: err.Error(),
			Time:    m.now(),
		})
		metrics.RecordSyncPass("backfill", m.now().Sub(start), 0, err)
		return
	}
	ids := subjectIDs(subjects)

	today := models.DayStart(m.now(), m.loc)
	oldest := today.AddDate(0, 0, -(m.cfg.BackfillDays - 1))
	days := models.DaysInRange(oldest, today, m.loc)

	m.mu.Lock()
	run.Stage = models.StageSyncing
	run.TotalUnits = len(days)
	m.mu.Unlock()

	for i, day := range days {
		if ctx.Err() != nil || m.stopped() {
			m.finishBackfill(run, models.StageError, models.UnitError{
				Unit:    "run",
				Message: "backfill interrupted",
				Time:    m.now(),
			})
			metrics.RecordSyncPass("backfill", m.now().Sub(start), i, ctx.Err())
			return
		}

		dayStr := day.Format("2006-01-02")
		m.mu.Lock()
		run.CurrentUnit = dayStr
		m.mu.Unlock()

		if err := m.backfillDay(ctx, ids, day); err != nil {
			m.log.Warn().Err(err).Str("day", dayStr).Msg("Backfill day failed, continuing")
			metrics.SyncErrors.WithLabelValues("backfill", errorType(err)).Inc()
			m.mu.Lock()
			run.Errors = append(run.Errors, models.UnitError{Unit: dayStr, Message: err.Error(), Time: m.now()})
			m.mu.Unlock()
		}

		m.mu.Lock()
		run.CompletedUnits = i + 1
		m.mu.Unlock()
		metrics.BackfillDaysRemaining.Set(float64(len(days) - i - 1))

		// Pace the walk so the backfill never monopolizes the
		// upstream budget.
		if i < len(days)-1 {
			if err := m.sleep(ctx, m.cfg.InterDayDelay); err != nil {
				m.finishBackfill(run, models.StageError, models.UnitError{
					Unit:    "run",
					Message: "backfill interrupted",
					Time:    m.now(),
				})
				metrics.RecordSyncPass("backfill", m.now().Sub(start), i+1, err)
				return
			}
		}
	}

	// Once every day is materialized as granular buckets, superseded
	// legacy multi-day rows can go.
	if deleted, err := m.store.CleanupLegacyBuckets(ctx); err != nil {
		m.log.Warn().Err(err).Msg("Legacy bucket cleanup failed")
	} else if deleted > 0 {
		m.log.Info().Int("deleted", deleted).Msg("Superseded legacy buckets removed")
	}

	m.finishBackfill(run, models.StageComplete)
	metrics.RecordSyncPass("backfill", m.now().Sub(start), len(days), nil)
	m.log.Info().
		Str("run_id", run.ID).
		Int("days", len(days)).
		Int("errors", len(run.Errors)).
		Dur("duration", m.now().Sub(start)).
		Msg("Historical backfill completed")
}

// backfillDay syncs one day unless every tracked subject already has a
// bucket for it.
func (m *Manager) backfillDay(ctx context.Context, ids []string, day time.Time) error {
	missing, err := m.store.MissingSubjectsForDay(ctx, ids, day)
	if err != nil {
		return err
	}
	if len(missing) == 0 {
		m.log.Debug().Str("day", day.Format("2006-01-02")).Msg("day fully covered, skipping")
		return nil
	}
	return m.buckets.SyncDay(ctx, ids, day)
}

func (m *Manager) finishBackfill(run *models.SyncRun, stage models.SyncStage, errs ...models.UnitError) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run.Stage = stage
	run.CurrentUnit = ""
	run.EndTime = m.now()
	run.Errors = append(run.Errors, errs...)
}

func (m *Manager) stopped() bool {
	select {
	case <-m.stopChan:
		return true
	default:
		return false
	}
}

func errorType(err error) string {
	switch {
	case errors.Is(err, upstream.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "upstream"
	}
}
