// Paceboard - CRM Activity Mirror and Productivity Leaderboard
// Copyright 2026 Paceboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/paceboard/paceboard

package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/paceboard/paceboard/internal/models"
)

func TestBackfillWalksOldestFirst(t *testing.T) {
	t.Parallel()

	buckets := &fakeBuckets{}
	m := newTestManager(t, &fakeStore{}, buckets, &fakeDirectory{}, &fakeMirror{})

	run := &models.SyncRun{ID: "r1", Stage: models.StageFetchingSubjects, StartTime: testNow}
	m.runBackfill(context.Background(), run)

	days := buckets.days()
	if len(days) != 5 {
		t.Fatalf("synced %d days, want 5", len(days))
	}
	want := models.DayStart(testNow, time.UTC).AddDate(0, 0, -4)
	for i, day := range days {
		if !day.Equal(want.AddDate(0, 0, i)) {
			t.Errorf("day %d = %v, want %v (oldest first)", i, day, want.AddDate(0, 0, i))
		}
	}
	if run.Stage != models.StageComplete {
		t.Errorf("Stage = %s, want %s", run.Stage, models.StageComplete)
	}
	if run.TotalUnits != 5 || run.CompletedUnits != 5 {
		t.Errorf("progress = %d/%d, want 5/5", run.CompletedUnits, run.TotalUnits)
	}
}

func TestBackfillSkipsFullyCoveredDays(t *testing.T) {
	t.Parallel()

	covered := models.DayStart(testNow, time.UTC).AddDate(0, 0, -2)
	store := &fakeStore{
		missingFunc: func(_ context.Context, ids []string, day time.Time) ([]string, error) {
			if day.Equal(covered) {
				return nil, nil
			}
			return ids, nil
		},
	}
	buckets := &fakeBuckets{}
	m := newTestManager(t, store, buckets, &fakeDirectory{}, &fakeMirror{})

	run := &models.SyncRun{ID: "r1", StartTime: testNow}
	m.runBackfill(context.Background(), run)

	for _, day := range buckets.days() {
		if day.Equal(covered) {
			t.Errorf("fully covered day %v was synced", covered)
		}
	}
	if len(buckets.days()) != 4 {
		t.Errorf("synced %d days, want 4", len(buckets.days()))
	}
	// Skipped days still count as completed units.
	if run.CompletedUnits != 5 {
		t.Errorf("CompletedUnits = %d, want 5", run.CompletedUnits)
	}
}

// A day that is only partially covered must not be skipped.
func TestBackfillSyncsPartiallyCoveredDay(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		missingFunc: func(_ context.Context, ids []string, _ time.Time) ([]string, error) {
			return ids[:1], nil
		},
	}
	buckets := &fakeBuckets{}
	m := newTestManager(t, store, buckets, &fakeDirectory{}, &fakeMirror{})

	run := &models.SyncRun{ID: "r1", StartTime: testNow}
	m.runBackfill(context.Background(), run)

	if len(buckets.days()) != 5 {
		t.Errorf("synced %d days, want 5 (partial coverage is not coverage)", len(buckets.days()))
	}
}

func TestBackfillRecordsDayErrorsWithoutAborting(t *testing.T) {
	t.Parallel()

	failDay := models.DayStart(testNow, time.UTC).AddDate(0, 0, -3)
	buckets := &fakeBuckets{
		syncDayFunc: func(_ context.Context, _ []string, day time.Time) error {
			if day.Equal(failDay) {
				return errors.New("report unavailable")
			}
			return nil
		},
	}
	m := newTestManager(t, &fakeStore{}, buckets, &fakeDirectory{}, &fakeMirror{})

	run := &models.SyncRun{ID: "r1", StartTime: testNow}
	m.runBackfill(context.Background(), run)

	if run.Stage != models.StageComplete {
		t.Errorf("Stage = %s, want %s (per-day errors do not abort)", run.Stage, models.StageComplete)
	}
	if run.CompletedUnits != 5 {
		t.Errorf("CompletedUnits = %d, want 5", run.CompletedUnits)
	}
	if len(run.Errors) != 1 {
		t.Fatalf("Errors = %v, want exactly one", run.Errors)
	}
	if run.Errors[0].Unit != failDay.Format("2006-01-02") {
		t.Errorf("error unit = %s, want %s", run.Errors[0].Unit, failDay.Format("2006-01-02"))
	}
	if len(buckets.days()) != 5 {
		t.Errorf("synced %d days, want 5 (walk continues past the failing day)", len(buckets.days()))
	}
}

func TestBackfillDirectoryFailure(t *testing.T) {
	t.Parallel()

	dir := &fakeDirectory{subjectsFunc: func(context.Context) (models.DirectoryResult, error) {
		return models.DirectoryResult{Status: models.DirectoryRateLimited}, errors.New("rate limited")
	}}
	buckets := &fakeBuckets{}
	m := newTestManager(t, &fakeStore{}, buckets, dir, &fakeMirror{})

	run := &models.SyncRun{ID: "r1", StartTime: testNow}
	m.runBackfill(context.Background(), run)

	if run.Stage != models.StageError {
		t.Errorf("Stage = %s, want %s", run.Stage, models.StageError)
	}
	if len(buckets.days()) != 0 {
		t.Errorf("days synced without a roster: %v", buckets.days())
	}
}

func TestBackfillRunsCleanupAfterCompletion(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	m := newTestManager(t, store, &fakeBuckets{}, &fakeDirectory{}, &fakeMirror{})

	run := &models.SyncRun{ID: "r1", StartTime: testNow}
	m.runBackfill(context.Background(), run)

	if store.cleanupCalls != 1 {
		t.Errorf("CleanupLegacyBuckets calls = %d, want 1", store.cleanupCalls)
	}
}

func TestTriggerBackfillRejectsConcurrentRuns(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	buckets := &fakeBuckets{
		syncDayFunc: func(ctx context.Context, _ []string, _ time.Time) error {
			select {
			case <-release:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	}
	m := newTestManager(t, &fakeStore{}, buckets, &fakeDirectory{}, &fakeMirror{})
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() {
		close(release)
		_ = m.Stop()
	}()

	runID, err := m.TriggerBackfill(context.Background())
	if err != nil {
		t.Fatalf("TriggerBackfill: %v", err)
	}
	if runID == "" {
		t.Error("empty run ID")
	}

	// Wait until the run shows up as active.
	deadline := time.Now().Add(2 * time.Second)
	for !m.Status().IsRunning {
		if time.Now().After(deadline) {
			t.Fatal("backfill never became active")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, err := m.TriggerBackfill(context.Background()); !errors.Is(err, ErrBackfillRunning) {
		t.Errorf("second trigger err = %v, want ErrBackfillRunning", err)
	}
}

func TestStatusReportsProgress(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, &fakeStore{}, &fakeBuckets{}, &fakeDirectory{}, &fakeMirror{})

	status := m.Status()
	if status.HistoricalProgress != nil {
		t.Error("HistoricalProgress set before any backfill")
	}

	run := &models.SyncRun{ID: "r1", StartTime: testNow}
	m.runBackfill(context.Background(), run)
	m.mu.Lock()
	m.backfillRun = run
	m.mu.Unlock()

	status = m.Status()
	if status.HistoricalProgress == nil {
		t.Fatal("HistoricalProgress missing after a backfill")
	}
	if status.HistoricalProgress.CompletedUnits != 5 {
		t.Errorf("CompletedUnits = %d, want 5", status.HistoricalProgress.CompletedUnits)
	}
}
