// Paceboard - CRM Activity Mirror and Productivity Leaderboard
// Copyright 2026 Paceboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/paceboard/paceboard

package sync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/paceboard/paceboard/internal/config"
	"github.com/paceboard/paceboard/internal/models"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	mu                 sync.Mutex
	missingFunc        func(ctx context.Context, subjectIDs []string, day time.Time) ([]string, error)
	upsertDealsFunc    func(ctx context.Context, deals []models.Deal) error
	upsertMessagesFunc func(ctx context.Context, messages []models.Message) error
	cleanupFunc        func(ctx context.Context) (int, error)
	cleanupCalls       int
}

func (f *fakeStore) MissingSubjectsForDay(ctx context.Context, subjectIDs []string, day time.Time) ([]string, error) {
	if f.missingFunc == nil {
		return subjectIDs, nil
	}
	return f.missingFunc(ctx, subjectIDs, day)
}

func (f *fakeStore) UpsertDeals(ctx context.Context, deals []models.Deal) error {
	if f.upsertDealsFunc == nil {
		return nil
	}
	return f.upsertDealsFunc(ctx, deals)
}

func (f *fakeStore) UpsertMessages(ctx context.Context, messages []models.Message) error {
	if f.upsertMessagesFunc == nil {
		return nil
	}
	return f.upsertMessagesFunc(ctx, messages)
}

func (f *fakeStore) CleanupLegacyBuckets(ctx context.Context) (int, error) {
	f.mu.Lock()
	f.cleanupCalls++
	f.mu.Unlock()
	if f.cleanupFunc == nil {
		return 0, nil
	}
	return f.cleanupFunc(ctx)
}

type fakeBuckets struct {
	mu          sync.Mutex
	syncDayFunc func(ctx context.Context, subjectIDs []string, day time.Time) error
	syncedDays  []time.Time
}

func (f *fakeBuckets) SyncDay(ctx context.Context, subjectIDs []string, day time.Time) error {
	f.mu.Lock()
	f.syncedDays = append(f.syncedDays, day)
	f.mu.Unlock()
	if f.syncDayFunc == nil {
		return nil
	}
	return f.syncDayFunc(ctx, subjectIDs, day)
}

func (f *fakeBuckets) days() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.syncedDays...)
}

type fakeDirectory struct {
	subjectsFunc func(ctx context.Context) (models.DirectoryResult, error)
}

func (f *fakeDirectory) Subjects(ctx context.Context) (models.DirectoryResult, error) {
	if f.subjectsFunc == nil {
		return models.DirectoryResult{
			Status: models.DirectoryOk,
			Subjects: []models.Subject{
				{ID: "s1", Name: "Alice", Active: true, Tracking: true},
				{ID: "s2", Name: "Bob", Active: true, Tracking: true},
				{ID: "s3", Name: "Gone", Active: false, Tracking: true},
			},
		}, nil
	}
	return f.subjectsFunc(ctx)
}

type fakeMirror struct {
	listDealsFunc    func(ctx context.Context, since time.Time) ([]models.Deal, error)
	listMessagesFunc func(ctx context.Context, since time.Time) ([]models.Message, error)
}

func (f *fakeMirror) ListDeals(ctx context.Context, since time.Time) ([]models.Deal, error) {
	if f.listDealsFunc == nil {
		return nil, nil
	}
	return f.listDealsFunc(ctx, since)
}

func (f *fakeMirror) ListMessages(ctx context.Context, since time.Time) ([]models.Message, error) {
	if f.listMessagesFunc == nil {
		return nil, nil
	}
	return f.listMessagesFunc(ctx, since)
}

func newTestManager(t *testing.T, store *fakeStore, buckets *fakeBuckets, dir *fakeDirectory, mirror *fakeMirror) *Manager {
	t.Helper()
	m := NewManager(store, buckets, dir, mirror, config.SyncConfig{
		Interval:      15 * time.Second,
		BackfillDays:  5,
		InterDayDelay: 2 * time.Second,
	}, time.UTC)
	m.now = func() time.Time { return testNow }
	m.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return m
}

func TestRecurringPassStepOrder(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var order []string
	record := func(step string) {
		mu.Lock()
		order = append(order, step)
		mu.Unlock()
	}

	store := &fakeStore{
		upsertDealsFunc:    func(context.Context, []models.Deal) error { record("deals"); return nil },
		upsertMessagesFunc: func(context.Context, []models.Message) error { record("messages"); return nil },
	}
	dir := &fakeDirectory{subjectsFunc: func(ctx context.Context) (models.DirectoryResult, error) {
		record("directory")
		return models.DirectoryResult{Status: models.DirectoryOk, Subjects: []models.Subject{{ID: "s1", Active: true, Tracking: true}}}, nil
	}}
	buckets := &fakeBuckets{syncDayFunc: func(context.Context, []string, time.Time) error { record("today"); return nil }}

	m := newTestManager(t, store, buckets, dir, &fakeMirror{})
	m.runRecurringPass(context.Background())

	want := []string{"deals", "messages", "directory", "today"}
	if len(order) != len(want) {
		t.Fatalf("steps = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("step %d = %s, want %s (fixed step order)", i, order[i], want[i])
		}
	}
	if !m.Ready() {
		t.Error("Ready() = false after a fully successful pass")
	}
	if !m.LastSyncTime().Equal(testNow) {
		t.Errorf("LastSyncTime = %v, want %v", m.LastSyncTime(), testNow)
	}
}

func TestRecurringPassStepIsolation(t *testing.T) {
	t.Parallel()

	var messagesSynced, todaySynced bool
	store := &fakeStore{
		upsertDealsFunc:    func(context.Context, []models.Deal) error { return errors.New("boom") },
		upsertMessagesFunc: func(context.Context, []models.Message) error { messagesSynced = true; return nil },
	}
	buckets := &fakeBuckets{syncDayFunc: func(context.Context, []string, time.Time) error { todaySynced = true; return nil }}

	m := newTestManager(t, store, buckets, &fakeDirectory{}, &fakeMirror{})
	m.runRecurringPass(context.Background())

	if !messagesSynced || !todaySynced {
		t.Errorf("later steps skipped after a failing step: messages=%v today=%v", messagesSynced, todaySynced)
	}
	if m.Ready() {
		t.Error("Ready() = true after a pass with a failed step")
	}
	if !m.LastSyncTime().IsZero() {
		t.Error("LastSyncTime advanced despite a failed step")
	}
}

func TestRecurringPassPanicIsolation(t *testing.T) {
	t.Parallel()

	var todaySynced bool
	mirror := &fakeMirror{
		listDealsFunc: func(context.Context, time.Time) ([]models.Deal, error) { panic("bad upstream payload") },
	}
	buckets := &fakeBuckets{syncDayFunc: func(context.Context, []string, time.Time) error { todaySynced = true; return nil }}

	m := newTestManager(t, &fakeStore{}, buckets, &fakeDirectory{}, mirror)
	m.runRecurringPass(context.Background())

	if !todaySynced {
		t.Error("panicking step aborted the pass")
	}
}

func TestRecurringPassSyncsTodayForTrackedRoster(t *testing.T) {
	t.Parallel()

	var gotIDs []string
	buckets := &fakeBuckets{syncDayFunc: func(_ context.Context, ids []string, day time.Time) error {
		gotIDs = ids
		if !day.Equal(models.DayStart(testNow, time.UTC)) {
			t.Errorf("synced day = %v, want today's start", day)
		}
		return nil
	}}

	m := newTestManager(t, &fakeStore{}, buckets, &fakeDirectory{}, &fakeMirror{})
	m.runRecurringPass(context.Background())

	// The default directory has s3 inactive; only tracked subjects sync.
	if len(gotIDs) != 2 || gotIDs[0] != "s1" || gotIDs[1] != "s2" {
		t.Errorf("synced subjects = %v, want [s1 s2]", gotIDs)
	}
}

func TestMirrorWatermarkAdvancesOnSuccess(t *testing.T) {
	t.Parallel()

	var sinces []time.Time
	mirror := &fakeMirror{
		listDealsFunc: func(_ context.Context, since time.Time) ([]models.Deal, error) {
			sinces = append(sinces, since)
			return nil, nil
		},
	}
	m := newTestManager(t, &fakeStore{}, &fakeBuckets{}, &fakeDirectory{}, mirror)

	m.runRecurringPass(context.Background())
	m.runRecurringPass(context.Background())

	if len(sinces) != 2 {
		t.Fatalf("deal listings = %d, want 2", len(sinces))
	}
	// First pass reaches back over the whole backfill window.
	if want := testNow.AddDate(0, 0, -5); !sinces[0].Equal(want) {
		t.Errorf("first since = %v, want %v", sinces[0], want)
	}
	// Second pass resumes from the first pass start.
	if !sinces[1].Equal(testNow) {
		t.Errorf("second since = %v, want %v", sinces[1], testNow)
	}
}

func TestStartStop(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, &fakeStore{}, &fakeBuckets{}, &fakeDirectory{}, &fakeMirror{})
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Start(context.Background()); err == nil {
		t.Error("second Start succeeded, want error")
	}
	if err := m.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := m.Stop(); err == nil {
		t.Error("second Stop succeeded, want error")
	}
}
