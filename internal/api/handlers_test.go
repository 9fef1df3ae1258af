// Paceboard - CRM Activity Mirror and Productivity Leaderboard
// Copyright 2026 Paceboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/paceboard/paceboard

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/paceboard/paceboard/internal/buckets"
	"github.com/paceboard/paceboard/internal/models"
	syncpkg "github.com/paceboard/paceboard/internal/sync"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeSync struct {
	triggerFunc  func()
	backfillFunc func(ctx context.Context) (string, error)
	statusFunc   func() models.SyncStatus
	readyFunc    func() bool
}

func (f *fakeSync) TriggerSync() {
	if f.triggerFunc != nil {
		f.triggerFunc()
	}
}

func (f *fakeSync) TriggerBackfill(ctx context.Context) (string, error) {
	if f.backfillFunc != nil {
		return f.backfillFunc(ctx)
	}
	return "run-1", nil
}

func (f *fakeSync) Status() models.SyncStatus {
	if f.statusFunc != nil {
		return f.statusFunc()
	}
	return models.SyncStatus{}
}

func (f *fakeSync) Ready() bool {
	if f.readyFunc != nil {
		return f.readyFunc()
	}
	return true
}

type fakeReader struct {
	getFunc func(ctx context.Context, subjectIDs []string, start, end time.Time) (models.RangedMetric, error)
}

func (f *fakeReader) GetMetric(ctx context.Context, subjectIDs []string, start, end time.Time) (models.RangedMetric, error) {
	return f.getFunc(ctx, subjectIDs, start, end)
}

type fakeBoard struct {
	computeFunc func(ctx context.Context, start, end time.Time) ([]models.LeaderboardEntry, error)
}

func (f *fakeBoard) Compute(ctx context.Context, start, end time.Time) ([]models.LeaderboardEntry, error) {
	return f.computeFunc(ctx, start, end)
}

type fakePinger struct {
	pingFunc func(ctx context.Context) error
}

func (f *fakePinger) Ping(ctx context.Context) error {
	if f.pingFunc != nil {
		return f.pingFunc(ctx)
	}
	return nil
}

func newTestHandler(syncer *fakeSync, reader *fakeReader, board *fakeBoard, db *fakePinger) *Handler {
	if syncer == nil {
		syncer = &fakeSync{}
	}
	if db == nil {
		db = &fakePinger{}
	}
	h := NewHandler(syncer, reader, board, db, time.UTC)
	h.now = func() time.Time { return testNow }
	return h
}

type envelope struct {
	Status string           `json:"status"`
	Data   json.RawMessage  `json:"data"`
	Error  *models.APIError `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to decode response envelope: %v", err)
	}
	return env
}

func TestTriggerBackfillAccepted(t *testing.T) {
	t.Parallel()

	h := newTestHandler(&fakeSync{
		backfillFunc: func(ctx context.Context) (string, error) {
			return "run-42", nil
		},
	}, nil, nil, nil)

	rec := httptest.NewRecorder()
	h.TriggerBackfill(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sync/backfill", nil))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}

	env := decodeEnvelope(t, rec)
	var data map[string]string
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}
	if data["run_id"] != "run-42" {
		t.Errorf("expected run_id run-42, got %q", data["run_id"])
	}
}

func TestTriggerBackfillConflictWhenRunning(t *testing.T) {
	t.Parallel()

	h := newTestHandler(&fakeSync{
		backfillFunc: func(ctx context.Context) (string, error) {
			return "run-active", syncpkg.ErrBackfillRunning
		},
	}, nil, nil, nil)

	rec := httptest.NewRecorder()
	h.TriggerBackfill(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sync/backfill", nil))

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}

	env := decodeEnvelope(t, rec)
	if env.Error == nil || env.Error.Code != "BACKFILL_RUNNING" {
		t.Fatalf("expected BACKFILL_RUNNING error, got %+v", env.Error)
	}
	if got := env.Error.Details["run_id"]; got != "run-active" {
		t.Errorf("expected active run id in details, got %v", got)
	}
}

func TestTrackedMetricSuccess(t *testing.T) {
	t.Parallel()

	var gotSubjects []string
	h := newTestHandler(nil, &fakeReader{
		getFunc: func(ctx context.Context, subjectIDs []string, start, end time.Time) (models.RangedMetric, error) {
			gotSubjects = subjectIDs
			return models.RangedMetric{
				Start:   start,
				End:     end,
				Seconds: map[string]int64{"s1": 3600, "s2": 1800},
			}, nil
		},
	}, nil, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/metrics/tracked?subjects=s1,s2&start=2026-03-01&end=2026-03-07", nil)
	h.TrackedMetric(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(gotSubjects) != 2 || gotSubjects[0] != "s1" || gotSubjects[1] != "s2" {
		t.Errorf("unexpected subjects passed to reader: %v", gotSubjects)
	}

	env := decodeEnvelope(t, rec)
	var data trackedMetricResponse
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}
	if data.Seconds["s1"] != 3600 {
		t.Errorf("expected 3600s for s1, got %d", data.Seconds["s1"])
	}
	if data.Start != "2026-03-01" || data.End != "2026-03-07" {
		t.Errorf("unexpected range echo: %s..%s", data.Start, data.End)
	}
}

func TestTrackedMetricIncompleteData(t *testing.T) {
	t.Parallel()

	h := newTestHandler(nil, &fakeReader{
		getFunc: func(ctx context.Context, subjectIDs []string, start, end time.Time) (models.RangedMetric, error) {
			return models.RangedMetric{}, buckets.ErrIncompleteData
		},
	}, nil, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/metrics/tracked?subjects=s1&start=2026-03-01", nil)
	h.TrackedMetric(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Error == nil || env.Error.Code != "INCOMPLETE_DATA" {
		t.Fatalf("expected INCOMPLETE_DATA error, got %+v", env.Error)
	}
}

func TestTrackedMetricValidation(t *testing.T) {
	t.Parallel()

	h := newTestHandler(nil, &fakeReader{
		getFunc: func(ctx context.Context, subjectIDs []string, start, end time.Time) (models.RangedMetric, error) {
			t.Fatal("reader must not be called for invalid requests")
			return models.RangedMetric{}, nil
		},
	}, nil, nil)

	cases := []struct {
		name string
		url  string
	}{
		{"missing subjects", "/api/v1/metrics/tracked?start=2026-03-01"},
		{"missing start", "/api/v1/metrics/tracked?subjects=s1"},
		{"malformed start", "/api/v1/metrics/tracked?subjects=s1&start=March-1st"},
		{"end before start", "/api/v1/metrics/tracked?subjects=s1&start=2026-03-05&end=2026-03-01"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.TrackedMetric(rec, httptest.NewRequest(http.MethodGet, tc.url, nil))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestLeaderboardDefaultRange(t *testing.T) {
	t.Parallel()

	var gotStart, gotEnd time.Time
	h := newTestHandler(nil, nil, &fakeBoard{
		computeFunc: func(ctx context.Context, start, end time.Time) ([]models.LeaderboardEntry, error) {
			gotStart, gotEnd = start, end
			return []models.LeaderboardEntry{{SubjectID: "s1", SubjectName: "Alice"}}, nil
		},
	}, nil)

	rec := httptest.NewRecorder()
	h.Leaderboard(rec, httptest.NewRequest(http.MethodGet, "/api/v1/leaderboard", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	wantStart := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	if !gotStart.Equal(wantStart) {
		t.Errorf("expected default start %v, got %v", wantStart, gotStart)
	}
	wantEnd := time.Date(2026, 3, 10, 23, 59, 59, 0, time.UTC)
	if !gotEnd.Equal(wantEnd) {
		t.Errorf("expected default end %v, got %v", wantEnd, gotEnd)
	}

	env := decodeEnvelope(t, rec)
	var data leaderboardResponse
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}
	if data.Start != "2026-03-04" || data.End != "2026-03-10" {
		t.Errorf("unexpected range echo: %s..%s", data.Start, data.End)
	}
	if len(data.Entries) != 1 || data.Entries[0].SubjectName != "Alice" {
		t.Errorf("unexpected entries: %+v", data.Entries)
	}
}

func TestSyncStatusIncludesETA(t *testing.T) {
	t.Parallel()

	run := &models.SyncRun{
		ID:             "run-1",
		Stage:          models.StageSyncing,
		TotalUnits:     10,
		CompletedUnits: 5,
		StartTime:      testNow.Add(-50 * time.Second),
	}
	h := newTestHandler(&fakeSync{
		statusFunc: func() models.SyncStatus {
			return models.SyncStatus{IsRunning: true, HistoricalProgress: run}
		},
	}, nil, nil, nil)

	rec := httptest.NewRecorder()
	h.SyncStatus(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sync/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	var data struct {
		IsRunning  bool    `json:"is_running"`
		ETASeconds float64 `json:"eta_seconds"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}
	if !data.IsRunning {
		t.Error("expected is_running true")
	}
	// 50s for 5 of 10 units leaves 50s.
	if data.ETASeconds != 50 {
		t.Errorf("expected eta_seconds 50, got %v", data.ETASeconds)
	}
}

func TestHealthProbes(t *testing.T) {
	t.Parallel()

	t.Run("live ok", func(t *testing.T) {
		h := newTestHandler(nil, nil, nil, &fakePinger{})
		rec := httptest.NewRecorder()
		h.HealthLive(rec, httptest.NewRequest(http.MethodGet, "/api/v1/healthz", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("live storage down", func(t *testing.T) {
		h := newTestHandler(nil, nil, nil, &fakePinger{
			pingFunc: func(ctx context.Context) error { return errors.New("connection refused") },
		})
		rec := httptest.NewRecorder()
		h.HealthLive(rec, httptest.NewRequest(http.MethodGet, "/api/v1/healthz", nil))
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("expected 503, got %d", rec.Code)
		}
	})

	t.Run("ready before first pass", func(t *testing.T) {
		h := newTestHandler(&fakeSync{readyFunc: func() bool { return false }}, nil, nil, nil)
		rec := httptest.NewRecorder()
		h.HealthReady(rec, httptest.NewRequest(http.MethodGet, "/api/v1/readyz", nil))
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("expected 503, got %d", rec.Code)
		}
	})

	t.Run("ready after first pass", func(t *testing.T) {
		h := newTestHandler(&fakeSync{readyFunc: func() bool { return true }}, nil, nil, nil)
		rec := httptest.NewRecorder()
		h.HealthReady(rec, httptest.NewRequest(http.MethodGet, "/api/v1/readyz", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})
}

func TestRouterWiring(t *testing.T) {
	t.Parallel()

	h := newTestHandler(&fakeSync{}, &fakeReader{
		getFunc: func(ctx context.Context, subjectIDs []string, start, end time.Time) (models.RangedMetric, error) {
			return models.RangedMetric{Seconds: map[string]int64{}}, nil
		},
	}, &fakeBoard{
		computeFunc: func(ctx context.Context, start, end time.Time) ([]models.LeaderboardEntry, error) {
			return nil, nil
		},
	}, &fakePinger{})

	router := NewRouter(h, NewChiMiddleware(&ChiMiddlewareConfig{RateLimitDisabled: true}))

	cases := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodPost, "/api/v1/sync/trigger", http.StatusAccepted},
		{http.MethodGet, "/api/v1/sync/status", http.StatusOK},
		{http.MethodGet, "/api/v1/metrics/tracked?subjects=s1&start=2026-03-01", http.StatusOK},
		{http.MethodGet, "/api/v1/leaderboard", http.StatusOK},
		{http.MethodGet, "/api/v1/healthz", http.StatusOK},
		{http.MethodGet, "/api/v1/readyz", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		if rec.Code != tc.want {
			t.Errorf("%s %s: expected %d, got %d", tc.method, tc.path, tc.want, rec.Code)
		}
	}

	// Request IDs are assigned at the edge for every route.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/healthz", nil))
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID response header")
	}
}
