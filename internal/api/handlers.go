// Paceboard - CRM Activity Mirror and Productivity Leaderboard
// Copyright 2026 Paceboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/paceboard/paceboard

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/paceboard/paceboard/internal/buckets"
	"github.com/paceboard/paceboard/internal/models"
	syncpkg "github.com/paceboard/paceboard/internal/sync"
)

// SyncController is the scheduler surface the handlers need.
type SyncController interface {
	TriggerSync()
	TriggerBackfill(ctx context.Context) (string, error)
	Status() models.SyncStatus
	Ready() bool
}

// MetricReader serves ranged tracked-time reads.
type MetricReader interface {
	GetMetric(ctx context.Context, subjectIDs []string, start, end time.Time) (models.RangedMetric, error)
}

// LeaderboardComputer builds the leaderboard for a range.
type LeaderboardComputer interface {
	Compute(ctx context.Context, start, end time.Time) ([]models.LeaderboardEntry, error)
}

// Pinger checks storage liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds the API handlers and their dependencies.
type Handler struct {
	syncer      SyncController
	reader      MetricReader
	leaderboard LeaderboardComputer
	db          Pinger
	loc         *time.Location

	now func() time.Time
}

// NewHandler creates the API handler set.
func NewHandler(syncer SyncController, reader MetricReader, leaderboard LeaderboardComputer, db Pinger, loc *time.Location) *Handler {
	return &Handler{
		syncer:      syncer,
		reader:      reader,
		leaderboard: leaderboard,
		db:          db,
		loc:         loc,
		now:         time.Now,
	}
}

// TriggerSync requests an immediate recurring sync pass.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	h.syncer.TriggerSync()
	respondOK(w, http.StatusAccepted, map[string]bool{"triggered": true})
}

// TriggerBackfill starts a historical backfill run.
func (h *Handler) TriggerBackfill(w http.ResponseWriter, r *http.Request) {
	runID, err := h.syncer.TriggerBackfill(r.Context())
	if err != nil {
		if errors.Is(err, syncpkg.ErrBackfillRunning) {
			respondJSON(w, http.StatusConflict, &models.APIResponse{
				Status:   "error",
				Metadata: models.Metadata{Timestamp: h.now()},
				Error: &models.APIError{
					Code:    "BACKFILL_RUNNING",
					Message: "a historical backfill is already in progress",
					Details: map[string]interface{}{"run_id": runID},
				},
			})
			return
		}
		respondError(w, http.StatusServiceUnavailable, "SYNC_UNAVAILABLE", "sync scheduler is not running", err)
		return
	}
	respondOK(w, http.StatusAccepted, map[string]string{"run_id": runID})
}

// syncStatusResponse augments the raw status with a derived ETA.
type syncStatusResponse struct {
	models.SyncStatus
	ETASeconds float64 `json:"eta_seconds,omitempty"`
}

// SyncStatus reports readiness and backfill progress.
func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	status := h.syncer.Status()
	resp := syncStatusResponse{SyncStatus: status}
	if status.IsRunning && status.HistoricalProgress != nil {
		resp.ETASeconds = status.HistoricalProgress.ETA(h.now()).Seconds()
	}
	respondOK(w, http.StatusOK, resp)
}

// trackedMetricRequest is the validated query surface of TrackedMetric.
type trackedMetricRequest struct {
	Subjects []string `validate:"min=1"`
	Start    string   `validate:"required,datetime=2006-01-02"`
	End      string   `validate:"omitempty,datetime=2006-01-02"`
}

// trackedMetricResponse is the ranged read payload.
type trackedMetricResponse struct {
	Start    string           `json:"start"`
	End      string           `json:"end"`
	Seconds  map[string]int64 `json:"seconds"`
	Degraded bool             `json:"degraded"`
}

// TrackedMetric serves a ranged tracked-time read. Incomplete day
// coverage is an explicit error payload, never a partial sum.
func (h *Handler) TrackedMetric(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := trackedMetricRequest{
		Subjects: parseCommaSeparated(query.Get("subjects")),
		Start:    query.Get("start"),
		End:      query.Get("end"),
	}
	if req.End == "" {
		req.End = req.Start
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	start, _ := time.ParseInLocation(dayFormat, req.Start, h.loc)
	end, _ := time.ParseInLocation(dayFormat, req.End, h.loc)
	if end.Before(start) {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "end must not be before start", nil)
		return
	}

	metric, err := h.reader.GetMetric(r.Context(), req.Subjects, start, end)
	if err != nil {
		if errors.Is(err, buckets.ErrIncompleteData) {
			respondError(w, http.StatusUnprocessableEntity, "INCOMPLETE_DATA",
				"day coverage is incomplete for the requested range; trigger a sync and retry", err)
			return
		}
		respondError(w, http.StatusInternalServerError, "METRIC_READ_FAILED", "failed to read tracked time", err)
		return
	}

	respondOK(w, http.StatusOK, trackedMetricResponse{
		Start:    req.Start,
		End:      req.End,
		Seconds:  metric.Seconds,
		Degraded: metric.Degraded,
	})
}

// leaderboardResponse is the leaderboard payload.
type leaderboardResponse struct {
	Start   string                    `json:"start"`
	End     string                    `json:"end"`
	Entries []models.LeaderboardEntry `json:"entries"`
}

// Leaderboard serves derived productivity rates. Defaults to the last
// seven days ending today.
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	today := models.DayStart(h.now(), h.loc)

	end, err := parseDayParam(r, "end", h.loc, today)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "end must be a valid date in YYYY-MM-DD format", nil)
		return
	}
	start, err := parseDayParam(r, "start", h.loc, end.AddDate(0, 0, -6))
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "start must be a valid date in YYYY-MM-DD format", nil)
		return
	}
	if end.Before(start) {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "end must not be before start", nil)
		return
	}

	entries, err := h.leaderboard.Compute(r.Context(), start, models.DayEnd(end, h.loc))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "LEADERBOARD_FAILED", "failed to compute leaderboard", err)
		return
	}

	respondOK(w, http.StatusOK, leaderboardResponse{
		Start:   start.Format(dayFormat),
		End:     end.Format(dayFormat),
		Entries: entries,
	})
}

// HealthLive reports process and storage liveness.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "storage ping failed", err)
		return
	}
	respondOK(w, http.StatusOK, map[string]string{"status": "alive"})
}

// HealthReady reports readiness: true after the first fully successful
// sync pass, when served data is known to be coherent.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if !h.syncer.Ready() {
		respondError(w, http.StatusServiceUnavailable, "NOT_READY", "no successful sync pass yet", nil)
		return
	}
	respondOK(w, http.StatusOK, map[string]string{"status": "ready"})
}
