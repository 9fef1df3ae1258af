// Paceboard - CRM Activity Mirror and Productivity Leaderboard
// Copyright 2026 Paceboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/paceboard/paceboard

package models

import "time"

// SyncStage is the lifecycle stage of a scheduler run.
type SyncStage string

const (
	StageIdle             SyncStage = "idle"
	StageFetchingSubjects SyncStage = "fetching_subjects"
	StageSyncing          SyncStage = "syncing"
	StageComplete         SyncStage = "complete"
	StageError            SyncStage = "error"
)

// UnitError records a failed unit of work (a calendar day during
// backfill, a named step during a recurring pass) without aborting the
// run it belongs to.
type UnitError struct {
	Unit    string    `json:"unit"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// SyncRun is the observable state of one scheduler run. Snapshots are
// returned by value so callers never see a run mid-mutation.
type SyncRun struct {
	ID             string      `json:"id"`
	Stage          SyncStage   `json:"stage"`
	TotalUnits     int         `json:"total_units"`
	CompletedUnits int         `json:"completed_units"`
	CurrentUnit    string      `json:"current_unit,omitempty"`
	Errors         []UnitError `json:"errors,omitempty"`
	StartTime      time.Time   `json:"start_time"`
	EndTime        time.Time   `json:"end_time"`
}

// ETA estimates the remaining duration from per-unit pacing so far.
// It returns 0 until at least one unit has completed.
func (r SyncRun) ETA(now time.Time) time.Duration {
	if r.CompletedUnits == 0 || r.TotalUnits <= r.CompletedUnits {
		return 0
	}
	elapsed := now.Sub(r.StartTime)
	if elapsed <= 0 {
		return 0
	}
	perUnit := elapsed / time.Duration(r.CompletedUnits)
	return perUnit * time.Duration(r.TotalUnits-r.CompletedUnits)
}

// SyncStatus is the status payload for the sync API.
type SyncStatus struct {
	IsRunning          bool      `json:"is_running"`
	Ready              bool      `json:"ready"`
	LastSyncTime       time.Time `json:"last_sync_time"`
	HistoricalProgress *SyncRun  `json:"historical_progress,omitempty"`
}
