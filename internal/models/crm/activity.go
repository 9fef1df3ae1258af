// Paceboard - CRM Activity Mirror and Productivity Leaderboard
// Copyright 2026 Paceboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/paceboard/paceboard

package crm

// ActivityReportRequest is the body of POST /api/v1/reports/activity.
// Start and End are inclusive dates in YYYY-MM-DD form, interpreted by
// the upstream in its account timezone. SubjectID narrows the report to
// one user; empty means all users.
type ActivityReportRequest struct {
	Start     string `json:"start"`
	End       string `json:"end"`
	SubjectID string `json:"subject_id,omitempty"`
}

// ActivityRecord is one per-subject row of an activity report. The
// upstream emits either a JSON array of these or NDJSON, one record per
// line, depending on the Accept header.
type ActivityRecord struct {
	UserID         string `json:"user_id"`
	TrackedSeconds int64  `json:"tracked_seconds"`
	Start          string `json:"start"`
	End            string `json:"end"`
}

// TimeEntry is one row of the deprecated
// GET /api/v1/users/{id}/time_entries endpoint, kept only for the
// legacy multi-day bucket verification path.
type TimeEntry struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	StartAt  string `json:"start_at"`
	EndAt    string `json:"end_at"`
	Duration int64  `json:"duration"`
}
