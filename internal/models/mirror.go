// Paceboard - CRM Activity Mirror and Productivity Leaderboard
// Copyright 2026 Paceboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/paceboard/paceboard

package models

import "time"

// Deal mirrors a CRM deal. Only the fields the leaderboard needs are
// kept; the upstream carries many more.
type Deal struct {
	ID        string    `json:"id"`
	SubjectID string    `json:"subject_id"`
	Title     string    `json:"title"`
	Value     float64   `json:"value"`
	Stage     string    `json:"stage"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Won reports whether the deal has reached a terminal won stage.
func (d Deal) Won() bool {
	return d.Stage == "won" || d.Stage == "closed_won"
}

// Message mirrors a CRM outbound message event, used for per-subject
// outreach counts.
type Message struct {
	ID        string    `json:"id"`
	SubjectID string    `json:"subject_id"`
	SentAt    time.Time `json:"sent_at"`
}
