// Paceboard - CRM Activity Mirror and Productivity Leaderboard
// Copyright 2026 Paceboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/paceboard/paceboard

package models

// LeaderboardEntry is one ranked row of derived productivity rates.
//
// Pending is true when the entry could not be computed because the
// underlying day buckets are incomplete; a pending entry carries zero
// rates but must never be rendered as a literal zero score.
type LeaderboardEntry struct {
	SubjectID      string  `json:"subject_id"`
	SubjectName    string  `json:"subject_name"`
	TrackedSeconds int64   `json:"tracked_seconds"`
	WonDeals       int     `json:"won_deals"`
	Messages       int     `json:"messages"`
	DealsPerHour   float64 `json:"deals_per_hour"`
	MessagesPerHour float64 `json:"messages_per_hour"`
	Degraded       bool    `json:"degraded,omitempty"`
	Pending        bool    `json:"pending,omitempty"`
}
