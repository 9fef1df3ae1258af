// Paceboard - CRM Activity Mirror and Productivity Leaderboard
// Copyright 2026 Paceboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/paceboard/paceboard

package models

import "time"

// Subject is a tracked CRM user (the unit the leaderboard ranks).
type Subject struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	GroupID  string `json:"group_id,omitempty"`
	Active   bool   `json:"active"`
	Tracking bool   `json:"tracking"`
}

// Group is a CRM team/department a subject belongs to.
type Group struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DirectoryStatus tags a DirectoryResult so consumers can tell the three
// outcomes of a directory read apart. A bare empty slice is never
// returned for a rate-limited read.
type DirectoryStatus string

const (
	// DirectoryOk: a live or fresh-fallback listing was obtained.
	DirectoryOk DirectoryStatus = "ok"
	// DirectoryRateLimited: the upstream returned 429 and no fallback
	// younger than the configured maximum age was available.
	DirectoryRateLimited DirectoryStatus = "rate_limited"
	// DirectoryEmpty: the upstream answered successfully with zero entries.
	DirectoryEmpty DirectoryStatus = "empty"
)

// DirectoryResult carries a subject or group listing together with how
// it was obtained. Fallback is true when the listing came from the
// rate-limit fallback cache rather than a live call; FetchedAt is the
// time the listing was originally fetched from the upstream.
type DirectoryResult struct {
	Status    DirectoryStatus `json:"status"`
	Subjects  []Subject       `json:"subjects,omitempty"`
	Groups    []Group         `json:"groups,omitempty"`
	Fallback  bool            `json:"fallback"`
	FetchedAt time.Time       `json:"fetched_at"`
}
