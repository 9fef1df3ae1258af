// Paceboard - CRM Activity Mirror and Productivity Leaderboard
// Copyright 2026 Paceboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/paceboard/paceboard

package crm

// Deal is one entry of the paginated GET /api/v1/deals mirror feed.
type Deal struct {
	ID        string  `json:"id"`
	OwnerID   string  `json:"owner_id"`
	Title     string  `json:"title"`
	Value     float64 `json:"value"`
	Stage     string  `json:"stage"`
	UpdatedAt string  `json:"updated_at"`
}

// DealsResponse is the page envelope of GET /api/v1/deals.
type DealsResponse struct {
	Data       []Deal     `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// Message is one entry of the paginated GET /api/v1/messages feed.
type Message struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
	SentAt  string `json:"sent_at"`
}

// MessagesResponse is the page envelope of GET /api/v1/messages.
type MessagesResponse struct {
	Data       []Message  `json:"data"`
	Pagination Pagination `json:"pagination"`
}
