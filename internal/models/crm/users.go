// Paceboard - CRM Activity Mirror and Productivity Leaderboard
// Copyright 2026 Paceboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/paceboard/paceboard

package crm

// User is one entry of the paginated GET /api/v1/users directory.
type User struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	GroupID         string `json:"group_id"`
	Deactivated     bool   `json:"deactivated"`
	TrackingEnabled bool   `json:"tracking_enabled"`
}

// UsersResponse is the page envelope of GET /api/v1/users.
type UsersResponse struct {
	Data       []User     `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// Group is one entry of the paginated GET /api/v1/groups directory.
type Group struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// GroupsResponse is the page envelope of GET /api/v1/groups.
type GroupsResponse struct {
	Data       []Group    `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// Pagination is the upstream's shared page envelope. HasMore signals
// additional pages; the next page is requested with Page+1.
type Pagination struct {
	Page    int  `json:"page"`
	PerPage int  `json:"per_page"`
	Total   int  `json:"total"`
	HasMore bool `json:"has_more"`
}
