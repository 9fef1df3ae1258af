// Paceboard - CRM Activity Mirror and Productivity Leaderboard
// Copyright 2026 Paceboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/paceboard/paceboard

// Package api provides the HTTP surface: sync triggers and status,
// ranged tracked-time reads, the leaderboard, health/readiness probes
// and the Prometheus metrics endpoint, routed with Chi.
package api
