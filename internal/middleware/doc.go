// Paceboard - CRM Activity Mirror and Productivity Leaderboard
// Copyright 2026 Paceboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/paceboard/paceboard

// Package middleware provides HTTP middleware shared by the API
// router: request-ID propagation and Prometheus instrumentation.
package middleware
