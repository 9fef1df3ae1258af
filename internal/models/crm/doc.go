// Paceboard - CRM Activity Mirror and Productivity Leaderboard
// Copyright 2026 Paceboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/paceboard/paceboard

// Package crm defines the wire formats of the upstream CRM API.
// These structs match the upstream JSON exactly and are converted to
// internal models at the gateway boundary; nothing outside
// internal/upstream should import this package.
package crm
