// Paceboard - CRM Activity Mirror and Productivity Leaderboard
// Copyright 2026 Paceboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/paceboard/paceboard

// Package supervisor builds the suture/v4 supervision tree that runs
// the long-lived parts of the process.
//
// Two child supervisors hang off the root: the sync layer (the
// scheduler driving recurring passes and historical backfill) and the
// API layer (the HTTP server). Supervision events are logged through
// sutureslog into the process-wide zerolog logger.
//
// The subpackage services adapts non-suture lifecycles (Start/Stop
// managers, http.Server) to the suture.Service interface.
package supervisor
