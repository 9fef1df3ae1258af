// Paceboard - CRM Activity Mirror and Productivity Leaderboard
// Copyright 2026 Paceboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/paceboard/paceboard

// Package sync schedules the data flows that keep the local mirror
// current: a recurring pass (deal mirror, message mirror, subject
// directory, today's bucket) and a one-shot historical backfill that
// materializes a day bucket per tracked subject over the backfill
// window.
package sync
