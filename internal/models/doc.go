// Paceboard - CRM Activity Mirror and Productivity Leaderboard
// Copyright 2026 Paceboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/paceboard/paceboard

/*
Package models defines the data structures shared across Paceboard.

It is the single source of truth for:

  - MetricBucket: the stored unit of tracked time (one subject, one
    calendar day in the reference timezone)
  - Subject / Group: directory entries mirrored from the CRM
  - DirectoryResult: the tagged result of a directory read, so callers
    can distinguish "empty directory" from "rate limited and no usable
    fallback"
  - SyncRun / UnitError: observable state of a scheduler run
  - Deal / Message: fast-moving CRM mirrors refreshed by the recurring
    pass
  - LeaderboardEntry: derived productivity rates

Upstream wire formats live in the crm sub-package; nothing in this
package depends on how the CRM serializes its responses.
*/
package models
