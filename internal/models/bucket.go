// Paceboard - CRM Activity Mirror and Productivity Leaderboard
// Copyright 2026 Paceboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/paceboard/paceboard

package models

import "time"

// MetricBucket is the stored unit of tracked time: the total measured
// seconds for one subject over one period.
//
// Granular buckets span exactly one calendar day in the reference
// timezone (PeriodStart at midnight, PeriodEnd at 23:59:59 of the same
// day). Multi-day buckets exist only as legacy rows written by earlier
// versions; they are read through the averaging fallback and never
// written anymore.
type MetricBucket struct {
	SubjectID       string    `json:"subject_id"`
	PeriodStart     time.Time `json:"period_start"`
	PeriodEnd       time.Time `json:"period_end"`
	MeasuredSeconds int64     `json:"measured_seconds"`
	SyncedAt        time.Time `json:"synced_at"`
}

// IsSingleDay reports whether the bucket spans exactly one calendar day
// in the given reference location.
func (b MetricBucket) IsSingleDay(loc *time.Location) bool {
	start := b.PeriodStart.In(loc)
	end := b.PeriodEnd.In(loc)
	return start.Year() == end.Year() && start.YearDay() == end.YearDay()
}

// DaysCovered returns the number of calendar days the bucket spans in
// the given reference location. Single-day buckets return 1.
func (b MetricBucket) DaysCovered(loc *time.Location) int {
	start := b.PeriodStart.In(loc)
	end := b.PeriodEnd.In(loc)
	startDay := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	endDay := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, loc)
	return int(endDay.Sub(startDay)/(24*time.Hour)) + 1
}

// RangedMetric is the result of a ranged metric read.
//
// Degraded is true when any subject's total includes seconds derived by
// averaging a legacy multi-day bucket instead of summing true day rows.
type RangedMetric struct {
	Start    time.Time        `json:"start"`
	End      time.Time        `json:"end"`
	Seconds  map[string]int64 `json:"seconds"`
	Degraded bool             `json:"degraded"`
}
