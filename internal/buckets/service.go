// Paceboard - CRM Activity Mirror and Productivity Leaderboard
// Copyright 2026 Paceboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/paceboard/paceboard

/*
Package buckets is the day-bucketed metric cache: the read and sync
surface over the per-(subject, day) tracked-time buckets.

Reads (GetMetric) sum day buckets and refuse to guess: a missing day
fails with ErrIncompleteData rather than returning a partial sum.
Legacy multi-day buckets are averaged across their covered days and the
result is flagged degraded.

Syncs (SyncMetric) decompose multi-day ranges into single-day upstream
report calls in an explicit loop; upstream multi-day aggregates are
never trusted. Concurrent syncs of the same target share one in-flight
call.

Ranged reads are memoized with asymmetric TTLs: zero totals expire
fast (they usually mean "not synced yet"), non-zero totals live for
the refresh interval.
*/
package buckets

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/paceboard/paceboard/internal/cache"
	"github.com/paceboard/paceboard/internal/config"
	"github.com/paceboard/paceboard/internal/logging"
	"github.com/paceboard/paceboard/internal/models"
	"github.com/paceboard/paceboard/internal/models/crm"
)

// ErrIncompleteData is returned when a ranged read cannot be answered
// because at least one (subject, day) bucket is missing. A read either
// covers the whole range or fails; it never returns a partial sum.
var ErrIncompleteData = errors.New("incomplete metric data")

// Store is the persistence slice the service needs.
type Store interface {
	UpsertBucket(ctx context.Context, b models.MetricBucket) error
	BucketsOverlapping(ctx context.Context, subjectIDs []string, start, end time.Time) ([]models.MetricBucket, error)
}

// Reporter is the gateway slice the service needs.
type Reporter interface {
	ActivityReport(ctx context.Context, start, end, subjectID string) ([]crm.ActivityRecord, error)
}

// Service implements the day-bucketed metric cache.
type Service struct {
	store    Store
	reporter Reporter
	loc      *time.Location

	memo      *cache.Cache
	zeroTTL   time.Duration
	resultTTL time.Duration

	// inflight shares one running sync per logical target.
	mu       sync.Mutex
	inflight map[string]*inflightSync

	now func() time.Time
	log zerolog.Logger
}

type inflightSync struct {
	done chan struct{}
	err  error
}

// NewService creates the metric cache service.
func NewService(store Store, reporter Reporter, cfg config.MetricsConfig, loc *time.Location) *Service {
	return &Service{
		store:     store,
		reporter:  reporter,
		loc:       loc,
		memo:      cache.New(cfg.ResultTTL),
		zeroTTL:   cfg.ZeroResultTTL,
		resultTTL: cfg.ResultTTL,
		inflight:  make(map[string]*inflightSync),
		now:       time.Now,
		log:       logging.With().Str("component", "buckets").Logger(),
	}
}

// targetKey identifies a logical sync or read target.
func targetKey(prefix string, subjectIDs []string, start, end time.Time, loc *time.Location) string {
	type keyParams struct {
		Subjects []string
		Start    string
		End      string
	}
	sorted := make([]string, len(subjectIDs))
	copy(sorted, subjectIDs)
	sortStrings(sorted)
	return cache.GenerateKey(prefix, keyParams{
		Subjects: sorted,
		Start:    models.DayStart(start, loc).Format("2006-01-02"),
		End:      models.DayStart(end, loc).Format("2006-01-02"),
	})
}

// sortStrings is an insertion sort; subject lists are small and this
// avoids importing sort for one call site.
func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j] < s[j-1]; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

// InvalidateReads drops every memoized ranged read. Called after any
// write that changes bucket state.
func (s *Service) InvalidateReads() {
	s.memo.Clear()
}

// formatDay renders a day for the upstream report API.
func formatDay(day time.Time) string {
	return day.Format("2006-01-02")
}

// wrapIncomplete annotates ErrIncompleteData with the first missing
// (subject, day) pair for diagnostics while keeping the sentinel
// matchable with errors.Is.
func wrapIncomplete(subjectID string, day time.Time) error {
	return fmt.Errorf("subject %s has no bucket for %s: %w", subjectID, formatDay(day), ErrIncompleteData)
}
