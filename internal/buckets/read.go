// Paceboard - CRM Activity Mirror and Productivity Leaderboard
// Copyright 2026 Paceboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/paceboard/paceboard

package buckets

import (
	"context"
	"time"

	"github.com/paceboard/paceboard/internal/metrics"
	"github.com/paceboard/paceboard/internal/models"
)

// GetMetric sums the day buckets of each subject over [start, end].
//
// The range is expanded to whole calendar days in the reference
// timezone. Every (subject, day) pair must be covered by either a
// granular day bucket or a legacy multi-day bucket; otherwise the read
// fails with ErrIncompleteData. Legacy coverage averages the bucket's
// value across its covered days and flags the whole result degraded.
func (s *Service) GetMetric(ctx context.Context, subjectIDs []string, start, end time.Time) (models.RangedMetric, error) {
	key := targetKey("read", subjectIDs, start, end, s.loc)
	if cached, ok := s.memo.Get(key); ok {
		metrics.MetricReadCacheHits.Inc()
		return cached.(models.RangedMetric), nil
	}
	metrics.MetricReadCacheMisses.Inc()

	result, err := s.readRange(ctx, subjectIDs, start, end)
	if err != nil {
		return models.RangedMetric{}, err
	}

	ttl := s.resultTTL
	if allZero(result.Seconds) {
		ttl = s.zeroTTL
	}
	s.memo.SetWithTTL(key, result, ttl)

	return result, nil
}

// readRange computes the ranged sums from stored buckets.
func (s *Service) readRange(ctx context.Context, subjectIDs []string, start, end time.Time) (models.RangedMetric, error) {
	days := models.DaysInRange(start, end, s.loc)
	rangeStart := models.DayStart(start, s.loc)
	rangeEnd := models.DayEnd(end, s.loc)

	stored, err := s.store.BucketsOverlapping(ctx, subjectIDs, rangeStart, rangeEnd)
	if err != nil {
		return models.RangedMetric{}, err
	}

	// Split granular day rows from legacy multi-day rows.
	type dayKey struct {
		subject string
		day     string
	}
	granular := make(map[dayKey]int64)
	legacyBySubject := make(map[string][]models.MetricBucket)
	for _, b := range stored {
		if b.IsSingleDay(s.loc) {
			granular[dayKey{b.SubjectID, formatDay(models.DayStart(b.PeriodStart, s.loc))}] = b.MeasuredSeconds
		} else {
			legacyBySubject[b.SubjectID] = append(legacyBySubject[b.SubjectID], b)
		}
	}

	result := models.RangedMetric{
		Start:   rangeStart,
		End:     rangeEnd,
		Seconds: make(map[string]int64, len(subjectIDs)),
	}

	for _, subjectID := range subjectIDs {
		var total int64
		for _, day := range days {
			if seconds, ok := granular[dayKey{subjectID, formatDay(day)}]; ok {
				total += seconds
				continue
			}

			avg, ok := legacyAverage(legacyBySubject[subjectID], day, s.loc)
			if !ok {
				metrics.IncompleteReads.Inc()
				return models.RangedMetric{}, wrapIncomplete(subjectID, day)
			}
			total += avg
			result.Degraded = true
		}
		result.Seconds[subjectID] = total
	}

	if result.Degraded {
		metrics.DegradedReads.Inc()
		s.log.Warn().
			Time("start", rangeStart).
			Time("end", rangeEnd).
			Msg("ranged read served from averaged legacy buckets")
	}

	return result, nil
}

// legacyAverage finds a legacy bucket covering day and returns its
// per-day average. The averaging is an admitted approximation; callers
// see it through the degraded flag.
func legacyAverage(legacy []models.MetricBucket, day time.Time, loc *time.Location) (int64, bool) {
	dayEnd := models.DayEnd(day, loc)
	for _, b := range legacy {
		if b.PeriodStart.After(dayEnd) || b.PeriodEnd.Before(day) {
			continue
		}
		covered := int64(b.DaysCovered(loc))
		if covered <= 0 {
			covered = 1
		}
		return b.MeasuredSeconds / covered, true
	}
	return 0, false
}

func allZero(seconds map[string]int64) bool {
	for _, v := range seconds {
		if v != 0 {
			return false
		}
	}
	return true
}
