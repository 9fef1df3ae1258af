// Paceboard - CRM Activity Mirror and Productivity Leaderboard
// Copyright 2026 Paceboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/paceboard/paceboard

// Package leaderboard derives per-subject productivity rates from the
// day-bucket cache and the deal/message mirrors.
package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/paceboard/paceboard/internal/buckets"
	"github.com/paceboard/paceboard/internal/config"
	"github.com/paceboard/paceboard/internal/logging"
	"github.com/paceboard/paceboard/internal/models"
)

// MetricReader serves ranged tracked-time reads.
type MetricReader interface {
	GetMetric(ctx context.Context, subjectIDs []string, start, end time.Time) (models.RangedMetric, error)
}

// CountStore serves mirrored deal and message counts.
type CountStore interface {
	CountWonDeals(ctx context.Context, start, end time.Time) (map[string]int, error)
	CountMessages(ctx context.Context, start, end time.Time) (map[string]int, error)
}

// DirectoryProvider serves the subject roster.
type DirectoryProvider interface {
	Subjects(ctx context.Context) (models.DirectoryResult, error)
}

// Service computes the leaderboard.
type Service struct {
	reader     MetricReader
	store      CountStore
	directory  DirectoryProvider
	minTracked time.Duration
	log        zerolog.Logger
}

// NewService creates a leaderboard service.
func NewService(reader MetricReader, store CountStore, directory DirectoryProvider, cfg config.LeaderboardConfig) *Service {
	return &Service{
		reader:     reader,
		store:      store,
		directory:  directory,
		minTracked: cfg.MinTracked,
		log:        logging.With().Str("component", "leaderboard").Logger(),
	}
}

// Compute builds the leaderboard for [start, end].
//
// A subject whose tracked time cannot be established (incomplete day
// coverage) or who tracked less than the minimum renders as pending:
// a rate over missing or tiny denominators would be noise, and showing
// zero would be a lie.
func (s *Service) Compute(ctx context.Context, start, end time.Time) ([]models.LeaderboardEntry, error) {
	result, err := s.directory.Subjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subject directory: %w", err)
	}

	won, err := s.store.CountWonDeals(ctx, start, end)
	if err != nil {
		return nil, err
	}
	messages, err := s.store.CountMessages(ctx, start, end)
	if err != nil {
		return nil, err
	}

	entries := make([]models.LeaderboardEntry, 0, len(result.Subjects))
	for _, subject := range result.Subjects {
		if !subject.Active || !subject.Tracking {
			continue
		}
		entry, err := s.computeEntry(ctx, subject, won[subject.ID], messages[subject.ID], start, end)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	sortEntries(entries)
	return entries, nil
}

// computeEntry derives one subject's rates. Per-subject metric reads
// hit the memoization cache, so an un-synced subject only marks itself
// pending instead of failing the whole board.
func (s *Service) computeEntry(ctx context.Context, subject models.Subject, won, messages int, start, end time.Time) (models.LeaderboardEntry, error) {
	entry := models.LeaderboardEntry{
		SubjectID:   subject.ID,
		SubjectName: subject.Name,
		WonDeals:    won,
		Messages:    messages,
	}

	metric, err := s.reader.GetMetric(ctx, []string{subject.ID}, start, end)
	if err != nil {
		if errors.Is(err, buckets.ErrIncompleteData) {
			entry.Pending = true
			s.log.Debug().Str("subject", subject.ID).Msg("leaderboard entry pending, incomplete day coverage")
			return entry, nil
		}
		return models.LeaderboardEntry{}, err
	}

	entry.TrackedSeconds = metric.Seconds[subject.ID]
	entry.Degraded = metric.Degraded

	if time.Duration(entry.TrackedSeconds)*time.Second < s.minTracked {
		entry.Pending = true
		return entry, nil
	}

	hours := float64(entry.TrackedSeconds) / 3600
	entry.DealsPerHour = float64(won) / hours
	entry.MessagesPerHour = float64(messages) / hours
	return entry, nil
}

// sortEntries orders by won-deal rate, then message rate, then name.
// Pending entries sink to the bottom regardless of counts.
func sortEntries(entries []models.LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Pending != b.Pending {
			return !a.Pending
		}
		if a.DealsPerHour != b.DealsPerHour {
			return a.DealsPerHour > b.DealsPerHour
		}
		if a.MessagesPerHour != b.MessagesPerHour {
			return a.MessagesPerHour > b.MessagesPerHour
		}
		return a.SubjectName < b.SubjectName
	})
}
