// Paceboard - CRM Activity Mirror and Productivity Leaderboard
// Copyright 2026 Paceboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/paceboard/paceboard

package upstream

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/paceboard/paceboard/internal/cache"
	"github.com/paceboard/paceboard/internal/logging"
	"github.com/paceboard/paceboard/internal/metrics"
	"github.com/paceboard/paceboard/internal/models"
)

const (
	subjectsCacheKey = "directory:subjects"
	groupsCacheKey   = "directory:groups"
)

// directoryClient is the slice of the gateway the Directory needs.
type directoryClient interface {
	ListSubjects(ctx context.Context) ([]models.Subject, error)
	ListGroups(ctx context.Context) ([]models.Group, error)
}

// Directory serves the subject and group directories with a rate-limit
// fallback. Every successful listing is retained; when a later fetch
// hits ErrRateLimited the retained copy is substituted as long as it is
// younger than maxAge. Past that age the caller gets an explicitly
// tagged rate-limited result, never a bare empty slice, so "the
// upstream throttled us" can never be mistaken for "nobody exists".
type Directory struct {
	client directoryClient
	cache  *cache.Cache
	maxAge time.Duration
	log    zerolog.Logger
}

// NewDirectory creates a Directory. maxAge bounds how stale a fallback
// listing may be before it stops being served.
func NewDirectory(client directoryClient, maxAge time.Duration) *Directory {
	return &Directory{
		client: client,
		cache:  cache.New(maxAge),
		maxAge: maxAge,
		log:    logging.With().Str("component", "directory").Logger(),
	}
}

// Subjects returns the subject directory. The returned error is
// non-nil only for the rate-limited-without-fallback and hard-failure
// outcomes; the result's Status always describes what the caller got.
func (d *Directory) Subjects(ctx context.Context) (models.DirectoryResult, error) {
	subjects, err := d.client.ListSubjects(ctx)
	if err == nil {
		d.cache.Set(subjectsCacheKey, subjects)
		return liveResult(models.DirectoryResult{Subjects: subjects}, len(subjects)), nil
	}

	if IsRateLimited(err) {
		if data, age, ok := d.cache.GetWithAge(subjectsCacheKey); ok && age <= d.maxAge {
			cached := data.([]models.Subject)
			metrics.GatewayFallbackServed.WithLabelValues("subjects").Inc()
			d.log.Warn().Dur("age", age).Int("subjects", len(cached)).Msg("serving subject directory from fallback")
			return fallbackResult(models.DirectoryResult{Subjects: cached}, len(cached), age), nil
		}
		d.log.Warn().Msg("subject directory rate limited and fallback exhausted")
		return models.DirectoryResult{Status: models.DirectoryRateLimited}, err
	}

	return models.DirectoryResult{}, err
}

// Groups returns the group directory with the same fallback semantics
// as Subjects.
func (d *Directory) Groups(ctx context.Context) (models.DirectoryResult, error) {
	groups, err := d.client.ListGroups(ctx)
	if err == nil {
		d.cache.Set(groupsCacheKey, groups)
		return liveResult(models.DirectoryResult{Groups: groups}, len(groups)), nil
	}

	if IsRateLimited(err) {
		if data, age, ok := d.cache.GetWithAge(groupsCacheKey); ok && age <= d.maxAge {
			cached := data.([]models.Group)
			metrics.GatewayFallbackServed.WithLabelValues("groups").Inc()
			d.log.Warn().Dur("age", age).Int("groups", len(cached)).Msg("serving group directory from fallback")
			return fallbackResult(models.DirectoryResult{Groups: cached}, len(cached), age), nil
		}
		d.log.Warn().Msg("group directory rate limited and fallback exhausted")
		return models.DirectoryResult{Status: models.DirectoryRateLimited}, err
	}

	return models.DirectoryResult{}, err
}

// liveResult tags a fresh listing. A successful empty answer is tagged
// DirectoryEmpty so it stays distinguishable from the exhausted case.
func liveResult(r models.DirectoryResult, n int) models.DirectoryResult {
	r.Status = models.DirectoryOk
	if n == 0 {
		r.Status = models.DirectoryEmpty
	}
	r.FetchedAt = time.Now()
	return r
}

// fallbackResult tags a listing served from the retained copy.
func fallbackResult(r models.DirectoryResult, n int, age time.Duration) models.DirectoryResult {
	r.Status = models.DirectoryOk
	if n == 0 {
		r.Status = models.DirectoryEmpty
	}
	r.Fallback = true
	r.FetchedAt = time.Now().Add(-age)
	return r
}
