// Paceboard - CRM Activity Mirror and Productivity Leaderboard
// Copyright 2026 Paceboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/paceboard/paceboard

/*
manager.go - Sync Manager Lifecycle and Orchestration

This file contains the core sync manager struct, initialization, and
lifecycle methods for keeping the local mirror current against the
upstream CRM.

Manager Components:
  - Store: DuckDB operations for buckets and mirrored deals/messages
  - BucketSyncer: day-bucket cache sync surface
  - DirectoryProvider: subject roster, with rate-limit fallback
  - MirrorSource: incremental deal and message listings

Lifecycle Methods:
  - NewManager(): Initialize manager with configuration and dependencies
  - Start(): Begin the recurring pass and, if configured, the backfill
  - Stop(): Gracefully shut down and wait for in-flight passes
  - TriggerSync(): Request an immediate recurring pass
  - TriggerBackfill(): Start a historical backfill run
  - Status(): Current readiness, progress and last-sync information

Thread Safety:
  - mu: Protects shared state (running, ready, lastSync, roster, run)
  - backfillMu: At most one backfill runs at a time
  - All goroutines use WaitGroup for coordinated shutdown
*/

//nolint:staticcheck // File documentation, not package doc
package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/paceboard/paceboard/internal/config"
	"github.com/paceboard/paceboard/internal/logging"
	"github.com/paceboard/paceboard/internal/models"
)

// Store defines the database operations the scheduler needs.
type Store interface {
	MissingSubjectsForDay(ctx context.Context, subjectIDs []string, day time.Time) ([]string, error)
	UpsertDeals(ctx context.Context, deals []models.Deal) error
	UpsertMessages(ctx context.Context, messages []models.Message) error
	CleanupLegacyBuckets(ctx context.Context) (int, error)
}

// BucketSyncer is the day-bucket cache's sync surface.
type BucketSyncer interface {
	SyncDay(ctx context.Context, subjectIDs []string, day time.Time) error
}

// DirectoryProvider serves the subject roster, possibly from the
// rate-limit fallback cache.
type DirectoryProvider interface {
	Subjects(ctx context.Context) (models.DirectoryResult, error)
}

// MirrorSource lists deals and messages changed since a watermark.
type MirrorSource interface {
	ListDeals(ctx context.Context, since time.Time) ([]models.Deal, error)
	ListMessages(ctx context.Context, since time.Time) ([]models.Message, error)
}

// Manager orchestrates the recurring sync pass and the historical
// backfill.
type Manager struct {
	store     Store
	buckets   BucketSyncer
	directory DirectoryProvider
	mirror    MirrorSource
	cfg       config.SyncConfig
	loc       *time.Location

	mu             sync.RWMutex
	running        bool
	ready          bool
	lastSync       time.Time
	mirrorSince    time.Time
	subjects       []models.Subject
	backfillRun    *models.SyncRun
	backfillActive bool

	backfillMu  sync.Mutex
	stopChan    chan struct{}
	triggerChan chan struct{}
	wg          sync.WaitGroup

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	log   zerolog.Logger
}

// NewManager creates a sync manager.
func NewManager(store Store, buckets BucketSyncer, directory DirectoryProvider, mirror MirrorSource, cfg config.SyncConfig, loc *time.Location) *Manager {
	logging.Info().
		Dur("interval", cfg.Interval).
		Int("backfill_days", cfg.BackfillDays).
		Dur("inter_day_delay", cfg.InterDayDelay).
		Bool("backfill_on_start", cfg.BackfillOnStart).
		Msg("Sync manager config loaded")

	return &Manager{
		store:       store,
		buckets:     buckets,
		directory:   directory,
		mirror:      mirror,
		cfg:         cfg,
		loc:         loc,
		stopChan:    make(chan struct{}),
		triggerChan: make(chan struct{}, 1),
		now:         time.Now,
		sleep:       sleepContext,
		log:         logging.With().Str("component", "sync").Logger(),
	}
}

// Start begins the recurring pass and, when configured, kicks off the
// historical backfill in the background.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("sync manager is already running")
	}
	m.running = true
	m.mu.Unlock()

	m.log.Info().Msg("Starting sync manager...")

	m.wg.Add(1)
	go m.recurringLoop(ctx)

	if m.cfg.BackfillOnStart {
		if _, err := m.startBackfill(ctx); err != nil {
			m.log.Warn().Err(err).Msg("Historical backfill not started")
		}
	}

	return nil
}

// Stop gracefully stops the scheduler and waits for in-flight passes.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return fmt.Errorf("sync manager is not running")
	}
	m.running = false
	m.mu.Unlock()

	m.log.Info().Msg("Stopping sync manager...")
	close(m.stopChan)
	m.wg.Wait()
	m.log.Info().Msg("Sync manager stopped")
	return nil
}

// TriggerSync requests an immediate recurring pass. The request is
// coalesced: if a trigger is already pending, this one folds into it.
func (m *Manager) TriggerSync() {
	select {
	case m.triggerChan <- struct{}{}:
	default:
	}
}

// Status reports readiness, last sync time and backfill progress.
func (m *Manager) Status() models.SyncStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := models.SyncStatus{
		IsRunning:    m.backfillActive,
		Ready:        m.ready,
		LastSyncTime: m.lastSync,
	}
	if m.backfillRun != nil {
		run := *m.backfillRun
		run.Errors = append([]models.UnitError(nil), m.backfillRun.Errors...)
		status.HistoricalProgress = &run
	}
	return status
}

// Ready reports whether at least one recurring pass has fully
// succeeded since startup.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ready
}

// LastSyncTime returns the start time of the last fully successful
// recurring pass.
func (m *Manager) LastSyncTime() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastSync
}

// roster returns the most recent subject roster, refreshing it from the
// directory when empty.
func (m *Manager) roster(ctx context.Context) ([]models.Subject, error) {
	m.mu.RLock()
	cached := m.subjects
	m.mu.RUnlock()
	if len(cached) > 0 {
		return cached, nil
	}
	return m.refreshRoster(ctx)
}

// refreshRoster fetches the subject directory and caches the active,
// tracking-enabled subjects.
func (m *Manager) refreshRoster(ctx context.Context) ([]models.Subject, error) {
	result, err := m.directory.Subjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subject directory: %w", err)
	}

	tracked := make([]models.Subject, 0, len(result.Subjects))
	for _, s := range result.Subjects {
		if s.Active && s.Tracking {
			tracked = append(tracked, s)
		}
	}

	m.mu.Lock()
	m.subjects = tracked
	m.mu.Unlock()

	m.log.Debug().
		Int("subjects", len(tracked)).
		Bool("fallback", result.Fallback).
		Msg("subject roster refreshed")
	return tracked, nil
}

func subjectIDs(subjects []models.Subject) []string {
	ids := make([]string, len(subjects))
	for i, s := range subjects {
		ids[i] = s.ID
	}
	return ids
}

// sleepContext sleeps for d unless the context is cancelled first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
