// Paceboard - CRM Activity Mirror and Productivity Leaderboard
// Copyright 2026 Paceboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/paceboard/paceboard

package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/paceboard/paceboard/internal/metrics"
	"github.com/paceboard/paceboard/internal/models"
)

// recurringLoop runs the periodic sync pass. A manual trigger runs a
// pass immediately without resetting the ticker.
func (m *Manager) recurringLoop(ctx context.Context) {
	defer m.wg.Done()

	// First pass right away so readiness does not wait a full interval.
	m.runRecurringPass(ctx)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopChan:
			return
		case <-ticker.C:
			m.runRecurringPass(ctx)
		case <-m.triggerChan:
			m.runRecurringPass(ctx)
		}
	}
}

// runRecurringPass executes the fixed step sequence. Steps are
// isolated: a failing or panicking step is logged and the pass moves
// on, so one misbehaving upstream surface cannot starve the others.
//
// The order is deliberate: both mirrors and the roster refresh before
// today's bucket, so a pass that completes leaves the leaderboard
// inputs mutually consistent.
func (m *Manager) runRecurringPass(ctx context.Context) {
	passStart := m.now()

	steps := []struct {
		name string
		run  func(context.Context) error
	}{
		{"deal_mirror", m.syncDealMirror},
		{"message_mirror", m.syncMessageMirror},
		{"subject_directory", m.syncSubjectDirectory},
		{"today_bucket", m.syncTodayBucket},
	}

	failed := 0
	for _, step := range steps {
		if ctx.Err() != nil {
			return
		}
		if err := m.runStep(ctx, step.name, step.run); err != nil {
			failed++
			m.log.Error().Err(err).Str("step", step.name).Msg("Sync step failed")
			metrics.SyncErrors.WithLabelValues("recurring", errorType(err)).Inc()
		}
	}

	var passErr error
	if failed > 0 {
		passErr = fmt.Errorf("%d of %d sync steps failed", failed, len(steps))
	}
	metrics.RecordSyncPass("recurring", m.now().Sub(passStart), len(steps)-failed, passErr)

	if failed == 0 {
		m.mu.Lock()
		m.lastSync = passStart
		m.mirrorSince = passStart
		m.ready = true
		m.mu.Unlock()
		m.log.Info().Dur("duration", m.now().Sub(passStart)).Msg("Sync pass completed")
	} else {
		m.log.Warn().Int("failed_steps", failed).Msg("Sync pass completed with errors")
	}
}

// runStep executes one step with panic isolation.
func (m *Manager) runStep(ctx context.Context, name string, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("step %s panicked: %v", name, r)
		}
	}()
	return fn(ctx)
}

// mirrorWatermark returns the change cursor for the mirror listings.
// Before the first successful pass it reaches back over the whole
// backfill window so the mirrors start complete.
func (m *Manager) mirrorWatermark() time.Time {
	m.mu.RLock()
	since := m.mirrorSince
	m.mu.RUnlock()
	if since.IsZero() {
		return m.now().AddDate(0, 0, -m.cfg.BackfillDays)
	}
	return since
}

func (m *Manager) syncDealMirror(ctx context.Context) error {
	deals, err := m.mirror.ListDeals(ctx, m.mirrorWatermark())
	if err != nil {
		return fmt.Errorf("failed to list deals: %w", err)
	}
	if err := m.store.UpsertDeals(ctx, deals); err != nil {
		return err
	}
	m.log.Debug().Int("deals", len(deals)).Msg("deal mirror updated")
	return nil
}

func (m *Manager) syncMessageMirror(ctx context.Context) error {
	messages, err := m.mirror.ListMessages(ctx, m.mirrorWatermark())
	if err != nil {
		return fmt.Errorf("failed to list messages: %w", err)
	}
	if err := m.store.UpsertMessages(ctx, messages); err != nil {
		return err
	}
	m.log.Debug().Int("messages", len(messages)).Msg("message mirror updated")
	return nil
}

func (m *Manager) syncSubjectDirectory(ctx context.Context) error {
	_, err := m.refreshRoster(ctx)
	return err
}

// syncTodayBucket refreshes today's tracked-time bucket for the whole
// roster. Today is the only day whose value legitimately moves between
// passes.
func (m *Manager) syncTodayBucket(ctx context.Context) error {
	subjects, err := m.roster(ctx)
	if err != nil {
		return err
	}
	if len(subjects) == 0 {
		m.log.Debug().Msg("no tracked subjects, skipping today's bucket")
		return nil
	}
	return m.buckets.SyncDay(ctx, subjectIDs(subjects), models.DayStart(m.now(), m.loc))
}
