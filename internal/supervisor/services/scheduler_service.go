// Paceboard - CRM Activity Mirror and Productivity Leaderboard
// Copyright 2026 Paceboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/paceboard/paceboard

package services

import (
	"context"
	"fmt"
)

// StartStopManager is the lifecycle the sync scheduler exposes.
// Satisfied by *sync.Manager.
type StartStopManager interface {
	Start(ctx context.Context) error
	Stop() error
}

// SchedulerService wraps the sync scheduler as a supervised service,
// adapting its Start/Stop lifecycle to suture's Serve pattern: start,
// block on the context, stop. The manager owns its goroutines via a
// WaitGroup, so Stop blocks until they drain.
type SchedulerService struct {
	manager StartStopManager
	name    string
}

// NewSchedulerService creates the scheduler service wrapper.
func NewSchedulerService(manager StartStopManager) *SchedulerService {
	return &SchedulerService{
		manager: manager,
		name:    "sync-scheduler",
	}
}

// Serve implements suture.Service. A Start failure is returned
// immediately so suture restarts the service under its backoff policy.
func (s *SchedulerService) Serve(ctx context.Context) error {
	if err := s.manager.Start(ctx); err != nil {
		return fmt.Errorf("sync scheduler start failed: %w", err)
	}

	<-ctx.Done()

	if err := s.manager.Stop(); err != nil {
		return fmt.Errorf("sync scheduler stop failed: %w", err)
	}

	return ctx.Err()
}

// String identifies the service in supervision logs.
func (s *SchedulerService) String() string {
	return s.name
}
