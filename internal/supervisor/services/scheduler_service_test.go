// Paceboard - CRM Activity Mirror and Productivity Leaderboard
// Copyright 2026 Paceboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/paceboard/paceboard

package services

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeManager struct {
	startFunc func(ctx context.Context) error
	stopFunc  func() error

	startCalls int
	stopCalls  int
}

func (f *fakeManager) Start(ctx context.Context) error {
	f.startCalls++
	if f.startFunc != nil {
		return f.startFunc(ctx)
	}
	return nil
}

func (f *fakeManager) Stop() error {
	f.stopCalls++
	if f.stopFunc != nil {
		return f.stopFunc()
	}
	return nil
}

func TestSchedulerServiceLifecycle(t *testing.T) {
	t.Parallel()

	mgr := &fakeManager{}
	svc := NewSchedulerService(mgr)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	// Give Serve a moment to start before canceling.
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}

	if mgr.startCalls != 1 {
		t.Errorf("expected 1 Start call, got %d", mgr.startCalls)
	}
	if mgr.stopCalls != 1 {
		t.Errorf("expected 1 Stop call, got %d", mgr.stopCalls)
	}
}

func TestSchedulerServiceStartFailure(t *testing.T) {
	t.Parallel()

	startErr := errors.New("roster fetch failed")
	mgr := &fakeManager{
		startFunc: func(ctx context.Context) error { return startErr },
	}
	svc := NewSchedulerService(mgr)

	err := svc.Serve(context.Background())
	if !errors.Is(err, startErr) {
		t.Errorf("expected start error to propagate, got %v", err)
	}
	if mgr.stopCalls != 0 {
		t.Errorf("Stop must not be called when Start fails, got %d calls", mgr.stopCalls)
	}
}

func TestSchedulerServiceStopFailure(t *testing.T) {
	t.Parallel()

	stopErr := errors.New("drain timed out")
	mgr := &fakeManager{
		stopFunc: func() error { return stopErr },
	}
	svc := NewSchedulerService(mgr)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := svc.Serve(ctx)
	if !errors.Is(err, stopErr) {
		t.Errorf("expected stop error to propagate, got %v", err)
	}
}

func TestSchedulerServiceString(t *testing.T) {
	t.Parallel()

	svc := NewSchedulerService(&fakeManager{})
	if svc.String() != "sync-scheduler" {
		t.Errorf("unexpected service name %q", svc.String())
	}
}
