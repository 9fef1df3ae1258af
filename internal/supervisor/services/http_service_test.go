// Paceboard - CRM Activity Mirror and Productivity Leaderboard
// Copyright 2026 Paceboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/paceboard/paceboard

package services

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

type fakeHTTPServer struct {
	listenFunc   func() error
	shutdownFunc func(ctx context.Context) error

	shutdownCalls int
}

func (f *fakeHTTPServer) ListenAndServe() error {
	if f.listenFunc != nil {
		return f.listenFunc()
	}
	return http.ErrServerClosed
}

func (f *fakeHTTPServer) Shutdown(ctx context.Context) error {
	f.shutdownCalls++
	if f.shutdownFunc != nil {
		return f.shutdownFunc(ctx)
	}
	return nil
}

func TestHTTPServerServiceGracefulShutdown(t *testing.T) {
	t.Parallel()

	blockUntilShutdown := make(chan struct{})
	srv := &fakeHTTPServer{
		listenFunc: func() error {
			<-blockUntilShutdown
			return http.ErrServerClosed
		},
		shutdownFunc: func(ctx context.Context) error {
			close(blockUntilShutdown)
			return nil
		},
	}
	svc := NewHTTPServerService(srv, time.Second)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

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

	if srv.shutdownCalls != 1 {
		t.Errorf("expected 1 Shutdown call, got %d", srv.shutdownCalls)
	}
}

func TestHTTPServerServiceListenFailure(t *testing.T) {
	t.Parallel()

	listenErr := errors.New("address already in use")
	srv := &fakeHTTPServer{
		listenFunc: func() error { return listenErr },
	}
	svc := NewHTTPServerService(srv, time.Second)

	err := svc.Serve(context.Background())
	if !errors.Is(err, listenErr) {
		t.Errorf("expected listen error to propagate, got %v", err)
	}
	if srv.shutdownCalls != 0 {
		t.Errorf("Shutdown must not be called after a listen failure, got %d calls", srv.shutdownCalls)
	}
}

func TestHTTPServerServiceDefaultTimeout(t *testing.T) {
	t.Parallel()

	svc := NewHTTPServerService(&fakeHTTPServer{}, 0)
	if svc.shutdownTimeout != 10*time.Second {
		t.Errorf("expected 10s default shutdown timeout, got %v", svc.shutdownTimeout)
	}
}
