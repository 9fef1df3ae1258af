// Paceboard - CRM Activity Mirror and Productivity Leaderboard
// Copyright 2026 Paceboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/paceboard/paceboard

package upstream

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/paceboard/paceboard/internal/metrics"
)

// Budget owns the gateway's admission state: how many requests may be
// in flight and how far apart request starts must be. Every component
// that talks to the CRM shares one Budget instance; nothing here is a
// package-level global, so tests construct throwaway budgets freely.
//
// Admission blocks until both conditions hold:
//   - fewer than MaxConcurrent requests are in flight
//   - at least MinSpacing has elapsed since the last admitted request
type Budget struct {
	sem     chan struct{}
	limiter *rate.Limiter

	mu          sync.Mutex
	lastAdmitted time.Time

	now func() time.Time
}

// NewBudget creates a Budget admitting at most maxConcurrent in-flight
// requests with at least minSpacing between request starts.
func NewBudget(maxConcurrent int, minSpacing time.Duration) *Budget {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if minSpacing > 0 {
		lim = rate.NewLimiter(rate.Every(minSpacing), 1)
	}
	return &Budget{
		sem:     make(chan struct{}, maxConcurrent),
		limiter: lim,
		now:     time.Now,
	}
}

// Acquire blocks until the request is admitted or ctx is done. Every
// successful Acquire must be paired with a Release.
func (b *Budget) Acquire(ctx context.Context) error {
	start := b.now()

	select {
	case b.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := b.limiter.Wait(ctx); err != nil {
		<-b.sem
		return err
	}

	b.mu.Lock()
	b.lastAdmitted = b.now()
	b.mu.Unlock()

	metrics.GatewayAdmissionWait.Observe(b.now().Sub(start).Seconds())
	metrics.GatewayInFlight.Inc()
	return nil
}

// Release frees the in-flight slot taken by Acquire.
func (b *Budget) Release() {
	<-b.sem
	metrics.GatewayInFlight.Dec()
}

// LastAdmitted returns the time the most recent request was admitted.
func (b *Budget) LastAdmitted() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastAdmitted
}

// InFlight returns the number of currently admitted requests.
func (b *Budget) InFlight() int {
	return len(b.sem)
}

// BackoffPolicy decides how the gateway behaves after an upstream 429.
// The policy only waits; it never retries.
type BackoffPolicy interface {
	// OnRateLimited blocks for the policy's cooldown, or returns early
	// with ctx.Err() when the context is cancelled.
	OnRateLimited(ctx context.Context) error
}

// FixedCooldown waits a fixed duration after every 429. The sleep
// function is a seam so tests never wait on the wall clock.
type FixedCooldown struct {
	Delay time.Duration
	sleep func(ctx context.Context, d time.Duration) error
}

// NewFixedCooldown creates the production policy with a real timer.
func NewFixedCooldown(delay time.Duration) *FixedCooldown {
	return &FixedCooldown{Delay: delay, sleep: sleepContext}
}

// newFixedCooldownWithSleep is the test seam.
func newFixedCooldownWithSleep(delay time.Duration, sleep func(context.Context, time.Duration) error) *FixedCooldown {
	return &FixedCooldown{Delay: delay, sleep: sleep}
}

// OnRateLimited serves the fixed cooldown.
func (f *FixedCooldown) OnRateLimited(ctx context.Context) error {
	if f.Delay <= 0 {
		return nil
	}
	return f.sleep(ctx, f.Delay)
}

// sleepContext is a cancellable time.Sleep.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
