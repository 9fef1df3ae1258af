// Paceboard - CRM Activity Mirror and Productivity Leaderboard
// Copyright 2026 Paceboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/paceboard/paceboard

package upstream

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestBudgetConcurrencyCap(t *testing.T) {
	t.Parallel()

	b := NewBudget(2, 0)
	ctx := context.Background()

	if err := b.Acquire(ctx); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if err := b.Acquire(ctx); err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if got := b.InFlight(); got != 2 {
		t.Errorf("InFlight = %d, want 2", got)
	}

	// Third admission must block until a slot frees.
	blocked, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if err := b.Acquire(blocked); err == nil {
		t.Fatal("third acquire should block while two requests are in flight")
	}

	b.Release()
	if err := b.Acquire(ctx); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}

	b.Release()
	b.Release()
}

func TestBudgetNeverExceedsCapUnderLoad(t *testing.T) {
	t.Parallel()

	b := NewBudget(2, 0)
	ctx := context.Background()

	var inFlight, maxSeen int64
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := b.Acquire(ctx); err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			n := atomic.AddInt64(&inFlight, 1)
			for {
				prev := atomic.LoadInt64(&maxSeen)
				if n <= prev || atomic.CompareAndSwapInt64(&maxSeen, prev, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt64(&inFlight, -1)
			b.Release()
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt64(&maxSeen); got > 2 {
		t.Errorf("observed %d concurrent admissions, cap is 2", got)
	}
}

func TestBudgetSpacing(t *testing.T) {
	t.Parallel()

	spacing := 60 * time.Millisecond
	b := NewBudget(1, spacing)
	ctx := context.Background()

	if err := b.Acquire(ctx); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	first := b.LastAdmitted()
	b.Release()

	if err := b.Acquire(ctx); err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	second := b.LastAdmitted()
	b.Release()

	if gap := second.Sub(first); gap < spacing-5*time.Millisecond {
		t.Errorf("request starts %v apart, want >= %v", gap, spacing)
	}
}

func TestBudgetAcquireCancelled(t *testing.T) {
	t.Parallel()

	b := NewBudget(1, 0)
	if err := b.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.Acquire(ctx); err == nil {
		t.Fatal("acquire with cancelled context should fail")
	}

	b.Release()
}

func TestFixedCooldownServesDelay(t *testing.T) {
	t.Parallel()

	var slept time.Duration
	policy := newFixedCooldownWithSleep(10*time.Second, func(_ context.Context, d time.Duration) error {
		slept = d
		return nil
	})

	if err := policy.OnRateLimited(context.Background()); err != nil {
		t.Fatalf("OnRateLimited: %v", err)
	}
	if slept != 10*time.Second {
		t.Errorf("slept %v, want 10s", slept)
	}
}

func TestFixedCooldownZeroDelaySkipsSleep(t *testing.T) {
	t.Parallel()

	policy := newFixedCooldownWithSleep(0, func(_ context.Context, _ time.Duration) error {
		t.Error("sleep should not be called for zero delay")
		return nil
	})
	if err := policy.OnRateLimited(context.Background()); err != nil {
		t.Fatalf("OnRateLimited: %v", err)
	}
}

func TestSleepContextCancellable(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepContext(ctx, time.Minute); err == nil {
		t.Fatal("sleepContext should return the context error when cancelled")
	}
}
