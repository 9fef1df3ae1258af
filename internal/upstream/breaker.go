// Paceboard - CRM Activity Mirror and Productivity Leaderboard
// Copyright 2026 Paceboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/paceboard/paceboard

package upstream

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/paceboard/paceboard/internal/logging"
	"github.com/paceboard/paceboard/internal/metrics"
	"github.com/paceboard/paceboard/internal/models"
	"github.com/paceboard/paceboard/internal/models/crm"
)

// BreakerClient wraps Client with a circuit breaker so a dead or
// misbehaving upstream fails fast instead of queueing callers behind
// the admission budget.
//
// A 429 is deliberately NOT a breaker failure: the upstream is alive
// and enforcing its limits, and ErrRateLimited already carries its own
// cooldown. Only transport errors and non-2xx responses count.
//
// The breaker uses real time for its interval and timeout windows.
// Unit tests exercise the wrapped Client directly.
type BreakerClient struct {
	client *Client
	cb     *gobreaker.CircuitBreaker[interface{}]
	name   string
}

// NewBreakerClient wraps the given client. Breaker configuration:
// max 3 requests in half-open state, 1 minute measurement window,
// 2 minute recovery timeout, opens at a 60% failure rate with at least
// 10 observed requests.
func NewBreakerClient(client *Client) *BreakerClient {
	cbName := "crm-api"

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= 0.6
			if shouldTrip {
				logging.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("[CIRCUIT BREAKER] Opening circuit")
			}
			return shouldTrip
		},

		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrRateLimited)
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)
			logging.Info().Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &BreakerClient{client: client, cb: cb, name: cbName}
}

// execute wraps a CRM call with circuit breaker protection.
func (bc *BreakerClient) execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := bc.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(bc.name, "rejected").Inc()
			logging.Warn().Err(err).Msg("[CIRCUIT BREAKER] Request rejected")
		} else {
			metrics.CircuitBreakerRequests.WithLabelValues(bc.name, "failure").Inc()
		}
		return nil, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(bc.name, "success").Inc()
	return result, nil
}

// castSlice type-asserts the breaker's interface{} result back to a
// typed slice.
func castSlice[T any](result interface{}, err error) ([]T, error) {
	if err != nil {
		return nil, err
	}
	typed, ok := result.([]T)
	if !ok {
		return nil, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// ListSubjects fetches the subject directory with breaker protection.
func (bc *BreakerClient) ListSubjects(ctx context.Context) ([]models.Subject, error) {
	return castSlice[models.Subject](bc.execute(func() (interface{}, error) {
		return bc.client.ListSubjects(ctx)
	}))
}

// ListGroups fetches the group directory with breaker protection.
func (bc *BreakerClient) ListGroups(ctx context.Context) ([]models.Group, error) {
	return castSlice[models.Group](bc.execute(func() (interface{}, error) {
		return bc.client.ListGroups(ctx)
	}))
}

// ActivityReport fetches a tracked-time report with breaker protection.
func (bc *BreakerClient) ActivityReport(ctx context.Context, start, end, subjectID string) ([]crm.ActivityRecord, error) {
	return castSlice[crm.ActivityRecord](bc.execute(func() (interface{}, error) {
		return bc.client.ActivityReport(ctx, start, end, subjectID)
	}))
}

// ListDeals fetches the deal mirror feed with breaker protection.
func (bc *BreakerClient) ListDeals(ctx context.Context, since time.Time) ([]models.Deal, error) {
	return castSlice[models.Deal](bc.execute(func() (interface{}, error) {
		return bc.client.ListDeals(ctx, since)
	}))
}

// ListMessages fetches the message feed with breaker protection.
func (bc *BreakerClient) ListMessages(ctx context.Context, since time.Time) ([]models.Message, error) {
	return castSlice[models.Message](bc.execute(func() (interface{}, error) {
		return bc.client.ListMessages(ctx, since)
	}))
}

// TimeEntries calls the legacy time entry endpoint with breaker
// protection.
func (bc *BreakerClient) TimeEntries(ctx context.Context, subjectID, from, to string) ([]crm.TimeEntry, error) {
	return castSlice[crm.TimeEntry](bc.execute(func() (interface{}, error) {
		return bc.client.TimeEntries(ctx, subjectID, from, to)
	}))
}
