// Paceboard - CRM Activity Mirror and Productivity Leaderboard
// Copyright 2026 Paceboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/paceboard/paceboard

package upstream

import (
	"errors"
	"fmt"
)

// ErrRateLimited is returned after the upstream answers HTTP 429 and
// the cooldown has been served. The request is not retried; the caller
// decides whether to fall back, skip, or surface the error.
var ErrRateLimited = errors.New("upstream rate limited")

// UpstreamError is any non-2xx, non-429 upstream response. Body holds
// up to 64KB of the response for diagnostics.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned status %d: %s", e.Status, e.Body)
}

// IsRateLimited reports whether err is (or wraps) ErrRateLimited.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}
