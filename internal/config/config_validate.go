// Paceboard - CRM Activity Mirror and Productivity Leaderboard
// Copyright 2026 Paceboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/paceboard/paceboard

package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// getValidator returns the singleton validator instance.
func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks the configuration: struct-tag rules first, then the
// cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := getValidator().Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return c.validateTimezone()
}

// validateTimezone ensures the reference timezone resolves to a real
// IANA location. Everything day-granular depends on it.
func (c *Config) validateTimezone() error {
	if _, err := time.LoadLocation(c.Metrics.Timezone); err != nil {
		return fmt.Errorf("METRIC_TIMEZONE %q is not a valid IANA timezone: %w", c.Metrics.Timezone, err)
	}
	return nil
}

// Location returns the parsed reference timezone. Validate must have
// succeeded first; an unparseable zone falls back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Metrics.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
