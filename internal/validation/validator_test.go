// Paceboard - CRM Activity Mirror and Productivity Leaderboard
// Copyright 2026 Paceboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/paceboard/paceboard

package validation

import (
	"strings"
	"testing"
)

type sampleRequest struct {
	Subjects []string `validate:"min=1"`
	Start    string   `validate:"required,datetime=2006-01-02"`
	End      string   `validate:"omitempty,datetime=2006-01-02"`
}

func TestValidateStructPasses(t *testing.T) {
	t.Parallel()

	err := ValidateStruct(&sampleRequest{
		Subjects: []string{"s1"},
		Start:    "2026-03-01",
	})
	if err != nil {
		t.Fatalf("ValidateStruct: %v", err)
	}
}

func TestValidateStructReportsFields(t *testing.T) {
	t.Parallel()

	err := ValidateStruct(&sampleRequest{Start: "not-a-date"})
	if err == nil {
		t.Fatal("expected validation errors")
	}
	if len(err.Errors()) != 2 {
		t.Fatalf("errors = %d, want 2: %v", len(err.Errors()), err)
	}

	apiErr := err.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("Code = %s, want VALIDATION_ERROR", apiErr.Code)
	}
	if !strings.Contains(apiErr.Message, "Start") {
		t.Errorf("message %q does not mention the failing field", apiErr.Message)
	}
}

func TestValidatorSingleton(t *testing.T) {
	t.Parallel()

	if GetValidator() != GetValidator() {
		t.Error("GetValidator returned different instances")
	}
}
