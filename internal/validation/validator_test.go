// LogVigil - Real-Time Security Log Threat Detection
// Copyright 2026 LogVigil Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logvigil/logvigil

package validation

import (
	"strings"
	"testing"
)

type analyzeRequest struct {
	LogEntry string `validate:"required,max=1024"`
	SourceIP string `validate:"omitempty,ip"`
}

type pageRequest struct {
	Limit  int `validate:"min=1,max=100"`
	Offset int `validate:"min=0"`
}

func TestValidateStructPasses(t *testing.T) {
	req := analyzeRequest{LogEntry: "failed login attempt for user admin", SourceIP: "10.0.0.1"}
	if err := ValidateStruct(&req); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
}

func TestValidateStructRequired(t *testing.T) {
	req := analyzeRequest{}
	err := ValidateStruct(&req)
	if err == nil {
		t.Fatal("expected validation error for empty LogEntry")
	}

	apiErr := err.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("code = %q, want VALIDATION_ERROR", apiErr.Code)
	}
	if !strings.Contains(apiErr.Message, "LogEntry is required") {
		t.Errorf("message = %q, want mention of LogEntry", apiErr.Message)
	}
}

func TestValidateStructBadIP(t *testing.T) {
	req := analyzeRequest{LogEntry: "x", SourceIP: "not-an-ip"}
	err := ValidateStruct(&req)
	if err == nil {
		t.Fatal("expected validation error for bad IP")
	}
	if !strings.Contains(err.Error(), "SourceIP must be a valid IP address") {
		t.Errorf("error = %q, want IP message", err.Error())
	}
}

func TestValidateStructMinMaxMessages(t *testing.T) {
	req := pageRequest{Limit: 0, Offset: -1}
	err := ValidateStruct(&req)
	if err == nil {
		t.Fatal("expected validation errors")
	}

	if len(err.Errors()) != 2 {
		t.Fatalf("error count = %d, want 2", len(err.Errors()))
	}

	apiErr := err.ToAPIError()
	if apiErr.Details == nil {
		t.Fatal("expected details for multiple errors")
	}
	if !strings.Contains(apiErr.Message, "Limit must be at least 1") {
		t.Errorf("message = %q, want Limit min message", apiErr.Message)
	}
	if !strings.Contains(apiErr.Message, "Offset must be at least 0") {
		t.Errorf("message = %q, want Offset min message", apiErr.Message)
	}
}

func TestValidateStructStringMaxMessage(t *testing.T) {
	req := analyzeRequest{LogEntry: strings.Repeat("a", 2048)}
	err := ValidateStruct(&req)
	if err == nil {
		t.Fatal("expected validation error for oversized entry")
	}
	if !strings.Contains(err.Error(), "LogEntry must be at most 1024 characters") {
		t.Errorf("error = %q, want string max message", err.Error())
	}
}

func TestGetValidatorSingleton(t *testing.T) {
	if GetValidator() != GetValidator() {
		t.Error("GetValidator should return the same instance")
	}
}

func TestToAPIErrorSingleFieldDetails(t *testing.T) {
	req := pageRequest{Limit: 500, Offset: 0}
	err := ValidateStruct(&req)
	if err == nil {
		t.Fatal("expected validation error")
	}

	apiErr := err.ToAPIError()
	if apiErr.Details["field"] != "Limit" {
		t.Errorf("details.field = %v, want Limit", apiErr.Details["field"])
	}
	if apiErr.Details["tag"] != "max" {
		t.Errorf("details.tag = %v, want max", apiErr.Details["tag"])
	}
}
