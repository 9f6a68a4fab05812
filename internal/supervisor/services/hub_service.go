// LogVigil - Real-Time Security Log Threat Detection
// Copyright 2026 LogVigil Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logvigil/logvigil

package services

import (
	"context"
	"fmt"
)

// ContextRunner is the minimal interface the hub service needs: a
// blocking run loop that exits when the context is canceled.
type ContextRunner interface {
	RunWithContext(ctx context.Context) error
}

// HubService runs the broadcast hub under supervision.
type HubService struct {
	hub  ContextRunner
	name string
}

// NewHubService creates a supervised wrapper around the broadcast hub.
func NewHubService(hub ContextRunner) *HubService {
	return &HubService{
		hub:  hub,
		name: "broadcast-hub",
	}
}

// Serve implements suture.Service.
func (s *HubService) Serve(ctx context.Context) error {
	if err := s.hub.RunWithContext(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("broadcast hub failed: %w", err)
	}
	return ctx.Err()
}

// String implements fmt.Stringer.
func (s *HubService) String() string {
	return s.name
}
