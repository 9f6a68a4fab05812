// LogVigil - Real-Time Security Log Threat Detection
// Copyright 2026 LogVigil Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logvigil/logvigil

package services

import (
	"context"
	"fmt"
)

// PipelineRunner is the coordinator's blocking worker loop.
type PipelineRunner interface {
	Serve(ctx context.Context) error
}

// PipelineService runs the pipeline coordinator's worker loop under
// supervision. The loop drains the submit queue; a restart after a
// panic picks the queue back up without losing buffered records.
type PipelineService struct {
	coordinator PipelineRunner
	name        string
}

// NewPipelineService creates a supervised wrapper around the pipeline worker.
func NewPipelineService(coordinator PipelineRunner) *PipelineService {
	return &PipelineService{
		coordinator: coordinator,
		name:        "pipeline-worker",
	}
}

// Serve implements suture.Service.
func (s *PipelineService) Serve(ctx context.Context) error {
	if err := s.coordinator.Serve(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("pipeline worker failed: %w", err)
	}
	return ctx.Err()
}

// String implements fmt.Stringer.
func (s *PipelineService) String() string {
	return s.name
}
