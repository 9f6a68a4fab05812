// LogVigil - Real-Time Security Log Threat Detection
// Copyright 2026 LogVigil Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logvigil/logvigil

package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/logvigil/logvigil/internal/ingest"
	"github.com/logvigil/logvigil/internal/logging"
	"github.com/logvigil/logvigil/internal/metrics"
	"github.com/logvigil/logvigil/internal/models"
	"github.com/logvigil/logvigil/internal/pipeline"
)

// Submitter accepts log records for analysis. Satisfied by
// *pipeline.Coordinator.
type Submitter interface {
	Submit(record *models.LogRecord) error
}

// IngestService runs an ingestion source under supervision and feeds
// every emitted record into the pipeline. Records that arrive while
// the intake queue is saturated are dropped with a warning; the source
// keeps running.
type IngestService struct {
	source    ingest.Source
	submitter Submitter
	name      string
}

// NewIngestService creates a supervised wrapper around an ingestion source.
func NewIngestService(source ingest.Source, submitter Submitter) *IngestService {
	return &IngestService{
		source:    source,
		submitter: submitter,
		name:      "ingest-" + source.Name(),
	}
}

// Serve implements suture.Service.
func (s *IngestService) Serve(ctx context.Context) error {
	err := s.source.Run(ctx, func(record *models.LogRecord) {
		if err := s.submitter.Submit(record); err != nil {
			if errors.Is(err, pipeline.ErrQueueFull) {
				metrics.RecordDroppedRecord(s.source.Name())
				logging.Warn().
					Str("source", s.source.Name()).
					Str("log_id", record.ID).
					Msg("Intake queue full, dropping record")
				return
			}
			logging.Debug().
				Err(err).
				Str("source", s.source.Name()).
				Msg("Record not accepted")
		}
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("ingest source %s failed: %w", s.source.Name(), err)
	}
	return ctx.Err()
}

// String implements fmt.Stringer.
func (s *IngestService) String() string {
	return s.name
}
