// LogVigil - Real-Time Security Log Threat Detection
// Copyright 2026 LogVigil Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logvigil/logvigil

// Package ingest provides the log record sources feeding the pipeline:
// a synthetic feed for demos and load testing, and a NATS JetStream
// consumer for production log transport.
package ingest

import (
	"context"

	"github.com/logvigil/logvigil/internal/models"
)

// Source produces log records and hands them to emit until ctx is
// canceled. Run blocks; sources are driven by a supervised service.
// emit must not be called after Run returns.
type Source interface {
	Run(ctx context.Context, emit func(*models.LogRecord)) error
	Name() string
}
