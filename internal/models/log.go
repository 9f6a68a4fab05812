// LogVigil - Real-Time Security Log Threat Detection
// Copyright 2026 LogVigil Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logvigil/logvigil

package models

import (
	"time"

	"github.com/google/uuid"
)

// LogRecord represents a single security log entry flowing through the
// detection pipeline. Records arrive from an ingestion source (synthetic
// feed or NATS), are scored for threats, and are broadcast to subscribers
// as live_log events.
//
// Fields Method, StatusCode and ResponseTimeMS are optional HTTP metadata;
// they are zero for non-HTTP log lines (SSH, application, firewall logs).
type LogRecord struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	Content        string    `json:"content"`
	SourceIP       string    `json:"source_ip,omitempty"`
	UserAgent      string    `json:"user_agent,omitempty"`
	Method         string    `json:"method,omitempty"`
	StatusCode     int       `json:"status_code,omitempty"`
	ResponseTimeMS float64   `json:"response_time_ms,omitempty"`
}

// NewLogRecord creates a LogRecord with a generated ID and current timestamp.
func NewLogRecord(content, sourceIP string) *LogRecord {
	return &LogRecord{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Content:   content,
		SourceIP:  sourceIP,
	}
}

// Valid reports whether the record carries enough data to be processed.
// Records with empty content are dropped by the pipeline.
func (r *LogRecord) Valid() bool {
	return r != nil && r.Content != ""
}
