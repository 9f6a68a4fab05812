// LogVigil - Real-Time Security Log Threat Detection
// Copyright 2026 LogVigil Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logvigil/logvigil

package models

import (
	"time"
)

// APIResponse is the standardized wrapper used by all HTTP endpoints.
//
// Status field values:
//   - "success": request completed, see Data
//   - "error": request failed, see Error
//
// Example error response:
//
//	{
//	  "status": "error",
//	  "error": {
//	    "code": "VALIDATION_ERROR",
//	    "message": "log_entry must not be empty"
//	  },
//	  "metadata": {"timestamp": "2026-08-30T12:00:00Z"}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata for observability.
// QueryTimeMS is the handler-side execution time in milliseconds.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
}

// APIError is the structured error payload for failed requests.
//
// Common error codes:
//   - VALIDATION_ERROR: invalid input
//   - NOT_FOUND: resource doesn't exist
//   - SERVICE_UNAVAILABLE: dependency unavailable
//   - STORE_ERROR: alert store failure
//   - RATE_LIMIT_EXCEEDED: too many requests
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// HealthStatus is the payload for GET /api/v1/health.
//
// Status is "healthy" when the process and its store are up; it stays
// "healthy" even while monitoring is stopped, because a stopped pipeline
// is an operator choice, not a failure. MonitoringActive distinguishes
// the two.
type HealthStatus struct {
	Status           string  `json:"status"`
	Version          string  `json:"version"`
	MonitoringActive bool    `json:"monitoring_active"`
	ScorerReady      bool    `json:"scorer_ready"`
	StoreConnected   bool    `json:"store_connected"`
	ActiveSessions   int     `json:"active_sessions"`
	Uptime           float64 `json:"uptime_seconds"`
}

// PipelineStats is the payload for GET /api/v1/stats.
type PipelineStats struct {
	MonitoringActive    bool             `json:"monitoring_active"`
	RecordsProcessed    uint64           `json:"records_processed"`
	ThreatsDetected     uint64           `json:"threats_detected"`
	DegradedResults     uint64           `json:"degraded_results"`
	PersistenceFailures uint64           `json:"persistence_failures"`
	AlertsBySeverity    map[string]int64 `json:"alerts_by_severity,omitempty"`
	AvgInferenceMS      float64          `json:"avg_inference_ms"`
	ActiveSessions      int              `json:"active_sessions"`
	DroppedEvents       int64            `json:"dropped_events"`
	UptimeSeconds       float64          `json:"uptime_seconds"`
}

// MonitoringStatus is the payload for monitoring start/stop/status endpoints.
type MonitoringStatus struct {
	State   string `json:"state"`
	Run     uint64 `json:"run"`
	Message string `json:"message,omitempty"`
}
