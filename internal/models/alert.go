// LogVigil - Real-Time Security Log Threat Detection
// Copyright 2026 LogVigil Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logvigil/logvigil

package models

import (
	"strings"
	"time"
)

// ThreatAlert is the durable record produced when the pipeline detects a
// threat in a log record. Alerts are persisted to the alert store and
// broadcast to subscribers as threat_alert events.
//
// AlertID is assigned by the store on save; it is zero for alerts that
// were broadcast but not yet (or never) persisted.
type ThreatAlert struct {
	AlertID        uint64      `json:"alert_id,omitempty"`
	SourceLogID    string      `json:"source_log_id"`
	Timestamp      time.Time   `json:"timestamp"`
	ThreatType     string      `json:"threat_type"`
	Severity       ThreatLevel `json:"severity"`
	SourceIP       string      `json:"source_ip,omitempty"`
	Target         string      `json:"target,omitempty"`
	Description    string      `json:"description"`
	ThreatScore    float64     `json:"threat_score"`
	Confidence     float64     `json:"confidence"`
	ResponseTimeMS float64     `json:"response_time_ms"`
	Blocked        bool        `json:"blocked"`
	Acknowledged   bool        `json:"acknowledged"`
	AcknowledgedBy string      `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time  `json:"acknowledged_at,omitempty"`
	LogContent     string      `json:"log_content,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

// blockScoreThreshold is the score above which an alert is considered
// auto-blocked at the edge.
const blockScoreThreshold = 0.6

// NewThreatAlert builds an alert from a log record and its analysis.
// The caller is expected to persist and/or broadcast the result.
func NewThreatAlert(rec *LogRecord, analysis *AnalysisResult) *ThreatAlert {
	now := time.Now().UTC()
	return &ThreatAlert{
		SourceLogID:    rec.ID,
		Timestamp:      rec.Timestamp,
		ThreatType:     strings.Join(analysis.ThreatTypes, ", "),
		Severity:       analysis.ThreatLevel,
		SourceIP:       rec.SourceIP,
		Target:         "Application Server",
		Description:    "Detected " + strings.Join(analysis.ThreatTypes, ", ") + " in log entry",
		ThreatScore:    analysis.ThreatScore,
		Confidence:     analysis.Confidence,
		ResponseTimeMS: analysis.InferenceTimeMS,
		Blocked:        analysis.ThreatScore > blockScoreThreshold,
		LogContent:     rec.Content,
		CreatedAt:      now,
	}
}
