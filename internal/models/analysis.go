// LogVigil - Real-Time Security Log Threat Detection
// Copyright 2026 LogVigil Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logvigil/logvigil

package models

import "time"

// ThreatLevel classifies the severity of a detected threat.
type ThreatLevel string

const (
	ThreatLevelNone     ThreatLevel = "none"
	ThreatLevelLow      ThreatLevel = "low"
	ThreatLevelMedium   ThreatLevel = "medium"
	ThreatLevelHigh     ThreatLevel = "high"
	ThreatLevelCritical ThreatLevel = "critical"
)

// ThreatLevelForScore maps a normalized threat score to a level.
// Thresholds: >=0.7 high, >=0.4 medium, >=0.1 low, otherwise none.
// Critical is reserved for multi-vector detections (see scorer).
func ThreatLevelForScore(score float64) ThreatLevel {
	switch {
	case score >= 0.7:
		return ThreatLevelHigh
	case score >= 0.4:
		return ThreatLevelMedium
	case score >= 0.1:
		return ThreatLevelLow
	default:
		return ThreatLevelNone
	}
}

// Rank returns an ordering value for severity comparisons. Higher is worse.
func (l ThreatLevel) Rank() int {
	switch l {
	case ThreatLevelCritical:
		return 4
	case ThreatLevelHigh:
		return 3
	case ThreatLevelMedium:
		return 2
	case ThreatLevelLow:
		return 1
	default:
		return 0
	}
}

// AnalysisResult is the scorer's verdict for a single log record.
//
// ThreatScore and Confidence are both normalized to [0, 1]. A degraded
// result (scorer timeout or failure) has ThreatDetected=false and
// AnalysisDetails set to "scorer_unavailable" so downstream consumers can
// distinguish "clean" from "unscored".
type AnalysisResult struct {
	ThreatDetected  bool        `json:"threat_detected"`
	ThreatTypes     []string    `json:"threat_types"`
	ThreatLevel     ThreatLevel `json:"threat_level"`
	ThreatScore     float64     `json:"threat_score"`
	Confidence      float64     `json:"confidence"`
	AnalysisDetails string      `json:"analysis_details,omitempty"`
	InferenceTimeMS float64     `json:"inference_time_ms"`
	LogEntryLength  int         `json:"log_entry_length"`
	Timestamp       time.Time   `json:"timestamp"`
}

// AnalysisDetailsDegraded marks results produced when the scorer could not
// answer within its deadline. Such results never raise alerts.
const AnalysisDetailsDegraded = "scorer_unavailable"

// DegradedAnalysis builds the fallback result used when scoring fails.
func DegradedAnalysis(rec *LogRecord) *AnalysisResult {
	length := 0
	if rec != nil {
		length = len(rec.Content)
	}
	return &AnalysisResult{
		ThreatDetected:  false,
		ThreatTypes:     []string{},
		ThreatLevel:     ThreatLevelNone,
		AnalysisDetails: AnalysisDetailsDegraded,
		LogEntryLength:  length,
		Timestamp:       time.Now().UTC(),
	}
}

// Degraded reports whether this result is a fallback produced without scoring.
func (a *AnalysisResult) Degraded() bool {
	return a.AnalysisDetails == AnalysisDetailsDegraded
}
