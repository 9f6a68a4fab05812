// LogVigil - Real-Time Security Log Threat Detection
// Copyright 2026 LogVigil Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logvigil/logvigil

package scorer

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/logvigil/logvigil/internal/models"
)

// Scorer analyzes a single log record and produces a threat verdict.
// Implementations must honor ctx cancellation: a caller enforces a
// per-record deadline and substitutes a degraded result on timeout.
type Scorer interface {
	Score(ctx context.Context, rec *models.LogRecord) (*models.AnalysisResult, error)
	Name() string
}

// Threat type identifiers emitted in AnalysisResult.ThreatTypes.
const (
	ThreatTypeSQLInjection  = "sql_injection"
	ThreatTypeXSS           = "xss"
	ThreatTypePathTraversal = "path_traversal"
	ThreatTypeBruteForce    = "brute_force"
)

// patternGroup is a family of signatures sharing a threat type and weight.
// The first matching pattern in a group claims the whole group; additional
// matches of the same family do not stack.
type patternGroup struct {
	threatType string
	score      float64
	confidence float64
	patterns   []*regexp.Regexp
}

// PatternScorer is a signature-based scorer covering the common web attack
// families: SQL injection, XSS, path traversal, and brute force.
type PatternScorer struct {
	groups []patternGroup
}

// compile panics on invalid patterns; all inputs are package constants.
func compile(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, regexp.MustCompile("(?i)"+e))
	}
	return out
}

// NewPatternScorer builds a scorer with the built-in signature set.
func NewPatternScorer() *PatternScorer {
	return &PatternScorer{
		groups: []patternGroup{
			{
				threatType: ThreatTypeSQLInjection,
				score:      0.8,
				confidence: 0.9,
				patterns: compile(
					`\bSELECT\b.*\bFROM\b`,
					`\bUNION\b.*\bSELECT\b`,
					`\bINSERT\b.*\bINTO\b`,
					`\bDELETE\b.*\bFROM\b`,
					`\bDROP\b.*\bTABLE\b`,
					`\bOR\b.*1\s*=\s*1`,
					`\bAND\b.*1\s*=\s*1`,
					`1\s*=\s*1`,
					`admin\s*=\s*1`,
					`'.*OR.*'.*=.*'`,
					`(--|#|/\*)`,
				),
			},
			{
				threatType: ThreatTypeXSS,
				score:      0.7,
				confidence: 0.85,
				patterns: compile(
					`<script[^>]*>`,
					`javascript:`,
					`onload\s*=`,
					`onerror\s*=`,
					`alert\s*\(`,
					`document\.cookie`,
				),
			},
			{
				threatType: ThreatTypePathTraversal,
				score:      0.6,
				confidence: 0.8,
				patterns: compile(
					`\.\./`,
					`\.\.\\`,
					`/etc/passwd`,
					`/windows/system32`,
				),
			},
			{
				threatType: ThreatTypeBruteForce,
				score:      0.5,
				confidence: 0.75,
				patterns: compile(
					`failed.*login.*attempt`,
					`authentication.*failed`,
					`invalid.*password`,
					`login.*failed.*user`,
				),
			},
		},
	}
}

// Name identifies the scorer in logs and health output.
func (s *PatternScorer) Name() string {
	return "pattern"
}

// Score evaluates every signature group against the record content.
// Group scores sum and cap at 1.0; confidence averages over the four
// groups and caps at 1.0. A record matching two or more families with a
// combined score of at least 0.9 escalates to critical.
func (s *PatternScorer) Score(ctx context.Context, rec *models.LogRecord) (*models.AnalysisResult, error) {
	if rec == nil {
		return nil, fmt.Errorf("nil log record")
	}
	start := time.Now()

	content := strings.ToLower(rec.Content)

	var (
		score       float64
		confidence  float64
		threatTypes []string
	)

	for _, g := range s.groups {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, p := range g.patterns {
			if p.MatchString(content) {
				score += g.score
				confidence += g.confidence
				threatTypes = append(threatTypes, g.threatType)
				break
			}
		}
	}

	if score > 1.0 {
		score = 1.0
	}
	confidence /= float64(len(s.groups))
	if confidence > 1.0 {
		confidence = 1.0
	}

	level := models.ThreatLevelForScore(score)
	if score >= 0.9 && len(threatTypes) > 1 {
		level = models.ThreatLevelCritical
	}

	if threatTypes == nil {
		threatTypes = []string{}
	}

	return &models.AnalysisResult{
		ThreatDetected:  len(threatTypes) > 0,
		ThreatTypes:     threatTypes,
		ThreatLevel:     level,
		ThreatScore:     score,
		Confidence:      confidence,
		InferenceTimeMS: float64(time.Since(start).Microseconds()) / 1000.0,
		LogEntryLength:  len(rec.Content),
		Timestamp:       time.Now().UTC(),
	}, nil
}
