// LogVigil - Real-Time Security Log Threat Detection
// Copyright 2026 LogVigil Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logvigil/logvigil

/*
Package models defines data structures for the LogVigil application.

This package contains all data models shared across the detection pipeline,
the subscriber stream, and the HTTP API. It serves as the single source of
truth for wire formats.

Key Components:

  - LogRecord: A single security log entry flowing through the pipeline
  - AnalysisResult: Scorer verdict for a record (score, confidence, level)
  - ThreatAlert: Durable alert raised when a threat is detected
  - StreamEvent: Envelope for subscriber stream messages (event_type tagged)
  - APIResponse: Standardized HTTP response wrapper

JSON tags on these types define the external protocol consumed by dashboards
and the reconnecting subscriber client; changes here are protocol changes.
*/
package models
