// LogVigil - Real-Time Security Log Threat Detection
// Copyright 2026 LogVigil Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logvigil/logvigil

package models

import (
	"time"

	"github.com/goccy/go-json"
)

// EventType discriminates messages on the subscriber stream.
type EventType string

const (
	EventTypeLiveLog     EventType = "live_log"
	EventTypeThreatAlert EventType = "threat_alert"
	EventTypeHeartbeat   EventType = "heartbeat"
)

// StreamEvent is the wire envelope for every message pushed to subscribers.
//
// Seq is a per-run monotonically increasing sequence number stamped at the
// broadcast point; it resets to 1 each time monitoring is restarted. Run
// increments on every restart so subscribers can tell a sequence reset from
// message loss. A subscriber that observes Seq jump backwards with the same
// Run has a bug on the server side; a Run change means its replay window is
// gone.
// Data holds the typed payload in-process. On the wire the payload's
// fields sit at the top level of the message next to the envelope
// fields, so a live_log reads
// {"event_type":"live_log","seq":...,"run":...,"log":{...},"analysis":{...}}.
type StreamEvent struct {
	EventType EventType   `json:"event_type"`
	Seq       uint64      `json:"seq"`
	Run       uint64      `json:"run"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"-"`
}

// MarshalJSON flattens the payload into the envelope. Envelope fields
// win on key collision, so the stamped timestamp always overrides a
// payload timestamp.
func (e StreamEvent) MarshalJSON() ([]byte, error) {
	flat := map[string]json.RawMessage{}
	if e.Data != nil {
		payload, err := json.Marshal(e.Data)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &flat); err != nil {
			return nil, err
		}
	}

	stamp := func(key string, v interface{}) error {
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		flat[key] = raw
		return nil
	}
	if err := stamp("event_type", e.EventType); err != nil {
		return nil, err
	}
	if err := stamp("seq", e.Seq); err != nil {
		return nil, err
	}
	if err := stamp("run", e.Run); err != nil {
		return nil, err
	}
	if err := stamp("timestamp", e.Timestamp); err != nil {
		return nil, err
	}
	return json.Marshal(flat)
}

// RawStreamEvent is the subscriber-side decode target for the envelope
// fields. The typed payload shares the top level of the message, so
// subscribers unmarshal the same bytes a second time into the concrete
// event type once event_type is known; unknown types are logged and
// skipped without a payload decode.
type RawStreamEvent struct {
	EventType EventType `json:"event_type"`
	Seq       uint64    `json:"seq"`
	Run       uint64    `json:"run"`
	Timestamp time.Time `json:"timestamp"`
}

// LiveLogEvent pairs a log record with its analysis for live_log events.
type LiveLogEvent struct {
	Log      *LogRecord      `json:"log"`
	Analysis *AnalysisResult `json:"analysis"`
}

// HeartbeatEvent is the periodic liveness signal sent to all subscribers.
// It carries the monitoring state so idle subscribers can render an
// accurate status without polling the control plane.
type HeartbeatEvent struct {
	MonitoringActive bool  `json:"monitoring_active"`
	ActiveSessions   int   `json:"active_sessions"`
	DroppedEvents    int64 `json:"dropped_events,omitempty"`
}
