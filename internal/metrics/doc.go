// LogVigil - Real-Time Security Log Threat Detection
// Copyright 2026 LogVigil Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logvigil/logvigil

/*
Package metrics provides Prometheus metrics collection and export for observability.

The package exposes instrumentation for the detection pipeline, the scorer,
alert persistence, WebSocket broadcast, the HTTP API, and NATS ingestion.
Metrics are served at the /metrics endpoint in Prometheus text format.

Key metric families:

  - pipeline_records_processed_total, pipeline_threats_detected_total{level},
    pipeline_degraded_results_total
  - scorer_duration_seconds, scorer_timeouts_total, scorer_errors_total
  - alerts_persisted_total, alert_persistence_failures_total,
    alert_store_write_duration_seconds
  - circuit_breaker_state{name}, circuit_breaker_trips_total{name}
  - websocket_connections_active, websocket_messages_sent_total{event_type},
    websocket_messages_dropped_total, websocket_replayed_events_total
  - http_requests_total{method,endpoint,status}, http_request_duration_seconds,
    http_requests_in_flight
  - nats_messages_consumed_total, nats_parse_failures_total

All recording functions are safe for concurrent use. Labels are kept at
fixed, low cardinality; endpoint labels carry route patterns rather than
raw URLs.
*/
package metrics
