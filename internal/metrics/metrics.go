// LogVigil - Real-Time Security Log Threat Detection
// Copyright 2026 LogVigil Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logvigil/logvigil

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus Metrics Integration for Production Observability
// This package provides instrumentation for:
// - Pipeline throughput and threat detection rates
// - Scorer latency and timeout/degradation tracking
// - Alert persistence (Badger) and circuit breaker state
// - WebSocket session counts and backpressure drops
// - API endpoint latency and throughput
// - NATS ingestion

var (
	// Pipeline Metrics
	PipelineRecordsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_records_processed_total",
			Help: "Total number of log records processed by the pipeline",
		},
	)

	PipelineThreatsDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_threats_detected_total",
			Help: "Total number of threats detected, by severity level",
		},
		[]string{"level"}, // "low", "medium", "high", "critical"
	)

	PipelineDegradedResults = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_degraded_results_total",
			Help: "Total number of records that fell back to a degraded result",
		},
	)

	// Scorer Metrics
	ScorerDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scorer_duration_seconds",
			Help:    "Duration of scorer invocations in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .25, .5, 1},
		},
	)

	ScorerTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scorer_timeouts_total",
			Help: "Total number of scorer invocations that exceeded the deadline",
		},
	)

	ScorerErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scorer_errors_total",
			Help: "Total number of scorer invocations that returned an error",
		},
	)

	// Alert Store Metrics
	AlertsPersisted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alerts_persisted_total",
			Help: "Total number of threat alerts written to the store",
		},
	)

	AlertPersistenceFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alert_persistence_failures_total",
			Help: "Total number of alert writes that failed after retries",
		},
	)

	AlertStoreWriteDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "alert_store_write_duration_seconds",
			Help:    "Duration of alert store writes in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Circuit Breaker Metrics
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"name"},
	)

	BreakerTrips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_trips_total",
			Help: "Total number of circuit breaker open transitions",
		},
		[]string{"name"},
	)

	// WebSocket Metrics
	WSConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Current number of active WebSocket sessions",
		},
	)

	WSMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of messages sent to WebSocket sessions",
		},
		[]string{"event_type"}, // "live_log", "threat_alert", "heartbeat"
	)

	WSMessagesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_dropped_total",
			Help: "Total number of messages dropped due to slow sessions",
		},
	)

	WSReplayedEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_replayed_events_total",
			Help: "Total number of events replayed to reconnecting sessions",
		},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Current number of HTTP requests being served",
		},
	)

	// Ingestion Metrics
	IngestRecordsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_records_dropped_total",
			Help: "Total number of ingested records dropped because the intake queue was full",
		},
		[]string{"source"},
	)

	// NATS Ingestion Metrics
	NATSMessagesConsumed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nats_messages_consumed_total",
			Help: "Total number of messages consumed from NATS",
		},
	)

	NATSParseFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nats_parse_failures_total",
			Help: "Total number of NATS messages that failed to parse",
		},
	)
)

// RecordScore records a scorer invocation outcome.
func RecordScore(duration time.Duration, timedOut bool, err error) {
	ScorerDuration.Observe(duration.Seconds())
	if timedOut {
		ScorerTimeouts.Inc()
	}
	if err != nil {
		ScorerErrors.Inc()
	}
}

// RecordThreat records a detected threat at the given severity level.
func RecordThreat(level string) {
	PipelineThreatsDetected.WithLabelValues(level).Inc()
}

// RecordAlertPersist records an alert store write attempt.
func RecordAlertPersist(duration time.Duration, err error) {
	AlertStoreWriteDuration.Observe(duration.Seconds())
	if err != nil {
		AlertPersistenceFailures.Inc()
	} else {
		AlertsPersisted.Inc()
	}
}

// RecordDroppedRecord records an ingested record dropped at intake.
func RecordDroppedRecord(source string) {
	IngestRecordsDropped.WithLabelValues(source).Inc()
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// SetBreakerState records a circuit breaker state transition.
// State values: 0=closed, 1=open, 2=half-open.
func SetBreakerState(name string, state int) {
	BreakerState.WithLabelValues(name).Set(float64(state))
	if state == 1 {
		BreakerTrips.WithLabelValues(name).Inc()
	}
}
