// LogVigil - Real-Time Security Log Threat Detection
// Copyright 2026 LogVigil Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logvigil/logvigil

// Package pipeline coordinates the detection flow: records submitted by an
// ingestion source are scored under a bounded deadline, broadcast to
// subscribers, and persisted as alerts when a threat is found.
package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/logvigil/logvigil/internal/alertstore"
	"github.com/logvigil/logvigil/internal/config"
	"github.com/logvigil/logvigil/internal/logging"
	"github.com/logvigil/logvigil/internal/metrics"
	"github.com/logvigil/logvigil/internal/models"
	"github.com/logvigil/logvigil/internal/scorer"
)

// MonitoringState is the coordinator's lifecycle state.
type MonitoringState int32

const (
	StateStopped MonitoringState = iota
	StateRunning
)

// String returns the wire name of the state.
func (s MonitoringState) String() string {
	if s == StateRunning {
		return "running"
	}
	return "stopped"
}

// ErrQueueFull is returned by Submit when the intake queue is saturated.
var ErrQueueFull = errors.New("pipeline submit queue full")

// Broadcaster fans events out to subscriber sessions. Implemented by hub.Hub.
type Broadcaster interface {
	BroadcastLiveLog(rec *models.LogRecord, analysis *models.AnalysisResult)
	BroadcastThreatAlert(alert *models.ThreatAlert)
	StartRun() uint64
	SetMonitoringActive(active bool)
	GetSessionCount() int
	DroppedTotal() int64
}

// Coordinator owns the monitoring lifecycle and drives records through
// score -> broadcast -> persist. Start and Stop are idempotent; records
// submitted while stopped are discarded.
type Coordinator struct {
	scorer      scorer.Scorer
	store       alertstore.Store
	broadcaster Broadcaster
	cfg         config.PipelineConfig

	breaker *gobreaker.CircuitBreaker[interface{}]

	state     atomic.Int32
	run       atomic.Uint64
	everRan   atomic.Bool
	submit    chan *models.LogRecord
	startedAt time.Time

	recordsProcessed    atomic.Uint64
	threatsDetected     atomic.Uint64
	degradedResults     atomic.Uint64
	persistenceFailures atomic.Uint64
	inferenceMicros     atomic.Int64
	inferenceCount      atomic.Uint64
}

// NewCoordinator wires the pipeline. The alert store breaker opens after
// cfg.BreakerFailureThreshold consecutive failures and probes again after
// cfg.BreakerOpenTimeout, so a dead store degrades persistence without
// stalling broadcast.
func NewCoordinator(sc scorer.Scorer, store alertstore.Store, b Broadcaster, cfg config.PipelineConfig) *Coordinator {
	c := &Coordinator{
		scorer:      sc,
		store:       store,
		broadcaster: b,
		cfg:         cfg,
		submit:      make(chan *models.LogRecord, cfg.SubmitQueueCapacity),
		startedAt:   time.Now(),
	}
	c.run.Store(1)

	c.breaker = gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:    "alertstore",
		Timeout: cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.SetBreakerState(name, int(to))
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("alert store circuit breaker state change")
		},
	})

	return c
}

// Start transitions the pipeline to running. Calling Start on a running
// pipeline is a no-op that reports the current state. Every transition
// from stopped begins a new run: the broadcast sequence resets and the
// run counter increments so subscribers can tell a restart from loss.
func (c *Coordinator) Start() models.MonitoringStatus {
	if !c.state.CompareAndSwap(int32(StateStopped), int32(StateRunning)) {
		return models.MonitoringStatus{
			State:   StateRunning.String(),
			Run:     c.run.Load(),
			Message: "monitoring already active",
		}
	}

	// The hub is born in run 1; only restarts advance the counter.
	if c.everRan.Swap(true) {
		c.run.Store(c.broadcaster.StartRun())
	}
	c.broadcaster.SetMonitoringActive(true)

	run := c.run.Load()
	logging.Info().Uint64("run", run).Msg("monitoring started")
	return models.MonitoringStatus{
		State:   StateRunning.String(),
		Run:     run,
		Message: "monitoring started",
	}
}

// Stop transitions the pipeline to stopped. Calling Stop on a stopped
// pipeline is a no-op that reports the current state. In-flight records
// finish processing; newly submitted records are discarded.
func (c *Coordinator) Stop() models.MonitoringStatus {
	if !c.state.CompareAndSwap(int32(StateRunning), int32(StateStopped)) {
		return models.MonitoringStatus{
			State:   StateStopped.String(),
			Run:     c.run.Load(),
			Message: "monitoring already stopped",
		}
	}

	c.broadcaster.SetMonitoringActive(false)
	logging.Info().Uint64("run", c.run.Load()).Msg("monitoring stopped")
	return models.MonitoringStatus{
		State:   StateStopped.String(),
		Run:     c.run.Load(),
		Message: "monitoring stopped",
	}
}

// State returns the current monitoring state.
func (c *Coordinator) State() MonitoringState {
	return MonitoringState(c.state.Load())
}

// Running reports whether monitoring is active.
func (c *Coordinator) Running() bool {
	return c.State() == StateRunning
}

// Status reports the current state without changing it.
func (c *Coordinator) Status() models.MonitoringStatus {
	return models.MonitoringStatus{
		State: c.State().String(),
		Run:   c.run.Load(),
	}
}

// Submit hands a record to the pipeline. Records are dropped silently
// while monitoring is stopped; ErrQueueFull signals intake saturation.
func (c *Coordinator) Submit(rec *models.LogRecord) error {
	if !c.Running() {
		return nil
	}
	select {
	case c.submit <- rec:
		return nil
	default:
		logging.Warn().Msg("submit queue full, dropping log record")
		return ErrQueueFull
	}
}

// Serve drains the submit queue until ctx is canceled. Designed to run
// under suture supervision.
func (c *Coordinator) Serve(ctx context.Context) error {
	logging.Info().Msg("pipeline coordinator serving")
	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("pipeline coordinator stopped")
			return ctx.Err()
		case rec := <-c.submit:
			if !c.Running() {
				continue
			}
			c.ProcessOne(ctx, rec)
		}
	}
}

// ProcessOne runs a single record through score -> broadcast -> persist.
// The scorer gets a bounded deadline; on timeout or error the record is
// broadcast with a degraded result so subscribers can distinguish
// "clean" from "unscored". Alerts are persisted best-effort: one retry,
// then the failure is logged and counted, never propagated.
func (c *Coordinator) ProcessOne(ctx context.Context, rec *models.LogRecord) *models.AnalysisResult {
	if !rec.Valid() {
		return nil
	}

	analysis := c.score(ctx, rec)
	c.recordsProcessed.Add(1)
	metrics.PipelineRecordsProcessed.Inc()

	c.broadcaster.BroadcastLiveLog(rec, analysis)

	if analysis.ThreatDetected && !analysis.Degraded() {
		c.threatsDetected.Add(1)
		metrics.RecordThreat(string(analysis.ThreatLevel))

		alert := models.NewThreatAlert(rec, analysis)
		c.persistAlert(ctx, alert)
		c.broadcaster.BroadcastThreatAlert(alert)
	}

	return analysis
}

// AnalyzeOne scores a record on demand without broadcasting or persisting.
// Used by the analyze endpoint; the same deadline and degraded fallback
// apply.
func (c *Coordinator) AnalyzeOne(ctx context.Context, rec *models.LogRecord) *models.AnalysisResult {
	return c.score(ctx, rec)
}

// score invokes the scorer under the configured deadline and substitutes
// a degraded result on timeout or error.
func (c *Coordinator) score(ctx context.Context, rec *models.LogRecord) *models.AnalysisResult {
	scoreCtx, cancel := context.WithTimeout(ctx, c.cfg.ScorerTimeout)
	defer cancel()

	start := time.Now()
	analysis, err := c.scorer.Score(scoreCtx, rec)
	elapsed := time.Since(start)

	timedOut := errors.Is(err, context.DeadlineExceeded) || errors.Is(scoreCtx.Err(), context.DeadlineExceeded)
	metrics.RecordScore(elapsed, timedOut, err)

	if err != nil {
		c.degradedResults.Add(1)
		metrics.PipelineDegradedResults.Inc()
		logging.Warn().
			Err(err).
			Str("scorer", c.scorer.Name()).
			Str("log_id", rec.ID).
			Bool("timed_out", timedOut).
			Msg("scorer unavailable, emitting degraded result")
		return models.DegradedAnalysis(rec)
	}

	c.inferenceMicros.Add(elapsed.Microseconds())
	c.inferenceCount.Add(1)
	return analysis
}

// persistAlert writes an alert through the circuit breaker with a bounded
// retry. Persistence failures never block or fail the pipeline; the alert
// still reaches subscribers via broadcast.
func (c *Coordinator) persistAlert(ctx context.Context, alert *models.ThreatAlert) {
	attempts := 1 + c.cfg.AlertRetryAttempts
	var lastErr error

retry:
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
				break retry
			case <-time.After(c.cfg.AlertRetryDelay):
			}
		}

		start := time.Now()
		_, err := c.breaker.Execute(func() (interface{}, error) {
			return nil, c.store.SaveAlert(ctx, alert)
		})
		metrics.RecordAlertPersist(time.Since(start), err)
		if err == nil {
			return
		}
		lastErr = err

		// An open breaker fails fast; retrying immediately is pointless.
		if errors.Is(err, gobreaker.ErrOpenState) {
			break retry
		}
	}

	c.persistenceFailures.Add(1)
	logging.Error().
		Err(lastErr).
		Str("source_log_id", alert.SourceLogID).
		Str("severity", string(alert.Severity)).
		Msg("alert persistence failed, alert broadcast only")
}

// Stats returns a snapshot of pipeline counters. Severity counts come
// from the store and are omitted when it is unreachable.
func (c *Coordinator) Stats(ctx context.Context) models.PipelineStats {
	stats := models.PipelineStats{
		MonitoringActive:    c.Running(),
		RecordsProcessed:    c.recordsProcessed.Load(),
		ThreatsDetected:     c.threatsDetected.Load(),
		DegradedResults:     c.degradedResults.Load(),
		PersistenceFailures: c.persistenceFailures.Load(),
		ActiveSessions:      c.broadcaster.GetSessionCount(),
		DroppedEvents:       c.broadcaster.DroppedTotal(),
		UptimeSeconds:       time.Since(c.startedAt).Seconds(),
	}

	if n := c.inferenceCount.Load(); n > 0 {
		stats.AvgInferenceMS = float64(c.inferenceMicros.Load()) / float64(n) / 1000.0
	}

	if counts, err := c.store.CountBySeverity(ctx); err == nil {
		stats.AlertsBySeverity = make(map[string]int64, len(counts))
		for level, count := range counts {
			stats.AlertsBySeverity[string(level)] = count
		}
	}

	return stats
}

// StoreHealthy reports whether the alert store answers a ping.
func (c *Coordinator) StoreHealthy(ctx context.Context) bool {
	return c.store.Ping(ctx) == nil
}

// ScorerReady reports whether a scorer is loaded and able to analyze
// records. A pipeline without one only ever emits degraded results.
func (c *Coordinator) ScorerReady() bool {
	return c.scorer != nil
}
