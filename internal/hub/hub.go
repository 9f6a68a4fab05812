// LogVigil - Real-Time Security Log Threat Detection
// Copyright 2026 LogVigil Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logvigil/logvigil

package hub

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/logvigil/logvigil/internal/logging"
	"github.com/logvigil/logvigil/internal/metrics"
	"github.com/logvigil/logvigil/internal/models"
)

// ShutdownReason identifies why the hub is shutting down.
// This enables clear observability in logs and metrics.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled indicates the parent context was canceled.
	// This is the normal graceful shutdown path (e.g., SIGTERM).
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline indicates the context deadline was exceeded.
	// This may indicate a hung operation during shutdown.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Hub maintains the set of active subscriber sessions and fans events out
// to them. Every event passes through a single broadcast loop where it is
// stamped with a per-run sequence number, recorded in the replay ring, and
// delivered to each session's bounded queue.
type Hub struct {
	sessions   map[*Session]bool
	broadcast  chan *models.StreamEvent
	Register   chan *Session
	Unregister chan *Session
	mu         sync.RWMutex

	sequencer *Sequencer
	ring      *replayRing

	heartbeatInterval time.Duration
	queueCapacity     int

	monitoringActive atomic.Bool
	dropped          atomic.Int64
}

// NewHub creates a hub. queueCapacity bounds each session's send queue;
// replaySize bounds the ring used for best-effort replay on reconnect.
func NewHub(heartbeatInterval time.Duration, queueCapacity, replaySize int) *Hub {
	return &Hub{
		sessions:          make(map[*Session]bool),
		broadcast:         make(chan *models.StreamEvent, 256),
		Register:          make(chan *Session),
		Unregister:        make(chan *Session),
		sequencer:         NewSequencer(),
		ring:              newReplayRing(replaySize),
		heartbeatInterval: heartbeatInterval,
		queueCapacity:     queueCapacity,
	}
}

// RunWithContext starts the hub with context support for graceful shutdown.
// This method is designed for use with suture supervision.
//
// When the context is canceled:
//  1. All connected sessions are gracefully closed
//  2. The method returns ctx.Err()
//
// DETERMINISM: Uses priority-based selection to ensure predictable behavior:
// - Priority 1: Context cancellation (shutdown)
// - Priority 2: Session lifecycle events (Register/Unregister)
// - Priority 3: Broadcast messages and heartbeat ticks
//
// Sequence numbers are stamped inside this loop, so ordering across all
// sessions matches stamping order exactly.
func (h *Hub) RunWithContext(ctx context.Context) error {
	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()

	for {
		// Priority 1: Check for shutdown (highest priority, non-blocking)
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		// Priority 2: Handle session lifecycle events (non-blocking check)
		select {
		case sess := <-h.Register:
			h.registerSession(sess)
			continue
		case sess := <-h.Unregister:
			h.unregisterSession(sess)
			continue
		default:
			// No lifecycle events pending
		}

		// Priority 3: Handle broadcasts, heartbeats, or wait (blocking)
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()

		case sess := <-h.Register:
			h.registerSession(sess)

		case sess := <-h.Unregister:
			h.unregisterSession(sess)

		case event := <-h.broadcast:
			h.dispatch(event)

		case <-ticker.C:
			h.dispatch(&models.StreamEvent{
				EventType: models.EventTypeHeartbeat,
				Data: models.HeartbeatEvent{
					MonitoringActive: h.monitoringActive.Load(),
					ActiveSessions:   h.GetSessionCount(),
					DroppedEvents:    h.dropped.Load(),
				},
			})
		}
	}
}

// registerSession adds a session and replays missed events when the
// session reconnected with a last-acked sequence from the current run.
func (h *Hub) registerSession(sess *Session) {
	h.mu.Lock()
	h.sessions[sess] = true
	total := len(h.sessions)
	h.mu.Unlock()

	metrics.WSConnectionsActive.Set(float64(total))
	logging.Info().
		Uint64("session_id", sess.id).
		Int("total_sessions", total).
		Msg("subscriber session connected")

	if sess.since == 0 {
		return
	}

	// Best-effort replay: only events from the current run still in the
	// ring. A run change means the subscriber's window is gone; it will
	// see the new run number on the next event and resync.
	_, run := h.sequencer.Current()
	missed := h.ring.eventsAfter(sess.since, run)
	for _, ev := range missed {
		h.enqueue(sess, ev)
	}
	if len(missed) > 0 {
		metrics.WSReplayedEvents.Add(float64(len(missed)))
		logging.Info().
			Uint64("session_id", sess.id).
			Uint64("since", sess.since).
			Int("replayed", len(missed)).
			Msg("replayed missed events to reconnecting session")
	}
}

func (h *Hub) unregisterSession(sess *Session) {
	h.mu.Lock()
	if _, ok := h.sessions[sess]; ok {
		delete(h.sessions, sess)
		close(sess.send)
	}
	total := len(h.sessions)
	h.mu.Unlock()

	metrics.WSConnectionsActive.Set(float64(total))
	logging.Info().
		Uint64("session_id", sess.id).
		Int("total_sessions", total).
		Msg("subscriber session disconnected")
}

// dispatch stamps an event and fans it out to every session in a
// deterministic order.
//
// DETERMINISM: Sessions are sorted by their atomic ID so delivery order is
// reproducible; Go map iteration order is random.
func (h *Hub) dispatch(event *models.StreamEvent) {
	event.Seq, event.Run = h.sequencer.Next()
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	h.ring.push(event)

	h.mu.RLock()
	sessions := make([]*Session, 0, len(h.sessions))
	for sess := range h.sessions {
		sessions = append(sessions, sess)
	}
	h.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].id < sessions[j].id
	})

	for _, sess := range sessions {
		h.enqueue(sess, event)
	}
	metrics.WSMessagesSent.WithLabelValues(string(event.EventType)).Add(float64(len(sessions)))
}

// enqueue delivers an event to one session's bounded queue. When the queue
// is full the OLDEST queued event is dropped to make room: a slow
// subscriber loses its stalest data first and never blocks the hub.
// Gaps are visible to the subscriber through the sequence numbers.
func (h *Hub) enqueue(sess *Session, event *models.StreamEvent) {
	select {
	case sess.send <- event:
		return
	default:
	}

	// Queue full. The hub loop is the only sender, so popping one slot
	// and pushing is safe; if the session's write pump drains a message
	// concurrently we simply dropped one fewer than we had to.
	select {
	case <-sess.send:
		h.dropped.Add(1)
		sess.dropped.Add(1)
		metrics.WSMessagesDropped.Inc()
	default:
	}

	select {
	case sess.send <- event:
	default:
		// Still full (pump closed mid-flight). Count the loss.
		h.dropped.Add(1)
		sess.dropped.Add(1)
		metrics.WSMessagesDropped.Inc()
	}
}

// logGracefulShutdown closes all sessions and logs structured shutdown
// information. ctx.Err() is NOT logged as an error because context
// cancellation is expected behavior during graceful shutdown.
func (h *Hub) logGracefulShutdown(ctx context.Context) {
	sessionCount := h.GetSessionCount()
	h.closeAllSessions()
	reason := getShutdownReason(ctx)

	logging.Info().
		Str("component", "broadcast-hub").
		Str("reason", string(reason)).
		Int("sessions_closed", sessionCount).
		Msg("broadcast hub stopped")
}

// getShutdownReason determines the shutdown reason from the context error.
func getShutdownReason(ctx context.Context) ShutdownReason {
	switch ctx.Err() {
	case context.Canceled:
		return ShutdownReasonContextCanceled
	case context.DeadlineExceeded:
		return ShutdownReasonContextDeadline
	default:
		return ShutdownReasonContextCanceled
	}
}

// closeAllSessions gracefully closes all connected sessions.
// DETERMINISM: Closes sessions in ID order for consistent shutdown behavior.
func (h *Hub) closeAllSessions() {
	h.mu.Lock()
	defer h.mu.Unlock()

	sessions := make([]*Session, 0, len(h.sessions))
	for sess := range h.sessions {
		sessions = append(sessions, sess)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].id < sessions[j].id
	})

	for _, sess := range sessions {
		close(sess.send)
		delete(h.sessions, sess)
	}
	metrics.WSConnectionsActive.Set(0)
	logging.Info().Msg("closed all subscriber sessions during shutdown")
}

// StartRun begins a new monitoring run: the sequence resets, the run
// counter increments, and the replay ring is cleared so stale events from
// the previous run can never be replayed.
func (h *Hub) StartRun() uint64 {
	run := h.sequencer.Reset()
	h.ring.clear()
	return run
}

// SetMonitoringActive records the monitoring state carried in heartbeats.
func (h *Hub) SetMonitoringActive(active bool) {
	h.monitoringActive.Store(active)
}

// BroadcastLiveLog pushes a scored log record to all sessions.
func (h *Hub) BroadcastLiveLog(rec *models.LogRecord, analysis *models.AnalysisResult) {
	event := &models.StreamEvent{
		EventType: models.EventTypeLiveLog,
		Data: models.LiveLogEvent{
			Log:      rec,
			Analysis: analysis,
		},
	}

	select {
	case h.broadcast <- event:
	default:
		h.dropped.Add(1)
		metrics.WSMessagesDropped.Inc()
		logging.Warn().Msg("broadcast channel full, dropping live_log event")
	}
}

// BroadcastThreatAlert pushes a threat alert to all sessions.
func (h *Hub) BroadcastThreatAlert(alert *models.ThreatAlert) {
	event := &models.StreamEvent{
		EventType: models.EventTypeThreatAlert,
		Data:      alert,
	}

	select {
	case h.broadcast <- event:
	default:
		h.dropped.Add(1)
		metrics.WSMessagesDropped.Inc()
		logging.Warn().Msg("broadcast channel full, dropping threat_alert event")
	}
}

// GetSessionCount returns the number of connected sessions.
func (h *Hub) GetSessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// DroppedTotal returns the number of events dropped due to backpressure
// since the hub started.
func (h *Hub) DroppedTotal() int64 {
	return h.dropped.Load()
}

// CurrentSequence returns the last stamped sequence number and run.
func (h *Hub) CurrentSequence() (seq, run uint64) {
	return h.sequencer.Current()
}

// QueueCapacity returns the per-session send queue bound.
func (h *Hub) QueueCapacity() int {
	return h.queueCapacity
}
