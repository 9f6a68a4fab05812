// LogVigil - Real-Time Security Log Threat Detection
// Copyright 2026 LogVigil Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logvigil/logvigil

package hub

import (
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/logvigil/logvigil/internal/logging"
	"github.com/logvigil/logvigil/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024 // 512 KB
)

// sessionIDCounter generates unique, monotonically increasing IDs for
// sessions. DETERMINISM: This ensures sessions can be sorted in a
// consistent order for broadcast operations.
var sessionIDCounter atomic.Uint64

// controlMessage is the only shape subscribers are expected to send.
// Anything else is ignored.
type controlMessage struct {
	Type string `json:"type"`
	Seq  uint64 `json:"seq,omitempty"`
}

const (
	controlTypePing = "ping"
	controlTypeAck  = "ack"
)

// Session is a middleman between one websocket connection and the hub.
// Its send queue is bounded; the hub drops the oldest queued event when
// the queue is full so a slow subscriber never blocks the pipeline.
type Session struct {
	id   uint64
	hub  *Hub
	conn *websocket.Conn
	send chan *models.StreamEvent

	// since is the last sequence number the subscriber acknowledged
	// before reconnecting; events after it are replayed on register.
	since uint64

	// lastAcked tracks in-session acknowledgments for observability.
	lastAcked atomic.Uint64

	dropped atomic.Int64
}

// NewSession creates a session with a unique deterministic ID. since is
// the subscriber's last acknowledged sequence number, or zero for a fresh
// subscription.
func NewSession(h *Hub, conn *websocket.Conn, since uint64) *Session {
	return &Session{
		id:    sessionIDCounter.Add(1),
		hub:   h,
		conn:  conn,
		send:  make(chan *models.StreamEvent, h.queueCapacity),
		since: since,
	}
}

// ID returns the session's unique identifier for deterministic ordering.
func (s *Session) ID() uint64 {
	return s.id
}

// LastAcked returns the highest sequence number the subscriber has
// acknowledged during this session.
func (s *Session) LastAcked() uint64 {
	return s.lastAcked.Load()
}

// Dropped returns the number of events dropped for this session.
func (s *Session) Dropped() int64 {
	return s.dropped.Load()
}

// readPump consumes control messages from the subscriber until the
// connection closes, then unregisters the session.
func (s *Session) readPump() {
	defer func() {
		s.hub.Unregister <- s
		_ = s.conn.Close() // best-effort cleanup
	}()

	s.conn.SetReadLimit(maxMessageSize)
	if err := s.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}

	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg controlMessage
		err := s.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Error().Err(err).Uint64("session_id", s.id).Msg("unexpected websocket close error")
			}
			break
		}

		switch msg.Type {
		case controlTypeAck:
			// Acks only move forward.
			for {
				cur := s.lastAcked.Load()
				if msg.Seq <= cur || s.lastAcked.CompareAndSwap(cur, msg.Seq) {
					break
				}
			}
		case controlTypePing:
			// Protocol-level pings are handled by gorilla; an
			// application ping just proves liveness, nothing to do.
		default:
			logging.Debug().
				Str("type", msg.Type).
				Uint64("session_id", s.id).
				Msg("ignoring unknown control message")
		}
	}
}

// writePump pumps stamped events from the hub to the websocket connection.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close() // best-effort cleanup
	}()

	for {
		select {
		case event, ok := <-s.send:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}

			if !ok {
				// The hub closed the channel
				if err := s.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					logging.Error().Err(err).Msg("failed to write close message")
				}
				return
			}

			if err := s.conn.WriteJSON(event); err != nil {
				logging.Error().Err(err).Msg("failed to write stream event")
				return
			}

		case <-ticker.C:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline for ping")
				return
			}

			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start begins reading and writing for the session.
func (s *Session) Start() {
	go s.writePump()
	go s.readPump()
}
