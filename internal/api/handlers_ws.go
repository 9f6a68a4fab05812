// LogVigil - Real-Time Security Log Threat Detection
// Copyright 2026 LogVigil Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logvigil/logvigil

package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/logvigil/logvigil/internal/hub"
	"github.com/logvigil/logvigil/internal/logging"
)

// WebSocket handles GET /ws. Upgrades the connection and registers a
// subscriber session with the broadcast hub. The optional since query
// parameter requests best-effort replay of current-run events the
// subscriber already acknowledged past.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		logging.Warn().Msg("WebSocket connection rejected: hub not initialized")
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Stream service unavailable", nil)
		return
	}

	since := getUint64Param(r, "since", 0)

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error().Err(err).Msg("WebSocket upgrade error")
		return
	}

	sess := hub.NewSession(h.hub, conn, since)
	h.hub.Register <- sess
	sess.Start()
}

// getUpgrader creates a WebSocket upgrader with origin checking and a
// handshake timeout against slow-client attacks.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates the Origin header against configured CORS
// origins. Requests without an Origin header are allowed: browsers always
// send one, so its absence means a non-browser client (CLI, service) for
// which origin checks are meaningless.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if h.config == nil {
		return true
	}

	for _, allowed := range h.config.API.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	logging.Warn().
		Str("origin", sanitizeLogValue(origin)).
		Msg("WebSocket connection rejected: origin not allowed")
	return false
}
