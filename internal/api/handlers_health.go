// LogVigil - Real-Time Security Log Threat Detection
// Copyright 2026 LogVigil Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logvigil/logvigil

package api

import (
	"net/http"
	"time"

	"github.com/logvigil/logvigil/internal/models"
)

// Health handles GET /health. The service stays "healthy" while monitoring
// is stopped; a stopped pipeline is an operator choice, not a failure.
// Only a dead alert store degrades the status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	storeConnected := h.coordinator.StoreHealthy(r.Context())
	scorerReady := h.coordinator.ScorerReady()

	status := "healthy"
	if !storeConnected || !scorerReady {
		status = "degraded"
	}

	health := models.HealthStatus{
		Status:           status,
		Version:          Version,
		MonitoringActive: h.coordinator.Running(),
		ScorerReady:      scorerReady,
		StoreConnected:   storeConnected,
		ActiveSessions:   h.hub.GetSessionCount(),
		Uptime:           time.Since(h.startTime).Seconds(),
	}

	respondSuccess(w, http.StatusOK, health)
}

// HealthLive handles liveness probe requests (Kubernetes-style).
// Returns 200 OK if the process is alive, regardless of dependencies.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady handles readiness probe requests (Kubernetes-style).
// Returns 200 only when the alert store is reachable; 503 otherwise.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	storeConnected := h.coordinator.StoreHealthy(r.Context())

	statusCode := http.StatusOK
	status := "ready"
	if !storeConnected {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	respondJSON(w, statusCode, &models.APIResponse{
		Status: status,
		Data: map[string]interface{}{
			"store_connected": storeConnected,
			"ready_to_serve":  storeConnected,
			"uptime":          time.Since(h.startTime).Seconds(),
		},
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}
