// LogVigil - Real-Time Security Log Threat Detection
// Copyright 2026 LogVigil Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logvigil/logvigil

package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/logvigil/logvigil/internal/alertstore"
	"github.com/logvigil/logvigil/internal/config"
	"github.com/logvigil/logvigil/internal/hub"
	"github.com/logvigil/logvigil/internal/logging"
	"github.com/logvigil/logvigil/internal/models"
	"github.com/logvigil/logvigil/internal/pipeline"
)

// Version is the reported application version. Overridden at build time via
// -ldflags "-X github.com/logvigil/logvigil/internal/api.Version=...".
var Version = "dev"

// maxAnalyzeBodyBytes bounds the /analyze request body. A single log line
// has no business being larger than this.
const maxAnalyzeBodyBytes = 1 << 20

// Handler holds the dependencies for all HTTP handlers.
type Handler struct {
	coordinator *pipeline.Coordinator
	hub         *hub.Hub
	store       alertstore.Store
	config      *config.Config
	startTime   time.Time
}

// NewHandler creates the HTTP handler set.
func NewHandler(coordinator *pipeline.Coordinator, h *hub.Hub, store alertstore.Store, cfg *config.Config) *Handler {
	return &Handler{
		coordinator: coordinator,
		hub:         h,
		store:       store,
		config:      cfg,
		startTime:   time.Now(),
	}
}

// MonitoringStart handles POST /monitoring/start.
// Idempotent: starting an already-running pipeline reports the current
// state with 200 rather than an error.
func (h *Handler) MonitoringStart(w http.ResponseWriter, r *http.Request) {
	status := h.coordinator.Start()

	logging.Info().
		Str("state", status.State).
		Uint64("run", status.Run).
		Msg("monitoring start requested")

	respondSuccess(w, http.StatusOK, status)
}

// MonitoringStop handles POST /monitoring/stop.
// Idempotent like MonitoringStart.
func (h *Handler) MonitoringStop(w http.ResponseWriter, r *http.Request) {
	status := h.coordinator.Stop()

	logging.Info().
		Str("state", status.State).
		Uint64("run", status.Run).
		Msg("monitoring stop requested")

	respondSuccess(w, http.StatusOK, status)
}

// MonitoringStatus handles GET /monitoring/status.
func (h *Handler) MonitoringStatus(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, h.coordinator.Status())
}

// AnalyzeRequest is the body for POST /analyze.
type AnalyzeRequest struct {
	LogEntry string `json:"log_entry" validate:"required,max=65536"`
	SourceIP string `json:"source_ip" validate:"omitempty,ip"`
}

// Analyze handles POST /analyze. It scores one log entry on demand without
// feeding it into the live pipeline: nothing is broadcast and no alert is
// persisted. Works whether or not monitoring is running.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAnalyzeBodyBytes)

	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Request body must be valid JSON", err)
		return
	}

	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	rec := models.NewLogRecord(req.LogEntry, req.SourceIP)
	start := time.Now()
	analysis := h.coordinator.AnalyzeOne(r.Context(), rec)

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"log":      rec,
			"analysis": analysis,
		},
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

// Stats handles GET /stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, h.coordinator.Stats(r.Context()))
}
