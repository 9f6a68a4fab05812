// LogVigil - Real-Time Security Log Threat Detection
// Copyright 2026 LogVigil Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logvigil/logvigil

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/logvigil/logvigil/internal/alertstore"
	"github.com/logvigil/logvigil/internal/logging"
)

// AlertListRequest carries validated pagination for GET /alerts.
type AlertListRequest struct {
	Limit int `validate:"min=1,max=1000"`
}

// Alerts handles GET /alerts. Returns persisted alerts newest first,
// bounded by the limit query parameter.
func (h *Handler) Alerts(w http.ResponseWriter, r *http.Request) {
	limit := getIntParam(r, "limit", h.config.API.DefaultPageSize)
	if limit > h.config.API.MaxPageSize {
		limit = h.config.API.MaxPageSize
	}

	req := AlertListRequest{Limit: limit}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	alerts, err := h.store.ListRecent(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "STORE_ERROR", "Alert store unavailable", err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// Alert handles GET /alerts/{id}.
func (h *Handler) Alert(w http.ResponseWriter, r *http.Request) {
	id, ok := alertIDParam(w, r)
	if !ok {
		return
	}

	alert, err := h.store.GetAlert(r.Context(), id)
	if err != nil {
		if errors.Is(err, alertstore.ErrAlertNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Alert not found", nil)
			return
		}
		respondError(w, http.StatusServiceUnavailable, "STORE_ERROR", "Alert store unavailable", err)
		return
	}

	respondSuccess(w, http.StatusOK, alert)
}

// acknowledgeRequest is the optional body for POST /alerts/{id}/ack.
type acknowledgeRequest struct {
	AcknowledgedBy string `json:"acknowledged_by" validate:"omitempty,max=128"`
}

// AlertAcknowledge handles POST /alerts/{id}/ack. Acknowledging an
// already-acknowledged alert is a no-op that returns the alert unchanged.
func (h *Handler) AlertAcknowledge(w http.ResponseWriter, r *http.Request) {
	id, ok := alertIDParam(w, r)
	if !ok {
		return
	}

	req := acknowledgeRequest{AcknowledgedBy: "operator"}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Request body must be valid JSON", err)
			return
		}
		if req.AcknowledgedBy == "" {
			req.AcknowledgedBy = "operator"
		}
	}

	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	alert, err := h.store.Acknowledge(r.Context(), id, req.AcknowledgedBy)
	if err != nil {
		if errors.Is(err, alertstore.ErrAlertNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Alert not found", nil)
			return
		}
		respondError(w, http.StatusServiceUnavailable, "STORE_ERROR", "Alert store unavailable", err)
		return
	}

	logging.Info().
		Uint64("alert_id", id).
		Str("acknowledged_by", sanitizeLogValue(req.AcknowledgedBy)).
		Msg("alert acknowledged")

	respondSuccess(w, http.StatusOK, alert)
}

// alertIDParam parses the {id} URL parameter, responding with 400 on failure.
func alertIDParam(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Alert ID must be a positive integer", nil)
		return 0, false
	}
	return id, true
}
