// LogVigil - Real-Time Security Log Threat Detection
// Copyright 2026 LogVigil Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logvigil/logvigil

package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/logvigil/logvigil/internal/models"
)

// Controller drives the monitoring control plane over HTTP. It is
// independent of the stream Client: callers can start or stop detection
// without holding a WebSocket session.
type Controller struct {
	baseURL    string
	httpClient *http.Client
}

// NewController creates a controller for the given server base URL
// (e.g. "http://localhost:8080"). A nil httpClient gets a 10 second
// default timeout.
func NewController(baseURL string, httpClient *http.Client) *Controller {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Controller{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// StartMonitoring enables threat detection. Starting while already
// running is a no-op on the server.
func (c *Controller) StartMonitoring(ctx context.Context) (*models.MonitoringStatus, error) {
	return c.post(ctx, "/api/v1/monitoring/start")
}

// StopMonitoring disables threat detection.
func (c *Controller) StopMonitoring(ctx context.Context) (*models.MonitoringStatus, error) {
	return c.post(ctx, "/api/v1/monitoring/stop")
}

// MonitoringStatus reports the current monitoring state.
func (c *Controller) MonitoringStatus(ctx context.Context) (*models.MonitoringStatus, error) {
	return c.do(ctx, http.MethodGet, "/api/v1/monitoring/status")
}

func (c *Controller) post(ctx context.Context, path string) (*models.MonitoringStatus, error) {
	return c.do(ctx, http.MethodPost, path)
}

func (c *Controller) do(ctx context.Context, method, path string) (*models.MonitoringStatus, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("monitoring request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read monitoring response: %w", err)
	}

	var envelope struct {
		Status string                   `json:"status"`
		Data   *models.MonitoringStatus `json:"data"`
		Error  *models.APIError         `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode monitoring response: %w", err)
	}
	if envelope.Error != nil {
		return nil, fmt.Errorf("monitoring request failed: %s: %s", envelope.Error.Code, envelope.Error.Message)
	}
	if resp.StatusCode >= 400 || envelope.Data == nil {
		return nil, fmt.Errorf("monitoring request failed: status %d", resp.StatusCode)
	}
	return envelope.Data, nil
}
