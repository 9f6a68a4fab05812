// LogVigil - Real-Time Security Log Threat Detection
// Copyright 2026 LogVigil Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logvigil/logvigil

package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
)

func controlServer(t *testing.T, wantMethod, wantPath string, status int, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != wantMethod {
			t.Errorf("method = %s, want %s", r.Method, wantMethod)
		}
		if r.URL.Path != wantPath {
			t.Errorf("path = %s, want %s", r.URL.Path, wantPath)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func TestControllerStartMonitoring(t *testing.T) {
	srv := controlServer(t, http.MethodPost, "/api/v1/monitoring/start", http.StatusOK,
		`{"status":"success","data":{"state":"running","run":1,"message":"monitoring started"}}`)
	defer srv.Close()

	ctrl := NewController(srv.URL, nil)
	status, err := ctrl.StartMonitoring(context.Background())
	if err != nil {
		t.Fatalf("StartMonitoring failed: %v", err)
	}
	if status.State != "running" || status.Run != 1 {
		t.Errorf("status = %+v, want running run 1", status)
	}
}

func TestControllerStopMonitoring(t *testing.T) {
	srv := controlServer(t, http.MethodPost, "/api/v1/monitoring/stop", http.StatusOK,
		`{"status":"success","data":{"state":"stopped","run":1}}`)
	defer srv.Close()

	ctrl := NewController(srv.URL+"/", nil) // trailing slash is trimmed
	status, err := ctrl.StopMonitoring(context.Background())
	if err != nil {
		t.Fatalf("StopMonitoring failed: %v", err)
	}
	if status.State != "stopped" {
		t.Errorf("state = %q, want stopped", status.State)
	}
}

func TestControllerStatus(t *testing.T) {
	srv := controlServer(t, http.MethodGet, "/api/v1/monitoring/status", http.StatusOK,
		`{"status":"success","data":{"state":"stopped","run":3}}`)
	defer srv.Close()

	status, err := NewController(srv.URL, nil).MonitoringStatus(context.Background())
	if err != nil {
		t.Fatalf("MonitoringStatus failed: %v", err)
	}
	if status.Run != 3 {
		t.Errorf("run = %d, want 3", status.Run)
	}
}

func TestControllerSurfacesAPIError(t *testing.T) {
	errBody, _ := json.Marshal(map[string]interface{}{
		"status": "error",
		"error":  map[string]string{"code": "RATE_LIMITED", "message": "too many requests"},
	})
	srv := controlServer(t, http.MethodPost, "/api/v1/monitoring/start",
		http.StatusTooManyRequests, string(errBody))
	defer srv.Close()

	_, err := NewController(srv.URL, nil).StartMonitoring(context.Background())
	if err == nil {
		t.Fatal("expected error for API error response")
	}
}

func TestControllerServerDown(t *testing.T) {
	srv := controlServer(t, http.MethodPost, "/api/v1/monitoring/start", http.StatusOK, `{}`)
	srv.Close()

	_, err := NewController(srv.URL, nil).StartMonitoring(context.Background())
	if err == nil {
		t.Fatal("expected error when server is unreachable")
	}
}
