// LogVigil - Real-Time Security Log Threat Detection
// Copyright 2026 LogVigil Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logvigil/logvigil

// Package api provides the HTTP control plane and the WebSocket stream
// endpoint. Routing uses Chi with production-hardened middleware from the
// Chi ecosystem (go-chi/cors, go-chi/httprate).
//
// Endpoints (all under /api/v1):
//
//	POST /monitoring/start   - start the detection pipeline (idempotent)
//	POST /monitoring/stop    - stop the detection pipeline (idempotent)
//	GET  /monitoring/status  - current pipeline state and run number
//	POST /analyze            - score one log entry without broadcasting
//	GET  /alerts             - persisted alerts, newest first, paginated
//	POST /alerts/{id}/ack    - acknowledge one alert
//	GET  /stats              - pipeline counters and session info
//	GET  /health             - overall health (also /health/live, /health/ready)
//	GET  /ws                 - WebSocket stream upgrade (?since= for replay)
//
// Prometheus metrics are served on /metrics outside the /api/v1 tree.
//
// All JSON endpoints respond with models.APIResponse; errors carry a
// structured models.APIError with a stable machine-readable code.
package api
