// LogVigil - Real-Time Security Log Threat Detection
// Copyright 2026 LogVigil Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logvigil/logvigil

package ingest

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"golang.org/x/time/rate"

	"github.com/logvigil/logvigil/internal/logging"
	"github.com/logvigil/logvigil/internal/models"
)

// sampleLogs is the rotating corpus of the synthetic feed. It mixes
// benign traffic with the attack families the scorer recognizes so a
// demo deployment produces a realistic alert stream.
var sampleLogs = []string{
	"GET /index.html HTTP/1.1 200 192.168.1.10",
	"POST /login HTTP/1.1 200 192.168.1.15",
	"GET /admin HTTP/1.1 404 192.168.1.100",
	"SELECT * FROM users WHERE id=1; DROP TABLE users;--",
	"Failed login attempt for user admin from 192.168.1.50",
	"Normal web request GET /api/data HTTP/1.1 200",
	"POST /upload HTTP/1.1 200 application/json",
	"Multiple failed SSH attempts from 10.0.0.45",
	"Malicious file upload attempt: exploit.php",
	"User successfully logged in: john.doe",
	`<script>alert("XSS attack")</script>`,
	`SELECT password FROM admin_users WHERE username="admin"`,
	"../../../etc/passwd directory traversal attempt",
	"Normal user activity: file download completed",
	"GET /api/users HTTP/1.1 200 192.168.1.25",
	"Database backup completed successfully",
	"Firewall blocked suspicious traffic from 10.0.0.99",
	"System health check passed",
	"New user registration: alice@company.com",
	"Session expired for user: bob123",
}

var (
	syntheticMethods  = []string{"GET", "POST", "PUT", "DELETE"}
	syntheticStatuses = []int{200, 404, 401, 403, 500}
)

const syntheticUserAgent = "Mozilla/5.0 (compatible; WebBot/1.0)"

// SyntheticSource emits sample log records at a fixed rate. It exists so
// the full pipeline (scoring, alerting, broadcast) can run without any
// external log transport.
type SyntheticSource struct {
	limiter *rate.Limiter
	rng     *rand.Rand
}

// NewSyntheticSource creates a source emitting perSecond records per
// second with a burst of one.
func NewSyntheticSource(perSecond float64) *SyntheticSource {
	return &SyntheticSource{
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
		//nolint:gosec // synthetic demo data, not security-sensitive
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Name identifies the source in logs.
func (s *SyntheticSource) Name() string {
	return "synthetic"
}

// Run emits records until ctx is canceled.
func (s *SyntheticSource) Run(ctx context.Context, emit func(*models.LogRecord)) error {
	logging.Info().Float64("rate_per_second", float64(s.limiter.Limit())).Msg("synthetic source started")

	for {
		if err := s.limiter.Wait(ctx); err != nil {
			logging.Info().Msg("synthetic source stopped")
			return err
		}
		emit(s.nextRecord())
	}
}

// nextRecord picks a sample entry and decorates it with randomized
// request metadata, mirroring what a real access-log shipper would carry.
func (s *SyntheticSource) nextRecord() *models.LogRecord {
	content := sampleLogs[s.rng.Intn(len(sampleLogs))]
	sourceIP := fmt.Sprintf("192.168.1.%d", 10+s.rng.Intn(191))

	rec := models.NewLogRecord(content, sourceIP)
	rec.UserAgent = syntheticUserAgent
	rec.Method = syntheticMethods[s.rng.Intn(len(syntheticMethods))]
	rec.StatusCode = syntheticStatuses[s.rng.Intn(len(syntheticStatuses))]
	rec.ResponseTimeMS = float64(10 + s.rng.Intn(491))
	return rec
}
