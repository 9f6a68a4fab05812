// LogVigil - Real-Time Security Log Threat Detection
// Copyright 2026 LogVigil Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logvigil/logvigil

package ingest

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/logvigil/logvigil/internal/logging"
	"github.com/logvigil/logvigil/internal/models"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

func TestSyntheticSourceEmitsRecords(t *testing.T) {
	src := NewSyntheticSource(1000) // fast for tests
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	records := make(chan *models.LogRecord, 16)
	done := make(chan error, 1)
	go func() {
		done <- src.Run(ctx, func(rec *models.LogRecord) {
			select {
			case records <- rec:
			default:
			}
		})
	}()

	var got []*models.LogRecord
	deadline := time.After(2 * time.Second)
	for len(got) < 5 {
		select {
		case rec := <-records:
			got = append(got, rec)
		case <-deadline:
			t.Fatalf("timed out, got %d records", len(got))
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("source did not stop after cancel")
	}

	for _, rec := range got {
		if !rec.Valid() {
			t.Error("expected valid record")
		}
		if rec.ID == "" {
			t.Error("expected generated ID")
		}
		if !strings.HasPrefix(rec.SourceIP, "192.168.1.") {
			t.Errorf("expected synthetic source IP, got %q", rec.SourceIP)
		}
		if rec.UserAgent != syntheticUserAgent {
			t.Errorf("expected synthetic user agent, got %q", rec.UserAgent)
		}
		if rec.ResponseTimeMS < 10 || rec.ResponseTimeMS > 500 {
			t.Errorf("expected response time in [10,500], got %v", rec.ResponseTimeMS)
		}
	}
}

func TestSyntheticNextRecordDrawsFromCorpus(t *testing.T) {
	src := NewSyntheticSource(1)

	corpus := make(map[string]bool, len(sampleLogs))
	for _, line := range sampleLogs {
		corpus[line] = true
	}

	for i := 0; i < 100; i++ {
		rec := src.nextRecord()
		if !corpus[rec.Content] {
			t.Fatalf("record content not from corpus: %q", rec.Content)
		}
	}
}

func TestDecodeRecordJSON(t *testing.T) {
	payload := []byte(`{"id":"abc-123","content":"Failed login attempt for user admin","source_ip":"10.0.0.45"}`)

	rec, err := decodeRecord(payload)
	if err != nil {
		t.Fatalf("decodeRecord() error = %v", err)
	}
	if rec.ID != "abc-123" {
		t.Errorf("expected preserved ID, got %q", rec.ID)
	}
	if rec.Content != "Failed login attempt for user admin" {
		t.Errorf("unexpected content %q", rec.Content)
	}
	if rec.SourceIP != "10.0.0.45" {
		t.Errorf("unexpected source IP %q", rec.SourceIP)
	}
}

func TestDecodeRecordJSONWithoutID(t *testing.T) {
	payload := []byte(`{"content":"raw shipped line","source_ip":"10.0.0.1"}`)

	rec, err := decodeRecord(payload)
	if err != nil {
		t.Fatalf("decodeRecord() error = %v", err)
	}
	if rec.ID == "" {
		t.Error("expected generated ID for record without one")
	}
	if rec.Content != "raw shipped line" {
		t.Errorf("unexpected content %q", rec.Content)
	}
}

func TestDecodeRecordRawLine(t *testing.T) {
	rec, err := decodeRecord([]byte("GET /index.html HTTP/1.1 200"))
	if err != nil {
		t.Fatalf("decodeRecord() error = %v", err)
	}
	if rec.Content != "GET /index.html HTTP/1.1 200" {
		t.Errorf("unexpected content %q", rec.Content)
	}
	if rec.ID == "" {
		t.Error("expected generated ID")
	}
}

func TestDecodeRecordInvalid(t *testing.T) {
	if _, err := decodeRecord(nil); err == nil {
		t.Error("expected error for empty payload")
	}
	if _, err := decodeRecord([]byte(`{"source_ip":"10.0.0.1"}`)); err == nil {
		t.Error("expected error for JSON without content")
	}
	if _, err := decodeRecord([]byte(`{not json`)); err == nil {
		t.Error("expected error for malformed JSON")
	}
}
