// LogVigil - Real-Time Security Log Threat Detection
// Copyright 2026 LogVigil Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logvigil/logvigil

package client

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/logvigil/logvigil/internal/logging"
	"github.com/logvigil/logvigil/internal/models"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	// Initialize logging for tests with discard output
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

// fakeConn feeds scripted messages to the client and records writes.
type fakeConn struct {
	mu     sync.Mutex
	queue  chan []byte
	writes [][]byte
	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{queue: make(chan []byte, 32)}
}

func (f *fakeConn) ReadMessage() ([]byte, error) {
	data, ok := <-f.queue
	if !ok {
		return nil, fmt.Errorf("connection closed")
	}
	return data, nil
}

func (f *fakeConn) WriteJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.writes = append(f.writes, data)
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.queue)
	}
	return nil
}

func (f *fakeConn) send(t *testing.T, eventType models.EventType, seq, run uint64, data interface{}) {
	t.Helper()
	// Payload fields sit at the top level next to the envelope fields.
	flat := map[string]json.RawMessage{}
	if data != nil {
		payload, err := json.Marshal(data)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		if err := json.Unmarshal(payload, &flat); err != nil {
			t.Fatalf("flatten payload: %v", err)
		}
	}
	stamp := func(key string, v interface{}) {
		raw, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal %s: %v", key, err)
		}
		flat[key] = raw
	}
	stamp("event_type", eventType)
	stamp("seq", seq)
	stamp("run", run)
	stamp("timestamp", time.Now().UTC().Format(time.RFC3339Nano))

	envelope, err := json.Marshal(flat)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	f.queue <- envelope
}

func (f *fakeConn) sendRaw(data []byte) {
	f.queue <- data
}

func (f *fakeConn) ackCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

// fakeDialer returns scripted connections, or errors, per attempt.
type fakeDialer struct {
	mu       sync.Mutex
	conns    []*fakeConn
	failN    int
	attempts int
	urls     []string
}

func (d *fakeDialer) dial(_ context.Context, rawURL string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attempts++
	d.urls = append(d.urls, rawURL)
	if d.attempts <= d.failN {
		return nil, fmt.Errorf("dial refused")
	}
	idx := d.attempts - d.failN - 1
	if idx >= len(d.conns) {
		return nil, fmt.Errorf("no more scripted connections")
	}
	return d.conns[idx], nil
}

func (d *fakeDialer) attemptCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attempts
}

func waitForState(t *testing.T, c *Client, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state = %s, want %s", c.State(), want)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newTestClient(t *testing.T, d *fakeDialer, h Handlers) *Client {
	t.Helper()
	c, err := New(Options{
		URL:            "ws://127.0.0.1:5001/api/v1/ws",
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Dialer:         d.dial,
		Handlers:       h,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNewRequiresURL(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatal("expected error for missing URL")
	}
}

func TestDispatchesTypedEvents(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{conns: []*fakeConn{conn}}

	var mu sync.Mutex
	var logs []*models.LiveLogEvent
	var alerts []*models.ThreatAlert
	var heartbeats []*models.HeartbeatEvent

	c := newTestClient(t, dialer, Handlers{
		OnLiveLog: func(ev *models.LiveLogEvent) {
			mu.Lock()
			logs = append(logs, ev)
			mu.Unlock()
		},
		OnThreatAlert: func(a *models.ThreatAlert) {
			mu.Lock()
			alerts = append(alerts, a)
			mu.Unlock()
		},
		OnHeartbeat: func(h *models.HeartbeatEvent) {
			mu.Lock()
			heartbeats = append(heartbeats, h)
			mu.Unlock()
		},
	})

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitForState(t, c, StateConnected)

	rec := models.NewLogRecord("GET /index.html HTTP/1.1 200", "192.168.1.10")
	conn.send(t, models.EventTypeLiveLog, 1, 1, models.LiveLogEvent{Log: rec})
	conn.send(t, models.EventTypeThreatAlert, 2, 1, &models.ThreatAlert{Severity: models.ThreatLevelHigh})
	conn.send(t, models.EventTypeHeartbeat, 3, 1, models.HeartbeatEvent{MonitoringActive: true, ActiveSessions: 1})

	waitFor(t, "all events dispatched", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(logs) == 1 && len(alerts) == 1 && len(heartbeats) == 1
	})

	mu.Lock()
	defer mu.Unlock()
	if logs[0].Log == nil || logs[0].Log.Content != rec.Content {
		t.Error("live log payload not delivered intact")
	}
	if alerts[0].Severity != models.ThreatLevelHigh {
		t.Errorf("alert severity = %s, want high", alerts[0].Severity)
	}
	if !heartbeats[0].MonitoringActive {
		t.Error("heartbeat monitoring_active not delivered")
	}

	c.Disconnect()
	<-c.Done()
}

func TestUnknownEventTypeIgnored(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{conns: []*fakeConn{conn}}

	var mu sync.Mutex
	var heartbeats int
	c := newTestClient(t, dialer, Handlers{
		OnHeartbeat: func(*models.HeartbeatEvent) {
			mu.Lock()
			heartbeats++
			mu.Unlock()
		},
	})

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitForState(t, c, StateConnected)

	conn.send(t, models.EventType("mystery_event"), 1, 1, map[string]string{"x": "y"})
	conn.sendRaw([]byte("not json at all"))
	conn.send(t, models.EventTypeHeartbeat, 2, 1, models.HeartbeatEvent{})

	waitFor(t, "heartbeat after junk", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return heartbeats == 1
	})

	// Unknown and undecodable messages must not be acknowledged.
	if got := c.LastAcked(); got != 2 {
		t.Errorf("LastAcked = %d, want 2", got)
	}

	c.Disconnect()
	<-c.Done()
}

func TestAcksProcessedSequences(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{conns: []*fakeConn{conn}}

	var mu sync.Mutex
	var seen int
	c := newTestClient(t, dialer, Handlers{
		OnHeartbeat: func(*models.HeartbeatEvent) {
			mu.Lock()
			seen++
			mu.Unlock()
		},
	})

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitForState(t, c, StateConnected)

	conn.send(t, models.EventTypeHeartbeat, 1, 1, models.HeartbeatEvent{})
	conn.send(t, models.EventTypeHeartbeat, 2, 1, models.HeartbeatEvent{})

	waitFor(t, "acks written", func() bool { return conn.ackCount() == 2 })
	if got := c.LastAcked(); got != 2 {
		t.Errorf("LastAcked = %d, want 2", got)
	}

	c.Disconnect()
	<-c.Done()
}

func TestGapDetectionWithinRun(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{conns: []*fakeConn{conn}}

	var mu sync.Mutex
	type gap struct{ expected, got uint64 }
	var gaps []gap

	c := newTestClient(t, dialer, Handlers{
		OnHeartbeat: func(*models.HeartbeatEvent) {},
		OnGap: func(expected, got uint64) {
			mu.Lock()
			gaps = append(gaps, gap{expected, got})
			mu.Unlock()
		},
	})

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitForState(t, c, StateConnected)

	conn.send(t, models.EventTypeHeartbeat, 1, 1, models.HeartbeatEvent{})
	conn.send(t, models.EventTypeHeartbeat, 2, 1, models.HeartbeatEvent{})
	conn.send(t, models.EventTypeHeartbeat, 5, 1, models.HeartbeatEvent{}) // 3 and 4 dropped

	waitFor(t, "gap reported", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(gaps) == 1
	})

	mu.Lock()
	if gaps[0].expected != 3 || gaps[0].got != 5 {
		t.Errorf("gap = (%d, %d), want (3, 5)", gaps[0].expected, gaps[0].got)
	}
	mu.Unlock()

	c.Disconnect()
	<-c.Done()
}

func TestRunChangeResetsSequenceTracking(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{conns: []*fakeConn{conn}}

	var mu sync.Mutex
	var gaps, heartbeats int
	c := newTestClient(t, dialer, Handlers{
		OnHeartbeat: func(*models.HeartbeatEvent) {
			mu.Lock()
			heartbeats++
			mu.Unlock()
		},
		OnGap: func(uint64, uint64) {
			mu.Lock()
			gaps++
			mu.Unlock()
		},
	})

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitForState(t, c, StateConnected)

	conn.send(t, models.EventTypeHeartbeat, 7, 1, models.HeartbeatEvent{})
	// Pipeline restarted: run bumps, sequence starts over. Not a gap.
	conn.send(t, models.EventTypeHeartbeat, 1, 2, models.HeartbeatEvent{})
	conn.send(t, models.EventTypeHeartbeat, 2, 2, models.HeartbeatEvent{})

	waitFor(t, "events after restart", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return heartbeats == 3
	})

	mu.Lock()
	if gaps != 0 {
		t.Errorf("gaps = %d, want 0 across run change", gaps)
	}
	mu.Unlock()

	c.Disconnect()
	<-c.Done()
}

func TestReconnectsAfterStreamBreaks(t *testing.T) {
	first := newFakeConn()
	second := newFakeConn()
	dialer := &fakeDialer{conns: []*fakeConn{first, second}}

	var mu sync.Mutex
	var states []State
	var heartbeats int
	c := newTestClient(t, dialer, Handlers{
		OnHeartbeat: func(*models.HeartbeatEvent) {
			mu.Lock()
			heartbeats++
			mu.Unlock()
		},
		OnStateChange: func(s State) {
			mu.Lock()
			states = append(states, s)
			mu.Unlock()
		},
	})

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitForState(t, c, StateConnected)

	first.send(t, models.EventTypeHeartbeat, 3, 1, models.HeartbeatEvent{})
	waitFor(t, "first event", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return heartbeats == 1
	})

	// Break the first connection; the client should dial again.
	_ = first.Close()
	waitFor(t, "second dial", func() bool { return dialer.attemptCount() == 2 })
	waitForState(t, c, StateConnected)

	second.send(t, models.EventTypeHeartbeat, 4, 1, models.HeartbeatEvent{})
	waitFor(t, "event on new connection", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return heartbeats == 2
	})

	// The reconnect URL should carry the last acknowledged sequence.
	dialer.mu.Lock()
	reconnectURL := dialer.urls[1]
	dialer.mu.Unlock()
	if !strings.Contains(reconnectURL, "since=3") {
		t.Errorf("reconnect URL = %q, want since=3", reconnectURL)
	}

	mu.Lock()
	sawDisconnected := false
	for _, s := range states {
		if s == StateDisconnected {
			sawDisconnected = true
		}
	}
	mu.Unlock()
	if !sawDisconnected {
		t.Error("expected a Disconnected transition between connections")
	}

	c.Disconnect()
	<-c.Done()
}

func TestBacksOffBeforeRedialingBrokenConnection(t *testing.T) {
	first := newFakeConn()
	second := newFakeConn()
	dialer := &fakeDialer{conns: []*fakeConn{first, second}}

	c, err := New(Options{
		URL:            "ws://127.0.0.1:5001/api/v1/ws",
		InitialBackoff: 150 * time.Millisecond,
		MaxBackoff:     time.Second,
		Dialer:         dialer.dial,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitForState(t, c, StateConnected)

	broken := time.Now()
	_ = first.Close()

	waitFor(t, "second dial", func() bool { return dialer.attemptCount() == 2 })
	if elapsed := time.Since(broken); elapsed < 100*time.Millisecond {
		t.Errorf("redialed after %v, want a backoff wait first", elapsed)
	}
	waitForState(t, c, StateConnected)

	c.Disconnect()
	<-c.Done()
}

func TestDisconnectDuringRedialBackoff(t *testing.T) {
	first := newFakeConn()
	dialer := &fakeDialer{conns: []*fakeConn{first}}

	c, err := New(Options{
		URL:            "ws://127.0.0.1:5001/api/v1/ws",
		InitialBackoff: time.Hour,
		MaxBackoff:     time.Hour,
		Dialer:         dialer.dial,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitForState(t, c, StateConnected)

	// Break the stream, then disconnect while the client is waiting out
	// the backoff. The loop must stop without another dial.
	_ = first.Close()
	waitForState(t, c, StateDisconnected)
	c.Disconnect()

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop during backoff wait")
	}
	if got := dialer.attemptCount(); got != 1 {
		t.Errorf("dial attempts = %d, want 1", got)
	}
}

func TestClosesAfterRetryBudgetExhausted(t *testing.T) {
	dialer := &fakeDialer{failN: 100}

	c, err := New(Options{
		URL:            "ws://127.0.0.1:5001/api/v1/ws",
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Dialer:         dialer.dial,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("client never gave up")
	}

	if got := c.State(); got != StateClosed {
		t.Errorf("state = %s, want closed", got)
	}
	if got := dialer.attemptCount(); got != 3 {
		t.Errorf("dial attempts = %d, want 3", got)
	}

	// A closed client refuses to reconnect.
	if err := c.Connect(context.Background()); err == nil {
		t.Error("Connect on closed client should fail")
	}
}

func TestDisconnectAlwaysWins(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{conns: []*fakeConn{conn}}

	c := newTestClient(t, dialer, Handlers{})
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitForState(t, c, StateConnected)

	c.Disconnect()

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop after Disconnect")
	}

	if got := c.State(); got != StateClosed {
		t.Errorf("state = %s, want closed", got)
	}
	if got := dialer.attemptCount(); got != 1 {
		t.Errorf("dial attempts after Disconnect = %d, want 1", got)
	}

	// Disconnect is idempotent.
	c.Disconnect()
}

func TestStateStrings(t *testing.T) {
	cases := map[State]string{
		StateDisconnected: "disconnected",
		StateConnecting:   "connecting",
		StateConnected:    "connected",
		StateClosed:       "closed",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", s, got, want)
		}
	}
}
