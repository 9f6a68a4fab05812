// LogVigil - Real-Time Security Log Threat Detection
// Copyright 2026 LogVigil Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logvigil/logvigil

package hub

import (
	"context"
	"io"
	"testing"
	"time"

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

// setupHub creates and starts a hub with a long heartbeat so ticks do not
// interfere with sequence assertions.
func setupHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	h := NewHub(time.Hour, 4, 16)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = h.RunWithContext(ctx) }()
	time.Sleep(10 * time.Millisecond)
	return h, cancel
}

// createTestSession creates a session without a live connection.
func createTestSession(h *Hub, since uint64) *Session {
	return &Session{
		id:    sessionIDCounter.Add(1),
		hub:   h,
		send:  make(chan *models.StreamEvent, h.queueCapacity),
		since: since,
	}
}

// registerSession registers a session and waits for the hub loop.
func registerSession(h *Hub, sess *Session) {
	h.Register <- sess
	time.Sleep(20 * time.Millisecond)
}

func recvEvent(t *testing.T, sess *Session) *models.StreamEvent {
	t.Helper()
	select {
	case ev := <-sess.send:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestNewHub(t *testing.T) {
	h := NewHub(20*time.Second, 256, 256)

	if h == nil {
		t.Fatal("NewHub returned nil")
	}
	if h.sessions == nil || h.broadcast == nil || h.Register == nil || h.Unregister == nil {
		t.Fatal("hub channels not initialized")
	}
	if h.GetSessionCount() != 0 {
		t.Errorf("expected 0 sessions, got %d", h.GetSessionCount())
	}
	if seq, run := h.CurrentSequence(); seq != 0 || run != 1 {
		t.Errorf("expected seq 0 run 1, got seq %d run %d", seq, run)
	}
}

func TestRegisterUnregister(t *testing.T) {
	h, cancel := setupHub(t)
	defer cancel()

	sess := createTestSession(h, 0)
	registerSession(h, sess)

	if got := h.GetSessionCount(); got != 1 {
		t.Errorf("expected 1 session after register, got %d", got)
	}

	h.Unregister <- sess
	time.Sleep(20 * time.Millisecond)

	if got := h.GetSessionCount(); got != 0 {
		t.Errorf("expected 0 sessions after unregister, got %d", got)
	}

	// The hub closes the send channel on unregister.
	select {
	case _, ok := <-sess.send:
		if ok {
			t.Error("expected closed send channel")
		}
	default:
		t.Error("expected send channel to be closed")
	}
}

func TestBroadcastStampsMonotonicSequence(t *testing.T) {
	h, cancel := setupHub(t)
	defer cancel()

	sess := createTestSession(h, 0)
	registerSession(h, sess)

	rec := models.NewLogRecord("GET /index.html HTTP/1.1 200", "")
	analysis := &models.AnalysisResult{ThreatLevel: models.ThreatLevelNone}

	h.BroadcastLiveLog(rec, analysis)
	h.BroadcastLiveLog(rec, analysis)
	h.BroadcastLiveLog(rec, analysis)

	for want := uint64(1); want <= 3; want++ {
		ev := recvEvent(t, sess)
		if ev.Seq != want {
			t.Errorf("expected seq %d, got %d", want, ev.Seq)
		}
		if ev.Run != 1 {
			t.Errorf("expected run 1, got %d", ev.Run)
		}
		if ev.EventType != models.EventTypeLiveLog {
			t.Errorf("expected live_log, got %s", ev.EventType)
		}
		if ev.Timestamp.IsZero() {
			t.Error("expected stamped timestamp")
		}
	}
}

func TestBroadcastThreatAlert(t *testing.T) {
	h, cancel := setupHub(t)
	defer cancel()

	sess := createTestSession(h, 0)
	registerSession(h, sess)

	rec := models.NewLogRecord("SELECT * FROM users; DROP TABLE users;--", "")
	analysis := &models.AnalysisResult{
		ThreatDetected: true,
		ThreatTypes:    []string{"sql_injection"},
		ThreatLevel:    models.ThreatLevelHigh,
		ThreatScore:    0.8,
	}
	alert := models.NewThreatAlert(rec, analysis)

	h.BroadcastThreatAlert(alert)

	ev := recvEvent(t, sess)
	if ev.EventType != models.EventTypeThreatAlert {
		t.Fatalf("expected threat_alert, got %s", ev.EventType)
	}
	got, ok := ev.Data.(*models.ThreatAlert)
	if !ok {
		t.Fatalf("expected *models.ThreatAlert payload, got %T", ev.Data)
	}
	if got.Severity != models.ThreatLevelHigh {
		t.Errorf("expected high alert, got %s", got.Severity)
	}
}

func TestSlowSessionDropsOldestEvent(t *testing.T) {
	h, cancel := setupHub(t) // queue capacity 4
	defer cancel()

	sess := createTestSession(h, 0)
	registerSession(h, sess)

	rec := models.NewLogRecord("entry", "")
	analysis := &models.AnalysisResult{ThreatLevel: models.ThreatLevelNone}

	// Nothing drains sess.send, so events 1..4 fill the queue and each
	// further event evicts the oldest.
	for i := 0; i < 6; i++ {
		h.BroadcastLiveLog(rec, analysis)
	}
	time.Sleep(50 * time.Millisecond)

	if got := sess.Dropped(); got != 2 {
		t.Errorf("expected 2 dropped events, got %d", got)
	}
	if got := h.DroppedTotal(); got != 2 {
		t.Errorf("expected hub dropped total 2, got %d", got)
	}

	// The survivors are the NEWEST events: 3, 4, 5, 6.
	for want := uint64(3); want <= 6; want++ {
		ev := recvEvent(t, sess)
		if ev.Seq != want {
			t.Errorf("expected surviving seq %d, got %d", want, ev.Seq)
		}
	}
}

func TestStartRunResetsSequenceAndBumpsRun(t *testing.T) {
	h, cancel := setupHub(t)
	defer cancel()

	sess := createTestSession(h, 0)
	registerSession(h, sess)

	rec := models.NewLogRecord("entry", "")
	analysis := &models.AnalysisResult{ThreatLevel: models.ThreatLevelNone}

	h.BroadcastLiveLog(rec, analysis)
	ev := recvEvent(t, sess)
	if ev.Seq != 1 || ev.Run != 1 {
		t.Fatalf("expected seq 1 run 1, got seq %d run %d", ev.Seq, ev.Run)
	}

	run := h.StartRun()
	if run != 2 {
		t.Errorf("expected run 2 after restart, got %d", run)
	}

	h.BroadcastLiveLog(rec, analysis)
	ev = recvEvent(t, sess)
	if ev.Seq != 1 || ev.Run != 2 {
		t.Errorf("expected seq 1 run 2 after restart, got seq %d run %d", ev.Seq, ev.Run)
	}
}

func TestReplayOnReconnect(t *testing.T) {
	h, cancel := setupHub(t)
	defer cancel()

	first := createTestSession(h, 0)
	registerSession(h, first)

	rec := models.NewLogRecord("entry", "")
	analysis := &models.AnalysisResult{ThreatLevel: models.ThreatLevelNone}

	for i := 0; i < 3; i++ {
		h.BroadcastLiveLog(rec, analysis)
	}
	time.Sleep(50 * time.Millisecond)

	// Reconnecting subscriber acked seq 1; it should receive 2 and 3.
	second := createTestSession(h, 1)
	registerSession(h, second)

	ev := recvEvent(t, second)
	if ev.Seq != 2 {
		t.Errorf("expected replayed seq 2, got %d", ev.Seq)
	}
	ev = recvEvent(t, second)
	if ev.Seq != 3 {
		t.Errorf("expected replayed seq 3, got %d", ev.Seq)
	}

	select {
	case ev := <-second.send:
		t.Errorf("unexpected extra event seq %d", ev.Seq)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestReplaySkipsPreviousRun(t *testing.T) {
	h, cancel := setupHub(t)
	defer cancel()

	rec := models.NewLogRecord("entry", "")
	analysis := &models.AnalysisResult{ThreatLevel: models.ThreatLevelNone}

	first := createTestSession(h, 0)
	registerSession(h, first)
	h.BroadcastLiveLog(rec, analysis)
	time.Sleep(50 * time.Millisecond)

	// Restart clears the replay window.
	h.StartRun()

	second := createTestSession(h, 1)
	registerSession(h, second)

	select {
	case ev := <-second.send:
		t.Errorf("expected no replay across runs, got seq %d run %d", ev.Seq, ev.Run)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHeartbeatCarriesMonitoringState(t *testing.T) {
	h := NewHub(20*time.Millisecond, 4, 16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = h.RunWithContext(ctx) }()

	sess := createTestSession(h, 0)
	h.Register <- sess
	h.SetMonitoringActive(true)

	ev := recvEvent(t, sess)
	if ev.EventType != models.EventTypeHeartbeat {
		t.Fatalf("expected heartbeat, got %s", ev.EventType)
	}
	if ev.Seq == 0 {
		t.Error("expected heartbeat to carry a sequence number")
	}
	hb, ok := ev.Data.(models.HeartbeatEvent)
	if !ok {
		t.Fatalf("expected HeartbeatEvent payload, got %T", ev.Data)
	}
	if !hb.MonitoringActive {
		t.Error("expected monitoring_active true in heartbeat")
	}
}

func TestRunWithContextShutdownClosesSessions(t *testing.T) {
	h := NewHub(time.Hour, 4, 16)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- h.RunWithContext(ctx) }()
	time.Sleep(10 * time.Millisecond)

	sess := createTestSession(h, 0)
	registerSession(h, sess)

	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("hub did not stop after context cancel")
	}

	if got := h.GetSessionCount(); got != 0 {
		t.Errorf("expected all sessions closed, got %d", got)
	}
}

func TestReplayRing(t *testing.T) {
	r := newReplayRing(3)

	for seq := uint64(1); seq <= 5; seq++ {
		r.push(&models.StreamEvent{Seq: seq, Run: 1})
	}
	if r.len() != 3 {
		t.Fatalf("expected ring len 3, got %d", r.len())
	}

	// Only 3, 4, 5 survive; asking after seq 2 returns all of them.
	got := r.eventsAfter(2, 1)
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	for i, ev := range got {
		if want := uint64(3 + i); ev.Seq != want {
			t.Errorf("expected seq %d at index %d, got %d", want, i, ev.Seq)
		}
	}

	if got := r.eventsAfter(2, 2); got != nil {
		t.Errorf("expected no events for other run, got %d", len(got))
	}

	r.clear()
	if r.len() != 0 {
		t.Errorf("expected empty ring after clear, got %d", r.len())
	}
}

func TestFanOutToMultipleSessions(t *testing.T) {
	// Queue capacity 16 so all ten events buffer without a concurrent reader.
	h := NewHub(time.Hour, 16, 16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = h.RunWithContext(ctx) }()
	time.Sleep(10 * time.Millisecond)

	s1 := createTestSession(h, 0)
	s2 := createTestSession(h, 0)
	s3 := createTestSession(h, 0)
	registerSession(h, s1)
	registerSession(h, s2)
	registerSession(h, s3)

	rec := models.NewLogRecord("entry", "")
	analysis := &models.AnalysisResult{ThreatLevel: models.ThreatLevelNone}

	for i := 0; i < 5; i++ {
		h.BroadcastLiveLog(rec, analysis)
	}
	time.Sleep(20 * time.Millisecond)

	// A subscriber leaving mid-stream must not disturb the others.
	h.Unregister <- s2
	time.Sleep(20 * time.Millisecond)

	for i := 0; i < 5; i++ {
		h.BroadcastLiveLog(rec, analysis)
	}
	time.Sleep(20 * time.Millisecond)

	for name, sess := range map[string]*Session{"first": s1, "third": s3} {
		for want := uint64(1); want <= 10; want++ {
			ev := recvEvent(t, sess)
			if ev.Seq != want {
				t.Errorf("%s session: expected seq %d, got %d", name, want, ev.Seq)
			}
			if ev.Run != 1 {
				t.Errorf("%s session: expected run 1, got %d", name, ev.Run)
			}
		}
		select {
		case ev := <-sess.send:
			t.Errorf("%s session: unexpected extra event seq %d", name, ev.Seq)
		default:
		}
	}

	// The unregistered session got the first five, then a closed channel.
	for want := uint64(1); want <= 5; want++ {
		ev := recvEvent(t, s2)
		if ev.Seq != want {
			t.Errorf("unregistered session: expected seq %d, got %d", want, ev.Seq)
		}
	}
	if _, ok := <-s2.send; ok {
		t.Error("expected closed send channel for unregistered session")
	}
}

func TestSlowSessionDoesNotAffectOthers(t *testing.T) {
	h, cancel := setupHub(t) // queue capacity 4
	defer cancel()

	// One session with headroom for the whole burst, one that sticks to
	// the hub's small per-session queue and never reads.
	roomy := &Session{
		id:   sessionIDCounter.Add(1),
		hub:  h,
		send: make(chan *models.StreamEvent, 16),
	}
	slow := createTestSession(h, 0)
	registerSession(h, roomy)
	registerSession(h, slow)

	rec := models.NewLogRecord("entry", "")
	analysis := &models.AnalysisResult{ThreatLevel: models.ThreatLevelNone}
	for i := 0; i < 10; i++ {
		h.BroadcastLiveLog(rec, analysis)
	}
	time.Sleep(50 * time.Millisecond)

	// Every event arrived in order despite the slow session overflowing
	// its queue alongside.
	for want := uint64(1); want <= 10; want++ {
		ev := recvEvent(t, roomy)
		if ev.Seq != want {
			t.Errorf("expected seq %d, got %d", want, ev.Seq)
		}
	}

	if got := roomy.Dropped(); got != 0 {
		t.Errorf("expected 0 dropped events, got %d", got)
	}
	if got := slow.Dropped(); got != 6 {
		t.Errorf("expected 6 dropped events on slow session, got %d", got)
	}

	// The slow session kept the newest four.
	for want := uint64(7); want <= 10; want++ {
		ev := recvEvent(t, slow)
		if ev.Seq != want {
			t.Errorf("expected surviving seq %d, got %d", want, ev.Seq)
		}
	}
}
