// LogVigil - Real-Time Security Log Threat Detection
// Copyright 2026 LogVigil Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logvigil/logvigil

// Package client implements a subscriber for the event stream with
// automatic reconnection, typed event dispatch, and sequence gap
// detection. It is used by headless consumers (dashboards, SIEM
// forwarders) and by integration tests.
package client

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/logvigil/logvigil/internal/logging"
	"github.com/logvigil/logvigil/internal/models"
)

// State is the client connection lifecycle state.
//
// Transitions:
//
//	Disconnected -> Connecting        (Connect, or automatic retry)
//	Connecting   -> Connected         (dial succeeded)
//	Connecting   -> Disconnected      (dial failed, retries remain)
//	Connected    -> Disconnected      (stream broke, retries remain)
//	any          -> Closed            (retries exhausted, or Disconnect)
//
// Closed is terminal: a closed client never dials again.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "disconnected"
	}
}

// Conn is the minimal connection surface the client needs. Satisfied by
// *websocket.Conn through wsConn; tests inject fakes.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteJSON(v interface{}) error
	Close() error
}

// Dialer opens a connection to the stream endpoint.
type Dialer func(ctx context.Context, rawURL string) (Conn, error)

// wsConn adapts *websocket.Conn to Conn.
type wsConn struct {
	conn *websocket.Conn
}

func (w *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := w.conn.ReadMessage()
	return data, err
}

func (w *wsConn) WriteJSON(v interface{}) error {
	return w.conn.WriteJSON(v)
}

func (w *wsConn) Close() error {
	return w.conn.Close()
}

func defaultDialer(ctx context.Context, rawURL string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return &wsConn{conn: conn}, nil
}

// Default reconnection parameters. Backoff doubles per consecutive
// failure and is capped; after MaxRetries consecutive failures the
// client closes permanently.
const (
	DefaultMaxRetries     = 5
	DefaultInitialBackoff = time.Second
	DefaultMaxBackoff     = 30 * time.Second
)

// Handlers carries the subscriber's typed event callbacks. Nil handlers
// are skipped. Callbacks run on the client's read goroutine; slow
// handlers delay subsequent events for this subscriber only.
type Handlers struct {
	OnLiveLog     func(*models.LiveLogEvent)
	OnThreatAlert func(*models.ThreatAlert)
	OnHeartbeat   func(*models.HeartbeatEvent)

	// OnGap fires when sequence numbers within a run skip ahead,
	// meaning the server dropped events for this subscriber.
	OnGap func(expected, got uint64)

	// OnStateChange fires on every lifecycle transition.
	OnStateChange func(State)
}

// Options configures a Client.
type Options struct {
	// URL is the stream endpoint (ws://host/api/v1/ws).
	URL string

	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// Dialer overrides the websocket dialer; tests use this.
	Dialer Dialer

	Handlers Handlers
}

// Client is a reconnecting stream subscriber. Safe for concurrent use of
// Disconnect/State/LastAcked alongside a running Connect.
type Client struct {
	opts Options

	state     atomic.Int32
	lastSeq   atomic.Uint64
	lastRun   atomic.Uint64
	lastAcked atomic.Uint64

	mu     sync.Mutex
	conn   Conn
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a client with defaults applied.
func New(opts Options) (*Client, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("stream URL required")
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = DefaultInitialBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = DefaultMaxBackoff
	}
	if opts.Dialer == nil {
		opts.Dialer = defaultDialer
	}

	c := &Client{opts: opts, done: make(chan struct{})}
	c.state.Store(int32(StateDisconnected))
	return c, nil
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// LastAcked returns the highest sequence number acknowledged so far.
func (c *Client) LastAcked() uint64 {
	return c.lastAcked.Load()
}

// Connect starts the connection loop and returns immediately. The loop
// runs until the context is canceled, Disconnect is called, or the retry
// budget is exhausted; Done() closes when it stops.
func (c *Client) Connect(ctx context.Context) error {
	if c.State() == StateClosed {
		return fmt.Errorf("client is closed")
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	go c.run(runCtx)
	return nil
}

// Disconnect permanently closes the client. It always wins over the
// reconnection loop: no further dial attempts happen after it returns.
func (c *Client) Disconnect() {
	c.setState(StateClosed)

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.mu.Unlock()
}

// Done returns a channel closed when the connection loop has stopped.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) run(ctx context.Context) {
	defer close(c.done)

	failures := 0
	backoff := c.opts.InitialBackoff

	for {
		if ctx.Err() != nil || c.State() == StateClosed {
			c.setState(StateClosed)
			return
		}

		c.setState(StateConnecting)
		conn, err := c.opts.Dialer(ctx, c.streamURL())
		if err != nil {
			failures++
			logging.Warn().
				Err(err).
				Int("attempt", failures).
				Int("max_retries", c.opts.MaxRetries).
				Msg("stream dial failed")

			if failures >= c.opts.MaxRetries {
				logging.Error().Int("attempts", failures).Msg("retry budget exhausted, closing client")
				c.setState(StateClosed)
				return
			}

			c.setState(StateDisconnected)
			select {
			case <-ctx.Done():
				c.setState(StateClosed)
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > c.opts.MaxBackoff {
				backoff = c.opts.MaxBackoff
			}
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()

		// A successful dial resets the retry budget.
		failures = 0
		backoff = c.opts.InitialBackoff
		c.setState(StateConnected)

		c.readLoop(ctx, conn)

		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		_ = conn.Close()

		if ctx.Err() != nil || c.State() == StateClosed {
			c.setState(StateClosed)
			return
		}
		c.setState(StateDisconnected)

		// A broken established connection waits out one backoff interval
		// before redialing; hammering a server that just dropped us only
		// makes its bad moment worse.
		select {
		case <-ctx.Done():
			c.setState(StateClosed)
			return
		case <-time.After(backoff):
		}
	}
}

// streamURL appends the last acknowledged sequence so the server can
// replay missed events from the current run.
func (c *Client) streamURL() string {
	acked := c.lastAcked.Load()
	if acked == 0 {
		return c.opts.URL
	}

	u, err := url.Parse(c.opts.URL)
	if err != nil {
		return c.opts.URL
	}
	q := u.Query()
	q.Set("since", fmt.Sprintf("%d", acked))
	u.RawQuery = q.Encode()
	return u.String()
}

// readLoop consumes events until the connection breaks or ctx is canceled.
func (c *Client) readLoop(ctx context.Context, conn Conn) {
	for {
		if ctx.Err() != nil || c.State() == StateClosed {
			return
		}

		data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && c.State() != StateClosed {
				logging.Warn().Err(err).Msg("stream read failed")
			}
			return
		}

		c.handleMessage(conn, data)
	}
}

// handleMessage decodes one envelope, runs gap detection, dispatches to
// the typed handler, and acknowledges the sequence. Unknown event types
// are logged and skipped; a malformed payload never kills the stream.
func (c *Client) handleMessage(conn Conn, data []byte) {
	var ev models.RawStreamEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		logging.Warn().Err(err).Msg("dropping undecodable stream message")
		return
	}

	c.trackSequence(&ev)

	// Payload fields share the top level with the envelope, so the same
	// bytes decode into the concrete event type.
	h := c.opts.Handlers
	switch ev.EventType {
	case models.EventTypeLiveLog:
		if h.OnLiveLog != nil {
			var payload models.LiveLogEvent
			if err := json.Unmarshal(data, &payload); err != nil {
				logging.Warn().Err(err).Msg("malformed live_log payload")
				return
			}
			h.OnLiveLog(&payload)
		}
	case models.EventTypeThreatAlert:
		if h.OnThreatAlert != nil {
			var payload models.ThreatAlert
			if err := json.Unmarshal(data, &payload); err != nil {
				logging.Warn().Err(err).Msg("malformed threat_alert payload")
				return
			}
			h.OnThreatAlert(&payload)
		}
	case models.EventTypeHeartbeat:
		if h.OnHeartbeat != nil {
			var payload models.HeartbeatEvent
			if err := json.Unmarshal(data, &payload); err != nil {
				logging.Warn().Err(err).Msg("malformed heartbeat payload")
				return
			}
			h.OnHeartbeat(&payload)
		}
	default:
		logging.Debug().
			Str("event_type", string(ev.EventType)).
			Uint64("seq", ev.Seq).
			Msg("ignoring unknown event type")
		return
	}

	c.ack(conn, ev.Seq)
}

// trackSequence detects gaps within a run. A run change is a restart,
// not a gap: the counters reset.
func (c *Client) trackSequence(ev *models.RawStreamEvent) {
	if ev.Seq == 0 {
		return
	}

	prevRun := c.lastRun.Load()
	if ev.Run != prevRun {
		c.lastRun.Store(ev.Run)
		c.lastSeq.Store(ev.Seq)
		return
	}

	prevSeq := c.lastSeq.Load()
	if prevSeq > 0 && ev.Seq > prevSeq+1 && c.opts.Handlers.OnGap != nil {
		c.opts.Handlers.OnGap(prevSeq+1, ev.Seq)
	}
	if ev.Seq > prevSeq {
		c.lastSeq.Store(ev.Seq)
	}
}

// ack reports the processed sequence back to the server, best-effort.
func (c *Client) ack(conn Conn, seq uint64) {
	if seq == 0 {
		return
	}
	for {
		cur := c.lastAcked.Load()
		if seq <= cur || c.lastAcked.CompareAndSwap(cur, seq) {
			break
		}
	}

	if err := conn.WriteJSON(map[string]interface{}{"type": "ack", "seq": seq}); err != nil {
		logging.Debug().Err(err).Msg("failed to send ack")
	}
}

func (c *Client) setState(s State) {
	// Closed is terminal; never leave it.
	for {
		cur := State(c.state.Load())
		if cur == s {
			return
		}
		if cur == StateClosed && s != StateClosed {
			return
		}
		if c.state.CompareAndSwap(int32(cur), int32(s)) {
			if c.opts.Handlers.OnStateChange != nil {
				c.opts.Handlers.OnStateChange(s)
			}
			return
		}
	}
}
