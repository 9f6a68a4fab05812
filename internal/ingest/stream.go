// LogVigil - Real-Time Security Log Threat Detection
// Copyright 2026 LogVigil Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logvigil/logvigil

package ingest

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/logvigil/logvigil/internal/config"
)

// StreamManager handles JetStream stream lifecycle for the log subjects.
type StreamManager struct {
	js  jetstream.JetStream
	nc  *nats.Conn
	cfg config.NATSConfig
}

// NewStreamManager creates a stream manager over an existing connection.
func NewStreamManager(nc *nats.Conn, cfg config.NATSConfig) (*StreamManager, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	return &StreamManager{js: js, nc: nc, cfg: cfg}, nil
}

// EnsureStream creates or updates the log stream so consumers can bind
// to it regardless of deployment order.
func (m *StreamManager) EnsureStream(ctx context.Context) (jetstream.Stream, error) {
	streamCfg := jetstream.StreamConfig{
		Name:      m.cfg.StreamName,
		Subjects:  m.cfg.Subjects,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    m.cfg.MaxAge,
		Storage:   jetstream.FileStorage,
		// Discard old messages when limits reached; the pipeline only
		// cares about fresh traffic.
		Discard: jetstream.DiscardOld,
	}

	// Try to get existing stream
	_, err := m.js.Stream(ctx, m.cfg.StreamName)
	if err == nil {
		stream, err := m.js.UpdateStream(ctx, streamCfg)
		if err != nil {
			return nil, fmt.Errorf("update stream: %w", err)
		}
		return stream, nil
	}

	stream, err := m.js.CreateStream(ctx, streamCfg)
	if err != nil {
		return nil, fmt.Errorf("create stream: %w", err)
	}

	return stream, nil
}

// GetStreamInfo returns current stream state.
func (m *StreamManager) GetStreamInfo(ctx context.Context) (*jetstream.StreamInfo, error) {
	stream, err := m.js.Stream(ctx, m.cfg.StreamName)
	if err != nil {
		return nil, fmt.Errorf("get stream: %w", err)
	}
	return stream.Info(ctx)
}
