// LogVigil - Real-Time Security Log Threat Detection
// Copyright 2026 LogVigil Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logvigil/logvigil

package ingest

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"

	"github.com/logvigil/logvigil/internal/config"
	"github.com/logvigil/logvigil/internal/logging"
	"github.com/logvigil/logvigil/internal/metrics"
	"github.com/logvigil/logvigil/internal/models"
)

// NATSSource consumes log records from JetStream via Watermill. Each
// message payload is either a JSON-encoded LogRecord or a raw log line;
// raw lines are wrapped in a fresh record.
type NATSSource struct {
	subscriber message.Subscriber
	cfg        config.NATSConfig
	logger     watermill.LoggerAdapter
}

// NewNATSSource creates a durable JetStream subscriber. The subscriber
// is configured for queue-based load balancing across multiple detector
// instances.
func NewNATSSource(cfg config.NATSConfig) (*NATSSource, error) {
	logger := watermill.NewSlogLogger(logging.NewSlogLogger())

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS source disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS source reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}

	subOpts := []natsgo.SubOpt{
		natsgo.AckWait(cfg.AckWaitTimeout),
		// Deliver new messages only; historical replay belongs to the
		// hub's replay ring, not the transport.
		natsgo.DeliverNew(),
	}

	// When StreamName is configured, bind to the existing stream. This
	// is required for wildcard subjects (e.g., "logs.>") because NATS
	// stream names cannot contain wildcards, and AutoProvision would
	// fail trying to create a stream named after the wildcard topic.
	autoProvision := true
	if cfg.StreamName != "" {
		subOpts = append(subOpts, natsgo.BindStream(cfg.StreamName))
		autoProvision = false
	}

	wmConfig := wmNats.SubscriberConfig{
		URL:              cfg.URL,
		QueueGroupPrefix: cfg.QueueGroup,
		SubscribersCount: 1,
		AckWaitTimeout:   cfg.AckWaitTimeout,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:         false,
			AutoProvision:    autoProvision,
			AckAsync:         false,
			SubscribeOptions: subOpts,
			DurablePrefix:    cfg.DurableName,
		},
	}

	sub, err := wmNats.NewSubscriber(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill subscriber: %w", err)
	}

	return &NATSSource{
		subscriber: sub,
		cfg:        cfg,
		logger:     logger,
	}, nil
}

// Name identifies the source in logs.
func (s *NATSSource) Name() string {
	return "nats"
}

// Run subscribes to every configured subject and emits decoded records
// until ctx is canceled.
func (s *NATSSource) Run(ctx context.Context, emit func(*models.LogRecord)) error {
	var wg sync.WaitGroup

	for _, subject := range s.cfg.Subjects {
		messages, err := s.subscriber.Subscribe(ctx, subject)
		if err != nil {
			return fmt.Errorf("subscribe to %s: %w", subject, err)
		}

		wg.Add(1)
		go func(subject string, messages <-chan *message.Message) {
			defer wg.Done()
			s.consume(ctx, subject, messages, emit)
		}(subject, messages)
	}

	logging.Info().
		Str("url", s.cfg.URL).
		Strs("subjects", s.cfg.Subjects).
		Str("durable", s.cfg.DurableName).
		Msg("nats source started")

	<-ctx.Done()
	wg.Wait()
	if err := s.subscriber.Close(); err != nil {
		logging.Warn().Err(err).Msg("failed to close nats subscriber")
	}
	return ctx.Err()
}

func (s *NATSSource) consume(ctx context.Context, subject string, messages <-chan *message.Message, emit func(*models.LogRecord)) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			metrics.NATSMessagesConsumed.Inc()

			rec, err := decodeRecord(msg.Payload)
			if err != nil {
				// Undecodable payloads are acked and counted; redelivery
				// would fail the same way forever.
				metrics.NATSParseFailures.Inc()
				logging.Warn().
					Err(err).
					Str("subject", subject).
					Str("message_uuid", msg.UUID).
					Msg("dropping undecodable log message")
				msg.Ack()
				continue
			}

			emit(rec)
			msg.Ack()
		}
	}
}

// decodeRecord parses a message payload. JSON objects must decode to a
// LogRecord with content; anything else is treated as a raw log line.
func decodeRecord(payload []byte) (*models.LogRecord, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("empty payload")
	}

	if payload[0] == '{' {
		var rec models.LogRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal log record: %w", err)
		}
		if !rec.Valid() {
			return nil, fmt.Errorf("log record missing content")
		}
		if rec.ID == "" {
			fresh := models.NewLogRecord(rec.Content, rec.SourceIP)
			fresh.UserAgent = rec.UserAgent
			fresh.Method = rec.Method
			fresh.StatusCode = rec.StatusCode
			fresh.ResponseTimeMS = rec.ResponseTimeMS
			if !rec.Timestamp.IsZero() {
				fresh.Timestamp = rec.Timestamp
			}
			return fresh, nil
		}
		return &rec, nil
	}

	return models.NewLogRecord(string(payload), ""), nil
}
