// LogVigil - Real-Time Security Log Threat Detection
// Copyright 2026 LogVigil Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logvigil/logvigil

// Package config loads and validates LogVigil configuration from layered
// sources: built-in defaults, an optional YAML file, and environment
// variables (highest priority).
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the LogVigil server.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
	Pipeline PipelineConfig `koanf:"pipeline"`
	Ingest   IngestConfig   `koanf:"ingest"`
	Store    StoreConfig    `koanf:"store"`
	API      APIConfig      `koanf:"api"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// PipelineConfig holds detection pipeline settings.
//
// All retry and queue knobs are deliberately explicit rather than baked-in
// constants so operators can tune backpressure behavior per deployment.
type PipelineConfig struct {
	// ScorerTimeout bounds a single scoring call. On expiry the record is
	// published with a degraded analysis instead of blocking the pipeline.
	ScorerTimeout time.Duration `koanf:"scorer_timeout"`

	// AlertRetryAttempts is the number of additional attempts after a
	// failed alert write. The default of 1 favors availability: one retry,
	// then log and move on.
	AlertRetryAttempts int           `koanf:"alert_retry_attempts"`
	AlertRetryDelay    time.Duration `koanf:"alert_retry_delay"`

	// Breaker settings for the alert store write path.
	BreakerFailureThreshold uint32        `koanf:"breaker_failure_threshold"`
	BreakerOpenTimeout      time.Duration `koanf:"breaker_open_timeout"`

	// SessionQueueCapacity is the per-subscriber send queue size. When a
	// slow subscriber fills its queue the oldest event is dropped first.
	SessionQueueCapacity int `koanf:"session_queue_capacity"`

	// HeartbeatInterval is the cadence of heartbeat events. Valid range is
	// 15s to 30s.
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval"`

	// ReplayBufferSize is the number of recent events retained for
	// best-effort replay to reconnecting subscribers.
	ReplayBufferSize int `koanf:"replay_buffer_size"`

	// SubmitQueueCapacity is the ingest-to-pipeline handoff buffer.
	SubmitQueueCapacity int `koanf:"submit_queue_capacity"`
}

// IngestConfig holds ingestion source settings.
type IngestConfig struct {
	// Mode selects the source: "synthetic" or "nats".
	Mode string `koanf:"mode"`

	// RatePerSecond paces the synthetic feed.
	RatePerSecond float64 `koanf:"rate_per_second"`

	NATS NATSConfig `koanf:"nats"`
}

// NATSConfig holds NATS JetStream ingestion settings.
type NATSConfig struct {
	URL            string        `koanf:"url"`
	StreamName     string        `koanf:"stream_name"`
	Subjects       []string      `koanf:"subjects"`
	DurableName    string        `koanf:"durable_name"`
	QueueGroup     string        `koanf:"queue_group"`
	MaxReconnects  int           `koanf:"max_reconnects"`
	ReconnectWait  time.Duration `koanf:"reconnect_wait"`
	AckWaitTimeout time.Duration `koanf:"ack_wait_timeout"`
	MaxAge         time.Duration `koanf:"max_age"`

	// EmbeddedServer runs an in-process NATS server for single-instance
	// deployments without external infrastructure.
	EmbeddedServer bool   `koanf:"embedded_server"`
	StoreDir       string `koanf:"store_dir"`
	MaxMemory      int64  `koanf:"max_memory"`
	MaxStore       int64  `koanf:"max_store"`
}

// StoreConfig holds alert store settings.
type StoreConfig struct {
	// Path is the BadgerDB directory. Empty selects an in-memory store,
	// which is intended for tests and demos only.
	Path string `koanf:"path"`
}

// APIConfig holds HTTP API behavior settings.
type APIConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	DefaultPageSize   int           `koanf:"default_page_size"`
	MaxPageSize       int           `koanf:"max_page_size"`
}

// Validate checks the configuration for values that would break the server
// at runtime. It is called automatically by LoadWithKoanf.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1-65535, got %d", c.Server.Port)
	}
	if c.Pipeline.ScorerTimeout <= 0 {
		return fmt.Errorf("pipeline.scorer_timeout must be positive, got %v", c.Pipeline.ScorerTimeout)
	}
	if c.Pipeline.AlertRetryAttempts < 0 {
		return fmt.Errorf("pipeline.alert_retry_attempts must be >= 0, got %d", c.Pipeline.AlertRetryAttempts)
	}
	if c.Pipeline.SessionQueueCapacity < 1 {
		return fmt.Errorf("pipeline.session_queue_capacity must be >= 1, got %d", c.Pipeline.SessionQueueCapacity)
	}
	if c.Pipeline.HeartbeatInterval < 15*time.Second || c.Pipeline.HeartbeatInterval > 30*time.Second {
		return fmt.Errorf("pipeline.heartbeat_interval must be between 15s and 30s, got %v", c.Pipeline.HeartbeatInterval)
	}
	if c.Pipeline.ReplayBufferSize < 0 {
		return fmt.Errorf("pipeline.replay_buffer_size must be >= 0, got %d", c.Pipeline.ReplayBufferSize)
	}
	switch c.Ingest.Mode {
	case "synthetic", "nats":
	default:
		return fmt.Errorf("ingest.mode must be \"synthetic\" or \"nats\", got %q", c.Ingest.Mode)
	}
	if c.Ingest.Mode == "synthetic" && c.Ingest.RatePerSecond <= 0 {
		return fmt.Errorf("ingest.rate_per_second must be positive, got %v", c.Ingest.RatePerSecond)
	}
	if c.Ingest.Mode == "nats" {
		if c.Ingest.NATS.URL == "" && !c.Ingest.NATS.EmbeddedServer {
			return fmt.Errorf("ingest.nats.url is required when embedded_server is disabled")
		}
		if c.Ingest.NATS.StreamName == "" {
			return fmt.Errorf("ingest.nats.stream_name is required")
		}
		if len(c.Ingest.NATS.Subjects) == 0 {
			return fmt.Errorf("ingest.nats.subjects must not be empty")
		}
	}
	if c.API.MaxPageSize < c.API.DefaultPageSize {
		return fmt.Errorf("api.max_page_size (%d) must be >= api.default_page_size (%d)",
			c.API.MaxPageSize, c.API.DefaultPageSize)
	}
	return nil
}

// Addr returns the host:port string for the HTTP listener.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
