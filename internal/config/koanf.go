// LogVigil - Real-Time Security Log Threat Detection
// Copyright 2026 LogVigil Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logvigil/logvigil

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/logvigil/config.yaml",
	"/etc/logvigil/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "LOGVIGIL_CONFIG"

// legacyConfigPathEnvVar is honored when ConfigPathEnvVar is unset.
const legacyConfigPathEnvVar = "CONFIG_PATH"

// Default returns a Config with all default values applied, without
// consulting config files or the environment. Useful for tests and for
// embedded deployments that configure programmatically.
func Default() *Config {
	return defaultConfig()
}

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            5001,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Pipeline: PipelineConfig{
			ScorerTimeout:           250 * time.Millisecond,
			AlertRetryAttempts:      1,
			AlertRetryDelay:         100 * time.Millisecond,
			BreakerFailureThreshold: 5,
			BreakerOpenTimeout:      30 * time.Second,
			SessionQueueCapacity:    256,
			HeartbeatInterval:       20 * time.Second,
			ReplayBufferSize:        256,
			SubmitQueueCapacity:     1024,
		},
		Ingest: IngestConfig{
			Mode:          "synthetic",
			RatePerSecond: 0.5, // one record every two seconds
			NATS: NATSConfig{
				URL:            "nats://127.0.0.1:4222",
				StreamName:     "LOGS",
				Subjects:       []string{"logs.raw"},
				DurableName:    "logvigil",
				QueueGroup:     "detectors",
				MaxReconnects:  -1,
				ReconnectWait:  2 * time.Second,
				AckWaitTimeout: 30 * time.Second,
				MaxAge:         24 * time.Hour,
				EmbeddedServer: false,
				StoreDir:       "/data/nats/jetstream",
				MaxMemory:      1 << 30,  // 1GB
				MaxStore:       10 << 30, // 10GB
			},
		},
		Store: StoreConfig{
			Path: "/data/logvigil/alerts",
		},
		API: APIConfig{
			CORSOrigins:       []string{"*"},
			RateLimitRequests: 100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			DefaultPageSize:   20,
			MaxPageSize:       100,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in sensible defaults
//  2. Config file: optional YAML config file (if it exists)
//  3. Environment variables: override any setting
//
// Precedence: ENV > File > Defaults.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// Transform environment variable names to koanf paths:
	// HTTP_PORT -> server.port, SCORER_TIMEOUT -> pipeline.scorer_timeout
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Post-process slice fields from comma-separated strings
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	for _, envVar := range []string{ConfigPathEnvVar, legacyConfigPathEnvVar} {
		if envPath := os.Getenv(envVar); envPath != "" {
			if _, err := os.Stat(envPath); err == nil {
				return envPath
			}
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices.
var sliceConfigPaths = []string{
	"api.cors_origins",
	"ingest.nats.subjects",
}

// processSliceFields converts comma-separated string values to slices for known
// slice fields. Env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML file or defaults)
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Two forms are accepted: LOGVIGIL_-prefixed variables that mirror the
// config tree, and short aliases for the most common settings.
//
// Examples:
//   - LOGVIGIL_SERVER_PORT -> server.port
//   - LOGVIGIL_INGEST_NATS_EMBEDDED_SERVER -> ingest.nats.embedded_server
//   - HTTP_PORT -> server.port
//   - SCORER_TIMEOUT -> pipeline.scorer_timeout
//   - NATS_URL -> ingest.nats.url
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	if rest, ok := strings.CutPrefix(key, "logvigil_"); ok {
		return prefixedEnvPath(rest)
	}

	envMappings := map[string]string{
		// Server mappings
		"http_host":             "server.host",
		"http_port":             "server.port",
		"http_read_timeout":     "server.read_timeout",
		"http_write_timeout":    "server.write_timeout",
		"http_shutdown_timeout": "server.shutdown_timeout",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",

		// Pipeline mappings
		"scorer_timeout":            "pipeline.scorer_timeout",
		"alert_retry_attempts":      "pipeline.alert_retry_attempts",
		"alert_retry_delay":         "pipeline.alert_retry_delay",
		"breaker_failure_threshold": "pipeline.breaker_failure_threshold",
		"breaker_open_timeout":      "pipeline.breaker_open_timeout",
		"session_queue_capacity":    "pipeline.session_queue_capacity",
		"heartbeat_interval":        "pipeline.heartbeat_interval",
		"replay_buffer_size":        "pipeline.replay_buffer_size",
		"submit_queue_capacity":     "pipeline.submit_queue_capacity",

		// Ingest mappings
		"ingest_mode":     "ingest.mode",
		"ingest_rate":     "ingest.rate_per_second",
		"nats_url":        "ingest.nats.url",
		"nats_stream":     "ingest.nats.stream_name",
		"nats_subjects":   "ingest.nats.subjects",
		"nats_durable":    "ingest.nats.durable_name",
		"nats_queue":      "ingest.nats.queue_group",
		"nats_embedded":   "ingest.nats.embedded_server",
		"nats_store_dir":  "ingest.nats.store_dir",
		"nats_max_memory": "ingest.nats.max_memory",
		"nats_max_store":  "ingest.nats.max_store",

		// Store mappings
		"store_path": "store.path",

		// API mappings
		"cors_origins":          "api.cors_origins",
		"rate_limit_requests":   "api.rate_limit_requests",
		"rate_limit_window":     "api.rate_limit_window",
		"disable_rate_limit":    "api.rate_limit_disabled",
		"api_default_page_size": "api.default_page_size",
		"api_max_page_size":     "api.max_page_size",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// For unmapped keys, return empty string to skip them.
	// This prevents random environment variables from polluting config.
	return ""
}

// prefixedEnvPath maps a lowercased LOGVIGIL_-stripped variable to its
// koanf path. The first underscore separates the config section; the
// remainder is the key verbatim (keys themselves contain underscores,
// e.g. read_timeout). The ingest section additionally nests nats.
func prefixedEnvPath(key string) string {
	section, rest, ok := strings.Cut(key, "_")
	if !ok || rest == "" {
		return ""
	}

	switch section {
	case "server", "logging", "pipeline", "store", "api":
		return section + "." + rest
	case "ingest":
		if sub, subRest, ok := strings.Cut(rest, "_"); ok && sub == "nats" && subRest != "" {
			return "ingest.nats." + subRest
		}
		return "ingest." + rest
	}
	return ""
}
