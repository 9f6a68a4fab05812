// LogVigil - Real-Time Security Log Threat Detection
// Copyright 2026 LogVigil Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logvigil/logvigil

// Package main is the entry point for the LogVigil server.
//
// LogVigil ingests security log records, scores each one for threat
// indicators, persists alerts, and streams live results to WebSocket
// subscribers.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered defaults, YAML file, environment (Koanf v2)
//  2. Alert store: BadgerDB (or in-memory when no path is configured)
//  3. Broadcast hub: fan-out to WebSocket sessions with replay ring
//  4. Pipeline coordinator: scorer, alert persistence, broadcasting
//  5. Ingestion source: synthetic feed or NATS JetStream consumer
//  6. Supervisor tree: suture keeps the long-running services alive
//  7. HTTP server: control plane, query API, WebSocket stream, metrics
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (LOGVIGIL_ prefix, e.g. LOGVIGIL_SERVER_PORT)
//   - Config file (config.yaml, or LOGVIGIL_CONFIG path)
//   - Built-in defaults
//
// # Ingestion Modes
//
// Synthetic (default, no external infrastructure):
//
//	./logvigil
//
// NATS JetStream with an embedded broker:
//
//	export LOGVIGIL_INGEST_MODE=nats
//	export LOGVIGIL_INGEST_NATS_EMBEDDED_SERVER=true
//	./logvigil
//
// NATS JetStream against an external broker:
//
//	export LOGVIGIL_INGEST_MODE=nats
//	export LOGVIGIL_INGEST_NATS_URL=nats://broker:4222
//	./logvigil
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM:
//   - Stops accepting new connections
//   - Waits for in-flight requests to complete (shutdown timeout)
//   - Stops the pipeline, hub, and ingestion source
//   - Closes the alert store
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/logvigil/logvigil/internal/alertstore"
	"github.com/logvigil/logvigil/internal/api"
	"github.com/logvigil/logvigil/internal/config"
	"github.com/logvigil/logvigil/internal/hub"
	"github.com/logvigil/logvigil/internal/ingest"
	"github.com/logvigil/logvigil/internal/logging"
	"github.com/logvigil/logvigil/internal/pipeline"
	"github.com/logvigil/logvigil/internal/scorer"
	"github.com/logvigil/logvigil/internal/supervisor"
	"github.com/logvigil/logvigil/internal/supervisor/services"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("version", api.Version).
		Str("ingest_mode", cfg.Ingest.Mode).
		Str("store_path", cfg.Store.Path).
		Msg("Starting LogVigil")

	// Alert store: Badger when a path is configured, in-memory otherwise.
	store, err := alertstore.NewBadgerStore(cfg.Store.Path)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open alert store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing alert store")
		}
	}()
	if cfg.Store.Path == "" {
		logging.Warn().Msg("Alert store running in-memory; alerts are lost on restart")
	}

	broadcastHub := hub.NewHub(
		cfg.Pipeline.HeartbeatInterval,
		cfg.Pipeline.SessionQueueCapacity,
		cfg.Pipeline.ReplayBufferSize,
	)

	coordinator := pipeline.NewCoordinator(
		scorer.NewPatternScorer(),
		store,
		broadcastHub,
		cfg.Pipeline,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source, embedded, err := buildSource(ctx, cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize ingestion source")
	}
	if embedded != nil {
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if err := embedded.Shutdown(shutdownCtx); err != nil {
				logging.Error().Err(err).Msg("Error shutting down embedded NATS server")
			}
		}()
	}

	// sutureslog bridges the suture event stream into zerolog via slog.
	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	handler := api.NewHandler(coordinator, broadcastHub, store, cfg)
	router := api.NewRouter(handler, cfg)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	tree.AddStreamService(services.NewHubService(broadcastHub))
	tree.AddStreamService(services.NewPipelineService(coordinator))
	tree.AddStreamService(services.NewIngestService(source, coordinator))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().
		Str("addr", server.Addr).
		Str("source", source.Name()).
		Msg("Services added to supervisor tree")

	// Monitoring boots stopped; operators start detection via
	// POST /api/v1/monitoring/start. Records that arrive before then
	// are discarded at intake.
	logging.Info().Msg("Monitoring stopped; waiting for start command")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Drain until the supervisor closes the channel
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("LogVigil stopped gracefully")
}

// buildSource constructs the configured ingestion source. For NATS mode
// it optionally starts an embedded JetStream server and ensures the
// stream exists before the consumer binds to it.
func buildSource(ctx context.Context, cfg *config.Config) (ingest.Source, *ingest.EmbeddedServer, error) {
	if cfg.Ingest.Mode == "synthetic" {
		logging.Info().
			Float64("rate_per_second", cfg.Ingest.RatePerSecond).
			Msg("Using synthetic ingestion source")
		return ingest.NewSyntheticSource(cfg.Ingest.RatePerSecond), nil, nil
	}

	natsCfg := cfg.Ingest.NATS

	var embedded *ingest.EmbeddedServer
	if natsCfg.EmbeddedServer {
		var err error
		embedded, err = ingest.NewEmbeddedServer(natsCfg)
		if err != nil {
			return nil, nil, err
		}
		natsCfg.URL = embedded.ClientURL()
		logging.Info().Str("url", natsCfg.URL).Msg("Embedded NATS server started")
	}

	nc, err := nats.Connect(natsCfg.URL,
		nats.MaxReconnects(natsCfg.MaxReconnects),
		nats.ReconnectWait(natsCfg.ReconnectWait),
	)
	if err != nil {
		return nil, embedded, err
	}
	defer nc.Close()

	manager, err := ingest.NewStreamManager(nc, natsCfg)
	if err != nil {
		return nil, embedded, err
	}
	if _, err := manager.EnsureStream(ctx); err != nil {
		return nil, embedded, err
	}
	logging.Info().
		Str("stream", natsCfg.StreamName).
		Strs("subjects", natsCfg.Subjects).
		Msg("JetStream stream ready")

	source, err := ingest.NewNATSSource(natsCfg)
	if err != nil {
		return nil, embedded, err
	}
	return source, embedded, nil
}
