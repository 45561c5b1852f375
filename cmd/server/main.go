// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/tomtom215/mediasync/internal/api"
	"github.com/tomtom215/mediasync/internal/config"
	"github.com/tomtom215/mediasync/internal/database"
	"github.com/tomtom215/mediasync/internal/events"
	"github.com/tomtom215/mediasync/internal/jobs"
	"github.com/tomtom215/mediasync/internal/logging"
	"github.com/tomtom215/mediasync/internal/metrics"
	"github.com/tomtom215/mediasync/internal/supervisor"
	"github.com/tomtom215/mediasync/internal/supervisor/services"
	syncpkg "github.com/tomtom215/mediasync/internal/sync"
	ws "github.com/tomtom215/mediasync/internal/websocket"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Mediasync stopped with an error")
	}
	logging.Info().Msg("Application stopped gracefully")
}

//nolint:gocyclo // Sequential component wiring
func run(cfg *config.Config) error {
	logging.Info().
		Str("version", version).
		Str("db_path", cfg.Database.Path).
		Str("queue_path", cfg.Queue.Path).
		Bool("nats", cfg.NATS.Enabled).
		Msg("Starting Mediasync")

	metrics.AppInfo.WithLabelValues(version, runtime.Version()).Set(1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	bus, err := events.NewBus(cfg.NATS)
	if err != nil {
		return fmt.Errorf("initialize event bus: %w", err)
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
	}()

	orchestrator := syncpkg.NewOrchestrator(db, bus)
	if _, err := orchestrator.RecoverInterrupted(ctx); err != nil {
		return fmt.Errorf("recover interrupted syncs: %w", err)
	}

	registry, err := registerServers(ctx, cfg, db)
	if err != nil {
		return err
	}

	store, err := jobs.OpenStore(jobs.StoreConfig{
		Path:      cfg.Queue.Path,
		Retention: cfg.Queue.RetentionPeriod,
	})
	if err != nil {
		return fmt.Errorf("open job store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing job store")
		}
	}()

	queue := jobs.New(store, jobs.ConfigFrom(cfg.Queue), jobs.NewResultRecorder(db, bus))
	handlers := jobs.NewSyncHandlers(orchestrator, registry, db, syncpkg.DefaultPipelineOptions(cfg.Sync))
	if err := handlers.Register(queue, jobs.TeamsFrom(cfg.Queue)); err != nil {
		return fmt.Errorf("register job handlers: %w", err)
	}

	var scheduler *jobs.Scheduler
	if cfg.Sync.SchedulerEnabled {
		scheduler = jobs.NewScheduler(queue, registry.ServerIDs, jobs.DefaultSchedule(cfg.Sync))
	} else {
		logging.Info().Msg("Recurring sync schedule disabled")
	}

	var (
		poller   *syncpkg.SessionPoller
		sessions api.SessionSource
	)
	if cfg.Poller.Enabled {
		poller = syncpkg.NewSessionPoller(syncpkg.SessionPollerConfig{
			Sources:   registry.PollSources(),
			Store:     db,
			Publisher: bus,
			Interval:  cfg.Poller.Interval,
		})
		sessions = poller
	} else {
		logging.Info().Msg("Session poller disabled")
	}

	hub := ws.NewHub()
	forwarder := ws.NewForwarder(bus, hub)

	handler := api.NewHandler(api.HandlerConfig{
		Store:       db,
		Queue:       queue,
		Sessions:    sessions,
		Hub:         hub,
		Transport:   bus.Transport(),
		Version:     version,
		CORSOrigins: cfg.Server.CORSOrigins,
	})
	router := api.NewRouter(handler, api.NewChiMiddleware(api.ChiMiddlewareConfigFrom(cfg.Server)))

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		IdleTimeout:       2 * time.Minute,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}
	added := supervisor.Build(tree, supervisor.Components{
		Queue:     queue,
		Scheduler: scheduler,
		Hub:       hub,
		Forwarder: forwarder,
		Poller:    poller,
		HTTP:      services.NewHTTPServerService(server, shutdownTimeout),
	})
	logging.Info().Int("services", added).Msg("Supervisor tree built")

	go trackUptime(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	errCh := tree.ServeBackground(ctx)

	var runErr error
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
			runErr = err
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
	}
	return runErr
}

// registerServers stores every enabled media server and builds its clients.
func registerServers(ctx context.Context, cfg *config.Config, db *database.DB) (*syncpkg.Registry, error) {
	var encryptor *config.CredentialEncryptor
	if cfg.Security.EncryptionSecret != "" {
		enc, err := config.NewCredentialEncryptor(cfg.Security.EncryptionSecret)
		if err != nil {
			return nil, fmt.Errorf("create credential encryptor: %w", err)
		}
		encryptor = enc
	} else {
		logging.Warn().Msg("ENCRYPTION_SECRET not set, media server API keys are stored unencrypted")
	}

	opts := syncpkg.RegistryOptions{
		Limits:    cfg.Client,
		Poller:    cfg.Poller,
		Encryptor: encryptor,
	}

	registry := syncpkg.NewRegistry()
	servers := cfg.GetMediaServers()
	for _, srv := range servers {
		if err := registry.Register(ctx, db, srv, opts); err != nil {
			return nil, fmt.Errorf("register media server %s: %w", srv.ServerID, err)
		}
	}
	if len(servers) == 0 {
		logging.Warn().Msg("No media servers configured; jobs can be enqueued but none will match a server")
	}
	return registry, nil
}

func trackUptime(ctx context.Context) {
	start := time.Now()
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.AppUptime.Set(time.Since(start).Seconds())
		}
	}
}
