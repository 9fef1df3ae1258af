// Paceboard - CRM Activity Mirror and Productivity Leaderboard
// Copyright 2026 Paceboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/paceboard/paceboard

// Package main is the entry point for the Paceboard server.
//
// Paceboard mirrors a rate-limited CRM into a local DuckDB store and
// serves a productivity leaderboard over it. The server initializes
// components in the following order:
//
//  1. Configuration: layered defaults, YAML file and environment (Koanf v2)
//  2. Database: DuckDB with the bucket, deal and message mirror schema
//  3. Gateway: admission-controlled CRM client behind a circuit breaker
//  4. Sync scheduler: recurring passes plus historical backfill
//  5. HTTP server: versioned REST API with Prometheus metrics
//
// The sync scheduler and the HTTP server run under a suture
// supervision tree so a scheduler crash never takes down the API,
// which keeps serving memoized reads from the local mirror.
//
// # Signal Handling
//
// The server shuts down gracefully on SIGINT and SIGTERM: the HTTP
// server drains in-flight requests, the scheduler finishes its current
// unit of work, and the database is closed last.
//
// # Example Usage
//
//	export CRM_BASE_URL=https://api.example-crm.com
//	export CRM_USERNAME=svc-paceboard
//	export CRM_API_TOKEN=secret
//	./paceboard
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/paceboard/paceboard/internal/api"
	"github.com/paceboard/paceboard/internal/buckets"
	"github.com/paceboard/paceboard/internal/config"
	"github.com/paceboard/paceboard/internal/database"
	"github.com/paceboard/paceboard/internal/leaderboard"
	"github.com/paceboard/paceboard/internal/logging"
	"github.com/paceboard/paceboard/internal/supervisor"
	"github.com/paceboard/paceboard/internal/supervisor/services"
	syncpkg "github.com/paceboard/paceboard/internal/sync"
	"github.com/paceboard/paceboard/internal/upstream"
)

func main() {
	// Load configuration first to get logging settings.
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Msg("Starting Paceboard")
	logging.Info().
		Str("crm_url", cfg.CRM.BaseURL).
		Str("db_path", cfg.Database.Path).
		Str("timezone", cfg.Metrics.Timezone).
		Msg("Configuration loaded")

	loc, err := time.LoadLocation(cfg.Metrics.Timezone)
	if err != nil {
		logging.Fatal().Err(err).Str("timezone", cfg.Metrics.Timezone).Msg("Invalid reference timezone")
	}

	db, err := database.New(cfg.Database, loc)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized successfully")

	// Gateway: one admission budget shared by every upstream call, a
	// fixed cooldown after 429s, and a circuit breaker around the lot.
	budget := upstream.NewBudget(cfg.Gateway.MaxConcurrent, cfg.Gateway.MinSpacing)
	client := upstream.NewClient(cfg.CRM, budget, upstream.NewFixedCooldown(cfg.Gateway.RateLimitCooldown))
	gateway := upstream.NewBreakerClient(client)
	directory := upstream.NewDirectory(gateway, cfg.Gateway.FallbackMaxAge)

	bucketSvc := buckets.NewService(db, gateway, cfg.Metrics, loc)
	syncManager := syncpkg.NewManager(db, bucketSvc, directory, gateway, cfg.Sync, loc)
	boardSvc := leaderboard.NewService(bucketSvc, db, directory, cfg.Leaderboard)

	handler := api.NewHandler(syncManager, bucketSvc, boardSvc, db, loc)
	router := api.NewRouter(handler, api.NewChiMiddleware(&api.ChiMiddlewareConfig{
		CORSAllowedOrigins: cfg.Server.CORSOrigins,
		CORSAllowedMethods: []string{"GET", "POST", "OPTIONS"},
		CORSAllowedHeaders: []string{"Content-Type", "Authorization"},
		CORSMaxAge:         86400,
		RateLimitRequests:  cfg.Server.RateLimitReqs,
		RateLimitWindow:    cfg.Server.RateLimitWindow,
	}))

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bridge zerolog to slog for sutureslog.
	tree, err := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	tree.AddSyncService(services.NewSchedulerService(syncManager))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

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

	// Drain the error channel until the supervisor has fully stopped.
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Application stopped gracefully")
}
