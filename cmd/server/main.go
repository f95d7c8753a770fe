// ModSentry - Moderator Activity Tracking and Anomaly Response
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/modsentry

// Package main is the entry point for the ModSentry server.
//
// ModSentry tracks moderator activity on a community platform and
// responds to anomalies: every privileged operator gets an audit
// destination where their actions are logged, bulk action bursts
// trigger automatic privilege revocation, and scheduled jobs keep the
// tracked set consistent with platform reality.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered settings from file and environment (Koanf v2)
//  2. Store: BadgerDB-backed operator records (in-memory when no path set)
//  3. Platform client: retrying HTTP client with a send circuit breaker
//  4. Core: activity cache, detectors, mitigation, delivery queue, tracker
//  5. Event source: NATS JetStream audit feed (optional)
//  6. Supervisor tree: queue worker, schedulers, feed and admin API
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (MODSENTRY_ prefix)
//   - Config file (config.yaml, path via MODSENTRY_CONFIG)
//   - Built-in defaults
//
// # Signal Handling
//
// SIGINT and SIGTERM start a graceful shutdown: the admin API stops
// accepting connections, schedulers cancel at their next sleep, and the
// delivery queue drains within its configured timeout before the
// process exits.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/modsentry/internal/activity"
	"github.com/tomtom215/modsentry/internal/api"
	"github.com/tomtom215/modsentry/internal/config"
	"github.com/tomtom215/modsentry/internal/detection"
	"github.com/tomtom215/modsentry/internal/eventsource"
	"github.com/tomtom215/modsentry/internal/logging"
	"github.com/tomtom215/modsentry/internal/mitigation"
	"github.com/tomtom215/modsentry/internal/platform"
	"github.com/tomtom215/modsentry/internal/queue"
	"github.com/tomtom215/modsentry/internal/scheduler"
	"github.com/tomtom215/modsentry/internal/store"
	"github.com/tomtom215/modsentry/internal/supervisor"
	"github.com/tomtom215/modsentry/internal/tracker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("platform_url", cfg.Platform.BaseURL).
		Str("privileged_role", cfg.Platform.PrivilegedRole).
		Bool("event_source", cfg.EventSource.Enabled).
		Msg("Starting ModSentry")

	// Operator store: durable when a path is configured.
	opStore, err := store.OpenBadger(cfg.Store.Path)
	if err != nil {
		logging.Fatal().Err(err).Str("path", cfg.Store.Path).Msg("Failed to open operator store")
	}
	defer func() {
		if err := opStore.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing operator store")
		}
	}()

	// Platform client with retry and a circuit breaker on sends.
	client := platform.NewClient(&cfg.Platform)
	breaker := platform.NewBreakerClient(client, &cfg.Platform)
	if err := breaker.Ping(context.Background()); err != nil {
		logging.Warn().Err(err).Msg("Platform not reachable yet (will retry)")
	}

	// Core wiring.
	q := queue.New(cfg.Queue.MaxSize)
	cache := activity.NewCache(cfg.Cache)
	detector := detection.NewDetector(cfg.Detection, cfg.Cache)
	responder := mitigation.NewController(&cfg.Platform, breaker, q)
	core := tracker.New(cfg.Tracker, opStore, breaker, cache, detector, responder, q)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Tracker.AutoScanOnStart {
		if err := core.AutoScan(ctx); err != nil {
			logging.Error().Err(err).Msg("Startup auto-scan failed")
		}
	}

	// Schedulers at their configured local times.
	loc := cfg.Scheduler.Location()
	recHour, recMin, _ := config.ParseClock(cfg.Scheduler.ReconcileAt)
	inactHour, inactMin, _ := config.ParseClock(cfg.Scheduler.InactivityAt)

	reconcileLoop := scheduler.NewDaily("reconciliation", loc, recHour, recMin,
		cfg.Scheduler.ErrorRetryInterval, core.Reconcile)
	inactivityLoop := scheduler.NewDaily("inactivity-check", loc, inactHour, inactMin,
		cfg.Scheduler.ErrorRetryInterval, core.CheckInactivity)

	// Supervisor tree.
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddDeliveryService(queue.NewWorker(cfg.Queue, q, breaker, cache))
	tree.AddScheduleService(reconcileLoop)
	tree.AddScheduleService(inactivityLoop)

	if cfg.EventSource.Enabled {
		source, err := eventsource.New(cfg.EventSource, core.ClassifyAndRecord)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to connect audit event source")
		}
		tree.AddIngestService(source)
	} else {
		logging.Warn().Msg("Audit event source disabled, relying on manual triggers only")
	}

	router := api.NewRouter(&cfg.Server, core, reconcileLoop.RunNow, inactivityLoop.RunNow)
	tree.AddAPIService(api.NewServer(&cfg.Server, router.Setup()))

	logging.Info().Int("port", cfg.Server.Port).Msg("ModSentry running")

	if err := tree.Serve(ctx); err != nil && ctx.Err() == nil {
		logging.Error().Err(err).Msg("Supervisor tree exited")
		os.Exit(1)
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service missed shutdown timeout")
		}
	}
	logging.Info().Msg("ModSentry stopped")
}
