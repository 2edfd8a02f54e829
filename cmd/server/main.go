// ReviewForge - Customer Review Ingestion and Social Image Rendering
// Copyright 2026 ReviewForge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewforge/reviewforge

// Package main is the ReviewForge server entry point.
//
// ReviewForge ingests customer reviews from third-party platforms (polling,
// HMAC-authenticated webhooks, bulk import), deduplicates them into a
// persistent store, renders them as branded social images with a headless
// browser, and optionally shares the images to a chat workspace.
//
// Startup order:
//
//  1. Configuration: koanf layered load (defaults, YAML file, environment);
//     the process exits when no config file is found
//  2. Logging: zerolog global logger
//  3. Store: the persistent review document at ingestion.data_path
//  4. Render: template store, image LRU, headless browser coordinator
//  5. Ingestion: source registry, fan-out pipeline, poll scheduler
//  6. Supervision: scheduler, retention pruner, and HTTP server under a
//     suture tree
//
// Shutdown on SIGINT/SIGTERM drains HTTP connections, stops the scheduler,
// closes the browser, and flushes the store.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/reviewforge/reviewforge/internal/api"
	"github.com/reviewforge/reviewforge/internal/cache"
	"github.com/reviewforge/reviewforge/internal/chat"
	"github.com/reviewforge/reviewforge/internal/config"
	"github.com/reviewforge/reviewforge/internal/importer"
	"github.com/reviewforge/reviewforge/internal/logging"
	"github.com/reviewforge/reviewforge/internal/pipeline"
	"github.com/reviewforge/reviewforge/internal/render"
	"github.com/reviewforge/reviewforge/internal/scheduler"
	"github.com/reviewforge/reviewforge/internal/sources"
	"github.com/reviewforge/reviewforge/internal/store"
	"github.com/reviewforge/reviewforge/internal/supervisor"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "reviewforge:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Str("company", cfg.Company.Name).
		Int("port", cfg.Server.Port).
		Msg("Starting ReviewForge")

	st, err := store.Open(cfg.Ingestion.DataPath)
	if err != nil {
		return fmt.Errorf("opening review store: %w", err)
	}
	defer func() {
		if err := st.Shutdown(); err != nil {
			logging.Err(err).Msg("Store shutdown failed")
		}
	}()

	templates, err := render.NewTemplateStore("")
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}

	browser := render.NewBrowser()
	coordinator := render.NewCoordinator(templates, cache.NewImageLRU(cache.DefaultCapacity), browser, cfg.Company)
	defer func() {
		if err := coordinator.Close(); err != nil {
			logging.Err(err).Msg("Browser shutdown failed")
		}
	}()

	chatClient := chat.New(cfg.Chat)
	registry := sources.NewRegistry(&cfg.Ingestion)
	pipe := pipeline.New(st, coordinator, chatClient, cfg.Ingestion)
	sched := scheduler.New(registry, st, pipe, cfg.Ingestion)
	imp := importer.New(sources.NewGenericAdapter(cfg.Ingestion.Generic))

	server := api.NewServer(cfg, st, coordinator, chatClient, registry, sched, pipe, imp)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           server.Router(),
		ReadHeaderTimeout: cfg.Server.Timeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if cfg.Ingestion.Enabled {
		tree.AddIngestService(sched)
		tree.AddIngestService(supervisor.NewPruneService(st, cfg.Ingestion.RetentionDays))
	}
	tree.AddAPIService(supervisor.NewHTTPService(httpServer, cfg.Server.Timeout))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("addr", httpServer.Addr).Msg("Serving")
	err = tree.Serve(ctx)
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("supervisor tree failed: %w", err)
	}

	logging.Info().Msg("Shutdown complete")
	return nil
}
