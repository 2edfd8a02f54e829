// ReviewForge - Customer Review Ingestion and Social Image Rendering
// Copyright 2026 ReviewForge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewforge/reviewforge

package api

import (
	"context"
	"net/http"
	"path/filepath"
	"sync"
	"testing"

	"github.com/reviewforge/reviewforge/internal/cache"
	"github.com/reviewforge/reviewforge/internal/chat"
	"github.com/reviewforge/reviewforge/internal/config"
	"github.com/reviewforge/reviewforge/internal/importer"
	"github.com/reviewforge/reviewforge/internal/models"
	"github.com/reviewforge/reviewforge/internal/pipeline"
	"github.com/reviewforge/reviewforge/internal/render"
	"github.com/reviewforge/reviewforge/internal/scheduler"
	"github.com/reviewforge/reviewforge/internal/sources"
	"github.com/reviewforge/reviewforge/internal/store"
)

// stubCapturer returns deterministic bytes with real image magic numbers so
// handlers can be exercised without a browser.
type stubCapturer struct {
	mu      sync.Mutex
	renders int
}

func (c *stubCapturer) Capture(ctx context.Context, html string, width, height int, format string) ([]byte, error) {
	c.mu.Lock()
	c.renders++
	c.mu.Unlock()

	if format == models.FormatJPEG {
		return append([]byte{0xFF, 0xD8}, []byte("jpeg-pixels")...), nil
	}
	return append([]byte{0x89, 0x50, 0x4E, 0x47}, []byte("png-pixels")...), nil
}

func (c *stubCapturer) Healthy() bool { return true }
func (c *stubCapturer) Close() error  { return nil }

func (c *stubCapturer) renderCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.renders
}

// testEnv bundles the wired components behind a test router.
type testEnv struct {
	server   *Server
	handler  http.Handler
	store    *store.Store
	capturer *stubCapturer
	cfg      *config.Config
}

// newTestEnv wires a full server over temp storage and the stub capturer.
// mutate runs on the config before wiring, for per-test adjustments.
func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	dir := t.TempDir()
	cfg := &config.Config{
		Company: config.CompanyConfig{
			Name:           "Acme Plumbing",
			Phone:          "(555) 010-0199",
			BrandColor:     "#0066cc",
			BrandColorDark: "#003366",
		},
		Server: config.ServerConfig{Port: 3000, Host: "127.0.0.1"},
		Ingestion: config.IngestionConfig{
			Enabled:             true,
			DefaultTemplate:     models.DefaultTemplate,
			DefaultSize:         models.DefaultSize,
			MinRatingForShare:   4,
			PollIntervalMinutes: 60,
			DataPath:            filepath.Join(dir, "reviews.json"),
			TechnicianPhotoDir:  filepath.Join(dir, "technicians"),
		},
	}
	if mutate != nil {
		mutate(cfg)
	}

	st, err := store.Open(cfg.Ingestion.DataPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Shutdown() })

	templates, err := render.NewTemplateStore("")
	if err != nil {
		t.Fatal(err)
	}

	capturer := &stubCapturer{}
	coordinator := render.NewCoordinator(templates, cache.NewImageLRU(0), capturer, cfg.Company)
	chatClient := chat.New(cfg.Chat)
	registry := sources.NewRegistry(&cfg.Ingestion)
	pipe := pipeline.New(st, coordinator, chatClient, cfg.Ingestion)
	sched := scheduler.New(registry, st, pipe, cfg.Ingestion)
	imp := importer.New(sources.NewGenericAdapter(cfg.Ingestion.Generic))

	server := NewServer(cfg, st, coordinator, chatClient, registry, sched, pipe, imp)
	return &testEnv{
		server:   server,
		handler:  server.Router(),
		store:    st,
		capturer: capturer,
		cfg:      cfg,
	}
}
