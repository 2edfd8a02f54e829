// ReviewForge - Customer Review Ingestion and Social Image Rendering
// Copyright 2026 ReviewForge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewforge/reviewforge

// Package api is the HTTP surface: routing, request validation, and webhook
// authentication over the ingestion, rendering, and sharing components.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/reviewforge/reviewforge/internal/chat"
	"github.com/reviewforge/reviewforge/internal/config"
	"github.com/reviewforge/reviewforge/internal/importer"
	"github.com/reviewforge/reviewforge/internal/middleware"
	"github.com/reviewforge/reviewforge/internal/pipeline"
	"github.com/reviewforge/reviewforge/internal/render"
	"github.com/reviewforge/reviewforge/internal/scheduler"
	"github.com/reviewforge/reviewforge/internal/sources"
	"github.com/reviewforge/reviewforge/internal/store"
)

// Request body caps.
const (
	maxJSONBody   = 1 << 20 // 1 MB for JSON endpoints
	maxUploadBody = 5 << 20 // 5 MB for image and CSV uploads
	maxBatchItems = 20
)

// Server holds the wired components behind the HTTP surface.
type Server struct {
	cfg       *config.Config
	store     *store.Store
	renderer  *render.Coordinator
	chat      *chat.Client
	registry  *sources.Registry
	scheduler *scheduler.Scheduler
	pipeline  *pipeline.Pipeline
	importer  *importer.Importer
	started   time.Time
}

// NewServer wires the HTTP surface over its components.
func NewServer(
	cfg *config.Config,
	st *store.Store,
	renderer *render.Coordinator,
	chatClient *chat.Client,
	registry *sources.Registry,
	sched *scheduler.Scheduler,
	pipe *pipeline.Pipeline,
	imp *importer.Importer,
) *Server {
	return &Server{
		cfg:       cfg,
		store:     st,
		renderer:  renderer,
		chat:      chatClient,
		registry:  registry,
		scheduler: sched,
		pipeline:  pipe,
		importer:  imp,
		started:   time.Now(),
	}
}

// chiMiddleware adapts http.HandlerFunc middleware to chi's
// func(http.Handler) http.Handler so it can be used with r.Use().
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// Router builds the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to every route.
	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID", "X-Hub-Signature-256", "X-Webhook-Signature"},
		ExposedHeaders: []string{"X-Request-ID", "X-Image-Width", "X-Image-Height", "X-Generation-Time-Ms", "X-Cache"},
		MaxAge:         86400,
	}))

	// Health and metrics: permissive rate limit, monitors poll these often.
	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(1000, time.Minute))
		r.Get("/health", s.handleHealth)
		r.Handle("/metrics", promhttp.Handler())
	})

	// Rendering and public metadata.
	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(300, time.Minute))
		r.Use(chiMiddleware(middleware.PrometheusMetrics))

		r.Get("/api/config", s.handleConfig)
		r.Get("/api/templates", s.handleTemplates)
		r.Get("/api/sizes", s.handleSizes)
		r.Get("/api/platforms", s.handlePlatforms)
		r.Get("/api/technicians", s.handleTechnicians)
		r.Post("/api/technicians/upload", s.handleTechnicianUpload)

		r.Post("/generate", s.handleGenerate)
		r.Get("/generate", s.handleGenerateQuery)
		r.Post("/generate/batch", s.handleGenerateBatch)

		r.Get("/api/chat/status", s.handleChatStatus)
		r.Post("/api/share/chat", s.handleShareChat)
	})

	// Ingestion: stricter rate limit, these endpoints write.
	r.Route("/api/ingestion", func(r chi.Router) {
		r.Use(httprate.LimitByIP(120, time.Minute))
		r.Use(chiMiddleware(middleware.PrometheusMetrics))

		r.Get("/status", s.handleIngestionStatus)
		r.Get("/reviews", s.handleIngestionReviews)
		r.Post("/poll", s.handlePollAll)
		r.Post("/poll/{source}", s.handlePollSource)
		r.Get("/webhook/{source}", s.handleWebhookVerify)
		r.Post("/webhook/{source}", s.handleWebhookReceive)
		r.Post("/import", s.handleImport)
		r.Post("/reviews/{id}/generate", s.handleReviewGenerate)
		r.Post("/reviews/{id}/share", s.handleReviewShare)
	})

	return r
}
