// ReviewForge - Customer Review Ingestion and Social Image Rendering
// Copyright 2026 ReviewForge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewforge/reviewforge

// Package metrics provides Prometheus collectors for ReviewForge.
// Metrics are exposed at /metrics in Prometheus text format.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP surface
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// Ingestion
	ReviewsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviews_ingested_total",
			Help: "Total number of new reviews accepted by the pipeline",
		},
		[]string{"source"},
	)

	ReviewsDuplicate = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviews_duplicate_total",
			Help: "Total number of reviews rejected as duplicates",
		},
		[]string{"source"},
	)

	PollDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "poll_duration_seconds",
			Help:    "Duration of source poll operations in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		},
		[]string{"source"},
	)

	PollErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poll_errors_total",
			Help: "Total number of failed source polls",
		},
		[]string{"source"},
	)

	PollLastSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "poll_last_success_timestamp",
			Help: "Unix timestamp of the last successful poll per source",
		},
		[]string{"source"},
	)

	// Rendering
	RenderDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "render_duration_seconds",
			Help:    "Duration of browser renders in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	RenderErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "render_errors_total",
			Help: "Total number of failed renders",
		},
	)

	ImageCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "image_cache_hits_total",
			Help: "Total number of render cache hits",
		},
	)

	ImageCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "image_cache_misses_total",
			Help: "Total number of render cache misses",
		},
	)

	ImageCacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "image_cache_evictions_total",
			Help: "Total number of render cache LRU evictions",
		},
	)

	// Store
	StoreReviews = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "store_reviews",
			Help: "Current number of reviews held in the store",
		},
	)

	StoreFlushes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "store_flushes_total",
			Help: "Total number of store flushes to disk",
		},
	)

	StoreFlushErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "store_flush_errors_total",
			Help: "Total number of failed store flushes",
		},
	)

	// Chat sharing
	ChatShares = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_shares_total",
			Help: "Total number of chat share attempts",
		},
		[]string{"status"}, // "ok", "error"
	)

	// Circuit breaker around source API clients
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "source_breaker_state",
			Help: "Circuit breaker state per source (0=closed, 1=open, 2=half-open)",
		},
		[]string{"source"},
	)
)
