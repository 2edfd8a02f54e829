// ReviewForge - Customer Review Ingestion and Social Image Rendering
// Copyright 2026 ReviewForge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewforge/reviewforge

// Package sources implements the review platform adapters. Every adapter
// normalizes platform payloads into models.Review records; polling adapters
// additionally fetch from the platform API behind a circuit breaker.
package sources

import (
	"context"
	"sort"

	"github.com/reviewforge/reviewforge/internal/config"
	"github.com/reviewforge/reviewforge/internal/models"
)

// FetchResult is one poll's worth of records plus the cursor to persist for
// the next poll. An empty NextCursor means the adapter has no incremental
// state to save.
type FetchResult struct {
	Reviews    []models.Review
	NextCursor string
}

// Adapter is the contract every review source implements.
//
// Fetch pulls new records from the platform API given the last persisted
// cursor; push-only adapters return ErrFetchUnsupported. Parse normalizes a
// webhook payload; adapters without webhook support return
// ErrParseUnsupported.
type Adapter interface {
	// Name is the stable source tag used in review IDs, routes, and metrics.
	Name() string

	// Pollable reports whether the adapter supports Fetch.
	Pollable() bool

	// Fetch retrieves records newer than the cursor.
	Fetch(ctx context.Context, cursor string) (*FetchResult, error)

	// Parse normalizes a webhook payload into review records.
	Parse(payload []byte) ([]models.Review, error)

	// WebhookSecret returns the shared secret for webhook signature checks.
	// Empty means webhooks are rejected for this source.
	WebhookSecret() string
}

// ErrFetchUnsupported is returned by push-only adapters.
var ErrFetchUnsupported = models.E(models.KindBadRequest, "source does not support polling")

// ErrParseUnsupported is returned by poll-only adapters.
var ErrParseUnsupported = models.E(models.KindBadRequest, "source does not accept webhooks")

// Registry holds the configured adapters keyed by source name.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry builds the adapter set from configuration. Only enabled
// sources get an adapter; the generic adapter is always registered because
// it has no credentials to misconfigure.
func NewRegistry(cfg *config.IngestionConfig) *Registry {
	r := &Registry{adapters: map[string]Adapter{}}

	if src, ok := cfg.Sources[SourceGoogle]; ok && src.Enabled {
		r.adapters[SourceGoogle] = NewGoogleAdapter(src)
	}
	if src, ok := cfg.Sources[SourceYelp]; ok && src.Enabled {
		r.adapters[SourceYelp] = NewYelpAdapter(src)
	}
	if src, ok := cfg.Sources[SourceAngi]; ok && src.Enabled {
		r.adapters[SourceAngi] = NewAngiAdapter(src)
	}
	r.adapters[SourceGeneric] = NewGenericAdapter(cfg.Generic)

	return r
}

// Source name constants. These appear in review IDs and must stay stable.
const (
	SourceGoogle  = "google"
	SourceYelp    = "yelp"
	SourceAngi    = "angi"
	SourceGeneric = "generic"
	SourceImport  = "import"
)

// Get returns the adapter for a source name.
func (r *Registry) Get(name string) (Adapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}

// Pollable returns the adapters that support Fetch, sorted by name so the
// scheduler's stagger assignment is deterministic.
func (r *Registry) Pollable() []Adapter {
	out := make([]Adapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		if a.Pollable() {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Names returns all registered source names, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
