// ReviewForge - Customer Review Ingestion and Social Image Rendering
// Copyright 2026 ReviewForge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewforge/reviewforge

// Package pipeline fans newly ingested reviews out to rendering and chat
// sharing, recording each completed step as an idempotent flag on the
// stored record.
package pipeline

import (
	"context"
	"errors"

	"github.com/reviewforge/reviewforge/internal/config"
	"github.com/reviewforge/reviewforge/internal/logging"
	"github.com/reviewforge/reviewforge/internal/metrics"
	"github.com/reviewforge/reviewforge/internal/models"
	"github.com/reviewforge/reviewforge/internal/store"
)

// Renderer is the render coordinator surface the pipeline needs.
type Renderer interface {
	Render(ctx context.Context, req models.RenderRequest) (models.ImageResult, error)
}

// Sharer is the chat client surface the pipeline needs.
type Sharer interface {
	Configured() bool
	Share(ctx context.Context, review models.Review, image []byte, format string) error
}

// StepError records one failed fan-out step for one record.
type StepError struct {
	ID      string `json:"id"`
	Step    string `json:"step"`
	Message string `json:"message"`
}

// Summary is the outcome of one Process call.
type Summary struct {
	New       int         `json:"new"`
	Duplicate int         `json:"duplicate"`
	Generated int         `json:"generated"`
	Shared    int         `json:"shared"`
	Errors    []StepError `json:"errors"`
}

// Pipeline owns the dedupe-add-render-share sequence.
type Pipeline struct {
	store    *store.Store
	renderer Renderer
	sharer   Sharer
	cfg      config.IngestionConfig
}

// New wires the pipeline.
func New(st *store.Store, renderer Renderer, sharer Sharer, cfg config.IngestionConfig) *Pipeline {
	return &Pipeline{store: st, renderer: renderer, sharer: sharer, cfg: cfg}
}

// Process runs the fan-out for a batch of normalized records. Dedupe and
// store insertion always happen; render and share failures are collected
// per record and never block the earlier steps.
func (p *Pipeline) Process(ctx context.Context, records []models.Review) Summary {
	summary := Summary{Errors: []StepError{}}

	for _, record := range records {
		if err := p.store.Add(record); err != nil {
			if errors.Is(err, store.ErrConflict) {
				summary.Duplicate++
				metrics.ReviewsDuplicate.WithLabelValues(record.Source).Inc()
				continue
			}
			summary.Errors = append(summary.Errors, StepError{
				ID: record.ID, Step: "store", Message: err.Error(),
			})
			continue
		}
		summary.New++
		metrics.ReviewsIngested.WithLabelValues(record.Source).Inc()

		if !p.cfg.AutoGenerate {
			continue
		}

		image, err := p.Generate(ctx, record)
		if err != nil {
			summary.Errors = append(summary.Errors, StepError{
				ID: record.ID, Step: "generate", Message: err.Error(),
			})
			continue
		}
		summary.Generated++

		if !p.shouldAutoShare(record) {
			continue
		}
		if err := p.ShareImage(ctx, record, image); err != nil {
			summary.Errors = append(summary.Errors, StepError{
				ID: record.ID, Step: "share", Message: err.Error(),
			})
			continue
		}
		summary.Shared++
	}

	if summary.New > 0 || summary.Duplicate > 0 || len(summary.Errors) > 0 {
		logging.Info().
			Int("new", summary.New).
			Int("duplicate", summary.Duplicate).
			Int("generated", summary.Generated).
			Int("shared", summary.Shared).
			Int("errors", len(summary.Errors)).
			Msg("Pipeline batch processed")
	}
	return summary
}

func (p *Pipeline) shouldAutoShare(record models.Review) bool {
	return p.cfg.AutoShare &&
		p.sharer.Configured() &&
		record.Rating >= p.cfg.MinRatingForShare
}

// Generate renders a review with the configured default template and size
// and marks the stored record. Also used by the manual per-review endpoint.
func (p *Pipeline) Generate(ctx context.Context, record models.Review) (models.ImageResult, error) {
	image, err := p.renderer.Render(ctx, p.RenderRequest(record))
	if err != nil {
		return models.ImageResult{}, err
	}
	p.store.MarkProcessed(record.ID, store.FlagImageGenerated())
	return image, nil
}

// ShareImage posts a rendered image to chat and marks the stored record.
// Also used by the manual per-review endpoint.
func (p *Pipeline) ShareImage(ctx context.Context, record models.Review, image models.ImageResult) error {
	if err := p.sharer.Share(ctx, record, image.Bytes, image.Format); err != nil {
		return err
	}
	p.store.MarkProcessed(record.ID, store.FlagChatShared())
	return nil
}

// RenderRequest maps a stored review onto a render request with the
// configured defaults.
func (p *Pipeline) RenderRequest(record models.Review) models.RenderRequest {
	return models.RenderRequest{
		ReviewerName: record.ReviewerName,
		Rating:       record.Rating,
		ReviewText:   record.ReviewText,
		TechName:     record.TechName,
		TechPhotoURL: record.TechPhotoURL,
		Source:       record.Source,
		Template:     p.cfg.DefaultTemplate,
		Size:         p.cfg.DefaultSize,
	}
}
