// ReviewForge - Customer Review Ingestion and Social Image Rendering
// Copyright 2026 ReviewForge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewforge/reviewforge

// Package render turns review records into branded social images. The
// coordinator expands an HTML template, drives a headless browser to pixels,
// and fronts the whole thing with a content-addressed LRU cache.
package render

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/reviewforge/reviewforge/internal/cache"
	"github.com/reviewforge/reviewforge/internal/config"
	"github.com/reviewforge/reviewforge/internal/logging"
	"github.com/reviewforge/reviewforge/internal/metrics"
	"github.com/reviewforge/reviewforge/internal/models"
)

// batchChunkSize bounds parallelism when rendering batches: items are
// processed in chunks of 3, results preserve input order.
const batchChunkSize = 3

// Coordinator owns the template store, the image cache, and the browser.
type Coordinator struct {
	templates *TemplateStore
	images    *cache.ImageLRU
	capturer  PageCapturer
	company   config.CompanyConfig
	http      *http.Client
}

// NewCoordinator wires the render pipeline together.
func NewCoordinator(templates *TemplateStore, images *cache.ImageLRU, capturer PageCapturer, company config.CompanyConfig) *Coordinator {
	return &Coordinator{
		templates: templates,
		images:    images,
		capturer:  capturer,
		company:   company,
		http:      &http.Client{Timeout: 30 * time.Second},
	}
}

// Templates exposes the template store for the HTTP surface.
func (c *Coordinator) Templates() *TemplateStore { return c.templates }

// Healthy reports whether the browser connection is up.
func (c *Coordinator) Healthy() bool { return c.capturer.Healthy() }

// Close shuts down the browser.
func (c *Coordinator) Close() error { return c.capturer.Close() }

// Render produces the image for one request, consulting the cache first.
// A cache entry only satisfies a request when its format matches.
func (c *Coordinator) Render(ctx context.Context, req models.RenderRequest) (models.ImageResult, error) {
	req.ApplyDefaults()

	preset, ok := models.SizePresets[req.Size]
	if !ok {
		return models.ImageResult{}, models.BadRequest("unknown size preset: " + req.Size)
	}
	if req.Format != models.FormatPNG && req.Format != models.FormatJPEG {
		return models.ImageResult{}, models.BadRequest("unknown format: " + req.Format)
	}

	key := req.CacheKey()
	if hit, ok := c.images.Get(key); ok && hit.Format == req.Format {
		return hit, nil
	}

	tmpl, err := c.templates.Get(req.Template)
	if err != nil {
		return models.ImageResult{}, err
	}

	start := time.Now()
	html := Expand(tmpl, c.templateData(req))
	raw, err := c.capturer.Capture(ctx, html, preset.Width, preset.Height, req.Format)
	if err != nil {
		metrics.RenderErrors.Inc()
		return models.ImageResult{}, err
	}
	metrics.RenderDuration.Observe(time.Since(start).Seconds())

	result := models.ImageResult{
		Bytes:  raw,
		Format: req.Format,
		Width:  preset.Width,
		Height: preset.Height,
	}
	c.images.Add(key, result)
	return result, nil
}

// templateData merges the request's overrides over configured branding.
func (c *Coordinator) templateData(req models.RenderRequest) TemplateData {
	d := TemplateData{
		CompanyName:    c.company.Name,
		CompanyPhone:   c.company.Phone,
		BrandColor:     c.company.BrandColor,
		BrandColorDark: c.company.BrandColorDark,
		LogoURL:        c.company.LogoURL,

		ReviewerName: req.ReviewerName,
		Rating:       req.Rating,
		ReviewText:   req.ReviewText,
		TechName:     req.TechName,
		TechPhotoURL: req.TechPhotoURL,
		Source:       req.Source,
	}
	if req.BrandColor != "" {
		d.BrandColor = req.BrandColor
	}
	if req.BrandColorDark != "" {
		d.BrandColorDark = req.BrandColorDark
	}
	if req.LogoURL != "" {
		d.LogoURL = req.LogoURL
	}
	d.LogoURL = ResolveURL(req.BaseURL, d.LogoURL)
	d.TechPhotoURL = ResolveURL(req.BaseURL, d.TechPhotoURL)
	return d
}

// BatchItem is one outcome in a batch render; exactly one of Result and Err
// is set.
type BatchItem struct {
	Result models.ImageResult
	Err    error
}

// RenderBatch renders requests in input order, chunked by batchChunkSize.
// Item failures do not abort the batch; each slot carries its own outcome.
func (c *Coordinator) RenderBatch(ctx context.Context, reqs []models.RenderRequest) []BatchItem {
	out := make([]BatchItem, len(reqs))

	for start := 0; start < len(reqs); start += batchChunkSize {
		end := start + batchChunkSize
		if end > len(reqs) {
			end = len(reqs)
		}

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			g.Go(func() error {
				res, err := c.Render(gctx, reqs[i])
				out[i] = BatchItem{Result: res, Err: err}
				return nil
			})
		}
		// Goroutines never return errors; Wait is just the chunk barrier.
		_ = g.Wait()
	}
	return out
}

// RenderAsync runs the render out-of-band and POSTs the image bytes to the
// request's callback URL. Delivery failures are logged, not retried.
func (c *Coordinator) RenderAsync(req models.RenderRequest) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		result, err := c.Render(ctx, req)
		if err != nil {
			logging.Err(err).Str("callback_url", req.CallbackURL).Msg("Async render failed")
			return
		}
		c.deliverCallback(ctx, req.CallbackURL, result)
	}()
}

func (c *Coordinator) deliverCallback(ctx context.Context, callbackURL string, result models.ImageResult) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(result.Bytes))
	if err != nil {
		logging.Err(err).Str("callback_url", callbackURL).Msg("Invalid callback request")
		return
	}
	httpReq.Header.Set("Content-Type", result.ContentType())

	resp, err := c.http.Do(httpReq)
	if err != nil {
		logging.Err(err).Str("callback_url", callbackURL).Msg("Callback delivery failed")
		return
	}
	defer resp.Body.Close()
	logging.Info().
		Str("callback_url", callbackURL).
		Int("status", resp.StatusCode).
		Int("bytes", len(result.Bytes)).
		Msg("Callback delivered")
}
