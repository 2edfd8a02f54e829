// ReviewForge - Customer Review Ingestion and Social Image Rendering
// Copyright 2026 ReviewForge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewforge/reviewforge

package api

import (
	"encoding/base64"
	"net/http"
	"strconv"
	"time"

	"github.com/reviewforge/reviewforge/internal/models"
	"github.com/reviewforge/reviewforge/internal/validation"
)

// generateRequest is the body of /generate. The callback URL lives on the
// wrapper because it addresses delivery, not image content, and must stay
// out of the cache key.
type generateRequest struct {
	models.RenderRequest
	CallbackURL string `json:"callback_url,omitempty" validate:"omitempty,url"`
}

// toRenderRequest flattens the wrapper onto the internal request, stamping
// the base URL used to absolutise relative asset references.
func (gr *generateRequest) toRenderRequest(r *http.Request, configuredBase string) models.RenderRequest {
	rr := gr.RenderRequest
	rr.CallbackURL = gr.CallbackURL
	rr.BaseURL = configuredBase
	if rr.BaseURL == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		rr.BaseURL = scheme + "://" + r.Host
	}
	return rr
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeJSON(w, r, maxJSONBody, &req); err != nil {
		writeError(w, err)
		return
	}
	if ferrs := validation.ValidateStruct(&req); ferrs != nil {
		writeError(w, models.BadRequest("invalid render request", ferrs...))
		return
	}
	s.render(w, r, req)
}

// handleGenerateQuery accepts the same fields as the POST body via the
// query string.
func (s *Server) handleGenerateQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var req generateRequest
	req.ReviewerName = q.Get("reviewer_name")
	req.ReviewText = q.Get("review_text")
	req.TechName = q.Get("tech_name")
	req.TechPhotoURL = q.Get("tech_photo_url")
	req.Source = q.Get("source")
	req.Template = q.Get("template")
	req.Size = q.Get("size")
	req.Format = q.Get("format")
	req.BrandColor = q.Get("brand_color")
	req.BrandColorDark = q.Get("brand_color_dark")
	req.LogoURL = q.Get("logo_url")
	req.CallbackURL = q.Get("callback_url")

	if ratingStr := q.Get("rating"); ratingStr != "" {
		rating, err := strconv.Atoi(ratingStr)
		if err != nil {
			writeError(w, models.BadRequest("invalid render request",
				models.FieldError{Field: "rating", Message: "must be an integer"}))
			return
		}
		req.Rating = rating
	}

	if ferrs := validation.ValidateStruct(&req); ferrs != nil {
		writeError(w, models.BadRequest("invalid render request", ferrs...))
		return
	}
	s.render(w, r, req)
}

// render runs one validated request: synchronous response, or a 202 with
// out-of-band callback delivery when a callback URL is present.
func (s *Server) render(w http.ResponseWriter, r *http.Request, req generateRequest) {
	rr := req.toRenderRequest(r, s.cfg.Server.BaseURL)

	if rr.CallbackURL != "" {
		s.renderer.RenderAsync(rr)
		writeJSON(w, http.StatusAccepted, map[string]interface{}{
			"accepted":     true,
			"callback_url": rr.CallbackURL,
		})
		return
	}

	start := time.Now()
	result, err := s.renderer.Render(r.Context(), rr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeImage(w, result, time.Since(start))
}

// batchRequest is the body of /generate/batch.
type batchRequest struct {
	Reviews []generateRequest `json:"reviews"`
}

// batchResult is one slot in the batch response; Image is base64-encoded.
type batchResult struct {
	Index   int    `json:"index"`
	Success bool   `json:"success"`
	Image   string `json:"image,omitempty"`
	Format  string `json:"format,omitempty"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
	Cached  bool   `json:"cached,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) handleGenerateBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeJSON(w, r, maxJSONBody, &req); err != nil {
		writeError(w, err)
		return
	}
	if len(req.Reviews) == 0 {
		writeError(w, models.BadRequest("batch requires at least one review"))
		return
	}
	if len(req.Reviews) > maxBatchItems {
		writeError(w, models.BadRequest("batch exceeds "+strconv.Itoa(maxBatchItems)+" reviews"))
		return
	}

	reqs := make([]models.RenderRequest, len(req.Reviews))
	for i := range req.Reviews {
		if ferrs := validation.ValidateStruct(&req.Reviews[i]); ferrs != nil {
			ferrs[0].Field = "reviews[" + strconv.Itoa(i) + "]." + ferrs[0].Field
			writeError(w, models.BadRequest("invalid review in batch", ferrs...))
			return
		}
		rr := req.Reviews[i].toRenderRequest(r, s.cfg.Server.BaseURL)
		rr.CallbackURL = ""
		reqs[i] = rr
	}

	items := s.renderer.RenderBatch(r.Context(), reqs)

	results := make([]batchResult, len(items))
	for i, item := range items {
		results[i] = batchResult{Index: i}
		if item.Err != nil {
			results[i].Error = item.Err.Error()
			continue
		}
		results[i].Success = true
		results[i].Image = base64.StdEncoding.EncodeToString(item.Result.Bytes)
		results[i].Format = item.Result.Format
		results[i].Width = item.Result.Width
		results[i].Height = item.Result.Height
		results[i].Cached = item.Result.Cached
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(results),
		"results": results,
	})
}
