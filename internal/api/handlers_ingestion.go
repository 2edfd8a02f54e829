// ReviewForge - Customer Review Ingestion and Social Image Rendering
// Copyright 2026 ReviewForge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewforge/reviewforge

package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/reviewforge/reviewforge/internal/logging"
	"github.com/reviewforge/reviewforge/internal/models"
	"github.com/reviewforge/reviewforge/internal/sources"
)

// defaultReviewsLimit bounds /reviews responses when no limit is given.
const defaultReviewsLimit = 50

func (s *Server) handleIngestionStatus(w http.ResponseWriter, r *http.Request) {
	type sourceStatus struct {
		Name     string    `json:"name"`
		Pollable bool      `json:"pollable"`
		LastPoll time.Time `json:"last_poll,omitempty"`
	}

	stats := s.store.Stats()
	srcs := make([]sourceStatus, 0)
	for _, name := range s.registry.Names() {
		adapter, _ := s.registry.Get(name)
		srcs = append(srcs, sourceStatus{
			Name:     name,
			Pollable: adapter.Pollable(),
			LastPoll: stats.LastPollTimes[name],
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"enabled":       s.cfg.Ingestion.Enabled,
		"auto_generate": s.cfg.Ingestion.AutoGenerate,
		"auto_share":    s.cfg.Ingestion.AutoShare,
		"stats":         stats,
		"sources":       srcs,
	})
}

func (s *Server) handleIngestionReviews(w http.ResponseWriter, r *http.Request) {
	limit := defaultReviewsLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n < 1 {
			writeError(w, models.BadRequest("limit must be a positive integer"))
			return
		}
		limit = n
	}

	reviews := s.store.Recent(limit, r.URL.Query().Get("source"))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(reviews),
		"reviews": reviews,
	})
}

func (s *Server) handlePollAll(w http.ResponseWriter, r *http.Request) {
	results := s.scheduler.PollAll(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
	})
}

func (s *Server) handlePollSource(w http.ResponseWriter, r *http.Request) {
	result, err := s.scheduler.PollOnce(r.Context(), chi.URLParam(r, "source"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleWebhookVerify implements the subscription handshake some platforms
// require: echo the verification token back as plain text.
func (s *Server) handleWebhookVerify(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("verification")
	if token == "" {
		writeError(w, models.BadRequest("verification query parameter is required"))
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(token))
}

// Webhook signature header names, checked in order.
var signatureHeaders = []string{"X-Hub-Signature-256", "X-Webhook-Signature"}

// verifySignature checks "sha256=<hex hmac>" over the raw body. An empty
// secret disables the check for that source.
func verifySignature(r *http.Request, secret string, body []byte) bool {
	if secret == "" {
		return true
	}

	var provided string
	for _, header := range signatureHeaders {
		if v := r.Header.Get(header); v != "" {
			provided = v
			break
		}
	}
	if provided == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(provided), []byte(expected))
}

func (s *Server) handleWebhookReceive(w http.ResponseWriter, r *http.Request) {
	source := chi.URLParam(r, "source")
	body, err := readBody(w, r, maxJSONBody)
	if err != nil {
		writeError(w, err)
		return
	}

	// Unknown sources fall through to the generic adapter, which tags the
	// parsed records with the path's source name.
	adapter, known := s.registry.Get(source)
	var generic *sources.GenericAdapter
	if !known {
		fallback, ok := s.registry.Get(sources.SourceGeneric)
		if !ok {
			writeError(w, models.E(models.KindNotFound, "unknown source: "+source))
			return
		}
		generic, _ = fallback.(*sources.GenericAdapter)
		adapter = fallback
	}

	if !verifySignature(r, adapter.WebhookSecret(), body) {
		logging.Warn().Str("source", source).Msg("Webhook signature rejected")
		writeError(w, models.E(models.KindUnauthorized, "invalid webhook signature"))
		return
	}

	var reviews []models.Review
	if known {
		reviews, err = adapter.Parse(body)
	} else {
		reviews, err = generic.ParseAs(source, body)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	summary := s.pipeline.Process(r.Context(), reviews)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"accepted": true,
		"received": len(reviews),
		"summary":  summary,
	})
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r, maxUploadBody)
	if err != nil {
		writeError(w, err)
		return
	}

	reviews, err := s.importer.Parse(r.Header.Get("Content-Type"), body)
	if err != nil {
		writeError(w, err)
		return
	}

	summary := s.pipeline.Process(r.Context(), reviews)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"imported":   summary.New,
		"duplicates": summary.Duplicate,
		"generated":  summary.Generated,
		"shared":     summary.Shared,
		"errors":     summary.Errors,
	})
}

func (s *Server) handleReviewGenerate(w http.ResponseWriter, r *http.Request) {
	record, ok := s.store.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, models.E(models.KindNotFound, "unknown review"))
		return
	}

	start := time.Now()
	image, err := s.pipeline.Generate(r.Context(), record)
	if err != nil {
		writeError(w, err)
		return
	}
	writeImage(w, image, time.Since(start))
}

func (s *Server) handleReviewShare(w http.ResponseWriter, r *http.Request) {
	record, ok := s.store.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, models.E(models.KindNotFound, "unknown review"))
		return
	}

	image, err := s.pipeline.Generate(r.Context(), record)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.pipeline.ShareImage(r.Context(), record, image); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"shared":  true,
		"id":      record.ID,
		"channel": s.cfg.Chat.Channel,
	})
}
