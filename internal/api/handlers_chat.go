// ReviewForge - Customer Review Ingestion and Social Image Rendering
// Copyright 2026 ReviewForge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewforge/reviewforge

package api

import (
	"net/http"

	"github.com/reviewforge/reviewforge/internal/models"
	"github.com/reviewforge/reviewforge/internal/validation"
)

func (s *Server) handleChatStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"configured": s.chat.Configured(),
		"channel":    s.cfg.Chat.Channel,
	})
}

// handleShareChat renders an ad-hoc review and uploads the image to chat
// without touching the store.
func (s *Server) handleShareChat(w http.ResponseWriter, r *http.Request) {
	if !s.chat.Configured() {
		writeError(w, models.BadRequest("chat integration is not configured"))
		return
	}

	var req generateRequest
	if err := decodeJSON(w, r, maxJSONBody, &req); err != nil {
		writeError(w, err)
		return
	}
	if ferrs := validation.ValidateStruct(&req); ferrs != nil {
		writeError(w, models.BadRequest("invalid render request", ferrs...))
		return
	}

	rr := req.toRenderRequest(r, s.cfg.Server.BaseURL)
	rr.CallbackURL = ""
	result, err := s.renderer.Render(r.Context(), rr)
	if err != nil {
		writeError(w, err)
		return
	}

	record := models.Review{
		ReviewerName: rr.ReviewerName,
		Rating:       rr.Rating,
		ReviewText:   rr.ReviewText,
		TechName:     rr.TechName,
		Source:       rr.Source,
	}
	if err := s.chat.Share(r.Context(), record, result.Bytes, result.Format); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"shared":  true,
		"channel": s.cfg.Chat.Channel,
	})
}
