// ReviewForge - Customer Review Ingestion and Social Image Rendering
// Copyright 2026 ReviewForge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewforge/reviewforge

package api

import (
	"bytes"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/reviewforge/reviewforge/internal/logging"
	"github.com/reviewforge/reviewforge/internal/models"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "ok",
		"uptime_seconds":    int(time.Since(s.started).Seconds()),
		"browser_connected": s.renderer.Healthy(),
	})
}

// handleConfig returns the public configuration: branding plus the render
// and share defaults a client needs. Credentials never leave the process.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"company":          s.cfg.Company,
		"default_template": s.cfg.Ingestion.DefaultTemplate,
		"default_size":     s.cfg.Ingestion.DefaultSize,
		"chat_configured":  s.chat.Configured(),
	})
}

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"templates": s.renderer.Templates().Names(),
	})
}

func (s *Server) handleSizes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sizes": models.SizePresets,
	})
}

func (s *Server) handlePlatforms(w http.ResponseWriter, r *http.Request) {
	keys := make([]string, 0, len(models.Platforms))
	for key := range models.Platforms {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	platforms := make([]models.Platform, 0, len(keys))
	for _, key := range keys {
		platforms = append(platforms, models.Platforms[key])
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"platforms": platforms,
	})
}

// handleTechnicians lists the uploaded technician photo files.
func (s *Server) handleTechnicians(w http.ResponseWriter, r *http.Request) {
	photos := []string{}
	entries, err := os.ReadDir(s.cfg.Ingestion.TechnicianPhotoDir)
	if err != nil && !os.IsNotExist(err) {
		writeError(w, models.Wrap(models.KindInternal, "failed to list technician photos", err))
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".png", ".jpg", ".jpeg":
			photos = append(photos, entry.Name())
		}
	}
	sort.Strings(photos)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"photos": photos,
	})
}

// Image magic numbers used to sniff the upload format.
var (
	pngMagic  = []byte{0x89, 0x50, 0x4E, 0x47}
	jpegMagic = []byte{0xFF, 0xD8}
)

// handleTechnicianUpload stores raw image bytes under a safe filename
// derived from the name query parameter; the extension comes from the
// sniffed image type.
func (s *Server) handleTechnicianUpload(w http.ResponseWriter, r *http.Request) {
	name := safeFileName(r.URL.Query().Get("name"))
	if name == "" {
		writeError(w, models.BadRequest("name query parameter is required",
			models.FieldError{Field: "name", Message: "must contain letters, digits, '-', '_', or '.'"}))
		return
	}

	body, err := readBody(w, r, maxUploadBody)
	if err != nil {
		writeError(w, err)
		return
	}

	var ext string
	switch {
	case bytes.HasPrefix(body, pngMagic):
		ext = ".png"
	case bytes.HasPrefix(body, jpegMagic):
		ext = ".jpg"
	default:
		writeError(w, models.BadRequest("unsupported image type: body must be PNG or JPEG"))
		return
	}

	dir := s.cfg.Ingestion.TechnicianPhotoDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		writeError(w, models.Wrap(models.KindInternal, "failed to create photo directory", err))
		return
	}
	file := name + ext
	if err := os.WriteFile(filepath.Join(dir, file), body, 0o644); err != nil {
		writeError(w, models.Wrap(models.KindInternal, "failed to store photo", err))
		return
	}

	logging.Info().Str("file", file).Int("bytes", len(body)).Msg("Technician photo uploaded")
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"name": name,
		"file": file,
	})
}

// safeFileName strips everything but letters, digits, '-', '_', and interior
// '.' from a requested name, refusing traversal outright.
func safeFileName(name string) string {
	var b strings.Builder
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteRune(c)
		case c == '-' || c == '_' || c == '.':
			b.WriteRune(c)
		}
	}
	cleaned := strings.Trim(b.String(), ".")
	if strings.Contains(cleaned, "..") {
		return ""
	}
	if len(cleaned) > 64 {
		cleaned = cleaned[:64]
	}
	return cleaned
}
