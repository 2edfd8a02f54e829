// ReviewForge - Customer Review Ingestion and Social Image Rendering
// Copyright 2026 ReviewForge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewforge/reviewforge

package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/reviewforge/reviewforge/internal/logging"
	"github.com/reviewforge/reviewforge/internal/models"
)

// errorBody is the user-visible error shape.
type errorBody struct {
	Error   string              `json:"error"`
	Details []models.FieldError `json:"details,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError maps an error to its HTTP status and the standard error body.
// Unclassified errors are logged and reported as a generic 500.
func writeError(w http.ResponseWriter, err error) {
	var apiErr *models.Error
	if !errors.As(err, &apiErr) {
		apiErr = models.Wrap(models.KindInternal, "internal error", err)
	}
	if apiErr.Kind == models.KindInternal {
		logging.Err(err).Msg("Request failed")
	}
	writeJSON(w, apiErr.HTTPStatus(), errorBody{Error: apiErr.Message, Details: apiErr.Details})
}

// readBody reads the request body up to maxBytes. Oversized bodies are
// rejected as BadRequest.
func readBody(w http.ResponseWriter, r *http.Request, maxBytes int64) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, models.BadRequest("request body exceeds " + strconv.FormatInt(maxBytes, 10) + " bytes")
		}
		return nil, models.Wrap(models.KindBadRequest, "failed to read request body", err)
	}
	return body, nil
}

// decodeJSON reads and unmarshals a JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst interface{}) error {
	body, err := readBody(w, r, maxBytes)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return models.BadRequest("request body is required")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return models.BadRequest("invalid JSON: " + err.Error())
	}
	return nil
}

// writeImage writes a rendered image with its metadata headers.
func writeImage(w http.ResponseWriter, result models.ImageResult, elapsed time.Duration) {
	w.Header().Set("Content-Type", result.ContentType())
	w.Header().Set("X-Image-Width", strconv.Itoa(result.Width))
	w.Header().Set("X-Image-Height", strconv.Itoa(result.Height))
	w.Header().Set("X-Generation-Time-Ms", strconv.FormatInt(elapsed.Milliseconds(), 10))
	if result.Cached {
		w.Header().Set("X-Cache", "HIT")
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(result.Bytes); err != nil {
		logging.Err(err).Msg("Failed to write image response")
	}
}
