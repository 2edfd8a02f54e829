// ReviewForge - Customer Review Ingestion and Social Image Rendering
// Copyright 2026 ReviewForge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewforge/reviewforge

package sources

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/reviewforge/reviewforge/internal/config"
	"github.com/reviewforge/reviewforge/internal/models"
)

// GenericAdapter accepts webhook pushes from platforms without a dedicated
// adapter. A configurable field mapping translates the sender's payload keys
// onto the normalized record; unmapped fields fall back to the canonical key
// names so a well-behaved sender needs no mapping at all.
type GenericAdapter struct {
	cfg config.GenericConfig
}

// NewGenericAdapter builds the adapter from its config.
func NewGenericAdapter(cfg config.GenericConfig) *GenericAdapter {
	return &GenericAdapter{cfg: cfg}
}

// Name implements Adapter.
func (a *GenericAdapter) Name() string { return SourceGeneric }

// Pollable implements Adapter; the generic source is push-only.
func (a *GenericAdapter) Pollable() bool { return false }

// WebhookSecret implements Adapter.
func (a *GenericAdapter) WebhookSecret() string { return a.cfg.WebhookSecret }

// Fetch implements Adapter; the generic source cannot be polled.
func (a *GenericAdapter) Fetch(context.Context, string) (*FetchResult, error) {
	return nil, ErrFetchUnsupported
}

// Parse implements Adapter. The payload is one of: a single review object,
// an array of review objects, or an envelope {source, reviews:[...]} whose
// source (if present) overrides the "generic" tag in derived IDs.
func (a *GenericAdapter) Parse(payload []byte) ([]models.Review, error) {
	return a.ParseAs(SourceGeneric, payload)
}

// ParseAs parses like Parse but tags records with the given source. The
// webhook and import surfaces use it to honor caller-supplied source names.
func (a *GenericAdapter) ParseAs(source string, payload []byte) ([]models.Review, error) {
	if source == "" {
		source = SourceGeneric
	}

	trimmed := strings.TrimSpace(string(payload))
	if strings.HasPrefix(trimmed, "[") {
		var items []map[string]json.RawMessage
		if err := json.Unmarshal(payload, &items); err != nil {
			return nil, models.BadRequest("invalid payload: expected JSON array of reviews")
		}
		return a.normalizeAll(source, items)
	}

	var item map[string]json.RawMessage
	if err := json.Unmarshal(payload, &item); err != nil {
		return nil, models.BadRequest("invalid payload: expected JSON object")
	}

	// Envelope form: {source, reviews:[...]}.
	if rawReviews, ok := item["reviews"]; ok {
		if s := stringField(item, "source"); s != "" {
			source = s
		}
		var items []map[string]json.RawMessage
		if err := json.Unmarshal(rawReviews, &items); err != nil {
			return nil, models.BadRequest("invalid payload: reviews must be an array")
		}
		return a.normalizeAll(source, items)
	}

	r, err := a.normalize(source, item)
	if err != nil {
		return nil, err
	}
	return []models.Review{r}, nil
}

func (a *GenericAdapter) normalizeAll(source string, items []map[string]json.RawMessage) ([]models.Review, error) {
	out := make([]models.Review, 0, len(items))
	for _, item := range items {
		r, err := a.normalize(source, item)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// field returns the payload key for a canonical field, honoring the
// configured mapping.
func (a *GenericAdapter) field(mappingKey, fallback string) string {
	if mapped, ok := a.cfg.FieldMapping[mappingKey]; ok && mapped != "" {
		return mapped
	}
	return fallback
}

// genericDateLayouts are tried in order when parsing the review date.
var genericDateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (a *GenericAdapter) normalize(source string, item map[string]json.RawMessage) (models.Review, error) {
	raw, _ := json.Marshal(item)
	r := models.Review{
		ReviewerName: stringField(item, a.field("reviewer_name_field", "reviewer_name")),
		ReviewText:   stringField(item, a.field("review_text_field", "review_text")),
		TechName:     stringField(item, a.field("tech_name_field", "tech_name")),
		TechPhotoURL: stringField(item, a.field("tech_photo_url_field", "tech_photo_url")),
		Raw:          raw,
	}

	rating, ok := intField(item, a.field("rating_field", "rating"))
	if !ok {
		return models.Review{}, models.BadRequest("review missing rating",
			models.FieldError{Field: a.field("rating_field", "rating"), Message: "required"})
	}
	r.Rating = rating

	if dateStr := stringField(item, a.field("review_date_field", "review_date")); dateStr != "" {
		for _, layout := range genericDateLayouts {
			if t, err := time.Parse(layout, dateStr); err == nil {
				r.ReviewDate = t
				break
			}
		}
	}

	token := stringField(item, "id")
	r.Normalize(source, token, "A customer")
	return r, nil
}

// stringField extracts a string value, tolerating numbers.
func stringField(item map[string]json.RawMessage, key string) string {
	raw, ok := item[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return ""
}

// intField extracts an integer rating, tolerating floats and numeric
// strings ("4.5" rounds down).
func intField(item map[string]json.RawMessage, key string) (int, bool) {
	raw, ok := item[key]
	if !ok {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return int(n), true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return int(f), true
		}
	}
	return 0, false
}
