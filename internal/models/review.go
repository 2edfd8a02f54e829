// ReviewForge - Customer Review Ingestion and Social Image Rendering
// Copyright 2026 ReviewForge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewforge/reviewforge

// Package models defines the shared data structures for ReviewForge:
// the normalized review record, render requests and results, size presets,
// platform badges, and the API error type.
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Review is the normalized representation of one customer review, as held in
// the store and consumed by rendering and sharing.
type Review struct {
	// ID is globally unique: "<source>:<token>" where token is either a
	// source-supplied identifier or a content hash. See DeriveID.
	ID     string `json:"id"`
	Source string `json:"source"`

	ReviewerName string    `json:"reviewer_name"`
	Rating       int       `json:"rating"`
	ReviewText   string    `json:"review_text"`
	ReviewDate   time.Time `json:"review_date"`

	TechName     string `json:"tech_name,omitempty"`
	TechPhotoURL string `json:"tech_photo_url,omitempty"`

	// Raw preserves the source payload for debugging and re-normalization.
	Raw json.RawMessage `json:"raw,omitempty"`

	// Partial marks records whose review_text is an excerpt (the Yelp feed
	// only returns truncated review bodies).
	Partial bool `json:"partial,omitempty"`

	// Processing flags, mutated by the fan-out pipeline.
	ProcessedAt    time.Time `json:"processed_at"`
	ImageGenerated bool      `json:"image_generated"`
	ChatShared     bool      `json:"chat_shared"`
}

// DeriveID builds the canonical review ID from a source tag and a
// source-supplied token. When the source provides no stable identifier pass
// an empty token and the content hash is used instead.
func DeriveID(source, token string, r *Review) string {
	if token == "" {
		token = ContentToken(source, r.ReviewerName, r.ReviewText, r.Rating)
	}
	return source + ":" + token
}

// ContentToken derives a stable 16-hex-char token from review content, for
// sources that do not supply their own review IDs.
func ContentToken(source, reviewerName, reviewText string, rating int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%s:%d", source, reviewerName, reviewText, rating)))
	return hex.EncodeToString(sum[:])[:16]
}

// ClampRating bounds a rating to the 1..5 star range.
func ClampRating(rating int) int {
	if rating < 1 {
		return 1
	}
	if rating > 5 {
		return 5
	}
	return rating
}

// Normalize enforces the cross-adapter invariants on a review record:
// clamped rating, non-nil text, defaulted date and reviewer name, and a
// derived ID when none is set. token may be empty for content-hash IDs.
func (r *Review) Normalize(source, token, namePlaceholder string) {
	r.Source = source
	r.Rating = ClampRating(r.Rating)
	r.ReviewerName = strings.TrimSpace(r.ReviewerName)
	if r.ReviewerName == "" {
		r.ReviewerName = namePlaceholder
	}
	if r.ReviewDate.IsZero() {
		r.ReviewDate = time.Now().UTC()
	}
	if r.ID == "" {
		r.ID = DeriveID(source, token, r)
	}
}

// SortDate is the timestamp used for recency ordering: review_date, falling
// back to processed_at for records without a source date.
func (r *Review) SortDate() time.Time {
	if !r.ReviewDate.IsZero() {
		return r.ReviewDate
	}
	return r.ProcessedAt
}

// Slug returns a filename-safe fragment of the reviewer name, used when
// naming uploaded image files.
func (r *Review) Slug() string {
	var b strings.Builder
	for _, c := range strings.ToLower(r.ReviewerName) {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteRune(c)
		case c == ' ' || c == '-' || c == '_' || c == '.':
			b.WriteByte('-')
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		slug = "review"
	}
	if len(slug) > 40 {
		slug = slug[:40]
	}
	return slug
}
