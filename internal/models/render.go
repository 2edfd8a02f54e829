// ReviewForge - Customer Review Ingestion and Social Image Rendering
// Copyright 2026 ReviewForge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewforge/reviewforge

package models

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/goccy/go-json"
)

// SizePreset is a named viewport/output dimension pair.
type SizePreset struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// SizePresets maps preset names to their dimensions. These four values are
// the complete set; unknown names are rejected at validation time.
var SizePresets = map[string]SizePreset{
	"square":    {Width: 1080, Height: 1080},
	"portrait":  {Width: 1080, Height: 1350},
	"story":     {Width: 1080, Height: 1920},
	"landscape": {Width: 1200, Height: 630},
}

// Rendering defaults.
const (
	DefaultSize     = "square"
	DefaultFormat   = "png"
	DefaultTemplate = "default"

	FormatPNG  = "png"
	FormatJPEG = "jpeg"

	// JPEGQuality is fixed; callers cannot override it.
	JPEGQuality = 90
)

// RenderRequest describes one review-to-image render. Zero-value optional
// fields fall back to configured company branding and defaults.
type RenderRequest struct {
	ReviewerName string `json:"reviewer_name" validate:"required,max=100"`
	Rating       int    `json:"rating" validate:"min=0,max=5"`
	ReviewText   string `json:"review_text" validate:"required,max=2000"`

	TechName     string `json:"tech_name,omitempty"`
	TechPhotoURL string `json:"tech_photo_url,omitempty"`
	Source       string `json:"source,omitempty"`

	Template string `json:"template,omitempty"`
	Size     string `json:"size,omitempty" validate:"omitempty,oneof=square portrait story landscape"`
	Format   string `json:"format,omitempty" validate:"omitempty,oneof=png jpeg"`

	BrandColor     string `json:"brand_color,omitempty"`
	BrandColorDark string `json:"brand_color_dark,omitempty"`
	LogoURL        string `json:"logo_url,omitempty"`

	// BaseURL absolutises relative asset URLs in the template. Set by the
	// HTTP layer from config or the inbound request, never by clients.
	BaseURL string `json:"base_url,omitempty"`

	// CallbackURL switches the HTTP layer to asynchronous delivery. It is
	// deliberately excluded from the cache key: the image is identical.
	CallbackURL string `json:"-"`
}

// ApplyDefaults fills empty enum fields with their default values.
func (rr *RenderRequest) ApplyDefaults() {
	if rr.Template == "" {
		rr.Template = DefaultTemplate
	}
	if rr.Size == "" {
		rr.Size = DefaultSize
	}
	if rr.Format == "" {
		rr.Format = DefaultFormat
	}
}

// CacheKey returns the content address of the request: the hex SHA-256 of
// its canonical JSON with defaults applied. Two requests with identical
// render-affecting fields always produce the same key.
func (rr *RenderRequest) CacheKey() string {
	c := *rr
	c.ApplyDefaults()
	c.CallbackURL = ""
	data, err := json.Marshal(&c)
	if err != nil {
		// Marshal of a plain struct cannot fail; keep the signature simple.
		data = []byte(rr.ReviewerName + rr.ReviewText)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ImageResult is a rendered image with its output metadata.
type ImageResult struct {
	Bytes  []byte
	Format string
	Width  int
	Height int
	Cached bool
}

// ContentType returns the MIME type for the result's format.
func (ir *ImageResult) ContentType() string {
	if ir.Format == FormatJPEG {
		return "image/jpeg"
	}
	return "image/png"
}
