// ReviewForge - Customer Review Ingestion and Social Image Rendering
// Copyright 2026 ReviewForge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewforge/reviewforge

// Package importer handles bulk review ingress: JSON envelopes and CSV
// files, both funneled through the same normalization as webhook payloads.
package importer

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/reviewforge/reviewforge/internal/models"
	"github.com/reviewforge/reviewforge/internal/sources"
)

// DefaultSource tags imported records that carry no source of their own.
const DefaultSource = sources.SourceImport

// csvColumns is the recognized header set; unknown columns are ignored.
var csvColumns = map[string]bool{
	"reviewer_name":  true,
	"rating":         true,
	"review_text":    true,
	"review_date":    true,
	"source":         true,
	"tech_name":      true,
	"tech_photo_url": true,
}

// csvDateLayouts are tried in order when parsing the review_date column.
var csvDateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
}

// Importer parses bulk payloads into normalized review records. The JSON
// path delegates to the generic adapter so field mapping and envelope
// handling stay in one place.
type Importer struct {
	generic *sources.GenericAdapter
}

// New builds the importer around the generic adapter.
func New(generic *sources.GenericAdapter) *Importer {
	return &Importer{generic: generic}
}

// ParseJSON accepts the same payload shapes as the generic webhook, tagged
// with the "import" source unless the envelope names its own.
func (im *Importer) ParseJSON(payload []byte) ([]models.Review, error) {
	return im.generic.ParseAs(DefaultSource, payload)
}

// ParseCSV reads a CSV document with a required header row. Rows missing a
// parsable rating are rejected with the 1-based line number.
func (im *Importer) ParseCSV(r io.Reader) ([]models.Review, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, models.BadRequest("empty CSV document")
	}
	if err != nil {
		return nil, models.BadRequest("invalid CSV: " + err.Error())
	}

	// Map recognized column names to their positions.
	cols := map[string]int{}
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		if csvColumns[name] {
			cols[name] = i
		}
	}
	if _, ok := cols["rating"]; !ok {
		return nil, models.BadRequest("CSV header missing required column: rating")
	}

	cell := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var out []models.Review
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, models.BadRequest("invalid CSV at line " + strconv.Itoa(line) + ": " + err.Error())
		}

		ratingStr := cell(row, "rating")
		rating, err := strconv.ParseFloat(ratingStr, 64)
		if err != nil {
			return nil, models.BadRequest("invalid rating at line " + strconv.Itoa(line) + ": " + ratingStr)
		}

		source := cell(row, "source")
		if source == "" {
			source = DefaultSource
		}

		rec := models.Review{
			ReviewerName: cell(row, "reviewer_name"),
			Rating:       int(rating),
			ReviewText:   cell(row, "review_text"),
			TechName:     cell(row, "tech_name"),
			TechPhotoURL: cell(row, "tech_photo_url"),
		}
		if dateStr := cell(row, "review_date"); dateStr != "" {
			for _, layout := range csvDateLayouts {
				if t, perr := time.Parse(layout, dateStr); perr == nil {
					rec.ReviewDate = t
					break
				}
			}
		}
		rec.Normalize(source, "", "A customer")
		out = append(out, rec)
	}

	if len(out) == 0 {
		return nil, models.BadRequest("CSV document has no data rows")
	}
	return out, nil
}

// Parse dispatches on content type: anything CSV-ish goes through the CSV
// reader, everything else is treated as JSON.
func (im *Importer) Parse(contentType string, body []byte) ([]models.Review, error) {
	if strings.Contains(contentType, "csv") {
		return im.ParseCSV(strings.NewReader(string(body)))
	}
	reviews, err := im.ParseJSON(body)
	if err != nil {
		var apiErr *models.Error
		if errors.As(err, &apiErr) {
			return nil, err
		}
		return nil, models.BadRequest("invalid import payload: " + err.Error())
	}
	return reviews, nil
}
