// ReviewForge - Customer Review Ingestion and Social Image Rendering
// Copyright 2026 ReviewForge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewforge/reviewforge

package sources

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/reviewforge/reviewforge/internal/config"
	"github.com/reviewforge/reviewforge/internal/models"
)

// defaultAngiBaseURL is the Angi partner API root.
const defaultAngiBaseURL = "https://api.angi.com/v1"

// angiPageSize is the per-request page size for review listing.
const angiPageSize = 50

// AngiAdapter polls the Angi partner reviews API with a bearer token. The
// partner feed is append-only and offset-paginated, so the poll cursor is
// "offset:<N>" where N is the count of records already consumed.
type AngiAdapter struct {
	cfg    config.SourceConfig
	client *breakerClient
}

// NewAngiAdapter builds the adapter from its source config.
func NewAngiAdapter(cfg config.SourceConfig) *AngiAdapter {
	return &AngiAdapter{cfg: cfg, client: newBreakerClient(SourceAngi)}
}

// Name implements Adapter.
func (a *AngiAdapter) Name() string { return SourceAngi }

// Pollable implements Adapter.
func (a *AngiAdapter) Pollable() bool { return true }

// WebhookSecret implements Adapter.
func (a *AngiAdapter) WebhookSecret() string { return a.cfg.WebhookSecret }

type angiReview struct {
	ID           string    `json:"id"`
	ConsumerName string    `json:"consumer_name"`
	Rating       int       `json:"rating"`
	Comment      string    `json:"comment"`
	CreatedAt    time.Time `json:"created_at"`
	Technician   string    `json:"technician,omitempty"`
}

type angiReviewList struct {
	Reviews []angiReview `json:"reviews"`
	Total   int          `json:"total"`
}

// parseOffsetCursor decodes an "offset:<N>" cursor; anything malformed
// restarts from zero, which is safe because the store deduplicates.
func parseOffsetCursor(cursor string) int {
	rest, ok := strings.CutPrefix(cursor, "offset:")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Fetch implements Adapter, walking pages from the persisted offset until a
// short page signals the end of the feed.
func (a *AngiAdapter) Fetch(ctx context.Context, cursor string) (*FetchResult, error) {
	base := a.cfg.BaseURL
	if base == "" {
		base = defaultAngiBaseURL
	}
	endpoint := fmt.Sprintf("%s/partners/%s/reviews", base, a.cfg.CompanyID)
	headers := map[string]string{"Authorization": "Bearer " + a.cfg.APIToken}

	offset := parseOffsetCursor(cursor)
	result := &FetchResult{}

	for {
		query := url.Values{
			"offset": {strconv.Itoa(offset)},
			"limit":  {strconv.Itoa(angiPageSize)},
		}
		body, err := a.client.getJSON(ctx, endpoint, query, headers)
		if err != nil {
			return nil, err
		}

		var page angiReviewList
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, models.Wrap(models.KindUpstream, "decode angi review list", err)
		}

		for _, ar := range page.Reviews {
			result.Reviews = append(result.Reviews, a.normalize(ar))
		}
		offset += len(page.Reviews)

		if len(page.Reviews) < angiPageSize {
			break
		}
	}

	result.NextCursor = "offset:" + strconv.Itoa(offset)
	return result, nil
}

func (a *AngiAdapter) normalize(ar angiReview) models.Review {
	raw, _ := json.Marshal(ar)
	r := models.Review{
		ReviewerName: ar.ConsumerName,
		Rating:       ar.Rating,
		ReviewText:   ar.Comment,
		ReviewDate:   ar.CreatedAt,
		TechName:     ar.Technician,
		Raw:          raw,
	}
	r.Normalize(SourceAngi, ar.ID, "An Angi customer")
	return r
}

// Parse implements Adapter for Angi review webhooks, which deliver a single
// review in the partner-feed shape.
func (a *AngiAdapter) Parse(payload []byte) ([]models.Review, error) {
	var ar angiReview
	if err := json.Unmarshal(payload, &ar); err != nil {
		return nil, models.BadRequest("invalid angi webhook payload")
	}
	if ar.ID == "" && ar.Rating == 0 && ar.Comment == "" {
		return nil, models.BadRequest("angi webhook payload missing review fields")
	}
	return []models.Review{a.normalize(ar)}, nil
}
