// ReviewForge - Customer Review Ingestion and Social Image Rendering
// Copyright 2026 ReviewForge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewforge/reviewforge

package sources

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/goccy/go-json"

	"github.com/reviewforge/reviewforge/internal/config"
	"github.com/reviewforge/reviewforge/internal/models"
)

// defaultYelpBaseURL is the Yelp Fusion API root.
const defaultYelpBaseURL = "https://api.yelp.com/v3"

// YelpAdapter polls the Yelp Fusion business reviews feed with an API key.
// The feed only returns review excerpts, so every record is flagged Partial.
// There is no webhook surface; Yelp is poll-only.
type YelpAdapter struct {
	cfg    config.SourceConfig
	client *breakerClient
}

// NewYelpAdapter builds the adapter from its source config.
func NewYelpAdapter(cfg config.SourceConfig) *YelpAdapter {
	return &YelpAdapter{cfg: cfg, client: newBreakerClient(SourceYelp)}
}

// Name implements Adapter.
func (a *YelpAdapter) Name() string { return SourceYelp }

// Pollable implements Adapter.
func (a *YelpAdapter) Pollable() bool { return true }

// WebhookSecret implements Adapter.
func (a *YelpAdapter) WebhookSecret() string { return "" }

type yelpReview struct {
	ID          string  `json:"id"`
	Rating      float64 `json:"rating"`
	Text        string  `json:"text"`
	TimeCreated string  `json:"time_created"`
	User        struct {
		Name     string `json:"name"`
		ImageURL string `json:"image_url"`
	} `json:"user"`
}

type yelpReviewList struct {
	Reviews []yelpReview `json:"reviews"`
	Total   int          `json:"total"`
}

// yelpTimeLayout is the feed's timestamp format (no zone; Yelp documents
// the business's local time, treated here as UTC for ordering only).
const yelpTimeLayout = "2006-01-02 15:04:05"

// Fetch implements Adapter. The cursor is the time_created of the newest
// review seen; older records are skipped. The feed itself has no
// pagination, it always returns the most recent few reviews.
func (a *YelpAdapter) Fetch(ctx context.Context, cursor string) (*FetchResult, error) {
	base := a.cfg.BaseURL
	if base == "" {
		base = defaultYelpBaseURL
	}
	endpoint := fmt.Sprintf("%s/businesses/%s/reviews", base, a.cfg.BusinessID)
	headers := map[string]string{"Authorization": "Bearer " + a.cfg.APIKey}

	body, err := a.client.getJSON(ctx, endpoint, url.Values{"sort_by": {"newest"}}, headers)
	if err != nil {
		return nil, err
	}

	var feed yelpReviewList
	if err := json.Unmarshal(body, &feed); err != nil {
		return nil, models.Wrap(models.KindUpstream, "decode yelp review feed", err)
	}

	var since time.Time
	if cursor != "" {
		since, _ = time.Parse(yelpTimeLayout, cursor)
	}

	result := &FetchResult{NextCursor: cursor}
	newest := since
	for _, yr := range feed.Reviews {
		created, err := time.Parse(yelpTimeLayout, yr.TimeCreated)
		if err != nil {
			created = time.Time{}
		}
		if !created.IsZero() && !created.After(since) {
			continue
		}
		result.Reviews = append(result.Reviews, a.normalize(yr, created))
		if created.After(newest) {
			newest = created
		}
	}

	if newest.After(since) {
		result.NextCursor = newest.Format(yelpTimeLayout)
	}
	return result, nil
}

func (a *YelpAdapter) normalize(yr yelpReview, created time.Time) models.Review {
	raw, _ := json.Marshal(yr)
	r := models.Review{
		ReviewerName: yr.User.Name,
		Rating:       int(yr.Rating),
		ReviewText:   yr.Text,
		ReviewDate:   created,
		Raw:          raw,
		Partial:      true, // the feed only carries excerpts
	}
	r.Normalize(SourceYelp, yr.ID, "A Yelp customer")
	return r
}

// Parse implements Adapter; Yelp has no webhook surface.
func (a *YelpAdapter) Parse([]byte) ([]models.Review, error) {
	return nil, ErrParseUnsupported
}
