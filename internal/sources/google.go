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

// defaultGoogleBaseURL is the Business Profile reviews API root.
const defaultGoogleBaseURL = "https://mybusiness.googleapis.com/v4"

// googlePageSize is the per-request page size for review listing.
const googlePageSize = 50

// googleStarRatings maps the API's enum star values to integers.
var googleStarRatings = map[string]int{
	"ONE":   1,
	"TWO":   2,
	"THREE": 3,
	"FOUR":  4,
	"FIVE":  5,
}

// GoogleAdapter polls the Google Business Profile reviews API using a
// refresh-token OAuth flow. The poll cursor is the update time of the
// newest review seen, so each poll only walks pages until it reaches
// already-ingested records.
type GoogleAdapter struct {
	cfg    config.SourceConfig
	client *breakerClient
	tokens *tokenSource
}

// NewGoogleAdapter builds the adapter from its source config.
func NewGoogleAdapter(cfg config.SourceConfig) *GoogleAdapter {
	return &GoogleAdapter{
		cfg:    cfg,
		client: newBreakerClient(SourceGoogle),
		tokens: newTokenSource("", cfg.ClientID, cfg.ClientSecret, cfg.RefreshToken),
	}
}

// Name implements Adapter.
func (a *GoogleAdapter) Name() string { return SourceGoogle }

// Pollable implements Adapter.
func (a *GoogleAdapter) Pollable() bool { return true }

// WebhookSecret implements Adapter.
func (a *GoogleAdapter) WebhookSecret() string { return a.cfg.WebhookSecret }

// googleReview is the wire shape of one Business Profile review.
type googleReview struct {
	ReviewID string `json:"reviewId"`
	Reviewer struct {
		DisplayName     string `json:"displayName"`
		ProfilePhotoURL string `json:"profilePhotoUrl"`
	} `json:"reviewer"`
	StarRating string    `json:"starRating"`
	Comment    string    `json:"comment"`
	CreateTime time.Time `json:"createTime"`
	UpdateTime time.Time `json:"updateTime"`
}

// effectiveTime is the freshest of the review's timestamps. Reviews that
// were never edited often carry only createTime, so the cursor comparison
// cannot rely on updateTime alone.
func (gr googleReview) effectiveTime() time.Time {
	if gr.CreateTime.After(gr.UpdateTime) {
		return gr.CreateTime
	}
	return gr.UpdateTime
}

type googleReviewList struct {
	Reviews       []googleReview `json:"reviews"`
	NextPageToken string         `json:"nextPageToken"`
}

// Fetch implements Adapter. The cursor is an RFC 3339 timestamp; reviews at
// or before it are skipped and pagination stops at the first such record
// because the API returns newest first.
func (a *GoogleAdapter) Fetch(ctx context.Context, cursor string) (*FetchResult, error) {
	token, err := a.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	var since time.Time
	if cursor != "" {
		since, err = time.Parse(time.RFC3339, cursor)
		if err != nil {
			// A malformed cursor means re-ingesting everything; dedup in the
			// store makes that safe.
			since = time.Time{}
		}
	}

	base := a.cfg.BaseURL
	if base == "" {
		base = defaultGoogleBaseURL
	}
	endpoint := fmt.Sprintf("%s/accounts/%s/locations/%s/reviews",
		base, a.cfg.AccountID, a.cfg.LocationID)
	headers := map[string]string{"Authorization": "Bearer " + token}

	result := &FetchResult{NextCursor: cursor}
	newest := since
	pageToken := ""

	for {
		query := url.Values{"pageSize": {fmt.Sprint(googlePageSize)}}
		if pageToken != "" {
			query.Set("pageToken", pageToken)
		}

		body, err := a.client.getJSON(ctx, endpoint, query, headers)
		if err != nil {
			return nil, err
		}

		var page googleReviewList
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, models.Wrap(models.KindUpstream, "decode google review list", err)
		}

		reachedCursor := false
		for _, gr := range page.Reviews {
			ts := gr.effectiveTime()
			if !ts.After(since) {
				reachedCursor = true
				break
			}
			result.Reviews = append(result.Reviews, a.normalize(gr))
			if ts.After(newest) {
				newest = ts
			}
		}

		if reachedCursor || page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	if newest.After(since) {
		result.NextCursor = newest.UTC().Format(time.RFC3339)
	}
	return result, nil
}

func (a *GoogleAdapter) normalize(gr googleReview) models.Review {
	raw, _ := json.Marshal(gr)
	r := models.Review{
		ReviewerName: gr.Reviewer.DisplayName,
		Rating:       googleStarRatings[gr.StarRating],
		ReviewText:   gr.Comment,
		ReviewDate:   gr.CreateTime,
		Raw:          raw,
	}
	r.Normalize(SourceGoogle, gr.ReviewID, "A Google customer")
	return r
}

// Parse implements Adapter for Google review-notification webhooks. The
// payload carries the same review shape as the list API, either as a single
// review object or under a "review" key.
func (a *GoogleAdapter) Parse(payload []byte) ([]models.Review, error) {
	var envelope struct {
		Review *googleReview `json:"review"`
	}
	if err := json.Unmarshal(payload, &envelope); err == nil && envelope.Review != nil {
		return []models.Review{a.normalize(*envelope.Review)}, nil
	}

	var gr googleReview
	if err := json.Unmarshal(payload, &gr); err != nil {
		return nil, models.BadRequest("invalid google webhook payload")
	}
	if gr.ReviewID == "" && gr.StarRating == "" {
		return nil, models.BadRequest("google webhook payload missing review fields")
	}
	return []models.Review{a.normalize(gr)}, nil
}
