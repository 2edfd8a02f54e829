// ReviewForge - Customer Review Ingestion and Social Image Rendering
// Copyright 2026 ReviewForge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewforge/reviewforge

// Package chat shares rendered review images into the configured chat
// workspace via its multipart file-upload API.
package chat

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/reviewforge/reviewforge/internal/config"
	"github.com/reviewforge/reviewforge/internal/logging"
	"github.com/reviewforge/reviewforge/internal/metrics"
	"github.com/reviewforge/reviewforge/internal/models"
)

// starGlyph prefixes the share message, repeated per rating point.
const starGlyph = "★"

// Client uploads images to the chat workspace. Uploads are paced with a
// token bucket (1/s, burst 3) so a pipeline burst cannot trip the chat
// API's rate limits.
type Client struct {
	cfg     config.ChatConfig
	http    *http.Client
	limiter *rate.Limiter

	// mentions is cfg.Technicians with lower-cased keys for the
	// case-insensitive lookup.
	mentions map[string]string
}

// New builds the client from chat config.
func New(cfg config.ChatConfig) *Client {
	mentions := make(map[string]string, len(cfg.Technicians))
	for name, id := range cfg.Technicians {
		mentions[strings.ToLower(name)] = id
	}
	return &Client{
		cfg:      cfg,
		http:     &http.Client{Timeout: 30 * time.Second},
		limiter:  rate.NewLimiter(rate.Every(time.Second), 3),
		mentions: mentions,
	}
}

// Configured reports whether sharing can be attempted.
func (c *Client) Configured() bool { return c.cfg.Configured() }

// Mention resolves a technician display name to its workspace mention,
// case-insensitively. The second return is false when unmapped.
func (c *Client) Mention(techName string) (string, bool) {
	id, ok := c.mentions[strings.ToLower(strings.TrimSpace(techName))]
	if !ok || id == "" {
		return "", false
	}
	return "<@" + id + ">", true
}

// composeMessage builds the share text: star prefix, platform label,
// reviewer, block-quoted text, and a technician line when the name maps to
// a configured mention.
func (c *Client) composeMessage(review models.Review) string {
	var b strings.Builder

	b.WriteString(strings.Repeat(starGlyph, models.ClampRating(review.Rating)))
	if label := models.PlatformLabel(review.Source); label != "" {
		b.WriteString(" New " + label + " review")
	} else {
		b.WriteString(" New review")
	}
	b.WriteString(" from " + review.ReviewerName + "\n")

	for _, line := range strings.Split(review.ReviewText, "\n") {
		b.WriteString("> " + line + "\n")
	}

	if mention, ok := c.Mention(review.TechName); ok {
		b.WriteString("Technician: " + mention + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// uploadResponse is the chat API's envelope; ok:false carries the error.
type uploadResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// Share uploads the image with the composed message. It blocks on the rate
// limiter, honoring ctx cancellation.
func (c *Client) Share(ctx context.Context, review models.Review, image []byte, format string) error {
	if !c.Configured() {
		return models.E(models.KindBadRequest, "chat sharing is not configured")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for chat rate limit: %w", err)
	}

	ext := "png"
	if format == models.FormatJPEG {
		ext = "jpg"
	}
	filename := fmt.Sprintf("review-%s-%d.%s", review.Slug(), time.Now().UnixMilli(), ext)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fields := []struct{ name, value string }{
		{"channels", c.cfg.Channel},
		{"initial_comment", c.composeMessage(review)},
		{"filename", filename},
		{"title", "Review from " + review.ReviewerName},
	}
	for _, f := range fields {
		if err := mw.WriteField(f.name, f.value); err != nil {
			return fmt.Errorf("write upload field %s: %w", f.name, err)
		}
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("create upload part: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return fmt.Errorf("write upload image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("finalize upload body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.UploadURL, &body)
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.cfg.BotToken)

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ChatShares.WithLabelValues("error").Inc()
		return models.Wrap(models.KindUpstream, "chat upload failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		metrics.ChatShares.WithLabelValues("error").Inc()
		return fmt.Errorf("read chat response: %w", err)
	}

	var parsed uploadResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		metrics.ChatShares.WithLabelValues("error").Inc()
		return models.Wrap(models.KindUpstream, "chat returned malformed response",
			fmt.Errorf("status %d: %.200s", resp.StatusCode, respBody))
	}
	if !parsed.OK {
		metrics.ChatShares.WithLabelValues("error").Inc()
		return models.E(models.KindUpstream, "chat rejected upload: "+parsed.Error)
	}

	metrics.ChatShares.WithLabelValues("ok").Inc()
	logging.Info().
		Str("review_id", review.ID).
		Str("channel", c.cfg.Channel).
		Str("filename", filename).
		Msg("Shared review image to chat")
	return nil
}
