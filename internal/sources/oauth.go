// ReviewForge - Customer Review Ingestion and Social Image Rendering
// Copyright 2026 ReviewForge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewforge/reviewforge

package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/reviewforge/reviewforge/internal/logging"
	"github.com/reviewforge/reviewforge/internal/models"
)

// tokenExpiryMargin renews access tokens this long before their reported
// expiry so an in-flight request never carries a just-expired token.
const tokenExpiryMargin = 60 * time.Second

// defaultTokenURL is the Google OAuth2 token endpoint.
const defaultTokenURL = "https://oauth2.googleapis.com/token"

// tokenSource exchanges a long-lived refresh token for short-lived access
// tokens and caches them until close to expiry. Safe for concurrent use.
type tokenSource struct {
	mu sync.Mutex

	tokenURL     string
	clientID     string
	clientSecret string
	refreshToken string
	http         *http.Client

	accessToken string
	expiresAt   time.Time
}

func newTokenSource(tokenURL, clientID, clientSecret, refreshToken string) *tokenSource {
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}
	return &tokenSource{
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		refreshToken: refreshToken,
		http:         &http.Client{Timeout: 15 * time.Second},
	}
}

// Token returns a valid access token, refreshing if the cached one is
// missing or within the expiry margin.
func (ts *tokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.accessToken != "" && time.Now().Before(ts.expiresAt.Add(-tokenExpiryMargin)) {
		return ts.accessToken, nil
	}
	return ts.refreshLocked(ctx)
}

func (ts *tokenSource) refreshLocked(ctx context.Context) (string, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {ts.clientID},
		"client_secret": {ts.clientSecret},
		"refresh_token": {ts.refreshToken},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.tokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := ts.http.Do(req)
	if err != nil {
		return "", models.Wrap(models.KindUpstream, "token refresh failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", models.Wrap(models.KindUpstream, "token refresh rejected",
			fmt.Errorf("status %d: %s", resp.StatusCode, truncate(body, 200)))
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", models.E(models.KindUpstream, "token response missing access_token")
	}

	ts.accessToken = tok.AccessToken
	ts.expiresAt = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	logging.Debug().Time("expires_at", ts.expiresAt).Msg("Refreshed OAuth access token")
	return ts.accessToken, nil
}
