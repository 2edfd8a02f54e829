// ReviewForge - Customer Review Ingestion and Social Image Rendering
// Copyright 2026 ReviewForge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewforge/reviewforge

package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/reviewforge/reviewforge/internal/logging"
	"github.com/reviewforge/reviewforge/internal/metrics"
	"github.com/reviewforge/reviewforge/internal/models"
)

// maxResponseBytes caps how much of an upstream response is read. Review
// feeds are small; anything larger indicates a misbehaving endpoint.
const maxResponseBytes = 10 << 20

// breakerClient wraps an http.Client with a per-source circuit breaker so a
// failing platform API cannot stall every poll cycle.
//
// Circuit breaker configuration:
// - Max 3 concurrent requests in half-open state
// - 1 minute measurement window
// - 2 minute timeout before attempting recovery
// - Opens after 60% failure rate with minimum 5 requests
type breakerClient struct {
	source string
	http   *http.Client
	cb     *gobreaker.CircuitBreaker[[]byte]
}

func newBreakerClient(source string) *breakerClient {
	metrics.BreakerState.WithLabelValues(source).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        source,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("source", name).
				Str("from", breakerStateString(from)).
				Str("to", breakerStateString(to)).
				Msg("Source circuit breaker state transition")
			metrics.BreakerState.WithLabelValues(name).Set(breakerStateFloat(to))
		},
	})

	return &breakerClient{
		source: source,
		http:   &http.Client{Timeout: 30 * time.Second},
		cb:     cb,
	}
}

// do executes the request through the breaker and returns the response body.
// Non-2xx statuses count as breaker failures and surface as upstream errors.
func (c *breakerClient) do(req *http.Request) ([]byte, error) {
	body, err := c.cb.Execute(func() ([]byte, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("%s API returned %d: %s", c.source, resp.StatusCode, truncate(data, 200))
		}
		return data, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			logging.Warn().Str("source", c.source).Err(err).Msg("Source request rejected by circuit breaker")
			return nil, models.Wrap(models.KindUpstream, c.source+" API unavailable (circuit open)", err)
		}
		return nil, models.Wrap(models.KindUpstream, c.source+" API request failed", err)
	}
	return body, nil
}

// getJSON issues a GET with the given query and headers and returns the body.
func (c *breakerClient) getJSON(ctx context.Context, rawURL string, query url.Values, headers map[string]string) ([]byte, error) {
	u := rawURL
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", c.source, err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.do(req)
}

func truncate(data []byte, n int) string {
	if len(data) > n {
		data = data[:n]
	}
	return string(data)
}

func breakerStateFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return -1
	}
}

func breakerStateString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}
