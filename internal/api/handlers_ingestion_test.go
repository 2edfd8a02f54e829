// ReviewForge - Customer Review Ingestion and Social Image Rendering
// Copyright 2026 ReviewForge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewforge/reviewforge

package api

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/reviewforge/reviewforge/internal/config"
	"github.com/reviewforge/reviewforge/internal/models"
)

func signBody(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func seedReview(t *testing.T, env *testEnv, id, source string, rating int, date time.Time) models.Review {
	t.Helper()
	r := models.Review{
		ID:           id,
		Source:       source,
		ReviewerName: "Jane Smith",
		Rating:       rating,
		ReviewText:   "Fixed it fast",
		ReviewDate:   date,
	}
	if err := env.store.Add(r); err != nil {
		t.Fatal(err)
	}
	return r
}

func TestImportTwiceReportsDuplicates(t *testing.T) {
	env := newTestEnv(t, nil)
	body := `{"source":"x","reviews":[{"reviewer_name":"A","rating":5,"review_text":"T"}]}`

	first := doJSON(t, env, http.MethodPost, "/api/ingestion/import", body, nil)
	if first.Code != http.StatusOK {
		t.Fatalf("first status = %d, body = %s", first.Code, first.Body.String())
	}
	got := decodeBody(t, first)
	if got["imported"] != float64(1) || got["duplicates"] != float64(0) {
		t.Errorf("first = %v", got)
	}

	second := doJSON(t, env, http.MethodPost, "/api/ingestion/import", body, nil)
	got = decodeBody(t, second)
	if got["imported"] != float64(0) || got["duplicates"] != float64(1) {
		t.Errorf("second = %v", got)
	}
}

func TestImportCSV(t *testing.T) {
	env := newTestEnv(t, nil)

	csvDoc := "reviewer_name,rating,review_text,source\nJane,5,Great,google\nBob,4,Fine,\n"
	req := httptest.NewRequest(http.MethodPost, "/api/ingestion/import", strings.NewReader(csvDoc))
	req.Header.Set("Content-Type", "text/csv")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	got := decodeBody(t, rec)
	if got["imported"] != float64(2) {
		t.Errorf("imported = %v", got["imported"])
	}
	if !env.store.Has("google:" + models.ContentToken("google", "Jane", "Great", 5)) {
		t.Error("CSV row not stored under content-derived ID")
	}
}

func TestImportRejectsMalformedPayload(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := doJSON(t, env, http.MethodPost, "/api/ingestion/import", `{"reviews":[{"reviewer_name":"A"}]}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestWebhookSignature(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Ingestion.Generic.WebhookSecret = "s"
	})
	body := `{"reviewer_name":"A","rating":5,"review_text":"T"}`

	valid := doJSON(t, env, http.MethodPost, "/api/ingestion/webhook/x", body,
		map[string]string{"X-Hub-Signature-256": signBody("s", body)})
	if valid.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", valid.Code, valid.Body.String())
	}
	got := decodeBody(t, valid)
	if got["accepted"] != true || got["received"] != float64(1) {
		t.Errorf("body = %v", got)
	}
	if !env.store.Has("x:" + models.ContentToken("x", "A", "T", 5)) {
		t.Error("webhook review not stored under path source")
	}

	// Flip one byte of the signature.
	sig := []byte(signBody("s", body))
	sig[len(sig)-1] ^= 1
	tampered := doJSON(t, env, http.MethodPost, "/api/ingestion/webhook/x", body,
		map[string]string{"X-Hub-Signature-256": string(sig)})
	if tampered.Code != http.StatusUnauthorized {
		t.Fatalf("tampered status = %d", tampered.Code)
	}

	missing := doJSON(t, env, http.MethodPost, "/api/ingestion/webhook/x", body, nil)
	if missing.Code != http.StatusUnauthorized {
		t.Fatalf("missing-header status = %d", missing.Code)
	}
}

func TestWebhookAcceptsAlternateSignatureHeader(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Ingestion.Generic.WebhookSecret = "s"
	})
	body := `{"reviewer_name":"B","rating":4,"review_text":"U"}`

	rec := doJSON(t, env, http.MethodPost, "/api/ingestion/webhook/partnerco", body,
		map[string]string{"X-Webhook-Signature": signBody("s", body)})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestWebhookWithoutSecretSkipsCheck(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := doJSON(t, env, http.MethodPost, "/api/ingestion/webhook/generic",
		`[{"reviewer_name":"C","rating":5,"review_text":"V"}]`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestWebhookVerificationHandshake(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/ingestion/webhook/google?verification=tok-123", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != "tok-123" {
		t.Errorf("body = %q", rec.Body.String())
	}

	noToken := httptest.NewRequest(http.MethodGet, "/api/ingestion/webhook/google", nil)
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, noToken)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing token status = %d", rec.Code)
	}
}

func TestIngestionReviewsListFilterAndLimit(t *testing.T) {
	env := newTestEnv(t, nil)
	now := time.Now().UTC()
	seedReview(t, env, "google:1", "google", 5, now.Add(-1*time.Hour))
	seedReview(t, env, "google:2", "google", 4, now)
	seedReview(t, env, "yelp:1", "yelp", 3, now.Add(-2*time.Hour))

	rec := doJSON(t, env, http.MethodGet, "/api/ingestion/reviews?source=google&limit=1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got := decodeBody(t, rec)
	if got["count"] != float64(1) {
		t.Fatalf("count = %v", got["count"])
	}
	reviews := got["reviews"].([]interface{})
	first := reviews[0].(map[string]interface{})
	if first["id"] != "google:2" {
		t.Errorf("newest first, got %v", first["id"])
	}

	bad := doJSON(t, env, http.MethodGet, "/api/ingestion/reviews?limit=zero", "", nil)
	if bad.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", bad.Code)
	}
}

func TestIngestionStatus(t *testing.T) {
	env := newTestEnv(t, nil)
	seedReview(t, env, "google:1", "google", 5, time.Now())

	rec := doJSON(t, env, http.MethodGet, "/api/ingestion/status", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got := decodeBody(t, rec)
	if got["enabled"] != true {
		t.Errorf("enabled = %v", got["enabled"])
	}
	stats := got["stats"].(map[string]interface{})
	if stats["total_reviews"] != float64(1) {
		t.Errorf("stats = %v", stats)
	}
	srcs := got["sources"].([]interface{})
	if len(srcs) == 0 {
		t.Error("no sources listed")
	}
}

func TestPollUnknownSource(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := doJSON(t, env, http.MethodPost, "/api/ingestion/poll/mystery", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestPollAllWithoutPollableSources(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := doJSON(t, env, http.MethodPost, "/api/ingestion/poll", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestReviewGenerateMarksFlag(t *testing.T) {
	env := newTestEnv(t, nil)
	r := seedReview(t, env, "google:77", "google", 5, time.Now())

	rec := doJSON(t, env, http.MethodPost, "/api/ingestion/reviews/"+r.ID+"/generate", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte{0x89, 0x50, 0x4E, 0x47}) {
		t.Error("response is not a PNG")
	}

	stored, _ := env.store.Get(r.ID)
	if !stored.ImageGenerated {
		t.Error("image_generated flag not set")
	}
}

func TestReviewGenerateUnknownID(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := doJSON(t, env, http.MethodPost, "/api/ingestion/reviews/none:0/generate", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestReviewShareMarksBothFlags(t *testing.T) {
	chatAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer chatAPI.Close()

	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Chat = config.ChatConfig{
			BotToken:  "xoxb-test",
			Channel:   "#reviews",
			UploadURL: chatAPI.URL,
		}
	})
	r := seedReview(t, env, "google:88", "google", 5, time.Now())

	rec := doJSON(t, env, http.MethodPost, "/api/ingestion/reviews/"+r.ID+"/share", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	got := decodeBody(t, rec)
	if got["shared"] != true || got["channel"] != "#reviews" {
		t.Errorf("body = %v", got)
	}

	stored, _ := env.store.Get(r.ID)
	if !stored.ImageGenerated || !stored.ChatShared {
		t.Errorf("flags = generated:%v shared:%v", stored.ImageGenerated, stored.ChatShared)
	}
}

func TestReviewShareSurfacesRemoteError(t *testing.T) {
	chatAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":false,"error":"channel_not_found"}`))
	}))
	defer chatAPI.Close()

	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Chat = config.ChatConfig{BotToken: "t", Channel: "#x", UploadURL: chatAPI.URL}
	})
	r := seedReview(t, env, "google:99", "google", 5, time.Now())

	rec := doJSON(t, env, http.MethodPost, "/api/ingestion/reviews/"+r.ID+"/share", "", nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	got := decodeBody(t, rec)
	if !strings.Contains(got["error"].(string), "channel_not_found") {
		t.Errorf("error = %v", got["error"])
	}
}
