// ReviewForge - Customer Review Ingestion and Social Image Rendering
// Copyright 2026 ReviewForge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewforge/reviewforge

package api

import (
	"bytes"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

// doJSON runs one request against the env's router.
func doJSON(t *testing.T, env *testEnv, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON body %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestGenerateReturnsPNG(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := doJSON(t, env, http.MethodPost, "/generate",
		`{"reviewer_name":"Jane D.","rating":5,"review_text":"Excellent"}`, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte{0x89, 0x50, 0x4E, 0x47}) {
		t.Error("body does not start with PNG magic")
	}
	if rec.Header().Get("X-Image-Width") != "1080" || rec.Header().Get("X-Image-Height") != "1080" {
		t.Errorf("dimensions = %sx%s",
			rec.Header().Get("X-Image-Width"), rec.Header().Get("X-Image-Height"))
	}
	if rec.Header().Get("X-Generation-Time-Ms") == "" {
		t.Error("missing X-Generation-Time-Ms")
	}
}

func TestGenerateSecondRequestHitsCache(t *testing.T) {
	env := newTestEnv(t, nil)
	body := `{"reviewer_name":"Jane D.","rating":5,"review_text":"Excellent"}`

	first := doJSON(t, env, http.MethodPost, "/generate", body, nil)
	if first.Code != http.StatusOK {
		t.Fatalf("first status = %d", first.Code)
	}
	if first.Header().Get("X-Cache") == "HIT" {
		t.Error("first request should miss")
	}

	second := doJSON(t, env, http.MethodPost, "/generate", body, nil)
	if second.Code != http.StatusOK {
		t.Fatalf("second status = %d", second.Code)
	}
	if second.Header().Get("X-Cache") != "HIT" {
		t.Error("second request should hit the cache")
	}
	if !bytes.Equal(first.Body.Bytes(), second.Body.Bytes()) {
		t.Error("cached bytes differ from original render")
	}
	if env.capturer.renderCount() != 1 {
		t.Errorf("renders = %d, want 1", env.capturer.renderCount())
	}
}

func TestGenerateLandscapeJPEG(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := doJSON(t, env, http.MethodPost, "/generate",
		`{"reviewer_name":"Jane","rating":4,"review_text":"Great","size":"landscape","format":"jpeg"}`, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Image-Width") != "1200" || rec.Header().Get("X-Image-Height") != "630" {
		t.Errorf("dimensions = %sx%s",
			rec.Header().Get("X-Image-Width"), rec.Header().Get("X-Image-Height"))
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte{0xFF, 0xD8}) {
		t.Error("body does not start with JPEG magic")
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestGenerateRejectsRatingOutOfRange(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := doJSON(t, env, http.MethodPost, "/generate",
		`{"reviewer_name":"Jane","rating":99,"review_text":"??"}`, nil)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["error"] == "" {
		t.Error("missing error message")
	}
	if body["details"] == nil {
		t.Error("missing field details")
	}
}

func TestGenerateRejectsMissingFields(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name string
		body string
	}{
		{"missing reviewer", `{"rating":5,"review_text":"T"}`},
		{"missing text", `{"reviewer_name":"A","rating":5}`},
		{"bad size", `{"reviewer_name":"A","rating":5,"review_text":"T","size":"billboard"}`},
		{"bad format", `{"reviewer_name":"A","rating":5,"review_text":"T","format":"gif"}`},
		{"empty body", ""},
		{"not json", `reviewer_name=Jane`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, env, http.MethodPost, "/generate", tt.body, nil)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, body = %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestGenerateViaQueryString(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := doJSON(t, env, http.MethodGet,
		"/generate?reviewer_name=Jane&rating=4&review_text=Solid+work&size=story", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Image-Height") != "1920" {
		t.Errorf("height = %s", rec.Header().Get("X-Image-Height"))
	}
}

func TestGenerateQueryRejectsNonIntegerRating(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := doJSON(t, env, http.MethodGet,
		"/generate?reviewer_name=Jane&rating=five&review_text=T", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestGenerateUnknownTemplate(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := doJSON(t, env, http.MethodPost, "/generate",
		`{"reviewer_name":"Jane","rating":5,"review_text":"T","template":"nope"}`, nil)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if !strings.Contains(body["error"].(string), "unknown template") {
		t.Errorf("error = %v", body["error"])
	}
}

func TestGenerateCallbackMode(t *testing.T) {
	env := newTestEnv(t, nil)

	type delivery struct {
		contentType string
		body        []byte
	}
	delivered := make(chan delivery, 1)
	callback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		delivered <- delivery{contentType: r.Header.Get("Content-Type"), body: data}
	}))
	defer callback.Close()

	rec := doJSON(t, env, http.MethodPost, "/generate",
		`{"reviewer_name":"Jane","rating":5,"review_text":"T","callback_url":"`+callback.URL+`"}`, nil)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["accepted"] != true {
		t.Errorf("body = %v", body)
	}

	select {
	case d := <-delivered:
		if d.contentType != "image/png" {
			t.Errorf("callback Content-Type = %q", d.contentType)
		}
		if !bytes.HasPrefix(d.body, []byte{0x89, 0x50, 0x4E, 0x47}) {
			t.Error("callback body is not a PNG")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("callback never delivered")
	}
}

func TestGenerateBatchOrderedResults(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := doJSON(t, env, http.MethodPost, "/generate/batch",
		`{"reviews":[
			{"reviewer_name":"A","rating":5,"review_text":"First"},
			{"reviewer_name":"B","rating":4,"review_text":"Second"}
		]}`, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Count   int           `json:"count"`
		Results []batchResult `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 2 || len(resp.Results) != 2 {
		t.Fatalf("count = %d, results = %d", resp.Count, len(resp.Results))
	}
	for i, res := range resp.Results {
		if res.Index != i {
			t.Errorf("results[%d].index = %d", i, res.Index)
		}
		if !res.Success {
			t.Errorf("results[%d] failed: %s", i, res.Error)
		}
		raw, err := base64.StdEncoding.DecodeString(res.Image)
		if err != nil || len(raw) == 0 {
			t.Errorf("results[%d] image invalid", i)
		}
	}
}

func TestGenerateBatchSizeLimits(t *testing.T) {
	env := newTestEnv(t, nil)

	item := `{"reviewer_name":"A","rating":5,"review_text":"T"}`
	oversized := `{"reviews":[` + strings.Repeat(item+",", maxBatchItems) + item + `]}`

	tests := []struct {
		name string
		body string
	}{
		{"empty batch", `{"reviews":[]}`},
		{"missing reviews", `{}`},
		{"oversized batch", oversized},
		{"invalid item", `{"reviews":[{"rating":9,"review_text":"T"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, env, http.MethodPost, "/generate/batch", tt.body, nil)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, body = %s", rec.Code, rec.Body.String())
			}
		})
	}
}
